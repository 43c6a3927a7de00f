package telegram

import (
	"context"
	"fmt"
	"strings"

	"hive_fund/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// Notifier posts circle events to the operator chat.
type Notifier struct {
	client Client
	chatID int64
	logger *logrus.Entry
}

func NewNotifier(client Client, chatID int64, logger *logrus.Entry) *Notifier {
	return &Notifier{client: client, chatID: chatID, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, e notification.Event) error {
	text := FormatEvent(e)
	if err := n.client.Send(ctx, n.chatID, text); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", e.Type, err)
	}
	n.logger.WithFields(logrus.Fields{
		"event":   e.Type,
		"chat_id": n.chatID,
	}).Debug("Notification sent")
	return nil
}

// FormatEvent renders an event as a short chat message.
func FormatEvent(e notification.Event) string {
	var b strings.Builder
	switch e.Type {
	case notification.EventCycleStarted:
		b.WriteString("🎲 Cycle started")
	case notification.EventCycleCompleted:
		b.WriteString("✅ Cycle completed")
	case notification.EventExitResolved:
		b.WriteString("🚪 Exit request resolved")
	case notification.EventLoanDefaulted:
		b.WriteString("⚠️ Loan defaulted")
	default:
		b.WriteString(string(e.Type))
	}
	if e.CircleName != "" {
		fmt.Fprintf(&b, " in %q", e.CircleName)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, "\n%s", e.Detail)
	}
	if !e.Amount.IsZero() {
		fmt.Fprintf(&b, "\nAmount: $%s", e.Amount.StringFixed(2))
	}
	return b.String()
}

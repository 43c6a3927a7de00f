package logger

import (
	"context"

	"hive_fund/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// Notifier writes circle events to the log. It is the fallback when no
// chat transport is configured.
type Notifier struct {
	log *logrus.Entry
}

func NewNotifier(log *logrus.Entry) *Notifier {
	return &Notifier{log: log}
}

func (n *Notifier) Notify(ctx context.Context, e notification.Event) error {
	fields := logrus.Fields{
		"event":     e.Type,
		"user_id":   e.UserID,
		"timestamp": e.OccurredAt,
	}
	if e.CircleName != "" {
		fields["circle_id"] = e.CircleID
		fields["circle"] = e.CircleName
	}
	if !e.Amount.IsZero() {
		fields["amount"] = e.Amount.StringFixed(2)
	}
	n.log.WithFields(fields).Info(e.Detail)
	return nil
}

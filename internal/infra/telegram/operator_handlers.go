package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hive_fund/internal/app"
	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/ledger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const operatorHelp = `Operator commands:
/pool - show liquidity pool balances
/sweep - run the daily charge and overdue loan sweeps now
/circle <circle_id> - show members and the current payout schedule
/payout <entry_id> - confirm a scheduled payout has been paid out
/help - show this message`

// RegisterOperatorHandlers registers the maintenance commands. Every command
// is restricted to the configured operator.
func RegisterOperatorHandlers(ctx context.Context, b *telebot.Bot, ops *app.OperatorService, baseLogger *logrus.Entry) {
	b.Handle("/start", func(c telebot.Context) error {
		if !ops.IsOperator(c.Sender().ID) {
			return c.Send("This bot only serves the Hive Fund operator.")
		}
		return c.Send(fmt.Sprintf("Hello, %s!\n\n%s", c.Sender().FirstName, operatorHelp))
	})

	b.Handle("/help", func(c telebot.Context) error {
		if !ops.IsOperator(c.Sender().ID) {
			return c.Send("This bot only serves the Hive Fund operator.")
		}
		return c.Send(operatorHelp)
	})

	b.Handle("/pool", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/pool",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		pool, err := ops.Pool(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrOperatorNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send("Error: you are not allowed to run this command.")
			}
			handlerLogger.WithError(err).Error("Failed to read liquidity pool")
			return c.Send("Failed to read the liquidity pool, please try again later.")
		}
		return c.Send(FormatPool(pool))
	})

	b.Handle("/sweep", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/sweep",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		report, err := ops.RunSweeps(ctx, c.Sender().ID)
		if err != nil {
			if errors.Is(err, app.ErrOperatorNotAuthorized) {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send("Error: you are not allowed to run this command.")
			}
			handlerLogger.WithError(err).Error("Manual sweep failed")
			return c.Send(fmt.Sprintf("Sweep failed: %s", err.Error()))
		}
		handlerLogger.WithFields(logrus.Fields{
			"processed": report.Charges.Processed,
			"failed":    report.Charges.Failed,
			"defaulted": report.LoansDefaulted,
		}).Info("Manual sweep finished")
		return c.Send(FormatSweep(report))
	})

	b.Handle("/circle", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/circle",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		circleID, err := parseIDArg(c.Args())
		if err != nil {
			return c.Send("Invalid command format. Use: /circle <circle_id>")
		}
		detail, timeline, err := ops.Circle(ctx, c.Sender().ID, circleID)
		if err != nil {
			return replyError(c, handlerLogger, err)
		}
		return c.Send(FormatCircle(detail, timeline))
	})

	b.Handle("/payout", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/payout",
			"sender_id": c.Sender().ID,
		})
		handlerLogger.Info("Command received")

		entryID, err := parseIDArg(c.Args())
		if err != nil {
			return c.Send("Invalid command format. Use: /payout <entry_id>")
		}
		entry, err := ops.ConfirmPayout(ctx, c.Sender().ID, entryID)
		if err != nil {
			return replyError(c, handlerLogger, err)
		}
		handlerLogger.WithField("entry_id", entry.ID).Info("Payout confirmed")
		return c.Send(fmt.Sprintf("Payout #%d of $%s marked %s.", entry.Position, entry.Amount.StringFixed(2), entry.Status))
	})
}

func parseIDArg(args []string) (uuid.UUID, error) {
	if len(args) != 1 {
		return uuid.Nil, errors.New("expected exactly one argument")
	}
	return uuid.Parse(args[0])
}

// replyError logs by error kind and answers with the caller-facing reason.
func replyError(c telebot.Context, log *logrus.Entry, err error) error {
	switch apperr.KindOf(err) {
	case apperr.Forbidden:
		log.WithError(err).Warn("Unauthorized access attempt")
		return c.Send("Error: you are not allowed to run this command.")
	case apperr.Internal:
		log.WithError(err).Error("Command failed")
		return c.Send("Something went wrong, please try again later.")
	default:
		log.WithError(err).Warn("Command rejected")
		return c.Send("Error: " + apperr.ReasonOf(err))
	}
}

func FormatCircle(d *app.CircleDetail, t *app.Timeline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\n$%s %s, %d/%d members, invite %s\n",
		d.Circle.Name, d.Circle.Status, d.Circle.ContributionAmount.StringFixed(2), d.Circle.Frequency,
		len(circle.ActiveMembers(d.Members)), d.Circle.MaxMembers, d.Circle.InviteCode)
	if t == nil {
		b.WriteString("No cycle yet.")
		return b.String()
	}
	fmt.Fprintf(&b, "Cycle %d (%s), %s to %s\n", t.CycleNumber, t.CycleStatus,
		t.StartDate.Format("2006-01-02"), t.EndDate.Format("2006-01-02"))
	for _, e := range t.Entries {
		fmt.Fprintf(&b, "%d. %s $%s %s\n", e.Position, e.ScheduledDate.Format("2006-01-02"), e.Amount.StringFixed(2), e.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatPool(p ledger.Pool) string {
	return fmt.Sprintf("Liquidity pool\nTotal: $%s\nReserved: $%s\nAvailable: $%s",
		p.Total.StringFixed(2), p.Reserved.StringFixed(2), p.Available.StringFixed(2))
}

func FormatSweep(r *app.OperatorReport) string {
	return fmt.Sprintf("Sweep finished\nCharges due: %d\nProcessed: %d\nFailed: %d\nLoans defaulted: %d",
		r.Charges.Due, r.Charges.Processed, r.Charges.Failed, r.LoansDefaulted)
}

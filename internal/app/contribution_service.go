package app

import (
	"context"
	"fmt"
	"time"

	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/credit"
	"hive_fund/internal/domain/ledger"
	"hive_fund/internal/domain/money"
	"hive_fund/internal/domain/notification"
	"hive_fund/internal/domain/transaction"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Rewards are the reputation points granted for contribution events.
type Rewards struct {
	OnTimePayment   int
	CycleCompletion int
}

var DefaultRewards = Rewards{OnTimePayment: 5, CycleCompletion: 50}

// ContributionResult describes what one contribution changed. The ledger
// credit in Transaction and Pool is final even when matching failed later.
type ContributionResult struct {
	Transaction      *transaction.Transaction
	Pool             ledger.Pool
	EntriesPaid      []*circle.ScheduleEntry
	CompletedCycles  []uuid.UUID
	CompletedCircles []uuid.UUID
}

// SweepReport summarizes one pass of the daily charge sweep.
type SweepReport struct {
	Due       int
	Processed int
	Failed    int
}

type ContributionService struct {
	circles      circle.Repository
	ledger       ledger.Ledger
	transactions transaction.Repository
	scorer       credit.Scorer
	notifier     notification.Notifier
	rewards      Rewards
	logger       *logrus.Entry
	clock        func() time.Time
}

func NewContributionService(
	circles circle.Repository,
	l ledger.Ledger,
	transactions transaction.Repository,
	scorer credit.Scorer,
	notifier notification.Notifier,
	rewards Rewards,
	logger *logrus.Entry,
	opts ...Option,
) *ContributionService {
	o := applyOptions(opts)
	return &ContributionService{
		circles:      circles,
		ledger:       l,
		transactions: transactions,
		scorer:       scorer,
		notifier:     notifier,
		rewards:      rewards,
		logger:       logger.WithField("component", "contribution"),
		clock:        o.clock,
	}
}

// RecordContribution credits an already-settled payment to the pool, then
// marks every PENDING entry of the user dated today as PAID. A contribution
// with no matching entry is still credited. If matching fails after the
// credit, the credit stands and the partial result is returned with the error.
func (s *ContributionService) RecordContribution(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*ContributionResult, error) {
	if !amount.IsPositive() {
		return nil, apperr.BadRequestf("contribution amount must be greater than 0")
	}
	if err := money.RequireCents("contribution amount", amount); err != nil {
		return nil, err
	}
	now := s.clock()
	log := s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount.StringFixed(2),
	})

	receipt := transaction.New(userID, amount, transaction.TypeContribution, now)
	pool, err := s.ledger.Credit(ctx, receipt)
	if err != nil {
		log.WithError(err).Error("Failed to credit contribution")
		return nil, fmt.Errorf("failed to credit contribution: %w", err)
	}
	result := &ContributionResult{Transaction: receipt, Pool: pool}

	if err := s.matchSchedule(ctx, userID, now, result); err != nil {
		log.WithError(err).Error("Contribution credited but schedule matching failed")
		return result, fmt.Errorf("contribution credited but schedule matching failed: %w", err)
	}

	s.reward(ctx, userID, credit.ReasonOnTimePayment, s.rewards.OnTimePayment)

	log.WithFields(logrus.Fields{
		"transaction_id":   receipt.ID,
		"entries_paid":     len(result.EntriesPaid),
		"cycles_completed": len(result.CompletedCycles),
	}).Info("Contribution recorded")
	return result, nil
}

func (s *ContributionService) matchSchedule(ctx context.Context, userID uuid.UUID, now time.Time, result *ContributionResult) error {
	from, to := circle.DayWindow(now)
	due, err := s.circles.ListPendingEntriesForUser(ctx, userID, from, to)
	if err != nil {
		return fmt.Errorf("failed to list due entries: %w", err)
	}

	touched := make([]uuid.UUID, 0, len(due))
	seen := make(map[uuid.UUID]bool, len(due))
	for _, e := range due {
		paid, changed, err := s.circles.TransitionEntry(ctx, e.ID, circle.EntryPaid, now)
		if err != nil {
			return fmt.Errorf("failed to mark entry %s paid: %w", e.ID, err)
		}
		if !changed {
			continue
		}
		result.EntriesPaid = append(result.EntriesPaid, paid)
		if !seen[paid.CycleID] {
			seen[paid.CycleID] = true
			touched = append(touched, paid.CycleID)
		}
	}

	for _, cycleID := range touched {
		if err := s.settleCycle(ctx, userID, cycleID, now, result); err != nil {
			return err
		}
	}
	return nil
}

// settleCycle closes the cycle once every entry is settled. The completion
// bonus is granted only by the call that actually moved the cycle.
func (s *ContributionService) settleCycle(ctx context.Context, userID, cycleID uuid.UUID, now time.Time, result *ContributionResult) error {
	entries, err := s.circles.ListEntriesByCycle(ctx, cycleID)
	if err != nil {
		return fmt.Errorf("failed to list cycle entries: %w", err)
	}
	if !circle.AllSettled(entries) {
		return nil
	}
	completed, err := s.circles.CompleteCycle(ctx, cycleID)
	if err != nil {
		return fmt.Errorf("failed to complete cycle %s: %w", cycleID, err)
	}
	if !completed {
		return nil
	}
	result.CompletedCycles = append(result.CompletedCycles, cycleID)
	s.reward(ctx, userID, credit.ReasonCycleComplete, s.rewards.CycleCompletion)

	circleID := entries[0].CircleID
	closed, err := s.circles.CompleteCircleIfSettled(ctx, circleID)
	if err != nil {
		return fmt.Errorf("failed to complete circle %s: %w", circleID, err)
	}
	if closed {
		result.CompletedCircles = append(result.CompletedCircles, circleID)
	}

	s.logger.WithFields(logrus.Fields{
		"cycle_id":         cycleID,
		"circle_id":        circleID,
		"circle_completed": closed,
	}).Info("Cycle completed")
	s.notifyCycleCompleted(ctx, circleID, userID, now)
	return nil
}

// MarkPayoutComplete records that the entry's pooled amount has been paid
// out to its recipient. The circle completes once every entry of its
// current cycle is COMPLETED.
func (s *ContributionService) MarkPayoutComplete(ctx context.Context, entryID uuid.UUID) (*circle.ScheduleEntry, error) {
	now := s.clock()
	entry, changed, err := s.circles.TransitionEntry(ctx, entryID, circle.EntryCompleted, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return entry, nil
	}
	log := s.logger.WithFields(logrus.Fields{
		"entry_id":  entry.ID,
		"circle_id": entry.CircleID,
		"user_id":   entry.UserID,
	})

	payout := transaction.New(entry.UserID, entry.Amount, transaction.TypePayout, now).WithReference(entry.ID)
	if err := s.transactions.Append(ctx, payout); err != nil {
		log.WithError(err).Error("Failed to record payout transaction")
		return entry, fmt.Errorf("failed to record payout: %w", err)
	}

	entries, err := s.circles.ListEntriesByCycle(ctx, entry.CycleID)
	if err != nil {
		return entry, fmt.Errorf("failed to list cycle entries: %w", err)
	}
	if circle.AllCompleted(entries) {
		completed, err := s.circles.CompleteCycle(ctx, entry.CycleID)
		if err != nil {
			return entry, fmt.Errorf("failed to complete cycle: %w", err)
		}
		if _, err := s.circles.CompleteCircleIfSettled(ctx, entry.CircleID); err != nil {
			return entry, fmt.Errorf("failed to complete circle: %w", err)
		}
		if completed {
			s.notifyCycleCompleted(ctx, entry.CircleID, entry.UserID, now)
		}
	}
	log.Info("Payout marked complete")
	return entry, nil
}

// ProcessDailyCharges charges every PENDING entry dated today. Entries are
// processed one by one; a failure is logged and the sweep moves on.
func (s *ContributionService) ProcessDailyCharges(ctx context.Context) (SweepReport, error) {
	from, to := circle.DayWindow(s.clock())
	due, err := s.circles.ListPendingEntriesBetween(ctx, from, to)
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to list due entries: %w", err)
	}
	report := SweepReport{Due: len(due)}
	s.logger.WithField("due", len(due)).Info("Starting daily charge sweep")

	for _, e := range due {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, err := s.RecordContribution(ctx, e.UserID, e.Amount); err != nil {
			report.Failed++
			s.logger.WithFields(logrus.Fields{
				"entry_id": e.ID,
				"user_id":  e.UserID,
			}).WithError(err).Error("Failed to process scheduled charge")
			continue
		}
		report.Processed++
	}

	s.logger.WithFields(logrus.Fields{
		"processed": report.Processed,
		"failed":    report.Failed,
	}).Info("Daily charge sweep finished")
	return report, nil
}

// ListTransactions returns the user's money movements, newest first.
func (s *ContributionService) ListTransactions(ctx context.Context, userID uuid.UUID) ([]*transaction.Transaction, error) {
	return s.transactions.ListByUser(ctx, userID)
}

// PoolSnapshot reads the current liquidity pool.
func (s *ContributionService) PoolSnapshot(ctx context.Context) (ledger.Pool, error) {
	return s.ledger.Snapshot(ctx)
}

func (s *ContributionService) reward(ctx context.Context, userID uuid.UUID, reason string, points int) {
	if points == 0 {
		return
	}
	if err := s.scorer.ApplyDelta(ctx, userID, reason, points); err != nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"reason":  reason,
		}).WithError(err).Warn("Failed to apply reputation delta")
	}
}

func (s *ContributionService) notifyCycleCompleted(ctx context.Context, circleID, userID uuid.UUID, now time.Time) {
	name := ""
	if c, err := s.circles.GetCircleByID(ctx, circleID); err == nil {
		name = c.Name
	}
	err := s.notifier.Notify(ctx, notification.Event{
		Type:       notification.EventCycleCompleted,
		CircleID:   circleID,
		CircleName: name,
		UserID:     userID,
		OccurredAt: now,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to deliver notification")
	}
}

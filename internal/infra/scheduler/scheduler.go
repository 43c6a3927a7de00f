package scheduler

import (
	"context"
	"fmt"
	"time"

	"hive_fund/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ChargeSweeper runs the daily contribution sweep.
type ChargeSweeper interface {
	ProcessDailyCharges(ctx context.Context) (app.SweepReport, error)
}

// OverdueSweeper defaults loans past their due date.
type OverdueSweeper interface {
	ProcessOverdueLoans(ctx context.Context) (int, error)
}

const (
	chargeSweepTimeout  = 10 * time.Minute
	overdueSweepTimeout = 5 * time.Minute
)

type SweepScheduler struct {
	cronEngine      *cron.Cron
	charges         ChargeSweeper
	overdue         OverdueSweeper
	logger          *logrus.Entry
	cronSpecCharges string
	cronSpecOverdue string
}

func NewSweepScheduler(
	charges ChargeSweeper,
	overdue OverdueSweeper,
	logger *logrus.Entry,
	location *time.Location,
	cronSpecCharges string, // e.g. "0 0 * * *" (midnight)
	cronSpecOverdue string, // e.g. "30 0 * * *"
) *SweepScheduler {
	if location == nil {
		location = time.Local
	}
	return &SweepScheduler{
		cronEngine:      cron.New(cron.WithLocation(location)),
		charges:         charges,
		overdue:         overdue,
		logger:          logger,
		cronSpecCharges: cronSpecCharges,
		cronSpecOverdue: cronSpecOverdue,
	}
}

// Start registers both jobs and starts the cron engine. An invalid spec is
// reported instead of starting a partial schedule.
func (s *SweepScheduler) Start() error {
	s.logger.Info("Starting sweep scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecCharges, s.RunChargeSweep); err != nil {
		return fmt.Errorf("could not add daily charge job: %w", err)
	}
	if _, err := s.cronEngine.AddFunc(s.cronSpecOverdue, s.RunOverdueSweep); err != nil {
		return fmt.Errorf("could not add overdue loan job: %w", err)
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"charges_spec": s.cronSpecCharges,
		"overdue_spec": s.cronSpecOverdue,
	}).Info("Sweep scheduler started with jobs.")
	return nil
}

func (s *SweepScheduler) RunChargeSweep() {
	log := s.logger.WithField("job", "daily_charges")
	log.Info("Cron job triggered for daily charges.")
	ctx, cancel := context.WithTimeout(context.Background(), chargeSweepTimeout)
	defer cancel()

	report, err := s.charges.ProcessDailyCharges(ctx)
	if err != nil {
		log.WithError(err).Error("Error during daily charge sweep")
		return
	}
	log.WithFields(logrus.Fields{
		"due":       report.Due,
		"processed": report.Processed,
		"failed":    report.Failed,
	}).Info("Daily charge sweep completed")
}

func (s *SweepScheduler) RunOverdueSweep() {
	log := s.logger.WithField("job", "overdue_loans")
	log.Info("Cron job triggered for overdue loans.")
	ctx, cancel := context.WithTimeout(context.Background(), overdueSweepTimeout)
	defer cancel()

	defaulted, err := s.overdue.ProcessOverdueLoans(ctx)
	if err != nil {
		log.WithError(err).Error("Error during overdue loan sweep")
		return
	}
	log.WithField("defaulted", defaulted).Info("Overdue loan sweep completed")
}

func (s *SweepScheduler) Stop() {
	s.logger.Info("Stopping sweep scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Sweep scheduler gracefully stopped.")
}

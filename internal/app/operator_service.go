package app

import (
	"context"
	"errors"
	"fmt"

	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/ledger"

	"github.com/google/uuid"
)

var ErrOperatorNotAuthorized = apperr.New(apperr.Forbidden, "performing user is not authorized as an operator")

// OperatorReport is what an operator sees after triggering the sweeps by hand.
type OperatorReport struct {
	Charges        SweepReport
	LoansDefaulted int
}

// OperatorService exposes maintenance actions to the configured operator.
type OperatorService struct {
	circles       *CircleService
	contributions *ContributionService
	loans         *LoanService
	operatorID    int64
}

func NewOperatorService(circles *CircleService, contributions *ContributionService, loans *LoanService, operatorID int64) *OperatorService {
	return &OperatorService{
		circles:       circles,
		contributions: contributions,
		loans:         loans,
		operatorID:    operatorID,
	}
}

// IsOperator reports whether the chat user is the configured operator.
func (s *OperatorService) IsOperator(performingID int64) bool {
	return s.operatorID != 0 && performingID == s.operatorID
}

func (s *OperatorService) Pool(ctx context.Context, performingID int64) (ledger.Pool, error) {
	if !s.IsOperator(performingID) {
		return ledger.Pool{}, ErrOperatorNotAuthorized
	}
	return s.contributions.PoolSnapshot(ctx)
}

// Circle returns a circle with its members and, once started, its schedule.
func (s *OperatorService) Circle(ctx context.Context, performingID int64, circleID uuid.UUID) (*CircleDetail, *Timeline, error) {
	if !s.IsOperator(performingID) {
		return nil, nil, ErrOperatorNotAuthorized
	}
	detail, err := s.circles.GetCircle(ctx, circleID)
	if err != nil {
		return nil, nil, err
	}
	timeline, err := s.circles.ScheduleOf(ctx, detail.Circle)
	if errors.Is(err, circle.ErrNoCycleYet) {
		return detail, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return detail, timeline, nil
}

// ConfirmPayout records that a scheduled payout has been paid out.
func (s *OperatorService) ConfirmPayout(ctx context.Context, performingID int64, entryID uuid.UUID) (*circle.ScheduleEntry, error) {
	if !s.IsOperator(performingID) {
		return nil, ErrOperatorNotAuthorized
	}
	return s.contributions.MarkPayoutComplete(ctx, entryID)
}

// RunSweeps runs the daily charge sweep and the overdue loan sweep now.
func (s *OperatorService) RunSweeps(ctx context.Context, performingID int64) (*OperatorReport, error) {
	if !s.IsOperator(performingID) {
		return nil, ErrOperatorNotAuthorized
	}
	charges, err := s.contributions.ProcessDailyCharges(ctx)
	if err != nil {
		return nil, fmt.Errorf("daily charge sweep failed: %w", err)
	}
	defaulted, err := s.loans.ProcessOverdueLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("overdue loan sweep failed: %w", err)
	}
	return &OperatorReport{Charges: charges, LoansDefaulted: defaulted}, nil
}

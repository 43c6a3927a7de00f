package app

import (
	"context"
	"fmt"
	"time"

	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/credit"
	"hive_fund/internal/domain/ledger"
	"hive_fund/internal/domain/loan"
	"hive_fund/internal/domain/money"
	"hive_fund/internal/domain/notification"
	"hive_fund/internal/domain/transaction"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Eligibility is the read-only lending report for one user.
type Eligibility struct {
	Score        int
	ScoreLabel   string
	Tier         string
	Eligible     bool
	MaxAmount    decimal.Decimal
	InterestRate decimal.Decimal
}

// Application is the result of a funded loan.
type Application struct {
	Loan        *loan.Loan
	Terms       loan.Terms
	Transaction *transaction.Transaction
	Pool        ledger.Pool
}

// Repayment is the result of a repayment against a loan.
type Repayment struct {
	Loan        *loan.Loan
	Transaction *transaction.Transaction
	Pool        ledger.Pool
}

type LoanService struct {
	loans    loan.Repository
	ledger   ledger.Ledger
	scorer   credit.Store
	notifier notification.Notifier
	logger   *logrus.Entry
	clock    func() time.Time
}

func NewLoanService(loans loan.Repository, l ledger.Ledger, scorer credit.Store, notifier notification.Notifier, logger *logrus.Entry, opts ...Option) *LoanService {
	o := applyOptions(opts)
	return &LoanService{
		loans:    loans,
		ledger:   l,
		scorer:   scorer,
		notifier: notifier,
		logger:   logger.WithField("component", "loan"),
		clock:    o.clock,
	}
}

func (s *LoanService) CheckEligibility(ctx context.Context, userID uuid.UUID) (*Eligibility, error) {
	score, err := s.scorer.GetScore(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read reputation score: %w", err)
	}
	tier := loan.TierFor(score)
	return &Eligibility{
		Score:        score,
		ScoreLabel:   credit.Label(score),
		Tier:         tier.Name,
		Eligible:     tier.Eligible(),
		MaxAmount:    tier.MaxAmount,
		InterestRate: tier.Rate,
	}, nil
}

// Apply originates a loan within the user's tier limit and the pool's live
// liquidity. tenureMonths of 0 means the default tenure.
func (s *LoanService) Apply(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, tenureMonths int) (*Application, error) {
	if amount.LessThan(loan.MinAmount) {
		return nil, apperr.BadRequestf("minimum loan amount is $%s", loan.MinAmount.StringFixed(2))
	}
	if err := money.RequireCents("loan amount", amount); err != nil {
		return nil, err
	}
	if tenureMonths == 0 {
		tenureMonths = loan.DefaultTenure
	}
	if tenureMonths < 0 {
		return nil, apperr.BadRequestf("tenure must be at least 1 month")
	}

	elig, err := s.CheckEligibility(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, apperr.BadRequestf("not eligible for loans. Build your credit score to at least %d", loan.Tiers[len(loan.Tiers)-1].MinScore)
	}
	if amount.GreaterThan(elig.MaxAmount) {
		return nil, apperr.BadRequestf("loan limit exceeded. Your maximum is $%s", elig.MaxAmount.StringFixed(2))
	}

	now := s.clock()
	terms := loan.Quote(amount, elig.InterestRate, tenureMonths, now)
	l := loan.Originate(userID, terms, now)
	receipt := transaction.New(userID, amount, transaction.TypeLoan, now).WithReference(l.ID)

	log := s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount.StringFixed(2),
		"tier":    elig.Tier,
	})
	pool, err := s.ledger.Disburse(ctx, l, receipt)
	if err != nil {
		log.WithError(err).Warn("Loan disbursement rejected")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"loan_id":   l.ID,
		"available": pool.Available.StringFixed(2),
	}).Info("Loan disbursed")

	return &Application{Loan: l, Terms: terms, Transaction: receipt, Pool: pool}, nil
}

// Repay applies a repayment to one of the user's loans.
func (s *LoanService) Repay(ctx context.Context, userID, loanID uuid.UUID, amount decimal.Decimal) (*Repayment, error) {
	l, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, loan.ErrLoanNotFound
	}
	receipt := transaction.New(userID, amount, transaction.TypeRepayment, s.clock()).WithReference(loanID)
	updated, pool, err := s.ledger.Repay(ctx, loanID, receipt)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"loan_id": loanID,
		"amount":  amount.StringFixed(2),
		"balance": updated.Balance.StringFixed(2),
		"status":  updated.Status,
	}).Info("Loan repayment recorded")
	return &Repayment{Loan: updated, Transaction: receipt, Pool: pool}, nil
}

// CreditHistory lists the reputation changes behind the user's score.
func (s *LoanService) CreditHistory(ctx context.Context, userID uuid.UUID) ([]*credit.HistoryEntry, error) {
	return s.scorer.History(ctx, userID)
}

func (s *LoanService) ListMyLoans(ctx context.Context, userID uuid.UUID) ([]*loan.Loan, error) {
	return s.loans.ListByUser(ctx, userID)
}

// ProcessOverdueLoans defaults every ACTIVE loan past its due date and
// writes its balance off the pool. Failures are logged and skipped.
func (s *LoanService) ProcessOverdueLoans(ctx context.Context) (int, error) {
	now := s.clock()
	overdue, err := s.loans.ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue loans: %w", err)
	}

	defaulted := 0
	for _, l := range overdue {
		log := s.logger.WithFields(logrus.Fields{
			"loan_id": l.ID,
			"user_id": l.UserID,
		})
		written, _, err := s.ledger.WriteOff(ctx, l.ID, now)
		if err != nil {
			log.WithError(err).Error("Failed to write off overdue loan")
			continue
		}
		defaulted++
		log.WithField("written_off", l.Balance.StringFixed(2)).Warn("Loan defaulted")
		err = s.notifier.Notify(ctx, notification.Event{
			Type:       notification.EventLoanDefaulted,
			UserID:     written.UserID,
			Amount:     l.Balance,
			Detail:     fmt.Sprintf("loan %s defaulted", written.ID),
			OccurredAt: now,
		})
		if err != nil {
			log.WithError(err).Warn("Failed to deliver notification")
		}
	}
	return defaulted, nil
}

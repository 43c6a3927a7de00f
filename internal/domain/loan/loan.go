// internal/domain/loan/loan.go
package loan

import (
	"context"
	"time"

	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusRepaid    Status = "REPAID"
	StatusDefaulted Status = "DEFAULTED"
)

const DefaultTenure = 1

var MinAmount = decimal.NewFromInt(5)

var (
	ErrLoanNotFound  = apperr.New(apperr.NotFound, "loan not found")
	ErrLoanNotActive = apperr.New(apperr.Conflict, "loan is not active")
)

// Loan is a tier-gated advance funded from the liquidity pool.
type Loan struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Principal    decimal.Decimal
	Interest     decimal.Decimal
	Balance      decimal.Decimal // outstanding: principal + interest - repayments
	InterestRate decimal.Decimal
	Status       Status
	DueDate      time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terms is the computed repayment plan for an application.
type Terms struct {
	Principal      decimal.Decimal
	Interest       decimal.Decimal
	TotalRepayable decimal.Decimal
	Rate           decimal.Decimal
	DueDate        time.Time
}

// Quote computes interest, total repayable and due date. Interest is
// rounded to whole cents.
func Quote(amount decimal.Decimal, rate decimal.Decimal, tenureMonths int, now time.Time) Terms {
	interest := amount.Mul(rate).Round(money.Scale)
	return Terms{
		Principal:      amount,
		Interest:       interest,
		TotalRepayable: amount.Add(interest),
		Rate:           rate,
		DueDate:        now.AddDate(0, tenureMonths, 0),
	}
}

// Originate builds an ACTIVE loan from accepted terms.
func Originate(userID uuid.UUID, t Terms, now time.Time) *Loan {
	return &Loan{
		ID:           uuid.New(),
		UserID:       userID,
		Principal:    t.Principal,
		Interest:     t.Interest,
		Balance:      t.TotalRepayable,
		InterestRate: t.Rate,
		Status:       StatusActive,
		DueDate:      t.DueDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ApplyRepayment reduces the outstanding balance. The loan is REPAID once
// the balance reaches zero.
func (l *Loan) ApplyRepayment(amount decimal.Decimal, now time.Time) error {
	if l.Status != StatusActive {
		return ErrLoanNotActive
	}
	if !amount.IsPositive() {
		return apperr.BadRequestf("repayment amount must be positive")
	}
	if err := money.RequireCents("repayment amount", amount); err != nil {
		return err
	}
	if amount.GreaterThan(l.Balance) {
		return apperr.BadRequestf("repayment of %s exceeds outstanding balance of %s", amount.StringFixed(2), l.Balance.StringFixed(2))
	}
	l.Balance = l.Balance.Sub(amount)
	if l.Balance.IsZero() {
		l.Status = StatusRepaid
	}
	l.UpdatedAt = now
	return nil
}

// MarkDefaulted closes an ACTIVE loan and returns the balance left unpaid.
func (l *Loan) MarkDefaulted(now time.Time) (decimal.Decimal, error) {
	if l.Status != StatusActive {
		return decimal.Zero, ErrLoanNotActive
	}
	outstanding := l.Balance
	l.Status = StatusDefaulted
	l.UpdatedAt = now
	return outstanding, nil
}

// IsOverdue reports whether an ACTIVE loan has passed its due date.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == StatusActive && now.After(l.DueDate)
}

// Repository reads the loan book. Writes go through the ledger so that loan
// and pool change together.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Loan, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Loan, error) // newest first
	ListOverdue(ctx context.Context, now time.Time) ([]*Loan, error)
}

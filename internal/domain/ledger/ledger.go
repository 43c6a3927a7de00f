// Package ledger owns the shared liquidity pool. Every mutation goes through
// a Ledger implementation that serializes read-modify-write on the single
// pool aggregate; callers never read then write the pool themselves.
package ledger

import (
	"context"
	"time"

	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/loan"
	"hive_fund/internal/domain/transaction"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrPoolUnderflow = apperr.New(apperr.Internal, "liquidity pool would go negative")

// ErrInsufficientLiquidity builds the rejection for a loan the pool cannot fund.
func ErrInsufficientLiquidity(available, requested decimal.Decimal) error {
	return apperr.BadRequestf("insufficient pool liquidity. Available: $%s, Requested: $%s",
		available.StringFixed(2), requested.StringFixed(2))
}

// Pool is the liquidity aggregate. Available + Reserved == Total after
// every mutation.
type Pool struct {
	Total     decimal.Decimal
	Reserved  decimal.Decimal
	Available decimal.Decimal
	UpdatedAt time.Time
}

// Balanced reports whether the pool invariant holds.
func (p Pool) Balanced() bool {
	return p.Available.Add(p.Reserved).Equal(p.Total) &&
		!p.Total.IsNegative() && !p.Reserved.IsNegative() && !p.Available.IsNegative()
}

// Credit adds settled external funds.
func (p Pool) Credit(amount decimal.Decimal) Pool {
	p.Total = p.Total.Add(amount)
	p.Available = p.Available.Add(amount)
	return p
}

// Reserve takes principal out of available funds and reserves the full
// expected repayment. The expected interest is booked into Total.
func (p Pool) Reserve(principal, repayable decimal.Decimal) (Pool, error) {
	if p.Available.LessThan(principal) {
		return p, ErrInsufficientLiquidity(p.Available, principal)
	}
	p.Available = p.Available.Sub(principal)
	p.Reserved = p.Reserved.Add(repayable)
	p.Total = p.Total.Add(repayable.Sub(principal))
	return p, nil
}

// Release moves repaid funds from reserved back to available.
func (p Pool) Release(amount decimal.Decimal) (Pool, error) {
	if p.Reserved.LessThan(amount) {
		return p, ErrPoolUnderflow
	}
	p.Reserved = p.Reserved.Sub(amount)
	p.Available = p.Available.Add(amount)
	return p, nil
}

// WriteOff drops an unrecoverable reservation from the pool.
func (p Pool) WriteOff(amount decimal.Decimal) (Pool, error) {
	if p.Reserved.LessThan(amount) || p.Total.LessThan(amount) {
		return p, ErrPoolUnderflow
	}
	p.Reserved = p.Reserved.Sub(amount)
	p.Total = p.Total.Sub(amount)
	return p, nil
}

// Ledger is the serialization boundary around the pool. Each method is
// atomic: the pool change, the loan book change and the audit record commit
// together or not at all.
type Ledger interface {
	Snapshot(ctx context.Context) (Pool, error)
	// Credit adds receipt.Amount to the pool and appends the receipt.
	Credit(ctx context.Context, receipt *transaction.Transaction) (Pool, error)
	// Disburse checks liquidity against the live pool, reserves the loan's
	// full balance, stores the loan and appends the receipt.
	Disburse(ctx context.Context, l *loan.Loan, receipt *transaction.Transaction) (Pool, error)
	// Repay applies receipt.Amount to the loan and releases it back to
	// available funds.
	Repay(ctx context.Context, loanID uuid.UUID, receipt *transaction.Transaction) (*loan.Loan, Pool, error)
	// WriteOff defaults an ACTIVE loan and removes its balance from the pool.
	WriteOff(ctx context.Context, loanID uuid.UUID, now time.Time) (*loan.Loan, Pool, error)
}

package memory

import (
	"context"
	"sort"
	"time"

	"hive_fund/internal/domain/ledger"
	"hive_fund/internal/domain/loan"
	"hive_fund/internal/domain/transaction"

	"github.com/google/uuid"
)

// Ledger serializes every pool mutation on the store lock.
type Ledger struct {
	s *Store
}

func (l *Ledger) Snapshot(ctx context.Context) (ledger.Pool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.s.pool, nil
}

func (l *Ledger) Credit(ctx context.Context, receipt *transaction.Transaction) (ledger.Pool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	next := l.s.pool.Credit(receipt.Amount)
	next.UpdatedAt = receipt.CreatedAt
	l.s.pool = next
	l.s.appendTx(receipt)
	return next, nil
}

func (l *Ledger) Disburse(ctx context.Context, ln *loan.Loan, receipt *transaction.Transaction) (ledger.Pool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	next, err := l.s.pool.Reserve(ln.Principal, ln.Balance)
	if err != nil {
		return l.s.pool, err
	}
	next.UpdatedAt = receipt.CreatedAt
	l.s.pool = next
	l.s.loans[ln.ID] = copyLoan(ln)
	l.s.appendTx(receipt)
	return next, nil
}

func (l *Ledger) Repay(ctx context.Context, loanID uuid.UUID, receipt *transaction.Transaction) (*loan.Loan, ledger.Pool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	stored, ok := l.s.loans[loanID]
	if !ok {
		return nil, l.s.pool, loan.ErrLoanNotFound
	}
	updated := copyLoan(stored)
	if err := updated.ApplyRepayment(receipt.Amount, receipt.CreatedAt); err != nil {
		return nil, l.s.pool, err
	}
	next, err := l.s.pool.Release(receipt.Amount)
	if err != nil {
		return nil, l.s.pool, err
	}
	next.UpdatedAt = receipt.CreatedAt
	l.s.pool = next
	l.s.loans[loanID] = updated
	l.s.appendTx(receipt)
	return copyLoan(updated), next, nil
}

func (l *Ledger) WriteOff(ctx context.Context, loanID uuid.UUID, now time.Time) (*loan.Loan, ledger.Pool, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	stored, ok := l.s.loans[loanID]
	if !ok {
		return nil, l.s.pool, loan.ErrLoanNotFound
	}
	updated := copyLoan(stored)
	outstanding, err := updated.MarkDefaulted(now)
	if err != nil {
		return nil, l.s.pool, err
	}
	next, err := l.s.pool.WriteOff(outstanding)
	if err != nil {
		return nil, l.s.pool, err
	}
	next.UpdatedAt = now
	l.s.pool = next
	l.s.loans[loanID] = updated
	return copyLoan(updated), next, nil
}

// appendTx must be called with the lock held.
func (s *Store) appendTx(t *transaction.Transaction) {
	cp := *t
	s.txs = append(s.txs, &cp)
}

type LoanRepository struct {
	s *Store
}

func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[id]
	if !ok {
		return nil, loan.ErrLoanNotFound
	}
	return copyLoan(l), nil
}

func (r *LoanRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*loan.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*loan.Loan
	for _, l := range r.s.loans {
		if l.UserID == userID {
			out = append(out, copyLoan(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *LoanRepository) ListOverdue(ctx context.Context, now time.Time) ([]*loan.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*loan.Loan
	for _, l := range r.s.loans {
		if l.IsOverdue(now) {
			out = append(out, copyLoan(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

type TransactionRepository struct {
	s *Store
}

func (r *TransactionRepository) Append(ctx context.Context, t *transaction.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.appendTx(t)
	return nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*transaction.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*transaction.Transaction
	for i := len(r.s.txs) - 1; i >= 0; i-- {
		if t := r.s.txs[i]; t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

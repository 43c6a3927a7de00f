package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hive_fund/internal/domain/ledger"
	"hive_fund/internal/domain/loan"
	"hive_fund/internal/domain/transaction"

	"github.com/google/uuid"
)

const loanColumns = `id, user_id, principal, interest, balance, interest_rate, status, due_date, created_at, updated_at`

// PostgresLedger keeps the pool in the singleton liquidity_pool row. Every
// mutation locks that row, applies the change in Go and writes it back in
// the same transaction as the loan and receipt rows.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Snapshot(ctx context.Context) (ledger.Pool, error) {
	p := ledger.Pool{}
	err := l.db.QueryRowContext(ctx, `SELECT total_pool, reserved_amount, available_amount, updated_at
		FROM liquidity_pool WHERE id = 1`).Scan(&p.Total, &p.Reserved, &p.Available, &p.UpdatedAt)
	if err != nil {
		return p, fmt.Errorf("error reading liquidity pool: %w", err)
	}
	return p, nil
}

func lockPool(ctx context.Context, tx *sql.Tx) (ledger.Pool, error) {
	p := ledger.Pool{}
	err := tx.QueryRowContext(ctx, `SELECT total_pool, reserved_amount, available_amount, updated_at
		FROM liquidity_pool WHERE id = 1 FOR UPDATE`).Scan(&p.Total, &p.Reserved, &p.Available, &p.UpdatedAt)
	if err != nil {
		return p, fmt.Errorf("error locking liquidity pool: %w", err)
	}
	return p, nil
}

func savePool(ctx context.Context, tx *sql.Tx, p ledger.Pool) error {
	_, err := tx.ExecContext(ctx, `UPDATE liquidity_pool
		SET total_pool = $1, reserved_amount = $2, available_amount = $3, updated_at = $4 WHERE id = 1`,
		p.Total, p.Reserved, p.Available, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error updating liquidity pool: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, ex execer, t *transaction.Transaction) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO transactions (id, user_id, amount, type, status, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.Amount, t.Type, t.Status, t.Reference, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("error recording %s transaction: %w", t.Type, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (l *PostgresLedger) Credit(ctx context.Context, receipt *transaction.Transaction) (ledger.Pool, error) {
	var next ledger.Pool
	err := withTx(ctx, l.db, func(tx *sql.Tx) error {
		p, err := lockPool(ctx, tx)
		if err != nil {
			return err
		}
		next = p.Credit(receipt.Amount)
		next.UpdatedAt = receipt.CreatedAt
		if err := savePool(ctx, tx, next); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, receipt)
	})
	return next, err
}

func (l *PostgresLedger) Disburse(ctx context.Context, ln *loan.Loan, receipt *transaction.Transaction) (ledger.Pool, error) {
	var next ledger.Pool
	err := withTx(ctx, l.db, func(tx *sql.Tx) error {
		p, err := lockPool(ctx, tx)
		if err != nil {
			return err
		}
		next, err = p.Reserve(ln.Principal, ln.Balance)
		if err != nil {
			return err
		}
		next.UpdatedAt = receipt.CreatedAt
		if err := savePool(ctx, tx, next); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO loans (`+loanColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			ln.ID, ln.UserID, ln.Principal, ln.Interest, ln.Balance, ln.InterestRate, ln.Status, ln.DueDate, ln.CreatedAt, ln.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error creating loan: %w", err)
		}
		return insertTransaction(ctx, tx, receipt)
	})
	return next, err
}

func (l *PostgresLedger) Repay(ctx context.Context, loanID uuid.UUID, receipt *transaction.Transaction) (*loan.Loan, ledger.Pool, error) {
	var (
		updated *loan.Loan
		next    ledger.Pool
	)
	err := withTx(ctx, l.db, func(tx *sql.Tx) error {
		p, err := lockPool(ctx, tx)
		if err != nil {
			return err
		}
		updated, err = lockLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if err := updated.ApplyRepayment(receipt.Amount, receipt.CreatedAt); err != nil {
			return err
		}
		next, err = p.Release(receipt.Amount)
		if err != nil {
			return err
		}
		next.UpdatedAt = receipt.CreatedAt
		if err := savePool(ctx, tx, next); err != nil {
			return err
		}
		if err := saveLoan(ctx, tx, updated); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, receipt)
	})
	if err != nil {
		return nil, next, err
	}
	return updated, next, nil
}

func (l *PostgresLedger) WriteOff(ctx context.Context, loanID uuid.UUID, now time.Time) (*loan.Loan, ledger.Pool, error) {
	var (
		updated *loan.Loan
		next    ledger.Pool
	)
	err := withTx(ctx, l.db, func(tx *sql.Tx) error {
		p, err := lockPool(ctx, tx)
		if err != nil {
			return err
		}
		updated, err = lockLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		outstanding, err := updated.MarkDefaulted(now)
		if err != nil {
			return err
		}
		next, err = p.WriteOff(outstanding)
		if err != nil {
			return err
		}
		next.UpdatedAt = now
		if err := savePool(ctx, tx, next); err != nil {
			return err
		}
		return saveLoan(ctx, tx, updated)
	})
	if err != nil {
		return nil, next, err
	}
	return updated, next, nil
}

func scanLoan(row scanner) (*loan.Loan, error) {
	l := loan.Loan{}
	err := row.Scan(&l.ID, &l.UserID, &l.Principal, &l.Interest, &l.Balance, &l.InterestRate, &l.Status, &l.DueDate, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func lockLoan(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*loan.Loan, error) {
	l, err := scanLoan(tx.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return nil, loan.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error locking loan: %w", err)
	}
	return l, nil
}

func saveLoan(ctx context.Context, tx *sql.Tx, l *loan.Loan) error {
	_, err := tx.ExecContext(ctx, `UPDATE loans SET balance = $1, status = $2, updated_at = $3 WHERE id = $4`,
		l.Balance, l.Status, l.UpdatedAt, l.ID)
	if err != nil {
		return fmt.Errorf("error updating loan: %w", err)
	}
	return nil
}

var _ ledger.Ledger = (*PostgresLedger)(nil)

type PostgresLoanRepository struct {
	db *sql.DB
}

func NewPostgresLoanRepository(db *sql.DB) *PostgresLoanRepository {
	return &PostgresLoanRepository{db: db}
}

func (r *PostgresLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	l, err := scanLoan(r.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, loan.ErrLoanNotFound
		}
		return nil, fmt.Errorf("error getting loan by ID: %w", err)
	}
	return l, nil
}

func (r *PostgresLoanRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*loan.Loan, error) {
	return r.list(ctx, `SELECT `+loanColumns+` FROM loans WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *PostgresLoanRepository) ListOverdue(ctx context.Context, now time.Time) ([]*loan.Loan, error) {
	return r.list(ctx, `SELECT `+loanColumns+` FROM loans WHERE status = $1 AND due_date < $2 ORDER BY due_date`,
		loan.StatusActive, now)
}

func (r *PostgresLoanRepository) list(ctx context.Context, query string, args ...any) ([]*loan.Loan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing loans: %w", err)
	}
	defer rows.Close()

	var loans []*loan.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning loan: %w", err)
		}
		loans = append(loans, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loans: %w", err)
	}
	return loans, nil
}

var _ loan.Repository = (*PostgresLoanRepository)(nil)

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

func (r *PostgresTransactionRepository) Append(ctx context.Context, t *transaction.Transaction) error {
	return insertTransaction(ctx, r.db, t)
}

func (r *PostgresTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*transaction.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, amount, type, status, reference_id, created_at
		FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction
	for rows.Next() {
		t := transaction.Transaction{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Status, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		txs = append(txs, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

var _ transaction.Repository = (*PostgresTransactionRepository)(nil)

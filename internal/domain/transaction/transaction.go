// internal/domain/transaction/transaction.go
package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type identifies what moved money.
type Type string

const (
	TypeContribution Type = "CONTRIBUTION"
	TypeLoan         Type = "LOAN"
	TypeRepayment    Type = "REPAYMENT"
	TypePayout       Type = "PAYOUT"
)

type Status string

const (
	StatusCompleted Status = "COMPLETED"
)

// Transaction is an immutable audit record of a settled money movement.
type Transaction struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Type      Type
	Status    Status
	Reference uuid.NullUUID // loan or schedule entry the movement belongs to
	CreatedAt time.Time
}

// New builds a COMPLETED transaction.
func New(userID uuid.UUID, amount decimal.Decimal, t Type, now time.Time) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Type:      t,
		Status:    StatusCompleted,
		CreatedAt: now,
	}
}

// WithReference links the record to the entity it settles.
func (t *Transaction) WithReference(id uuid.UUID) *Transaction {
	t.Reference = uuid.NullUUID{UUID: id, Valid: true}
	return t
}

// Repository appends and reads transaction history. Records are never updated.
type Repository interface {
	Append(ctx context.Context, t *Transaction) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Transaction, error) // newest first
}

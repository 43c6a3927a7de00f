// internal/domain/notification/notifier.go
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType identifies a circle event worth telling people about.
type EventType string

const (
	EventCycleStarted   EventType = "CYCLE_STARTED"
	EventCycleCompleted EventType = "CYCLE_COMPLETED"
	EventExitResolved   EventType = "EXIT_RESOLVED"
	EventLoanDefaulted  EventType = "LOAN_DEFAULTED"
)

// Event is a fact published after the change it describes has committed.
type Event struct {
	Type       EventType
	CircleID   uuid.UUID
	CircleName string
	UserID     uuid.UUID
	Amount     decimal.Decimal
	Detail     string
	OccurredAt time.Time
}

// Notifier delivers events. Delivery failures never undo the change.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

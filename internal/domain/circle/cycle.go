package circle

import (
	"time"

	"github.com/google/uuid"
)

// CycleStatus is the lifecycle state of one rotation.
type CycleStatus string

const (
	CycleActive    CycleStatus = "ACTIVE"
	CycleCompleted CycleStatus = "COMPLETED"
	CycleCancelled CycleStatus = "CANCELLED"
)

func (s CycleStatus) IsTerminal() bool {
	return s == CycleCompleted || s == CycleCancelled
}

// Cycle is one full rotation through every member's payout.
type Cycle struct {
	ID        uuid.UUID
	CircleID  uuid.UUID
	Number    int
	StartDate time.Time
	EndDate   time.Time
	Status    CycleStatus
	CreatedAt time.Time
}

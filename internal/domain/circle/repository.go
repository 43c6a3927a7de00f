// internal/domain/circle/repository.go
package circle

import (
	"context"
	"time"

	"hive_fund/internal/domain/apperr"

	"github.com/google/uuid"
)

var (
	ErrCircleNotFound     = apperr.New(apperr.NotFound, "circle not found")
	ErrInviteNotFound     = apperr.New(apperr.NotFound, "circle not found with this invite code")
	ErrMemberNotFound     = apperr.New(apperr.NotFound, "member not found in this circle")
	ErrCycleNotFound      = apperr.New(apperr.NotFound, "cycle not found")
	ErrNoCycleYet         = apperr.New(apperr.NotFound, "circle has no active cycle yet")
	ErrEntryNotFound      = apperr.New(apperr.NotFound, "payout schedule entry not found")
	ErrInviteCodeTaken    = apperr.New(apperr.Conflict, "invite code already in use")
	ErrAlreadyMember      = apperr.New(apperr.Conflict, "you are already a member of this circle")
	ErrCircleFull         = apperr.New(apperr.Conflict, "circle is full")
	ErrCircleNotForming   = apperr.New(apperr.Conflict, "circle is no longer accepting members")
	ErrCycleAlreadyActive = apperr.New(apperr.Conflict, "circle already has an active cycle")
	ErrIllegalTransition  = apperr.New(apperr.Conflict, "illegal payout schedule status transition")
)

// CycleStart is everything persisted by one lottery: the new positions,
// the cycle and its schedule. It is committed as a single unit.
type CycleStart struct {
	CircleID uuid.UUID
	Rotation []*Member
	Cycle    *Cycle
	Entries  []*ScheduleEntry
}

// Repository persists circles, members, cycles and payout schedules.
type Repository interface {
	// CreateCircle stores the circle together with its founding member.
	CreateCircle(ctx context.Context, c *Circle, founder *Member) error
	GetCircleByID(ctx context.Context, id uuid.UUID) (*Circle, error)
	GetCircleByInviteCode(ctx context.Context, code string) (*Circle, error)
	ListCirclesByUser(ctx context.Context, userID uuid.UUID) ([]*Circle, error)

	// AddMember appends a member at position count+1. Capacity, duplicate
	// membership and circle status are checked in the same unit as the insert.
	AddMember(ctx context.Context, circleID, userID uuid.UUID, joinedAt time.Time) (*Member, error)
	GetMember(ctx context.Context, circleID, userID uuid.UUID) (*Member, error)
	ListMembers(ctx context.Context, circleID uuid.UUID) ([]*Member, error) // ordered by payout position
	CountMembers(ctx context.Context, circleID uuid.UUID) (int, error)

	// StartCycle fails with ErrCycleAlreadyActive if the circle already has a
	// non-terminal cycle; otherwise it commits positions, cycle and entries,
	// and marks the circle ACTIVE.
	StartCycle(ctx context.Context, start *CycleStart) error
	GetCycleByID(ctx context.Context, id uuid.UUID) (*Cycle, error)
	GetLatestCycle(ctx context.Context, circleID uuid.UUID) (*Cycle, error)
	CountCycles(ctx context.Context, circleID uuid.UUID) (int, error)
	// CompleteCycle moves an ACTIVE cycle to COMPLETED and reports whether
	// this call made the change.
	CompleteCycle(ctx context.Context, cycleID uuid.UUID) (bool, error)
	// CompleteCircleIfSettled marks an ACTIVE circle COMPLETED when none of
	// its cycles is still ACTIVE, and reports whether this call made the change.
	CompleteCircleIfSettled(ctx context.Context, circleID uuid.UUID) (bool, error)

	GetEntry(ctx context.Context, id uuid.UUID) (*ScheduleEntry, error)
	ListEntriesByCycle(ctx context.Context, cycleID uuid.UUID) ([]*ScheduleEntry, error) // ordered by position
	ListPendingEntriesForUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*ScheduleEntry, error)
	ListPendingEntriesBetween(ctx context.Context, from, to time.Time) ([]*ScheduleEntry, error)
	// TransitionEntry applies a status change allowed by the transition table.
	// Requesting the status the entry already has is a no-op reported as false.
	TransitionEntry(ctx context.Context, id uuid.UUID, to EntryStatus, at time.Time) (*ScheduleEntry, bool, error)
}

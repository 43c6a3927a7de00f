package circle

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryStatus is the state of one payout schedule entry.
type EntryStatus string

const (
	EntryPending   EntryStatus = "PENDING"
	EntryPaid      EntryStatus = "PAID"
	EntryCompleted EntryStatus = "COMPLETED"
)

var entryTransitions = map[EntryStatus][]EntryStatus{
	EntryPending: {EntryPaid, EntryCompleted},
	EntryPaid:    {EntryCompleted},
}

// CanTransition reports whether an entry may move to the given status.
func (s EntryStatus) CanTransition(to EntryStatus) bool {
	for _, next := range entryTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsSettled reports whether the entry's contribution has been received.
func (s EntryStatus) IsSettled() bool {
	return s == EntryPaid || s == EntryCompleted
}

// ScheduleEntry is one dated payout inside a cycle.
type ScheduleEntry struct {
	ID            uuid.UUID
	CycleID       uuid.UUID
	CircleID      uuid.UUID
	UserID        uuid.UUID
	Position      int
	ScheduledDate time.Time
	Amount        decimal.Decimal
	Status        EntryStatus
	UpdatedAt     time.Time
}

// StepAfter returns the date n cadence steps after start. Months are added
// from start each time so day-of-month overflow does not accumulate.
func StepAfter(f Frequency, start time.Time, n int) time.Time {
	switch f {
	case FrequencyWeekly:
		return start.AddDate(0, 0, 7*n)
	case FrequencyQuarterly:
		return start.AddDate(0, 3*n, 0)
	default:
		return start.AddDate(0, n, 0)
	}
}

// Plan is the output of schedule generation for one cycle.
type Plan struct {
	Entries []*ScheduleEntry
	EndDate time.Time
}

// GenerateSchedule derives the payout plan from the rotation order. Entry i
// (0-based) is dated start + i steps and every entry carries the full pool,
// contribution × len(rotation). Entry ids are left for the caller to assign.
func GenerateSchedule(rotation []*Member, contribution decimal.Decimal, f Frequency, start time.Time) Plan {
	n := len(rotation)
	pool := contribution.Mul(decimal.NewFromInt(int64(n)))
	entries := make([]*ScheduleEntry, 0, n)
	for i, m := range rotation {
		entries = append(entries, &ScheduleEntry{
			CircleID:      m.CircleID,
			UserID:        m.UserID,
			Position:      i + 1,
			ScheduledDate: StepAfter(f, start, i),
			Amount:        pool,
			Status:        EntryPending,
		})
	}
	return Plan{Entries: entries, EndDate: StepAfter(f, start, n)}
}

// AllSettled reports whether every entry of a cycle has been paid.
func AllSettled(entries []*ScheduleEntry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if !e.Status.IsSettled() {
			return false
		}
	}
	return true
}

// AllCompleted reports whether every entry has been disbursed.
func AllCompleted(entries []*ScheduleEntry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if e.Status != EntryCompleted {
			return false
		}
	}
	return true
}

// DayWindow returns [midnight, next midnight) around t in t's location.
func DayWindow(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

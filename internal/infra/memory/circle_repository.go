package memory

import (
	"context"
	"sort"
	"time"

	"hive_fund/internal/domain/circle"

	"github.com/google/uuid"
)

type CircleRepository struct {
	s *Store
}

func (r *CircleRepository) CreateCircle(ctx context.Context, c *circle.Circle, founder *circle.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.circles {
		if existing.InviteCode == c.InviteCode {
			return circle.ErrInviteCodeTaken
		}
	}
	r.s.circles[c.ID] = copyCircle(c)
	r.s.members[founder.ID] = copyMember(founder)
	return nil
}

func (r *CircleRepository) GetCircleByID(ctx context.Context, id uuid.UUID) (*circle.Circle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.circles[id]
	if !ok {
		return nil, circle.ErrCircleNotFound
	}
	return copyCircle(c), nil
}

func (r *CircleRepository) GetCircleByInviteCode(ctx context.Context, code string) (*circle.Circle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.circles {
		if c.InviteCode == code {
			return copyCircle(c), nil
		}
	}
	return nil, circle.ErrInviteNotFound
}

func (r *CircleRepository) ListCirclesByUser(ctx context.Context, userID uuid.UUID) ([]*circle.Circle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*circle.Circle
	for _, m := range r.s.members {
		if m.UserID == userID && m.IsActive() {
			out = append(out, copyCircle(r.s.circles[m.CircleID]))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *CircleRepository) AddMember(ctx context.Context, circleID, userID uuid.UUID, joinedAt time.Time) (*circle.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.circles[circleID]
	if !ok {
		return nil, circle.ErrCircleNotFound
	}
	if c.Status != circle.StatusForming {
		return nil, circle.ErrCircleNotForming
	}
	members := r.s.membersOf(circleID)
	for _, m := range members {
		if m.UserID == userID {
			return nil, circle.ErrAlreadyMember
		}
	}
	if len(members) >= c.MaxMembers {
		return nil, circle.ErrCircleFull
	}
	m := &circle.Member{
		ID:             uuid.New(),
		CircleID:       circleID,
		UserID:         userID,
		PayoutPosition: len(members) + 1,
		Status:         circle.MemberActive,
		JoinedAt:       joinedAt,
	}
	r.s.members[m.ID] = m
	return copyMember(m), nil
}

func (r *CircleRepository) GetMember(ctx context.Context, circleID, userID uuid.UUID) (*circle.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.members {
		if m.CircleID == circleID && m.UserID == userID {
			return copyMember(m), nil
		}
	}
	return nil, circle.ErrMemberNotFound
}

func (r *CircleRepository) ListMembers(ctx context.Context, circleID uuid.UUID) ([]*circle.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	members := r.s.membersOf(circleID)
	out := make([]*circle.Member, 0, len(members))
	for _, m := range members {
		out = append(out, copyMember(m))
	}
	return out, nil
}

func (r *CircleRepository) CountMembers(ctx context.Context, circleID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.membersOf(circleID)), nil
}

func (r *CircleRepository) StartCycle(ctx context.Context, start *circle.CycleStart) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.circles[start.CircleID]
	if !ok {
		return circle.ErrCircleNotFound
	}
	for _, cy := range r.s.cycles {
		if cy.CircleID == start.CircleID && !cy.Status.IsTerminal() {
			return circle.ErrCycleAlreadyActive
		}
	}
	if !c.Status.CanTransition(circle.StatusActive) {
		return circle.ErrCircleNotForming
	}
	for _, m := range start.Rotation {
		if _, ok := r.s.members[m.ID]; !ok {
			return circle.ErrMemberNotFound
		}
	}

	for _, m := range start.Rotation {
		r.s.members[m.ID].PayoutPosition = m.PayoutPosition
	}
	r.s.cycles[start.Cycle.ID] = copyCycle(start.Cycle)
	for _, e := range start.Entries {
		r.s.entries[e.ID] = copyEntry(e)
	}
	c.Status = circle.StatusActive
	c.CurrentCycleID = uuid.NullUUID{UUID: start.Cycle.ID, Valid: true}
	return nil
}

func (r *CircleRepository) GetCycleByID(ctx context.Context, id uuid.UUID) (*circle.Cycle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cy, ok := r.s.cycles[id]
	if !ok {
		return nil, circle.ErrCycleNotFound
	}
	return copyCycle(cy), nil
}

func (r *CircleRepository) GetLatestCycle(ctx context.Context, circleID uuid.UUID) (*circle.Cycle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *circle.Cycle
	for _, cy := range r.s.cycles {
		if cy.CircleID == circleID && (latest == nil || cy.Number > latest.Number) {
			latest = cy
		}
	}
	if latest == nil {
		return nil, circle.ErrNoCycleYet
	}
	return copyCycle(latest), nil
}

func (r *CircleRepository) CountCycles(ctx context.Context, circleID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, cy := range r.s.cycles {
		if cy.CircleID == circleID {
			n++
		}
	}
	return n, nil
}

func (r *CircleRepository) CompleteCycle(ctx context.Context, cycleID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cy, ok := r.s.cycles[cycleID]
	if !ok {
		return false, circle.ErrCycleNotFound
	}
	if cy.Status != circle.CycleActive {
		return false, nil
	}
	cy.Status = circle.CycleCompleted
	return true, nil
}

func (r *CircleRepository) CompleteCircleIfSettled(ctx context.Context, circleID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.circles[circleID]
	if !ok {
		return false, circle.ErrCircleNotFound
	}
	if c.Status != circle.StatusActive {
		return false, nil
	}
	for _, cy := range r.s.cycles {
		if cy.CircleID == circleID && cy.Status == circle.CycleActive {
			return false, nil
		}
	}
	c.Status = circle.StatusCompleted
	c.CurrentCycleID = uuid.NullUUID{}
	return true, nil
}

func (r *CircleRepository) GetEntry(ctx context.Context, id uuid.UUID) (*circle.ScheduleEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok {
		return nil, circle.ErrEntryNotFound
	}
	return copyEntry(e), nil
}

func (r *CircleRepository) ListEntriesByCycle(ctx context.Context, cycleID uuid.UUID) ([]*circle.ScheduleEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.filterEntries(func(e *circle.ScheduleEntry) bool { return e.CycleID == cycleID }), nil
}

func (r *CircleRepository) ListPendingEntriesForUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*circle.ScheduleEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.filterEntries(func(e *circle.ScheduleEntry) bool {
		return e.UserID == userID && e.Status == circle.EntryPending && inWindow(e.ScheduledDate, from, to)
	}), nil
}

func (r *CircleRepository) ListPendingEntriesBetween(ctx context.Context, from, to time.Time) ([]*circle.ScheduleEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.filterEntries(func(e *circle.ScheduleEntry) bool {
		return e.Status == circle.EntryPending && inWindow(e.ScheduledDate, from, to)
	}), nil
}

func (r *CircleRepository) TransitionEntry(ctx context.Context, id uuid.UUID, to circle.EntryStatus, at time.Time) (*circle.ScheduleEntry, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.entries[id]
	if !ok {
		return nil, false, circle.ErrEntryNotFound
	}
	if e.Status == to {
		return copyEntry(e), false, nil
	}
	if !e.Status.CanTransition(to) {
		return nil, false, circle.ErrIllegalTransition
	}
	e.Status = to
	e.UpdatedAt = at
	return copyEntry(e), true, nil
}

// membersOf must be called with the lock held.
func (s *Store) membersOf(circleID uuid.UUID) []*circle.Member {
	var out []*circle.Member
	for _, m := range s.members {
		if m.CircleID == circleID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PayoutPosition != out[j].PayoutPosition {
			return out[i].PayoutPosition < out[j].PayoutPosition
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

func (s *Store) filterEntries(keep func(*circle.ScheduleEntry) bool) []*circle.ScheduleEntry {
	var out []*circle.ScheduleEntry
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].Position < out[j].Position
	})
	return out
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

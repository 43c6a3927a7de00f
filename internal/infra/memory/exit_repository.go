package memory

import (
	"context"
	"sort"
	"time"

	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/exit"

	"github.com/google/uuid"
)

type ExitRepository struct {
	s *Store
}

func (r *ExitRepository) CreateRequest(ctx context.Context, req *exit.Request) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m := r.s.memberByUser(req.CircleID, req.UserID); m == nil || !m.IsActive() {
		return exit.ErrNotActiveMember
	}
	for _, existing := range r.s.requests {
		if existing.CircleID == req.CircleID && existing.UserID == req.UserID && existing.Status == exit.StatusPending {
			return exit.ErrPendingRequest
		}
	}
	r.s.requests[req.ID] = copyRequest(req)
	return nil
}

func (r *ExitRepository) GetRequest(ctx context.Context, circleID, id uuid.UUID) (*exit.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok || req.CircleID != circleID {
		return nil, exit.ErrRequestNotFound
	}
	return copyRequest(req), nil
}

func (r *ExitRepository) ListRequestsByCircle(ctx context.Context, circleID uuid.UUID) ([]*exit.Request, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*exit.Request
	for _, req := range r.s.requests {
		if req.CircleID == circleID {
			out = append(out, copyRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ExitRepository) ListVotes(ctx context.Context, requestID uuid.UUID) ([]*exit.Vote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*exit.Vote
	for _, v := range r.s.votes {
		if v.RequestID == requestID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ExitRepository) CastVote(ctx context.Context, circleID uuid.UUID, v *exit.Vote, now time.Time) (*exit.Outcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.requests[v.RequestID]
	if !ok || stored.CircleID != circleID {
		return nil, exit.ErrRequestNotFound
	}
	if stored.Status.IsTerminal() {
		return nil, exit.ErrRequestResolved
	}
	if v.VoterID == stored.UserID {
		return nil, exit.ErrSelfVote
	}
	if m := r.s.memberByUser(circleID, v.VoterID); m == nil || !m.IsActive() {
		return nil, exit.ErrVoterNotActive
	}
	for _, existing := range r.s.votes {
		if existing.RequestID == v.RequestID && existing.VoterID == v.VoterID {
			return nil, exit.ErrAlreadyVoted
		}
	}

	req := copyRequest(stored)
	tally, err := req.Record(v, len(circle.ActiveMembers(r.s.membersOf(circleID))), now)
	if err != nil {
		return nil, err
	}
	cp := *v
	r.s.votes[v.ID] = &cp
	r.s.requests[req.ID] = req
	if req.Status == exit.StatusApproved {
		if m := r.s.memberByUser(circleID, req.UserID); m != nil {
			m.Status = circle.MemberExited
		}
	}
	return &exit.Outcome{Request: copyRequest(req), Tally: tally}, nil
}

// memberByUser must be called with the lock held.
func (s *Store) memberByUser(circleID, userID uuid.UUID) *circle.Member {
	for _, m := range s.members {
		if m.CircleID == circleID && m.UserID == userID {
			return m
		}
	}
	return nil
}

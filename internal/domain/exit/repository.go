package exit

import (
	"context"
	"time"

	"hive_fund/internal/domain/apperr"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound = apperr.New(apperr.NotFound, "exit request not found")
	ErrNotActiveMember = apperr.New(apperr.NotFound, "you are not an active member of this circle")
	ErrPendingRequest  = apperr.New(apperr.Conflict, "you already have a pending exit request for this circle")
	ErrRequestResolved = apperr.New(apperr.Conflict, "exit request has already been resolved")
	ErrAlreadyVoted    = apperr.New(apperr.Conflict, "you have already voted on this exit request")
	ErrSelfVote        = apperr.New(apperr.Forbidden, "you cannot vote on your own exit request")
	ErrVoterNotActive  = apperr.New(apperr.Forbidden, "you are not an active member of this circle")
)

// Outcome is the result of one recorded vote.
type Outcome struct {
	Request *Request
	Tally   Tally
}

// Repository persists exit requests and their votes.
type Repository interface {
	// CreateRequest fails with ErrNotActiveMember or ErrPendingRequest.
	CreateRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, circleID, id uuid.UUID) (*Request, error)
	ListRequestsByCircle(ctx context.Context, circleID uuid.UUID) ([]*Request, error)
	ListVotes(ctx context.Context, requestID uuid.UUID) ([]*Vote, error)

	// CastVote appends the vote and evaluates the request as one atomic unit:
	// voter eligibility, duplicate detection, tally update, resolution and,
	// on approval, the requester's move to EXITED.
	CastVote(ctx context.Context, circleID uuid.UUID, v *Vote, now time.Time) (*Outcome, error)
}

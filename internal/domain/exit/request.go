// internal/domain/exit/request.go
package exit

import (
	"strings"
	"time"
	"unicode/utf8"

	"hive_fund/internal/domain/apperr"

	"github.com/google/uuid"
)

// Status is the state of an exit request. APPROVED and REJECTED are terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) IsTerminal() bool { return s != StatusPending }

const MaxReasonLength = 500

// Request is a member's petition to leave a circle mid-cycle.
type Request struct {
	ID           uuid.UUID
	CircleID     uuid.UUID
	UserID       uuid.UUID
	Reason       string
	VotesFor     int
	VotesAgainst int
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Vote is one peer's decision on a request. Approve=true votes for the exit.
type Vote struct {
	ID        uuid.UUID
	RequestID uuid.UUID
	VoterID   uuid.UUID
	Approve   bool
	CreatedAt time.Time
}

// Tally describes the vote arithmetic at the moment a vote was recorded.
type Tally struct {
	TotalVotes        int
	EligibleVoters    int
	MajorityThreshold int
}

// NewRequest validates the reason and builds a PENDING request.
func NewRequest(circleID, userID uuid.UUID, reason string, now time.Time) (*Request, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return nil, apperr.BadRequestf("reason must not exceed %d characters", MaxReasonLength)
	}
	return &Request{
		ID:        uuid.New(),
		CircleID:  circleID,
		UserID:    userID,
		Reason:    reason,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Threshold computes the majority needed given the current number of ACTIVE
// members, requester included.
func Threshold(activeMembers int) (eligible, majority int) {
	eligible = activeMembers - 1
	if eligible < 0 {
		eligible = 0
	}
	return eligible, eligible/2 + 1
}

// Record counts v against r and resolves the request if either side reached
// the majority. activeMembers is read at vote time, not at request creation.
func (r *Request) Record(v *Vote, activeMembers int, now time.Time) (Tally, error) {
	if r.Status.IsTerminal() {
		return Tally{}, ErrRequestResolved
	}
	if v.VoterID == r.UserID {
		return Tally{}, ErrSelfVote
	}
	if v.Approve {
		r.VotesFor++
	} else {
		r.VotesAgainst++
	}
	eligible, majority := Threshold(activeMembers)
	switch {
	case r.VotesFor >= majority:
		r.Status = StatusApproved
	case r.VotesAgainst >= majority:
		r.Status = StatusRejected
	}
	r.UpdatedAt = now
	return Tally{
		TotalVotes:        r.VotesFor + r.VotesAgainst,
		EligibleVoters:    eligible,
		MajorityThreshold: majority,
	}, nil
}

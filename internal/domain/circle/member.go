package circle

import (
	"time"

	"github.com/google/uuid"
)

// MemberStatus is the membership state of a user inside one circle.
type MemberStatus string

const (
	MemberActive MemberStatus = "ACTIVE"
	MemberExited MemberStatus = "EXITED"
)

// Member links one user to one circle. PayoutPosition is the rank in the
// rotation; an exited member keeps its position as a gap.
type Member struct {
	ID             uuid.UUID
	CircleID       uuid.UUID
	UserID         uuid.UUID
	PayoutPosition int
	Status         MemberStatus
	JoinedAt       time.Time
}

func (m *Member) IsActive() bool { return m.Status == MemberActive }

// Creator returns the active member with the lowest payout position, or nil
// when no member is active. That is the founder until the founder exits.
func Creator(members []*Member) *Member {
	var creator *Member
	for _, m := range members {
		if !m.IsActive() {
			continue
		}
		if creator == nil || m.PayoutPosition < creator.PayoutPosition {
			creator = m
		}
	}
	return creator
}

// ActiveMembers filters members to those still ACTIVE, preserving order.
func ActiveMembers(members []*Member) []*Member {
	out := make([]*Member, 0, len(members))
	for _, m := range members {
		if m.IsActive() {
			out = append(out, m)
		}
	}
	return out
}

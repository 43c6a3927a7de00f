// internal/domain/circle/circle.go
package circle

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is the contribution cadence of a circle.
type Frequency string

const (
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
)

// ParseFrequency accepts any letter case.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
		return f, nil
	}
	return "", apperr.BadRequestf("frequency must be one of WEEKLY, MONTHLY, QUARTERLY, got %q", s)
}

// Status is the lifecycle state of a circle.
type Status string

const (
	StatusForming   Status = "FORMING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var circleTransitions = map[Status][]Status{
	StatusForming: {StatusActive, StatusCancelled},
	StatusActive:  {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a circle may move from one status to another.
// COMPLETED and CANCELLED are terminal.
func (s Status) CanTransition(to Status) bool {
	for _, next := range circleTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

const (
	MinMembers       = 4
	MaxMembers       = 10
	MinNameLength    = 3
	InviteCodeLength = 10
	inviteAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var MinContribution = decimal.NewFromInt(1)

// Circle is a rotating savings group.
type Circle struct {
	ID                 uuid.UUID
	Name               string
	Description        string
	ContributionAmount decimal.Decimal
	Frequency          Frequency
	MaxMembers         int
	IsPublic           bool
	InviteCode         string
	Status             Status
	CurrentCycleID     uuid.NullUUID // set only while ACTIVE
	CreatedAt          time.Time
}

// Terms is the founder-supplied definition of a new circle.
type Terms struct {
	Name               string
	Description        string
	ContributionAmount decimal.Decimal
	Frequency          string
	MaxMembers         int
	IsPublic           bool
}

// NewCircle validates the terms and builds a FORMING circle with a fresh invite code.
func NewCircle(t Terms, now time.Time) (*Circle, error) {
	name := strings.TrimSpace(t.Name)
	if utf8.RuneCountInString(name) < MinNameLength {
		return nil, apperr.BadRequestf("circle name must be at least %d characters", MinNameLength)
	}
	if t.ContributionAmount.LessThan(MinContribution) {
		return nil, apperr.BadRequestf("contribution amount must be at least %s", MinContribution)
	}
	if err := money.RequireCents("contribution amount", t.ContributionAmount); err != nil {
		return nil, err
	}
	freq, err := ParseFrequency(t.Frequency)
	if err != nil {
		return nil, err
	}
	if t.MaxMembers < MinMembers {
		return nil, apperr.BadRequestf("circle must have at least %d members", MinMembers)
	}
	if t.MaxMembers > MaxMembers {
		return nil, apperr.BadRequestf("circle cannot have more than %d members", MaxMembers)
	}
	code, err := GenerateInviteCode()
	if err != nil {
		return nil, err
	}
	return &Circle{
		ID:                 uuid.New(),
		Name:               name,
		Description:        strings.TrimSpace(t.Description),
		ContributionAmount: t.ContributionAmount,
		Frequency:          freq,
		MaxMembers:         t.MaxMembers,
		IsPublic:           t.IsPublic,
		InviteCode:         code,
		Status:             StatusForming,
		CreatedAt:          now,
	}, nil
}

// GenerateInviteCode draws InviteCodeLength characters uniformly from A-Z0-9.
func GenerateInviteCode() (string, error) {
	var b strings.Builder
	b.Grow(InviteCodeLength)
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate invite code: %w", err)
		}
		b.WriteByte(inviteAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// Preview is the public view of a circle reachable through its invite code.
type Preview struct {
	ID                 uuid.UUID
	Name               string
	ContributionAmount decimal.Decimal
	Frequency          Frequency
	MaxMembers         int
	CurrentMembers     int
	Status             Status
	InviteCode         string
}

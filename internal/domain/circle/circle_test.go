package circle

import (
	"strings"
	"testing"
	"time"

	"hive_fund/internal/domain/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTerms() Terms {
	return Terms{
		Name:               "Market Women",
		ContributionAmount: decimal.NewFromInt(20),
		Frequency:          "weekly",
		MaxMembers:         6,
	}
}

func TestNewCircle(t *testing.T) {
	now := time.Now()
	c, err := NewCircle(validTerms(), now)
	require.NoError(t, err)

	assert.Equal(t, "Market Women", c.Name)
	assert.Equal(t, FrequencyWeekly, c.Frequency)
	assert.Equal(t, StatusForming, c.Status)
	assert.False(t, c.CurrentCycleID.Valid)
	assert.Len(t, c.InviteCode, InviteCodeLength)
	assert.Equal(t, now, c.CreatedAt)
}

func TestNewCircle_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Terms)
		reason string
	}{
		{"short name", func(tr *Terms) { tr.Name = " ab " }, "at least 3 characters"},
		{"zero contribution", func(tr *Terms) { tr.ContributionAmount = decimal.Zero }, "contribution amount"},
		{"sub-cent contribution", func(tr *Terms) { tr.ContributionAmount = decimal.RequireFromString("20.125") }, "at most 2 decimal places"},
		{"unknown frequency", func(tr *Terms) { tr.Frequency = "daily" }, "frequency"},
		{"too few members", func(tr *Terms) { tr.MaxMembers = 3 }, "at least 4"},
		{"too many members", func(tr *Terms) { tr.MaxMembers = 11 }, "more than 10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := validTerms()
			tt.mutate(&terms)

			_, err := NewCircle(terms, time.Now())
			require.Error(t, err)
			assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestParseFrequency(t *testing.T) {
	for in, want := range map[string]Frequency{
		"WEEKLY":    FrequencyWeekly,
		"Monthly":   FrequencyMonthly,
		"quarterly": FrequencyQuarterly,
	} {
		got, err := ParseFrequency(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestGenerateInviteCode_Alphabet(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		code, err := GenerateInviteCode()
		require.NoError(t, err)
		require.Len(t, code, InviteCodeLength)
		for _, r := range code {
			require.True(t, strings.ContainsRune(inviteAlphabet, r), "unexpected rune %q", r)
		}
		seen[code] = true
	}
	assert.Len(t, seen, 500)
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusForming.CanTransition(StatusActive))
	assert.True(t, StatusActive.CanTransition(StatusCompleted))
	assert.False(t, StatusActive.CanTransition(StatusForming))
	assert.False(t, StatusCompleted.CanTransition(StatusActive))
	assert.False(t, StatusCancelled.CanTransition(StatusForming))
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
}

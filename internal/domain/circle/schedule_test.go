package circle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchedule_Weekly(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC)
	for n := MinMembers; n <= MaxMembers; n++ {
		members := newMembers(n)

		plan := GenerateSchedule(members, decimal.NewFromInt(20), FrequencyWeekly, start)

		require.Len(t, plan.Entries, n)
		for i, e := range plan.Entries {
			assert.True(t, decimal.NewFromInt(int64(20*n)).Equal(e.Amount), "entry %d amount", i+1)
			assert.Equal(t, start.AddDate(0, 0, 7*i), e.ScheduledDate)
			assert.Equal(t, i+1, e.Position)
			assert.Equal(t, members[i].UserID, e.UserID)
			assert.Equal(t, EntryPending, e.Status)
		}
		assert.Equal(t, start.AddDate(0, 0, 7*n), plan.EndDate)
	}
}

func TestGenerateSchedule_CalendarSteps(t *testing.T) {
	start := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	members := newMembers(4)

	monthly := GenerateSchedule(members, decimal.NewFromInt(10), FrequencyMonthly, start)
	quarterly := GenerateSchedule(members, decimal.NewFromInt(10), FrequencyQuarterly, start)

	for i := range members {
		assert.Equal(t, start.AddDate(0, i, 0), monthly.Entries[i].ScheduledDate)
		assert.Equal(t, start.AddDate(0, 3*i, 0), quarterly.Entries[i].ScheduledDate)
	}
	assert.Equal(t, start.AddDate(0, 4, 0), monthly.EndDate)
	assert.Equal(t, start.AddDate(0, 12, 0), quarterly.EndDate)
}

func TestGenerateSchedule_IsPure(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	members := newMembers(5)

	a := GenerateSchedule(members, decimal.NewFromInt(15), FrequencyWeekly, start)
	b := GenerateSchedule(members, decimal.NewFromInt(15), FrequencyWeekly, start)

	assert.Equal(t, a, b)
}

func TestGenerateSchedule_DatesStrictlyIncrease(t *testing.T) {
	start := time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC)
	for _, f := range []Frequency{FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly} {
		plan := GenerateSchedule(newMembers(10), decimal.NewFromInt(5), f, start)
		for i := 1; i < len(plan.Entries); i++ {
			assert.True(t, plan.Entries[i].ScheduledDate.After(plan.Entries[i-1].ScheduledDate), "%s entry %d", f, i+1)
		}
	}
}

func TestEntryStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to EntryStatus
		allowed  bool
	}{
		{EntryPending, EntryPaid, true},
		{EntryPending, EntryCompleted, true},
		{EntryPaid, EntryCompleted, true},
		{EntryPaid, EntryPending, false},
		{EntryCompleted, EntryPaid, false},
		{EntryCompleted, EntryPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.True(t, EntryPaid.IsSettled())
	assert.True(t, EntryCompleted.IsSettled())
	assert.False(t, EntryPending.IsSettled())
}

func TestAllSettledAndCompleted(t *testing.T) {
	entries := []*ScheduleEntry{{Status: EntryPaid}, {Status: EntryCompleted}}
	assert.True(t, AllSettled(entries))
	assert.False(t, AllCompleted(entries))

	entries[0].Status = EntryCompleted
	assert.True(t, AllCompleted(entries))

	assert.False(t, AllSettled(nil))
	assert.False(t, AllCompleted(nil))
}

func TestDayWindow(t *testing.T) {
	loc := time.FixedZone("WAT", 3600)
	from, to := DayWindow(time.Date(2025, 2, 28, 23, 59, 0, 0, loc))

	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, loc), from)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, loc), to)
}

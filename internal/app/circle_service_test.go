package app_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"hive_fund/internal/app"
	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/notification"
	"hive_fund/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCircle_FounderTakesFirstPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	founder := uuid.New()

	detail, err := f.app.Circles.CreateCircle(ctx, founder, weeklyTerms(6))
	require.NoError(t, err)
	assert.Equal(t, circle.StatusForming, detail.Circle.Status)
	assert.Equal(t, circle.FrequencyWeekly, detail.Circle.Frequency)
	assert.Len(t, detail.Circle.InviteCode, circle.InviteCodeLength)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, founder, detail.Members[0].UserID)
	assert.Equal(t, 1, detail.Members[0].PayoutPosition)

	mine, err := f.app.Circles.ListMyCircles(ctx, founder)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, detail.Circle.ID, mine[0].ID)
}

func TestCreateCircle_RejectsInvalidTerms(t *testing.T) {
	f := newFixture(t)
	terms := weeklyTerms(3)

	_, err := f.app.Circles.CreateCircle(context.Background(), uuid.New(), terms)
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
}

func TestJoin_AssignsNextPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, users := f.formCircle(t, 6, 3)

	preview, err := f.app.Circles.PreviewByInviteCode(ctx, c.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, 3, preview.CurrentMembers)
	assert.Equal(t, 6, preview.MaxMembers)

	m, err := f.app.Circles.JoinByInviteCode(ctx, uuid.New(), c.InviteCode, true)
	require.NoError(t, err)
	assert.Equal(t, 4, m.PayoutPosition)

	members, err := f.app.Circles.ListMembers(ctx, c.ID, users[0])
	require.NoError(t, err)
	require.Len(t, members, 4)
	for i, member := range members {
		assert.Equal(t, i+1, member.PayoutPosition)
	}
}

func TestJoin_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	full, _ := f.formCircle(t, 4, 4)
	open, openUsers := f.formCircle(t, 6, 4)
	started, startedUsers := f.formCircle(t, 4, 4)
	_, err := f.app.Circles.StartCycle(ctx, started.ID, startedUsers[0])
	require.NoError(t, err)

	tests := []struct {
		name     string
		circleID uuid.UUID
		userID   uuid.UUID
		agreed   bool
		want     error
	}{
		{"terms not accepted", open.ID, uuid.New(), false, app.ErrTermsRequired},
		{"already a member", open.ID, openUsers[1], true, circle.ErrAlreadyMember},
		{"circle full", full.ID, uuid.New(), true, circle.ErrCircleFull},
		{"cycle already running", started.ID, uuid.New(), true, circle.ErrCircleNotForming},
		{"unknown circle", uuid.New(), uuid.New(), true, circle.ErrCircleNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.app.Circles.Join(ctx, tt.circleID, tt.userID, tt.agreed)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = f.app.Circles.JoinByInviteCode(ctx, uuid.New(), "NOPE000000", true)
	assert.ErrorIs(t, err, circle.ErrInviteNotFound)

	count, err := f.store.Circles().CountMembers(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestJoin_ConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.formCircle(t, circle.MaxMembers, 1)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
		full   int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.app.Circles.Join(ctx, c.ID, uuid.New(), true)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				joined++
				return
			}
			assert.ErrorIs(t, err, circle.ErrCircleFull)
			full++
		}()
	}
	wg.Wait()

	assert.Equal(t, circle.MaxMembers-1, joined)
	assert.Equal(t, 20-joined, full)

	members, err := f.store.Circles().ListMembers(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, members, circle.MaxMembers)
	for i, m := range members {
		assert.Equal(t, i+1, m.PayoutPosition)
	}
}

func TestStartCycle_FourMemberCircle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, users := f.formCircle(t, 4, 3)

	_, err := f.app.Circles.StartCycle(ctx, c.ID, users[0])
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
	assert.Equal(t, "circle must have at least 4 members to start. Current: 3", apperr.ReasonOf(err))

	last := uuid.New()
	_, err = f.app.Circles.Join(ctx, c.ID, last, true)
	require.NoError(t, err)
	users = append(users, last)

	_, err = f.app.Circles.StartCycle(ctx, c.ID, users[1])
	assert.ErrorIs(t, err, app.ErrNotCreator)
	_, err = f.app.Circles.StartCycle(ctx, c.ID, uuid.New())
	assert.ErrorIs(t, err, app.ErrNotCreator)

	started, err := f.app.Circles.StartCycle(ctx, c.ID, users[0])
	require.NoError(t, err)
	assert.Equal(t, 1, started.Cycle.Number)
	assert.Equal(t, circle.CycleActive, started.Cycle.Status)
	assert.Equal(t, day0.AddDate(0, 0, 28), started.Cycle.EndDate)
	require.Len(t, started.Entries, 4)

	var recipients []string
	for i, e := range started.Entries {
		assert.Equal(t, i+1, e.Position)
		assert.Equal(t, day0.AddDate(0, 0, 7*i), e.ScheduledDate)
		assert.True(t, decimal.NewFromInt(80).Equal(e.Amount), "entry %d amount %s", i, e.Amount)
		assert.Equal(t, circle.EntryPending, e.Status)
		assert.Equal(t, started.Members[i].UserID, e.UserID)
		recipients = append(recipients, e.UserID.String())
	}
	var want []string
	for _, u := range users {
		want = append(want, u.String())
	}
	sort.Strings(recipients)
	sort.Strings(want)
	assert.Equal(t, want, recipients)

	detail, err := f.app.Circles.GetCircle(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, circle.StatusActive, detail.Circle.Status)
	assert.Equal(t, started.Cycle.ID, detail.Circle.CurrentCycleID.UUID)
	for i, m := range detail.Members {
		assert.Equal(t, i+1, m.PayoutPosition)
		assert.Equal(t, started.Entries[i].UserID, m.UserID)
	}

	assert.Len(t, f.notifier.Events(notification.EventCycleStarted), 1)
}

func TestStartCycle_SecondStartIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, users, _ := f.startCircle(t, 4)

	_, err := f.app.Circles.StartCycle(ctx, c.ID, users[0])
	assert.ErrorIs(t, err, circle.ErrCycleAlreadyActive)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
}

func TestStartCycle_ConcurrentStartsProduceOneCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, users := f.formCircle(t, 6, 6)

	// A second App over the same store has its own in-process locks, so the
	// store is what has to hold the line.
	logger, _ := testutil.NullLogger()
	other := app.New(f.deps(), logger, app.WithClock(f.clock.Now))
	services := []*app.CircleService{f.app.Circles, other.Circles}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(svc *app.CircleService) {
			defer wg.Done()
			_, err := svc.StartCycle(ctx, c.ID, users[0])
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.Equal(t, apperr.Conflict, apperr.KindOf(err), err.Error())
		}(services[i%2])
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	count, err := f.store.Circles().CountCycles(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStartCycle_SkipsExitedMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, users := f.formCircle(t, 5, 5)

	req, err := f.app.Exits.CreateExitRequest(ctx, c.ID, users[4], "moving away")
	require.NoError(t, err)
	for _, voter := range users[1:4] {
		_, err := f.app.Exits.Vote(ctx, c.ID, req.ID, voter, true)
		require.NoError(t, err)
	}

	started, err := f.app.Circles.StartCycle(ctx, c.ID, users[0])
	require.NoError(t, err)
	require.Len(t, started.Entries, 4)
	for _, e := range started.Entries {
		assert.NotEqual(t, users[4], e.UserID)
		assert.True(t, decimal.NewFromInt(80).Equal(e.Amount))
	}
}

func TestStartCycle_FounderExitedBeforeLottery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, users := f.formCircle(t, 6, 6)

	req, err := f.app.Exits.CreateExitRequest(ctx, c.ID, users[0], "cannot commit")
	require.NoError(t, err)
	for _, voter := range users[1:4] {
		_, err := f.app.Exits.Vote(ctx, c.ID, req.ID, voter, true)
		require.NoError(t, err)
	}

	_, err = f.app.Circles.StartCycle(ctx, c.ID, users[0])
	assert.ErrorIs(t, err, app.ErrNotCreator)
	_, err = f.app.Circles.StartCycle(ctx, c.ID, users[2])
	assert.ErrorIs(t, err, app.ErrNotCreator)

	started, err := f.app.Circles.StartCycle(ctx, c.ID, users[1])
	require.NoError(t, err)
	require.Len(t, started.Entries, 5)
	for _, e := range started.Entries {
		assert.NotEqual(t, users[0], e.UserID)
	}
}

func TestTimeline_MembersOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, users := f.formCircle(t, 4, 4)

	_, err := f.app.Circles.Timeline(ctx, c.ID, users[1])
	assert.ErrorIs(t, err, circle.ErrNoCycleYet)

	started, err := f.app.Circles.StartCycle(ctx, c.ID, users[0])
	require.NoError(t, err)

	_, err = f.app.Circles.Timeline(ctx, c.ID, uuid.New())
	assert.ErrorIs(t, err, app.ErrNotMember)
	_, err = f.app.Circles.ListMembers(ctx, c.ID, uuid.New())
	assert.ErrorIs(t, err, app.ErrNotMember)

	tl, err := f.app.Circles.Timeline(ctx, c.ID, users[2])
	require.NoError(t, err)
	assert.Equal(t, c.Name, tl.CircleName)
	assert.Equal(t, 1, tl.CycleNumber)
	assert.Equal(t, circle.CycleActive, tl.CycleStatus)
	require.Len(t, tl.Entries, 4)
	for i, e := range tl.Entries {
		assert.Equal(t, started.Entries[i].ID, e.ID)
	}
}

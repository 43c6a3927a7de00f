package app_test

import (
	"context"
	"testing"
	"time"

	"hive_fund/internal/app"
	"hive_fund/internal/domain/circle"
	"hive_fund/internal/infra/memory"
	"hive_fund/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const operatorID int64 = 4242

// Monday morning, so weekly entries keep landing at 10:00 UTC.
var day0 = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

const week = 7 * 24 * time.Hour

type fixture struct {
	store    *memory.Store
	clock    *testutil.Clock
	notifier *testutil.Notifier
	hook     *test.Hook
	app      *app.App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, hook := testutil.NullLogger()
	f := &fixture{
		store:    memory.NewStore(),
		clock:    testutil.NewClock(day0),
		notifier: &testutil.Notifier{},
		hook:     hook,
	}
	f.app = app.New(f.deps(), logger, app.WithClock(f.clock.Now))
	return f
}

func (f *fixture) deps() app.Deps {
	return app.Deps{
		Circles:      f.store.Circles(),
		Exits:        f.store.Exits(),
		Loans:        f.store.Loans(),
		Transactions: f.store.Transactions(),
		Ledger:       f.store.Ledger(),
		Credit:       f.store.Credit(),
		Notifier:     f.notifier,
		Rewards:      app.DefaultRewards,
		OperatorID:   operatorID,
	}
}

func weeklyTerms(maxMembers int) circle.Terms {
	return circle.Terms{
		Name:               "Market Women",
		ContributionAmount: decimal.NewFromInt(20),
		Frequency:          "weekly",
		MaxMembers:         maxMembers,
	}
}

// formCircle creates a circle with room for maxMembers and fills it with
// size members. users[0] is the creator.
func (f *fixture) formCircle(t *testing.T, maxMembers, size int) (*circle.Circle, []uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	users := make([]uuid.UUID, size)
	for i := range users {
		users[i] = uuid.New()
	}
	detail, err := f.app.Circles.CreateCircle(ctx, users[0], weeklyTerms(maxMembers))
	require.NoError(t, err)
	for _, u := range users[1:] {
		_, err := f.app.Circles.Join(ctx, detail.Circle.ID, u, true)
		require.NoError(t, err)
	}
	return detail.Circle, users
}

// startCircle forms a full circle and runs its lottery.
func (f *fixture) startCircle(t *testing.T, size int) (*circle.Circle, []uuid.UUID, *app.CycleStarted) {
	t.Helper()
	c, users := f.formCircle(t, size, size)
	started, err := f.app.Circles.StartCycle(context.Background(), c.ID, users[0])
	require.NoError(t, err)
	return c, users, started
}

// fund puts amount into the pool through an unmatched contribution.
func (f *fixture) fund(t *testing.T, amount int64) {
	t.Helper()
	_, err := f.app.Contributions.RecordContribution(context.Background(), uuid.New(), decimal.NewFromInt(amount))
	require.NoError(t, err)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

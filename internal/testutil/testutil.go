// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"hive_fund/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"
)

// NullLogger returns an entry that discards output and the hook capturing it.
func NullLogger() (*logrus.Entry, *test.Hook) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(l), hook
}

// Clock is a settable time source safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Notifier records every event it receives.
type Notifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *Notifier) Notify(ctx context.Context, e notification.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *Notifier) Events(t notification.EventType) []notification.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

var truncateTables = `TRUNCATE credit_history, credit_scores, transactions, loans, exit_request_votes,
	exit_requests, payout_schedules, cycles, circle_members, circles RESTART IDENTITY CASCADE`

// OpenTestDB connects to TEST_DATABASE_URL and skips the test when it is
// unset. migrate is expected to bring the schema up to date; all data
// tables are truncated and the pool row is reset before the test runs.
func OpenTestDB(t *testing.T, migrate func(ctx context.Context, db *sql.DB) error) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set; skipping postgres integration test")
	}
	ctx := context.Background()

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.PingContext(ctx))

	require.NoError(t, migrate(ctx, db))
	_, err = db.ExecContext(ctx, truncateTables)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE liquidity_pool SET total_pool = 0, reserved_amount = 0, available_amount = 0 WHERE id = 1`)
	require.NoError(t, err)
	return db
}

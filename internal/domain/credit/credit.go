// internal/domain/credit/credit.go
package credit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Reasons reported to the reputation collaborator.
const (
	ReasonOnTimePayment = "on_time_payment"
	ReasonCycleComplete = "cycle_complete"
)

// Scorer is the reputation collaborator: a score lookup and a delta sink.
// Users without a record score 0.
type Scorer interface {
	GetScore(ctx context.Context, userID uuid.UUID) (int, error)
	ApplyDelta(ctx context.Context, userID uuid.UUID, reason string, points int) error
}

// Store is a Scorer that also keeps the audit trail of every change.
type Store interface {
	Scorer
	History(ctx context.Context, userID uuid.UUID) ([]*HistoryEntry, error) // newest first
}

// HistoryEntry is one recorded score change.
type HistoryEntry struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ScoreBefore int
	ScoreAfter  int
	Reason      string
	CreatedAt   time.Time
}

// Label names the reputation band of a score for display.
func Label(score int) string {
	switch {
	case score >= 500:
		return "Excellent"
	case score >= 400:
		return "Good"
	case score >= 300:
		return "Growing"
	case score >= 200:
		return "Building"
	default:
		return "New"
	}
}

package memory

import (
	"context"
	"time"

	"hive_fund/internal/domain/credit"

	"github.com/google/uuid"
)

type CreditStore struct {
	s *Store
}

func (c *CreditStore) GetScore(ctx context.Context, userID uuid.UUID) (int, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.s.scores[userID], nil
}

func (c *CreditStore) ApplyDelta(ctx context.Context, userID uuid.UUID, reason string, points int) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	before := c.s.scores[userID]
	after := before + points
	c.s.scores[userID] = after
	c.s.history = append(c.s.history, &credit.HistoryEntry{
		ID:          uuid.New(),
		UserID:      userID,
		ScoreBefore: before,
		ScoreAfter:  after,
		Reason:      reason,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (c *CreditStore) History(ctx context.Context, userID uuid.UUID) ([]*credit.HistoryEntry, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []*credit.HistoryEntry
	for i := len(c.s.history) - 1; i >= 0; i-- {
		if h := c.s.history[i]; h.UserID == userID {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

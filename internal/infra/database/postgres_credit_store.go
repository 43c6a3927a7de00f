package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hive_fund/internal/domain/credit"

	"github.com/google/uuid"
)

// PostgresCreditStore keeps reputation scores and their change history.
type PostgresCreditStore struct {
	db *sql.DB
}

func NewPostgresCreditStore(db *sql.DB) *PostgresCreditStore {
	return &PostgresCreditStore{db: db}
}

func (s *PostgresCreditStore) GetScore(ctx context.Context, userID uuid.UUID) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx, `SELECT score FROM credit_scores WHERE user_id = $1`, userID).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error getting credit score: %w", err)
	}
	return score, nil
}

func (s *PostgresCreditStore) ApplyDelta(ctx context.Context, userID uuid.UUID, reason string, points int) error {
	now := time.Now()
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO credit_scores (user_id, score, tier, updated_at)
			VALUES ($1, 0, $2, $3) ON CONFLICT (user_id) DO NOTHING`, userID, credit.Label(0), now)
		if err != nil {
			return fmt.Errorf("error initializing credit score: %w", err)
		}

		var before int
		err = tx.QueryRowContext(ctx, `SELECT score FROM credit_scores WHERE user_id = $1 FOR UPDATE`, userID).Scan(&before)
		if err != nil {
			return fmt.Errorf("error locking credit score: %w", err)
		}
		after := before + points

		_, err = tx.ExecContext(ctx, `UPDATE credit_scores SET score = $1, tier = $2, updated_at = $3 WHERE user_id = $4`,
			after, credit.Label(after), now, userID)
		if err != nil {
			return fmt.Errorf("error updating credit score: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO credit_history (id, user_id, score_before, score_after, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`, uuid.New(), userID, before, after, reason, now)
		if err != nil {
			return fmt.Errorf("error recording credit history: %w", err)
		}
		return nil
	})
}

func (s *PostgresCreditStore) History(ctx context.Context, userID uuid.UUID) ([]*credit.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, score_before, score_after, reason, created_at
		FROM credit_history WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing credit history: %w", err)
	}
	defer rows.Close()

	var history []*credit.HistoryEntry
	for rows.Next() {
		h := credit.HistoryEntry{}
		if err := rows.Scan(&h.ID, &h.UserID, &h.ScoreBefore, &h.ScoreAfter, &h.Reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning credit history: %w", err)
		}
		history = append(history, &h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credit history: %w", err)
	}
	return history, nil
}

var _ credit.Store = (*PostgresCreditStore)(nil)

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/exit"

	"github.com/google/uuid"
)

const requestColumns = `id, circle_id, user_id, reason, votes_for, votes_against, status, created_at, updated_at`

type PostgresExitRepository struct {
	db *sql.DB
}

func NewPostgresExitRepository(db *sql.DB) *PostgresExitRepository {
	return &PostgresExitRepository{db: db}
}

func scanRequest(row scanner) (*exit.Request, error) {
	r := exit.Request{}
	err := row.Scan(&r.ID, &r.CircleID, &r.UserID, &r.Reason, &r.VotesFor, &r.VotesAgainst, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *PostgresExitRepository) CreateRequest(ctx context.Context, req *exit.Request) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var status circle.MemberStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM circle_members WHERE circle_id = $1 AND user_id = $2 FOR SHARE`,
			req.CircleID, req.UserID).Scan(&status)
		if err == sql.ErrNoRows || (err == nil && status != circle.MemberActive) {
			return exit.ErrNotActiveMember
		}
		if err != nil {
			return fmt.Errorf("error checking requester membership: %w", err)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO exit_requests (`+requestColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			req.ID, req.CircleID, req.UserID, req.Reason, req.VotesFor, req.VotesAgainst, req.Status, req.CreatedAt, req.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err, "exit_requests_one_pending") {
				return exit.ErrPendingRequest
			}
			return fmt.Errorf("error creating exit request: %w", err)
		}
		return nil
	})
}

func (r *PostgresExitRepository) GetRequest(ctx context.Context, circleID, id uuid.UUID) (*exit.Request, error) {
	req, err := scanRequest(r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM exit_requests
		WHERE id = $1 AND circle_id = $2`, id, circleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, exit.ErrRequestNotFound
		}
		return nil, fmt.Errorf("error getting exit request: %w", err)
	}
	return req, nil
}

func (r *PostgresExitRepository) ListRequestsByCircle(ctx context.Context, circleID uuid.UUID) ([]*exit.Request, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestColumns+` FROM exit_requests
		WHERE circle_id = $1 ORDER BY created_at DESC`, circleID)
	if err != nil {
		return nil, fmt.Errorf("error listing exit requests: %w", err)
	}
	defer rows.Close()

	var requests []*exit.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning exit request: %w", err)
		}
		requests = append(requests, req)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exit requests: %w", err)
	}
	return requests, nil
}

func (r *PostgresExitRepository) ListVotes(ctx context.Context, requestID uuid.UUID) ([]*exit.Vote, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, exit_request_id, voter_id, vote, created_at
		FROM exit_request_votes WHERE exit_request_id = $1 ORDER BY created_at`, requestID)
	if err != nil {
		return nil, fmt.Errorf("error listing votes: %w", err)
	}
	defer rows.Close()

	var votes []*exit.Vote
	for rows.Next() {
		v := exit.Vote{}
		if err := rows.Scan(&v.ID, &v.RequestID, &v.VoterID, &v.Approve, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning vote: %w", err)
		}
		votes = append(votes, &v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}

// CastVote locks the request row, so concurrent votes on the same request
// are tallied one after another against a fresh count.
func (r *PostgresExitRepository) CastVote(ctx context.Context, circleID uuid.UUID, v *exit.Vote, now time.Time) (*exit.Outcome, error) {
	var out *exit.Outcome
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		req, err := scanRequest(tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM exit_requests
			WHERE id = $1 AND circle_id = $2 FOR UPDATE`, v.RequestID, circleID))
		if err == sql.ErrNoRows {
			return exit.ErrRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("error locking exit request: %w", err)
		}
		if req.Status.IsTerminal() {
			return exit.ErrRequestResolved
		}
		if v.VoterID == req.UserID {
			return exit.ErrSelfVote
		}

		var voterStatus circle.MemberStatus
		err = tx.QueryRowContext(ctx, `SELECT status FROM circle_members WHERE circle_id = $1 AND user_id = $2`,
			circleID, v.VoterID).Scan(&voterStatus)
		if err == sql.ErrNoRows || (err == nil && voterStatus != circle.MemberActive) {
			return exit.ErrVoterNotActive
		}
		if err != nil {
			return fmt.Errorf("error checking voter membership: %w", err)
		}

		var voted bool
		err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM exit_request_votes
			WHERE exit_request_id = $1 AND voter_id = $2)`, v.RequestID, v.VoterID).Scan(&voted)
		if err != nil {
			return fmt.Errorf("error checking previous votes: %w", err)
		}
		if voted {
			return exit.ErrAlreadyVoted
		}

		var active int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM circle_members WHERE circle_id = $1 AND status = $2`,
			circleID, circle.MemberActive).Scan(&active)
		if err != nil {
			return fmt.Errorf("error counting active members: %w", err)
		}

		tally, err := req.Record(v, active, now)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO exit_request_votes (id, exit_request_id, voter_id, vote, created_at)
			VALUES ($1, $2, $3, $4, $5)`, v.ID, v.RequestID, v.VoterID, v.Approve, v.CreatedAt)
		if err != nil {
			if isUniqueViolation(err, "exit_request_votes_request_voter_key") {
				return exit.ErrAlreadyVoted
			}
			return fmt.Errorf("error recording vote: %w", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE exit_requests SET votes_for = $1, votes_against = $2, status = $3, updated_at = $4
			WHERE id = $5`, req.VotesFor, req.VotesAgainst, req.Status, req.UpdatedAt, req.ID)
		if err != nil {
			return fmt.Errorf("error updating exit request: %w", err)
		}

		if req.Status == exit.StatusApproved {
			_, err = tx.ExecContext(ctx, `UPDATE circle_members SET status = $1 WHERE circle_id = $2 AND user_id = $3`,
				circle.MemberExited, circleID, req.UserID)
			if err != nil {
				return fmt.Errorf("error marking member exited: %w", err)
			}
		}

		out = &exit.Outcome{Request: req, Tally: tally}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var _ exit.Repository = (*PostgresExitRepository)(nil)

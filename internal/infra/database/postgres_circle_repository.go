package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hive_fund/internal/domain/circle"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	circleColumns = `id, name, description, contribution_amount, frequency, max_members, is_public,
		invite_code, status, current_cycle_id, created_at`
	memberColumns = `id, circle_id, user_id, payout_position, status, joined_at`
	cycleColumns  = `id, circle_id, cycle_number, start_date, end_date, status, created_at`
	entryColumns  = `id, cycle_id, circle_id, user_id, position, scheduled_date, amount, status, updated_at`
)

type PostgresCircleRepository struct {
	db *sql.DB
}

func NewPostgresCircleRepository(db *sql.DB) *PostgresCircleRepository {
	return &PostgresCircleRepository{db: db}
}

func scanCircle(row scanner) (*circle.Circle, error) {
	c := circle.Circle{}
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ContributionAmount, &c.Frequency, &c.MaxMembers,
		&c.IsPublic, &c.InviteCode, &c.Status, &c.CurrentCycleID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanMember(row scanner) (*circle.Member, error) {
	m := circle.Member{}
	if err := row.Scan(&m.ID, &m.CircleID, &m.UserID, &m.PayoutPosition, &m.Status, &m.JoinedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanCycle(row scanner) (*circle.Cycle, error) {
	cy := circle.Cycle{}
	if err := row.Scan(&cy.ID, &cy.CircleID, &cy.Number, &cy.StartDate, &cy.EndDate, &cy.Status, &cy.CreatedAt); err != nil {
		return nil, err
	}
	return &cy, nil
}

func scanEntry(row scanner) (*circle.ScheduleEntry, error) {
	e := circle.ScheduleEntry{}
	err := row.Scan(&e.ID, &e.CycleID, &e.CircleID, &e.UserID, &e.Position, &e.ScheduledDate, &e.Amount, &e.Status, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresCircleRepository) CreateCircle(ctx context.Context, c *circle.Circle, founder *circle.Member) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO circles (`+circleColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			c.ID, c.Name, c.Description, c.ContributionAmount, c.Frequency, c.MaxMembers, c.IsPublic,
			c.InviteCode, c.Status, c.CurrentCycleID, c.CreatedAt)
		if err != nil {
			if isUniqueViolation(err, "circles_invite_code_key") {
				return circle.ErrInviteCodeTaken
			}
			return fmt.Errorf("error creating circle: %w", err)
		}
		if err := insertMember(ctx, tx, founder); err != nil {
			return fmt.Errorf("error adding founding member: %w", err)
		}
		return nil
	})
}

func insertMember(ctx context.Context, tx *sql.Tx, m *circle.Member) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO circle_members (`+memberColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.CircleID, m.UserID, m.PayoutPosition, m.Status, m.JoinedAt)
	if isUniqueViolation(err, "circle_members_circle_user_key") {
		return circle.ErrAlreadyMember
	}
	return err
}

func (r *PostgresCircleRepository) GetCircleByID(ctx context.Context, id uuid.UUID) (*circle.Circle, error) {
	c, err := scanCircle(r.db.QueryRowContext(ctx, `SELECT `+circleColumns+` FROM circles WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, circle.ErrCircleNotFound
		}
		return nil, fmt.Errorf("error getting circle by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresCircleRepository) GetCircleByInviteCode(ctx context.Context, code string) (*circle.Circle, error) {
	c, err := scanCircle(r.db.QueryRowContext(ctx, `SELECT `+circleColumns+` FROM circles WHERE invite_code = $1`, code))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, circle.ErrInviteNotFound
		}
		return nil, fmt.Errorf("error getting circle by invite code: %w", err)
	}
	return c, nil
}

func (r *PostgresCircleRepository) ListCirclesByUser(ctx context.Context, userID uuid.UUID) ([]*circle.Circle, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT c.id, c.name, c.description, c.contribution_amount, c.frequency,
			c.max_members, c.is_public, c.invite_code, c.status, c.current_cycle_id, c.created_at
		FROM circles c
		JOIN circle_members m ON m.circle_id = c.id
		WHERE m.user_id = $1 AND m.status = $2
		ORDER BY c.created_at DESC`, userID, circle.MemberActive)
	if err != nil {
		return nil, fmt.Errorf("error listing circles by user: %w", err)
	}
	defer rows.Close()

	var circles []*circle.Circle
	for rows.Next() {
		c, err := scanCircle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning circle: %w", err)
		}
		circles = append(circles, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating circles: %w", err)
	}
	return circles, nil
}

// AddMember locks the circle row so that capacity and position are computed
// against a stable member count.
func (r *PostgresCircleRepository) AddMember(ctx context.Context, circleID, userID uuid.UUID, joinedAt time.Time) (*circle.Member, error) {
	var m *circle.Member
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var status circle.Status
		var maxMembers int
		err := tx.QueryRowContext(ctx, `SELECT status, max_members FROM circles WHERE id = $1 FOR UPDATE`, circleID).
			Scan(&status, &maxMembers)
		if err == sql.ErrNoRows {
			return circle.ErrCircleNotFound
		}
		if err != nil {
			return fmt.Errorf("error locking circle: %w", err)
		}
		if status != circle.StatusForming {
			return circle.ErrCircleNotForming
		}

		var count int
		var already bool
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(BOOL_OR(user_id = $2), FALSE)
			FROM circle_members WHERE circle_id = $1`, circleID, userID).Scan(&count, &already)
		if err != nil {
			return fmt.Errorf("error counting members: %w", err)
		}
		if already {
			return circle.ErrAlreadyMember
		}
		if count >= maxMembers {
			return circle.ErrCircleFull
		}

		m = &circle.Member{
			ID:             uuid.New(),
			CircleID:       circleID,
			UserID:         userID,
			PayoutPosition: count + 1,
			Status:         circle.MemberActive,
			JoinedAt:       joinedAt,
		}
		return insertMember(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *PostgresCircleRepository) GetMember(ctx context.Context, circleID, userID uuid.UUID) (*circle.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM circle_members
		WHERE circle_id = $1 AND user_id = $2`, circleID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, circle.ErrMemberNotFound
		}
		return nil, fmt.Errorf("error getting member: %w", err)
	}
	return m, nil
}

func (r *PostgresCircleRepository) ListMembers(ctx context.Context, circleID uuid.UUID) ([]*circle.Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM circle_members
		WHERE circle_id = $1 ORDER BY payout_position, joined_at`, circleID)
	if err != nil {
		return nil, fmt.Errorf("error listing members: %w", err)
	}
	defer rows.Close()

	var members []*circle.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning member: %w", err)
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

func (r *PostgresCircleRepository) CountMembers(ctx context.Context, circleID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM circle_members WHERE circle_id = $1`, circleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting members: %w", err)
	}
	return count, nil
}

// StartCycle holds the circle row lock for the whole unit. The partial
// unique index on open cycles backs the existence check.
func (r *PostgresCircleRepository) StartCycle(ctx context.Context, start *circle.CycleStart) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var status circle.Status
		err := tx.QueryRowContext(ctx, `SELECT status FROM circles WHERE id = $1 FOR UPDATE`, start.CircleID).Scan(&status)
		if err == sql.ErrNoRows {
			return circle.ErrCircleNotFound
		}
		if err != nil {
			return fmt.Errorf("error locking circle: %w", err)
		}

		var open bool
		err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM cycles WHERE circle_id = $1 AND status = $2)`,
			start.CircleID, circle.CycleActive).Scan(&open)
		if err != nil {
			return fmt.Errorf("error checking open cycles: %w", err)
		}
		if open {
			return circle.ErrCycleAlreadyActive
		}
		if !status.CanTransition(circle.StatusActive) {
			return circle.ErrCircleNotForming
		}

		ids := make([]uuid.UUID, 0, len(start.Rotation))
		positions := make([]int64, 0, len(start.Rotation))
		for _, m := range start.Rotation {
			ids = append(ids, m.ID)
			positions = append(positions, int64(m.PayoutPosition))
		}
		res, err := tx.ExecContext(ctx, `UPDATE circle_members m
			SET payout_position = p.position
			FROM UNNEST($1::uuid[], $2::int[]) AS p(id, position)
			WHERE m.id = p.id AND m.circle_id = $3`,
			pq.Array(uuidStrings(ids)), pq.Array(positions), start.CircleID)
		if err != nil {
			return fmt.Errorf("error updating payout positions: %w", err)
		}
		if n, _ := res.RowsAffected(); int(n) != len(ids) {
			return circle.ErrMemberNotFound
		}

		cy := start.Cycle
		_, err = tx.ExecContext(ctx, `INSERT INTO cycles (`+cycleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			cy.ID, cy.CircleID, cy.Number, cy.StartDate, cy.EndDate, cy.Status, cy.CreatedAt)
		if err != nil {
			if isUniqueViolation(err, "") {
				return circle.ErrCycleAlreadyActive
			}
			return fmt.Errorf("error creating cycle: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO payout_schedules (`+entryColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
		if err != nil {
			return fmt.Errorf("failed to prepare schedule insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range start.Entries {
			_, err := stmt.ExecContext(ctx, e.ID, e.CycleID, e.CircleID, e.UserID, e.Position, e.ScheduledDate, e.Amount, e.Status, e.UpdatedAt)
			if err != nil {
				return fmt.Errorf("error inserting schedule entry (position %d): %w", e.Position, err)
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE circles SET status = $1, current_cycle_id = $2 WHERE id = $3`,
			circle.StatusActive, cy.ID, start.CircleID)
		if err != nil {
			return fmt.Errorf("error activating circle: %w", err)
		}
		return nil
	})
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *PostgresCircleRepository) GetCycleByID(ctx context.Context, id uuid.UUID) (*circle.Cycle, error) {
	cy, err := scanCycle(r.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, circle.ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting cycle by ID: %w", err)
	}
	return cy, nil
}

func (r *PostgresCircleRepository) GetLatestCycle(ctx context.Context, circleID uuid.UUID) (*circle.Cycle, error) {
	cy, err := scanCycle(r.db.QueryRowContext(ctx, `SELECT `+cycleColumns+` FROM cycles
		WHERE circle_id = $1 ORDER BY cycle_number DESC LIMIT 1`, circleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, circle.ErrNoCycleYet
		}
		return nil, fmt.Errorf("error getting latest cycle: %w", err)
	}
	return cy, nil
}

func (r *PostgresCircleRepository) CountCycles(ctx context.Context, circleID uuid.UUID) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles WHERE circle_id = $1`, circleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting cycles: %w", err)
	}
	return count, nil
}

func (r *PostgresCircleRepository) CompleteCycle(ctx context.Context, cycleID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE cycles SET status = $1 WHERE id = $2 AND status = $3`,
		circle.CycleCompleted, cycleID, circle.CycleActive)
	if err != nil {
		return false, fmt.Errorf("error completing cycle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		if _, err := r.GetCycleByID(ctx, cycleID); err != nil {
			return false, err
		}
	}
	return n == 1, nil
}

func (r *PostgresCircleRepository) CompleteCircleIfSettled(ctx context.Context, circleID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE circles SET status = $1, current_cycle_id = NULL
		WHERE id = $2 AND status = $3
		AND NOT EXISTS (SELECT 1 FROM cycles WHERE circle_id = $2 AND status = $4)`,
		circle.StatusCompleted, circleID, circle.StatusActive, circle.CycleActive)
	if err != nil {
		return false, fmt.Errorf("error completing circle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresCircleRepository) GetEntry(ctx context.Context, id uuid.UUID) (*circle.ScheduleEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM payout_schedules WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, circle.ErrEntryNotFound
		}
		return nil, fmt.Errorf("error getting schedule entry: %w", err)
	}
	return e, nil
}

func (r *PostgresCircleRepository) ListEntriesByCycle(ctx context.Context, cycleID uuid.UUID) ([]*circle.ScheduleEntry, error) {
	return r.listEntries(ctx, `SELECT `+entryColumns+` FROM payout_schedules
		WHERE cycle_id = $1 ORDER BY position`, cycleID)
}

func (r *PostgresCircleRepository) ListPendingEntriesForUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*circle.ScheduleEntry, error) {
	return r.listEntries(ctx, `SELECT `+entryColumns+` FROM payout_schedules
		WHERE user_id = $1 AND status = $2 AND scheduled_date >= $3 AND scheduled_date < $4
		ORDER BY scheduled_date, position`, userID, circle.EntryPending, from, to)
}

func (r *PostgresCircleRepository) ListPendingEntriesBetween(ctx context.Context, from, to time.Time) ([]*circle.ScheduleEntry, error) {
	return r.listEntries(ctx, `SELECT `+entryColumns+` FROM payout_schedules
		WHERE status = $1 AND scheduled_date >= $2 AND scheduled_date < $3
		ORDER BY scheduled_date, position`, circle.EntryPending, from, to)
}

func (r *PostgresCircleRepository) listEntries(ctx context.Context, query string, args ...any) ([]*circle.ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing schedule entries: %w", err)
	}
	defer rows.Close()

	var entries []*circle.ScheduleEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule entries: %w", err)
	}
	return entries, nil
}

func (r *PostgresCircleRepository) TransitionEntry(ctx context.Context, id uuid.UUID, to circle.EntryStatus, at time.Time) (*circle.ScheduleEntry, bool, error) {
	var (
		entry   *circle.ScheduleEntry
		changed bool
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		e, err := scanEntry(tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM payout_schedules WHERE id = $1 FOR UPDATE`, id))
		if err == sql.ErrNoRows {
			return circle.ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("error locking schedule entry: %w", err)
		}
		entry = e
		if e.Status == to {
			return nil
		}
		if !e.Status.CanTransition(to) {
			return circle.ErrIllegalTransition
		}
		if _, err := tx.ExecContext(ctx, `UPDATE payout_schedules SET status = $1, updated_at = $2 WHERE id = $3`, to, at, id); err != nil {
			return fmt.Errorf("error updating schedule entry: %w", err)
		}
		e.Status = to
		e.UpdatedAt = at
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return entry, changed, nil
}

var _ circle.Repository = (*PostgresCircleRepository)(nil)

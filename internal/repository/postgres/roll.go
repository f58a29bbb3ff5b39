package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

type rollRepository struct {
	db *sql.DB
}

func NewRollRepository(db *sql.DB) repository.RollRepository {
	return &rollRepository{db: db}
}

// WithSession serializes all roll operations for a group. An advisory
// transaction lock on the group id covers the case where no session row
// exists yet (two concurrent Starts), and the session row itself is read
// FOR UPDATE so the whole transition is one atomic read-modify-write.
func (r *rollRepository) WithSession(ctx context.Context, groupID int64, fn func(tx repository.RollTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin roll transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, groupID); err != nil {
		return fmt.Errorf("failed to take roll lock: %w", err)
	}

	rt := &rollTx{ctx: ctx, tx: tx, groupID: groupID}
	session := &models.RollSession{}
	err = tx.QueryRowContext(ctx, `SELECT id, group_id, status, duration_minutes, current_step,
			previous_status, created_at, updated_at
		FROM roll_sessions WHERE group_id = $1 FOR UPDATE`, groupID).Scan(
		&session.ID, &session.GroupID, &session.Status, &session.Duration,
		&session.CurrentStep, &session.PreviousStatus, &session.CreatedAt, &session.UpdatedAt,
	)
	switch {
	case err == sql.ErrNoRows:
		rt.session = nil
	case err != nil:
		return fmt.Errorf("failed to load roll session: %w", err)
	default:
		rt.session = session
	}

	if err := fn(rt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit roll transaction: %w", err)
	}
	return nil
}

type rollTx struct {
	ctx     context.Context
	tx      *sql.Tx
	groupID int64
	session *models.RollSession
}

func (t *rollTx) Session() *models.RollSession {
	return t.session
}

func (t *rollTx) Reset(duration int) (*models.RollSession, error) {
	if _, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM roll_sessions WHERE group_id = $1`, t.groupID); err != nil {
		return nil, fmt.Errorf("failed to clear roll session: %w", err)
	}

	if duration < 1 {
		duration = 1
	}
	session := &models.RollSession{}
	err := t.tx.QueryRowContext(t.ctx, `INSERT INTO roll_sessions
			(group_id, status, duration_minutes, current_step, created_at, updated_at)
		VALUES ($1, 'active', $2, 1, NOW(), NOW())
		RETURNING id, group_id, status, duration_minutes, current_step,
			previous_status, created_at, updated_at`,
		t.groupID, duration).Scan(
		&session.ID, &session.GroupID, &session.Status, &session.Duration,
		&session.CurrentStep, &session.PreviousStatus, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create roll session: %w", err)
	}

	if _, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO roll_steps (session_id, step_number, is_active, created_at)
		VALUES ($1, 1, TRUE, NOW())`, session.ID); err != nil {
		return nil, fmt.Errorf("failed to create first roll step: %w", err)
	}

	t.session = session
	return session, nil
}

func (t *rollTx) SetStatus(status models.RollStatus, previous *models.RollStatus) error {
	if t.session == nil {
		return fmt.Errorf("no roll session loaded")
	}
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE roll_sessions SET status = $2, previous_status = $3, updated_at = NOW() WHERE id = $1`,
		t.session.ID, status, previous)
	if err != nil {
		return fmt.Errorf("failed to set roll status: %w", err)
	}
	t.session.Status = status
	t.session.PreviousStatus = previous
	return nil
}

func (t *rollTx) OpenStep(number int) error {
	if t.session == nil {
		return fmt.Errorf("no roll session loaded")
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`UPDATE roll_steps SET is_active = FALSE WHERE session_id = $1 AND is_active = TRUE`,
		t.session.ID); err != nil {
		return fmt.Errorf("failed to close stale steps: %w", err)
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO roll_steps (session_id, step_number, is_active, created_at)
		VALUES ($1, $2, TRUE, NOW())`, t.session.ID, number); err != nil {
		return fmt.Errorf("failed to open step %d: %w", number, err)
	}
	if _, err := t.tx.ExecContext(t.ctx,
		`UPDATE roll_sessions SET current_step = $2, updated_at = NOW() WHERE id = $1`,
		t.session.ID, number); err != nil {
		return fmt.Errorf("failed to advance current step: %w", err)
	}
	t.session.CurrentStep = number
	return nil
}

func (t *rollTx) CloseOpenStep() error {
	if t.session == nil {
		return fmt.Errorf("no roll session loaded")
	}
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE roll_steps SET is_active = FALSE WHERE session_id = $1 AND is_active = TRUE`,
		t.session.ID)
	if err != nil {
		return fmt.Errorf("failed to close open step: %w", err)
	}
	return nil
}

func (t *rollTx) ActiveStep() (*models.RollStep, error) {
	if t.session == nil {
		return nil, nil
	}
	step := &models.RollStep{}
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT id, session_id, step_number, is_active, created_at
		FROM roll_steps WHERE session_id = $1 AND is_active = TRUE`,
		t.session.ID).Scan(
		&step.ID, &step.SessionID, &step.StepNumber, &step.IsActive, &step.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active step: %w", err)
	}
	return step, nil
}

func (t *rollTx) UpsertUser(stepID, userID int64, name string, now time.Time) error {
	query := `INSERT INTO roll_step_users (step_id, user_id, name, message_count, last_active)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (step_id, user_id) DO UPDATE SET
			message_count = roll_step_users.message_count + 1,
			last_active = $4, name = $3`
	if _, err := t.tx.ExecContext(t.ctx, query, stepID, userID, name, now); err != nil {
		return fmt.Errorf("failed to upsert step user: %w", err)
	}
	return nil
}

func (t *rollTx) TouchUser(stepID, userID int64, name string, now time.Time) error {
	query := `UPDATE roll_step_users
		SET message_count = message_count + 1, last_active = $4, name = $3
		WHERE step_id = $1 AND user_id = $2`
	if _, err := t.tx.ExecContext(t.ctx, query, stepID, userID, name, now); err != nil {
		return fmt.Errorf("failed to touch step user: %w", err)
	}
	return nil
}

func (t *rollTx) RefreshAll(now time.Time) error {
	if t.session == nil {
		return fmt.Errorf("no roll session loaded")
	}
	query := `UPDATE roll_step_users SET last_active = $2
		WHERE step_id IN (SELECT id FROM roll_steps WHERE session_id = $1)`
	if _, err := t.tx.ExecContext(t.ctx, query, t.session.ID, now); err != nil {
		return fmt.Errorf("failed to refresh last active: %w", err)
	}
	return nil
}

func (t *rollTx) DeleteInactive(cutoff time.Time) (int, error) {
	if t.session == nil {
		return 0, fmt.Errorf("no roll session loaded")
	}
	result, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM roll_step_users
		WHERE step_id IN (SELECT id FROM roll_steps WHERE session_id = $1)
		AND last_active < $2`, t.session.ID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive users: %w", err)
	}

	// Prune closed steps that went empty; the open step survives even when
	// empty.
	if _, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM roll_steps
		WHERE session_id = $1 AND is_active = FALSE
		AND NOT EXISTS (SELECT 1 FROM roll_step_users WHERE step_id = roll_steps.id)`,
		t.session.ID); err != nil {
		return 0, fmt.Errorf("failed to prune empty steps: %w", err)
	}

	n, _ := result.RowsAffected()
	return int(n), nil
}

func (t *rollTx) CountStepUsers(stepID int64) (int, error) {
	var count int
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT COUNT(*) FROM roll_step_users WHERE step_id = $1`, stepID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count step users: %w", err)
	}
	return count, nil
}

func (t *rollTx) Steps() ([]*models.RollStep, error) {
	if t.session == nil {
		return nil, nil
	}
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT id, session_id, step_number, is_active, created_at
		FROM roll_steps WHERE session_id = $1 ORDER BY step_number`, t.session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []*models.RollStep
	for rows.Next() {
		step := &models.RollStep{}
		if err := rows.Scan(&step.ID, &step.SessionID, &step.StepNumber, &step.IsActive, &step.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, step := range steps {
		userRows, err := t.tx.QueryContext(t.ctx,
			`SELECT id, step_id, user_id, name, message_count, last_active
			FROM roll_step_users WHERE step_id = $1 ORDER BY message_count DESC`, step.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to query step users: %w", err)
		}
		for userRows.Next() {
			var u models.RollStepUser
			if err := userRows.Scan(&u.ID, &u.StepID, &u.UserID, &u.Name, &u.MessageCount, &u.LastActive); err != nil {
				userRows.Close()
				return nil, fmt.Errorf("failed to scan step user: %w", err)
			}
			step.Users = append(step.Users, u)
		}
		if err := userRows.Err(); err != nil {
			userRows.Close()
			return nil, err
		}
		userRows.Close()
	}
	return steps, nil
}

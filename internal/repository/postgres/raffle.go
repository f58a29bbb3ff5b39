package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

type raffleRepository struct {
	db *sql.DB
}

func NewRaffleRepository(db *sql.DB) repository.RaffleRepository {
	return &raffleRepository{db: db}
}

const raffleColumns = `id, group_id, creator_id, title, message, media_type, media_file_id,
	requirement_type, required_count, winner_count, status, message_id, pin_message,
	started_at, ended_at, created_at`

func scanRaffle(row *sql.Row) (*models.Raffle, error) {
	raffle := &models.Raffle{}
	err := row.Scan(
		&raffle.ID, &raffle.GroupID, &raffle.CreatorID, &raffle.Title, &raffle.Message,
		&raffle.MediaType, &raffle.MediaFileID, &raffle.Requirement, &raffle.RequiredCount,
		&raffle.WinnerCount, &raffle.Status, &raffle.MessageID, &raffle.PinMessage,
		&raffle.StartedAt, &raffle.EndedAt, &raffle.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return raffle, nil
}

// isUniqueViolation reports a lost uniqueness race (error code 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (r *raffleRepository) Publish(ctx context.Context, draft *models.RaffleDraft, now time.Time) (*models.Raffle, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin publish: %w", err)
	}
	defer tx.Rollback()

	// The partial unique index on (group_id) WHERE status = 'active'
	// enforces one-active-per-group at the transition itself.
	query := `INSERT INTO raffles (
			group_id, creator_id, title, message, media_type, media_file_id,
			requirement_type, required_count, winner_count, status, pin_message,
			started_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active', $10, $11, $11)
		RETURNING ` + raffleColumns
	raffle, err := scanRaffle(tx.QueryRowContext(ctx, query,
		draft.GroupID, draft.CreatorID, draft.Title, draft.Message,
		draft.MediaType, draft.MediaFileID, draft.Requirement, draft.RequiredCount,
		draft.WinnerCount, draft.PinMessage, now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to publish raffle: %w", err)
	}

	// Copy, not move: the draft keeps its channel list for the next run.
	_, err = tx.ExecContext(ctx, `INSERT INTO raffle_channels (raffle_id, channel_id, username, title)
		SELECT $1, channel_id, username, title FROM raffle_channels WHERE draft_id = $2`,
		raffle.ID, draft.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to copy raffle channels: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit publish: %w", err)
	}
	return raffle, nil
}

func (r *raffleRepository) GetByID(ctx context.Context, raffleID int64) (*models.Raffle, error) {
	query := `SELECT ` + raffleColumns + ` FROM raffles WHERE id = $1`
	raffle, err := scanRaffle(r.db.QueryRowContext(ctx, query, raffleID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get raffle: %w", err)
	}
	return raffle, nil
}

func (r *raffleRepository) GetActiveByGroup(ctx context.Context, groupID int64) (*models.Raffle, error) {
	query := `SELECT ` + raffleColumns + ` FROM raffles
		WHERE group_id = $1 AND status = 'active'`
	raffle, err := scanRaffle(r.db.QueryRowContext(ctx, query, groupID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active raffle: %w", err)
	}
	return raffle, nil
}

func (r *raffleRepository) GetActivePostPublish(ctx context.Context, groupID int64) (*models.Raffle, error) {
	query := `SELECT ` + raffleColumns + ` FROM raffles
		WHERE group_id = $1 AND status = 'active' AND requirement_type = 'post_publish'`
	raffle, err := scanRaffle(r.db.QueryRowContext(ctx, query, groupID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post-publish raffle: %w", err)
	}
	return raffle, nil
}

func (r *raffleRepository) SetMessageRef(ctx context.Context, raffleID, messageID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE raffles SET message_id = $2 WHERE id = $1`, raffleID, messageID)
	if err != nil {
		return fmt.Errorf("failed to set raffle message ref: %w", err)
	}
	return nil
}

func (r *raffleRepository) UpdateWinnerCount(ctx context.Context, raffleID int64, count int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE raffles SET winner_count = $2 WHERE id = $1`, raffleID, count)
	if err != nil {
		return fmt.Errorf("failed to update winner count: %w", err)
	}
	return nil
}

func (r *raffleRepository) Finish(ctx context.Context, raffleID int64, winners []models.RaffleWinner, now time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin finish: %w", err)
	}
	defer tx.Rollback()

	// Conditional flip makes Finish idempotent: a raffle that is already
	// ended (or was never published) matches zero rows and nothing is
	// written.
	result, err := tx.ExecContext(ctx,
		`UPDATE raffles SET status = 'ended', ended_at = $2 WHERE id = $1 AND status = 'active'`,
		raffleID, now)
	if err != nil {
		return false, fmt.Errorf("failed to end raffle: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return false, nil
	}

	for _, w := range winners {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO raffle_winners (raffle_id, user_id, username, first_name, won_at)
			VALUES ($1, $2, $3, $4, $5)`,
			raffleID, w.UserID, w.Username, w.FirstName, now)
		if err != nil {
			return false, fmt.Errorf("failed to insert raffle winner: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit finish: %w", err)
	}
	return true, nil
}

func (r *raffleRepository) ListChannels(ctx context.Context, raffleID int64) ([]*models.RaffleChannel, error) {
	query := `SELECT id, draft_id, raffle_id, channel_id, username, title
		FROM raffle_channels WHERE raffle_id = $1 ORDER BY id`
	return queryChannels(ctx, r.db, query, raffleID)
}

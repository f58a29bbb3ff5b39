package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

type draftRepository struct {
	db *sql.DB
}

func NewDraftRepository(db *sql.DB) repository.DraftRepository {
	return &draftRepository{db: db}
}

const draftColumns = `id, creator_id, group_id, title, message, media_type, media_file_id,
	requirement_type, required_count, winner_count, pin_message, created_at, updated_at`

func scanDraft(row *sql.Row) (*models.RaffleDraft, error) {
	draft := &models.RaffleDraft{}
	err := row.Scan(
		&draft.ID, &draft.CreatorID, &draft.GroupID, &draft.Title, &draft.Message,
		&draft.MediaType, &draft.MediaFileID, &draft.Requirement, &draft.RequiredCount,
		&draft.WinnerCount, &draft.PinMessage, &draft.CreatedAt, &draft.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return draft, nil
}

func (r *draftRepository) GetByCreator(ctx context.Context, creatorID, groupID int64) (*models.RaffleDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM raffle_drafts
		WHERE creator_id = $1 AND group_id = $2`
	draft, err := scanDraft(r.db.QueryRowContext(ctx, query, creatorID, groupID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return draft, nil
}

func (r *draftRepository) Create(ctx context.Context, creatorID, groupID int64) (*models.RaffleDraft, error) {
	query := `INSERT INTO raffle_drafts (creator_id, group_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (creator_id, group_id) DO UPDATE SET
			title = '', message = '', media_type = 'none', media_file_id = '',
			requirement_type = 'none', required_count = 0, winner_count = 1,
			pin_message = FALSE, updated_at = NOW()
		RETURNING ` + draftColumns
	draft, err := scanDraft(r.db.QueryRowContext(ctx, query, creatorID, groupID))
	if err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}
	return draft, nil
}

func (r *draftRepository) Update(ctx context.Context, draftID int64, u repository.DraftUpdate) (*models.RaffleDraft, error) {
	query := `UPDATE raffle_drafts SET
			title = COALESCE($2, title),
			message = COALESCE($3, message),
			media_type = COALESCE($4, media_type),
			media_file_id = COALESCE($5, media_file_id),
			requirement_type = COALESCE($6, requirement_type),
			required_count = COALESCE($7, required_count),
			winner_count = COALESCE($8, winner_count),
			pin_message = COALESCE($9, pin_message),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + draftColumns
	draft, err := scanDraft(r.db.QueryRowContext(ctx, query, draftID,
		u.Title, u.Message, u.MediaType, u.MediaFileID,
		u.Requirement, u.RequiredCount, u.WinnerCount, u.PinMessage,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}
	return draft, nil
}

func (r *draftRepository) AddChannel(ctx context.Context, draftID int64, ch *models.RaffleChannel) (bool, error) {
	query := `INSERT INTO raffle_channels (draft_id, channel_id, username, title)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (draft_id, channel_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, draftID, ch.ChannelID, ch.Username, ch.Title)
	if err != nil {
		return false, fmt.Errorf("failed to add draft channel: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (r *draftRepository) RemoveChannel(ctx context.Context, draftID, channelID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM raffle_channels WHERE draft_id = $1 AND channel_id = $2`,
		draftID, channelID)
	if err != nil {
		return fmt.Errorf("failed to remove draft channel: %w", err)
	}
	return nil
}

func (r *draftRepository) ListChannels(ctx context.Context, draftID int64) ([]*models.RaffleChannel, error) {
	query := `SELECT id, draft_id, raffle_id, channel_id, username, title
		FROM raffle_channels WHERE draft_id = $1 ORDER BY id`
	return queryChannels(ctx, r.db, query, draftID)
}

func (r *draftRepository) ClearChannels(ctx context.Context, draftID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM raffle_channels WHERE draft_id = $1`, draftID)
	if err != nil {
		return fmt.Errorf("failed to clear draft channels: %w", err)
	}
	return nil
}

func queryChannels(ctx context.Context, db *sql.DB, query string, arg int64) ([]*models.RaffleChannel, error) {
	rows, err := db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.RaffleChannel
	for rows.Next() {
		ch := &models.RaffleChannel{}
		if err := rows.Scan(&ch.ID, &ch.DraftID, &ch.RaffleID, &ch.ChannelID, &ch.Username, &ch.Title); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

type participantRepository struct {
	db *sql.DB
}

func NewParticipantRepository(db *sql.DB) repository.ParticipantRepository {
	return &participantRepository{db: db}
}

const participantColumns = `id, raffle_id, user_id, state, username, first_name,
	post_publish_count, joined_at, created_at`

func (p *participantRepository) Get(ctx context.Context, raffleID, userID int64) (*models.RaffleParticipant, error) {
	query := `SELECT ` + participantColumns + ` FROM raffle_participants
		WHERE raffle_id = $1 AND user_id = $2`
	participant := &models.RaffleParticipant{}
	err := p.db.QueryRowContext(ctx, query, raffleID, userID).Scan(
		&participant.ID, &participant.RaffleID, &participant.UserID, &participant.State,
		&participant.Username, &participant.FirstName, &participant.PostPublishCount,
		&participant.JoinedAt, &participant.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return participant, nil
}

// Promote inserts an entrant row, or upgrades a tracking row in place. The
// WHERE guard on the conflict branch means a row that is already an entrant
// is left untouched and reported back as such, so N concurrent joins for the
// same user converge on exactly one promotion.
func (p *participantRepository) Promote(ctx context.Context, raffleID, userID int64, username, firstName string, now time.Time) (bool, error) {
	query := `INSERT INTO raffle_participants (
			raffle_id, user_id, state, username, first_name, joined_at, created_at
		) VALUES ($1, $2, 'entrant', $3, $4, $5, $5)
		ON CONFLICT (raffle_id, user_id) DO UPDATE SET
			state = 'entrant', username = $3, first_name = $4, joined_at = $5
		WHERE raffle_participants.state = 'tracking'
		RETURNING id`
	var id int64
	err := p.db.QueryRowContext(ctx, query, raffleID, userID, username, firstName, now).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to promote participant: %w", err)
	}
	return true, nil
}

func (p *participantRepository) TrackPostPublish(ctx context.Context, raffleID, userID int64, username, firstName string) error {
	query := `INSERT INTO raffle_participants (
			raffle_id, user_id, state, username, first_name, post_publish_count, created_at
		) VALUES ($1, $2, 'tracking', $3, $4, 1, NOW())
		ON CONFLICT (raffle_id, user_id) DO UPDATE SET
			post_publish_count = raffle_participants.post_publish_count + 1`
	_, err := p.db.ExecContext(ctx, query, raffleID, userID, username, firstName)
	if err != nil {
		return fmt.Errorf("failed to track post-publish message: %w", err)
	}
	return nil
}

func (p *participantRepository) ListEntrants(ctx context.Context, raffleID int64) ([]*models.RaffleParticipant, error) {
	query := `SELECT ` + participantColumns + ` FROM raffle_participants
		WHERE raffle_id = $1 AND state = 'entrant' ORDER BY joined_at`
	rows, err := p.db.QueryContext(ctx, query, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entrants: %w", err)
	}
	defer rows.Close()

	var entrants []*models.RaffleParticipant
	for rows.Next() {
		participant := &models.RaffleParticipant{}
		if err := rows.Scan(
			&participant.ID, &participant.RaffleID, &participant.UserID, &participant.State,
			&participant.Username, &participant.FirstName, &participant.PostPublishCount,
			&participant.JoinedAt, &participant.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan entrant: %w", err)
		}
		entrants = append(entrants, participant)
	}
	return entrants, rows.Err()
}

func (p *participantRepository) CountEntrants(ctx context.Context, raffleID int64) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM raffle_participants WHERE raffle_id = $1 AND state = 'entrant'`,
		raffleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entrants: %w", err)
	}
	return count, nil
}

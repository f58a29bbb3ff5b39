package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

type counterRepository struct {
	db *sql.DB
}

func NewCounterRepository(db *sql.DB) repository.CounterRepository {
	return &counterRepository{db: db}
}

const counterColumns = `id, group_id, user_id, username, first_name, last_name,
	total_count, daily_count, weekly_count, monthly_count,
	last_message_at, last_daily_reset, last_weekly_reset, last_monthly_reset,
	created_at, updated_at`

// Apply is a single conditional upsert: a window whose last reset predates
// the window's boundary instant restarts at 1, otherwise it increments.
// Doing both decisions and the write in one statement keeps concurrent
// arrivals for the same user from losing updates.
func (r *counterRepository) Apply(ctx context.Context, u repository.CounterUpdate) (*models.MessageCounter, error) {
	query := `INSERT INTO message_counters (
			group_id, user_id, username, first_name, last_name,
			total_count, daily_count, weekly_count, monthly_count,
			last_message_at, last_daily_reset, last_weekly_reset, last_monthly_reset,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 1, 1, 1, 1, $6, $6, $6, $6, $6, $6)
		ON CONFLICT (group_id, user_id) DO UPDATE SET
			username = COALESCE(NULLIF($3, ''), message_counters.username),
			first_name = COALESCE(NULLIF($4, ''), message_counters.first_name),
			last_name = $5,
			total_count = message_counters.total_count + 1,
			daily_count = CASE WHEN message_counters.last_daily_reset < $7
				THEN 1 ELSE message_counters.daily_count + 1 END,
			weekly_count = CASE WHEN message_counters.last_weekly_reset < $8
				THEN 1 ELSE message_counters.weekly_count + 1 END,
			monthly_count = CASE WHEN message_counters.last_monthly_reset < $9
				THEN 1 ELSE message_counters.monthly_count + 1 END,
			last_daily_reset = CASE WHEN message_counters.last_daily_reset < $7
				THEN $6 ELSE message_counters.last_daily_reset END,
			last_weekly_reset = CASE WHEN message_counters.last_weekly_reset < $8
				THEN $6 ELSE message_counters.last_weekly_reset END,
			last_monthly_reset = CASE WHEN message_counters.last_monthly_reset < $9
				THEN $6 ELSE message_counters.last_monthly_reset END,
			last_message_at = $6,
			updated_at = $6
		RETURNING ` + counterColumns
	counter := &models.MessageCounter{}
	err := r.db.QueryRowContext(ctx, query,
		u.GroupID, u.UserID, u.Username, u.FirstName, u.LastName,
		u.Now, u.DayStart, u.WeekStart, u.MonthStart,
	).Scan(
		&counter.ID, &counter.GroupID, &counter.UserID,
		&counter.Username, &counter.FirstName, &counter.LastName,
		&counter.TotalCount, &counter.DailyCount, &counter.WeeklyCount, &counter.MonthlyCount,
		&counter.LastMessageAt, &counter.LastDailyReset, &counter.LastWeeklyReset, &counter.LastMonthlyReset,
		&counter.CreatedAt, &counter.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to apply message counter: %w", err)
	}
	return counter, nil
}

func (r *counterRepository) Get(ctx context.Context, groupID, userID int64) (*models.MessageCounter, error) {
	query := `SELECT ` + counterColumns + ` FROM message_counters
		WHERE group_id = $1 AND user_id = $2`
	counter := &models.MessageCounter{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&counter.ID, &counter.GroupID, &counter.UserID,
		&counter.Username, &counter.FirstName, &counter.LastName,
		&counter.TotalCount, &counter.DailyCount, &counter.WeeklyCount, &counter.MonthlyCount,
		&counter.LastMessageAt, &counter.LastDailyReset, &counter.LastWeeklyReset, &counter.LastMonthlyReset,
		&counter.CreatedAt, &counter.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get message counter: %w", err)
	}
	return counter, nil
}

func (r *counterRepository) ListByGroup(ctx context.Context, groupID int64) ([]*models.MessageCounter, error) {
	query := `SELECT ` + counterColumns + ` FROM message_counters
		WHERE group_id = $1 ORDER BY total_count DESC`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query message counters: %w", err)
	}
	defer rows.Close()

	var counters []*models.MessageCounter
	for rows.Next() {
		counter := &models.MessageCounter{}
		if err := rows.Scan(
			&counter.ID, &counter.GroupID, &counter.UserID,
			&counter.Username, &counter.FirstName, &counter.LastName,
			&counter.TotalCount, &counter.DailyCount, &counter.WeeklyCount, &counter.MonthlyCount,
			&counter.LastMessageAt, &counter.LastDailyReset, &counter.LastWeeklyReset, &counter.LastMonthlyReset,
			&counter.CreatedAt, &counter.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message counter: %w", err)
		}
		counters = append(counters, counter)
	}
	return counters, rows.Err()
}

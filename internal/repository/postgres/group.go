package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

type groupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) repository.GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Upsert(ctx context.Context, chatID int64, title string) (*models.Group, error) {
	query := `INSERT INTO groups (chat_id, title, is_active, created_at, updated_at)
		VALUES ($1, $2, TRUE, NOW(), NOW())
		ON CONFLICT (chat_id) DO UPDATE SET title = $2, is_active = TRUE, updated_at = NOW()
		RETURNING id, chat_id, title, is_active, created_at, updated_at`
	group := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, chatID, title).Scan(
		&group.ID, &group.ChatID, &group.Title, &group.IsActive,
		&group.CreatedAt, &group.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert group: %w", err)
	}
	return group, nil
}

func (r *groupRepository) GetByChatID(ctx context.Context, chatID int64) (*models.Group, error) {
	query := `SELECT id, chat_id, title, is_active, created_at, updated_at
		FROM groups WHERE chat_id = $1`
	group := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, chatID).Scan(
		&group.ID, &group.ChatID, &group.Title, &group.IsActive,
		&group.CreatedAt, &group.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

func (r *groupRepository) Deactivate(ctx context.Context, chatID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE groups SET is_active = FALSE, updated_at = NOW() WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("failed to deactivate group: %w", err)
	}
	return nil
}

func (r *groupRepository) ListAdminGroups(ctx context.Context, userID int64) ([]*models.Group, error) {
	query := `SELECT g.id, g.chat_id, g.title, g.is_active, g.created_at, g.updated_at
		FROM groups g
		JOIN group_admins a ON a.group_id = g.chat_id
		WHERE a.user_id = $1 AND a.is_admin = TRUE AND g.is_active = TRUE
		ORDER BY g.title`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(
			&group.ID, &group.ChatID, &group.Title, &group.IsActive,
			&group.CreatedAt, &group.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

type adminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) repository.AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) Upsert(ctx context.Context, groupChatID, userID int64, isAdmin bool, verifiedAt time.Time) error {
	query := `INSERT INTO group_admins (group_id, user_id, is_admin, verified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, user_id) DO UPDATE SET is_admin = $3, verified_at = $4`
	_, err := r.db.ExecContext(ctx, query, groupChatID, userID, isAdmin, verifiedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert group admin: %w", err)
	}
	return nil
}

package models

import "time"

// Group represents a Telegram group the bot has seen an admin interact with.
// Groups are never hard-deleted, only deactivated.
type Group struct {
	ID        int64     `json:"id" db:"id"`
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	Title     string    `json:"title" db:"title"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// GroupAdmin is the persisted materialization of an admin check against the
// Telegram API. The API stays authoritative; this row only bounds call volume
// and lets the private setup flow list a creator's groups.
type GroupAdmin struct {
	ID         int64     `json:"id" db:"id"`
	GroupID    int64     `json:"group_id" db:"group_id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	IsAdmin    bool      `json:"is_admin" db:"is_admin"`
	VerifiedAt time.Time `json:"verified_at" db:"verified_at"`
}

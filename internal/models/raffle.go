package models

import "time"

// RaffleStatus represents the lifecycle state of a raffle.
// draft -> active -> ended; ended is terminal and a draft can never
// skip straight to ended.
type RaffleStatus string

const (
	RaffleStatusDraft  RaffleStatus = "draft"
	RaffleStatusActive RaffleStatus = "active"
	RaffleStatusEnded  RaffleStatus = "ended"
)

// RequirementType gates raffle admission.
type RequirementType string

const (
	RequirementNone RequirementType = "none"
	// RequirementPostPublish counts only messages sent after the raffle
	// went live.
	RequirementPostPublish RequirementType = "post_publish"
	RequirementDaily       RequirementType = "daily"
	RequirementWeekly      RequirementType = "weekly"
	RequirementMonthly     RequirementType = "monthly"
	RequirementAllTime     RequirementType = "all_time"
)

// Window maps a time-window requirement onto the counter window it reads.
// Returns false for none and post_publish, which the counter does not serve.
func (r RequirementType) Window() (CounterWindow, bool) {
	switch r {
	case RequirementDaily:
		return WindowDaily, true
	case RequirementWeekly:
		return WindowWeekly, true
	case RequirementMonthly:
		return WindowMonthly, true
	case RequirementAllTime:
		return WindowAll, true
	default:
		return "", false
	}
}

// MediaType describes the optional attachment on the raffle announcement.
type MediaType string

const (
	MediaNone  MediaType = "none"
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
)

// Raffle is a single published giveaway. At most one raffle per group may be
// active at any time.
type Raffle struct {
	ID            int64           `json:"id" db:"id"`
	GroupID       int64           `json:"group_id" db:"group_id"`
	CreatorID     int64           `json:"creator_id" db:"creator_id"`
	Title         string          `json:"title" db:"title"`
	Message       string          `json:"message" db:"message"`
	MediaType     MediaType       `json:"media_type" db:"media_type"`
	MediaFileID   string          `json:"media_file_id" db:"media_file_id"`
	Requirement   RequirementType `json:"requirement_type" db:"requirement_type"`
	RequiredCount int             `json:"required_count" db:"required_count"`
	WinnerCount   int             `json:"winner_count" db:"winner_count"`
	Status        RaffleStatus    `json:"status" db:"status"`
	MessageID     *int64          `json:"message_id" db:"message_id"`
	PinMessage    bool            `json:"pin_message" db:"pin_message"`
	StartedAt     *time.Time      `json:"started_at" db:"started_at"`
	EndedAt       *time.Time      `json:"ended_at" db:"ended_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// IsActive returns true while the raffle accepts joins.
func (r *Raffle) IsActive() bool {
	return r.Status == RaffleStatusActive
}

// RaffleDraft is a creator's pending raffle configuration, assembled
// field-by-field in the private setup flow. Drafts persist after publishing
// so they can be reused as templates.
type RaffleDraft struct {
	ID            int64           `json:"id" db:"id"`
	CreatorID     int64           `json:"creator_id" db:"creator_id"`
	GroupID       int64           `json:"group_id" db:"group_id"`
	Title         string          `json:"title" db:"title"`
	Message       string          `json:"message" db:"message"`
	MediaType     MediaType       `json:"media_type" db:"media_type"`
	MediaFileID   string          `json:"media_file_id" db:"media_file_id"`
	Requirement   RequirementType `json:"requirement_type" db:"requirement_type"`
	RequiredCount int             `json:"required_count" db:"required_count"`
	WinnerCount   int             `json:"winner_count" db:"winner_count"`
	PinMessage    bool            `json:"pin_message" db:"pin_message"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// IsPublishable reports whether the draft carries the minimum fields a
// raffle needs.
func (d *RaffleDraft) IsPublishable() bool {
	return d.Title != "" && d.Message != ""
}

// RaffleChannel is a channel a user must be subscribed to before joining.
// A channel row belongs to either a draft or a published raffle; publishing
// copies the rows so the draft keeps its own list.
type RaffleChannel struct {
	ID        int64  `json:"id" db:"id"`
	DraftID   *int64 `json:"draft_id" db:"draft_id"`
	RaffleID  *int64 `json:"raffle_id" db:"raffle_id"`
	ChannelID int64  `json:"channel_id" db:"channel_id"`
	Username  string `json:"username" db:"username"`
	Title     string `json:"title" db:"title"`
}

// Label returns the name shown when telling a user which channel they are
// missing.
func (c *RaffleChannel) Label() string {
	if c.Username != "" {
		return "@" + c.Username
	}
	if c.Title != "" {
		return c.Title
	}
	return "channel"
}

// RaffleWinner is an append-only record written once at the ended transition.
type RaffleWinner struct {
	ID        int64     `json:"id" db:"id"`
	RaffleID  int64     `json:"raffle_id" db:"raffle_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Username  string    `json:"username" db:"username"`
	FirstName string    `json:"first_name" db:"first_name"`
	WonAt     time.Time `json:"won_at" db:"won_at"`
}

// Mention returns the winner's display handle.
func (w *RaffleWinner) Mention() string {
	if w.Username != "" {
		return "@" + w.Username
	}
	return w.FirstName
}

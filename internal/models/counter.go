package models

import "time"

// CounterWindow selects one of the rolling message-count windows.
type CounterWindow string

const (
	WindowDaily   CounterWindow = "daily"
	WindowWeekly  CounterWindow = "weekly"
	WindowMonthly CounterWindow = "monthly"
	WindowAll     CounterWindow = "all"
)

// ParseCounterWindow maps user input to a window, defaulting to daily.
func ParseCounterWindow(s string) CounterWindow {
	switch CounterWindow(s) {
	case WindowWeekly, WindowMonthly, WindowAll:
		return CounterWindow(s)
	default:
		return WindowDaily
	}
}

// MessageCounter holds the per-(group,user) running message tallies. The
// window counts reset on civil-calendar boundaries; TotalCount never resets.
// The row also carries the user's latest profile names, which makes the
// counter table double as the group roster.
type MessageCounter struct {
	ID               int64     `json:"id" db:"id"`
	GroupID          int64     `json:"group_id" db:"group_id"`
	UserID           int64     `json:"user_id" db:"user_id"`
	Username         string    `json:"username" db:"username"`
	FirstName        string    `json:"first_name" db:"first_name"`
	LastName         string    `json:"last_name" db:"last_name"`
	TotalCount       int       `json:"total_count" db:"total_count"`
	DailyCount       int       `json:"daily_count" db:"daily_count"`
	WeeklyCount      int       `json:"weekly_count" db:"weekly_count"`
	MonthlyCount     int       `json:"monthly_count" db:"monthly_count"`
	LastMessageAt    time.Time `json:"last_message_at" db:"last_message_at"`
	LastDailyReset   time.Time `json:"last_daily_reset" db:"last_daily_reset"`
	LastWeeklyReset  time.Time `json:"last_weekly_reset" db:"last_weekly_reset"`
	LastMonthlyReset time.Time `json:"last_monthly_reset" db:"last_monthly_reset"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Count returns the tally for the requested window.
func (c *MessageCounter) Count(window CounterWindow) int {
	switch window {
	case WindowWeekly:
		return c.WeeklyCount
	case WindowMonthly:
		return c.MonthlyCount
	case WindowAll:
		return c.TotalCount
	default:
		return c.DailyCount
	}
}

// Mention returns the best display handle for the user.
func (c *MessageCounter) Mention() string {
	if c.Username != "" {
		return "@" + c.Username
	}
	if c.FirstName != "" {
		return c.FirstName
	}
	return "User"
}

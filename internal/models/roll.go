package models

import "time"

// RollStatus is the state of a group's roll session.
//
// The locked variants freeze the entrant set while still letting existing
// participants refresh their activity. A break on top of a locked session
// becomes locked_break and unlocking from there restores break, not
// whatever preceded it: the lock nests on top of the break.
type RollStatus string

const (
	RollStopped     RollStatus = "stopped"
	RollActive      RollStatus = "active"
	RollPaused      RollStatus = "paused"
	RollBreak       RollStatus = "break"
	RollLocked      RollStatus = "locked"
	RollLockedBreak RollStatus = "locked_break"
)

// IsLocked reports whether new entrants are currently rejected.
func (s RollStatus) IsLocked() bool {
	return s == RollLocked || s == RollLockedBreak
}

// IsBreak reports whether the session is in a break variant.
func (s RollStatus) IsBreak() bool {
	return s == RollBreak || s == RollLockedBreak
}

// Tracks reports whether TrackMessage has any effect in this state.
func (s RollStatus) Tracks() bool {
	return s == RollActive || s == RollLocked || s == RollLockedBreak
}

// RollSession is the singleton per-group turn-taking session.
// PreviousStatus is non-nil only while in break/locked/locked_break and is
// cleared on every resume or unlock.
type RollSession struct {
	ID             int64       `json:"id" db:"id"`
	GroupID        int64       `json:"group_id" db:"group_id"`
	Status         RollStatus  `json:"status" db:"status"`
	Duration       int         `json:"duration_minutes" db:"duration_minutes"`
	CurrentStep    int         `json:"current_step" db:"current_step"`
	PreviousStatus *RollStatus `json:"previous_status" db:"previous_status"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// Timeout returns the inactivity timeout as a duration.
func (s *RollSession) Timeout() time.Duration {
	return time.Duration(s.Duration) * time.Minute
}

// RollStep is one round within a session. At most one step per session is
// active at a time.
type RollStep struct {
	ID         int64          `json:"id" db:"id"`
	SessionID  int64          `json:"session_id" db:"session_id"`
	StepNumber int            `json:"step_number" db:"step_number"`
	IsActive   bool           `json:"is_active" db:"is_active"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	Users      []RollStepUser `json:"users,omitempty"`
}

// RollStepUser tracks one user's activity within a step. Rows idle beyond
// the session timeout are purged by the inactivity sweep.
type RollStepUser struct {
	ID           int64     `json:"id" db:"id"`
	StepID       int64     `json:"step_id" db:"step_id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	Name         string    `json:"name" db:"name"`
	MessageCount int       `json:"message_count" db:"message_count"`
	LastActive   time.Time `json:"last_active" db:"last_active"`
}

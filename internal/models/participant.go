package models

import "time"

// ParticipantState is the explicit tag distinguishing a row that only
// accumulates a post-publish message count from a user who has actually
// entered the raffle.
type ParticipantState string

const (
	// ParticipantTracking rows exist purely to count messages sent after
	// publish, before the user has satisfied eligibility and joined.
	ParticipantTracking ParticipantState = "tracking"
	// ParticipantEntrant rows are real entries eligible to win.
	ParticipantEntrant ParticipantState = "entrant"
)

// RaffleParticipant is the unique (raffle,user) row. It starts in the
// tracking state and is promoted to entrant by a successful join; the
// promotion is one-way.
type RaffleParticipant struct {
	ID               int64            `json:"id" db:"id"`
	RaffleID         int64            `json:"raffle_id" db:"raffle_id"`
	UserID           int64            `json:"user_id" db:"user_id"`
	State            ParticipantState `json:"state" db:"state"`
	Username         string           `json:"username" db:"username"`
	FirstName        string           `json:"first_name" db:"first_name"`
	PostPublishCount int              `json:"post_publish_count" db:"post_publish_count"`
	JoinedAt         *time.Time       `json:"joined_at" db:"joined_at"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// IsEntrant returns true once the user has actually entered.
func (p *RaffleParticipant) IsEntrant() bool {
	return p.State == ParticipantEntrant
}

// Mention returns the participant's display handle.
func (p *RaffleParticipant) Mention() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	if p.FirstName != "" {
		return p.FirstName
	}
	return "User"
}

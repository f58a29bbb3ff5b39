package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
)

// ErrAlreadyExists is returned when an insert loses a uniqueness race.
// Postgres implementations translate unique-violation errors to this value
// so callers can map it to an "already exists" outcome instead of leaking
// a raw driver error.
var ErrAlreadyExists = errors.New("already exists")

// GroupRepository defines the interface for group registration
type GroupRepository interface {
	// Upsert registers a group or refreshes its title, reactivating it if
	// it was deactivated.
	Upsert(ctx context.Context, chatID int64, title string) (*models.Group, error)
	GetByChatID(ctx context.Context, chatID int64) (*models.Group, error)
	Deactivate(ctx context.Context, chatID int64) error
	// ListAdminGroups returns active groups where the user has a verified
	// admin materialization.
	ListAdminGroups(ctx context.Context, userID int64) ([]*models.Group, error)
}

// AdminRepository persists the outcome of fresh admin checks
type AdminRepository interface {
	Upsert(ctx context.Context, groupChatID, userID int64, isAdmin bool, verifiedAt time.Time) error
}

// CounterUpdate carries one message arrival plus the civil-calendar window
// boundaries the service computed for it. A window whose last reset predates
// its boundary instant is reset to zero before the increment, all in a
// single write.
type CounterUpdate struct {
	GroupID    int64
	UserID     int64
	Username   string
	FirstName  string
	LastName   string
	Now        time.Time
	DayStart   time.Time
	WeekStart  time.Time
	MonthStart time.Time
}

// CounterRepository defines the interface for message-count operations
type CounterRepository interface {
	// Apply records one message atomically: window resets (when due) and
	// the increment land in the same statement. Returns the updated row.
	Apply(ctx context.Context, u CounterUpdate) (*models.MessageCounter, error)
	// Get returns the counter row, or nil if the user has never written.
	Get(ctx context.Context, groupID, userID int64) (*models.MessageCounter, error)
	// ListByGroup returns every counter row for a group ordered by total
	// count descending. This is the group roster.
	ListByGroup(ctx context.Context, groupID int64) ([]*models.MessageCounter, error)
}

// DraftUpdate is the typed partial update for a raffle draft. Only non-nil
// fields are written; the setup flow mutates drafts one field at a time.
type DraftUpdate struct {
	Title         *string
	Message       *string
	MediaType     *models.MediaType
	MediaFileID   *string
	Requirement   *models.RequirementType
	RequiredCount *int
	WinnerCount   *int
	PinMessage    *bool
}

// DraftRepository defines the interface for raffle draft operations
type DraftRepository interface {
	// GetByCreator returns the creator's draft for the group, or nil.
	GetByCreator(ctx context.Context, creatorID, groupID int64) (*models.RaffleDraft, error)
	// Create makes a fresh blank draft, replacing any existing one for the
	// same (creator, group) pair.
	Create(ctx context.Context, creatorID, groupID int64) (*models.RaffleDraft, error)
	Update(ctx context.Context, draftID int64, u DraftUpdate) (*models.RaffleDraft, error)
	// AddChannel attaches a required channel; returns false if it is
	// already attached.
	AddChannel(ctx context.Context, draftID int64, ch *models.RaffleChannel) (bool, error)
	RemoveChannel(ctx context.Context, draftID, channelID int64) error
	ListChannels(ctx context.Context, draftID int64) ([]*models.RaffleChannel, error)
	ClearChannels(ctx context.Context, draftID int64) error
}

// RaffleRepository defines the interface for published raffle operations
type RaffleRepository interface {
	// Publish creates an active raffle from the draft and copies the
	// draft's channel list. The draft itself is left untouched. Returns
	// ErrAlreadyExists if the group already has an active raffle.
	Publish(ctx context.Context, draft *models.RaffleDraft, now time.Time) (*models.Raffle, error)
	GetByID(ctx context.Context, raffleID int64) (*models.Raffle, error)
	GetActiveByGroup(ctx context.Context, groupID int64) (*models.Raffle, error)
	// GetActivePostPublish returns the group's active raffle only when its
	// requirement is post_publish, or nil.
	GetActivePostPublish(ctx context.Context, groupID int64) (*models.Raffle, error)
	SetMessageRef(ctx context.Context, raffleID, messageID int64) error
	UpdateWinnerCount(ctx context.Context, raffleID int64, count int) error
	// Finish flips the raffle to ended and persists winners in one
	// transaction. Returns false without writing anything when the raffle
	// is not active (already ended, still a draft, or missing).
	Finish(ctx context.Context, raffleID int64, winners []models.RaffleWinner, now time.Time) (bool, error)
	ListChannels(ctx context.Context, raffleID int64) ([]*models.RaffleChannel, error)
}

// ParticipantRepository defines the interface for raffle participant rows
type ParticipantRepository interface {
	Get(ctx context.Context, raffleID, userID int64) (*models.RaffleParticipant, error)
	// Promote turns a tracking row into an entrant, inserting fresh if no
	// row exists. Returns false when the user is already an entrant; the
	// check and the write are one atomic statement so concurrent duplicate
	// joins yield exactly one entrant.
	Promote(ctx context.Context, raffleID, userID int64, username, firstName string, now time.Time) (bool, error)
	// TrackPostPublish increments the post-publish message count, creating
	// a tracking row if none exists.
	TrackPostPublish(ctx context.Context, raffleID, userID int64, username, firstName string) error
	ListEntrants(ctx context.Context, raffleID int64) ([]*models.RaffleParticipant, error)
	CountEntrants(ctx context.Context, raffleID int64) (int, error)
}

// RollTx exposes the operations available while a session's row lock is
// held. Every roll transition runs entirely inside one WithSession call so
// concurrent operations on the same group serialize at the store.
type RollTx interface {
	// Session returns the locked session, or nil when the group has none.
	Session() *models.RollSession
	// Reset wipes any prior session and starts a new one at step 1, active.
	Reset(duration int) (*models.RollSession, error)
	SetStatus(status models.RollStatus, previous *models.RollStatus) error
	// OpenStep closes any stale open step, creates the numbered step as
	// active and records it as the session's current step.
	OpenStep(number int) error
	CloseOpenStep() error
	// ActiveStep returns the currently open step, or nil.
	ActiveStep() (*models.RollStep, error)
	// UpsertUser inserts with count=1 or atomically increments and
	// refreshes an existing row.
	UpsertUser(stepID, userID int64, name string, now time.Time) error
	// TouchUser updates an existing row only; unknown users are ignored.
	TouchUser(stepID, userID int64, name string, now time.Time) error
	// RefreshAll stamps last_active for every tracked user in the session.
	RefreshAll(now time.Time) error
	// DeleteInactive purges users idle since before the cutoff, then prunes
	// closed steps left empty. The open step is never pruned.
	DeleteInactive(cutoff time.Time) (int, error)
	CountStepUsers(stepID int64) (int, error)
	// Steps returns all steps with their users, ordered by step number,
	// users by message count descending.
	Steps() ([]*models.RollStep, error)
}

// RollRepository defines the interface for roll session state
type RollRepository interface {
	// WithSession runs fn while holding the group's session row lock.
	// fn's returned error aborts the transaction.
	WithSession(ctx context.Context, groupID int64, fn func(tx RollTx) error) error
}

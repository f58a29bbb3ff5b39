package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

// MembershipStatus mirrors the chat-member states the Telegram gateway can
// report.
type MembershipStatus string

const (
	MemberStatusMember        MembershipStatus = "member"
	MemberStatusAdministrator MembershipStatus = "administrator"
	MemberStatusOwner         MembershipStatus = "creator"
	MemberStatusRestricted    MembershipStatus = "restricted"
	MemberStatusLeft          MembershipStatus = "left"
	MemberStatusKicked        MembershipStatus = "kicked"
)

// IsMember reports whether the status counts as being inside the chat.
func (s MembershipStatus) IsMember() bool {
	return s != MemberStatusLeft && s != MemberStatusKicked
}

// IsAdmin reports whether the status carries admin rights.
func (s MembershipStatus) IsAdmin() bool {
	return s == MemberStatusAdministrator || s == MemberStatusOwner
}

// MembershipOracle resolves a user's membership in a chat against the
// gateway. Calls are fallible; callers treat failure as not verified.
type MembershipOracle interface {
	GetMembership(ctx context.Context, chatID, userID int64) (MembershipStatus, error)
}

// SendFunc delivers one outbound message to a chat. Used by the tagging
// broadcaster so the service never depends on the gateway directly.
type SendFunc func(chatID int64, text string) error

// Service is the central business logic layer that holds all repositories
// and implements the counter, raffle, roll, admin-cache and tagging
// components.
type Service struct {
	db     *sql.DB
	logger *logrus.Logger
	loc    *time.Location

	Groups       repository.GroupRepository
	Admins       repository.AdminRepository
	Counters     repository.CounterRepository
	Drafts       repository.DraftRepository
	Raffles      repository.RaffleRepository
	Participants repository.ParticipantRepository
	Rolls        repository.RollRepository

	oracle   MembershipOracle
	adminTTL time.Duration

	adminMu    sync.RWMutex
	adminCache map[adminKey]adminEntry

	tagMu   sync.Mutex
	tagRuns map[int64]*tagRun
}

// New creates a new Service with all required dependencies. loc fixes the
// civil calendar used for counter rollovers; adminTTL bounds admin-check
// caching.
func New(db *sql.DB, logger *logrus.Logger, loc *time.Location, adminTTL time.Duration,
	oracle MembershipOracle,
	groups repository.GroupRepository,
	admins repository.AdminRepository,
	counters repository.CounterRepository,
	drafts repository.DraftRepository,
	raffles repository.RaffleRepository,
	participants repository.ParticipantRepository,
	rolls repository.RollRepository,
) *Service {
	return &Service{
		db: db, logger: logger, loc: loc,
		Groups: groups, Admins: admins, Counters: counters,
		Drafts: drafts, Raffles: raffles, Participants: participants,
		Rolls: rolls,
		oracle: oracle, adminTTL: adminTTL,
		adminCache: make(map[adminKey]adminEntry),
		tagRuns:    make(map[int64]*tagRun),
	}
}

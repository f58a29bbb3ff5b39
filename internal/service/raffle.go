package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

// PublishStatus is the typed outcome of a publish attempt.
type PublishStatus int

const (
	PublishOK PublishStatus = iota
	// PublishNoDraft means the creator has no draft for the group.
	PublishNoDraft
	// PublishDraftIncomplete means the draft is missing title or message.
	PublishDraftIncomplete
	// PublishAlreadyActive means the group already has an active raffle.
	PublishAlreadyActive
)

// PublishResult carries the outcome and, on success, the published raffle.
type PublishResult struct {
	Status PublishStatus
	Raffle *models.Raffle
}

// JoinStatus is the typed outcome of a join attempt. Each eligibility gate
// short-circuits with its own status so callers can render the right
// message.
type JoinStatus int

const (
	JoinOK JoinStatus = iota
	JoinRaffleNotFound
	JoinRaffleNotActive
	JoinAlreadyEntered
	JoinNotChannelMember
	JoinRequirementUnmet
	JoinPostPublishUnmet
)

// JoinResult reports the join outcome plus the detail each failure needs:
// which channels are missing, or the required versus current message count.
type JoinResult struct {
	Status          JoinStatus
	MissingChannels []string
	Required        int
	Current         int
}

// FinishStatus is the typed outcome of a finish call.
type FinishStatus int

const (
	FinishOK FinishStatus = iota
	// FinishEveryoneWins means fewer entrants than requested winners; all
	// entrants won.
	FinishEveryoneWins
	// FinishNoEntrants means the raffle ended with an empty winner list.
	FinishNoEntrants
	FinishAlreadyEnded
	FinishNotFound
	// FinishNotActive means the raffle is still a draft.
	FinishNotActive
)

// FinishResult carries the winners selected at the ended transition.
type FinishResult struct {
	Status    FinishStatus
	Winners   []models.RaffleWinner
	Entrants  int
	Requested int
}

// EnsureDraft returns the creator's draft for the group, creating a blank
// one if none exists.
func (s *Service) EnsureDraft(ctx context.Context, creatorID, groupID int64) (*models.RaffleDraft, error) {
	draft, err := s.Drafts.GetByCreator(ctx, creatorID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup draft (creator=%d group=%d): %w", creatorID, groupID, err)
	}
	if draft != nil {
		return draft, nil
	}
	draft, err = s.Drafts.Create(ctx, creatorID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to create draft (creator=%d group=%d): %w", creatorID, groupID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"creator_id": creatorID,
		"group_id":   groupID,
		"draft_id":   draft.ID,
	}).Info("Created raffle draft")
	return draft, nil
}

// UpdateDraft applies a typed partial update to the creator's draft.
// Returns nil if the creator has no draft for the group.
func (s *Service) UpdateDraft(ctx context.Context, creatorID, groupID int64, u repository.DraftUpdate) (*models.RaffleDraft, error) {
	draft, err := s.Drafts.GetByCreator(ctx, creatorID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup draft (creator=%d group=%d): %w", creatorID, groupID, err)
	}
	if draft == nil {
		return nil, nil
	}
	updated, err := s.Drafts.Update(ctx, draft.ID, u)
	if err != nil {
		return nil, fmt.Errorf("failed to update draft %d: %w", draft.ID, err)
	}
	return updated, nil
}

// Publish turns the creator's draft into the group's active raffle. The
// draft and its channel list are retained as a template for the next run.
func (s *Service) Publish(ctx context.Context, creatorID, groupID int64, now time.Time) (PublishResult, error) {
	draft, err := s.Drafts.GetByCreator(ctx, creatorID, groupID)
	if err != nil {
		return PublishResult{}, fmt.Errorf("failed to lookup draft (creator=%d group=%d): %w", creatorID, groupID, err)
	}
	if draft == nil {
		return PublishResult{Status: PublishNoDraft}, nil
	}
	if !draft.IsPublishable() {
		return PublishResult{Status: PublishDraftIncomplete}, nil
	}

	raffle, err := s.Raffles.Publish(ctx, draft, now)
	if err != nil {
		if err == repository.ErrAlreadyExists {
			return PublishResult{Status: PublishAlreadyActive}, nil
		}
		return PublishResult{}, fmt.Errorf("failed to publish raffle (group=%d): %w", groupID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"group_id":  groupID,
		"raffle_id": raffle.ID,
		"winners":   raffle.WinnerCount,
	}).Info("Raffle published")
	return PublishResult{Status: PublishOK, Raffle: raffle}, nil
}

// Join runs the admission gates in order; the first failing gate decides
// the outcome. Channel membership is re-checked live on every attempt, and
// an oracle failure counts as not-a-member.
func (s *Service) Join(ctx context.Context, raffleID, userID int64, username, firstName string, now time.Time) (JoinResult, error) {
	raffle, err := s.Raffles.GetByID(ctx, raffleID)
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to get raffle %d: %w", raffleID, err)
	}
	if raffle == nil {
		return JoinResult{Status: JoinRaffleNotFound}, nil
	}
	if !raffle.IsActive() {
		return JoinResult{Status: JoinRaffleNotActive}, nil
	}

	participant, err := s.Participants.Get(ctx, raffleID, userID)
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to get participant (raffle=%d user=%d): %w", raffleID, userID, err)
	}
	if participant != nil && participant.IsEntrant() {
		return JoinResult{Status: JoinAlreadyEntered}, nil
	}

	missing, err := s.missingChannels(ctx, raffleID, userID)
	if err != nil {
		return JoinResult{}, err
	}
	if len(missing) > 0 {
		return JoinResult{Status: JoinNotChannelMember, MissingChannels: missing}, nil
	}

	if raffle.Requirement != models.RequirementNone {
		required := raffle.RequiredCount
		if raffle.Requirement == models.RequirementPostPublish {
			current := 0
			if participant != nil {
				current = participant.PostPublishCount
			}
			if current < required {
				return JoinResult{Status: JoinPostPublishUnmet, Required: required, Current: current}, nil
			}
		} else if window, ok := raffle.Requirement.Window(); ok {
			current, err := s.GetCount(ctx, raffle.GroupID, userID, window)
			if err != nil {
				return JoinResult{}, err
			}
			if current < required {
				return JoinResult{Status: JoinRequirementUnmet, Required: required, Current: current}, nil
			}
		}
	}

	promoted, err := s.Participants.Promote(ctx, raffleID, userID, username, firstName, now)
	if err != nil {
		return JoinResult{}, fmt.Errorf("failed to promote participant (raffle=%d user=%d): %w", raffleID, userID, err)
	}
	if !promoted {
		// Lost a race against a concurrent join by the same user.
		return JoinResult{Status: JoinAlreadyEntered}, nil
	}

	s.logger.WithFields(logrus.Fields{
		"raffle_id": raffleID,
		"user_id":   userID,
	}).Info("Raffle join accepted")
	return JoinResult{Status: JoinOK}, nil
}

// missingChannels re-checks the raffle's required channels and returns the
// labels of channels the user is not inside. Oracle errors fail closed: an
// unverifiable channel counts as missing.
func (s *Service) missingChannels(ctx context.Context, raffleID, userID int64) ([]string, error) {
	channels, err := s.Raffles.ListChannels(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list raffle channels (raffle=%d): %w", raffleID, err)
	}
	if len(channels) == 0 {
		return nil, nil
	}

	var missing []string
	var checkErrs *multierror.Error
	for _, ch := range channels {
		status, err := s.oracle.GetMembership(ctx, ch.ChannelID, userID)
		if err != nil {
			checkErrs = multierror.Append(checkErrs, fmt.Errorf("channel %d: %w", ch.ChannelID, err))
			missing = append(missing, ch.Label())
			continue
		}
		if !status.IsMember() {
			missing = append(missing, ch.Label())
		}
	}
	if err := checkErrs.ErrorOrNil(); err != nil {
		s.logger.WithFields(logrus.Fields{
			"raffle_id": raffleID,
			"user_id":   userID,
		}).Warnf("Membership checks failed closed: %v", err)
	}
	return missing, nil
}

// TrackPostPublish increments the user's post-publish message count when the
// group has an active post_publish raffle, creating a tracking row on first
// message. Users accumulate qualifying messages before they ever try to
// join.
func (s *Service) TrackPostPublish(ctx context.Context, groupID, userID int64, username, firstName string) error {
	raffle, err := s.Raffles.GetActivePostPublish(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to lookup post-publish raffle (group=%d): %w", groupID, err)
	}
	if raffle == nil {
		return nil
	}
	if err := s.Participants.TrackPostPublish(ctx, raffle.ID, userID, username, firstName); err != nil {
		return fmt.Errorf("failed to track post-publish message (raffle=%d user=%d): %w", raffle.ID, userID, err)
	}
	return nil
}

// Finish ends the raffle and draws winners uniformly without replacement
// from the true entrants. winnerCount overrides the stored count when
// positive. Finishing an already-ended raffle is a reported no-op.
func (s *Service) Finish(ctx context.Context, raffleID int64, winnerCount int, now time.Time) (FinishResult, error) {
	raffle, err := s.Raffles.GetByID(ctx, raffleID)
	if err != nil {
		return FinishResult{}, fmt.Errorf("failed to get raffle %d: %w", raffleID, err)
	}
	if raffle == nil {
		return FinishResult{Status: FinishNotFound}, nil
	}
	switch raffle.Status {
	case models.RaffleStatusEnded:
		return FinishResult{Status: FinishAlreadyEnded}, nil
	case models.RaffleStatusDraft:
		return FinishResult{Status: FinishNotActive}, nil
	}

	if winnerCount <= 0 {
		winnerCount = raffle.WinnerCount
	}

	entrants, err := s.Participants.ListEntrants(ctx, raffleID)
	if err != nil {
		return FinishResult{}, fmt.Errorf("failed to list entrants (raffle=%d): %w", raffleID, err)
	}

	winners := drawWinners(entrants, winnerCount, now)

	flipped, err := s.Raffles.Finish(ctx, raffleID, winners, now)
	if err != nil {
		return FinishResult{}, fmt.Errorf("failed to finish raffle %d: %w", raffleID, err)
	}
	if !flipped {
		// Another finish won the race; nothing was written here.
		return FinishResult{Status: FinishAlreadyEnded}, nil
	}

	result := FinishResult{
		Status:    FinishOK,
		Winners:   winners,
		Entrants:  len(entrants),
		Requested: winnerCount,
	}
	switch {
	case len(entrants) == 0:
		result.Status = FinishNoEntrants
	case len(entrants) < winnerCount:
		result.Status = FinishEveryoneWins
	}

	s.logger.WithFields(logrus.Fields{
		"raffle_id": raffleID,
		"entrants":  len(entrants),
		"winners":   len(winners),
	}).Info("Raffle finished")
	return result, nil
}

// drawWinners selects up to count entrants uniformly without replacement.
func drawWinners(entrants []*models.RaffleParticipant, count int, now time.Time) []models.RaffleWinner {
	if len(entrants) == 0 {
		return nil
	}
	pool := make([]*models.RaffleParticipant, len(entrants))
	copy(pool, entrants)
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	if count > len(pool) {
		count = len(pool)
	}
	winners := make([]models.RaffleWinner, 0, count)
	for _, p := range pool[:count] {
		winners = append(winners, models.RaffleWinner{
			RaffleID:  p.RaffleID,
			UserID:    p.UserID,
			Username:  p.Username,
			FirstName: p.FirstName,
			WonAt:     now,
		})
	}
	return winners
}

// UpdateWinnerCount changes the stored winner count of a live raffle. It is
// a pure configuration change for the eventual finish; false means the
// raffle is not active.
func (s *Service) UpdateWinnerCount(ctx context.Context, raffleID int64, count int) (bool, error) {
	raffle, err := s.Raffles.GetByID(ctx, raffleID)
	if err != nil {
		return false, fmt.Errorf("failed to get raffle %d: %w", raffleID, err)
	}
	if raffle == nil || !raffle.IsActive() || count < 1 {
		return false, nil
	}
	if err := s.Raffles.UpdateWinnerCount(ctx, raffleID, count); err != nil {
		return false, err
	}
	return true, nil
}

// ActiveRaffle returns the group's active raffle, or nil.
func (s *Service) ActiveRaffle(ctx context.Context, groupID int64) (*models.Raffle, error) {
	raffle, err := s.Raffles.GetActiveByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active raffle (group=%d): %w", groupID, err)
	}
	return raffle, nil
}

// SetPublishedMessage records the announcement message id after the gateway
// send succeeds.
func (s *Service) SetPublishedMessage(ctx context.Context, raffleID, messageID int64) error {
	if err := s.Raffles.SetMessageRef(ctx, raffleID, messageID); err != nil {
		return fmt.Errorf("failed to set raffle message (raffle=%d): %w", raffleID, err)
	}
	return nil
}

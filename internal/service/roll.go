package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

// RollOutcome is the typed result of a roll transition. A violated
// precondition is a reported no-op, never an error.
type RollOutcome int

const (
	RollOK RollOutcome = iota
	// RollNoSession means the group has no session, or it is stopped.
	RollNoSession
	RollAlreadyLocked
	RollNotLocked
	RollAlreadyOnBreak
	// RollNotResumable means resume was called outside break, locked_break
	// or paused.
	RollNotResumable
	// RollNoOpenStep means save was called with no step open.
	RollNoOpenStep
	// RollEmptyStep means the open step has no tracked users left after the
	// inactivity sweep.
	RollEmptyStep
)

// RollResult reports a transition's outcome, the resulting status, the step
// number it touched, how many idle users the sweep evicted, and — for stop
// and status listings — the step roster.
type RollResult struct {
	Outcome RollOutcome
	Status  models.RollStatus
	Step    int
	Evicted int
	Steps   []*models.RollStep
}

// StartRoll clears any prior session for the group and opens step 1 active,
// with the given inactivity timeout in minutes.
func (s *Service) StartRoll(ctx context.Context, groupID int64, duration int) (*models.RollSession, error) {
	var session *models.RollSession
	err := s.Rolls.WithSession(ctx, groupID, func(tx repository.RollTx) error {
		var err error
		session, err = tx.Reset(duration)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start roll (group=%d): %w", groupID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"group_id": groupID,
		"duration": session.Duration,
	}).Info("Roll started")
	return session, nil
}

// SaveStep closes the open step and pauses the session. The inactivity
// sweep runs first, so a step whose users all went idle reports empty
// rather than saving a stale roster.
func (s *Service) SaveStep(ctx context.Context, groupID int64, now time.Time) (RollResult, error) {
	var result RollResult
	err := s.Rolls.WithSession(ctx, groupID, func(tx repository.RollTx) error {
		session := tx.Session()
		if session == nil || session.Status == models.RollStopped {
			result.Outcome = RollNoSession
			return nil
		}

		step, err := tx.ActiveStep()
		if err != nil {
			return err
		}
		if step == nil {
			result.Outcome = RollNoOpenStep
			return nil
		}

		if session.Status.Tracks() {
			if result.Evicted, err = tx.DeleteInactive(now.Add(-session.Timeout())); err != nil {
				return err
			}
		}

		count, err := tx.CountStepUsers(step.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			result.Outcome = RollEmptyStep
			return nil
		}

		if err := tx.CloseOpenStep(); err != nil {
			return err
		}
		if err := tx.SetStatus(models.RollPaused, nil); err != nil {
			return err
		}
		result.Outcome = RollOK
		result.Status = models.RollPaused
		result.Step = step.StepNumber
		return nil
	})
	if err != nil {
		return RollResult{}, fmt.Errorf("failed to save roll step (group=%d): %w", groupID, err)
	}
	return result, nil
}

// StartBreak suspends the session. From locked it nests into locked_break
// without touching previous_status; from active/paused it remembers the
// current status. Every tracked user's activity stamp is refreshed so break
// time never counts against the inactivity timer.
func (s *Service) StartBreak(ctx context.Context, groupID int64, now time.Time) (RollResult, error) {
	var result RollResult
	err := s.Rolls.WithSession(ctx, groupID, func(tx repository.RollTx) error {
		session := tx.Session()
		if session == nil || session.Status == models.RollStopped {
			result.Outcome = RollNoSession
			return nil
		}
		if session.Status.IsBreak() {
			result.Outcome = RollAlreadyOnBreak
			result.Status = session.Status
			return nil
		}

		if session.Status == models.RollLocked {
			// The lock's own previous_status stays underneath the break.
			if err := tx.SetStatus(models.RollLockedBreak, session.PreviousStatus); err != nil {
				return err
			}
			result.Status = models.RollLockedBreak
		} else {
			prev := session.Status
			if err := tx.SetStatus(models.RollBreak, &prev); err != nil {
				return err
			}
			result.Status = models.RollBreak
		}

		if err := tx.RefreshAll(now); err != nil {
			return err
		}
		result.Outcome = RollOK
		return nil
	})
	if err != nil {
		return RollResult{}, fmt.Errorf("failed to start roll break (group=%d): %w", groupID, err)
	}
	return result, nil
}

// Resume restores the session: a break returns to the remembered status,
// a locked break returns to locked, and a paused session opens the next
// step. All tracked users' activity stamps are refreshed.
func (s *Service) Resume(ctx context.Context, groupID int64, now time.Time) (RollResult, error) {
	var result RollResult
	err := s.Rolls.WithSession(ctx, groupID, func(tx repository.RollTx) error {
		session := tx.Session()
		if session == nil || session.Status == models.RollStopped {
			result.Outcome = RollNoSession
			return nil
		}

		switch session.Status {
		case models.RollBreak:
			restored := models.RollActive
			if session.PreviousStatus != nil {
				restored = *session.PreviousStatus
			}
			if err := tx.SetStatus(restored, nil); err != nil {
				return err
			}
			result.Status = restored

		case models.RollLockedBreak:
			// Only the break layer lifts; previous_status keeps whatever
			// the lock (or the break before it) recorded.
			if err := tx.SetStatus(models.RollLocked, session.PreviousStatus); err != nil {
				return err
			}
			result.Status = models.RollLocked

		case models.RollPaused:
			next := session.CurrentStep + 1
			if err := tx.OpenStep(next); err != nil {
				return err
			}
			if err := tx.SetStatus(models.RollActive, nil); err != nil {
				return err
			}
			result.Status = models.RollActive
			result.Step = next

		default:
			result.Outcome = RollNotResumable
			result.Status = session.Status
			return nil
		}

		if err := tx.RefreshAll(now); err != nil {
			return err
		}
		result.Outcome = RollOK
		return nil
	})
	if err != nil {
		return RollResult{}, fmt.Errorf("failed to resume roll (group=%d): %w", groupID, err)
	}
	return result, nil
}

// Lock closes the session to new entrants. From a break it nests into
// locked_break; from active/paused it remembers the current status so
// unlock can restore it.
func (s *Service) Lock(ctx context.Context, groupID int64) (RollResult, error) {
	var result RollResult
	err := s.Rolls.WithSession(ctx, groupID, func(tx repository.RollTx) error {
		session := tx.Session()
		if session == nil || session.Status == models.RollStopped {
			result.Outcome = RollNoSession
			return nil
		}
		if session.Status.IsLocked() {
			result.Outcome = RollAlreadyLocked
			result.Status = session.Status
			return nil
		}

		if session.Status == models.RollBreak {
			// Lock nests on top of the break; the break's previous_status
			// survives so a later resume still restores it.
			if err := tx.SetStatus(models.RollLockedBreak, session.PreviousStatus); err != nil {
				return err
			}
			result.Status = models.RollLockedBreak
		} else {
			prev := session.Status
			if err := tx.SetStatus(models.RollLocked, &prev); err != nil {
				return err
			}
			result.Status = models.RollLocked
		}
		result.Outcome = RollOK
		return nil
	})
	if err != nil {
		return RollResult{}, fmt.Errorf("failed to lock roll (group=%d): %w", groupID, err)
	}
	return result, nil
}

// Unlock reopens the session. locked restores the remembered status;
// locked_break only lifts the lock layer — the outer break stays.
func (s *Service) Unlock(ctx context.Context, groupID int64) (RollResult, error) {
	var result RollResult
	err := s.Rolls.WithSession(ctx, groupID, func(tx repository.RollTx) error {
		session := tx.Session()
		if session == nil || session.Status == models.RollStopped {
			result.Outcome = RollNoSession
			return nil
		}

		switch session.Status {
		case models.RollLocked:
			restored := models.RollActive
			if session.PreviousStatus != nil {
				restored = *session.PreviousStatus
			}
			if err := tx.SetStatus(restored, nil); err != nil {
				return err
			}
			result.Status = restored
		case models.RollLockedBreak:
			if err := tx.SetStatus(models.RollBreak, session.PreviousStatus); err != nil {
				return err
			}
			result.Status = models.RollBreak
		default:
			result.Outcome = RollNotLocked
			result.Status = session.Status
			return nil
		}
		result.Outcome = RollOK
		return nil
	})
	if err != nil {
		return RollResult{}, fmt.Errorf("failed to unlock roll (group=%d): %w", groupID, err)
	}
	return result, nil
}

// StopRoll ends the session. The inactivity sweep runs first and the final
// roster is captured for the report before the status flips to stopped.
func (s *Service) StopRoll(ctx context.Context, groupID int64, now time.Time) (RollResult, error) {
	var result RollResult
	err := s.Rolls.WithSession(ctx, groupID, func(tx repository.RollTx) error {
		session := tx.Session()
		if session == nil || session.Status == models.RollStopped {
			result.Outcome = RollNoSession
			return nil
		}

		var err error
		if result.Evicted, err = tx.DeleteInactive(now.Add(-session.Timeout())); err != nil {
			return err
		}
		if result.Steps, err = tx.Steps(); err != nil {
			return err
		}
		if err := tx.SetStatus(models.RollStopped, nil); err != nil {
			return err
		}
		result.Outcome = RollOK
		result.Status = models.RollStopped
		return nil
	})
	if err != nil {
		return RollResult{}, fmt.Errorf("failed to stop roll (group=%d): %w", groupID, err)
	}
	s.logger.WithFields(logrus.Fields{
		"group_id": groupID,
		"evicted":  result.Evicted,
	}).Info("Roll stopped")
	return result, nil
}

// TrackRollMessage records one message against the open step. It only has
// effect in active, locked and locked_break: while locked, only existing
// participants are refreshed and new entrants are silently ignored.
func (s *Service) TrackRollMessage(ctx context.Context, groupID, userID int64, username, firstName string, now time.Time) error {
	name := firstName
	if username != "" {
		name = "@" + username
	}
	if name == "" {
		name = "User"
	}

	err := s.Rolls.WithSession(ctx, groupID, func(tx repository.RollTx) error {
		session := tx.Session()
		if session == nil || !session.Status.Tracks() {
			return nil
		}
		step, err := tx.ActiveStep()
		if err != nil {
			return err
		}
		if step == nil {
			return nil
		}
		if session.Status.IsLocked() {
			return tx.TouchUser(step.ID, userID, name, now)
		}
		return tx.UpsertUser(step.ID, userID, name, now)
	})
	if err != nil {
		return fmt.Errorf("failed to track roll message (group=%d user=%d): %w", groupID, userID, err)
	}
	return nil
}

// RollStatus returns the session status and the full step roster. The
// inactivity sweep runs first in tracking states so the report is never
// stale.
func (s *Service) RollStatus(ctx context.Context, groupID int64, now time.Time) (RollResult, error) {
	var result RollResult
	err := s.Rolls.WithSession(ctx, groupID, func(tx repository.RollTx) error {
		session := tx.Session()
		if session == nil || session.Status == models.RollStopped {
			result.Outcome = RollNoSession
			result.Status = models.RollStopped
			return nil
		}
		var err error
		if session.Status.Tracks() {
			if result.Evicted, err = tx.DeleteInactive(now.Add(-session.Timeout())); err != nil {
				return err
			}
		}
		if result.Steps, err = tx.Steps(); err != nil {
			return err
		}
		result.Outcome = RollOK
		result.Status = session.Status
		result.Step = session.CurrentStep
		return nil
	})
	if err != nil {
		return RollResult{}, fmt.Errorf("failed to get roll status (group=%d): %w", groupID, err)
	}
	return result, nil
}

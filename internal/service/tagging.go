package service

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
)

// TagKind selects the broadcast style.
type TagKind string

const (
	// TagBatch mentions users five at a time under the caller's message.
	TagBatch TagKind = "batch"
	// TagGreet mentions users one by one with a random greeting.
	TagGreet TagKind = "greet"
)

const tagBatchSize = 5

var greetings = []string{
	"Hey! 🔥",
	"How's it going? ✨",
	"What's up? 💫",
	"Hello there! 🌟",
	"Hey you! 💎",
	"Long time no see! 🚀",
	"Anything new? 💥",
	"Hi! 🌈",
	"You around? ⚡",
	"Say something! 🎯",
}

type tagRun struct {
	kind   TagKind
	cancel context.CancelFunc
}

// TaggingKind returns the kind of the group's running broadcast, or false.
func (s *Service) TaggingKind(groupID int64) (TagKind, bool) {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()
	run, ok := s.tagRuns[groupID]
	if !ok {
		return "", false
	}
	return run.kind, true
}

// StopTagging cancels the group's running broadcast. Returns false if none
// is running.
func (s *Service) StopTagging(groupID int64) bool {
	s.tagMu.Lock()
	defer s.tagMu.Unlock()
	run, ok := s.tagRuns[groupID]
	if !ok {
		return false
	}
	run.cancel()
	delete(s.tagRuns, groupID)
	return true
}

// StartTagging launches a cancellable mention broadcast over the group
// roster. A group with a broadcast already running is rejected. The
// goroutine checks cancellation between sends and removes its registry
// entry on completion either way.
func (s *Service) StartTagging(ctx context.Context, groupID int64, kind TagKind, message string, send SendFunc) (bool, error) {
	users, err := s.Counters.ListByGroup(ctx, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to list group roster (group=%d): %w", groupID, err)
	}
	if len(users) == 0 {
		return false, nil
	}

	s.tagMu.Lock()
	if _, running := s.tagRuns[groupID]; running {
		s.tagMu.Unlock()
		return false, nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.tagRuns[groupID] = &tagRun{kind: kind, cancel: cancel}
	s.tagMu.Unlock()

	go s.runTagging(runCtx, groupID, kind, message, users, send)
	return true, nil
}

func (s *Service) runTagging(ctx context.Context, groupID int64, kind TagKind, message string, users []*models.MessageCounter, send SendFunc) {
	defer func() {
		s.tagMu.Lock()
		delete(s.tagRuns, groupID)
		s.tagMu.Unlock()
	}()

	var sendErrs *multierror.Error
	sent := 0

	switch kind {
	case TagGreet:
		for _, user := range users {
			select {
			case <-ctx.Done():
				s.logger.WithField("group_id", groupID).Info("Tagging cancelled")
				return
			default:
			}
			text := fmt.Sprintf("%s %s", mentionLink(user), greetings[rand.Intn(len(greetings))])
			if err := send(groupID, text); err != nil {
				sendErrs = multierror.Append(sendErrs, err)
			} else {
				sent++
			}
		}
	default:
		for i := 0; i < len(users); i += tagBatchSize {
			select {
			case <-ctx.Done():
				s.logger.WithField("group_id", groupID).Info("Tagging cancelled")
				return
			default:
			}
			end := i + tagBatchSize
			if end > len(users) {
				end = len(users)
			}
			text := message + "\n\n"
			for j, user := range users[i:end] {
				if j > 0 {
					text += " "
				}
				text += mentionLink(user)
			}
			if err := send(groupID, text); err != nil {
				sendErrs = multierror.Append(sendErrs, err)
			} else {
				sent++
			}
		}
	}

	if err := sendErrs.ErrorOrNil(); err != nil {
		s.logger.WithField("group_id", groupID).Warnf("Tagging finished with send failures: %v", err)
	}
	s.logger.WithFields(logrus.Fields{
		"group_id": groupID,
		"kind":     kind,
		"sent":     sent,
	}).Info("Tagging finished")
}

// mentionLink builds the HTML mention that notifies a user without needing
// a username.
func mentionLink(user *models.MessageCounter) string {
	name := user.FirstName
	if name == "" {
		name = user.Mention()
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, user.UserID, name)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Semhkaramn/msharleyrandy/internal/models"
	"github.com/Semhkaramn/msharleyrandy/internal/repository"
)

// System accounts whose messages never count: the Telegram service account
// and the anonymous group-admin bot.
var systemAccounts = map[int64]bool{
	777000:     true,
	1087968824: true,
}

// IsSystemAccount reports whether the sender is a platform service account.
func IsSystemAccount(userID int64) bool {
	return systemAccounts[userID]
}

// RecordMessage records one message for the user in the group, resetting any
// window whose civil-calendar boundary has passed since its last reset. The
// resets and the increment land in one atomic store write, so a window that
// rolls over reads exactly 1 after the first message past the boundary.
// Returns nil for system accounts.
func (s *Service) RecordMessage(ctx context.Context, groupID, userID int64, username, firstName, lastName string, now time.Time) (*models.MessageCounter, error) {
	if IsSystemAccount(userID) {
		return nil, nil
	}

	day, week, month := s.windowStarts(now)
	counter, err := s.Counters.Apply(ctx, repository.CounterUpdate{
		GroupID:    groupID,
		UserID:     userID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
		Now:        now,
		DayStart:   day,
		WeekStart:  week,
		MonthStart: month,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record message (group=%d user=%d): %w", groupID, userID, err)
	}
	return counter, nil
}

// GetCount returns the user's tally for the window. A user who has never
// written reads as zero.
func (s *Service) GetCount(ctx context.Context, groupID, userID int64, window models.CounterWindow) (int, error) {
	counter, err := s.Counters.Get(ctx, groupID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get count (group=%d user=%d): %w", groupID, userID, err)
	}
	if counter == nil {
		return 0, nil
	}
	return counter.Count(window), nil
}

// GetStats returns the user's full counter row, or nil if they have never
// written in the group.
func (s *Service) GetStats(ctx context.Context, groupID, userID int64) (*models.MessageCounter, error) {
	counter, err := s.Counters.Get(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats (group=%d user=%d): %w", groupID, userID, err)
	}
	return counter, nil
}

// windowStarts returns the UTC instants at which the current civil day,
// ISO week (Monday-anchored) and month began in the service's fixed zone.
// A stored reset stamp earlier than one of these means that window rolled
// over.
func (s *Service) windowStarts(now time.Time) (day, week, month time.Time) {
	local := now.In(s.loc)
	y, m, d := local.Date()
	day = time.Date(y, m, d, 0, 0, 0, 0, s.loc)

	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the previous Monday
	}
	week = day.AddDate(0, 0, -(weekday - 1))

	month = time.Date(y, m, 1, 0, 0, 0, 0, s.loc)
	return day.UTC(), week.UTC(), month.UTC()
}

package service

import (
	"context"
	"fmt"
	"time"
)

type adminKey struct {
	groupID int64
	userID  int64
}

type adminEntry struct {
	isAdmin   bool
	expiresAt time.Time
}

// IsAdmin reports whether the user administers the group, memoized with a
// fixed TTL. Denials are cached too, so a non-admin hammering commands does
// not hammer the gateway. Oracle failures are returned as errors and fail
// closed at the caller; they are never cached.
func (s *Service) IsAdmin(ctx context.Context, groupID, userID int64) (bool, error) {
	key := adminKey{groupID: groupID, userID: userID}
	now := time.Now()

	s.adminMu.RLock()
	entry, ok := s.adminCache[key]
	s.adminMu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.isAdmin, nil
	}

	status, err := s.oracle.GetMembership(ctx, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to verify admin (group=%d user=%d): %w", groupID, userID, err)
	}
	isAdmin := status.IsAdmin()

	s.adminMu.Lock()
	s.adminCache[key] = adminEntry{isAdmin: isAdmin, expiresAt: now.Add(s.adminTTL)}
	s.adminMu.Unlock()

	// Materialize the fresh verdict; the cache stays correct even when the
	// write fails.
	if err := s.Admins.Upsert(ctx, groupID, userID, isAdmin, now); err != nil {
		s.logger.Warnf("Failed to persist admin check (group=%d user=%d): %v", groupID, userID, err)
	}

	return isAdmin, nil
}

// InvalidateAdminGroup drops every cached verdict for the group.
func (s *Service) InvalidateAdminGroup(groupID int64) {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	for key := range s.adminCache {
		if key.groupID == groupID {
			delete(s.adminCache, key)
		}
	}
}

// InvalidateAdminUser drops every cached verdict for the user.
func (s *Service) InvalidateAdminUser(userID int64) {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	for key := range s.adminCache {
		if key.userID == userID {
			delete(s.adminCache, key)
		}
	}
}

// InvalidateAdminCache drops everything.
func (s *Service) InvalidateAdminCache() {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	s.adminCache = make(map[adminKey]adminEntry)
}

// Package session implements browser sessions: a signed JWT cookie that
// carries nothing but a session ID, and one JSON state file per session
// under the session directory. The state file records which password
// gates the browser has passed and which groups it visited recently.
//
// Tokens are issued once, when the session is created; every later
// mutation only rewrites the state file. Stale state files are swept by
// the reclamation worker.
package session

import (
	"slices"
	"time"
)

// CookieName is the browser cookie holding the session token.
const CookieName = "groupbin_session"

// Session is the server-side state behind one browser cookie.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// UnlockedGroups holds the IDs of groups whose password gate this
	// browser has passed.
	UnlockedGroups []string `json:"unlocked_groups,omitempty"`

	// UnifiedOK records that the site-wide view password was presented.
	UnifiedOK bool `json:"unified_ok,omitempty"`

	// CreateOK records that the group-creation password was presented.
	CreateOK bool `json:"create_ok,omitempty"`

	// RecentGroups lists visited group IDs, most recent first.
	RecentGroups []string `json:"recent_groups,omitempty"`
}

// IsUnlocked reports whether the group's password gate has been passed.
func (s *Session) IsUnlocked(groupID string) bool {
	return slices.Contains(s.UnlockedGroups, groupID)
}

// Unlock marks a group's password gate as passed. Idempotent.
func (s *Session) Unlock(groupID string) {
	if !s.IsUnlocked(groupID) {
		s.UnlockedGroups = append(s.UnlockedGroups, groupID)
	}
}

// RememberGroup moves the group to the front of the recent list and
// trims the list to max entries. A non-positive max keeps the list empty.
func (s *Session) RememberGroup(groupID string, max int) {
	if max <= 0 {
		s.RecentGroups = nil
		return
	}

	recent := make([]string, 0, max)
	recent = append(recent, groupID)
	for _, id := range s.RecentGroups {
		if id == groupID {
			continue
		}
		recent = append(recent, id)
		if len(recent) == max {
			break
		}
	}
	s.RecentGroups = recent
}

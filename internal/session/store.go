// Package session tracks pending allowed-to-run decisions per source app so
// that labels can be assigned once the outcome (a real transition or a
// timeout) is known.
//
// Thread safety: NOT safe for concurrent use. The engine serializes access.
package session

import (
	"time"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/features"
)

// #region session
// Session is one pending decision for App. Context is the snapshot captured
// at decision time and is reused unchanged for every label derived from it.
type Session struct {
	App        string
	Context    features.Context
	CreatedAt  time.Time
	Candidates []string // Markov candidates, in Markov order
	Prefetched []string // apps chosen by the policy
	Resolved   bool
}

// #endregion session

// #region store
// Store holds at most one session per app and at most maxSessions overall.
type Store struct {
	byApp       map[string]*Session
	maxSessions int
}

// NewStore creates a store bounded to maxSessions (minimum 1).
func NewStore(maxSessions int) *Store {
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &Store{byApp: make(map[string]*Session), maxSessions: maxSessions}
}

// Put inserts s, replacing any session for the same app. When inserting a
// new app into a full store, the session with the oldest CreatedAt is
// evicted first and returned.
func (st *Store) Put(s *Session) (evicted *Session) {
	if _, ok := st.byApp[s.App]; !ok && len(st.byApp) >= st.maxSessions {
		evicted = st.oldest()
		if evicted != nil {
			delete(st.byApp, evicted.App)
		}
	}
	st.byApp[s.App] = s
	return evicted
}

// oldest scans linearly; the bound is small. Equal times evict the smallest app id.
func (st *Store) oldest() *Session {
	var victim *Session
	for _, s := range st.byApp {
		if victim == nil || s.CreatedAt.Before(victim.CreatedAt) ||
			(s.CreatedAt.Equal(victim.CreatedAt) && s.App < victim.App) {
			victim = s
		}
	}
	return victim
}

// Get returns the session for app, or nil.
func (st *Store) Get(app string) *Session {
	return st.byApp[app]
}

// Remove deletes and returns the session for app, or nil.
func (st *Store) Remove(app string) *Session {
	s, ok := st.byApp[app]
	if !ok {
		return nil
	}
	delete(st.byApp, app)
	return s
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	return len(st.byApp)
}

// Cap returns the session bound.
func (st *Store) Cap() int {
	return st.maxSessions
}

// Apps returns the apps with a live session, unordered.
func (st *Store) Apps() []string {
	out := make([]string, 0, len(st.byApp))
	for app := range st.byApp {
		out = append(out, app)
	}
	return out
}

// #endregion store

// Package store holds the relay's in-memory state: the session registry,
// the action token store, and the decision channel.
//
// All three maps live behind a single Store object with one mutex, so call
// sites cannot bypass the exactly-once consumption guarantee. The dataset is
// small (low hundreds of entries), so coarse locking is deliberate.
//
// Nothing in this package persists across restarts. A periodic sweep bounds
// memory by evicting stale sessions, expired or consumed actions, and old
// decisions.
package store

import (
	"log"
	"sync"
	"time"
)

// Default lifecycle windows. All are overridable through Options.
const (
	// DefaultActionTTL is how long an action token stays resolvable.
	DefaultActionTTL = 30 * time.Minute

	// DefaultSessionRetention is how long a session registration is kept
	// without an explicit session-end notice.
	DefaultSessionRetention = 24 * time.Hour

	// DefaultSweepInterval is how often the background sweeper runs.
	DefaultSweepInterval = time.Minute
)

// Options configures a Store. Zero values fall back to the defaults above.
type Options struct {
	// ActionTTL is the time-to-live for action tokens (consumed or not).
	ActionTTL time.Duration

	// SessionRetention is the age at which session records are evicted.
	SessionRetention time.Duration

	// Now supplies the current time. Tests inject a fake clock here;
	// production leaves it nil and gets time.Now.
	Now func() time.Time
}

// Store owns the three shared maps. All exported methods are safe for
// concurrent use.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]SessionRecord
	actions   map[string]*ActionRecord
	decisions map[string]decisionEntry

	actionTTL        time.Duration
	sessionRetention time.Duration
	now              func() time.Time

	sweepDone chan struct{}
	closeOnce sync.Once
}

// New creates an empty Store with the given options.
func New(opts Options) *Store {
	if opts.ActionTTL <= 0 {
		opts.ActionTTL = DefaultActionTTL
	}
	if opts.SessionRetention <= 0 {
		opts.SessionRetention = DefaultSessionRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		sessions:         make(map[string]SessionRecord),
		actions:          make(map[string]*ActionRecord),
		decisions:        make(map[string]decisionEntry),
		actionTTL:        opts.ActionTTL,
		sessionRetention: opts.SessionRetention,
		now:              opts.Now,
		sweepDone:        make(chan struct{}),
	}
}

// StartSweeper runs Sweep on a ticker until Close is called.
// The sweeper only deletes entries; it never mutates live records, so it
// cannot interfere with a concurrent resolution.
func (s *Store) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(s.now())
			case <-s.sweepDone:
				return
			}
		}
	}()
}

// Close stops the background sweeper. Safe to call multiple times.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.sweepDone)
	})
}

// Sweep evicts sessions past the retention window and actions past the TTL
// (or already consumed), plus decisions old enough that no poller can still
// be waiting on them. Keys are collected first and deleted after, so the
// traversal never deletes while iterating.
func (s *Store) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var staleSessions []string
	for id, rec := range s.sessions {
		if now.Sub(rec.RegisteredAt) > s.sessionRetention {
			staleSessions = append(staleSessions, id)
		}
	}
	for _, id := range staleSessions {
		delete(s.sessions, id)
	}

	var staleActions []string
	for token, rec := range s.actions {
		if rec.consumed || now.Sub(rec.CreatedAt) > s.actionTTL {
			staleActions = append(staleActions, token)
		}
	}
	for _, token := range staleActions {
		delete(s.actions, token)
	}

	// Decisions follow the action TTL: 30 minutes safely exceeds the
	// longest poller wait window (60 seconds).
	var staleDecisions []string
	for token, entry := range s.decisions {
		if now.Sub(entry.decidedAt) > s.actionTTL {
			staleDecisions = append(staleDecisions, token)
		}
	}
	for _, token := range staleDecisions {
		delete(s.decisions, token)
	}

	if len(staleSessions)+len(staleActions)+len(staleDecisions) > 0 {
		log.Printf("store: sweep removed %d sessions, %d actions, %d decisions",
			len(staleSessions), len(staleActions), len(staleDecisions))
	}
}

// Counts returns the current number of sessions, pending actions, and
// recorded decisions. Used by the status endpoint.
func (s *Store) Counts() (sessions, actions, decisions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions), len(s.actions), len(s.decisions)
}

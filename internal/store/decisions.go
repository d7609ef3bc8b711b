package store

import "time"

// Verdict is the operator's binary decision for a permission prompt.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
)

// ParseVerdict validates caller-supplied verdict strings.
func ParseVerdict(raw string) (Verdict, bool) {
	switch Verdict(raw) {
	case VerdictAllow, VerdictDeny:
		return Verdict(raw), true
	default:
		return "", false
	}
}

// decisionEntry records a resolved verdict. It lives in its own map, apart
// from the action record, so a poller that arrives after the action was
// consumed by a notification click can still read the verdict. Folding this
// into the action's consumed flag would leave the poller unable to tell
// "resolved, verdict X" from "resolved by someone else, verdict unknown".
type decisionEntry struct {
	verdict   Verdict
	decidedAt time.Time
}

// SetDecision records the verdict for a token. The first write wins; the
// verdict is immutable once set. Safe to call even if the action record was
// already separately consumed or never existed here.
func (s *Store) SetDecision(token string, verdict Verdict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.decisions[token]; exists {
		return
	}
	s.decisions[token] = decisionEntry{verdict: verdict, decidedAt: s.now()}
}

// Decision returns the recorded verdict for a token, if any. Reading is
// idempotent; a poller may call this any number of times.
func (s *Store) Decision(token string) (Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.decisions[token]
	if !ok {
		return "", false
	}
	return entry.verdict, true
}

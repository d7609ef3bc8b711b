package store

import (
	"time"
	"unicode/utf8"
)

// maxMessageRunes caps the stored human-readable message. Notification
// payloads and the resolution page never need more, and hooks occasionally
// forward entire tool outputs.
const maxMessageRunes = 512

// ActionKind classifies why the operator's attention is needed.
type ActionKind string

const (
	KindPermission  ActionKind = "permission"
	KindIdle        ActionKind = "idle"
	KindElicitation ActionKind = "elicitation"
	KindCompletion  ActionKind = "completion"
	KindUnspecified ActionKind = "unspecified"
)

// NormalizeKind maps arbitrary caller input onto the known kinds.
// Unknown or empty values become KindUnspecified; unknown fields in
// registration bodies are ignored rather than rejected.
func NormalizeKind(raw string) ActionKind {
	switch ActionKind(raw) {
	case KindPermission, KindIdle, KindElicitation, KindCompletion:
		return ActionKind(raw)
	default:
		return KindUnspecified
	}
}

// Label returns the human-readable title used on the resolution page and
// in push notifications.
func (k ActionKind) Label() string {
	switch k {
	case KindPermission:
		return "Permission Required"
	case KindIdle:
		return "Waiting For Input"
	case KindElicitation:
		return "Question From Agent"
	case KindCompletion:
		return "Task Complete"
	default:
		return "Notification"
	}
}

// Icon returns the emoji shown alongside the title.
func (k ActionKind) Icon() string {
	switch k {
	case KindPermission:
		return "\U0001F510" // locked with key
	case KindIdle:
		return "⏸" // pause
	case KindElicitation:
		return "❓" // question mark
	case KindCompletion:
		return "✅" // check mark
	default:
		return "\U0001F514" // bell
	}
}

// ActionRecord is a pending decision awaiting resolution by the operator.
// The token is generated upstream (in the hook) with cryptographic
// randomness; the store treats it as an opaque unique key.
type ActionRecord struct {
	Token     string     `json:"token"`
	SessionID string     `json:"session_id"`
	Kind      ActionKind `json:"kind"`
	Message   string     `json:"message"`
	Project   string     `json:"project"`
	Tool      string     `json:"tool,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	// consumed marks the pending -> consumed transition. Never re-armed.
	consumed bool
}

// CreateAction inserts a new pending action record. A duplicate token
// silently overwrites: uniqueness is the caller's responsibility and the
// 128-bit random space makes collision negligible.
func (s *Store) CreateAction(token, sessionID string, kind ActionKind, message, project, tool string) ActionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &ActionRecord{
		Token:     token,
		SessionID: sessionID,
		Kind:      kind,
		Message:   truncateRunes(message, maxMessageRunes),
		Project:   project,
		Tool:      tool,
		CreatedAt: s.now(),
	}
	s.actions[token] = rec
	return *rec
}

// PeekAction returns the record only if it exists, is unconsumed, and is
// within the TTL. Expired records are lazily deleted on read so storage is
// released even between sweeps.
func (s *Store) PeekAction(token string) (ActionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.liveAction(token)
	if !ok {
		return ActionRecord{}, false
	}
	return *rec, true
}

// ConsumeAction atomically marks the record consumed and returns it, but
// only if PeekAction would have returned it. A second call for the same
// token always reports absent. This is the sole exactly-once guarantee
// point in the system: under concurrent callers, at most one observes the
// record.
func (s *Store) ConsumeAction(token string) (ActionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.liveAction(token)
	if !ok {
		return ActionRecord{}, false
	}
	rec.consumed = true
	return *rec, true
}

// liveAction resolves a token to its unconsumed, unexpired record.
// Caller must hold s.mu. Expired entries are deleted as a side effect.
func (s *Store) liveAction(token string) (*ActionRecord, bool) {
	rec, ok := s.actions[token]
	if !ok || rec.consumed {
		return nil, false
	}
	if s.now().Sub(rec.CreatedAt) > s.actionTTL {
		delete(s.actions, token)
		return nil, false
	}
	return rec, true
}

// truncateRunes shortens a string to at most n runes, appending an
// ellipsis when anything was cut.
func truncateRunes(str string, n int) string {
	if utf8.RuneCountInString(str) <= n {
		return str
	}
	runes := []rune(str)
	return string(runes[:n-1]) + "…"
}

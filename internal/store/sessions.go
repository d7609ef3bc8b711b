package store

import "time"

// SessionRecord maps an agent session to the tmux pane that keystrokes are
// injected into, plus the working directory used as a display label.
type SessionRecord struct {
	// SessionID is the agent's session identifier.
	SessionID string `json:"session_id"`

	// TerminalHandle is the tmux target (e.g., "main:1.0"). May be empty
	// when the agent runs outside tmux; dispatch then reports not-found.
	TerminalHandle string `json:"terminal_handle"`

	// Cwd is the project working directory at session start.
	Cwd string `json:"cwd"`

	// RegisteredAt is when this record was (re-)registered.
	RegisteredAt time.Time `json:"registered_at"`
}

// RegisterSession upserts a session record, stamping the current time.
// Re-registration overwrites: at most one record exists per session id.
// It never fails.
func (s *Store) RegisterSession(sessionID, terminalHandle, cwd string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = SessionRecord{
		SessionID:      sessionID,
		TerminalHandle: terminalHandle,
		Cwd:            cwd,
		RegisteredAt:   s.now(),
	}
}

// Session returns the record for the given session id, if registered.
func (s *Store) Session(sessionID string) (SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	return rec, ok
}

// RemoveSession deletes a session record. Removing an absent id is not an
// error; session-end notices may arrive more than once.
func (s *Store) RemoveSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
}

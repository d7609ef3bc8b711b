package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/dbbuilder-org/claude-notify/internal/audit"
	apperrors "github.com/dbbuilder-org/claude-notify/internal/errors"
	"github.com/dbbuilder-org/claude-notify/internal/dispatch"
	"github.com/dbbuilder-org/claude-notify/internal/store"
)

// Inbound JSON bodies use flat field sets; unknown fields are ignored and
// missing optional fields default to empty strings.

type sessionRegisterRequest struct {
	SessionID      string `json:"session_id"`
	TerminalHandle string `json:"terminal_handle"`
	Cwd            string `json:"cwd"`
}

type sessionRemoveRequest struct {
	SessionID string `json:"session_id"`
}

type actionRegisterRequest struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Project   string `json:"project"`
	Tool      string `json:"tool"`
}

type respondRequest struct {
	Token string `json:"token"`
	Text  string `json:"text"`
}

// writeJSON serializes an API response.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("server: failed to encode response: %v", err)
	}
}

// writeError serializes a failed API response with a stable error code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"ok":    false,
		"code":  code,
		"error": message,
	})
}

// writeCodedError maps a CodedError onto the response.
func writeCodedError(w http.ResponseWriter, status int, err error) {
	code, message := apperrors.ToCodeAndMessage(err)
	writeError(w, status, code, message)
}

// decodeBody parses a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.InvalidRequest("invalid JSON body")
	}
	return nil
}

// handleSessionRegister maps an agent session to its tmux pane.
// Always succeeds when a session id is present.
func (s *Server) handleSessionRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, apperrors.CodeServerInvalidRequest, "POST required")
		return
	}

	var req sessionRegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeCodedError(w, http.StatusBadRequest, err)
		return
	}
	if req.SessionID == "" {
		writeCodedError(w, http.StatusBadRequest, apperrors.SessionMissing())
		return
	}

	s.store.RegisterSession(req.SessionID, req.TerminalHandle, req.Cwd)
	log.Printf("server: session %s registered (pane=%q cwd=%q)", req.SessionID, req.TerminalHandle, req.Cwd)

	s.hub.Broadcast(Event{Type: EventSessionRegistered, SessionID: req.SessionID})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// handleSessionRemove drops a session registration. Idempotent.
func (s *Server) handleSessionRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, apperrors.CodeServerInvalidRequest, "POST required")
		return
	}

	var req sessionRemoveRequest
	if err := decodeBody(r, &req); err != nil {
		writeCodedError(w, http.StatusBadRequest, err)
		return
	}
	if req.SessionID == "" {
		writeCodedError(w, http.StatusBadRequest, apperrors.SessionMissing())
		return
	}

	s.store.RemoveSession(req.SessionID)
	log.Printf("server: session %s removed", req.SessionID)

	s.hub.Broadcast(Event{Type: EventSessionRemoved, SessionID: req.SessionID})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// handleActionRegister creates a pending action token. The token itself is
// generated by the caller (the hook) with cryptographic randomness; a
// registration without one is a caller bug.
func (s *Server) handleActionRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, apperrors.CodeServerInvalidRequest, "POST required")
		return
	}

	var req actionRegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeCodedError(w, http.StatusBadRequest, err)
		return
	}
	if req.Token == "" {
		writeCodedError(w, http.StatusBadRequest, apperrors.MissingToken())
		return
	}

	kind := store.NormalizeKind(req.Kind)
	rec := s.store.CreateAction(req.Token, req.SessionID, kind, req.Message, req.Project, req.Tool)
	log.Printf("server: action %s registered (session=%s kind=%s)", rec.Token, rec.SessionID, rec.Kind)

	s.hub.Broadcast(Event{
		Type:      EventActionRegistered,
		Token:     rec.Token,
		SessionID: rec.SessionID,
		Kind:      string(rec.Kind),
		Project:   rec.Project,
	})

	// Push publishing is fire-and-forget; the registration response never
	// waits on the sink.
	if s.publisher != nil {
		go func() {
			if err := s.publisher.PublishAction(rec); err != nil {
				log.Printf("server: push publish failed for %s: %v", rec.Token, err)
			}
		}()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"page_url": s.pageURL(rec.Token),
	})
}

// handleResolve resolves a token with a binary verdict. This is the target
// of the one-tap approve/deny links.
//
// Ordering is deliberate: the decision channel is written before the action
// is consumed and before the response goes out, so a racing poller observes
// the verdict no matter how this handler's own consumption attempt fares.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, apperrors.CodeServerInvalidRequest, "GET or POST required")
		return
	}
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, apperrors.CodeServerRateLimited, "too many resolution attempts")
		return
	}

	token := r.FormValue("token")
	if token == "" {
		writeCodedError(w, http.StatusBadRequest, apperrors.MissingToken())
		return
	}
	verdict, ok := store.ParseVerdict(r.FormValue("verdict"))
	if !ok {
		writeCodedError(w, http.StatusBadRequest, apperrors.BadVerdict(r.FormValue("verdict")))
		return
	}

	if _, live := s.store.PeekAction(token); !live {
		// The action is gone. If a decision exists the verdict path already
		// fired; tell the second tap what happened instead of erroring.
		if recorded, found := s.store.Decision(token); found {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"ok":      true,
				"verdict": recorded,
				"already": true,
			})
			return
		}
		writeCodedError(w, http.StatusGone, apperrors.ActionExpired(token))
		return
	}

	s.store.SetDecision(token, verdict)

	rec, won := s.store.ConsumeAction(token)
	if !won {
		// Lost the consumption race to a concurrent resolver. The decision
		// channel already holds the winning verdict.
		recorded, _ := s.store.Decision(token)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"verdict": recorded,
			"already": true,
		})
		return
	}

	// The decision channel is authoritative: a concurrent opposite-verdict
	// tap may have recorded first while this request won the consumption.
	// Dispatch and report the recorded verdict, not this request's.
	if recorded, found := s.store.Decision(token); found {
		verdict = recorded
	}

	result := s.dispatchKeys(r.Context(), rec, s.keysFor(verdict))
	log.Printf("server: action %s resolved %s (dispatch=%s)", token, verdict, result)

	s.recordAudit(rec, string(verdict), "", audit.SourceClick, result)
	s.hub.Broadcast(Event{
		Type:      EventActionResolved,
		Token:     rec.Token,
		SessionID: rec.SessionID,
		Kind:      string(rec.Kind),
		Project:   rec.Project,
		Verdict:   string(verdict),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"verdict":    verdict,
		"dispatched": result == dispatch.ResultOK,
		"dispatch":   result,
	})
}

// handleRespond resolves a token with operator-supplied text from the
// resolution page. Custom text has no decision-channel equivalent: it is
// not a binary verdict, and only the keystroke path can carry it.
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, apperrors.CodeServerInvalidRequest, "POST required")
		return
	}
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, apperrors.CodeServerRateLimited, "too many resolution attempts")
		return
	}

	var req respondRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeBody(r, &req); err != nil {
			writeCodedError(w, http.StatusBadRequest, err)
			return
		}
	} else {
		req.Token = r.FormValue("token")
		req.Text = r.FormValue("text")
	}

	if req.Token == "" {
		writeCodedError(w, http.StatusBadRequest, apperrors.MissingToken())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		// Rejected with no state change: the token stays pending.
		writeCodedError(w, http.StatusBadRequest, apperrors.EmptyText())
		return
	}

	rec, won := s.store.ConsumeAction(req.Token)
	if !won {
		writeCodedError(w, http.StatusGone, apperrors.ActionExpired(req.Token))
		return
	}

	result := s.dispatchKeys(r.Context(), rec, text)
	log.Printf("server: action %s answered with text (dispatch=%s)", rec.Token, result)

	s.recordAudit(rec, "text", text, audit.SourcePage, result)
	s.hub.Broadcast(Event{
		Type:      EventActionResponded,
		Token:     rec.Token,
		SessionID: rec.SessionID,
		Kind:      string(rec.Kind),
		Project:   rec.Project,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"text":       text,
		"dispatched": result == dispatch.ResultOK,
		"dispatch":   result,
	})
}

// handleDecision answers the blocking permission-gate poller. It never
// errors: absent decisions report an empty verdict so the gate can keep
// polling at a fixed interval until its own deadline.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("token")

	verdict, found := s.store.Decision(token)
	payload := map[string]interface{}{"ok": true, "decision": ""}
	if found {
		payload["decision"] = verdict
	}
	writeJSON(w, http.StatusOK, payload)
}

// dispatchKeys best-effort delivers text into the pane mapped to the
// action's session. The outcome is reported in the response payload but a
// failure never fails the resolution - by this point the decision is
// already recorded.
func (s *Server) dispatchKeys(ctx context.Context, rec store.ActionRecord, text string) dispatch.Result {
	handle := ""
	if session, ok := s.store.Session(rec.SessionID); ok {
		handle = session.TerminalHandle
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.DispatchTimeout())
	defer cancel()
	return s.dispatcher.Send(dctx, handle, text)
}

// keysFor maps a verdict to the configured keystrokes.
func (s *Server) keysFor(verdict store.Verdict) string {
	if verdict == store.VerdictAllow {
		return s.cfg.ApproveKeys
	}
	return s.cfg.DenyKeys
}

// recordAudit appends to the audit log, if enabled. Failures are logged
// only.
func (s *Server) recordAudit(rec store.ActionRecord, outcome, text, source string, result dispatch.Result) {
	err := s.auditLog.Record(&audit.Entry{
		Token:     rec.Token,
		SessionID: rec.SessionID,
		Kind:      string(rec.Kind),
		Outcome:   outcome,
		Text:      text,
		Source:    source,
		Dispatch:  string(result),
	})
	if err != nil {
		log.Printf("server: failed to record audit entry for %s: %v", rec.Token, err)
	}
}

// pageURL builds the operator-facing resolution page URL for a token.
func (s *Server) pageURL(token string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/action?token=" + token
}

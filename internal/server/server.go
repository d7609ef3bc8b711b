// Package server implements the HTTP control-plane for the relay.
//
// It composes the session registry, action token store, decision channel,
// keystroke dispatcher, push publisher, and audit log behind a small HTTP
// surface: JSON endpoints for the hook-side callers, an HTML resolution page
// for the operator's phone, and a WebSocket event feed for dashboards.
//
// The trust model is loopback plus operator-controlled tunnels: no
// authentication beyond the unguessable action tokens, permissive CORS.
package server

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	"github.com/dbbuilder-org/claude-notify/internal/audit"
	"github.com/dbbuilder-org/claude-notify/internal/config"
	"github.com/dbbuilder-org/claude-notify/internal/dispatch"
	"github.com/dbbuilder-org/claude-notify/internal/notify"
	"github.com/dbbuilder-org/claude-notify/internal/store"
)

// Server is the control-plane coordinator. All mutable shared state lives in
// the store; the server itself is immutable after New.
type Server struct {
	cfg        *config.Config
	store      *store.Store
	dispatcher dispatch.Dispatcher
	publisher  *notify.Publisher
	auditLog   *audit.Log
	hub        *Hub

	// limiter throttles the resolution endpoints, which are reachable from
	// links that leave the operator's device.
	limiter *rate.Limiter

	httpServer *http.Server
	startedAt  time.Time
}

// New assembles a Server. publisher and auditLog may be nil (disabled).
// The event feed hub starts immediately so Handler can be used directly in
// tests without calling Start.
func New(cfg *config.Config, st *store.Store, dispatcher dispatch.Dispatcher, publisher *notify.Publisher, auditLog *audit.Log) *Server {
	s := &Server{
		cfg:        cfg,
		store:      st,
		dispatcher: dispatcher,
		publisher:  publisher,
		auditLog:   auditLog,
		hub:        NewHub(),
		limiter:    rate.NewLimiter(rate.Limit(20), 40),
		startedAt:  time.Now(),
	}
	go s.hub.Run()
	return s
}

// Handler returns the full HTTP handler: routing plus recovery and CORS
// middleware.
func (s *Server) Handler() http.Handler {
	return s.withRecovery(s.withCORS(s.createMux()))
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("server: listening on %s", s.cfg.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server gracefully and closes the event feed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.httpServer == nil {
		return nil
	}
	log.Printf("server: shutting down")
	return s.httpServer.Shutdown(ctx)
}

// createMux wires all endpoints.
func (s *Server) createMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Hook-side registration calls.
	mux.HandleFunc("/api/session/register", s.handleSessionRegister)
	mux.HandleFunc("/api/session/remove", s.handleSessionRemove)
	mux.HandleFunc("/api/action/register", s.handleActionRegister)

	// Resolution paths: notification click, page submission, poller.
	mux.HandleFunc("/api/resolve", s.handleResolve)
	mux.HandleFunc("/api/respond", s.handleRespond)
	mux.HandleFunc("/api/decision", s.handleDecision)

	// Operator-facing pages.
	mux.HandleFunc("/action", s.handleActionPage)

	// Introspection.
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Live event feed for dashboards.
	mux.HandleFunc("/ws", s.hub.ServeWS)

	return mux
}

// withRecovery converts a handler panic into a 500 instead of killing the
// process: one bad request must never take the control-plane down while an
// agent is blocked on it.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("server: panic handling %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeError(w, http.StatusInternalServerError, "error.internal", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withCORS allows any origin. The control-plane is reached through
// operator-controlled tunnels, not a public deployment.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StatusResponse is the payload of /api/status, also consumed by the
// `claude-notify status` command.
type StatusResponse struct {
	OK             bool  `json:"ok"`
	UptimeSeconds  int64 `json:"uptime_seconds"`
	Sessions       int   `json:"sessions"`
	PendingActions int   `json:"pending_actions"`
	Decisions      int   `json:"decisions"`
	FeedClients    int   `json:"feed_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessions, actions, decisions := s.store.Counts()
	writeJSON(w, http.StatusOK, StatusResponse{
		OK:             true,
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		Sessions:       sessions,
		PendingActions: actions,
		Decisions:      decisions,
		FeedClients:    s.hub.ClientCount(),
	})
}

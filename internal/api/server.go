// Package api exposes the daemon over HTTP: approvals, confirmations,
// skills, credentials, jobs, the audit trail, and a websocket event stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/clawinfra/clawguard/internal/approval"
	"github.com/clawinfra/clawguard/internal/audit"
	"github.com/clawinfra/clawguard/internal/creds"
	"github.com/clawinfra/clawguard/internal/notify"
	"github.com/clawinfra/clawguard/internal/scheduler"
	"github.com/clawinfra/clawguard/internal/security"
	"github.com/clawinfra/clawguard/internal/skills"
)

// Agent is the slice of the orchestrator the API needs.
type Agent interface {
	HandleMessage(ctx context.Context, actor, message string) (string, error)
	Resolve(ctx context.Context, reviewer, id string, status approval.Status) error
	ConfirmChallenge(ctx context.Context, reviewer, challengeID string) error
}

// Server is the HTTP API server.
type Server struct {
	bind       string
	jwtSecret  []byte
	agent      Agent
	queue      *approval.Queue
	confirmer  *security.Confirmer
	supervisor *skills.Supervisor
	sched      *scheduler.Scheduler
	creds      *creds.Store
	audit      *audit.Log
	events     *notify.Broadcaster
	logger     *slog.Logger
	startedAt  time.Time
	httpServer *http.Server
}

// Deps carries everything the server needs.
type Deps struct {
	Bind       string
	JWTSecret  []byte
	Agent      Agent
	Queue      *approval.Queue
	Confirmer  *security.Confirmer
	Supervisor *skills.Supervisor
	Scheduler  *scheduler.Scheduler
	Creds      *creds.Store
	Audit      *audit.Log
	Events     *notify.Broadcaster
	Logger     *slog.Logger
}

// NewServer creates an API server.
func NewServer(d Deps) *Server {
	return &Server{
		bind:       d.Bind,
		jwtSecret:  d.JWTSecret,
		agent:      d.Agent,
		queue:      d.Queue,
		confirmer:  d.Confirmer,
		supervisor: d.Supervisor,
		sched:      d.Scheduler,
		creds:      d.Creds,
		audit:      d.Audit,
		events:     d.Events,
		logger:     d.Logger.With("component", "api"),
		startedAt:  time.Now(),
	}
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/message", s.handleMessage)
	mux.HandleFunc("/api/approvals", s.handleApprovals)
	mux.HandleFunc("/api/approvals/", s.handleApprovalDetail)
	mux.HandleFunc("/api/confirmations", s.handleConfirmations)
	mux.HandleFunc("/api/confirmations/", s.handleConfirmationDetail)
	mux.HandleFunc("/api/skills", s.handleSkills)
	mux.HandleFunc("/api/skills/", s.handleSkillDetail)
	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobDetail)
	mux.HandleFunc("/api/audit", s.handleAudit)
	mux.HandleFunc("/api/events", s.handleEvents)

	auth := security.AuthMiddleware(s.jwtSecret)
	return s.corsMiddleware(s.loggingMiddleware(auth(mux)))
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.bind,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket stream stays open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("api server starting", "bind", s.bind)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleStatus returns a daemon overview.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pending, err := s.queue.List(r.Context(), approval.StatusPending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	skillStates := s.supervisor.List()
	running := 0
	for _, st := range skillStates {
		if st.Status == skills.StatusRunning {
			running++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_secs":       int64(time.Since(s.startedAt).Seconds()),
		"pending_approvals": len(pending),
		"confirmations":     len(s.confirmer.Pending()),
		"skills":            len(skillStates),
		"skills_running":    running,
	})
}

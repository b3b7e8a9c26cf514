package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"signage.relay/internal/config"
	"signage.relay/internal/core/domain"
	"signage.relay/internal/core/services"
)

type Server struct {
	router   *chi.Mux
	dispatch *services.DispatchService
	hub      *Hub
	cfg      *config.CoordinatorConfig
}

func NewServer(dispatch *services.DispatchService, hub *Hub, cfg *config.CoordinatorConfig) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		dispatch: dispatch,
		hub:      hub,
		cfg:      cfg,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.EnableMetrics {
		s.router.Use(MetricsMiddleware)
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "x-api-key", "x-agent-token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Get("/health", s.handleHealth)

	if s.cfg.EnableMetrics {
		s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			MetricsHandler().ServeHTTP(w, r)
		})
	}

	submitter := submitterRealm(s.cfg.CloudAPIKey, s.cfg.AuthRequired)
	agent := agentRealm(s.cfg.AgentSharedSecret, s.cfg.AuthRequired)

	s.router.Route("/api/remote", func(r chi.Router) {
		r.Use(submitter.middleware)
		r.Post("/jobs", s.handleEnqueue)
		r.Get("/jobs/{jobID}", s.handleGetJob)
		r.Get("/agents", s.handleListAgents)
		r.Get("/events", s.handleEvents)
	})

	s.router.Route("/api/agent/{agentID}", func(r chi.Router) {
		r.Use(agent.middleware)
		r.Post("/heartbeat", s.handleHeartbeat)
		r.Post("/poll", s.handlePoll)
		r.Post("/jobs/{jobID}/result", s.handleResult)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
}

// Run serves until the context is cancelled, then drains in-flight requests
// before returning so deferred cleanup in main still runs.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": s.cfg.ServiceName})
}

type enqueueRequest struct {
	AgentID string         `json:"agent_id"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	req.AgentID = strings.TrimSpace(req.AgentID)
	req.Kind = strings.TrimSpace(req.Kind)
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required.")
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind is required.")
		return
	}
	if req.Payload == nil {
		writeError(w, http.StatusBadRequest, "payload must be an object.")
		return
	}

	job, err := s.dispatch.Enqueue(r.Context(), req.AgentID, req.Kind, req.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrQueueFull) {
			writeError(w, http.StatusTooManyRequests, "Agent queue is full.")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.cfg.EnableMetrics {
		RecordJobQueued()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"status":     "queued",
		"job_id":     job.ID,
		"agent_id":   job.AgentID,
		"kind":       job.Kind,
		"created_at": job.CreatedAt,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := s.dispatch.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "Job not found.")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, jobEnvelope{OK: true, Job: job})
}

// jobEnvelope flattens the job fields beside "ok", matching the dashboard
// contract where the job document is the response body.
type jobEnvelope struct {
	OK bool `json:"ok"`
	*domain.Job
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.dispatch.ListAgents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "agents": agents})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ServeWs(s.hub, w, r)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	// An empty body is a bare liveness ping.
	var meta domain.AgentMeta
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	if err := s.dispatch.Heartbeat(r.Context(), agentID, meta); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"status":   "ok",
		"agent_id": agentID,
	})
}

type pollRequest struct {
	// Pointer so an absent field falls back to the default instead of 0.
	MaxJobs *int `json:"max_jobs"`
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	var req pollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	maxJobs := services.DefaultMaxJobsPerPoll
	if req.MaxJobs != nil {
		maxJobs = *req.MaxJobs
	}

	jobs, err := s.dispatch.Poll(r.Context(), agentID, maxJobs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}
	if s.cfg.EnableMetrics {
		RecordJobDispatched(len(jobs))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"agent_id": agentID,
		"jobs":     jobs,
	})
}

type resultRequest struct {
	Status string         `json:"status"`
	Result map[string]any `json:"result"`
	Error  string         `json:"error"`
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	jobID := chi.URLParam(r, "jobID")

	var req resultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status != "success" && status != "error" {
		writeError(w, http.StatusBadRequest, "status must be success or error.")
		return
	}

	outcome := domain.JobOutcome{
		Success: status == "success",
		Result:  req.Result,
		Error:   req.Error,
	}

	job, err := s.dispatch.RecordResult(r.Context(), agentID, jobID, outcome)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			writeError(w, http.StatusNotFound, "Job not found.")
		case errors.Is(err, domain.ErrJobNotOwned):
			writeError(w, http.StatusForbidden, "Job does not belong to this agent.")
		case errors.Is(err, domain.ErrJobFinished):
			writeError(w, http.StatusConflict, "Job already finished.")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if s.cfg.EnableMetrics {
		RecordJobFinished(string(job.Status))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"status":     "recorded",
		"job_id":     job.ID,
		"job_status": job.Status,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

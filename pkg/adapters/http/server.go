// Package http exposes workflow runs over a JSON API with SSE progress streams.
//
// Routes:
//
//	GET  /health
//	GET  /info
//	GET  /metrics                                      (when a gatherer is set)
//	GET  /workflows/{workflow}                         question graph
//	POST /sessions                                     {workflow, incident_number}
//	GET  /sessions                                     stored run keys
//	GET  /sessions/{workflow}/{incident}               current view
//	POST /sessions/{workflow}/{incident}/answer        {answer, options, users, next_question_id}
//	POST /sessions/{workflow}/{incident}/skip
//	DELETE /sessions/{workflow}/{incident}
//	GET  /sessions/{workflow}/{incident}/events        SSE stream of session diffs
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/playbook"
	"github.com/aretw0/playbook/pkg/domain"
	"github.com/aretw0/playbook/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the runs of one engine.
type Server struct {
	Engine   *playbook.Engine
	Streams  *StreamManager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithStreams shares a StreamManager that is already registered as an engine
// observer. Without it the server has no events to stream.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine *playbook.Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/workflows/{workflow}", s.GetWorkflow)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.StartSession)
		r.Route("/{workflow}/{incident}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/answer", s.AnswerQuestion)
			r.Post("/skip", s.SkipQuestion)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartRequest opens or resumes a run.
type StartRequest struct {
	Workflow       string `json:"workflow"`
	IncidentNumber string `json:"incident_number"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	sess, err := s.Engine.Start(r.Context(), body.Workflow, body.IncidentNumber)
	if err != nil {
		s.fail(w, r, "start", err)
		return
	}
	s.respondView(w, r, http.StatusCreated, sess)
}

// GetSession handles GET /sessions/{workflow}/{incident}. Runs that are not
// live in this process are resumed on demand.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	workflow, incident := runKey(r)
	sess, ok := s.Engine.Sessions().Get(workflow, incident)
	if !ok {
		var err error
		if sess, err = s.Engine.Start(r.Context(), workflow, incident); err != nil {
			s.fail(w, r, "get", err)
			return
		}
	}
	s.respondView(w, r, http.StatusOK, sess)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	keys, err := s.Engine.Sessions().List(r.Context())
	if err != nil {
		s.fail(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stored": keys, "live": s.Engine.Sessions().Live()})
}

// DeleteSession handles DELETE /sessions/{workflow}/{incident}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	workflow, incident := runKey(r)
	if err := s.Engine.Sessions().Delete(r.Context(), workflow, incident); err != nil {
		s.fail(w, r, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnswerQuestion handles POST /sessions/{workflow}/{incident}/answer.
func (s *Server) AnswerQuestion(w http.ResponseWriter, r *http.Request) {
	workflow, incident := runKey(r)

	var reply runner.Reply
	if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if reply.Skip {
		s.skip(w, r, workflow, incident)
		return
	}

	_, node, err := s.Engine.Current(r.Context(), workflow, incident)
	if err != nil {
		s.fail(w, r, "answer", err)
		return
	}

	input, err := runner.SanitizeAnswer(reply.Normalize(node).Answer())
	if err != nil {
		s.logger.Warn("Answer: Input rejected", "key", domain.SnapshotKey(workflow, incident), "error", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid input: %w", err))
		return
	}

	sess, err := s.Engine.Answer(r.Context(), workflow, incident, input)
	if err != nil {
		s.fail(w, r, "answer", err)
		return
	}
	s.respondView(w, r, http.StatusOK, sess)
}

// SkipQuestion handles POST /sessions/{workflow}/{incident}/skip.
func (s *Server) SkipQuestion(w http.ResponseWriter, r *http.Request) {
	workflow, incident := runKey(r)
	s.skip(w, r, workflow, incident)
}

func (s *Server) skip(w http.ResponseWriter, r *http.Request, workflow, incident string) {
	sess, err := s.Engine.Skip(r.Context(), workflow, incident)
	if err != nil {
		s.fail(w, r, "skip", err)
		return
	}
	s.respondView(w, r, http.StatusOK, sess)
}

// GetWorkflow handles GET /workflows/{workflow}.
func (s *Server) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	g, err := s.Engine.Inspect(r.Context(), chi.URLParam(r, "workflow"))
	if err != nil {
		s.fail(w, r, "inspect", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": g.WorkflowID(),
		"terminal_id": g.Terminal().ID,
		"questions":   g.Nodes(),
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "playbook-http",
		"version": strings.TrimSpace(playbook.Version),
	})
}

// SubscribeEvents handles GET /sessions/{workflow}/{incident}/events (SSE).
// Each event carries a JSON session diff. The optional watch query filters on
// "question", "phase", "answers" or "error".
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	workflow, incident := runKey(r)
	key := domain.SnapshotKey(workflow, incident)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(key)
	defer cancel()
	s.logger.Info("SSE: Subscribing to run updates", "key", key)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	watch := parseWatch(r.URL.Query().Get("watch"))
	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "key", key)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !matchesWatch(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func parseWatch(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func matchesWatch(msg string, watch []string) bool {
	var diff domain.SessionDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watch {
		switch field {
		case "question":
			if diff.CurrentQuestionID != nil {
				return true
			}
		case "phase":
			if diff.Phase != nil {
				return true
			}
		case "answers":
			if len(diff.Completed) > 0 {
				return true
			}
		case "error":
			if diff.LastError != nil {
				return true
			}
		}
	}
	return false
}

func (s *Server) respondView(w http.ResponseWriter, r *http.Request, status int, sess *domain.Session) {
	view, err := runner.Describe(r.Context(), s.Engine, sess)
	if err != nil {
		s.fail(w, r, "describe", err)
		return
	}
	writeJSON(w, status, view)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	attrs := []any{"op", op, "path", r.URL.Path, "status", status, "error", err}
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", attrs...)
	} else {
		s.logger.Debug("Request rejected", attrs...)
	}
	writeError(w, status, err)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		preErr  *domain.PreconditionError
		loadErr *domain.LoadError
		subErr  *domain.SubmissionError
	)
	switch {
	case errors.As(err, &preErr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrWorkflowNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSkipRequired),
		errors.Is(err, domain.ErrSubmissionInFlight),
		errors.Is(err, domain.ErrRunComplete),
		errors.Is(err, domain.ErrNotAwaitingInput):
		return http.StatusConflict
	case errors.As(err, &subErr), errors.As(err, &loadErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func runKey(r *http.Request) (string, string) {
	return chi.URLParam(r, "workflow"), chi.URLParam(r, "incident")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Message: domain.DisplayMessage(err)})
}

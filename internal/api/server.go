// Package api exposes the generation controller over HTTP for a browser front
// end: the read model, configuration edits, and the attempt lifecycle.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/GoPolymarket/parlay-builder/internal/backend"
	"github.com/GoPolymarket/parlay-builder/internal/controller"
	"github.com/GoPolymarket/parlay-builder/internal/history"
	xlog "github.com/GoPolymarket/parlay-builder/internal/log"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
	"github.com/GoPolymarket/parlay-builder/internal/recovery"
	"github.com/GoPolymarket/parlay-builder/internal/render"
)

const defaultHistoryLimit = 20

// Generator is the controller surface the API drives.
type Generator interface {
	View() controller.View
	Config() parlay.RequestConfig
	SetConfig(cfg parlay.RequestConfig) error
	ApplyPreset(name string) error
	Generate(ctx context.Context) (parlay.Outcome, error)
	Retry(ctx context.Context) (parlay.Outcome, error)
	ApplyRecovery(ctx context.Context, id recovery.ActionID) (parlay.Outcome, error)
	DismissPaywall(ctx context.Context) error
	Save(ctx context.Context, title string) (backend.SavedParlay, error)
	Ledger() *history.Ledger
}

// SessionProvider exposes the signed-in user (nil if unavailable).
type SessionProvider interface {
	UserID() string
	SetUser(ctx context.Context, userID string) error
	LastSync() time.Time
	LastError() error
}

// Options configures the server.
type Options struct {
	Addr           string
	AllowedOrigins []string
	Generator      Generator
	Sessions       SessionProvider
	Logger         zerolog.Logger
}

// Server is the HTTP API in front of one controller.
type Server struct {
	httpServer *http.Server
	gen        Generator
	sessions   SessionProvider
	logger     zerolog.Logger
	startedAt  time.Time

	// attempts started by the async endpoints run on baseCtx and are
	// awaited by Shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new API server bound to opts.Addr.
func NewServer(opts Options) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		gen:       opts.Generator,
		sessions:  opts.Sessions,
		logger:    opts.Logger.With().Str(xlog.FieldComponent, "api").Logger(),
		startedAt: time.Now(),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Get("/api/state", s.handleState)
	r.Get("/api/config", s.handleGetConfig)
	r.Put("/api/config", s.handlePutConfig)
	r.Post("/api/preset/{name}", s.handlePreset)
	r.Post("/api/generate", s.handleGenerate)
	r.Post("/api/retry", s.handleRetry)
	r.Post("/api/recovery/{action}", s.handleRecovery)
	r.Post("/api/paywall/dismiss", s.handleDismissPaywall)
	r.Post("/api/save", s.handleSave)
	r.Get("/api/weeks", s.handleWeeks)
	r.Get("/api/history", s.handleHistory)
	r.Get("/api/history/{id}", s.handleAttempt)
	r.Post("/api/session", s.handleSession)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins serving HTTP requests.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("api server listening")
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("api server")
		}
	}()
	return nil
}

// Shutdown stops accepting requests, cancels attempts started through the
// API, and waits for them to resolve.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	s.writeJSONStatus(w, http.StatusOK, v)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSONStatus(w, errorStatus(err), map[string]string{"error": err.Error()})
}

// errorStatus maps controller errors onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, controller.ErrInFlight),
		errors.Is(err, controller.ErrEditWhileInFlight),
		errors.Is(err, controller.ErrNoFailure),
		errors.Is(err, controller.ErrNoResult),
		errors.Is(err, controller.ErrTripleUnavailable):
		return http.StatusConflict
	case errors.Is(err, controller.ErrPaywallRequired),
		errors.Is(err, controller.ErrPaywallPending):
		return http.StatusPaymentRequired
	case errors.Is(err, controller.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrClosed):
		return http.StatusServiceUnavailable
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusUnauthorized {
			return http.StatusUnauthorized
		}
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

// GET /api/health: liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"ok":       true,
		"uptime_s": time.Since(s.startedAt).Seconds(),
	})
}

// GET /api/ready: ready once entitlements have been resolved at least once.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := true
	resp := map[string]interface{}{}
	if s.sessions != nil {
		last := s.sessions.LastSync()
		ready = !last.IsZero()
		resp["entitlements_synced_at"] = last
		if err := s.sessions.LastError(); err != nil {
			resp["entitlements_error"] = err.Error()
		}
	}
	resp["ready"] = ready
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSONStatus(w, status, resp)
}

// GET /api/state: the full read model. ?format=text returns the terminal rendering.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	v := s.gen.View()
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(render.Text(v) + "\n"))
		return
	}
	s.writeJSON(w, v)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.gen.Config())
}

// PUT /api/config: replace the request configuration.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg parlay.RequestConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid config: " + err.Error()})
		return
	}
	if err := s.gen.SetConfig(cfg); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, s.gen.View())
}

// POST /api/preset/{name}: apply a quick-start preset.
func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.gen.ApplyPreset(chi.URLParam(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, s.gen.View())
}

// POST /api/generate: start an attempt. The attempt runs in the background;
// poll /api/state for progress and the outcome.
func (s *Server) handleGenerate(w http.ResponseWriter, _ *http.Request) {
	s.startAttempt(w, "generate", s.gen.Generate)
}

// POST /api/retry: rerun the last configuration, linked to the previous attempt.
func (s *Server) handleRetry(w http.ResponseWriter, _ *http.Request) {
	s.startAttempt(w, "retry", s.gen.Retry)
}

// POST /api/recovery/{action}: apply an offered recovery action and regenerate.
func (s *Server) handleRecovery(w http.ResponseWriter, r *http.Request) {
	id := recovery.ActionID(chi.URLParam(r, "action"))
	v := s.gen.View()
	if v.Failure == nil {
		s.writeError(w, controller.ErrNoFailure)
		return
	}
	offered := false
	for _, a := range v.Failure.Actions {
		if a.ID == id {
			offered = true
			break
		}
	}
	if !offered {
		s.writeError(w, controller.ErrUnknownAction)
		return
	}
	s.startAttempt(w, "recovery", func(ctx context.Context) (parlay.Outcome, error) {
		return s.gen.ApplyRecovery(ctx, id)
	})
}

// startAttempt runs an attempt on the server context and answers once it is
// either on the wire (202) or refused by pre-flight checks (mapped error).
func (s *Server) startAttempt(w http.ResponseWriter, op string, run func(context.Context) (parlay.Outcome, error)) {
	v := s.gen.View()
	if !v.CanGenerate {
		s.writeJSONStatus(w, http.StatusConflict, map[string]string{"error": "generation unavailable", "blocked": v.Blocked})
		return
	}
	started := make(chan string, 1)
	finished := make(chan error, 1)
	ctx := controller.WithStarted(s.baseCtx, func(id string) { started <- id })

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		out, err := run(ctx)
		finished <- err
		if err != nil {
			s.logger.Warn().Err(err).Str("op", op).Msg("attempt rejected")
			return
		}
		s.logger.Debug().Str("op", op).Str(xlog.FieldOutcome, string(out.Kind())).Msg("attempt resolved")
	}()

	select {
	case id := <-started:
		s.writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started", "attempt_id": id})
	case err := <-finished:
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

// POST /api/paywall/dismiss
func (s *Server) handleDismissPaywall(w http.ResponseWriter, r *http.Request) {
	if err := s.gen.DismissPaywall(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, s.gen.View())
}

type saveRequest struct {
	Title string `json:"title"`
}

// POST /api/save: persist the current result.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
			return
		}
	}
	saved, err := s.gen.Save(r.Context(), req.Title)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSONStatus(w, http.StatusCreated, saved)
}

// GET /api/weeks
func (s *Server) handleWeeks(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.gen.View().Weeks)
}

// GET /api/history?limit=N: recent attempts, newest first, plus today's stats.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	ledger := s.gen.Ledger()
	s.writeJSON(w, map[string]interface{}{
		"attempts": ledger.Recent(limit),
		"today":    ledger.Stats(),
	})
}

// GET /api/history/{id}
func (s *Server) handleAttempt(w http.ResponseWriter, r *http.Request) {
	a, ok := s.gen.Ledger().Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "attempt not found"})
		return
	}
	s.writeJSON(w, a)
}

type sessionRequest struct {
	UserID string `json:"user_id"`
}

// POST /api/session: switch the signed-in user. An empty id signs out.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.writeJSONStatus(w, http.StatusNotImplemented, map[string]string{"error": "sessions unavailable"})
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}
	if err := s.sessions.SetUser(r.Context(), req.UserID); err != nil {
		s.writeJSONStatus(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"user_id":      s.sessions.UserID(),
		"entitlements": s.gen.View().Entitlements,
	})
}

// Package api serves recorded usage and the ignore list over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/imring/apptime/internal/logger"
	"github.com/imring/apptime/internal/report"
	"github.com/imring/apptime/internal/store"
)

// Store is the part of the record store the API reads and edits.
type Store interface {
	report.Source
	Applications(ctx context.Context) ([]store.Application, error)
	Ignores(ctx context.Context) ([]store.IgnoreRule, error)
	AddIgnore(ctx context.Context, kind store.IgnoreKind, value string) error
	RemoveIgnore(ctx context.Context, kind store.IgnoreKind, value string) error
}

// Status reports whether the sampler is recording.
type Status interface {
	Running() bool
}

// Response is the body of every non-data reply.
type Response struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Health is the /healthz body.
type Health struct {
	Running bool `json:"running"`
}

type Option func(*Server)

// WithStatus reports sampler state on /healthz.
func WithStatus(st Status) Option { return func(s *Server) { s.status = st } }

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithWindowNames makes usage replies carry window names instead of
// executable names.
func WithWindowNames(v bool) Option { return func(s *Server) { s.windowNames = v } }

// Server holds the handlers.
type Server struct {
	store       Store
	reporter    *report.Reporter
	status      Status
	metrics     http.Handler
	logger      *slog.Logger
	windowNames bool
}

// New creates a Server backed by st.
func New(st Store, opts ...Option) *Server {
	s := &Server{
		store:    st,
		reporter: report.New(st),
		logger:   logger.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/actives", s.usage(store.ActiveLog))
		r.Get("/focuses", s.usage(store.FocusLog))
		r.Get("/applications", s.listApplications)
		r.Get("/ignores", s.listIgnores)
		r.Post("/ignores", s.addIgnore)
		r.Delete("/ignores", s.removeIgnore)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		write(w, http.StatusNotFound, Response{Message: "Not found."})
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
// The listener is bound before it returns, so bind errors surface at once
// through ready.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if ready != nil {
		ready(ln.Addr())
	}

	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return fmt.Errorf("api server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	h := Health{}
	if s.status != nil {
		h.Running = s.status.Running()
	}
	write(w, http.StatusOK, h)
}

func (s *Server) usage(log store.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		scope, err := store.ParseScope(q.Get("date"))
		if err != nil {
			write(w, http.StatusBadRequest, Response{Message: "Invalid date.", Detail: err.Error()})
			return
		}
		opts := store.QueryOptions{Path: q.Get("path"), Scope: scope}

		if q.Get("raw") == "1" || q.Get("raw") == "true" {
			var recs []store.Record
			if log == store.FocusLog {
				recs, err = s.store.Focuses(r.Context(), opts)
			} else {
				recs, err = s.store.Actives(r.Context(), opts)
			}
			if err != nil {
				s.internalError(w, fmt.Sprintf("failed to load %s records", log), err)
				return
			}
			if recs == nil {
				recs = []store.Record{}
			}
			write(w, http.StatusOK, recs)
			return
		}

		usages, err := s.reporter.Usage(r.Context(), log, opts, report.Options{WindowNames: s.windowNames})
		if err != nil {
			s.internalError(w, "failed to build report", err)
			return
		}
		write(w, http.StatusOK, usages)
	}
}

func (s *Server) listApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.store.Applications(r.Context())
	if err != nil {
		s.internalError(w, "failed to list applications", err)
		return
	}
	if apps == nil {
		apps = []store.Application{}
	}
	write(w, http.StatusOK, apps)
}

func (s *Server) listIgnores(w http.ResponseWriter, r *http.Request) {
	rules, err := s.store.Ignores(r.Context())
	if err != nil {
		s.internalError(w, "failed to list ignore rules", err)
		return
	}
	if rules == nil {
		rules = []store.IgnoreRule{}
	}
	write(w, http.StatusOK, rules)
}

func (s *Server) addIgnore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		write(w, http.StatusBadRequest, Response{Message: "Invalid request body.", Detail: err.Error()})
		return
	}
	rule, ok := parseRule(w, req.Kind, req.Value)
	if !ok {
		return
	}
	if err := s.store.AddIgnore(r.Context(), rule.Kind, rule.Value); err != nil {
		s.internalError(w, "failed to add ignore rule", err)
		return
	}
	write(w, http.StatusCreated, rule)
}

func (s *Server) removeIgnore(w http.ResponseWriter, r *http.Request) {
	rule, ok := parseRule(w, r.URL.Query().Get("kind"), r.URL.Query().Get("value"))
	if !ok {
		return
	}
	if err := s.store.RemoveIgnore(r.Context(), rule.Kind, rule.Value); err != nil {
		s.internalError(w, "failed to remove ignore rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseRule writes a 400 and returns false when kind or value is unusable.
// An empty kind means file.
func parseRule(w http.ResponseWriter, kind, value string) (store.IgnoreRule, bool) {
	if kind == "" {
		kind = string(store.IgnoreFile)
	}
	k, err := store.ParseIgnoreKind(kind)
	if err != nil {
		write(w, http.StatusBadRequest, Response{Message: "Invalid ignore kind.", Detail: err.Error()})
		return store.IgnoreRule{}, false
	}
	if value == "" {
		write(w, http.StatusBadRequest, Response{Message: "Missing ignore value."})
		return store.IgnoreRule{}, false
	}
	return store.IgnoreRule{Kind: k, Value: value}, true
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	write(w, http.StatusInternalServerError, Response{Message: "Internal error.", Detail: err.Error()})
}

func write(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// Package devserver serves build output over HTTP during development.
//
// The server runs one build on start, serves the output directory, and
// rebuilds on request:
//
//	GET  /__towerpack/manifest  manifest of the last successful build
//	GET  /__towerpack/stats     module graph and chunks of that build
//	POST /__towerpack/rebuild   run a build now and report its outcome
//	GET  /*                     files from the output directory
//
// Rebuilds are serialized by the underlying [pipeline.Runner]. A failed
// rebuild leaves the previous output and manifest in place. Responses are
// gzip-compressed unless the configuration disables it.
package devserver

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/errors"
	pkgio "github.com/matzehuels/towerpack/pkg/io"
	"github.com/matzehuels/towerpack/pkg/observability"
	"github.com/matzehuels/towerpack/pkg/pipeline"
)

// RoutePrefix is the path prefix of the server's own endpoints.
const RoutePrefix = "/__towerpack"

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Config *config.Config
	Runner *pipeline.Runner // Default: uncached runner
	Logger *log.Logger      // Default: discard
}

// Server is a development HTTP server. Create it with [New].
type Server struct {
	cfg    *config.Config
	runner *pipeline.Runner
	logger *log.Logger
	router chi.Router

	mu      sync.RWMutex
	last    *pipeline.Result
	lastErr error
}

// New creates a Server. It does not build; call [Server.Rebuild] or
// [Server.ListenAndServe].
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	runner := opts.Runner
	if runner == nil {
		runner = pipeline.NewRunner(nil, nil, logger)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		cfg:    cfg.Clone().WithDefaults(),
		runner: runner,
		logger: logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Route(RoutePrefix, func(r chi.Router) {
		r.Get("/manifest", s.handleManifest)
		r.Get("/stats", s.handleStats)
		r.Post("/rebuild", s.handleRebuild)
	})

	files := http.FileServer(http.Dir(s.cfg.OutputPath()))
	if s.cfg.DevServer.CompressEnabled() {
		r.Handle("/*", gzhttp.GzipHandler(files))
	} else {
		r.Handle("/*", files)
	}
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.DevServer.Host, strconv.Itoa(s.cfg.DevServer.Port))
}

// Last returns the most recent successful build, or nil.
func (s *Server) Last() *pipeline.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Rebuild runs a build. On success it replaces the result served by the
// manifest and stats endpoints.
func (s *Server) Rebuild(ctx context.Context) (*pipeline.Result, error) {
	start := time.Now()
	res, err := s.runner.Build(ctx, s.cfg)
	observability.Server().OnRebuild(ctx, time.Since(start), err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		s.logger.Error("rebuild failed", "error", err)
		return nil, err
	}
	s.last = res
	s.logger.Info("rebuilt",
		"build", res.BuildID,
		"modules", res.Stats.Modules,
		"errors", len(res.Errors),
		"duration", time.Since(start))
	return res, nil
}

// ListenAndServe builds once, then serves until ctx is cancelled. A failed
// initial build is logged and the server still starts so that a later
// rebuild can recover.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if _, err := s.Rebuild(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", "http://"+srv.Addr, "dir", s.cfg.OutputPath())
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// =============================================================================
// Handlers
// =============================================================================

type rebuildResponse struct {
	BuildID    string   `json:"buildId"`
	Modules    int      `json:"modules"`
	Chunks     int      `json:"chunks"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
	DurationMS int64    `json:"durationMs"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	res, err := s.current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Manifest)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	res, err := s.current()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, pkgio.FromBuild(res.Graph, res.Plan, res.Manifest))
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	res, err := s.Rebuild(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := rebuildResponse{
		BuildID:    res.BuildID,
		Modules:    res.Stats.Modules,
		Chunks:     res.Stats.Chunks,
		Errors:     []string{},
		Warnings:   res.Warnings,
		DurationMS: res.Stats.Total().Milliseconds(),
	}
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// current returns the last successful build, or the error explaining why
// there is none.
func (s *Server) current() (*pipeline.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last != nil {
		return s.last, nil
	}
	if s.lastErr != nil {
		return nil, s.lastErr
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "no build has completed yet")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: string(errors.GetCode(err))})
}

// observe reports every request to the server hooks and the debug log.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		observability.Server().OnRequest(r.Context(), r.Method, r.URL.Path, status, d)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status, "duration", d)
	})
}

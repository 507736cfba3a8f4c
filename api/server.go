// Package api exposes the comparator over HTTP for pipeline integrations
// that prefer a service call over a CLI invocation.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iriusrisk/iriusrisk-cli-sub001/client"
	"github.com/iriusrisk/iriusrisk-cli-sub001/diff"
	"github.com/iriusrisk/iriusrisk-cli-sub001/gate"
	modelerrors "github.com/iriusrisk/iriusrisk-cli-sub001/pkg/errors"
	"github.com/iriusrisk/iriusrisk-cli-sub001/snapshot"
)

// Config holds server configuration.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
}

// VersionLister lists the product's resolvable versions.
type VersionLister interface {
	ListVersions(ctx context.Context) ([]client.VersionHandle, error)
}

// Server is the HTTP comparison service.
type Server struct {
	httpServer *http.Server
	assembler  *snapshot.Assembler
	comparator *diff.Comparator
	gateEngine *gate.Engine
	versions   VersionLister
	config     *Config
	log        zerolog.Logger
}

// NewServer creates a comparison server.
func NewServer(assembler *snapshot.Assembler, comparator *diff.Comparator, gateEngine *gate.Engine, versions VersionLister, config *Config, logger zerolog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		assembler:  assembler,
		comparator: comparator,
		gateEngine: gateEngine,
		versions:   versions,
		config:     config,
		log:        logger.With().Str("component", "api").Logger(),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Post("/api/v1/compare", s.handleCompare)
	r.Get("/api/v1/versions", s.handleVersions)

	return r
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.config.Port).Msg("comparison server starting")
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CompareRequest is the API request for a comparison.
type CompareRequest struct {
	BaselineVersion string `json:"baselineVersion"`
	TargetVersion   string `json:"targetVersion,omitempty"`
	Gate            bool   `json:"gate,omitempty"`
}

// CompareResponse is the comparison result plus the optional gate outcome.
type CompareResponse struct {
	Comparison *diff.ComparisonResult `json:"comparison"`
	Gate       *gate.Result           `json:"gate,omitempty"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BaselineVersion == "" {
		s.jsonError(w, http.StatusBadRequest, "baselineVersion is required")
		return
	}

	baseline, target, err := s.assembler.BuildPair(r.Context(), req.BaselineVersion, req.TargetVersion)
	if err != nil {
		s.modelError(w, err)
		return
	}

	result, err := s.comparator.Compare(baseline, target)
	if err != nil {
		s.modelError(w, err)
		return
	}

	resp := CompareResponse{Comparison: result}
	if req.Gate {
		resp.Gate = s.gateEngine.Evaluate(result)
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.versions.ListVersions(r.Context())
	if err != nil {
		s.modelError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"versions": versions})
}

// modelError maps the error taxonomy onto HTTP statuses so callers can
// tell a bad version name from an unreachable upstream from corrupt data.
func (s *Server) modelError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case modelerrors.IsKind(err, modelerrors.KindVersionNotFound):
		status = http.StatusNotFound
	case modelerrors.IsKind(err, modelerrors.KindFetch):
		status = http.StatusBadGateway
	case modelerrors.IsKind(err, modelerrors.KindParse):
		status = http.StatusUnprocessableEntity
	}
	s.log.Error().Err(err).Int("status", status).Msg("comparison failed")
	s.jsonError(w, status, err.Error())
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

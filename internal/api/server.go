package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"cointist/internal/aggregator"
	"cointist/internal/artifacts"
	"cointist/internal/config"
	"cointist/internal/export"
	"cointist/internal/logging"
	"cointist/internal/model"
	"cointist/internal/registrar"
	"cointist/internal/resolver"
	"cointist/internal/slugmap"
)

const maxBodyBytes = 8 << 20

// Registrar registers runs.
type Registrar interface {
	Register(ctx context.Context, keys []string) (registrar.Registration, error)
}

// Summaries answers summary queries.
type Summaries interface {
	Latest(ctx context.Context, since *time.Time) (aggregator.Result, error)
	Wait(ctx context.Context, since *time.Time, timeout, interval time.Duration) (aggregator.Result, error)
}

// Resolver backfills identifiers.
type Resolver interface {
	ResolveBatch(ctx context.Context, items []model.Item) (resolver.Report, error)
	Tiers() []model.Tier
}

// Exporter writes the final artifact.
type Exporter interface {
	Export(ctx context.Context, items []model.Item) (export.Result, error)
}

// Deps are the pipeline components served by the API.
type Deps struct {
	Registrar Registrar
	Summaries Summaries
	Resolver  Resolver
	Exporter  Exporter
	Artifacts *artifacts.Dir
	Logs      *artifacts.Dir
	SlugMap   *slugmap.Map
	// Alive probes a worker pid; nil reports every worker as not alive.
	Alive func(ctx context.Context, pid int) (bool, error)
}

// Server is the HTTP API server.
type Server struct {
	bind         string
	token        string
	exportFile   string
	pollInterval time.Duration
	maxWait      time.Duration
	deps         Deps
	logger       *slog.Logger

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// New builds a server from configuration.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		bind:         strings.TrimSpace(cfg.Paths.APIBind),
		token:        cfg.Paths.APIToken,
		exportFile:   cfg.Paths.ExportFile,
		pollInterval: cfg.PollInterval(),
		maxWait:      cfg.WaitTimeout(),
		deps:         deps,
		logger:       logging.NewComponentLogger(logger, "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/resolve", s.handleResolve)
	mux.HandleFunc("/api/export", s.handleExport)
	s.handler = requestIDMiddleware(authMiddleware(s.token, mux.ServeHTTP), s.logger)

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.maxWait + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// Package web serves the survey review API
package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/fefal-etl/internal/audit"
	"github.com/fefal-etl/internal/logging"
	"github.com/fefal-etl/internal/pipeline"
	"github.com/fefal-etl/internal/sheet"
	"github.com/fefal-etl/internal/store"
	"github.com/fefal-etl/internal/web/handlers"
	"github.com/fefal-etl/internal/web/middleware"
)

// Deps are the collaborators the server runs surveys with
type Deps struct {
	Pipeline    *pipeline.Pipeline
	Loader      handlers.InputLoader
	Store       store.MappingStore
	Audit       audit.Recorder
	Types       handlers.TypeLister
	ReadOptions sheet.ReadOptions
	Log         *zerolog.Logger
}

// Server represents the web server
type Server struct {
	config     *Config
	deps       Deps
	sessions   *handlers.Sessions
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance
func NewServer(config *Config, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logging.Default()
	}
	s := &Server{
		config:   config,
		deps:     deps,
		sessions: handlers.NewSessions(config.Limits.MaxSessions),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.Timeouts.Read,
		WriteTimeout: config.Timeouts.Write,
		IdleTimeout:  config.Timeouts.Idle,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Convert config for handlers (to avoid import cycle)
	handlerConfig := &handlers.Config{MaxUploadBytes: s.config.Limits.MaxUploadBytes}
	handlerConfig.Features.ExportEnabled = s.config.Features.ExportEnabled
	handlerConfig.Features.ManualOverrideEnabled = s.config.Features.ManualOverrideEnabled

	runsHandler := &handlers.RunsHandler{
		Pipeline:    s.deps.Pipeline,
		Loader:      s.deps.Loader,
		Sessions:    s.sessions,
		Audit:       s.deps.Audit,
		ReadOptions: s.deps.ReadOptions,
		Config:      handlerConfig,
		Log:         s.deps.Log,
	}
	mappingsHandler := &handlers.MappingsHandler{Store: s.deps.Store}
	registryHandler := &handlers.RegistryHandler{Types: s.deps.Types}

	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Runs
	api.HandleFunc("/runs", runsHandler.CreateRun).Methods("POST")
	api.HandleFunc("/runs", runsHandler.ListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", runsHandler.GetRun).Methods("GET")
	api.HandleFunc("/runs/{id}/partitions/{partition}", runsHandler.GetPartition).Methods("GET")
	api.HandleFunc("/runs/{id}/decisions", runsHandler.ListDecisions).Methods("GET")

	// Manual review (if enabled)
	if s.config.Features.ManualOverrideEnabled {
		api.HandleFunc("/runs/{id}/override", runsHandler.Override).Methods("POST")
		api.HandleFunc("/runs/{id}/resolve", runsHandler.Resolve).Methods("POST")
	}

	// Export (if enabled)
	if s.config.Features.ExportEnabled {
		api.HandleFunc("/runs/{id}/workbook", runsHandler.DownloadWorkbook).Methods("GET")
	}

	// Mapping store
	if s.deps.Store != nil {
		api.HandleFunc("/mappings/columns", mappingsHandler.ListColumnRenames).Methods("GET")
		api.HandleFunc("/mappings/columns", mappingsHandler.UpsertColumnRename).Methods("PUT")
		api.HandleFunc("/mappings/entity-types", mappingsHandler.ListEntityTypes).Methods("GET")
		api.HandleFunc("/mappings/entity-types", mappingsHandler.UpsertEntityType).Methods("PUT")
		api.HandleFunc("/groups/{year:[0-9]+}", mappingsHandler.GetGroups).Methods("GET")
		api.HandleFunc("/groups/{year:[0-9]+}", mappingsHandler.PutGroups).Methods("PUT")
	}

	api.HandleFunc("/registry/types", registryHandler.ListTypes).Methods("GET")

	// Apply middleware
	s.router.Use(middleware.Recovery(s.deps.Log))
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging(s.deps.Log))

	if s.config.Auth.Enabled {
		// Apply authentication middleware to API routes only
		api.Use(middleware.Authentication(s.config.Auth.APIKey))
	}
}

// Start serves until ctx is done or the process is interrupted, then
// shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.deps.Log.Info().Str("addr", s.httpServer.Addr).Msg("starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.deps.Log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.deps.Log.Info().Msg("server stopped")
	return nil
}

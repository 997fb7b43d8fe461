// File: internal/mcp/server.go

// Package mcp hosts the tool dispatch server: the HTTP surface that exposes
// device tools, task orchestration and report retrieval to remote callers.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/internal/config"
	"github.com/vatsal-bst/bluestacksmcp/internal/device"
	"github.com/vatsal-bst/bluestacksmcp/internal/executor"
	"github.com/vatsal-bst/bluestacksmcp/internal/observability"
	"github.com/vatsal-bst/bluestacksmcp/internal/orchestrator"
	"github.com/vatsal-bst/bluestacksmcp/internal/reasoning"
	"github.com/vatsal-bst/bluestacksmcp/internal/snapshot"
	"github.com/vatsal-bst/bluestacksmcp/internal/store"
)

// Server hosts the tool dispatch surface and owns the wired components behind
// it.
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpServer *http.Server

	driver   *device.Driver
	archive  *store.Archive
	tasks    *TaskService
	hub      *Hub
	handlers *Handlers
}

// NewServer wires the full stack: ADB driver, snapshot builder, executor,
// reasoning engine, orchestrator, archive and HTTP handlers.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	adb := device.NewADB(cfg.Device, logger)
	driver := device.NewDriver(adb, cfg.Device, logger)

	builder := snapshot.NewBuilder(driver, *cfg, logger)
	exec := executor.New(driver, *cfg, logger)

	llmClient, err := reasoning.NewGeminiClient(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	reasoner := reasoning.NewEngine(llmClient, logger)

	hub := NewHub(logger)
	engine := orchestrator.NewEngine(builder, exec, reasoner, cfg.Engine, hub, logger)

	archive, err := store.Open(cfg.Archive.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session archive: %w", err)
	}

	registry := orchestrator.NewRegistry()
	tasks := NewTaskService(engine, registry, archive, cfg.Device.Serial, logger)
	handlers := NewHandlers(logger, tasks, archive, driver)

	return &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		driver:   driver,
		archive:  archive,
		tasks:    tasks,
		hub:      hub,
		handlers: handlers,
	}, nil
}

// Router assembles the chi router with the standard middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// The event stream stays outside the request logger; websocket
	// connections are long-lived and would spam it.
	r.Get("/ws/v1/events", s.hub.HandleEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger)
		s.handlers.RegisterRoutes(r)
	})

	return r
}

// Start runs the server until a shutdown signal arrives, then drains
// in-flight sessions and closes the archive.
func (s *Server) Start() error {
	defer observability.Sync()

	addr := s.cfg.Server.ListenAddr
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	s.logger.Info("tool dispatch server starting",
		zap.String("address", addr),
		zap.String("device", s.cfg.Device.Serial),
	)

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		s.logger.Info("received shutdown signal, shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}

		// Abort running sessions and let them archive their partial traces.
		if err := s.tasks.Shutdown(ctx); err != nil {
			s.logger.Warn("session drain did not finish in time", zap.Error(err))
		}

		if err := s.archive.Close(); err != nil {
			s.logger.Error("archive close error", zap.Error(err))
		}

		close(idleConnsClosed)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server ListenAndServe error", zap.Error(err))
		s.archive.Close()
		return err
	}

	<-idleConnsClosed
	s.logger.Info("server stopped.")
	return nil
}

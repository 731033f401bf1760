// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/travelogue/internal/api"
	"github.com/starford/travelogue/internal/cache"
	"github.com/starford/travelogue/internal/librarysync"
	"github.com/starford/travelogue/internal/logging"
	"github.com/starford/travelogue/internal/mcpserver"
	"github.com/starford/travelogue/internal/postservice"
	"github.com/starford/travelogue/internal/source"
	"github.com/starford/travelogue/internal/sse"
)

// runtime holds the components shared by the HTTP and MCP entry points.
type runtime struct {
	logger    *slog.Logger
	logCloser io.Closer
	cache     *cache.Helper
	file      *source.File
	sync      *librarysync.Sync
	svc       *postservice.Service
}

func (rt *runtime) Close() {
	if err := rt.cache.Close(); err != nil {
		rt.logger.Error("cache close failed", slog.String("error", err.Error()))
	}
	_ = rt.logCloser.Close()
}

func setup(ctx context.Context, app *application, logOut io.Writer) (*runtime, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger, logCloser := logging.New(logOut, cfg.App.LogLevel, cfg.App.LogFile.Options())
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source_driver", cfg.Source.Driver),
		slog.String("cache_driver", cfg.Cache.Driver),
		slog.String("cache_path", cfg.Cache.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	helper, err := cache.Open(ctx, cfg.Cache.Options(), logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}

	rt := &runtime{logger: logger, logCloser: logCloser, cache: helper}

	var inner source.Source
	switch cfg.Source.Driver {
	case SourceFile:
		f, err := source.NewFile(cfg.Source.File.Dir)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("init file source: %w", err)
		}
		rt.file = f
		inner = f
	default:
		inner = source.NewFlickr(cfg.Source.FlickrOptions(), nil)
	}
	src := source.NewResilient(inner, cfg.Source.ResilientOptions(), logger)

	rt.sync = librarysync.New(cfg.Library.SyncConfig(), helper, src, logger)
	rt.svc = postservice.NewService(rt.sync)
	return rt, nil
}

// Run starts the HTTP server and the library sync with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	rt, err := setup(ctx, app, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := app.config
	logger := rt.logger

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	rt.sync.Subscribe(broker.PublishSyncEvent)

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", readyHandler(rt.sync))
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rt.sync.Run(gCtx)
	})

	// Reload the library when the fixture directory changes.
	if rt.file != nil && cfg.Source.File.Watch {
		g.Go(func() error {
			return source.Watch(gCtx, rt.file.Root(), cfg.Source.File.Debounce, logger, func() {
				if !rt.sync.Refresh() {
					logger.Info("fixture change ignored while loading")
				}
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		waitForSignal(gCtx, logger)

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the library over MCP on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	rt, err := setup(ctx, app, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	syncDone := make(chan error, 1)
	go func() {
		syncDone <- rt.sync.Run(ctx)
	}()

	srv := mcpserver.New(rt.svc, app.version)
	rt.logger.Info("MCP server starting on stdio")
	err = srv.ServeStdio()

	cancel()
	if syncErr := <-syncDone; syncErr != nil && !errors.Is(syncErr, context.Canceled) {
		rt.logger.Error("library sync error", slog.String("error", syncErr.Error()))
	}
	return err
}

func waitForSignal(ctx context.Context, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}
}

// readyHandler reports 503 until a browsable library has been published.
func readyHandler(s *librarysync.Sync) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.Library() == nil {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status":%q}`, s.State().String())
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

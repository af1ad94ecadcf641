// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/chasqui/internal/api"
	"github.com/starford/chasqui/internal/cache"
	"github.com/starford/chasqui/internal/content"
	"github.com/starford/chasqui/internal/engine"
	"github.com/starford/chasqui/internal/logging"
	"github.com/starford/chasqui/internal/mcpserver"
	"github.com/starford/chasqui/internal/notify"
	"github.com/starford/chasqui/internal/sse"
	"github.com/starford/chasqui/internal/store"
	"github.com/starford/chasqui/internal/watcher"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	db     *store.SQLite
	engine *engine.Engine
	broker *sse.Broker
}

func (r *runtime) close() {
	if r.broker != nil {
		r.broker.Close()
	}
	if err := r.db.Close(); err != nil {
		r.logger.Warn("sqlite close failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup builds logger, storage, cache and engine, and warms the cache from
// the database. withBroker adds the SSE broker as a notifier.
func (a *application) setup(ctx context.Context, withBroker bool) (*runtime, error) {
	cfg := a.config

	logger, err := logging.New(a.logOutput, cfg.App.LogLevel, cfg.App.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_path", cfg.Content.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("routes_prefix", cfg.Routes.Prefix),
		slog.Bool("webhook", cfg.Notifier.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Content.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	reader, err := content.NewFS(cfg.Content.Path)
	if err != nil {
		return nil, fmt.Errorf("init content reader: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, db: db}

	var notifiers engine.Notifiers
	if withBroker {
		routes := cfg.Routes.Manifest()
		rt.broker = sse.NewBroker(cfg.App.HTTP.Heartbeat, routes.Route)
		notifiers = append(notifiers, rt.broker)
	}
	if cfg.Notifier.Enabled() {
		notifiers = append(notifiers, notify.NewWebhook(cfg.Notifier.WebhookURL, cfg.Notifier.WebhookSecret, cfg.Notifier.Timeout, logger))
	}

	rt.engine = engine.New(reader, db, cache.New(), notifiers, logger, engine.Options{
		StripExtension: cfg.Content.StripExtension,
		Routes:         cfg.Routes.Manifest(),
		StrictLinks:    cfg.Content.StrictLinks,
		Workers:        cfg.Content.Workers,
		Extensions:     cfg.Content.Extensions,
	})

	if err := rt.engine.Warm(ctx); err != nil {
		rt.close()
		return nil, fmt.Errorf("warm cache: %w", err)
	}
	return rt, nil
}

func (r *runtime) initialSync(ctx context.Context) {
	s, err := r.engine.RunFullSync(ctx)
	if err != nil {
		r.logger.Warn("initial sync failed", slog.String("error", err.Error()))
		return
	}
	r.logger.Info("initial sync complete",
		slog.Int("upserted", len(s.Upserted)),
		slog.Int("deleted", len(s.Deleted)),
		slog.Int("failed", len(s.Failed)))
}

func (r *runtime) router() chi.Router {
	rt := chi.NewRouter()
	rt.Use(middleware.RequestID)
	rt.Use(middleware.RealIP)
	rt.Use(middleware.Recoverer)

	rt.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	rt.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := r.db.Ping(); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		if r.engine.NeedsFullSync() {
			writeStatus(w, http.StatusServiceUnavailable, "resync pending")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	var events http.Handler
	if r.broker != nil {
		events = r.broker
	}
	rt.Mount("/api", api.NewRouter(r.engine, events, r.logger))
	return rt
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}

// Run starts the watcher, the sync engine and the HTTP server, and blocks
// until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := app.setup(ctx, true)
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger
	cfg := rt.cfg

	// Watches are in place before the initial sync reads the tree; edits made
	// meanwhile are queued and replayed once the watcher runs.
	w, err := watcher.New(cfg.Content.Path, cfg.Content.Debounce, cfg.Content.QueueSize, logger)
	if err != nil {
		return fmt.Errorf("init watcher: %w", err)
	}

	rt.initialSync(ctx)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           rt.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Run(gCtx)
	})

	g.Go(func() error {
		return rt.engine.Run(gCtx, w.Batches())
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		cancel()

		logger.Info("Shutting down server...")

		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		// SSE streams end when the broker closes.
		rt.broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunSync performs one full sync and returns. Files that failed are reported
// but do not make the command fail; storage errors do.
func RunSync(ctx context.Context, opts ...Option) (engine.Summary, error) {
	app, err := newApplication(opts)
	if err != nil {
		return engine.Summary{}, err
	}
	rt, err := app.setup(ctx, false)
	if err != nil {
		return engine.Summary{}, err
	}
	defer rt.close()

	s, err := rt.engine.RunFullSync(ctx)
	if err != nil {
		return s, fmt.Errorf("sync: %w", err)
	}
	for _, f := range s.Failed {
		rt.logger.Warn("file skipped", slog.String("path", f.Path), slog.String("error", f.Err.Error()))
	}
	rt.logger.Info("sync complete",
		slog.Int("upserted", len(s.Upserted)),
		slog.Int("deleted", len(s.Deleted)),
		slog.Int("rendered", s.Rendered),
		slog.Int("reused", s.Reused),
		slog.Int("failed", len(s.Failed)))
	return s, nil
}

// RunMCP serves the MCP tools on stdio. Logs must not go to stdout, which
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	rt, err := app.setup(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.initialSync(ctx)
	return mcpserver.New(rt.engine, app.version).ServeStdio()
}

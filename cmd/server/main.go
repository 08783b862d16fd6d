// RPR-KONTROL governance dashboard server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rpr-kontrol/kontrol/internal/api"
	"github.com/rpr-kontrol/kontrol/internal/config"
	"github.com/rpr-kontrol/kontrol/internal/events"
	"github.com/rpr-kontrol/kontrol/internal/identity"
	"github.com/rpr-kontrol/kontrol/internal/middleware"
	"github.com/rpr-kontrol/kontrol/internal/registry"
	"github.com/rpr-kontrol/kontrol/internal/report"
	"github.com/rpr-kontrol/kontrol/internal/session"
	"github.com/rpr-kontrol/kontrol/internal/store"
	"github.com/rpr-kontrol/kontrol/internal/substrate"
	"github.com/rpr-kontrol/kontrol/internal/veto"
	"github.com/rpr-kontrol/kontrol/web"
)

const substrateUserAgent = "kontrol-server"

func main() {
	slog.SetDefault(newLogger(slog.LevelInfo))

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "report_backend", cfg.Report.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	if cfg.ArchiveSeedPath != "" {
		seed, err := store.LoadSeed(cfg.ArchiveSeedPath)
		if err != nil {
			return err
		}
		n, err := store.SeedSessions(ctx, repo, seed)
		if err != nil {
			return err
		}
		slog.Info("Archive seeded", "path", cfg.ArchiveSeedPath, "sessions", n)
	}

	filter := veto.NewFilter(nil)
	if cfg.VetoPhrasesPath != "" {
		phrases, err := veto.LoadPhrases(cfg.VetoPhrasesPath)
		if err != nil {
			return err
		}
		filter.Replace(phrases)
		slog.Info("Veto phrases loaded", "path", cfg.VetoPhrasesPath, "count", len(phrases))
	}

	hub := events.NewHub(cfg.EventQueueSize, logger)

	acc := registry.NewAccessor(repo,
		registry.WithLogger(logger),
		registry.WithOnChange(func(s registry.State) {
			if s.Status == registry.StatusLoading {
				return
			}
			hub.Publish(events.TypeRegistryUpdated, map[string]any{
				"status":   s.Status,
				"filter":   s.Filter,
				"token":    s.Token,
				"sessions": len(s.Sessions),
			})
		}),
	)
	defer acc.Close()
	acc.SetFilter(store.FilterAll)

	if cfg.RegistryRefreshCron != "" {
		refresher, err := registry.StartRefresh(acc, cfg.RegistryRefreshCron, logger)
		if err != nil {
			return err
		}
		defer refresher.Stop(context.Background())
	}

	generator, closeGenerator, err := newReportGenerator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeGenerator()

	controller := session.NewController(session.Config{
		Veto:          filter,
		Reports:       generator,
		Notifier:      hub,
		Logger:        logger,
		ReportTimeout: cfg.Report.Timeout,
	})

	handler := api.NewHandler(api.Deps{
		Repo:          repo,
		Sessions:      controller,
		Registry:      acc,
		Veto:          filter,
		Hub:           hub,
		ReportBackend: cfg.Report.Backend,
		FrontendURL:   cfg.FrontendURL,
	})

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware)

	handler.RegisterRoutes(r)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Websocket connections are long-lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.SubstrateManifestPath != "" {
		go substrate.LogIdentity(ctx, cfg.SubstrateManifestPath, substrateUserAgent, repo, logger)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	if cfg.VetoWatch && cfg.VetoPhrasesPath != "" {
		watcher, err := veto.NewWatcher(filter, cfg.VetoPhrasesPath, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newReportGenerator selects the configured report backend. A nil generator
// disables report generation.
func newReportGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (report.Generator, func(), error) {
	switch cfg.Report.Backend {
	case config.ReportBackendGenAI:
		g, err := report.NewGenAIGenerator(ctx, cfg.Report.GeminiAPIKey, cfg.Report.GeminiModel)
		if err != nil {
			return nil, func() {}, err
		}
		slog.Info("Report backend ready", "backend", cfg.Report.Backend, "model", cfg.Report.GeminiModel)
		return g, func() {}, nil
	case config.ReportBackendGRPC:
		g, err := report.NewGrpcGenerator(report.DefaultGrpcConfig(cfg.Report.GrpcAddr), logger)
		if err != nil {
			slog.Warn("Failed to connect to report service, report generation will be disabled", "address", cfg.Report.GrpcAddr, "error", err)
			return nil, func() {}, nil
		}
		slog.Info("Report backend ready", "backend", cfg.Report.Backend, "address", cfg.Report.GrpcAddr)
		return g, g.Close, nil
	default:
		slog.Info("Report generation disabled")
		return nil, func() {}, nil
	}
}

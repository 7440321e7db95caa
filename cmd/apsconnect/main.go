package main

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

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/neomorfeo/apsconnect/internal/adapter/connect"
	"github.com/neomorfeo/apsconnect/internal/adapter/fsm"
	"github.com/neomorfeo/apsconnect/internal/adapter/oa"
	"github.com/neomorfeo/apsconnect/internal/adapter/otel"
	"github.com/neomorfeo/apsconnect/internal/adapter/redis"
	"github.com/neomorfeo/apsconnect/internal/adapter/river"
	"github.com/neomorfeo/apsconnect/internal/adapter/sqlite"
	"github.com/neomorfeo/apsconnect/internal/app"
	"github.com/neomorfeo/apsconnect/internal/config"
	"github.com/neomorfeo/apsconnect/internal/domain"

	handler "github.com/neomorfeo/apsconnect/internal/adapter/http"
)

const (
	redisAttempts = 5
	redisInterval = time.Second
	shutdownGrace = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("apsconnect stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	providers, err := otel.Setup(ctx, otel.Config{
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.OTel.ServiceVersion,
		Environment:    cfg.OTel.Environment,
		Exporter:       cfg.OTel.Exporter,
		Endpoint:       cfg.OTel.Endpoint,
		Insecure:       cfg.OTel.Insecure,
		SampleRatio:    cfg.OTel.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(otel.DBConfig{Path: cfg.DatabasePath, BusyTimeout: cfg.DatabaseBusyTimeout})
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer repo.Close()

	installations := otel.NewTracingInstallationRepository(repo)
	if cfg.Seed.Enabled() {
		if err := installations.Save(ctx, domain.Installation{
			OAuthKey:       cfg.Seed.OAuthKey,
			OAuthSecret:    cfg.Seed.OAuthSecret,
			ProductID:      cfg.Seed.ProductID,
			InstallationID: cfg.Seed.InstallationID,
		}); err != nil {
			return fmt.Errorf("seeding installation: %w", err)
		}
		slog.Info("installation registered", "oauth_key", cfg.Seed.OAuthKey, "product_id", cfg.Seed.ProductID)
	}

	backends := app.Backends{
		Installations: installations,
		Connects: otel.NewTracingConnectProvider(connect.NewProvider(connect.Config{
			BaseURL:     cfg.Connect.APIURL,
			APIKey:      cfg.Connect.APIKey,
			ExtensionID: cfg.Connect.ExtensionID,
			Timeout:     cfg.Connect.Timeout,
			Retries:     cfg.Connect.Retries,
			RetryWait:   cfg.Connect.RetryWait,
		})),
		OAs: otel.NewTracingOAProvider(oa.NewProvider(oa.Config{
			Timeout:  cfg.OA.Timeout,
			Attempts: cfg.OA.Retries,
		})),
	}

	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL, redisAttempts, redisInterval)
		if err != nil {
			return fmt.Errorf("schema cache: %w", err)
		}
		defer client.Close()
		backends.Schemas = redis.NewSchemaCache(client, cfg.SchemaCacheTTL)
	}

	// --- Effects ---
	queue, err := river.Setup(ctx, db, app.NewEffectRunner(backends), cfg.EffectWorkers)
	if err != nil {
		return fmt.Errorf("job queue: %w", err)
	}
	// Jobs keep running until Stop, not until the signal.
	if err := queue.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("starting job queue: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := queue.Stop(stopCtx); err != nil {
			slog.Error("job queue shutdown", "error", err)
		}
	}()

	publisher := otel.NewTracingPublisher(river.NewPublisher(queue))

	// --- Application ---
	svc := app.NewService(backends, publisher, fsm.New())

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(cfg.OTel.ServiceName, otelchi.WithChiRoutes(router)))
	router.Use(handler.Authenticate(installations, "/tenant", "/app"))

	api := humachi.New(router, huma.DefaultConfig("apsconnect", cfg.OTel.ServiceVersion))
	handler.Register(api, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("apsconnect listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("stopped")
	return nil
}

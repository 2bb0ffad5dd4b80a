package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attaboy/backoffice/internal/app"
	"github.com/attaboy/backoffice/internal/guard"
	"github.com/attaboy/backoffice/internal/infra"
	"github.com/attaboy/backoffice/internal/repository"
	"github.com/attaboy/backoffice/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.RunMigrations {
		if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	publisher := guard.NewBreakingPublisher(producer,
		guard.NewCircuitBreaker(cfg.PublishFailureThreshold, cfg.PublishResetTimeout), logger)

	rebateSvc := service.NewRebateService(
		pool,
		repository.NewRebateSetupRepository(),
		repository.NewScheduleRepository(),
		repository.NewRebateTransactionRepository(),
		publisher,
		service.RebateServiceConfig{
			EventsTopic:  cfg.RebateEventsTopic,
			CancelRemark: cfg.CancelRemark,
			SessionTTL:   cfg.SessionTTL,
		},
		logger,
	)
	rebateSvc.StartSweeper(ctx, cfg.SessionSweepInterval)

	r := app.NewRouter(app.RouterDeps{
		DB:              pool,
		Logger:          logger,
		RebateSvc:       rebateSvc,
		DecisionLimiter: guard.NewRateLimiter(cfg.DecisionRateLimit, time.Minute),
		EventsEnabled:   producer.Enabled(),
		CORSOrigin:      cfg.CORSOrigin,
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

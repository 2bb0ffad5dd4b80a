package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/attaboy/backoffice/internal/infra"
	"github.com/attaboy/backoffice/internal/projection"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("decision audit failed", "error", err)
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
	if !cfg.KafkaEnabled {
		return fmt.Errorf("decision audit requires KAFKA_ENABLED=true")
	}

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, cfg.RebateEventsTopic, cfg.AuditGroupID, logger)
	defer consumer.Close()

	logger.Info("decision audit starting", "topic", cfg.RebateEventsTopic, "group_id", cfg.AuditGroupID)
	if err := projection.ConsumeDecisions(ctx, consumer, projection.NewInMemoryStore(), logger); err != nil {
		return fmt.Errorf("consume decisions: %w", err)
	}

	logger.Info("decision audit stopped")
	return nil
}

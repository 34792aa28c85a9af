package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/internal/config"
	"github.com/hearthlabs/hearth/internal/orchestrator"
	"github.com/hearthlabs/hearth/internal/orchestrator/rules"
	"github.com/hearthlabs/hearth/internal/orchestrator/store"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := Logger.New(cfg.Debug(), "orchestrator")
	logger.Info("orchestrator_starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stateStore, err := store.New(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize state store: %v", err)
	}
	defer stateStore.Close()

	engine := rules.NewEngine(cfg.RulesConfigPath, logger)
	if err := engine.Load(); err != nil {
		logger.Fatalf("Failed to load rules: %v", err)
	}

	busClient, err := bus.New(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to stream bus: %v", err)
	}
	defer busClient.Close()

	worker := orchestrator.NewWorker(busClient, stateStore, engine, cfg.EnableProactiveRules, logger)
	logger.Info("orchestrator_started")

	if err := worker.Run(ctx, busClient); err != nil && err != context.Canceled {
		logger.Errorf("Orchestrator exited with error: %v", err)
	}
	logger.Info("orchestrator_stopped")
}

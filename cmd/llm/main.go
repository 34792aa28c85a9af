package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/internal/config"
	"github.com/hearthlabs/hearth/internal/llm"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := Logger.New(cfg.Debug(), "llm")
	logger.Infow("llm_service_starting", "backend", cfg.LLMBackend, "model", cfg.LLMModel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := buildBackend(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to build LLM backend: %v", err)
	}
	defer backend.Close()

	// An unreachable model at startup is fatal: the worker refuses to run on
	// fallback phrases alone.
	if !backend.HealthCheck(ctx) {
		logger.Fatalf("LLM backend %s is not available - cannot start", backend.Name())
	}
	logger.Infow("llm_backend_connected", "backend", backend.Name())

	busClient, err := bus.New(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to stream bus: %v", err)
	}
	defer busClient.Close()

	worker := llm.NewWorker(busClient, backend, cfg.LLMModel, logger)
	logger.Info("llm_service_started")

	if err := worker.Run(ctx, busClient); err != nil && err != context.Canceled {
		logger.Errorf("LLM worker exited with error: %v", err)
	}
	logger.Info("llm_service_stopped")
}

func buildBackend(cfg *config.Settings, logger *Logger.Logger) (llm.Backend, error) {
	switch cfg.LLMBackend {
	case "openai":
		return llm.NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel, logger), nil
	default:
		return llm.NewOllamaBackend(cfg.OllamaURL, cfg.LLMModel, logger)
	}
}

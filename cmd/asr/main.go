package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/hearthlabs/hearth/internal/asr"
	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/internal/config"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := Logger.New(cfg.Debug(), "asr")
	logger.Infow("asr_service_starting", "model", cfg.WhisperModel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	busClient, err := bus.New(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to stream bus: %v", err)
	}
	defer busClient.Close()

	recognizer := asr.NewWhisperClient(cfg.WhisperURL, logger)
	worker := asr.NewWorker(busClient, recognizer, logger)
	logger.Info("asr_service_started")

	if err := worker.Run(ctx, busClient); err != nil && err != context.Canceled {
		logger.Errorf("ASR worker exited with error: %v", err)
	}
	logger.Info("asr_service_stopped")
}

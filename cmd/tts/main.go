package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/internal/config"
	"github.com/hearthlabs/hearth/internal/tts"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := Logger.New(cfg.Debug(), "tts")
	logger.Infow("tts_service_starting", "voice", cfg.PiperVoice)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	synthesizer := tts.NewPiperClient(cfg.PiperURL, cfg.PiperVoice, logger)
	if synthesizer.Available(ctx) {
		logger.Infow("piper_ready", "url", cfg.PiperURL)
	} else {
		// Non-fatal: requests degrade to silence of proportional length so
		// the downstream contract holds.
		logger.Warn("piper_unavailable_responses_will_be_silence")
	}

	busClient, err := bus.New(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to stream bus: %v", err)
	}
	defer busClient.Close()

	worker := tts.NewWorker(busClient, synthesizer, logger)
	logger.Info("tts_service_started")

	if err := worker.Run(ctx, busClient); err != nil && err != context.Canceled {
		logger.Errorf("TTS worker exited with error: %v", err)
	}
	logger.Info("tts_service_stopped")
}

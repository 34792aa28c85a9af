package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/internal/config"
	"github.com/hearthlabs/hearth/internal/vad"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := Logger.New(cfg.Debug(), "vad")
	logger.Info("vad_service_starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The neural detector is preferred; when its service is unreachable the
	// worker degrades to energy detection rather than refusing to start.
	var detector vad.Detector
	silero := vad.NewSileroDetector(cfg.VADServiceURL, cfg.VADThreshold, logger)
	if silero.Available(ctx) {
		detector = silero
		logger.Infow("silero_vad_ready", "url", cfg.VADServiceURL)
	} else {
		detector = vad.NewEnergyDetector(logger)
		logger.Warn("silero_vad_unavailable_using_energy_fallback")
	}
	defer detector.Close()

	busClient, err := bus.New(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to stream bus: %v", err)
	}
	defer busClient.Close()

	worker := vad.NewWorker(busClient, detector, logger)
	logger.Info("vad_service_started")

	if err := worker.Run(ctx, busClient); err != nil && err != context.Canceled {
		logger.Errorf("VAD worker exited with error: %v", err)
	}
	logger.Info("vad_service_stopped")
}

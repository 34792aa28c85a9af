package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/hearthlabs/hearth/internal/bus"
	"github.com/hearthlabs/hearth/internal/config"
	"github.com/hearthlabs/hearth/internal/gateway"
	"github.com/hearthlabs/hearth/pkg/Logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := Logger.New(cfg.Debug(), "gateway")
	logger.Infow("gateway_starting", "host", cfg.GatewayHost, "port", cfg.GatewayPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	busClient, err := bus.New(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to stream bus: %v", err)
	}
	defer busClient.Close()

	sessions := gateway.NewConnectionManager(logger)
	audioRouter := gateway.NewAudioRouter(busClient, sessions, logger)
	server := gateway.NewServer(busClient, sessions, audioRouter, logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.Default()
	server.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.GatewayHost, cfg.GatewayPort),
		Handler: engine.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return audioRouter.Run(ctx, busClient)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("gateway_stopping")
		sessions.DisconnectAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Errorf("Gateway exited with error: %v", err)
	}
	logger.Info("gateway_stopped")
}

// Command api runs the Lattice graph analytics HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"lattice-backend/internal/config"
	"lattice-backend/internal/di"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	container, err := di.NewContainer(cfg)
	if err != nil {
		log.Fatalf("failed to build application: %v", err)
	}
	logger := container.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.Worker.Start(ctx)

	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", string(cfg.Environment)),
			zap.String("version", di.Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatal("server failed", zap.Error(err))
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	cancel()
	if err := container.Shutdown(shutdownCtx); err != nil {
		logger.Error("container shutdown failed", zap.Error(err))
	}
}

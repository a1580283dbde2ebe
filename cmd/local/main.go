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

	"github.com/globoclima/backend/internal/api/local"
	"github.com/globoclima/backend/internal/bootstrap"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, awsCfg, err := bootstrap.LoadConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := cfg.NewLogger()

	app, err := bootstrap.New(ctx, cfg, awsCfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize favorites api: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Failed to close resources", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.LocalAddr,
		Handler:           local.NewRouter(app.Handler, logger, local.Options{DevUser: cfg.LocalDevUser}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("local server listening", "addr", cfg.LocalAddr, "storeBackend", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("local server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down server", "error", err)
	}
}

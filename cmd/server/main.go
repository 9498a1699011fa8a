package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"TdxBridge/internal/app"
	"TdxBridge/internal/config"
	"TdxBridge/internal/gateway"
	"TdxBridge/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("KITETDX_CONFIG"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config validation failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize app")
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           gateway.New(a).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute, // sync and SSE responses are long
		IdleTimeout:       60 * time.Second,
	}

	a.Scheduler.Start()
	if cfg.Schedule.RunOnStart {
		logger.Info().Msg("run_on_start enabled, executing daily job now")
		go a.Scheduler.RunDailyNow()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", srv.Addr).
			Str("data_dir", cfg.DataDir).
			Str("mcp", fmt.Sprintf("http://localhost:%d/mcp", cfg.Server.Port)).
			Str("sse", fmt.Sprintf("http://localhost:%d/sse", cfg.Server.Port)).
			Msg("TdxBridge listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if tn, ok := a.Telegram(); ok {
		g.Go(func() error {
			tn.StartPolling(gctx, a.Scheduler.HandleCommand)
			return nil
		})
		logger.Info().Msg("telegram polling started")
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received, stopping...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Scheduler.Stop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		a.Close()
		os.Exit(1)
	}
	logger.Info().Msg("TdxBridge stopped")
}

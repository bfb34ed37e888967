package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocktracker/internal/app"
	"stocktracker/internal/config"
	"stocktracker/internal/prewarm"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	orch, err := app.Build(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var warmer *prewarm.Warmer
	if cfg.Prewarm.Enabled {
		warmer = prewarm.New(ctx, orch, cfg.Prewarm.Symbols, cfg.Prewarm.LookbackDays, prewarm.WithLogger(logger))
		if err := warmer.Register(cfg.Prewarm.Schedule); err != nil {
			logger.Error("prewarm schedule", "schedule", cfg.Prewarm.Schedule, "error", err)
			os.Exit(1)
		}
		warmer.Start()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthz)
	mux.Handle("/api/report", &reportHandler{
		runner:       orch,
		lookbackDays: cfg.Server.LookbackDays,
		now:          time.Now,
		logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(logger, withRequestLog(logger, mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Reports may take the whole pipeline timeout.
		WriteTimeout: cfg.Pipeline.Timeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	if warmer != nil {
		warmer.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	logger.Info("server stopped")
}

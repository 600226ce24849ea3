package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/proctorlink/internal/exam"
	"github.com/yourorg/proctorlink/internal/store"
	"github.com/yourorg/proctorlink/internal/tabular"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeCfg := store.LoadConfig()
	gw, err := store.Open(ctx, storeCfg)
	switch {
	case errors.Is(err, store.ErrUnconfigured):
		logger.Warn("store not configured; data endpoints will fail", "driver", storeCfg.Driver)
	case err != nil:
		logger.Error("store open failed", "driver", storeCfg.Driver, "error", err)
		os.Exit(1)
	default:
		logger.Info("store ready", "driver", storeCfg.Driver)
	}

	examCfg := exam.LoadConfig()
	svc := exam.NewService(examCfg, gw, tabular.Encoders(tabular.LoadConfig()), logger)
	if gw != nil {
		if err := svc.EnsureIndexes(ctx); err != nil {
			logger.Warn("ensure indexes failed; retrying on next exam creation", "error", err)
		}
	}
	handler := exam.NewHandler(svc, examCfg, logger)

	srv := &http.Server{
		Addr:              ":" + getenv("PORT", "8000"),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("proctorlink api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), getDuration("SHUTDOWN_TIMEOUT", 10*time.Second))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	if gw != nil {
		if err := gw.Close(shutdownCtx); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}
	logger.Info("shutdown complete")
}

func logLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

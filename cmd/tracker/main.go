package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"rank_tracker/internal/api"
	"rank_tracker/internal/app"
	"rank_tracker/internal/config"
	"rank_tracker/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := app.NewLogger(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("tracker stopped", "error", err)
		os.Exit(1)
	}
	log.Info("tracker stopped")
}

func run(cfg *config.Config, log *slog.Logger) (err error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()

	sched, err := scheduler.New(cfg.CollectSchedule, a.Pipeline, log)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(a.Pipeline, a.Store, cfg.TriggerSecret, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.TriggerSecret == "" {
		log.Warn("TRIGGER_SECRET is empty, api endpoints are unauthenticated")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("starting http server", "addr", srv.Addr, "schedule", cfg.CollectSchedule)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

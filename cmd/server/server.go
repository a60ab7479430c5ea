package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nadmax/radar/internal/api"
	"github.com/nadmax/radar/internal/config"
	"github.com/nadmax/radar/internal/logging"
	"github.com/nadmax/radar/internal/notify"
	"github.com/nadmax/radar/internal/repository"
	"github.com/sirupsen/logrus"
)

func openRepository(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*repository.SQLTaskRepository, error) {
	repo, err := repository.NewSQLTaskRepository(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}

	log.WithField("driver", cfg.Database.Driver).Info("connected to database")
	return repo, nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, nil)
	if err != nil {
		return err
	}

	repo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Info("tasks table is up to date")

	return repo.Close()
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, nil)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.WithError(err).Warn("failed to close database")
		}
	}()

	hub := notify.NewHub(log,
		notify.WithBufferSize(cfg.Notify.BufferSize),
		notify.WithWriteTimeout(cfg.Notify.WriteTimeout),
	)
	// Covers early returns; the shutdown path closes it again before
	// Shutdown, which is safe since Close is idempotent.
	defer hub.Close()

	// With Redis configured, mutations are published and every instance
	// (this one included) relays them to its own viewers.
	var notifier notify.Notifier = hub
	if cfg.Redis.Addr != "" {
		relay, err := notify.NewRedisRelay(cfg.Redis.Addr, cfg.Redis.Channel, hub, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := relay.Close(); err != nil {
				log.WithError(err).Warn("failed to close redis relay")
			}
		}()

		if err := relay.Start(ctx); err != nil {
			return err
		}
		notifier = relay
		log.WithFields(logrus.Fields{
			"addr":    cfg.Redis.Addr,
			"channel": relay.Channel(),
		}).Info("relaying notifications through redis")
	}

	handler := api.NewAPI(repo, notifier, api.Options{
		Viewers:        hub,
		Logger:         log,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		JWTSecret:      cfg.Auth.JWTSecret,
	})

	go startMetricsCollector(ctx, repo, cfg.Metrics.CollectInterval, log)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	// Viewers hold hijacked connections that Shutdown does not track.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

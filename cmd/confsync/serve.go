package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voyagen/confsync/internal/cache"
	"github.com/voyagen/confsync/internal/clock"
	"github.com/voyagen/confsync/internal/config"
	"github.com/voyagen/confsync/internal/fetcher"
	"github.com/voyagen/confsync/internal/jobs"
	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/server"
	"github.com/voyagen/confsync/internal/service"
	"github.com/voyagen/confsync/internal/store"
)

const cachePrefix = "confsync"

func serveCommand() *cobra.Command {
	var memory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the podcast request worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup(!memory)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, memory)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "Keep all data in memory instead of Postgres")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, memory bool) error {
	defer logging.LogPanics(nil)

	var appStore store.Store
	if memory {
		logging.Warn().Msg("using the in-memory store; data is lost on exit")
		appStore = store.NewMemory(clock.System{})
	} else {
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pg.Close()
		appStore = pg
	}

	appClock := clock.NewAdjustable(clock.System{})

	var queue service.JobQueue
	backgroundJobs := jobs.Jobs{}
	if cfg.RedisURL != "" {
		rds, err := cache.New(cfg.RedisURL, cachePrefix)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rds.Close()
		if err := rds.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		appStore = store.NewCachedStore(appStore, rds)
		queue = service.RedisQueue{Redis: rds}
		logging.Info().Msg("redis connected (caching and podcast requests enabled)")

		worker := service.NewWorker(
			appStore,
			service.NewImporter(appStore, appClock),
			fetcher.New(cfg.Fetcher.UserAgent, cfg.Fetcher.Timeout),
			queue,
		)
		backgroundJobs = append(backgroundJobs, jobs.New(ctx, "podcast-requests").Run(worker.Run))
	} else {
		logging.Info().Msg("redis disabled (REDIS_URL not set); podcast requests are stored but not fetched")
	}

	srv, err := server.New(server.Deps{
		Config: cfg,
		Store:  appStore,
		Queue:  queue,
		Clock:  appClock,
	})
	if err != nil {
		return err
	}

	serveErr := srv.ListenAndServe(ctx)

	logging.Info().Msg("shutting down background jobs")
	if unfinished := backgroundJobs.CancelAndWait(10 * time.Second); len(unfinished) > 0 {
		logging.Warn().Strs("unfinished", unfinished).Msg("background jobs did not finish by the deadline")
	}
	return serveErr
}

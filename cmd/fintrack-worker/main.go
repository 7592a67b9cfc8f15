package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := cli.Open(ctx)
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Startup failed", applog.FieldError, err)
		os.Exit(1)
	}
	defer env.Close()

	logger := env.Logger.WithComponent(applog.ComponentWorker)
	logger.Info("Starting fintrack-worker", "backend", env.Config.DataBackend)

	app := cli.NewApp(env)
	processor := app.Processor()
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", applog.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Sync requests published by other processes land in the local queue.
	if app.AMQP != nil {
		g.Go(func() error {
			err := app.AMQP.ConsumeWithRetry(gctx, func(ctx context.Context, msg *amqp.SyncRequestMessage) error {
				return app.Queue.RequestSync(ctx, msg.Entity, msg.UserID)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled, serving the local queue only")
	}

	// Periodic reconciliation catches changes made while no request was sent.
	g.Go(func() error {
		ticker := time.NewTicker(env.Config.SyncInterval)
		defer ticker.Stop()
		for {
			requestSessionSync(gctx, app, logger)
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Warn("Scheduler did not stop cleanly", applog.FieldError, err)
	}
	logger.Info("fintrack-worker stopped")
}

// requestSessionSync queues a sync of every entity for the signed-in user.
func requestSessionSync(ctx context.Context, app *cli.App, logger *applog.Logger) {
	u, err := app.Repos.Users.Current(ctx)
	if err != nil {
		logger.Warn("Failed to load session user", applog.FieldError, err)
		return
	}
	if u == nil {
		logger.Debug("No session user, skipping periodic sync")
		return
	}
	for _, e := range worker.SyncEntities {
		if err := app.Queue.RequestSync(ctx, e, u.ID); err != nil && ctx.Err() == nil {
			logger.Warn("Failed to queue periodic sync",
				applog.FieldEntity, string(e),
				applog.FieldUserID, u.ID,
				applog.FieldError, err)
		}
	}
}

package cli

import (
	"context"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/scheduler"
	"fintrack/internal/services"
	"fintrack/internal/usecase"
	"fintrack/internal/worker"
)

// App is a fully wired process: services, use cases and the workers that
// back them.
type App struct {
	*Env
	Queue       *scheduler.Queue
	AMQP        *amqp.Client
	Sync        services.SyncRequester
	Budgets     *services.BudgetService
	Users       *services.UserService
	UseCases    *services.UseCases
	Rollover    *worker.RolloverWorker
	SyncWorkers []*worker.SyncWorker
}

// NewApp wires services over env. Sync requests go to the broker when
// AMQP_URL is set and reachable, and to the local work queue otherwise.
func NewApp(env *Env) *App {
	a := &App{
		Env:   env,
		Queue: scheduler.NewQueue(env.Store),
	}

	var requester services.SyncRequester = a.Queue
	if env.Config.AMQPURL != "" {
		client, err := amqp.NewClient(env.Config.AMQPURL, env.Config.AMQPExchange, env.Config.AMQPQueue)
		if err != nil {
			env.Logger.Warn("AMQP unavailable, sync requests use the local queue", applog.FieldError, err)
		} else {
			a.AMQP = client
			env.cleanup = append([]func() error{client.Close}, env.cleanup...)
			requester = fallbackRequester{primary: client, fallback: a.Queue}
		}
	}

	a.Sync = requester

	repos := env.Repos
	a.Budgets = services.NewBudgetService(services.Deps{
		Budgets:  repos.Budgets,
		Expenses: repos.Expenses,
		Incomes:  repos.Incomes,
		Ledger:   repos.Ledger,
		Sync:     requester,
		Alerts:   services.LogAlertNotifier{},
	})
	a.Rollover = worker.NewRolloverWorker(repos.Budgets, a.Budgets, a.Queue, env.Config.RolloverBuffer)
	a.Budgets.SetRolloverScheduler(a.Rollover)
	a.Users = services.NewUserService(repos.Users, requester)

	d := usecase.NewDispatchers(int64(env.Config.DefaultPoolSize), int64(env.Config.IOPoolSize))
	a.UseCases = services.NewUseCases(a.Budgets, a.Users, d)

	for _, e := range worker.SyncEntities {
		a.SyncWorkers = append(a.SyncWorkers, worker.NewSyncWorker(e, repos.Syncer(e)))
	}
	return a
}

// Processor returns a scheduler with every worker registered.
func (a *App) Processor() *scheduler.Processor {
	cfg := scheduler.DefaultConfig()
	cfg.PollInterval = a.Config.PollInterval
	cfg.BatchSize = a.Config.SyncBatchSize
	cfg.MaxRetries = a.Config.MaxRetries
	cfg.RetryBackoff = a.Config.RetryBackoff

	p := scheduler.NewProcessor(a.Store, cfg)
	for _, w := range a.SyncWorkers {
		p.Register(worker.SyncKind(w.Entity()), w)
	}
	p.Register(worker.KindRollover, a.Rollover)
	return p
}

// fallbackRequester publishes to the broker and enqueues locally when the
// broker is unreachable.
type fallbackRequester struct {
	primary  services.SyncRequester
	fallback services.SyncRequester
}

func (r fallbackRequester) RequestSync(ctx context.Context, entity core.Entity, userID string) error {
	err := r.primary.RequestSync(ctx, entity, userID)
	if err == nil {
		return nil
	}
	slog.WarnContext(ctx, "Broker unavailable, queueing sync locally",
		applog.FieldComponent, applog.ComponentAMQP,
		applog.FieldEntity, string(entity),
		applog.FieldError, err)
	return r.fallback.RequestSync(ctx, entity, userID)
}

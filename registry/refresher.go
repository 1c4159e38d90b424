package registry

import (
	"context"

	"github.com/zhenzou/executors"

	"github.com/looplj/modelrelay/internal/log"
	"github.com/looplj/modelrelay/llm"
)

// Refresher re-runs remote discovery on a cron schedule so the active catalog
// tracks provider-side model changes in long-running processes.
type Refresher struct {
	registry *Registry
	executor executors.ScheduledExecutor
	opts     llm.DiscoveryOptions
	actx     *llm.Context
}

// NewRefresher builds a refresher over the registry. The discovery options
// are forced to remote+refresh so every tick performs a real sweep.
func NewRefresher(registry *Registry, opts llm.DiscoveryOptions, actx *llm.Context) *Refresher {
	opts.Remote = true
	opts.RefreshCache = true

	return &Refresher{
		registry: registry,
		executor: executors.NewPoolScheduleExecutor(executors.WithMaxConcurrent(1)),
		opts:     opts,
		actx:     actx,
	}
}

// Start schedules the periodic refresh. The expression uses standard
// five-field cron syntax.
func (r *Refresher) Start(cronExpr string) error {
	_, err := r.executor.ScheduleFuncAtCronRate(
		r.run,
		executors.CRONRule{Expr: cronExpr},
	)

	return err
}

// Stop shuts the schedule down, waiting for an in-flight sweep.
func (r *Refresher) Stop(ctx context.Context) error {
	return r.executor.Shutdown(ctx)
}

func (r *Refresher) run(ctx context.Context) {
	refreshed, rerr := r.registry.DiscoverModels(ctx, &r.opts, r.actx)
	if rerr != nil {
		log.Warn(ctx, "scheduled catalog refresh failed", log.Err(rerr))

		return
	}

	log.Info(ctx, "catalog refreshed", log.Int("models", len(refreshed.Models)))
}

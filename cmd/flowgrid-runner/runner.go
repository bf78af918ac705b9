package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowgrid/flowgrid/pkg/conditions"
	"github.com/flowgrid/flowgrid/pkg/dispatch"
	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/events"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

type Runner struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	channels    dispatch.Channels
}

func NewRunner(
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	channels dispatch.Channels,
) *Runner {
	return &Runner{
		logger:      logger,
		persistence: p,
		eventBus:    eventBus,
		channels:    channels,
	}
}

// Run starts the scheduler and blocks until SIGINT or SIGTERM.
func (r *Runner) Run(ctx context.Context) error {
	dispatcher := dispatch.NewDispatcher(r.logger, r.channels)
	engine := workflow.NewEngine(r.logger, r.persistence, dispatcher, conditions.NewEvaluator(), r.eventBus)

	sched := scheduler.NewScheduler(r.logger, func(jobCtx context.Context, workflowID string) {
		if _, err := engine.RunNow(jobCtx, workflowID, nil, ""); err != nil {
			r.logger.ErrorContext(jobCtx, "Scheduled run failed to start",
				"workflow_id", workflowID, "error", err)
		}
	})

	workflows, err := r.persistence.WorkflowRepository().ListEnabledWithSchedule(ctx)
	if err != nil {
		return err
	}

	for _, wf := range workflows {
		if err := sched.Register(wf.ID, wf.Schedule); err != nil {
			r.logger.ErrorContext(ctx, "Failed to register schedule",
				"workflow_id", wf.ID, "spec", wf.Schedule, "error", err)
		}
	}

	r.logger.InfoContext(ctx, "Runner started", "scheduled_workflows", len(workflows))

	if err := r.subscribeEvents(ctx); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case sig := <-stop:
		r.logger.InfoContext(ctx, "Shutting down", "signal", sig.String())
	}

	return nil
}

// subscribeEvents mirrors run outcomes into the runner log so a headless
// deployment still has a visible audit trail.
func (r *Runner) subscribeEvents(ctx context.Context) error {
	if r.eventBus == nil {
		return nil
	}

	r.eventBus.Handle(events.RunCompletedEvent, func(ctx context.Context, event any) error {
		if completed, ok := event.(*events.RunCompleted); ok {
			r.logger.InfoContext(ctx, "Run completed",
				"workflow_id", completed.WorkflowID,
				"run_id", completed.RunID,
				"duration_ms", completed.DurationMs)
		}

		return nil
	})

	r.eventBus.Handle(events.RunFailedEvent, func(ctx context.Context, event any) error {
		if failed, ok := event.(*events.RunFailed); ok {
			r.logger.WarnContext(ctx, "Run failed",
				"workflow_id", failed.WorkflowID,
				"run_id", failed.RunID,
				"node_id", failed.NodeID,
				"error", failed.Error)
		}

		return nil
	})

	return r.eventBus.Subscribe(ctx)
}

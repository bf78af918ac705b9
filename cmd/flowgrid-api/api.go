package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/flowgrid/flowgrid/pkg/conditions"
	"github.com/flowgrid/flowgrid/pkg/dispatch"
	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
	"github.com/flowgrid/flowgrid/pkg/services"
	"github.com/flowgrid/flowgrid/pkg/web"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	channels    dispatch.Channels
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	channels dispatch.Channels,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		eventBus:    eventBus,
		channels:    channels,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// App assembles the engine, scheduler and HTTP surface. The scheduler runs
// inside the API process so schedule edits take effect immediately.
func (a *API) App(ctx context.Context) (*fiber.App, *scheduler.Scheduler) {
	dispatcher := dispatch.NewDispatcher(a.logger, a.channels)
	engine := workflow.NewEngine(a.logger, a.persistence, dispatcher, conditions.NewEvaluator(), a.eventBus)

	sched := scheduler.NewScheduler(a.logger, func(jobCtx context.Context, workflowID string) {
		if _, err := engine.RunNow(jobCtx, workflowID, nil, ""); err != nil {
			a.logger.ErrorContext(jobCtx, "Scheduled run failed to start",
				"workflow_id", workflowID, "error", err)
		}
	})

	workflowService := services.NewWorkflow(a.persistence, engine, sched)
	handlers := web.NewAPIHandlers(workflowService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowgrid API")
	})

	web.RegisterRoutes(app, handlers)

	a.bootstrapSchedules(ctx, sched)

	return app, sched
}

// bootstrapSchedules registers every enabled scheduled workflow present at
// startup.
func (a *API) bootstrapSchedules(ctx context.Context, sched *scheduler.Scheduler) {
	workflows, err := a.persistence.WorkflowRepository().ListEnabledWithSchedule(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to list scheduled workflows", "error", err)

		return
	}

	for _, wf := range workflows {
		if err := sched.Register(wf.ID, wf.Schedule); err != nil {
			a.logger.ErrorContext(ctx, "Failed to register schedule",
				"workflow_id", wf.ID, "spec", wf.Schedule, "error", err)
		}
	}

	a.logger.InfoContext(ctx, "Schedules bootstrapped", "count", len(workflows))
}

func (a *API) Start(ctx context.Context, port int) error {
	app, sched := a.App(ctx)

	sched.Start()
	defer sched.Stop()

	return app.Listen(":" + strconv.Itoa(port))
}

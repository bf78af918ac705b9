// Package workflow contains the run engine and the definition validator.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowgrid/flowgrid/pkg/conditions"
	"github.com/flowgrid/flowgrid/pkg/dispatch"
	"github.com/flowgrid/flowgrid/pkg/eventbus"
	"github.com/flowgrid/flowgrid/pkg/events"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/tracer"
)

// Engine executes workflow runs. One engine serves many concurrent runs; all
// per-run state lives in a runState.
type Engine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	dispatcher  *dispatch.Dispatcher
	conditions  *conditions.Evaluator
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
}

// NewEngine wires an engine. The event bus may be nil; lifecycle events are
// then skipped entirely.
func NewEngine(
	logger *slog.Logger,
	p persistence.Persistence,
	dispatcher *dispatch.Dispatcher,
	evaluator *conditions.Evaluator,
	bus eventbus.EventBus,
) *Engine {
	return &Engine{
		logger:      logger.With("module", "engine"),
		persistence: p,
		dispatcher:  dispatcher,
		conditions:  evaluator,
		eventBus:    bus,
		tracer:      otel.Tracer("flowgrid/engine"),
	}
}

// RunNow executes one run of the workflow to completion and returns its
// record. triggerNodeID selects the entry point; empty means the first
// trigger in declaration order. Run failures are reported through the record,
// not the error return, which covers only pre-run problems (unknown
// workflow, disabled, invalid definition, store write failure).
func (e *Engine) RunNow(
	ctx context.Context,
	workflowID string,
	overrides map[string]any,
	triggerNodeID string,
) (*models.RunRecord, error) {
	wf, err := e.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !wf.Enabled {
		return nil, fmt.Errorf("workflow %q: %w", workflowID, ErrWorkflowDisabled)
	}

	if err := Validate(wf); err != nil {
		return nil, err
	}

	trigger, err := selectTrigger(wf, triggerNodeID)
	if err != nil {
		return nil, err
	}

	run := &models.RunRecord{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID,
		Status:     models.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	if err := e.persistence.RunRepository().Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	ctx, span := e.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String(tracer.WorkflowIDKey, wf.ID),
			attribute.String(tracer.RunIDKey, run.ID),
		))
	defer span.End()

	runCtx := models.NewRunContext(run.ID, wf.ID, wf.Variables, overrides)

	e.publish(ctx, wf.ID, events.RunStarted{
		BaseEvent:     events.NewBaseEvent(events.RunStartedEvent, wf.ID, run.ID),
		TriggerNodeID: trigger.ID,
		Variables:     overrides,
	})

	state := &runState{
		engine: e,
		wf:     wf,
		run:    run,
		runCtx: runCtx,
	}

	execErr := state.execute(ctx, trigger)

	if execErr != nil {
		attrs := []attribute.KeyValue{}
		if actionErr, ok := asActionError(execErr); ok {
			attrs = append(attrs, attribute.String(tracer.NodeIDKey, actionErr.NodeID))
		}

		tracer.SetError(span, execErr, attrs...)
	}

	e.finalize(ctx, wf, run, state, execErr)

	return run, nil
}

func selectTrigger(wf *models.Workflow, triggerNodeID string) (*models.WorkflowNode, error) {
	if triggerNodeID == "" {
		return wf.TriggerNodes()[0], nil
	}

	node := wf.NodeByID(triggerNodeID)
	if node == nil {
		return nil, &StructuralError{NodeID: triggerNodeID, Reason: "invocation names an unknown node"}
	}

	if !node.IsTrigger() {
		return nil, &StructuralError{NodeID: triggerNodeID, Reason: "invocation entry point is not a trigger node"}
	}

	return node, nil
}

// finalize moves the run to its terminal state exactly once and folds the
// outcome into the workflow counters. Store writes here are best-effort: the
// run's in-memory record stays authoritative for the caller.
func (e *Engine) finalize(
	ctx context.Context,
	wf *models.Workflow,
	run *models.RunRecord,
	state *runState,
	execErr error,
) {
	endedAt := time.Now().UTC()
	run.EndedAt = &endedAt
	run.Log = state.entries()

	if execErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = execErr.Error()
	} else {
		run.Status = models.RunStatusCompleted
	}

	err := e.persistence.RunRepository().Finalize(ctx, run.ID, run.Status, run.Error, endedAt)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to finalize run record",
			"run_id", run.ID, "error", err)
	}

	duration := run.Duration()

	wf.Stats.RecordRun(duration, run.Status == models.RunStatusFailed)

	if err := e.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		e.logger.WarnContext(ctx, "Failed to update workflow counters",
			"workflow_id", wf.ID, "error", err)
	}

	if run.Status == models.RunStatusFailed {
		failedNode := ""
		if actionErr, ok := asActionError(execErr); ok {
			failedNode = actionErr.NodeID
		}

		e.publish(ctx, wf.ID, events.RunFailed{
			BaseEvent:  events.NewBaseEvent(events.RunFailedEvent, wf.ID, run.ID),
			DurationMs: duration.Milliseconds(),
			NodeID:     failedNode,
			Error:      run.Error,
		})

		return
	}

	e.publish(ctx, wf.ID, events.RunCompleted{
		BaseEvent:  events.NewBaseEvent(events.RunCompletedEvent, wf.ID, run.ID),
		DurationMs: duration.Milliseconds(),
		LogEntries: len(run.Log),
	})
}

// publish sends a lifecycle event without letting bus trouble touch the run.
// The workflow ID keys the event so per-workflow ordering survives a
// partitioned transport.
func (e *Engine) publish(ctx context.Context, key string, event events.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "error", err)
	}
}

func asActionError(err error) (*dispatch.ActionError, bool) {
	var actionErr *dispatch.ActionError

	ok := errors.As(err, &actionErr)

	return actionErr, ok
}

// runState is the mutable context of one in-flight run: the shared log and
// the first-failure latch that cancels sibling branches.
type runState struct {
	engine *Engine
	wf     *models.Workflow
	run    *models.RunRecord
	runCtx *models.RunContext

	mu  sync.Mutex
	log []models.RunLogEntry

	failMu  sync.Mutex
	failErr error
	cancel  context.CancelFunc
}

func (s *runState) execute(ctx context.Context, trigger *models.WorkflowNode) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.cancel = cancel

	err := s.walk(ctx, trigger)

	s.failMu.Lock()
	defer s.failMu.Unlock()

	// The latched failure wins over derived context errors from siblings.
	if s.failErr != nil {
		return s.failErr
	}

	return err
}

// fail latches the first error and cancels the run context so concurrent
// branches stop at their next checkpoint.
func (s *runState) fail(err error) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()

	if s.failErr == nil {
		s.failErr = err
		s.cancel()
	}

	return err
}

// walk executes one node and then descends into its connections, depth-first.
// Multiple connections fan out into concurrent branches; the walk returns
// once every branch it started has returned.
func (s *runState) walk(ctx context.Context, node *models.WorkflowNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	started := time.Now()
	targets := node.Connections

	switch node.Kind {
	case models.NodeKindTrigger:
		s.appendLog(ctx, node.ID, models.LogLevelInfo, "Trigger fired", nil)

	case models.NodeKindCondition:
		result, err := s.engine.conditions.Evaluate(node, s.runCtx)
		if err != nil {
			s.appendLog(ctx, node.ID, models.LogLevelError, "Condition evaluation failed",
				map[string]any{"error": err.Error()})

			return s.fail(err)
		}

		if !result.Matched {
			s.appendLog(ctx, node.ID, models.LogLevelInfo, "Condition not met, branch pruned", nil)

			return nil
		}

		if result.Branch != "" {
			targets = filterTargets(targets, result.Branch)
			if len(targets) == 0 {
				s.appendLog(ctx, node.ID, models.LogLevelWarning,
					"Switch selected a target that is not connected",
					map[string]any{"target": result.Branch})

				return nil
			}
		}

		s.appendLog(ctx, node.ID, models.LogLevelInfo, "Condition met", nil)

	case models.NodeKindAction:
		kind := node.ConfigString("action_type", "")

		s.appendLog(ctx, node.ID, models.LogLevelInfo, "Action started",
			map[string]any{"action_type": kind})

		dispatched, err := s.engine.dispatcher.Dispatch(ctx, node, s.runCtx)
		if err != nil {
			s.appendLog(ctx, node.ID, models.LogLevelError, "Action failed",
				map[string]any{"error": err.Error()})

			return s.fail(err)
		}

		if !dispatched {
			s.appendLog(ctx, node.ID, models.LogLevelWarning, "Unknown action kind, node skipped",
				map[string]any{"action_type": kind})

			break
		}

		s.appendLog(ctx, node.ID, models.LogLevelInfo, "Action executed", nil)

	case models.NodeKindDelay:
		if err := s.delay(ctx, node); err != nil {
			return err
		}
	}

	s.engine.publish(ctx, s.wf.ID, events.NodeExecuted{
		BaseEvent:  events.NewBaseEvent(events.NodeExecutedEvent, s.wf.ID, s.run.ID),
		NodeID:     node.ID,
		Kind:       node.Kind,
		DurationMs: time.Since(started).Milliseconds(),
	})

	return s.descend(ctx, targets)
}

// descend runs each downstream branch. A single connection stays on the
// current goroutine; several fan out and are all waited for, even when one
// fails.
func (s *runState) descend(ctx context.Context, targets []string) error {
	switch len(targets) {
	case 0:
		return nil
	case 1:
		return s.walk(ctx, s.wf.NodeByID(targets[0]))
	}

	var wg sync.WaitGroup

	var mu sync.Mutex

	var firstErr error

	for _, target := range targets {
		node := s.wf.NodeByID(target)

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := s.walk(ctx, node); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	return firstErr
}

// delay suspends the branch without blocking a thread pool slot; sibling
// branches keep running. Cancelling the run releases the wait early.
func (s *runState) delay(ctx context.Context, node *models.WorkflowNode) error {
	duration := configDuration(node)

	s.appendLog(ctx, node.ID, models.LogLevelInfo, "Delay started",
		map[string]any{"duration_ms": duration.Milliseconds()})

	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.appendLog(ctx, node.ID, models.LogLevelInfo, "Delay elapsed", nil)

	return nil
}

// appendLog records an entry in the in-memory log and mirrors it to the run
// store. The store write is best-effort; a run never fails because its log
// could not be persisted.
func (s *runState) appendLog(ctx context.Context, nodeID string, level models.LogLevel, message string, data map[string]any) {
	entry := models.RunLogEntry{
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		Level:     level,
		Message:   message,
		Data:      data,
	}

	s.mu.Lock()
	s.log = append(s.log, entry)
	s.mu.Unlock()

	if err := s.engine.persistence.RunRepository().AppendLog(ctx, s.run.ID, entry); err != nil {
		s.engine.logger.WarnContext(ctx, "Failed to persist run log entry",
			"run_id", s.run.ID, "node_id", nodeID, "error", err)
	}
}

func (s *runState) entries() []models.RunLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RunLogEntry, len(s.log))
	copy(out, s.log)

	return out
}

func filterTargets(targets []string, branch string) []string {
	for _, target := range targets {
		if target == branch {
			return []string{target}
		}
	}

	return nil
}

// defaultDelay applies when a delay node carries no duration_ms.
const defaultDelay = time.Second

// configDuration reads a delay node's duration_ms config value. JSON numbers
// decode as float64; directly constructed workflows may carry ints. A missing
// or non-numeric value falls back to the one-second default.
func configDuration(node *models.WorkflowNode) time.Duration {
	switch v := node.Config["duration_ms"].(type) {
	case float64:
		return time.Duration(v) * time.Millisecond
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	default:
		return defaultDelay
	}
}

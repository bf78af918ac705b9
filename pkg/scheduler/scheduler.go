// Package scheduler fires scheduled workflows on their cron cadence. It maps
// workflow IDs to cron entries; runs themselves are the job callback's
// responsibility.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// specParser accepts standard 5-field cron expressions with an optional
// leading seconds field.
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ScheduleSyntaxError reports an unparseable cron expression.
type ScheduleSyntaxError struct {
	Spec string
	Err  error
}

func (e *ScheduleSyntaxError) Error() string {
	return fmt.Sprintf("invalid schedule %q: %v", e.Spec, e.Err)
}

func (e *ScheduleSyntaxError) Unwrap() error {
	return e.Err
}

// ParseSpec validates a cron expression without registering anything.
func ParseSpec(spec string) (cron.Schedule, error) {
	schedule, err := specParser.Parse(spec)
	if err != nil {
		return nil, &ScheduleSyntaxError{Spec: spec, Err: err}
	}

	return schedule, nil
}

// Job is invoked on every tick of a registered workflow. Implementations run
// the workflow; the scheduler never waits on the outcome.
type Job func(ctx context.Context, workflowID string)

// Scheduler owns one cron runner and the workflowID -> entry mapping.
// Register, Unregister and Reschedule are safe to call while running.
type Scheduler struct {
	logger *slog.Logger
	cron   *cron.Cron
	job    Job

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler(logger *slog.Logger, job Job) *Scheduler {
	return &Scheduler{
		logger: logger.With("module", "scheduler"),
		// Overlapping fires of the same workflow run concurrently; each run
		// gets its own context, so ticks are never suppressed.
		cron: cron.New(
			cron.WithParser(specParser),
			cron.WithChain(
				cron.Recover(cron.DefaultLogger),
			),
		),
		job:     job,
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds a workflow to the cadence. Registering an already registered
// workflow replaces its entry. A bad spec registers nothing: an existing
// entry keeps its previous cadence.
func (s *Scheduler) Register(workflowID, spec string) error {
	if _, err := ParseSpec(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("Schedule fired", "workflow_id", workflowID, "spec", spec)
		s.job(context.Background(), workflowID)
	})
	if err != nil {
		return &ScheduleSyntaxError{Spec: spec, Err: err}
	}

	if previous, ok := s.entries[workflowID]; ok {
		s.cron.Remove(previous)
	}

	s.entries[workflowID] = id

	return nil
}

// Unregister removes a workflow's entry. Unknown workflows are a no-op.
func (s *Scheduler) Unregister(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[workflowID]; ok {
		s.cron.Remove(id)
		delete(s.entries, workflowID)
	}
}

// Reschedule atomically swaps a workflow's cadence. Equivalent to Register;
// named separately because callers treat "update" and "create" differently.
func (s *Scheduler) Reschedule(workflowID, spec string) error {
	return s.Register(workflowID, spec)
}

// Registered reports whether the workflow currently has a cron entry.
func (s *Scheduler) Registered(workflowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[workflowID]

	return ok
}

// Start begins firing entries. Safe to call before or after Register.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts firing and waits for in-flight jobs to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

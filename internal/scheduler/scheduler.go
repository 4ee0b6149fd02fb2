package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framepulse/framepulse-core/internal/metrics"
	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// Executor performs the actual work of one task run and fills in the
// counts on the execution record. Implemented by the diagnosis services.
type Executor interface {
	Execute(ctx context.Context, task *models.Task, exec *models.Execution) error
}

// gate serializes runs of one task: one running, at most one queued.
type gate struct {
	running bool
	queued  bool
}

// Scheduler evaluates task cron expressions on a fixed tick and dispatches
// due tasks to a bounded worker pool.
type Scheduler struct {
	store    *Store
	executor Executor
	log      logger.Logger

	clock     func() time.Time
	tick      time.Duration
	retention int

	sem   chan struct{}
	mu    sync.Mutex
	gates map[string]*gate
	wg    sync.WaitGroup
}

// Option tweaks scheduler construction; used mainly by tests.
type Option func(*Scheduler)

// WithClock injects a deterministic clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithTick overrides the evaluation cadence.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

func New(store *Store, executor Executor, workers, retention int, log logger.Logger, opts ...Option) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 2 {
			workers = 2
		}
	}
	if retention <= 0 {
		retention = 1000
	}
	s := &Scheduler{
		store:     store,
		executor:  executor,
		log:       log,
		clock:     time.Now,
		tick:      30 * time.Second,
		retention: retention,
		sem:       make(chan struct{}, workers),
		gates:     map[string]*gate{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Store exposes the backing store for task CRUD.
func (s *Scheduler) Store() *Store { return s.store }

// CreateTask validates, stamps and persists a new task.
func (s *Scheduler) CreateTask(task *models.Task) error {
	const op = "scheduler.CreateTask"
	if task.Name == "" {
		return models.E(models.KindInput, op, "task name is required")
	}
	if !task.TaskType.Valid() {
		return models.E(models.KindInput, op, "invalid task_type")
	}
	if task.Config.InputPath == "" {
		return models.E(models.KindInput, op, "config.input_path is required")
	}
	if _, err := ParseCron(task.CronExpr); err != nil {
		return err
	}
	if task.TaskID == "" {
		task.TaskID = uuid.NewString()
	}
	now := s.clock()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.refreshNextRun(task, now)
	return s.store.SaveTask(task)
}

// UpdateTask replaces a task definition, recomputing next_run_at.
func (s *Scheduler) UpdateTask(task *models.Task) error {
	existing, err := s.store.GetTask(task.TaskID)
	if err != nil {
		return err
	}
	if _, err := ParseCron(task.CronExpr); err != nil {
		return err
	}
	task.CreatedAt = existing.CreatedAt
	task.LastRunAt = existing.LastRunAt
	task.UpdatedAt = s.clock()
	s.refreshNextRun(task, s.clock())
	return s.store.SaveTask(task)
}

// SetEnabled flips a task on or off.
func (s *Scheduler) SetEnabled(taskID string, enabled bool) error {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return err
	}
	task.Enabled = enabled
	task.UpdatedAt = s.clock()
	s.refreshNextRun(task, s.clock())
	return s.store.SaveTask(task)
}

// DeleteTask removes the definition; history stays.
func (s *Scheduler) DeleteTask(taskID string) error {
	return s.store.DeleteTask(taskID)
}

func (s *Scheduler) refreshNextRun(task *models.Task, after time.Time) {
	if !task.Enabled {
		task.NextRunAt = nil
		return
	}
	next, err := NextRun(task.CronExpr, after)
	if err != nil {
		task.NextRunAt = nil
		return
	}
	task.NextRunAt = &next
}

// Run drives the tick loop until ctx is done, then waits for in-flight
// executions.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	s.log.Info("scheduler started", "tick", s.tick.String())
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.TickOnce(ctx)
		}
	}
}

// TickOnce evaluates all tasks against the current clock and dispatches the
// due ones. Exported so tests can drive the scheduler deterministically.
func (s *Scheduler) TickOnce(ctx context.Context) {
	now := s.clock()
	tasks, err := s.store.ListTasks()
	if err != nil {
		s.log.Error("task listing failed", "error", err)
		return
	}
	for _, task := range tasks {
		if !task.Enabled || task.NextRunAt == nil || task.NextRunAt.After(now) {
			continue
		}
		// Advance next_run_at before dispatch so a long run cannot
		// double-fire within the same slot.
		s.refreshNextRun(task, now)
		task.LastRunAt = &now
		if err := s.store.SaveTask(task); err != nil {
			s.log.Error("task update failed", "task_id", task.TaskID, "error", err)
			continue
		}
		if _, err := s.dispatch(ctx, task); err != nil && !models.IsKind(err, models.KindConflict) {
			s.log.Error("task dispatch failed", "task_id", task.TaskID, "error", err)
		}
	}
}

// RunNow triggers an ad-hoc execution, identical to a scheduled one.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (string, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return "", err
	}
	return s.dispatch(ctx, task)
}

// dispatch serializes per task: a run in progress queues the call; a queued
// call already waiting rejects it with TaskBusy.
func (s *Scheduler) dispatch(ctx context.Context, task *models.Task) (string, error) {
	const op = "scheduler.dispatch"
	s.mu.Lock()
	g, ok := s.gates[task.TaskID]
	if !ok {
		g = &gate{}
		s.gates[task.TaskID] = g
	}
	if g.running && g.queued {
		s.mu.Unlock()
		return "", models.E(models.KindConflict, op, "task busy: a run is active and another is queued")
	}
	queued := g.running
	if queued {
		g.queued = true
	} else {
		g.running = true
	}
	s.mu.Unlock()

	execID := uuid.NewString()
	s.wg.Add(1)
	metrics.SchedulerQueueDepth.Inc()
	go s.runTask(ctx, task, execID, queued)
	return execID, nil
}

func (s *Scheduler) runTask(ctx context.Context, task *models.Task, execID string, queued bool) {
	defer s.wg.Done()
	defer metrics.SchedulerQueueDepth.Dec()

	if queued {
		// Wait for the active run to release the gate.
		for {
			s.mu.Lock()
			g := s.gates[task.TaskID]
			if !g.running {
				g.running = true
				g.queued = false
				s.mu.Unlock()
				break
			}
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				s.releaseGate(task.TaskID)
				return
			case <-time.After(200 * time.Millisecond):
			}
		}
	}
	defer s.releaseGate(task.TaskID)

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	exec := &models.Execution{
		ExecutionID: execID,
		TaskID:      task.TaskID,
		TaskName:    task.Name,
		Status:      models.ExecutionRunning,
		StartedAt:   s.clock(),
	}
	if err := s.store.SaveExecution(exec); err != nil {
		s.log.Error("execution record failed", "task_id", task.TaskID, "error", err)
		return
	}

	err := s.executor.Execute(ctx, task, exec)
	finished := s.clock()
	exec.FinishedAt = &finished
	switch {
	case err != nil && exec.ItemsTotal == 0:
		exec.Status = models.ExecutionFailed
		exec.Error = err.Error()
	case err != nil || exec.ErrorCount > 0:
		exec.Status = models.ExecutionPartial
		if err != nil {
			exec.Error = err.Error()
		}
	default:
		exec.Status = models.ExecutionSuccess
	}
	if err := s.store.SaveExecution(exec); err != nil {
		s.log.Error("execution finalize failed", "execution_id", execID, "error", err)
	}
	metrics.SchedulerExecutions.WithLabelValues(string(task.TaskType), string(exec.Status)).Inc()
	s.log.Info("task execution finished",
		"task_id", task.TaskID,
		"execution_id", execID,
		"status", exec.Status,
		"items", exec.ItemsTotal,
		"abnormal", exec.AbnormalCount,
		"errors", exec.ErrorCount,
	)

	if err := s.store.Prune(task.TaskID, s.retention, task.Output.KeepDays); err != nil {
		s.log.Warn("history prune failed", "task_id", task.TaskID, "error", err)
	}
}

func (s *Scheduler) releaseGate(taskID string) {
	s.mu.Lock()
	if g, ok := s.gates[taskID]; ok {
		g.running = false
		if !g.queued {
			delete(s.gates, taskID)
		}
	}
	s.mu.Unlock()
}

// Wait blocks until all in-flight executions complete. Used in shutdown
// and tests.
func (s *Scheduler) Wait() { s.wg.Wait() }

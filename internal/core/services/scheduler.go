package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
	"github.com/custodia-labs/recsync/internal/core/ports/driving"
	"github.com/custodia-labs/recsync/internal/logger"
)

// Scheduler manages background task execution: one incremental sync per
// source plus the dead-letter retry sweep. It is a pure core service with
// no external control API; the periodic trigger is the daemon.
type Scheduler struct {
	store    driven.SchedulerStore
	syncSvc  driving.SyncService
	queueSvc driving.QueueService

	mu      sync.Mutex
	config  domain.SchedulerConfig
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	syncSvc driving.SyncService,
	queueSvc driving.QueueService,
) *Scheduler {
	return &Scheduler{
		config:   config,
		store:    store,
		syncSvc:  syncSvc,
		queueSvc: queueSvc,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is
// called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Reload applies a new scheduler configuration, used when the config file
// changes under a running daemon. Task intervals take effect on the next
// tick.
func (s *Scheduler) Reload(ctx context.Context, config domain.SchedulerConfig) {
	s.mu.Lock()
	s.config = config
	s.mu.Unlock()
	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to reinitialise tasks: %v", err)
	}
}

// taskIDs returns the built-in task ids in a stable order.
func taskIDs() []string {
	ids := make([]string, 0, len(domain.SourceOrder)+1)
	for _, src := range domain.SourceOrder {
		ids = append(ids, domain.TaskIDForSource(src))
	}
	return append(ids, domain.TaskIDQueueRetry)
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	s.mu.Lock()
	config := s.config
	s.mu.Unlock()

	for _, id := range taskIDs() {
		cfg := config.GetTaskConfig(id)
		if err := s.ensureTask(ctx, id, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     id,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  time.Now().Add(cfg.Interval),
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = time.Now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	// Check for due tasks immediately on startup.
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due. Source sync
// tasks may run concurrently with each other; the per-source named locks
// keep overlapping triggers of the same source out.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		task := tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, &task)
		}
	}
}

// runTask executes a single task in the background.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		started := time.Now()
		err := s.execute(ctx, task.ID)

		ended := time.Now()
		if err != nil {
			task.LastError = err.Error()
		} else {
			task.LastError = ""
			task.LastSuccess = ended
		}
		task.LastRun = started
		task.NextRun = ended.Add(task.Interval)

		if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
	}()
}

// execute dispatches a task id to its service.
func (s *Scheduler) execute(ctx context.Context, taskID string) error {
	switch taskID {
	case domain.TaskIDSyncSplynx:
		return s.runSourceSync(ctx, domain.SourceSplynx)
	case domain.TaskIDSyncERPNext:
		return s.runSourceSync(ctx, domain.SourceERPNext)
	case domain.TaskIDSyncChatwoot:
		return s.runSourceSync(ctx, domain.SourceChatwoot)
	case domain.TaskIDQueueRetry:
		if s.queueSvc == nil {
			return nil
		}
		_, err := s.queueSvc.ProcessDue(ctx)
		return err
	default:
		logger.Warn("scheduler: unknown task ID: %s", taskID)
		return nil
	}
}

// runSourceSync runs one source's incremental sync. A skipped run (lock
// held elsewhere) is success for scheduling purposes.
func (s *Scheduler) runSourceSync(ctx context.Context, source domain.SourceName) error {
	if s.syncSvc == nil {
		return nil
	}
	outcome := s.syncSvc.RunOne(ctx, source, false)
	if outcome.Skipped {
		return nil
	}
	if outcome.Failed() {
		if outcome.Err != nil {
			return outcome.Err
		}
		return fmt.Errorf("%s sync failed", source)
	}
	return nil
}

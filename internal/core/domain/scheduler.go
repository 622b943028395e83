package domain

import "time"

// ScheduledTask is one recurring background task's persistent state:
// its run cadence plus the bookkeeping the scheduler stamps after every
// execution.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration

	LastRun time.Time
	NextRun time.Time

	// LastError holds the most recent failure message; empty after a
	// successful run.
	LastError   string
	LastSuccess time.Time

	Enabled bool
}

// SchedulerConfig is the scheduler section of the application config: a
// master switch plus per-task overrides keyed by task id.
type SchedulerConfig struct {
	Enabled     bool
	TaskConfigs map[string]TaskConfig
}

// TaskConfig configures a single task's cadence.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// GetTaskConfig returns one task's configuration, zero-valued when the
// task id is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// Task IDs for built-in tasks: one incremental sync per source plus the
// dead-letter retry sweep.
const (
	TaskIDSyncSplynx   = "sync-splynx"
	TaskIDSyncERPNext  = "sync-erpnext"
	TaskIDSyncChatwoot = "sync-chatwoot"
	TaskIDQueueRetry   = "dlq-retry"
)

// TaskIDForSource returns the sync task id for a source.
func TaskIDForSource(s SourceName) string {
	return "sync-" + string(s)
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDSyncSplynx:   {Enabled: true, Interval: 15 * time.Minute},
			TaskIDSyncERPNext:  {Enabled: true, Interval: 30 * time.Minute},
			TaskIDSyncChatwoot: {Enabled: true, Interval: 30 * time.Minute},
			TaskIDQueueRetry:   {Enabled: true, Interval: 5 * time.Minute},
		},
	}
}

package domain

import "time"

// SourceConfig is one row per registered fetcher. New sources are created
// disabled and have to be switched on explicitly.
type SourceConfig struct {
	ID        int64             `db:"id"`
	SourceID  string            `db:"source_id"`
	Enabled   bool              `db:"enabled"`
	Priority  int               `db:"priority"` // lower runs earlier
	RateLimit time.Duration     `db:"-"`
	BatchSize int               `db:"batch_size"`
	Settings  map[string]string `db:"-"`
	CreatedAt time.Time         `db:"created_at"`
	UpdatedAt time.Time         `db:"updated_at"`
}

// SourceCursor is the persisted pagination position for a source, advanced
// after every fetched page so a paused job survives a process restart.
type SourceCursor struct {
	SourceID  string    `db:"source_id"`
	NextPage  int       `db:"next_page"`
	UpdatedAt time.Time `db:"updated_at"`
}

// RunStatus is the terminal outcome of one per-source run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// RunOutcome is what one per-source run contributes to the cumulative
// stats: counters to add, the run verdict, and the per-item timing sample.
type RunOutcome struct {
	Status        RunStatus
	Ingested      int
	Succeeded     int
	Failed        int
	AvgItemMillis int64
	RanAt         time.Time
}

// SourceStats holds cumulative per-source counters. Counters are only ever
// incremented, never overwritten.
type SourceStats struct {
	SourceID       string     `db:"source_id" json:"source_id"`
	TotalIngested  int64      `db:"total_ingested" json:"total_ingested"`
	TotalSucceeded int64      `db:"total_succeeded" json:"total_succeeded"`
	TotalFailed    int64      `db:"total_failed" json:"total_failed"`
	LastRunAt      *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	LastRunStatus  RunStatus  `db:"last_run_status" json:"last_run_status"`
	ErrorCount24h  int        `db:"error_count_24h" json:"error_count_24h"`
	AvgItemMillis  int64      `db:"avg_item_millis" json:"avg_item_millis"`
}

// HealthStatus is derived from SourceStats at read time, never stored.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
	HealthFailed  HealthStatus = "failed"
)

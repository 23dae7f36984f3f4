package domain

import "time"

// JobStatus is the terminal status of one orchestrator invocation.
type JobStatus string

const (
	JobCompleted JobStatus = "completed"
	JobPartial   JobStatus = "partial"
	JobFailed    JobStatus = "failed"
)

// Stage names the pipeline step an item was in when something happened.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageClassify Stage = "classify"
	StageFilter   Stage = "filter"
	StageValidate Stage = "validate"
	StageUpload   Stage = "upload"
	StagePersist  Stage = "persist"
)

// ItemError records one failed item inside a source report.
type ItemError struct {
	ItemID  string `json:"item_id"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
}

// SourceReport tallies one source's run inside a job.
// Added + Skipped + Failed == Processed at all times.
type SourceReport struct {
	SourceID  string      `json:"source_id"`
	Processed int         `json:"processed"`
	Added     int         `json:"added"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// JobResult is the append-only record of one orchestrator invocation.
type JobResult struct {
	ID         string         `json:"id"`
	Status     JobStatus      `json:"status"`
	DryRun     bool           `json:"dry_run"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceReport `json:"sources"`
}

// Totals sums the per-source tallies.
func (r *JobResult) Totals() (processed, added, skipped, failed int) {
	for _, s := range r.Sources {
		processed += s.Processed
		added += s.Added
		skipped += s.Skipped
		failed += s.Failed
	}
	return processed, added, skipped, failed
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"book_harvester/internal/domain"
)

type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

// Insert appends a finished job's record. Job rows are never updated.
func (s *JobStore) Insert(ctx context.Context, job *domain.JobResult) error {
	sources, err := json.Marshal(job.Sources)
	if err != nil {
		return fmt.Errorf("marshal source reports: %w", err)
	}

	query := `
		INSERT INTO harvest_jobs (id, status, dry_run, started_at, finished_at, sources)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = GetExecutor(ctx, s.db).ExecContext(ctx, query,
		job.ID,
		job.Status,
		job.DryRun,
		job.StartedAt,
		job.FinishedAt,
		sources,
	)
	return err
}

func (s *JobStore) Get(ctx context.Context, id string) (*domain.JobResult, error) {
	query := `
		SELECT id, status, dry_run, started_at, finished_at, sources
		FROM harvest_jobs
		WHERE id = $1`

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}

	return row.toDomain()
}

func (s *JobStore) GetRecent(ctx context.Context, limit int) ([]domain.JobResult, error) {
	query := `
		SELECT id, status, dry_run, started_at, finished_at, sources
		FROM harvest_jobs
		ORDER BY started_at DESC
		LIMIT $1`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}

	jobs := make([]domain.JobResult, 0, len(rows))
	for _, row := range rows {
		job, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, nil
}

type jobRow struct {
	ID         string           `db:"id"`
	Status     domain.JobStatus `db:"status"`
	DryRun     bool             `db:"dry_run"`
	StartedAt  time.Time        `db:"started_at"`
	FinishedAt time.Time        `db:"finished_at"`
	Sources    json.RawMessage  `db:"sources"`
}

func (r jobRow) toDomain() (*domain.JobResult, error) {
	var sources []domain.SourceReport
	if len(r.Sources) > 0 {
		if err := json.Unmarshal(r.Sources, &sources); err != nil {
			return nil, fmt.Errorf("unmarshal source reports: %w", err)
		}
	}

	return &domain.JobResult{
		ID:         r.ID,
		Status:     r.Status,
		DryRun:     r.DryRun,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Sources:    sources,
	}, nil
}

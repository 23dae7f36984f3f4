package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"book_harvester/internal/domain"
)

type StatsStore struct {
	db *sqlx.DB
}

func NewStatsStore(db *sqlx.DB) *StatsStore {
	return &StatsStore{db: db}
}

// Apply folds one run's outcome into the cumulative counters. Counters only
// grow; the moving average halves toward the newest sample.
func (s *StatsStore) Apply(ctx context.Context, sourceID string, outcome domain.RunOutcome) error {
	exec := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO source_stats (
			source_id, total_ingested, total_succeeded, total_failed,
			last_run_at, last_run_status, avg_item_millis
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_id) DO UPDATE SET
			total_ingested = source_stats.total_ingested + EXCLUDED.total_ingested,
			total_succeeded = source_stats.total_succeeded + EXCLUDED.total_succeeded,
			total_failed = source_stats.total_failed + EXCLUDED.total_failed,
			last_run_at = EXCLUDED.last_run_at,
			last_run_status = EXCLUDED.last_run_status,
			avg_item_millis = CASE
				WHEN source_stats.avg_item_millis = 0 THEN EXCLUDED.avg_item_millis
				WHEN EXCLUDED.avg_item_millis = 0 THEN source_stats.avg_item_millis
				ELSE (source_stats.avg_item_millis + EXCLUDED.avg_item_millis) / 2
			END`

	_, err := exec.ExecContext(ctx, query,
		sourceID,
		outcome.Ingested,
		outcome.Succeeded,
		outcome.Failed,
		outcome.RanAt,
		outcome.Status,
		outcome.AvgItemMillis,
	)
	if err != nil {
		return err
	}

	if outcome.Failed > 0 {
		_, err = exec.ExecContext(ctx,
			`INSERT INTO stat_errors (source_id, occurred_at)
			 SELECT $1, $2 FROM generate_series(1, $3)`,
			sourceID, outcome.RanAt, outcome.Failed,
		)
		if err != nil {
			return err
		}
	}

	// Error rows only feed the trailing 24h count; anything older than the
	// 48h staleness horizon is useless.
	_, err = exec.ExecContext(ctx,
		"DELETE FROM stat_errors WHERE occurred_at < now() - interval '48 hours'")
	return err
}

const statsSelect = `
	SELECT s.source_id, s.total_ingested, s.total_succeeded, s.total_failed,
	       s.last_run_at, s.last_run_status, s.avg_item_millis,
	       (SELECT count(*) FROM stat_errors e
	        WHERE e.source_id = s.source_id
	          AND e.occurred_at > now() - interval '24 hours') AS error_count_24h
	FROM source_stats s`

func (s *StatsStore) Get(ctx context.Context, sourceID string) (*domain.SourceStats, error) {
	var stats domain.SourceStats
	err := s.db.GetContext(ctx, &stats, statsSelect+" WHERE s.source_id = $1", sourceID)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *StatsStore) GetAll(ctx context.Context) ([]domain.SourceStats, error) {
	var stats []domain.SourceStats
	err := s.db.SelectContext(ctx, &stats, statsSelect+" ORDER BY s.source_id ASC")
	return stats, err
}

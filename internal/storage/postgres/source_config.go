package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"book_harvester/internal/domain"
)

type SourceConfigStore struct {
	db *sqlx.DB
}

func NewSourceConfigStore(db *sqlx.DB) *SourceConfigStore {
	return &SourceConfigStore{db: db}
}

// EnsureRegistered creates a config row for a newly seen source. The row
// starts disabled; enabling a source is an operator action, never automatic.
// Existing rows are left untouched.
func (s *SourceConfigStore) EnsureRegistered(ctx context.Context, sourceID string, rateLimit time.Duration, batchSize int) error {
	query := `
		INSERT INTO source_configs (source_id, enabled, priority, rate_limit_ms, batch_size, settings)
		VALUES ($1, false, 100, $2, $3, '{}')
		ON CONFLICT (source_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, sourceID, rateLimit.Milliseconds(), batchSize)
	return err
}

// GetEnabled returns enabled sources ordered by priority, lowest first.
// Priority ties break on source_id so the order is deterministic.
func (s *SourceConfigStore) GetEnabled(ctx context.Context) ([]domain.SourceConfig, error) {
	query := `
		SELECT id, source_id, enabled, priority, rate_limit_ms, batch_size, settings, created_at, updated_at
		FROM source_configs
		WHERE enabled
		ORDER BY priority ASC, source_id ASC`

	var rows []sourceConfigRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	configs := make([]domain.SourceConfig, 0, len(rows))
	for _, row := range rows {
		cfg, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", row.SourceID, err)
		}
		configs = append(configs, cfg)
	}

	return configs, nil
}

// GetAll returns every config row, enabled or not, in priority order.
func (s *SourceConfigStore) GetAll(ctx context.Context) ([]domain.SourceConfig, error) {
	query := `
		SELECT id, source_id, enabled, priority, rate_limit_ms, batch_size, settings, created_at, updated_at
		FROM source_configs
		ORDER BY priority ASC, source_id ASC`

	var rows []sourceConfigRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	configs := make([]domain.SourceConfig, 0, len(rows))
	for _, row := range rows {
		cfg, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", row.SourceID, err)
		}
		configs = append(configs, cfg)
	}

	return configs, nil
}

func (s *SourceConfigStore) Get(ctx context.Context, sourceID string) (*domain.SourceConfig, error) {
	query := `
		SELECT id, source_id, enabled, priority, rate_limit_ms, batch_size, settings, created_at, updated_at
		FROM source_configs
		WHERE source_id = $1`

	var row sourceConfigRow
	if err := s.db.GetContext(ctx, &row, query, sourceID); err != nil {
		return nil, err
	}

	cfg, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Update changes the operator-tunable fields. The source_id itself is
// immutable.
func (s *SourceConfigStore) Update(ctx context.Context, cfg *domain.SourceConfig) error {
	settings, err := json.Marshal(cfg.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `
		UPDATE source_configs
		SET enabled = $2,
		    priority = $3,
		    rate_limit_ms = $4,
		    batch_size = $5,
		    settings = $6,
		    updated_at = now()
		WHERE source_id = $1`

	result, err := s.db.ExecContext(ctx, query,
		cfg.SourceID,
		cfg.Enabled,
		cfg.Priority,
		cfg.RateLimit.Milliseconds(),
		cfg.BatchSize,
		settings,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

type sourceConfigRow struct {
	ID          int64           `db:"id"`
	SourceID    string          `db:"source_id"`
	Enabled     bool            `db:"enabled"`
	Priority    int             `db:"priority"`
	RateLimitMS int64           `db:"rate_limit_ms"`
	BatchSize   int             `db:"batch_size"`
	Settings    json.RawMessage `db:"settings"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (r sourceConfigRow) toDomain() (domain.SourceConfig, error) {
	settings := make(map[string]string)
	if len(r.Settings) > 0 {
		if err := json.Unmarshal(r.Settings, &settings); err != nil {
			return domain.SourceConfig{}, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	return domain.SourceConfig{
		ID:        r.ID,
		SourceID:  r.SourceID,
		Enabled:   r.Enabled,
		Priority:  r.Priority,
		RateLimit: time.Duration(r.RateLimitMS) * time.Millisecond,
		BatchSize: r.BatchSize,
		Settings:  settings,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

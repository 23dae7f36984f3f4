package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"book_harvester/internal/domain"
)

type FilterDecisionStore struct {
	db *sqlx.DB
}

func NewFilterDecisionStore(db *sqlx.DB) *FilterDecisionStore {
	return &FilterDecisionStore{db: db}
}

func (s *FilterDecisionStore) Insert(ctx context.Context, decision *domain.FilterDecision) error {
	query := `
		INSERT INTO filter_decisions (source_id, item_id, filter_name, reason, field_value)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		decision.SourceID,
		decision.ItemID,
		decision.FilterName,
		decision.Reason,
		decision.FieldValue,
	)
	return err
}

// GetBySource returns recent audit rows for operator inspection, newest
// first.
func (s *FilterDecisionStore) GetBySource(ctx context.Context, sourceID string, limit int) ([]domain.FilterDecision, error) {
	query := `
		SELECT id, source_id, item_id, filter_name, reason, field_value, created_at
		FROM filter_decisions
		WHERE source_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var decisions []domain.FilterDecision
	err := s.db.SelectContext(ctx, &decisions, query, sourceID, limit)
	return decisions, err
}

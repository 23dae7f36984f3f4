package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"book_harvester/internal/domain"
)

type CursorStore struct {
	db *sqlx.DB
}

func NewCursorStore(db *sqlx.DB) *CursorStore {
	return &CursorStore{db: db}
}

// Get returns the persisted pagination position for a source. Sources
// without a cursor start at page zero.
func (s *CursorStore) Get(ctx context.Context, sourceID string) (*domain.SourceCursor, error) {
	var cursor domain.SourceCursor
	query := `
		SELECT source_id, next_page, updated_at
		FROM source_cursors
		WHERE source_id = $1`

	err := s.db.GetContext(ctx, &cursor, query, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.SourceCursor{SourceID: sourceID, NextPage: 0}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cursor, nil
}

// Save advances the cursor. Called after every fetched page so an
// interrupted run resumes where it stopped.
func (s *CursorStore) Save(ctx context.Context, sourceID string, nextPage int) error {
	query := `
		INSERT INTO source_cursors (source_id, next_page, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source_id) DO UPDATE SET
			next_page = EXCLUDED.next_page,
			updated_at = EXCLUDED.updated_at`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, sourceID, nextPage)
	return err
}

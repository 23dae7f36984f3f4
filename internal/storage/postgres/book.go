package postgres

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"book_harvester/internal/domain"
)

const uniqueViolation = "23505"

type BookStore struct {
	db *sqlx.DB
}

func NewBookStore(db *sqlx.DB) *BookStore {
	return &BookStore{db: db}
}

func (s *BookStore) Insert(ctx context.Context, book *domain.Book) (int64, error) {
	query := `
		INSERT INTO books (
			title, author, year, language, description, source_id,
			source_item_id, asset_url, cover_url, genres, sub_genre, category
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING id`

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		book.Title,
		book.Author,
		book.Year,
		book.Language,
		book.Description,
		book.SourceID,
		book.SourceItemID,
		book.AssetURL,
		book.CoverURL,
		pq.Array(book.Genres),
		book.SubGenre,
		book.Category,
	).Scan(&id)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return 0, domain.ErrDuplicateBook
		}
		return 0, err
	}

	return id, nil
}

func (s *BookStore) ExistsBySourceItem(ctx context.Context, sourceID, itemID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM books WHERE source_id = $1 AND source_item_id = $2)",
		sourceID, itemID,
	)
	return exists, err
}

func (s *BookStore) ExistingItemIDs(ctx context.Context, sourceID string, itemIDs []string) (map[string]bool, error) {
	if len(itemIDs) == 0 {
		return make(map[string]bool), nil
	}

	query := `SELECT source_item_id FROM books WHERE source_id = $1 AND source_item_id = ANY($2)`

	var found []string
	if err := s.db.SelectContext(ctx, &found, query, sourceID, pq.Array(itemIDs)); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(found))
	for _, id := range found {
		result[id] = true
	}

	return result, nil
}

func (s *BookStore) GetBySourceItem(ctx context.Context, sourceID, itemID string) (*domain.Book, error) {
	query := `
		SELECT id, title, author, year, language, description, source_id,
		       source_item_id, asset_url, cover_url, genres, sub_genre,
		       category, created_at
		FROM books
		WHERE source_id = $1 AND source_item_id = $2`

	var row bookRow
	if err := s.db.GetContext(ctx, &row, query, sourceID, itemID); err != nil {
		return nil, err
	}

	book := row.toDomain()
	return &book, nil
}

type bookRow struct {
	domain.Book
	GenresArr pq.StringArray `db:"genres"`
}

func (r bookRow) toDomain() domain.Book {
	book := r.Book
	book.Genres = []string(r.GenresArr)
	return book
}

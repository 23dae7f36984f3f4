package domain

import "time"

// RawItem is the provider-native shape returned by a fetcher. It exists only
// for the duration of a fetch call and is never persisted as-is.
type RawItem struct {
	SourceID    string
	ItemID      string // unique within the source
	Title       string
	Creators    []string
	RawDate     string
	Language    string
	Description string
	Extra       map[string]string
}

// CanonicalFields is the normalized metadata produced by the mapper.
// Optional fields are nil when the provider did not supply them.
type CanonicalFields struct {
	Title       string
	Author      string
	Year        *int
	Language    *string
	Description *string
}

// Book is the canonical persisted record. The (SourceID, SourceItemID) pair
// is globally unique; the pipeline never mutates or deletes a book after
// insert.
type Book struct {
	ID           int64     `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Author       string    `db:"author" json:"author"`
	Year         *int      `db:"year" json:"year,omitempty"`
	Language     *string   `db:"language" json:"language,omitempty"`
	Description  *string   `db:"description" json:"description,omitempty"`
	SourceID     string    `db:"source_id" json:"source_id"`
	SourceItemID string    `db:"source_item_id" json:"source_item_id"`
	AssetURL     string    `db:"asset_url" json:"asset_url"`
	CoverURL     *string   `db:"cover_url" json:"cover_url,omitempty"`
	Genres       []string  `db:"-" json:"genres"`
	SubGenre     *string   `db:"sub_genre" json:"sub_genre,omitempty"`
	Category     string    `db:"category" json:"category"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// UncategorizedCategory is assigned when classification fails or yields
// nothing.
const UncategorizedCategory = "Uncategorized"

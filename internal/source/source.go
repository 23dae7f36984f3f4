package source

import (
	"context"
	"time"

	"book_harvester/internal/domain"
)

// Metadata describes a fetcher at registration time and supplies defaults
// for its configuration row.
type Metadata struct {
	DisplayName      string
	DefaultRateLimit time.Duration
	DefaultBatchSize int
	SupportedFormats []string
}

// FetchOptions carries the caller-supplied pagination and sizing for one
// page of candidates.
type FetchOptions struct {
	BatchSize int
	Page      int
	Language  string
}

// Fetcher is the provider adapter contract. Implementations hold no state
// between calls beyond what FetchOptions carries, so a paused job can resume
// from its persisted page without replaying. FetchItems returns an empty
// slice for "no results"; errors are reserved for transport or availability
// failures. ResolveAssetURL returns "" with a nil error when the provider
// has no asset in the preferred format.
type Fetcher interface {
	SourceID() string
	Metadata() Metadata
	FetchItems(ctx context.Context, opts FetchOptions) ([]domain.RawItem, error)
	ResolveAssetURL(ctx context.Context, itemID, preferredFormat string) (string, error)
}

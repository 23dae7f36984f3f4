package harvest

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"io"
	"time"

	"book_harvester/internal/classify"
	"book_harvester/internal/content"
	"book_harvester/internal/covers"
	"book_harvester/internal/domain"
)

type BookStore interface {
	Insert(ctx context.Context, book *domain.Book) (int64, error)
}

type Deduper interface {
	FilterNew(ctx context.Context, sourceID string, items []domain.RawItem) ([]domain.RawItem, error)
}

type ConfigStore interface {
	GetEnabled(ctx context.Context) ([]domain.SourceConfig, error)
}

type CursorStore interface {
	Get(ctx context.Context, sourceID string) (*domain.SourceCursor, error)
	Save(ctx context.Context, sourceID string, nextPage int) error
}

type StatsStore interface {
	Apply(ctx context.Context, sourceID string, outcome domain.RunOutcome) error
}

type JobStore interface {
	Insert(ctx context.Context, job *domain.JobResult) error
}

type FilterAudit interface {
	Insert(ctx context.Context, decision *domain.FilterDecision) error
}

type Classifier interface {
	Classify(ctx context.Context, in classify.Input) (*classify.Result, error)
}

type CoverSearcher interface {
	Search(ctx context.Context, q covers.Query) (*covers.Result, error)
}

type AssetValidator interface {
	Fetch(ctx context.Context, url string, format string) (*content.Asset, error)
}

type AssetWriter interface {
	Upload(ctx context.Context, path string, body io.Reader, contentType string) (string, error)
}

type Publisher interface {
	PublishBookIngested(ctx context.Context, book *domain.Book) error
	PublishNotification(ctx context.Context, name string, payload map[string]string) error
	Close() error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Recorder receives pipeline observations for the metrics endpoint.
type Recorder interface {
	ObserveItem(sourceID, outcome string)
	ObserveJob(status string, duration time.Duration)
}

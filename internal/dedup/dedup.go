package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"book_harvester/internal/domain"
)

// Store is the persistence lookup the engine needs. The books table is the
// single source of truth; no in-memory cache sits in front of it.
type Store interface {
	ExistsBySourceItem(ctx context.Context, sourceID, itemID string) (bool, error)
	ExistingItemIDs(ctx context.Context, sourceID string, itemIDs []string) (map[string]bool, error)
}

// Engine answers "have we ingested this item before" by (source_id,
// source_item_id) identity. Same title from two sources is two items.
type Engine struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With("component", "dedup"),
	}
}

func (e *Engine) Exists(ctx context.Context, sourceID, itemID string) (bool, error) {
	exists, err := e.store.ExistsBySourceItem(ctx, sourceID, itemID)
	if err != nil {
		return false, domain.PersistenceError(fmt.Errorf("check duplicate: %w", err))
	}
	return exists, nil
}

// FilterNew drops already ingested items from a fetched batch, preserving
// order. One query covers the whole batch.
func (e *Engine) FilterNew(ctx context.Context, sourceID string, items []domain.RawItem) ([]domain.RawItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}

	existing, err := e.store.ExistingItemIDs(ctx, sourceID, ids)
	if err != nil {
		return nil, domain.PersistenceError(fmt.Errorf("load existing items: %w", err))
	}

	fresh := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		if existing[item.ItemID] {
			continue
		}
		fresh = append(fresh, item)
	}

	if skipped := len(items) - len(fresh); skipped > 0 {
		e.logger.Debug("skipped known items", "source", sourceID, "count", skipped)
	}

	return fresh, nil
}

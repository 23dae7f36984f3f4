package dedup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"book_harvester/internal/domain"
)

type fakeStore struct {
	known map[string]bool
	err   error
}

func (f *fakeStore) ExistsBySourceItem(_ context.Context, _, itemID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[itemID], nil
}

func (f *fakeStore) ExistingItemIDs(_ context.Context, _ string, itemIDs []string) (map[string]bool, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[string]bool)
	for _, id := range itemIDs {
		if f.known[id] {
			result[id] = true
		}
	}
	return result, nil
}

func newEngine(store Store) *Engine {
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFilterNew_DropsKnownItems(t *testing.T) {
	engine := newEngine(&fakeStore{known: map[string]bool{"b": true}})

	items := []domain.RawItem{
		{SourceID: "gutendex", ItemID: "a"},
		{SourceID: "gutendex", ItemID: "b"},
		{SourceID: "gutendex", ItemID: "c"},
	}

	fresh, err := engine.FilterNew(context.Background(), "gutendex", items)
	require.NoError(t, err)

	require.Len(t, fresh, 2)
	assert.Equal(t, "a", fresh[0].ItemID)
	assert.Equal(t, "c", fresh[1].ItemID)
}

func TestFilterNew_EmptyBatch(t *testing.T) {
	engine := newEngine(&fakeStore{})

	fresh, err := engine.FilterNew(context.Background(), "gutendex", nil)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

func TestFilterNew_StoreErrorIsPersistence(t *testing.T) {
	engine := newEngine(&fakeStore{err: errors.New("connection refused")})

	_, err := engine.FilterNew(context.Background(), "gutendex", []domain.RawItem{{ItemID: "a"}})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorPersistence, domain.CategoryOf(err))
}

func TestExists(t *testing.T) {
	engine := newEngine(&fakeStore{known: map[string]bool{"x": true}})

	exists, err := engine.Exists(context.Background(), "openlibrary", "x")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = engine.Exists(context.Background(), "openlibrary", "y")
	require.NoError(t, err)
	assert.False(t, exists)
}

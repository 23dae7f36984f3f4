package gutendex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"book_harvester/internal/source"
)

func catalogBooks(from, to int64) []Book {
	books := make([]Book, 0, to-from+1)
	for id := from; id <= to; id++ {
		books = append(books, Book{
			ID:        id,
			Title:     fmt.Sprintf("Book %d", id),
			Authors:   []Person{{Name: fmt.Sprintf("Author %d", id)}},
			Languages: []string{"en"},
		})
	}
	return books
}

// newTestSource serves a 40-book catalog: API page 1 holds books 1-32,
// page 2 holds 33-40, anything past that is a 404 like the real API.
func newTestSource(t *testing.T) (*Source, *[]string) {
	var requestedPages []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requestedPages = append(requestedPages, page)

		var resp ListResponse
		switch page {
		case "1":
			resp = ListResponse{Count: 40, Results: catalogBooks(1, 32)}
		case "2":
			resp = ListResponse{Count: 40, Results: catalogBooks(33, 40)}
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{BaseURL: srv.URL}, logger), &requestedPages
}

func itemIDs(t *testing.T, s *Source, batch, page int) []string {
	t.Helper()

	items, err := s.FetchItems(context.Background(), source.FetchOptions{BatchSize: batch, Page: page})
	require.NoError(t, err)

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ItemID)
	}
	return ids
}

func TestFetchItems_ConsecutivePagesCoverTheCatalog(t *testing.T) {
	s, pages := newTestSource(t)

	var seen []string
	for page := 0; ; page++ {
		ids := itemIDs(t, s, 16, page)
		if len(ids) == 0 {
			break
		}
		seen = append(seen, ids...)
	}

	// Every catalog item shows up exactly once across the cursor pages.
	require.Len(t, seen, 40)
	for i, id := range seen {
		assert.Equal(t, strconv.Itoa(i+1), id)
	}

	// Two cursor pages per 32-item API page, then the 8-item tail.
	assert.Equal(t, []string{"1", "1", "2", "2"}, *pages)
}

func TestFetchItems_BatchSlicesWithinAPIPage(t *testing.T) {
	s, _ := newTestSource(t)

	page0 := itemIDs(t, s, 16, 0)
	page1 := itemIDs(t, s, 16, 1)

	require.Len(t, page0, 16)
	require.Len(t, page1, 16)
	assert.Equal(t, "1", page0[0])
	assert.Equal(t, "16", page0[15])
	assert.Equal(t, "17", page1[0])
	assert.Equal(t, "32", page1[15])
}

func TestFetchItems_BatchAlignedToAPIPageSize(t *testing.T) {
	s, _ := newTestSource(t)

	// 20 does not divide 32; the batch aligns down to 16 so no item falls
	// between cursor pages.
	ids := itemIDs(t, s, 20, 0)

	require.Len(t, ids, 16)
	assert.Equal(t, "16", ids[15])
}

func TestFetchItems_PastCatalogEndIsEmpty(t *testing.T) {
	s, _ := newTestSource(t)

	ids := itemIDs(t, s, 32, 5)

	assert.Empty(t, ids)
}

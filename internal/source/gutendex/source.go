package gutendex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"book_harvester/internal/domain"
	"book_harvester/internal/source"
)

const (
	SourceID   = "gutendex"
	SourceName = "Project Gutenberg (Gutendex)"

	defaultBaseURL      = "https://gutendex.com"
	defaultAssetBaseURL = "https://www.gutenberg.org/cache/epub"

	// apiPageSize is the fixed number of results per Gutendex API page.
	apiPageSize = 32
)

// Config holds Gutendex source configuration.
type Config struct {
	BaseURL      string
	AssetBaseURL string
	Timeout      time.Duration
}

// Source fetches Project Gutenberg titles through the Gutendex API.
type Source struct {
	httpClient   *http.Client
	baseURL      string
	assetBaseURL string
	logger       *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AssetBaseURL == "" {
		cfg.AssetBaseURL = defaultAssetBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Source{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		assetBaseURL: strings.TrimRight(cfg.AssetBaseURL, "/"),
		logger:       logger.With("source", SourceID),
	}
}

func (s *Source) SourceID() string {
	return SourceID
}

func (s *Source) Metadata() source.Metadata {
	return source.Metadata{
		DisplayName:      SourceName,
		DefaultRateLimit: 2 * time.Second,
		DefaultBatchSize: 32,
		SupportedFormats: []string{"pdf"},
	}
}

// FetchItems pulls one batch of books. The API serves fixed 32-item pages,
// so cursor pages are mapped to item offsets: cursor page N covers items
// [N*batch, N*batch+batch), sliced out of the enclosing API page. A batch
// never loses items past its cut; the next cursor page picks them up.
func (s *Source) FetchItems(ctx context.Context, opts source.FetchOptions) ([]domain.RawItem, error) {
	batch := opts.BatchSize
	if batch <= 0 || batch > apiPageSize {
		batch = apiPageSize
	}
	// The batch must divide the API page size or offsets drift off the page
	// boundaries whenever a batch comes up short.
	for apiPageSize%batch != 0 {
		batch--
	}
	offset := opts.Page * batch
	apiPage := offset/apiPageSize + 1 // API pages are 1-based
	start := offset % apiPageSize

	params := url.Values{}
	if opts.Language != "" {
		params.Set("languages", opts.Language)
	}
	params.Set("page", strconv.Itoa(apiPage))

	reqURL := fmt.Sprintf("%s/books?%s", s.baseURL, params.Encode())

	resp, err := s.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	books := resp.Results
	if start >= len(books) {
		books = nil
	} else {
		end := start + batch
		if end > len(books) {
			end = len(books)
		}
		books = books[start:end]
	}

	s.logger.Debug("fetched page", "page", opts.Page, "api_page", apiPage, "books", len(books), "count", resp.Count)

	return s.transform(books), nil
}

// ResolveAssetURL builds the Gutenberg cache URL for a book id.
func (s *Source) ResolveAssetURL(ctx context.Context, itemID, preferredFormat string) (string, error) {
	if preferredFormat != "pdf" {
		return "", nil
	}
	return fmt.Sprintf("%s/%s/pg%s.pdf", s.assetBaseURL, itemID, itemID), nil
}

func (s *Source) doRequest(ctx context.Context, reqURL string) (*ListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "BookHarvester/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.TransportError(fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	// Gutendex answers 404 for a page past the end; treat it as empty.
	if resp.StatusCode == http.StatusNotFound {
		return &ListResponse{}, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.RateLimitError(fmt.Errorf("listing rate limited"), 0)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.TransportError(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var listResp ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, domain.TransportError(fmt.Errorf("decode response: %w", err))
	}

	return &listResp, nil
}

func (s *Source) transform(books []Book) []domain.RawItem {
	items := make([]domain.RawItem, 0, len(books))

	for _, b := range books {
		if b.ID == 0 || b.Title == "" {
			s.logger.Warn("skipping malformed book", "id", b.ID)
			continue
		}

		creators := make([]string, 0, len(b.Authors))
		for _, a := range b.Authors {
			creators = append(creators, a.Name)
		}

		item := domain.RawItem{
			SourceID: SourceID,
			ItemID:   strconv.FormatInt(b.ID, 10),
			Title:    b.Title,
			Creators: creators,
			Extra:    map[string]string{},
		}

		if len(b.Languages) > 0 {
			item.Language = b.Languages[0]
		}
		if len(b.Summaries) > 0 {
			item.Description = b.Summaries[0]
		}
		if cover, ok := b.Formats["image/jpeg"]; ok {
			item.Extra["cover_url"] = cover
		}

		items = append(items, item)
	}

	return items
}

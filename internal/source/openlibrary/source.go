package openlibrary

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
	SourceID   = "openlibrary"
	SourceName = "Open Library"

	defaultBaseURL      = "https://openlibrary.org"
	defaultAssetBaseURL = "https://archive.org/download"
)

// Config holds Open Library source configuration.
type Config struct {
	BaseURL      string
	AssetBaseURL string
	Timeout      time.Duration
}

// Source fetches public-domain ebooks via the Open Library search API.
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
		DefaultRateLimit: 1 * time.Second,
		DefaultBatchSize: 20,
		SupportedFormats: []string{"pdf"},
	}
}

// FetchItems pulls one page of publicly readable works. Zero results is a
// normal outcome, not an error.
func (s *Source) FetchItems(ctx context.Context, opts source.FetchOptions) ([]domain.RawItem, error) {
	params := url.Values{}
	params.Set("q", "ebook_access:public")
	if opts.Language != "" {
		params.Set("lang", opts.Language)
	}
	params.Set("limit", strconv.Itoa(opts.BatchSize))
	params.Set("page", strconv.Itoa(opts.Page+1)) // API pages are 1-based
	params.Set("fields", "key,title,author_name,first_publish_year,language,first_sentence,ia,cover_i")

	reqURL := fmt.Sprintf("%s/search.json?%s", s.baseURL, params.Encode())

	resp, err := s.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("fetched page", "page", opts.Page, "docs", len(resp.Docs), "num_found", resp.NumFound)

	return s.transform(resp.Docs), nil
}

// ResolveAssetURL builds the archive download URL for a work. The scheme is
// deterministic so the writer's path pre-check and the dedup check agree.
func (s *Source) ResolveAssetURL(ctx context.Context, itemID, preferredFormat string) (string, error) {
	if preferredFormat != "pdf" {
		return "", nil
	}
	return fmt.Sprintf("%s/%s/%s.pdf", s.assetBaseURL, itemID, itemID), nil
}

func (s *Source) doRequest(ctx context.Context, reqURL string) (*SearchResponse, error) {
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

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp.Header.Get("Retry-After"))
		return nil, domain.RateLimitError(fmt.Errorf("search rate limited"), wait)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.TransportError(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, domain.TransportError(fmt.Errorf("decode response: %w", err))
	}

	return &searchResp, nil
}

func (s *Source) transform(docs []Doc) []domain.RawItem {
	items := make([]domain.RawItem, 0, len(docs))

	for _, d := range docs {
		itemID := strings.TrimPrefix(d.Key, "/works/")
		if itemID == "" || d.Title == "" {
			s.logger.Warn("skipping malformed doc", "key", d.Key)
			continue
		}

		item := domain.RawItem{
			SourceID: SourceID,
			ItemID:   itemID,
			Title:    d.Title,
			Creators: d.AuthorName,
			Extra:    map[string]string{},
		}

		if d.FirstPublishYear != 0 {
			item.RawDate = strconv.Itoa(d.FirstPublishYear)
		}
		if len(d.Language) > 0 {
			item.Language = d.Language[0]
		}
		if len(d.FirstSentence) > 0 {
			item.Description = d.FirstSentence[0]
		}
		if len(d.IA) > 0 {
			item.Extra["ia"] = d.IA[0]
		}
		if d.CoverI != 0 {
			item.Extra["cover_id"] = strconv.FormatInt(d.CoverI, 10)
		}

		items = append(items, item)
	}

	return items
}

func retryAfter(value string) time.Duration {
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

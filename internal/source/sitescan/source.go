package sitescan

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"book_harvester/internal/domain"
	"book_harvester/internal/source"
)

const (
	SourceID   = "sitescan"
	SourceName = "Site PDF Scanner"
)

// Config holds the scanner's configuration. IndexURL is the single page
// whose PDF links are listed; this is not a crawler and never follows links
// to other pages.
type Config struct {
	IndexURL string
	Timeout  time.Duration
}

// Source discovers PDF documents linked from one configured index page.
type Source struct {
	httpClient *http.Client
	indexURL   string
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Source{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		indexURL:   cfg.IndexURL,
		logger:     logger.With("source", SourceID),
	}
}

func (s *Source) SourceID() string {
	return SourceID
}

func (s *Source) Metadata() source.Metadata {
	return source.Metadata{
		DisplayName:      SourceName,
		DefaultRateLimit: 5 * time.Second,
		DefaultBatchSize: 10,
		SupportedFormats: []string{"pdf"},
	}
}

type pdfLink struct {
	itemID string
	title  string
	url    string
}

// FetchItems lists the index page's PDF links and serves the requested
// slice. The whole index is re-read each call, which keeps the fetcher
// stateless across pages.
func (s *Source) FetchItems(ctx context.Context, opts source.FetchOptions) ([]domain.RawItem, error) {
	links, err := s.scanIndex(ctx)
	if err != nil {
		return nil, err
	}

	start := opts.Page * opts.BatchSize
	if start >= len(links) {
		return []domain.RawItem{}, nil
	}
	end := start + opts.BatchSize
	if opts.BatchSize <= 0 || end > len(links) {
		end = len(links)
	}

	items := make([]domain.RawItem, 0, end-start)
	for _, link := range links[start:end] {
		items = append(items, domain.RawItem{
			SourceID: SourceID,
			ItemID:   link.itemID,
			Title:    link.title,
			Extra:    map[string]string{"href": link.url},
		})
	}

	s.logger.Debug("scanned index", "total_links", len(links), "page", opts.Page, "items", len(items))

	return items, nil
}

// ResolveAssetURL re-scans the index for the link matching itemID. Matching
// by id instead of caching keeps resolution valid after a restart.
func (s *Source) ResolveAssetURL(ctx context.Context, itemID, preferredFormat string) (string, error) {
	if preferredFormat != "pdf" {
		return "", nil
	}

	links, err := s.scanIndex(ctx)
	if err != nil {
		return "", err
	}

	for _, link := range links {
		if link.itemID == itemID {
			return link.url, nil
		}
	}

	return "", nil
}

func (s *Source) scanIndex(ctx context.Context) ([]pdfLink, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.indexURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "BookHarvester/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.TransportError(fmt.Errorf("fetch index: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.TransportError(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	base, err := url.Parse(s.indexURL)
	if err != nil {
		return nil, fmt.Errorf("parse index url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, domain.TransportError(fmt.Errorf("parse index html: %w", err))
	}

	seen := make(map[string]bool)
	var links []pdfLink

	doc.Find(`a[href]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)

		itemID := strings.TrimSuffix(path.Base(abs.Path), path.Ext(abs.Path))
		if itemID == "" || itemID == "." || seen[itemID] {
			return
		}
		seen[itemID] = true

		title := strings.TrimSpace(sel.Text())
		if title == "" {
			title = itemID
		}

		links = append(links, pdfLink{itemID: itemID, title: title, url: abs.String()})
	})

	// stable paging across calls
	sort.Slice(links, func(i, j int) bool { return links[i].itemID < links[j].itemID })

	return links, nil
}

package covers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"book_harvester/internal/config"
)

// Query identifies the book to find a cover for.
type Query struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	ISBN   string `json:"isbn,omitempty"`
}

// Result is the cover-search answer; Placeholder marks the service's
// generic fallback image.
type Result struct {
	URL         string `json:"url"`
	Source      string `json:"source"`
	Placeholder bool   `json:"placeholder"`
}

// Client talks to the external cover-search service. Lookups are retried a
// bounded number of times with a short fixed delay; the caller converts an
// exhausted search into a notification rather than blocking ingestion.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

func NewClient(cfg config.CoverSearchConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      logger.With("component", "cover_search"),
	}
}

func (c *Client) Search(ctx context.Context, q Query) (*Result, error) {
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var result *Result
		result, err = c.doSearch(ctx, q)
		if err == nil {
			return result, nil
		}

		if attempt == c.maxAttempts {
			break
		}

		c.logger.Warn("cover search failed, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxAttempts, err)
}

func (c *Client) doSearch(ctx context.Context, q Query) (*Result, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

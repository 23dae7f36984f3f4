package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"book_harvester/internal/config"
)

const maxGenres = 3

// Input is what the classification service sees for one book.
type Input struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Description *string `json:"description,omitempty"`
	Year        *int    `json:"year,omitempty"`
}

// Result is the service's structured answer. Genres is clamped to at most
// three; SubGenre may be nil.
type Result struct {
	Genres   []string `json:"genres"`
	SubGenre *string  `json:"sub_genre,omitempty"`
}

// Client talks to the external AI classification service. Its output is
// best-effort and untrusted; callers treat failure as "no genres".
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewClient(cfg config.ServiceConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger.With("component", "classifier"),
	}
}

func (c *Client) Classify(ctx context.Context, in Input) (*Result, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
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

	if len(result.Genres) > maxGenres {
		result.Genres = result.Genres[:maxGenres]
	}

	return &result, nil
}

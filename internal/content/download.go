package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"book_harvester/internal/domain"
)

var pdfMagic = []byte("%PDF-")

// Asset is a verified download. Body streams the remaining content; the
// caller owns closing it.
type Asset struct {
	Body        io.ReadCloser
	ContentType string
	Length      int64 // -1 when the server did not advertise it
}

// Validator downloads binary assets and verifies them before anything
// downstream is allowed to trust the bytes. Content is streamed, not
// buffered whole.
type Validator struct {
	httpClient *http.Client
	maxBytes   int64
	userAgent  string
}

func NewValidator(timeout time.Duration, maxBytes int64) *Validator {
	return &Validator{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
		userAgent:  "BookHarvester/1.0",
	}
}

// Fetch retrieves url and verifies HTTP status, a non-empty body and, for
// PDF assets, the PDF magic header. Failures come back as categorized
// errors, never as panics or raw transport errors.
func (v *Validator) Fetch(ctx context.Context, url string, format string) (*Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.ContentInvalidError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, domain.TransportError(fmt.Errorf("download asset: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		return nil, domain.RateLimitError(fmt.Errorf("asset download rate limited"), wait)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		resp.Body.Close()
		return nil, domain.TransportError(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, domain.ContentInvalidError(fmt.Errorf("unexpected status: %d", resp.StatusCode))
	}

	limited := io.LimitReader(resp.Body, v.maxBytes)

	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(limited, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		resp.Body.Close()
		return nil, domain.TransportError(fmt.Errorf("read asset: %w", err))
	}
	if n == 0 {
		resp.Body.Close()
		return nil, domain.ContentInvalidError(errors.New("empty body"))
	}

	if format == "pdf" && !bytes.HasPrefix(head[:n], pdfMagic[:min(n, len(pdfMagic))]) {
		resp.Body.Close()
		return nil, domain.ContentInvalidError(errors.New("missing PDF header"))
	}
	if format == "pdf" && n < len(pdfMagic) {
		resp.Body.Close()
		return nil, domain.ContentInvalidError(errors.New("truncated PDF header"))
	}

	return &Asset{
		Body:        &replayReader{head: head[:n], rest: limited, closer: resp.Body},
		ContentType: resp.Header.Get("Content-Type"),
		Length:      resp.ContentLength,
	}, nil
}

// replayReader stitches the verified header bytes back in front of the
// remaining stream.
type replayReader struct {
	head   []byte
	rest   io.Reader
	closer io.Closer
}

func (r *replayReader) Read(p []byte) (int, error) {
	if len(r.head) > 0 {
		n := copy(p, r.head)
		r.head = r.head[n:]
		return n, nil
	}
	return r.rest.Read(p)
}

func (r *replayReader) Close() error {
	return r.closer.Close()
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

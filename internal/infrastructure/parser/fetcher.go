package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	acceptHeader     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	acceptLanguage   = "en-US,en;q=0.5"

	defaultFetchTimeout = 30 * time.Second
	maxPageBytes        = 10 << 20
)

// Fetcher downloads pages the way a desktop browser would ask for them.
type Fetcher struct {
	client   *http.Client
	logger   *slog.Logger
	maxBytes int64
}

// NewFetcher wires an HTTP client; nil gets a client with a 30s timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &Fetcher{
		client:   client,
		logger:   slog.New(slog.DiscardHandler),
		maxBytes: maxPageBytes,
	}
}

// WithLogger sets the logger used for transport diagnostics.
func (f *Fetcher) WithLogger(log *slog.Logger) *Fetcher {
	if log != nil {
		f.logger = log
	}
	return f
}

// Fetch returns the raw body of pageURL. Any status other than 200 is an error.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		f.logger.Debug("page truncated", "url", pageURL, "limit_bytes", f.maxBytes)
		body = body[:f.maxBytes]
	}
	return body, nil
}

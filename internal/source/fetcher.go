package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"examnotify/internal/feed"
	logx "examnotify/pkg/logx"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 4 << 20
)

var errBodyTooLarge = errors.New("response body too large")

// FetcherConfig configures page retrieval.
type FetcherConfig struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

// Fetcher performs the HTTP GET for a listing page.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	log       logx.Logger
}

// NewFetcher makes a Fetcher. client may be nil.
func NewFetcher(cfg FetcherConfig, client *http.Client, log logx.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if client == nil {
		client = &http.Client{}
	}
	// copy so the timeout never leaks into a shared client
	c := *client
	c.Timeout = cfg.Timeout
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{client: &c, userAgent: cfg.UserAgent, maxBody: cfg.MaxBodyBytes, log: log}
}

// Fetch returns the raw page body. Every failure is a *feed.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, kind feed.Kind, rawURL string) ([]byte, error) {
	fail := func(status int, err error) error {
		return &feed.FetchError{Kind: kind, URL: rawURL, Status: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fail(0, fmt.Errorf("create request: %w", err))
	}
	addBrowserHeaders(req, f.userAgent)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fail(0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fail(resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > f.maxBody {
		return nil, fail(resp.StatusCode, fmt.Errorf("%w: limit %d bytes", errBodyTooLarge, f.maxBody))
	}

	f.log.Debug("page fetched",
		logx.String("kind", kind.String()),
		logx.Int("bytes", len(body)),
		logx.Duration("took", time.Since(start)),
	)
	return body, nil
}

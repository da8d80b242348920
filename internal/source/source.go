package source

import (
	"context"
	"fmt"
	"net/url"

	"examnotify/internal/feed"
	logx "examnotify/pkg/logx"
)

// Source reads the current candidate items of a feed.
type Source struct {
	fetcher *Fetcher
	urls    map[feed.Kind]string
	log     logx.Logger
}

// New binds a fetcher to the per-feed listing URLs.
func New(f *Fetcher, urls map[feed.Kind]string, log logx.Logger) *Source {
	if log.IsZero() {
		log = logx.Nop()
	}
	cp := make(map[feed.Kind]string, len(urls))
	for k, v := range urls {
		cp[k] = v
	}
	return &Source{fetcher: f, urls: cp, log: log}
}

// Read fetches and extracts the feed. Errors are *feed.FetchError or *feed.ParseError.
func (s *Source) Read(ctx context.Context, kind feed.Kind) ([]feed.Item, error) {
	rawURL, ok := s.urls[kind]
	if !ok || rawURL == "" {
		return nil, &feed.FetchError{Kind: kind, Err: fmt.Errorf("no url configured")}
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, &feed.FetchError{Kind: kind, URL: rawURL, Err: fmt.Errorf("parse url: %w", err)}
	}
	body, err := s.fetcher.Fetch(ctx, kind, rawURL)
	if err != nil {
		return nil, err
	}
	items, err := Extract(body, kind, base)
	if err != nil {
		return nil, err
	}
	s.log.Debug("items extracted", logx.String("kind", kind.String()), logx.Int("count", len(items)))
	return items, nil
}

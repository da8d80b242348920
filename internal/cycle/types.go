package cycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"examnotify/internal/feed"
)

// ColdStartPolicy decides what a feed with an empty snapshot announces.
type ColdStartPolicy string

const (
	// ColdStartLatest announces only the first (most recent) item.
	ColdStartLatest ColdStartPolicy = "latest"
	// ColdStartAll announces everything on the page.
	ColdStartAll ColdStartPolicy = "all"
	// ColdStartNone arms the snapshot without announcing anything.
	ColdStartNone ColdStartPolicy = "none"
)

// ParseColdStart maps a config value to a policy. Empty means latest.
func ParseColdStart(s string) (ColdStartPolicy, error) {
	switch p := ColdStartPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ColdStartLatest, nil
	case ColdStartLatest, ColdStartAll, ColdStartNone:
		return p, nil
	default:
		return "", fmt.Errorf("unknown cold start policy %q (want latest, all or none)", s)
	}
}

// pick returns the items to announce out of newItems.
func (p ColdStartPolicy) pick(newItems []feed.Item) []feed.Item {
	switch p {
	case ColdStartAll:
		return newItems
	case ColdStartNone:
		return nil
	default:
		if len(newItems) == 0 {
			return nil
		}
		return newItems[:1]
	}
}

type Config struct {
	ColdStart ColdStartPolicy
}

// Reader yields the current candidate items of a feed.
type Reader interface {
	Read(ctx context.Context, kind feed.Kind) ([]feed.Item, error)
}

// Deliverer announces a single item.
type Deliverer interface {
	Deliver(ctx context.Context, item feed.Item) error
}

// FeedReport is the outcome of one feed pass.
type FeedReport struct {
	Kind       feed.Kind     `json:"kind"`
	Candidates int           `json:"candidates"`
	New        int           `json:"new"`
	Selected   int           `json:"selected"`
	Delivered  int           `json:"delivered"`
	Failed     int           `json:"failed"`
	ColdStart  bool          `json:"cold_start"`
	Committed  bool          `json:"committed"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Report is the outcome of one cycle.
type Report struct {
	Seq      uint64       `json:"seq"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Canceled bool         `json:"canceled,omitempty"`
	Feeds    []FeedReport `json:"feeds"`
}

func (r Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

func (r Report) Delivered() (n int) {
	for _, f := range r.Feeds {
		n += f.Delivered
	}
	return n
}

func (r Report) Failed() (n int) {
	for _, f := range r.Feeds {
		n += f.Failed
	}
	return n
}

// Feed returns the report for kind.
func (r Report) Feed(kind feed.Kind) (FeedReport, bool) {
	for _, f := range r.Feeds {
		if f.Kind == kind {
			return f, true
		}
	}
	return FeedReport{}, false
}

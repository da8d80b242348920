package feed

import (
	"errors"
	"fmt"
)

// ErrNoHeading is reported when a listing has content rows but no
// publish-date heading to group them under.
var ErrNoHeading = errors.New("no publish date heading")

// ErrInterrupted means a delivery was abandoned before anything was sent,
// because the run was canceled or its deadline left no room for the next
// send slot. The item stays unannounced.
var ErrInterrupted = errors.New("delivery interrupted")

// FetchError means the raw page could not be retrieved. The cycle treats it
// as "no items this cycle", never as "zero items confirmed".
type FetchError struct {
	Kind   Kind
	URL    string
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means the page was fetched but its markup was not understood.
type ParseError struct {
	Kind Kind
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Kind, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// DeliveryError is a failed send of a single item.
type DeliveryError struct {
	Item Item
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s %q: %v", e.Item.Kind, e.Item.Short(48), e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// StartupConnectivityError is fatal: the delivery channel could not be
// reached before scheduling began.
type StartupConnectivityError struct {
	Attempts int
	Err      error
}

func (e *StartupConnectivityError) Error() string {
	return fmt.Sprintf("telegram unreachable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *StartupConnectivityError) Unwrap() error { return e.Err }

// IsCycleSkip reports whether err only aborts the current feed pass.
func IsCycleSkip(err error) bool {
	var fe *FetchError
	var pe *ParseError
	return errors.As(err, &fe) || errors.As(err, &pe)
}

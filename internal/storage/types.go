package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryRecord is one attempted announcement.
type DeliveryRecord struct {
	At             time.Time `json:"at"`
	Kind           string    `json:"kind"`
	PublishDate    string    `json:"publish_date"`
	Content        string    `json:"content"`
	AttachmentLink string    `json:"attachment_link,omitempty"`
	Channel        string    `json:"channel"`
	MessageID      int       `json:"message_id,omitempty"`
	OK             bool      `json:"ok"`
	Error          string    `json:"error,omitempty"`
	TookMS         int64     `json:"took_ms"`
}

// CycleRecord summarizes one polling cycle.
type CycleRecord struct {
	Seq       uint64    `json:"seq"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Canceled  bool      `json:"canceled,omitempty"`
	Delivered int       `json:"delivered"`
	Failed    int       `json:"failed"`
	// FeedErrors maps feed kind to the error that skipped it.
	FeedErrors map[string]string `json:"feed_errors,omitempty"`
}

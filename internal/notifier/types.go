package notifier

import (
	"time"

	"examnotify/internal/feed"
)

// Config controls delivery pacing.
type Config struct {
	// Delay is the minimum spacing between two sends. 0 disables spacing.
	Delay       time.Duration
	HistorySize int
}

type HistoryItem struct {
	At          time.Time `json:"at"`
	Kind        feed.Kind `json:"kind"`
	Content     string    `json:"content"`
	PublishDate string    `json:"publish_date"`
	MessageID   int       `json:"message_id,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// DeliveryEvent is the payload of delivery.sent and delivery.failed.
type DeliveryEvent struct {
	Item      feed.Item     `json:"item"`
	Channel   string        `json:"channel"`
	MessageID int           `json:"message_id,omitempty"`
	Took      time.Duration `json:"took"`
	At        time.Time     `json:"at"`
	Error     string        `json:"error,omitempty"`
}

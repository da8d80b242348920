// Package feed holds the item model shared by every stage of a polling cycle
// and the error taxonomy those stages report.
package feed

import "strings"

// Kind identifies one of the monitored listings.
type Kind string

const (
	KindNotifications Kind = "notifications"
	KindResults       Kind = "results"
)

// Kinds returns the feeds in the order a cycle processes them.
func Kinds() []Kind { return []Kind{KindNotifications, KindResults} }

func (k Kind) Valid() bool {
	switch k {
	case KindNotifications, KindResults:
		return true
	default:
		return false
	}
}

// Title is the headline used when announcing an item of this kind.
func (k Kind) Title() string {
	switch k {
	case KindResults:
		return "NEW EXAM RESULT"
	default:
		return "NEW EXAM NOTIFICATION"
	}
}

func (k Kind) String() string { return string(k) }

// Item is one published entry scraped from a listing.
type Item struct {
	Content        string `json:"content"`
	PublishDate    string `json:"publish_date"`
	AttachmentLink string `json:"attachment_link,omitempty"`
	Kind           Kind   `json:"kind"`
}

// Identity is the (content, publish date) pair two items are compared by.
// AttachmentLink and Kind never take part in it.
type Identity struct {
	Content     string
	PublishDate string
}

func (it Item) Identity() Identity {
	return Identity{Content: it.Content, PublishDate: it.PublishDate}
}

// HasAttachment reports whether the item carries a document link.
func (it Item) HasAttachment() bool { return strings.TrimSpace(it.AttachmentLink) != "" }

// Short returns a log-friendly prefix of the item text.
func (it Item) Short(n int) string {
	s := it.Content
	if n <= 0 || len(s) <= n {
		return s
	}
	if n < 4 {
		return s[:runeCut(s, n)]
	}
	return s[:runeCut(s, n-3)] + "..."
}

// runeCut backs off from byte offset cut to the nearest rune start.
func runeCut(s string, cut int) int {
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return cut
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

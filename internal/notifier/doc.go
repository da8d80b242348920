// Package notifier announces new feed items on the Telegram channel.
//
// Deliveries are synchronous and strictly spaced: every send first waits on
// a single-token rate limiter, so consecutive messages are at least the
// configured delay apart no matter how many items a cycle finds.
//
// # History
//
// The service keeps a small in-memory ring of recent delivery results for
// the status endpoint, and publishes delivery.sent / delivery.failed on the
// event bus for the audit store.
package notifier

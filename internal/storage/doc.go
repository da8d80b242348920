// Package storage keeps an append-only audit trail of deliveries and cycles.
//
// The trail is informational. Dedup state never lives here, so a lost or
// corrupt store cannot cause a duplicate or a missed announcement.
//
// Drivers:
//   - "file": JSON Lines next to the configured path
//   - "sqlite": SQLite via sqlx and the pure-Go modernc driver
package storage

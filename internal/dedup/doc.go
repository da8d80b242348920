// Package dedup decides which scraped items are new for a feed.
//
// The Engine holds one Snapshot per feed: the set of items the page showed at
// the end of the last committed cycle. Reconcile compares a fresh read
// against it without changing anything; Commit replaces it. Snapshots are
// never merged, so memory is bounded by one page revision.
package dedup

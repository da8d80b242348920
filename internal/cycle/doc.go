// Package cycle runs one polling pass over every feed:
// fetch, extract, reconcile against the last snapshot, deliver what is new,
// then commit the snapshot.
//
// The commit happens only after delivery was attempted for every selected
// item, failed sends included. A fetch or parse failure leaves the feed's
// snapshot untouched; cancellation mid-delivery skips the commit.
package cycle

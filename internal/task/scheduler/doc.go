// Package scheduler registers named jobs on cron or interval schedules and
// triggers them with a skip-if-running overlap policy.
//
// A trigger that fires while the same job is still in flight is dropped and
// counted, never queued. RunNow goes through the same gate.
package scheduler

// Package reminder drives the evaluation loop: on every cron tick it
// decides which entities are due, filters out the ones already notified
// today via the delivery ledger, dispatches the rest, and prunes stale
// ledger rows.
//
// At most one evaluation runs at a time; a tick arriving while a cycle
// is in flight is dropped.
package reminder

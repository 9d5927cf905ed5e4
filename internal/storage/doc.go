// Package storage persists the tracked entities, the settings singleton
// and the delivery ledger.
//
// Drivers:
//   - "sqlite": SQLite database file (the normal choice)
//   - "memory": process-local store for tests and ephemeral runs
//
// The delivery ledger's uniqueness constraint on (entity, date key) is
// load-bearing: RecordDelivered is first-writer-wins, repeated inserts
// for the same pair never create a second row.
package storage

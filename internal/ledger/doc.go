// Package ledger persists episode processing state in SQLite. The ledger is
// the source of truth for deduplication: an episode URL appears at most once,
// and its status only moves forward through the pipeline stages unless an
// operator explicitly reopens it.
package ledger

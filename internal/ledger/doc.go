// Package ledger persists batch conversion runs and per-subject outcomes in
// SQLite.
//
// The Store manages database connections, schema initialization, and the
// status transitions a subject moves through while the batch loop works:
// pending, converting, then one of completed, failed, review, or skipped.
// Each invocation of the converter opens a new run row; subject rows hang off
// the run so `megbids report` can render the latest batch without re-reading
// any source data.
//
// The database records outcomes rather than scheduling work: the batch loop is
// single-pass and sequential, so rows are written as processing happens and
// are never consumed as a work queue. Schema changes bump the version in
// store.go; users clear the database to adopt the new schema.
package ledger

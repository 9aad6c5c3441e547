// Package mediastore persists recognized titles, their cached artifacts, the
// subtitle corpus used for dialogue lookup, and the recognition audit trail
// in a local SQLite database.
package mediastore

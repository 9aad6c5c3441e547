// Package logging assembles the structured slog loggers used across sceneid.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so cascade code automatically tags log
// lines with request identifiers and state names. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging

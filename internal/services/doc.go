// Package services provides shared error classification and context plumbing
// for the recognition capability clients.
//
// Stage code wraps collaborator failures with the exported sentinel errors so
// the cascade controller and API layer can decide between retryable and
// terminal outcomes without string matching.
package services

// Package daemon wires configuration, the media store, the extraction
// capability clients, and the recognition cascade into a long-running
// single-instance process, and serves the HTTP control interface.
package daemon

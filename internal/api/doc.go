// Package api defines the transport types exchanged over the daemon's HTTP
// interface and the converters from internal domain types.
package api

// Package ratelimit provides per-capability sliding-window admission for
// outbound calls to upstream AI and metadata services.
package ratelimit

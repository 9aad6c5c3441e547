// Package metadata wraps the TMDB-compatible catalog used to confirm
// candidate identities and to fetch cached artifacts (cast, similar titles,
// streaming availability).
package metadata

// Package transcriber wraps the speech-to-text capability service, which
// also hosts the dialogue embedding index used for semantic matches.
// Failures degrade the signal set and are never fatal to a request.
package transcriber

// Package llm provides an OpenRouter-compatible chat client used for
// generative title guesses.
//
// The client sends the scene evidence bundle to a configured model with a
// structured prompt requesting JSON output. The response carries the guessed
// title, year, confidence score (0-1), and reasoning.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.GuessTitle: identify a title from an evidence bundle.
// Client.SecondOpinion: re-examine evidence against a prior candidate.
// Client.CompleteJSON: send system/user prompts, receive JSON response.
// Client.HealthCheck: verify API key and model availability.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors and network timeouts with
// exponential backoff (base 1s, max 10s, up to 5 attempts by default).
// Context cancellation aborts retries immediately.
//
// # Fallback
//
// If the model is unavailable or returns an error, callers should treat the
// guess as absent rather than fail the recognition request.
package llm

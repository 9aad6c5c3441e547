package cascade

import (
	"time"

	"sceneid/internal/evidence"
	"sceneid/internal/mediastore"
)

// State labels a phase of the recognition state machine.
type State string

const (
	StateInit         State = "INIT"
	StateFastLookup   State = "FAST_LOOKUP"
	StateDeepAnalysis State = "DEEP_ANALYSIS"
	StateActorCheck   State = "ACTOR_CHECK"
	StateResolve      State = "RESOLVE"
	StateReconcile    State = "RECONCILE"
	StateAccept       State = "ACCEPT"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// Observer is invoked at every state transition. Called synchronously; keep
// implementations fast.
type Observer func(requestID string, state State, detail string)

// Request is one recognition job as admitted at the boundary.
type Request struct {
	ID          string
	MediaRef    string
	RequesterID string
	Priority    int
	// SceneContext is optional free-text context supplied by the requester,
	// consulted by the actor correction rules.
	SceneContext string
	SubmittedAt  time.Time
}

// Outcome classifies how a request terminated.
type Outcome string

const (
	OutcomeAccepted        Outcome = "accepted"
	OutcomeActorFallback   Outcome = "actor_fallback"
	OutcomeGenerativeGuess Outcome = "generative_guess"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeFailed          Outcome = "failed"
)

// Alternate is a losing candidate reported alongside a failure or a
// low-confidence result.
type Alternate struct {
	Title      string  `json:"title"`
	Year       int     `json:"year,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Result is the terminal outcome of one recognition request.
type Result struct {
	RequestID         string
	Outcome           Outcome
	Record            *mediastore.MediaRecord
	Title             string
	Year              int
	MediaType         string
	Confidence        float64
	ContributingKinds []evidence.Kind
	Explanation       string
	LowConfidence     bool
	Alternates        []Alternate
	// DiagnosticID is set on unexpected failures so operators can correlate
	// the generic caller-facing error with logs.
	DiagnosticID string
	Elapsed      time.Duration
}

// Identified reports whether the request ended with a usable identity.
func (r Result) Identified() bool {
	switch r.Outcome {
	case OutcomeAccepted, OutcomeActorFallback, OutcomeGenerativeGuess:
		return true
	}
	return false
}

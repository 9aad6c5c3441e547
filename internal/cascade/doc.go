// Package cascade drives a recognition request through a confidence-gated
// state machine: a cheap fast lookup, an optional deep multi-signal pass,
// advisory actor verification, candidate resolution, and a reconcile pass
// for low-confidence leaders. Collaborator failures degrade the signal set
// and never abort the request.
package cascade

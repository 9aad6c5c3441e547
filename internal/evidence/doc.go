// Package evidence turns a bag of weak, independently gathered recognition
// signals into ranked, confidence-scored title candidates.
//
// Confidence is relative within one request: each candidate's weighted score
// divided by the sum over all candidates, so confidences always sum to 1 for
// a non-empty signal set.
package evidence

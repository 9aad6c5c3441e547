package evidence

import (
	"sort"

	"sceneid/internal/config"
)

// Weights maps each signal kind to its score multiplier.
type Weights map[Kind]float64

// WeightsFromConfig builds the kind-weight table from recognition policy.
func WeightsFromConfig(cfg config.Recognition) Weights {
	return Weights{
		KindDialogueText:  cfg.WeightDialogueText,
		KindDialogueEmbed: cfg.WeightDialogueEmbed,
		KindVisual:        cfg.WeightVisual,
		KindOnScreenText:  cfg.WeightOnScreenText,
		KindActorIdentity: cfg.WeightActorIdentity,
	}
}

// KnownFunc reports whether a candidate already exists in the local store.
// Used only as the final tie-breaker, so aggregation stays deterministic.
type KnownFunc func(title string, year int, tmdbID int64) bool

// Aggregate groups signals by candidate identity, sums kind-weighted
// strengths, and normalizes scores into confidences that sum to 1.
//
// The result is deterministic for a given signal set regardless of arrival
// order: grouping and summation are associative, and ordering falls back to
// raw score, store residency, then candidate key. Zero signals yield an empty
// slice; the caller decides how to degrade.
func Aggregate(signals []Signal, weights Weights, known KnownFunc) []Candidate {
	if len(signals) == 0 {
		return nil
	}

	grouped := make(map[string]*Candidate)
	for _, signal := range signals {
		if signal.Strength <= 0 {
			continue
		}
		weight, ok := weights[signal.Kind]
		if !ok {
			weight = 1.0
		}
		key := signal.CandidateKey()
		candidate, exists := grouped[key]
		if !exists {
			candidate = &Candidate{
				Key:    key,
				Title:  signal.Title,
				Year:   signal.Year,
				TMDBID: signal.TMDBID,
			}
			grouped[key] = candidate
		}
		candidate.Score += weight * signal.Strength
		if !candidate.HasKind(signal.Kind) {
			candidate.Kinds = append(candidate.Kinds, signal.Kind)
		}
		// Prefer the richest identity seen for the group.
		if candidate.TMDBID == 0 && signal.TMDBID > 0 {
			candidate.TMDBID = signal.TMDBID
		}
		if candidate.Year == 0 && signal.Year > 0 {
			candidate.Year = signal.Year
		}
	}

	candidates := make([]Candidate, 0, len(grouped))
	var total float64
	for _, candidate := range grouped {
		if candidate.Score <= 0 {
			continue
		}
		total += candidate.Score
		candidates = append(candidates, *candidate)
	}
	if len(candidates) == 0 || total <= 0 {
		return nil
	}
	for i := range candidates {
		candidates[i].Confidence = candidates[i].Score / total
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if known != nil {
			aKnown := known(a.Title, a.Year, a.TMDBID)
			bKnown := known(b.Title, b.Year, b.TMDBID)
			if aKnown != bKnown {
				return aKnown
			}
		}
		return a.Key < b.Key
	})
	return candidates
}

// Leader returns the top-ranked candidate, or false when none exist.
func Leader(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	return candidates[0], true
}

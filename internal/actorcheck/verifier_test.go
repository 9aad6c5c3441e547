package actorcheck

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCastSource struct {
	cast  []string
	err   error
	calls int
}

func (f *fakeCastSource) CastNames(ctx context.Context, mediaType string, titleID int64) ([]string, error) {
	f.calls++
	return f.cast, f.err
}

func TestVerifyEmptyClaimsPassesWithoutFetch(t *testing.T) {
	source := &fakeCastSource{cast: []string{"Keanu Reeves"}}
	verifier := New(source, nil, nil, time.Hour, nil)

	result, err := verifier.Verify(context.Background(), 603, "movie", nil, "")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Verified {
		t.Fatal("empty claims should pass vacuously")
	}
	if source.calls != 0 {
		t.Fatalf("expected no cast fetch, got %d calls", source.calls)
	}
}

func TestVerifyFuzzyNameOverlap(t *testing.T) {
	source := &fakeCastSource{cast: []string{"Keanu Reeves", "Carrie-Anne Moss", "Laurence Fishburne"}}
	verifier := New(source, nil, nil, time.Hour, nil)

	result, err := verifier.Verify(context.Background(), 603, "movie",
		[]string{"keanu reeves", "Hugo Weaving"}, "")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Verified {
		t.Fatal("expected verification with one matched claim")
	}
	if len(result.Matched) != 1 || len(result.Missing) != 1 {
		t.Fatalf("unexpected split: matched=%v missing=%v", result.Matched, result.Missing)
	}
}

func TestVerifyMismatchAppliesFirstMatchingRule(t *testing.T) {
	source := &fakeCastSource{cast: []string{"Tom Hanks"}}
	verifier := New(source, nil, nil, time.Hour, nil)

	result, err := verifier.Verify(context.Background(), 13, "movie",
		[]string{"Keanu Reeves", "Carrie-Anne Moss"}, "two agents in sunglasses chase a man")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Verified {
		t.Fatal("expected mismatch")
	}
	if result.Correction == nil || result.Correction.TMDBID != 603 {
		t.Fatalf("expected correction to The Matrix, got %+v", result.Correction)
	}
}

func TestVerifyMismatchSingleClaimSkipsRules(t *testing.T) {
	source := &fakeCastSource{cast: []string{"Tom Hanks"}}
	verifier := New(source, nil, nil, time.Hour, nil)

	result, err := verifier.Verify(context.Background(), 13, "movie",
		[]string{"Keanu Reeves"}, "agents and sunglasses")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Correction != nil {
		t.Fatal("single claim should never trigger a correction")
	}
}

func TestVerifyRuleWithoutKeywordsMatchesAnyContext(t *testing.T) {
	source := &fakeCastSource{cast: []string{"Somebody Else"}}
	verifier := New(source, nil, nil, time.Hour, nil)

	result, err := verifier.Verify(context.Background(), 1, "tv",
		[]string{"Bryan Cranston", "Aaron Paul"}, "")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if result.Correction == nil || result.Correction.TMDBID != 1396 {
		t.Fatalf("expected Breaking Bad correction, got %+v", result.Correction)
	}
}

func TestVerifyPropagatesFetchError(t *testing.T) {
	source := &fakeCastSource{err: errors.New("catalog down")}
	verifier := New(source, nil, nil, time.Hour, nil)

	if _, err := verifier.Verify(context.Background(), 603, "movie", []string{"Keanu Reeves"}, ""); err == nil {
		t.Fatal("expected fetch error to surface")
	}
}

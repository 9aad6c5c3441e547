package actorcheck

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"sceneid/internal/logging"
	"sceneid/internal/mediastore"
	"sceneid/internal/textutil"
)

// CastSource fetches the credited cast for a title from the catalog.
type CastSource interface {
	CastNames(ctx context.Context, mediaType string, titleID int64) ([]string, error)
}

// Verification is the advisory outcome of checking claimed performers
// against a candidate's credited cast.
type Verification struct {
	Verified   bool
	Matched    []string
	Missing    []string
	Correction *Candidate
}

// Candidate names a corrected identity proposed by the rule table.
type Candidate struct {
	Title  string
	Year   int
	TMDBID int64
}

// Rule overrides a mismatched candidate when the claimed performers and
// request context point at a specific well-known title. First match wins.
type Rule struct {
	ActorPatterns   []string
	ContextKeywords []string
	Candidate       Candidate
}

// Verifier checks claimed actor identities against cached or fetched cast
// lists. All outcomes are advisory; a mismatch never hard-fails a request.
type Verifier struct {
	catalog CastSource
	store   *mediastore.Store
	rules   []Rule
	castTTL time.Duration
	logger  *slog.Logger
}

// New constructs a Verifier. The store is optional; without it every check
// fetches from the catalog and nothing is cached.
func New(catalog CastSource, store *mediastore.Store, rules []Rule, castTTL time.Duration, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	if rules == nil {
		rules = DefaultRules()
	}
	if castTTL <= 0 {
		castTTL = 7 * 24 * time.Hour
	}
	return &Verifier{
		catalog: catalog,
		store:   store,
		rules:   rules,
		castTTL: castTTL,
		logger:  logging.NewComponentLogger(logger, "actorcheck"),
	}
}

// Verify compares claimed performer names against the candidate's credited
// cast. Empty claims pass vacuously without any fetch. With two or more
// claims and no overlap, the correction rule table is consulted.
func (v *Verifier) Verify(ctx context.Context, tmdbID int64, mediaType string, claimed []string, sceneContext string) (Verification, error) {
	claimed = cleanNames(claimed)
	if len(claimed) == 0 {
		return Verification{Verified: true}, nil
	}

	cast, err := v.castFor(ctx, tmdbID, mediaType)
	if err != nil {
		return Verification{}, err
	}

	var matched, missing []string
	for _, claim := range claimed {
		if matchesAny(claim, cast) {
			matched = append(matched, claim)
		} else {
			missing = append(missing, claim)
		}
	}

	result := Verification{
		Verified: len(matched) > 0,
		Matched:  matched,
		Missing:  missing,
	}
	if !result.Verified && len(claimed) >= 2 {
		if correction := v.applyRules(claimed, sceneContext); correction != nil {
			result.Correction = correction
			v.logger.Info("actor mismatch corrected",
				logging.String("corrected_title", correction.Title),
				logging.Int("claims", len(claimed)))
		}
	}
	return result, nil
}

func (v *Verifier) castFor(ctx context.Context, tmdbID int64, mediaType string) ([]string, error) {
	if v.store != nil && tmdbID > 0 {
		record, err := v.store.GetByTMDBID(ctx, tmdbID)
		if err == nil && record != nil && record.CastFresh(v.castTTL) {
			return record.Cast(), nil
		}
		cast, fetchErr := v.catalog.CastNames(ctx, mediaType, tmdbID)
		if fetchErr != nil {
			// A stale cached list still beats no list.
			if record != nil && len(record.Cast()) > 0 {
				return record.Cast(), nil
			}
			return nil, fetchErr
		}
		if record != nil {
			if updateErr := v.store.UpdateCast(ctx, record.ID, cast); updateErr != nil {
				v.logger.Warn("cast cache update failed", logging.Error(updateErr))
			}
		}
		return cast, nil
	}
	return v.catalog.CastNames(ctx, mediaType, tmdbID)
}

func (v *Verifier) applyRules(claimed []string, requestContext string) *Candidate {
	lowerContext := strings.ToLower(requestContext)
	for _, rule := range v.rules {
		if !ruleActorsMatch(rule.ActorPatterns, claimed) {
			continue
		}
		if len(rule.ContextKeywords) > 0 && !textutil.ContainsKeyword(lowerContext, rule.ContextKeywords) {
			continue
		}
		candidate := rule.Candidate
		return &candidate
	}
	return nil
}

func ruleActorsMatch(patterns, claimed []string) bool {
	for _, pattern := range patterns {
		if !matchesAny(pattern, claimed) {
			return false
		}
	}
	return len(patterns) > 0
}

func matchesAny(name string, names []string) bool {
	for _, other := range names {
		if textutil.NamesMatch(name, other) {
			return true
		}
	}
	return false
}

func cleanNames(names []string) []string {
	var cleaned []string
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

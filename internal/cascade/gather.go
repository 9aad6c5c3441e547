package cascade

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sceneid/internal/evidence"
	"sceneid/internal/logging"
	"sceneid/internal/mediastore"
	"sceneid/internal/metadata"
	"sceneid/internal/ratelimit"
	"sceneid/internal/services/llm"
	"sceneid/internal/services/transcriber"
	"sceneid/internal/services/vision"
	"sceneid/internal/textutil"
)

const (
	exactDialogueStrength   = 1.0
	partialDialogueStrength = 0.6
	onScreenTitleStrength   = 1.0
	filmographyTopResults   = 3
	filmographyRankDecay    = 0.2
	maxFilmographyPersons   = 3
)

// deepResult carries everything the deep-analysis phase extracted, beyond
// the signals themselves, for later phases (actor check, LLM bundles).
type deepResult struct {
	signals  []evidence.Signal
	scene    vision.SceneDescription
	onscreen vision.OnScreenText
	actors   vision.ActorIdentification
}

// fastLookup is the cheap first pass: transcribe once and probe the local
// dialogue corpus. No vision, no catalog, no model calls.
func (c *Controller) fastLookup(ctx context.Context, req Request) (transcriber.Transcript, []evidence.Signal) {
	transcript := c.transcribe(ctx, req)
	if transcript.Empty() {
		return transcript, nil
	}
	return transcript, c.dialogueSignals(ctx, transcript)
}

func (c *Controller) transcribe(ctx context.Context, req Request) transcriber.Transcript {
	if c.deps.Speech == nil || !c.deps.Speech.Available() {
		return transcriber.Transcript{}
	}
	if err := c.acquireLimit(ctx, ratelimit.CapTranscription); err != nil {
		c.logger.Warn("transcription rate window unavailable",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
		return transcriber.Transcript{}
	}
	callCtx, cancel := c.capabilityContext(ctx)
	defer cancel()
	transcript, err := c.deps.Speech.Transcribe(callCtx, req.MediaRef)
	if err != nil {
		c.logger.Warn("transcription failed",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
		return transcriber.Transcript{}
	}
	return transcript
}

func (c *Controller) dialogueSignals(ctx context.Context, transcript transcriber.Transcript) []evidence.Signal {
	if c.deps.Store == nil {
		return nil
	}
	lines := transcript.Lines
	if len(lines) == 0 {
		lines = []string{transcript.Text}
	}
	limit := c.cfg.DialogueSearchResultLimit
	if limit <= 0 {
		limit = 5
	}

	var signals []evidence.Signal
	for _, line := range lines {
		matches, err := c.deps.Store.SearchDialogue(ctx, line, limit)
		if err != nil {
			c.logger.Warn("dialogue search failed", logging.Error(err))
			continue
		}
		for _, match := range matches {
			strength := partialDialogueStrength
			if match.Exact {
				strength = exactDialogueStrength
			}
			signals = append(signals, evidence.Signal{
				Kind:     evidence.KindDialogueText,
				Title:    match.Title,
				Year:     match.Year,
				TMDBID:   match.TMDBID,
				Strength: strength,
				Payload:  match.Line,
			})
		}
	}
	return signals
}

// deepAnalysis fans out to every remaining capability concurrently. Each
// branch tolerates failure by contributing zero signals; aggregation is
// order-independent, so completion order never changes the outcome.
func (c *Controller) deepAnalysis(ctx context.Context, req Request, transcript transcriber.Transcript) deepResult {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result deepResult
	)
	addSignals := func(signals []evidence.Signal) {
		if len(signals) == 0 {
			return
		}
		mu.Lock()
		result.signals = append(result.signals, signals...)
		mu.Unlock()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		addSignals(c.embeddingSignals(ctx, req, transcript))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scene, signals := c.visualSignals(ctx, req)
		mu.Lock()
		result.scene = scene
		mu.Unlock()
		addSignals(signals)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		onscreen, signals := c.onScreenSignals(ctx, req)
		mu.Lock()
		result.onscreen = onscreen
		mu.Unlock()
		addSignals(signals)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		actors, signals := c.actorSignals(ctx, req)
		mu.Lock()
		result.actors = actors
		mu.Unlock()
		addSignals(signals)
	}()

	wg.Wait()
	return result
}

func (c *Controller) embeddingSignals(ctx context.Context, req Request, transcript transcriber.Transcript) []evidence.Signal {
	if c.deps.Speech == nil || !c.deps.Speech.Available() || transcript.Empty() {
		return nil
	}
	if err := c.acquireLimit(ctx, ratelimit.CapTranscription); err != nil {
		return nil
	}
	callCtx, cancel := c.capabilityContext(ctx)
	defer cancel()
	matches, err := c.deps.Speech.SemanticMatches(callCtx, transcript.Text, c.cfg.DialogueSearchResultLimit)
	if err != nil {
		c.logger.Warn("semantic match failed",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
		return nil
	}
	signals := make([]evidence.Signal, 0, len(matches))
	for _, match := range matches {
		signals = append(signals, evidence.Signal{
			Kind:     evidence.KindDialogueEmbed,
			Title:    match.Title,
			Year:     match.Year,
			TMDBID:   match.TMDBID,
			Strength: match.Similarity,
		})
	}
	return signals
}

func (c *Controller) visualSignals(ctx context.Context, req Request) (vision.SceneDescription, []evidence.Signal) {
	if c.deps.Frames == nil || !c.deps.Frames.Available() {
		return vision.SceneDescription{}, nil
	}
	if err := c.acquireLimit(ctx, ratelimit.CapVision); err != nil {
		return vision.SceneDescription{}, nil
	}
	callCtx, cancel := c.capabilityContext(ctx)
	defer cancel()
	scene, err := c.deps.Frames.DescribeScene(callCtx, req.MediaRef)
	if err != nil {
		c.logger.Warn("scene description failed",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
		return vision.SceneDescription{}, nil
	}
	signals := make([]evidence.Signal, 0, len(scene.Matches))
	for _, match := range scene.Matches {
		signals = append(signals, evidence.Signal{
			Kind:     evidence.KindVisual,
			Title:    match.Title,
			Year:     match.Year,
			TMDBID:   match.TMDBID,
			Strength: match.Score,
			Payload:  scene.Description,
		})
	}
	return scene, signals
}

func (c *Controller) onScreenSignals(ctx context.Context, req Request) (vision.OnScreenText, []evidence.Signal) {
	if c.deps.Frames == nil || !c.deps.Frames.Available() {
		return vision.OnScreenText{}, nil
	}
	if err := c.acquireLimit(ctx, ratelimit.CapVision); err != nil {
		return vision.OnScreenText{}, nil
	}
	callCtx, cancel := c.capabilityContext(ctx)
	defer cancel()
	onscreen, err := c.deps.Frames.ReadOnScreenText(callCtx, req.MediaRef)
	if err != nil {
		c.logger.Warn("on-screen text read failed",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
		return vision.OnScreenText{}, nil
	}
	if strings.TrimSpace(onscreen.Title) == "" {
		return onscreen, nil
	}
	title, year := textutil.SplitTitleYear(onscreen.Title)
	return onscreen, []evidence.Signal{{
		Kind:     evidence.KindOnScreenText,
		Title:    title,
		Year:     year,
		Strength: onScreenTitleStrength,
		Payload:  onscreen.Title,
	}}
}

// actorSignals converts recognized performers into candidate signals via
// shared filmography. A single performer is not enough for an intersection;
// that case is left to the actor-only fallback.
func (c *Controller) actorSignals(ctx context.Context, req Request) (vision.ActorIdentification, []evidence.Signal) {
	if c.deps.Frames == nil || !c.deps.Frames.Available() {
		return vision.ActorIdentification{}, nil
	}
	if err := c.acquireLimit(ctx, ratelimit.CapActorID); err != nil {
		return vision.ActorIdentification{}, nil
	}
	callCtx, cancel := c.capabilityContext(ctx)
	defer cancel()
	actors, err := c.deps.Frames.IdentifyActors(callCtx, req.MediaRef)
	if err != nil {
		c.logger.Warn("actor identification failed",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
		return vision.ActorIdentification{}, nil
	}
	if len(actors.Names) < 2 {
		return actors, nil
	}

	response, err := c.filmographyIntersection(ctx, actors.Names)
	if err != nil {
		c.logger.Warn("filmography intersection failed",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
		return actors, nil
	}
	var signals []evidence.Signal
	for i, result := range response.Results {
		if i == filmographyTopResults {
			break
		}
		strength := actors.Confidence * (1 - filmographyRankDecay*float64(i))
		if strength <= 0 {
			break
		}
		signals = append(signals, evidence.Signal{
			Kind:     evidence.KindActorIdentity,
			Title:    result.DisplayTitle(),
			Year:     result.Year(),
			TMDBID:   result.ID,
			Strength: strength,
		})
	}
	return actors, signals
}

func (c *Controller) filmographyIntersection(ctx context.Context, names []string) (*metadata.Response, error) {
	if c.deps.Catalog == nil {
		return nil, errors.New("catalog unavailable")
	}
	var personIDs []int64
	for i, name := range names {
		if i == maxFilmographyPersons {
			break
		}
		if err := c.acquireLimit(ctx, ratelimit.CapMetadata); err != nil {
			return nil, err
		}
		person, err := c.deps.Catalog.SearchPerson(ctx, name)
		if err != nil {
			c.logger.Warn("person lookup failed", logging.String("name", name), logging.Error(err))
			continue
		}
		if person != nil {
			personIDs = append(personIDs, person.ID)
		}
	}
	if len(personIDs) == 0 {
		return nil, errors.New("no performers resolved in catalog")
	}
	if err := c.acquireLimit(ctx, ratelimit.CapMetadata); err != nil {
		return nil, err
	}
	return c.deps.Catalog.DiscoverByCast(ctx, personIDs)
}

func (c *Controller) bundle(transcript transcriber.Transcript, deep deepResult) llm.EvidenceBundle {
	lines := transcript.Lines
	if len(lines) == 0 && transcript.Text != "" {
		lines = []string{transcript.Text}
	}
	return llm.EvidenceBundle{
		TranscriptLines:  lines,
		SceneDescription: deep.scene.Description,
		OnScreenText:     deep.onscreen.Fragments,
		ActorNames:       deep.actors.Names,
	}
}

func (c *Controller) guessTitle(ctx context.Context, bundle llm.EvidenceBundle) (llm.TitleGuess, error) {
	if c.deps.Guesser == nil {
		return llm.TitleGuess{}, errors.New("generative model unavailable")
	}
	if err := c.acquireLimit(ctx, ratelimit.CapGenerative); err != nil {
		return llm.TitleGuess{}, err
	}
	return c.deps.Guesser.GuessTitle(ctx, bundle)
}

func (c *Controller) guessSecondOpinion(ctx context.Context, bundle llm.EvidenceBundle, leader evidence.Candidate) (llm.TitleGuess, error) {
	if c.deps.Guesser == nil {
		return llm.TitleGuess{}, errors.New("generative model unavailable")
	}
	if err := c.acquireLimit(ctx, ratelimit.CapGenerative); err != nil {
		return llm.TitleGuess{}, err
	}
	return c.deps.Guesser.SecondOpinion(ctx, bundle, leader.Title, leader.Year)
}

// resolveCandidate maps a candidate to a stored record: local store first,
// then at most one external catalog round before insert-if-absent.
func (c *Controller) resolveCandidate(ctx context.Context, candidate evidence.Candidate) (*mediastore.MediaRecord, error) {
	if c.deps.Store == nil {
		return nil, nil
	}
	if record := c.resolveLocal(ctx, candidate); record != nil {
		return record, nil
	}

	if candidate.TMDBID > 0 && strings.TrimSpace(candidate.Title) != "" {
		// Signal titles can arrive in OCR casing; store the display form.
		return c.deps.Store.CreateIfAbsent(ctx, &mediastore.MediaRecord{
			Title:  textutil.DisplayTitle(candidate.Title),
			Year:   candidate.Year,
			TMDBID: candidate.TMDBID,
		})
	}

	if c.deps.Catalog == nil || strings.TrimSpace(candidate.Title) == "" {
		return nil, nil
	}
	if err := c.acquireLimit(ctx, ratelimit.CapMetadata); err != nil {
		return nil, err
	}
	response, err := c.deps.Catalog.SearchMulti(ctx, candidate.Title, metadata.SearchOptions{Year: candidate.Year})
	if err != nil {
		return nil, err
	}
	if len(response.Results) == 0 {
		return nil, nil
	}
	match := response.Results[0]
	return c.deps.Store.CreateIfAbsent(ctx, &mediastore.MediaRecord{
		Title:     match.DisplayTitle(),
		Year:      match.Year(),
		TMDBID:    match.ID,
		MediaType: match.MediaType,
		Overview:  match.Overview,
	})
}

// refreshArtifacts opportunistically refetches stale similar-title and
// availability artifacts for an accepted record. Strictly best-effort: the
// result that triggered it never depends on the outcome.
func (c *Controller) refreshArtifacts(ctx context.Context, record *mediastore.MediaRecord) {
	if record == nil || record.ID == 0 || record.TMDBID <= 0 {
		return
	}
	if c.deps.Catalog == nil || c.deps.Store == nil {
		return
	}
	mediaType := record.MediaType
	if mediaType == "" {
		mediaType = "movie"
	}

	if !record.SimilarFresh(c.deps.ArtifactTTL) {
		if err := c.acquireLimit(ctx, ratelimit.CapMetadata); err != nil {
			return
		}
		titles, err := c.deps.Catalog.SimilarTitles(ctx, mediaType, record.TMDBID)
		if err != nil {
			c.logger.Debug("similar-title refresh failed", logging.Error(err))
		} else if err := c.deps.Store.UpdateSimilar(ctx, record.ID, titles); err != nil {
			c.logger.Debug("similar-title update failed", logging.Error(err))
		}
	}

	if !record.AvailabilityFresh(c.deps.ArtifactTTL) {
		if err := c.acquireLimit(ctx, ratelimit.CapMetadata); err != nil {
			return
		}
		providers, err := c.deps.Catalog.Availability(ctx, mediaType, record.TMDBID, "")
		if err != nil {
			c.logger.Debug("availability refresh failed", logging.Error(err))
		} else if err := c.deps.Store.UpdateAvailability(ctx, record.ID, providers); err != nil {
			c.logger.Debug("availability update failed", logging.Error(err))
		}
	}
}

func (c *Controller) resolveLocal(ctx context.Context, candidate evidence.Candidate) *mediastore.MediaRecord {
	if c.deps.Store == nil {
		return nil
	}
	if candidate.TMDBID > 0 {
		record, err := c.deps.Store.GetByTMDBID(ctx, candidate.TMDBID)
		if err == nil && record != nil {
			return record
		}
	}
	record, err := c.deps.Store.Resolve(ctx, candidate.Title, candidate.Year)
	if err != nil {
		return nil
	}
	return record
}

func (c *Controller) candidateKnown(ctx context.Context, candidate evidence.Candidate) bool {
	if c.deps.Store == nil {
		return false
	}
	return c.deps.Store.Known(ctx, candidate.Title, candidate.Year, candidate.TMDBID)
}

func (c *Controller) knownFunc(ctx context.Context) evidence.KnownFunc {
	if c.deps.Store == nil {
		return nil
	}
	return func(title string, year int, tmdbID int64) bool {
		return c.deps.Store.Known(ctx, title, year, tmdbID)
	}
}

func (c *Controller) acquireLimit(ctx context.Context, capability ratelimit.Capability) error {
	if c.deps.Limits == nil {
		return nil
	}
	return c.deps.Limits.Acquire(ctx, capability)
}

func (c *Controller) capabilityContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.CapabilityTimeoutSeconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(c.cfg.CapabilityTimeoutSeconds)*time.Second)
}

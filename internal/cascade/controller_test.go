package cascade

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"sceneid/internal/actorcheck"
	"sceneid/internal/config"
	"sceneid/internal/governor"
	"sceneid/internal/mediastore"
	"sceneid/internal/metadata"
	"sceneid/internal/services/llm"
	"sceneid/internal/services/transcriber"
	"sceneid/internal/services/vision"
)

type fakeSpeech struct {
	transcript transcriber.Transcript
	matches    []transcriber.EmbedMatch
	err        error
	calls      int
	embedCalls int
}

func (f *fakeSpeech) Available() bool { return true }

func (f *fakeSpeech) Transcribe(ctx context.Context, mediaRef string) (transcriber.Transcript, error) {
	f.calls++
	return f.transcript, f.err
}

func (f *fakeSpeech) SemanticMatches(ctx context.Context, transcript string, limit int) ([]transcriber.EmbedMatch, error) {
	f.embedCalls++
	return f.matches, f.err
}

type fakeFrames struct {
	mu       sync.Mutex
	scene    vision.SceneDescription
	onscreen vision.OnScreenText
	actors   vision.ActorIdentification
	err      error
	calls    int
}

func (f *fakeFrames) Available() bool { return true }

func (f *fakeFrames) record() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeFrames) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFrames) DescribeScene(ctx context.Context, mediaRef string) (vision.SceneDescription, error) {
	f.record()
	return f.scene, f.err
}

func (f *fakeFrames) ReadOnScreenText(ctx context.Context, mediaRef string) (vision.OnScreenText, error) {
	f.record()
	return f.onscreen, f.err
}

func (f *fakeFrames) IdentifyActors(ctx context.Context, mediaRef string) (vision.ActorIdentification, error) {
	f.record()
	return f.actors, f.err
}

type fakeGuesser struct {
	guess       llm.TitleGuess
	second      llm.TitleGuess
	err         error
	guessCalls  int
	secondCalls int
}

func (f *fakeGuesser) GuessTitle(ctx context.Context, bundle llm.EvidenceBundle) (llm.TitleGuess, error) {
	f.guessCalls++
	return f.guess, f.err
}

func (f *fakeGuesser) SecondOpinion(ctx context.Context, bundle llm.EvidenceBundle, priorTitle string, priorYear int) (llm.TitleGuess, error) {
	f.secondCalls++
	return f.second, f.err
}

type fakeVerifier struct {
	result actorcheck.Verification
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(ctx context.Context, tmdbID int64, mediaType string, claimed []string, sceneContext string) (actorcheck.Verification, error) {
	f.calls++
	return f.result, f.err
}

type fakeCatalog struct {
	metadata.Catalog
	multi        *metadata.Response
	persons      map[string]*metadata.Person
	discover     *metadata.Response
	similar      []string
	availability []string
	err          error

	similarCalls      int
	availabilityCalls int
}

func (f *fakeCatalog) SearchMulti(ctx context.Context, query string, opts metadata.SearchOptions) (*metadata.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.multi == nil {
		return &metadata.Response{}, nil
	}
	return f.multi, nil
}

func (f *fakeCatalog) SearchPerson(ctx context.Context, name string) (*metadata.Person, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.persons[name], nil
}

func (f *fakeCatalog) SimilarTitles(ctx context.Context, mediaType string, titleID int64) ([]string, error) {
	f.similarCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.similar, nil
}

func (f *fakeCatalog) Availability(ctx context.Context, mediaType string, titleID int64, region string) ([]string, error) {
	f.availabilityCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.availability, nil
}

func (f *fakeCatalog) DiscoverByCast(ctx context.Context, personIDs []int64) (*metadata.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.discover == nil {
		return &metadata.Response{}, nil
	}
	return f.discover, nil
}

func testConfig() config.Recognition {
	return config.Default().Recognition
}

func newTestController(t *testing.T, cfg config.Recognition, deps Deps, opts ...Option) *Controller {
	t.Helper()
	if deps.Governor == nil {
		deps.Governor = governor.New(config.Default().Governor, nil)
		t.Cleanup(deps.Governor.Close)
	}
	if deps.Store == nil {
		store, err := mediastore.OpenPath(filepath.Join(t.TempDir(), "media.db"))
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		deps.Store = store
	}
	return New(cfg, deps, opts...)
}

func seedRecord(t *testing.T, store *mediastore.Store, title string, year int, tmdbID int64, lines ...string) *mediastore.MediaRecord {
	t.Helper()
	record, err := store.CreateIfAbsent(context.Background(), &mediastore.MediaRecord{
		Title: title, Year: year, TMDBID: tmdbID,
	})
	if err != nil {
		t.Fatalf("seed %q: %v", title, err)
	}
	if len(lines) > 0 {
		if err := store.AddSubtitleLines(context.Background(), record.ID, lines); err != nil {
			t.Fatalf("seed lines: %v", err)
		}
	}
	return record
}

func TestInstantAcceptSkipsDeepAnalysis(t *testing.T) {
	store, err := mediastore.OpenPath(filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	seedRecord(t, store, "Casablanca", 1942, 289, "Here's looking at you, kid.")

	speech := &fakeSpeech{transcript: transcriber.Transcript{
		Text:  "Here's looking at you, kid.",
		Lines: []string{"Here's looking at you, kid."},
	}}
	frames := &fakeFrames{}
	guesser := &fakeGuesser{}

	var states []State
	controller := newTestController(t, testConfig(), Deps{
		Store:   store,
		Speech:  speech,
		Frames:  frames,
		Guesser: guesser,
	}, WithObserver(func(requestID string, state State, detail string) {
		states = append(states, state)
	}))

	result, err := controller.Recognize(context.Background(), Request{MediaRef: "clip-1"})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Outcome != OutcomeAccepted {
		t.Fatalf("expected accepted, got %s (%s)", result.Outcome, result.Explanation)
	}
	if result.Title != "Casablanca" || result.Confidence < 0.92 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if frames.callCount() != 0 {
		t.Fatalf("deep collaborators were called %d times during instant accept", frames.callCount())
	}
	if guesser.guessCalls+guesser.secondCalls != 0 {
		t.Fatal("generative model called during instant accept")
	}
	for _, state := range states {
		if state == StateDeepAnalysis {
			t.Fatal("state machine entered deep analysis")
		}
	}
}

func TestZeroSignalsFallsBackToGenerativeGuess(t *testing.T) {
	speech := &fakeSpeech{}
	frames := &fakeFrames{}
	guesser := &fakeGuesser{guess: llm.TitleGuess{
		Title: "Unknown Indie Film", Year: 2019, Confidence: 0.8, Reasoning: "stylistic guess",
	}}

	cfg := testConfig()
	controller := newTestController(t, cfg, Deps{
		Speech:  speech,
		Frames:  frames,
		Guesser: guesser,
		Catalog: &fakeCatalog{},
	})

	result, err := controller.Recognize(context.Background(), Request{MediaRef: "clip-2"})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Outcome != OutcomeGenerativeGuess {
		t.Fatalf("expected generative guess, got %s", result.Outcome)
	}
	if result.Confidence != cfg.GenerativeGuessConfidenceCap {
		t.Fatalf("expected confidence capped at %v, got %v",
			cfg.GenerativeGuessConfidenceCap, result.Confidence)
	}
	if !result.LowConfidence {
		t.Fatal("pure guess must be flagged low confidence")
	}
}

func TestZeroSignalsAndGuessFailureIsNotFound(t *testing.T) {
	controller := newTestController(t, testConfig(), Deps{
		Speech:  &fakeSpeech{},
		Frames:  &fakeFrames{},
		Guesser: &fakeGuesser{err: errors.New("model down")},
	})

	result, err := controller.Recognize(context.Background(), Request{MediaRef: "clip-3"})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Outcome != OutcomeNotFound {
		t.Fatalf("expected not found, got %s", result.Outcome)
	}
}

func TestReconcileKeepsStrongerSideFlaggedLowConfidence(t *testing.T) {
	store, err := mediastore.OpenPath(filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	seedRecord(t, store, "Heat", 1995, 949, "Told you I'm never going back.")
	seedRecord(t, store, "Ronin", 1998, 8195, "Everyone's your brother until the rent comes due.")
	seedRecord(t, store, "The Driver", 1978, 519, "I said you're a real cowboy now.")

	// Three partial dialogue hits on different titles split the weight, so
	// the leader's confidence lands well below the trust threshold.
	speech := &fakeSpeech{transcript: transcriber.Transcript{
		Text: "never going back rent comes due real cowboy",
		Lines: []string{
			"I'm never going back",
			"until the rent comes due",
			"a real cowboy",
		},
	}}
	guesser := &fakeGuesser{second: llm.TitleGuess{Title: "Heat", Year: 1995, Confidence: 0.35}}

	controller := newTestController(t, testConfig(), Deps{
		Store:   store,
		Speech:  speech,
		Frames:  &fakeFrames{},
		Guesser: guesser,
	})

	result, err := controller.Recognize(context.Background(), Request{MediaRef: "clip-4"})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Outcome != OutcomeAccepted {
		t.Fatalf("expected accepted, got %s", result.Outcome)
	}
	if guesser.secondCalls != 1 {
		t.Fatalf("expected exactly one second opinion, got %d", guesser.secondCalls)
	}
	if !result.LowConfidence {
		t.Fatal("result below trust threshold must be flagged low confidence")
	}
	if result.Confidence >= testConfig().TrustConfidence {
		t.Fatalf("confidence %v should be below trust threshold", result.Confidence)
	}
}

func TestActorFallbackCapsConfidence(t *testing.T) {
	frames := &fakeFrames{actors: vision.ActorIdentification{
		Names:      []string{"Bryan Cranston"},
		Confidence: 0.95,
	}}
	catalog := &fakeCatalog{
		persons: map[string]*metadata.Person{
			"Bryan Cranston": {ID: 17419, Name: "Bryan Cranston"},
		},
		discover: &metadata.Response{Results: []metadata.Result{
			{ID: 1396, Name: "Breaking Bad", FirstAirDate: "2008-01-20", MediaType: "tv"},
		}},
	}

	cfg := testConfig()
	controller := newTestController(t, cfg, Deps{
		Speech:  &fakeSpeech{},
		Frames:  frames,
		Guesser: &fakeGuesser{err: errors.New("unused")},
		Catalog: catalog,
	})

	result, err := controller.Recognize(context.Background(), Request{MediaRef: "clip-5"})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Outcome != OutcomeActorFallback {
		t.Fatalf("expected actor fallback, got %s (%s)", result.Outcome, result.Explanation)
	}
	if result.Confidence != cfg.ActorFallbackCap {
		t.Fatalf("expected confidence capped at %v, got %v", cfg.ActorFallbackCap, result.Confidence)
	}
	if result.Title != "Breaking Bad" {
		t.Fatalf("unexpected title %q", result.Title)
	}
}

func TestActorCheckCorrectionOverridesLeader(t *testing.T) {
	store, err := mediastore.OpenPath(filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	seedRecord(t, store, "Speed", 1994, 1637)
	seedRecord(t, store, "The Matrix", 1999, 603)

	// No dialogue evidence; the candidate comes from the visual index, and
	// the recognized performers contradict it.
	frames := &fakeFrames{
		scene: vision.SceneDescription{
			Description: "a bus that cannot slow down",
			Matches: []vision.VisualMatch{
				{Title: "Speed", Year: 1994, TMDBID: 1637, Score: 0.8},
			},
		},
		actors: vision.ActorIdentification{
			Names:      []string{"Keanu Reeves", "Carrie-Anne Moss"},
			Confidence: 0.9,
		},
	}
	verifier := &fakeVerifier{result: actorcheck.Verification{
		Correction: &actorcheck.Candidate{Title: "The Matrix", Year: 1999, TMDBID: 603},
	}}

	controller := newTestController(t, testConfig(), Deps{
		Store:    store,
		Speech:   &fakeSpeech{},
		Frames:   frames,
		Guesser:  &fakeGuesser{},
		Verifier: verifier,
		Catalog:  &fakeCatalog{},
	})

	result, err := controller.Recognize(context.Background(), Request{MediaRef: "clip-6"})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if verifier.calls != 1 {
		t.Fatalf("expected one verification, got %d", verifier.calls)
	}
	if result.Title != "The Matrix" {
		t.Fatalf("expected correction to The Matrix, got %q", result.Title)
	}
}

func TestSlotReleasedAfterEveryOutcome(t *testing.T) {
	gov := governor.New(config.Governor{
		MaxConcurrent:            1,
		MaxQueueSize:             5,
		QueueTimeoutSeconds:      5,
		MaxRequestTimeSeconds:    60,
		StaleSweepSeconds:        30,
		ProcessingHistoryEntries: 10,
	}, nil)
	t.Cleanup(gov.Close)

	controller := newTestController(t, testConfig(), Deps{
		Governor: gov,
		Speech:   &fakeSpeech{},
		Frames:   &fakeFrames{},
		Guesser:  &fakeGuesser{err: errors.New("model down")},
	})

	for i := 0; i < 3; i++ {
		if _, err := controller.Recognize(context.Background(), Request{MediaRef: "clip"}); err != nil {
			t.Fatalf("Recognize %d failed: %v", i, err)
		}
	}
	stats := gov.Stats()
	if stats.Active != 0 {
		t.Fatalf("slots leaked: %d active after completion", stats.Active)
	}
	if stats.Completed != 3 {
		t.Fatalf("expected 3 completions, got %d", stats.Completed)
	}
}

func TestAcceptStoresDisplayCasedTitle(t *testing.T) {
	// On-screen and visual titles can arrive in OCR casing; the stored
	// record must carry the display form.
	frames := &fakeFrames{scene: vision.SceneDescription{
		Description: "a replicant confronts its maker",
		Matches: []vision.VisualMatch{
			{Title: "BLADE RUNNER", Year: 1982, TMDBID: 78, Score: 0.9},
		},
	}}

	controller := newTestController(t, testConfig(), Deps{
		Speech:  &fakeSpeech{},
		Frames:  frames,
		Guesser: &fakeGuesser{},
	})

	result, err := controller.Recognize(context.Background(), Request{MediaRef: "clip-9"})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Outcome != OutcomeAccepted {
		t.Fatalf("expected accepted, got %s (%s)", result.Outcome, result.Explanation)
	}
	if result.Title != "Blade Runner" {
		t.Fatalf("expected display-cased title, got %q", result.Title)
	}
	record, err := controller.deps.Store.GetByTMDBID(context.Background(), 78)
	if err != nil {
		t.Fatalf("GetByTMDBID failed: %v", err)
	}
	if record.Title != "Blade Runner" {
		t.Fatalf("stored title %q, want %q", record.Title, "Blade Runner")
	}
}

func TestAcceptRefreshesStaleArtifacts(t *testing.T) {
	store, err := mediastore.OpenPath(filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	seeded := seedRecord(t, store, "Heat", 1995, 949)

	frames := &fakeFrames{scene: vision.SceneDescription{
		Matches: []vision.VisualMatch{
			{Title: "Heat", Year: 1995, TMDBID: 949, Score: 0.8},
		},
	}}
	catalog := &fakeCatalog{
		similar:      []string{"Collateral", "Ronin"},
		availability: []string{"Streamflix"},
	}

	controller := newTestController(t, testConfig(), Deps{
		Store:       store,
		Speech:      &fakeSpeech{},
		Frames:      frames,
		Guesser:     &fakeGuesser{},
		Catalog:     catalog,
		ArtifactTTL: time.Hour,
	})

	result, err := controller.Recognize(context.Background(), Request{MediaRef: "clip-10"})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if result.Outcome != OutcomeAccepted {
		t.Fatalf("expected accepted, got %s (%s)", result.Outcome, result.Explanation)
	}
	if catalog.similarCalls != 1 || catalog.availabilityCalls != 1 {
		t.Fatalf("expected one refresh per artifact, got similar=%d availability=%d",
			catalog.similarCalls, catalog.availabilityCalls)
	}

	record, err := store.GetByID(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got := record.SimilarTitles(); len(got) != 2 || got[0] != "Collateral" {
		t.Fatalf("unexpected similar titles %v", got)
	}
	if got := record.Availability(); len(got) != 1 || got[0] != "Streamflix" {
		t.Fatalf("unexpected availability %v", got)
	}
	if !record.SimilarFresh(time.Hour) || !record.AvailabilityFresh(time.Hour) {
		t.Fatal("refreshed artifacts should be fresh")
	}

	// Fresh artifacts must not trigger another catalog round.
	if _, err := controller.Recognize(context.Background(), Request{MediaRef: "clip-11"}); err != nil {
		t.Fatalf("second Recognize failed: %v", err)
	}
	if catalog.similarCalls != 1 || catalog.availabilityCalls != 1 {
		t.Fatalf("fresh artifacts refetched: similar=%d availability=%d",
			catalog.similarCalls, catalog.availabilityCalls)
	}
}

func TestAuditRowWrittenOnDone(t *testing.T) {
	store, err := mediastore.OpenPath(filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	seedRecord(t, store, "Casablanca", 1942, 289, "Here's looking at you, kid.")

	speech := &fakeSpeech{transcript: transcriber.Transcript{
		Lines: []string{"Here's looking at you, kid."},
		Text:  "Here's looking at you, kid.",
	}}
	controller := newTestController(t, testConfig(), Deps{
		Store:   store,
		Speech:  speech,
		Frames:  &fakeFrames{},
		Guesser: &fakeGuesser{},
	})

	result, err := controller.Recognize(context.Background(), Request{MediaRef: "clip-8"})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	entries, auditErr := store.RecentAudits(context.Background(), 5)
	if auditErr != nil {
		t.Fatalf("RecentAudits failed: %v", auditErr)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(entries))
	}
	if entries[0].RequestID != result.RequestID {
		t.Fatalf("audit row for wrong request: %+v", entries[0])
	}
	if entries[0].Outcome != string(OutcomeAccepted) {
		t.Fatalf("unexpected audit outcome %q", entries[0].Outcome)
	}
}

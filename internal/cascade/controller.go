package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"sceneid/internal/actorcheck"
	"sceneid/internal/config"
	"sceneid/internal/evidence"
	"sceneid/internal/governor"
	"sceneid/internal/logging"
	"sceneid/internal/mediastore"
	"sceneid/internal/metadata"
	"sceneid/internal/ratelimit"
	"sceneid/internal/services"
	"sceneid/internal/services/llm"
	"sceneid/internal/services/transcriber"
	"sceneid/internal/services/vision"
	"sceneid/internal/textutil"
)

// Transcriber is the speech capability surface the controller consumes.
type Transcriber interface {
	Available() bool
	Transcribe(ctx context.Context, mediaRef string) (transcriber.Transcript, error)
	SemanticMatches(ctx context.Context, transcript string, limit int) ([]transcriber.EmbedMatch, error)
}

// Vision is the frame-analysis capability surface the controller consumes.
type Vision interface {
	Available() bool
	DescribeScene(ctx context.Context, mediaRef string) (vision.SceneDescription, error)
	ReadOnScreenText(ctx context.Context, mediaRef string) (vision.OnScreenText, error)
	IdentifyActors(ctx context.Context, mediaRef string) (vision.ActorIdentification, error)
}

// Guesser is the generative aggregation surface the controller consumes.
type Guesser interface {
	GuessTitle(ctx context.Context, bundle llm.EvidenceBundle) (llm.TitleGuess, error)
	SecondOpinion(ctx context.Context, bundle llm.EvidenceBundle, priorTitle string, priorYear int) (llm.TitleGuess, error)
}

// Verifier checks claimed performers against a candidate's cast.
type Verifier interface {
	Verify(ctx context.Context, tmdbID int64, mediaType string, claimed []string, sceneContext string) (actorcheck.Verification, error)
}

// Deps bundles the controller's collaborators.
type Deps struct {
	Governor *governor.Governor
	Limits   *ratelimit.Registry
	Store    *mediastore.Store
	Catalog  metadata.Catalog
	Speech   Transcriber
	Frames   Vision
	Guesser  Guesser
	Verifier Verifier
	Logger   *slog.Logger

	// ArtifactTTL bounds freshness of the cached similar-title and
	// availability artifacts refreshed on accepted results. Zero keeps a
	// fetched artifact forever.
	ArtifactTTL time.Duration
}

// Controller drives a recognition request through the confidence-gated
// state machine. All per-request state is local to Recognize; the controller
// itself is safe for concurrent use.
type Controller struct {
	cfg      config.Recognition
	deps     Deps
	weights  evidence.Weights
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Controller.
type Option func(*Controller)

// WithObserver installs a state-transition hook.
func WithObserver(observer Observer) Option {
	return func(c *Controller) {
		c.observer = observer
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Controller.
func New(cfg config.Recognition, deps Deps, opts ...Option) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	controller := &Controller{
		cfg:     cfg,
		deps:    deps,
		weights: evidence.WeightsFromConfig(cfg),
		logger:  logging.NewComponentLogger(logger, "cascade"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(controller)
	}
	return controller
}

// Recognize runs one request end to end. The admission slot is always
// released, whatever path the state machine exits through. Admission
// failures (queue full, queue timeout) are returned as errors; every other
// outcome is reported in the Result.
func (c *Controller) Recognize(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.ID) == "" {
		req.ID = uuid.New().String()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = c.now()
	}
	start := c.now()

	slot, err := c.deps.Governor.Acquire(ctx, req.ID, req.Priority)
	if err != nil {
		return Result{RequestID: req.ID}, err
	}
	defer func() {
		slot.Release(c.now().Sub(start))
	}()

	ctx = services.WithRequestID(ctx, req.ID)
	if c.cfg.RequestDeadlineSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.RequestDeadlineSeconds)*time.Second)
		defer cancel()
	}

	result := c.run(ctx, req)
	result.RequestID = req.ID
	result.Elapsed = c.now().Sub(start)
	if result.Identified() {
		c.transition(req.ID, StateDone, result.Title)
	} else {
		c.transition(req.ID, StateFailed, string(result.Outcome))
	}
	decision := logging.DecisionAttrs("recognition", string(result.Outcome), result.Explanation)
	decision = append(decision,
		logging.String(logging.FieldRequestID, req.ID),
		logging.Float64("confidence", result.Confidence),
		logging.Duration("elapsed", result.Elapsed))
	c.logger.Info("recognition decision", logging.Args(decision...)...)
	c.audit(ctx, result)
	return result, nil
}

func (c *Controller) run(ctx context.Context, req Request) (result Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			diagnostic := uuid.New().String()
			c.logger.Error("recognition panicked",
				logging.String(logging.FieldRequestID, req.ID),
				logging.String("diagnostic_id", diagnostic),
				logging.Any("panic", recovered))
			result = Result{
				Outcome:      OutcomeFailed,
				Explanation:  "internal error",
				DiagnosticID: diagnostic,
			}
		}
	}()

	c.transition(req.ID, StateInit, "")

	c.transition(req.ID, StateFastLookup, "")
	ctx = services.WithState(ctx, string(StateFastLookup))
	transcript, fastSignals := c.fastLookup(ctx, req)
	fastCandidates := evidence.Aggregate(fastSignals, c.weights, c.knownFunc(ctx))
	if leader, ok := evidence.Leader(fastCandidates); ok &&
		leader.Confidence >= c.cfg.InstantAcceptConfidence &&
		c.candidateKnown(ctx, leader) {
		c.transition(req.ID, StateAccept, "instant accept")
		record := c.resolveLocal(ctx, leader)
		return c.accepted(leader, record, fastCandidates, "instant accept on cached dialogue match", false)
	}

	c.transition(req.ID, StateDeepAnalysis, "")
	ctx = services.WithState(ctx, string(StateDeepAnalysis))
	deep := c.deepAnalysis(ctx, req, transcript)
	signals := append(fastSignals, deep.signals...)
	candidates := evidence.Aggregate(signals, c.weights, c.knownFunc(ctx))

	if len(candidates) == 0 {
		return c.noCandidates(ctx, req, transcript, deep)
	}
	leader := candidates[0]

	if len(deep.actors.Names) >= 2 && leader.TMDBID > 0 && c.deps.Verifier != nil {
		c.transition(req.ID, StateActorCheck, leader.Display())
		verification, err := c.deps.Verifier.Verify(ctx, leader.TMDBID, "movie", deep.actors.Names, req.SceneContext)
		if err != nil {
			c.logger.Warn("actor verification unavailable",
				logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
		} else if correction := verification.Correction; correction != nil {
			leader.Title = correction.Title
			leader.Year = correction.Year
			leader.TMDBID = correction.TMDBID
			c.logger.Info("candidate corrected by actor rules",
				logging.String(logging.FieldRequestID, req.ID),
				logging.String("title", correction.Title))
		}
	}

	c.transition(req.ID, StateResolve, leader.Display())
	record, err := c.resolveCandidate(ctx, leader)
	if err != nil {
		c.logger.Warn("candidate resolution failed",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
	}

	if leader.Confidence >= c.cfg.TrustConfidence {
		c.transition(req.ID, StateAccept, leader.Display())
		c.refreshArtifacts(ctx, record)
		return c.accepted(leader, record, candidates,
			fmt.Sprintf("accepted on %d contributing signal kinds", len(leader.Kinds)), false)
	}

	c.transition(req.ID, StateReconcile, leader.Display())
	return c.reconcile(ctx, req, transcript, deep, leader, record, candidates)
}

// reconcile runs an independent second opinion when the leader lands below
// the trust threshold, accepting whichever side clears it, else the better
// of the two flagged low-confidence.
func (c *Controller) reconcile(ctx context.Context, req Request, transcript transcriber.Transcript, deep deepResult, leader evidence.Candidate, record *mediastore.MediaRecord, candidates []evidence.Candidate) Result {
	bundle := c.bundle(transcript, deep)
	second, err := c.guessSecondOpinion(ctx, bundle, leader)
	if err != nil {
		c.logger.Warn("second opinion unavailable",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
		return c.accepted(leader, record, candidates, "below trust threshold, second opinion unavailable", true)
	}

	sameTitle := textutil.CompareKey(second.Title) == textutil.CompareKey(leader.Title)
	switch {
	case second.Confidence >= c.cfg.TrustConfidence && !sameTitle:
		alternate := evidence.Candidate{
			Title:      second.Title,
			Year:       second.Year,
			Confidence: second.Confidence,
			Kinds:      leader.Kinds,
		}
		altRecord, resolveErr := c.resolveCandidate(ctx, alternate)
		if resolveErr != nil {
			c.logger.Warn("second opinion resolution failed",
				logging.String(logging.FieldRequestID, req.ID), logging.Error(resolveErr))
		}
		return c.accepted(alternate, altRecord, candidates,
			"second opinion replaced low-confidence leader: "+second.Reasoning, false)
	case second.Confidence >= c.cfg.TrustConfidence:
		leader.Confidence = second.Confidence
		return c.accepted(leader, record, candidates, "second opinion confirmed leader: "+second.Reasoning, false)
	default:
		if second.Confidence > leader.Confidence && !sameTitle {
			alternate := evidence.Candidate{
				Title:      second.Title,
				Year:       second.Year,
				Confidence: second.Confidence,
				Kinds:      leader.Kinds,
			}
			altRecord, _ := c.resolveCandidate(ctx, alternate)
			return c.accepted(alternate, altRecord, candidates,
				"neither pass cleared the trust threshold; reporting the stronger", true)
		}
		return c.accepted(leader, record, candidates,
			"neither pass cleared the trust threshold; reporting the stronger", true)
	}
}

// noCandidates handles the zero-signal exits: actor-only fallback first,
// then a pure generative guess, then terminal not-found.
func (c *Controller) noCandidates(ctx context.Context, req Request, transcript transcriber.Transcript, deep deepResult) Result {
	if len(deep.actors.Names) >= 1 && deep.actors.Confidence >= c.cfg.ActorFallbackConfidence {
		if result, ok := c.actorFallback(ctx, req, deep); ok {
			return result
		}
	}

	c.transition(req.ID, StateReconcile, "generative guess")
	bundle := c.bundle(transcript, deep)
	guess, err := c.guessTitle(ctx, bundle)
	if err != nil {
		return Result{
			Outcome:     OutcomeNotFound,
			Explanation: "no usable signals and the generative guess was unavailable",
		}
	}

	confidence := guess.Confidence
	if limit := c.cfg.GenerativeGuessConfidenceCap; limit > 0 && confidence > limit {
		confidence = limit
	}
	candidate := evidence.Candidate{
		Title:      guess.Title,
		Year:       guess.Year,
		Confidence: confidence,
	}
	record, resolveErr := c.resolveCandidate(ctx, candidate)
	if resolveErr != nil {
		c.logger.Warn("guess resolution failed",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(resolveErr))
	}
	return Result{
		Outcome:       OutcomeGenerativeGuess,
		Record:        record,
		Title:         guess.Title,
		Year:          guess.Year,
		MediaType:     guess.MediaType,
		Confidence:    confidence,
		Explanation:   "pure generative guess, no extracted signals: " + guess.Reasoning,
		LowConfidence: true,
	}
}

// actorFallback identifies a title from shared filmography alone. Reported
// confidence is capped because no scene evidence corroborates it.
func (c *Controller) actorFallback(ctx context.Context, req Request, deep deepResult) (Result, bool) {
	c.transition(req.ID, StateResolve, "actor fallback")
	response, err := c.filmographyIntersection(ctx, deep.actors.Names)
	if err != nil || response == nil || len(response.Results) == 0 {
		if err != nil {
			c.logger.Warn("actor fallback search failed",
				logging.String(logging.FieldRequestID, req.ID), logging.Error(err))
		}
		return Result{}, false
	}
	top := response.Results[0]
	confidence := deep.actors.Confidence
	if limit := c.cfg.ActorFallbackCap; limit > 0 && confidence > limit {
		confidence = limit
	}
	candidate := evidence.Candidate{
		Title:      top.DisplayTitle(),
		Year:       top.Year(),
		TMDBID:     top.ID,
		Confidence: confidence,
		Kinds:      []evidence.Kind{evidence.KindActorIdentity},
	}
	record, resolveErr := c.resolveCandidate(ctx, candidate)
	if resolveErr != nil {
		c.logger.Warn("actor fallback resolution failed",
			logging.String(logging.FieldRequestID, req.ID), logging.Error(resolveErr))
	}
	return Result{
		Outcome:           OutcomeActorFallback,
		Record:            record,
		Title:             candidate.Title,
		Year:              candidate.Year,
		Confidence:        confidence,
		ContributingKinds: candidate.Kinds,
		Explanation: fmt.Sprintf("identified from shared filmography of %s",
			strings.Join(deep.actors.Names, ", ")),
		LowConfidence: confidence < c.cfg.TrustConfidence,
	}, true
}

func (c *Controller) accepted(leader evidence.Candidate, record *mediastore.MediaRecord, candidates []evidence.Candidate, explanation string, lowConfidence bool) Result {
	result := Result{
		Outcome:           OutcomeAccepted,
		Record:            record,
		Title:             leader.Title,
		Year:              leader.Year,
		Confidence:        leader.Confidence,
		ContributingKinds: leader.Kinds,
		Explanation:       explanation,
		LowConfidence:     lowConfidence,
	}
	if record != nil {
		result.Title = record.Title
		result.Year = record.Year
		result.MediaType = record.MediaType
	}
	for _, candidate := range candidates {
		if candidate.Key == leader.Key {
			continue
		}
		result.Alternates = append(result.Alternates, Alternate{
			Title:      candidate.Title,
			Year:       candidate.Year,
			Confidence: candidate.Confidence,
		})
		if len(result.Alternates) == 3 {
			break
		}
	}
	return result
}

func (c *Controller) transition(requestID string, state State, detail string) {
	c.logger.Debug("state transition",
		logging.String(logging.FieldEventType, "state_transition"),
		logging.String(logging.FieldRequestID, requestID),
		logging.String(logging.FieldState, string(state)),
		logging.String("detail", detail))
	if c.observer != nil {
		c.observer(requestID, state, detail)
	}
}

func (c *Controller) audit(ctx context.Context, result Result) {
	if c.deps.Store == nil {
		return
	}
	entry := mediastore.AuditEntry{
		RequestID:     result.RequestID,
		Outcome:       string(result.Outcome),
		Confidence:    result.Confidence,
		LowConfidence: result.LowConfidence,
		Explanation:   result.Explanation,
	}
	if result.Record != nil {
		entry.MediaRecordID = result.Record.ID
	}
	for _, kind := range result.ContributingKinds {
		entry.SignalKinds = append(entry.SignalKinds, string(kind))
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.deps.Store.RecordAudit(auditCtx, entry); err != nil {
		c.logger.Warn("audit write failed",
			logging.String(logging.FieldRequestID, result.RequestID), logging.Error(err))
	}
}

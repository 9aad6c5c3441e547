package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"sceneid/internal/actorcheck"
	"sceneid/internal/api"
	"sceneid/internal/cascade"
	"sceneid/internal/config"
	"sceneid/internal/governor"
	"sceneid/internal/logging"
	"sceneid/internal/mediastore"
	"sceneid/internal/metadata"
	"sceneid/internal/ratelimit"
	"sceneid/internal/services/llm"
	"sceneid/internal/services/transcriber"
	"sceneid/internal/services/vision"
)

// Daemon owns the recognition engine and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *mediastore.Store
	gov        *governor.Governor
	limits     *ratelimit.Registry
	controller *cascade.Controller

	speech  *transcriber.Client
	frames  *vision.Client
	guesser *llm.Client
	catalog *metadata.Client

	apiSrv *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with all recognition collaborators wired from config.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := mediastore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open media store: %w", err)
	}

	catalog, err := metadata.New(cfg.Metadata.APIKey, cfg.Metadata.BaseURL, cfg.Metadata.Language)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metadata client: %w", err)
	}

	speech := transcriber.New(transcriber.Config{
		Enabled:        cfg.Transcriber.Enabled,
		BaseURL:        cfg.Transcriber.BaseURL,
		APIKey:         cfg.Transcriber.APIKey,
		TimeoutSeconds: cfg.Transcriber.TimeoutSeconds,
	})
	frames := vision.New(vision.Config{
		Enabled:        cfg.Vision.Enabled,
		BaseURL:        cfg.Vision.BaseURL,
		APIKey:         cfg.Vision.APIKey,
		TimeoutSeconds: cfg.Vision.TimeoutSeconds,
	})
	guesser := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	gov := governor.New(cfg.Governor, logger)
	limits := ratelimit.NewRegistry(cfg.RateLimits)
	artifactTTL := time.Duration(cfg.Metadata.ArtifactTTLHours) * time.Hour
	verifier := actorcheck.New(catalog, store, nil, artifactTTL, logger)

	controller := cascade.New(cfg.Recognition, cascade.Deps{
		Governor:    gov,
		Limits:      limits,
		Store:       store,
		Catalog:     catalog,
		Speech:      speech,
		Frames:      frames,
		Guesser:     guesser,
		Verifier:    verifier,
		Logger:      logger,
		ArtifactTTL: artifactTTL,
	})

	lockPath := filepath.Join(cfg.Paths.DataDir, "sceneid.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		gov:        gov,
		limits:     limits,
		controller: controller,
		speech:     speech,
		frames:     frames,
		guesser:    guesser,
		catalog:    catalog,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.apiSrv = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the single-instance lock and launches the governor sweep and
// the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sceneid daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.gov.Start(runCtx)

	if err := d.apiSrv.start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		d.gov.Close()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("sceneid daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiSrv.stop()
	d.gov.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("sceneid daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Recognize runs one recognition request through the cascade.
func (d *Daemon) Recognize(ctx context.Context, req api.RecognizeRequest) (cascade.Result, error) {
	mediaRef := strings.TrimSpace(req.MediaRef)
	if mediaRef == "" {
		return cascade.Result{}, errors.New("mediaRef is required")
	}
	return d.controller.Recognize(ctx, cascade.Request{
		MediaRef:     mediaRef,
		RequesterID:  strings.TrimSpace(req.RequesterID),
		Priority:     req.Priority,
		SceneContext: req.SceneContext,
	})
}

// ForceReset clears all admission state. Operator escape hatch.
func (d *Daemon) ForceReset() {
	d.gov.ForceReset()
}

// Status aggregates daemon runtime information.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: filepath.Join(d.cfg.Paths.DataDir, "media.db"),
		LockFilePath: d.lockPath,
		Admission:    api.FromGovernorStats(d.gov.Stats()),
		RateLimits:   api.FromUsages(d.limits.Usages()),
		Capabilities: d.capabilityHealth(ctx),
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Store = api.FromStoreStats(stats)
	}
	return status
}

// Health reports readiness: the store must answer and the governor must be
// willing to accept or queue new work. Capability probes are advisory.
func (d *Daemon) Health(ctx context.Context) api.HealthResponse {
	components := d.capabilityHealth(ctx)

	storeHealthy := true
	detail := ""
	if err := d.store.Ping(ctx); err != nil {
		storeHealthy = false
		detail = err.Error()
	}
	components = append(components, api.CapabilityHealth{
		Name:       "store",
		Configured: true,
		Healthy:    storeHealthy,
		Detail:     detail,
	})

	return api.HealthResponse{
		Healthy:    storeHealthy,
		Accepting:  d.gov.CanAccept(),
		Components: components,
	}
}

// RecentAudits returns the newest recognition audit rows.
func (d *Daemon) RecentAudits(ctx context.Context, limit int) ([]mediastore.AuditEntry, error) {
	return d.store.RecentAudits(ctx, limit)
}

func (d *Daemon) capabilityHealth(ctx context.Context) []api.CapabilityHealth {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	probe := func(name string, configured bool, check func(context.Context) error) api.CapabilityHealth {
		health := api.CapabilityHealth{Name: name, Configured: configured}
		if !configured {
			health.Detail = "not configured"
			return health
		}
		if err := check(probeCtx); err != nil {
			health.Detail = err.Error()
			return health
		}
		health.Healthy = true
		return health
	}

	return []api.CapabilityHealth{
		probe("transcriber", d.speech.Available(), d.speech.HealthCheck),
		probe("vision", d.frames.Available(), d.frames.HealthCheck),
		probe("llm", strings.TrimSpace(d.cfg.LLM.APIKey) != "", d.guesser.HealthCheck),
	}
}

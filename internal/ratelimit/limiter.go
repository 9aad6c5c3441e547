package ratelimit

import (
	"context"
	"sync"
	"time"

	"sceneid/internal/config"
)

// Capability names one rate-limited upstream collaborator kind.
type Capability string

const (
	CapTranscription Capability = "transcription"
	CapVision        Capability = "vision"
	CapActorID       Capability = "actor_id"
	CapGenerative    Capability = "generative"
	CapMetadata      Capability = "metadata"
)

// Usage reports current window occupancy for health dashboards.
type Usage struct {
	Capability Capability    `json:"capability"`
	Current    int           `json:"current"`
	Max        int           `json:"max"`
	Window     time.Duration `json:"window"`
}

// Limiter admits outbound calls through a sliding time window. Acquire blocks
// until the window has headroom; it never rejects outright.
type Limiter struct {
	capability Capability
	window     time.Duration
	maxCalls   int

	mu    sync.Mutex
	calls []time.Time

	now func() time.Time
}

// NewLimiter constructs a sliding-window limiter for one capability.
func NewLimiter(capability Capability, window time.Duration, maxCalls int) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	if maxCalls <= 0 {
		maxCalls = 1
	}
	return &Limiter{
		capability: capability,
		window:     window,
		maxCalls:   maxCalls,
		now:        time.Now,
	}
}

// Acquire blocks the caller until the window has headroom or the context is
// done, then records the call timestamp.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire records a call when headroom exists; otherwise it returns how
// long until the oldest in-window call slides out.
func (l *Limiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictLocked(now)
	if len(l.calls) < l.maxCalls {
		l.calls = append(l.calls, now)
		return 0, true
	}
	wait := l.calls[0].Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// Usage returns current/max occupancy of the window.
func (l *Limiter) Usage() Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(l.now())
	return Usage{
		Capability: l.capability,
		Current:    len(l.calls),
		Max:        l.maxCalls,
		Window:     l.window,
	}
}

func (l *Limiter) evictLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.calls) && !l.calls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.calls = append(l.calls[:0], l.calls[idx:]...)
	}
}

// Registry holds one limiter per upstream capability.
type Registry struct {
	limiters map[Capability]*Limiter
}

// NewRegistry builds limiters from the configured per-capability budgets.
func NewRegistry(cfg config.RateLimits) *Registry {
	build := func(capability Capability, limit config.RateLimit) *Limiter {
		return NewLimiter(capability, time.Duration(limit.WindowSeconds)*time.Second, limit.MaxCalls)
	}
	return &Registry{
		limiters: map[Capability]*Limiter{
			CapTranscription: build(CapTranscription, cfg.Transcription),
			CapVision:        build(CapVision, cfg.Vision),
			CapActorID:       build(CapActorID, cfg.ActorID),
			CapGenerative:    build(CapGenerative, cfg.Generative),
			CapMetadata:      build(CapMetadata, cfg.Metadata),
		},
	}
}

// Acquire blocks on the limiter for the named capability. Unknown capabilities
// pass through unthrottled.
func (r *Registry) Acquire(ctx context.Context, capability Capability) error {
	if r == nil {
		return nil
	}
	limiter, ok := r.limiters[capability]
	if !ok {
		return nil
	}
	return limiter.Acquire(ctx)
}

// Usages returns occupancy for every registered limiter in stable order.
func (r *Registry) Usages() []Usage {
	if r == nil {
		return nil
	}
	order := []Capability{CapTranscription, CapVision, CapActorID, CapGenerative, CapMetadata}
	usages := make([]Usage, 0, len(order))
	for _, capability := range order {
		if limiter, ok := r.limiters[capability]; ok {
			usages = append(usages, limiter.Usage())
		}
	}
	return usages
}

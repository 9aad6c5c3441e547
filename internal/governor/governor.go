package governor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sceneid/internal/config"
	"sceneid/internal/logging"
	"sceneid/internal/services"
)

// Governor bounds how many recognition decision cycles run at once and queues
// the overflow by priority then arrival order. It is the only subsystem
// holding cross-request mutable state; every update happens under one mutex.
type Governor struct {
	maxConcurrent  int
	maxQueueSize   int
	queueTimeout   time.Duration
	maxRequestTime time.Duration
	sweepInterval  time.Duration
	historySize    int

	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	active   map[string]*Slot
	waiters  []*waiter
	history  []time.Duration
	counters counters

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

type counters struct {
	Admitted     uint64
	RejectedFull uint64
	TimedOut     uint64
	Reclaimed    uint64
	Completed    uint64
}

// Slot is a concurrency ticket. Release is idempotent.
type Slot struct {
	RequestID  string
	AcquiredAt time.Time

	g        *Governor
	released bool
}

type waiterState int

const (
	waiterWaiting waiterState = iota
	waiterPromoted
	waiterAbandoned
)

type waiter struct {
	requestID  string
	priority   int
	enqueuedAt time.Time
	state      waiterState
	ready      chan acquireResult
}

type acquireResult struct {
	slot *Slot
	err  error
}

// New constructs a Governor from config. Call Start to run the stale sweep.
func New(cfg config.Governor, logger *slog.Logger) *Governor {
	return &Governor{
		maxConcurrent:  cfg.MaxConcurrent,
		maxQueueSize:   cfg.MaxQueueSize,
		queueTimeout:   time.Duration(cfg.QueueTimeoutSeconds) * time.Second,
		maxRequestTime: time.Duration(cfg.MaxRequestTimeSeconds) * time.Second,
		sweepInterval:  time.Duration(cfg.StaleSweepSeconds) * time.Second,
		historySize:    cfg.ProcessingHistoryEntries,
		logger:         logging.NewComponentLogger(logger, "governor"),
		now:            time.Now,
		active:         make(map[string]*Slot),
	}
}

// Start launches the periodic stale sweep. Stop with Close.
func (g *Governor) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	g.sweepCancel = cancel
	g.sweepDone = make(chan struct{})
	go func() {
		defer close(g.sweepDone)
		ticker := time.NewTicker(g.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				g.sweepStale()
			}
		}
	}()
}

// Close stops the stale sweep goroutine.
func (g *Governor) Close() {
	if g.sweepCancel != nil {
		g.sweepCancel()
		<-g.sweepDone
	}
}

// Acquire grants a slot immediately while capacity remains, otherwise queues
// by priority then FIFO. It fails fast with ErrCapacityExceeded once the
// queue is full, and with ErrQueueTimeout after the queue timeout elapses.
func (g *Governor) Acquire(ctx context.Context, requestID string, priority int) (*Slot, error) {
	g.mu.Lock()
	if len(g.active) < g.maxConcurrent {
		slot := g.grantLocked(requestID)
		g.mu.Unlock()
		return slot, nil
	}
	if len(g.waiters) >= g.maxQueueSize {
		g.counters.RejectedFull++
		retryAfter := g.estimateWaitLocked()
		g.mu.Unlock()
		g.logger.Warn("admission rejected: queue full",
			logging.String(logging.FieldRequestID, requestID),
			logging.Int("queue_size", g.maxQueueSize),
			logging.Duration("suggested_retry_after", retryAfter))
		err := services.Wrap(services.ErrCapacityExceeded, "governor", "acquire", "admission queue full", nil)
		return nil, services.WithRetryAfter(err, retryAfter)
	}

	w := &waiter{
		requestID:  requestID,
		priority:   priority,
		enqueuedAt: g.now(),
		ready:      make(chan acquireResult, 1),
	}
	g.enqueueLocked(w)
	position := g.positionLocked(w)
	g.mu.Unlock()

	g.logger.Info("request queued for admission",
		logging.String(logging.FieldRequestID, requestID),
		logging.Int("priority", priority),
		logging.Int("queue_position", position))

	timer := time.NewTimer(g.queueTimeout)
	defer timer.Stop()
	select {
	case result := <-w.ready:
		return result.slot, result.err
	case <-timer.C:
		return nil, g.abandon(w, services.Wrap(services.ErrQueueTimeout, "governor", "acquire", "timed out waiting for an admission slot", nil))
	case <-ctx.Done():
		return nil, g.abandon(w, ctx.Err())
	}
}

// abandon removes a waiter after timeout or cancellation. If a promotion
// raced in first, the granted slot is recycled to the next waiter.
func (g *Governor) abandon(w *waiter, cause error) error {
	g.mu.Lock()
	switch w.state {
	case waiterPromoted:
		g.mu.Unlock()
		result := <-w.ready
		if result.slot != nil {
			result.slot.Release(0)
		}
		return cause
	case waiterWaiting:
		w.state = waiterAbandoned
		g.removeWaiterLocked(w)
		g.counters.TimedOut++
	}
	g.mu.Unlock()
	return cause
}

// Release returns a slot, records processing time, and promotes the next
// eligible waiter. Safe to call more than once; later calls are no-ops.
func (s *Slot) Release(processingTime time.Duration) {
	if s == nil || s.g == nil {
		return
	}
	g := s.g
	g.mu.Lock()
	defer g.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	delete(g.active, s.RequestID)
	g.counters.Completed++
	g.recordProcessingLocked(processingTime)
	g.promoteLocked()
}

// ForceReset clears all governor state: active slots are dropped and every
// queued request is rejected. Operator escape hatch only.
func (g *Governor) ForceReset() {
	g.mu.Lock()
	dropped := len(g.active)
	for _, slot := range g.active {
		slot.released = true
	}
	g.active = make(map[string]*Slot)
	waiters := g.waiters
	g.waiters = nil
	for _, w := range waiters {
		if w.state == waiterWaiting {
			w.state = waiterAbandoned
			w.ready <- acquireResult{err: services.Wrap(services.ErrTransient, "governor", "force reset", "admission state cleared by operator", nil)}
		}
	}
	g.history = nil
	g.mu.Unlock()

	g.logger.Warn("governor force reset",
		logging.Int("dropped_active", dropped),
		logging.Int("rejected_queued", len(waiters)))
}

// CanAccept reports whether a new request would be admitted or queued rather
// than rejected outright.
func (g *Governor) CanAccept() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active) < g.maxConcurrent || len(g.waiters) < g.maxQueueSize
}

// sweepStale force-reclaims slots whose holder exceeded the maximum request
// time. The original caller has long since been answered or abandoned, so
// reclamation is silent apart from the log line.
func (g *Governor) sweepStale() {
	cutoff := g.now().Add(-g.maxRequestTime)
	g.mu.Lock()
	var reclaimed []string
	for id, slot := range g.active {
		if slot.AcquiredAt.Before(cutoff) {
			slot.released = true
			delete(g.active, id)
			g.counters.Reclaimed++
			reclaimed = append(reclaimed, id)
		}
	}
	for range reclaimed {
		g.promoteLocked()
	}
	g.mu.Unlock()

	for _, id := range reclaimed {
		g.logger.Warn("reclaimed stale admission slot",
			logging.String(logging.FieldRequestID, id),
			logging.Duration("max_request_time", g.maxRequestTime))
	}
}

func (g *Governor) grantLocked(requestID string) *Slot {
	slot := &Slot{RequestID: requestID, AcquiredAt: g.now(), g: g}
	g.active[requestID] = slot
	g.counters.Admitted++
	return slot
}

// enqueueLocked inserts by priority (higher first) then FIFO within a priority.
func (g *Governor) enqueueLocked(w *waiter) {
	idx := len(g.waiters)
	for i, existing := range g.waiters {
		if w.priority > existing.priority {
			idx = i
			break
		}
	}
	g.waiters = append(g.waiters, nil)
	copy(g.waiters[idx+1:], g.waiters[idx:])
	g.waiters[idx] = w
}

func (g *Governor) promoteLocked() {
	for len(g.waiters) > 0 && len(g.active) < g.maxConcurrent {
		next := g.waiters[0]
		g.waiters = g.waiters[1:]
		if next.state != waiterWaiting {
			continue
		}
		next.state = waiterPromoted
		next.ready <- acquireResult{slot: g.grantLocked(next.requestID)}
		return
	}
}

func (g *Governor) removeWaiterLocked(target *waiter) {
	for i, w := range g.waiters {
		if w == target {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return
		}
	}
}

func (g *Governor) positionLocked(target *waiter) int {
	for i, w := range g.waiters {
		if w == target {
			return i + 1
		}
	}
	return 0
}

func (g *Governor) recordProcessingLocked(d time.Duration) {
	if d <= 0 {
		return
	}
	g.history = append(g.history, d)
	if g.historySize > 0 && len(g.history) > g.historySize {
		g.history = g.history[len(g.history)-g.historySize:]
	}
}

// estimateWaitLocked suggests a retry delay from the processing-time history.
func (g *Governor) estimateWaitLocked() time.Duration {
	if len(g.history) == 0 {
		return 30 * time.Second
	}
	var total time.Duration
	for _, d := range g.history {
		total += d
	}
	avg := total / time.Duration(len(g.history))
	pending := len(g.waiters) + 1
	estimate := avg * time.Duration((pending+g.maxConcurrent-1)/g.maxConcurrent)
	if estimate < time.Second {
		estimate = time.Second
	}
	return estimate
}

package governor

import "time"

// Stats is a read-only snapshot of governor state for health reporting.
type Stats struct {
	Active           int           `json:"active"`
	MaxConcurrent    int           `json:"maxConcurrent"`
	Queued           int           `json:"queued"`
	MaxQueueSize     int           `json:"maxQueueSize"`
	AvgProcessing    time.Duration `json:"avgProcessing"`
	EstimatedWait    time.Duration `json:"estimatedWait"`
	Admitted         uint64        `json:"admitted"`
	Completed        uint64        `json:"completed"`
	RejectedFull     uint64        `json:"rejectedQueueFull"`
	TimedOut         uint64        `json:"timedOut"`
	ReclaimedStale   uint64        `json:"reclaimedStale"`
	OldestActiveAge  time.Duration `json:"oldestActiveAge"`
	LongestQueueWait time.Duration `json:"longestQueueWait"`
}

// Stats returns a consistent snapshot of the governor's counters and queues.
func (g *Governor) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := Stats{
		Active:         len(g.active),
		MaxConcurrent:  g.maxConcurrent,
		Queued:         len(g.waiters),
		MaxQueueSize:   g.maxQueueSize,
		EstimatedWait:  g.estimateWaitLocked(),
		Admitted:       g.counters.Admitted,
		Completed:      g.counters.Completed,
		RejectedFull:   g.counters.RejectedFull,
		TimedOut:       g.counters.TimedOut,
		ReclaimedStale: g.counters.Reclaimed,
	}
	if len(g.history) > 0 {
		var total time.Duration
		for _, d := range g.history {
			total += d
		}
		stats.AvgProcessing = total / time.Duration(len(g.history))
	}
	now := g.now()
	for _, slot := range g.active {
		if age := now.Sub(slot.AcquiredAt); age > stats.OldestActiveAge {
			stats.OldestActiveAge = age
		}
	}
	for _, w := range g.waiters {
		if wait := now.Sub(w.enqueuedAt); wait > stats.LongestQueueWait {
			stats.LongestQueueWait = wait
		}
	}
	return stats
}

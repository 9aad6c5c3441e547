package api

import (
	"time"

	"sceneid/internal/cascade"
	"sceneid/internal/governor"
	"sceneid/internal/mediastore"
	"sceneid/internal/ratelimit"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FromResult converts a cascade result into its transport form.
func FromResult(result cascade.Result) RecognitionResult {
	out := RecognitionResult{
		RequestID:     result.RequestID,
		Outcome:       string(result.Outcome),
		Identified:    result.Identified(),
		Title:         result.Title,
		Year:          result.Year,
		MediaType:     result.MediaType,
		Confidence:    result.Confidence,
		LowConfidence: result.LowConfidence,
		Explanation:   result.Explanation,
		DiagnosticID:  result.DiagnosticID,
		ElapsedMS:     result.Elapsed.Milliseconds(),
	}
	if result.Record != nil {
		out.TMDBID = result.Record.TMDBID
	}
	for _, kind := range result.ContributingKinds {
		out.ContributingKinds = append(out.ContributingKinds, string(kind))
	}
	for _, alt := range result.Alternates {
		out.Alternates = append(out.Alternates, Alternate{
			Title:      alt.Title,
			Year:       alt.Year,
			Confidence: alt.Confidence,
		})
	}
	return out
}

// FromGovernorStats converts governor occupancy into its transport form.
func FromGovernorStats(stats governor.Stats) AdmissionStats {
	return AdmissionStats{
		Active:          stats.Active,
		MaxConcurrent:   stats.MaxConcurrent,
		Queued:          stats.Queued,
		MaxQueueSize:    stats.MaxQueueSize,
		Admitted:        stats.Admitted,
		Completed:       stats.Completed,
		RejectedFull:    stats.RejectedFull,
		TimedOut:        stats.TimedOut,
		ReclaimedStale:  stats.ReclaimedStale,
		AvgProcessingMS: stats.AvgProcessing.Milliseconds(),
		EstimatedWaitMS: stats.EstimatedWait.Milliseconds(),
	}
}

// FromUsages converts rate-limiter occupancy into its transport form.
func FromUsages(usages []ratelimit.Usage) []CapabilityUsage {
	if len(usages) == 0 {
		return nil
	}
	out := make([]CapabilityUsage, 0, len(usages))
	for _, usage := range usages {
		out = append(out, CapabilityUsage{
			Capability:    string(usage.Capability),
			Current:       usage.Current,
			Max:           usage.Max,
			WindowSeconds: int(usage.Window / time.Second),
		})
	}
	return out
}

// FromStoreStats converts store row counts into their transport form.
func FromStoreStats(stats mediastore.StoreStats) StoreStats {
	return StoreStats{
		MediaRecords:  stats.MediaRecords,
		SubtitleLines: stats.SubtitleLines,
		AuditRows:     stats.AuditRows,
	}
}

// FromAuditEntries converts audit rows into their transport form.
func FromAuditEntries(entries []mediastore.AuditEntry) []AuditEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]AuditEntry, 0, len(entries))
	for _, entry := range entries {
		converted := AuditEntry{
			RequestID:     entry.RequestID,
			Outcome:       entry.Outcome,
			MediaRecordID: entry.MediaRecordID,
			Confidence:    entry.Confidence,
			LowConfidence: entry.LowConfidence,
			SignalKinds:   entry.SignalKinds,
			Explanation:   entry.Explanation,
		}
		if !entry.CreatedAt.IsZero() {
			converted.CreatedAt = entry.CreatedAt.Format(dateTimeFormat)
		}
		out = append(out, converted)
	}
	return out
}

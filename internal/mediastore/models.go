package mediastore

import (
	"encoding/json"
	"time"
)

// MediaRecord is the canonical, persistent entry for an identified title.
// Records are created on first successful resolution, updated opportunistically,
// and never deleted by the recognition core.
type MediaRecord struct {
	ID        int64
	Title     string
	Year      int
	TMDBID    int64
	MediaType string
	Overview  string

	CastJSON               string
	CastRefreshedAt        *time.Time
	SimilarJSON            string
	SimilarRefreshedAt     *time.Time
	AvailabilityJSON       string
	AvailabilityRefreshedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cast decodes the cached cast list; nil when the artifact was never fetched.
func (r *MediaRecord) Cast() []string {
	return decodeStringList(r.CastJSON)
}

// SimilarTitles decodes the cached similar-title list.
func (r *MediaRecord) SimilarTitles() []string {
	return decodeStringList(r.SimilarJSON)
}

// Availability decodes the cached availability list.
func (r *MediaRecord) Availability() []string {
	return decodeStringList(r.AvailabilityJSON)
}

// CastFresh reports whether the cached cast artifact is within the TTL.
func (r *MediaRecord) CastFresh(ttl time.Duration) bool {
	return artifactFresh(r.CastRefreshedAt, ttl)
}

// SimilarFresh reports whether the cached similar-title artifact is within the TTL.
func (r *MediaRecord) SimilarFresh(ttl time.Duration) bool {
	return artifactFresh(r.SimilarRefreshedAt, ttl)
}

// AvailabilityFresh reports whether the cached availability artifact is within the TTL.
func (r *MediaRecord) AvailabilityFresh(ttl time.Duration) bool {
	return artifactFresh(r.AvailabilityRefreshedAt, ttl)
}

func artifactFresh(refreshedAt *time.Time, ttl time.Duration) bool {
	if refreshedAt == nil {
		return false
	}
	if ttl <= 0 {
		return true
	}
	return time.Since(*refreshedAt) < ttl
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

func encodeStringList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

// DialogueMatch is one subtitle-corpus hit tying a phrase to a stored title.
type DialogueMatch struct {
	RecordID int64
	Title    string
	Year     int
	TMDBID   int64
	Line     string
	Exact    bool
}

// AuditEntry is a best-effort recognition outcome row.
type AuditEntry struct {
	RequestID     string
	MediaRecordID int64
	Outcome       string
	Confidence    float64
	LowConfidence bool
	SignalKinds   []string
	Explanation   string
	CreatedAt     time.Time
}

// StoreStats aggregates store row counts for diagnostics.
type StoreStats struct {
	MediaRecords  int `json:"mediaRecords"`
	SubtitleLines int `json:"subtitleLines"`
	AuditRows     int `json:"auditRows"`
}

package api

// RecognizeRequest is the payload accepted by POST /api/recognize.
type RecognizeRequest struct {
	// MediaRef locates the clip to identify: a file path or URL the
	// extraction capabilities can fetch.
	MediaRef     string `json:"mediaRef"`
	RequesterID  string `json:"requesterId,omitempty"`
	Priority     int    `json:"priority,omitempty"`
	SceneContext string `json:"sceneContext,omitempty"`
}

// Alternate is a losing candidate reported alongside a low-confidence result.
type Alternate struct {
	Title      string  `json:"title"`
	Year       int     `json:"year,omitempty"`
	Confidence float64 `json:"confidence"`
}

// RecognitionResult describes a completed recognition in a transport-friendly
// format.
type RecognitionResult struct {
	RequestID         string      `json:"requestId"`
	Outcome           string      `json:"outcome"`
	Identified        bool        `json:"identified"`
	Title             string      `json:"title,omitempty"`
	Year              int         `json:"year,omitempty"`
	MediaType         string      `json:"mediaType,omitempty"`
	TMDBID            int64       `json:"tmdbId,omitempty"`
	Confidence        float64     `json:"confidence"`
	LowConfidence     bool        `json:"lowConfidence,omitempty"`
	ContributingKinds []string    `json:"contributingKinds,omitempty"`
	Explanation       string      `json:"explanation,omitempty"`
	Alternates        []Alternate `json:"alternates,omitempty"`
	DiagnosticID      string      `json:"diagnosticId,omitempty"`
	ElapsedMS         int64       `json:"elapsedMs"`
}

// RecognizeResponse wraps a single recognition result.
type RecognizeResponse struct {
	Result RecognitionResult `json:"result"`
}

// AdmissionStats mirrors governor occupancy for API consumers.
type AdmissionStats struct {
	Active          int    `json:"active"`
	MaxConcurrent   int    `json:"maxConcurrent"`
	Queued          int    `json:"queued"`
	MaxQueueSize    int    `json:"maxQueueSize"`
	Admitted        uint64 `json:"admitted"`
	Completed       uint64 `json:"completed"`
	RejectedFull    uint64 `json:"rejectedQueueFull"`
	TimedOut        uint64 `json:"timedOut"`
	ReclaimedStale  uint64 `json:"reclaimedStale"`
	AvgProcessingMS int64  `json:"avgProcessingMs"`
	EstimatedWaitMS int64  `json:"estimatedWaitMs"`
}

// CapabilityUsage reports rate-limiter occupancy for one upstream capability.
type CapabilityUsage struct {
	Capability    string `json:"capability"`
	Current       int    `json:"current"`
	Max           int    `json:"max"`
	WindowSeconds int    `json:"windowSeconds"`
}

// CapabilityHealth captures availability of one extraction collaborator.
type CapabilityHealth struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Healthy    bool   `json:"healthy"`
	Detail     string `json:"detail,omitempty"`
}

// StoreStats reports media store row counts.
type StoreStats struct {
	MediaRecords  int `json:"mediaRecords"`
	SubtitleLines int `json:"subtitleLines"`
	AuditRows     int `json:"auditRows"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Admission    AdmissionStats     `json:"admission"`
	RateLimits   []CapabilityUsage  `json:"rateLimits"`
	Capabilities []CapabilityHealth `json:"capabilities"`
	Store        StoreStats         `json:"store"`
}

// HealthResponse is the GET /api/health payload.
type HealthResponse struct {
	Healthy    bool               `json:"healthy"`
	Accepting  bool               `json:"accepting"`
	Components []CapabilityHealth `json:"components"`
}

// AuditEntry is one recognition audit row in transport form.
type AuditEntry struct {
	RequestID     string   `json:"requestId"`
	Outcome       string   `json:"outcome"`
	MediaRecordID int64    `json:"mediaRecordId,omitempty"`
	Confidence    float64  `json:"confidence"`
	LowConfidence bool     `json:"lowConfidence,omitempty"`
	SignalKinds   []string `json:"signalKinds,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
}

// AuditListResponse wraps recent audit entries.
type AuditListResponse struct {
	Entries []AuditEntry `json:"entries"`
}

// ResetResponse confirms an admin reset.
type ResetResponse struct {
	Reset bool `json:"reset"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
	DiagnosticID      string `json:"diagnosticId,omitempty"`
}

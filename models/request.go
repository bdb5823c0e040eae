package models

// ScanRequest is the body of POST /api/v1/scan and /api/v1/scan/async.
type ScanRequest struct {
	Brand   string   `json:"brand" binding:"required"`
	Domains []string `json:"domains" binding:"required"`

	// DeepScan enables the secondary product-page visits that backfill
	// missing seller/availability data on found records.
	DeepScan bool `json:"deep_scan"`

	// MaxAge is the maximum acceptable age (ms) of a cached result for this
	// (brand, domain) pair. 0 disables cache lookups. Sync endpoint only.
	MaxAge int `json:"max_age_ms"`

	// WebhookURL, if set on an async scan, receives a signed scan.completed
	// event when the job finishes.
	WebhookURL string `json:"webhook_url,omitempty"`

	// WebhookSecret signs the webhook body (HMAC-SHA256) when non-empty.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// ScanResponse is the body returned by the sync scan endpoint.
type ScanResponse struct {
	Success     bool            `json:"success"`
	Brand       string          `json:"brand,omitempty"`
	Summary     ScanSummary     `json:"summary"`
	Reports     []*DomainReport `json:"reports,omitempty"`
	CacheStatus string          `json:"cache_status,omitempty"` // "hit" or "miss"
	ElapsedMs   int64           `json:"elapsed_ms"`
	Error       *ErrorDetail    `json:"error,omitempty"`
}

// ScanJob tracks an async scan through its lifecycle.
// Status is one of "processing", "completed", "failed".
type ScanJob struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Brand     string          `json:"brand"`
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Summary   ScanSummary     `json:"summary"`
	Reports   []*DomainReport `json:"reports,omitempty"`
	CreatedAt int64           `json:"created_at"`
}

// ScanJobResponse acknowledges an accepted async scan.
type ScanJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	ActiveScans int    `json:"active_scans"`
	Version     string `json:"version"`
}

package dto

// Health statuses reported by /healthz and /readyz.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthResponse describes the payload returned by /healthz and /readyz.
// Checks is only populated by readiness probes and maps a dependency to "ok" or its error.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/M-STRONG/Evently-app/pkg/dto"
)

// Check probes one dependency and returns nil when it is reachable.
type Check func(ctx context.Context) error

// ReadinessHandler runs every check with a shared timeout and answers 503 if any fails.
func ReadinessHandler(service string, timeout time.Duration, checks map[string]Check) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := dto.HealthResponse{
			Status:  dto.StatusOK,
			Service: service,
			Version: Version,
			Checks:  make(map[string]string, len(names)),
		}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Status = dto.StatusDegraded
				resp.Checks[name] = err.Error()
				continue
			}
			resp.Checks[name] = dto.StatusOK
		}

		status := http.StatusOK
		if resp.Status != dto.StatusOK {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

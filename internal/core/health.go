package core

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout bounds the total time spent on health probes. A probe
// that exceeds it marks the service unhealthy.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is a subsystem health check registered by the application
// entry point (database connectivity, price snapshot freshness).
type HealthProbe interface {
	// Name returns a short identifier for the probe, used as the component
	// key in the health response.
	Name() string

	// Check probes the subsystem. It should respect the context deadline
	// and return an error only when the subsystem is unusable; degraded
	// but functional states report healthy with a message via Detail.
	Check(ctx context.Context) error

	// Detail returns a human-readable status line for the component, shown
	// even when the probe is healthy. May be empty.
	Detail() string
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	UptimeSecs int64                      `json:"uptime_seconds"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// RegisterHealthProbe adds a probe to the health endpoint. Call from the
// entry point before the server starts serving.
func (s *Server) RegisterHealthProbe(p HealthProbe) {
	s.healthProbes = append(s.healthProbes, p)
}

// HandleHealth executes all registered probes concurrently with a short
// timeout. Returns 200 when every probe is healthy and 503 when any critical
// subsystem fails. The endpoint is public and mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:     "healthy",
		Version:    s.Config.Build.Version,
		UptimeSecs: int64(time.Since(s.startedAt).Seconds()),
	}

	if len(s.healthProbes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	type probeResult struct {
		name   string
		detail string
		err    error
	}

	results := make(chan probeResult, len(s.healthProbes))
	var wg sync.WaitGroup
	for _, p := range s.healthProbes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()
			results <- probeResult{name: p.Name(), detail: p.Detail(), err: p.Check(ctx)}
		}(p)
	}
	wg.Wait()
	close(results)

	resp.Components = make(map[string]componentStatus, len(s.healthProbes))
	status := http.StatusOK
	for res := range results {
		cs := componentStatus{Status: "healthy", Message: res.detail}
		if res.err != nil {
			cs.Status = "unhealthy"
			cs.Message = res.err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
		resp.Components[res.name] = cs
	}

	JSON(w, r, status, resp)
}

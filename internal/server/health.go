package server

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is the result of probing a single dependency.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker probes one dependency.
type HealthChecker func(ctx context.Context) HealthCheck

// healthRegistry aggregates dependency probes behind the /health endpoint.
type healthRegistry struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	version string
	ready   bool
}

func newHealthRegistry(version string) *healthRegistry {
	return &healthRegistry{
		checks:  make(map[string]HealthChecker),
		version: version,
	}
}

func (h *healthRegistry) register(name string, checker HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = checker
}

func (h *healthRegistry) setReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// handleHealth runs all registered probes. Any unhealthy dependency makes
// the whole response unhealthy with a 503; degraded dependencies keep a 200.
func (h *healthRegistry) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	h.mu.RLock()
	checks := make(map[string]HealthChecker, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	version := h.version
	ready := h.ready
	h.mu.RUnlock()

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make([]HealthCheck, 0, len(checks)),
	}
	if !ready {
		response.Status = HealthStatusUnhealthy
	}

	for name, checker := range checks {
		check := checker(ctx)
		check.Name = name
		response.Checks = append(response.Checks, check)

		if check.Status == HealthStatusUnhealthy {
			response.Status = HealthStatusUnhealthy
		} else if check.Status == HealthStatusDegraded && response.Status == HealthStatusHealthy {
			response.Status = HealthStatusDegraded
		}
	}

	statusCode := http.StatusOK
	if response.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, response)
}

// StoreHealthChecker probes the similarity store.
func StoreHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "similarity store unreachable: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "similarity store OK",
		}
	}
}

// ProviderHealthChecker reports the configured multimodal provider. A nil
// checkFn means the provider is configured but not probed; a failing probe
// degrades the service rather than taking it down, since already-queued
// surveys can still be read.
func ProviderHealthChecker(providerName string, checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if checkFn == nil {
			return HealthCheck{
				Status:  HealthStatusHealthy,
				Message: "provider configured: " + providerName,
			}
		}
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: "provider degraded: " + err.Error(),
				Details: map[string]string{"provider": providerName},
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "provider OK",
			Details: map[string]string{"provider": providerName},
		}
	}
}

// TemporalHealthChecker probes Temporal connectivity for deployments that
// offload survey runs to the worker.
func TemporalHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: "temporal unreachable: " + err.Error(),
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "temporal OK",
		}
	}
}

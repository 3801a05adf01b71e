// health.go - Health monitoring for the note daemon
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a specific component
type ComponentHealth struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	LastCheck time.Time    `json:"last_check"`
}

// SystemHealth represents the overall daemon health
type SystemHealth struct {
	OverallStatus HealthStatus      `json:"overall_status"`
	Timestamp     time.Time         `json:"timestamp"`
	Components    []ComponentHealth `json:"components"`
	Uptime        time.Duration     `json:"uptime"`
	Version       string            `json:"version"`
}

// HealthChecker runs registered component checks on demand. Typical
// components: the ledger file, the wallet store, the claim circuit keys.
type HealthChecker struct {
	mu        sync.RWMutex
	checkers  map[string]func() error
	lastState map[string]*ComponentHealth
	startTime time.Time
	version   string
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		checkers:  make(map[string]func() error),
		lastState: make(map[string]*ComponentHealth),
		startTime: time.Now(),
		version:   version,
	}
}

// RegisterComponent registers a health check for a component
func (hc *HealthChecker) RegisterComponent(name string, checker func() error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkers[name] = checker
	hc.lastState[name] = &ComponentHealth{Name: name, Status: Healthy}
}

// RunChecks executes every registered check and returns the system view.
func (hc *HealthChecker) RunChecks() SystemHealth {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	overall := Healthy
	components := make([]ComponentHealth, 0, len(hc.checkers))
	for name, check := range hc.checkers {
		state := hc.lastState[name]
		state.LastCheck = time.Now()
		if err := check(); err != nil {
			state.Status = Unhealthy
			state.Message = err.Error()
			overall = Degraded
		} else {
			state.Status = Healthy
			state.Message = ""
		}
		components = append(components, *state)
	}
	if len(components) == 0 {
		overall = Degraded
	}

	return SystemHealth{
		OverallStatus: overall,
		Timestamp:     time.Now(),
		Components:    components,
		Uptime:        time.Since(hc.startTime),
		Version:       hc.version,
	}
}

// Handler serves the health report as JSON.
func (hc *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hc.RunChecks()
		w.Header().Set("Content-Type", "application/json")
		if report.OverallStatus != Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}

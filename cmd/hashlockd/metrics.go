// metrics.go - Metrics collection for the note daemon
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// MetricsCollector tracks protocol counters and gauges.
type MetricsCollector struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]float64
	started  time.Time
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		started:  time.Now(),
	}
}

// IncrementCounter increments a counter metric
func (mc *MetricsCollector) IncrementCounter(name string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.counters[name]++
}

// SetGauge sets a gauge metric
func (mc *MetricsCollector) SetGauge(name string, value float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.gauges[name] = value
}

// Counter returns the current value of a counter.
func (mc *MetricsCollector) Counter(name string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.counters[name]
}

// Protocol counter helpers. The names are stable, scrape-friendly keys.
func (mc *MetricsCollector) NoteCreated()   { mc.IncrementCounter("notes_created_total") }
func (mc *MetricsCollector) NoteConsumed()  { mc.IncrementCounter("notes_consumed_total") }
func (mc *MetricsCollector) ClaimRejected() { mc.IncrementCounter("claims_rejected_total") }
func (mc *MetricsCollector) AssetMinted(n uint64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.counters["asset_minted_total"] += int64(n)
}

// Snapshot returns a copy of all metrics.
func (mc *MetricsCollector) Snapshot() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	out := map[string]interface{}{
		"uptime_seconds": time.Since(mc.started).Seconds(),
	}
	for k, v := range mc.counters {
		out[k] = v
	}
	for k, v := range mc.gauges {
		out[k] = v
	}
	return out
}

// Handler serves the metrics snapshot as JSON.
func (mc *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mc.Snapshot())
	}
}

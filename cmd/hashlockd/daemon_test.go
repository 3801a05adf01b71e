package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	// First load materializes the defaults on disk.
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.NumNotes = 3
	cfg.ListenPort = 9000
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	reloaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.NumNotes != 3 || reloaded.ListenPort != 9000 {
		t.Error("config edits lost across reload")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero notes", func(c *Config) { c.NumNotes = 0 }},
		{"zero lock amount", func(c *Config) { c.LockAmount = 0 }},
		{"supply short", func(c *Config) { c.MaxSupply = c.LockAmount*uint64(c.NumNotes) - 1 }},
		{"no symbol", func(c *Config) { c.FaucetSymbol = "" }},
		{"bad port", func(c *Config) { c.ListenPort = 70000 }},
		{"bad rate limit", func(c *Config) { c.RateLimitBurst = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, 1, time.Hour)

	if !rl.Allow() || !rl.Allow() {
		t.Fatal("burst requests rejected")
	}
	if rl.Allow() {
		t.Fatal("request beyond burst allowed")
	}

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("exhausted limiter status = %d, want 429", rec.Code)
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(1, 1, 10*time.Millisecond)
	if !rl.Allow() {
		t.Fatal("first request rejected")
	}
	if rl.Allow() {
		t.Fatal("drained bucket allowed a request")
	}
	time.Sleep(30 * time.Millisecond)
	if !rl.Allow() {
		t.Error("bucket did not refill")
	}
}

func TestHealthChecker(t *testing.T) {
	hc := NewHealthChecker("test")
	hc.RegisterComponent("ok", func() error { return nil })

	rec := httptest.NewRecorder()
	hc.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d", rec.Code)
	}
	var health SystemHealth
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode health failed: %v", err)
	}
	if health.OverallStatus != Healthy {
		t.Errorf("status = %s, want healthy", health.OverallStatus)
	}

	hc.RegisterComponent("broken", func() error { return errors.New("component down") })
	rec = httptest.NewRecorder()
	hc.Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d, want 503", rec.Code)
	}
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	mc.NoteCreated()
	mc.NoteCreated()
	mc.NoteConsumed()
	mc.ClaimRejected()
	mc.AssetMinted(500)

	if got := mc.Counter("notes_created_total"); got != 2 {
		t.Errorf("notes_created_total = %d, want 2", got)
	}
	if got := mc.Counter("notes_consumed_total"); got != 1 {
		t.Errorf("notes_consumed_total = %d, want 1", got)
	}

	rec := httptest.NewRecorder()
	mc.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	var snap map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode metrics failed: %v", err)
	}
	if _, ok := snap["claims_rejected_total"]; !ok {
		t.Error("metrics snapshot missing claims_rejected_total")
	}
}

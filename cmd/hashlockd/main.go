// main.go - Note daemon: records notes, settles claims, serves health and
// metrics.
//
// The daemon runs a single operator participant over a shared ledger file.
// Claims arrive either transparently (masked secret, /claim) or as
// zero-knowledge claim transactions (/claim-proven); both settle at most once
// per note.
//
// Usage:
//
//	hashlockd -config hashlockd.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"hashlock/database"
	"hashlock/internal/hashlock"
	"hashlock/internal/transactions/consume"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "hashlockd.json", "path to daemon config")
	flag.Parse()

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}

	auditPath := ""
	if config.EnableAudit {
		auditPath = config.AuditLogPath
	}
	logger, err := NewLogger(config.LogLevel, config.LogFile, auditPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	for _, dir := range []string{config.WalletDir, config.KeyDir, config.StoreDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("cannot create directory %s: %v", dir, err)
		}
	}

	logger.Info("compiling claim circuit")
	ccs, err := consume.Compile()
	if err != nil {
		logger.Fatal("claim circuit compilation failed: %v", err)
	}
	pkPath := filepath.Join(config.KeyDir, "claim_pk.bin")
	vkPath := filepath.Join(config.KeyDir, "claim_vk.bin")
	_, vk, err := consume.SetupOrLoadKeys(ccs, pkPath, vkPath)
	if err != nil {
		logger.Fatal("claim key setup failed: %v", err)
	}
	logger.Info("claim circuit keys ready")

	store, err := database.New(filepath.Join(config.StoreDir, "wallet.db"))
	if err != nil {
		logger.Fatal("store open failed: %v", err)
	}
	defer store.Close()

	operator, err := hashlock.NewParticipant("operator", hashlock.RoleOperator,
		config.LedgerPath, config.WalletDir, logger.Zerolog())
	if err != nil {
		logger.Fatal("operator init failed: %v", err)
	}
	defer operator.Close()

	metrics := NewMetricsCollector()
	health := NewHealthChecker(version)
	health.RegisterComponent("ledger", func() error {
		if _, err := os.Stat(config.LedgerPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	})
	health.RegisterComponent("store", func() error {
		_, err := store.ClaimableBalance()
		return err
	})
	health.RegisterComponent("claim_keys", func() error {
		_, err := os.Stat(vkPath)
		return err
	})

	mux := operator.Mux()
	mux.HandleFunc("/claim-proven", func(w http.ResponseWriter, r *http.Request) {
		var tx consume.ClaimTx
		if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
			http.Error(w, "invalid claim tx", http.StatusBadRequest)
			return
		}
		operator.Mu.Lock()
		defer operator.Mu.Unlock()
		ledger, err := hashlock.LoadLedgerFromFile(config.LedgerPath)
		if err != nil {
			ledger = hashlock.NewLedger()
		}
		if err := consume.Apply(ledger, &tx, vk); err != nil {
			metrics.ClaimRejected()
			logger.Warn("proven claim rejected: %v", err)
			logger.Audit("claim_rejected", map[string]interface{}{
				"note_id":  tx.NoteID,
				"claimant": string(tx.Claimant),
				"reason":   err.Error(),
			})
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err := ledger.SaveToFile(config.LedgerPath); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		metrics.NoteConsumed()
		logger.Audit("note_consumed", map[string]interface{}{
			"note_id":  tx.NoteID,
			"claimant": string(tx.Claimant),
			"proven":   true,
		})
		fmt.Fprint(w, "note consumed")
	})
	mux.HandleFunc("/health", health.Handler())
	mux.HandleFunc("/metrics", metrics.Handler())

	limiter := NewRateLimiter(config.RateLimitBurst, config.RateLimitRefill, 100*time.Millisecond)
	addr := fmt.Sprintf(":%d", config.ListenPort)
	logger.Info("hashlockd %s listening on %s", version, addr)
	if err := http.ListenAndServe(addr, limiter.Middleware(mux)); err != nil {
		logger.Fatal("server error: %v", err)
	}
}

// config.go - Configuration management for the note daemon
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration
type Config struct {
	// Protocol settings
	NumNotes     int    `json:"num_notes"`
	LockAmount   uint64 `json:"lock_amount"`
	MaxSupply    uint64 `json:"max_supply"`
	FaucetSymbol string `json:"faucet_symbol"`

	// File paths
	LedgerPath string `json:"ledger_path"`
	WalletDir  string `json:"wallet_dir"`
	KeyDir     string `json:"key_dir"`
	StoreDir   string `json:"store_dir"`

	// Server
	ListenPort int `json:"listen_port"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Rate limiting
	RateLimitBurst  int `json:"rate_limit_burst"`
	RateLimitRefill int `json:"rate_limit_refill"`

	// Security
	EnableAudit  bool   `json:"enable_audit"`
	AuditLogPath string `json:"audit_log_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		NumNotes:        10,
		LockAmount:      100,
		MaxSupply:       100_000,
		FaucetSymbol:    "TST",
		LedgerPath:      "ledger.json",
		WalletDir:       "wallets",
		KeyDir:          "keys",
		StoreDir:        "store",
		ListenPort:      8545,
		LogLevel:        "info",
		LogFile:         "hashlockd.log",
		RateLimitBurst:  20,
		RateLimitRefill: 5,
		EnableAudit:     true,
		AuditLogPath:    "audit.log",
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	// Create default config and save it
	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.NumNotes <= 0 {
		return fmt.Errorf("num_notes must be positive")
	}
	if c.LockAmount == 0 {
		return fmt.Errorf("lock_amount must be positive")
	}
	if c.MaxSupply < c.LockAmount*uint64(c.NumNotes) {
		return fmt.Errorf("max_supply must cover num_notes * lock_amount")
	}
	if c.FaucetSymbol == "" {
		return fmt.Errorf("faucet_symbol is required")
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("listen_port must be a valid port")
	}
	if c.RateLimitBurst <= 0 || c.RateLimitRefill <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

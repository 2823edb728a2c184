// Package config holds all tunable parameters of the analysis pipeline.
// Loaded once at startup and treated as immutable; hot reload swaps the
// whole struct.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kyvernlabs/shield/internal/alert"
)

// Limits bounds transaction amounts.
type Limits struct {
	MaxSingleTransactionSOL float64 `yaml:"max_single_transaction_sol"`
	// DailyLimitSOL is consumed for completeness; aggregate enforcement
	// happens upstream of the pipeline.
	DailyLimitSOL float64 `yaml:"daily_limit_sol"`
}

// Thresholds defines risk score boundaries for automatic decisions.
type Thresholds struct {
	AutoBlock int `yaml:"auto_block"`
	AutoAllow int `yaml:"auto_allow"`
}

// Weights defines the score-fusion coefficients.
type Weights struct {
	Heuristic float64 `yaml:"heuristic"`
	LLM       float64 `yaml:"llm"`
}

// Pipeline controls orchestrator short-circuit behavior.
type Pipeline struct {
	SkipLLMOnHeuristicBlock bool `yaml:"skip_llm_on_heuristic_block"`
	// AlwaysRunSemantic runs the semantic layer even for requests already
	// decided BLOCK by an earlier layer. The verdict cannot be downgraded;
	// the extra run exists for audit completeness.
	AlwaysRunSemantic bool `yaml:"always_run_semantic"`
}

// Heuristic configures the rule-based layer.
type Heuristic struct {
	SuspiciousPatterns []string `yaml:"suspicious_patterns"`
}

// Source configures the untrusted-source detector.
type Source struct {
	TrustedDomains []string `yaml:"trusted_domains"`
	BlockedDomains []string `yaml:"blocked_domains"`
}

// LLM configures the semantic layer's external model service.
type LLM struct {
	Provider       string  `yaml:"provider"` // "openai-compatible" or "openai"
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
}

// Timeout returns the request timeout as a duration.
func (l LLM) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// Config is the full shield configuration.
type Config struct {
	Limits     Limits              `yaml:"limits"`
	Thresholds Thresholds          `yaml:"thresholds"`
	Weights    Weights             `yaml:"weights"`
	Pipeline   Pipeline            `yaml:"pipeline"`
	Heuristic  Heuristic           `yaml:"heuristic"`
	Source     Source              `yaml:"source"`
	LLM        LLM                 `yaml:"llm"`
	Blacklist  string              `yaml:"blacklist_path"`
	AuditLog   string              `yaml:"audit_log"`
	Alerts     []alert.AlertConfig `yaml:"alerts"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Limits: Limits{
			MaxSingleTransactionSOL: 10.0,
			DailyLimitSOL:           100.0,
		},
		Thresholds: Thresholds{
			AutoBlock: 80,
			AutoAllow: 20,
		},
		Weights: Weights{
			Heuristic: 0.4,
			LLM:       0.6,
		},
		Pipeline: Pipeline{
			SkipLLMOnHeuristicBlock: true,
		},
		Heuristic: Heuristic{
			SuspiciousPatterns: []string{
				`ignore\s+(previous|all)\s+instructions?`,
				`disregard\s+(previous|all|any)\s+(instructions?|rules?)`,
				`bypass\s+(security|rules?|restrictions?)`,
				`send\s+(all|everything|funds?)\s+to`,
				`transfer\s+(all|everything|max|maximum)`,
				`drain\s+(wallet|account|funds?)`,
				`emergency\s+override`,
				`admin\s+(mode|access|override)`,
				`system\s+prompt`,
				`you\s+are\s+now`,
				`new\s+instructions?:`,
				`forget\s+(everything|all)`,
			},
		},
		Source: Source{
			TrustedDomains: []string{
				"solana.com",
				"jup.ag",
				"jupiter.exchange",
				"coingecko.com",
				"coinmarketcap.com",
				"binance.com",
				"kraken.com",
				"coinbase.com",
				"github.com",
				"pyth.network",
			},
			BlockedDomains: []string{
				"sol-airdrop-claim.xyz",
				"free-crypto-rewards.net",
				"urgent-wallet-verify.com",
			},
		},
		LLM: LLM{
			Provider:       "openai-compatible",
			BaseURL:        "http://localhost:11434/v1/chat/completions",
			Model:          "llama3",
			TimeoutSeconds: 30,
			Temperature:    0.1,
			MaxTokens:      1024,
		},
		Blacklist: "data/blacklist.db",
	}
}

// Load reads configuration from a YAML file. Empty path falls back to
// ~/.shield/config.yaml. Missing file returns defaults. Invalid YAML
// returns an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads configuration and returns the SHA-256 of the raw
// YAML bytes on disk. When defaults are used the hash covers empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Default(), emptyHash(), nil
		}
		path = filepath.Join(home, ".shield", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), emptyHash(), nil
		}
		return nil, "", fmt.Errorf("config: read %s: %w", path, err)
	}

	// Start with defaults, YAML overwrites only specified fields.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	h := sha256.Sum256(data)
	return cfg, "sha256:" + hex.EncodeToString(h[:]), nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c *Config) Validate() error {
	if c.Limits.MaxSingleTransactionSOL <= 0 {
		return fmt.Errorf("config: max_single_transaction_sol must be positive")
	}
	if c.Thresholds.AutoBlock < 0 || c.Thresholds.AutoBlock > 100 {
		return fmt.Errorf("config: auto_block threshold %d outside [0,100]", c.Thresholds.AutoBlock)
	}
	if c.Thresholds.AutoAllow < 0 || c.Thresholds.AutoAllow > c.Thresholds.AutoBlock {
		return fmt.Errorf("config: auto_allow threshold %d outside [0,%d]", c.Thresholds.AutoAllow, c.Thresholds.AutoBlock)
	}
	if c.Weights.Heuristic < 0 || c.Weights.LLM < 0 {
		return fmt.Errorf("config: layer weights must be non-negative")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: llm timeout must be positive")
	}
	return nil
}

func emptyHash() string {
	h := sha256.Sum256(nil)
	return "sha256:" + hex.EncodeToString(h[:])
}

// Package config loads quill's configuration: a JSON file deep-merged
// over environment-derived defaults, with $ENV_VAR references resolved
// in credential-bearing fields.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the agent configuration.
type Config struct {
	// Provider selects the model backend: "openai" (any OpenAI-compatible
	// endpoint) or "anthropic".
	Provider string `json:"provider"`
	Model    string `json:"model"`
	// APIKey can use an env var reference: "$QUILL_API_KEY".
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`

	MaxOutput   int     `json:"max_output,omitempty"`  // max output tokens per request
	Temperature float64 `json:"temperature,omitempty"` // sampling temperature (0.0-1.0)

	// SystemPrompt seeds every fresh conversation.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// MaxTurns bounds model invocations within a single user turn.
	MaxTurns int `json:"max_turns,omitempty"`

	LedgerPath  string `json:"ledger_path,omitempty"`  // session ledger database
	HistoryPath string `json:"history_path,omitempty"` // REPL input history file

	// Prices computes per-request cost; zero means cost is not tracked.
	Prices Prices `json:"prices,omitempty"`

	LogLevel string `json:"log_level,omitempty"` // debug, info, warn, error
}

// Prices holds per-million-token prices for cost accounting.
type Prices struct {
	InputPerMTok  float64 `json:"input_per_mtok,omitempty"`
	OutputPerMTok float64 `json:"output_per_mtok,omitempty"`
}

// defaultSystemPrompt seeds conversations when neither config nor
// environment provides one.
const defaultSystemPrompt = "You are quill, a coding agent working in the user's current directory. " +
	"Use the provided tools to read, search, and modify files and to run shell commands. " +
	"Prefer small verifiable steps, and summarize what you changed when you finish."

// LoadConfig reads config from a file path merged over env defaults.
// If path is empty, only defaults apply. A QUILL_PRIVATE_CONFIG overlay
// file, when set, merges last so credentials can live outside the main
// config.
func LoadConfig(path string) (*Config, error) {
	base := defaultConfig()
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("marshal default config: %w", err)
	}

	merged := baseJSON
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		merged, err = deepMergeJSON(merged, fileData)
		if err != nil {
			return nil, fmt.Errorf("merge config %s: %w", path, err)
		}
	}

	if overlay := os.Getenv("QUILL_PRIVATE_CONFIG"); overlay != "" {
		overlayData, err := os.ReadFile(overlay)
		if err != nil {
			return nil, fmt.Errorf("read private config %s: %w", overlay, err)
		}
		merged, err = deepMergeJSON(merged, overlayData)
		if err != nil {
			return nil, fmt.Errorf("merge private config %s: %w", overlay, err)
		}
	}

	var cfg Config
	if err := json.Unmarshal(merged, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.APIKey = resolveEnv(cfg.APIKey)
	cfg.BaseURL = resolveEnv(cfg.BaseURL)
	cfg.LedgerPath = resolveEnv(cfg.LedgerPath)
	cfg.HistoryPath = resolveEnv(cfg.HistoryPath)

	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}

	return &cfg, nil
}

// Validate reports startup misconfiguration. A missing credential is
// fatal before any session starts.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("no API key configured: set QUILL_API_KEY or api_key in the config file")
	}
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown provider %q (want openai or anthropic)", c.Provider)
	}
	return nil
}

func deepMergeJSON(base, overlay []byte) ([]byte, error) {
	var baseMap map[string]interface{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &baseMap); err != nil {
			return nil, err
		}
	}
	if baseMap == nil {
		baseMap = map[string]interface{}{}
	}

	var overlayMap map[string]interface{}
	if len(overlay) > 0 {
		if err := json.Unmarshal(overlay, &overlayMap); err != nil {
			return nil, err
		}
	}
	mergeMap(baseMap, overlayMap)
	return json.Marshal(baseMap)
}

func mergeMap(dst, src map[string]interface{}) {
	for k, v := range src {
		dstObj, dstIsObj := dst[k].(map[string]interface{})
		srcObj, srcIsObj := v.(map[string]interface{})
		if dstIsObj && srcIsObj {
			mergeMap(dstObj, srcObj)
			dst[k] = dstObj
			continue
		}
		dst[k] = v
	}
}

// resolveEnv replaces $ENV_VAR references with actual values.
func resolveEnv(s string) string {
	if len(s) > 1 && s[0] == '$' {
		if v := os.Getenv(s[1:]); v != "" {
			return v
		}
	}
	return s
}

func defaultConfig() *Config {
	return &Config{
		Provider:     envOr("QUILL_PROVIDER", "openai"),
		Model:        envOr("QUILL_MODEL", "gpt-4.1"),
		APIKey:       os.Getenv("QUILL_API_KEY"),
		BaseURL:      envOr("QUILL_BASE_URL", ""),
		MaxOutput:    8192,
		SystemPrompt: envOr("QUILL_SYSTEM_PROMPT", ""),
		MaxTurns:     10,
		LedgerPath:   envOr("QUILL_LEDGER_PATH", defaultDataPath("ledger.db")),
		HistoryPath:  envOr("QUILL_HISTORY_PATH", defaultDataPath("history")),
		LogLevel:     envOr("QUILL_LOG_LEVEL", "warn"),
	}
}

// defaultDataPath places quill's state files under ~/.quill.
func defaultDataPath(file string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return file
	}
	return filepath.Join(home, ".quill", file)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ClaudeRoot          string  `toml:"claude_root"`
	StateDir            string  `toml:"state_dir"`
	JournalPath         string  `toml:"journal_path"`
	Endpoint            string  `toml:"endpoint"`
	APIKey              string  `toml:"api_key"`
	UserID              string  `toml:"user_id"`
	UserName            string  `toml:"user_name"`
	AssistantName       string  `toml:"assistant_name"`
	SizeThreshold       int     `toml:"size_threshold"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	LogLevel            string  `toml:"log_level"`
}

// LedgerDir is where per-session committed-id files live.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.StateDir, "ledger")
}

// EntityCacheDir is where per-project entity caches live.
func (c *Config) EntityCacheDir() string {
	return filepath.Join(c.StateDir, "entities")
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ClaudeRoot:          filepath.Join(home, ".claude", "projects"),
		StateDir:            filepath.Join(home, ".config", "engram", "state"),
		JournalPath:         filepath.Join(home, ".config", "engram", "journal.db"),
		Endpoint:            "http://localhost:8748",
		UserName:            "User",
		AssistantName:       "Assistant",
		SizeThreshold:       2400, // hard store limit is 2500; keep margin
		ConfidenceThreshold: 0.6,
		LogLevel:            "warn",
	}

	cfgPath := filepath.Join(home, ".config", "engram", "config.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	// expand ~ in paths
	cfg.ClaudeRoot = expandHome(cfg.ClaudeRoot, home)
	cfg.StateDir = expandHome(cfg.StateDir, home)
	cfg.JournalPath = expandHome(cfg.JournalPath, home)

	if cfg.SizeThreshold <= 0 {
		cfg.SizeThreshold = 2400
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.6
	}

	return cfg, nil
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}

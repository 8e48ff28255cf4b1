package config

import (
	"os"

	"github.com/joho/godotenv"
)

// #region env
const (
	EnvConfig  = "NEXTAPP_CONFIG"
	EnvDataDir = "NEXTAPP_DATA_DIR"
	EnvAddr    = "NEXTAPP_ADDR"
	EnvJournal = "NEXTAPP_JOURNAL"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Missing files are ignored and existing
// variables are never overwritten.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// FromEnv resolves the config file from flagPath, falling back to
// NEXTAPP_CONFIG, loads it, applies env overrides and validates.
func FromEnv(flagPath string) (Config, error) {
	path := flagPath
	if path == "" {
		path = envOr(EnvConfig, "")
	}
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion env

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables recognized by ApplyEnv.
const (
	EnvDir             = "QUILL_DIR"
	EnvAdminSecret     = "QUILL_ADMIN_SECRET"
	EnvLegacySecret    = "ADMIN_SECRET"
	EnvMinIndexEntries = "QUILL_MIN_INDEX_ENTRIES"
	EnvPort            = "QUILL_PORT"
)

// LoadDotEnv loads .env files from the working directory and baseDir.
// Variables already present in the environment are never overwritten, and
// missing files are skipped.
func LoadDotEnv(baseDir string) {
	paths := []string{".env"}
	if baseDir != "" {
		paths = append(paths, filepath.Join(baseDir, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAdminSecret)); v != "" {
		cfg.AdminSecret = v
	} else if v := strings.TrimSpace(os.Getenv(EnvLegacySecret)); v != "" {
		cfg.AdminSecret = v
	}

	if v := os.Getenv(EnvMinIndexEntries); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MinIndexEntries = n
		}
	}

	if v := os.Getenv(EnvPort); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Port = n
		}
	}
}

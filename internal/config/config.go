package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileName is the config file name inside the base directory.
const FileName = "config.json"

// Config holds application configuration.
type Config struct {
	// AdminSecret is the shared credential required by every HTTP API route.
	// Usually supplied through QUILL_ADMIN_SECRET (or ADMIN_SECRET) rather than the file.
	AdminSecret string `json:"admin_secret,omitempty"`

	// MinIndexEntries is the data-loss guard floor. The metadata index is never
	// rewritten in place with fewer entries than this. A value of 1 effectively
	// disables the guard.
	MinIndexEntries int `json:"min_index_entries,omitempty"`

	// AutosaveDelayMS is the quiet period before an edit session pushes a save.
	AutosaveDelayMS int `json:"autosave_delay_ms,omitempty"`

	// Bind and Port control the HTTP listener for `quill serve`.
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "console" (default) or "json".
	LogFormat string `json:"log_format,omitempty"`

	// TagGroupsFile optionally points at a YAML file describing the exclusive
	// tag groups. Relative paths are resolved against the base directory.
	TagGroupsFile string `json:"tag_groups_file,omitempty"`

	// DBMaxOpenConns limits open connections to the journal database.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MinIndexEntries: 4,
		AutosaveDelayMS: 900,
		Bind:            "127.0.0.1",
		Port:            3000,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// AutosaveDelay returns the autosave quiet period as a duration.
func (c *Config) AutosaveDelay() time.Duration {
	return time.Duration(c.AutosaveDelayMS) * time.Millisecond
}

// TagGroupsPath resolves TagGroupsFile against baseDir. Empty means use the built-in taxonomy.
func (c *Config) TagGroupsPath(baseDir string) string {
	if c.TagGroupsFile == "" {
		return ""
	}
	if filepath.IsAbs(c.TagGroupsFile) {
		return c.TagGroupsFile
	}
	return filepath.Join(baseDir, c.TagGroupsFile)
}

// Load loads configuration from baseDir/config.json and applies environment overrides.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.quill.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, FileName))
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.AdminSecret = firstString(overlay.AdminSecret, base.AdminSecret)
	result.Bind = firstString(overlay.Bind, base.Bind)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.LogFormat = firstString(overlay.LogFormat, base.LogFormat)
	result.TagGroupsFile = firstString(overlay.TagGroupsFile, base.TagGroupsFile)

	result.MinIndexEntries = firstInt(overlay.MinIndexEntries, base.MinIndexEntries)
	result.AutosaveDelayMS = firstInt(overlay.AutosaveDelayMS, base.AutosaveDelayMS)
	result.Port = firstInt(overlay.Port, base.Port)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

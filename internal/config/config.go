// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/omnomburp/chat-llama/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chat-llama configuration.
type Config struct {
	// Server settings
	Server ServerConfig `toml:"server"`

	// Chat defaults
	Chat ChatConfig `toml:"chat"`

	// Rendering settings
	Render RenderConfig `toml:"render"`

	// Storage settings
	Storage StorageConfig `toml:"storage"`
}

// ServerConfig contains chat server connection settings.
type ServerConfig struct {
	// URL is the chat server base URL
	URL string `toml:"url"`
}

// ChatConfig contains per-turn chat defaults.
type ChatConfig struct {
	// UseSearch enables web search for new conversations
	UseSearch bool `toml:"use_search"`
}

// RenderConfig contains HTML rendering settings.
type RenderConfig struct {
	// BaseOrigin resolves relative links in model output
	BaseOrigin string `toml:"base_origin"`
	// CodeStyle is the chroma style for highlighted code
	CodeStyle string `toml:"code_style"`
	// Theme selects the terminal display style: "dark", "light", or "auto"
	Theme string `toml:"theme"`
	// IntervalMs is the minimum milliseconds between live re-renders
	IntervalMs int `toml:"interval_ms"`
}

// StorageConfig contains conversation persistence settings.
type StorageConfig struct {
	// Dir is where conversations are saved (empty = ~/.chat-llama/conversations)
	Dir string `toml:"dir"`
	// ExportDir is where HTML transcripts are written (empty = current directory)
	ExportDir string `toml:"export_dir"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{URL: "http://localhost:3000"},
		Chat:   ChatConfig{UseSearch: false},
		Render: RenderConfig{
			BaseOrigin: "http://localhost:3000",
			CodeStyle:  "github",
			Theme:      "auto",
			IntervalMs: 100,
		},
	}
}

// ConfigDir returns the chat-llama configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".chat-llama"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConversationsDir returns the effective conversation storage directory.
func (c *Config) ConversationsDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "conversations"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration: defaults, then the config file if present,
// then environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if err := LoadTOML(cfg, path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, cfg)
}

// LoadFromPath loads configuration from an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDefaults backfills zero values left by a partial config file.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.URL == "" {
		c.Server.URL = def.Server.URL
	}
	if c.Render.BaseOrigin == "" {
		c.Render.BaseOrigin = def.Render.BaseOrigin
	}
	if c.Render.CodeStyle == "" {
		c.Render.CodeStyle = def.Render.CodeStyle
	}
	if c.Render.Theme == "" {
		c.Render.Theme = def.Render.Theme
	}
	if c.Render.IntervalMs == 0 {
		c.Render.IntervalMs = def.Render.IntervalMs
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies CHATLLAMA_* environment variables over the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CHATLLAMA_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("CHATLLAMA_BASE_ORIGIN"); v != "" {
		c.Render.BaseOrigin = v
	}
	if v := os.Getenv("CHATLLAMA_CODE_STYLE"); v != "" {
		c.Render.CodeStyle = v
	}
	if v := os.Getenv("CHATLLAMA_THEME"); v != "" {
		c.Render.Theme = v
	}
	if v := os.Getenv("CHATLLAMA_USE_SEARCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Chat.UseSearch = b
		}
	}
	if v := os.Getenv("CHATLLAMA_HISTORY_DIR"); v != "" {
		c.Storage.Dir = v
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return "config: " + e.Field + ": " + e.Message
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if u, err := url.Parse(c.Server.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return ValidationError{Field: "server.url", Message: "must be an absolute URL"}
	}
	if u, err := url.Parse(c.Render.BaseOrigin); err != nil || u.Scheme == "" || u.Host == "" {
		return ValidationError{Field: "render.base_origin", Message: "must be an absolute URL"}
	}
	switch strings.ToLower(c.Render.Theme) {
	case "dark", "light", "auto":
	default:
		return ValidationError{Field: "render.theme", Message: "must be dark, light, or auto"}
	}
	if c.Render.IntervalMs < 0 {
		return ValidationError{Field: "render.interval_ms", Message: "must not be negative"}
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default TOML path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML, atomically.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return err
	}
	return util.AtomicWriteFile(path, []byte(b.String()), 0600)
}

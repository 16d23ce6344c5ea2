// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for modeldeck.
//
// Configuration is read from ~/.modeldeck/config.toml when present, with
// built-in defaults and MODELDECK_* environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/modeldeck/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete modeldeck configuration.
type Config struct {
	// Server is the local inference server configuration.
	Server ServerConfig `toml:"server"`

	// Sources configures the cloud manifest and library catalog endpoints.
	Sources SourcesConfig `toml:"sources"`

	// Fetch configures retry/timeout behavior for JSON fetches.
	Fetch FetchConfig `toml:"fetch"`

	// Chat configures generation defaults and timeouts.
	Chat ChatConfig `toml:"chat"`

	// History configures transcript persistence.
	History HistoryConfig `toml:"history"`

	// UI configures the presentation layer.
	UI UIConfig `toml:"ui"`
}

// ServerConfig contains the inference server endpoint.
type ServerConfig struct {
	// Endpoint is the base URL of the inference server.
	// Uses an explicit IPv4 address instead of localhost to avoid IPv6
	// resolution issues on Windows.
	Endpoint string `toml:"endpoint"`
}

// SourcesConfig contains the model-source endpoints beyond the local server.
type SourcesConfig struct {
	// ManifestURL locates the cloud model manifest. May be an http(s) URL or
	// a local file path; a local path is watched for changes.
	ManifestURL string `toml:"manifest_url"`

	// LibraryURL is an optional library catalog endpoint. Empty disables
	// catalog browsing against a remote library.
	LibraryURL string `toml:"library_url"`
}

// FetchConfig contains retry and timeout settings for list fetches.
type FetchConfig struct {
	// Retries is the number of retries after the initial attempt.
	Retries int `toml:"retries"`
	// RetryDelayMs is the base backoff delay in milliseconds, doubled per
	// attempt.
	RetryDelayMs int `toml:"retry_delay_ms"`
	// TimeoutMs bounds a single fetch attempt.
	TimeoutMs int `toml:"timeout_ms"`
}

// ChatConfig contains generation defaults.
type ChatConfig struct {
	DefaultModel string  `toml:"default_model"`
	Temperature  float64 `toml:"temperature"`
	MaxTokens    int     `toml:"max_tokens"`
	// TimeoutMs bounds one whole streaming generation.
	TimeoutMs int `toml:"timeout_ms"`
	// PullTimeoutMs bounds one model install operation.
	PullTimeoutMs int `toml:"pull_timeout_ms"`
	// MultimodalPatterns lists name substrings that mark a model as
	// image-capable. A heuristic, not a protocol guarantee.
	MultimodalPatterns []string `toml:"multimodal_patterns"`
}

// HistoryConfig contains transcript persistence settings.
type HistoryConfig struct {
	// MaxMessages bounds how many transcript messages are retained; oldest
	// entries beyond the bound are dropped silently.
	MaxMessages int `toml:"max_messages"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is the default visual theme: "light", "dark", or "" to follow
	// the stored selection and system preference.
	Theme string `toml:"theme"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default values. The endpoint and timing values match the shipped client
// defaults; see the package doc for override precedence.
const (
	DefaultEndpoint      = "http://127.0.0.1:11434"
	DefaultManifestURL   = "manifest.json"
	DefaultRetries       = 2
	DefaultRetryDelayMs  = 450
	DefaultFetchTimeout  = 4000
	DefaultChatTimeout   = 120000
	DefaultPullTimeout   = 1800000
	DefaultModel         = "llama2"
	DefaultTemperature   = 0.7
	DefaultMaxTokens     = 512
	DefaultMaxMessages   = 1000
)

// DefaultMultimodalPatterns is the default image-capability allow-list.
var DefaultMultimodalPatterns = []string{"llava", "bakllava", "moondream", "vision", "minicpm-v"}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Endpoint: DefaultEndpoint,
		},
		Sources: SourcesConfig{
			ManifestURL: DefaultManifestURL,
		},
		Fetch: FetchConfig{
			Retries:      DefaultRetries,
			RetryDelayMs: DefaultRetryDelayMs,
			TimeoutMs:    DefaultFetchTimeout,
		},
		Chat: ChatConfig{
			DefaultModel:       DefaultModel,
			Temperature:        DefaultTemperature,
			MaxTokens:          DefaultMaxTokens,
			TimeoutMs:          DefaultChatTimeout,
			PullTimeoutMs:      DefaultPullTimeout,
			MultimodalPatterns: append([]string(nil), DefaultMultimodalPatterns...),
		},
		History: HistoryConfig{
			MaxMessages: DefaultMaxMessages,
		},
		UI: UIConfig{},
	}
}

// =============================================================================
// LOADING
// =============================================================================

var (
	loadOnce sync.Once
	loaded   *Config
	loadErr  error
)

// Load reads the configuration once and caches it for the process lifetime.
func Load() (*Config, error) {
	loadOnce.Do(func() {
		loaded, loadErr = load()
	})
	return loaded, loadErr
}

// LoadFrom reads a configuration file from an explicit path, bypassing the
// cache. Used by tests and the --config flag.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			cfg.normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".modeldeck", "config.toml")
}

// DataDir returns the directory holding persistent client state.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".modeldeck"
	}
	return filepath.Join(home, ".modeldeck")
}

// applyEnvOverrides applies MODELDECK_* environment variables on top of the
// file/default values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MODELDECK_ENDPOINT"); v != "" {
		cfg.Server.Endpoint = v
	}
	if v := os.Getenv("MODELDECK_MANIFEST_URL"); v != "" {
		cfg.Sources.ManifestURL = v
	}
	if v := os.Getenv("MODELDECK_LIBRARY_URL"); v != "" {
		cfg.Sources.LibraryURL = v
	}
	if v := os.Getenv("MODELDECK_MODEL"); v != "" {
		cfg.Chat.DefaultModel = v
	}
	if v := os.Getenv("MODELDECK_THEME"); v != "" {
		cfg.UI.Theme = v
	}
	if v := os.Getenv("MODELDECK_MAX_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.History.MaxMessages = n
		}
	}
}

// normalize clamps out-of-range values back to defaults so a bad config file
// degrades rather than breaking the client.
func (c *Config) normalize() {
	c.Server.Endpoint = strings.TrimRight(strings.TrimSpace(c.Server.Endpoint), "/")
	if c.Server.Endpoint == "" {
		c.Server.Endpoint = DefaultEndpoint
	}
	if c.Sources.ManifestURL == "" {
		c.Sources.ManifestURL = DefaultManifestURL
	}
	if c.Fetch.Retries < 0 {
		c.Fetch.Retries = DefaultRetries
	}
	if c.Fetch.RetryDelayMs <= 0 {
		c.Fetch.RetryDelayMs = DefaultRetryDelayMs
	}
	if c.Fetch.TimeoutMs <= 0 {
		c.Fetch.TimeoutMs = DefaultFetchTimeout
	}
	if c.Chat.TimeoutMs <= 0 {
		c.Chat.TimeoutMs = DefaultChatTimeout
	}
	if c.Chat.PullTimeoutMs <= 0 {
		c.Chat.PullTimeoutMs = DefaultPullTimeout
	}
	if c.Chat.DefaultModel == "" {
		c.Chat.DefaultModel = DefaultModel
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		c.Chat.Temperature = DefaultTemperature
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = DefaultMaxTokens
	}
	if len(c.Chat.MultimodalPatterns) == 0 {
		c.Chat.MultimodalPatterns = append([]string(nil), DefaultMultimodalPatterns...)
	}
	if c.History.MaxMessages <= 0 {
		c.History.MaxMessages = DefaultMaxMessages
	}
	if c.UI.Theme != "light" && c.UI.Theme != "dark" {
		c.UI.Theme = ""
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks configuration invariants that normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := url.Parse(c.Server.Endpoint); err != nil {
		return fmt.Errorf("invalid server endpoint %q: %w", c.Server.Endpoint, err)
	}
	if c.Sources.LibraryURL != "" {
		if _, err := url.Parse(c.Sources.LibraryURL); err != nil {
			return fmt.Errorf("invalid library URL %q: %w", c.Sources.LibraryURL, err)
		}
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// FetchTimeout returns the per-attempt fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutMs) * time.Millisecond
}

// RetryDelay returns the base backoff delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Fetch.RetryDelayMs) * time.Millisecond
}

// ChatTimeout returns the whole-generation timeout.
func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.Chat.TimeoutMs) * time.Millisecond
}

// PullTimeout returns the model-install timeout.
func (c *Config) PullTimeout() time.Duration {
	return time.Duration(c.Chat.PullTimeoutMs) * time.Millisecond
}

// ManifestIsLocalFile reports whether the manifest URL refers to a local
// file rather than an http(s) endpoint.
func (c *Config) ManifestIsLocalFile() bool {
	u := strings.TrimSpace(c.Sources.ManifestURL)
	if u == "" {
		return false
	}
	return !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://")
}

// IsMultimodal reports whether a model name matches the image-capability
// allow-list. Case-insensitive substring match.
func (c *Config) IsMultimodal(modelName string) bool {
	name := strings.ToLower(modelName)
	for _, p := range c.Chat.MultimodalPatterns {
		if p != "" && strings.Contains(name, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default path atomically.
func (c *Config) Save() error {
	return c.SaveTo(DefaultPath())
}

// SaveTo writes the configuration to an explicit path atomically.
func (c *Config) SaveTo(path string) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, []byte(sb.String()), 0644)
}

// ErrNotFound is returned when a requested config key does not exist.
var ErrNotFound = errors.New("config key not found")

// GetField returns a dotted config value as a display string ("server.endpoint",
// "chat.temperature", ...). Used by the config CLI command.
func (c *Config) GetField(key string) (string, error) {
	switch key {
	case "server.endpoint":
		return c.Server.Endpoint, nil
	case "sources.manifest_url":
		return c.Sources.ManifestURL, nil
	case "sources.library_url":
		return c.Sources.LibraryURL, nil
	case "fetch.retries":
		return strconv.Itoa(c.Fetch.Retries), nil
	case "fetch.retry_delay_ms":
		return strconv.Itoa(c.Fetch.RetryDelayMs), nil
	case "fetch.timeout_ms":
		return strconv.Itoa(c.Fetch.TimeoutMs), nil
	case "chat.default_model":
		return c.Chat.DefaultModel, nil
	case "chat.temperature":
		return strconv.FormatFloat(c.Chat.Temperature, 'f', -1, 64), nil
	case "chat.max_tokens":
		return strconv.Itoa(c.Chat.MaxTokens), nil
	case "chat.timeout_ms":
		return strconv.Itoa(c.Chat.TimeoutMs), nil
	case "chat.pull_timeout_ms":
		return strconv.Itoa(c.Chat.PullTimeoutMs), nil
	case "history.max_messages":
		return strconv.Itoa(c.History.MaxMessages), nil
	case "ui.theme":
		return c.UI.Theme, nil
	default:
		return "", ErrNotFound
	}
}

// SetField updates a dotted config value from its string form and
// re-normalizes. The caller persists with Save.
func (c *Config) SetField(key, value string) error {
	switch key {
	case "server.endpoint":
		c.Server.Endpoint = value
	case "sources.manifest_url":
		c.Sources.ManifestURL = value
	case "sources.library_url":
		c.Sources.LibraryURL = value
	case "fetch.retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		c.Fetch.Retries = n
	case "fetch.retry_delay_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		c.Fetch.RetryDelayMs = n
	case "fetch.timeout_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		c.Fetch.TimeoutMs = n
	case "chat.default_model":
		c.Chat.DefaultModel = value
	case "chat.temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number: %w", key, err)
		}
		c.Chat.Temperature = f
	case "chat.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		c.Chat.MaxTokens = n
	case "chat.timeout_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		c.Chat.TimeoutMs = n
	case "chat.pull_timeout_ms":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		c.Chat.PullTimeoutMs = n
	case "history.max_messages":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		c.History.MaxMessages = n
	case "ui.theme":
		c.UI.Theme = value
	default:
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	c.normalize()
	return c.Validate()
}

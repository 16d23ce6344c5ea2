// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Endpoint != "http://127.0.0.1:11434" {
		t.Errorf("Endpoint = %q", cfg.Server.Endpoint)
	}
	if cfg.Fetch.Retries != 2 {
		t.Errorf("Retries = %d, want 2", cfg.Fetch.Retries)
	}
	if cfg.Fetch.RetryDelayMs != 450 {
		t.Errorf("RetryDelayMs = %d, want 450", cfg.Fetch.RetryDelayMs)
	}
	if cfg.FetchTimeout() != 4*time.Second {
		t.Errorf("FetchTimeout() = %v, want 4s", cfg.FetchTimeout())
	}
	if cfg.ChatTimeout() != 120*time.Second {
		t.Errorf("ChatTimeout() = %v, want 120s", cfg.ChatTimeout())
	}
	if cfg.PullTimeout() != 30*time.Minute {
		t.Errorf("PullTimeout() = %v, want 30m", cfg.PullTimeout())
	}
	if cfg.Chat.Temperature != 0.7 {
		t.Errorf("Temperature = %f, want 0.7", cfg.Chat.Temperature)
	}
	if cfg.Chat.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", cfg.Chat.MaxTokens)
	}
	if cfg.History.MaxMessages != 1000 {
		t.Errorf("MaxMessages = %d, want 1000", cfg.History.MaxMessages)
	}
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Server.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %q", cfg.Server.Endpoint)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
endpoint = "http://10.0.0.5:11434/"

[fetch]
retries = 5
timeout_ms = 9000

[chat]
default_model = "qwen2.5:14b"
temperature = 0.2

[history]
max_messages = 50
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	// Trailing slash is stripped during normalization
	if cfg.Server.Endpoint != "http://10.0.0.5:11434" {
		t.Errorf("Endpoint = %q", cfg.Server.Endpoint)
	}
	if cfg.Fetch.Retries != 5 {
		t.Errorf("Retries = %d", cfg.Fetch.Retries)
	}
	if cfg.Chat.DefaultModel != "qwen2.5:14b" {
		t.Errorf("DefaultModel = %q", cfg.Chat.DefaultModel)
	}
	if cfg.History.MaxMessages != 50 {
		t.Errorf("MaxMessages = %d", cfg.History.MaxMessages)
	}
	// Unset sections keep defaults
	if cfg.Chat.PullTimeoutMs != DefaultPullTimeout {
		t.Errorf("PullTimeoutMs = %d", cfg.Chat.PullTimeoutMs)
	}
}

func TestNormalizeClampsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[fetch]
retries = -3
timeout_ms = -1

[chat]
temperature = 9.5
max_tokens = 0

[ui]
theme = "solarized"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Fetch.Retries != DefaultRetries {
		t.Errorf("Retries = %d, want default", cfg.Fetch.Retries)
	}
	if cfg.Fetch.TimeoutMs != DefaultFetchTimeout {
		t.Errorf("TimeoutMs = %d, want default", cfg.Fetch.TimeoutMs)
	}
	if cfg.Chat.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %f, want default", cfg.Chat.Temperature)
	}
	if cfg.Chat.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want default", cfg.Chat.MaxTokens)
	}
	if cfg.UI.Theme != "" {
		t.Errorf("Theme = %q, want empty", cfg.UI.Theme)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MODELDECK_ENDPOINT", "http://192.168.1.10:11434")
	t.Setenv("MODELDECK_MODEL", "mistral:7b")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Server.Endpoint != "http://192.168.1.10:11434" {
		t.Errorf("Endpoint = %q", cfg.Server.Endpoint)
	}
	if cfg.Chat.DefaultModel != "mistral:7b" {
		t.Errorf("DefaultModel = %q", cfg.Chat.DefaultModel)
	}
}

func TestManifestIsLocalFile(t *testing.T) {
	cfg := Default()

	cfg.Sources.ManifestURL = "manifest.json"
	if !cfg.ManifestIsLocalFile() {
		t.Error("relative path should be local")
	}

	cfg.Sources.ManifestURL = "https://example.com/manifest.json"
	if cfg.ManifestIsLocalFile() {
		t.Error("https URL should not be local")
	}
}

func TestIsMultimodal(t *testing.T) {
	cfg := Default()

	tests := []struct {
		model string
		want  bool
	}{
		{"llava:13b", true},
		{"LLaVA:13b", true},
		{"bakllava:latest", true},
		{"minicpm-v:8b", true},
		{"llama2:7b", false},
		{"qwen2.5-coder:14b", false},
	}
	for _, tc := range tests {
		if got := cfg.IsMultimodal(tc.model); got != tc.want {
			t.Errorf("IsMultimodal(%q) = %v, want %v", tc.model, got, tc.want)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Chat.DefaultModel = "roundtrip:1b"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if got.Chat.DefaultModel != "roundtrip:1b" {
		t.Errorf("DefaultModel = %q", got.Chat.DefaultModel)
	}
}

func TestGetField(t *testing.T) {
	cfg := Default()

	if v, err := cfg.GetField("server.endpoint"); err != nil || v != DefaultEndpoint {
		t.Errorf("GetField(server.endpoint) = %q, %v", v, err)
	}
	if v, err := cfg.GetField("chat.temperature"); err != nil || v != "0.7" {
		t.Errorf("GetField(chat.temperature) = %q, %v", v, err)
	}
	if _, err := cfg.GetField("no.such.key"); err != ErrNotFound {
		t.Errorf("GetField(bad key) err = %v, want ErrNotFound", err)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package theme resolves and persists the visual theme selection.
//
// Precedence: a stored user selection beats the config file, which beats the
// detected terminal background, which defaults to dark.
package theme

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/muesli/termenv"

	"github.com/jeranaias/modeldeck/internal/blob"
)

// Mode is a theme selection.
type Mode string

const (
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
)

// blobKey is where the user's selection persists.
const blobKey = "theme"

// detectBackground is swapped in tests; termenv probes the real terminal.
var detectBackground = termenv.HasDarkBackground

// Manager owns the active theme mode.
type Manager struct {
	store  *blob.Store // nil disables persistence
	logger *slog.Logger

	mu   sync.Mutex
	mode Mode
}

// NewManager resolves the initial mode and returns a manager.
// configuredTheme is the config-file value ("light", "dark", or empty).
func NewManager(store *blob.Store, configuredTheme string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{store: store, logger: logger}
	m.mode = m.resolve(configuredTheme)
	return m
}

func (m *Manager) resolve(configuredTheme string) Mode {
	if m.store != nil {
		var stored string
		err := m.store.GetJSON(blobKey, &stored)
		if err == nil {
			if mode, ok := parseMode(stored); ok {
				return mode
			}
		} else if !errors.Is(err, blob.ErrNotFound) {
			m.logger.Warn("failed to load stored theme", "error", err)
		}
	}

	if mode, ok := parseMode(configuredTheme); ok {
		return mode
	}

	if detectBackground() {
		return ModeDark
	}
	return ModeLight
}

// Mode returns the active theme mode.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// IsDark reports whether the active theme is dark.
func (m *Manager) IsDark() bool {
	return m.Mode() == ModeDark
}

// Set switches the active mode and persists the selection.
func (m *Manager) Set(mode Mode) error {
	if _, ok := parseMode(string(mode)); !ok {
		return fmt.Errorf("unknown theme %q", mode)
	}

	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()

	if m.store == nil {
		return nil
	}
	return m.store.PutJSON(blobKey, string(mode))
}

// Toggle flips between dark and light and returns the new mode.
func (m *Manager) Toggle() Mode {
	next := ModeDark
	if m.IsDark() {
		next = ModeLight
	}
	if err := m.Set(next); err != nil {
		m.logger.Warn("failed to persist theme", "error", err)
	}
	return next
}

func parseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeDark:
		return ModeDark, true
	case ModeLight:
		return ModeLight, true
	default:
		return "", false
	}
}

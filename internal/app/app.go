// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jeranaias/modeldeck/internal/blob"
	"github.com/jeranaias/modeldeck/internal/chat"
	"github.com/jeranaias/modeldeck/internal/config"
	"github.com/jeranaias/modeldeck/internal/fetch"
	"github.com/jeranaias/modeldeck/internal/ops"
	"github.com/jeranaias/modeldeck/internal/registry"
	"github.com/jeranaias/modeldeck/internal/theme"
	"github.com/jeranaias/modeldeck/internal/transcript"
)

// ErrNoModelSelected means a chat action ran with no active model.
var ErrNoModelSelected = errors.New("no model selected")

// ErrUnknownModel means the requested model is not in the registry.
var ErrUnknownModel = errors.New("unknown model")

// ErrNoPendingDelete means ConfirmDelete ran without a prior RequestDelete.
var ErrNoPendingDelete = errors.New("no delete awaiting confirmation")

// App is the headless application core: it owns the registry, operation
// tracker, chat engine, transcript, and theme, and exposes the command and
// query surface the front ends (TUI, REPL, CLI) drive.
//
// All methods are safe for concurrent use. Long-running commands (refresh,
// send, pull, delete) block; front ends run them on their own goroutines.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Registry   *registry.Registry
	Tracker    *ops.Tracker
	Engine     *chat.Engine
	Transcript *transcript.Store
	Theme      *theme.Manager

	notify func()

	mu            sync.Mutex
	tokenListener func(string)
	activeModel   string
	temperature   float64
	maxTokens     int
	status        string
	warnings      []string
	pendingDelete string
	pendingImages []transcript.Attachment
}

// New assembles the application core. store may be nil for a fully
// ephemeral session; notify may be nil when no front end wants redraw
// signals.
func New(cfg *config.Config, store *blob.Store, logger *slog.Logger, notify func()) *App {
	if logger == nil {
		logger = slog.Default()
	}

	fetcher := fetch.New(fetch.Options{
		Retries:    cfg.Fetch.Retries,
		RetryDelay: cfg.RetryDelay(),
		Timeout:    cfg.FetchTimeout(),
		Logger:     logger,
	})

	a := &App{
		cfg:         cfg,
		logger:      logger,
		notify:      notify,
		temperature: cfg.Chat.Temperature,
		maxTokens:   cfg.Chat.MaxTokens,
	}

	a.Registry = registry.New(cfg, fetcher, logger)
	a.Engine = chat.New(cfg, fetcher, a.Registry, logger)
	a.Transcript = transcript.NewStore(store, cfg.History.MaxMessages, logger)
	a.Theme = theme.NewManager(store, cfg.UI.Theme, logger)
	a.Tracker = ops.New(cfg, fetcher, a.Registry, ops.Options{
		Notify:     a.signal,
		ChatActive: a.Engine.Active,
		Refresh: func(ctx context.Context) error {
			return a.RefreshModels(ctx)
		},
		Logger: logger,
	})

	return a
}

// Init loads persisted state and performs the initial model refresh. The
// refresh error, if any, is surfaced after state is loaded so the UI can
// still start with warnings showing.
func (a *App) Init(ctx context.Context) error {
	if err := a.Transcript.Load(); err != nil {
		a.logger.Warn("failed to load transcript", "error", err)
	}
	return a.RefreshModels(ctx)
}

// signal asks the front end to redraw.
func (a *App) signal() {
	if a.notify != nil {
		a.notify()
	}
}

// SetTokenListener registers a callback that receives every streamed
// fragment in arrival order. Line-oriented front ends print from it.
func (a *App) SetTokenListener(fn func(string)) {
	a.mu.Lock()
	a.tokenListener = fn
	a.mu.Unlock()
}

// =============================================================================
// MODEL SELECTION AND REFRESH
// =============================================================================

// RefreshModels re-fetches all model sources and reconciles the active
// selection: a vanished model is deselected, and with nothing selected the
// configured default (or the first listed model) is picked.
func (a *App) RefreshModels(ctx context.Context) error {
	result, err := a.Registry.Refresh(ctx)

	a.mu.Lock()
	a.warnings = a.warnings[:0]
	for _, w := range result.Warnings {
		a.warnings = append(a.warnings, w.Message)
	}
	a.mu.Unlock()

	if err != nil {
		a.setStatus("Failed to load models from any source.")
		a.signal()
		return err
	}

	a.reconcileSelection()
	a.signal()
	return nil
}

func (a *App) reconcileSelection() {
	models := a.Registry.Models()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.activeModel != "" && a.lookupLocked(models, a.activeModel) == nil {
		a.activeModel = ""
	}
	if a.activeModel != "" || len(models) == 0 {
		return
	}

	if def := a.cfg.Chat.DefaultModel; def != "" {
		if d := a.lookupLocked(models, def); d != nil {
			a.activeModel = d.Name
			return
		}
	}
	a.activeModel = models[0].Name
}

func (a *App) lookupLocked(models []registry.Descriptor, name string) *registry.Descriptor {
	needle := registry.NormalizeName(name)
	for i := range models {
		if registry.NormalizeName(models[i].Name) == needle {
			return &models[i]
		}
	}
	return nil
}

// SelectModel switches the active model. Switching mid-conversation records
// a system turn so the transcript shows which model produced what. While a
// response is streaming the switch is refused, since the system turn would
// close the streaming tail and orphan the remaining tokens.
func (a *App) SelectModel(name string) error {
	if a.Engine.Active() {
		return chat.ErrStreamActive
	}

	d := a.Registry.Lookup(name)
	if d == nil {
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}

	a.mu.Lock()
	previous := a.activeModel
	a.activeModel = d.Name
	a.pendingImages = nil
	a.mu.Unlock()

	if previous != "" && previous != d.Name && a.Transcript.Len() > 0 {
		a.Transcript.Append(transcript.Message{
			Role:    transcript.RoleSystem,
			Content: "Switched to model " + d.Name,
			Model:   d.Name,
		})
	}

	a.setStatus("Model: " + d.Name + " (" + d.ProvenanceLabel() + ")")
	a.signal()
	return nil
}

// ActiveModel returns the selected model name, or empty.
func (a *App) ActiveModel() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeModel
}

// =============================================================================
// GENERATION SETTINGS
// =============================================================================

// SetTemperature clamps to [0, 2] and persists the setting.
func (a *App) SetTemperature(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 2 {
		v = 2
	}

	a.mu.Lock()
	a.temperature = v
	a.mu.Unlock()

	a.cfg.Chat.Temperature = v
	a.saveConfig()
	a.setStatus(fmt.Sprintf("Temperature: %.1f", v))
	a.signal()
}

// SetMaxTokens clamps to [1, 32768] and persists the setting.
func (a *App) SetMaxTokens(n int) {
	if n < 1 {
		n = 1
	}
	if n > 32768 {
		n = 32768
	}

	a.mu.Lock()
	a.maxTokens = n
	a.mu.Unlock()

	a.cfg.Chat.MaxTokens = n
	a.saveConfig()
	a.setStatus(fmt.Sprintf("Max tokens: %d", n))
	a.signal()
}

// Temperature returns the active sampling temperature.
func (a *App) Temperature() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.temperature
}

// MaxTokens returns the active generation cap.
func (a *App) MaxTokens() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxTokens
}

func (a *App) saveConfig() {
	if err := a.cfg.Save(); err != nil {
		a.logger.Warn("failed to save config", "error", err)
	}
}

// =============================================================================
// STATUS SURFACE
// =============================================================================

// Status returns the transient status line.
func (a *App) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Warnings returns the refresh warnings to banner.
func (a *App) Warnings() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.warnings...)
}

func (a *App) setStatus(s string) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

// =============================================================================
// TRANSCRIPT COMMANDS
// =============================================================================

// ClearTranscript wipes the conversation, in memory and on disk.
func (a *App) ClearTranscript() error {
	err := a.Transcript.Clear()
	a.setStatus("Conversation cleared.")
	a.signal()
	return err
}

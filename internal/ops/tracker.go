// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ops

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/modeldeck/internal/config"
	"github.com/jeranaias/modeldeck/internal/fetch"
	"github.com/jeranaias/modeldeck/internal/registry"
)

// =============================================================================
// PHASES AND STATES
// =============================================================================

// Phase is the lifecycle stage of a tracked operation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseDone
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseDone:
		return "done"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// State is a snapshot of one tracked operation.
type State struct {
	Phase   Phase
	Message string
}

// internal mutable record; cancel aborts the running operation.
type record struct {
	phase   Phase
	message string
	cancel  context.CancelFunc
}

// =============================================================================
// PRECONDITION ERRORS
// =============================================================================

// Precondition failures are warnings, not operation errors: no network call
// was attempted and no state changed.
var (
	// ErrPullInProgress signals a duplicate pull request for a model that is
	// already downloading.
	ErrPullInProgress = errors.New("a download for this model is already in progress")

	// ErrChatActive signals that a delete was refused while a chat response
	// is streaming.
	ErrChatActive = errors.New("cannot delete a model while a response is streaming")
)

// IsPrecondition reports whether err is a synchronous precondition warning.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrPullInProgress) || errors.Is(err, ErrChatActive)
}

// =============================================================================
// TRACKER
// =============================================================================

// notifyInterval bounds UI redraw frequency during pull streams. The message
// state itself is still updated on every frame.
const notifyInterval = 150 * time.Millisecond

// Options wires a Tracker to its collaborators.
type Options struct {
	// Notify is invoked (throttled during streams) when tracked state
	// changed and the UI should redraw. May be nil.
	Notify func()

	// ChatActive reports whether a chat response is currently streaming.
	// Used as the delete precondition. May be nil (treated as never active).
	ChatActive func() bool

	// Refresh re-syncs the model registry after a completed operation. May
	// be nil.
	Refresh func(ctx context.Context) error

	Logger *slog.Logger
}

// Tracker maintains per-model pull and delete operation state, independent
// of registry refreshes. Keys are normalized model names; at most one active
// operation exists per key and kind.
type Tracker struct {
	cfg     *config.Config
	fetcher *fetch.Client
	reg     *registry.Registry
	opts    Options
	logger  *slog.Logger

	// limiter throttles Notify during progress streams.
	limiter *rate.Limiter

	mu      sync.Mutex
	pulls   map[string]*record
	deletes map[string]*record
}

// New creates an operation tracker.
func New(cfg *config.Config, fetcher *fetch.Client, reg *registry.Registry, opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:     cfg,
		fetcher: fetcher,
		reg:     reg,
		opts:    opts,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(notifyInterval), 1),
		pulls:   make(map[string]*record),
		deletes: make(map[string]*record),
	}
}

// =============================================================================
// STATE ACCESS
// =============================================================================

// PullState returns the tracked pull state for a model, if any.
func (t *Tracker) PullState(name string) (State, bool) {
	return t.lookup(t.pulls, name)
}

// DeleteState returns the tracked delete state for a model, if any.
func (t *Tracker) DeleteState(name string) (State, bool) {
	return t.lookup(t.deletes, name)
}

func (t *Tracker) lookup(m map[string]*record, name string) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := m[registry.NormalizeName(name)]
	if !ok {
		return State{}, false
	}
	return State{Phase: rec.phase, Message: rec.message}, true
}

// Operation is a named tracked operation, for display.
type Operation struct {
	Name  string
	Kind  string // "pull" or "delete"
	State State
}

// Operations lists every tracked operation, pulls first, sorted by name.
func (t *Tracker) Operations() []Operation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Operation, 0, len(t.pulls)+len(t.deletes))
	for name, rec := range t.pulls {
		out = append(out, Operation{Name: name, Kind: "pull", State: State{Phase: rec.phase, Message: rec.message}})
	}
	for name, rec := range t.deletes {
		out = append(out, Operation{Name: name, Kind: "delete", State: State{Phase: rec.phase, Message: rec.message}})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == "pull"
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ClearPull drops any tracked pull state for a model. Safe when none exists.
func (t *Tracker) ClearPull(name string) {
	t.clear(t.pulls, name)
}

// ClearDelete drops any tracked delete state for a model.
func (t *Tracker) ClearDelete(name string) {
	t.clear(t.deletes, name)
}

func (t *Tracker) clear(m map[string]*record, name string) {
	t.mu.Lock()
	delete(m, registry.NormalizeName(name))
	t.mu.Unlock()
	t.notifyNow()
}

// CancelPull aborts an active pull. A second cancel, or cancelling a model
// with no active pull, is a no-op.
func (t *Tracker) CancelPull(name string) {
	t.mu.Lock()
	rec, ok := t.pulls[registry.NormalizeName(name)]
	var cancel context.CancelFunc
	if ok && rec.phase == PhaseActive && rec.cancel != nil {
		cancel = rec.cancel
		rec.cancel = nil
	}
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// =============================================================================
// NOTIFICATION
// =============================================================================

// notifyNow signals the UI unconditionally. Used for phase transitions.
func (t *Tracker) notifyNow() {
	if t.opts.Notify != nil {
		t.opts.Notify()
	}
}

// notifyThrottled signals the UI at most once per interval. Used for
// progress frames.
func (t *Tracker) notifyThrottled() {
	if t.opts.Notify != nil && t.limiter.Allow() {
		t.opts.Notify()
	}
}

func (t *Tracker) chatActive() bool {
	return t.opts.ChatActive != nil && t.opts.ChatActive()
}

// refreshRegistry re-syncs the model lists after a completed operation.
// Failures are logged, not surfaced: the operation itself already succeeded.
func (t *Tracker) refreshRegistry(ctx context.Context) {
	if t.opts.Refresh == nil {
		return
	}
	if err := t.opts.Refresh(ctx); err != nil {
		t.logger.Warn("model refresh after operation failed", "error", err)
	}
}

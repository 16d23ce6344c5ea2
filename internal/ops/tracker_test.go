// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ops

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/modeldeck/internal/config"
	"github.com/jeranaias/modeldeck/internal/fetch"
	"github.com/jeranaias/modeldeck/internal/registry"
)

func newTestTracker(t *testing.T, handler http.Handler, opts Options) *Tracker {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Server.Endpoint = srv.URL

	fetcher := fetch.New(fetch.Options{Retries: 0, Timeout: 5 * time.Second})
	reg := registry.New(cfg, fetcher, nil)
	return New(cfg, fetcher, reg, opts)
}

func streamFrames(w http.ResponseWriter, frames ...string) {
	flusher, _ := w.(http.Flusher)
	for _, f := range frames {
		fmt.Fprintln(w, f)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func TestStartPullSuccessRefreshesAndClears(t *testing.T) {
	var pullCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		pullCalls.Add(1)
		streamFrames(w,
			`{"status":"pulling manifest"}`,
			`{"status":"downloading","completed":1048576,"total":2097152}`,
			`{"status":"success"}`,
		)
	})

	var refreshed atomic.Bool
	tracker := newTestTracker(t, mux, Options{
		Refresh: func(ctx context.Context) error {
			refreshed.Store(true)
			return nil
		},
	})

	err := tracker.StartPull(context.Background(), "llama2")
	require.NoError(t, err)
	assert.Equal(t, int32(1), pullCalls.Load())
	assert.True(t, refreshed.Load())

	// Completed pulls are forgotten; the registry is the source of truth.
	_, tracked := tracker.PullState("llama2")
	assert.False(t, tracked)
}

func TestStartPullErrorFrameAborts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		streamFrames(w,
			`{"status":"pulling manifest"}`,
			`{"error":"pull model manifest: file does not exist"}`,
		)
	})

	tracker := newTestTracker(t, mux, Options{})
	err := tracker.StartPull(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file does not exist")

	state, tracked := tracker.PullState("nope")
	require.True(t, tracked)
	assert.Equal(t, PhaseError, state.Phase)
	assert.Contains(t, state.Message, "Download failed")

	tracker.ClearPull("nope")
	_, tracked = tracker.PullState("nope")
	assert.False(t, tracked)
}

func TestStartPullSkipsMalformedFrames(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		streamFrames(w,
			`not json at all`,
			`{"status":"success"}`,
		)
	})

	tracker := newTestTracker(t, mux, Options{})
	require.NoError(t, tracker.StartPull(context.Background(), "llama2"))
}

func TestStartPullDuplicateGuard(t *testing.T) {
	var pullCalls atomic.Int32
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		pullCalls.Add(1)
		streamFrames(w, `{"status":"downloading"}`)
		<-release
		streamFrames(w, `{"status":"success"}`)
	})

	tracker := newTestTracker(t, mux, Options{})

	done := make(chan error, 1)
	go func() {
		done <- tracker.StartPull(context.Background(), "llama2")
	}()

	// Wait for the first pull to become active.
	require.Eventually(t, func() bool {
		state, ok := tracker.PullState("llama2")
		return ok && state.Phase == PhaseActive
	}, 5*time.Second, 10*time.Millisecond)

	// Name normalization applies to the guard too.
	err := tracker.StartPull(context.Background(), "LLAMA2")
	require.ErrorIs(t, err, ErrPullInProgress)
	assert.True(t, IsPrecondition(err))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), pullCalls.Load())
}

func TestCancelPull(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		streamFrames(w, `{"status":"downloading"}`)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	tracker := newTestTracker(t, mux, Options{})

	done := make(chan error, 1)
	go func() {
		done <- tracker.StartPull(context.Background(), "llama2")
	}()

	require.Eventually(t, func() bool {
		state, ok := tracker.PullState("llama2")
		return ok && state.Phase == PhaseActive
	}, 5*time.Second, 10*time.Millisecond)

	tracker.CancelPull("llama2")
	// Second cancel is a safe no-op.
	tracker.CancelPull("llama2")

	err := <-done
	require.Error(t, err)
	assert.True(t, fetch.IsCancelled(err))

	state, tracked := tracker.PullState("llama2")
	require.True(t, tracked)
	assert.Equal(t, PhaseError, state.Phase)
	assert.Equal(t, "Download cancelled", state.Message)
}

func TestStartDeleteUsesDeleteVerb(t *testing.T) {
	var methods []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/delete", func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusOK)
	})

	var refreshed atomic.Bool
	tracker := newTestTracker(t, mux, Options{
		Refresh: func(ctx context.Context) error {
			refreshed.Store(true)
			return nil
		},
	})

	require.NoError(t, tracker.StartDelete(context.Background(), "llama2"))
	assert.Equal(t, []string{http.MethodDelete}, methods)
	assert.True(t, refreshed.Load())

	_, tracked := tracker.DeleteState("llama2")
	assert.False(t, tracked)
}

func TestStartDeleteFallsBackToPost(t *testing.T) {
	var methods []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/delete", func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	tracker := newTestTracker(t, mux, Options{})
	require.NoError(t, tracker.StartDelete(context.Background(), "llama2"))
	assert.Equal(t, []string{http.MethodDelete, http.MethodPost}, methods)
}

func TestStartDeleteServerErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/delete", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	tracker := newTestTracker(t, mux, Options{})
	err := tracker.StartDelete(context.Background(), "llama2")
	require.Error(t, err)

	// A 500 never triggers the POST fallback.
	assert.Equal(t, int32(1), calls.Load())

	state, tracked := tracker.DeleteState("llama2")
	require.True(t, tracked)
	assert.Equal(t, PhaseError, state.Phase)
}

func TestStartDeleteRefusedWhileChatActive(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/delete", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	tracker := newTestTracker(t, mux, Options{
		ChatActive: func() bool { return true },
	})

	err := tracker.StartDelete(context.Background(), "llama2")
	require.ErrorIs(t, err, ErrChatActive)
	assert.True(t, IsPrecondition(err))
	assert.Equal(t, int32(0), calls.Load())
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/modeldeck/internal/config"
	"github.com/jeranaias/modeldeck/internal/fetch"
	"github.com/jeranaias/modeldeck/internal/registry"
)

func newTestEngine(t *testing.T, handler http.Handler) *Engine {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Server.Endpoint = srv.URL

	fetcher := fetch.New(fetch.Options{Retries: 0, Timeout: 5 * time.Second})
	reg := registry.New(cfg, fetcher, nil)
	return New(cfg, fetcher, reg, nil)
}

func chatHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func TestSendAccumulatesTokensInOrder(t *testing.T) {
	engine := newTestEngine(t, chatHandler(
		`{"message":{"content":"Hello"}}`,
		`{"message":{"content":", "}}`,
		`{"message":{"content":"world"}}`,
		`{"done":true,"eval_count":12,"prompt_eval_count":3}`,
	))

	var tokens []string
	result, err := engine.Send(context.Background(), Request{
		Model:    "llama2",
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, func(s string) { tokens = append(tokens, s) })

	require.NoError(t, err)
	assert.Equal(t, "Hello, world", result.Content)
	assert.Equal(t, []string{"Hello", ", ", "world"}, tokens)
	assert.True(t, result.TokensKnown)
	assert.Equal(t, int64(15), result.Tokens)
}

func TestSendRequestBody(t *testing.T) {
	var got chatRequest
	engine := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprintln(w, `{"message":{"content":"ok"},"done":true}`)
	}))

	_, err := engine.Send(context.Background(), Request{
		Model:       "phi3",
		Messages:    []Message{{Role: "user", Content: "question"}},
		Temperature: 0.7,
		MaxTokens:   512,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "phi3", got.Model)
	assert.True(t, got.Stream)
	assert.Equal(t, 0.7, got.Options.Temperature)
	assert.Equal(t, 512, got.Options.NumPredict)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestSendEmptyStreamIsFailure(t *testing.T) {
	engine := newTestEngine(t, chatHandler(`{"done":true}`))

	_, err := engine.Send(context.Background(), Request{Model: "llama2"}, nil)
	require.ErrorIs(t, err, ErrNoContent)
}

func TestSendHTTPErrorSurfaces(t *testing.T) {
	engine := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := engine.Send(context.Background(), Request{Model: "missing"}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, fetch.HTTPStatus(err))
}

func TestSendErrorFrameAborts(t *testing.T) {
	engine := newTestEngine(t, chatHandler(
		`{"message":{"content":"partial"}}`,
		`{"error":"model requires more system memory"}`,
	))

	result, err := engine.Send(context.Background(), Request{Model: "llama2"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system memory")
	// Partial content is preserved alongside the failure.
	assert.Equal(t, "partial", result.Content)
}

func TestStopCancelsStream(t *testing.T) {
	started := make(chan struct{})
	engine := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		fmt.Fprintln(w, `{"message":{"content":"partial"}}`)
		if flusher != nil {
			flusher.Flush()
		}
		close(started)
		<-r.Context().Done()
	}))

	type settled struct {
		result Result
		err    error
	}
	done := make(chan settled, 1)
	tokens := make(chan struct{}, 1)
	go func() {
		res, err := engine.Send(context.Background(), Request{Model: "llama2"}, func(string) {
			select {
			case tokens <- struct{}{}:
			default:
			}
		})
		done <- settled{res, err}
	}()

	<-started
	// Wait for the partial token to land client-side before stopping, so the
	// stop is guaranteed to race behind the content it must preserve.
	<-tokens
	assert.True(t, engine.Active())
	engine.Stop()
	// A second stop with no session is a no-op.
	engine.Stop()

	s := <-done
	require.Error(t, s.err)
	assert.True(t, fetch.IsCancelled(s.err))
	assert.Equal(t, "partial", s.result.Content)
	assert.False(t, engine.Active())
	assert.Equal(t, "Response stopped.", UserMessage(s.err))
}

func TestSendTimeoutSurfacesAsStop(t *testing.T) {
	engine := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		fmt.Fprintln(w, `{"message":{"content":"partial"}}`)
		if flusher != nil {
			flusher.Flush()
		}
		// Stall until the client gives up.
		<-r.Context().Done()
	}))
	engine.cfg.Chat.TimeoutMs = 200

	result, err := engine.Send(context.Background(), Request{Model: "llama2"}, nil)

	// A deadline expiry ends the stream the way a user stop does: partial
	// content kept, neutral status, no connectivity error.
	require.Error(t, err)
	assert.True(t, fetch.IsCancelled(err))
	assert.Equal(t, "partial", result.Content)
	assert.Equal(t, "Response stopped.", UserMessage(err))
}

func TestSendRejectsConcurrentStream(t *testing.T) {
	started := make(chan struct{})
	engine := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		fmt.Fprintln(w, `{"message":{"content":"x"}}`)
		if flusher != nil {
			flusher.Flush()
		}
		close(started)
		<-r.Context().Done()
	}))

	go engine.Send(context.Background(), Request{Model: "llama2"}, nil)
	<-started

	_, err := engine.Send(context.Background(), Request{Model: "llama2"}, nil)
	require.ErrorIs(t, err, ErrStreamActive)

	engine.Stop()
}

func TestUserMessageClassification(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Response stopped.",
		UserMessage(&fetch.Error{Kind: fetch.KindCancelled}))
	assert.Equal(t, "Unable to reach the inference server. Ensure it is running and accessible.",
		UserMessage(&fetch.Error{Kind: fetch.KindUnreachable}))
	assert.Equal(t, "No content received from the model.", UserMessage(ErrNoContent))
	assert.Contains(t, UserMessage(assert.AnError), "Error: ")
}

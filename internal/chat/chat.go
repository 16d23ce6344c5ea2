// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/jeranaias/modeldeck/internal/config"
	"github.com/jeranaias/modeldeck/internal/fetch"
	"github.com/jeranaias/modeldeck/internal/registry"
)

// StopMarker is appended to partial content when the user stops a streaming
// response.
const StopMarker = "\n\n[Response stopped by user]"

// ErrNoContent means the stream ended cleanly but produced nothing.
var ErrNoContent = errors.New("no content received from model")

// ErrStreamActive means a second send was attempted while one is in flight.
var ErrStreamActive = errors.New("a response is already streaming")

// =============================================================================
// REQUEST AND RESULT
// =============================================================================

// Message is one conversation turn on the wire.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	// Images holds base64-encoded payloads for multimodal models.
	Images []string `json:"images,omitempty"`
}

// Request describes one generation call.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Result is a settled generation.
type Result struct {
	// Content is the full accumulated response text.
	Content string
	// Tokens is eval_count plus every prompt_eval_count seen. Valid only
	// when TokensKnown is set.
	Tokens      int64
	TokensKnown bool
}

// wire shapes for POST /api/chat
type chatRequest struct {
	Model    string      `json:"model"`
	Messages []Message   `json:"messages"`
	Stream   bool        `json:"stream"`
	Options  chatOptions `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine issues streaming generation requests. One session may be in flight
// at a time; Stop aborts it and a second Stop is a no-op.
type Engine struct {
	cfg     *config.Config
	fetcher *fetch.Client
	reg     *registry.Registry
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a chat engine.
func New(cfg *config.Config, fetcher *fetch.Client, reg *registry.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, fetcher: fetcher, reg: reg, logger: logger}
}

// Active reports whether a response is currently streaming.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Stop aborts the in-flight stream, if any. The engine surfaces the abort
// as a cancelled failure; partial content stays with the caller.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Send issues one streaming generation request, invoking onToken for every
// content fragment in arrival order before returning. It blocks until the
// stream settles; callers run it on their own goroutine.
//
// The request endpoint is the model's explicit override when the registry
// has one, otherwise the configured default server. The configured chat
// timeout bounds the whole exchange.
func (e *Engine) Send(ctx context.Context, req Request, onToken func(string)) (Result, error) {
	streamCtx, cancel := context.WithTimeout(ctx, e.cfg.ChatTimeout())

	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		cancel()
		return Result{}, ErrStreamActive
	}
	e.cancel = cancel
	e.mu.Unlock()

	// Session teardown: null the handle so a later Stop is a no-op.
	defer func() {
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
		cancel()
	}()

	result, err := e.stream(streamCtx, req, onToken)
	if err != nil {
		// The engine's deadline aborts the transfer the same way a user stop
		// does, so it surfaces as a stop with the partial content kept, not
		// as a connectivity failure.
		if errors.Is(streamCtx.Err(), context.DeadlineExceeded) {
			err = &fetch.Error{Kind: fetch.KindCancelled, Message: "response stopped at timeout", Cause: err}
		}
		return result, err
	}
	if result.Content == "" {
		return result, ErrNoContent
	}
	return result, nil
}

func (e *Engine) stream(ctx context.Context, req Request, onToken func(string)) (Result, error) {
	url := e.reg.EndpointFor(req.Model) + "/api/chat"

	payload, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   true,
		Options: chatOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return Result{}, &fetch.Error{Kind: fetch.KindInvalid, Message: "failed to encode chat request", Cause: err}
	}

	resp, err := e.fetcher.Do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return Result{}, &fetch.Error{
			Kind:    fetch.KindHTTP,
			Message: "chat request failed: " + resp.Status,
			Status:  resp.StatusCode,
		}
	}

	var (
		acc accumulator
		dec = newDecoder(e.logger)
		buf = make([]byte, 4096)
	)

	emit := func(f frame) { acc.apply(f, onToken) }

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			dec.feed(buf[:n], emit)
			if acc.err != nil {
				return acc.result(), acc.err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return acc.result(), fetch.Classify(ctx, readErr)
		}
	}
	dec.flush(emit)

	return acc.result(), acc.err
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// accumulator folds frames into the final result.
//
// Token bookkeeping matches the server's counter semantics: eval_count is
// cumulative, so a frame carrying it replaces the running total;
// prompt_eval_count is reported per context evaluation and adds on top each
// time it appears. The final total is therefore order-independent.
type accumulator struct {
	content    []byte
	evalTotal  int64
	promptAdd  int64
	seenTokens bool
	err        error
}

func (a *accumulator) apply(f frame, onToken func(string)) {
	if a.err != nil {
		return
	}
	if f.Error != "" {
		a.err = errors.New(f.Error)
		return
	}
	if f.Message.Content != "" {
		a.content = append(a.content, f.Message.Content...)
		if onToken != nil {
			onToken(f.Message.Content)
		}
	}
	if f.EvalCount != nil {
		a.evalTotal = *f.EvalCount
		a.seenTokens = true
	}
	if f.PromptEvalCount != nil {
		a.promptAdd += *f.PromptEvalCount
		a.seenTokens = true
	}
}

func (a *accumulator) result() Result {
	return Result{
		Content:     string(a.content),
		Tokens:      a.evalTotal + a.promptAdd,
		TokensKnown: a.seenTokens,
	}
}

// =============================================================================
// ERROR PRESENTATION
// =============================================================================

// UserMessage maps a settled stream error to user-facing text. Cancellation
// is neutral, never an error message; connectivity failures get actionable
// wording; the rest surface verbatim.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case fetch.IsCancelled(err):
		return "Response stopped."
	case fetch.IsUnreachable(err) || fetch.IsTimeout(err):
		return "Unable to reach the inference server. Ensure it is running and accessible."
	case errors.Is(err, ErrNoContent):
		return "No content received from the model."
	default:
		return "Error: " + err.Error()
	}
}

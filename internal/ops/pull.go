// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jeranaias/modeldeck/internal/fetch"
	"github.com/jeranaias/modeldeck/internal/registry"
)

// pullFrame is one progress line of the streaming install response.
type pullFrame struct {
	Status    string `json:"status"`
	Completed int64  `json:"completed"`
	Total     int64  `json:"total"`
	Error     string `json:"error"`
}

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// StartPull downloads a model, blocking until the stream ends. Callers run
// it on their own goroutine (the TUI wraps it in a command).
//
// If a pull for the same model is already active, it returns
// ErrPullInProgress without issuing a request. On success the registry is
// refreshed and the tracked state cleared; on failure the state stays in
// the error phase until cleared.
func (t *Tracker) StartPull(ctx context.Context, name string) error {
	key := registry.NormalizeName(name)

	pullCtx, cancel := context.WithTimeout(ctx, t.cfg.PullTimeout())

	t.mu.Lock()
	if rec, ok := t.pulls[key]; ok && rec.phase == PhaseActive {
		t.mu.Unlock()
		cancel()
		return ErrPullInProgress
	}
	t.pulls[key] = &record{
		phase:   PhaseActive,
		message: "Starting download...",
		cancel:  cancel,
	}
	t.mu.Unlock()
	defer cancel()

	t.logger.Info("pull started", "model", name)
	t.notifyNow()

	err := t.runPull(pullCtx, key, name)
	if err != nil {
		msg := pullErrorMessage(err)
		t.setPull(key, PhaseError, msg)
		t.logger.Warn("pull failed", "model", name, "error", err)
		t.notifyNow()
		return err
	}

	t.setPull(key, PhaseDone, "Download complete")
	t.logger.Info("pull complete", "model", name)
	t.notifyNow()

	// The refreshed registry becomes the source of truth for "installed",
	// so the completed state is dropped rather than remembered.
	t.refreshRegistry(ctx)
	t.ClearPull(name)
	return nil
}

func (t *Tracker) runPull(ctx context.Context, key, name string) error {
	url := t.reg.EndpointFor(name) + "/api/pull"
	payload, err := json.Marshal(pullRequest{Name: name, Stream: true})
	if err != nil {
		return &fetch.Error{Kind: fetch.KindInvalid, Message: "failed to encode pull request", Cause: err}
	}

	resp, err := t.fetcher.Do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &fetch.Error{
			Kind:    fetch.KindHTTP,
			Message: "install request failed: " + resp.Status,
			Status:  resp.StatusCode,
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var frame pullFrame
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			// Malformed lines are skipped, not fatal.
			t.logger.Debug("skipping malformed pull frame", "line", line)
			continue
		}

		if frame.Error != "" {
			return errors.New(frame.Error)
		}

		if frame.Status != "" || frame.Total > 0 {
			t.setPull(key, PhaseActive, FormatProgress(frame.Status, frame.Completed, frame.Total))
			t.notifyThrottled()
		}
	}

	if err := scanner.Err(); err != nil {
		return fetch.Classify(ctx, err)
	}
	return nil
}

// setPull updates phase and message under the lock. The message is written
// on every frame so the latest value is always readable, regardless of
// notify throttling.
func (t *Tracker) setPull(key string, phase Phase, message string) {
	t.mu.Lock()
	if rec, ok := t.pulls[key]; ok {
		rec.phase = phase
		rec.message = message
	}
	t.mu.Unlock()
}

func pullErrorMessage(err error) string {
	switch {
	case fetch.IsCancelled(err):
		return "Download cancelled"
	case fetch.IsTimeout(err):
		return "Download timed out"
	case fetch.IsUnreachable(err):
		return "Unable to reach the inference server"
	default:
		return "Download failed: " + err.Error()
	}
}

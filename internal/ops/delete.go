// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ops

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jeranaias/modeldeck/internal/fetch"
	"github.com/jeranaias/modeldeck/internal/registry"
)

type deleteRequest struct {
	Name string `json:"name"`
}

// StartDelete removes a model from the local server, blocking until done.
// Confirmation is the caller's concern; this runs only after the user
// accepted.
//
// Precondition: refused with ErrChatActive while a response is streaming.
// The primary request uses DELETE; servers answering 404, 405, or 501 (or
// not answering at all) get exactly one POST fallback against the same
// endpoint. Any other failure is fatal for the operation.
func (t *Tracker) StartDelete(ctx context.Context, name string) error {
	if t.chatActive() {
		return ErrChatActive
	}

	key := registry.NormalizeName(name)

	t.mu.Lock()
	if rec, ok := t.deletes[key]; ok && rec.phase == PhaseActive {
		t.mu.Unlock()
		return nil
	}
	t.deletes[key] = &record{phase: PhaseActive, message: "Deleting " + name + "..."}
	t.mu.Unlock()

	t.logger.Info("delete started", "model", name)
	t.notifyNow()

	err := t.runDelete(ctx, name)
	if err != nil {
		t.mu.Lock()
		if rec, ok := t.deletes[key]; ok {
			rec.phase = PhaseError
			rec.message = "Delete failed: " + err.Error()
		}
		t.mu.Unlock()
		t.logger.Warn("delete failed", "model", name, "error", err)
		t.notifyNow()
		return err
	}

	t.logger.Info("delete complete", "model", name)
	t.refreshRegistry(ctx)
	t.ClearDelete(name)
	return nil
}

func (t *Tracker) runDelete(ctx context.Context, name string) error {
	url := t.reg.EndpointFor(name) + "/api/delete"
	payload, err := json.Marshal(deleteRequest{Name: name})
	if err != nil {
		return &fetch.Error{Kind: fetch.KindInvalid, Message: "failed to encode delete request", Cause: err}
	}

	status, err := t.deleteOnce(ctx, http.MethodDelete, url, payload)
	if err == nil && status >= 200 && status <= 299 {
		return nil
	}

	// Some deployments route only POST here. Fall back exactly once, and
	// only for "not supported" shaped answers.
	if err != nil || status == http.StatusNotFound || status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		if err != nil {
			t.logger.Debug("DELETE failed, retrying as POST", "error", err)
		} else {
			t.logger.Debug("DELETE not supported, retrying as POST", "status", status)
		}

		status, err = t.deleteOnce(ctx, http.MethodPost, url, payload)
		if err != nil {
			return err
		}
		if status >= 200 && status <= 299 {
			return nil
		}
	}

	return &fetch.Error{
		Kind:    fetch.KindHTTP,
		Message: "delete request failed",
		Status:  status,
	}
}

func (t *Tracker) deleteOnce(ctx context.Context, method, url string, payload []byte) (int, error) {
	resp, err := t.fetcher.Do(ctx, method, url, payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(retries int) *Client {
	return New(Options{
		Retries:    retries,
		RetryDelay: time.Millisecond,
		Timeout:    time.Second,
	})
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"llama2"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	if err := testClient(0).GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.Name != "llama2" {
		t.Errorf("Name = %q", out.Name)
	}
}

func TestGetJSONRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var out map[string]any
	if err := testClient(2).GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGetJSONExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient(2).GetJSON(context.Background(), srv.URL, &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls.Load())
	}
	if HTTPStatus(err) != http.StatusBadGateway {
		t.Errorf("HTTPStatus() = %d, want 502", HTTPStatus(err))
	}
}

func TestGetJSONOnceDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var out map[string]any
	if err := testClient(5).GetJSONOnce(context.Background(), srv.URL, &out); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestUnreachableClassification(t *testing.T) {
	// Closed port: connection refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	var out map[string]any
	err := testClient(0).GetJSON(context.Background(), url, &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsUnreachable(err) {
		t.Errorf("IsUnreachable() = false for %v", err)
	}
}

func TestCancelledClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var out map[string]any
	err := testClient(0).GetJSON(ctx, srv.URL, &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsCancelled(err) {
		t.Errorf("IsCancelled() = false for %v", err)
	}
}

func TestTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	c := New(Options{Timeout: 50 * time.Millisecond, RetryDelay: time.Millisecond})
	var out map[string]any
	err := c.GetJSONOnce(context.Background(), srv.URL, &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTimeout(err) {
		t.Errorf("IsTimeout() = false for %v", err)
	}
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := testClient(0).PostJSON(context.Background(), srv.URL, map[string]string{"name": "x"}, &out)
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if !out.OK {
		t.Error("OK = false")
	}
}

func TestReadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	os.WriteFile(path, []byte(`{"cloudModels":[{"name":"a"}]}`), 0644)

	var out struct {
		CloudModels []struct {
			Name string `json:"name"`
		} `json:"cloudModels"`
	}
	if err := ReadJSONFile(path, &out); err != nil {
		t.Fatalf("ReadJSONFile() error = %v", err)
	}
	if len(out.CloudModels) != 1 || out.CloudModels[0].Name != "a" {
		t.Errorf("parsed = %+v", out)
	}

	if err := ReadJSONFile(filepath.Join(t.TempDir(), "missing.json"), &out); !IsUnreachable(err) {
		t.Errorf("missing file: IsUnreachable() = false, err = %v", err)
	}
}

func TestClassifyContextErrors(t *testing.T) {
	if got := Classify(context.Background(), nil); got != nil {
		t.Errorf("Classify(nil) = %v, want nil", got)
	}
	if got := Classify(context.Background(), context.Canceled); got.Kind != KindCancelled {
		t.Errorf("Classify(Canceled).Kind = %v, want KindCancelled", got.Kind)
	}
	if got := Classify(context.Background(), context.DeadlineExceeded); got.Kind != KindTimeout {
		t.Errorf("Classify(DeadlineExceeded).Kind = %v, want KindTimeout", got.Kind)
	}
}

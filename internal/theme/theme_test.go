// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package theme

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/modeldeck/internal/blob"
)

func openBlob(t *testing.T) *blob.Store {
	t.Helper()
	store, err := blob.Open(filepath.Join(t.TempDir(), "modeldeck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func withDetected(t *testing.T, dark bool) {
	t.Helper()
	prev := detectBackground
	detectBackground = func() bool { return dark }
	t.Cleanup(func() { detectBackground = prev })
}

func TestResolveStoredBeatsConfig(t *testing.T) {
	withDetected(t, true)
	store := openBlob(t)
	require.NoError(t, store.PutJSON("theme", "light"))

	m := NewManager(store, "dark", nil)
	assert.Equal(t, ModeLight, m.Mode())
}

func TestResolveConfigBeatsDetection(t *testing.T) {
	withDetected(t, true)
	m := NewManager(nil, "light", nil)
	assert.Equal(t, ModeLight, m.Mode())
}

func TestResolveFallsBackToDetection(t *testing.T) {
	withDetected(t, true)
	assert.Equal(t, ModeDark, NewManager(nil, "", nil).Mode())

	withDetected(t, false)
	assert.Equal(t, ModeLight, NewManager(nil, "", nil).Mode())
}

func TestResolveIgnoresInvalidStoredValue(t *testing.T) {
	withDetected(t, true)
	store := openBlob(t)
	require.NoError(t, store.PutJSON("theme", "solarized"))

	m := NewManager(store, "", nil)
	assert.Equal(t, ModeDark, m.Mode())
}

func TestSetPersists(t *testing.T) {
	withDetected(t, true)
	store := openBlob(t)

	m := NewManager(store, "", nil)
	require.NoError(t, m.Set(ModeLight))
	assert.False(t, m.IsDark())

	// A new manager over the same store sees the selection.
	again := NewManager(store, "dark", nil)
	assert.Equal(t, ModeLight, again.Mode())
}

func TestSetRejectsUnknownMode(t *testing.T) {
	m := NewManager(nil, "", nil)
	require.Error(t, m.Set(Mode("sepia")))
}

func TestToggle(t *testing.T) {
	withDetected(t, true)
	m := NewManager(nil, "", nil)

	assert.Equal(t, ModeLight, m.Toggle())
	assert.Equal(t, ModeDark, m.Toggle())
}

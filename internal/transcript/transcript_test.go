// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/modeldeck/internal/blob"
)

func openBlob(t *testing.T, dir string) *blob.Store {
	t.Helper()
	store, err := blob.Open(filepath.Join(dir, "modeldeck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAssignsIdentity(t *testing.T) {
	s := NewStore(nil, 10, nil)

	msg := s.Append(Message{Role: RoleUser, Content: "hello", Model: "llama2"})
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())

	other := s.Append(Message{Role: RoleUser, Content: "again"})
	assert.NotEqual(t, msg.ID, other.ID)
}

func TestStreamingTailMutation(t *testing.T) {
	s := NewStore(nil, 10, nil)

	s.Append(Message{Role: RoleUser, Content: "question"})
	s.StartAssistant("llama2")
	require.True(t, s.Streaming())

	require.NoError(t, s.AppendContent("Hel"))
	require.NoError(t, s.AppendContent("lo"))
	s.FinishStream()

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, last.Role)
	assert.Equal(t, "Hello", last.Content)
	assert.Equal(t, "llama2", last.Model)

	// After the stream closes the tail is immutable.
	require.ErrorIs(t, s.AppendContent("more"), ErrNoActiveStream)
}

func TestAppendContentWithoutStream(t *testing.T) {
	s := NewStore(nil, 10, nil)
	require.ErrorIs(t, s.AppendContent("x"), ErrNoActiveStream)

	// A completed append closes any notion of a stream.
	s.StartAssistant("llama2")
	s.Append(Message{Role: RoleUser, Content: "interrupt"})
	require.ErrorIs(t, s.AppendContent("x"), ErrNoActiveStream)
}

func TestRetentionBound(t *testing.T) {
	s := NewStore(nil, 5, nil)

	for i := 0; i < 8; i++ {
		s.Append(Message{Role: RoleUser, Content: fmt.Sprintf("msg-%d", i)})
	}

	msgs := s.Messages()
	require.Len(t, msgs, 5)
	// Oldest entries were silently dropped.
	assert.Equal(t, "msg-3", msgs[0].Content)
	assert.Equal(t, "msg-7", msgs[4].Content)
}

func TestPersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	store := openBlob(t, dir)

	s := NewStore(store, 100, nil)
	s.Append(Message{Role: RoleUser, Content: "persisted", Model: "llama2"})
	s.StartAssistant("llama2")
	require.NoError(t, s.AppendContent("reply"))
	s.FinishStream()

	// A fresh store over the same blob replays the sequence verbatim.
	reloaded := NewStore(store, 100, nil)
	require.NoError(t, reloaded.Load())

	msgs := reloaded.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "persisted", msgs[0].Content)
	assert.Equal(t, "reply", msgs[1].Content)
	assert.Equal(t, msgs[0].ID, s.Messages()[0].ID)
}

func TestLoadMissingBlobIsFresh(t *testing.T) {
	store := openBlob(t, t.TempDir())
	s := NewStore(store, 100, nil)
	require.NoError(t, s.Load())
	assert.Zero(t, s.Len())
}

func TestLoadAppliesBound(t *testing.T) {
	store := openBlob(t, t.TempDir())

	big := NewStore(store, 100, nil)
	for i := 0; i < 10; i++ {
		big.Append(Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	small := NewStore(store, 3, nil)
	require.NoError(t, small.Load())
	msgs := small.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m7", msgs[0].Content)
}

func TestClearWipesMemoryAndPersistence(t *testing.T) {
	store := openBlob(t, t.TempDir())

	s := NewStore(store, 100, nil)
	s.Append(Message{Role: RoleUser, Content: "gone soon"})
	require.NoError(t, s.Clear())
	assert.Zero(t, s.Len())

	reloaded := NewStore(store, 100, nil)
	require.NoError(t, reloaded.Load())
	assert.Zero(t, reloaded.Len())
}

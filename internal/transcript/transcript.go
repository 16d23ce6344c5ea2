// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/modeldeck/internal/blob"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// blobKey is where the serialized transcript lives in the blob store.
const blobKey = "transcript"

// ErrNoActiveStream means a streaming mutation was attempted with no stream
// open.
var ErrNoActiveStream = errors.New("no streaming message to append to")

// Message is one transcript turn. All fields are immutable after creation
// except Content, which may grow while the message is the active streaming
// tail.
type Message struct {
	ID        string       `json:"id"`
	Role      string       `json:"role"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
	// Model is the model name that produced or received this turn.
	Model  string       `json:"model,omitempty"`
	Images []Attachment `json:"images,omitempty"`
}

// Store is the conversation transcript: an append-only ordered sequence with
// one relaxed exception, the content of the most recently appended assistant
// message may be mutated in place while its stream is active.
//
// The store retains at most max messages; older entries are silently
// dropped. Every append or streaming mutation is persisted.
type Store struct {
	persist *blob.Store // nil disables persistence
	max     int
	logger  *slog.Logger

	mu        sync.Mutex
	messages  []Message
	streaming bool
}

// NewStore creates a transcript bounded to max messages. persist may be nil
// for an ephemeral transcript.
func NewStore(persist *blob.Store, max int, logger *slog.Logger) *Store {
	if max <= 0 {
		max = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{persist: persist, max: max, logger: logger}
}

// Load replays the persisted transcript into memory. Call once at startup,
// before any new activity. A missing blob is a fresh transcript, not an
// error.
func (s *Store) Load() error {
	if s.persist == nil {
		return nil
	}

	var messages []Message
	err := s.persist.GetJSON(blobKey, &messages)
	if errors.Is(err, blob.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.messages = messages
	s.trimLocked()
	s.mu.Unlock()
	return nil
}

// Append adds a completed message to the transcript. A missing ID or
// timestamp is filled in.
func (s *Store) Append(msg Message) Message {
	msg = stamp(msg)

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.streaming = false
	s.trimLocked()
	s.saveLocked()
	s.mu.Unlock()
	return msg
}

// StartAssistant appends an empty assistant message and opens it for
// streaming mutation.
func (s *Store) StartAssistant(model string) Message {
	msg := stamp(Message{Role: RoleAssistant, Model: model})

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.streaming = true
	s.trimLocked()
	s.saveLocked()
	s.mu.Unlock()
	return msg
}

// AppendContent grows the streaming tail's content. Only valid between
// StartAssistant and FinishStream.
func (s *Store) AppendContent(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.streaming || len(s.messages) == 0 {
		return ErrNoActiveStream
	}
	s.messages[len(s.messages)-1].Content += text
	s.saveLocked()
	return nil
}

// FinishStream closes the streaming tail; its content is immutable from now
// on. Closing with no open stream is a no-op.
func (s *Store) FinishStream() {
	s.mu.Lock()
	s.streaming = false
	s.saveLocked()
	s.mu.Unlock()
}

// Streaming reports whether a streaming tail is open.
func (s *Store) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// Messages returns a copy of the transcript in order.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Len returns the number of retained messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Last returns the most recent message, if any.
func (s *Store) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Clear wipes the in-memory and persisted transcript. Both happen under the
// lock, so no partially-cleared state is observable.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.streaming = false
	if s.persist == nil {
		return nil
	}
	return s.persist.Delete(blobKey)
}

// trimLocked enforces the retention bound, dropping the oldest entries.
func (s *Store) trimLocked() {
	if len(s.messages) <= s.max {
		return
	}
	keep := s.messages[len(s.messages)-s.max:]
	s.messages = append([]Message(nil), keep...)
}

// saveLocked persists the current sequence. Persistence failures are logged,
// not surfaced: the in-memory transcript stays authoritative for the
// session.
func (s *Store) saveLocked() {
	if s.persist == nil {
		return
	}
	if err := s.persist.PutJSON(blobKey, s.messages); err != nil {
		s.logger.Warn("failed to persist transcript", "error", err)
	}
}

func stamp(msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg
}

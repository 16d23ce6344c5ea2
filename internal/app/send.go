// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/modeldeck/internal/chat"
	"github.com/jeranaias/modeldeck/internal/fetch"
	"github.com/jeranaias/modeldeck/internal/ops"
	"github.com/jeranaias/modeldeck/internal/registry"
	"github.com/jeranaias/modeldeck/internal/transcript"
)

// =============================================================================
// IMAGE ATTACHMENTS
// =============================================================================

// AttachImages stages image files for the next user message. The active
// model must be image-capable per the configured allow-list.
func (a *App) AttachImages(paths []string) error {
	model := a.ActiveModel()
	if model == "" {
		return ErrNoModelSelected
	}
	if !a.cfg.IsMultimodal(model) {
		return fmt.Errorf("model %s does not accept images", model)
	}

	attachments, err := transcript.LoadImages(paths)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.pendingImages = attachments
	a.mu.Unlock()

	a.setStatus(fmt.Sprintf("Attached %d image(s).", len(attachments)))
	a.signal()
	return nil
}

// PendingImages returns the staged attachments for display.
func (a *App) PendingImages() []transcript.Attachment {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]transcript.Attachment(nil), a.pendingImages...)
}

// =============================================================================
// SEND AND STOP
// =============================================================================

// SendMessage appends the user turn and streams the assistant reply into
// the transcript, signalling the front end on every delivered fragment. It
// blocks until the stream settles.
//
// A user stop is not an error: the partial reply is kept with a stop marker
// appended, and a neutral status is set.
func (a *App) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	model := a.ActiveModel()
	if model == "" {
		return ErrNoModelSelected
	}
	if a.Engine.Active() {
		return chat.ErrStreamActive
	}

	a.mu.Lock()
	images := a.pendingImages
	a.pendingImages = nil
	temperature := a.temperature
	maxTokens := a.maxTokens
	listener := a.tokenListener
	a.mu.Unlock()

	a.Transcript.Append(transcript.Message{
		Role:    transcript.RoleUser,
		Content: text,
		Model:   model,
		Images:  images,
	})

	messages := a.conversationContext()
	a.Transcript.StartAssistant(model)
	a.setStatus("Generating...")
	a.signal()

	result, err := a.Engine.Send(ctx, chat.Request{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, func(token string) {
		if appendErr := a.Transcript.AppendContent(token); appendErr != nil {
			a.logger.Warn("dropped stream token", "error", appendErr)
		}
		if listener != nil {
			listener(token)
		}
		a.signal()
	})

	switch {
	case err == nil:
		a.Transcript.FinishStream()
		if result.TokensKnown {
			a.setStatus(fmt.Sprintf("Done • %d tokens", result.Tokens))
		} else {
			// The server never reported counts; estimate from words so the
			// status line is still informative.
			a.setStatus(fmt.Sprintf("Done • ~%d tokens", len(strings.Fields(result.Content))))
		}

	case fetch.IsCancelled(err):
		// Keep the partial content and mark it stopped.
		if appendErr := a.Transcript.AppendContent(chat.StopMarker); appendErr != nil {
			a.logger.Warn("failed to append stop marker", "error", appendErr)
		}
		a.Transcript.FinishStream()
		a.setStatus(chat.UserMessage(err))
		err = nil

	default:
		// The failed turn stays in the transcript with the error inlined,
		// after whatever partial content arrived.
		notice := "[Error: " + chat.UserMessage(err) + "]"
		if last, ok := a.Transcript.Last(); ok && last.Role == transcript.RoleAssistant && last.Content != "" {
			notice = "\n\n" + notice
		}
		if appendErr := a.Transcript.AppendContent(notice); appendErr != nil {
			a.logger.Warn("failed to append error notice", "error", appendErr)
		}
		a.Transcript.FinishStream()
		a.setStatus(chat.UserMessage(err))
	}

	a.signal()
	return err
}

// StopStreaming aborts the in-flight response. With none active it is a
// no-op.
func (a *App) StopStreaming() {
	a.Engine.Stop()
}

// conversationContext maps the retained transcript onto wire messages.
// System turns travel too, so the model sees switch announcements.
func (a *App) conversationContext() []chat.Message {
	history := a.Transcript.Messages()
	out := make([]chat.Message, 0, len(history))
	for _, m := range history {
		msg := chat.Message{Role: m.Role, Content: m.Content}
		for _, img := range m.Images {
			msg.Images = append(msg.Images, img.InlineData)
		}
		out = append(out, msg)
	}
	return out
}

// =============================================================================
// MODEL LIFECYCLE
// =============================================================================

// PullModel downloads a model, blocking until it finishes. Duplicate pulls
// surface as a status, not an error.
func (a *App) PullModel(ctx context.Context, name string) error {
	err := a.Tracker.StartPull(ctx, name)
	if err != nil && ops.IsPrecondition(err) {
		a.setStatus(err.Error())
		a.signal()
		return nil
	}
	return err
}

// RequestDelete stages a delete that must be confirmed. The returned string
// is the confirmation prompt the front end shows.
func (a *App) RequestDelete(name string) (string, error) {
	if a.Registry.Lookup(name) == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	if a.Engine.Active() {
		return "", ops.ErrChatActive
	}

	a.mu.Lock()
	a.pendingDelete = name
	a.mu.Unlock()

	return "Delete model " + name + "? This cannot be undone.", nil
}

// PendingDelete returns the model awaiting confirmation, or empty.
func (a *App) PendingDelete() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingDelete
}

// ConfirmDelete settles a staged delete. Declining clears the request;
// accepting runs the delete and, when the deleted model was active, clears
// the selection.
func (a *App) ConfirmDelete(ctx context.Context, accepted bool) error {
	a.mu.Lock()
	name := a.pendingDelete
	a.pendingDelete = ""
	a.mu.Unlock()

	if name == "" {
		return ErrNoPendingDelete
	}
	if !accepted {
		a.setStatus("Delete cancelled.")
		a.signal()
		return nil
	}

	err := a.Tracker.StartDelete(ctx, name)
	if err != nil {
		if ops.IsPrecondition(err) {
			a.setStatus(err.Error())
			a.signal()
			return nil
		}
		return err
	}

	a.mu.Lock()
	if registry.NormalizeName(a.activeModel) == registry.NormalizeName(name) {
		a.activeModel = ""
	}
	a.mu.Unlock()

	a.reconcileSelection()
	a.setStatus("Deleted " + name + ".")
	a.signal()
	return nil
}

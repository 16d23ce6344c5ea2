// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fetch provides bounded-retry, timeout-guarded HTTP JSON fetching.
package fetch

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// Kind categorizes fetch errors for handling.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnreachable covers connection refused, DNS failure, and other
	// transport-level failures where the server never answered.
	KindUnreachable
	// KindTimeout is a per-attempt or overall deadline expiry.
	KindTimeout
	// KindCancelled is a caller-initiated abort.
	KindCancelled
	// KindHTTP is a non-2xx response.
	KindHTTP
	// KindInvalid is an unparseable response body.
	KindInvalid
)

// Error is the error type returned by this package. Status is set only for
// KindHTTP.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsUnreachable reports whether err indicates the server could not be
// reached at all.
func IsUnreachable(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindUnreachable
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindTimeout {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsCancelled reports whether err is a caller-initiated abort.
func IsCancelled(err error) bool {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindCancelled {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// HTTPStatus returns the status code carried by err, or 0 when err is not an
// HTTP-status error.
func HTTPStatus(err error) int {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindHTTP {
		return fe.Status
	}
	return 0
}

// Classify wraps a transport error from net/http into a fetch Error.
// Cancellation and deadline expiry surface from http.Client as context
// errors and map to KindCancelled and KindTimeout respectively.
func Classify(_ context.Context, err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCancelled, Message: "request cancelled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &Error{Kind: KindUnreachable, Message: "server unreachable", Cause: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &Error{Kind: KindUnreachable, Message: "server unreachable", Cause: err}
	}

	return &Error{Kind: KindUnknown, Message: "request failed", Cause: err}
}

// httpError builds a KindHTTP error from a status code.
func httpError(status int, statusText string) *Error {
	return &Error{
		Kind:    KindHTTP,
		Status:  status,
		Message: "request failed: " + strconv.Itoa(status) + " " + statusText,
	}
}

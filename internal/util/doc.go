// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for modeldeck: atomic file
// writes and string formatting utilities used across packages.
//
// Nothing in this package knows about models, transcripts, or HTTP; keep it
// that way.
package util

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript holds the conversation history: a bounded, append-only
// message sequence persisted to the blob store on every change, with a
// single mutation exception for the streaming assistant tail.
package transcript

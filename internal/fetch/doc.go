// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fetch provides the leaf HTTP utility shared by every
// network-facing component: timeout-guarded JSON fetches with bounded retry
// and exponential backoff, raw request issuing for streaming endpoints, and
// the error taxonomy (unreachable / timeout / cancelled / http / invalid)
// the rest of the client classifies against.
package fetch

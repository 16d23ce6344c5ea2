// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ops tracks long-running model lifecycle operations: streaming
// pulls (installs) and deletes. State is keyed by normalized model name,
// with at most one active operation per name and kind. Completed operations
// trigger a registry refresh and are then forgotten; the refreshed registry
// is the source of truth for what is installed.
package ops

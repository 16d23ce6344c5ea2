// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the headless application core. It assembles the registry,
// operation tracker, chat engine, transcript, and theme into one command
// and query surface that the TUI, the plain REPL, and the one-shot CLI
// commands all drive the same way.
package app

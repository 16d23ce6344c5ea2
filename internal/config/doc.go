// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for modeldeck.
//
// Precedence, highest first:
//   - MODELDECK_* environment variables
//   - ~/.modeldeck/config.toml
//   - Built-in defaults
//
// Out-of-range values from the file are clamped back to defaults rather than
// rejected, so a stale or hand-edited config never prevents startup. Only a
// structurally unparseable file or a malformed URL is an error.
package config

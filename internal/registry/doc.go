// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry maintains the canonical model lists for the client.
//
// Three sources feed it: the local inference server's tag listing, the cloud
// manifest (remote URL or local file, with an embedded fallback list), and
// an optional library catalog endpoint. A refresh fetches all sources
// concurrently, absorbs per-source failures as warnings, merges descriptors
// by normalized name, and atomically replaces the published snapshots.
//
// Merge rules: cloud entries first, local entries second; the local server
// is authoritative for display-name casing; description and endpoint fill
// only when missing; ordering places locally installed models first, then
// case-insensitive name order. Merging the same inputs twice yields the
// same output.
package registry

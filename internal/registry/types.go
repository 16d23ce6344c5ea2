// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry normalizes, merges, and deduplicates model descriptors
// from the local inference server, the cloud manifest, and the library
// catalog endpoint.
package registry

import (
	"strings"
	"time"
)

// =============================================================================
// SOURCES
// =============================================================================

// Source identifies where an installed/available model descriptor came from.
type Source string

const (
	SourceLocal Source = "local"
	SourceCloud Source = "cloud"
)

// CatalogSource identifies the provenance of a catalog entry, distinct from
// installed-source tracking.
type CatalogSource string

const (
	CatalogManifest CatalogSource = "manifest"
	CatalogLibrary  CatalogSource = "library-endpoint"
)

// =============================================================================
// DESCRIPTORS
// =============================================================================

// Descriptor is the canonical record identifying one model and its
// provenance. Within a registry snapshot exactly one descriptor exists per
// normalized name.
type Descriptor struct {
	// Name is the display name. The local server is authoritative for the
	// exact casing when it contributes.
	Name string `json:"name"`

	// Description is optional human-readable detail.
	Description string `json:"description,omitempty"`

	// Endpoint is an optional base URL override; empty means the default
	// server.
	Endpoint string `json:"endpoint,omitempty"`

	// Sources is the non-empty union of sources that contributed this
	// descriptor, in first-seen order.
	Sources []Source `json:"sources"`
}

// HasSource reports whether the descriptor carries the given source.
func (d *Descriptor) HasSource(s Source) bool {
	for _, src := range d.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// IsLocal reports whether the model is installed on the local server.
func (d *Descriptor) IsLocal() bool { return d.HasSource(SourceLocal) }

// ProvenanceLabel returns the human-readable provenance: "Local", "Cloud",
// or "Local + Cloud".
func (d *Descriptor) ProvenanceLabel() string {
	local := d.HasSource(SourceLocal)
	cloud := d.HasSource(SourceCloud)
	switch {
	case local && cloud:
		return "Local + Cloud"
	case local:
		return "Local"
	default:
		return "Cloud"
	}
}

// CatalogEntry is a browsable installable-model record. Its lifecycle
// (browse-before-install) differs from the installed list, so it is kept
// separate.
type CatalogEntry struct {
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Endpoint      string          `json:"endpoint,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Family        string          `json:"family,omitempty"`
	ParameterSize string          `json:"parameter_size,omitempty"`
	Pulls         int64           `json:"pulls,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at,omitempty"`
	Sources       []CatalogSource `json:"catalog_sources"`
}

// HasSource reports whether the entry carries the given catalog source.
func (e *CatalogEntry) HasSource(s CatalogSource) bool {
	for _, src := range e.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// NormalizeName produces the canonical identity key for a model name:
// trimmed and lowercased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeBaseURL trims whitespace and a trailing slash from a base URL.
func NormalizeBaseURL(baseURL string) string {
	return strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// nameCollator orders display names case-insensitively. Collation is stable
// across platforms, unlike locale-dependent comparisons.
var nameCollator = collate.New(language.Und, collate.IgnoreCase)

// =============================================================================
// INSTALLED-LIST MERGE
// =============================================================================

// MergeDescriptors builds the canonical installed/available list from the
// per-source descriptor lists. Cloud entries are processed first, then local
// entries, upserting by normalized name:
//
//   - first insertion creates the entry
//   - later upserts union the sources set
//   - local is authoritative for the exact display-name casing
//   - description/endpoint fill only when missing; first non-empty wins
//
// Final ordering: local-sourced entries before cloud-only entries, ties
// broken by case-insensitive name order.
func MergeDescriptors(localModels, cloudModels []Descriptor) []Descriptor {
	merged := make(map[string]*Descriptor)
	var order []string

	upsert := func(m Descriptor, source Source) {
		key := NormalizeName(m.Name)
		if key == "" {
			return
		}

		existing, ok := merged[key]
		if !ok {
			merged[key] = &Descriptor{
				Name:        m.Name,
				Description: m.Description,
				Endpoint:    m.Endpoint,
				Sources:     []Source{source},
			}
			order = append(order, key)
			return
		}

		if !existing.HasSource(source) {
			existing.Sources = append(existing.Sources, source)
		}
		if source == SourceLocal {
			existing.Name = m.Name
		}
		if existing.Description == "" && m.Description != "" {
			existing.Description = m.Description
		}
		if existing.Endpoint == "" && m.Endpoint != "" {
			existing.Endpoint = m.Endpoint
		}
	}

	for _, m := range cloudModels {
		upsert(m, SourceCloud)
	}
	for _, m := range localModels {
		upsert(m, SourceLocal)
	}

	list := make([]Descriptor, 0, len(order))
	for _, key := range order {
		list = append(list, *merged[key])
	}

	sort.SliceStable(list, func(i, j int) bool {
		iLocal := list[i].IsLocal()
		jLocal := list[j].IsLocal()
		if iLocal != jLocal {
			return iLocal
		}
		return nameCollator.CompareString(list[i].Name, list[j].Name) < 0
	})

	return list
}

// =============================================================================
// CATALOG MERGE
// =============================================================================

// MergeCatalog merges catalog entries from the manifest and the library
// endpoint with the same upsert shape as the installed list, additionally
// unioning tags as a set (first-seen order preserved).
func MergeCatalog(manifestEntries, libraryEntries []CatalogEntry) []CatalogEntry {
	merged := make(map[string]*CatalogEntry)
	var order []string

	upsert := func(e CatalogEntry, source CatalogSource) {
		key := NormalizeName(e.Name)
		if key == "" {
			return
		}

		existing, ok := merged[key]
		if !ok {
			entry := e
			entry.Tags = dedupeTags(nil, e.Tags)
			entry.Sources = []CatalogSource{source}
			merged[key] = &entry
			order = append(order, key)
			return
		}

		if !existing.HasSource(source) {
			existing.Sources = append(existing.Sources, source)
		}
		existing.Tags = dedupeTags(existing.Tags, e.Tags)
		if existing.Description == "" && e.Description != "" {
			existing.Description = e.Description
		}
		if existing.Endpoint == "" && e.Endpoint != "" {
			existing.Endpoint = e.Endpoint
		}
		if existing.Family == "" && e.Family != "" {
			existing.Family = e.Family
		}
		if existing.ParameterSize == "" && e.ParameterSize != "" {
			existing.ParameterSize = e.ParameterSize
		}
		if existing.Pulls == 0 && e.Pulls != 0 {
			existing.Pulls = e.Pulls
		}
		if existing.UpdatedAt.IsZero() && !e.UpdatedAt.IsZero() {
			existing.UpdatedAt = e.UpdatedAt
		}
	}

	for _, e := range manifestEntries {
		upsert(e, CatalogManifest)
	}
	for _, e := range libraryEntries {
		upsert(e, CatalogLibrary)
	}

	list := make([]CatalogEntry, 0, len(order))
	for _, key := range order {
		list = append(list, *merged[key])
	}

	sort.SliceStable(list, func(i, j int) bool {
		return nameCollator.CompareString(list[i].Name, list[j].Name) < 0
	})

	return list
}

// dedupeTags appends the tags of add to base, skipping duplicates while
// preserving first-seen order.
func dedupeTags(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, t := range base {
		seen[t] = true
	}
	for _, t := range add {
		if t == "" || seen[t] {
			continue
		}
		base = append(base, t)
		seen[t] = true
	}
	return base
}

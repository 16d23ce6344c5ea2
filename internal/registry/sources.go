// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// tagsResponse is the /api/tags response shape.
type tagsResponse struct {
	Models []tagsModel `json:"models"`
}

type tagsModel struct {
	Name    string `json:"name"`
	Details struct {
		Family            string `json:"family"`
		ParameterSize     string `json:"parameter_size"`
		QuantizationLevel string `json:"quantization_level"`
	} `json:"details"`
}

// manifestDocument is the cloud manifest shape.
type manifestDocument struct {
	CloudModels []manifestModel `json:"cloudModels"`
}

type manifestModel struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
}

// =============================================================================
// SOURCE MAPPERS
// =============================================================================

// mapTagsResponse converts a local-server tag listing into descriptors. The
// description is assembled from the detail fields the server reports.
func mapTagsResponse(resp tagsResponse) []Descriptor {
	out := make([]Descriptor, 0, len(resp.Models))
	for _, m := range resp.Models {
		if strings.TrimSpace(m.Name) == "" {
			continue
		}

		var parts []string
		if m.Details.Family != "" {
			parts = append(parts, m.Details.Family)
		}
		if m.Details.ParameterSize != "" {
			parts = append(parts, m.Details.ParameterSize)
		}
		if m.Details.QuantizationLevel != "" {
			parts = append(parts, m.Details.QuantizationLevel)
		}

		out = append(out, Descriptor{
			Name:        m.Name,
			Description: strings.Join(parts, " "),
			Sources:     []Source{SourceLocal},
		})
	}
	return out
}

// mapManifest converts manifest cloud models into descriptors.
func mapManifest(doc manifestDocument) []Descriptor {
	out := make([]Descriptor, 0, len(doc.CloudModels))
	for _, m := range doc.CloudModels {
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		out = append(out, Descriptor{
			Name:        m.Name,
			Description: m.Description,
			Endpoint:    m.Endpoint,
			Sources:     []Source{SourceCloud},
		})
	}
	return out
}

// manifestCatalog converts manifest cloud models into catalog entries with
// manifest provenance.
func manifestCatalog(doc manifestDocument) []CatalogEntry {
	out := make([]CatalogEntry, 0, len(doc.CloudModels))
	for _, m := range doc.CloudModels {
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		out = append(out, CatalogEntry{
			Name:        m.Name,
			Description: m.Description,
			Endpoint:    m.Endpoint,
			Sources:     []CatalogSource{CatalogManifest},
		})
	}
	return out
}

// =============================================================================
// LIBRARY CATALOG PARSING
// =============================================================================

// ParseLibraryDocument accepts the several shapes library endpoints are
// observed to return: a bare array, or an object wrapping the array under
// "models", "items", "data", or "results". Entries that cannot be mapped are
// skipped rather than failing the document.
func ParseLibraryDocument(raw []byte) ([]CatalogEntry, error) {
	var arr []json.RawMessage

	// Bare array first.
	if err := json.Unmarshal(raw, &arr); err != nil {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, err
		}
		for _, key := range []string{"models", "items", "data", "results"} {
			if inner, ok := wrapper[key]; ok {
				if err := json.Unmarshal(inner, &arr); err == nil {
					break
				}
			}
		}
	}

	out := make([]CatalogEntry, 0, len(arr))
	for _, item := range arr {
		if entry, ok := mapLibraryEntry(item); ok {
			out = append(out, entry)
		}
	}
	return out, nil
}

// mapLibraryEntry normalizes one permissively-shaped library record.
func mapLibraryEntry(raw json.RawMessage) (CatalogEntry, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return CatalogEntry{}, false
	}

	name := firstString(obj, "name", "model", "id")
	if strings.TrimSpace(name) == "" {
		return CatalogEntry{}, false
	}

	entry := CatalogEntry{
		Name:        name,
		Description: firstString(obj, "description", "summary", "title"),
		Tags:        parseTags(obj["tags"]),
		Family:      firstString(obj, "family"),
		Pulls:       parseInt(obj["pulls"]),
		Sources:     []CatalogSource{CatalogLibrary},
	}
	entry.ParameterSize = firstString(obj, "parameter_size", "parameterSize")

	if ts := firstString(obj, "updated_at", "updatedAt"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.UpdatedAt = t
		}
	}

	// Nested details block, as the local server reports them.
	if detailsRaw, ok := obj["details"]; ok {
		var details struct {
			Family        string `json:"family"`
			ParameterSize string `json:"parameter_size"`
		}
		if err := json.Unmarshal(detailsRaw, &details); err == nil {
			if entry.Family == "" {
				entry.Family = details.Family
			}
			if entry.ParameterSize == "" {
				entry.ParameterSize = details.ParameterSize
			}
		}
	}

	return entry, true
}

// firstString returns the first present, non-empty string among keys.
func firstString(obj map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// parseTags accepts a JSON array of strings or a comma-separated string.
func parseTags(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		return trimTags(arr)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return trimTags(strings.Split(s, ","))
	}
	return nil
}

func trimTags(tags []string) []string {
	out := tags[:0]
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseInt accepts a JSON number or numeric string.
func parseInt(raw json.RawMessage) int64 {
	if raw == nil {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}
	return 0
}

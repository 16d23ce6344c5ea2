// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/modeldeck/internal/config"
	"github.com/jeranaias/modeldeck/internal/fetch"
)

// =============================================================================
// WARNINGS
// =============================================================================

// WarningKind classifies a non-fatal refresh problem.
type WarningKind int

const (
	// WarnServerUnreachable means the local inference server did not answer.
	WarnServerUnreachable WarningKind = iota
	// WarnManifestFallback means the manifest fetch failed and the embedded
	// cloud list was substituted.
	WarnManifestFallback
	// WarnLibraryFailed means the library catalog endpoint failed.
	WarnLibraryFailed
)

// Warning is a per-source refresh problem that was absorbed locally.
type Warning struct {
	Kind    WarningKind
	Message string
}

// ErrAllSourcesFailed is returned when every configured source failed and no
// fallback produced data. The registry then holds empty lists.
var ErrAllSourcesFailed = errors.New("failed to load models from any source")

// =============================================================================
// REGISTRY
// =============================================================================

// Result is one refresh outcome: the merged lists plus any absorbed
// per-source warnings.
type Result struct {
	Models   []Descriptor
	Catalog  []CatalogEntry
	Warnings []Warning
}

// Registry owns the canonical model lists. It is the single writer of both;
// readers receive copies. Snapshots are replaced wholesale on each refresh,
// never patched incrementally.
type Registry struct {
	cfg     *config.Config
	fetcher *fetch.Client
	logger  *slog.Logger

	// embedded is the manifest fallback list; replaced in tests.
	embedded []Descriptor

	mu      sync.RWMutex
	models  []Descriptor
	catalog []CatalogEntry
}

// New creates a registry using the shared fetch client.
func New(cfg *config.Config, fetcher *fetch.Client, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		fetcher:  fetcher,
		logger:   logger,
		embedded: embeddedCopy(),
	}
}

// SetEmbeddedFallback overrides the embedded cloud-model fallback. Tests use
// this to exercise the fully-failed refresh path.
func (r *Registry) SetEmbeddedFallback(models []Descriptor) {
	r.embedded = models
}

// =============================================================================
// REFRESH
// =============================================================================

// Refresh fetches all sources concurrently and atomically replaces the
// merged lists. Each source's failure is absorbed as a warning; the refresh
// itself only fails when every configured source failed and the embedded
// fallback produced nothing, in which case the lists are replaced with empty
// snapshots.
func (r *Registry) Refresh(ctx context.Context) (Result, error) {
	var (
		wg sync.WaitGroup

		localModels []Descriptor
		localErr    error

		cloudModels []Descriptor
		manifestCat []CatalogEntry
		manifestErr error

		libraryCat []CatalogEntry
		libraryErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		localModels, localErr = r.fetchLocal(ctx)
	}()
	go func() {
		defer wg.Done()
		cloudModels, manifestCat, manifestErr = r.fetchManifest(ctx)
	}()

	libraryConfigured := r.cfg.Sources.LibraryURL != ""
	if libraryConfigured {
		wg.Add(1)
		go func() {
			defer wg.Done()
			libraryCat, libraryErr = r.fetchLibrary(ctx)
		}()
	}
	wg.Wait()

	var warnings []Warning
	if localErr != nil {
		r.logger.Warn("failed to load local models", "endpoint", r.cfg.Server.Endpoint, "error", localErr)
		warnings = append(warnings, Warning{
			Kind: WarnServerUnreachable,
			Message: "Unable to reach the inference server at " + r.cfg.Server.Endpoint +
				". Ensure it is running and accessible.",
		})
	}
	if manifestErr != nil {
		r.logger.Warn("failed to load cloud manifest, using embedded cloud models", "error", manifestErr)
		warnings = append(warnings, Warning{
			Kind:    WarnManifestFallback,
			Message: "Cloud manifest unavailable; using the embedded model list.",
		})
		cloudModels = append([]Descriptor(nil), r.embedded...)
		manifestCat = catalogFromDescriptors(r.embedded)
	}
	if libraryErr != nil {
		r.logger.Warn("failed to load library catalog", "url", r.cfg.Sources.LibraryURL, "error", libraryErr)
		warnings = append(warnings, Warning{
			Kind:    WarnLibraryFailed,
			Message: "Library catalog unavailable.",
		})
	}

	allFailed := localErr != nil &&
		manifestErr != nil && len(cloudModels) == 0 &&
		(!libraryConfigured || libraryErr != nil)
	if allFailed {
		r.apply(nil, nil)
		return Result{Warnings: warnings}, ErrAllSourcesFailed
	}

	models := MergeDescriptors(localModels, cloudModels)
	catalog := MergeCatalog(manifestCat, libraryCat)
	r.apply(models, catalog)

	return Result{
		Models:   r.Models(),
		Catalog:  r.Catalog(),
		Warnings: warnings,
	}, nil
}

// apply atomically replaces both snapshots.
func (r *Registry) apply(models []Descriptor, catalog []CatalogEntry) {
	r.mu.Lock()
	r.models = models
	r.catalog = catalog
	r.mu.Unlock()
}

// =============================================================================
// SOURCE FETCHES
// =============================================================================

func (r *Registry) fetchLocal(ctx context.Context) ([]Descriptor, error) {
	url := NormalizeBaseURL(r.cfg.Server.Endpoint) + "/api/tags"

	var resp tagsResponse
	if err := r.fetcher.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	return mapTagsResponse(resp), nil
}

func (r *Registry) fetchManifest(ctx context.Context) ([]Descriptor, []CatalogEntry, error) {
	var doc manifestDocument

	// Manifest gets no retries: the embedded fallback makes retry latency
	// not worth paying.
	if r.cfg.ManifestIsLocalFile() {
		if err := fetch.ReadJSONFile(r.cfg.Sources.ManifestURL, &doc); err != nil {
			return nil, nil, err
		}
	} else {
		if err := r.fetcher.GetJSONOnce(ctx, r.cfg.Sources.ManifestURL, &doc); err != nil {
			return nil, nil, err
		}
	}

	return mapManifest(doc), manifestCatalog(doc), nil
}

func (r *Registry) fetchLibrary(ctx context.Context) ([]CatalogEntry, error) {
	var raw json.RawMessage
	if err := r.fetcher.GetJSON(ctx, r.cfg.Sources.LibraryURL, &raw); err != nil {
		return nil, err
	}

	entries, err := ParseLibraryDocument(raw)
	if err != nil {
		return nil, &fetch.Error{Kind: fetch.KindInvalid, Message: "unrecognized library document", Cause: err}
	}
	return entries, nil
}

// catalogFromDescriptors converts fallback descriptors into manifest-sourced
// catalog entries.
func catalogFromDescriptors(models []Descriptor) []CatalogEntry {
	out := make([]CatalogEntry, 0, len(models))
	for _, m := range models {
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
// SNAPSHOT ACCESS
// =============================================================================

// Models returns a copy of the current merged installed/available list.
func (r *Registry) Models() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Descriptor(nil), r.models...)
}

// Catalog returns a copy of the current merged catalog.
func (r *Registry) Catalog() []CatalogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]CatalogEntry(nil), r.catalog...)
}

// Lookup returns the descriptor for a model name, or nil when unknown.
// Matching is by normalized name.
func (r *Registry) Lookup(name string) *Descriptor {
	needle := NormalizeName(name)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.models {
		if NormalizeName(r.models[i].Name) == needle {
			d := r.models[i]
			return &d
		}
	}
	return nil
}

// EndpointFor resolves the request base URL for a model: its explicit
// endpoint override when present, otherwise the configured default server.
func (r *Registry) EndpointFor(name string) string {
	if d := r.Lookup(name); d != nil && strings.TrimSpace(d.Endpoint) != "" {
		return NormalizeBaseURL(d.Endpoint)
	}
	return NormalizeBaseURL(r.cfg.Server.Endpoint)
}

// =============================================================================
// CATALOG FILTERING
// =============================================================================

// CatalogForDisplay returns catalog entries suitable for the browse view:
// entries already installed locally are excluded, and a free-text query
// filters case-insensitively against name, description, and tags.
func (r *Registry) CatalogForDisplay(query string) []CatalogEntry {
	installed := make(map[string]bool)

	r.mu.RLock()
	for i := range r.models {
		if r.models[i].IsLocal() {
			installed[NormalizeName(r.models[i].Name)] = true
		}
	}
	catalog := append([]CatalogEntry(nil), r.catalog...)
	r.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))

	out := catalog[:0]
	for _, e := range catalog {
		if installed[NormalizeName(e.Name)] {
			continue
		}
		if query != "" && !catalogMatches(&e, query) {
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func catalogMatches(e *CatalogEntry, query string) bool {
	if strings.Contains(strings.ToLower(e.Name), query) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Description), query) {
		return true
	}
	return strings.Contains(strings.ToLower(strings.Join(e.Tags, " ")), query)
}

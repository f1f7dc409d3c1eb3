/*
SPDX-License-Identifier: Apache-2.0

Copyright 2024 The Taxinomia Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package datasources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/google/pivotcore/core/logging"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/records"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.Component(l, "datasources") }
}

// WithConcurrency bounds the number of sources LoadAll loads at once.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithTimeout bounds every single load. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithHTTPClient sets the client used by the remote loader registered in
// RegisterDefaultLoaders.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// loaded is a cached source.
type loaded struct {
	recs    []records.Record
	columns []EnrichedColumn
}

// Manager handles loading and caching of data sources.
// Annotations and source metadata are registered eagerly; data is loaded
// lazily on demand.
type Manager struct {
	mu sync.RWMutex

	// Annotations indexed by annotations_id
	annotations map[string]*ColumnAnnotations

	// Source metadata indexed by name
	sources map[string]*DataSource

	// Cached records indexed by source name - populated lazily
	cache map[string]*loaded

	// Registered loaders indexed by source type
	loaders map[string]DataSourceLoader

	// Base directory for resolving relative paths
	baseDir string

	logger      *slog.Logger
	concurrency int
	timeout     time.Duration
	client      *http.Client
}

// NewManager creates a new data source manager with no loaders registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		annotations: make(map[string]*ColumnAnnotations),
		sources:     make(map[string]*DataSource),
		cache:       make(map[string]*loaded),
		loaders:     make(map[string]DataSourceLoader),
		logger:      logging.Component(nil, "datasources"),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterLoader registers a data source loader for a specific source type.
// If a loader is already registered for this type, it will be replaced.
func (m *Manager) RegisterLoader(loader DataSourceLoader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaders[loader.SourceType()] = loader
}

// RegisterDefaultLoaders registers the csv, json, ndjson, proto, sql and
// remote loaders.
func (m *Manager) RegisterDefaultLoaders() {
	m.RegisterLoader(NewCsvLoader())
	m.RegisterLoader(NewJSONLoader())
	m.RegisterLoader(NewNDJSONLoader())
	m.RegisterLoader(NewProtoLoader())
	m.RegisterLoader(NewSQLLoader())
	m.RegisterLoader(NewRemoteLoader(m.client))
}

// LoadConfig reads a YAML DataSourcesConfig. Relative paths in it resolve
// against the directory of the file.
func (m *Manager) LoadConfig(configPath string) error {
	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	config, err := DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	m.SetBaseDir(filepath.Dir(configPath))
	m.AddConfig(config)
	return nil
}

// DecodeConfig decodes a YAML DataSourcesConfig.
func DecodeConfig(r io.Reader) (*DataSourcesConfig, error) {
	config := &DataSourcesConfig{}
	if err := yaml.NewDecoder(r).Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	for _, s := range config.Sources {
		if s.Name == "" {
			return nil, errors.New("source without a name")
		}
	}
	return config, nil
}

// AddConfig registers the annotations and sources of config.
func (m *Manager) AddConfig(config *DataSourcesConfig) {
	for i := range config.Annotations {
		m.AddAnnotations(&config.Annotations[i])
	}
	for i := range config.Sources {
		m.AddSource(&config.Sources[i])
	}
}

// SetBaseDir sets the base directory for resolving relative paths in config.
func (m *Manager) SetBaseDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseDir = dir
}

// AddAnnotations adds annotations to the manager.
func (m *Manager) AddAnnotations(annotations *ColumnAnnotations) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.annotations[annotations.AnnotationsID] = annotations
}

// GetAnnotations returns the annotations for a given annotations_id.
// Returns nil if the annotations are not found.
func (m *Manager) GetAnnotations(annotationsID string) *ColumnAnnotations {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.annotations[annotationsID]
}

// AddSource adds a source to the manager, replacing any cached data for a
// source of the same name.
func (m *Manager) AddSource(source *DataSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[source.Name] = source
	delete(m.cache, source.Name)
}

// GetSourceNames returns all registered source names in sorted order.
func (m *Manager) GetSourceNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSource returns the source metadata for a given name.
// Returns nil if the source is not found.
func (m *Manager) GetSource(name string) *DataSource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sources[name]
}

// LoadData loads the records of a source by name.
// Returns cached data if already loaded; otherwise loads from the source.
//
// The loading process:
// 1. Loader reads the records described by the source config
// 2. Manager discovers the schema from the records
// 3. Manager enriches the schema with annotations (display names, types)
func (m *Manager) LoadData(ctx context.Context, sourceName string) ([]records.Record, error) {
	l, err := m.load(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	return l.recs, nil
}

// Columns returns the enriched schema of a source, loading it if needed.
func (m *Manager) Columns(ctx context.Context, sourceName string) ([]EnrichedColumn, error) {
	l, err := m.load(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	return l.columns, nil
}

// Dimensions returns pivot dimension metadata for a source.
func (m *Manager) Dimensions(ctx context.Context, sourceName string) ([]pivot.Dimension, error) {
	cols, err := m.Columns(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	return Dimensions(cols), nil
}

func (m *Manager) load(ctx context.Context, sourceName string) (*loaded, error) {
	// Check cache first (with read lock)
	m.mu.RLock()
	if l, ok := m.cache[sourceName]; ok {
		m.mu.RUnlock()
		return l, nil
	}
	source, ok := m.sources[sourceName]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, sourceName)
	}
	var annotations []ColumnAnnotation
	if set := m.annotations[source.AnnotationsID]; set != nil {
		annotations = append(annotations, set.Columns...)
	}
	annotations = append(annotations, source.Annotations...)
	loader, hasLoader := m.loaders[source.SourceType]
	baseDir := m.baseDir
	m.mu.RUnlock()

	// Check if loader is registered
	if !hasLoader {
		return nil, fmt.Errorf("%w for source type %q", ErrNoLoader, source.SourceType)
	}

	// Prepare config with resolved paths
	config := resolveConfigPaths(source.Config, baseDir)

	recs, err := m.run(ctx, loader, config)
	if err != nil {
		m.logger.Error("load failed", "source", sourceName, "type", source.SourceType, "error", err)
		return nil, fmt.Errorf("failed to load source %q: %w", sourceName, err)
	}

	l := &loaded{
		recs:    recs,
		columns: EnrichSchema(DiscoverSchema(recs), annotations),
	}

	// Cache the result
	m.mu.Lock()
	m.cache[sourceName] = l
	m.mu.Unlock()
	return l, nil
}

// run calls loader under the configured timeout and logs the outcome.
func (m *Manager) run(ctx context.Context, loader DataSourceLoader, config map[string]string) ([]records.Record, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	start := time.Now()
	recs, err := loader.Load(ctx, config)
	if err != nil {
		return nil, err
	}
	m.logger.Info("loaded", "type", loader.SourceType(), "records", len(recs), "duration", time.Since(start))
	return recs, nil
}

// resolveConfigPaths resolves relative file paths in config to absolute paths.
func resolveConfigPaths(config map[string]string, baseDir string) map[string]string {
	if baseDir == "" {
		return config
	}

	resolved := make(map[string]string, len(config))
	for k, v := range config {
		if k == KeyFilePath && v != "" && !filepath.IsAbs(v) {
			resolved[k] = filepath.Join(baseDir, v)
		} else {
			resolved[k] = v
		}
	}
	return resolved
}

// LoadAll loads the named sources concurrently, at most the configured
// concurrency at a time. No names means every registered source. The first
// failure cancels the rest.
func (m *Manager) LoadAll(ctx context.Context, names ...string) (map[string][]records.Record, error) {
	if len(names) == 0 {
		names = m.GetSourceNames()
	}

	results := make([][]records.Record, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, name := range names {
		g.Go(func() error {
			recs, err := m.LoadData(ctx, name)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]records.Record, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out, nil
}

// Source returns a pivot.Source reading the named source through the cache.
func (m *Manager) Source(name string) pivot.Source {
	return pivot.SourceFunc(func(ctx context.Context) ([]records.Record, error) {
		return m.LoadData(ctx, name)
	})
}

// InvalidateCache removes a source from the cache, forcing reload on next access.
func (m *Manager) InvalidateCache(sourceName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, sourceName)
}

// InvalidateAllCaches removes all sources from the cache.
func (m *Manager) InvalidateAllCaches() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*loaded)
}

// IsLoaded returns whether data for a source is currently cached.
func (m *Manager) IsLoaded(sourceName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cache[sourceName]
	return ok
}

// GetLoadedSources returns names of all currently loaded (cached) sources.
func (m *Manager) GetLoadedSources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.cache))
	for name := range m.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DescriptorType selects how a Descriptor is resolved.
type DescriptorType int

const (
	// File reads a local file.
	File DescriptorType = iota
	// Remote fetches a URL.
	Remote
)

// Descriptor names records by location instead of by registered source.
// Format is inferred from the path or URL when empty.
type Descriptor struct {
	Type   DescriptorType
	Path   string
	URL    string
	Format string
}

// Resolve returns a pivot.Source reading the location d describes. The
// result is not cached.
func (m *Manager) Resolve(d Descriptor) (pivot.Source, error) {
	var sourceType string
	config := map[string]string{}
	switch d.Type {
	case File:
		if d.Path == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, KeyFilePath)
		}
		sourceType = d.Format
		if sourceType == "" {
			sourceType = guessFormat(d.Path, "")
		}
		config[KeyFilePath] = d.Path
	case Remote:
		if d.URL == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, KeyURL)
		}
		sourceType = "remote"
		config[KeyURL] = d.URL
		if d.Format != "" {
			config[KeyFormat] = d.Format
		}
	default:
		return nil, fmt.Errorf("unknown descriptor type %d", d.Type)
	}

	m.mu.RLock()
	loader, ok := m.loaders[strings.ToLower(sourceType)]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for source type %q", ErrNoLoader, sourceType)
	}
	return pivot.SourceFunc(func(ctx context.Context) ([]records.Record, error) {
		return m.run(ctx, loader, config)
	}), nil
}

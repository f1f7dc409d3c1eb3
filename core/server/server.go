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


package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/safehtml"
	"golang.org/x/sync/singleflight"

	"github.com/google/pivotcore/core/logging"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/query"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/rendering"
	"github.com/google/pivotcore/core/views"
	"github.com/google/pivotcore/datasources"
)

// Pivot is one named pivot: a layout over a record source. A pivot without
// a layout gets one derived from its records.
type Pivot struct {
	Name          string
	Title         string
	Description   string
	Configuration pivot.Configuration
	Source        pivot.Source
}

// loaded is the cached result of a pivot's source.
type loaded struct {
	recs   []records.Record
	fields []string
}

// Server renders pivots as HTML pages. Every request builds its own engine
// over the cached records, so requests share no mutable state.
type Server struct {
	title      string
	renderer   *rendering.PivotRenderer
	pivots     map[string]Pivot
	order      []string
	engineOpts []pivot.Option
	logger     *slog.Logger

	loadTimeout time.Duration
	loads       singleflight.Group
	cache       map[string]*loaded
	mu          sync.Mutex // guards pivots, order, cache and loadTimeout
}

// NewServer creates a new server with the given landing page title
func NewServer(title string, logger *slog.Logger, engineOpts ...pivot.Option) (*Server, error) {
	renderer, err := rendering.NewPivotRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	return &Server{
		title:       title,
		renderer:    renderer,
		pivots:      make(map[string]Pivot),
		engineOpts:  engineOpts,
		logger:      logging.Component(logger, "server"),
		cache:       make(map[string]*loaded),
		loadTimeout: DefaultLoadTimeout,
	}, nil
}

// DefaultLoadTimeout bounds a source load unless SetLoadTimeout changes it.
const DefaultLoadTimeout = 30 * time.Second

// SetLoadTimeout bounds every source load; zero or less means no bound.
func (s *Server) SetLoadTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadTimeout = d
}

// AddPivot registers p, replacing a pivot of the same name and dropping its
// cached records.
func (s *Server) AddPivot(p Pivot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pivots[p.Name]; !ok {
		s.order = append(s.order, p.Name)
	}
	s.pivots[p.Name] = p
	delete(s.cache, p.Name)
}

// PivotNames returns the registered pivots in registration order.
func (s *Server) PivotNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

func (s *Server) lookup(name string) (Pivot, *loaded, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pivots[name]
	return p, s.cache[name], ok
}

// records returns the records of p, loading them once. Concurrent requests
// for a pivot that is not loaded yet share one load; failed loads are not
// cached. The shared load outlives the request that started it and is
// bounded by the load timeout instead.
func (s *Server) records(ctx context.Context, p Pivot, cached *loaded) (*loaded, error) {
	if cached != nil {
		return cached, nil
	}
	v, err, _ := s.loads.Do(p.Name, func() (any, error) {
		s.mu.Lock()
		timeout := s.loadTimeout
		s.mu.Unlock()
		loadCtx := context.WithoutCancel(ctx)
		if timeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, timeout)
			defer cancel()
		}

		start := time.Now()
		recs, err := p.Source.Load(loadCtx)
		if err != nil {
			return nil, err
		}
		l := &loaded{recs: recs}
		for _, c := range datasources.DiscoverSchema(recs).Columns {
			l.fields = append(l.fields, c.Name)
		}
		s.mu.Lock()
		s.cache[p.Name] = l
		s.mu.Unlock()
		s.logger.Info("loaded pivot", "pivot", p.Name, "records", len(recs), "duration", time.Since(start))
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*loaded), nil
}

// HandlerResult represents the result of handling a request
type HandlerResult struct {
	Error      error
	StatusCode int
	Message    string
}

// HandlePivotRequest renders the page of pivot name that requestURL
// selects. The query string, when present, replaces the pivot's layout.
// Returns an error result if the request is invalid, nil on success
func (s *Server) HandlePivotRequest(ctx context.Context, w io.Writer, requestURL *url.URL, name string, setHeader func(key, value string)) *HandlerResult {
	timing := views.NewTimingCollector()

	p, cached, ok := s.lookup(name)
	if !ok {
		return &HandlerResult{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("Pivot '%s' not found", name)}
	}

	loadStart := time.Now()
	l, err := s.records(ctx, p, cached)
	if err != nil {
		s.logger.Error("load failed", "pivot", name, "error", err)
		return &HandlerResult{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("Loading '%s' failed", name), Error: err}
	}
	timing.Record("Load Records", time.Since(loadStart))

	engineStart := time.Now()
	e, err := pivot.New(p.Configuration, s.engineOpts...)
	if err != nil {
		return &HandlerResult{StatusCode: http.StatusInternalServerError, Message: "Invalid pivot configuration", Error: err}
	}
	if err := e.SetData(l.recs); err != nil {
		return &HandlerResult{StatusCode: http.StatusInternalServerError, Message: "Pivot pipeline failed", Error: err}
	}
	if !datasources.HasLayout(p.Configuration) {
		if err := datasources.DeriveLayout(e); err != nil {
			return &HandlerResult{StatusCode: http.StatusInternalServerError, Message: "Pivot pipeline failed", Error: err}
		}
	}
	timing.Record("Build Engine", time.Since(engineStart))

	if requestURL.RawQuery != "" {
		queryStart := time.Now()
		q, err := query.NewQuery(requestURL)
		if err != nil {
			return &HandlerResult{StatusCode: http.StatusBadRequest, Message: err.Error()}
		}
		if err := q.Apply(e); err != nil {
			return &HandlerResult{StatusCode: http.StatusBadRequest, Message: err.Error()}
		}
		timing.Record("Apply Query", time.Since(queryStart))
	}

	vmStart := time.Now()
	title := p.Title
	if title == "" {
		title = p.Name
	}
	viewModel := views.BuildPivotViewModel(title, requestURL.Path, e, l.fields)
	timing.Record("Build ViewModel", time.Since(vmStart))
	viewModel.RenderTimeMs = timing.TotalMs()
	viewModel.TimingBreakdown = timing.GetEntries()

	setHeader("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Render(w, viewModel); err != nil {
		s.logger.Error("template rendering error", "pivot", name, "error", err)
		return &HandlerResult{Error: err}
	}
	return nil
}

// HandleLandingRequest renders the list of pivots.
func (s *Server) HandleLandingRequest(w io.Writer, setHeader func(key, value string)) error {
	vm := views.LandingViewModel{
		Title:    s.title,
		Subtitle: "Pick a pivot to explore",
	}
	for _, name := range s.PivotNames() {
		p, _, _ := s.lookup(name)
		title := p.Title
		if title == "" {
			title = p.Name
		}
		vm.Pivots = append(vm.Pivots, views.PivotInfo{
			Name:        p.Name,
			Title:       title,
			Description: p.Description,
			URL:         safehtml.URLSanitized(PivotPath(p.Name)),
		})
	}
	setHeader("Content-Type", "text/html; charset=utf-8")
	return s.renderer.RenderLanding(w, vm)
}

// PivotPath returns the path a pivot is served under.
func PivotPath(name string) string {
	return "/pivot/" + url.PathEscape(name)
}

// Handler returns the HTTP handler serving the landing page and the pivots.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		if err := s.HandleLandingRequest(w, w.Header().Set); err != nil {
			s.logger.Error("landing page rendering error", "error", err)
		}
	})
	mux.HandleFunc("GET /pivot/{name}", func(w http.ResponseWriter, r *http.Request) {
		result := s.HandlePivotRequest(r.Context(), w, r.URL, r.PathValue("name"), w.Header().Set)
		if result == nil {
			return
		}
		if result.StatusCode != 0 {
			http.Error(w, result.Message, result.StatusCode)
		}
	})
	return mux
}

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


package views

import (
	"fmt"
	"time"

	"github.com/google/safehtml"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/query"
	"github.com/google/pivotcore/core/sorting"
)

// PivotViewModel contains one page of a pivot formatted for template consumption
type PivotViewModel struct {
	Title    string
	Subtitle string
	Headers  []HeaderViewModel
	Rows     []RowViewModel
	Totals   []string // one per header, the first dimension cell reads "Total"
	Filters  []FilterViewModel
	Fields   []FieldInfo // every field of the records, for regrouping

	// Pagination info
	Page        int
	TotalPages  int
	TotalRows   int // rows of the processed view
	RecordCount int // records of the working set
	HasPrev     bool
	HasNext     bool
	PrevURL     safehtml.URL
	NextURL     safehtml.URL
	PageSizes   []PageSizeLink

	Permalink safehtml.URL
	ResetURL  safehtml.URL

	RenderTimeMs    string
	TimingBreakdown []TimingEntry
}

// HeaderViewModel is one column header.
type HeaderViewModel struct {
	Caption       string
	Field         string
	IsMeasure     bool
	SortURL       safehtml.URL // cycles ascending, descending, off
	SortIndicator string       // "▲", "▼" or ""
	Aggregations  []AggregationLink
	Width         float64
}

// AggregationLink switches a measure to another aggregation.
type AggregationLink struct {
	Name    string
	URL     safehtml.URL
	Current bool
}

// RowViewModel is one rendered row.
type RowViewModel struct {
	Labels  []LabelViewModel
	Values  []string
	Depth   int
	IsGroup bool
	Count   int
}

// LabelViewModel is one dimension cell. The label of an expandable group
// carries the link that collapses or expands it.
type LabelViewModel struct {
	Text      string
	HasToggle bool
	Expanded  bool
	ToggleURL safehtml.URL
}

// FilterViewModel describes an active filter.
type FilterViewModel struct {
	Description string
	RemoveURL   safehtml.URL
}

// FieldInfo contains information about a record field for UI display
type FieldInfo struct {
	Name      string
	IsGrouped bool
	IsColumn  bool
	ToggleURL safehtml.URL // adds the field to or removes it from the grouping
	ColumnURL safehtml.URL // shows or hides the field on the columns axis
}

// PageSizeLink selects a page size.
type PageSizeLink struct {
	Size    int
	URL     safehtml.URL
	Current bool
}

// TimingEntry records how long one step of a request took.
type TimingEntry struct {
	Operation  string
	DurationMs string
}

// PageSizes offered by the page size selector.
var PageSizes = []int{10, 25, 50, 100}

var aggregationChoices = []aggregates.Kind{aggregates.Sum, aggregates.Avg, aggregates.Min, aggregates.Max, aggregates.Count}

// BuildPivotViewModel builds the view model of the engine's current page.
// Links are derived from the engine state, so they restore exactly what is
// shown no matter how the request reached it. fields lists the record fields
// offered for regrouping.
func BuildPivotViewModel(title, path string, e *pivot.Engine, fields []string) PivotViewModel {
	st := e.GetState()
	q := query.FromState(path, st)
	p := st.Processed

	vm := PivotViewModel{
		Title:       title,
		Page:        st.Page,
		TotalPages:  st.TotalPages,
		TotalRows:   st.TotalRows,
		RecordCount: len(st.Records),
		HasPrev:     st.Page > 1,
		HasNext:     st.Page < st.TotalPages,
		Permalink:   q.ToSafeURL(),
		ResetURL:    safehtml.URLSanitized(path),
	}
	if vm.HasPrev {
		vm.PrevURL = q.WithPage(st.Page - 1)
	}
	if vm.HasNext {
		vm.NextURL = q.WithPage(st.Page + 1)
	}
	for _, size := range PageSizes {
		vm.PageSizes = append(vm.PageSizes, PageSizeLink{Size: size, URL: q.WithPageSize(size), Current: size == st.PageSize})
	}

	dims := p.DimensionHeaders()
	for _, h := range dims {
		vm.Headers = append(vm.Headers, HeaderViewModel{
			Caption:       h.Caption,
			Field:         h.Field,
			SortURL:       q.WithSortToggled(h.Field),
			SortIndicator: sortIndicator(st.Sort, h.Field, sorting.Dimension),
			Width:         h.Width,
		})
	}
	for _, h := range p.MeasureHeaders() {
		hv := HeaderViewModel{
			Caption:       h.Caption,
			Field:         h.Field,
			IsMeasure:     true,
			SortURL:       q.WithMeasureSortToggled(h.Field),
			SortIndicator: sortIndicator(st.Sort, h.Field, sorting.Measure),
			Width:         h.Width,
		}
		if h.Aggregation != aggregates.Custom {
			for _, k := range aggregationChoices {
				hv.Aggregations = append(hv.Aggregations, AggregationLink{
					Name:    k.Title(),
					URL:     q.WithAggregation(h.Field, k),
					Current: k == h.Aggregation,
				})
			}
		}
		vm.Headers = append(vm.Headers, hv)
	}

	for _, r := range e.PageRows() {
		row := RowViewModel{Depth: r.Depth, IsGroup: r.Record < 0, Count: r.Count}
		for i := range dims {
			var label LabelViewModel
			if i < len(r.Labels) {
				label.Text = r.Labels[i]
			}
			if r.Expandable && i == r.Depth {
				label.HasToggle = true
				label.Expanded = r.Expanded
				label.ToggleURL = q.WithCollapsedToggled(r.ID)
			}
			row.Labels = append(row.Labels, label)
		}
		for _, c := range r.Cells {
			row.Values = append(row.Values, c.Text)
		}
		vm.Rows = append(vm.Rows, row)
	}

	for i := range dims {
		if i == 0 {
			vm.Totals = append(vm.Totals, "Total")
		} else {
			vm.Totals = append(vm.Totals, "")
		}
	}
	for _, c := range p.Totals {
		vm.Totals = append(vm.Totals, c.Text)
	}

	for _, f := range st.Filters {
		vm.Filters = append(vm.Filters, FilterViewModel{Description: f.String(), RemoveURL: q.WithoutFilters(f.Field)})
	}
	for _, name := range fields {
		vm.Fields = append(vm.Fields, FieldInfo{
			Name:      name,
			IsGrouped: q.IsGrouped(name),
			IsColumn:  q.IsColumnVisible(name),
			ToggleURL: q.WithGroupedToggled(name),
			ColumnURL: q.WithColumnToggled(name),
		})
	}

	if len(st.GroupedBy) > 0 {
		vm.Subtitle = fmt.Sprintf("%d groups over %d records", st.TotalRows, len(st.Records))
	} else {
		vm.Subtitle = fmt.Sprintf("%d records", len(st.Records))
	}
	return vm
}

func sortIndicator(directives []sorting.Directive, field string, kind sorting.Kind) string {
	for _, d := range directives {
		if d.Field != field || d.Kind != kind {
			continue
		}
		if d.Direction == sorting.Desc {
			return "▼"
		}
		return "▲"
	}
	return ""
}

// TimingCollector collects timing measurements for the steps of a request
type TimingCollector struct {
	entries []TimingEntry
	start   time.Time
}

// NewTimingCollector creates a new timing collector
func NewTimingCollector() *TimingCollector {
	return &TimingCollector{start: time.Now()}
}

// Record records a timing entry
func (tc *TimingCollector) Record(operation string, duration time.Duration) {
	tc.entries = append(tc.entries, TimingEntry{
		Operation:  operation,
		DurationMs: fmt.Sprintf("%.2f", float64(duration.Microseconds())/1000.0),
	})
}

// GetEntries returns all timing entries
func (tc *TimingCollector) GetEntries() []TimingEntry {
	return tc.entries
}

// TotalMs returns total elapsed time in milliseconds as formatted string
func (tc *TimingCollector) TotalMs() string {
	return fmt.Sprintf("%.2f", float64(time.Since(tc.start).Microseconds())/1000.0)
}

// LandingViewModel lists the pivots a server offers.
type LandingViewModel struct {
	Title    string
	Subtitle string
	Pivots   []PivotInfo
}

// PivotInfo describes one pivot on the landing page.
type PivotInfo struct {
	Name        string
	Title       string
	Description string
	URL         safehtml.URL
}

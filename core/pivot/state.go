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

package pivot

import (
	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/filtering"
	"github.com/google/pivotcore/core/grouping"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/sorting"
)

// State is a snapshot of the engine. It shares no mutable memory with the
// engine; later mutations do not affect it.
type State struct {
	// Records is the working set: filtered and sorted, in display order.
	Records []records.Record
	// RowHeights is parallel to Records.
	RowHeights []float64
	Processed  ProcessedData
	Groups     []*grouping.Group
	Totals     map[string]float64

	Rows               []AxisField
	Columns            []AxisField
	ColumnWidths       []float64 // parallel to Columns
	Measures           []aggregates.Measure
	Dimensions         []Dimension
	DefaultAggregation aggregates.Kind
	Sort               []sorting.Directive
	Filters            []filtering.Filter
	GroupConfig        *GroupConfig
	// GroupedBy lists the effective grouping fields, empty when not grouped.
	GroupedBy []string
	Expanded  map[string]bool

	Page       int
	PageSize   int
	TotalPages int
	TotalRows  int
}

// GetState returns a snapshot of the current state.
func (e *Engine) GetState() State {
	heights := make([]float64, len(e.working))
	for i, idx := range e.working {
		heights[i] = e.rowHeight(idx)
	}
	totals := make(map[string]float64, len(e.totals))
	for k, v := range e.totals {
		totals[k] = v
	}
	expanded := make(map[string]bool, len(e.expanded))
	for k, v := range e.expanded {
		expanded[k] = v
	}

	return State{
		Records:            e.recordsOf(e.working),
		RowHeights:         heights,
		Processed:          e.processed.clone(),
		Groups:             cloneGroups(e.groups),
		Totals:             totals,
		Rows:               append([]AxisField(nil), e.rows...),
		Columns:            append([]AxisField(nil), e.columns...),
		ColumnWidths:       append([]float64(nil), e.widths...),
		Measures:           append([]aggregates.Measure(nil), e.measures...),
		Dimensions:         append([]Dimension(nil), e.dimensions...),
		DefaultAggregation: e.defaultAgg,
		Sort:               append([]sorting.Directive(nil), e.directives...),
		Filters:            append([]filtering.Filter(nil), e.filters...),
		GroupConfig:        e.groupCfg.clone(),
		GroupedBy:          append([]string(nil), e.groupedBy...),
		Expanded:           expanded,
		Page:               e.cursor.Page,
		PageSize:           e.cursor.Size,
		TotalPages:         e.cursor.TotalPages(),
		TotalRows:          e.cursor.Total,
	}
}

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

/*
Package pivot is the pivot state container.

An Engine owns a configuration, the loaded records and the interactive state
derived from them. Every setter replaces the relevant part of the state and
runs the pipeline to completion before returning:

	filter -> sort -> group -> aggregate -> processed data -> page clamp

An Engine is not safe for concurrent use; callers serialize access to one
instance.
*/
package pivot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/filtering"
	"github.com/google/pivotcore/core/grouping"
	"github.com/google/pivotcore/core/logging"
	"github.com/google/pivotcore/core/paging"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/sorting"
)

// Engine holds one pivot's records, layout and derived view. It is not safe
// for concurrent use.
type Engine struct {
	id   uuid.UUID
	log  *slog.Logger
	opts options
	cfg  Configuration

	data  []records.Record
	order []int // permutation of data indices, the authoritative record order

	rows       []AxisField
	columns    []AxisField
	declared   []aggregates.Measure
	measures   []aggregates.Measure
	dimensions []Dimension
	defaultAgg aggregates.Kind
	directives []sorting.Directive
	filters    []filtering.Filter
	groupCfg   *GroupConfig

	heights  map[int]float64 // data index -> height
	widths   []float64       // parallel to columns
	expanded map[string]bool
	cursor   paging.Cursor

	// derived by run
	working   []int
	groups    []*grouping.Group
	groupedBy []string // nil when not grouped
	totals    map[string]float64
	processed ProcessedData
}

// New creates an engine over cfg.Records. It does not call cfg.Source; use
// Open or LoadData for that. Invalid measures, sort directives or filters are
// reported as errors.
func New(cfg Configuration, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		id:   uuid.New(),
		opts: o,
		cfg:  cfg.clone(),
	}
	e.log = logging.Component(o.logger, "pivot").With("engine", e.id.String())

	if err := e.restore(); err != nil {
		e.log.Error("invalid configuration", "error", err)
		return nil, err
	}
	e.setData(e.cfg.Records)
	if err := e.run(); err != nil {
		return nil, err
	}
	return e, nil
}

// Open creates an engine and, when cfg.Source is set, loads it. A load
// failure leaves a usable engine with no records and is returned alongside it.
func Open(ctx context.Context, cfg Configuration, opts ...Option) (*Engine, error) {
	e, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Source != nil {
		return e, e.LoadData(ctx, cfg.Source)
	}
	return e, nil
}

// ID returns the engine instance identifier used in logs.
func (e *Engine) ID() string {
	return e.id.String()
}

// restore resets all interactive state to the configuration.
func (e *Engine) restore() error {
	def := e.cfg.DefaultAggregation
	if def == aggregates.None {
		def = aggregates.Sum
	}
	measures, err := resolveMeasures(e.cfg.Measures, def)
	if err != nil {
		return err
	}
	if err := validateSort(e.cfg.Sort); err != nil {
		return err
	}
	if err := validateFilters(e.cfg.Filters); err != nil {
		return err
	}

	e.rows = append([]AxisField(nil), e.cfg.Rows...)
	e.columns = append([]AxisField(nil), e.cfg.Columns...)
	e.declared = append([]aggregates.Measure(nil), e.cfg.Measures...)
	e.measures = measures
	e.dimensions = append([]Dimension(nil), e.cfg.Dimensions...)
	e.defaultAgg = def
	e.directives = append([]sorting.Directive(nil), e.cfg.Sort...)
	e.filters = append([]filtering.Filter(nil), e.cfg.Filters...)
	e.groupCfg = e.cfg.GroupConfig.clone()

	e.widths = make([]float64, len(e.columns))
	for i := range e.widths {
		e.widths[i] = e.opts.defaultColumnWidth
	}
	e.expanded = make(map[string]bool)

	size := e.opts.pageSize
	if e.cfg.PageSize > 0 {
		size = e.cfg.PageSize
	}
	e.cursor = paging.NewCursor(size, 0)
	return nil
}

// setData replaces the records and resets state keyed by record position.
func (e *Engine) setData(data []records.Record) {
	e.data = append([]records.Record(nil), data...)
	e.order = make([]int, len(e.data))
	for i := range e.order {
		e.order[i] = i
	}
	e.heights = make(map[int]float64)
	e.expanded = make(map[string]bool)
	e.cursor = e.cursor.GoTo(1)
}

// SetData replaces the records synchronously.
func (e *Engine) SetData(data []records.Record) error {
	e.setData(data)
	return e.run()
}

// LoadData loads records from src. This is the only blocking operation. On
// failure the error is logged, the engine is left with no records, and the
// error is returned wrapped in ErrLoad.
func (e *Engine) LoadData(ctx context.Context, src Source) error {
	if src == nil {
		return fmt.Errorf("%w: nil source", ErrLoad)
	}
	data, err := src.Load(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		e.log.Error("load failed, continuing with no records", "error", err)
		e.setData(nil)
		if runErr := e.run(); runErr != nil {
			return errors.Join(fmt.Errorf("%w: %w", ErrLoad, err), runErr)
		}
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	e.log.Info("loaded records", "records", len(data))
	return e.SetData(data)
}

// Sort replaces the active sort directives.
func (e *Engine) Sort(directives ...sorting.Directive) error {
	if err := validateSort(directives); err != nil {
		e.log.Warn("rejected sort", "error", err)
		return err
	}
	e.directives = append([]sorting.Directive(nil), directives...)
	return e.run()
}

// ApplyFilters replaces the active filters and returns to the first page.
func (e *Engine) ApplyFilters(filters ...filtering.Filter) error {
	if err := validateFilters(filters); err != nil {
		e.log.Warn("rejected filters", "error", err)
		return err
	}
	e.filters = append([]filtering.Filter(nil), filters...)
	e.cursor = e.cursor.GoTo(1)
	return e.run()
}

// SetGroupConfig replaces the grouping. nil disables grouping. A config
// without a key function or without fields is logged and treated as no
// grouping.
func (e *Engine) SetGroupConfig(gc *GroupConfig) error {
	e.groupCfg = gc.clone()
	e.expanded = make(map[string]bool)
	return e.run()
}

// SetRows replaces the rows axis.
func (e *Engine) SetRows(fields ...AxisField) error {
	e.rows = append([]AxisField(nil), fields...)
	return e.run()
}

// SetColumns replaces the columns axis. Columns that stay keep their width.
func (e *Engine) SetColumns(fields ...AxisField) error {
	prev := make(map[string]float64, len(e.columns))
	for i, c := range e.columns {
		prev[c.UniqueName] = e.widths[i]
	}
	e.columns = append([]AxisField(nil), fields...)
	e.widths = make([]float64, len(fields))
	for i, c := range fields {
		if w, ok := prev[c.UniqueName]; ok {
			e.widths[i] = w
		} else {
			e.widths[i] = e.opts.defaultColumnWidth
		}
	}
	return e.run()
}

// SetMeasures replaces the measures. Measures without an aggregation use the
// default aggregation.
func (e *Engine) SetMeasures(measures ...aggregates.Measure) error {
	resolved, err := resolveMeasures(measures, e.defaultAgg)
	if err != nil {
		e.log.Error("rejected measures", "error", err)
		return err
	}
	e.declared = append([]aggregates.Measure(nil), measures...)
	e.measures = resolved
	return e.run()
}

// SetDimensions replaces the dimension metadata.
func (e *Engine) SetDimensions(dims ...Dimension) error {
	e.dimensions = append([]Dimension(nil), dims...)
	return e.run()
}

// SetAggregation changes the default aggregation, which applies to every
// measure declared without its own.
func (e *Engine) SetAggregation(kind aggregates.Kind) error {
	if !kind.Valid() {
		err := fmt.Errorf("%w: %s", aggregates.ErrUnknownAggregation, kind)
		e.log.Error("rejected aggregation", "error", err)
		return err
	}
	resolved, err := resolveMeasures(e.declared, kind)
	if err != nil {
		e.log.Error("rejected aggregation", "error", err)
		return err
	}
	e.defaultAgg = kind
	e.measures = resolved
	return e.run()
}

// SetMeasureAggregation changes the aggregation of one measure.
func (e *Engine) SetMeasureAggregation(uniqueName string, kind aggregates.Kind) error {
	if !kind.Valid() {
		err := fmt.Errorf("%w: %s", aggregates.ErrUnknownAggregation, kind)
		e.log.Error("rejected aggregation", "measure", uniqueName, "error", err)
		return err
	}
	declared := append([]aggregates.Measure(nil), e.declared...)
	found := false
	for i := range declared {
		if declared[i].UniqueName == uniqueName {
			declared[i].Aggregation = kind
			found = true
		}
	}
	if !found {
		err := fmt.Errorf("%w: %q", ErrUnknownMeasure, uniqueName)
		e.log.Warn("rejected aggregation", "error", err)
		return err
	}
	resolved, err := resolveMeasures(declared, e.defaultAgg)
	if err != nil {
		e.log.Error("rejected aggregation", "measure", uniqueName, "error", err)
		return err
	}
	e.declared = declared
	e.measures = resolved
	return e.run()
}

// ToggleRowExpansion flips the expansion flag of a group row and returns the
// new state. Rows are expanded by default.
func (e *Engine) ToggleRowExpansion(id string) bool {
	expanded := !e.isExpanded(id)
	e.SetRowExpansion(id, expanded)
	return expanded
}

// SetRowExpansion sets the expansion flag of a group row.
func (e *Engine) SetRowExpansion(id string, expanded bool) {
	e.expanded[id] = expanded
	e.rebuild()
}

func (e *Engine) isExpanded(id string) bool {
	expanded, ok := e.expanded[id]
	return !ok || expanded
}

// GoToPage moves to page n, clamped into range.
func (e *Engine) GoToPage(n int) {
	e.cursor = e.cursor.GoTo(n)
}

// SetPageSize changes the page size and clamps the current page.
func (e *Engine) SetPageSize(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, n)
	}
	e.cursor = e.cursor.WithSize(n)
	return nil
}

// Reset restores the state derivable from the configuration, keeping the
// loaded records but discarding grouping, sort, filters, drags, resizes and
// expansion.
func (e *Engine) Reset() error {
	if err := e.restore(); err != nil {
		return err
	}
	for i := range e.order {
		e.order[i] = i
	}
	e.heights = make(map[int]float64)
	return e.run()
}

// GetGroupedData returns a copy of the current group tree.
func (e *Engine) GetGroupedData() []*grouping.Group {
	return cloneGroups(e.groups)
}

// ProcessedData returns the flattened view.
func (e *Engine) ProcessedData() ProcessedData {
	return e.processed.clone()
}

// PageRows returns the processed rows of the current page.
func (e *Engine) PageRows() []Row {
	return append([]Row(nil), paging.Slice(e.processed.Rows, e.cursor)...)
}

// VisibleRange returns the processed rows a virtual-scroll renderer should
// draw for the given scroll offset and viewport, using the default row height.
func (e *Engine) VisibleRange(offset, viewport float64, buffer int) paging.Range {
	return paging.VisibleRange(offset, viewport, e.opts.defaultRowHeight, buffer).Clamp(len(e.processed.Rows))
}

func cloneGroups(groups []*grouping.Group) []*grouping.Group {
	if groups == nil {
		return nil
	}
	out := make([]*grouping.Group, len(groups))
	for i, g := range groups {
		c := *g
		c.Fields = append([]string(nil), g.Fields...)
		c.Values = append([]records.Value(nil), g.Values...)
		c.Items = append([]records.Record(nil), g.Items...)
		c.Aggregates = make(map[string]float64, len(g.Aggregates))
		for k, v := range g.Aggregates {
			c.Aggregates[k] = v
		}
		c.Subgroups = cloneGroups(g.Subgroups)
		out[i] = &c
	}
	return out
}

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
	"fmt"
	"time"

	"github.com/google/pivotcore/core/filtering"
	"github.com/google/pivotcore/core/grouping"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/sorting"
)

// run recomputes every derived field from the authoritative state.
func (e *Engine) run() error {
	start := time.Now()

	// 1. filter, keeping the authoritative order
	mask := filtering.Mask(e.data, e.filters)
	working := make([]int, 0, mask.GetCardinality())
	for _, i := range e.order {
		if mask.Contains(uint32(i)) {
			working = append(working, i)
		}
	}

	// 2. sort the flat working set
	sorter := sorting.NewSorter(e.directives, e.measures)
	sorter.SortIndices(working, func(i int) records.Record { return e.data[i] })
	items := e.recordsOf(working)

	// 3. group
	var groups []*grouping.Group
	fields, key, grouped := e.groupingFields()
	if grouped {
		groups = grouping.Build(items, fields, key)
	}

	// 4. aggregate every group from its own items, plus the grand totals
	if err := grouping.Aggregate(groups, e.measures); err != nil {
		e.log.Error("aggregation failed", "error", err)
		return fmt.Errorf("aggregate: %w", err)
	}
	totals, err := grouping.Compute(items, e.measures)
	if err != nil {
		e.log.Error("aggregation failed", "error", err)
		return fmt.Errorf("aggregate totals: %w", err)
	}
	grouping.Sort(groups, sorter)

	e.working = working
	e.groups = groups
	e.groupedBy = nil
	if grouped {
		e.groupedBy = fields
	}
	e.totals = totals

	// 5. and 6.
	e.rebuild()

	e.log.Debug("pipeline",
		"records", len(e.data),
		"working", len(working),
		"groups", len(groups),
		"rows", len(e.processed.Rows),
		"duration", time.Since(start))
	return nil
}

// rebuild regenerates processed data from the current working set and group
// tree and clamps the page cursor.
func (e *Engine) rebuild() {
	e.processed = e.buildProcessed()
	e.cursor = e.cursor.WithTotal(len(e.processed.Rows))
}

// groupingFields returns the effective grouping fields and key function. A
// malformed configuration is logged and means no grouping.
func (e *Engine) groupingFields() ([]string, grouping.KeyFunc, bool) {
	gc := e.groupCfg
	if gc == nil {
		return nil, nil, false
	}
	fields := gc.Fields
	if gc.FromAxes {
		fields = e.axisFields()
	}
	switch {
	case gc.Key == nil:
		e.log.Warn("group config has no key function, grouping disabled")
		return nil, nil, false
	case len(fields) == 0:
		e.log.Warn("group config has no fields, grouping disabled", "fromAxes", gc.FromAxes)
		return nil, nil, false
	}
	return fields, gc.Key, true
}

// axisFields returns the rows axis followed by the columns axis.
func (e *Engine) axisFields() []string {
	fields := make([]string, 0, len(e.rows)+len(e.columns))
	for _, a := range e.rows {
		fields = append(fields, a.UniqueName)
	}
	for _, a := range e.columns {
		fields = append(fields, a.UniqueName)
	}
	return fields
}

func (e *Engine) recordsOf(indices []int) []records.Record {
	out := make([]records.Record, len(indices))
	for i, idx := range indices {
		out[i] = e.data[idx]
	}
	return out
}

func (e *Engine) rowHeight(dataIndex int) float64 {
	if h, ok := e.heights[dataIndex]; ok {
		return h
	}
	return e.opts.defaultRowHeight
}

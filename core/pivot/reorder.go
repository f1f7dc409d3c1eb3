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
	"math"
	"slices"
)

// move returns a copy of s with the element at from moved to index to.
func move[T any](s []T, from, to int) []T {
	out := make([]T, 0, len(s))
	out = append(out, s[:from]...)
	out = append(out, s[from+1:]...)
	return slices.Insert(out, to, s[from])
}

// checkIndices validates 0 <= from < n and 0 <= to < n.
func (e *Engine) checkIndices(op string, from, to, n int) error {
	if from < 0 || from >= n || to < 0 || to >= n {
		e.log.Warn("rejected "+op, "from", from, "to", to, "n", n)
		return fmt.Errorf("%w: %s(%d, %d) with %d entries", ErrInvalidIndex, op, from, to, n)
	}
	return nil
}

// DragRow moves the working-set row at from to position to. Row heights
// follow their records. When grouping is active the top-level groups are
// moved the same way without regrouping, and both indices must also address
// top-level groups. from == to is a no-op. Invalid indices leave the state
// untouched.
func (e *Engine) DragRow(from, to int) error {
	if err := e.checkIndices("dragRow", from, to, len(e.working)); err != nil {
		return err
	}
	if e.groupedBy != nil {
		if err := e.checkIndices("dragRow", from, to, len(e.groups)); err != nil {
			return err
		}
	}
	if from == to {
		return nil
	}

	working := move(e.working, from, to)

	// Write the new working order back into the slots the working set
	// occupies in the authoritative order; filtered-out records stay put.
	member := make(map[int]bool, len(working))
	for _, idx := range working {
		member[idx] = true
	}
	next := 0
	for i, idx := range e.order {
		if member[idx] {
			e.order[i] = working[next]
			next++
		}
	}
	e.working = working

	if e.groupedBy != nil {
		e.groups = move(e.groups, from, to)
	}
	e.rebuild()
	return nil
}

// DragColumn moves the columns axis field at from to position to. Widths move
// with their column. The column observer is notified after the pipeline ran.
func (e *Engine) DragColumn(from, to int) error {
	if err := e.checkIndices("dragColumn", from, to, len(e.columns)); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	e.columns = move(e.columns, from, to)
	e.widths = move(e.widths, from, to)
	if err := e.run(); err != nil {
		return err
	}

	if e.opts.observer != nil {
		e.opts.observer(ColumnOrder{
			From:    from,
			To:      to,
			Columns: append([]AxisField(nil), e.columns...),
			Widths:  append([]float64(nil), e.widths...),
		})
	}
	return nil
}

// ResizeRow sets the height of the working-set row at index, clamped to the
// minimum row height. Nothing else is recomputed.
func (e *Engine) ResizeRow(index int, height float64) error {
	if index < 0 || index >= len(e.working) {
		e.log.Warn("rejected resizeRow", "index", index, "n", len(e.working))
		return fmt.Errorf("%w: resizeRow(%d) with %d rows", ErrInvalidIndex, index, len(e.working))
	}
	if math.IsNaN(height) || height < e.opts.minRowHeight {
		height = e.opts.minRowHeight
	}

	idx := e.working[index]
	e.heights[idx] = height
	if e.groupedBy == nil && index < len(e.processed.Rows) {
		e.processed.Rows[index].Height = height
	}
	return nil
}

// SetColumnWidth sets the width of the columns axis field at index.
func (e *Engine) SetColumnWidth(index int, width float64) error {
	if index < 0 || index >= len(e.columns) {
		e.log.Warn("rejected setColumnWidth", "index", index, "n", len(e.columns))
		return fmt.Errorf("%w: setColumnWidth(%d) with %d columns", ErrInvalidIndex, index, len(e.columns))
	}
	if math.IsNaN(width) || width < defaultMinimumColumnWidth {
		width = defaultMinimumColumnWidth
	}
	e.widths[index] = width
	e.rebuild()
	return nil
}

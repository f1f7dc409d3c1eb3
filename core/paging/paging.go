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

// Package paging slices a result into pages and computes the visible window
// for an external virtual-scroll renderer.
package paging

import "math"

// Cursor is a page position over Total rows. Pages are 1-based.
type Cursor struct {
	Page  int
	Size  int
	Total int
}

// NewCursor returns a cursor on the first page. A size below 1 is raised to 1.
func NewCursor(size, total int) Cursor {
	if size < 1 {
		size = 1
	}
	return Cursor{Page: 1, Size: size, Total: total}.clamp()
}

// TotalPages is ceil(Total/Size), 0 when there are no rows.
func (c Cursor) TotalPages() int {
	if c.Total <= 0 || c.Size <= 0 {
		return 0
	}
	return (c.Total + c.Size - 1) / c.Size
}

func (c Cursor) clamp() Cursor {
	last := c.TotalPages()
	if last < 1 {
		last = 1
	}
	if c.Page > last {
		c.Page = last
	}
	if c.Page < 1 {
		c.Page = 1
	}
	return c
}

// GoTo moves to page n, clamped into [1, TotalPages].
func (c Cursor) GoTo(n int) Cursor {
	c.Page = n
	return c.clamp()
}

// WithSize changes the page size and clamps the current page.
func (c Cursor) WithSize(size int) Cursor {
	if size < 1 {
		size = 1
	}
	c.Size = size
	return c.clamp()
}

// WithTotal changes the row count and clamps the current page.
func (c Cursor) WithTotal(total int) Cursor {
	if total < 0 {
		total = 0
	}
	c.Total = total
	return c.clamp()
}

// Bounds returns the half-open row range [start, end) of the current page.
func (c Cursor) Bounds() (start, end int) {
	if c.Total <= 0 {
		return 0, 0
	}
	start = (c.Page - 1) * c.Size
	if start > c.Total {
		start = c.Total
	}
	end = start + c.Size
	if end > c.Total {
		end = c.Total
	}
	return start, end
}

// HasNext reports whether a page follows the current one.
func (c Cursor) HasNext() bool {
	return c.Page < c.TotalPages()
}

// HasPrev reports whether a page precedes the current one.
func (c Cursor) HasPrev() bool {
	return c.Page > 1
}

// Slice returns the rows of the current page.
func Slice[T any](rows []T, c Cursor) []T {
	c = c.WithTotal(len(rows))
	start, end := c.Bounds()
	return rows[start:end]
}

// Range is a half-open row interval.
type Range struct {
	Start int
	End   int
}

// Len returns the number of rows in the range.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Clamp bounds the range to [0, n).
func (r Range) Clamp(n int) Range {
	if n < 0 {
		n = 0
	}
	if r.Start < 0 {
		r.Start = 0
	}
	if r.End > n {
		r.End = n
	}
	if r.Start > r.End {
		r.Start = r.End
	}
	return r
}

// VisibleRange returns the rows intersecting the viewport
// [offset, offset+viewport), widened by buffer rows on each side.
// It is a pure function; callers clamp the result to their row count.
func VisibleRange(offset, viewport, rowHeight float64, buffer int) Range {
	if rowHeight <= 0 || viewport < 0 || math.IsNaN(offset) || math.IsNaN(viewport) {
		return Range{}
	}
	if offset < 0 {
		offset = 0
	}
	if buffer < 0 {
		buffer = 0
	}
	start := int(math.Floor(offset/rowHeight)) - buffer
	end := int(math.Ceil((offset+viewport)/rowHeight)) + buffer
	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	return Range{Start: start, End: end}
}

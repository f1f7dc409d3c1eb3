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

package paging

import (
	"reflect"
	"testing"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		size, total, want int
	}{
		{10, 0, 0},
		{10, 1, 1},
		{10, 10, 1},
		{10, 11, 2},
		{3, 10, 4},
		{1, 5, 5},
	}
	for _, tt := range tests {
		if got := NewCursor(tt.size, tt.total).TotalPages(); got != tt.want {
			t.Errorf("TotalPages(size=%d,total=%d) = %d, want %d", tt.size, tt.total, got, tt.want)
		}
	}
}

func TestGoToClamps(t *testing.T) {
	c := NewCursor(10, 35)
	tests := []struct {
		page, want int
	}{
		{1, 1}, {4, 4}, {5, 4}, {100, 4}, {0, 1}, {-3, 1},
	}
	for _, tt := range tests {
		if got := c.GoTo(tt.page).Page; got != tt.want {
			t.Errorf("GoTo(%d) = %d, want %d", tt.page, got, tt.want)
		}
	}
	if got := NewCursor(10, 0).GoTo(3).Page; got != 1 {
		t.Errorf("GoTo on empty = %d, want 1", got)
	}
}

func TestWithSizeClampsPage(t *testing.T) {
	c := NewCursor(10, 95).GoTo(10)
	c = c.WithSize(50)
	if c.Page != 2 || c.TotalPages() != 2 {
		t.Errorf("after resize: page %d of %d", c.Page, c.TotalPages())
	}
	if got := c.WithSize(0).Size; got != 1 {
		t.Errorf("WithSize(0).Size = %d, want 1", got)
	}
	if got := c.WithTotal(0).Page; got != 1 {
		t.Errorf("WithTotal(0).Page = %d, want 1", got)
	}
}

func TestPaginationCoverage(t *testing.T) {
	for total := 0; total <= 23; total++ {
		for size := 1; size <= 7; size++ {
			c := NewCursor(size, total)
			pages := c.TotalPages()
			if total > 0 && !(pages*size >= total && total > (pages-1)*size) {
				t.Fatalf("size=%d total=%d: %d pages violates bounds", size, total, pages)
			}
			seen := make([]int, total)
			for p := 1; p <= pages; p++ {
				start, end := c.GoTo(p).Bounds()
				for i := start; i < end; i++ {
					seen[i]++
				}
			}
			for i, n := range seen {
				if n != 1 {
					t.Fatalf("size=%d total=%d: row %d seen %d times", size, total, i, n)
				}
			}
		}
	}
}

func TestSlice(t *testing.T) {
	rows := []string{"a", "b", "c", "d", "e"}
	c := NewCursor(2, len(rows))
	if got := Slice(rows, c.GoTo(3)); !reflect.DeepEqual(got, []string{"e"}) {
		t.Errorf("page 3 = %v", got)
	}
	if got := Slice(rows, c); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("page 1 = %v", got)
	}
	if !c.HasNext() || c.HasPrev() || c.GoTo(3).HasNext() {
		t.Error("HasNext/HasPrev wrong")
	}
	if got := Slice([]string{}, c); len(got) != 0 {
		t.Errorf("empty slice = %v", got)
	}
}

func TestVisibleRange(t *testing.T) {
	tests := []struct {
		name                        string
		offset, viewport, rowHeight float64
		buffer                      int
		want                        Range
	}{
		{"top", 0, 100, 20, 0, Range{0, 5}},
		{"partial rows", 30, 100, 20, 0, Range{1, 7}},
		{"buffer", 200, 100, 20, 3, Range{7, 18}},
		{"buffer clipped at zero", 10, 40, 20, 5, Range{0, 8}},
		{"negative offset", -50, 40, 20, 0, Range{0, 2}},
		{"zero height", 0, 100, 0, 2, Range{}},
		{"empty viewport", 40, 0, 20, 0, Range{2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VisibleRange(tt.offset, tt.viewport, tt.rowHeight, tt.buffer); got != tt.want {
				t.Errorf("VisibleRange = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRangeClamp(t *testing.T) {
	r := VisibleRange(180, 100, 20, 2).Clamp(12)
	if r != (Range{7, 12}) || r.Len() != 5 {
		t.Errorf("Clamp = %+v (len %d)", r, r.Len())
	}
	if r := (Range{20, 30}).Clamp(10); r.Len() != 0 {
		t.Errorf("Clamp past end = %+v", r)
	}
}

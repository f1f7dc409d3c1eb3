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

// Package sorting orders records and aggregated groups by an ordered list of
// directives. Directive order is tie-break priority; equal elements keep
// their prior relative order.
package sorting

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/records"
)

// ErrUnknownDirection is returned when parsing an unsupported direction.
var ErrUnknownDirection = errors.New("unknown sort direction")

// Direction is ascending or descending.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// ParseDirection accepts asc/ascending and desc/descending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Asc, nil
	case "desc", "descending":
		return Desc, nil
	}
	return Asc, fmt.Errorf("%w: %q", ErrUnknownDirection, s)
}

// Kind tells whether a directive sorts by a raw field value or by a measure.
type Kind int

const (
	Dimension Kind = iota
	Measure
)

func (k Kind) String() string {
	if k == Measure {
		return "measure"
	}
	return "dimension"
}

// Directive is one sort key.
type Directive struct {
	Field     string
	Direction Direction
	Kind      Kind
	// Aggregation selects which aggregate a measure directive reads on
	// groups. None means the measure's own aggregation.
	Aggregation aggregates.Kind
}

// Validate checks the directive fields.
func (d Directive) Validate() error {
	if d.Field == "" {
		return errors.New("sort directive has no field")
	}
	if d.Direction != Asc && d.Direction != Desc {
		return fmt.Errorf("%w: %d", ErrUnknownDirection, int(d.Direction))
	}
	if d.Kind != Dimension && d.Kind != Measure {
		return fmt.Errorf("sort directive %q: unknown kind %d", d.Field, int(d.Kind))
	}
	if d.Aggregation != aggregates.None && !d.Aggregation.Valid() {
		return fmt.Errorf("sort directive %q: %w: %s", d.Field, aggregates.ErrUnknownAggregation, d.Aggregation)
	}
	return nil
}

func (d Directive) String() string {
	s := d.Field
	if d.Direction == Desc {
		s = "-" + s
	}
	if d.Kind == Measure && d.Aggregation != aggregates.None {
		s += "@" + d.Aggregation.String()
	}
	return s
}

// CompareValues orders two field values: numerically when both are numbers,
// lexically on their string forms otherwise.
func CompareValues(a, b records.Value) int {
	if a.Kind() == records.KindNumber && b.Kind() == records.KindNumber {
		fa, _ := a.Float()
		fb, _ := b.Float()
		return CompareFloats(fa, fb)
	}
	return strings.Compare(a.Text(), b.Text())
}

// CompareFloats compares two float64 values with NaN handling.
// NaN values are considered greater than all other values (sort to end).
func CompareFloats(a, b float64) int {
	aNaN := math.IsNaN(a)
	bNaN := math.IsNaN(b)

	if aNaN && bNaN {
		return 0
	}
	if aNaN {
		return 1
	}
	if bNaN {
		return -1
	}

	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// resolved is a directive with its measure looked up once.
type resolved struct {
	Directive
	measure aggregates.Measure
	key     string
}

// Sorter compares records and group aggregates by a list of directives.
type Sorter struct {
	directives []resolved
}

// NewSorter resolves measure directives against the given measures. A measure
// directive naming a field that is not a declared measure reads the field's
// numeric value and the sum aggregate.
func NewSorter(directives []Directive, measures []aggregates.Measure) *Sorter {
	byName := make(map[string]aggregates.Measure, len(measures))
	for _, m := range measures {
		byName[m.UniqueName] = m
	}

	s := &Sorter{directives: make([]resolved, 0, len(directives))}
	for _, d := range directives {
		r := resolved{Directive: d}
		if d.Kind == Measure {
			m, ok := byName[d.Field]
			if !ok {
				m = aggregates.Measure{UniqueName: d.Field, Aggregation: aggregates.Sum}
			}
			r.measure = m
			kind := d.Aggregation
			if kind == aggregates.None {
				kind = m.Aggregation
			}
			r.key = aggregates.Key(kind, d.Field)
		}
		s.directives = append(s.directives, r)
	}
	return s
}

// Empty reports whether the sorter has no directives.
func (s *Sorter) Empty() bool {
	return len(s.directives) == 0
}

// HasMeasures reports whether any directive sorts by a measure.
func (s *Sorter) HasMeasures() bool {
	for _, d := range s.directives {
		if d.Kind == Measure {
			return true
		}
	}
	return false
}

// CompareRecords returns -1, 0 or 1. Measure directives compare the per-record
// measure input (formula result or coerced field value).
func (s *Sorter) CompareRecords(a, b records.Record) int {
	for _, d := range s.directives {
		var cmp int
		if d.Kind == Measure {
			cmp = CompareFloats(d.measure.Value(a), d.measure.Value(b))
		} else {
			cmp = CompareValues(a.Get(d.Field), b.Get(d.Field))
		}
		if cmp != 0 {
			if d.Direction == Desc {
				return -cmp
			}
			return cmp
		}
	}
	return 0
}

// CompareAggregates compares two groups by their precomputed aggregates.
// Only measure directives apply; missing keys compare as NaN.
func (s *Sorter) CompareAggregates(a, b map[string]float64) int {
	for _, d := range s.directives {
		if d.Kind != Measure {
			continue
		}
		va, ok := a[d.key]
		if !ok {
			va = math.NaN()
		}
		vb, ok := b[d.key]
		if !ok {
			vb = math.NaN()
		}
		if cmp := CompareFloats(va, vb); cmp != 0 {
			if d.Direction == Desc {
				return -cmp
			}
			return cmp
		}
	}
	return 0
}

// SortRecords stably sorts records in place.
func (s *Sorter) SortRecords(items []records.Record) {
	if s.Empty() {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return s.CompareRecords(items[i], items[j]) < 0
	})
}

// SortIndices stably sorts indices in place, resolving each through at.
func (s *Sorter) SortIndices(indices []int, at func(int) records.Record) {
	if s.Empty() {
		return
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return s.CompareRecords(at(indices[i]), at(indices[j])) < 0
	})
}

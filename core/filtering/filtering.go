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

// Package filtering evaluates single-field predicates against records.
// A list of filters combines with AND; an empty list matches everything.
package filtering

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/google/pivotcore/core/records"
)

// ErrUnknownOperator is returned for an operator outside the known set.
var ErrUnknownOperator = errors.New("unknown filter operator")

// Operator is a comparison applied between a field value and the filter value.
type Operator int

const (
	Equals Operator = iota
	NotEquals
	Contains
	GreaterThan
	LessThan
	// Matches applies a pattern such as "OPEN"|'CLOSED' to the field's string form.
	Matches
)

var operatorNames = map[Operator]string{
	Equals:      "eq",
	NotEquals:   "ne",
	Contains:    "contains",
	GreaterThan: "gt",
	LessThan:    "lt",
	Matches:     "match",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operator(%d)", int(o))
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	_, ok := operatorNames[o]
	return ok
}

// ParseOperator accepts the short names (eq, ne, contains, gt, lt, match),
// the long names (equals, notEquals, greaterThan, lessThan, matches) and the
// symbols =, ==, !=, >, <, ~.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eq", "equals", "=", "==":
		return Equals, nil
	case "ne", "notequals", "not_equals", "!=", "<>":
		return NotEquals, nil
	case "contains":
		return Contains, nil
	case "gt", "greaterthan", "greater_than", ">":
		return GreaterThan, nil
	case "lt", "lessthan", "less_than", "<":
		return LessThan, nil
	case "match", "matches", "~":
		return Matches, nil
	}
	return Equals, fmt.Errorf("%w: %q", ErrUnknownOperator, s)
}

// Filter is one predicate over a single field.
type Filter struct {
	Field    string
	Operator Operator
	Value    records.Value
}

// Validate checks the field name and operator.
func (f Filter) Validate() error {
	if f.Field == "" {
		return errors.New("filter has no field")
	}
	if !f.Operator.Valid() {
		return fmt.Errorf("filter on %q: %w: %d", f.Field, ErrUnknownOperator, int(f.Operator))
	}
	return nil
}

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %s", f.Field, f.Operator, f.Value)
}

// Eval evaluates the filter against one record.
func (f Filter) Eval(r records.Record) bool {
	v := r.Get(f.Field)
	switch f.Operator {
	case Equals:
		return equal(v, f.Value)
	case NotEquals:
		return !equal(v, f.Value)
	case Contains:
		if v.IsNull() {
			return false
		}
		return strings.Contains(v.Text(), f.Value.Text())
	case GreaterThan, LessThan:
		a, ok := v.Float()
		if !ok {
			return false
		}
		b, ok := f.Value.Float()
		if !ok {
			return false
		}
		if f.Operator == GreaterThan {
			return a > b
		}
		return a < b
	case Matches:
		return Match(f.Value.Text(), v.Text())
	}
	return false
}

// equal compares numerically when both sides coerce to numbers, by string
// form otherwise. Null equals only null.
func equal(a, b records.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if fa, ok := a.Float(); ok {
		if fb, ok := b.Float(); ok {
			return fa == fb
		}
	}
	return a.Text() == b.Text()
}

// MatchesAll reports whether r satisfies every filter.
func MatchesAll(r records.Record, filters []Filter) bool {
	for _, f := range filters {
		if !f.Eval(r) {
			return false
		}
	}
	return true
}

// Mask returns the positions of items satisfying every filter. Each filter
// is evaluated into its own bitmap and the bitmaps are intersected.
func Mask(items []records.Record, filters []Filter) *roaring.Bitmap {
	if len(filters) == 0 {
		all := roaring.New()
		all.AddRange(0, uint64(len(items)))
		return all
	}

	var result *roaring.Bitmap
	for _, f := range filters {
		bm := roaring.New()
		for i, r := range items {
			if result != nil && !result.Contains(uint32(i)) {
				continue
			}
			if f.Eval(r) {
				bm.Add(uint32(i))
			}
		}

		if result == nil {
			result = bm
		} else {
			result = roaring.And(result, bm)
		}
		if result.IsEmpty() {
			return result
		}
	}
	return result
}

// Apply returns the items satisfying every filter, in their original order.
func Apply(items []records.Record, filters []Filter) []records.Record {
	mask := Mask(items, filters)
	out := make([]records.Record, 0, mask.GetCardinality())
	it := mask.Iterator()
	for it.HasNext() {
		out = append(out, items[it.Next()])
	}
	return out
}

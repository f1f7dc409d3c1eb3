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
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/expr"
	"github.com/google/pivotcore/core/filtering"
	"github.com/google/pivotcore/core/grouping"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/sorting"
)

// Source produces the records of a pivot. Implementations may block on disk
// or network I/O; the engine only calls Load from LoadData and Open.
type Source interface {
	Load(ctx context.Context) ([]records.Record, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]records.Record, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) ([]records.Record, error) {
	return f(ctx)
}

// AxisField is an entry of the rows or columns axis.
type AxisField struct {
	UniqueName string
	Caption    string
}

// Label returns the caption, falling back to the unique name.
func (a AxisField) Label() string {
	if a.Caption != "" {
		return a.Caption
	}
	return a.UniqueName
}

// Fields builds axis fields without captions.
func Fields(names ...string) []AxisField {
	out := make([]AxisField, len(names))
	for i, n := range names {
		out[i] = AxisField{UniqueName: n}
	}
	return out
}

// DimensionType describes the values of a dimension.
type DimensionType int

const (
	StringDimension DimensionType = iota
	NumberDimension
	DateDimension
)

func (t DimensionType) String() string {
	switch t {
	case NumberDimension:
		return "number"
	case DateDimension:
		return "date"
	default:
		return "string"
	}
}

// ParseDimensionType accepts string, number and date.
func ParseDimensionType(s string) (DimensionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string", "text":
		return StringDimension, nil
	case "number", "numeric":
		return NumberDimension, nil
	case "date", "datetime", "time":
		return DateDimension, nil
	}
	return StringDimension, fmt.Errorf("unknown dimension type %q", s)
}

// Dimension is a field eligible for grouping and filtering.
type Dimension struct {
	Field string
	Label string
	Type  DimensionType
}

// GroupConfig selects the grouping fields and key function. With FromAxes the
// fields are the rows axis followed by the columns axis, and follow later
// axis changes.
type GroupConfig struct {
	Fields   []string
	Key      grouping.KeyFunc
	FromAxes bool
}

// GroupBy groups by fields keyed on all remaining fields at each level.
func GroupBy(fields ...string) *GroupConfig {
	return &GroupConfig{Fields: fields, Key: grouping.TupleKey}
}

// GroupByAxes groups by the current rows then columns axis fields.
func GroupByAxes() *GroupConfig {
	return &GroupConfig{FromAxes: true, Key: grouping.TupleKey}
}

// Hierarchy groups by fields one field per level.
func Hierarchy(fields ...string) *GroupConfig {
	return &GroupConfig{Fields: fields, Key: grouping.LeadingKey}
}

// Hierarchical reports whether g keys each level by its leading field only.
func (g *GroupConfig) Hierarchical() bool {
	if g == nil || g.Key == nil {
		return false
	}
	return reflect.ValueOf(g.Key).Pointer() == reflect.ValueOf(grouping.LeadingKey).Pointer()
}

func (g *GroupConfig) clone() *GroupConfig {
	if g == nil {
		return nil
	}
	c := *g
	c.Fields = append([]string(nil), g.Fields...)
	return &c
}

// FormatType selects how FormatValue renders a field.
type FormatType int

const (
	NumberFormat FormatType = iota
	CurrencyFormat
	PercentFormat
	DateFormat
)

func (t FormatType) String() string {
	switch t {
	case CurrencyFormat:
		return "currency"
	case PercentFormat:
		return "percent"
	case DateFormat:
		return "date"
	default:
		return "number"
	}
}

// ParseFormatType accepts number, currency, percent(age) and date.
func ParseFormatType(s string) (FormatType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "number":
		return NumberFormat, nil
	case "currency":
		return CurrencyFormat, nil
	case "percent", "percentage":
		return PercentFormat, nil
	case "date":
		return DateFormat, nil
	}
	return NumberFormat, fmt.Errorf("unknown format type %q", s)
}

// Format is a display rule for one field.
type Format struct {
	Type     FormatType
	Decimals int
	// Symbol prefixes currency values, e.g. "$".
	Symbol string
	// Layout is a time layout for dates; RFC 3339 date when empty.
	Layout string
}

// Configuration is the declarative description of a pivot. The engine keeps
// its own copy; Reset returns to it.
type Configuration struct {
	// Records is used when Source is nil.
	Records []records.Record
	Source  Source

	Rows       []AxisField
	Columns    []AxisField
	Measures   []aggregates.Measure
	Dimensions []Dimension
	// DefaultAggregation applies to measures declared without one. Sum when unset.
	DefaultAggregation aggregates.Kind
	Formats            map[string]Format
	GroupConfig        *GroupConfig
	Sort               []sorting.Directive
	Filters            []filtering.Filter
	// PageSize overrides the engine option when positive.
	PageSize int
}

func (c Configuration) clone() Configuration {
	out := c
	out.Records = append([]records.Record(nil), c.Records...)
	out.Rows = append([]AxisField(nil), c.Rows...)
	out.Columns = append([]AxisField(nil), c.Columns...)
	out.Measures = append([]aggregates.Measure(nil), c.Measures...)
	out.Dimensions = append([]Dimension(nil), c.Dimensions...)
	out.Sort = append([]sorting.Directive(nil), c.Sort...)
	out.Filters = append([]filtering.Filter(nil), c.Filters...)
	out.GroupConfig = c.GroupConfig.clone()
	if c.Formats != nil {
		out.Formats = make(map[string]Format, len(c.Formats))
		for k, v := range c.Formats {
			out.Formats[k] = v
		}
	}
	return out
}

// resolveMeasures fills in the default aggregation, compiles expressions and
// validates the result. Declared measures are left untouched.
func resolveMeasures(declared []aggregates.Measure, def aggregates.Kind) ([]aggregates.Measure, error) {
	if def == aggregates.None {
		def = aggregates.Sum
	}
	if !def.Valid() {
		return nil, fmt.Errorf("default %w: %s", aggregates.ErrUnknownAggregation, def)
	}

	seen := make(map[string]bool, len(declared))
	out := make([]aggregates.Measure, 0, len(declared))
	for _, m := range declared {
		if seen[m.UniqueName] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateMeasure, m.UniqueName)
		}
		seen[m.UniqueName] = true

		if m.Aggregation == aggregates.None {
			m.Aggregation = def
		}
		if m.Formula == nil && m.Expression != "" {
			e, err := expr.Compile(m.Expression)
			if err != nil {
				return nil, fmt.Errorf("measure %q: %w", m.UniqueName, err)
			}
			m.Formula = e.Float
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func validateSort(directives []sorting.Directive) error {
	for _, d := range directives {
		if err := d.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateFilters(filters []filtering.Filter) error {
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

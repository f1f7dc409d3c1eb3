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

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/filtering"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/query"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/sorting"
)

// ErrUnsupportedFormat is returned for layout files that are neither TOML
// nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported layout format")

// Layout is the file form of a pivot.Configuration.
//
//	rows = [{ field = "region", caption = "Region" }]
//	sort = ["-revenue@sum", "region"]
//
//	[[measures]]
//	name = "revenue"
//	expression = "price * quantity"
//	format = { type = "currency", symbol = "$", decimals = 2 }
type Layout struct {
	Rows        []Axis                `toml:"rows" yaml:"rows"`
	Columns     []Axis                `toml:"columns" yaml:"columns"`
	Measures    []MeasureSpec         `toml:"measures" yaml:"measures"`
	Dimensions  []DimensionSpec       `toml:"dimensions" yaml:"dimensions"`
	Aggregation string                `toml:"aggregation" yaml:"aggregation"`
	Formats     map[string]FormatSpec `toml:"formats" yaml:"formats"`
	Group       *GroupSpec            `toml:"group" yaml:"group"`
	Sort        []string              `toml:"sort" yaml:"sort"` // "[-]field[@agg]"
	Filters     []FilterSpec          `toml:"filters" yaml:"filters"`
	PageSize    int                   `toml:"pageSize" yaml:"pageSize"`
}

type Axis struct {
	Field   string `toml:"field" yaml:"field"`
	Caption string `toml:"caption" yaml:"caption"`
}

type MeasureSpec struct {
	Name        string      `toml:"name" yaml:"name"`
	Caption     string      `toml:"caption" yaml:"caption"`
	Aggregation string      `toml:"aggregation" yaml:"aggregation"`
	Expression  string      `toml:"expression" yaml:"expression"`
	Format      *FormatSpec `toml:"format" yaml:"format"`
}

type DimensionSpec struct {
	Field string `toml:"field" yaml:"field"`
	Label string `toml:"label" yaml:"label"`
	Type  string `toml:"type" yaml:"type"`
}

type FormatSpec struct {
	Type     string `toml:"type" yaml:"type"`
	Decimals int    `toml:"decimals" yaml:"decimals"`
	Symbol   string `toml:"symbol" yaml:"symbol"`
	Layout   string `toml:"layout" yaml:"layout"`
}

// GroupSpec selects grouping fields. Axes groups by the rows then columns
// axes; Hierarchy keys each level by one field.
type GroupSpec struct {
	Fields    []string `toml:"fields" yaml:"fields"`
	Axes      bool     `toml:"axes" yaml:"axes"`
	Hierarchy bool     `toml:"hierarchy" yaml:"hierarchy"`
}

type FilterSpec struct {
	Field    string `toml:"field" yaml:"field"`
	Operator string `toml:"operator" yaml:"operator"`
	Value    any    `toml:"value" yaml:"value"`
}

// LoadLayout reads a layout file. The format follows the extension: .toml,
// .yaml or .yml.
func LoadLayout(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	l, err := DecodeLayout(f, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return l, nil
}

// DecodeLayout decodes a layout in the given format ("toml", "yaml" or "yml").
func DecodeLayout(r io.Reader, format string) (*Layout, error) {
	var l Layout
	switch strings.ToLower(format) {
	case "toml":
		if _, err := toml.NewDecoder(r).Decode(&l); err != nil {
			return nil, err
		}
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&l); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return &l, nil
}

// Configuration builds the engine configuration described by the layout.
// Unknown aggregation, operator, dimension and format names are errors.
func (l *Layout) Configuration() (pivot.Configuration, error) {
	var cfg pivot.Configuration

	cfg.Rows = axes(l.Rows)
	cfg.Columns = axes(l.Columns)
	cfg.PageSize = l.PageSize

	if l.Aggregation != "" {
		kind, err := aggregates.ParseKind(l.Aggregation)
		if err != nil {
			return cfg, fmt.Errorf("aggregation: %w", err)
		}
		cfg.DefaultAggregation = kind
	}

	for name, spec := range l.Formats {
		f, err := spec.format()
		if err != nil {
			return cfg, fmt.Errorf("format %q: %w", name, err)
		}
		if cfg.Formats == nil {
			cfg.Formats = make(map[string]pivot.Format)
		}
		cfg.Formats[name] = f
	}

	for _, m := range l.Measures {
		measure := aggregates.Measure{UniqueName: m.Name, Caption: m.Caption, Expression: m.Expression}
		if m.Aggregation != "" {
			kind, err := aggregates.ParseKind(m.Aggregation)
			if err != nil {
				return cfg, fmt.Errorf("measure %q: %w", m.Name, err)
			}
			measure.Aggregation = kind
		}
		if m.Format != nil {
			f, err := m.Format.format()
			if err != nil {
				return cfg, fmt.Errorf("measure %q: %w", m.Name, err)
			}
			if cfg.Formats == nil {
				cfg.Formats = make(map[string]pivot.Format)
			}
			cfg.Formats[m.Name] = f
		}
		cfg.Measures = append(cfg.Measures, measure)
	}

	for _, d := range l.Dimensions {
		typ, err := pivot.ParseDimensionType(d.Type)
		if err != nil {
			return cfg, fmt.Errorf("dimension %q: %w", d.Field, err)
		}
		cfg.Dimensions = append(cfg.Dimensions, pivot.Dimension{Field: d.Field, Label: d.Label, Type: typ})
	}

	if g := l.Group; g != nil {
		q := query.Query{Grouped: g.Fields, GroupAxes: g.Axes, Hierarchy: g.Hierarchy}
		cfg.GroupConfig = q.GroupConfig()
	}

	for _, s := range l.Sort {
		d, err := query.ParseDirective(s)
		if err != nil {
			return cfg, err
		}
		cfg.Sort = append(cfg.Sort, d)
	}
	if err := l.resolveSortKinds(cfg.Sort); err != nil {
		return cfg, err
	}

	for _, f := range l.Filters {
		op := filtering.Equals
		var err error
		if f.Operator != "" {
			op, err = filtering.ParseOperator(f.Operator)
		}
		if err != nil {
			return cfg, fmt.Errorf("filter on %q: %w", f.Field, err)
		}
		v, err := records.ValueOf(f.Value)
		if err != nil {
			return cfg, fmt.Errorf("filter on %q: %w", f.Field, err)
		}
		cfg.Filters = append(cfg.Filters, filtering.Filter{Field: f.Field, Operator: op, Value: v})
	}
	return cfg, nil
}

// resolveSortKinds marks directives that name a declared measure as measure
// directives: "-revenue" reads the same as "-revenue@".
func (l *Layout) resolveSortKinds(directives []sorting.Directive) error {
	measures := make(map[string]bool, len(l.Measures))
	for _, m := range l.Measures {
		measures[m.Name] = true
	}
	for i := range directives {
		if measures[directives[i].Field] {
			directives[i].Kind = sorting.Measure
		}
		if err := directives[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (s FormatSpec) format() (pivot.Format, error) {
	typ, err := pivot.ParseFormatType(s.Type)
	if err != nil {
		return pivot.Format{}, err
	}
	return pivot.Format{Type: typ, Decimals: s.Decimals, Symbol: s.Symbol, Layout: s.Layout}, nil
}

func axes(in []Axis) []pivot.AxisField {
	if len(in) == 0 {
		return nil
	}
	out := make([]pivot.AxisField, len(in))
	for i, a := range in {
		out[i] = pivot.AxisField{UniqueName: a.Field, Caption: a.Caption}
	}
	return out
}

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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/filtering"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/sorting"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
	assert.Equal(t, 25, s.PageSize)
	assert.Equal(t, 30*time.Second, s.Load.Timeout)
	assert.Equal(t, "127.0.0.1:8097", s.Serve.Addr)

	kind, err := s.Aggregation()
	require.NoError(t, err)
	assert.Equal(t, aggregates.Sum, kind)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PIVOT_PAGESIZE", "50")
	t.Setenv("PIVOT_LOGGING_LEVEL", "debug")
	t.Setenv("PIVOT_LOAD_TIMEOUT", "2s")
	t.Setenv("PIVOT_SERVE_ADDR", ":9000")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 50, s.PageSize)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, 2*time.Second, s.Load.Timeout)
	assert.Equal(t, ":9000", s.Serve.Addr)
	assert.Equal(t, 120.0, s.DefaultColumnWidth)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "settings.yaml", `
pageSize: 10
defaultAggregation: avg
locale: de
logging:
  format: json
load:
  concurrency: 2
  timeout: 5s
`)
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, s.PageSize)
	assert.Equal(t, "avg", s.DefaultAggregation)
	assert.Equal(t, "de", s.Locale)
	assert.Equal(t, "json", s.Logging.Format)
	assert.Equal(t, "info", s.Logging.Level)
	assert.Equal(t, 2, s.Load.Concurrency)
	assert.Equal(t, 5*time.Second, s.Load.Timeout)

	t.Setenv("PIVOT_PAGESIZE", "7")
	s, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, s.PageSize, "environment wins over the file")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"page size", "pageSize: 0", "pageSize"},
		{"aggregation", "defaultAggregation: median", "defaultAggregation"},
		{"row height", "minRowHeight: 40\ndefaultRowHeight: 30", "defaultRowHeight"},
		{"log format", "logging:\n  format: xml", "logging.format"},
		{"concurrency", "load:\n  concurrency: 0", "load.concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "settings.yaml", tt.content))
			var se *SettingsError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.field, se.Field)
		})
	}
}

func TestEngineOptions(t *testing.T) {
	s := Default()
	s.PageSize = 2
	s.DefaultRowHeight = 40
	s.Logging.Level = "silent"

	var buf bytes.Buffer
	e, err := pivot.New(pivot.Configuration{
		Records: []records.Record{
			records.MustNew(map[string]any{"a": 1}),
			records.MustNew(map[string]any{"a": 2}),
			records.MustNew(map[string]any{"a": 3}),
		},
	}, s.EngineOptions(s.Logger(&buf))...)
	require.NoError(t, err)

	st := e.GetState()
	assert.Equal(t, 2, st.PageSize)
	assert.Equal(t, 2, st.TotalPages)
	assert.Equal(t, []float64{40, 40, 40}, st.RowHeights)

	require.Error(t, e.DragRow(0, 9))
	assert.Empty(t, buf.String(), "silent level logs nothing")
}

const tomlLayout = `
aggregation = "sum"
sort = ["-revenue", "region"]
pageSize = 10

rows = [{ field = "region", caption = "Region" }]
columns = [{ field = "product" }]

[[measures]]
name = "revenue"
caption = "Revenue"
expression = "price * quantity"
format = { type = "currency", symbol = "$", decimals = 2 }

[[measures]]
name = "orders"
aggregation = "count"

[[dimensions]]
field = "day"
label = "Day"
type = "date"

[formats.day]
type = "date"
layout = "Jan 2"

[group]
fields = ["region", "product"]
hierarchy = true

[[filters]]
field = "quantity"
operator = "gt"
value = 1
`

const yamlLayout = `
aggregation: sum
sort: ["-revenue", region]
pageSize: 10
rows:
  - field: region
    caption: Region
columns:
  - field: product
measures:
  - name: revenue
    caption: Revenue
    expression: price * quantity
    format: {type: currency, symbol: "$", decimals: 2}
  - name: orders
    aggregation: count
dimensions:
  - field: day
    label: Day
    type: date
formats:
  day: {type: date, layout: Jan 2}
group:
  fields: [region, product]
  hierarchy: true
filters:
  - field: quantity
    operator: gt
    value: 1
`

func TestLayoutFormats(t *testing.T) {
	fromTOML, err := LoadLayout(writeFile(t, "layout.toml", tomlLayout))
	require.NoError(t, err)
	fromYAML, err := LoadLayout(writeFile(t, "layout.yml", yamlLayout))
	require.NoError(t, err)

	for name, l := range map[string]*Layout{"toml": fromTOML, "yaml": fromYAML} {
		t.Run(name, func(t *testing.T) {
			cfg, err := l.Configuration()
			require.NoError(t, err)

			assert.Equal(t, []pivot.AxisField{{UniqueName: "region", Caption: "Region"}}, cfg.Rows)
			assert.Equal(t, pivot.Fields("product"), cfg.Columns)
			assert.Equal(t, aggregates.Sum, cfg.DefaultAggregation)
			assert.Equal(t, 10, cfg.PageSize)

			require.Len(t, cfg.Measures, 2)
			assert.Equal(t, "price * quantity", cfg.Measures[0].Expression)
			assert.Equal(t, aggregates.None, cfg.Measures[0].Aggregation)
			assert.Equal(t, aggregates.Count, cfg.Measures[1].Aggregation)

			assert.Equal(t, pivot.Format{Type: pivot.CurrencyFormat, Symbol: "$", Decimals: 2}, cfg.Formats["revenue"])
			assert.Equal(t, pivot.Format{Type: pivot.DateFormat, Layout: "Jan 2"}, cfg.Formats["day"])
			assert.Equal(t, []pivot.Dimension{{Field: "day", Label: "Day", Type: pivot.DateDimension}}, cfg.Dimensions)

			require.NotNil(t, cfg.GroupConfig)
			assert.Equal(t, []string{"region", "product"}, cfg.GroupConfig.Fields)
			assert.True(t, cfg.GroupConfig.Hierarchical())

			assert.Equal(t, []sorting.Directive{
				{Field: "revenue", Direction: sorting.Desc, Kind: sorting.Measure},
				{Field: "region"},
			}, cfg.Sort)

			require.Len(t, cfg.Filters, 1)
			assert.Equal(t, filtering.GreaterThan, cfg.Filters[0].Operator)
			n, ok := cfg.Filters[0].Value.Float()
			assert.True(t, ok)
			assert.Equal(t, 1.0, n)
		})
	}
}

func TestLayoutDrivesEngine(t *testing.T) {
	l, err := DecodeLayout(strings.NewReader(yamlLayout), "yaml")
	require.NoError(t, err)
	cfg, err := l.Configuration()
	require.NoError(t, err)

	cfg.Records = []records.Record{
		records.MustNew(map[string]any{"region": "N", "product": "A", "price": 10, "quantity": 3}),
		records.MustNew(map[string]any{"region": "S", "product": "A", "price": 4, "quantity": 2}),
		records.MustNew(map[string]any{"region": "N", "product": "B", "price": 7, "quantity": 1}),
		records.MustNew(map[string]any{"region": "S", "product": "B", "price": 100, "quantity": 5}),
	}
	e, err := pivot.New(cfg)
	require.NoError(t, err)

	groups := e.GetGroupedData()
	require.Len(t, groups, 2)
	assert.Equal(t, "S", groups[0].Key, "revenue descending puts S (508) first")
	assert.Equal(t, 508.0, groups[0].Aggregates["sum_revenue"])
	assert.Equal(t, 30.0, groups[1].Aggregates["sum_revenue"])
	assert.Equal(t, "$538.00", e.ProcessedData().Totals[0].Text)
}

func TestLayoutErrors(t *testing.T) {
	tests := []struct {
		name   string
		layout string
	}{
		{"aggregation", "aggregation: median"},
		{"measure aggregation", "measures: [{name: x, aggregation: p50}]"},
		{"operator", "filters: [{field: a, operator: like, value: x}]"},
		{"dimension type", "dimensions: [{field: a, type: geo}]"},
		{"format type", "formats: {a: {type: roman}}"},
		{"sort", "sort: ['-']"},
		{"sort aggregation", "sort: ['x@median']"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := DecodeLayout(strings.NewReader(tt.layout), "yaml")
			require.NoError(t, err)
			_, err = l.Configuration()
			assert.Error(t, err)
		})
	}

	_, err := DecodeLayout(strings.NewReader("{}"), "json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	l, err := DecodeLayout(strings.NewReader(""), "yaml")
	require.NoError(t, err)
	cfg, err := l.Configuration()
	require.NoError(t, err)
	assert.Nil(t, cfg.GroupConfig)
}

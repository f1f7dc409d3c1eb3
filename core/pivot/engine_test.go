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
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/filtering"
	"github.com/google/pivotcore/core/grouping"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/sorting"
)

func salesRecords() []records.Record {
	rows := []map[string]any{
		{"region": "N", "product": "A", "sales": 100, "qty": 2},
		{"region": "S", "product": "A", "sales": 150, "qty": 1},
		{"region": "N", "product": "B", "sales": 50, "qty": 5},
		{"region": "E", "product": "B", "sales": 200, "qty": 4},
		{"region": "S", "product": "B", "sales": 25, "qty": 3},
		{"region": "N", "product": "A", "sales": 75, "qty": 1},
	}
	out := make([]records.Record, len(rows))
	for i, r := range rows {
		out[i] = records.MustNew(r)
	}
	return out
}

var salesSum = aggregates.Measure{UniqueName: "sales", Caption: "Sales", Aggregation: aggregates.Sum}

func newEngine(t *testing.T, cfg Configuration, opts ...Option) *Engine {
	t.Helper()
	if cfg.Records == nil {
		cfg.Records = salesRecords()
	}
	if cfg.Measures == nil {
		cfg.Measures = []aggregates.Measure{salesSum}
	}
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e
}

// tags identifies records by region and sales.
func tags(rs []records.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Get("region").Text() + ":" + r.Get("sales").Text()
	}
	return out
}

func groupKeys(groups []*grouping.Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Key
	}
	return out
}

func TestExampleScenario(t *testing.T) {
	e := newEngine(t, Configuration{
		Records: []records.Record{
			records.MustNew(map[string]any{"region": "N", "sales": 100}),
			records.MustNew(map[string]any{"region": "S", "sales": 150}),
			records.MustNew(map[string]any{"region": "N", "sales": 50}),
		},
		GroupConfig: GroupBy("region"),
	})

	groups := e.GetGroupedData()
	require.Len(t, groups, 2)
	assert.Equal(t, "N", groups[0].Key)
	assert.Len(t, groups[0].Items, 2)
	assert.Equal(t, map[string]float64{"sum_sales": 150}, groups[0].Aggregates)
	assert.Equal(t, "S", groups[1].Key)
	assert.Len(t, groups[1].Items, 1)
	assert.Equal(t, map[string]float64{"sum_sales": 150}, groups[1].Aggregates)
}

func TestPipelineFilterSortGroup(t *testing.T) {
	e := newEngine(t, Configuration{})

	require.NoError(t, e.ApplyFilters(filtering.Filter{Field: "sales", Operator: filtering.GreaterThan, Value: records.Number(40)}))
	require.NoError(t, e.Sort(sorting.Directive{Field: "region"}))
	assert.Equal(t, []string{"E:200", "N:100", "N:50", "N:75", "S:150"}, tags(e.GetState().Records))

	require.NoError(t, e.SetGroupConfig(GroupBy("region")))
	st := e.GetState()
	assert.Equal(t, []string{"E", "N", "S"}, groupKeys(st.Groups))
	assert.Equal(t, []string{"N:100", "N:50", "N:75"}, tags(st.Groups[1].Items))
	assert.Equal(t, 225.0, st.Groups[1].Aggregates["sum_sales"])
	assert.Equal(t, 575.0, st.Totals["sum_sales"])
	assert.Equal(t, []string{"region"}, st.GroupedBy)

	// measure sort orders the flat set, then the groups by their aggregates
	require.NoError(t, e.Sort(sorting.Directive{Field: "sales", Kind: sorting.Measure, Direction: sorting.Desc}))
	st = e.GetState()
	assert.Equal(t, []string{"E:200", "S:150", "N:100", "N:75", "N:50"}, tags(st.Records))
	assert.Equal(t, []string{"N", "E", "S"}, groupKeys(st.Groups))

	rows := st.Processed.Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "N", rows[0].ID)
	assert.Equal(t, []string{"N"}, rows[0].Labels)
	assert.Equal(t, 3, rows[0].Count)
	assert.Equal(t, -1, rows[0].Record)
	assert.Equal(t, 225.0, rows[0].Cells[0].Value)
	assert.Equal(t, "575", st.Processed.Totals[0].Text)
}

func TestProcessedDataHeaders(t *testing.T) {
	e := newEngine(t, Configuration{
		Rows:       []AxisField{{UniqueName: "region", Caption: "Region"}},
		Columns:    Fields("product"),
		Dimensions: []Dimension{{Field: "product", Label: "Product", Type: StringDimension}},
		Measures: []aggregates.Measure{
			salesSum,
			{UniqueName: "revenue", Expression: "sales * qty"},
		},
	})

	p := e.ProcessedData()
	dims := p.DimensionHeaders()
	require.Len(t, dims, 2)
	assert.Equal(t, "Region", dims[0].Caption)
	assert.Equal(t, "Product", dims[1].Caption)
	assert.Equal(t, float64(DefaultColumnWidth), dims[1].Width)

	ms := p.MeasureHeaders()
	require.Len(t, ms, 2)
	assert.Equal(t, "sum_revenue", ms[1].Key)
	assert.Equal(t, aggregates.Sum, ms[1].Aggregation)

	require.Len(t, p.Rows, 6)
	first := p.Rows[0]
	assert.Equal(t, "#0", first.ID)
	assert.Equal(t, []string{"N", "A"}, first.Labels)
	assert.Equal(t, 200.0, first.Cells[1].Value)
	assert.Equal(t, float64(DefaultRowHeight), first.Height)
	// 200 + 150 + 250 + 800 + 75 + 75
	assert.Equal(t, 1550.0, p.Totals[1].Value)
}

func TestGroupByAxes(t *testing.T) {
	e := newEngine(t, Configuration{
		Rows:        Fields("region"),
		Columns:     Fields("product"),
		GroupConfig: GroupByAxes(),
	})
	st := e.GetState()
	assert.Equal(t, []string{"region", "product"}, st.GroupedBy)
	assert.Equal(t, []string{"N|A", "S|A", "N|B", "E|B", "S|B"}, groupKeys(st.Groups))

	require.NoError(t, e.DragColumn(0, 0))
	require.NoError(t, e.SetColumns())
	assert.Equal(t, []string{"N", "S", "E"}, groupKeys(e.GetGroupedData()))
}

func TestPartitionLaw(t *testing.T) {
	for _, gc := range []*GroupConfig{GroupBy("region"), GroupBy("region", "product"), Hierarchy("product", "region")} {
		e := newEngine(t, Configuration{GroupConfig: gc})
		require.NoError(t, e.ApplyFilters(filtering.Filter{Field: "qty", Operator: filtering.LessThan, Value: records.Number(5)}))
		st := e.GetState()
		assert.ElementsMatch(t, tags(st.Records), tags(grouping.Items(st.Groups)))
		grouping.Walk(st.Groups, func(g *grouping.Group) bool {
			if !g.Leaf() {
				assert.ElementsMatch(t, tags(g.Items), tags(grouping.Items(g.Subgroups)))
			}
			return true
		})
	}
}

func TestAggregationLaws(t *testing.T) {
	e := newEngine(t, Configuration{
		Measures: []aggregates.Measure{
			{UniqueName: "total", Aggregation: aggregates.Sum, Expression: "sales"},
			{UniqueName: "mean", Aggregation: aggregates.Avg, Expression: "sales"},
			{UniqueName: "n", Aggregation: aggregates.Count},
			{UniqueName: "lo", Aggregation: aggregates.Min, Expression: "sales"},
			{UniqueName: "hi", Aggregation: aggregates.Max, Expression: "sales"},
		},
		GroupConfig: Hierarchy("region", "product"),
	})

	grouping.Walk(e.GetGroupedData(), func(g *grouping.Group) bool {
		a := g.Aggregates
		assert.InDelta(t, a["sum_total"], a["count_n"]*a["avg_mean"], 1e-9, "group %s", g.ID)
		for _, r := range g.Items {
			v := r.Float("sales")
			assert.LessOrEqual(t, a["min_lo"], v)
			assert.GreaterOrEqual(t, a["max_hi"], v)
		}
		return true
	})
}

func TestEmptyWorkingSetSentinels(t *testing.T) {
	e := newEngine(t, Configuration{
		Measures: []aggregates.Measure{
			{UniqueName: "mean", Aggregation: aggregates.Avg, Expression: "sales"},
			{UniqueName: "lo", Aggregation: aggregates.Min, Expression: "sales"},
			{UniqueName: "hi", Aggregation: aggregates.Max, Expression: "sales"},
		},
	})
	require.NoError(t, e.ApplyFilters(filtering.Filter{Field: "region", Operator: filtering.Equals, Value: records.String("X")}))

	st := e.GetState()
	assert.Empty(t, st.Records)
	assert.True(t, math.IsNaN(st.Totals["avg_mean"]))
	assert.True(t, math.IsInf(st.Totals["min_lo"], 1))
	assert.True(t, math.IsInf(st.Totals["max_hi"], -1))
	for _, c := range st.Processed.Totals {
		assert.Equal(t, aggregates.Placeholder, c.Text)
	}
	assert.Equal(t, 0, st.TotalPages)
	assert.Equal(t, 1, st.Page)
}

func TestSortStabilityAndReversal(t *testing.T) {
	e := newEngine(t, Configuration{})
	asc := sorting.Directive{Field: "sales"}

	require.NoError(t, e.Sort(asc))
	first := tags(e.GetState().Records)
	require.NoError(t, e.Sort(asc))
	assert.Equal(t, first, tags(e.GetState().Records))

	require.NoError(t, e.Sort(sorting.Directive{Field: "sales", Direction: sorting.Desc}))
	desc := tags(e.GetState().Records)
	for i := range first {
		assert.Equal(t, first[i], desc[len(desc)-1-i])
	}

	// ties keep their prior relative order in both directions
	require.NoError(t, e.Sort())
	require.NoError(t, e.Sort(sorting.Directive{Field: "product", Direction: sorting.Desc}))
	assert.Equal(t, []string{"N:50", "E:200", "S:25", "N:100", "S:150", "N:75"}, tags(e.GetState().Records))
}

func TestFilterIdempotenceAndReplace(t *testing.T) {
	e := newEngine(t, Configuration{}, WithPageSize(2))
	e.GoToPage(3)
	require.Equal(t, 3, e.GetState().Page)

	f := filtering.Filter{Field: "region", Operator: filtering.Equals, Value: records.String("N")}
	require.NoError(t, e.ApplyFilters(f))
	once := tags(e.GetState().Records)
	assert.Equal(t, 1, e.GetState().Page)

	require.NoError(t, e.ApplyFilters(f))
	assert.Equal(t, once, tags(e.GetState().Records))
	assert.Equal(t, []string{"N:100", "N:50", "N:75"}, once)

	// filters replace, never merge
	require.NoError(t, e.ApplyFilters(filtering.Filter{Field: "product", Operator: filtering.Equals, Value: records.String("B")}))
	assert.Equal(t, []string{"N:50", "E:200", "S:25"}, tags(e.GetState().Records))

	require.NoError(t, e.ApplyFilters())
	assert.Equal(t, tags(salesRecords()), tags(e.GetState().Records))

	err := e.ApplyFilters(filtering.Filter{Field: "region", Operator: filtering.Operator(99)})
	assert.ErrorIs(t, err, filtering.ErrUnknownOperator)
	assert.Len(t, e.GetState().Records, 6)
}

func TestPaginationCoverage(t *testing.T) {
	e := newEngine(t, Configuration{})
	for size := 1; size <= 7; size++ {
		require.NoError(t, e.SetPageSize(size))
		st := e.GetState()
		n := len(st.Processed.Rows)
		require.True(t, st.TotalPages*size >= n && n > (st.TotalPages-1)*size)

		seen := map[string]int{}
		for page := 1; page <= st.TotalPages; page++ {
			e.GoToPage(page)
			for _, r := range e.PageRows() {
				seen[r.ID]++
			}
		}
		assert.Len(t, seen, n)
		for id, count := range seen {
			assert.Equal(t, 1, count, "row %s with page size %d", id, size)
		}
	}

	e.GoToPage(100)
	assert.Equal(t, 1, e.GetState().Page)
	require.NoError(t, e.SetPageSize(4))
	e.GoToPage(2)
	require.NoError(t, e.SetPageSize(10))
	assert.Equal(t, 1, e.GetState().Page)
	assert.ErrorIs(t, e.SetPageSize(0), ErrInvalidPageSize)
}

func TestDragRowRoundTrip(t *testing.T) {
	e := newEngine(t, Configuration{})
	require.NoError(t, e.ResizeRow(0, 50))
	before := e.GetState()

	require.NoError(t, e.DragRow(0, 2))
	moved := e.GetState()
	assert.Equal(t, []string{"S:150", "N:50", "N:100", "E:200", "S:25", "N:75"}, tags(moved.Records))
	assert.Equal(t, []float64{32, 32, 50, 32, 32, 32}, moved.RowHeights)
	assert.Equal(t, "#0", moved.Processed.Rows[2].ID)

	require.NoError(t, e.DragRow(2, 0))
	after := e.GetState()
	assert.Equal(t, tags(before.Records), tags(after.Records))
	assert.Equal(t, before.RowHeights, after.RowHeights)
}

func TestDragRowKeepsOrderAcrossFilters(t *testing.T) {
	e := newEngine(t, Configuration{})
	require.NoError(t, e.DragRow(5, 0))
	require.NoError(t, e.ApplyFilters(filtering.Filter{Field: "region", Operator: filtering.Equals, Value: records.String("N")}))
	assert.Equal(t, []string{"N:75", "N:100", "N:50"}, tags(e.GetState().Records))
	require.NoError(t, e.ApplyFilters())
	assert.Equal(t, []string{"N:75", "N:100", "S:150", "N:50", "E:200", "S:25"}, tags(e.GetState().Records))
}

func TestDragRowRejectsInvalidIndices(t *testing.T) {
	e := newEngine(t, Configuration{})
	before := e.GetState()

	for _, c := range [][2]int{{-1, 0}, {0, -1}, {6, 0}, {0, 6}, {10, 20}} {
		err := e.DragRow(c[0], c[1])
		assert.ErrorIs(t, err, ErrInvalidIndex, "DragRow(%d, %d)", c[0], c[1])
	}
	assert.NoError(t, e.DragRow(3, 3))
	assert.Equal(t, before, e.GetState())

	// grouped: indices must address top-level groups too
	require.NoError(t, e.SetGroupConfig(GroupBy("region")))
	grouped := e.GetState()
	assert.ErrorIs(t, e.DragRow(0, 4), ErrInvalidIndex)
	after := e.GetState()
	assert.Equal(t, tags(grouped.Records), tags(after.Records))
	assert.Equal(t, groupKeys(grouped.Groups), groupKeys(after.Groups))
	assert.Equal(t, grouped.Processed, after.Processed)
	assert.Equal(t, grouped.RowHeights, after.RowHeights)
}

func TestDragRowGrouped(t *testing.T) {
	e := newEngine(t, Configuration{GroupConfig: GroupBy("region")})
	assert.Equal(t, []string{"N", "S", "E"}, groupKeys(e.GetGroupedData()))

	require.NoError(t, e.DragRow(0, 2))
	st := e.GetState()
	assert.Equal(t, []string{"S", "E", "N"}, groupKeys(st.Groups))
	assert.Equal(t, []string{"S", "E", "N"}, []string{st.Processed.Rows[0].ID, st.Processed.Rows[1].ID, st.Processed.Rows[2].ID})
	assert.Equal(t, []string{"S:150", "N:50", "N:100", "E:200", "S:25", "N:75"}, tags(st.Records))
	// groups were permuted, not rebuilt
	assert.Equal(t, 225.0, st.Groups[2].Aggregates["sum_sales"])

	require.NoError(t, e.DragRow(2, 0))
	assert.Equal(t, []string{"N", "S", "E"}, groupKeys(e.GetGroupedData()))
}

func TestDragColumn(t *testing.T) {
	var notified []ColumnOrder
	e := newEngine(t, Configuration{Columns: Fields("product", "region", "qty")},
		WithColumnObserver(func(o ColumnOrder) { notified = append(notified, o) }))

	require.NoError(t, e.SetColumnWidth(0, 200))
	require.NoError(t, e.DragColumn(0, 2))

	st := e.GetState()
	assert.Equal(t, Fields("region", "qty", "product"), st.Columns)
	assert.Equal(t, []float64{120, 120, 200}, st.ColumnWidths)
	dims := st.Processed.DimensionHeaders()
	require.Len(t, dims, 3)
	assert.Equal(t, "product", dims[2].Field)
	assert.Equal(t, 200.0, dims[2].Width)
	assert.Equal(t, []string{"N", "2", "A"}, st.Processed.Rows[0].Labels)

	require.Len(t, notified, 1)
	assert.Equal(t, 0, notified[0].From)
	assert.Equal(t, 2, notified[0].To)
	assert.Equal(t, st.Columns, notified[0].Columns)
	assert.Equal(t, st.ColumnWidths, notified[0].Widths)

	assert.ErrorIs(t, e.DragColumn(0, 3), ErrInvalidIndex)
	assert.NoError(t, e.DragColumn(1, 1))
	assert.Len(t, notified, 1)
	assert.Equal(t, st.Columns, e.GetState().Columns)

	require.NoError(t, e.DragColumn(2, 0))
	assert.Equal(t, []float64{200, 120, 120}, e.GetState().ColumnWidths)
}

func TestResizeRow(t *testing.T) {
	e := newEngine(t, Configuration{}, WithMinRowHeight(20))

	require.NoError(t, e.ResizeRow(1, 5))
	require.NoError(t, e.ResizeRow(2, 44))
	st := e.GetState()
	assert.Equal(t, []float64{32, 20, 44, 32, 32, 32}, st.RowHeights)
	assert.Equal(t, 20.0, st.Processed.Rows[1].Height)
	assert.Equal(t, 32.0, st.Processed.Rows[0].Height)

	assert.ErrorIs(t, e.ResizeRow(6, 40), ErrInvalidIndex)
	assert.ErrorIs(t, e.ResizeRow(-1, 40), ErrInvalidIndex)
	assert.Equal(t, st.RowHeights, e.GetState().RowHeights)

	// heights follow their records through a sort
	require.NoError(t, e.Sort(sorting.Directive{Field: "sales"}))
	assert.Equal(t, []string{"S:25", "N:50", "N:75", "N:100", "S:150", "E:200"}, tags(e.GetState().Records))
	assert.Equal(t, []float64{32, 44, 32, 32, 20, 32}, e.GetState().RowHeights)
}

func TestToggleRowExpansion(t *testing.T) {
	e := newEngine(t, Configuration{GroupConfig: Hierarchy("region", "product")})
	ids := func() []string {
		var out []string
		for _, r := range e.ProcessedData().Rows {
			out = append(out, r.ID)
		}
		return out
	}
	assert.Equal(t, []string{"N", "N/A", "N/B", "S", "S/A", "S/B", "E", "E/B"}, ids())

	assert.False(t, e.ToggleRowExpansion("N"))
	assert.Equal(t, []string{"N", "S", "S/A", "S/B", "E", "E/B"}, ids())
	row := e.ProcessedData().Rows[0]
	assert.True(t, row.Expandable)
	assert.False(t, row.Expanded)
	assert.Equal(t, []string{"N", ""}, row.Labels)

	assert.True(t, e.ToggleRowExpansion("N"))
	assert.Len(t, ids(), 8)
	assert.Equal(t, []string{"", "A"}, e.ProcessedData().Rows[1].Labels)
}

func TestToggleRowExpansionSlashInValue(t *testing.T) {
	e := newEngine(t, Configuration{
		Records: []records.Record{
			records.MustNew(map[string]any{"a": "x/y", "b": "z", "sales": 1}),
			records.MustNew(map[string]any{"a": "x", "b": "y", "sales": 2}),
		},
		GroupConfig: Hierarchy("a", "b"),
	})

	e.ToggleRowExpansion("x/y")
	var collapsed []string
	for _, r := range e.ProcessedData().Rows {
		if r.Expandable && !r.Expanded {
			collapsed = append(collapsed, r.ID)
		}
	}
	assert.Empty(t, collapsed, "x/y names the child y of x, which has no children")

	e.ToggleRowExpansion("x%2Fy")
	rows := e.ProcessedData().Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "x%2Fy", rows[0].ID)
	assert.False(t, rows[0].Expanded)
	assert.Equal(t, []string{"x/y", ""}, rows[0].Labels)
	assert.True(t, rows[1].Expanded)
}

func TestMalformedGroupConfig(t *testing.T) {
	e := newEngine(t, Configuration{})
	require.NoError(t, e.SetGroupConfig(&GroupConfig{Fields: []string{"region"}}))
	st := e.GetState()
	assert.Empty(t, st.Groups)
	assert.Empty(t, st.GroupedBy)
	assert.Len(t, st.Processed.Rows, 6)

	require.NoError(t, e.SetGroupConfig(&GroupConfig{Key: grouping.TupleKey}))
	assert.Empty(t, e.GetGroupedData())

	require.NoError(t, e.SetGroupConfig(GroupByAxes()))
	assert.Empty(t, e.GetGroupedData())
}

func TestAggregationChanges(t *testing.T) {
	e := newEngine(t, Configuration{
		Measures:    []aggregates.Measure{{UniqueName: "sales"}, {UniqueName: "qty", Aggregation: aggregates.Sum}},
		GroupConfig: GroupBy("region"),
	})
	assert.Equal(t, 225.0, e.GetGroupedData()[0].Aggregates["sum_sales"])

	require.NoError(t, e.SetAggregation(aggregates.Max))
	agg := e.GetGroupedData()[0].Aggregates
	assert.Equal(t, 100.0, agg["max_sales"])
	assert.Equal(t, 8.0, agg["sum_qty"], "explicit aggregations are kept")

	err := e.SetAggregation(aggregates.Kind(42))
	assert.ErrorIs(t, err, aggregates.ErrUnknownAggregation)
	assert.Equal(t, aggregates.Max, e.GetState().DefaultAggregation)
	assert.ErrorIs(t, e.SetAggregation(aggregates.None), aggregates.ErrUnknownAggregation)

	require.NoError(t, e.SetMeasureAggregation("qty", aggregates.Avg))
	assert.InDelta(t, 8.0/3, e.GetGroupedData()[0].Aggregates["avg_qty"], 1e-9)
	assert.ErrorIs(t, e.SetMeasureAggregation("nope", aggregates.Sum), ErrUnknownMeasure)
	assert.ErrorIs(t, e.SetMeasureAggregation("qty", aggregates.Kind(-1)), aggregates.ErrUnknownAggregation)

	assert.ErrorIs(t, e.SetMeasures(aggregates.Measure{UniqueName: "x", Aggregation: aggregates.Custom}), aggregates.ErrMissingFormula)
	assert.ErrorIs(t, e.SetMeasures(salesSum, salesSum), ErrDuplicateMeasure)
	assert.Error(t, e.SetMeasures(aggregates.Measure{UniqueName: "x", Expression: "sales *"}))
	assert.Len(t, e.GetState().Measures, 2)

	require.NoError(t, e.SetMeasures(aggregates.Measure{UniqueName: "big", Aggregation: aggregates.Count, Formula: func(r records.Record) float64 { return r.Float("sales") }}))
	assert.Equal(t, 3.0, e.GetGroupedData()[0].Aggregates["count_big"])
}

func TestCustomAggregation(t *testing.T) {
	e := newEngine(t, Configuration{
		Measures: []aggregates.Measure{{
			UniqueName:  "revenue",
			Aggregation: aggregates.Custom,
			Formula:     func(r records.Record) float64 { return r.Float("sales") * r.Float("qty") },
		}},
		GroupConfig: GroupBy("product"),
	})
	groups := e.GetGroupedData()
	require.Equal(t, []string{"A", "B"}, groupKeys(groups))
	assert.Equal(t, 425.0, groups[0].Aggregates["custom_revenue"])
	assert.Equal(t, 1125.0, groups[1].Aggregates["custom_revenue"])
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	_, err := New(Configuration{Measures: []aggregates.Measure{{UniqueName: "s", Aggregation: aggregates.Kind(9)}}})
	assert.ErrorIs(t, err, aggregates.ErrUnknownAggregation)

	_, err = New(Configuration{DefaultAggregation: aggregates.Kind(9)})
	assert.ErrorIs(t, err, aggregates.ErrUnknownAggregation)

	_, err = New(Configuration{Sort: []sorting.Directive{{Field: "x", Direction: 5}}})
	assert.ErrorIs(t, err, sorting.ErrUnknownDirection)
}

func TestReset(t *testing.T) {
	e := newEngine(t, Configuration{Columns: Fields("product", "region"), PageSize: 2})
	initial := e.GetState()

	require.NoError(t, e.ApplyFilters(filtering.Filter{Field: "qty", Operator: filtering.GreaterThan, Value: records.Number(1)}))
	require.NoError(t, e.Sort(sorting.Directive{Field: "sales", Direction: sorting.Desc}))
	require.NoError(t, e.SetGroupConfig(GroupBy("region")))
	require.NoError(t, e.DragRow(0, 1))
	require.NoError(t, e.DragColumn(0, 1))
	require.NoError(t, e.SetAggregation(aggregates.Avg))
	e.GoToPage(2)

	require.NoError(t, e.Reset())
	st := e.GetState()
	assert.Equal(t, tags(initial.Records), tags(st.Records))
	assert.Equal(t, initial.Columns, st.Columns)
	assert.Equal(t, initial.ColumnWidths, st.ColumnWidths)
	assert.Equal(t, initial.RowHeights, st.RowHeights)
	assert.Empty(t, st.Filters)
	assert.Empty(t, st.Sort)
	assert.Nil(t, st.GroupConfig)
	assert.Equal(t, aggregates.Sum, st.DefaultAggregation)
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, 2, st.PageSize)
	assert.Equal(t, initial.Processed, st.Processed)
}

func TestLoadData(t *testing.T) {
	ctx := context.Background()
	failing := SourceFunc(func(context.Context) ([]records.Record, error) {
		return nil, errors.New("connection refused")
	})

	e, err := Open(ctx, Configuration{Source: failing, Records: salesRecords(), Measures: []aggregates.Measure{salesSum}})
	require.NotNil(t, e)
	assert.ErrorIs(t, err, ErrLoad)
	assert.Empty(t, e.GetState().Records)
	assert.Equal(t, 0.0, e.GetState().Totals["sum_sales"])

	ok := SourceFunc(func(context.Context) ([]records.Record, error) { return salesRecords(), nil })
	require.NoError(t, e.LoadData(ctx, ok))
	assert.Len(t, e.GetState().Records, 6)
	assert.Equal(t, 600.0, e.GetState().Totals["sum_sales"])

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, e.LoadData(cancelled, ok), context.Canceled)
	assert.Empty(t, e.GetState().Records)

	assert.ErrorIs(t, e.LoadData(ctx, nil), ErrLoad)
}

func TestGetStateIsSnapshot(t *testing.T) {
	e := newEngine(t, Configuration{Rows: Fields("region"), GroupConfig: GroupBy("region")})
	st := e.GetState()
	st.Rows[0].UniqueName = "changed"
	st.Processed.Rows[0].Labels[0] = "changed"
	st.Groups[0].Aggregates["sum_sales"] = -1
	st.Expanded["N"] = false

	again := e.GetState()
	assert.Equal(t, "region", again.Rows[0].UniqueName)
	assert.Equal(t, "N", again.Processed.Rows[0].Labels[0])
	assert.Equal(t, 225.0, again.Groups[0].Aggregates["sum_sales"])
	assert.Empty(t, again.Expanded)
}

func TestVisibleRange(t *testing.T) {
	e := newEngine(t, Configuration{}, WithDefaultRowHeight(10))
	assert.Equal(t, 6, e.VisibleRange(0, 1000, 2).End)
	r := e.VisibleRange(20, 20, 1)
	assert.Equal(t, 1, r.Start)
	assert.Equal(t, 5, r.End)
}

func TestFormatValue(t *testing.T) {
	e := newEngine(t, Configuration{Formats: map[string]Format{
		"sales": {Type: CurrencyFormat, Symbol: "$", Decimals: 2},
		"share": {Type: PercentFormat, Decimals: 1},
		"day":   {Type: DateFormat, Layout: "Jan 2, 2006"},
		"count": {Type: NumberFormat},
	}})

	tests := []struct {
		value any
		field string
		want  string
	}{
		{12.5, "sales", "$12.50"},
		{-3, "sales", "-$3.00"},
		{math.NaN(), "sales", "-"},
		{0.256, "share", "25.6%"},
		{"2024-03-05", "day", "Mar 5, 2024"},
		{"2024-03-05T10:00:00Z", "day", "Mar 5, 2024"},
		{"someday", "day", "someday"},
		{7.6, "count", "8"},
		{math.Inf(1), "other", "-"},
		{2.5, "other", "2.5"},
		{"text", "other", "text"},
		{true, "other", "true"},
		{nil, "sales", ""},
		{"n/a", "sales", "n/a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.FormatValue(tt.value, tt.field), "FormatValue(%v, %q)", tt.value, tt.field)
	}

	big := e.FormatValue(1234.5, "sales")
	assert.Contains(t, big, "234.50")
	assert.Equal(t, "$", big[:1])

	e = newEngine(t, Configuration{
		Measures: []aggregates.Measure{salesSum, {UniqueName: "orders", Aggregation: aggregates.Count}},
		Formats: map[string]Format{
			"sales":  {Type: CurrencyFormat, Symbol: "$", Decimals: 2},
			"orders": {Type: CurrencyFormat, Symbol: "$", Decimals: 2},
		},
	})
	totals := e.ProcessedData().Totals
	assert.Equal(t, "$600.00", totals[0].Text)
	assert.Equal(t, "6", totals[1].Text)
}

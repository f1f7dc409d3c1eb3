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
	"strconv"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/grouping"
	"github.com/google/pivotcore/core/records"
)

// HeaderKind tells dimension headers from measure headers.
type HeaderKind int

const (
	DimensionHeader HeaderKind = iota
	MeasureHeader
)

// Header describes one column of the processed view.
type Header struct {
	Field   string
	Caption string
	Kind    HeaderKind
	// Aggregation and Key are set for measure headers.
	Aggregation aggregates.Kind
	Key         string
	Width       float64
}

// Cell is one aggregated value with its display text.
type Cell struct {
	Value float64
	Text  string
}

// Row is one line of the processed view: a group, or a record when no
// grouping is active.
type Row struct {
	ID     string
	Depth  int
	Labels []string // parallel to the dimension headers
	Cells  []Cell   // parallel to the measure headers
	Count  int
	// Record is the position of the record in the loaded data, -1 for groups.
	Record     int
	Expandable bool
	Expanded   bool
	Height     float64
}

// ProcessedData is the flattened header/row/total view.
type ProcessedData struct {
	Headers []Header
	Rows    []Row
	// Totals has one cell per measure over the whole working set.
	Totals []Cell
}

// DimensionHeaders returns the dimension headers in order.
func (p ProcessedData) DimensionHeaders() []Header {
	var out []Header
	for _, h := range p.Headers {
		if h.Kind == DimensionHeader {
			out = append(out, h)
		}
	}
	return out
}

// MeasureHeaders returns the measure headers in order.
func (p ProcessedData) MeasureHeaders() []Header {
	var out []Header
	for _, h := range p.Headers {
		if h.Kind == MeasureHeader {
			out = append(out, h)
		}
	}
	return out
}

func (p ProcessedData) clone() ProcessedData {
	out := ProcessedData{
		Headers: append([]Header(nil), p.Headers...),
		Rows:    make([]Row, len(p.Rows)),
		Totals:  append([]Cell(nil), p.Totals...),
	}
	for i, r := range p.Rows {
		r.Labels = append([]string(nil), r.Labels...)
		r.Cells = append([]Cell(nil), r.Cells...)
		out.Rows[i] = r
	}
	return out
}

func (e *Engine) buildProcessed() ProcessedData {
	fields := e.axisFields()
	grouped := e.groupedBy != nil
	if grouped {
		fields = e.groupedBy
	}

	p := ProcessedData{Headers: e.headers(fields)}
	if grouped {
		grouping.Walk(e.groups, func(g *grouping.Group) bool {
			expanded := e.isExpanded(g.ID)
			labels := make([]string, len(fields))
			if g.Depth < len(labels) {
				labels[g.Depth] = g.Label()
			}
			p.Rows = append(p.Rows, Row{
				ID:         g.ID,
				Depth:      g.Depth,
				Labels:     labels,
				Cells:      e.cells(g.Aggregates),
				Count:      g.Length(),
				Record:     -1,
				Expandable: !g.Leaf(),
				Expanded:   expanded,
				Height:     e.opts.defaultRowHeight,
			})
			return expanded
		})
	} else {
		for _, idx := range e.working {
			r := e.data[idx]
			labels := make([]string, len(fields))
			for i, f := range fields {
				labels[i] = r.Get(f).Text()
			}
			agg, err := grouping.Compute([]records.Record{r}, e.measures)
			if err != nil {
				// measures are validated before they reach the pipeline
				e.log.Error("aggregation failed", "record", idx, "error", err)
			}
			p.Rows = append(p.Rows, Row{
				ID:     "#" + strconv.Itoa(idx),
				Labels: labels,
				Cells:  e.cells(agg),
				Count:  1,
				Record: idx,
				Height: e.rowHeight(idx),
			})
		}
	}
	p.Totals = e.cells(e.totals)
	return p
}

func (e *Engine) headers(fields []string) []Header {
	captions := make(map[string]string)
	for _, d := range e.dimensions {
		if d.Label != "" {
			captions[d.Field] = d.Label
		}
	}
	for _, a := range append(append([]AxisField(nil), e.rows...), e.columns...) {
		if a.Caption != "" {
			captions[a.UniqueName] = a.Caption
		}
	}
	widths := make(map[string]float64, len(e.columns))
	for i, c := range e.columns {
		widths[c.UniqueName] = e.widths[i]
	}

	headers := make([]Header, 0, len(fields)+len(e.measures))
	for _, f := range fields {
		h := Header{Field: f, Caption: f, Kind: DimensionHeader, Width: e.opts.defaultColumnWidth}
		if c, ok := captions[f]; ok {
			h.Caption = c
		}
		if w, ok := widths[f]; ok {
			h.Width = w
		}
		headers = append(headers, h)
	}
	for _, m := range e.measures {
		headers = append(headers, Header{
			Field:       m.UniqueName,
			Caption:     m.Label(),
			Kind:        MeasureHeader,
			Aggregation: m.Aggregation,
			Key:         m.Key(),
			Width:       e.opts.defaultColumnWidth,
		})
	}
	return headers
}

func (e *Engine) cells(agg map[string]float64) []Cell {
	cells := make([]Cell, len(e.measures))
	for i, m := range e.measures {
		v := agg[m.Key()]
		cells[i] = Cell{Value: v, Text: e.formatAggregate(m, v)}
	}
	return cells
}

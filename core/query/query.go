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

// Package query encodes the interactive state of a pivot as URL query
// parameters so that a view can be shared and restored.
//
//	rows=region,product
//	columns=year:140,quarter
//	measures=sales@sum,qty@avg
//	agg=sum
//	sort=-sales@sum,region
//	grouped=region,product&hierarchy=1   (or groupAxes=1)
//	filter:region=eq:North
//	collapsed=North&collapsed=South/B
//	page=2&pageSize=50
package query

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/google/safehtml"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/filtering"
	"github.com/google/pivotcore/core/grouping"
	"github.com/google/pivotcore/core/pivot"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/sorting"
)

const filterPrefix = "filter:"

// MeasureRef names a measure and, optionally, the aggregation to use for it.
type MeasureRef struct {
	Name        string
	Aggregation aggregates.Kind // None keeps the measure's aggregation
}

func (m MeasureRef) String() string {
	if m.Aggregation == aggregates.None {
		return m.Name
	}
	return m.Name + "@" + m.Aggregation.String()
}

// Query is the parsed state of a pivot view URL.
type Query struct {
	Path string

	Rows         []string
	Columns      []string
	ColumnWidths map[string]float64 // columnName -> width
	Measures     []MeasureRef
	Aggregation  aggregates.Kind // default aggregation, None leaves it alone
	Sort         []sorting.Directive
	Filters      []filtering.Filter

	Grouped   []string
	Hierarchy bool // group one field per level instead of by tuple
	GroupAxes bool // group by the rows then columns axes
	Collapsed []string

	Page     int
	PageSize int // 0 leaves the engine's page size alone
}

// NewQuery creates a Query from a URL. Malformed parameters are reported,
// unknown parameters are ignored.
func NewQuery(u *url.URL) (*Query, error) {
	s := &Query{
		Path:         u.Path,
		ColumnWidths: make(map[string]float64),
		Page:         1,
	}
	q := u.Query()
	var errs []error

	s.Rows = splitList(q.Get("rows"))

	// columns=col1:width,col2
	for _, part := range splitList(q.Get("columns")) {
		if colonIdx := strings.LastIndex(part, ":"); colonIdx != -1 {
			name := part[:colonIdx]
			if width, err := strconv.ParseFloat(part[colonIdx+1:], 64); err == nil && width > 0 {
				s.Columns = append(s.Columns, name)
				s.ColumnWidths[name] = width
				continue
			}
		}
		s.Columns = append(s.Columns, part)
	}

	for _, part := range splitList(q.Get("measures")) {
		m, err := parseMeasure(part)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Measures = append(s.Measures, m)
	}

	if agg := q.Get("agg"); agg != "" {
		kind, err := aggregates.ParseKind(agg)
		if err != nil {
			errs = append(errs, fmt.Errorf("agg: %w", err))
		} else {
			s.Aggregation = kind
		}
	}

	for _, part := range splitList(q.Get("sort")) {
		d, err := ParseDirective(part)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Sort = append(s.Sort, d)
	}

	// filter:field=op:value, repeated for several filters on one field
	keys := make([]string, 0, len(q))
	for key := range q {
		if strings.HasPrefix(key, filterPrefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	for _, key := range keys {
		field := strings.TrimPrefix(key, filterPrefix)
		for _, value := range q[key] {
			s.Filters = append(s.Filters, parseFilter(field, value))
		}
	}

	s.Grouped = splitList(q.Get("grouped"))
	s.Hierarchy = parseBool(q.Get("hierarchy"))
	s.GroupAxes = parseBool(q.Get("groupAxes"))
	for _, id := range q["collapsed"] {
		if id != "" {
			s.Collapsed = append(s.Collapsed, id)
		}
	}

	if page := q.Get("page"); page != "" {
		if n, err := strconv.Atoi(page); err == nil && n >= 1 {
			s.Page = n
		} else {
			errs = append(errs, fmt.Errorf("page: invalid value %q", page))
		}
	}
	if size := q.Get("pageSize"); size != "" {
		if n, err := strconv.Atoi(size); err == nil && n >= 1 {
			s.PageSize = n
		} else {
			errs = append(errs, fmt.Errorf("pageSize: invalid value %q", size))
		}
	}

	return s, errors.Join(errs...)
}

// FromState captures an engine snapshot as a query on path.
func FromState(path string, st pivot.State) *Query {
	s := &Query{
		Path:         path,
		ColumnWidths: make(map[string]float64),
		Page:         st.Page,
		PageSize:     st.PageSize,
		Aggregation:  st.DefaultAggregation,
		Sort:         append([]sorting.Directive(nil), st.Sort...),
		Filters:      append([]filtering.Filter(nil), st.Filters...),
	}
	for _, a := range st.Rows {
		s.Rows = append(s.Rows, a.UniqueName)
	}
	for i, a := range st.Columns {
		s.Columns = append(s.Columns, a.UniqueName)
		if i < len(st.ColumnWidths) && st.ColumnWidths[i] != pivot.DefaultColumnWidth {
			s.ColumnWidths[a.UniqueName] = st.ColumnWidths[i]
		}
	}
	for _, m := range st.Measures {
		s.Measures = append(s.Measures, MeasureRef{Name: m.UniqueName, Aggregation: m.Aggregation})
	}
	if gc := st.GroupConfig; gc != nil {
		s.Grouped = append([]string(nil), gc.Fields...)
		s.GroupAxes = gc.FromAxes
		s.Hierarchy = gc.Hierarchical()
	}
	for id, expanded := range st.Expanded {
		if !expanded {
			s.Collapsed = append(s.Collapsed, id)
		}
	}
	slices.Sort(s.Collapsed)
	return s
}

// Clone creates a deep copy of the Query.
func (s *Query) Clone() *Query {
	c := *s
	c.Rows = slices.Clone(s.Rows)
	c.Columns = slices.Clone(s.Columns)
	c.ColumnWidths = make(map[string]float64, len(s.ColumnWidths))
	for name, width := range s.ColumnWidths {
		c.ColumnWidths[name] = width
	}
	c.Measures = slices.Clone(s.Measures)
	c.Sort = slices.Clone(s.Sort)
	c.Filters = slices.Clone(s.Filters)
	c.Grouped = slices.Clone(s.Grouped)
	c.Collapsed = slices.Clone(s.Collapsed)
	return &c
}

// GroupConfig returns the grouping the query selects, nil for none.
func (s *Query) GroupConfig() *pivot.GroupConfig {
	switch {
	case s.GroupAxes:
		if s.Hierarchy {
			return &pivot.GroupConfig{FromAxes: true, Key: grouping.LeadingKey}
		}
		return pivot.GroupByAxes()
	case len(s.Grouped) == 0:
		return nil
	case s.Hierarchy:
		return pivot.Hierarchy(s.Grouped...)
	default:
		return pivot.GroupBy(s.Grouped...)
	}
}

// Apply replays the query onto e. Axis captions and measure formulas are
// taken from the engine's current state; measures not known to the engine
// are reported with pivot.ErrUnknownMeasure.
func (s *Query) Apply(e *pivot.Engine) error {
	st := e.GetState()

	captions := make(map[string]string)
	for _, a := range append(slices.Clone(st.Rows), st.Columns...) {
		if a.Caption != "" {
			captions[a.UniqueName] = a.Caption
		}
	}
	axis := func(names []string) []pivot.AxisField {
		out := make([]pivot.AxisField, len(names))
		for i, n := range names {
			out[i] = pivot.AxisField{UniqueName: n, Caption: captions[n]}
		}
		return out
	}

	if s.Aggregation != aggregates.None && s.Aggregation != st.DefaultAggregation {
		if err := e.SetAggregation(s.Aggregation); err != nil {
			return err
		}
		st = e.GetState()
	}
	if len(s.Measures) > 0 {
		known := make(map[string]aggregates.Measure, len(st.Measures))
		for _, m := range st.Measures {
			known[m.UniqueName] = m
		}
		measures := make([]aggregates.Measure, 0, len(s.Measures))
		for _, ref := range s.Measures {
			m, ok := known[ref.Name]
			if !ok {
				return fmt.Errorf("%w: %q", pivot.ErrUnknownMeasure, ref.Name)
			}
			if ref.Aggregation != aggregates.None {
				m.Aggregation = ref.Aggregation
			}
			measures = append(measures, m)
		}
		if err := e.SetMeasures(measures...); err != nil {
			return err
		}
	}

	if err := e.SetRows(axis(s.Rows)...); err != nil {
		return err
	}
	if err := e.SetColumns(axis(s.Columns)...); err != nil {
		return err
	}
	for i, name := range s.Columns {
		if width, ok := s.ColumnWidths[name]; ok {
			if err := e.SetColumnWidth(i, width); err != nil {
				return err
			}
		}
	}

	if err := e.SetGroupConfig(s.GroupConfig()); err != nil {
		return err
	}
	if err := e.Sort(s.Sort...); err != nil {
		return err
	}
	if err := e.ApplyFilters(s.Filters...); err != nil {
		return err
	}
	for _, id := range s.Collapsed {
		e.SetRowExpansion(id, false)
	}

	if s.PageSize > 0 {
		if err := e.SetPageSize(s.PageSize); err != nil {
			return err
		}
	}
	e.GoToPage(s.Page)
	return nil
}

// ToURL converts the Query back to a URL string.
func (s *Query) ToURL() string {
	u := &url.URL{Path: s.Path}
	q := u.Query()

	if len(s.Rows) > 0 {
		q.Set("rows", strings.Join(s.Rows, ","))
	}
	if len(s.Columns) > 0 {
		parts := make([]string, 0, len(s.Columns))
		for _, col := range s.Columns {
			if width, ok := s.ColumnWidths[col]; ok {
				parts = append(parts, col+":"+strconv.FormatFloat(width, 'f', -1, 64))
			} else {
				parts = append(parts, col)
			}
		}
		q.Set("columns", strings.Join(parts, ","))
	}
	if len(s.Measures) > 0 {
		parts := make([]string, len(s.Measures))
		for i, m := range s.Measures {
			parts[i] = m.String()
		}
		q.Set("measures", strings.Join(parts, ","))
	}
	if s.Aggregation != aggregates.None {
		q.Set("agg", s.Aggregation.String())
	}
	if len(s.Sort) > 0 {
		parts := make([]string, len(s.Sort))
		for i, d := range s.Sort {
			parts[i] = FormatDirective(d)
		}
		q.Set("sort", strings.Join(parts, ","))
	}
	for _, f := range s.Filters {
		q.Add(filterPrefix+f.Field, f.Operator.String()+":"+f.Value.Text())
	}
	if len(s.Grouped) > 0 {
		q.Set("grouped", strings.Join(s.Grouped, ","))
	}
	if s.Hierarchy {
		q.Set("hierarchy", "1")
	}
	if s.GroupAxes {
		q.Set("groupAxes", "1")
	}
	for _, id := range s.Collapsed {
		q.Add("collapsed", id)
	}
	q.Set("page", strconv.Itoa(s.Page))
	if s.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(s.PageSize))
	}

	u.RawQuery = q.Encode()
	return u.String()
}

// ToSafeURL converts the Query to a safehtml.URL.
func (s *Query) ToSafeURL() safehtml.URL {
	return safehtml.URLSanitized(s.ToURL())
}

// WithPage returns a URL for another page.
func (s *Query) WithPage(page int) safehtml.URL {
	c := s.Clone()
	c.Page = page
	return c.ToSafeURL()
}

// WithPageSize returns a URL with a different page size, back on page 1.
func (s *Query) WithPageSize(size int) safehtml.URL {
	c := s.Clone()
	c.PageSize = size
	c.Page = 1
	return c.ToSafeURL()
}

// WithSortToggled cycles a dimension sort on field: absent, ascending,
// descending, absent. The toggled directive becomes the primary key.
func (s *Query) WithSortToggled(field string) safehtml.URL {
	return s.withSortToggled(sorting.Directive{Field: field})
}

// WithMeasureSortToggled is WithSortToggled for a measure directive.
func (s *Query) WithMeasureSortToggled(field string) safehtml.URL {
	return s.withSortToggled(sorting.Directive{Field: field, Kind: sorting.Measure})
}

func (s *Query) withSortToggled(d sorting.Directive) safehtml.URL {
	c := s.Clone()
	rest := make([]sorting.Directive, 0, len(s.Sort))
	var current *sorting.Directive
	for i, existing := range s.Sort {
		if existing.Field == d.Field && existing.Kind == d.Kind {
			current = &s.Sort[i]
			continue
		}
		rest = append(rest, existing)
	}
	switch {
	case current == nil:
		c.Sort = append([]sorting.Directive{d}, rest...)
	case current.Direction == sorting.Asc:
		d.Direction = sorting.Desc
		d.Aggregation = current.Aggregation
		c.Sort = append([]sorting.Directive{d}, rest...)
	default:
		c.Sort = rest
	}
	return c.ToSafeURL()
}

// WithFilter returns a URL with f added, back on page 1.
func (s *Query) WithFilter(f filtering.Filter) safehtml.URL {
	c := s.Clone()
	c.Filters = append(c.Filters, f)
	c.Page = 1
	return c.ToSafeURL()
}

// WithoutFilters returns a URL with every filter on field removed.
func (s *Query) WithoutFilters(field string) safehtml.URL {
	c := s.Clone()
	c.Filters = slices.DeleteFunc(c.Filters, func(f filtering.Filter) bool { return f.Field == field })
	c.Page = 1
	return c.ToSafeURL()
}

// WithGroupedToggled returns a URL with field added to the end of the
// grouping fields, or removed when it is already grouped.
func (s *Query) WithGroupedToggled(field string) safehtml.URL {
	c := s.Clone()
	c.Grouped = toggle(c.Grouped, field)
	c.Collapsed = nil
	return c.ToSafeURL()
}

// WithColumnToggled returns a URL with the column shown or hidden.
func (s *Query) WithColumnToggled(column string) safehtml.URL {
	c := s.Clone()
	c.Columns = toggle(c.Columns, column)
	return c.ToSafeURL()
}

// WithCollapsedToggled returns a URL with the group row collapsed or expanded.
func (s *Query) WithCollapsedToggled(id string) safehtml.URL {
	c := s.Clone()
	c.Collapsed = toggle(c.Collapsed, id)
	return c.ToSafeURL()
}

// WithAggregation returns a URL with the aggregation of one measure changed.
func (s *Query) WithAggregation(measure string, kind aggregates.Kind) safehtml.URL {
	c := s.Clone()
	for i := range c.Measures {
		if c.Measures[i].Name == measure {
			c.Measures[i].Aggregation = kind
			return c.ToSafeURL()
		}
	}
	c.Measures = append(c.Measures, MeasureRef{Name: measure, Aggregation: kind})
	return c.ToSafeURL()
}

// IsGrouped checks if field is one of the grouping fields.
func (s *Query) IsGrouped(field string) bool {
	return slices.Contains(s.Grouped, field)
}

// IsCollapsed checks if the group row id is collapsed.
func (s *Query) IsCollapsed(id string) bool {
	return slices.Contains(s.Collapsed, id)
}

// IsColumnVisible checks if a column is on the columns axis.
func (s *Query) IsColumnVisible(column string) bool {
	return slices.Contains(s.Columns, column)
}

// SortDirection returns the direction of the directive on field, if any.
func (s *Query) SortDirection(field string) (sorting.Direction, bool) {
	for _, d := range s.Sort {
		if d.Field == field {
			return d.Direction, true
		}
	}
	return sorting.Asc, false
}

// ParseDirective parses "[-]field[@agg]". A leading "-" means descending.
// An "@" suffix makes it a measure directive; the aggregation after it may be
// empty to use the measure's own.
func ParseDirective(s string) (sorting.Directive, error) {
	var d sorting.Directive
	if strings.HasPrefix(s, "-") {
		d.Direction = sorting.Desc
		s = s[1:]
	}
	if at := strings.LastIndex(s, "@"); at != -1 {
		d.Kind = sorting.Measure
		if agg := s[at+1:]; agg != "" {
			kind, err := aggregates.ParseKind(agg)
			if err != nil {
				return d, fmt.Errorf("sort %q: %w", s, err)
			}
			d.Aggregation = kind
		}
		s = s[:at]
	}
	d.Field = s
	if d.Field == "" {
		return d, errors.New("sort: empty field")
	}
	return d, nil
}

// FormatDirective is the inverse of ParseDirective.
func FormatDirective(d sorting.Directive) string {
	s := d.Field
	if d.Direction == sorting.Desc {
		s = "-" + s
	}
	if d.Kind == sorting.Measure {
		s += "@"
		if d.Aggregation != aggregates.None {
			s += d.Aggregation.String()
		}
	}
	return s
}

func parseMeasure(s string) (MeasureRef, error) {
	name, agg, found := strings.Cut(s, "@")
	ref := MeasureRef{Name: name}
	if name == "" {
		return ref, errors.New("measures: empty name")
	}
	if found && agg != "" {
		kind, err := aggregates.ParseKind(agg)
		if err != nil {
			return ref, fmt.Errorf("measure %q: %w", name, err)
		}
		ref.Aggregation = kind
	}
	return ref, nil
}

// parseFilter reads "op:value". A value without a known operator prefix is a
// Matches pattern, as typed into a filter box.
func parseFilter(field, s string) filtering.Filter {
	if op, value, found := strings.Cut(s, ":"); found {
		if operator, err := filtering.ParseOperator(op); err == nil {
			return filtering.Filter{Field: field, Operator: operator, Value: records.String(value)}
		}
	}
	return filtering.Filter{Field: field, Operator: filtering.Matches, Value: records.String(s)}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func toggle(list []string, item string) []string {
	if i := slices.Index(list, item); i != -1 {
		return slices.Delete(list, i, i+1)
	}
	return append(list, item)
}

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

package grouping

import (
	"sort"
	"strings"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/records"
	"github.com/google/pivotcore/core/sorting"
)

// Terminology:
// * the fields that take part in the grouping hierarchy are the grouped fields
// * a group at depth d was partitioned on fields[d:], the remaining fields
// * leaf groups have no subgroups; every group carries the items it covers

// Separator joins field values in a tuple key.
const Separator = "|"

// PathSeparator joins group keys into a row identifier.
const PathSeparator = "/"

var (
	tupleEscaper = strings.NewReplacer("%", "%25", Separator, "%7C")
	pathEscaper  = strings.NewReplacer("%", "%25", PathSeparator, "%2F")
)

// EscapeSegment escapes a group key for use as one segment of a row
// identifier.
func EscapeSegment(key string) string {
	return pathEscaper.Replace(key)
}

// KeyFunc computes the partition key of a record given the remaining
// grouping fields.
type KeyFunc func(r records.Record, fields []string) string

// TupleKey keys a record by all remaining fields at once. Values are escaped
// so that a Separator inside a value cannot merge distinct tuples.
func TupleKey(r records.Record, fields []string) string {
	if len(fields) == 1 {
		return r.Get(fields[0]).Text()
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = tupleEscaper.Replace(r.Get(f).Text())
	}
	return strings.Join(parts, Separator)
}

// LeadingKey keys a record by the first remaining field only, which yields a
// classic one-field-per-level hierarchy.
func LeadingKey(r records.Record, fields []string) string {
	if len(fields) == 0 {
		return ""
	}
	return r.Get(fields[0]).Text()
}

// Group is one node of the grouping tree.
type Group struct {
	// Key is the partition key at this depth.
	Key string
	// ID is the path of escaped keys from the root, joined by PathSeparator.
	ID string
	// Fields are the remaining grouping fields this group was partitioned on.
	Fields []string
	// Values holds the value of each of Fields, taken from the first item.
	Values     []records.Value
	Items      []records.Record
	Subgroups  []*Group
	Aggregates map[string]float64
	Depth      int
}

// Length returns the number of items covered by the group.
func (g *Group) Length() int {
	return len(g.Items)
}

// Leaf reports whether the group has no subgroups.
func (g *Group) Leaf() bool {
	return len(g.Subgroups) == 0
}

// Label returns the display value of the group at its own depth: the value
// of its leading field.
func (g *Group) Label() string {
	if len(g.Values) == 0 {
		return g.Key
	}
	return g.Values[0].Text()
}

// Height returns the number of leaf groups below g, 1 for a leaf.
func (g *Group) Height() int {
	if g.Leaf() {
		return 1
	}
	height := 0
	for _, child := range g.Subgroups {
		height += child.Height()
	}
	return height
}

// Build partitions items recursively. Level d is keyed by keyFn(item,
// fields[d:]); recursion stops when fields are exhausted. Partitions keep
// the order in which their first item appears, and items keep their input
// order inside each partition. A nil keyFn means TupleKey.
func Build(items []records.Record, fields []string, keyFn KeyFunc) []*Group {
	if keyFn == nil {
		keyFn = TupleKey
	}
	return build(items, fields, keyFn, "", 0)
}

func build(items []records.Record, fields []string, keyFn KeyFunc, parentID string, depth int) []*Group {
	if len(fields) == 0 {
		return nil
	}

	var groups []*Group
	index := make(map[string]*Group)
	for _, r := range items {
		key := keyFn(r, fields)
		g, ok := index[key]
		if !ok {
			id := EscapeSegment(key)
			if parentID != "" {
				id = parentID + PathSeparator + id
			}
			values := make([]records.Value, len(fields))
			for i, f := range fields {
				values[i] = r.Get(f)
			}
			g = &Group{Key: key, ID: id, Fields: fields, Values: values, Depth: depth}
			index[key] = g
			groups = append(groups, g)
		}
		g.Items = append(g.Items, r)
	}

	for _, g := range groups {
		g.Subgroups = build(g.Items, fields[1:], keyFn, g.ID, depth+1)
	}
	return groups
}

// Aggregate computes every measure for each group in the tree. Each group is
// aggregated from its own items, never from its subgroups' aggregates.
func Aggregate(groups []*Group, measures []aggregates.Measure) error {
	for _, g := range groups {
		agg, err := Compute(g.Items, measures)
		if err != nil {
			return err
		}
		g.Aggregates = agg
		if err := Aggregate(g.Subgroups, measures); err != nil {
			return err
		}
	}
	return nil
}

// Compute aggregates items for every measure, keyed by measure.Key().
func Compute(items []records.Record, measures []aggregates.Measure) (map[string]float64, error) {
	out := make(map[string]float64, len(measures))
	for _, m := range measures {
		v, err := aggregates.Aggregate(items, m)
		if err != nil {
			return nil, err
		}
		out[m.Key()] = v
	}
	return out, nil
}

// Sort stably reorders groups at every level by the sorter's measure
// directives. Dimension directives are already reflected in item order.
func Sort(groups []*Group, s *sorting.Sorter) {
	if s == nil || !s.HasMeasures() {
		return
	}
	sortLevel(groups, s)
}

func sortLevel(groups []*Group, s *sorting.Sorter) {
	sort.SliceStable(groups, func(i, j int) bool {
		return s.CompareAggregates(groups[i].Aggregates, groups[j].Aggregates) < 0
	})
	for _, g := range groups {
		sortLevel(g.Subgroups, s)
	}
}

// Walk visits groups depth first, parents before children. Returning false
// from fn skips the group's subgroups.
func Walk(groups []*Group, fn func(*Group) bool) {
	for _, g := range groups {
		if fn(g) {
			Walk(g.Subgroups, fn)
		}
	}
}

// Items concatenates the items of groups in order.
func Items(groups []*Group) []records.Record {
	var out []records.Record
	for _, g := range groups {
		out = append(out, g.Items...)
	}
	return out
}

// Find returns the group with the given ID.
func Find(groups []*Group, id string) *Group {
	var found *Group
	Walk(groups, func(g *Group) bool {
		if found != nil {
			return false
		}
		if g.ID == id {
			found = g
			return false
		}
		return strings.HasPrefix(id, g.ID+PathSeparator)
	})
	return found
}

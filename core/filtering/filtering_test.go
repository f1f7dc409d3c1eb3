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

package filtering

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/pivotcore/core/records"
)

var rec = records.MustNew(map[string]any{
	"region": "North",
	"sales":  120,
	"code":   "0042",
	"status": "CLOSED_DUPLICATE",
	"note":   nil,
	"vip":    true,
})

func TestFilterEval(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"equals string", Filter{"region", Equals, records.String("North")}, true},
		{"equals is case sensitive", Filter{"region", Equals, records.String("north")}, false},
		{"equals numeric coercion", Filter{"code", Equals, records.Number(42)}, true},
		{"equals number to string", Filter{"sales", Equals, records.String("120")}, true},
		{"equals null", Filter{"note", Equals, records.Null()}, true},
		{"equals missing field is null", Filter{"missing", Equals, records.Null()}, true},
		{"null not equal to empty", Filter{"note", Equals, records.String("")}, false},
		{"not equals", Filter{"region", NotEquals, records.String("South")}, true},
		{"contains", Filter{"region", Contains, records.String("ort")}, true},
		{"contains coerces number", Filter{"sales", Contains, records.String("12")}, true},
		{"contains case sensitive", Filter{"region", Contains, records.String("NOR")}, false},
		{"contains on null", Filter{"note", Contains, records.String("")}, false},
		{"greater than", Filter{"sales", GreaterThan, records.Number(100)}, true},
		{"greater than equal value", Filter{"sales", GreaterThan, records.Number(120)}, false},
		{"less than numeric string", Filter{"code", LessThan, records.Number(50)}, true},
		{"less than non numeric", Filter{"region", LessThan, records.Number(50)}, false},
		{"greater than non numeric operand", Filter{"sales", GreaterThan, records.String("abc")}, false},
		{"bool coerces to one", Filter{"vip", GreaterThan, records.Number(0.5)}, true},
		{"matches or", Filter{"region", Matches, records.String(`"South"|"North"`)}, true},
		{"matches contains negated", Filter{"status", Matches, records.String(`'CLOSED'&!'DUP'`)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Eval(rec); got != tt.want {
				t.Errorf("%v = %v, want %v", tt.filter, got, tt.want)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"'a'", "bab", true},
		{"'a'", "b", false},
		{`"a"`, "a", true},
		{`"a"`, "bab", false},
		{`"a"|"b"`, "b", true},
		{`"a"|"b"`, "bab", false},
		{`"a"&"b"`, "a", false},
		{`'a'&'b'`, "ba", true},
		{`'a'&'b'`, "a", false},
		{"!'a'", "bab", false},
		{"!'a'", "b", true},
		{`!"a"`, "bab", true},
		{`'a'&!'b'`, "a", true},
		{`'a'&!'b'`, "ab", false},
		{`!'a'&!'b'`, "c", true},
		{`'a'&'b'|'c'`, "c", true},
		{`'a'&'b'|'c'`, "a", false},
		{"CLOSED", "CLOSED", true},
		{"CLOSED", "CLOSED_DUPLICATE", false},
		{"CLOSED|OPEN", "OPEN", true},
		{`"`, `"`, true},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := Match(tt.pattern, tt.value); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.value, got, tt.want)
		}
	}
}

func items() []records.Record {
	return []records.Record{
		records.MustNew(map[string]any{"region": "N", "sales": 100}),
		records.MustNew(map[string]any{"region": "S", "sales": 150}),
		records.MustNew(map[string]any{"region": "N", "sales": 50}),
		records.MustNew(map[string]any{"region": "E", "sales": 300}),
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		name    string
		filters []Filter
		want    []uint32
	}{
		{"empty matches all", nil, []uint32{0, 1, 2, 3}},
		{"single", []Filter{{"region", Equals, records.String("N")}}, []uint32{0, 2}},
		{"and", []Filter{
			{"region", Equals, records.String("N")},
			{"sales", GreaterThan, records.Number(60)},
		}, []uint32{0}},
		{"disjoint", []Filter{
			{"region", Equals, records.String("S")},
			{"sales", LessThan, records.Number(60)},
		}, []uint32{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mask(items(), tt.filters).ToArray()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Mask = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestApplyIdempotent(t *testing.T) {
	filters := []Filter{{"sales", GreaterThan, records.Number(75)}}
	once := Apply(items(), filters)
	twice := Apply(once, filters)
	if len(once) != 3 || !reflect.DeepEqual(once, twice) {
		t.Errorf("Apply not idempotent: %v then %v", once, twice)
	}
	for _, r := range once {
		if !MatchesAll(r, filters) {
			t.Errorf("record %v does not match", r)
		}
	}
	if all := Apply(items(), nil); len(all) != 4 {
		t.Errorf("Apply with no filters returned %d records", len(all))
	}
}

func TestParseOperator(t *testing.T) {
	for in, want := range map[string]Operator{
		"eq": Equals, "==": Equals, "ne": NotEquals, "contains": Contains,
		"gt": GreaterThan, "lessThan": LessThan, "match": Matches,
	} {
		got, err := ParseOperator(in)
		if err != nil || got != want {
			t.Errorf("ParseOperator(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseOperator("between"); !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("expected ErrUnknownOperator, got %v", err)
	}
	if err := (Filter{Field: "x", Operator: 99}).Validate(); !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("Validate: expected ErrUnknownOperator, got %v", err)
	}
}

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

package aggregates

import (
	"errors"
	"math"
	"testing"

	"github.com/google/pivotcore/core/records"
)

func salesRecords() []records.Record {
	return []records.Record{
		records.MustNew(map[string]any{"region": "N", "sales": 100, "qty": 2}),
		records.MustNew(map[string]any{"region": "S", "sales": 150, "qty": 3}),
		records.MustNew(map[string]any{"region": "N", "sales": 50, "qty": 1}),
		records.MustNew(map[string]any{"region": "W", "sales": "n/a", "qty": 4}),
	}
}

func TestAggregate(t *testing.T) {
	items := salesRecords()
	tests := []struct {
		kind Kind
		want float64
	}{
		{Sum, 300},
		{Avg, 75},
		{Min, 0},
		{Max, 150},
		{Count, 4},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got, err := Aggregate(items, Measure{UniqueName: "sales", Aggregation: tt.kind})
			if err != nil {
				t.Fatalf("Aggregate error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Aggregate(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestAggregateEmptySentinels(t *testing.T) {
	avg, _ := Aggregate(nil, Measure{UniqueName: "sales", Aggregation: Avg})
	if !math.IsNaN(avg) {
		t.Errorf("Avg of empty = %v, want NaN", avg)
	}
	lo, _ := Aggregate(nil, Measure{UniqueName: "sales", Aggregation: Min})
	if !math.IsInf(lo, 1) {
		t.Errorf("Min of empty = %v, want +Inf", lo)
	}
	hi, _ := Aggregate(nil, Measure{UniqueName: "sales", Aggregation: Max})
	if !math.IsInf(hi, -1) {
		t.Errorf("Max of empty = %v, want -Inf", hi)
	}
	n, _ := Aggregate(nil, Measure{UniqueName: "sales", Aggregation: Count})
	if n != 0 {
		t.Errorf("Count of empty = %v, want 0", n)
	}
}

func TestAggregateCustomFormula(t *testing.T) {
	revenue := func(r records.Record) float64 { return r.Float("sales") * r.Float("qty") }

	got, err := Aggregate(salesRecords(), Measure{UniqueName: "revenue", Aggregation: Custom, Formula: revenue})
	if err != nil {
		t.Fatal(err)
	}
	if want := 100.0*2 + 150*3 + 50*1; got != want {
		t.Errorf("Custom = %v, want %v", got, want)
	}

	// A formula combined with another law applies that law to the per-record results.
	got, err = Aggregate(salesRecords(), Measure{UniqueName: "revenue", Aggregation: Max, Formula: revenue})
	if err != nil {
		t.Fatal(err)
	}
	if got != 450 {
		t.Errorf("Max over formula = %v, want 450", got)
	}
}

func TestAggregateErrors(t *testing.T) {
	if _, err := Aggregate(salesRecords(), Measure{UniqueName: "x", Aggregation: Kind(42)}); !errors.Is(err, ErrUnknownAggregation) {
		t.Errorf("expected ErrUnknownAggregation, got %v", err)
	}
	if _, err := Aggregate(salesRecords(), Measure{UniqueName: "x", Aggregation: None}); !errors.Is(err, ErrUnknownAggregation) {
		t.Errorf("None must not be silently defaulted, got %v", err)
	}
	if _, err := Aggregate(salesRecords(), Measure{UniqueName: "x", Aggregation: Custom}); !errors.Is(err, ErrMissingFormula) {
		t.Errorf("expected ErrMissingFormula, got %v", err)
	}
}

func TestAggregationLaws(t *testing.T) {
	items := salesRecords()[:3]
	m := func(k Kind) float64 {
		v, err := Aggregate(items, Measure{UniqueName: "sales", Aggregation: k})
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	sum, count, avg := m(Sum), m(Count), m(Avg)
	if math.Abs(sum-count*avg) > 1e-9 {
		t.Errorf("Sum (%v) != Count*Avg (%v)", sum, count*avg)
	}
	lo, hi := m(Min), m(Max)
	for _, r := range items {
		v := r.Float("sales")
		if v < lo || v > hi {
			t.Errorf("value %v outside [%v, %v]", v, lo, hi)
		}
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"sum": Sum, "AVG": Avg, "average": Avg, "min": Min, "max": Max, "count": Count, "custom": Custom} {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseKind("median"); !errors.Is(err, ErrUnknownAggregation) {
		t.Errorf("ParseKind(median) error = %v", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key(Sum, "sales"); got != "sum_sales" {
		t.Errorf("Key = %q", got)
	}
	if got := (Measure{UniqueName: "qty", Aggregation: Avg}).Key(); got != "avg_qty" {
		t.Errorf("Measure.Key = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{150, "150"},
		{75.5, "75.5"},
		{1.239, "1.24"},
		{-2.10, "-2.1"},
		{math.NaN(), "-"},
		{math.Inf(1), "-"},
		{math.Inf(-1), "-"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

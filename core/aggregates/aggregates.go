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

// Package aggregates computes measure values over sets of records.
// Every aggregate is computed directly from the records it covers: states are
// never merged up a grouping hierarchy, since Avg and formula based measures
// do not compose that way.
package aggregates

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/pivotcore/core/records"
)

var (
	// ErrUnknownAggregation is returned for an aggregation kind outside the known set.
	ErrUnknownAggregation = errors.New("unknown aggregation")
	// ErrMissingFormula is returned for a Custom measure without a formula.
	ErrMissingFormula = errors.New("custom aggregation requires a formula")
)

// Kind selects the aggregation law of a measure.
type Kind int

const (
	// None means "not set"; measures declared with None inherit the
	// configuration's default aggregation.
	None Kind = iota
	Sum
	Avg
	Min
	Max
	Count
	// Custom evaluates the measure formula per record and sums the results.
	Custom
)

// String returns the lower case name used in aggregate keys.
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Sum:
		return "sum"
	case Avg:
		return "avg"
	case Min:
		return "min"
	case Max:
		return "max"
	case Count:
		return "count"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the concrete aggregation kinds.
func (k Kind) Valid() bool {
	return k >= Sum && k <= Custom
}

// ParseKind parses an aggregation name. Matching is case-insensitive and
// accepts "average" and "mean" for Avg.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sum":
		return Sum, nil
	case "avg", "average", "mean":
		return Avg, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	case "count":
		return Count, nil
	case "custom":
		return Custom, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownAggregation, s)
	}
}

// Symbol returns a short symbol for headers.
func (k Kind) Symbol() string {
	switch k {
	case Sum:
		return "Σ"
	case Avg:
		return "μ"
	case Min:
		return "↓"
	case Max:
		return "↑"
	case Count:
		return "#"
	case Custom:
		return "ƒ"
	default:
		return "?"
	}
}

// Title returns a human readable name.
func (k Kind) Title() string {
	switch k {
	case Sum:
		return "Sum"
	case Avg:
		return "Average"
	case Min:
		return "Minimum"
	case Max:
		return "Maximum"
	case Count:
		return "Count"
	case Custom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Formula computes a per-record number for a measure.
type Formula func(records.Record) float64

// Measure is a named, aggregated numeric view over records.
type Measure struct {
	UniqueName  string
	Caption     string
	Aggregation Kind
	// Formula replaces the plain field read when set.
	Formula Formula
	// Expression is the textual source of Formula, if it was compiled from one.
	Expression string
}

// Label returns the caption, falling back to the unique name.
func (m Measure) Label() string {
	if m.Caption != "" {
		return m.Caption
	}
	return m.UniqueName
}

// Key returns the aggregate key of the measure, e.g. "sum_sales".
func (m Measure) Key() string {
	return Key(m.Aggregation, m.UniqueName)
}

// Value returns the per-record input of the measure: the formula result when
// a formula is set, the numeric coercion of the field otherwise (0 when the
// field is not numeric).
func (m Measure) Value(r records.Record) float64 {
	if m.Formula != nil {
		return m.Formula(r)
	}
	return r.Float(m.UniqueName)
}

// Validate checks that the measure can be aggregated.
func (m Measure) Validate() error {
	if m.UniqueName == "" {
		return errors.New("measure has no unique name")
	}
	if !m.Aggregation.Valid() {
		return fmt.Errorf("measure %q: %w: %s", m.UniqueName, ErrUnknownAggregation, m.Aggregation)
	}
	if m.Aggregation == Custom && m.Formula == nil {
		return fmt.Errorf("measure %q: %w", m.UniqueName, ErrMissingFormula)
	}
	return nil
}

// Key builds the aggregate key "<aggregation>_<uniqueName>".
func Key(kind Kind, uniqueName string) string {
	return kind.String() + "_" + uniqueName
}

// NumericAggState accumulates the running statistics used by Sum, Avg, Min and Max.
type NumericAggState struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// NewNumericAggState creates an empty state. Min and Max start at +Inf and
// -Inf so an empty state reports those sentinels.
func NewNumericAggState() *NumericAggState {
	return &NumericAggState{
		Min: math.Inf(1),
		Max: math.Inf(-1),
	}
}

// Add adds a single value.
func (s *NumericAggState) Add(value float64) {
	s.Count++
	s.Sum += value
	if value < s.Min {
		s.Min = value
	}
	if value > s.Max {
		s.Max = value
	}
}

// Avg returns Sum/Count, NaN for an empty state.
func (s *NumericAggState) Avg() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.Sum / float64(s.Count)
}

// Result returns the value of the given aggregation law.
func (s *NumericAggState) Result(kind Kind) (float64, error) {
	switch kind {
	case Sum, Custom:
		return s.Sum, nil
	case Avg:
		return s.Avg(), nil
	case Min:
		return s.Min, nil
	case Max:
		return s.Max, nil
	case Count:
		return float64(s.Count), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownAggregation, kind)
	}
}

// Aggregate computes the measure over items.
//
// Empty input yields the sentinels NaN (Avg), +Inf (Min) and -Inf (Max);
// Count ignores field values entirely.
func Aggregate(items []records.Record, m Measure) (float64, error) {
	switch m.Aggregation {
	case Count:
		return float64(len(items)), nil
	case Custom:
		if m.Formula == nil {
			return 0, fmt.Errorf("measure %q: %w", m.UniqueName, ErrMissingFormula)
		}
	case Sum, Avg, Min, Max:
	default:
		return 0, fmt.Errorf("measure %q: %w: %s", m.UniqueName, ErrUnknownAggregation, m.Aggregation)
	}

	state := NewNumericAggState()
	for _, r := range items {
		state.Add(m.Value(r))
	}
	return state.Result(m.Aggregation)
}

// IsPlaceholder reports whether v is one of the empty-group sentinels that
// must be rendered as a placeholder rather than a number.
func IsPlaceholder(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Placeholder is rendered in place of undefined aggregates.
const Placeholder = "-"

// FormatNumber formats a float64 for display with up to two decimals,
// trimming trailing zeros. Sentinels render as Placeholder.
func FormatNumber(v float64) string {
	if IsPlaceholder(v) {
		return Placeholder
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	formatted := fmt.Sprintf("%.2f", v)
	formatted = strings.TrimRight(formatted, "0")
	return strings.TrimSuffix(formatted, ".")
}

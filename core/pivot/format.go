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
	"fmt"
	"math"
	"time"

	"golang.org/x/text/message"

	"github.com/google/pivotcore/core/aggregates"
	"github.com/google/pivotcore/core/records"
)

var dateInputLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "2006/01/02", "01/02/2006"}

// FormatValue renders a value with the display rule configured for field.
// Nulls render empty, the empty-group sentinels NaN and ±Inf render as "-",
// and fields without a rule use plain number or string formatting.
func (e *Engine) FormatValue(value any, field string) string {
	v, err := records.ValueOf(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	if v.IsNull() {
		return ""
	}

	f, ok := e.cfg.Formats[field]
	if !ok {
		if v.Kind() == records.KindNumber {
			n, _ := v.Float()
			return aggregates.FormatNumber(n)
		}
		return v.Text()
	}
	if f.Type == DateFormat {
		return formatDate(v, f)
	}

	n, ok := v.Float()
	if !ok {
		return v.Text()
	}
	if aggregates.IsPlaceholder(n) {
		return aggregates.Placeholder
	}
	p := message.NewPrinter(e.opts.locale)
	switch f.Type {
	case CurrencyFormat:
		if n < 0 {
			return "-" + f.Symbol + formatDecimal(p, -n, f.Decimals)
		}
		return f.Symbol + formatDecimal(p, n, f.Decimals)
	case PercentFormat:
		return formatDecimal(p, n*100, f.Decimals) + "%"
	default:
		return formatDecimal(p, n, f.Decimals)
	}
}

// formatAggregate renders an aggregate of m. Counts ignore the measure's
// display rule.
func (e *Engine) formatAggregate(m aggregates.Measure, v float64) string {
	if aggregates.IsPlaceholder(v) {
		return aggregates.Placeholder
	}
	if m.Aggregation == aggregates.Count {
		return aggregates.FormatNumber(v)
	}
	return e.FormatValue(v, m.UniqueName)
}

func formatDecimal(p *message.Printer, n float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	return p.Sprintf(fmt.Sprintf("%%.%df", decimals), n)
}

func formatDate(v records.Value, f Format) string {
	layout := f.Layout
	if layout == "" {
		layout = "2006-01-02"
	}
	if v.Kind() == records.KindNumber {
		ms, _ := v.Float()
		if math.IsNaN(ms) || math.IsInf(ms, 0) {
			return aggregates.Placeholder
		}
		return time.UnixMilli(int64(ms)).UTC().Format(layout)
	}
	s := v.Text()
	for _, in := range dateInputLayouts {
		if t, err := time.Parse(in, s); err == nil {
			return t.Format(layout)
		}
	}
	return s
}

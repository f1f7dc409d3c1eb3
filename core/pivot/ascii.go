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
	"strings"
	"unicode/utf8"
)

// ToAscii returns the current page with ASCII borders: one column per
// dimension header then one per measure, and a closing totals line. Group
// labels sit in the column of their level, prefixed with "+" when collapsed
// and "-" when expanded.
func (e *Engine) ToAscii() string {
	p := e.processed
	dims := p.DimensionHeaders()
	measures := p.MeasureHeaders()

	header := make([]string, 0, len(dims)+len(measures))
	for _, h := range dims {
		header = append(header, h.Caption)
	}
	for _, h := range measures {
		header = append(header, h.Caption)
	}

	var body [][]string
	for _, r := range e.PageRows() {
		line := make([]string, 0, len(header))
		for i := range dims {
			label := ""
			if i < len(r.Labels) {
				label = r.Labels[i]
			}
			if r.Expandable && i == r.Depth {
				if r.Expanded {
					label = "- " + label
				} else {
					label = "+ " + label
				}
			}
			line = append(line, label)
		}
		for _, c := range r.Cells {
			line = append(line, c.Text)
		}
		body = append(body, line)
	}

	totals := make([]string, 0, len(header))
	for i := range dims {
		if i == 0 {
			totals = append(totals, "Total")
		} else {
			totals = append(totals, "")
		}
	}
	for _, c := range p.Totals {
		totals = append(totals, c.Text)
	}

	// Calculate column widths
	colWidths := make([]int, len(header))
	for i := range colWidths {
		colWidths[i] = 1
	}
	for _, line := range append(append([][]string{header}, body...), totals) {
		for i, s := range line {
			if n := utf8.RuneCountInString(s); n > colWidths[i] {
				colWidths[i] = n
			}
		}
	}

	var sb strings.Builder
	writeRule := func() {
		for _, w := range colWidths {
			sb.WriteString("|")
			sb.WriteString(strings.Repeat("-", w+2))
		}
		sb.WriteString("|\n")
	}
	writeLine := func(line []string) {
		for i, s := range line {
			pad := strings.Repeat(" ", colWidths[i]-utf8.RuneCountInString(s))
			sb.WriteString("| ")
			if i >= len(dims) {
				// measures are right aligned
				sb.WriteString(pad + s)
			} else {
				sb.WriteString(s + pad)
			}
			sb.WriteString(" ")
		}
		sb.WriteString("|\n")
	}

	if len(header) == 0 {
		return ""
	}
	writeLine(header)
	writeRule()
	for _, line := range body {
		writeLine(line)
	}
	writeRule()
	writeLine(totals)
	return sb.String()
}

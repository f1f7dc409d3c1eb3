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

/*
Package expr compiles measure formulas written as text into functions
evaluated per record.

Syntax:
  - Literals: numbers (1, 2.5, 1e3), strings ("x" or 'x'), true, false, null
  - Fields: bare identifiers (price) or bracketed names ([unit price])
  - Arithmetic: + - * / % ** (power is right associative)
  - Comparison: == != < > <= >=
  - Logic: and, or, not
  - Functions: abs, ceil, floor, sqrt, log, exp, round(x[, digits]), pow,
    min, max, if(cond, a, b), coalesce, len, lower, upper, number, string

Division or modulo by zero yields null, and arithmetic with a null operand
yields null, so one bad record does not fail the whole measure.
*/
package expr

import (
	"fmt"
	"sort"

	"github.com/google/pivotcore/core/records"
)

// Expression is a compiled formula.
type Expression struct {
	source string
	root   node
}

// Compile parses a formula.
func Compile(source string) (*Expression, error) {
	if source == "" {
		return nil, fmt.Errorf("empty expression")
	}
	root, err := parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", source, err)
	}
	return &Expression{source: source, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string) *Expression {
	e, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return e
}

// Source returns the original formula text.
func (e *Expression) Source() string {
	return e.source
}

// Eval evaluates the formula against one record.
func (e *Expression) Eval(r records.Record) (records.Value, error) {
	return eval(e.root, r)
}

// Float evaluates the formula and coerces the result to a number. Errors,
// nulls and non-numeric results count as 0, the same rule applied to plain
// non-numeric field values. Its signature matches aggregates.Formula.
func (e *Expression) Float(r records.Record) float64 {
	v, err := eval(e.root, r)
	if err != nil {
		return 0
	}
	f, _ := v.Float()
	return f
}

// Fields returns the sorted names of the fields the formula reads.
func (e *Expression) Fields() []string {
	seen := map[string]bool{}
	var walk func(node)
	walk = func(n node) {
		switch n := n.(type) {
		case *fieldRef:
			seen[n.name] = true
		case *unary:
			walk(n.x)
		case *binary:
			walk(n.left)
			walk(n.right)
		case *call:
			for _, a := range n.args {
				walk(a)
			}
		}
	}
	walk(e.root)

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

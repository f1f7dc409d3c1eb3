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

package expr

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/pivotcore/core/records"
)

func eval(n node, r records.Record) (records.Value, error) {
	switch n := n.(type) {
	case *literal:
		return records.ValueOf(n.value)

	case *fieldRef:
		return r.Get(n.name), nil

	case *unary:
		x, err := eval(n.x, r)
		if err != nil {
			return records.Null(), err
		}
		if n.op == "not" {
			return records.Bool(!truthy(x)), nil
		}
		f, ok := x.Float()
		if !ok {
			return records.Null(), fmt.Errorf("cannot negate %s", x.Kind())
		}
		return records.Number(-f), nil

	case *binary:
		return evalBinary(n, r)

	case *call:
		return evalCall(n, r)
	}
	return records.Null(), fmt.Errorf("unknown expression node %T", n)
}

func evalBinary(n *binary, r records.Record) (records.Value, error) {
	left, err := eval(n.left, r)
	if err != nil {
		return records.Null(), err
	}

	// and/or short-circuit on the left operand
	switch n.op {
	case "and":
		if !truthy(left) {
			return records.Bool(false), nil
		}
		right, err := eval(n.right, r)
		if err != nil {
			return records.Null(), err
		}
		return records.Bool(truthy(right)), nil
	case "or":
		if truthy(left) {
			return records.Bool(true), nil
		}
		right, err := eval(n.right, r)
		if err != nil {
			return records.Null(), err
		}
		return records.Bool(truthy(right)), nil
	}

	right, err := eval(n.right, r)
	if err != nil {
		return records.Null(), err
	}

	switch n.op {
	case "==":
		return records.Bool(equal(left, right)), nil
	case "!=":
		return records.Bool(!equal(left, right)), nil
	case "<", ">", "<=", ">=":
		c, ok := order(left, right)
		if !ok {
			return records.Bool(false), nil
		}
		switch n.op {
		case "<":
			return records.Bool(c < 0), nil
		case ">":
			return records.Bool(c > 0), nil
		case "<=":
			return records.Bool(c <= 0), nil
		default:
			return records.Bool(c >= 0), nil
		}
	case "+":
		if left.Kind() == records.KindString && right.Kind() == records.KindString {
			return records.String(left.Text() + right.Text()), nil
		}
	}

	a, aok := left.Float()
	b, bok := right.Float()
	if !aok || !bok {
		if left.IsNull() || right.IsNull() {
			return records.Null(), nil
		}
		return records.Null(), fmt.Errorf("operator %s needs numbers, got %s and %s", n.op, left.Kind(), right.Kind())
	}
	switch n.op {
	case "+":
		return records.Number(a + b), nil
	case "-":
		return records.Number(a - b), nil
	case "*":
		return records.Number(a * b), nil
	case "/":
		if b == 0 {
			return records.Null(), nil
		}
		return records.Number(a / b), nil
	case "%":
		if b == 0 {
			return records.Null(), nil
		}
		return records.Number(math.Mod(a, b)), nil
	case "**":
		return records.Number(math.Pow(a, b)), nil
	}
	return records.Null(), fmt.Errorf("unknown operator %s", n.op)
}

func evalCall(c *call, r records.Record) (records.Value, error) {
	name := strings.ToLower(c.fn)

	// if() evaluates only the selected branch
	if name == "if" {
		if len(c.args) != 3 {
			return records.Null(), fmt.Errorf("if() takes 3 arguments, got %d", len(c.args))
		}
		cond, err := eval(c.args[0], r)
		if err != nil {
			return records.Null(), err
		}
		if truthy(cond) {
			return eval(c.args[1], r)
		}
		return eval(c.args[2], r)
	}

	args := make([]records.Value, len(c.args))
	for i, a := range c.args {
		v, err := eval(a, r)
		if err != nil {
			return records.Null(), err
		}
		args[i] = v
	}

	switch name {
	case "coalesce":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return records.Null(), nil
	case "min", "max":
		if len(args) == 0 {
			return records.Null(), fmt.Errorf("%s() needs at least one argument", name)
		}
		best := math.NaN()
		for _, a := range args {
			f, ok := a.Float()
			if !ok {
				continue
			}
			if math.IsNaN(best) || (name == "min" && f < best) || (name == "max" && f > best) {
				best = f
			}
		}
		if math.IsNaN(best) {
			return records.Null(), nil
		}
		return records.Number(best), nil
	case "len":
		if err := arity(name, args, 1); err != nil {
			return records.Null(), err
		}
		return records.Number(float64(len([]rune(args[0].Text())))), nil
	case "lower":
		if err := arity(name, args, 1); err != nil {
			return records.Null(), err
		}
		return records.String(strings.ToLower(args[0].Text())), nil
	case "upper":
		if err := arity(name, args, 1); err != nil {
			return records.Null(), err
		}
		return records.String(strings.ToUpper(args[0].Text())), nil
	case "string":
		if err := arity(name, args, 1); err != nil {
			return records.Null(), err
		}
		return records.String(args[0].Text()), nil
	case "number":
		if err := arity(name, args, 1); err != nil {
			return records.Null(), err
		}
		if f, ok := args[0].Float(); ok {
			return records.Number(f), nil
		}
		return records.Null(), nil
	case "round":
		if len(args) != 1 && len(args) != 2 {
			return records.Null(), fmt.Errorf("round() takes 1 or 2 arguments, got %d", len(args))
		}
		x, ok := args[0].Float()
		if !ok {
			return records.Null(), nil
		}
		digits := 0.0
		if len(args) == 2 {
			digits, _ = args[1].Float()
		}
		scale := math.Pow(10, math.Trunc(digits))
		return records.Number(math.Round(x*scale) / scale), nil
	case "pow":
		if err := arity(name, args, 2); err != nil {
			return records.Null(), err
		}
		a, aok := args[0].Float()
		b, bok := args[1].Float()
		if !aok || !bok {
			return records.Null(), nil
		}
		return records.Number(math.Pow(a, b)), nil
	}

	if fn, ok := mathFuncs[name]; ok {
		if err := arity(name, args, 1); err != nil {
			return records.Null(), err
		}
		x, ok := args[0].Float()
		if !ok {
			return records.Null(), nil
		}
		return records.Number(fn(x)), nil
	}
	return records.Null(), fmt.Errorf("unknown function %s()", c.fn)
}

var mathFuncs = map[string]func(float64) float64{
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"sqrt":  math.Sqrt,
	"log":   math.Log,
	"exp":   math.Exp,
}

func arity(name string, args []records.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s() takes %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func truthy(v records.Value) bool {
	switch v.Kind() {
	case records.KindBool:
		f, _ := v.Float()
		return f != 0
	case records.KindNumber:
		f, _ := v.Float()
		return f != 0 && !math.IsNaN(f)
	case records.KindString:
		return v.Text() != ""
	default:
		return false
	}
}

func equal(a, b records.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if fa, ok := a.Float(); ok {
		if fb, ok := b.Float(); ok {
			return fa == fb
		}
	}
	return a.Text() == b.Text()
}

// order compares two values numerically when both are numbers, lexically
// when both are strings.
func order(a, b records.Value) (int, bool) {
	if a.IsNull() || b.IsNull() {
		return 0, false
	}
	if fa, ok := a.Float(); ok {
		if fb, ok := b.Float(); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
	}
	return strings.Compare(a.Text(), b.Text()), true
}

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
	"strconv"
)

// node is an element of the expression tree.
type node interface {
	node()
}

type literal struct {
	value any // float64, string, bool or nil
}

type fieldRef struct {
	name string
}

type unary struct {
	op string
	x  node
}

type binary struct {
	op          string
	left, right node
}

type call struct {
	fn   string
	args []node
}

func (*literal) node()  {}
func (*fieldRef) node() {}
func (*unary) node()    {}
func (*binary) node()   {}
func (*call) node()     {}

// Binding powers, low to high:
// or, and, not, comparisons, + -, * / %, ** (right associative), unary minus.
const (
	bpOr = iota + 1
	bpAnd
	bpNot
	bpCompare
	bpAdd
	bpMul
	bpPow
	bpUnary
)

func infixPower(t token) int {
	switch {
	case t.kind == tokIdent && t.text == "or":
		return bpOr
	case t.kind == tokIdent && t.text == "and":
		return bpAnd
	case t.kind != tokOp:
		return 0
	}
	switch t.text {
	case "==", "!=", "<", ">", "<=", ">=":
		return bpCompare
	case "+", "-":
		return bpAdd
	case "*", "/", "%":
		return bpMul
	case "**":
		return bpPow
	}
	return 0
}

type parser struct {
	toks []token
	pos  int
}

func parse(src string) (node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.expression(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// expression parses operators whose binding power exceeds minPower.
func (p *parser) expression(minPower int) (node, error) {
	left, err := p.prefix()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		power := infixPower(t)
		if power == 0 || power <= minPower {
			return left, nil
		}
		p.next()
		rightMin := power
		if t.text == "**" {
			rightMin = power - 1
		}
		right, err := p.expression(rightMin)
		if err != nil {
			return nil, err
		}
		left = &binary{op: t.text, left: left, right: right}
	}
}

func (p *parser) prefix() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", t.text, t.pos)
		}
		return &literal{value: f}, nil

	case tokString:
		return &literal{value: t.text}, nil

	case tokOp:
		if t.text != "-" && t.text != "+" {
			return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
		}
		// binds looser than ** so that -2**2 is -(2**2)
		x, err := p.expression(bpMul)
		if err != nil {
			return nil, err
		}
		if t.text == "+" {
			return x, nil
		}
		return &unary{op: "-", x: x}, nil

	case tokLParen:
		inner, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("expected ')' to close '(' at position %d", t.pos)
		}
		return inner, nil

	case tokIdent:
		switch t.text {
		case "true":
			return &literal{value: true}, nil
		case "false":
			return &literal{value: false}, nil
		case "null":
			return &literal{value: nil}, nil
		case "not":
			x, err := p.expression(bpNot - 1)
			if err != nil {
				return nil, err
			}
			return &unary{op: "not", x: x}, nil
		}
		if p.peek().kind == tokLParen {
			p.next()
			args, err := p.arguments()
			if err != nil {
				return nil, err
			}
			return &call{fn: t.text, args: args}, nil
		}
		return &fieldRef{name: t.text}, nil

	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected %q at position %d", t.text, t.pos)
}

// arguments parses a call argument list after the opening parenthesis.
func (p *parser) arguments() ([]node, error) {
	var args []node
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.expression(0)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch t := p.next(); t.kind {
		case tokComma:
			continue
		case tokRParen:
			return args, nil
		default:
			return nil, fmt.Errorf("expected ',' or ')' at position %d", t.pos)
		}
	}
}

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

// Package records defines the open record model consumed by the pivot engine.
// A Record maps field names to scalar Values drawn from a closed set of kinds
// (null, string, number, bool). Records are immutable once built: every
// accessor returns copies, and nothing in this module mutates a Record in place.
package records

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Record is an immutable map of field name to scalar value.
type Record struct {
	fields map[string]Value
}

// New builds a Record from plain Go values. Supported inputs are nil, strings,
// booleans, all integer and float types, json.Number, time.Time (stored as an
// RFC 3339 string) and Value.
func New(m map[string]any) (Record, error) {
	fields := make(map[string]Value, len(m))
	for name, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return Record{}, fmt.Errorf("field %q: %w", name, err)
		}
		fields[name] = v
	}
	return Record{fields: fields}, nil
}

// MustNew is like New but panics on unsupported values. Intended for tests
// and static fixtures.
func MustNew(m map[string]any) Record {
	r, err := New(m)
	if err != nil {
		panic(err)
	}
	return r
}

// FromValues builds a Record from already typed values. The map is copied.
func FromValues(m map[string]Value) Record {
	fields := make(map[string]Value, len(m))
	for k, v := range m {
		fields[k] = v
	}
	return Record{fields: fields}
}

// ValueOf converts a plain Go value to a Value.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return Number(f), nil
	case time.Time:
		return String(x.Format(time.RFC3339)), nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", raw)
	}
}

// Get returns the value of a field, or null when the field is absent.
// This is the single typed accessor for record fields.
func (r Record) Get(field string) Value {
	return r.fields[field]
}

// Lookup returns the value of a field and whether it is present.
func (r Record) Lookup(field string) (Value, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Float returns the numeric coercion of a field, 0 when not numeric.
func (r Record) Float(field string) float64 {
	f, _ := r.fields[field].Float()
	return f
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Fields returns the field names in sorted order.
func (r Record) Fields() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the record as plain Go values.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		m[k] = v.Interface()
	}
	return m
}

// String renders the record in field order, mainly for test failures.
func (r Record) String() string {
	s := "{"
	for i, name := range r.Fields() {
		if i > 0 {
			s += " "
		}
		s += name + ":" + r.fields[name].String()
	}
	return s + "}"
}

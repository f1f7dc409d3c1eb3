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

import "strings"

// Match evaluates a pattern against a string value.
//
// Syntax:
//
//	"CLOSED"        exact match
//	'CLOSED'        contains
//	CLOSED          exact match (bare string)
//	!'tmp'          negation
//	'a'&'b'         and
//	"OPEN"|"NEW"    or
//
// & binds tighter than |. Parentheses are not supported.
func Match(pattern string, value string) bool {
	for _, alternative := range strings.Split(pattern, "|") {
		if matchAll(alternative, value) {
			return true
		}
	}
	return false
}

func matchAll(conjunction string, value string) bool {
	for _, term := range strings.Split(conjunction, "&") {
		term = strings.TrimSpace(term)
		negate := false
		if strings.HasPrefix(term, "!") {
			negate = true
			term = strings.TrimSpace(term[1:])
		}
		if matchTerm(term, value) == negate {
			return false
		}
	}
	return true
}

func matchTerm(term, value string) bool {
	switch {
	case len(term) >= 2 && term[0] == '"' && term[len(term)-1] == '"':
		return value == term[1:len(term)-1]
	case len(term) >= 2 && term[0] == '\'' && term[len(term)-1] == '\'':
		return strings.Contains(value, term[1:len(term)-1])
	case term == "":
		return false
	}
	return value == term
}

/*
 * Copyright 2026 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package filter

import (
	"strings"
)

// Filter matches names against an ordered list of wildcard patterns.
//
// Patterns are separated by commas. `?` matches one character other than
// '/', `*` matches any run of characters other than '/', `**` matches any
// run of characters. A leading `!` negates the pattern. The first pattern
// that matches decides; a name no pattern matches is accepted only when the
// last pattern is negated.
type Filter struct {
	pats []pattern
}

type pattern struct {
	neg  bool
	expr string
}

// Parse compiles a comma separated pattern list. Empty items are ignored.
func Parse(list string) *Filter {
	ret := new(Filter)
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		} else if item[0] == '!' {
			ret.pats = append(ret.pats, pattern{neg: true, expr: strings.TrimSpace(item[1:])})
		} else {
			ret.pats = append(ret.pats, pattern{expr: item})
		}
	}
	return ret
}

// Match reports whether the filter accepts name.
func (self *Filter) Match(name string) bool {
	for _, p := range self.pats {
		if Glob(p.expr, name) {
			return !p.neg
		}
	}
	return len(self.pats) != 0 && self.pats[len(self.pats)-1].neg
}

// IsEmpty reports whether the filter has no patterns at all.
func (self *Filter) IsEmpty() bool {
	return len(self.pats) == 0
}

func (self *Filter) String() string {
	var sb strings.Builder
	for i, p := range self.pats {
		if i != 0 {
			sb.WriteByte(',')
		}
		if p.neg {
			sb.WriteByte('!')
		}
		sb.WriteString(p.expr)
	}
	return sb.String()
}

// Glob matches a single pattern against name.
func Glob(expr string, name string) bool {
	for len(expr) != 0 {
		switch expr[0] {
		case '?':
			if len(name) == 0 || name[0] == '/' {
				return false
			}
			expr, name = expr[1:], name[1:]
		case '*':
			deep := strings.HasPrefix(expr, "**")
			if deep {
				expr = expr[2:]
			} else {
				expr = expr[1:]
			}

			/* try every possible split */
			for i := 0; i <= len(name); i++ {
				if Glob(expr, name[i:]) {
					return true
				}
				if i < len(name) && name[i] == '/' && !deep {
					return false
				}
			}
			return false
		default:
			if len(name) == 0 || name[0] != expr[0] {
				return false
			}
			expr, name = expr[1:], name[1:]
		}
	}
	return len(name) == 0
}

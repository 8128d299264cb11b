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

package keep

import (
	"github.com/cloudwego/bcopt/internal/filter"
)

// Oracle tells which classes and members form the external surface that
// must not be removed, renamed or have their signature changed.
type Oracle interface {
	IsClassKept(class string) bool
	IsMemberKept(class string, name string, desc string) bool
}

type nothing struct{}

func (nothing) IsClassKept(string) bool                  { return false }
func (nothing) IsMemberKept(string, string, string) bool { return false }

type everything struct{}

func (everything) IsClassKept(string) bool                  { return true }
func (everything) IsMemberKept(string, string, string) bool { return true }

var (
	// Nothing keeps nothing.
	Nothing Oracle = nothing{}

	// Everything keeps every class and member.
	Everything Oracle = everything{}
)

// Rule is a keep rule. Class, Member and Descriptor are filter patterns;
// an empty Member keeps only the class, an empty Descriptor matches any
// descriptor.
type Rule struct {
	Class      string `toml:"class"`
	Member     string `toml:"member"`
	Descriptor string `toml:"descriptor"`
}

type rule struct {
	class  *filter.Filter
	member *filter.Filter
	desc   *filter.Filter
}

// Rules is an Oracle backed by a list of keep rules.
type Rules struct {
	rules []rule
}

func NewRules(rules []Rule) *Rules {
	ret := &Rules{rules: make([]rule, 0, len(rules))}
	for _, r := range rules {
		v := rule{class: filter.Parse(r.Class)}
		if r.Member != "" {
			v.member = filter.Parse(r.Member)
		}
		if r.Descriptor != "" {
			v.desc = filter.Parse(r.Descriptor)
		}
		ret.rules = append(ret.rules, v)
	}
	return ret
}

// IsClassKept reports whether any rule names the class.
func (self *Rules) IsClassKept(class string) bool {
	for _, r := range self.rules {
		if r.class.Match(class) {
			return true
		}
	}
	return false
}

// IsMemberKept reports whether any rule with a member pattern names the member.
func (self *Rules) IsMemberKept(class string, name string, desc string) bool {
	for _, r := range self.rules {
		if r.member != nil && r.class.Match(class) && r.member.Match(name) && (r.desc == nil || r.desc.Match(desc)) {
			return true
		}
	}
	return false
}

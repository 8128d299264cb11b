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

package bcopt

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cloudwego/bcopt/internal/filter"
	"github.com/cloudwego/bcopt/internal/keep"
	"github.com/cloudwego/bcopt/internal/opts"
	"github.com/cloudwego/bcopt/internal/passes"
)

// KeepRule names classes and members whose observable surface must not change.
// Class, Member and Descriptor are name patterns, where `*` matches any part
// of a name without '/', `**` matches anything and a leading `!` negates.
type KeepRule = keep.Rule

// KeepOracle decides which classes and members are kept.
type KeepOracle = keep.Oracle

type config struct {
	opts.Options
	keep keep.Oracle
	log  *zap.Logger
}

// Option is the property setter function for the optimizer configuration.
type Option func(*config)

// WithMaxPasses sets the maximum number of passes over the program.
//
// Every pass applies each enabled transformation once. The optimizer stops
// early once a pass changes nothing.
//
// The default value of this option is "5".
func WithMaxPasses(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("bcopt: invalid pass count: %d", n))
	} else {
		return func(o *config) { o.MaxPasses = n }
	}
}

// WithParallelism sets the number of workers visiting classes concurrently.
//
// The default value of this option is GOMAXPROCS.
func WithParallelism(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("bcopt: invalid parallelism: %d", n))
	} else {
		return func(o *config) { o.Parallelism = n }
	}
}

// WithOptimizations selects the enabled transformations with a comma
// separated list of name patterns, for example "!method/inlining/*,**".
//
// The first matching pattern decides, and names matching no pattern are
// enabled only if the last pattern is negated.
//
// The default value of this option is "**", which enables everything.
func WithOptimizations(patterns string) Option {
	if patterns == "" {
		panic("bcopt: empty optimization filter")
	} else {
		return func(o *config) { o.Optimizations = patterns }
	}
}

// WithExhaustive makes every pass visit the whole program instead of only the
// methods affected by the previous pass.
func WithExhaustive(v bool) Option {
	return func(o *config) { o.Exhaustive = v }
}

// WithLogger sets the logger receiving the pass reports and rolled back edits.
func WithLogger(log *zap.Logger) Option {
	if log == nil {
		panic("bcopt: nil logger")
	} else {
		return func(o *config) { o.log = log }
	}
}

// WithKeepRules keeps every class and member named by the rules.
func WithKeepRules(rules ...KeepRule) Option {
	for _, r := range rules {
		if r.Class == "" {
			panic("bcopt: keep rule without class pattern")
		}
	}
	return func(o *config) { o.keep = keep.NewRules(rules) }
}

// WithKeepOracle sets a custom oracle deciding the kept classes and members.
func WithKeepOracle(oracle KeepOracle) Option {
	if oracle == nil {
		panic("bcopt: nil keep oracle")
	} else {
		return func(o *config) { o.keep = oracle }
	}
}

// SetMaxPasses sets the default maximum number of passes from now on.
//
// This value can also be configured with the `BCOPT_MAX_PASSES` environment
// variable.
//
// Returns the old opts.MaxPasses value.
func SetMaxPasses(n int) int {
	n, opts.MaxPasses = opts.MaxPasses, n
	return n
}

// SetOptimizations sets the default transformation filter from now on.
//
// This value can also be configured with the `BCOPT_OPTIMIZATIONS`
// environment variable.
//
// Returns the old opts.Optimizations value.
func SetOptimizations(patterns string) string {
	patterns, opts.Optimizations = opts.Optimizations, patterns
	return patterns
}

// Transformations returns the names of every transformation, in the order
// they run within a pass.
func Transformations() []string {
	return passes.Names()
}

// Enabled reports the transformations selected by a filter.
func Enabled(patterns string) []string {
	var ret []string
	f := filter.Parse(patterns)
	for _, name := range passes.Names() {
		if f.Match(name) {
			ret = append(ret, name)
		}
	}
	return ret
}

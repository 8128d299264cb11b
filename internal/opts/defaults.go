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

package opts

import (
	"runtime"

	"github.com/xyproto/env/v2"
)

const (
	_DefaultMaxPasses     = 5    // most programs converge within a handful of passes
	_DefaultOptimizations = "**" // every transformation
)

var (
	MaxPasses     = parseOrDefault("BCOPT_MAX_PASSES", _DefaultMaxPasses, 1)
	Parallelism   = parseOrDefault("BCOPT_PARALLELISM", runtime.GOMAXPROCS(0), 1)
	Optimizations = env.Str("BCOPT_OPTIMIZATIONS", _DefaultOptimizations)
	Exhaustive    = env.Bool("BCOPT_EXHAUSTIVE")
)

func parseOrDefault(key string, def int, min int) int {
	if !env.Has(key) {
		return def
	} else {
		return checkMin(key, env.Int(key, min-1), min)
	}
}

func checkMin(key string, val int, min int) int {
	if val < min {
		panic("bcopt: invalid value for " + key)
	} else {
		return val
	}
}

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
	"go.uber.org/zap"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/driver"
	"github.com/cloudwego/bcopt/internal/keep"
	"github.com/cloudwego/bcopt/internal/opts"
)

// Result summarizes an optimizer run.
type Result = driver.Result

// PassStats records what a single pass did.
type PassStats = driver.PassStats

// State is the state of an optimizer run.
type State = driver.State

const (
	Idle      = driver.Idle
	Running   = driver.Running
	Converged = driver.Converged
	Exhausted = driver.Exhausted
)

// Optimize rewrites the program classes in place. Library classes are
// consulted for resolution and never modified.
//
// The classes must form a closed world: every referenced class is either a
// program class or a library class, otherwise a classfile.ModelError is
// returned and nothing is changed.
func Optimize(program []*classfile.Class, library []*classfile.Class, options ...Option) (Result, error) {
	cfg := config{
		Options: opts.GetDefaultOptions(),
		keep:    keep.Nothing,
		log:     zap.NewNop(),
	}

	/* apply the options */
	for _, fn := range options {
		fn(&cfg)
	}

	/* build the class pool */
	pool, err := classfile.NewClassPool(program, library)
	if err != nil {
		return Result{}, err
	}

	/* run the passes */
	cfg.log.Debug("optimizing",
		zap.Int("program", len(program)),
		zap.Int("library", len(library)),
		zap.Int("max_passes", cfg.MaxPasses),
		zap.String("optimizations", cfg.Optimizations),
	)
	return driver.New(pool, cfg.Options, cfg.keep, cfg.log).Run(), nil
}

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

package passes

import (
	"fmt"
	"sync"

	"github.com/bytedance/gopkg/util/gopool"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/depgraph"
	"github.com/cloudwego/bcopt/internal/editor"
	"github.com/cloudwego/bcopt/internal/filter"
	"github.com/cloudwego/bcopt/internal/keep"
	"github.com/cloudwego/bcopt/internal/optinfo"
)

// Transformation names, as matched by the optimization filter.
const (
	ParameterShrinker    = "method/removal/parameter"
	MethodStaticizer     = "method/marking/static"
	ReferenceGeneralizer = "member/generalization/reference"
	TailRecursion        = "method/inlining/tailrecursion"
	InitializerFixer     = "method/fixing/initializer"
	BootstrapArgShrinker = "attribute/shrinking/bootstrapargument"
	LineNumberTrimmer    = "attribute/trimming/linenumber"
)

// Pass is a single transformation. VisitMethod is called for every method
// with a body and reports whether it changed anything. It may only change
// the method itself and the constant pool of its class; edits to other
// classes are queued in Context.Changes.
type Pass interface {
	Name() string
	VisitMethod(ctx *Context, c *classfile.Class, m *classfile.Method) bool
}

// ClassVisitor is implemented by passes that also work on class attributes.
type ClassVisitor interface {
	VisitClass(ctx *Context, c *classfile.Class) bool
}

// All returns every transformation in execution order.
func All() []Pass {
	return []Pass{
		new(parameterShrinker),
		new(referenceGeneralizer),
		new(tailRecursion),
		new(initializerFixer),
		new(bootstrapArgShrinker),
		new(lineNumberTrimmer),
	}
}

// Names returns the names of every transformation in execution order. The
// staticizer runs as part of the parameter shrinker.
func Names() []string {
	var ret []string
	for _, p := range All() {
		if ret = append(ret, p.Name()); p.Name() == ParameterShrinker {
			ret = append(ret, MethodStaticizer)
		}
	}
	return ret
}

// Context is everything a transformation can see during a run.
type Context struct {
	Pool    *classfile.ClassPool
	Arena   *optinfo.Arena
	Store   *depgraph.Store
	Keep    keep.Oracle
	Log     *zap.Logger
	Shrunk  *Registry
	Changes *ChangeSet

	filter   *filter.Filter
	workers  gopool.Pool
	graph    atomic.Bool
	refusals atomic.Int64
}

// NewContext creates the context of a run. The store can be replaced
// between passes.
func NewContext(pool *classfile.ClassPool, arena *optinfo.Arena, store *depgraph.Store, oracle keep.Oracle, enabled *filter.Filter, parallelism int, log *zap.Logger) *Context {
	return &Context{
		Pool:    pool,
		Arena:   arena,
		Store:   store,
		Keep:    oracle,
		Log:     log,
		Shrunk:  NewRegistry(),
		Changes: new(ChangeSet),
		filter:  enabled,
		workers: gopool.NewPool("bcopt", int32(parallelism), gopool.NewConfig()),
	}
}

// Enabled reports whether the named transformation is enabled.
func (self *Context) Enabled(name string) bool {
	return self.filter.Match(name)
}

// Refuse records that a transformation declined an edit.
func (self *Context) Refuse(pass string, c *classfile.Class, m *classfile.Method, reason string, args ...interface{}) {
	self.refusals.Inc()
	if ce := self.Log.Check(zap.DebugLevel, "refused"); ce != nil {
		fields := []zap.Field{zap.String("pass", pass), zap.String("class", c.Name)}
		if m != nil {
			fields = append(fields, zap.String("method", m.Key()))
		}
		ce.Write(append(fields, zap.String("reason", fmt.Sprintf(reason, args...)))...)
	}
}

// Refusals returns the number of refused edits so far.
func (self *Context) Refusals() int64 {
	return self.refusals.Load()
}

// MarkCallGraphChanged records that call edges were removed.
func (self *Context) MarkCallGraphChanged() {
	self.graph.Store(true)
}

// CallGraphChanged reports and clears the call graph change flag.
func (self *Context) CallGraphChanged() bool {
	return self.graph.Swap(false)
}

// Parallel calls fn(0) ... fn(n-1) on the worker pool and waits for all of
// them. A panic in any call is raised again in the caller.
func (self *Context) Parallel(n int, fn func(i int)) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	var fault interface{}

	/* run every task */
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		self.workers.Go(func() {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					mu.Lock()
					if fault == nil {
						fault = v
					}
					mu.Unlock()
				}
			}()
			fn(i)
		})
	}

	/* propagate the first panic */
	if wg.Wait(); fault != nil {
		panic(fault)
	}
}

// Rescue calls fn and converts consistency violations and class file limit
// errors into an error. Other panics are not recovered.
func Rescue(fn func()) (err error) {
	defer func() {
		switch v := recover().(type) {
		case nil:
			break
		case *editor.ConsistencyError:
			err = v
		case classfile.LimitError:
			err = v
		default:
			panic(v)
		}
	}()
	fn()
	return
}

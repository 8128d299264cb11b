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

package driver

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/depgraph"
	"github.com/cloudwego/bcopt/internal/filter"
	"github.com/cloudwego/bcopt/internal/keep"
	"github.com/cloudwego/bcopt/internal/optinfo"
	"github.com/cloudwego/bcopt/internal/opts"
	"github.com/cloudwego/bcopt/internal/passes"
)

// Driver applies the enabled transformations to a program, pass after pass,
// until a pass changes nothing or the pass budget runs out.
type Driver struct {
	pool       *classfile.ClassPool
	opts       opts.Options
	keep       keep.Oracle
	log        *zap.Logger
	state      State
	passes     []passes.Pass
	violations atomic.Int64
}

func New(pool *classfile.ClassPool, options opts.Options, oracle keep.Oracle, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	if oracle == nil {
		oracle = keep.Nothing
	}
	return &Driver{
		pool: pool,
		opts: options,
		keep: oracle,
		log:  log,
	}
}

func (self *Driver) State() State {
	return self.state
}

// possible reports whether anything in the program may change at all.
func (self *Driver) possible() bool {
	for _, c := range self.pool.Program() {
		if !self.keep.IsClassKept(c.Name) {
			return true
		}
		for _, m := range c.Methods {
			if m.Code != nil && !self.keep.IsMemberKept(c.Name, m.Name, m.Desc) {
				return true
			}
		}
	}
	return false
}

// Run optimizes the program. It must be called at most once.
//
// A pass that changes nothing ends the run as Converged, even when it is the
// last pass MaxPasses allows. The run is Exhausted only when the last
// allowed pass still changed something.
func (self *Driver) Run() (ret Result) {
	RunCount.Inc()
	enabled := filter.Parse(self.opts.Optimizations)

	/* select the transformations */
	for _, p := range passes.All() {
		if enabled.Match(p.Name()) {
			self.passes = append(self.passes, p)
		}
	}

	/* nothing can be optimized */
	if len(self.passes) == 0 || !self.possible() {
		self.state = Converged
		self.log.Info("nothing to optimize", zap.Int("classes", len(self.pool.Program())))
		return Result{State: Converged}
	}

	/* the optimization info and the reverse dependencies */
	arena := optinfo.New(self.pool, self.keep)
	store := depgraph.Build(arena)
	arena.PropagateSideEffects(store.Callers)
	ctx := passes.NewContext(self.pool, arena, store, self.keep, enabled, self.opts.Parallelism, self.log)

	/* the first pass visits everything */
	var wl *worklist
	self.state = Running

	/* run the passes */
	for i := 0; self.state == Running; i++ {
		st, methods, classes := self.pass(ctx, i, wl)
		ids := self.settle(ctx, methods, &st)

		/* record the pass */
		ret.Passes++
		ret.Stats = append(ret.Stats, st)
		PassCount.Inc()
		ChangeCount.Add(int64(st.Total))
		RefusalCount.Add(st.Refusals)
		self.report(st)

		/* decide whether another pass is worthwhile */
		switch {
		case st.Total == 0:
			self.state = Converged
		case i+1 >= self.opts.MaxPasses:
			self.state = Exhausted
		case self.opts.Exhaustive:
			wl = nil
		default:
			wl = self.revisit(ctx, ids, classes)
		}
	}

	ret.State = self.state
	return
}

// pass applies every transformation in order and returns the changed
// methods and the classes changed by class visitors.
func (self *Driver) pass(ctx *passes.Context, i int, wl *worklist) (PassStats, []*classfile.Method, []*classfile.Class) {
	var methods []*classfile.Method
	var classes []*classfile.Class

	/* collect the changes of every transformation, each only once */
	seenm := make(map[*classfile.Method]bool)
	seenc := make(map[*classfile.Class]bool)
	onChange := func(c *classfile.Class, m *classfile.Method) {
		if m == nil {
			if !seenc[c] {
				seenc[c] = true
				classes = append(classes, c)
			}
		} else if !seenm[m] {
			seenm[m] = true
			methods = append(methods, m)
		}
	}

	/* apply the transformations */
	refusals := ctx.Refusals()
	violations := self.violations.Load()
	st := PassStats{Index: i, Visited: wl.size(self.pool), Changes: make(map[string]int, len(self.passes))}
	for _, p := range self.passes {
		n := self.apply(ctx, p, wl, onChange)
		st.Changes[p.Name()] = n
		st.Total += n
	}

	/* count the refused edits and the rolled back methods */
	st.Refusals = ctx.Refusals() - refusals
	st.Violations = int(self.violations.Load() - violations)
	return st, methods, classes
}

// apply runs one transformation. Methods are visited in parallel by class,
// then the queued plans are committed. Methods and classes changed by the
// plans join the worklist so later transformations of the pass see them.
func (self *Driver) apply(ctx *passes.Context, p passes.Pass, wl *worklist, onChange func(*classfile.Class, *classfile.Method)) int {
	classes := self.pool.Program()
	changed := make([][]*classfile.Method, len(classes))
	touched := make([]bool, len(classes))
	cv, _ := p.(passes.ClassVisitor)

	/* phase 1: a class belongs to a single worker */
	ctx.Parallel(len(classes), func(i int) {
		c := classes[i]
		for _, m := range c.Methods {
			if m.Code != nil && wl.hasMethod(m) && self.visitMethod(ctx, p, c, m) {
				changed[i] = append(changed[i], m)
			}
		}
		if cv != nil && wl.hasClass(c) {
			touched[i] = self.visitClass(ctx, p.Name(), cv, c)
		}
	})

	/* merge the results in class order */
	n := 0
	for i, c := range classes {
		for _, m := range changed[i] {
			onChange(c, m)
			n++
		}
		if touched[i] {
			onChange(c, nil)
			n++
		}
	}

	/* phase 2: cross-class edits */
	applied := ctx.Changes.Commit(ctx)
	for _, m := range applied.Methods {
		onChange(nil, m)
		if wl != nil {
			wl.methods[m] = true
		}
	}
	for _, c := range applied.Classes {
		if wl != nil {
			wl.classes[c] = true
		}
	}
	return n + applied.Plans
}

// visitMethod calls the transformation on one method, restoring the method
// and its constant pool if the transformation violates a code invariant.
func (self *Driver) visitMethod(ctx *passes.Context, p passes.Pass, c *classfile.Class, m *classfile.Method) (ok bool) {
	snap := m.Clone()
	size := c.Pool.Len()

	/* roll back on violations */
	if err := passes.Rescue(func() { ok = p.VisitMethod(ctx, c, m) }); err != nil {
		*m = *snap
		c.Pool.Truncate(size)
		self.violation(p.Name(), c, m, err)
		return false
	}
	return
}

func (self *Driver) visitClass(ctx *passes.Context, name string, cv passes.ClassVisitor, c *classfile.Class) (ok bool) {
	attrs := classfile.CloneAttributes(c.Attributes)
	size := c.Pool.Len()

	/* roll back on violations */
	if err := passes.Rescue(func() { ok = cv.VisitClass(ctx, c) }); err != nil {
		c.Attributes = attrs
		c.Pool.Truncate(size)
		self.violation(name, c, nil, err)
		return false
	}
	return
}

func (self *Driver) violation(pass string, c *classfile.Class, m *classfile.Method, err error) {
	self.violations.Inc()
	ViolationCount.Inc()
	fields := []zap.Field{zap.String("pass", pass), zap.String("class", c.Name)}
	if m != nil {
		fields = append(fields, zap.String("method", m.Key()))
	}
	self.log.Warn("transformation rolled back", append(fields, zap.Error(err))...)
}

// settle brings the optimization info up to date with the changes of a
// pass, rebuilding the dependency store if call edges were removed. It
// returns the changed methods and the methods whose side effects flipped.
func (self *Driver) settle(ctx *passes.Context, methods []*classfile.Method, st *PassStats) []optinfo.MethodID {
	var ids []optinfo.MethodID
	for _, m := range methods {
		if id, ok := ctx.Arena.ID(m); ok {
			ids = append(ids, id)
		}
	}

	/* local facts of the changed methods */
	if len(ids) != 0 {
		ctx.Arena.Refresh(ids)
	}

	/* drop the removed call edges */
	if ctx.CallGraphChanged() {
		ctx.Store = depgraph.Build(ctx.Arena)
		st.Rebuilt = true
	}

	/* side effects over the whole program */
	return append(ids, ctx.Arena.PropagateSideEffects(ctx.Store.Callers)...)
}

// revisit computes the worklist of the next pass from the methods that
// changed or flipped their side effects.
func (self *Driver) revisit(ctx *passes.Context, ids []optinfo.MethodID, classes []*classfile.Class) *worklist {
	wl := newWorklist()
	for _, c := range classes {
		wl.classes[c] = true
	}

	/* the methods themselves, their dependants and their families */
	for _, id := range ids {
		wl.add(ctx.Arena.Member(id))
		for _, s := range ctx.Store.InfluencedBy(id) {
			if s.IsClassLevel() {
				wl.classes[s.Class] = true
			} else {
				wl.add(optinfo.Member{Class: s.Class, Method: s.Method})
			}
		}
		for _, o := range ctx.Store.MethodsSharing(ctx.Arena.Info(id)) {
			wl.add(ctx.Arena.Member(o))
		}
	}
	return wl
}

func (self *Driver) report(st PassStats) {
	fields := []zap.Field{
		zap.Int("pass", st.Index),
		zap.Int("visited", st.Visited),
		zap.Int("changes", st.Total),
		zap.Int64("refusals", st.Refusals),
		zap.Int("violations", st.Violations),
		zap.Bool("rebuilt", st.Rebuilt),
	}
	for _, p := range self.passes {
		fields = append(fields, zap.Int(p.Name(), st.Changes[p.Name()]))
	}
	self.log.Info("pass finished", fields...)
}

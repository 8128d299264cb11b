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
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/optinfo"
)

// Plan is an edit spanning several classes. It is queued while visiting
// one class, and carried out by ChangeSet.Commit.
type Plan interface {
	// Method is the method the plan is about, which orders the plans.
	Method() optinfo.MethodID

	// Resolve checks the plan against the plans resolved before it. It is
	// called from a single goroutine and may refuse the plan.
	Resolve(ctx *Context) bool

	// Targets returns every class the plan changes.
	Targets(ctx *Context) []*classfile.Class

	// Apply changes one target class, with exclusive access to it, and
	// returns the methods it changed.
	Apply(ctx *Context, c *classfile.Class) []*classfile.Method

	// Done is called once every target has been changed.
	Done(ctx *Context)
}

// Preparer is implemented by plans that need facts about other classes
// while they are applied. Prepare is called from a single goroutine right
// before the targets are changed.
type Preparer interface {
	Prepare(ctx *Context)
}

// ChangeSet collects the plans of one transformation.
type ChangeSet struct {
	mu       sync.Mutex
	plans    []Plan
	reserved map[memberKey]bool
}

// Applied describes the outcome of a commit.
type Applied struct {
	Plans   int
	Methods []*classfile.Method
	Classes []*classfile.Class
}

func (self *ChangeSet) Add(p Plan) {
	self.mu.Lock()
	self.plans = append(self.plans, p)
	self.mu.Unlock()
}

// Reserve claims a member signature for a plan being resolved. It reports
// false if another plan of the same commit already claimed it.
func (self *ChangeSet) Reserve(owner string, name string, desc string) bool {
	key := memberKey{owner, name, desc}
	if self.reserved[key] {
		return false
	}
	self.reserved[key] = true
	return true
}

// IsReserved reports whether a plan of the current commit claimed a signature.
func (self *ChangeSet) IsReserved(owner string, name string, desc string) bool {
	return self.reserved[memberKey{owner, name, desc}]
}

func (self *ChangeSet) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return len(self.plans)
}

type snapshot struct {
	class   *classfile.Class
	pool    int
	methods []classfile.Method
}

func takeSnapshot(c *classfile.Class) snapshot {
	ret := snapshot{class: c, pool: c.Pool.Len()}
	for _, m := range c.Methods {
		ret.methods = append(ret.methods, *m.Clone())
	}
	return ret
}

func (self snapshot) restore() {
	for i, m := range self.class.Methods {
		*m = self.methods[i]
	}
	self.class.Pool.Truncate(self.pool)
}

// Commit resolves the queued plans in method order, then applies each
// accepted plan to its target classes in parallel. A plan that runs into a
// consistency violation is rolled back as a whole.
func (self *ChangeSet) Commit(ctx *Context) (ret Applied) {
	self.mu.Lock()
	plans := self.plans
	self.plans = nil
	self.mu.Unlock()

	/* deterministic order regardless of the visiting order */
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].Method() < plans[j].Method()
	})

	/* resolve every plan before changing anything */
	self.reserved = make(map[memberKey]bool)
	accepted := plans[:0]
	for _, p := range plans {
		if p.Resolve(ctx) {
			accepted = append(accepted, p)
		}
	}

	/* apply the plans one by one */
	seen := make(map[*classfile.Class]bool)
	for _, p := range accepted {
		targets := p.Targets(ctx)
		snaps := make([]snapshot, len(targets))
		changed := make([][]*classfile.Method, len(targets))
		faults := make([]error, len(targets))

		/* every target class is changed by a single worker */
		for i, c := range targets {
			snaps[i] = takeSnapshot(c)
		}
		if pp, ok := p.(Preparer); ok {
			pp.Prepare(ctx)
		}
		ctx.Parallel(len(targets), func(i int) {
			faults[i] = Rescue(func() { changed[i] = p.Apply(ctx, targets[i]) })
		})

		/* roll back every target if any of them failed */
		if err := firstError(faults); err != nil {
			for _, s := range snaps {
				s.restore()
			}
			ctx.Log.Warn("plan rolled back",
				zap.String("method", ctx.Arena.Member(p.Method()).Method.Key()),
				zap.String("class", ctx.Arena.Member(p.Method()).Class.Name),
				zap.Error(err),
			)
			continue
		}

		/* collect the changes */
		p.Done(ctx)
		ret.Plans++
		for i, c := range targets {
			ret.Methods = append(ret.Methods, changed[i]...)
			if !seen[c] {
				seen[c] = true
				ret.Classes = append(ret.Classes, c)
			}
		}
	}
	return
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

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
	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/editor"
)

// initializerFixer repairs constructor invocations that still use the
// descriptor a constructor had before the parameter shrinker changed it.
// Constructors that needed a dummy parameter to stay distinct are only
// invoked correctly once this runs.
type initializerFixer struct{}

func (initializerFixer) Name() string {
	return InitializerFixer
}

// stale returns the descriptor change a constructor reference predates, if
// the reference no longer matches any declared constructor.
func (self initializerFixer) stale(ctx *Context, ref classfile.MemberRef) *Shrink {
	c := ctx.Pool.Get(ref.Owner)
	if c == nil || c.Library || c.Method(ref.Name, ref.Desc) != nil {
		return nil
	}
	if s := ctx.Shrunk.ByOld(ref.Owner, ref.Name, ref.Desc); s != nil && c.Method(s.Name, s.Final) != nil {
		return s
	}
	return nil
}

func (self initializerFixer) VisitMethod(ctx *Context, c *classfile.Class, m *classfile.Method) bool {
	dummy := false
	pool := editor.NewPool(c.Pool)
	drop := newArgDropper(ctx, c, m, nil)

	/* check every constructor invocation */
	for k, ins := range m.Code.Instrs {
		if ins.Op != classfile.OP_invokespecial {
			continue
		}
		ref, ok := c.Pool.MemberRefOf(ins.Index)
		if !ok || ref.Name != classfile.Initializer {
			continue
		}
		s := self.stale(ctx, ref)
		if s == nil {
			continue
		}

		/* stop passing the removed arguments */
		drop.drop(k, classfile.MustParseMethodDescriptor(s.Old).Params, s.Removed, false)

		/* pass the dummy argument */
		if s.Final != s.Shrunk {
			dummy = true
			final := classfile.MustParseMethodDescriptor(s.Final)
			drop.ed.InsertBefore(k, dummyPush(final.Params[len(final.Params)-1]))
		}

		/* invoke the declared constructor */
		ins.Index = pool.WithDescriptor(ins.Index, s.Final)
		drop.ed.Replace(k, ins)
	}

	/* the dummy may need one more stack slot */
	if !drop.commit() {
		return false
	}
	if dummy {
		m.Code.MaxStack++
	}
	return true
}

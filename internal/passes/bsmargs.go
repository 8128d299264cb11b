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

// bootstrapArgShrinker points bootstrap method handles at the new
// descriptor of shrunk bootstrap methods, and drops the static arguments
// that matched the removed parameters.
type bootstrapArgShrinker struct{}

func (bootstrapArgShrinker) Name() string {
	return BootstrapArgShrinker
}

func (bootstrapArgShrinker) VisitMethod(*Context, *classfile.Class, *classfile.Method) bool {
	return false
}

func (self bootstrapArgShrinker) VisitClass(ctx *Context, c *classfile.Class) bool {
	ret := false
	bt := c.BootstrapMethods()
	if bt == nil {
		return false
	}

	/* check every bootstrap method */
	pool := editor.NewPool(c.Pool)
	for i := range bt.Methods {
		bm := &bt.Methods[i]
		kind, ref, ok := c.Pool.HandleTarget(bm.Handle)
		if !ok {
			continue
		}

		/* only the methods whose old descriptor is still referenced */
		s := ctx.Shrunk.ByOld(ref.Owner, ref.Name, ref.Desc)
		if s == nil {
			continue
		}
		if dc := ctx.Pool.Get(ref.Owner); dc == nil || dc.Method(ref.Name, ref.Desc) != nil || dc.Method(s.Name, s.Final) == nil {
			continue
		}

		/* leading parameters are never removed from bootstrap methods */
		var args []uint16
		for j, r := 0, 0; j < len(bm.Args); j++ {
			for r < len(s.Removed) && s.Removed[r] < j+bootstrapArgs {
				r++
			}
			if r >= len(s.Removed) || s.Removed[r] != j+bootstrapArgs {
				args = append(args, bm.Args[j])
			}
		}

		/* re-point the handle */
		bm.Handle = pool.MethodHandle(kind, pool.WithDescriptor(c.Pool.Get(bm.Handle).A, s.Final))
		bm.Args = args
		ret = true
	}
	return ret
}

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

// referenceGeneralizer makes member references name the class that
// declares the member instead of the class they were compiled against.
type referenceGeneralizer struct{}

func (referenceGeneralizer) Name() string {
	return ReferenceGeneralizer
}

func (self referenceGeneralizer) VisitMethod(ctx *Context, c *classfile.Class, m *classfile.Method) bool {
	ret := false
	pool := editor.NewPool(c.Pool)

	/* check every member reference */
	for i := range m.Code.Instrs {
		ins := &m.Code.Instrs[i]
		switch ins.Op {
		case classfile.OP_invokevirtual, classfile.OP_invokestatic, classfile.OP_invokeinterface:
			break
		case classfile.OP_getstatic, classfile.OP_putstatic, classfile.OP_getfield, classfile.OP_putfield:
			break
		default:
			continue
		}

		/* find the declaring class */
		ref, ok := c.Pool.MemberRefOf(ins.Index)
		if !ok || classfile.IsArrayClass(ref.Owner) || ref.Name == classfile.Initializer || ref.Name == classfile.ClassInitializer {
			continue
		}
		owner := ctx.Pool.Get(ref.Owner)
		decl, access := self.declaration(ctx, ref)
		if owner == nil || decl == nil || decl == owner {
			continue
		}

		/* the reference must keep its kind and stay accessible */
		if decl.IsInterface() != owner.IsInterface() {
			continue
		}
		if !accessible(c, decl, access) {
			ctx.Refuse(ReferenceGeneralizer, c, m, "%s is not accessible through %s", ref, decl.Name)
			continue
		}
		if ctx.Keep.IsClassKept(ref.Owner) {
			ctx.Refuse(ReferenceGeneralizer, c, m, "%s goes through a kept class", ref)
			continue
		}

		/* point the reference at the declaring class */
		ins.Index = pool.WithOwner(ins.Index, decl.Name, decl.IsInterface())
		ret = true
	}
	return ret
}

func (self referenceGeneralizer) declaration(ctx *Context, ref classfile.MemberRef) (*classfile.Class, classfile.AccessFlags) {
	if ref.Tag == classfile.CONSTANT_Fieldref {
		if c, f := ctx.Pool.ResolveField(ref.Owner, ref.Name, ref.Desc); f != nil {
			return c, f.Access
		}
	} else if c, m := ctx.Pool.ResolveMethod(ref.Owner, ref.Name, ref.Desc); m != nil {
		return c, m.Access
	}
	return nil, 0
}

// accessible reports whether code in class c may refer to a member of class
// decl with the given access flags through decl.
func accessible(c *classfile.Class, decl *classfile.Class, access classfile.AccessFlags) bool {
	same := c.Package() == decl.Package()
	switch {
	case !decl.IsPublic() && !same:
		return false
	case access.Has(classfile.ACC_PUBLIC):
		return true
	case access.Has(classfile.ACC_PRIVATE):
		return false
	default:
		return same
	}
}

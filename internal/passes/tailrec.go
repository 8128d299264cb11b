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

// tailRecursion turns self calls in tail position into jumps back to the
// start of the method.
type tailRecursion struct{}

func (tailRecursion) Name() string {
	return TailRecursion
}

// selfCall reports whether ins calls the method itself, and the call is
// bound to it regardless of the receiver.
func (self tailRecursion) selfCall(c *classfile.Class, m *classfile.Method, ins *classfile.Instr) bool {
	ref, ok := c.Pool.MemberRefOf(ins.Index)
	if !ok || ref.Owner != c.Name || ref.Name != m.Name || ref.Desc != m.Desc {
		return false
	}
	switch ins.Op {
	case classfile.OP_invokestatic:
		return m.IsStatic()
	case classfile.OP_invokespecial:
		return m.IsPrivate()
	case classfile.OP_invokevirtual:
		return m.IsPrivate() || m.Access.Has(classfile.ACC_FINAL) || c.Access.Has(classfile.ACC_FINAL)
	default:
		return false
	}
}

// returns reports whether control flows from instruction i straight into a
// return, following unconditional jumps.
func returns(code *classfile.Code, i int, op classfile.Opcode) bool {
	for n := 0; n <= len(code.Instrs) && i < len(code.Instrs); n++ {
		switch ins := &code.Instrs[i]; ins.Op {
		case op:
			return true
		case classfile.OP_goto:
			if j, ok := code.IndexOf(ins.Target); !ok {
				return false
			} else {
				i = j
			}
		default:
			return false
		}
	}
	return false
}

func (self tailRecursion) VisitMethod(ctx *Context, c *classfile.Class, m *classfile.Method) bool {
	var calls []int
	var code = m.Code

	/* find every call to the method itself */
	if m.IsInitializer() || m.Name == classfile.ClassInitializer || m.IsAbstract() || m.IsNative() {
		return false
	}
	for i := range code.Instrs {
		if ins := &code.Instrs[i]; ins.Op.IsInvoke() && ins.Op != classfile.OP_invokedynamic && self.selfCall(c, m, ins) {
			calls = append(calls, i)
		}
	}
	if len(calls) == 0 {
		return false
	}

	/* the frame must not be needed after the call */
	switch {
	case m.IsSynchronized():
		ctx.Refuse(TailRecursion, c, m, "synchronized")
		return false
	case len(code.Handlers) != 0:
		ctx.Refuse(TailRecursion, c, m, "has exception handlers")
		return false
	}

	/* every self call must be in tail position with nothing else on the stack */
	desc := m.Descriptor()
	depths, err := code.StackDepths(c.Pool)
	if err != nil {
		ctx.Refuse(TailRecursion, c, m, "%v", err)
		return false
	}
	args := desc.ArgSlots()
	if !m.IsStatic() {
		args++
	}
	for _, k := range calls {
		if !returns(code, k+1, desc.ReturnOpcode()) || depths[k] != args {
			ctx.Refuse(TailRecursion, c, m, "self call at %d is not in tail position", code.Instrs[k].Offset)
			return false
		}
	}

	/* a call on a null receiver throws, and so must the jump */
	var nullCheck uint16
	if !m.IsStatic() {
		nullCheck = c.Pool.Methodref(classfile.ObjectClass, "getClass", "()Ljava/lang/Class;")
	}

	/* store the arguments and jump back to the start */
	ed := editor.NewCode(code)
	for _, k := range calls {
		var ins []classfile.Instr
		for i := len(desc.Params) - 1; i >= 0; i-- {
			ins = append(ins, classfile.Instr{
				Op:    classfile.StoreOpcode(desc.Params[i]),
				Local: desc.ParamSlot(i, m.IsStatic()),
			})
		}
		if !m.IsStatic() {
			ins = append(ins,
				classfile.Instr{Op: classfile.OP_astore, Local: 0},
				classfile.Instr{Op: classfile.OP_aload, Local: 0},
				classfile.Instr{Op: classfile.OP_invokevirtual, Index: nullCheck},
				classfile.Instr{Op: classfile.OP_pop},
			)
		}
		ed.Replace(k, append(ins, classfile.Instr{Op: classfile.OP_goto, Target: code.Instrs[0].Offset})...)
	}

	/* the self edges are gone */
	ed.Commit()
	ctx.MarkCallGraphChanged()
	return true
}

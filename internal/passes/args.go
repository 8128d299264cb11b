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

// jumpTargets returns the indices of every instruction that control can
// reach other than by falling through, and of every exception range edge.
func jumpTargets(code *classfile.Code) map[int]bool {
	ret := make(map[int]bool)
	mark := func(pc int) {
		if i, ok := code.IndexOf(pc); ok {
			ret[i] = true
		}
	}
	for i := range code.Instrs {
		for _, t := range code.Instrs[i].Successors() {
			mark(t)
		}
	}
	for _, h := range code.Handlers {
		mark(h.StartPC)
		mark(h.EndPC)
		mark(h.HandlerPC)
	}
	return ret
}

// simplePush returns the number of stack slots pushed by an instruction that
// has no side effects and only pushes a single value.
func simplePush(cp *classfile.ConstantPool, ins *classfile.Instr) int {
	switch ins.Op {
	case classfile.OP_aconst_null, classfile.OP_bipush, classfile.OP_sipush:
		return 1
	case classfile.OP_iload, classfile.OP_fload, classfile.OP_aload:
		return 1
	case classfile.OP_lload, classfile.OP_dload, classfile.OP_lconst_0, classfile.OP_lconst_1:
		return 2
	case classfile.OP_dconst_0, classfile.OP_dconst_1:
		return 2
	case classfile.OP_ldc:
		switch cp.Get(ins.Index).Tag {
		case classfile.CONSTANT_Integer, classfile.CONSTANT_Float, classfile.CONSTANT_String:
			return 1
		default:
			return 0
		}
	case classfile.OP_ldc2_w:
		switch cp.Get(ins.Index).Tag {
		case classfile.CONSTANT_Long, classfile.CONSTANT_Double:
			return 2
		default:
			return 0
		}
	default:
		if (ins.Op >= classfile.OP_iconst_m1 && ins.Op <= classfile.OP_iconst_5) || (ins.Op >= classfile.OP_fconst_0 && ins.Op <= classfile.OP_fconst_2) {
			return 1
		} else {
			return 0
		}
	}
}

// pureEffects holds the slots popped and pushed by instructions that can
// neither throw nor have side effects.
var pureEffects = map[classfile.Opcode][2]int8{
	classfile.OP_i2l:        {1, 2},
	classfile.OP_i2f:        {1, 1},
	classfile.OP_i2d:        {1, 2},
	classfile.OP_l2i:        {2, 1},
	classfile.OP_l2f:        {2, 1},
	classfile.OP_l2d:        {2, 2},
	classfile.OP_f2i:        {1, 1},
	classfile.OP_f2l:        {1, 2},
	classfile.OP_f2d:        {1, 2},
	classfile.OP_d2i:        {2, 1},
	classfile.OP_d2l:        {2, 2},
	classfile.OP_d2f:        {2, 1},
	classfile.OP_i2b:        {1, 1},
	classfile.OP_i2c:        {1, 1},
	classfile.OP_i2s:        {1, 1},
	classfile.OP_lcmp:       {4, 1},
	classfile.OP_fcmpl:      {2, 1},
	classfile.OP_fcmpg:      {2, 1},
	classfile.OP_dcmpl:      {4, 1},
	classfile.OP_dcmpg:      {4, 1},
	classfile.OP_instanceof: {1, 1},
}

func init() {
	for op := classfile.OP_iadd; op <= classfile.OP_drem; op++ {
		if op == classfile.OP_idiv || op == classfile.OP_ldiv || op == classfile.OP_irem || op == classfile.OP_lrem {
			continue
		}
		n := int8(classfile.SlotSize("IJFD"[(op-classfile.OP_iadd)%4 : (op-classfile.OP_iadd)%4+1]))
		pureEffects[op] = [2]int8{2 * n, n}
	}
	for op := classfile.OP_ineg; op <= classfile.OP_dneg; op++ {
		n := int8(classfile.SlotSize("IJFD"[op-classfile.OP_ineg : op-classfile.OP_ineg+1]))
		pureEffects[op] = [2]int8{n, n}
	}
	for op := classfile.OP_ishl; op <= classfile.OP_lushr; op++ {
		n := 1 + int8((op-classfile.OP_ishl)%2)
		pureEffects[op] = [2]int8{n + 1, n}
	}
	for op := classfile.OP_iand; op <= classfile.OP_lxor; op++ {
		n := 1 + int8((op-classfile.OP_iand)%2)
		pureEffects[op] = [2]int8{2 * n, n}
	}
}

// dummyPush pushes the zero value of a dummy parameter type.
func dummyPush(t string) classfile.Instr {
	if t == "F" {
		return classfile.Instr{Op: classfile.OP_fconst_0}
	} else {
		return classfile.Instr{Op: classfile.OP_iconst_0}
	}
}

// pureCalls returns the method references of class c that invokestatic
// can call without side effects.
func pureCalls(ctx *Context, c *classfile.Class) map[uint16]bool {
	ret := make(map[uint16]bool)
	for i := 1; i < c.Pool.Len(); i++ {
		ref, ok := c.Pool.MemberRefOf(uint16(i))
		if ok && ref.Tag == classfile.CONSTANT_Methodref && ctx.Arena.IsPureCall(c, classfile.OP_invokestatic, ref) {
			ret[uint16(i)] = true
		}
	}
	return ret
}

// argDropper removes arguments at the call sites of one method body.
type argDropper struct {
	ctx    *Context
	class  *classfile.Class
	cp     *classfile.ConstantPool
	code   *classfile.Code
	ed     *editor.Code
	pure   map[uint16]bool
	jumps  map[int]bool
	this   bool
	calls  bool
	locals int
}

// newArgDropper creates the dropper of a method body. pure lists the pure
// method references of the class, and is computed on demand when nil.
func newArgDropper(ctx *Context, c *classfile.Class, m *classfile.Method, pure map[uint16]bool) *argDropper {
	return &argDropper{
		ctx:    ctx,
		class:  c,
		cp:     c.Pool,
		code:   m.Code,
		ed:     editor.NewCode(m.Code),
		pure:   pure,
		jumps:  jumpTargets(m.Code),
		this:   !m.IsStatic() && !storesThis(m.Code),
		locals: m.Code.MaxLocals,
	}
}

func storesThis(code *classfile.Code) bool {
	for _, ins := range code.Instrs {
		if ins.Op.HasLocal() && !ins.Op.IsLoad() && ins.Local == 0 {
			return true
		}
	}
	return false
}

func isTop(n int, removed []int) bool {
	for i, r := range removed {
		if r != n-len(removed)+i {
			return false
		}
	}
	return true
}

// effect returns the slots popped and pushed by an instruction that has no
// side effects, or false for any other instruction.
func (self *argDropper) effect(ins *classfile.Instr) (int, int, bool) {
	if n := simplePush(self.cp, ins); n != 0 {
		return 0, n, true
	}
	if e, ok := pureEffects[ins.Op]; ok {
		return int(e[0]), int(e[1]), true
	}

	/* static members of classes that are initialized already */
	switch ins.Op {
	case classfile.OP_getstatic:
		ref, ok := self.cp.MemberRefOf(ins.Index)
		if !ok || self.ctx.Arena.Initializes(self.class, ref.Owner) {
			return 0, 0, false
		}
		return 0, classfile.SlotSize(ref.Desc), true
	case classfile.OP_invokestatic:
		if self.pure == nil {
			self.pure = pureCalls(self.ctx, self.class)
		}
		ref, ok := self.cp.MemberRefOf(ins.Index)
		if !ok || !self.pure[ins.Index] {
			return 0, 0, false
		}
		md, err := classfile.ParseMethodDescriptor(ref.Desc)
		if err != nil {
			return 0, 0, false
		}
		if md.Return == "V" {
			return md.ArgSlots(), 0, true
		} else {
			return md.ArgSlots(), classfile.SlotSize(md.Return), true
		}
	default:
		return 0, 0, false
	}
}

// argStart walks back from instruction end and returns the first
// instruction of the straight-line, side effect free code that pushes the
// size slots right below it.
func (self *argDropper) argStart(end int, size int) (int, bool) {
	for j, need := end-1, size; j >= 0; j-- {
		if self.jumps[j+1] || self.ed.Touched(j) {
			return 0, false
		}
		pop, push, ok := self.effect(&self.code.Instrs[j])
		if !ok || push > need {
			return 0, false
		}
		if need += pop - push; need == 0 {
			return j, true
		}
	}
	return 0, false
}

// discard pops argument i, checking a dropped receiver for null first.
func discard(cp *classfile.ConstantPool, params []string, i int, receiver bool) []classfile.Instr {
	if i != 0 || !receiver {
		return []classfile.Instr{{Op: classfile.PopOpcode(params[i])}}
	}
	return []classfile.Instr{
		{Op: classfile.OP_invokevirtual, Index: cp.Methodref(classfile.ObjectClass, "getClass", "()Ljava/lang/Class;")},
		{Op: classfile.OP_pop},
	}
}

// drop queues the edits that stop passing the removed arguments (indices into
// params, in ascending order) to the call at instruction k. When receiver is
// set, params[0] is the receiver of the call. Arguments computed without side
// effects right before the call are deleted. Otherwise the values are
// discarded after evaluation, spilling the arguments above them into fresh
// locals when needed.
func (self *argDropper) drop(k int, params []string, removed []int, receiver bool) {
	n := len(params)
	m := 0

	/* find where each trailing argument starts */
	starts := make([]int, n+1)
	starts[n] = k
	for m < n {
		i := n - 1 - m
		j, ok := self.argStart(starts[i+1], classfile.SlotSize(params[i]))
		if !ok {
			break
		}
		starts[i] = j
		m++
	}

	/* a receiver is only deleted when it is this */
	deletable := removed[0] >= n-m
	if deletable && receiver && removed[0] == 0 {
		ins := &self.code.Instrs[starts[0]]
		deletable = self.this && starts[1] == starts[0]+1 && ins.Op == classfile.OP_aload && ins.Local == 0
	}

	/* every removed argument has no side effects */
	if deletable {
		for _, r := range removed {
			for j := starts[r]; j < starts[r+1]; j++ {
				self.calls = self.calls || self.code.Instrs[j].Op.IsInvoke()
				self.ed.Delete(j)
			}
		}
		return
	}

	/* the removed arguments are on the top of the stack */
	var ins []classfile.Instr
	if isTop(n, removed) {
		for i := n - 1; i >= removed[0]; i-- {
			ins = append(ins, discard(self.cp, params, i, receiver)...)
		}
		self.ed.InsertBefore(k, ins...)
		return
	}

	/* spill the arguments above the lowest removed one */
	slot := self.code.MaxLocals
	slots := make(map[int]int)
	for i, r := n-1, len(removed)-1; i >= removed[0]; i-- {
		if r >= 0 && removed[r] == i {
			r--
			ins = append(ins, discard(self.cp, params, i, receiver)...)
		} else {
			slots[i] = slot
			ins = append(ins, classfile.Instr{Op: classfile.StoreOpcode(params[i]), Local: slot})
			slot += classfile.SlotSize(params[i])
		}
	}

	/* reload the kept ones in order */
	for i := removed[0]; i < n; i++ {
		if s, ok := slots[i]; ok {
			ins = append(ins, classfile.Instr{Op: classfile.LoadOpcode(params[i]), Local: s})
		}
	}

	/* record the extra locals */
	if slot > self.locals {
		self.locals = slot
	}
	self.ed.InsertBefore(k, ins...)
}

// commit applies the edits and grows the locals if needed. Deleted calls
// change the call graph.
func (self *argDropper) commit() bool {
	if !self.ed.Commit() {
		return false
	}
	if self.code.MaxLocals = self.locals; self.calls {
		self.ctx.MarkCallGraphChanged()
	}
	return true
}

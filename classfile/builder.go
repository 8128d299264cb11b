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

package classfile

import (
	"math"
)

type handler struct {
	start     string
	end       string
	target    string
	catchType uint16
}

// Builder assembles a method body. Branches refer to labels, which may be
// defined before or after the branch.
type Builder struct {
	cp       *ConstantPool
	ins      []Instr
	refs     map[string]int
	pends    map[string][]func(int)
	lines    []LineNumber
	handlers []handler
	stack    int
	locals   int
}

func NewBuilder(cp *ConstantPool) *Builder {
	return &Builder{
		cp:    cp,
		refs:  make(map[string]int),
		pends: make(map[string][]func(int)),
	}
}

func (self *Builder) add(ins Instr) *Builder {
	self.ins = append(self.ins, ins)
	return self
}

func (self *Builder) link(to string, fn func(int)) {
	if i, ok := self.refs[to]; ok {
		fn(i)
	} else {
		self.pends[to] = append(self.pends[to], fn)
	}
}

// Label marks the position of the next instruction.
func (self *Builder) Label(to string) *Builder {
	if _, ok := self.refs[to]; ok {
		panic("label " + to + " has already been linked")
	}

	/* patch all the pending jumps */
	for _, fn := range self.pends[to] {
		fn(len(self.ins))
	}

	/* mark the label as resolved */
	self.refs[to] = len(self.ins)
	delete(self.pends, to)
	return self
}

// Line starts a new source line at the next instruction.
func (self *Builder) Line(line int) *Builder {
	self.lines = append(self.lines, LineNumber{StartPC: len(self.ins), Line: line})
	return self
}

// Frame sets the maximum operand stack depth and local variable count.
func (self *Builder) Frame(stack int, locals int) *Builder {
	self.stack, self.locals = stack, locals
	return self
}

// Try adds an exception handler covering [start, end). An empty catchType
// catches everything.
func (self *Builder) Try(start string, end string, target string, catchType string) *Builder {
	h := handler{start: start, end: end, target: target}
	if catchType != "" {
		h.catchType = self.cp.Class(catchType)
	}
	self.handlers = append(self.handlers, h)
	return self
}

func (self *Builder) Op(op Opcode) *Builder {
	if opOperands[op] != opNone {
		panic("instruction has operands: " + op.String())
	}
	if cop, slot, ok := canonicalLocal(op); ok {
		return self.add(Instr{Op: cop, Local: slot})
	} else {
		return self.add(Instr{Op: op})
	}
}

// Local adds a load, store or ret of a local variable slot.
func (self *Builder) Local(op Opcode, slot int) *Builder {
	if opOperands[op] != opLocal {
		panic("not a local variable instruction: " + op.String())
	}
	return self.add(Instr{Op: op, Local: slot})
}

func (self *Builder) Iinc(slot int, delta int32) *Builder {
	return self.add(Instr{Op: OP_iinc, Local: slot, Const: delta})
}

// Int pushes an int constant using the shortest instruction.
func (self *Builder) Int(v int32) *Builder {
	switch {
	case v >= -1 && v <= 5:
		return self.add(Instr{Op: Opcode(int32(OP_iconst_0) + v)})
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return self.add(Instr{Op: OP_bipush, Const: v})
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return self.add(Instr{Op: OP_sipush, Const: v})
	default:
		return self.add(Instr{Op: OP_ldc, Index: self.cp.Integer(v)})
	}
}

func (self *Builder) Long(v int64) *Builder {
	return self.add(Instr{Op: OP_ldc2_w, Index: self.cp.Long(v)})
}

func (self *Builder) String(s string) *Builder {
	return self.add(Instr{Op: OP_ldc, Index: self.cp.String(s)})
}

// Ldc loads an arbitrary loadable constant.
func (self *Builder) Ldc(index uint16) *Builder {
	if self.cp.Get(index).Tag.Width() == 2 {
		return self.add(Instr{Op: OP_ldc2_w, Index: index})
	} else {
		return self.add(Instr{Op: OP_ldc, Index: index})
	}
}

// Invoke adds an invocation. invokeinterface refers to an
// InterfaceMethodref, the other instructions to a Methodref.
func (self *Builder) Invoke(op Opcode, owner string, name string, desc string) *Builder {
	switch op {
	case OP_invokeinterface:
		n := MustParseMethodDescriptor(desc).ArgSlots() + 1
		return self.add(Instr{Op: op, Index: self.cp.InterfaceMethodref(owner, name, desc), Const: int32(n)})
	case OP_invokevirtual, OP_invokespecial, OP_invokestatic:
		return self.add(Instr{Op: op, Index: self.cp.Methodref(owner, name, desc)})
	default:
		panic("not an invoke instruction: " + op.String())
	}
}

// InvokeRef adds an invocation of an existing member reference.
func (self *Builder) InvokeRef(op Opcode, ref uint16) *Builder {
	ins := Instr{Op: op, Index: ref}
	if op == OP_invokeinterface {
		r, _ := self.cp.MemberRefOf(ref)
		ins.Const = int32(MustParseMethodDescriptor(r.Desc).ArgSlots() + 1)
	}
	return self.add(ins)
}

// InvokeDynamic adds an invokedynamic of the given bootstrap method index.
func (self *Builder) InvokeDynamic(bsm uint16, name string, desc string) *Builder {
	idx := self.cp.Add(Constant{Tag: CONSTANT_InvokeDynamic, A: bsm, B: self.cp.NameAndType(name, desc)})
	return self.add(Instr{Op: OP_invokedynamic, Index: idx})
}

func (self *Builder) Field(op Opcode, owner string, name string, desc string) *Builder {
	if op < OP_getstatic || op > OP_putfield {
		panic("not a field instruction: " + op.String())
	}
	return self.add(Instr{Op: op, Index: self.cp.Fieldref(owner, name, desc)})
}

// Type adds new, anewarray, checkcast or instanceof.
func (self *Builder) Type(op Opcode, class string) *Builder {
	return self.add(Instr{Op: op, Index: self.cp.Class(class)})
}

// Jump adds a branch to a label.
func (self *Builder) Jump(op Opcode, to string) *Builder {
	if !op.IsBranch() {
		panic("not a branch instruction: " + op.String())
	}
	n := len(self.ins)
	self.add(Instr{Op: op})
	self.link(to, func(i int) { self.ins[n].Target = i })
	return self
}

// TableSwitch adds a tableswitch over [low, low + len(targets)).
func (self *Builder) TableSwitch(low int32, def string, targets ...string) *Builder {
	sw := &SwitchTable{Low: low, Targets: make([]int, len(targets))}
	self.linkSwitch(sw, def, targets)
	return self.add(Instr{Op: OP_tableswitch, Switch: sw})
}

// LookupSwitch adds a lookupswitch, keys must be sorted.
func (self *Builder) LookupSwitch(def string, keys []int32, targets ...string) *Builder {
	if len(keys) != len(targets) {
		panic("lookupswitch keys and targets mismatch")
	}
	sw := &SwitchTable{Keys: append([]int32(nil), keys...), Targets: make([]int, len(targets))}
	self.linkSwitch(sw, def, targets)
	return self.add(Instr{Op: OP_lookupswitch, Switch: sw})
}

func (self *Builder) linkSwitch(sw *SwitchTable, def string, targets []string) {
	self.link(def, func(i int) { sw.Default = i })
	for k, to := range targets {
		k := k
		self.link(to, func(i int) { sw.Targets[k] = i })
	}
}

// Build lays out the instructions and returns the method body.
func (self *Builder) Build() *Code {
	for key := range self.pends {
		panic("labels are not fully resolved: " + key)
	}

	/* lay out the instructions */
	pcs, err := Layout(self.ins)
	if err != nil {
		panic(err)
	}

	/* the code body */
	ret := &Code{
		MaxStack:  self.stack,
		MaxLocals: self.locals,
		Length:    pcs[len(pcs)-1],
		Instrs:    self.ins,
	}

	/* line numbers */
	for _, ln := range self.lines {
		ret.LineNumbers = append(ret.LineNumbers, LineNumber{StartPC: pcs[ln.StartPC], Line: ln.Line})
	}

	/* exception handlers */
	for _, h := range self.handlers {
		ret.Handlers = append(ret.Handlers, ExceptionHandler{
			StartPC:   pcs[self.resolve(h.start)],
			EndPC:     pcs[self.resolve(h.end)],
			HandlerPC: pcs[self.resolve(h.target)],
			CatchType: h.catchType,
		})
	}

	/* the Builder's life-time ends here */
	self.ins = nil
	return ret
}

func (self *Builder) resolve(to string) int {
	if i, ok := self.refs[to]; !ok {
		panic("labels are not fully resolved: " + to)
	} else {
		return i
	}
}

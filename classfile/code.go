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
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

const (
	MaxCodeLength = 65535
)

// SwitchTable holds the operands of tableswitch and lookupswitch.
type SwitchTable struct {
	Default int
	Low     int32
	Keys    []int32
	Targets []int
}

func (self *SwitchTable) Clone() *SwitchTable {
	if self == nil {
		return nil
	}
	return &SwitchTable{
		Default: self.Default,
		Low:     self.Low,
		Keys:    append([]int32(nil), self.Keys...),
		Targets: append([]int(nil), self.Targets...),
	}
}

// Instr is a decoded instruction. Short local forms (iload_0 ...), wide,
// ldc_w, goto_w and jsr_w never appear in decoded code; the encoder picks the
// shortest form for the operands.
//
// Operand usage by opcode:
//
//   Index   constant pool index (ldc, field and method instructions, new, ...)
//   Local   local variable slot (loads, stores, iinc, ret)
//   Const   bipush/sipush value, iinc increment, newarray element type,
//           multianewarray dimensions, invokeinterface argument count
//   Target  absolute branch target offset
//   Switch  switch tables
type Instr struct {
	Op     Opcode
	Offset int
	Index  uint16
	Local  int
	Const  int32
	Target int
	Switch *SwitchTable
}

func (self Instr) Clone() Instr {
	self.Switch = self.Switch.Clone()
	return self
}

func (self Instr) String() string {
	switch opOperands[self.Op] {
	case opByte, opShort, opNewArray:
		return fmt.Sprintf("%d: %s %d", self.Offset, self.Op, self.Const)
	case opLocal:
		return fmt.Sprintf("%d: %s %d", self.Offset, self.Op, self.Local)
	case opIinc:
		return fmt.Sprintf("%d: iinc %d, %d", self.Offset, self.Local, self.Const)
	case opConst1, opConst2, opInterface, opDynamic, opMultiArray:
		return fmt.Sprintf("%d: %s #%d", self.Offset, self.Op, self.Index)
	case opBranch2, opBranch4:
		return fmt.Sprintf("%d: %s @%d", self.Offset, self.Op, self.Target)
	case opTableSwitch, opLookupSwitch:
		return fmt.Sprintf("%d: %s default @%d, %v", self.Offset, self.Op, self.Switch.Default, self.Switch.Targets)
	default:
		return fmt.Sprintf("%d: %s", self.Offset, self.Op)
	}
}

// Successors returns every explicit branch target of the instruction.
func (self *Instr) Successors() []int {
	if self.Op.IsBranch() {
		return []int{self.Target}
	} else if self.Switch != nil {
		return append([]int{self.Switch.Default}, self.Switch.Targets...)
	} else {
		return nil
	}
}

// ExceptionHandler is an exception table entry, with a half-open [StartPC, EndPC) range.
type ExceptionHandler struct {
	StartPC   int
	EndPC     int
	HandlerPC int
	CatchType uint16
}

// LineNumber maps the code starting at StartPC to a source line. Entries
// with a negative StartPC no longer map to any instruction and are dropped
// by the writer.
type LineNumber struct {
	StartPC int
	Line    int
}

// LocalVariable is an entry of LocalVariableTable or LocalVariableTypeTable.
// Desc is the descriptor index for the former and the signature index for the
// latter.
type LocalVariable struct {
	StartPC int
	Length  int
	Name    uint16
	Desc    uint16
	Slot    int
}

// Code is the decoded body of a method.
type Code struct {
	MaxStack      int
	MaxLocals     int
	Length        int
	Instrs        []Instr
	Handlers      []ExceptionHandler
	LineNumbers   []LineNumber
	LocalVars     []LocalVariable
	LocalVarTypes []LocalVariable
	Attributes    []Attribute
}

func (self *Code) Clone() *Code {
	if self == nil {
		return nil
	}
	ret := &Code{
		MaxStack:      self.MaxStack,
		MaxLocals:     self.MaxLocals,
		Length:        self.Length,
		Instrs:        make([]Instr, len(self.Instrs)),
		Handlers:      append([]ExceptionHandler(nil), self.Handlers...),
		LineNumbers:   append([]LineNumber(nil), self.LineNumbers...),
		LocalVars:     append([]LocalVariable(nil), self.LocalVars...),
		LocalVarTypes: append([]LocalVariable(nil), self.LocalVarTypes...),
		Attributes:    CloneAttributes(self.Attributes),
	}
	for i, ins := range self.Instrs {
		ret.Instrs[i] = ins.Clone()
	}
	return ret
}

// IndexOf returns the index of the instruction starting at offset pc.
func (self *Code) IndexOf(pc int) (int, bool) {
	i := sort.Search(len(self.Instrs), func(i int) bool { return self.Instrs[i].Offset >= pc })
	return i, i < len(self.Instrs) && self.Instrs[i].Offset == pc
}

// IsBoundary reports whether pc is an instruction start or the end of the code.
func (self *Code) IsBoundary(pc int) bool {
	_, ok := self.IndexOf(pc)
	return ok || pc == self.Length
}

// Relayout recomputes every instruction offset after the instruction list
// was changed in place, keeping branch targets, exception ranges, line
// numbers and local variable ranges attached to the same instructions.
func (self *Code) Relayout() error {
	idx := make(map[int]int, len(self.Instrs)+1)
	for i, ins := range self.Instrs {
		if _, ok := idx[ins.Offset]; !ok {
			idx[ins.Offset] = i
		}
	}

	/* the end of the code is one past the last instruction */
	var bad []int
	idx[self.Length] = len(self.Instrs)

	/* every target must be an instruction boundary */
	mapfn := func(pc int) int {
		if i, ok := idx[pc]; ok {
			return i
		} else {
			bad = append(bad, pc)
			return 0
		}
	}

	/* convert targets into instruction indices */
	for i := range self.Instrs {
		for _, t := range self.Instrs[i].Successors() {
			mapfn(t)
		}
	}
	for _, h := range self.Handlers {
		mapfn(h.StartPC)
		mapfn(h.EndPC)
		mapfn(h.HandlerPC)
	}
	if len(bad) != 0 {
		return fmt.Errorf("offsets %v are not instruction boundaries", bad)
	}
	for i := range self.Instrs {
		self.Instrs[i].mapTargets(mapfn)
	}

	/* lay out the instructions again */
	pcs, err := Layout(self.Instrs)
	if err != nil {
		return err
	}

	/* remap everything else, clamping local variable ranges that do not end on a boundary */
	self.Length = pcs[len(pcs)-1]
	self.RemapOffsets(func(pc int) int {
		if i, ok := idx[pc]; ok {
			return pcs[i]
		} else {
			return pcs[len(pcs)-1]
		}
	})
	return nil
}

// RemapOffsets rewrites every offset held by the exception table, line
// numbers and local variables. Negative line number offsets are left as is.
func (self *Code) RemapOffsets(fn func(pc int) int) {
	for i := range self.Handlers {
		h := &self.Handlers[i]
		h.StartPC, h.EndPC, h.HandlerPC = fn(h.StartPC), fn(h.EndPC), fn(h.HandlerPC)
	}
	for i := range self.LineNumbers {
		if self.LineNumbers[i].StartPC >= 0 {
			self.LineNumbers[i].StartPC = fn(self.LineNumbers[i].StartPC)
		}
	}
	remapLocals(self.LocalVars, fn)
	remapLocals(self.LocalVarTypes, fn)
}

func remapLocals(vars []LocalVariable, fn func(pc int) int) {
	for i := range vars {
		s := fn(vars[i].StartPC)
		e := fn(vars[i].StartPC + vars[i].Length)
		vars[i].StartPC, vars[i].Length = s, e-s
	}
}

func (self *Instr) mapTargets(fn func(int) int) {
	if self.Op.IsBranch() {
		self.Target = fn(self.Target)
	} else if self.Switch != nil {
		self.Switch.Default = fn(self.Switch.Default)
		for i, t := range self.Switch.Targets {
			self.Switch.Targets[i] = fn(t)
		}
	}
}

func fitsInt8(v int) bool  { return v >= math.MinInt8 && v <= math.MaxInt8 }
func fitsInt16(v int) bool { return v >= math.MinInt16 && v <= math.MaxInt16 }

func switchPad(pc int) int {
	return (4 - (pc+1)%4) % 4
}

func sizeOf(ins *Instr, pc int, wide bool) int {
	switch opOperands[ins.Op] {
	case opNone:
		return 1
	case opByte, opNewArray:
		return 2
	case opShort, opConst2, opBranch2:
		if wide {
			return 5
		}
		return 3
	case opBranch4, opInterface, opDynamic:
		return 5
	case opMultiArray:
		return 4
	case opConst1:
		if ins.Index <= math.MaxUint8 {
			return 2
		}
		return 3
	case opLocal:
		if _, ok := shortLocal(ins.Op, ins.Local); ok {
			return 1
		} else if ins.Local <= math.MaxUint8 {
			return 2
		}
		return 4
	case opIinc:
		if ins.Local <= math.MaxUint8 && fitsInt8(int(ins.Const)) {
			return 3
		}
		return 6
	case opTableSwitch:
		return 1 + switchPad(pc) + 12 + 4*len(ins.Switch.Targets)
	case opLookupSwitch:
		return 1 + switchPad(pc) + 8 + 8*len(ins.Switch.Targets)
	default:
		panic("invalid instruction: " + ins.Op.String())
	}
}

// Layout assigns offsets to a list of instructions whose branch and switch
// targets hold instruction indices (len(instrs) denoting the end of the
// code), and converts the targets into byte offsets. goto and jsr are widened
// when their displacement does not fit. It returns the offset of every
// instruction followed by the code length.
func Layout(instrs []Instr) ([]int, error) {
	n := len(instrs)
	pcs := make([]int, n+1)
	wide := make([]bool, n)

	/* iterate until no more branches need widening */
	for {
		pc := 0
		changed := false

		/* compute the offsets */
		for i := range instrs {
			pcs[i] = pc
			pc += sizeOf(&instrs[i], pc, wide[i])
		}

		/* check the code length */
		if pcs[n] = pc; pc > MaxCodeLength {
			return nil, LimitError("code length")
		}

		/* check every branch displacement */
		for i := range instrs {
			if ins := &instrs[i]; ins.Op.IsBranch() && !wide[i] {
				if t := ins.Target; t < 0 || t > n {
					return nil, fmt.Errorf("branch target #%d out of range", t)
				} else if !fitsInt16(pcs[t] - pcs[i]) {
					if ins.Op.IsConditional() {
						return nil, LimitError("conditional branch displacement")
					}
					wide[i], changed = true, true
				}
			}
		}

		/* stop when nothing changed */
		if !changed {
			break
		}
	}

	/* convert the targets into byte offsets */
	for i := range instrs {
		instrs[i].Offset = pcs[i]
		instrs[i].mapTargets(func(t int) int {
			if t < 0 || t > n {
				panic(fmt.Sprintf("branch target #%d out of range", t))
			}
			return pcs[t]
		})
	}
	return pcs, nil
}

// DecodeInstrs decodes a code array.
func DecodeInstrs(buf []byte) ([]Instr, error) {
	var ret []Instr
	var pos = make(map[int]bool, len(buf))

	/* decode every instruction */
	for pc := 0; pc < len(buf); {
		ins, n, err := decodeInstr(buf, pc)
		if err != nil {
			return nil, err
		}
		pos[pc] = true
		ret = append(ret, ins)
		pc += n
	}

	/* every target must be the start of an instruction */
	for i := range ret {
		for _, t := range ret[i].Successors() {
			if !pos[t] {
				return nil, FormatError{Offset: ret[i].Offset, Reason: fmt.Sprintf("branch target %d is not an instruction", t)}
			}
		}
	}
	return ret, nil
}

func decodeInstr(buf []byte, pc int) (ins Instr, n int, err error) {
	defer func() {
		if v := recover(); v != nil {
			if s, ok := v.(string); ok {
				err = FormatError{Offset: pc, Reason: s}
			} else {
				err = FormatError{Offset: pc, Reason: "truncated instruction"}
			}
		}
	}()

	/* read the opcode */
	p := pc + 1
	ins.Offset = pc
	ins.Op = Opcode(buf[pc])

	/* decode the operands */
	switch opOperands[ins.Op] {
	case opNone:
		if op, slot, ok := canonicalLocal(ins.Op); ok {
			ins.Op, ins.Local = op, slot
		}
	case opByte:
		ins.Const, p = int32(int8(buf[p])), p+1
	case opShort:
		ins.Const, p = int32(int16(binary.BigEndian.Uint16(buf[p:]))), p+2
	case opLocal:
		ins.Local, p = int(buf[p]), p+1
	case opIinc:
		ins.Local, ins.Const, p = int(buf[p]), int32(int8(buf[p+1])), p+2
	case opConst1:
		ins.Index, p = uint16(buf[p]), p+1
	case opConst2:
		ins.Index, p = binary.BigEndian.Uint16(buf[p:]), p+2
		if ins.Op == OP_ldc_w {
			ins.Op = OP_ldc
		}
	case opInterface:
		ins.Index, ins.Const, p = binary.BigEndian.Uint16(buf[p:]), int32(buf[p+2]), p+4
	case opDynamic:
		ins.Index, p = binary.BigEndian.Uint16(buf[p:]), p+4
	case opBranch2:
		ins.Target, p = pc+int(int16(binary.BigEndian.Uint16(buf[p:]))), p+2
	case opBranch4:
		ins.Target, p = pc+int(int32(binary.BigEndian.Uint32(buf[p:]))), p+4
		if ins.Op == OP_goto_w {
			ins.Op = OP_goto
		} else {
			ins.Op = OP_jsr
		}
	case opNewArray:
		ins.Const, p = int32(buf[p]), p+1
	case opMultiArray:
		ins.Index, ins.Const, p = binary.BigEndian.Uint16(buf[p:]), int32(buf[p+2]), p+3
	case opTableSwitch:
		p = decodeTableSwitch(buf, pc, p+switchPad(pc), &ins)
	case opLookupSwitch:
		p = decodeLookupSwitch(buf, pc, p+switchPad(pc), &ins)
	case opWide:
		p = decodeWide(buf, pc, &ins)
	default:
		return ins, 0, FormatError{Offset: pc, Reason: fmt.Sprintf("invalid opcode 0x%02x", buf[pc])}
	}

	/* check for reserved instructions */
	if p > len(buf) {
		return ins, 0, FormatError{Offset: pc, Reason: "truncated instruction"}
	} else {
		return ins, p - pc, nil
	}
}

func decodeWide(buf []byte, pc int, ins *Instr) int {
	ins.Op = Opcode(buf[pc+1])
	ins.Local = int(binary.BigEndian.Uint16(buf[pc+2:]))

	/* only loads, stores, ret and iinc can be widened */
	switch opOperands[ins.Op] {
	case opLocal:
		return pc + 4
	case opIinc:
		ins.Const = int32(int16(binary.BigEndian.Uint16(buf[pc+4:])))
		return pc + 6
	default:
		panic("invalid wide instruction")
	}
}

func decodeTableSwitch(buf []byte, pc int, p int, ins *Instr) int {
	def := int32(binary.BigEndian.Uint32(buf[p:]))
	low := int32(binary.BigEndian.Uint32(buf[p+4:]))
	high := int32(binary.BigEndian.Uint32(buf[p+8:]))

	/* check the range */
	if high < low || int(high)-int(low) >= len(buf) {
		panic("invalid tableswitch range")
	}

	/* read every target */
	p += 12
	ins.Switch = &SwitchTable{Default: pc + int(def), Low: low}
	for i := 0; i <= int(high)-int(low); i++ {
		ins.Switch.Targets = append(ins.Switch.Targets, pc+int(int32(binary.BigEndian.Uint32(buf[p:]))))
		p += 4
	}
	return p
}

func decodeLookupSwitch(buf []byte, pc int, p int, ins *Instr) int {
	def := int32(binary.BigEndian.Uint32(buf[p:]))
	npairs := int32(binary.BigEndian.Uint32(buf[p+4:]))

	/* check the pair count */
	if npairs < 0 || int(npairs) > len(buf)/8 {
		panic("invalid lookupswitch size")
	}

	/* read every match-offset pair */
	p += 8
	ins.Switch = &SwitchTable{Default: pc + int(def)}
	for i := 0; i < int(npairs); i++ {
		ins.Switch.Keys = append(ins.Switch.Keys, int32(binary.BigEndian.Uint32(buf[p:])))
		ins.Switch.Targets = append(ins.Switch.Targets, pc+int(int32(binary.BigEndian.Uint32(buf[p+4:]))))
		p += 8
	}
	return p
}

// EncodeInstrs encodes laid out instructions. length is the code length.
func EncodeInstrs(instrs []Instr, length int) []byte {
	buf := make([]byte, 0, length)
	for i := range instrs {
		end := length
		if i+1 < len(instrs) {
			end = instrs[i+1].Offset
		}
		buf = encodeInstr(buf, &instrs[i], end-instrs[i].Offset)
	}
	return buf
}

func u16(buf []byte, v int) []byte {
	return append(buf, byte(v>>8), byte(v))
}

func u32(buf []byte, v int) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func encodeInstr(buf []byte, ins *Instr, size int) []byte {
	pc := ins.Offset
	switch opOperands[ins.Op] {
	case opNone:
		return append(buf, byte(ins.Op))
	case opByte, opNewArray:
		return append(buf, byte(ins.Op), byte(ins.Const))
	case opShort:
		return u16(append(buf, byte(ins.Op)), int(ins.Const))
	case opConst1:
		if size == 2 {
			return append(buf, byte(OP_ldc), byte(ins.Index))
		}
		return u16(append(buf, byte(OP_ldc_w)), int(ins.Index))
	case opConst2:
		return u16(append(buf, byte(ins.Op)), int(ins.Index))
	case opInterface:
		return append(u16(append(buf, byte(ins.Op)), int(ins.Index)), byte(ins.Const), 0)
	case opDynamic:
		return append(u16(append(buf, byte(ins.Op)), int(ins.Index)), 0, 0)
	case opMultiArray:
		return append(u16(append(buf, byte(ins.Op)), int(ins.Index)), byte(ins.Const))
	case opLocal:
		if op, ok := shortLocal(ins.Op, ins.Local); ok {
			return append(buf, byte(op))
		} else if size == 2 {
			return append(buf, byte(ins.Op), byte(ins.Local))
		}
		return u16(append(buf, byte(OP_wide), byte(ins.Op)), ins.Local)
	case opIinc:
		if size == 3 {
			return append(buf, byte(ins.Op), byte(ins.Local), byte(ins.Const))
		}
		return u16(u16(append(buf, byte(OP_wide), byte(ins.Op)), ins.Local), int(ins.Const))
	case opBranch2:
		if size == 3 {
			return u16(append(buf, byte(ins.Op)), ins.Target-pc)
		} else if ins.Op == OP_goto {
			return u32(append(buf, byte(OP_goto_w)), ins.Target-pc)
		}
		return u32(append(buf, byte(OP_jsr_w)), ins.Target-pc)
	case opTableSwitch:
		buf = append(buf, byte(ins.Op))
		buf = append(buf, make([]byte, switchPad(pc))...)
		buf = u32(buf, ins.Switch.Default-pc)
		buf = u32(buf, int(ins.Switch.Low))
		buf = u32(buf, int(ins.Switch.Low)+len(ins.Switch.Targets)-1)
		for _, t := range ins.Switch.Targets {
			buf = u32(buf, t-pc)
		}
		return buf
	case opLookupSwitch:
		buf = append(buf, byte(ins.Op))
		buf = append(buf, make([]byte, switchPad(pc))...)
		buf = u32(buf, ins.Switch.Default-pc)
		buf = u32(buf, len(ins.Switch.Targets))
		for i, t := range ins.Switch.Targets {
			buf = u32(buf, int(ins.Switch.Keys[i]))
			buf = u32(buf, t-pc)
		}
		return buf
	default:
		panic("invalid instruction: " + ins.Op.String())
	}
}

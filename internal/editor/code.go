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

package editor

import (
	"github.com/cloudwego/bcopt/classfile"
)

const (
	exact = iota
	clamped
	invalid
)

type edit struct {
	before  []classfile.Instr
	replace []classfile.Instr
	end     int
	deleted bool
}

// Code batches edits to a method body. Edits are keyed by the index of the
// original instruction and take effect together on Commit. Branch targets
// held by inserted or replacing instructions refer to original offsets.
type Code struct {
	code  *classfile.Code
	edits map[int]*edit
}

func NewCode(code *classfile.Code) *Code {
	return &Code{
		code:  code,
		edits: make(map[int]*edit),
	}
}

func (self *Code) at(i int) *edit {
	if i < 0 || i >= len(self.code.Instrs) {
		Violate("instruction #%d out of range", i)
	}
	if e := self.edits[i]; e != nil {
		return e
	}
	e := &edit{end: i + 1}
	self.edits[i] = e
	return e
}

// Modified reports whether any edit has been requested.
func (self *Code) Modified() bool {
	return len(self.edits) != 0
}

// InsertBefore inserts instructions before instruction i. Branches to i
// reach the inserted instructions.
func (self *Code) InsertBefore(i int, ins ...classfile.Instr) {
	e := self.at(i)
	e.before = append(e.before, ins...)
}

// Replace replaces instruction i.
func (self *Code) Replace(i int, ins ...classfile.Instr) {
	e := self.at(i)
	e.deleted = true
	e.replace = append(e.replace[:0], ins...)
}

// Delete removes instruction i. Branches to it reach the next instruction.
func (self *Code) Delete(i int) {
	self.Replace(i)
}

// ReplaceRange replaces instructions [start, end). Nothing may branch to
// the instructions after start within the range.
func (self *Code) ReplaceRange(start int, end int, ins ...classfile.Instr) {
	if end <= start || end > len(self.code.Instrs) {
		Violate("invalid instruction range [%d, %d)", start, end)
	}
	for i := start + 1; i < end; i++ {
		if self.edits[i] != nil {
			Violate("overlapping edits at #%d", i)
		}
	}
	e := self.at(start)
	e.end = end
	e.deleted = true
	e.replace = append(e.replace[:0], ins...)
}

// Commit applies every edit, lays the code out again and remaps every
// offset based structure. It reports whether the code was changed. On a
// consistency violation it panics with *ConsistencyError and leaves the code
// untouched.
func (self *Code) Commit() bool {
	if len(self.edits) == 0 {
		return false
	}

	/* mark the interior of replaced ranges */
	old := self.code
	index := make(map[int]int, len(old.Instrs)+1)
	inner := make(map[int]int)

	/* rebuild the instruction list */
	var pending []int
	var instrs []classfile.Instr

	/* every instruction emitted resolves the pending offsets */
	emit := func(ins ...classfile.Instr) {
		for _, v := range ins {
			for _, pc := range pending {
				index[pc] = len(instrs)
			}
			pending = pending[:0]
			instrs = append(instrs, v.Clone())
		}
	}

	/* walk the original instructions */
	for i := 0; i < len(old.Instrs); i++ {
		pending = append(pending, old.Instrs[i].Offset)
		if e := self.edits[i]; e == nil {
			emit(old.Instrs[i])
		} else {
			emit(e.before...)
			if !e.deleted {
				emit(old.Instrs[i])
			} else {
				emit(e.replace...)
				for j := i + 1; j < e.end; j++ {
					inner[old.Instrs[j].Offset] = len(instrs)
				}
				i = e.end - 1
			}
		}
	}

	/* the end of the code */
	pending = append(pending, old.Length)
	for _, pc := range pending {
		index[pc] = len(instrs)
	}

	/* convert every target into an instruction index */
	for i := range instrs {
		mapTargets(&instrs[i], func(pc int) int {
			if _, ok := inner[pc]; ok {
				Violate("branch at #%d into a replaced range at offset %d", i, pc)
			}
			if n, ok := index[pc]; !ok {
				Violate("branch at #%d to offset %d which is not an instruction", i, pc)
				return 0
			} else {
				return n
			}
		})
	}

	/* lay out the new code */
	pcs, err := classfile.Layout(instrs)
	if err != nil {
		Violate("%v", err)
	}

	/* map an original offset, clamping those inside replaced ranges */
	remap := func(pc int) (int, int) {
		if n, ok := index[pc]; ok {
			return pcs[n], exact
		} else if n, ok = inner[pc]; ok {
			return pcs[n], clamped
		} else {
			return 0, invalid
		}
	}

	/* exception handlers, dropping those that no longer cover anything */
	var handlers []classfile.ExceptionHandler
	for _, h := range old.Handlers {
		s, ks := remap(h.StartPC)
		e, ke := remap(h.EndPC)
		if t, kt := remap(h.HandlerPC); kt != exact || ks == invalid || ke == invalid {
			Violate("exception handler [%d, %d) -> %d no longer maps to the code", h.StartPC, h.EndPC, h.HandlerPC)
		} else if s < e {
			handlers = append(handlers, classfile.ExceptionHandler{StartPC: s, EndPC: e, HandlerPC: t, CatchType: h.CatchType})
		}
	}

	/* line numbers inside replaced ranges no longer map to anything */
	lines := make([]classfile.LineNumber, len(old.LineNumbers))
	for i, ln := range old.LineNumbers {
		if lines[i] = ln; ln.StartPC >= 0 {
			if pc, k := remap(ln.StartPC); k == exact {
				lines[i].StartPC = pc
			} else {
				lines[i].StartPC = -1
			}
		}
	}

	/* local variables */
	vars := remapLocals(old.LocalVars, remap)
	types := remapLocals(old.LocalVarTypes, remap)

	/* everything is consistent, update the code */
	old.Instrs = instrs
	old.Length = pcs[len(pcs)-1]
	old.Handlers = handlers
	old.LineNumbers = lines
	old.LocalVars = vars
	old.LocalVarTypes = types
	dropFrames(old)
	self.edits = make(map[int]*edit)
	return true
}

func remapLocals(vars []classfile.LocalVariable, remap func(int) (int, int)) []classfile.LocalVariable {
	var ret []classfile.LocalVariable
	for _, v := range vars {
		s, ks := remap(v.StartPC)
		e, ke := remap(v.StartPC + v.Length)
		if ks != invalid && ke != invalid && e > s {
			v.StartPC, v.Length = s, e-s
			ret = append(ret, v)
		}
	}
	return ret
}

func mapTargets(ins *classfile.Instr, fn func(int) int) {
	if ins.Op.IsBranch() {
		ins.Target = fn(ins.Target)
	} else if ins.Switch != nil {
		ins.Switch.Default = fn(ins.Switch.Default)
		for i, t := range ins.Switch.Targets {
			ins.Switch.Targets[i] = fn(t)
		}
	}
}

// dropFrames removes the stack map frames, which no longer describe the code.
func dropFrames(code *classfile.Code) {
	code.Attributes = classfile.RemoveAttributes(code.Attributes, classfile.AttrStackMapTable)
}

// Touched reports whether instruction i has a pending edit.
func (self *Code) Touched(i int) bool {
	return self.edits[i] != nil
}

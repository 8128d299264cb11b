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

// Pool performs structural edits on a constant pool. Every request reuses
// an equal entry when there is one.
type Pool struct {
	cp *classfile.ConstantPool
}

func NewPool(cp *classfile.ConstantPool) *Pool {
	return &Pool{cp: cp}
}

func (self *Pool) ref(ref uint16) classfile.MemberRef {
	if r, ok := self.cp.MemberRefOf(ref); !ok {
		Violate("constant #%d is not a member reference", ref)
		return r
	} else {
		return r
	}
}

// MemberRef returns a Fieldref, Methodref or InterfaceMethodref.
func (self *Pool) MemberRef(tag classfile.Tag, owner string, name string, desc string) uint16 {
	return self.cp.MemberRef(tag, owner, name, desc)
}

// WithDescriptor returns a member reference like ref but with another descriptor.
func (self *Pool) WithDescriptor(ref uint16, desc string) uint16 {
	r := self.ref(ref)
	return self.cp.MemberRef(r.Tag, r.Owner, r.Name, desc)
}

// WithOwner returns a member reference like ref but through another class.
// The reference kind follows the new owner.
func (self *Pool) WithOwner(ref uint16, owner string, iface bool) uint16 {
	r := self.ref(ref)
	tag := r.Tag
	if tag != classfile.CONSTANT_Fieldref {
		if iface {
			tag = classfile.CONSTANT_InterfaceMethodref
		} else {
			tag = classfile.CONSTANT_Methodref
		}
	}
	return self.cp.MemberRef(tag, owner, r.Name, r.Desc)
}

// MethodHandle returns a method handle of the given kind referring to ref.
func (self *Pool) MethodHandle(kind uint8, ref uint16) uint16 {
	return self.cp.MethodHandle(kind, ref)
}

// RemapConstants rewrites the constant operand of every instruction for which
// fn returns another index. The code is laid out again if an ldc changes size.
func RemapConstants(code *classfile.Code, fn func(ins *classfile.Instr) uint16) bool {
	ret := false
	relayout := false

	/* rewrite every operand */
	for i := range code.Instrs {
		ins := &code.Instrs[i]
		if !ins.Op.UsesConstant() {
			continue
		}
		if idx := fn(ins); idx != ins.Index {
			ret = true
			relayout = relayout || (ins.Op == classfile.OP_ldc && (idx > 0xff) != (ins.Index > 0xff))
			ins.Index = idx
		}
	}

	/* ldc may have changed into ldc_w */
	if relayout {
		if err := code.Relayout(); err != nil {
			Violate("%v", err)
		}
		dropFrames(code)
	}
	return ret
}

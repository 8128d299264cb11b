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
	"fmt"

	"go.uber.org/multierr"
)

const (
	MaxPoolSize = 65535
)

// MemberRef is a resolved Fieldref, Methodref or InterfaceMethodref.
type MemberRef struct {
	Tag   Tag
	Owner string
	Name  string
	Desc  string
}

func (self MemberRef) String() string {
	return self.Owner + "." + self.Name + self.Desc
}

// ConstantPool is the per-class table of constants. Index 0 is never used,
// and the slot following a Long or Double entry is left empty.
type ConstantPool struct {
	entries []Constant
	lookup  map[Constant]uint16
}

func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		entries: make([]Constant, 1, 64),
		lookup:  make(map[Constant]uint16, 64),
	}
}

// Len returns the constant_pool_count, which is one more than the highest index.
func (self *ConstantPool) Len() int {
	return len(self.entries)
}

func (self *ConstantPool) Get(i uint16) Constant {
	if int(i) >= len(self.entries) {
		return Constant{}
	} else {
		return self.entries[i]
	}
}

// Find returns the index of an entry equal to c.
func (self *ConstantPool) Find(c Constant) (uint16, bool) {
	i, ok := self.lookup[c]
	return i, ok
}

// Add returns the index of an existing entry equal to c, or appends c.
func (self *ConstantPool) Add(c Constant) uint16 {
	if i, ok := self.lookup[c]; ok {
		return i
	} else {
		return self.Append(c)
	}
}

// Append adds c without de-duplication. Readers use it to keep the original
// numbering of pools that contain duplicated entries.
func (self *ConstantPool) Append(c Constant) uint16 {
	i := len(self.entries)
	w := c.Tag.Width()

	/* check for the class file limit */
	if i+w > MaxPoolSize {
		panic(LimitError("constant pool"))
	}

	/* the first occurrence wins for lookups */
	if _, ok := self.lookup[c]; !ok {
		self.lookup[c] = uint16(i)
	}

	/* wide entries take an extra, unusable slot */
	self.entries = append(self.entries, c)
	if w == 2 {
		self.entries = append(self.entries, Constant{})
	}
	return uint16(i)
}

// Truncate drops every entry at or above n.
func (self *ConstantPool) Truncate(n int) {
	if n < 1 || n >= len(self.entries) {
		return
	}
	for i := n; i < len(self.entries); i++ {
		if j, ok := self.lookup[self.entries[i]]; ok && int(j) == i {
			delete(self.lookup, self.entries[i])
		}
	}
	self.entries = self.entries[:n]
}

func (self *ConstantPool) Clone() *ConstantPool {
	ret := &ConstantPool{
		entries: make([]Constant, len(self.entries), cap(self.entries)),
		lookup:  make(map[Constant]uint16, len(self.lookup)),
	}
	copy(ret.entries, self.entries)
	for k, v := range self.lookup {
		ret.lookup[k] = v
	}
	return ret
}

func (self *ConstantPool) Utf8(s string) uint16 {
	if len(s) > 65535 {
		panic(LimitError("utf8 constant"))
	}
	return self.Add(Utf8Constant(s))
}

func (self *ConstantPool) Class(name string) uint16 {
	return self.Add(ClassConstant(self.Utf8(name)))
}

func (self *ConstantPool) String(s string) uint16 {
	return self.Add(StringConstant(self.Utf8(s)))
}

func (self *ConstantPool) Integer(v int32) uint16  { return self.Add(IntegerConstant(v)) }
func (self *ConstantPool) Float(v float32) uint16  { return self.Add(FloatConstant(v)) }
func (self *ConstantPool) Long(v int64) uint16     { return self.Add(LongConstant(v)) }
func (self *ConstantPool) Double(v float64) uint16 { return self.Add(DoubleConstant(v)) }
func (self *ConstantPool) MethodType(desc string) uint16 {
	return self.Add(MethodTypeConstant(self.Utf8(desc)))
}

func (self *ConstantPool) NameAndType(name string, desc string) uint16 {
	return self.Add(NameAndTypeConstant(self.Utf8(name), self.Utf8(desc)))
}

func (self *ConstantPool) MemberRef(tag Tag, owner string, name string, desc string) uint16 {
	if !tag.IsMemberRef() {
		panic("not a member reference tag: " + tag.String())
	}
	return self.Add(MemberRefConstant(tag, self.Class(owner), self.NameAndType(name, desc)))
}

func (self *ConstantPool) Fieldref(owner string, name string, desc string) uint16 {
	return self.MemberRef(CONSTANT_Fieldref, owner, name, desc)
}

func (self *ConstantPool) Methodref(owner string, name string, desc string) uint16 {
	return self.MemberRef(CONSTANT_Methodref, owner, name, desc)
}

func (self *ConstantPool) InterfaceMethodref(owner string, name string, desc string) uint16 {
	return self.MemberRef(CONSTANT_InterfaceMethodref, owner, name, desc)
}

func (self *ConstantPool) MethodHandle(kind uint8, ref uint16) uint16 {
	return self.Add(MethodHandleConstant(kind, ref))
}

// GetUtf8 returns the string stored at index i.
func (self *ConstantPool) GetUtf8(i uint16) (string, bool) {
	if c := self.Get(i); c.Tag != CONSTANT_Utf8 {
		return "", false
	} else {
		return c.Str, true
	}
}

// ClassName returns the internal name of the Class entry at index i.
func (self *ConstantPool) ClassName(i uint16) (string, bool) {
	if c := self.Get(i); c.Tag != CONSTANT_Class {
		return "", false
	} else {
		return self.GetUtf8(c.A)
	}
}

func (self *ConstantPool) NameAndTypeOf(i uint16) (name string, desc string, ok bool) {
	c := self.Get(i)
	if c.Tag != CONSTANT_NameAndType {
		return "", "", false
	}
	if name, ok = self.GetUtf8(c.A); !ok {
		return "", "", false
	}
	desc, ok = self.GetUtf8(c.B)
	return
}

// MemberRefOf resolves the Fieldref, Methodref or InterfaceMethodref at index i.
func (self *ConstantPool) MemberRefOf(i uint16) (MemberRef, bool) {
	var ok bool
	var ret MemberRef

	/* must be a member reference */
	c := self.Get(i)
	if !c.Tag.IsMemberRef() {
		return ret, false
	}

	/* resolve the class and the name-and-type */
	ret.Tag = c.Tag
	if ret.Owner, ok = self.ClassName(c.A); !ok {
		return ret, false
	}
	ret.Name, ret.Desc, ok = self.NameAndTypeOf(c.B)
	return ret, ok
}

// HandleTarget resolves the member referenced by the MethodHandle at index i.
func (self *ConstantPool) HandleTarget(i uint16) (kind uint8, ref MemberRef, ok bool) {
	c := self.Get(i)
	if c.Tag != CONSTANT_MethodHandle {
		return 0, ref, false
	}
	ref, ok = self.MemberRefOf(c.A)
	return c.RefKind(), ref, ok
}

func (self *ConstantPool) expect(errs *error, i int, at uint16, tags ...Tag) {
	c := self.Get(at)
	for _, t := range tags {
		if c.Tag == t {
			return
		}
	}
	multierr.AppendInto(errs, fmt.Errorf("entry #%d: reference #%d is %s, want %v", i, at, c.Tag, tags))
}

// Validate checks that every entry is well-typed and that every index it
// holds refers to an entry of the right kind.
func (self *ConstantPool) Validate() (err error) {
	for i := 1; i < len(self.entries); i++ {
		c := self.entries[i]

		/* the slot after a wide entry must stay empty */
		if c.Tag == 0 {
			if p := self.entries[i-1]; p.Tag.Width() != 2 {
				multierr.AppendInto(&err, fmt.Errorf("entry #%d: unused slot", i))
			}
			continue
		}

		/* check every reference by the kind of the entry */
		switch c.Tag {
		case CONSTANT_Utf8, CONSTANT_Integer, CONSTANT_Float, CONSTANT_Long, CONSTANT_Double:
			break
		case CONSTANT_Class, CONSTANT_String, CONSTANT_MethodType, CONSTANT_Module, CONSTANT_Package:
			self.expect(&err, i, c.A, CONSTANT_Utf8)
		case CONSTANT_NameAndType:
			self.expect(&err, i, c.A, CONSTANT_Utf8)
			self.expect(&err, i, c.B, CONSTANT_Utf8)
		case CONSTANT_Fieldref, CONSTANT_Methodref, CONSTANT_InterfaceMethodref:
			self.expect(&err, i, c.A, CONSTANT_Class)
			self.expect(&err, i, c.B, CONSTANT_NameAndType)
		case CONSTANT_Dynamic, CONSTANT_InvokeDynamic:
			self.expect(&err, i, c.B, CONSTANT_NameAndType)
		case CONSTANT_MethodHandle:
			switch c.RefKind() {
			case REF_getField, REF_getStatic, REF_putField, REF_putStatic:
				self.expect(&err, i, c.A, CONSTANT_Fieldref)
			case REF_invokeVirtual, REF_newInvokeSpecial:
				self.expect(&err, i, c.A, CONSTANT_Methodref)
			case REF_invokeStatic, REF_invokeSpecial:
				self.expect(&err, i, c.A, CONSTANT_Methodref, CONSTANT_InterfaceMethodref)
			case REF_invokeInterface:
				self.expect(&err, i, c.A, CONSTANT_InterfaceMethodref)
			default:
				multierr.AppendInto(&err, fmt.Errorf("entry #%d: invalid reference kind %d", i, c.RefKind()))
			}
		default:
			multierr.AppendInto(&err, fmt.Errorf("entry #%d: invalid tag %d", i, c.Tag))
		}
	}
	return
}

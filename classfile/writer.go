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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

type writer struct {
	buf []byte
	cp  *ConstantPool
}

func (self *writer) u1(v int)     { self.buf = append(self.buf, byte(v)) }
func (self *writer) u2(v int)     { self.buf = u16(self.buf, v) }
func (self *writer) u4(v int)     { self.buf = u32(self.buf, v) }
func (self *writer) raw(v []byte) { self.buf = append(self.buf, v...) }

// attr writes an attribute header followed by whatever fn writes.
func (self *writer) attr(name string, fn func()) {
	self.u2(int(self.cp.Utf8(name)))
	p := len(self.buf)
	self.u4(0)
	fn()
	binary.BigEndian.PutUint32(self.buf[p:], uint32(len(self.buf)-p-4))
}

// Bytes serializes the class. Method code is laid out again before it is
// encoded, and entries required by the names used in the class are added to
// its constant pool.
func (self *Class) Bytes() (ret []byte, err error) {
	defer func() {
		if v := recover(); v != nil {
			if e, ok := v.(LimitError); ok {
				ret, err = nil, e
			} else {
				panic(v)
			}
		}
	}()

	/* the body goes first, since it adds constants */
	wr := &writer{cp: self.Pool}
	wr.u2(int(self.Access))
	wr.u2(int(self.Pool.Class(self.Name)))

	/* super class */
	if self.Super == "" {
		wr.u2(0)
	} else {
		wr.u2(int(self.Pool.Class(self.Super)))
	}

	/* interfaces */
	wr.u2(len(self.Interfaces))
	for _, v := range self.Interfaces {
		wr.u2(int(self.Pool.Class(v)))
	}

	/* fields */
	wr.u2(len(self.Fields))
	for _, f := range self.Fields {
		wr.u2(int(f.Access))
		wr.u2(int(self.Pool.Utf8(f.Name)))
		wr.u2(int(self.Pool.Utf8(f.Desc)))
		wr.attributes(f.Attributes)
	}

	/* methods */
	wr.u2(len(self.Methods))
	for _, m := range self.Methods {
		if err = wr.method(m); err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Desc, err)
		}
	}

	/* class attributes */
	wr.attributes(self.Attributes)
	body := wr.buf

	/* header and constant pool */
	wr.buf = make([]byte, 0, len(body)+self.Pool.Len()*8)
	wr.u4(Magic)
	wr.u2(int(self.Minor))
	wr.u2(int(self.Major))
	wr.pool(self.Pool)
	return append(wr.buf, body...), nil
}

// WriteTo writes the serialized class to w.
func (self *Class) WriteTo(w io.Writer) (int64, error) {
	if buf, err := self.Bytes(); err != nil {
		return 0, err
	} else {
		return bytes.NewReader(buf).WriteTo(w)
	}
}

func (self *writer) pool(cp *ConstantPool) {
	self.u2(cp.Len())
	for i := 1; i < cp.Len(); i++ {
		c := cp.Get(uint16(i))
		if c.Tag == 0 {
			continue
		}

		/* write the entry */
		self.u1(int(c.Tag))
		switch c.Tag {
		case CONSTANT_Utf8:
			self.u2(len(c.Str))
			self.raw([]byte(c.Str))
		case CONSTANT_Integer, CONSTANT_Float:
			self.u4(int(c.Bits))
		case CONSTANT_Long, CONSTANT_Double:
			self.u4(int(c.Bits >> 32))
			self.u4(int(c.Bits))
		case CONSTANT_Class, CONSTANT_String, CONSTANT_MethodType, CONSTANT_Module, CONSTANT_Package:
			self.u2(int(c.A))
		case CONSTANT_MethodHandle:
			self.u1(int(c.RefKind()))
			self.u2(int(c.A))
		default:
			self.u2(int(c.A))
			self.u2(int(c.B))
		}
	}
}

func (self *writer) attributes(attrs []Attribute) {
	self.u2(len(attrs))
	for _, a := range attrs {
		self.attribute(a)
	}
}

func (self *writer) attribute(a Attribute) {
	switch v := a.(type) {
	case *RawAttribute:
		self.attr(v.Name, func() { self.raw(v.Data) })
	case *SignatureAttribute:
		self.attr(AttrSignature, func() { self.u2(int(v.Signature)) })
	case *MethodParametersAttribute:
		self.attr(AttrMethodParameters, func() {
			self.u1(len(v.Params))
			for _, p := range v.Params {
				self.u2(int(p.Name))
				self.u2(int(p.Access))
			}
		})
	case *BootstrapMethodsAttribute:
		self.attr(AttrBootstrapMethods, func() {
			self.u2(len(v.Methods))
			for _, m := range v.Methods {
				self.u2(int(m.Handle))
				self.u2(len(m.Args))
				for _, arg := range m.Args {
					self.u2(int(arg))
				}
			}
		})
	default:
		panic(fmt.Sprintf("unknown attribute type %T", a))
	}
}

func (self *writer) method(m *Method) error {
	n := len(m.Attributes)
	if m.Code != nil {
		n++
		if err := m.Code.Relayout(); err != nil {
			return err
		}
	}

	/* method header */
	self.u2(int(m.Access))
	self.u2(int(self.cp.Utf8(m.Name)))
	self.u2(int(self.cp.Utf8(m.Desc)))
	self.u2(n)

	/* code goes first */
	if m.Code != nil {
		self.attr(AttrCode, func() { self.code(m.Code) })
	}
	for _, a := range m.Attributes {
		self.attribute(a)
	}
	return nil
}

func (self *writer) code(c *Code) {
	self.u2(c.MaxStack)
	self.u2(c.MaxLocals)
	self.u4(c.Length)
	self.raw(EncodeInstrs(c.Instrs, c.Length))

	/* exception table */
	self.u2(len(c.Handlers))
	for _, h := range c.Handlers {
		self.u2(h.StartPC)
		self.u2(h.EndPC)
		self.u2(h.HandlerPC)
		self.u2(int(h.CatchType))
	}

	/* only line numbers that still refer to the code are written */
	var lines []LineNumber
	for _, ln := range c.LineNumbers {
		if ln.StartPC >= 0 && ln.StartPC < c.Length {
			lines = append(lines, ln)
		}
	}

	/* count the attributes */
	n := len(c.Attributes)
	for _, v := range []int{len(lines), len(c.LocalVars), len(c.LocalVarTypes)} {
		if v != 0 {
			n++
		}
	}

	/* typed attributes */
	self.u2(n)
	if len(lines) != 0 {
		self.attr(AttrLineNumberTable, func() {
			self.u2(len(lines))
			for _, ln := range lines {
				self.u2(ln.StartPC)
				self.u2(ln.Line)
			}
		})
	}
	if len(c.LocalVars) != 0 {
		self.attr(AttrLocalVariableTable, func() { self.locals(c.LocalVars) })
	}
	if len(c.LocalVarTypes) != 0 {
		self.attr(AttrLocalVariableTypeTable, func() { self.locals(c.LocalVarTypes) })
	}

	/* everything else */
	for _, a := range c.Attributes {
		self.attribute(a)
	}
}

func (self *writer) locals(vars []LocalVariable) {
	self.u2(len(vars))
	for _, v := range vars {
		self.u2(v.StartPC)
		self.u2(v.Length)
		self.u2(int(v.Name))
		self.u2(int(v.Desc))
		self.u2(v.Slot)
	}
}

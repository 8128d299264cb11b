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
	"io"
)

const (
	Magic = 0xcafebabe
)

type reader struct {
	buf []byte
	pos int
}

func (self *reader) fail(format string, args ...interface{}) {
	panic(FormatError{Offset: self.pos, Reason: fmt.Sprintf(format, args...)})
}

func (self *reader) bytes(n int) []byte {
	if n < 0 || self.pos+n > len(self.buf) {
		self.fail("unexpected end of data")
	}
	ret := self.buf[self.pos : self.pos+n]
	self.pos += n
	return ret
}

func (self *reader) u1() uint8  { return self.bytes(1)[0] }
func (self *reader) u2() uint16 { return binary.BigEndian.Uint16(self.bytes(2)) }
func (self *reader) u4() uint32 { return binary.BigEndian.Uint32(self.bytes(4)) }

// Parse reads a class from its binary representation.
func Parse(r io.Reader) (*Class, error) {
	if buf, err := io.ReadAll(r); err != nil {
		return nil, err
	} else {
		return ParseBytes(buf)
	}
}

// ParseBytes reads a class from its binary representation. Utf8 constants
// keep their modified UTF-8 encoding so they can be written back unchanged.
func ParseBytes(buf []byte) (ret *Class, err error) {
	rd := &reader{buf: buf}
	defer func() {
		if v := recover(); v != nil {
			switch e := v.(type) {
			case FormatError:
				ret, err = nil, e
			case LimitError:
				ret, err = nil, FormatError{Offset: rd.pos, Reason: e.Error()}
			default:
				panic(v)
			}
		}
	}()

	/* check the magic number */
	if rd.u4() != Magic {
		rd.fail("bad magic number")
	}

	/* version and constant pool */
	ret = new(Class)
	ret.Minor = rd.u2()
	ret.Major = rd.u2()
	ret.Pool = rd.pool()

	/* class names */
	ret.Access = AccessFlags(rd.u2())
	ret.Name = rd.className(rd.u2(), ret.Pool, false)
	ret.Super = rd.className(rd.u2(), ret.Pool, true)

	/* interfaces */
	for n := rd.u2(); n > 0; n-- {
		ret.Interfaces = append(ret.Interfaces, rd.className(rd.u2(), ret.Pool, false))
	}

	/* fields */
	for n := rd.u2(); n > 0; n-- {
		f := new(Field)
		f.Access = AccessFlags(rd.u2())
		f.Name = rd.utf8(rd.u2(), ret.Pool)
		f.Desc = rd.utf8(rd.u2(), ret.Pool)
		f.Attributes = rd.attributes(ret.Pool)
		ret.Fields = append(ret.Fields, f)
	}

	/* methods */
	for n := rd.u2(); n > 0; n-- {
		ret.Methods = append(ret.Methods, rd.method(ret.Pool))
	}

	/* class attributes */
	ret.Attributes = rd.attributes(ret.Pool)
	if rd.pos != len(rd.buf) {
		rd.fail("trailing data")
	}
	return
}

func (self *reader) pool() *ConstantPool {
	n := int(self.u2())
	ret := NewConstantPool()

	/* read every entry */
	for ret.Len() < n {
		var c Constant
		switch c.Tag = Tag(self.u1()); c.Tag {
		case CONSTANT_Utf8:
			c.Str = string(self.bytes(int(self.u2())))
		case CONSTANT_Integer, CONSTANT_Float:
			c.Bits = uint64(self.u4())
		case CONSTANT_Long, CONSTANT_Double:
			c.Bits = uint64(self.u4()) << 32
			c.Bits |= uint64(self.u4())
		case CONSTANT_Class, CONSTANT_String, CONSTANT_MethodType, CONSTANT_Module, CONSTANT_Package:
			c.A = self.u2()
		case CONSTANT_Fieldref, CONSTANT_Methodref, CONSTANT_InterfaceMethodref, CONSTANT_NameAndType, CONSTANT_Dynamic, CONSTANT_InvokeDynamic:
			c.A = self.u2()
			c.B = self.u2()
		case CONSTANT_MethodHandle:
			c.Bits = uint64(self.u1())
			c.A = self.u2()
		default:
			self.fail("invalid constant tag %d", c.Tag)
		}
		ret.Append(c)
	}

	/* a wide entry must not overflow the pool */
	if ret.Len() != n {
		self.fail("wide constant at the end of the pool")
	}
	return ret
}

func (self *reader) utf8(i uint16, cp *ConstantPool) string {
	if s, ok := cp.GetUtf8(i); !ok {
		self.fail("constant #%d is not Utf8", i)
		return ""
	} else {
		return s
	}
}

func (self *reader) className(i uint16, cp *ConstantPool, optional bool) string {
	if i == 0 && optional {
		return ""
	} else if s, ok := cp.ClassName(i); !ok {
		self.fail("constant #%d is not a class", i)
		return ""
	} else {
		return s
	}
}

func (self *reader) method(cp *ConstantPool) *Method {
	ret := new(Method)
	ret.Access = AccessFlags(self.u2())
	ret.Name = self.utf8(self.u2(), cp)
	ret.Desc = self.utf8(self.u2(), cp)

	/* separate the code attribute from the others */
	for n := self.u2(); n > 0; n-- {
		name := self.utf8(self.u2(), cp)
		data := self.bytes(int(self.u4()))

		/* only one code attribute is allowed */
		if name == AttrCode {
			if ret.Code != nil {
				self.fail("duplicated Code attribute")
			}
			ret.Code = self.sub(data).code(cp, self.pos-len(data))
		} else {
			ret.Attributes = append(ret.Attributes, self.sub(data).attribute(name, cp))
		}
	}
	return ret
}

func (self *reader) sub(data []byte) *reader {
	return &reader{buf: data}
}

func (self *reader) attributes(cp *ConstantPool) []Attribute {
	var ret []Attribute
	for n := self.u2(); n > 0; n-- {
		name := self.utf8(self.u2(), cp)
		data := self.bytes(int(self.u4()))
		ret = append(ret, self.sub(data).attribute(name, cp))
	}
	return ret
}

func (self *reader) attribute(name string, cp *ConstantPool) Attribute {
	switch name {
	case AttrSignature:
		return &SignatureAttribute{Signature: self.u2()}
	case AttrMethodParameters:
		ret := new(MethodParametersAttribute)
		for n := self.u1(); n > 0; n-- {
			ret.Params = append(ret.Params, MethodParameter{Name: self.u2(), Access: AccessFlags(self.u2())})
		}
		return ret
	case AttrBootstrapMethods:
		ret := new(BootstrapMethodsAttribute)
		for n := self.u2(); n > 0; n-- {
			bm := BootstrapMethod{Handle: self.u2()}
			for k := self.u2(); k > 0; k-- {
				bm.Args = append(bm.Args, self.u2())
			}
			ret.Methods = append(ret.Methods, bm)
		}
		return ret
	default:
		return &RawAttribute{Name: name, Data: append([]byte(nil), self.buf...)}
	}
}

func (self *reader) code(cp *ConstantPool, base int) *Code {
	var err error
	var ret Code

	/* frame sizes */
	ret.MaxStack = int(self.u2())
	ret.MaxLocals = int(self.u2())

	/* decode the instructions */
	buf := self.bytes(int(self.u4()))
	ret.Length = len(buf)
	if ret.Instrs, err = DecodeInstrs(buf); err != nil {
		e := err.(FormatError)
		e.Offset += base + 8
		panic(e)
	}

	/* exception table */
	for n := self.u2(); n > 0; n-- {
		ret.Handlers = append(ret.Handlers, ExceptionHandler{
			StartPC:   int(self.u2()),
			EndPC:     int(self.u2()),
			HandlerPC: int(self.u2()),
			CatchType: self.u2(),
		})
	}

	/* code attributes */
	for n := self.u2(); n > 0; n-- {
		name := self.utf8(self.u2(), cp)
		data := self.sub(self.bytes(int(self.u4())))
		switch name {
		case AttrLineNumberTable:
			for k := data.u2(); k > 0; k-- {
				ret.LineNumbers = append(ret.LineNumbers, LineNumber{StartPC: int(data.u2()), Line: int(data.u2())})
			}
		case AttrLocalVariableTable:
			ret.LocalVars = append(ret.LocalVars, data.locals()...)
		case AttrLocalVariableTypeTable:
			ret.LocalVarTypes = append(ret.LocalVarTypes, data.locals()...)
		default:
			ret.Attributes = append(ret.Attributes, data.attribute(name, cp))
		}
	}
	return &ret
}

func (self *reader) locals() []LocalVariable {
	var ret []LocalVariable
	for n := self.u2(); n > 0; n-- {
		ret = append(ret, LocalVariable{
			StartPC: int(self.u2()),
			Length:  int(self.u2()),
			Name:    self.u2(),
			Desc:    self.u2(),
			Slot:    int(self.u2()),
		})
	}
	return ret
}

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
	"math"
)

type Tag uint8

const (
	CONSTANT_Utf8               Tag = 1
	CONSTANT_Integer            Tag = 3
	CONSTANT_Float              Tag = 4
	CONSTANT_Long               Tag = 5
	CONSTANT_Double             Tag = 6
	CONSTANT_Class              Tag = 7
	CONSTANT_String             Tag = 8
	CONSTANT_Fieldref           Tag = 9
	CONSTANT_Methodref          Tag = 10
	CONSTANT_InterfaceMethodref Tag = 11
	CONSTANT_NameAndType        Tag = 12
	CONSTANT_MethodHandle       Tag = 15
	CONSTANT_MethodType         Tag = 16
	CONSTANT_Dynamic            Tag = 17
	CONSTANT_InvokeDynamic      Tag = 18
	CONSTANT_Module             Tag = 19
	CONSTANT_Package            Tag = 20
)

var tagNames = [256]string{
	CONSTANT_Utf8:               "Utf8",
	CONSTANT_Integer:            "Integer",
	CONSTANT_Float:              "Float",
	CONSTANT_Long:               "Long",
	CONSTANT_Double:             "Double",
	CONSTANT_Class:              "Class",
	CONSTANT_String:             "String",
	CONSTANT_Fieldref:           "Fieldref",
	CONSTANT_Methodref:          "Methodref",
	CONSTANT_InterfaceMethodref: "InterfaceMethodref",
	CONSTANT_NameAndType:        "NameAndType",
	CONSTANT_MethodHandle:       "MethodHandle",
	CONSTANT_MethodType:         "MethodType",
	CONSTANT_Dynamic:            "Dynamic",
	CONSTANT_InvokeDynamic:      "InvokeDynamic",
	CONSTANT_Module:             "Module",
	CONSTANT_Package:            "Package",
}

func (self Tag) String() string {
	if tagNames[self] != "" {
		return tagNames[self]
	} else {
		return fmt.Sprintf("Tag(%d)", self)
	}
}

func (self Tag) IsValid() bool {
	return tagNames[self] != ""
}

// Width is the number of pool slots taken by an entry with this tag.
func (self Tag) Width() int {
	if self == CONSTANT_Long || self == CONSTANT_Double {
		return 2
	} else {
		return 1
	}
}

func (self Tag) IsMemberRef() bool {
	return self == CONSTANT_Fieldref || self == CONSTANT_Methodref || self == CONSTANT_InterfaceMethodref
}

// Method handle reference kinds.
const (
	REF_getField         = 1
	REF_getStatic        = 2
	REF_putField         = 3
	REF_putStatic        = 4
	REF_invokeVirtual    = 5
	REF_invokeStatic     = 6
	REF_invokeSpecial    = 7
	REF_newInvokeSpecial = 8
	REF_invokeInterface  = 9
)

// Constant is a single constant pool entry.
//
// The layout is shared by every tag so that entries are comparable and can be
// used directly as map keys for de-duplication:
//
//   Utf8                          Str
//   Integer, Float, Long, Double  Bits (raw IEEE bits for floating point)
//   Class, String, MethodType     A = name / string / descriptor index
//   Module, Package               A = name index
//   NameAndType                   A = name index, B = descriptor index
//   Field/Method/IMethod refs     A = class index, B = name-and-type index
//   MethodHandle                  Bits = reference kind, A = reference index
//   Dynamic, InvokeDynamic        A = bootstrap method index, B = name-and-type index
type Constant struct {
	Tag  Tag
	Str  string
	Bits uint64
	A    uint16
	B    uint16
}

func Utf8Constant(s string) Constant          { return Constant{Tag: CONSTANT_Utf8, Str: s} }
func IntegerConstant(v int32) Constant        { return Constant{Tag: CONSTANT_Integer, Bits: uint64(uint32(v))} }
func FloatConstant(v float32) Constant        { return Constant{Tag: CONSTANT_Float, Bits: uint64(math.Float32bits(v))} }
func LongConstant(v int64) Constant           { return Constant{Tag: CONSTANT_Long, Bits: uint64(v)} }
func DoubleConstant(v float64) Constant       { return Constant{Tag: CONSTANT_Double, Bits: math.Float64bits(v)} }
func ClassConstant(name uint16) Constant      { return Constant{Tag: CONSTANT_Class, A: name} }
func StringConstant(utf8 uint16) Constant     { return Constant{Tag: CONSTANT_String, A: utf8} }
func MethodTypeConstant(desc uint16) Constant { return Constant{Tag: CONSTANT_MethodType, A: desc} }
func NameAndTypeConstant(name, desc uint16) Constant {
	return Constant{Tag: CONSTANT_NameAndType, A: name, B: desc}
}

func MemberRefConstant(tag Tag, class, nat uint16) Constant {
	return Constant{Tag: tag, A: class, B: nat}
}

func MethodHandleConstant(kind uint8, ref uint16) Constant {
	return Constant{Tag: CONSTANT_MethodHandle, Bits: uint64(kind), A: ref}
}

func (self Constant) Int() int32      { return int32(uint32(self.Bits)) }
func (self Constant) Long() int64     { return int64(self.Bits) }
func (self Constant) Float() float32  { return math.Float32frombits(uint32(self.Bits)) }
func (self Constant) Double() float64 { return math.Float64frombits(self.Bits) }
func (self Constant) RefKind() uint8  { return uint8(self.Bits) }

func (self Constant) String() string {
	switch self.Tag {
	case 0:
		return "<unused>"
	case CONSTANT_Utf8:
		return fmt.Sprintf("Utf8 %q", self.Str)
	case CONSTANT_Integer:
		return fmt.Sprintf("Integer %d", self.Int())
	case CONSTANT_Float:
		return fmt.Sprintf("Float %g", self.Float())
	case CONSTANT_Long:
		return fmt.Sprintf("Long %d", self.Long())
	case CONSTANT_Double:
		return fmt.Sprintf("Double %g", self.Double())
	case CONSTANT_MethodHandle:
		return fmt.Sprintf("MethodHandle %d:#%d", self.RefKind(), self.A)
	case CONSTANT_Class, CONSTANT_String, CONSTANT_MethodType, CONSTANT_Module, CONSTANT_Package:
		return fmt.Sprintf("%s #%d", self.Tag, self.A)
	default:
		return fmt.Sprintf("%s #%d:#%d", self.Tag, self.A, self.B)
	}
}

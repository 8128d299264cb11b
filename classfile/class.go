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
	"strings"
)

type AccessFlags uint16

const (
	ACC_PUBLIC       AccessFlags = 0x0001
	ACC_PRIVATE      AccessFlags = 0x0002
	ACC_PROTECTED    AccessFlags = 0x0004
	ACC_STATIC       AccessFlags = 0x0008
	ACC_FINAL        AccessFlags = 0x0010
	ACC_SYNCHRONIZED AccessFlags = 0x0020
	ACC_SUPER        AccessFlags = 0x0020
	ACC_BRIDGE       AccessFlags = 0x0040
	ACC_VARARGS      AccessFlags = 0x0080
	ACC_NATIVE       AccessFlags = 0x0100
	ACC_INTERFACE    AccessFlags = 0x0200
	ACC_ABSTRACT     AccessFlags = 0x0400
	ACC_STRICT       AccessFlags = 0x0800
	ACC_SYNTHETIC    AccessFlags = 0x1000
	ACC_ANNOTATION   AccessFlags = 0x2000
	ACC_ENUM         AccessFlags = 0x4000
)

func (self AccessFlags) Has(f AccessFlags) bool {
	return self&f != 0
}

const (
	Initializer      = "<init>"
	ClassInitializer = "<clinit>"
	ObjectClass      = "java/lang/Object"
)

type Field struct {
	Access     AccessFlags
	Name       string
	Desc       string
	Attributes []Attribute
}

func (self *Field) IsStatic() bool {
	return self.Access.Has(ACC_STATIC)
}

type Method struct {
	Access     AccessFlags
	Name       string
	Desc       string
	Code       *Code
	Attributes []Attribute
}

func (self *Method) IsStatic() bool       { return self.Access.Has(ACC_STATIC) }
func (self *Method) IsPrivate() bool      { return self.Access.Has(ACC_PRIVATE) }
func (self *Method) IsAbstract() bool     { return self.Access.Has(ACC_ABSTRACT) }
func (self *Method) IsNative() bool       { return self.Access.Has(ACC_NATIVE) }
func (self *Method) IsInitializer() bool  { return self.Name == Initializer }
func (self *Method) IsSynchronized() bool { return self.Access.Has(ACC_SYNCHRONIZED) }

// Key is the name and descriptor of the method, unique within its class.
func (self *Method) Key() string {
	return self.Name + self.Desc
}

func (self *Method) Descriptor() MethodDescriptor {
	return MustParseMethodDescriptor(self.Desc)
}

// IsVirtual reports whether calls to the method are dispatched dynamically.
func (self *Method) IsVirtual() bool {
	return !self.IsStatic() && !self.IsPrivate() && self.Name != Initializer && self.Name != ClassInitializer
}

func (self *Method) Clone() *Method {
	return &Method{
		Access:     self.Access,
		Name:       self.Name,
		Desc:       self.Desc,
		Code:       self.Code.Clone(),
		Attributes: CloneAttributes(self.Attributes),
	}
}

// Class is a program or library class. Library classes are never modified.
type Class struct {
	Minor      uint16
	Major      uint16
	Access     AccessFlags
	Name       string
	Super      string
	Interfaces []string
	Pool       *ConstantPool
	Fields     []*Field
	Methods    []*Method
	Attributes []Attribute
	Library    bool
}

func NewClass(name string, super string, access AccessFlags) *Class {
	return &Class{
		Major:  52,
		Access: access,
		Name:   name,
		Super:  super,
		Pool:   NewConstantPool(),
	}
}

func (self *Class) IsInterface() bool {
	return self.Access.Has(ACC_INTERFACE)
}

func (self *Class) IsPublic() bool {
	return self.Access.Has(ACC_PUBLIC)
}

func (self *Class) Package() string {
	return PackageOf(self.Name)
}

func (self *Class) Method(name string, desc string) *Method {
	for _, m := range self.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// MethodsNamed returns every method with the given name.
func (self *Class) MethodsNamed(name string) []*Method {
	var ret []*Method
	for _, m := range self.Methods {
		if m.Name == name {
			ret = append(ret, m)
		}
	}
	return ret
}

func (self *Class) Field(name string, desc string) *Field {
	for _, f := range self.Fields {
		if f.Name == name && f.Desc == desc {
			return f
		}
	}
	return nil
}

func (self *Class) BootstrapMethods() *BootstrapMethodsAttribute {
	if v, ok := FindAttribute(self.Attributes, AttrBootstrapMethods).(*BootstrapMethodsAttribute); ok {
		return v
	} else {
		return nil
	}
}

// AddMethod appends a method to the class.
func (self *Class) AddMethod(access AccessFlags, name string, desc string, code *Code) *Method {
	m := &Method{Access: access, Name: name, Desc: desc, Code: code}
	self.Methods = append(self.Methods, m)
	return m
}

func (self *Class) AddField(access AccessFlags, name string, desc string) *Field {
	f := &Field{Access: access, Name: name, Desc: desc}
	self.Fields = append(self.Fields, f)
	return f
}

// IsArrayClass reports whether name is an array type used as a class name.
func IsArrayClass(name string) bool {
	return strings.HasPrefix(name, "[")
}

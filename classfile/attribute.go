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

const (
	AttrCode                                 = "Code"
	AttrLineNumberTable                      = "LineNumberTable"
	AttrLocalVariableTable                   = "LocalVariableTable"
	AttrLocalVariableTypeTable               = "LocalVariableTypeTable"
	AttrStackMapTable                        = "StackMapTable"
	AttrBootstrapMethods                     = "BootstrapMethods"
	AttrMethodParameters                     = "MethodParameters"
	AttrSignature                            = "Signature"
	AttrRuntimeVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	AttrRuntimeInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
)

// Attribute is a class, member or code attribute.
type Attribute interface {
	AttributeName() string
}

// RawAttribute is an attribute the model does not interpret. It is written
// back exactly as read.
type RawAttribute struct {
	Name string
	Data []byte
}

func (self *RawAttribute) AttributeName() string {
	return self.Name
}

type BootstrapMethod struct {
	Handle uint16
	Args   []uint16
}

type BootstrapMethodsAttribute struct {
	Methods []BootstrapMethod
}

func (self *BootstrapMethodsAttribute) AttributeName() string {
	return AttrBootstrapMethods
}

type MethodParameter struct {
	Name   uint16
	Access AccessFlags
}

type MethodParametersAttribute struct {
	Params []MethodParameter
}

func (self *MethodParametersAttribute) AttributeName() string {
	return AttrMethodParameters
}

type SignatureAttribute struct {
	Signature uint16
}

func (self *SignatureAttribute) AttributeName() string {
	return AttrSignature
}

func cloneAttribute(attr Attribute) Attribute {
	switch v := attr.(type) {
	case *RawAttribute:
		return &RawAttribute{Name: v.Name, Data: append([]byte(nil), v.Data...)}
	case *SignatureAttribute:
		return &SignatureAttribute{Signature: v.Signature}
	case *MethodParametersAttribute:
		return &MethodParametersAttribute{Params: append([]MethodParameter(nil), v.Params...)}
	case *BootstrapMethodsAttribute:
		ret := &BootstrapMethodsAttribute{Methods: make([]BootstrapMethod, len(v.Methods))}
		for i, m := range v.Methods {
			ret.Methods[i] = BootstrapMethod{Handle: m.Handle, Args: append([]uint16(nil), m.Args...)}
		}
		return ret
	default:
		panic("unknown attribute type")
	}
}

// CloneAttributes returns a deep copy of an attribute list.
func CloneAttributes(attrs []Attribute) []Attribute {
	if attrs == nil {
		return nil
	}
	ret := make([]Attribute, len(attrs))
	for i, a := range attrs {
		ret[i] = cloneAttribute(a)
	}
	return ret
}

// FindAttribute returns the first attribute with the given name.
func FindAttribute(attrs []Attribute, name string) Attribute {
	for _, a := range attrs {
		if a.AttributeName() == name {
			return a
		}
	}
	return nil
}

// RemoveAttributes drops every attribute with the given name.
func RemoveAttributes(attrs []Attribute, name string) []Attribute {
	p := 0
	for _, a := range attrs {
		if a.AttributeName() != name {
			attrs[p] = a
			p++
		}
	}
	for i := p; i < len(attrs); i++ {
		attrs[i] = nil
	}
	return attrs[:p]
}

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
	"sort"

	"github.com/oleiade/lane"
	"go.uber.org/multierr"
)

// ClassPool is the closed world of program and library classes.
type ClassPool struct {
	classes  map[string]*Class
	program  []*Class
	library  []*Class
	subtypes map[string][]string
}

// NewClassPool builds and validates a class pool. Every problem found is
// reported in the returned error.
func NewClassPool(program []*Class, library []*Class) (*ClassPool, error) {
	ret := &ClassPool{
		classes:  make(map[string]*Class, len(program)+len(library)),
		subtypes: make(map[string][]string),
	}

	/* register all the classes */
	err := multierr.Combine(
		ret.register(program, false),
		ret.register(library, true),
	)

	/* deterministic iteration order */
	sort.Slice(ret.program, func(i, j int) bool { return ret.program[i].Name < ret.program[j].Name })
	sort.Slice(ret.library, func(i, j int) bool { return ret.library[i].Name < ret.library[j].Name })

	/* build the subtype index */
	for _, cc := range [][]*Class{ret.program, ret.library} {
		for _, c := range cc {
			if c.Super != "" {
				ret.subtypes[c.Super] = append(ret.subtypes[c.Super], c.Name)
			}
			for _, iface := range c.Interfaces {
				ret.subtypes[iface] = append(ret.subtypes[iface], c.Name)
			}
		}
	}

	/* validate the program classes */
	for _, c := range ret.program {
		err = multierr.Append(err, ret.validate(c))
	}
	if err != nil {
		return nil, err
	} else {
		return ret, nil
	}
}

func (self *ClassPool) register(classes []*Class, library bool) (err error) {
	for _, c := range classes {
		if _, ok := self.classes[c.Name]; ok {
			err = multierr.Append(err, emodel(c.Name, "duplicated class"))
			continue
		}
		c.Library = library
		self.classes[c.Name] = c
		if library {
			self.library = append(self.library, c)
		} else {
			self.program = append(self.program, c)
		}
	}
	return
}

// Get returns the class named name, or nil.
func (self *ClassPool) Get(name string) *Class {
	return self.classes[name]
}

// Program returns the program classes, ordered by name.
func (self *ClassPool) Program() []*Class {
	return self.program
}

// Library returns the library classes, ordered by name.
func (self *ClassPool) Library() []*Class {
	return self.library
}

// IsSubclassOf reports whether sub is sup or a (transitive) subclass or
// implementation of sup.
func (self *ClassPool) IsSubclassOf(sub string, sup string) bool {
	q := lane.NewQueue()
	seen := map[string]bool{}

	/* breadth-first search over the supertypes */
	for q.Enqueue(sub); !q.Empty(); {
		name := q.Dequeue().(string)
		if name == sup {
			return true
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if c := self.classes[name]; c != nil {
			if c.Super != "" {
				q.Enqueue(c.Super)
			}
			for _, iface := range c.Interfaces {
				q.Enqueue(iface)
			}
		}
	}
	return false
}

// Subtypes returns every direct or indirect subclass or implementation of
// name, ordered by name. The class itself is not included.
func (self *ClassPool) Subtypes(name string) []*Class {
	var ret []*Class
	var seen = map[string]bool{name: true}

	/* breadth-first search over the subtype index */
	q := lane.NewQueue()
	for q.Enqueue(name); !q.Empty(); {
		for _, sub := range self.subtypes[q.Dequeue().(string)] {
			if !seen[sub] {
				seen[sub] = true
				ret = append(ret, self.classes[sub])
				q.Enqueue(sub)
			}
		}
	}

	/* sort by name */
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

// Supertypes returns every direct or indirect superclass and interface of
// name in breadth-first order.
func (self *ClassPool) Supertypes(name string) []*Class {
	var ret []*Class
	var seen = map[string]bool{name: true}

	/* breadth-first search over the supertypes */
	q := lane.NewQueue()
	for q.Enqueue(name); !q.Empty(); {
		c := self.classes[q.Dequeue().(string)]
		if c == nil {
			continue
		}
		for _, sup := range append([]string{c.Super}, c.Interfaces...) {
			if sup != "" && !seen[sup] && self.classes[sup] != nil {
				seen[sup] = true
				ret = append(ret, self.classes[sup])
				q.Enqueue(sup)
			}
		}
	}
	return ret
}

// ResolveMethod finds the declaration a method reference binds to: the
// class and its superclasses first, then the superinterfaces.
func (self *ClassPool) ResolveMethod(owner string, name string, desc string) (*Class, *Method) {
	for c := self.classes[owner]; c != nil; c = self.classes[c.Super] {
		if m := c.Method(name, desc); m != nil {
			return c, m
		}
	}
	for _, c := range self.Supertypes(owner) {
		if c.IsInterface() {
			if m := c.Method(name, desc); m != nil && !m.IsStatic() && !m.IsPrivate() {
				return c, m
			}
		}
	}
	return nil, nil
}

// ResolveField finds the declaration a field reference binds to: the class,
// its superinterfaces, then its superclasses.
func (self *ClassPool) ResolveField(owner string, name string, desc string) (*Class, *Field) {
	c := self.classes[owner]
	if c == nil {
		return nil, nil
	}
	if f := c.Field(name, desc); f != nil {
		return c, f
	}
	for _, iface := range c.Interfaces {
		if dc, f := self.ResolveField(iface, name, desc); f != nil {
			return dc, f
		}
	}
	if c.Super != "" {
		return self.ResolveField(c.Super, name, desc)
	}
	return nil, nil
}

// Overriders returns every method in a program subtype of owner that
// overrides owner's method with the given name and descriptor.
func (self *ClassPool) Overriders(owner string, name string, desc string) []*Method {
	var ret []*Method
	for _, c := range self.Subtypes(owner) {
		if m := c.Method(name, desc); m != nil && m.IsVirtual() {
			ret = append(ret, m)
		}
	}
	return ret
}

func (self *ClassPool) checkClass(c *Class, what string, name string) error {
	if IsArrayClass(name) || self.classes[name] != nil {
		return nil
	} else {
		return emodel(c.Name, "dangling %s reference to %s", what, name)
	}
}

var constantOperands = map[Opcode][]Tag{
	OP_ldc:             {CONSTANT_Integer, CONSTANT_Float, CONSTANT_String, CONSTANT_Class, CONSTANT_MethodType, CONSTANT_MethodHandle, CONSTANT_Dynamic},
	OP_ldc2_w:          {CONSTANT_Long, CONSTANT_Double, CONSTANT_Dynamic},
	OP_getstatic:       {CONSTANT_Fieldref},
	OP_putstatic:       {CONSTANT_Fieldref},
	OP_getfield:        {CONSTANT_Fieldref},
	OP_putfield:        {CONSTANT_Fieldref},
	OP_invokevirtual:   {CONSTANT_Methodref},
	OP_invokespecial:   {CONSTANT_Methodref, CONSTANT_InterfaceMethodref},
	OP_invokestatic:    {CONSTANT_Methodref, CONSTANT_InterfaceMethodref},
	OP_invokeinterface: {CONSTANT_InterfaceMethodref},
	OP_invokedynamic:   {CONSTANT_InvokeDynamic},
	OP_new:             {CONSTANT_Class},
	OP_anewarray:       {CONSTANT_Class},
	OP_checkcast:       {CONSTANT_Class},
	OP_instanceof:      {CONSTANT_Class},
	OP_multianewarray:  {CONSTANT_Class},
}

func (self *ClassPool) validate(c *Class) (err error) {
	if c.Pool == nil {
		return emodel(c.Name, "missing constant pool")
	}

	/* the pool itself must be well formed */
	if e := c.Pool.Validate(); e != nil {
		for _, v := range multierr.Errors(e) {
			err = multierr.Append(err, emodel(c.Name, "%v", v))
		}
		return
	}

	/* check the super types */
	if c.Super == "" && c.Name != ObjectClass {
		err = multierr.Append(err, emodel(c.Name, "missing super class"))
	} else if c.Super != "" {
		err = multierr.Append(err, self.checkClass(c, "super class", c.Super))
	}
	for _, iface := range c.Interfaces {
		err = multierr.Append(err, self.checkClass(c, "interface", iface))
	}

	/* check every member reference owner */
	for i := 1; i < c.Pool.Len(); i++ {
		if c.Pool.Get(uint16(i)).Tag.IsMemberRef() {
			if ref, ok := c.Pool.MemberRefOf(uint16(i)); !ok {
				err = multierr.Append(err, emodel(c.Name, "malformed member reference #%d", i))
			} else {
				err = multierr.Append(err, self.checkClass(c, "member owner", ref.Owner))
			}
		}
	}

	/* check every member */
	for _, f := range c.Fields {
		if !IsFieldDescriptor(f.Desc) {
			err = multierr.Append(err, emodel(c.Name, "invalid descriptor %q of field %s", f.Desc, f.Name))
		}
	}
	for _, m := range c.Methods {
		err = multierr.Append(err, self.validateMethod(c, m))
	}
	return
}

func (self *ClassPool) validateMethod(c *Class, m *Method) (err error) {
	desc, e := ParseMethodDescriptor(m.Desc)
	if e != nil {
		return emodel(c.Name, "method %s: %v", m.Name, e)
	}

	/* abstract and native methods have no code */
	if m.Code == nil {
		if !m.IsAbstract() && !m.IsNative() {
			err = multierr.Append(err, emodel(c.Name, "method %s%s has no code", m.Name, m.Desc))
		}
		return
	}

	/* arguments must fit in the local variables */
	args := desc.ArgSlots()
	if !m.IsStatic() {
		args++
	}
	if args > m.Code.MaxLocals {
		err = multierr.Append(err, emodel(c.Name, "method %s%s: arguments exceed max locals", m.Name, m.Desc))
	}

	/* check every instruction */
	for _, ins := range m.Code.Instrs {
		if tags, ok := constantOperands[ins.Op]; ok {
			if !hasTag(c.Pool.Get(ins.Index).Tag, tags) {
				err = multierr.Append(err, emodel(c.Name, "method %s%s: %s has a bad constant operand", m.Name, m.Desc, ins))
			}
		}
		for _, t := range ins.Successors() {
			if _, ok := m.Code.IndexOf(t); !ok {
				err = multierr.Append(err, emodel(c.Name, "method %s%s: %s branches outside the code", m.Name, m.Desc, ins))
			}
		}
	}

	/* check the exception table */
	for _, h := range m.Code.Handlers {
		if !m.Code.IsBoundary(h.StartPC) || !m.Code.IsBoundary(h.EndPC) || h.StartPC >= h.EndPC {
			err = multierr.Append(err, emodel(c.Name, "method %s%s: invalid exception range", m.Name, m.Desc))
		} else if _, ok := m.Code.IndexOf(h.HandlerPC); !ok {
			err = multierr.Append(err, emodel(c.Name, "method %s%s: invalid exception handler", m.Name, m.Desc))
		}
	}
	return
}

func hasTag(tag Tag, tags []Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

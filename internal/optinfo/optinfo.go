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

package optinfo

import (
	"github.com/oleiade/lane"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/keep"
)

// MethodID is a stable identifier of a program method within one run.
type MethodID int

// Member is a program method together with its class.
type Member struct {
	Class  *classfile.Class
	Method *classfile.Method
}

// MethodInfo holds the derived facts about a method. Methods in the same
// override family share a single record, and its facts hold for all of them.
type MethodInfo struct {
	Kept           bool
	SideEffects    bool
	ParamUsed      []bool
	CanBeStatic    bool
	Isolated       bool
	RefByHandle    bool
	RefByBootstrap bool
	library        bool
	local          bool
	members        []MethodID
}

// Members returns the methods sharing this record.
func (self *MethodInfo) Members() []MethodID {
	return self.members
}

// IsParamUsed reports whether parameter i is used by any member.
func (self *MethodInfo) IsParamUsed(i int) bool {
	return i >= len(self.ParamUsed) || self.ParamUsed[i]
}

type ClassInfo struct {
	Kept           bool
	HasInitializer bool
}

// Arena owns the optimization info of every program method and class for
// the duration of a run.
type Arena struct {
	pool    *classfile.ClassPool
	keep    keep.Oracle
	methods []Member
	infos   []*MethodInfo
	ids     map[*classfile.Method]MethodID
	classes map[string]*ClassInfo
	order   map[string]int
}

// New creates the arena and computes the initial facts. Side effects are
// only local until PropagateSideEffects is called.
func New(pool *classfile.ClassPool, oracle keep.Oracle) *Arena {
	ret := &Arena{
		pool:    pool,
		keep:    oracle,
		ids:     make(map[*classfile.Method]MethodID),
		classes: make(map[string]*ClassInfo),
		order:   make(map[string]int),
	}

	/* assign method IDs in the iteration order of the pool */
	for i, c := range pool.Program() {
		ret.order[c.Name] = i
		ret.classes[c.Name] = &ClassInfo{
			Kept:           oracle.IsClassKept(c.Name),
			HasInitializer: c.Method(classfile.ClassInitializer, "()V") != nil,
		}
		for _, m := range c.Methods {
			ret.ids[m] = MethodID(len(ret.methods))
			ret.methods = append(ret.methods, Member{Class: c, Method: m})
		}
	}

	/* group the override families */
	ret.infos = make([]*MethodInfo, len(ret.methods))
	ret.group()

	/* compute the local facts */
	ret.Refresh(nil)
	return ret
}

// Len returns the number of program methods.
func (self *Arena) Len() int {
	return len(self.methods)
}

// NumClasses returns the number of program classes.
func (self *Arena) NumClasses() int {
	return len(self.order)
}

// ClassIndex returns the position of a program class in the iteration order.
func (self *Arena) ClassIndex(name string) (int, bool) {
	i, ok := self.order[name]
	return i, ok
}

func (self *Arena) Pool() *classfile.ClassPool {
	return self.pool
}

func (self *Arena) Member(id MethodID) Member {
	return self.methods[id]
}

func (self *Arena) Info(id MethodID) *MethodInfo {
	return self.infos[id]
}

// ID returns the identifier of a program method.
func (self *Arena) ID(m *classfile.Method) (MethodID, bool) {
	id, ok := self.ids[m]
	return id, ok
}

// Lookup returns the program method declared by class owner.
func (self *Arena) Lookup(owner string, name string, desc string) (MethodID, bool) {
	if c := self.pool.Get(owner); c == nil || c.Library {
		return 0, false
	} else if m := c.Method(name, desc); m == nil {
		return 0, false
	} else {
		return self.ID(m)
	}
}

// Resolve returns the program method a reference binds to.
func (self *Arena) Resolve(owner string, name string, desc string) (MethodID, bool) {
	if c, m := self.pool.ResolveMethod(owner, name, desc); m == nil || c.Library {
		return 0, false
	} else {
		return self.ID(m)
	}
}

func (self *Arena) Class(name string) *ClassInfo {
	return self.classes[name]
}

type family struct {
	parent  []int
	library []bool
}

func (self *family) find(i int) int {
	for self.parent[i] != i {
		self.parent[i] = self.parent[self.parent[i]]
		i = self.parent[i]
	}
	return i
}

func (self *family) union(a int, b int) {
	if a, b = self.find(a), self.find(b); a == b {
		return
	} else if a > b {
		a, b = b, a
	}
	self.parent[b] = a
	self.library[a] = self.library[a] || self.library[b]
}

// group unifies every virtual method with the methods it overrides or
// implements. A family that reaches a library declaration is marked.
func (self *Arena) group() {
	fm := &family{
		parent:  make([]int, len(self.methods)),
		library: make([]bool, len(self.methods)),
	}
	for i := range fm.parent {
		fm.parent[i] = i
	}

	/* every class binds the virtual methods of its supertypes to an implementation */
	for _, c := range self.pool.Program() {
		for _, sup := range append([]*classfile.Class{c}, self.pool.Supertypes(c.Name)...) {
			for _, m := range sup.Methods {
				if !m.IsVirtual() {
					continue
				}

				/* find the implementation in this class */
				_, impl := self.pool.ResolveMethod(c.Name, m.Name, m.Desc)
				id, ok := self.ids[impl]
				if impl == nil || !ok || !impl.IsVirtual() {
					continue
				}

				/* link with the declaration */
				if decl, ok := self.ids[m]; ok {
					fm.union(int(id), int(decl))
				} else {
					fm.library[fm.find(int(id))] = true
				}
			}
		}
	}

	/* create one record per family */
	for i := range self.methods {
		r := fm.find(i)
		if self.infos[r] == nil {
			self.infos[r] = &MethodInfo{library: fm.library[r]}
		}
		self.infos[i] = self.infos[r]
		self.infos[i].members = append(self.infos[i].members, MethodID(i))
	}
}

// Refresh recomputes the local facts of the families of the given methods,
// or of every method when ids is nil.
func (self *Arena) Refresh(ids []MethodID) {
	var todo []*MethodInfo
	var seen = make(map[*MethodInfo]bool)

	/* collect the affected records */
	if ids == nil {
		for id := range self.methods {
			ids = append(ids, MethodID(id))
		}
	}
	for _, id := range ids {
		if info := self.infos[id]; !seen[info] {
			seen[info] = true
			todo = append(todo, info)
		}
	}

	/* recompute every record from its members */
	for _, info := range todo {
		self.refresh(info)
	}
}

func (self *Arena) refresh(info *MethodInfo) {
	info.Kept = false
	info.local = false
	info.ParamUsed = nil
	info.CanBeStatic = true

	/* union over the members */
	for _, id := range info.members {
		mb := self.methods[id]
		info.Kept = info.Kept || self.keep.IsMemberKept(mb.Class.Name, mb.Method.Name, mb.Method.Desc)
		info.local = info.local || self.hasLocalEffects(mb)
		info.CanBeStatic = info.CanBeStatic && canBeStatic(mb.Method)

		/* parameter usage */
		used := paramUsage(mb.Method)
		if info.ParamUsed == nil {
			info.ParamUsed = used
		} else {
			for i := range info.ParamUsed {
				info.ParamUsed[i] = info.ParamUsed[i] || i >= len(used) || used[i]
			}
		}
	}

	/* a single method that nothing overrides is free to change */
	m := self.methods[info.members[0]].Method
	info.Isolated = !info.library && (!m.IsVirtual() || len(info.members) == 1)

	/* kept overrides every derived fact */
	if info.Kept {
		info.local = true
		info.Isolated = false
		info.CanBeStatic = false
		for i := range info.ParamUsed {
			info.ParamUsed[i] = true
		}
	}
}

func canBeStatic(m *classfile.Method) bool {
	if m.IsStatic() || m.Code == nil || m.IsInitializer() || m.IsSynchronized() {
		return false
	}
	for _, ins := range m.Code.Instrs {
		if ins.Op.HasLocal() && ins.Local == 0 {
			return false
		}
	}
	return true
}

// paramUsage reports, for every declared parameter, whether the body reads it.
func paramUsage(m *classfile.Method) []bool {
	desc, err := classfile.ParseMethodDescriptor(m.Desc)
	ret := make([]bool, len(desc.Params))

	/* no body means every parameter is used */
	if err != nil || m.Code == nil {
		for i := range ret {
			ret[i] = true
		}
		return ret
	}

	/* map slots to parameters */
	slots := make(map[int]int, len(desc.Params))
	for i := range desc.Params {
		slots[desc.ParamSlot(i, m.IsStatic())] = i
	}

	/* every read of a parameter slot */
	for _, ins := range m.Code.Instrs {
		if ins.Op.IsLoad() || ins.Op == classfile.OP_iinc || ins.Op == classfile.OP_ret {
			if i, ok := slots[ins.Local]; ok {
				ret[i] = true
			}
		}
	}
	return ret
}

var pureObjectMethods = map[string]bool{
	classfile.Initializer + "()V": true,
	"getClass()Ljava/lang/Class;": true,
}

// Initializes reports whether code in class c touching a static member of
// owner may run a class initializer.
func (self *Arena) Initializes(c *classfile.Class, owner string) bool {
	if owner == c.Name || classfile.IsArrayClass(owner) {
		return false
	} else if ci := self.classes[owner]; ci != nil {
		return ci.HasInitializer
	} else {
		return true
	}
}

// IsPureCall reports whether an invocation from class c has no side effects,
// counting the initialization of the class an invokestatic names.
func (self *Arena) IsPureCall(c *classfile.Class, op classfile.Opcode, ref classfile.MemberRef) bool {
	if ref.Owner == classfile.ObjectClass && pureObjectMethods[ref.Name+ref.Desc] {
		return true
	}
	if id, ok := self.Resolve(ref.Owner, ref.Name, ref.Desc); !ok || self.infos[id].SideEffects {
		return false
	}
	return op != classfile.OP_invokestatic || !self.Initializes(c, ref.Owner)
}

// hasLocalEffects reports whether the body has side effects by itself,
// without looking at the program methods it calls.
func (self *Arena) hasLocalEffects(mb Member) bool {
	m := mb.Method
	if m.Code == nil || m.IsNative() || m.IsSynchronized() {
		return true
	}

	/* check every instruction */
	for _, ins := range m.Code.Instrs {
		switch ins.Op {
		case classfile.OP_putfield, classfile.OP_putstatic, classfile.OP_athrow, classfile.OP_invokedynamic:
			return true
		case classfile.OP_monitorenter, classfile.OP_monitorexit:
			return true
		case classfile.OP_iastore, classfile.OP_lastore, classfile.OP_fastore, classfile.OP_dastore:
			return true
		case classfile.OP_aastore, classfile.OP_bastore, classfile.OP_castore, classfile.OP_sastore:
			return true
		case classfile.OP_getstatic, classfile.OP_new:
			if self.Initializes(mb.Class, self.owner(mb.Class, ins.Index)) {
				return true
			}
		case classfile.OP_invokestatic, classfile.OP_invokespecial, classfile.OP_invokevirtual, classfile.OP_invokeinterface:
			ref, ok := mb.Class.Pool.MemberRefOf(ins.Index)
			if !ok {
				return true
			}
			if ref.Owner == classfile.ObjectClass && pureObjectMethods[ref.Name+ref.Desc] {
				continue
			}
			if _, ok = self.Resolve(ref.Owner, ref.Name, ref.Desc); !ok {
				return true
			}
			if ins.Op == classfile.OP_invokestatic && self.Initializes(mb.Class, ref.Owner) {
				return true
			}
		}
	}
	return false
}

func (self *Arena) owner(c *classfile.Class, idx uint16) string {
	if ref, ok := c.Pool.MemberRefOf(idx); ok {
		return ref.Owner
	} else if name, ok := c.Pool.ClassName(idx); ok {
		return name
	} else {
		return ""
	}
}

// ResetReferences clears the method handle and bootstrap reference marks.
func (self *Arena) ResetReferences() {
	for _, info := range self.infos {
		info.RefByHandle = false
		info.RefByBootstrap = false
	}
}

// MarkReferenced records that a method is the target of a method handle,
// either inside a bootstrap method table or elsewhere.
func (self *Arena) MarkReferenced(id MethodID, bootstrap bool) {
	if bootstrap {
		self.infos[id].RefByBootstrap = true
	} else {
		self.infos[id].RefByHandle = true
	}
}

// PropagateSideEffects recomputes the side effect classification as the
// least fixed point of the local effects over the call graph, and returns
// the methods whose classification changed. callers returns every method
// that may call the given one.
func (self *Arena) PropagateSideEffects(callers func(MethodID) []MethodID) []MethodID {
	var ret []MethodID
	var old = make([]bool, len(self.methods))

	/* start over from the local effects */
	q := lane.NewQueue()
	for i, info := range self.infos {
		old[i] = info.SideEffects
		info.SideEffects = false
	}
	for _, info := range self.infos {
		if info.local && !info.SideEffects {
			info.SideEffects = true
			for _, id := range info.members {
				q.Enqueue(id)
			}
		}
	}

	/* every caller of a method with side effects has side effects too */
	for !q.Empty() {
		for _, c := range callers(q.Dequeue().(MethodID)) {
			if info := self.infos[c]; !info.SideEffects {
				info.SideEffects = true
				for _, id := range info.members {
					q.Enqueue(id)
				}
			}
		}
	}

	/* collect the flipped methods */
	for i, info := range self.infos {
		if info.SideEffects != old[i] {
			ret = append(ret, MethodID(i))
		}
	}
	return ret
}

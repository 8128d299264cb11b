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

package passes

import (
	"sort"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/editor"
	"github.com/cloudwego/bcopt/internal/optinfo"
)

// bootstrapArgs is the number of leading bootstrap method parameters the
// JVM always passes (lookup, name and type).
const bootstrapArgs = 3

// dummyTypes are tried in order when a constructor needs a dummy parameter.
var dummyTypes = []string{"I", "B", "S", "C", "Z", "F"}

// parameterShrinker removes parameters that no member of the override
// family reads, and makes methods that never touch this static when the
// staticizer is enabled. Call sites are rewritten by the plan it queues.
type parameterShrinker struct{}

func (parameterShrinker) Name() string {
	return ParameterShrinker
}

func (self parameterShrinker) VisitMethod(ctx *Context, c *classfile.Class, m *classfile.Method) bool {
	if m.Code == nil || m.Name == classfile.ClassInitializer {
		return false
	}

	/* find the unused parameters */
	id, ok := ctx.Arena.ID(m)
	if !ok {
		return false
	}
	info := ctx.Arena.Info(id)
	desc, err := classfile.ParseMethodDescriptor(m.Desc)
	if err != nil {
		return false
	}
	var removed []int
	for i := range desc.Params {
		if !info.IsParamUsed(i) {
			removed = append(removed, i)
		}
	}

	/* a method that never touches this can drop the receiver */
	static := info.CanBeStatic && info.Isolated && !info.RefByHandle && !info.RefByBootstrap && !c.IsInterface()
	if static = static && ctx.Enabled(MethodStaticizer); len(removed) == 0 && !static {
		return false
	}

	/* check if the signature may change */
	switch {
	case len(removed) == 0:
		break
	case info.Kept:
		ctx.Refuse(ParameterShrinker, c, m, "kept")
		return false
	case !info.Isolated:
		ctx.Refuse(ParameterShrinker, c, m, "overridden or overriding")
		return false
	case info.RefByHandle:
		ctx.Refuse(ParameterShrinker, c, m, "referenced by a method handle")
		return false
	case classfile.FindAttribute(m.Attributes, classfile.AttrSignature) != nil:
		ctx.Refuse(ParameterShrinker, c, m, "has a generic signature")
		return false
	case classfile.FindAttribute(m.Attributes, classfile.AttrRuntimeVisibleParameterAnnotations) != nil:
		ctx.Refuse(ParameterShrinker, c, m, "has parameter annotations")
		return false
	case classfile.FindAttribute(m.Attributes, classfile.AttrRuntimeInvisibleParameterAnnotations) != nil:
		ctx.Refuse(ParameterShrinker, c, m, "has parameter annotations")
		return false
	}

	/* bootstrap methods always receive the leading arguments */
	if info.RefByBootstrap {
		if !ctx.Enabled(BootstrapArgShrinker) || m.Access.Has(classfile.ACC_VARARGS) {
			ctx.Refuse(ParameterShrinker, c, m, "bootstrap method")
			return false
		}
		i := sort.SearchInts(removed, bootstrapArgs)
		if removed = removed[i:]; len(removed) == 0 {
			return false
		}
	}

	/* the descriptor changes on commit */
	ctx.Changes.Add(&shrinkPlan{
		id:      id,
		class:   c,
		method:  m,
		desc:    desc,
		removed: removed,
		static:  static,
	})
	return false
}

type shrinkPlan struct {
	id       optinfo.MethodID
	class    *classfile.Class
	method   *classfile.Method
	desc     classfile.MethodDescriptor
	removed  []int
	static   bool
	receiver bool
	args     []string
	dropped  []int
	rec      *Shrink
	refs     map[*classfile.Class]map[uint16]bool
	pure     map[*classfile.Class]map[uint16]bool
	targets  []*classfile.Class
}

func (self *shrinkPlan) Method() optinfo.MethodID {
	return self.id
}

// taken reports whether a signature is used by another method of the class,
// or of any of its supertypes or subtypes for methods other than
// constructors.
func (self *shrinkPlan) taken(ctx *Context, name string, desc string) bool {
	classes := []*classfile.Class{self.class}
	if name != classfile.Initializer {
		classes = append(classes, ctx.Pool.Supertypes(self.class.Name)...)
		classes = append(classes, ctx.Pool.Subtypes(self.class.Name)...)
	}
	for _, c := range classes {
		if mm := c.Method(name, desc); (mm != nil && mm != self.method) || ctx.Changes.IsReserved(c.Name, name, desc) {
			return true
		}
	}
	return false
}

func (self *shrinkPlan) Resolve(ctx *Context) bool {
	m := self.method
	if m.Desc != self.desc.String() {
		return false
	}

	/* choose the new descriptor */
	shrunk := self.desc.Without(self.removed).String()
	final := shrunk
	if self.taken(ctx, m.Name, shrunk) {
		if m.Name != classfile.Initializer || !ctx.Enabled(InitializerFixer) {
			ctx.Refuse(ParameterShrinker, self.class, m, "%s collides with an existing method", shrunk)
			return false
		}

		/* constructors get a dummy parameter instead */
		final = ""
		for _, t := range dummyTypes {
			if d := self.desc.Without(self.removed).With(t).String(); d == m.Desc || !self.taken(ctx, m.Name, d) {
				final = d
				break
			}
		}
		if final == "" {
			ctx.Refuse(ParameterShrinker, self.class, m, "no dummy parameter is available")
			return false
		}
	}

	/* removing a dummy only to add it back */
	if final == m.Desc && !self.static {
		return false
	}

	/* bootstrap tables must match the parameters */
	if !self.checkBootstrap(ctx) {
		ctx.Refuse(ParameterShrinker, self.class, m, "bootstrap arguments do not match the parameters")
		return false
	}

	/* collect every constant referring to the method */
	self.refs = make(map[*classfile.Class]map[uint16]bool)
	self.collect(ctx, self.class)
	for _, s := range ctx.Store.InfluencedBy(self.id) {
		self.collect(ctx, s.Class)
	}
	sort.Slice(self.targets, func(i, j int) bool {
		a, _ := ctx.Arena.ClassIndex(self.targets[i].Name)
		b, _ := ctx.Arena.ClassIndex(self.targets[j].Name)
		return a < b
	})

	/* the receiver is the first argument of instance methods */
	self.args, self.dropped = self.desc.Params, self.removed
	if self.receiver = !m.IsStatic(); self.receiver {
		self.args = append([]string{"L" + self.class.Name + ";"}, self.desc.Params...)
		self.dropped = nil
		if self.static {
			self.dropped = append(self.dropped, 0)
		}
		for _, r := range self.removed {
			self.dropped = append(self.dropped, r+1)
		}
	}

	/* claim the new signature */
	ctx.Changes.Reserve(self.class.Name, m.Name, final)
	self.rec = &Shrink{
		Owner:   self.class.Name,
		Name:    m.Name,
		Old:     m.Desc,
		Shrunk:  shrunk,
		Final:   final,
		Removed: self.removed,
		Static:  self.static,
	}
	return true
}

func (self *shrinkPlan) checkBootstrap(ctx *Context) bool {
	if !ctx.Arena.Info(self.id).RefByBootstrap {
		return true
	}
	for _, c := range ctx.Store.HandleUses(self.id) {
		for _, bm := range c.BootstrapMethods().Methods {
			_, ref, ok := c.Pool.HandleTarget(bm.Handle)
			if !ok {
				continue
			}
			if id, ok := ctx.Arena.Resolve(ref.Owner, ref.Name, ref.Desc); ok && id == self.id {
				if len(bm.Args) != len(self.desc.Params)-bootstrapArgs {
					return false
				}
			}
		}
	}
	return true
}

// collect finds the method references in class c that bind to the method.
func (self *shrinkPlan) collect(ctx *Context, c *classfile.Class) {
	if _, ok := self.refs[c]; ok {
		return
	}

	/* scan the constant pool */
	refs := make(map[uint16]bool)
	for i := 1; i < c.Pool.Len(); i++ {
		ref, ok := c.Pool.MemberRefOf(uint16(i))
		if !ok || ref.Tag == classfile.CONSTANT_Fieldref || ref.Name != self.method.Name || ref.Desc != self.method.Desc {
			continue
		}
		if ref.Name == classfile.Initializer && ref.Owner != self.class.Name {
			continue
		}
		if id, ok := ctx.Arena.Resolve(ref.Owner, ref.Name, ref.Desc); ok && id == self.id {
			refs[uint16(i)] = true
		}
	}

	/* the class of the method is always a target */
	self.refs[c] = refs
	if len(refs) != 0 || c == self.class {
		self.targets = append(self.targets, c)
	}
}

func (self *shrinkPlan) Targets(ctx *Context) []*classfile.Class {
	return self.targets
}

// Prepare finds the pure calls of every target before any descriptor changes.
func (self *shrinkPlan) Prepare(ctx *Context) {
	self.pure = make(map[*classfile.Class]map[uint16]bool, len(self.targets))
	for _, c := range self.targets {
		self.pure[c] = pureCalls(ctx, c)
	}
}

func (self *shrinkPlan) Apply(ctx *Context, c *classfile.Class) []*classfile.Method {
	var ret []*classfile.Method
	refs := self.refs[c]
	pool := editor.NewPool(c.Pool)
	shrunk := classfile.MustParseMethodDescriptor(self.rec.Shrunk)

	/* constructors with a dummy parameter are invoked by the initializer fixer */
	fix := self.rec.Final == self.rec.Shrunk

	/* rewrite every call site */
	for _, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		found := false
		drop := newArgDropper(ctx, c, m, self.pure[c])
		for k, ins := range m.Code.Instrs {
			if !ins.Op.IsInvoke() || ins.Op == classfile.OP_invokedynamic || !refs[ins.Index] {
				continue
			}
			if found = true; !fix {
				continue
			}
			drop.drop(k, self.args, self.dropped, self.receiver)
			ins.Index = pool.WithDescriptor(ins.Index, self.rec.Shrunk)
			if self.static {
				ins.Op, ins.Const = classfile.OP_invokestatic, 0
			} else if ins.Op == classfile.OP_invokeinterface {
				ins.Const = int32(shrunk.ArgSlots() + 1)
			}
			drop.ed.Replace(k, ins)
		}
		if drop.commit() || found {
			ret = append(ret, m)
		}
	}

	/* rewrite the method itself */
	if c == self.class {
		self.rewrite(self.method)
		ret = append(ret, self.method)
	}
	return ret
}

// rewrite changes the descriptor of the method and moves its locals.
func (self *shrinkPlan) rewrite(m *classfile.Method) {
	code := m.Code
	final := classfile.MustParseMethodDescriptor(self.rec.Final)
	gone := make(map[int]bool, len(self.dropped))
	for _, r := range self.dropped {
		gone[r] = true
	}

	/* the receiver is laid out like a parameter */
	oldEnd := 0
	for _, t := range self.args {
		oldEnd += classfile.SlotSize(t)
	}
	newEnd := final.ArgSlots()
	if self.receiver && !self.static {
		newEnd++
	}

	/* lay out the new frame */
	spare := newEnd + code.MaxLocals - oldEnd
	slots := make(map[int]int, len(self.args))
	for i, s, kept, moved := 0, 0, 0, spare; i < len(self.args); i++ {
		if n := classfile.SlotSize(self.args[i]); gone[i] {
			slots[s] = moved
			s, moved = s+n, moved+n
		} else {
			slots[s] = kept
			s, kept = s+n, kept+n
		}
	}

	/* map a slot to its new position */
	remap := func(slot int) int {
		if slot >= oldEnd {
			return slot - oldEnd + newEnd
		} else if s, ok := slots[slot]; ok {
			return s
		} else {
			editor.Violate("slot %d is inside a parameter of %s%s", slot, m.Name, m.Desc)
			return 0
		}
	}

	/* removed parameters may still be written to */
	locals := spare
	for i := range code.Instrs {
		if ins := &code.Instrs[i]; ins.Op.HasLocal() {
			if ins.Local = remap(ins.Local); ins.Local >= spare {
				if n := ins.Local + 1; ins.Op.IsWideLocal() {
					locals = maxInt(locals, n+1)
				} else {
					locals = maxInt(locals, n)
				}
			}
		}
	}

	/* debug information of the removed parameters is dropped */
	code.LocalVars = remapVars(code.LocalVars, spare, remap)
	code.LocalVarTypes = remapVars(code.LocalVarTypes, spare, remap)

	/* update the method */
	code.MaxLocals = locals
	m.Desc = self.rec.Final
	if self.static {
		m.Access |= classfile.ACC_STATIC
	}
	m.Attributes = self.remapParameters(m.Attributes)
	if err := code.Relayout(); err != nil {
		editor.Violate("%v", err)
	}
	code.Attributes = classfile.RemoveAttributes(code.Attributes, classfile.AttrStackMapTable)
}

// remapVars moves the local variable entries, dropping those that end up at
// or above limit.
func remapVars(vars []classfile.LocalVariable, limit int, remap func(int) int) []classfile.LocalVariable {
	var ret []classfile.LocalVariable
	for _, v := range vars {
		if v.Slot = remap(v.Slot); v.Slot < limit {
			ret = append(ret, v)
		}
	}
	return ret
}

func (self *shrinkPlan) remapParameters(attrs []classfile.Attribute) []classfile.Attribute {
	mp, ok := classfile.FindAttribute(attrs, classfile.AttrMethodParameters).(*classfile.MethodParametersAttribute)
	if !ok {
		return attrs
	}

	/* the table no longer describes the parameters */
	if len(mp.Params) != len(self.desc.Params) {
		return classfile.RemoveAttributes(attrs, classfile.AttrMethodParameters)
	}

	/* drop the removed parameters */
	var params []classfile.MethodParameter
	for i, r := 0, 0; i < len(mp.Params); i++ {
		if r < len(self.removed) && self.removed[r] == i {
			r++
		} else {
			params = append(params, mp.Params[i])
		}
	}

	/* the dummy parameter is synthetic */
	if self.rec.Final != self.rec.Shrunk {
		params = append(params, classfile.MethodParameter{Access: classfile.ACC_SYNTHETIC})
	}
	mp.Params = params
	return attrs
}

// Done publishes the descriptor change.
func (self *shrinkPlan) Done(ctx *Context) {
	ctx.Shrunk.Add(self.rec)
	ctx.Arena.Refresh([]optinfo.MethodID{self.id})
}

func maxInt(a int, b int) int {
	if a > b {
		return a
	} else {
		return b
	}
}

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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/depgraph"
	"github.com/cloudwego/bcopt/internal/editor"
	"github.com/cloudwego/bcopt/internal/filter"
	"github.com/cloudwego/bcopt/internal/keep"
	"github.com/cloudwego/bcopt/internal/optinfo"
)

func library() []*classfile.Class {
	obj := classfile.NewClass(classfile.ObjectClass, "", classfile.ACC_PUBLIC)
	obj.AddMethod(classfile.ACC_PUBLIC|classfile.ACC_NATIVE, classfile.Initializer, "()V", nil)
	obj.AddMethod(classfile.ACC_PUBLIC|classfile.ACC_FINAL|classfile.ACC_NATIVE, "getClass", "()Ljava/lang/Class;", nil)
	obj.AddMethod(classfile.ACC_PUBLIC|classfile.ACC_NATIVE, "toString", "()Ljava/lang/String;", nil)
	cls := classfile.NewClass("java/lang/Class", classfile.ObjectClass, classfile.ACC_PUBLIC|classfile.ACC_FINAL)
	str := classfile.NewClass("java/lang/String", classfile.ObjectClass, classfile.ACC_PUBLIC|classfile.ACC_FINAL)
	return []*classfile.Class{obj, cls, str}
}

func newContext(t *testing.T, oracle keep.Oracle, enabled string, program ...*classfile.Class) *Context {
	cp, err := classfile.NewClassPool(program, library())
	require.NoError(t, err)
	arena := optinfo.New(cp, oracle)
	store := depgraph.Build(arena)
	arena.PropagateSideEffects(store.Callers)
	return NewContext(cp, arena, store, oracle, filter.Parse(enabled), 2, zaptest.NewLogger(t))
}

// run applies a transformation to the whole program and commits its plans,
// returning the number of changed methods and committed plans.
func run(ctx *Context, p Pass) int {
	n := 0
	for _, c := range ctx.Pool.Program() {
		for _, m := range c.Methods {
			if m.Code != nil && p.VisitMethod(ctx, c, m) {
				n++
			}
		}
		if cv, ok := p.(ClassVisitor); ok && cv.VisitClass(ctx, c) {
			n++
		}
	}
	return n + ctx.Changes.Commit(ctx).Plans
}

// verify checks that the program still links, that every body is
// consistent and that every class can be written and read back.
func verify(t *testing.T, ctx *Context) {
	cp, err := classfile.NewClassPool(ctx.Pool.Program(), library())
	require.NoError(t, err)
	for _, c := range cp.Program() {
		for _, m := range c.Methods {
			if m.Code != nil {
				verifyCode(t, cp, c, m)
			}
		}
		if bt := c.BootstrapMethods(); bt != nil {
			for _, bm := range bt.Methods {
				_, ref, ok := c.Pool.HandleTarget(bm.Handle)
				require.True(t, ok)
				_, decl := cp.ResolveMethod(ref.Owner, ref.Name, ref.Desc)
				require.NotNil(t, decl, "%s: bootstrap method %s", c.Name, ref)
			}
		}
		buf, err := c.Bytes()
		require.NoError(t, err)
		_, err = classfile.ParseBytes(buf)
		require.NoError(t, err)
	}
}

func verifyCode(t *testing.T, cp *classfile.ClassPool, c *classfile.Class, m *classfile.Method) {
	depths, err := m.Code.StackDepths(c.Pool)
	require.NoError(t, err, "%s.%s", c.Name, m.Key())
	for i, ins := range m.Code.Instrs {
		require.LessOrEqual(t, depths[i], m.Code.MaxStack, "%s.%s: %s", c.Name, m.Key(), ins)

		/* locals fit in the frame */
		if ins.Op.HasLocal() {
			n := ins.Local + 1
			if ins.Op.IsWideLocal() {
				n++
			}
			require.LessOrEqual(t, n, m.Code.MaxLocals, "%s.%s: %s", c.Name, m.Key(), ins)
		}

		/* every invocation binds to a declared method */
		if ins.Op.IsInvoke() && ins.Op != classfile.OP_invokedynamic {
			ref, ok := c.Pool.MemberRefOf(ins.Index)
			require.True(t, ok)
			_, decl := cp.ResolveMethod(ref.Owner, ref.Name, ref.Desc)
			require.NotNil(t, decl, "%s.%s: %s", c.Name, m.Key(), ref)
		}
	}
}

func ops(m *classfile.Method) []classfile.Opcode {
	ret := make([]classfile.Opcode, len(m.Code.Instrs))
	for i, ins := range m.Code.Instrs {
		ret[i] = ins.Op
	}
	return ret
}

// refs lists the member references of a body in order.
func refs(c *classfile.Class, m *classfile.Method) []string {
	var ret []string
	for _, ins := range m.Code.Instrs {
		if ref, ok := c.Pool.MemberRefOf(ins.Index); ok && ins.Op.UsesConstant() {
			ret = append(ret, ref.String())
		}
	}
	return ret
}

func method(t *testing.T, c *classfile.Class, name string) *classfile.Method {
	ms := c.MethodsNamed(name)
	require.Len(t, ms, 1, "%s.%s", c.Name, name)
	return ms[0]
}

func simpleClass(name string) *classfile.Class {
	c := classfile.NewClass(name, classfile.ObjectClass, classfile.ACC_PUBLIC)
	c.AddMethod(classfile.ACC_STATIC, "a", "()V", classfile.NewBuilder(c.Pool).
		Frame(0, 0).
		Op(classfile.OP_return).
		Build())
	return c
}

func TestContext_Enabled(t *testing.T) {
	ctx := newContext(t, keep.Nothing, "!method/inlining/*,**", simpleClass("pkg/A"))
	require.True(t, ctx.Enabled(ParameterShrinker))
	require.True(t, ctx.Enabled(LineNumberTrimmer))
	require.False(t, ctx.Enabled(TailRecursion))
	require.Equal(t, []string{
		ParameterShrinker,
		MethodStaticizer,
		ReferenceGeneralizer,
		TailRecursion,
		InitializerFixer,
		BootstrapArgShrinker,
		LineNumberTrimmer,
	}, Names())
}

func TestContext_Parallel(t *testing.T) {
	var sum atomic.Int64
	ctx := newContext(t, keep.Nothing, "**", simpleClass("pkg/A"))
	ctx.Parallel(100, func(i int) { sum.Add(int64(i)) })
	require.Equal(t, int64(4950), sum.Load())
	require.PanicsWithValue(t, "boom", func() {
		ctx.Parallel(10, func(i int) {
			if i == 7 {
				panic("boom")
			}
		})
	})
}

func TestContext_CallGraphChanged(t *testing.T) {
	ctx := newContext(t, keep.Nothing, "**", simpleClass("pkg/A"))
	require.False(t, ctx.CallGraphChanged())
	ctx.MarkCallGraphChanged()
	require.True(t, ctx.CallGraphChanged())
	require.False(t, ctx.CallGraphChanged())
}

func TestRescue(t *testing.T) {
	err := Rescue(func() { editor.Violate("broken %d", 1) })
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken 1")
	err = Rescue(func() { panic(classfile.LimitError("constant pool")) })
	require.Error(t, err)
	require.NoError(t, Rescue(func() {}))
	require.Panics(t, func() { _ = Rescue(func() { panic("other") }) })
}

type testPlan struct {
	id       optinfo.MethodID
	accept   bool
	targets  []*classfile.Class
	fail     *classfile.Class
	done     bool
	resolved *[]optinfo.MethodID
}

func (self *testPlan) Method() optinfo.MethodID {
	return self.id
}

func (self *testPlan) Resolve(ctx *Context) bool {
	*self.resolved = append(*self.resolved, self.id)
	return self.accept
}

func (self *testPlan) Targets(ctx *Context) []*classfile.Class {
	return self.targets
}

func (self *testPlan) Apply(ctx *Context, c *classfile.Class) []*classfile.Method {
	m := c.Methods[0]
	m.Code.MaxStack = 99
	c.Pool.Utf8("scratch")
	if c == self.fail {
		editor.Violate("cannot change %s", c.Name)
	}
	return []*classfile.Method{m}
}

func (self *testPlan) Done(ctx *Context) {
	self.done = true
}

func TestChangeSet_Commit(t *testing.T) {
	a, b := simpleClass("pkg/A"), simpleClass("pkg/B")
	ctx := newContext(t, keep.Nothing, "**", a, b)
	resolved := []optinfo.MethodID{}
	plan := func(id optinfo.MethodID, accept bool, fail *classfile.Class) *testPlan {
		return &testPlan{id: id, accept: accept, targets: []*classfile.Class{a, b}, fail: fail, resolved: &resolved}
	}

	/* plans are resolved in method order, refused ones are dropped */
	p1, p0 := plan(1, true, nil), plan(0, false, nil)
	ctx.Changes.Add(p1)
	ctx.Changes.Add(p0)
	require.Equal(t, 2, ctx.Changes.Len())
	ret := ctx.Changes.Commit(ctx)
	require.Equal(t, []optinfo.MethodID{0, 1}, resolved)
	require.Equal(t, 1, ret.Plans)
	require.Len(t, ret.Methods, 2)
	require.Equal(t, []*classfile.Class{a, b}, ret.Classes)
	require.True(t, p1.done)
	require.False(t, p0.done)
	require.Equal(t, 0, ctx.Changes.Len())
}

func TestChangeSet_Rollback(t *testing.T) {
	a, b := simpleClass("pkg/A"), simpleClass("pkg/B")
	ctx := newContext(t, keep.Nothing, "**", a, b)
	na, nb := a.Pool.Len(), b.Pool.Len()

	/* a failure in one target restores every target */
	p := &testPlan{id: 0, accept: true, targets: []*classfile.Class{a, b}, fail: b, resolved: new([]optinfo.MethodID)}
	ctx.Changes.Add(p)
	ret := ctx.Changes.Commit(ctx)
	require.Equal(t, 0, ret.Plans)
	require.Empty(t, ret.Methods)
	require.False(t, p.done)
	require.Equal(t, 0, a.Methods[0].Code.MaxStack)
	require.Equal(t, 0, b.Methods[0].Code.MaxStack)
	require.Equal(t, na, a.Pool.Len())
	require.Equal(t, nb, b.Pool.Len())
	_, ok := a.Pool.Find(classfile.Utf8Constant("scratch"))
	require.False(t, ok)
}

func TestChangeSet_Reserve(t *testing.T) {
	ctx := newContext(t, keep.Nothing, "**", simpleClass("pkg/A"))
	ctx.Changes.Commit(ctx)
	require.True(t, ctx.Changes.Reserve("pkg/A", "f", "()V"))
	require.False(t, ctx.Changes.Reserve("pkg/A", "f", "()V"))
	require.True(t, ctx.Changes.IsReserved("pkg/A", "f", "()V"))
	require.False(t, ctx.Changes.IsReserved("pkg/A", "f", "(I)V"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Add(&Shrink{Owner: "pkg/A", Name: "f", Old: "(II)I", Shrunk: "(I)I", Final: "(I)I", Removed: []int{0}})
	require.Equal(t, 1, r.Len())
	require.Equal(t, "(I)I", r.ByOld("pkg/A", "f", "(II)I").Final)
	require.Nil(t, r.ByOld("pkg/A", "f", "(I)I"))
}

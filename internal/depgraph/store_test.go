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

package depgraph

import (
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/keep"
	"github.com/cloudwego/bcopt/internal/optinfo"
)

const (
	bsmDesc = "(Ljava/lang/Object;Ljava/lang/String;Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;"
)

func library() []*classfile.Class {
	return []*classfile.Class{classfile.NewClass(classfile.ObjectClass, "", classfile.ACC_PUBLIC)}
}

func ret(c *classfile.Class, locals int) *classfile.Code {
	return classfile.NewBuilder(c.Pool).Frame(0, locals).Op(classfile.OP_return).Build()
}

func build(t *testing.T, program ...*classfile.Class) *optinfo.Arena {
	cp, err := classfile.NewClassPool(program, library())
	require.NoError(t, err)
	return optinfo.New(cp, keep.Nothing)
}

func lookup(t *testing.T, arena *optinfo.Arena, owner string, name string, desc string) optinfo.MethodID {
	id, ok := arena.Lookup(owner, name, desc)
	require.True(t, ok, "%s.%s%s", owner, name, desc)
	return id
}

func newProgram(t *testing.T) *optinfo.Arena {
	a := classfile.NewClass("pkg/A", classfile.ObjectClass, classfile.ACC_PUBLIC)
	a.AddMethod(classfile.ACC_PUBLIC, "f", "()V", ret(a, 1))
	a.AddMethod(classfile.ACC_PUBLIC|classfile.ACC_STATIC, "callF", "(Lpkg/A;)V", classfile.NewBuilder(a.Pool).
		Frame(1, 1).
		Op(classfile.OP_aload_0).
		Invoke(classfile.OP_invokevirtual, "pkg/A", "f", "()V").
		Op(classfile.OP_return).
		Build())

	b := classfile.NewClass("pkg/B", "pkg/A", classfile.ACC_PUBLIC)
	b.AddMethod(classfile.ACC_PUBLIC, "f", "()V", ret(b, 1))

	s := classfile.NewClass("pkg/S", classfile.ObjectClass, classfile.ACC_PUBLIC)
	s.AddMethod(classfile.ACC_STATIC, "fact", "(I)I", classfile.NewBuilder(s.Pool).
		Frame(3, 1).
		Op(classfile.OP_iload_0).
		Jump(classfile.OP_ifle, "base").
		Op(classfile.OP_iload_0).
		Op(classfile.OP_iload_0).
		Op(classfile.OP_iconst_1).
		Op(classfile.OP_isub).
		Invoke(classfile.OP_invokestatic, "pkg/S", "fact", "(I)I").
		Op(classfile.OP_imul).
		Op(classfile.OP_ireturn).
		Label("base").
		Op(classfile.OP_iconst_1).
		Op(classfile.OP_ireturn).
		Build())
	s.AddMethod(classfile.ACC_STATIC, "impl", "()V", ret(s, 0))
	s.AddMethod(classfile.ACC_STATIC, "bsm", bsmDesc, classfile.NewBuilder(s.Pool).
		Frame(1, 4).
		Op(classfile.OP_aconst_null).
		Op(classfile.OP_areturn).
		Build())

	h := classfile.NewClass("pkg/H", classfile.ObjectClass, classfile.ACC_PUBLIC)
	bsm := h.Pool.MethodHandle(classfile.REF_invokeStatic, h.Pool.Methodref("pkg/S", "bsm", bsmDesc))
	impl := h.Pool.MethodHandle(classfile.REF_invokeStatic, h.Pool.Methodref("pkg/S", "impl", "()V"))
	h.Attributes = append(h.Attributes, &classfile.BootstrapMethodsAttribute{
		Methods: []classfile.BootstrapMethod{{Handle: bsm, Args: []uint16{impl}}},
	})
	h.AddMethod(classfile.ACC_STATIC, "indy", "()Ljava/lang/Object;", classfile.NewBuilder(h.Pool).
		Frame(1, 0).
		InvokeDynamic(0, "get", "()Ljava/lang/Object;").
		Op(classfile.OP_areturn).
		Build())
	return build(t, s, h, b, a)
}

func TestStore_VirtualCalls(t *testing.T) {
	arena := newProgram(t)
	store := Build(arena)
	callF := lookup(t, arena, "pkg/A", "callF", "(Lpkg/A;)V")
	fa := lookup(t, arena, "pkg/A", "f", "()V")
	fb := lookup(t, arena, "pkg/B", "f", "()V")

	/* the overrider is a possible target of the virtual call */
	for _, id := range []optinfo.MethodID{fa, fb} {
		sites := store.InfluencedBy(id)
		require.Len(t, sites, 1)
		require.Equal(t, callF, sites[0].ID)
		require.Equal(t, "pkg/A", sites[0].Class.Name)
		require.Equal(t, "callF", sites[0].Method.Name)
		require.False(t, sites[0].IsClassLevel())
		require.Equal(t, []optinfo.MethodID{callF}, store.Callers(id))
	}
	require.Equal(t, []optinfo.MethodID{fa, fb}, store.Callees(callF))
	require.Equal(t, []optinfo.MethodID{fa, fb}, store.MethodsSharing(arena.Info(fb)))
	require.Empty(t, store.InfluencedBy(callF))
}

func TestStore_SelfRecursion(t *testing.T) {
	arena := newProgram(t)
	store := Build(arena)
	fact := lookup(t, arena, "pkg/S", "fact", "(I)I")

	require.True(t, store.IsSelfRecursive(fact))
	require.Empty(t, store.Callers(fact))
	sites := store.InfluencedBy(fact)
	require.Len(t, sites, 1)
	require.Equal(t, fact, sites[0].ID)
	require.Equal(t, 4, store.Edges())
}

func TestStore_MethodHandles(t *testing.T) {
	arena := newProgram(t)
	store := Build(arena)
	bsm := lookup(t, arena, "pkg/S", "bsm", bsmDesc)
	impl := lookup(t, arena, "pkg/S", "impl", "()V")

	require.True(t, arena.Info(bsm).RefByBootstrap)
	require.False(t, arena.Info(bsm).RefByHandle)
	require.True(t, arena.Info(impl).RefByHandle)
	require.False(t, arena.Info(impl).RefByBootstrap)

	/* the class holding the handles depends on both */
	for _, id := range []optinfo.MethodID{bsm, impl} {
		sites := store.InfluencedBy(id)
		require.Len(t, sites, 1)
		require.True(t, sites[0].IsClassLevel())
		require.Equal(t, optinfo.MethodID(-1), sites[0].ID)
		require.Equal(t, "pkg/H", sites[0].Class.Name)
		require.Empty(t, store.Callers(id))
		require.Len(t, store.HandleUses(id), 1)
	}

	/* rebuilding starts over */
	arena.MarkReferenced(lookup(t, arena, "pkg/A", "callF", "(Lpkg/A;)V"), false)
	Build(arena)
	require.False(t, arena.Info(lookup(t, arena, "pkg/A", "callF", "(Lpkg/A;)V")).RefByHandle)
}

func TestStore_Propagation(t *testing.T) {
	a := classfile.NewClass("pkg/A", classfile.ObjectClass, classfile.ACC_PUBLIC)
	a.AddField(classfile.ACC_STATIC, "x", "I")
	a.AddMethod(classfile.ACC_STATIC, "w", "()V", classfile.NewBuilder(a.Pool).
		Frame(1, 0).
		Op(classfile.OP_iconst_0).
		Field(classfile.OP_putstatic, "pkg/A", "x", "I").
		Op(classfile.OP_return).
		Build())
	for _, p := range [][2]string{{"u", "w"}, {"v", "u"}, {"p", ""}} {
		bb := classfile.NewBuilder(a.Pool).Frame(0, 0)
		if p[1] != "" {
			bb.Invoke(classfile.OP_invokestatic, "pkg/A", p[1], "()V")
		}
		a.AddMethod(classfile.ACC_STATIC, p[0], "()V", bb.Op(classfile.OP_return).Build())
	}

	arena := build(t, a)
	store := Build(arena)
	arena.PropagateSideEffects(store.Callers)
	require.True(t, arena.Info(lookup(t, arena, "pkg/A", "w", "()V")).SideEffects)
	require.True(t, arena.Info(lookup(t, arena, "pkg/A", "u", "()V")).SideEffects)
	require.True(t, arena.Info(lookup(t, arena, "pkg/A", "v", "()V")).SideEffects)
	require.False(t, arena.Info(lookup(t, arena, "pkg/A", "p", "()V")).SideEffects)
}

func TestStore_Soundness(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		fk := gofakeit.New(seed)
		n := fk.Number(1, 12)
		classes := make([]*classfile.Class, fk.Number(1, 3))
		for i := range classes {
			classes[i] = classfile.NewClass(fmt.Sprintf("pkg/C%d", i), classfile.ObjectClass, classfile.ACC_PUBLIC)
		}

		/* random static calls between random methods */
		for i := 0; i < n; i++ {
			c := classes[i%len(classes)]
			bb := classfile.NewBuilder(c.Pool).Frame(0, 0)
			for j := fk.Number(0, 4); j > 0; j-- {
				k := fk.Number(0, n-1)
				bb.Invoke(classfile.OP_invokestatic, classes[k%len(classes)].Name, fmt.Sprintf("m%d", k), "()V")
			}
			c.AddMethod(classfile.ACC_STATIC, fmt.Sprintf("m%d", i), "()V", bb.Op(classfile.OP_return).Build())
		}

		/* every caller is found */
		arena := build(t, classes...)
		store := Build(arena)
		for id := 0; id < arena.Len(); id++ {
			mb := arena.Member(optinfo.MethodID(id))
			for _, ins := range mb.Method.Code.Instrs {
				if ins.Op != classfile.OP_invokestatic {
					continue
				}
				ref, ok := mb.Class.Pool.MemberRefOf(ins.Index)
				require.True(t, ok)
				callee := lookup(t, arena, ref.Owner, ref.Name, ref.Desc)
				found := false
				for _, s := range store.InfluencedBy(callee) {
					found = found || s.ID == optinfo.MethodID(id)
				}
				require.True(t, found, "seed %d: %s.%s calls %s", seed, mb.Class.Name, mb.Method.Name, ref)
			}
		}
	}
}

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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/keep"
)

func library() []*classfile.Class {
	obj := classfile.NewClass(classfile.ObjectClass, "", classfile.ACC_PUBLIC)
	obj.AddMethod(classfile.ACC_PUBLIC|classfile.ACC_NATIVE, classfile.Initializer, "()V", nil)
	run := classfile.NewClass("java/lang/Runnable", classfile.ObjectClass, classfile.ACC_PUBLIC|classfile.ACC_INTERFACE|classfile.ACC_ABSTRACT)
	run.AddMethod(classfile.ACC_PUBLIC|classfile.ACC_ABSTRACT, "run", "()V", nil)
	return []*classfile.Class{obj, run}
}

func program(t *testing.T, oracle keep.Oracle) *Arena {
	a := classfile.NewClass("pkg/A", classfile.ObjectClass, classfile.ACC_PUBLIC)
	a.AddMethod(classfile.ACC_PUBLIC, classfile.Initializer, "()V", classfile.NewBuilder(a.Pool).
		Frame(1, 1).
		Op(classfile.OP_aload_0).
		Invoke(classfile.OP_invokespecial, classfile.ObjectClass, classfile.Initializer, "()V").
		Op(classfile.OP_return).
		Build())
	a.AddMethod(classfile.ACC_PUBLIC, "f", "(II)I", classfile.NewBuilder(a.Pool).
		Frame(1, 3).
		Op(classfile.OP_iload_2).
		Op(classfile.OP_ireturn).
		Build())

	b := classfile.NewClass("pkg/B", "pkg/A", classfile.ACC_PUBLIC)
	b.AddMethod(classfile.ACC_PUBLIC, "f", "(II)I", classfile.NewBuilder(b.Pool).
		Frame(1, 3).
		Op(classfile.OP_iload_1).
		Op(classfile.OP_ireturn).
		Build())

	r := classfile.NewClass("pkg/R", classfile.ObjectClass, classfile.ACC_PUBLIC)
	r.Interfaces = []string{"java/lang/Runnable"}
	r.AddMethod(classfile.ACC_PUBLIC, "run", "()V", classfile.NewBuilder(r.Pool).
		Frame(0, 1).
		Op(classfile.OP_return).
		Build())

	u := classfile.NewClass("pkg/U", classfile.ObjectClass, classfile.ACC_PUBLIC)
	u.AddField(classfile.ACC_STATIC, "x", "I")
	u.AddMethod(classfile.ACC_STATIC, "g", "(II)I", classfile.NewBuilder(u.Pool).
		Frame(1, 2).
		Op(classfile.OP_iload_1).
		Op(classfile.OP_ireturn).
		Build())
	u.AddMethod(classfile.ACC_STATIC, "h", "()V", classfile.NewBuilder(u.Pool).
		Frame(1, 0).
		Int(1).
		Field(classfile.OP_putstatic, "pkg/U", "x", "I").
		Op(classfile.OP_return).
		Build())
	u.AddMethod(classfile.ACC_STATIC, "k", "()V", classfile.NewBuilder(u.Pool).
		Frame(0, 0).
		Invoke(classfile.OP_invokestatic, "pkg/U", "h", "()V").
		Op(classfile.OP_return).
		Build())

	cp, err := classfile.NewClassPool([]*classfile.Class{u, r, b, a}, library())
	require.NoError(t, err)
	return New(cp, oracle)
}

func lookup(t *testing.T, arena *Arena, owner string, name string, desc string) MethodID {
	id, ok := arena.Lookup(owner, name, desc)
	require.True(t, ok, "%s.%s%s", owner, name, desc)
	return id
}

func TestArena_Identifiers(t *testing.T) {
	arena := program(t, keep.Nothing)
	require.Equal(t, 7, arena.Len())
	require.Equal(t, 4, arena.NumClasses())
	require.Equal(t, MethodID(0), lookup(t, arena, "pkg/A", classfile.Initializer, "()V"))
	require.Equal(t, MethodID(6), lookup(t, arena, "pkg/U", "k", "()V"))
	idx, ok := arena.ClassIndex("pkg/R")
	require.True(t, ok)
	require.Equal(t, 2, idx)

	/* inherited methods resolve to the declaration */
	id, ok := arena.Resolve("pkg/B", classfile.Initializer, "()V")
	require.True(t, ok)
	require.Equal(t, MethodID(0), id)
	id, ok = arena.Resolve("pkg/B", "f", "(II)I")
	require.True(t, ok)
	require.Equal(t, "pkg/B", arena.Member(id).Class.Name)
	_, ok = arena.Lookup(classfile.ObjectClass, classfile.Initializer, "()V")
	require.False(t, ok)
}

func TestArena_Families(t *testing.T) {
	arena := program(t, keep.Nothing)
	fa := lookup(t, arena, "pkg/A", "f", "(II)I")
	fb := lookup(t, arena, "pkg/B", "f", "(II)I")

	/* the override family shares one record */
	info := arena.Info(fa)
	require.Same(t, info, arena.Info(fb))
	require.Equal(t, []MethodID{fa, fb}, info.Members())
	require.False(t, info.Isolated)
	require.Equal(t, []bool{true, true}, info.ParamUsed)
	require.True(t, info.CanBeStatic)

	/* implementing a library interface is never isolated */
	run := arena.Info(lookup(t, arena, "pkg/R", "run", "()V"))
	require.Len(t, run.Members(), 1)
	require.False(t, run.Isolated)

	/* constructors are not virtual */
	init := arena.Info(lookup(t, arena, "pkg/A", classfile.Initializer, "()V"))
	require.True(t, init.Isolated)
	require.False(t, init.CanBeStatic)
}

func TestArena_ParamUsage(t *testing.T) {
	arena := program(t, keep.Nothing)
	info := arena.Info(lookup(t, arena, "pkg/U", "g", "(II)I"))
	require.True(t, info.Isolated)
	require.Equal(t, []bool{false, true}, info.ParamUsed)
	require.False(t, info.IsParamUsed(0))
	require.True(t, info.IsParamUsed(1))
	require.True(t, info.IsParamUsed(5))
	require.False(t, info.CanBeStatic)
}

func TestArena_Refresh(t *testing.T) {
	arena := program(t, keep.Nothing)
	id := lookup(t, arena, "pkg/U", "g", "(II)I")

	/* read the other parameter too */
	m := arena.Member(id).Method
	m.Code = classfile.NewBuilder(arena.Member(id).Class.Pool).
		Frame(2, 2).
		Op(classfile.OP_iload_0).
		Op(classfile.OP_iload_1).
		Op(classfile.OP_iadd).
		Op(classfile.OP_ireturn).
		Build()
	require.Equal(t, []bool{false, true}, arena.Info(id).ParamUsed)
	arena.Refresh([]MethodID{id})
	require.Equal(t, []bool{true, true}, arena.Info(id).ParamUsed)
}

func TestArena_PropagateSideEffects(t *testing.T) {
	arena := program(t, keep.Nothing)
	h := lookup(t, arena, "pkg/U", "h", "()V")
	k := lookup(t, arena, "pkg/U", "k", "()V")
	g := lookup(t, arena, "pkg/U", "g", "(II)I")

	callers := func(id MethodID) []MethodID {
		if id == h {
			return []MethodID{k}
		} else {
			return nil
		}
	}

	/* h writes a static field, k calls h */
	flipped := arena.PropagateSideEffects(callers)
	require.Equal(t, []MethodID{h, k}, flipped)
	require.True(t, arena.Info(h).SideEffects)
	require.True(t, arena.Info(k).SideEffects)
	require.False(t, arena.Info(g).SideEffects)
	require.False(t, arena.Info(lookup(t, arena, "pkg/A", classfile.Initializer, "()V")).SideEffects)

	/* nothing changes the second time */
	require.Empty(t, arena.PropagateSideEffects(callers))
}

func TestArena_IsPureCall(t *testing.T) {
	arena := program(t, keep.Nothing)
	h := lookup(t, arena, "pkg/U", "h", "()V")
	arena.PropagateSideEffects(func(id MethodID) []MethodID { return nil })
	u := arena.Member(h).Class
	a := arena.Member(lookup(t, arena, "pkg/A", "f", "(II)I")).Class

	ref := func(owner string, name string, desc string) classfile.MemberRef {
		return classfile.MemberRef{Tag: classfile.CONSTANT_Methodref, Owner: owner, Name: name, Desc: desc}
	}
	require.True(t, arena.IsPureCall(u, classfile.OP_invokestatic, ref("pkg/U", "g", "(II)I")))
	require.True(t, arena.IsPureCall(a, classfile.OP_invokestatic, ref("pkg/U", "g", "(II)I")))
	require.False(t, arena.IsPureCall(u, classfile.OP_invokestatic, ref("pkg/U", "h", "()V")))
	require.True(t, arena.IsPureCall(a, classfile.OP_invokespecial, ref(classfile.ObjectClass, classfile.Initializer, "()V")))
	require.False(t, arena.IsPureCall(a, classfile.OP_invokestatic, ref("pkg/Z", "f", "()V")))

	/* a class with a static initializer may run it */
	arena.Class("pkg/U").HasInitializer = true
	require.True(t, arena.Initializes(a, "pkg/U"))
	require.False(t, arena.Initializes(u, "pkg/U"))
	require.False(t, arena.IsPureCall(a, classfile.OP_invokestatic, ref("pkg/U", "g", "(II)I")))
	require.True(t, arena.IsPureCall(u, classfile.OP_invokestatic, ref("pkg/U", "g", "(II)I")))
}

func TestArena_KeptOverridesDerivedFacts(t *testing.T) {
	arena := program(t, keep.NewRules([]keep.Rule{{Class: "pkg/U", Member: "g"}}))
	id := lookup(t, arena, "pkg/U", "g", "(II)I")
	info := arena.Info(id)
	require.True(t, info.Kept)
	require.False(t, info.Isolated)
	require.Equal(t, []bool{true, true}, info.ParamUsed)

	arena.PropagateSideEffects(func(MethodID) []MethodID { return nil })
	require.True(t, info.SideEffects)
}

func TestArena_References(t *testing.T) {
	arena := program(t, keep.Nothing)
	fa := lookup(t, arena, "pkg/A", "f", "(II)I")
	fb := lookup(t, arena, "pkg/B", "f", "(II)I")

	arena.MarkReferenced(fb, true)
	require.True(t, arena.Info(fa).RefByBootstrap)
	require.False(t, arena.Info(fa).RefByHandle)

	arena.ResetReferences()
	require.False(t, arena.Info(fa).RefByBootstrap)
}

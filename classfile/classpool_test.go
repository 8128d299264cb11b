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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func newLibrary() []*Class {
	obj := NewClass(ObjectClass, "", ACC_PUBLIC)
	obj.AddMethod(ACC_PUBLIC, "toString", "()Ljava/lang/String;", nil)
	run := NewClass("java/lang/Runnable", ObjectClass, ACC_PUBLIC|ACC_INTERFACE|ACC_ABSTRACT)
	run.AddMethod(ACC_PUBLIC|ACC_ABSTRACT, "run", "()V", nil)
	return []*Class{obj, run, NewClass("java/lang/String", ObjectClass, ACC_PUBLIC|ACC_FINAL)}
}

func ret(c *Class) *Code {
	return NewBuilder(c.Pool).Frame(0, 1).Op(OP_return).Build()
}

func TestClassPool_Hierarchy(t *testing.T) {
	a := NewClass("pkg/A", ObjectClass, ACC_PUBLIC)
	a.Interfaces = []string{"java/lang/Runnable"}
	a.AddMethod(ACC_PUBLIC, "run", "()V", ret(a))
	a.AddMethod(ACC_PUBLIC, "f", "()V", ret(a))
	b := NewClass("pkg/B", "pkg/A", ACC_PUBLIC)
	b.AddMethod(ACC_PUBLIC, "f", "()V", ret(b))
	c := NewClass("pkg/C", "pkg/B", ACC_PUBLIC)

	cp, err := NewClassPool([]*Class{c, b, a}, newLibrary())
	require.NoError(t, err)
	require.Equal(t, []*Class{a, b, c}, cp.Program())
	require.False(t, a.Library)
	require.True(t, cp.Get(ObjectClass).Library)

	require.True(t, cp.IsSubclassOf("pkg/C", "pkg/A"))
	require.True(t, cp.IsSubclassOf("pkg/C", "java/lang/Runnable"))
	require.True(t, cp.IsSubclassOf("pkg/A", "pkg/A"))
	require.False(t, cp.IsSubclassOf("pkg/A", "pkg/B"))
	require.Equal(t, []*Class{b, c}, cp.Subtypes("pkg/A"))
	require.Equal(t, []*Class{a, b, c}, cp.Subtypes("java/lang/Runnable"))

	dc, m := cp.ResolveMethod("pkg/C", "f", "()V")
	require.Equal(t, b, dc)
	require.Equal(t, b.Methods[0], m)
	dc, _ = cp.ResolveMethod("pkg/C", "toString", "()Ljava/lang/String;")
	require.Equal(t, ObjectClass, dc.Name)
	dc, _ = cp.ResolveMethod("pkg/C", "missing", "()V")
	require.Nil(t, dc)
	require.Equal(t, []*Method{b.Methods[0]}, cp.Overriders("pkg/A", "f", "()V"))
}

func TestClassPool_ResolveInterfaceMethod(t *testing.T) {
	i := NewClass("pkg/I", ObjectClass, ACC_PUBLIC|ACC_INTERFACE|ACC_ABSTRACT)
	i.AddMethod(ACC_PUBLIC, "g", "()V", ret(i))
	a := NewClass("pkg/A", ObjectClass, ACC_PUBLIC)
	a.Interfaces = []string{"pkg/I"}
	a.AddField(ACC_PUBLIC, "x", "I")
	b := NewClass("pkg/B", "pkg/A", ACC_PUBLIC)
	cp, err := NewClassPool([]*Class{i, a, b}, newLibrary())
	require.NoError(t, err)
	dc, _ := cp.ResolveMethod("pkg/B", "g", "()V")
	require.Equal(t, i, dc)
	dc, f := cp.ResolveField("pkg/B", "x", "I")
	require.Equal(t, a, dc)
	require.Equal(t, a.Fields[0], f)
}

func TestClassPool_Validation(t *testing.T) {
	a := NewClass("pkg/A", "pkg/Missing", ACC_PUBLIC)
	a.Interfaces = []string{"pkg/Gone"}
	code := NewBuilder(a.Pool).Frame(0, 1).
		Invoke(OP_invokestatic, "pkg/Nowhere", "f", "()V").
		Op(OP_return).
		Build()
	a.AddMethod(ACC_PUBLIC, "f", "()V", code)
	a.AddMethod(ACC_PUBLIC, "g", "()V", nil)
	a.AddMethod(ACC_PUBLIC, "h", "(I", nil)
	dup := NewClass("pkg/A", ObjectClass, ACC_PUBLIC)
	_, err := NewClassPool([]*Class{a, dup}, newLibrary())
	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 6)
	for _, e := range errs {
		require.IsType(t, ModelError{}, e)
	}
}

func TestClassPool_BadOperands(t *testing.T) {
	a := NewClass("pkg/A", ObjectClass, ACC_PUBLIC)
	code := NewBuilder(a.Pool).Frame(0, 1).Op(OP_return).Build()
	code.Instrs = append([]Instr{{Op: OP_getstatic, Index: a.Pool.Utf8("x")}}, code.Instrs...)
	code.Handlers = append(code.Handlers, ExceptionHandler{StartPC: 0, EndPC: 0, HandlerPC: 0})
	a.AddMethod(ACC_PUBLIC, "f", "()V", code)
	_, err := NewClassPool([]*Class{a}, newLibrary())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
}

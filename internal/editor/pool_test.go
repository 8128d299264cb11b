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

package editor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/bcopt/classfile"
)

func TestPool_Derive(t *testing.T) {
	cp := classfile.NewConstantPool()
	ep := NewPool(cp)
	ref := ep.MemberRef(classfile.CONSTANT_Methodref, "pkg/B", "f", "(II)V")

	/* another descriptor */
	d := ep.WithDescriptor(ref, "(I)V")
	r, ok := cp.MemberRefOf(d)
	require.True(t, ok)
	require.Equal(t, classfile.MemberRef{Tag: classfile.CONSTANT_Methodref, Owner: "pkg/B", Name: "f", Desc: "(I)V"}, r)
	require.Equal(t, d, ep.WithDescriptor(ref, "(I)V"))

	/* another owner */
	o := ep.WithOwner(ref, "pkg/I", true)
	r, _ = cp.MemberRefOf(o)
	require.Equal(t, classfile.CONSTANT_InterfaceMethodref, r.Tag)
	require.Equal(t, "pkg/I", r.Owner)

	/* handles */
	h := ep.MethodHandle(classfile.REF_invokeStatic, d)
	kind, r, ok := cp.HandleTarget(h)
	require.True(t, ok)
	require.Equal(t, uint8(classfile.REF_invokeStatic), kind)
	require.Equal(t, "(I)V", r.Desc)

	require.Panics(t, func() { ep.WithDescriptor(cp.Utf8("x"), "()V") })
}

func TestRemapConstants(t *testing.T) {
	cp := classfile.NewConstantPool()
	code := classfile.NewBuilder(cp).Frame(1, 0).
		String("a").
		Op(classfile.OP_pop).
		Op(classfile.OP_return).
		Build()
	code.Attributes = []classfile.Attribute{&classfile.RawAttribute{Name: classfile.AttrStackMapTable}}
	for i := 0; i < 300; i++ {
		cp.Integer(int32(i))
	}
	s := cp.String("b")
	require.True(t, RemapConstants(code, func(ins *classfile.Instr) uint16 { return s }))
	require.Equal(t, s, code.Instrs[0].Index)
	require.Equal(t, 3, code.Instrs[1].Offset)
	require.Equal(t, 5, code.Length)
	require.Empty(t, code.Attributes)
	require.False(t, RemapConstants(code, func(ins *classfile.Instr) uint16 { return ins.Index }))
}

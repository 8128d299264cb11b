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

func TestConstantPool_Dedup(t *testing.T) {
	cp := NewConstantPool()
	a := cp.Methodref("pkg/A", "f", "(I)V")
	n := cp.Len()
	require.Equal(t, a, cp.Methodref("pkg/A", "f", "(I)V"))
	require.Equal(t, n, cp.Len())
	require.NotEqual(t, a, cp.InterfaceMethodref("pkg/A", "f", "(I)V"))
	ref, ok := cp.MemberRefOf(a)
	require.True(t, ok)
	require.Equal(t, MemberRef{Tag: CONSTANT_Methodref, Owner: "pkg/A", Name: "f", Desc: "(I)V"}, ref)
}

func TestConstantPool_WideEntries(t *testing.T) {
	cp := NewConstantPool()
	i := cp.Long(42)
	j := cp.Integer(42)
	require.Equal(t, uint16(1), i)
	require.Equal(t, uint16(3), j)
	require.Equal(t, int64(42), cp.Get(i).Long())
	require.Equal(t, Tag(0), cp.Get(2).Tag)
	require.Equal(t, i, cp.Long(42))
	require.NoError(t, cp.Validate())
}

func TestConstantPool_Truncate(t *testing.T) {
	cp := NewConstantPool()
	cp.Utf8("keep")
	n := cp.Len()
	cp.Methodref("pkg/A", "f", "()V")
	cp.Truncate(n)
	require.Equal(t, n, cp.Len())
	_, ok := cp.Find(Utf8Constant("pkg/A"))
	require.False(t, ok)
	_, ok = cp.Find(Utf8Constant("keep"))
	require.True(t, ok)
	require.Equal(t, uint16(n), cp.Utf8("pkg/A"))
}

func TestConstantPool_Validate(t *testing.T) {
	cp := NewConstantPool()
	s := cp.Utf8("x")
	cp.Append(ClassConstant(s))
	cp.Append(MemberRefConstant(CONSTANT_Methodref, s, s))
	cp.Append(MethodHandleConstant(42, 2))
	err := cp.Validate()
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 3)
}

func TestConstantPool_Clone(t *testing.T) {
	cp := NewConstantPool()
	cp.String("hello")
	cc := cp.Clone()
	cc.String("world")
	require.Equal(t, 3, cp.Len())
	require.Equal(t, 5, cc.Len())
	require.Equal(t, uint16(2), cc.String("hello"))
}

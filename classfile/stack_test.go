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
)

func TestCode_StackDepths(t *testing.T) {
	cp := NewConstantPool()
	code := NewBuilder(cp).
		Frame(4, 2).
		Op(OP_iload_0).
		Jump(OP_ifle, "base").
		Op(OP_iload_0).
		Op(OP_iload_0).
		Op(OP_iconst_1).
		Op(OP_isub).
		Invoke(OP_invokestatic, "pkg/S", "fact", "(I)I").
		Op(OP_imul).
		Op(OP_ireturn).
		Label("base").
		Long(1).
		Op(OP_l2i).
		Op(OP_ireturn).
		Label("dead").
		Op(OP_nop).
		Build()

	depths, err := code.StackDepths(cp)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 0, 1, 2, 3, 2, 2, 1, 0, 2, 1, -1}, depths)
}

func TestCode_StackDepthsHandlers(t *testing.T) {
	cp := NewConstantPool()
	code := NewBuilder(cp).
		Frame(2, 1).
		Label("start").
		Field(OP_getstatic, "pkg/A", "x", "J").
		Op(OP_pop2).
		Label("end").
		Op(OP_return).
		Label("catch").
		Op(OP_athrow).
		Try("start", "end", "catch", "").
		Build()

	depths, err := code.StackDepths(cp)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2, 0, 1}, depths)
}

func TestCode_StackDepthsErrors(t *testing.T) {
	cp := NewConstantPool()
	_, err := NewBuilder(cp).Frame(1, 1).Op(OP_pop).Op(OP_return).Build().StackDepths(cp)
	require.Error(t, err)
	require.Contains(t, err.Error(), "underflow")

	/* the two paths disagree */
	_, err = NewBuilder(cp).
		Frame(2, 1).
		Op(OP_iload_0).
		Jump(OP_ifeq, "join").
		Op(OP_iconst_1).
		Label("join").
		Op(OP_return).
		Build().
		StackDepths(cp)
	require.Error(t, err)
	require.Contains(t, err.Error(), "inconsistent")
}

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

func TestDescriptor_Parse(t *testing.T) {
	d, err := ParseMethodDescriptor("(IJ[Ljava/lang/String;D)Z")
	require.NoError(t, err)
	require.Equal(t, []string{"I", "J", "[Ljava/lang/String;", "D"}, d.Params)
	require.Equal(t, "Z", d.Return)
	require.Equal(t, 6, d.ArgSlots())
	require.Equal(t, 2, d.ParamSlot(1, false))
	require.Equal(t, 3, d.ParamSlot(2, true))
	require.Equal(t, "(IJ[Ljava/lang/String;D)Z", d.String())
	require.Equal(t, OP_ireturn, d.ReturnOpcode())
}

func TestDescriptor_Invalid(t *testing.T) {
	for _, s := range []string{"", "()", "I", "(I", "(L;)V", "(Q)V", "()VV", "([)V"} {
		_, err := ParseMethodDescriptor(s)
		require.Error(t, err, s)
	}
	require.True(t, IsFieldDescriptor("[[J"))
	require.False(t, IsFieldDescriptor("V"))
}

func TestDescriptor_Without(t *testing.T) {
	d := MustParseMethodDescriptor("(IJLjava/lang/Object;)V")
	require.Equal(t, "(J)V", d.Without([]int{0, 2}).String())
	require.Equal(t, "(IJLjava/lang/Object;)V", d.Without(nil).String())
	require.Equal(t, "(JI)V", d.Without([]int{0, 2}).With("I").String())
	require.Equal(t, "(IJLjava/lang/Object;)V", d.String())
}

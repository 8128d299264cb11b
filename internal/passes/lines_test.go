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

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/keep"
)

func TestLineNumberTrimmer(t *testing.T) {
	c := classfile.NewClass("pkg/L", classfile.ObjectClass, classfile.ACC_PUBLIC)
	m := c.AddMethod(classfile.ACC_STATIC, "f", "()V", classfile.NewBuilder(c.Pool).
		Frame(1, 1).
		Int(1).
		Op(classfile.OP_istore_0).
		Int(1000).
		Op(classfile.OP_pop).
		Op(classfile.OP_return).
		Build())
	require.Equal(t, 7, m.Code.Length)
	m.Code.LineNumbers = []classfile.LineNumber{
		{StartPC: 5, Line: 10},
		{StartPC: 0, Line: 1},
		{StartPC: -1, Line: 3},
		{StartPC: 3, Line: 7},
		{StartPC: 2, Line: 4},
		{StartPC: 2, Line: 5},
		{StartPC: 100, Line: 9},
	}

	ctx := newContext(t, keep.Nothing, "**", c)
	require.Equal(t, 1, run(ctx, new(lineNumberTrimmer)))
	require.Equal(t, []classfile.LineNumber{
		{StartPC: 0, Line: 1},
		{StartPC: 2, Line: 5},
		{StartPC: 5, Line: 10},
	}, m.Code.LineNumbers)
	require.Equal(t, 0, run(ctx, new(lineNumberTrimmer)))
	verify(t, ctx)
}

func TestLineNumberTrimmer_Empty(t *testing.T) {
	c := simpleClass("pkg/L")
	m := c.Methods[0]
	m.Code.LineNumbers = []classfile.LineNumber{{StartPC: 4, Line: 1}}
	ctx := newContext(t, keep.Nothing, "**", c)
	require.Equal(t, 1, run(ctx, new(lineNumberTrimmer)))
	require.Nil(t, m.Code.LineNumbers)
	require.Equal(t, 0, run(ctx, new(lineNumberTrimmer)))
}

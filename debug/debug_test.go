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

package debug

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/driver"
	"github.com/cloudwego/bcopt/internal/keep"
	"github.com/cloudwego/bcopt/internal/opts"
)

func TestGetStats(t *testing.T) {
	obj := classfile.NewClass(classfile.ObjectClass, "", classfile.ACC_PUBLIC)
	c := classfile.NewClass("pkg/A", classfile.ObjectClass, classfile.ACC_PUBLIC)
	c.AddMethod(classfile.ACC_STATIC, "f", "()I", classfile.NewBuilder(c.Pool).
		Frame(1, 0).
		Int(1).
		Op(classfile.OP_ireturn).
		Build())
	pool, err := classfile.NewClassPool([]*classfile.Class{c}, []*classfile.Class{obj})
	require.NoError(t, err)

	before := GetStats()
	o := opts.Options{MaxPasses: 3, Parallelism: 1, Optimizations: "**"}
	ret := driver.New(pool, o, keep.Nothing, nil).Run()
	after := GetStats()

	require.Equal(t, before.Runs+1, after.Runs)
	require.Equal(t, before.Passes+ret.Passes, after.Passes)
	require.Equal(t, before.Edits.Applied+ret.Changes(), after.Edits.Applied)
	require.Equal(t, before.Edits.RolledBack, after.Edits.RolledBack)
}

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

package keep

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRules(t *testing.T) {
	r := NewRules([]Rule{
		{Class: "pkg/Main"},
		{Class: "pkg/api/*", Member: "*"},
		{Class: "pkg/**", Member: "main", Descriptor: "([Ljava/lang/String;)V"},
	})
	require.True(t, r.IsClassKept("pkg/Main"))
	require.True(t, r.IsClassKept("pkg/api/Service"))
	require.True(t, r.IsClassKept("pkg/impl/Worker"))
	require.False(t, r.IsClassKept("other/Thing"))

	require.False(t, r.IsMemberKept("pkg/Main", "run", "()V"))
	require.True(t, r.IsMemberKept("pkg/Main", "main", "([Ljava/lang/String;)V"))
	require.False(t, r.IsMemberKept("pkg/Main", "main", "()V"))
	require.True(t, r.IsMemberKept("pkg/api/Service", "call", "(I)I"))
	require.False(t, r.IsMemberKept("pkg/api/impl/Service", "call", "(I)I"))
}

func TestPredefined(t *testing.T) {
	require.False(t, Nothing.IsClassKept("a"))
	require.False(t, Nothing.IsMemberKept("a", "b", "()V"))
	require.True(t, Everything.IsClassKept("a"))
	require.True(t, Everything.IsMemberKept("a", "b", "()V"))
}

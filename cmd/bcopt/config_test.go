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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/bcopt"
)

const sample = `
passes = 3
optimizations = "!method/inlining/*,**"
exhaustive = true
library = ["rt"]

[[keep]]
class = "com/example/Main"
member = "main"
descriptor = "([Ljava/lang/String;)V"

[[keep]]
class = "com/example/api/**"
`

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(sample))
	require.NoError(t, err)
	require.Equal(t, &Config{
		MaxPasses:     3,
		Optimizations: "!method/inlining/*,**",
		Exhaustive:    true,
		Library:       []string{"rt"},
		Keep: []bcopt.KeepRule{
			{Class: "com/example/Main", Member: "main", Descriptor: "([Ljava/lang/String;)V"},
			{Class: "com/example/api/**"},
		},
	}, c)
	require.Len(t, c.Options(), 4)
}

func TestParseConfig_Errors(t *testing.T) {
	for _, src := range []string{
		"passes = -1",
		"parallelism = -2",
		"unknown = 1",
		"passes = \"three\"",
		"[[keep]]\nmember = \"f\"",
	} {
		_, err := ParseConfig([]byte(src))
		require.Error(t, err, src)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bcopt.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0644))
	c, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 3, c.MaxPasses)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

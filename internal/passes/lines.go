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
	"sort"

	"github.com/cloudwego/bcopt/classfile"
)

// lineNumberTrimmer removes line number entries that no longer start at an
// instruction, and keeps the table ordered by offset.
type lineNumberTrimmer struct{}

func (lineNumberTrimmer) Name() string {
	return LineNumberTrimmer
}

func (lineNumberTrimmer) VisitMethod(ctx *Context, c *classfile.Class, m *classfile.Method) bool {
	code := m.Code
	lines := make([]classfile.LineNumber, 0, len(code.LineNumbers))

	/* keep the entries that start at an instruction */
	for _, ln := range code.LineNumbers {
		if ln.StartPC >= 0 && ln.StartPC < code.Length && code.IsBoundary(ln.StartPC) {
			lines = append(lines, ln)
		}
	}

	/* order by offset, the last entry for an offset wins */
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].StartPC < lines[j].StartPC
	})
	for i := 0; i+1 < len(lines); {
		if lines[i].StartPC == lines[i+1].StartPC {
			lines = append(lines[:i], lines[i+1:]...)
		} else {
			i++
		}
	}

	/* check for changes */
	if len(lines) == len(code.LineNumbers) {
		same := true
		for i := range lines {
			same = same && lines[i] == code.LineNumbers[i]
		}
		if same {
			return false
		}
	}
	if len(lines) == 0 {
		lines = nil
	}
	code.LineNumbers = lines
	return true
}

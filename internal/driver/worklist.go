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

package driver

import (
	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/optinfo"
)

// worklist is the set of methods and classes a pass visits. The nil
// worklist covers the whole program.
type worklist struct {
	methods map[*classfile.Method]bool
	classes map[*classfile.Class]bool
}

func newWorklist() *worklist {
	return &worklist{
		methods: make(map[*classfile.Method]bool),
		classes: make(map[*classfile.Class]bool),
	}
}

func (self *worklist) add(mb optinfo.Member) {
	self.methods[mb.Method] = true
	self.classes[mb.Class] = true
}

func (self *worklist) hasMethod(m *classfile.Method) bool {
	return self == nil || self.methods[m]
}

func (self *worklist) hasClass(c *classfile.Class) bool {
	return self == nil || self.classes[c]
}

// size counts the method bodies on the worklist.
func (self *worklist) size(pool *classfile.ClassPool) int {
	n := 0
	for _, c := range pool.Program() {
		for _, m := range c.Methods {
			if m.Code != nil && self.hasMethod(m) {
				n++
			}
		}
	}
	return n
}

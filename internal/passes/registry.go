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
	"sync"
)

// Shrink records a descriptor change made by the parameter shrinker.
//
// Shrunk is the descriptor with the unused parameters removed. Final is
// the descriptor the method actually got, which differs from Shrunk when a
// constructor needed a dummy parameter to stay distinct. Static is set when
// the method lost its receiver.
type Shrink struct {
	Owner   string
	Name    string
	Old     string
	Shrunk  string
	Final   string
	Removed []int
	Static  bool
}

type memberKey struct {
	owner string
	name  string
	desc  string
}

// Registry holds every descriptor change of a run.
type Registry struct {
	mu    sync.RWMutex
	all   []*Shrink
	byOld map[memberKey]*Shrink
}

func NewRegistry() *Registry {
	return &Registry{
		byOld: make(map[memberKey]*Shrink),
	}
}

func (self *Registry) Add(s *Shrink) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.all = append(self.all, s)
	self.byOld[memberKey{s.Owner, s.Name, s.Old}] = s
}

// ByOld finds the change of the method that used to have descriptor desc.
func (self *Registry) ByOld(owner string, name string, desc string) *Shrink {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return self.byOld[memberKey{owner, name, desc}]
}

func (self *Registry) Len() int {
	self.mu.RLock()
	defer self.mu.RUnlock()
	return len(self.all)
}

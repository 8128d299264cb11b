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

package depgraph

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/cloudwego/bcopt/classfile"
	"github.com/cloudwego/bcopt/internal/optinfo"
)

// Site is something that depends on a method: another method, or a class
// whose constant pool or bootstrap method table refers to it (Method is nil).
type Site struct {
	Class  *classfile.Class
	Method *classfile.Method
	ID     optinfo.MethodID
}

// IsClassLevel reports whether the site is a class rather than a method.
func (self Site) IsClassLevel() bool {
	return self.Method == nil
}

// Store is the reverse dependency index of the program. It is built from a
// single scan of the program and is read-only afterwards.
type Store struct {
	arena   *optinfo.Arena
	classes []*classfile.Class
	graph   *simple.DirectedGraph
	self    map[optinfo.MethodID]bool
	edges   int
}

// Build scans every program method and constant pool.
func Build(arena *optinfo.Arena) *Store {
	pool := arena.Pool()
	ret := &Store{
		arena:   arena,
		classes: pool.Program(),
		graph:   simple.NewDirectedGraph(),
		self:    make(map[optinfo.MethodID]bool),
	}

	/* one node per method and per class */
	for i := 0; i < arena.Len()+len(ret.classes); i++ {
		ret.graph.AddNode(simple.Node(i))
	}

	/* scan every method body */
	arena.ResetReferences()
	for id := 0; id < arena.Len(); id++ {
		ret.scanMethod(optinfo.MethodID(id))
	}

	/* scan every method handle */
	for i, c := range ret.classes {
		ret.scanHandles(int64(arena.Len()+i), c)
	}
	return ret
}

func (self *Store) link(from int64, to optinfo.MethodID) {
	if from == int64(to) {
		self.self[to] = true
	} else if !self.graph.HasEdgeFromTo(from, int64(to)) {
		self.edges++
		self.graph.SetEdge(self.graph.NewEdge(simple.Node(from), simple.Node(to)))
	}
}

func (self *Store) scanMethod(id optinfo.MethodID) {
	mb := self.arena.Member(id)
	if mb.Method.Code == nil {
		return
	}

	/* every invocation */
	for _, ins := range mb.Method.Code.Instrs {
		switch ins.Op {
		case classfile.OP_invokestatic, classfile.OP_invokespecial, classfile.OP_invokevirtual, classfile.OP_invokeinterface:
			ref, ok := mb.Class.Pool.MemberRefOf(ins.Index)
			if !ok {
				continue
			}

			/* the resolved target */
			if callee, ok := self.arena.Resolve(ref.Owner, ref.Name, ref.Desc); ok {
				self.link(int64(id), callee)
			}

			/* every program method the call may dispatch to */
			if ins.Op == classfile.OP_invokevirtual || ins.Op == classfile.OP_invokeinterface {
				for _, m := range self.arena.Pool().Overriders(ref.Owner, ref.Name, ref.Desc) {
					if callee, ok := self.arena.ID(m); ok {
						self.link(int64(id), callee)
					}
				}
			}
		}
	}
}

func (self *Store) scanHandles(node int64, c *classfile.Class) {
	bsm := make(map[uint16]bool)
	if bt := c.BootstrapMethods(); bt != nil {
		for _, m := range bt.Methods {
			bsm[m.Handle] = true
		}
	}

	/* every method handle in the pool */
	for i := 1; i < c.Pool.Len(); i++ {
		idx := uint16(i)
		if c.Pool.Get(idx).Tag != classfile.CONSTANT_MethodHandle {
			continue
		}

		/* only method handles matter */
		kind, ref, ok := c.Pool.HandleTarget(idx)
		if !ok || kind < classfile.REF_invokeVirtual {
			continue
		}

		/* find the target */
		callee, ok := self.arena.Resolve(ref.Owner, ref.Name, ref.Desc)
		if !ok {
			continue
		}

		/* a handle can be used both as a bootstrap method and elsewhere */
		self.link(node, callee)
		self.arena.MarkReferenced(callee, bsm[idx])
		if bsm[idx] && self.usedElsewhere(c, idx) {
			self.arena.MarkReferenced(callee, false)
		}
	}
}

func (self *Store) usedElsewhere(c *classfile.Class, idx uint16) bool {
	if bt := c.BootstrapMethods(); bt != nil {
		for _, m := range bt.Methods {
			for _, arg := range m.Args {
				if arg == idx {
					return true
				}
			}
		}
	}
	for _, m := range c.Methods {
		if m.Code != nil {
			for _, ins := range m.Code.Instrs {
				if ins.Op == classfile.OP_ldc && ins.Index == idx {
					return true
				}
			}
		}
	}
	return false
}

func (self *Store) site(node int64) Site {
	if n := int64(self.arena.Len()); node >= n {
		return Site{Class: self.classes[node-n], ID: -1}
	} else {
		mb := self.arena.Member(optinfo.MethodID(node))
		return Site{Class: mb.Class, Method: mb.Method, ID: optinfo.MethodID(node)}
	}
}

func sortedIDs(it graph.Nodes) []int64 {
	ret := make([]int64, 0, it.Len())
	for it.Next() {
		ret = append(ret, it.Node().ID())
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// InfluencedBy returns every site that depends on the method, ordered by
// method ID with class-level sites last.
func (self *Store) InfluencedBy(id optinfo.MethodID) []Site {
	var ret []Site
	var rec = self.self[id]

	/* all the predecessors */
	for _, v := range sortedIDs(self.graph.To(int64(id))) {
		if rec && v > int64(id) {
			ret = append(ret, self.site(int64(id)))
			rec = false
		}
		ret = append(ret, self.site(v))
	}

	/* a recursive method depends on itself */
	if rec {
		ret = append(ret, self.site(int64(id)))
	}
	return ret
}

// Callers returns every method that may call the method, in ID order.
func (self *Store) Callers(id optinfo.MethodID) []optinfo.MethodID {
	var ret []optinfo.MethodID
	for _, v := range sortedIDs(self.graph.To(int64(id))) {
		if v < int64(self.arena.Len()) {
			ret = append(ret, optinfo.MethodID(v))
		}
	}
	return ret
}

// Callees returns every method the method may call, in ID order.
func (self *Store) Callees(id optinfo.MethodID) []optinfo.MethodID {
	var ret []optinfo.MethodID
	for _, v := range sortedIDs(self.graph.From(int64(id))) {
		ret = append(ret, optinfo.MethodID(v))
	}
	return ret
}

// MethodsSharing returns every method whose optimization info is info.
func (self *Store) MethodsSharing(info *optinfo.MethodInfo) []optinfo.MethodID {
	return append([]optinfo.MethodID(nil), info.Members()...)
}

// HandleUses returns the classes referring to the method through a method handle.
func (self *Store) HandleUses(id optinfo.MethodID) []*classfile.Class {
	var ret []*classfile.Class
	for _, v := range sortedIDs(self.graph.To(int64(id))) {
		if v >= int64(self.arena.Len()) {
			ret = append(ret, self.classes[v-int64(self.arena.Len())])
		}
	}
	return ret
}

// IsSelfRecursive reports whether the method calls itself.
func (self *Store) IsSelfRecursive(id optinfo.MethodID) bool {
	return self.self[id]
}

// Edges returns the number of dependency edges, excluding self calls.
func (self *Store) Edges() int {
	return self.edges
}

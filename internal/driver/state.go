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
	"fmt"
)

// State is the state of a driver run.
type State int

const (
	Idle State = iota
	Running
	Converged
	Exhausted
)

var stateNames = [...]string{
	Idle:      "idle",
	Running:   "running",
	Converged: "converged",
	Exhausted: "exhausted",
}

func (self State) String() string {
	if self >= 0 && int(self) < len(stateNames) {
		return stateNames[self]
	} else {
		return fmt.Sprintf("State(%d)", int(self))
	}
}

// PassStats describes one pass.
type PassStats struct {
	Index      int
	Visited    int
	Changes    map[string]int
	Total      int
	Refusals   int64
	Violations int
	Rebuilt    bool
}

// Result is the outcome of a run.
type Result struct {
	State  State
	Passes int
	Stats  []PassStats
}

// Changes returns the total number of changes of every pass.
func (self Result) Changes() int {
	n := 0
	for _, st := range self.Stats {
		n += st.Total
	}
	return n
}

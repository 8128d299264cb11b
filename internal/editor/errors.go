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

package editor

import (
	"fmt"
)

// ConsistencyError is raised with panic when an edit would leave the code in
// an inconsistent state. It always denotes a defect in the caller.
type ConsistencyError struct {
	Reason string
}

func (self *ConsistencyError) Error() string {
	return "internal consistency violation: " + self.Reason
}

// Violate panics with a *ConsistencyError.
func Violate(format string, args ...interface{}) {
	panic(&ConsistencyError{Reason: fmt.Sprintf(format, args...)})
}

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

package classfile

import (
	"fmt"
)

// FormatError occurs when the binary class file is malformed.
type FormatError struct {
	Offset int
	Reason string
}

func (self FormatError) Error() string {
	return fmt.Sprintf("class format error at offset %d: %s", self.Offset, self.Reason)
}

// ModelError occurs when a class pool is not a closed, well-formed world.
type ModelError struct {
	Class  string
	Reason string
}

func (self ModelError) Error() string {
	if self.Class == "" {
		return "invalid model: " + self.Reason
	} else {
		return fmt.Sprintf("invalid model (class %s): %s", self.Class, self.Reason)
	}
}

// LimitError is raised (as a panic) when an edit would exceed a class file limit.
type LimitError string

func (self LimitError) Error() string {
	return "class file limit exceeded: " + string(self)
}

func emodel(class string, format string, args ...interface{}) ModelError {
	return ModelError{
		Class:  class,
		Reason: fmt.Sprintf(format, args...),
	}
}

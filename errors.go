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

package bcopt

import (
	"fmt"
)

// FileError occurs when a class file cannot be read, parsed or written.
type FileError struct {
	Path string
	Err  error
}

func (self FileError) Error() string {
	return fmt.Sprintf("%s: %v", self.Path, self.Err)
}

func (self FileError) Unwrap() error {
	return self.Err
}

// DuplicateError occurs when two class files define the same class.
type DuplicateError struct {
	Class string
	Paths [2]string
}

func (self DuplicateError) Error() string {
	return fmt.Sprintf("class %s is defined by both %s and %s", self.Class, self.Paths[0], self.Paths[1])
}

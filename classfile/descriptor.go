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
	"errors"
	"fmt"
	"strings"
)

var (
	errInvalidDescriptor = errors.New("invalid descriptor")
)

// MethodDescriptor is a parsed method descriptor, each type kept in its
// field descriptor form (e.g. "I", "[J", "Ljava/lang/String;").
type MethodDescriptor struct {
	Params []string
	Return string
}

// SlotSize returns the number of local variable slots taken by a value of type t.
func SlotSize(t string) int {
	if t == "J" || t == "D" {
		return 2
	} else {
		return 1
	}
}

// IsPrimitive reports whether t is a primitive (non-reference) field type.
func IsPrimitive(t string) bool {
	return len(t) == 1 && strings.IndexByte("BCDFIJSZ", t[0]) >= 0
}

func parseFieldType(s string, i int) (int, error) {
	p := i

	/* skip array dimensions */
	for p < len(s) && s[p] == '[' {
		p++
	}

	/* must have at least one more character */
	if p >= len(s) {
		return 0, errInvalidDescriptor
	}

	/* check the element type */
	switch s[p] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return p + 1, nil
	case 'L':
		if e := strings.IndexByte(s[p:], ';'); e <= 1 {
			return 0, errInvalidDescriptor
		} else {
			return p + e + 1, nil
		}
	default:
		return 0, errInvalidDescriptor
	}
}

// IsFieldDescriptor reports whether s is exactly one field type.
func IsFieldDescriptor(s string) bool {
	e, err := parseFieldType(s, 0)
	return err == nil && e == len(s)
}

func ParseMethodDescriptor(s string) (MethodDescriptor, error) {
	var err error
	var ret MethodDescriptor

	/* must start with '(' */
	if len(s) < 3 || s[0] != '(' {
		return ret, fmt.Errorf("%w: %q", errInvalidDescriptor, s)
	}

	/* parse every parameter */
	i := 1
	for i < len(s) && s[i] != ')' {
		var e int
		if e, err = parseFieldType(s, i); err != nil {
			return ret, fmt.Errorf("%w: %q", errInvalidDescriptor, s)
		}
		ret.Params = append(ret.Params, s[i:e])
		i = e
	}

	/* the return type is either 'V' or a field type */
	if i++; i >= len(s) {
		return ret, fmt.Errorf("%w: %q", errInvalidDescriptor, s)
	} else if s[i:] == "V" {
		ret.Return = "V"
	} else if IsFieldDescriptor(s[i:]) {
		ret.Return = s[i:]
	} else {
		return ret, fmt.Errorf("%w: %q", errInvalidDescriptor, s)
	}
	return ret, nil
}

// MustParseMethodDescriptor is like ParseMethodDescriptor but panics on errors.
func MustParseMethodDescriptor(s string) MethodDescriptor {
	if ret, err := ParseMethodDescriptor(s); err != nil {
		panic(err)
	} else {
		return ret
	}
}

func (self MethodDescriptor) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range self.Params {
		sb.WriteString(p)
	}
	sb.WriteByte(')')
	sb.WriteString(self.Return)
	return sb.String()
}

// ArgSlots is the number of local slots the parameters take, excluding `this`.
func (self MethodDescriptor) ArgSlots() int {
	n := 0
	for _, p := range self.Params {
		n += SlotSize(p)
	}
	return n
}

// ParamSlot returns the local slot holding parameter i.
func (self MethodDescriptor) ParamSlot(i int, static bool) int {
	n := 0
	if !static {
		n = 1
	}
	for _, p := range self.Params[:i] {
		n += SlotSize(p)
	}
	return n
}

// Without returns a copy of the descriptor with the listed parameters removed.
// The indices must be sorted in ascending order.
func (self MethodDescriptor) Without(removed []int) MethodDescriptor {
	ret := MethodDescriptor{Return: self.Return}
	ret.Params = make([]string, 0, len(self.Params))

	/* skip every removed parameter */
	for i, j := 0, 0; i < len(self.Params); i++ {
		if j < len(removed) && removed[j] == i {
			j++
		} else {
			ret.Params = append(ret.Params, self.Params[i])
		}
	}
	return ret
}

// With returns a copy of the descriptor with t appended to the parameters.
func (self MethodDescriptor) With(t string) MethodDescriptor {
	p := make([]string, len(self.Params), len(self.Params)+1)
	copy(p, self.Params)
	return MethodDescriptor{Params: append(p, t), Return: self.Return}
}

// ReturnOpcode is the return instruction matching the return type.
func (self MethodDescriptor) ReturnOpcode() Opcode {
	switch self.Return {
	case "V":
		return OP_return
	case "Z", "B", "C", "S", "I":
		return OP_ireturn
	case "J":
		return OP_lreturn
	case "F":
		return OP_freturn
	case "D":
		return OP_dreturn
	default:
		return OP_areturn
	}
}

// LoadOpcode returns the (canonical) load instruction for a value of type t.
func LoadOpcode(t string) Opcode {
	switch t {
	case "Z", "B", "C", "S", "I":
		return OP_iload
	case "J":
		return OP_lload
	case "F":
		return OP_fload
	case "D":
		return OP_dload
	default:
		return OP_aload
	}
}

// StoreOpcode returns the (canonical) store instruction for a value of type t.
func StoreOpcode(t string) Opcode {
	switch t {
	case "Z", "B", "C", "S", "I":
		return OP_istore
	case "J":
		return OP_lstore
	case "F":
		return OP_fstore
	case "D":
		return OP_dstore
	default:
		return OP_astore
	}
}

// PopOpcode returns the instruction discarding a value of type t from the stack.
func PopOpcode(t string) Opcode {
	if SlotSize(t) == 2 {
		return OP_pop2
	} else {
		return OP_pop
	}
}

// PackageOf returns the package part of an internal class name.
func PackageOf(name string) string {
	if i := strings.LastIndexByte(name, '/'); i < 0 {
		return ""
	} else {
		return name[:i]
	}
}

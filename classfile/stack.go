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

	"github.com/oleiade/lane"
)

var stackEffects = [256]int8{
	OP_aconst_null:  1,
	OP_iconst_m1:    1,
	OP_iconst_0:     1,
	OP_iconst_1:     1,
	OP_iconst_2:     1,
	OP_iconst_3:     1,
	OP_iconst_4:     1,
	OP_iconst_5:     1,
	OP_lconst_0:     2,
	OP_lconst_1:     2,
	OP_fconst_0:     1,
	OP_fconst_1:     1,
	OP_fconst_2:     1,
	OP_dconst_0:     2,
	OP_dconst_1:     2,
	OP_bipush:       1,
	OP_sipush:       1,
	OP_ldc:          1,
	OP_ldc_w:        1,
	OP_ldc2_w:       2,
	OP_iload:        1,
	OP_lload:        2,
	OP_fload:        1,
	OP_dload:        2,
	OP_aload:        1,
	OP_iaload:       -1,
	OP_laload:       0,
	OP_faload:       -1,
	OP_daload:       0,
	OP_aaload:       -1,
	OP_baload:       -1,
	OP_caload:       -1,
	OP_saload:       -1,
	OP_istore:       -1,
	OP_lstore:       -2,
	OP_fstore:       -1,
	OP_dstore:       -2,
	OP_astore:       -1,
	OP_iastore:      -3,
	OP_lastore:      -4,
	OP_fastore:      -3,
	OP_dastore:      -4,
	OP_aastore:      -3,
	OP_bastore:      -3,
	OP_castore:      -3,
	OP_sastore:      -3,
	OP_pop:          -1,
	OP_pop2:         -2,
	OP_dup:          1,
	OP_dup_x1:       1,
	OP_dup_x2:       1,
	OP_dup2:         2,
	OP_dup2_x1:      2,
	OP_dup2_x2:      2,
	OP_i2l:          1,
	OP_i2d:          1,
	OP_l2i:          -1,
	OP_l2f:          -1,
	OP_f2l:          1,
	OP_f2d:          1,
	OP_d2i:          -1,
	OP_d2f:          -1,
	OP_lcmp:         -3,
	OP_fcmpl:        -1,
	OP_fcmpg:        -1,
	OP_dcmpl:        -3,
	OP_dcmpg:        -3,
	OP_tableswitch:  -1,
	OP_lookupswitch: -1,
	OP_new:          1,
	OP_monitorenter: -1,
	OP_monitorexit:  -1,
	OP_ifnull:       -1,
	OP_ifnonnull:    -1,
}

func init() {
	for op := OP_iadd; op <= OP_drem; op++ {
		stackEffects[op] = -int8(SlotSize("IJFD"[(op-OP_iadd)%4 : (op-OP_iadd)%4+1]))
	}
	for op := OP_ishl; op <= OP_lushr; op++ {
		stackEffects[op] = -1
	}
	for op := OP_iand; op <= OP_lxor; op++ {
		stackEffects[op] = -1 - int8((op-OP_iand)%2)
	}
	for op := OP_ifeq; op <= OP_ifle; op++ {
		stackEffects[op] = -1
	}
	for op := OP_if_icmpeq; op <= OP_if_acmpne; op++ {
		stackEffects[op] = -2
	}
}

func returnSlots(t string) int {
	if t == "V" {
		return 0
	} else {
		return SlotSize(t)
	}
}

// stackEffect returns the change in operand stack depth caused by ins.
func stackEffect(ins *Instr, cp *ConstantPool) (int, error) {
	switch ins.Op {
	case OP_getstatic, OP_putstatic, OP_getfield, OP_putfield:
		ref, ok := cp.MemberRefOf(ins.Index)
		if !ok {
			return 0, fmt.Errorf("%s: bad field reference", ins)
		}
		switch n := SlotSize(ref.Desc); ins.Op {
		case OP_getstatic:
			return n, nil
		case OP_putstatic:
			return -n, nil
		case OP_getfield:
			return n - 1, nil
		default:
			return -n - 1, nil
		}
	case OP_invokevirtual, OP_invokespecial, OP_invokestatic, OP_invokeinterface, OP_invokedynamic:
		var desc string
		if ins.Op == OP_invokedynamic {
			_, d, ok := cp.NameAndTypeOf(cp.Get(ins.Index).B)
			if !ok {
				return 0, fmt.Errorf("%s: bad call site", ins)
			}
			desc = d
		} else if ref, ok := cp.MemberRefOf(ins.Index); !ok {
			return 0, fmt.Errorf("%s: bad method reference", ins)
		} else {
			desc = ref.Desc
		}
		md, err := ParseMethodDescriptor(desc)
		if err != nil {
			return 0, err
		}
		n := returnSlots(md.Return) - md.ArgSlots()
		if ins.Op != OP_invokestatic && ins.Op != OP_invokedynamic {
			n--
		}
		return n, nil
	case OP_multianewarray:
		return 1 - int(ins.Const), nil
	case OP_jsr, OP_ret:
		return 0, fmt.Errorf("%s: unsupported instruction", ins)
	default:
		return int(stackEffects[ins.Op]), nil
	}
}

// StackDepths computes the operand stack depth before every reachable
// instruction. Unreachable instructions get -1.
func (self *Code) StackDepths(cp *ConstantPool) (ret []int, err error) {
	ret = make([]int, len(self.Instrs))
	for i := range ret {
		ret[i] = -1
	}
	if len(self.Instrs) == 0 {
		return
	}

	/* merge a depth into an instruction, queuing it when first seen */
	q := lane.NewQueue()
	merge := func(i int, depth int) error {
		if ret[i] < 0 {
			ret[i] = depth
			q.Enqueue(i)
		} else if ret[i] != depth {
			return fmt.Errorf("%s: inconsistent stack depth %d and %d", self.Instrs[i], ret[i], depth)
		}
		return nil
	}

	/* exception handlers start with the exception on the stack */
	for _, h := range self.Handlers {
		if i, ok := self.IndexOf(h.HandlerPC); ok {
			if err = merge(i, 1); err != nil {
				return nil, err
			}
		}
	}

	/* propagate along every edge */
	if err = merge(0, 0); err != nil {
		return nil, err
	}
	for !q.Empty() {
		i := q.Dequeue().(int)
		ins := &self.Instrs[i]

		/* compute the depth after the instruction */
		n, err := stackEffect(ins, cp)
		if err != nil {
			return nil, err
		}
		if n += ret[i]; n < 0 {
			return nil, fmt.Errorf("%s: operand stack underflow", ins)
		}

		/* fall through to the next instruction */
		if ins.Op.FallsThrough() && i+1 < len(self.Instrs) {
			if err = merge(i+1, n); err != nil {
				return nil, err
			}
		}

		/* every branch target */
		for _, t := range ins.Successors() {
			if j, ok := self.IndexOf(t); !ok {
				return nil, fmt.Errorf("%s: branch outside the code", ins)
			} else if err = merge(j, n); err != nil {
				return nil, err
			}
		}
	}
	return ret, nil
}

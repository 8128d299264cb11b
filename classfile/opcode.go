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

// Opcode is a JVM instruction opcode.
type Opcode uint8

const (
	OP_nop Opcode = iota
	OP_aconst_null
	OP_iconst_m1
	OP_iconst_0
	OP_iconst_1
	OP_iconst_2
	OP_iconst_3
	OP_iconst_4
	OP_iconst_5
	OP_lconst_0
	OP_lconst_1
	OP_fconst_0
	OP_fconst_1
	OP_fconst_2
	OP_dconst_0
	OP_dconst_1
	OP_bipush
	OP_sipush
	OP_ldc
	OP_ldc_w
	OP_ldc2_w
	OP_iload
	OP_lload
	OP_fload
	OP_dload
	OP_aload
	OP_iload_0
	OP_iload_1
	OP_iload_2
	OP_iload_3
	OP_lload_0
	OP_lload_1
	OP_lload_2
	OP_lload_3
	OP_fload_0
	OP_fload_1
	OP_fload_2
	OP_fload_3
	OP_dload_0
	OP_dload_1
	OP_dload_2
	OP_dload_3
	OP_aload_0
	OP_aload_1
	OP_aload_2
	OP_aload_3
	OP_iaload
	OP_laload
	OP_faload
	OP_daload
	OP_aaload
	OP_baload
	OP_caload
	OP_saload
	OP_istore
	OP_lstore
	OP_fstore
	OP_dstore
	OP_astore
	OP_istore_0
	OP_istore_1
	OP_istore_2
	OP_istore_3
	OP_lstore_0
	OP_lstore_1
	OP_lstore_2
	OP_lstore_3
	OP_fstore_0
	OP_fstore_1
	OP_fstore_2
	OP_fstore_3
	OP_dstore_0
	OP_dstore_1
	OP_dstore_2
	OP_dstore_3
	OP_astore_0
	OP_astore_1
	OP_astore_2
	OP_astore_3
	OP_iastore
	OP_lastore
	OP_fastore
	OP_dastore
	OP_aastore
	OP_bastore
	OP_castore
	OP_sastore
	OP_pop
	OP_pop2
	OP_dup
	OP_dup_x1
	OP_dup_x2
	OP_dup2
	OP_dup2_x1
	OP_dup2_x2
	OP_swap
	OP_iadd
	OP_ladd
	OP_fadd
	OP_dadd
	OP_isub
	OP_lsub
	OP_fsub
	OP_dsub
	OP_imul
	OP_lmul
	OP_fmul
	OP_dmul
	OP_idiv
	OP_ldiv
	OP_fdiv
	OP_ddiv
	OP_irem
	OP_lrem
	OP_frem
	OP_drem
	OP_ineg
	OP_lneg
	OP_fneg
	OP_dneg
	OP_ishl
	OP_lshl
	OP_ishr
	OP_lshr
	OP_iushr
	OP_lushr
	OP_iand
	OP_land
	OP_ior
	OP_lor
	OP_ixor
	OP_lxor
	OP_iinc
	OP_i2l
	OP_i2f
	OP_i2d
	OP_l2i
	OP_l2f
	OP_l2d
	OP_f2i
	OP_f2l
	OP_f2d
	OP_d2i
	OP_d2l
	OP_d2f
	OP_i2b
	OP_i2c
	OP_i2s
	OP_lcmp
	OP_fcmpl
	OP_fcmpg
	OP_dcmpl
	OP_dcmpg
	OP_ifeq
	OP_ifne
	OP_iflt
	OP_ifge
	OP_ifgt
	OP_ifle
	OP_if_icmpeq
	OP_if_icmpne
	OP_if_icmplt
	OP_if_icmpge
	OP_if_icmpgt
	OP_if_icmple
	OP_if_acmpeq
	OP_if_acmpne
	OP_goto
	OP_jsr
	OP_ret
	OP_tableswitch
	OP_lookupswitch
	OP_ireturn
	OP_lreturn
	OP_freturn
	OP_dreturn
	OP_areturn
	OP_return
	OP_getstatic
	OP_putstatic
	OP_getfield
	OP_putfield
	OP_invokevirtual
	OP_invokespecial
	OP_invokestatic
	OP_invokeinterface
	OP_invokedynamic
	OP_new
	OP_newarray
	OP_anewarray
	OP_arraylength
	OP_athrow
	OP_checkcast
	OP_instanceof
	OP_monitorenter
	OP_monitorexit
	OP_wide
	OP_multianewarray
	OP_ifnull
	OP_ifnonnull
	OP_goto_w
	OP_jsr_w
)

var opNames = [256]string{
	OP_nop:              "nop",
	OP_aconst_null:      "aconst_null",
	OP_iconst_m1:        "iconst_m1",
	OP_iconst_0:         "iconst_0",
	OP_iconst_1:         "iconst_1",
	OP_iconst_2:         "iconst_2",
	OP_iconst_3:         "iconst_3",
	OP_iconst_4:         "iconst_4",
	OP_iconst_5:         "iconst_5",
	OP_lconst_0:         "lconst_0",
	OP_lconst_1:         "lconst_1",
	OP_fconst_0:         "fconst_0",
	OP_fconst_1:         "fconst_1",
	OP_fconst_2:         "fconst_2",
	OP_dconst_0:         "dconst_0",
	OP_dconst_1:         "dconst_1",
	OP_bipush:           "bipush",
	OP_sipush:           "sipush",
	OP_ldc:              "ldc",
	OP_ldc_w:            "ldc_w",
	OP_ldc2_w:           "ldc2_w",
	OP_iload:            "iload",
	OP_lload:            "lload",
	OP_fload:            "fload",
	OP_dload:            "dload",
	OP_aload:            "aload",
	OP_iload_0:          "iload_0",
	OP_iload_1:          "iload_1",
	OP_iload_2:          "iload_2",
	OP_iload_3:          "iload_3",
	OP_lload_0:          "lload_0",
	OP_lload_1:          "lload_1",
	OP_lload_2:          "lload_2",
	OP_lload_3:          "lload_3",
	OP_fload_0:          "fload_0",
	OP_fload_1:          "fload_1",
	OP_fload_2:          "fload_2",
	OP_fload_3:          "fload_3",
	OP_dload_0:          "dload_0",
	OP_dload_1:          "dload_1",
	OP_dload_2:          "dload_2",
	OP_dload_3:          "dload_3",
	OP_aload_0:          "aload_0",
	OP_aload_1:          "aload_1",
	OP_aload_2:          "aload_2",
	OP_aload_3:          "aload_3",
	OP_iaload:           "iaload",
	OP_laload:           "laload",
	OP_faload:           "faload",
	OP_daload:           "daload",
	OP_aaload:           "aaload",
	OP_baload:           "baload",
	OP_caload:           "caload",
	OP_saload:           "saload",
	OP_istore:           "istore",
	OP_lstore:           "lstore",
	OP_fstore:           "fstore",
	OP_dstore:           "dstore",
	OP_astore:           "astore",
	OP_istore_0:         "istore_0",
	OP_istore_1:         "istore_1",
	OP_istore_2:         "istore_2",
	OP_istore_3:         "istore_3",
	OP_lstore_0:         "lstore_0",
	OP_lstore_1:         "lstore_1",
	OP_lstore_2:         "lstore_2",
	OP_lstore_3:         "lstore_3",
	OP_fstore_0:         "fstore_0",
	OP_fstore_1:         "fstore_1",
	OP_fstore_2:         "fstore_2",
	OP_fstore_3:         "fstore_3",
	OP_dstore_0:         "dstore_0",
	OP_dstore_1:         "dstore_1",
	OP_dstore_2:         "dstore_2",
	OP_dstore_3:         "dstore_3",
	OP_astore_0:         "astore_0",
	OP_astore_1:         "astore_1",
	OP_astore_2:         "astore_2",
	OP_astore_3:         "astore_3",
	OP_iastore:          "iastore",
	OP_lastore:          "lastore",
	OP_fastore:          "fastore",
	OP_dastore:          "dastore",
	OP_aastore:          "aastore",
	OP_bastore:          "bastore",
	OP_castore:          "castore",
	OP_sastore:          "sastore",
	OP_pop:              "pop",
	OP_pop2:             "pop2",
	OP_dup:              "dup",
	OP_dup_x1:           "dup_x1",
	OP_dup_x2:           "dup_x2",
	OP_dup2:             "dup2",
	OP_dup2_x1:          "dup2_x1",
	OP_dup2_x2:          "dup2_x2",
	OP_swap:             "swap",
	OP_iadd:             "iadd",
	OP_ladd:             "ladd",
	OP_fadd:             "fadd",
	OP_dadd:             "dadd",
	OP_isub:             "isub",
	OP_lsub:             "lsub",
	OP_fsub:             "fsub",
	OP_dsub:             "dsub",
	OP_imul:             "imul",
	OP_lmul:             "lmul",
	OP_fmul:             "fmul",
	OP_dmul:             "dmul",
	OP_idiv:             "idiv",
	OP_ldiv:             "ldiv",
	OP_fdiv:             "fdiv",
	OP_ddiv:             "ddiv",
	OP_irem:             "irem",
	OP_lrem:             "lrem",
	OP_frem:             "frem",
	OP_drem:             "drem",
	OP_ineg:             "ineg",
	OP_lneg:             "lneg",
	OP_fneg:             "fneg",
	OP_dneg:             "dneg",
	OP_ishl:             "ishl",
	OP_lshl:             "lshl",
	OP_ishr:             "ishr",
	OP_lshr:             "lshr",
	OP_iushr:            "iushr",
	OP_lushr:            "lushr",
	OP_iand:             "iand",
	OP_land:             "land",
	OP_ior:              "ior",
	OP_lor:              "lor",
	OP_ixor:             "ixor",
	OP_lxor:             "lxor",
	OP_iinc:             "iinc",
	OP_i2l:              "i2l",
	OP_i2f:              "i2f",
	OP_i2d:              "i2d",
	OP_l2i:              "l2i",
	OP_l2f:              "l2f",
	OP_l2d:              "l2d",
	OP_f2i:              "f2i",
	OP_f2l:              "f2l",
	OP_f2d:              "f2d",
	OP_d2i:              "d2i",
	OP_d2l:              "d2l",
	OP_d2f:              "d2f",
	OP_i2b:              "i2b",
	OP_i2c:              "i2c",
	OP_i2s:              "i2s",
	OP_lcmp:             "lcmp",
	OP_fcmpl:            "fcmpl",
	OP_fcmpg:            "fcmpg",
	OP_dcmpl:            "dcmpl",
	OP_dcmpg:            "dcmpg",
	OP_ifeq:             "ifeq",
	OP_ifne:             "ifne",
	OP_iflt:             "iflt",
	OP_ifge:             "ifge",
	OP_ifgt:             "ifgt",
	OP_ifle:             "ifle",
	OP_if_icmpeq:        "if_icmpeq",
	OP_if_icmpne:        "if_icmpne",
	OP_if_icmplt:        "if_icmplt",
	OP_if_icmpge:        "if_icmpge",
	OP_if_icmpgt:        "if_icmpgt",
	OP_if_icmple:        "if_icmple",
	OP_if_acmpeq:        "if_acmpeq",
	OP_if_acmpne:        "if_acmpne",
	OP_goto:             "goto",
	OP_jsr:              "jsr",
	OP_ret:              "ret",
	OP_tableswitch:      "tableswitch",
	OP_lookupswitch:     "lookupswitch",
	OP_ireturn:          "ireturn",
	OP_lreturn:          "lreturn",
	OP_freturn:          "freturn",
	OP_dreturn:          "dreturn",
	OP_areturn:          "areturn",
	OP_return:           "return",
	OP_getstatic:        "getstatic",
	OP_putstatic:        "putstatic",
	OP_getfield:         "getfield",
	OP_putfield:         "putfield",
	OP_invokevirtual:    "invokevirtual",
	OP_invokespecial:    "invokespecial",
	OP_invokestatic:     "invokestatic",
	OP_invokeinterface:  "invokeinterface",
	OP_invokedynamic:    "invokedynamic",
	OP_new:              "new",
	OP_newarray:         "newarray",
	OP_anewarray:        "anewarray",
	OP_arraylength:      "arraylength",
	OP_athrow:           "athrow",
	OP_checkcast:        "checkcast",
	OP_instanceof:       "instanceof",
	OP_monitorenter:     "monitorenter",
	OP_monitorexit:      "monitorexit",
	OP_wide:             "wide",
	OP_multianewarray:   "multianewarray",
	OP_ifnull:           "ifnull",
	OP_ifnonnull:        "ifnonnull",
	OP_goto_w:           "goto_w",
	OP_jsr_w:            "jsr_w",
}

type operand uint8

const (
	opNone operand = iota
	opByte
	opShort
	opLocal
	opIinc
	opConst1
	opConst2
	opInterface
	opDynamic
	opBranch2
	opBranch4
	opNewArray
	opMultiArray
	opTableSwitch
	opLookupSwitch
	opWide
	opInvalid
)

var opOperands [256]operand

func init() {
	for i := range opOperands {
		if opNames[i] == "" {
			opOperands[i] = opInvalid
		}
	}
	for _, op := range []Opcode{OP_iload, OP_lload, OP_fload, OP_dload, OP_aload, OP_istore, OP_lstore, OP_fstore, OP_dstore, OP_astore, OP_ret} {
		opOperands[op] = opLocal
	}
	for _, op := range []Opcode{OP_ldc_w, OP_ldc2_w, OP_getstatic, OP_putstatic, OP_getfield, OP_putfield, OP_invokevirtual, OP_invokespecial, OP_invokestatic, OP_new, OP_anewarray, OP_checkcast, OP_instanceof} {
		opOperands[op] = opConst2
	}
	for op := OP_ifeq; op <= OP_jsr; op++ {
		opOperands[op] = opBranch2
	}
	opOperands[OP_bipush] = opByte
	opOperands[OP_sipush] = opShort
	opOperands[OP_ldc] = opConst1
	opOperands[OP_iinc] = opIinc
	opOperands[OP_ifnull] = opBranch2
	opOperands[OP_ifnonnull] = opBranch2
	opOperands[OP_goto_w] = opBranch4
	opOperands[OP_jsr_w] = opBranch4
	opOperands[OP_invokeinterface] = opInterface
	opOperands[OP_invokedynamic] = opDynamic
	opOperands[OP_newarray] = opNewArray
	opOperands[OP_multianewarray] = opMultiArray
	opOperands[OP_tableswitch] = opTableSwitch
	opOperands[OP_lookupswitch] = opLookupSwitch
	opOperands[OP_wide] = opWide
}

func (self Opcode) String() string {
	if opNames[self] != "" {
		return opNames[self]
	} else {
		return "invalid"
	}
}

func (self Opcode) IsValid() bool {
	return opOperands[self] != opInvalid
}

// IsBranch reports whether the instruction carries a single branch target.
func (self Opcode) IsBranch() bool {
	return opOperands[self] == opBranch2 || opOperands[self] == opBranch4
}

// IsConditional reports whether the instruction is a conditional branch.
func (self Opcode) IsConditional() bool {
	return (self >= OP_ifeq && self <= OP_if_acmpne) || self == OP_ifnull || self == OP_ifnonnull
}

func (self Opcode) IsSwitch() bool {
	return self == OP_tableswitch || self == OP_lookupswitch
}

func (self Opcode) IsReturn() bool {
	return self >= OP_ireturn && self <= OP_return
}

func (self Opcode) IsInvoke() bool {
	return self >= OP_invokevirtual && self <= OP_invokedynamic
}

// IsLoad reports whether the instruction is a canonical local variable load.
func (self Opcode) IsLoad() bool {
	return self >= OP_iload && self <= OP_aload
}

// IsStore reports whether the instruction is a canonical local variable store.
func (self Opcode) IsStore() bool {
	return self >= OP_istore && self <= OP_astore
}

// IsWideLocal reports whether the local variable accessed takes two slots.
func (self Opcode) IsWideLocal() bool {
	return self == OP_lload || self == OP_dload || self == OP_lstore || self == OP_dstore
}

// FallsThrough reports whether control may reach the next instruction.
func (self Opcode) FallsThrough() bool {
	switch self {
	case OP_goto, OP_goto_w, OP_athrow, OP_ret, OP_tableswitch, OP_lookupswitch:
		return false
	default:
		return !self.IsReturn()
	}
}

// UsesConstant reports whether the Index operand refers to the constant pool.
func (self Opcode) UsesConstant() bool {
	switch opOperands[self] {
	case opConst1, opConst2, opInterface, opDynamic, opMultiArray:
		return true
	default:
		return false
	}
}

// HasLocal reports whether the Local operand is meaningful.
func (self Opcode) HasLocal() bool {
	return opOperands[self] == opLocal || opOperands[self] == opIinc
}

// shortLocal maps a canonical load/store and a slot 0-3 to its one byte form.
func shortLocal(op Opcode, slot int) (Opcode, bool) {
	if slot < 0 || slot > 3 {
		return 0, false
	}
	switch {
	case op.IsLoad():
		return OP_iload_0 + (op-OP_iload)*4 + Opcode(slot), true
	case op.IsStore():
		return OP_istore_0 + (op-OP_istore)*4 + Opcode(slot), true
	default:
		return 0, false
	}
}

// canonicalLocal maps a one byte load/store form to its canonical opcode and slot.
func canonicalLocal(op Opcode) (Opcode, int, bool) {
	switch {
	case op >= OP_iload_0 && op <= OP_aload_3:
		return OP_iload + (op-OP_iload_0)/4, int(op-OP_iload_0) % 4, true
	case op >= OP_istore_0 && op <= OP_astore_3:
		return OP_istore + (op-OP_istore_0)/4, int(op-OP_istore_0) % 4, true
	default:
		return 0, 0, false
	}
}

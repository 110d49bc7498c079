package machine

import "fmt"

// Lifter translates a DecodedInstruction into an architecture-neutral
// IRInstruction. Each entry in the per-mnemonic table below mirrors
// original_source/x86_to_ir.cpp's translate_to_ir switch.
type Lifter struct {
	arch *Architecture
}

func NewLifter(arch *Architecture) *Lifter { return &Lifter{arch: arch} }

var branchConditions = map[string]IRConditionCode{
	"jne": CondNotEqual,
	"je":  CondEqual,
	"jl":  CondLess,
	"jge": CondGreaterOrEqual,
	"jg":  CondGreater,
	"jle": CondLessOrEqual,
}

// Lift produces the IR form of instr. An unrecognized mnemonic is a
// lift failure: the caller logs it and advances RIP by the decoded
// length without executing anything.
func (l *Lifter) Lift(instr DecodedInstruction) (IRInstruction, error) {
	ir := IRInstruction{OriginalAddress: instr.Address, OriginalSize: instr.Length}

	translate := func(op DecodedOperand, sizeHint int) IROperand {
		return l.translateOperand(op, sizeHint)
	}

	switch instr.Mnemonic {
	case "nop":
		ir.Opcode = IROpNop

	case "mov":
		destSize := l.operandSizeBits(instr.Operands[0])
		ir.Opcode = IROpMove
		ir.Operands = []IROperand{translate(instr.Operands[0], destSize), translate(instr.Operands[1], destSize)}

	case "add", "sub", "and", "or", "xor":
		destSize := l.operandSizeBits(instr.Operands[0])
		ir.Opcode = map[string]IROpcode{"add": IROpAdd, "sub": IROpSub, "and": IROpAnd, "or": IROpOr, "xor": IROpXor}[instr.Mnemonic]
		ir.Operands = []IROperand{translate(instr.Operands[0], destSize), translate(instr.Operands[1], destSize)}

	case "not":
		destSize := l.operandSizeBits(instr.Operands[0])
		ir.Opcode = IROpNot
		ir.Operands = []IROperand{translate(instr.Operands[0], destSize)}

	case "cmp":
		destSize := l.operandSizeBits(instr.Operands[0])
		ir.Opcode = IROpCmp
		ir.Operands = []IROperand{translate(instr.Operands[0], destSize), translate(instr.Operands[1], destSize)}

	case "inc":
		ir.Opcode = IROpInc
		ir.Operands = []IROperand{translate(instr.Operands[0], 32)}

	case "dec":
		ir.Opcode = IROpDec
		ir.Operands = []IROperand{translate(instr.Operands[0], 32)}

	case "mul":
		ir.Opcode = IROpMul
		ir.Operands = []IROperand{translate(instr.Operands[0], 32)}

	case "div":
		ir.Opcode = IROpDiv
		ir.Operands = []IROperand{translate(instr.Operands[0], 32)}

	case "push":
		ir.Opcode = IROpPush
		ir.Operands = []IROperand{translate(instr.Operands[0], 32)}

	case "pop":
		ir.Opcode = IROpPop
		ir.Operands = []IROperand{translate(instr.Operands[0], 32)}

	case "jmp":
		ir.Opcode = IROpJump
		ir.Operands = []IROperand{Immediate(instr.Operands[0].Value)}

	case "call":
		ir.Opcode = IROpCall
		ir.Operands = []IROperand{Immediate(instr.Operands[0].Value)}

	case "ret":
		ir.Opcode = IROpRet

	case "int":
		ir.Opcode = IROpSyscall
		ir.Operands = []IROperand{Immediate(instr.Operands[0].Value)}

	case "in":
		ir.Opcode = IROpIn
		ir.Operands = []IROperand{translate(instr.Operands[0], 8)}

	case "out":
		ir.Opcode = IROpOut
		ir.Operands = []IROperand{translate(instr.Operands[1], 8)}

	case "vaddps":
		return l.liftPacked(instr, IROpPackedAddPS)
	case "vsubps":
		return l.liftPacked(instr, IROpPackedSubPS)
	case "vmulps":
		return l.liftPacked(instr, IROpPackedMulPS)
	case "vdivps":
		return l.liftPacked(instr, IROpPackedDivPS)
	case "vmaxps":
		return l.liftPacked(instr, IROpPackedMaxPS)
	case "vminps":
		return l.liftPacked(instr, IROpPackedMinPS)
	case "vpand":
		return l.liftPacked(instr, IROpPackedAnd)
	case "vpandn":
		return l.liftPacked(instr, IROpPackedAndNot)
	case "vpor":
		return l.liftPacked(instr, IROpPackedOr)
	case "vpxor":
		return l.liftPacked(instr, IROpPackedXor)
	case "vpmullw":
		return l.liftPacked(instr, IROpPackedMulLowI16)

	case "vsqrtps", "vrcpps":
		op := IROpPackedSqrtPS
		if instr.Mnemonic == "vrcpps" {
			op = IROpPackedReciprocalPS
		}
		ir.Opcode = op
		ir.Operands = []IROperand{translate(instr.Operands[0], 256), translate(instr.Operands[1], 256)}

	case "vzeroupper":
		ir.Opcode = IROpVectorZero

	case "vmovups":
		ir.Opcode = pickMoveOpcode(instr.Operands)
		ir.Operands = []IROperand{
			translate(instr.Operands[0], 256),
			translate(instr.Operands[1], 256),
		}

	default:
		if cond, ok := branchConditions[instr.Mnemonic]; ok {
			ir.Opcode = IROpBranch
			ir.Operands = []IROperand{Immediate(instr.Operands[0].Value), cond}
			return ir, nil
		}
		return IRInstruction{}, fmt.Errorf("lift failure: unrecognized mnemonic %q", instr.Mnemonic)
	}

	return ir, nil
}

func (l *Lifter) liftPacked(instr DecodedInstruction, op IROpcode) (IRInstruction, error) {
	ir := IRInstruction{OriginalAddress: instr.Address, OriginalSize: instr.Length, Opcode: op}
	for _, o := range instr.Operands {
		ir.Operands = append(ir.Operands, l.translateOperand(o, 256))
	}
	return ir, nil
}

func pickMoveOpcode(ops []DecodedOperand) IROpcode {
	if len(ops) > 0 && ops[0].Kind == OperandMemory {
		return IROpStore
	}
	return IROpLoad
}

func (l *Lifter) operandSizeBits(op DecodedOperand) int {
	if op.Kind == OperandYMMRegister {
		return 256
	}
	return 32
}

// translateOperand maps a decoder-level operand to its IR form. Memory
// operands carry only a displacement (the effective address the
// decoder already computed); registers resolve through the
// architecture map.
func (l *Lifter) translateOperand(op DecodedOperand, sizeHint int) IROperand {
	switch op.Kind {
	case OperandRegister:
		reg, err := l.arch.Register(op.Text)
		if err != nil {
			return Immediate(0)
		}
		reg.SizeBits = sizeHint
		return reg
	case OperandYMMRegister:
		reg, err := l.arch.Register(op.Text)
		if err != nil {
			return Immediate(0)
		}
		return reg
	case OperandImmediate:
		return Immediate(op.Value)
	case OperandMemory:
		return IRMemoryOperand{Displacement: int64(op.Value), SizeBits: sizeHint}
	case OperandLabel:
		return Immediate(op.Value)
	default:
		return Immediate(0)
	}
}

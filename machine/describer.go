package machine

import (
	"fmt"
	"strings"
)

// DescribeInstruction renders a human-readable English sentence for a
// decoded instruction, substituting label names for raw jump/call
// targets when the reverse symbol table has one. This is used only by
// the UI collaborator; it has no bearing on interpreter correctness.
func DescribeInstruction(instr DecodedInstruction, reverseSymbols map[uint64]string) string {
	target := func(op DecodedOperand) string {
		if name, ok := reverseSymbols[op.Value]; ok {
			return name
		}
		return op.Text
	}

	texts := make([]string, len(instr.Operands))
	for i, op := range instr.Operands {
		if op.Kind == OperandLabel {
			texts[i] = target(op)
		} else {
			texts[i] = op.Text
		}
	}

	switch instr.Mnemonic {
	case "mov":
		return fmt.Sprintf("move %s into %s", texts[1], texts[0])
	case "add":
		return fmt.Sprintf("add %s to %s", texts[1], texts[0])
	case "sub":
		return fmt.Sprintf("subtract %s from %s", texts[1], texts[0])
	case "and":
		return fmt.Sprintf("bitwise AND %s with %s", texts[1], texts[0])
	case "or":
		return fmt.Sprintf("bitwise OR %s with %s", texts[1], texts[0])
	case "xor":
		return fmt.Sprintf("bitwise XOR %s with %s", texts[1], texts[0])
	case "not":
		return fmt.Sprintf("bitwise NOT %s", texts[0])
	case "inc":
		return fmt.Sprintf("increment %s", texts[0])
	case "dec":
		return fmt.Sprintf("decrement %s", texts[0])
	case "cmp":
		return fmt.Sprintf("compare %s with %s", texts[0], texts[1])
	case "mul":
		return fmt.Sprintf("unsigned multiply eax by %s", texts[0])
	case "imul":
		return fmt.Sprintf("signed multiply eax by %s", texts[0])
	case "div":
		return fmt.Sprintf("unsigned divide edx:eax by %s", texts[0])
	case "push":
		return fmt.Sprintf("push %s onto the stack", texts[0])
	case "pop":
		return fmt.Sprintf("pop the stack into %s", texts[0])
	case "jmp":
		return fmt.Sprintf("jump to %s", texts[0])
	case "je":
		return fmt.Sprintf("jump to %s if equal", texts[0])
	case "jne":
		return fmt.Sprintf("jump to %s if not equal", texts[0])
	case "jl":
		return fmt.Sprintf("jump to %s if less than", texts[0])
	case "jle":
		return fmt.Sprintf("jump to %s if less than or equal", texts[0])
	case "jg":
		return fmt.Sprintf("jump to %s if greater than", texts[0])
	case "jge":
		return fmt.Sprintf("jump to %s if greater than or equal", texts[0])
	case "jae":
		return fmt.Sprintf("jump to %s if above or equal (unsigned)", texts[0])
	case "jb":
		return fmt.Sprintf("jump to %s if below (unsigned)", texts[0])
	case "ja":
		return fmt.Sprintf("jump to %s if above (unsigned)", texts[0])
	case "jbe":
		return fmt.Sprintf("jump to %s if below or equal (unsigned)", texts[0])
	case "call":
		return fmt.Sprintf("call %s", texts[0])
	case "ret":
		return "return to caller"
	case "int":
		return fmt.Sprintf("raise interrupt %s", texts[0])
	case "in":
		return fmt.Sprintf("read a byte from port %s into %s", texts[1], texts[0])
	case "out":
		return fmt.Sprintf("write %s to port %s", texts[1], texts[0])
	case "nop":
		return "do nothing"
	case "vzeroupper":
		return "zero every YMM register"
	default:
		if strings.HasPrefix(instr.Mnemonic, "v") {
			return fmt.Sprintf("%s %s", instr.Mnemonic, strings.Join(texts, ", "))
		}
		return fmt.Sprintf("execute %s %s", instr.Mnemonic, strings.Join(texts, ", "))
	}
}

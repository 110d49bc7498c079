package machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescribeSubstitutesLabelName(t *testing.T) {
	instr := DecodedInstruction{
		Mnemonic: "jne",
		Operands: []DecodedOperand{{Kind: OperandLabel, Text: "0x1000", Value: 0x1000}},
	}
	reverse := map[uint64]string{0x1000: "loop"}

	require.Equal(t, "jump to loop if not equal", DescribeInstruction(instr, reverse))
}

func TestDescribeFallsBackToRawAddressWithoutSymbol(t *testing.T) {
	instr := DecodedInstruction{
		Mnemonic: "jmp",
		Operands: []DecodedOperand{{Kind: OperandLabel, Text: "0x2000", Value: 0x2000}},
	}

	require.Equal(t, "jump to 0x2000", DescribeInstruction(instr, nil))
}

func TestDescribeMovAndArithmetic(t *testing.T) {
	instr := DecodedInstruction{
		Mnemonic: "add",
		Operands: []DecodedOperand{{Kind: OperandRegister, Text: "eax"}, {Kind: OperandRegister, Text: "ecx"}},
	}
	require.Equal(t, "add ecx to eax", DescribeInstruction(instr, nil))
}

func TestDescribeUnknownVectorMnemonicFallsThrough(t *testing.T) {
	instr := DecodedInstruction{
		Mnemonic: "vsubps",
		Operands: []DecodedOperand{{Kind: OperandYMMRegister, Text: "ymm0"}, {Kind: OperandYMMRegister, Text: "ymm1"}},
	}
	require.Equal(t, "vsubps ymm0, ymm1", DescribeInstruction(instr, nil))
}

package machine

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestInterpreter(t *testing.T) (*Interpreter, *Memory, *RegisterFile) {
	t.Helper()
	mem := NewMemory()
	regs := NewRegisterFile()
	arch := NewX86Architecture()
	stdin := bufio.NewReader(strings.NewReader(""))
	log := NewLogSink(io.Discard, io.Discard)
	return NewInterpreter(mem, regs, arch, stdin, log), mem, regs
}

func gpr32(index int) IRRegister { return IRRegister{Kind: RegKindGPR, Index: index, SizeBits: 32} }

func TestExecAddSetsFlags(t *testing.T) {
	it, _, regs := newTestInterpreter(t)
	require.NoError(t, regs.Set32("eax", 0xFFFFFFFF))
	require.NoError(t, regs.Set32("ecx", 1))

	ir := IRInstruction{Opcode: IROpAdd, Operands: []IROperand{gpr32(0), gpr32(1)}}
	require.NoError(t, it.Execute(ir))

	v, err := regs.Get32("eax")
	require.NoError(t, err)
	require.Equal(t, uint32(0), v)
	require.True(t, regs.ZF())
	require.True(t, regs.CF(), "add that wraps past 2^32 must set CF")
	require.False(t, regs.OF())
}

// TestCmpAndSubLeaveIdenticalFlags covers testable property 4.
func TestCmpAndSubLeaveIdenticalFlags(t *testing.T) {
	it1, _, regs1 := newTestInterpreter(t)
	require.NoError(t, regs1.Set32("eax", 3))
	require.NoError(t, regs1.Set32("ecx", 5))
	require.NoError(t, it1.Execute(IRInstruction{Opcode: IROpCmp, Operands: []IROperand{gpr32(0), gpr32(1)}}))

	it2, _, regs2 := newTestInterpreter(t)
	require.NoError(t, regs2.Set32("eax", 3))
	require.NoError(t, regs2.Set32("ecx", 5))
	require.NoError(t, it2.Execute(IRInstruction{Opcode: IROpSub, Operands: []IROperand{gpr32(0), gpr32(1)}}))

	require.Equal(t, regs1.ZF(), regs2.ZF())
	require.Equal(t, regs1.SF(), regs2.SF())
	require.Equal(t, regs1.CF(), regs2.CF())
	require.Equal(t, regs1.OF(), regs2.OF())

	eaxAfterCmp, err := regs1.Get32("eax")
	require.NoError(t, err)
	require.Equal(t, uint32(3), eaxAfterCmp, "cmp must not modify the destination register")
}

func TestIncDecLeaveCFUntouched(t *testing.T) {
	it, _, regs := newTestInterpreter(t)
	require.NoError(t, regs.Set32("eax", 0xFFFFFFFF))
	regs.SetCF(true)

	require.NoError(t, it.Execute(IRInstruction{Opcode: IROpInc, Operands: []IROperand{gpr32(0)}}))

	v, err := regs.Get32("eax")
	require.NoError(t, err)
	require.Equal(t, uint32(0), v)
	require.True(t, regs.ZF())
	require.True(t, regs.CF(), "inc must not alter CF")

	regs.SetCF(false)
	require.NoError(t, regs.Set32("ecx", 0))
	require.NoError(t, it.Execute(IRInstruction{Opcode: IROpDec, Operands: []IROperand{gpr32(1)}}))
	v, err = regs.Get32("ecx")
	require.NoError(t, err)
	require.Equal(t, uint32(0xFFFFFFFF), v)
	require.False(t, regs.CF(), "dec must not alter CF")
}

func TestExecMulSetsCFOnOverflow(t *testing.T) {
	it, _, regs := newTestInterpreter(t)
	require.NoError(t, regs.Set32("eax", 0x10000))
	require.NoError(t, regs.Set32("ecx", 0x10000))

	require.NoError(t, it.Execute(IRInstruction{Opcode: IROpMul, Operands: []IROperand{gpr32(1)}}))

	eax, err := regs.Get32("eax")
	require.NoError(t, err)
	edx, err := regs.Get32("edx")
	require.NoError(t, err)
	require.Equal(t, uint32(0), eax)
	require.Equal(t, uint32(1), edx)
	require.True(t, regs.CF())
	require.True(t, regs.OF())
}

func TestExecDivByZeroIsFatal(t *testing.T) {
	it, _, regs := newTestInterpreter(t)
	require.NoError(t, regs.Set32("eax", 10))
	require.NoError(t, regs.Set32("edx", 0))
	require.NoError(t, regs.Set32("ecx", 0))

	err := it.Execute(IRInstruction{Opcode: IROpDiv, Operands: []IROperand{gpr32(1)}})
	require.ErrorIs(t, err, errDivideByZero)
}

func TestExecDivQuotientOverflowIsFatal(t *testing.T) {
	it, _, regs := newTestInterpreter(t)
	require.NoError(t, regs.Set32("edx", 1))
	require.NoError(t, regs.Set32("eax", 0))
	require.NoError(t, regs.Set32("ecx", 1))

	err := it.Execute(IRInstruction{Opcode: IROpDiv, Operands: []IROperand{gpr32(1)}})
	require.ErrorIs(t, err, errDivideByZero)
}

func TestExecDivSuccess(t *testing.T) {
	it, _, regs := newTestInterpreter(t)
	require.NoError(t, regs.Set32("eax", 20))
	require.NoError(t, regs.Set32("edx", 0))
	require.NoError(t, regs.Set32("ecx", 6))

	require.NoError(t, it.Execute(IRInstruction{Opcode: IROpDiv, Operands: []IROperand{gpr32(1)}}))

	quotient, err := regs.Get32("eax")
	require.NoError(t, err)
	remainder, err := regs.Get32("edx")
	require.NoError(t, err)
	require.Equal(t, uint32(3), quotient)
	require.Equal(t, uint32(2), remainder)
}

// TestPushPopRoundTrip covers testable property 5: a pushed value comes
// back unchanged from a matching pop, and RSP returns to its original value.
func TestPushPopRoundTrip(t *testing.T) {
	it, mem, regs := newTestInterpreter(t)
	require.NoError(t, regs.Set64("rsp", mem.StackEnd()))
	require.NoError(t, regs.Set32("eax", 0xCAFEBABE))

	startSP, err := regs.Get64("rsp")
	require.NoError(t, err)

	require.NoError(t, it.Execute(IRInstruction{Opcode: IROpPush, Operands: []IROperand{gpr32(0)}}))
	require.NoError(t, regs.Set32("eax", 0))
	require.NoError(t, it.Execute(IRInstruction{Opcode: IROpPop, Operands: []IROperand{gpr32(0)}}))

	v, err := regs.Get32("eax")
	require.NoError(t, err)
	require.Equal(t, uint32(0xCAFEBABE), v)

	endSP, err := regs.Get64("rsp")
	require.NoError(t, err)
	require.Equal(t, startSP, endSP)
}

func TestCallRetStackDiscipline(t *testing.T) {
	it, mem, regs := newTestInterpreter(t)
	require.NoError(t, regs.Set64("rsp", mem.StackEnd()))

	ir := IRInstruction{Opcode: IROpCall, Operands: []IROperand{Immediate(0x1000)}, OriginalAddress: 0x100, OriginalSize: 5}
	require.NoError(t, it.Execute(ir))
	require.Equal(t, uint64(0x1000), regs.RIP())

	require.NoError(t, it.Execute(IRInstruction{Opcode: IROpRet}))
	require.Equal(t, uint64(0x105), regs.RIP())
}

func TestSyscallSysExitHalts(t *testing.T) {
	it, _, regs := newTestInterpreter(t)
	require.NoError(t, regs.Set32("eax", 1))
	require.NoError(t, regs.Set32("ebx", 42))

	require.NoError(t, it.Execute(IRInstruction{Opcode: IROpSyscall, Operands: []IROperand{Immediate(0x80)}}))
	require.True(t, it.Halted())
}

func vreg(index int) IRRegister { return IRRegister{Kind: RegKindVector, Index: index, SizeBits: 256} }

func TestPackedAddPS(t *testing.T) {
	it, _, regs := newTestInterpreter(t)
	var a, b [32]byte
	putLaneF32(&a, 0, 1.5)
	putLaneF32(&b, 0, 2.5)
	require.NoError(t, regs.SetYmm("ymm1", a))
	require.NoError(t, regs.SetYmm("ymm2", b))

	ir := IRInstruction{Opcode: IROpPackedAddPS, Operands: []IROperand{vreg(0), vreg(1), vreg(2)}}
	require.NoError(t, it.Execute(ir))

	result, err := regs.Ymm("ymm0")
	require.NoError(t, err)
	require.Equal(t, float32(4.0), laneF32(result, 0))
}

// TestPackedAndNot checks the vpandn formula (^src1) & src2 on the
// first byte; TestScenarioS5VPAndN covers scenario S5 over every dword.
func TestPackedAndNot(t *testing.T) {
	it, _, regs := newTestInterpreter(t)
	var a, b [32]byte
	a[0] = 0x0F
	b[0] = 0xFF
	require.NoError(t, regs.SetYmm("ymm1", a))
	require.NoError(t, regs.SetYmm("ymm2", b))

	ir := IRInstruction{Opcode: IROpPackedAndNot, Operands: []IROperand{vreg(0), vreg(1), vreg(2)}}
	require.NoError(t, it.Execute(ir))

	result, err := regs.Ymm("ymm0")
	require.NoError(t, err)
	require.Equal(t, byte(0xF0), result[0])
}

package machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGPRAliasing covers testable property 3: a 32-bit write
// zero-extends into the enclosing 64-bit slot, while 16/8-bit writes
// preserve the upper bits.
func TestGPRAliasing(t *testing.T) {
	rf := NewRegisterFile()

	require.NoError(t, rf.Set64("rax", 0xFFFFFFFFFFFFFFFF))
	require.NoError(t, rf.Set32("eax", 0x11223344))
	v, err := rf.Get64("rax")
	require.NoError(t, err)
	require.Equal(t, uint64(0x11223344), v, "32-bit write must zero-extend the full 64-bit slot")

	require.NoError(t, rf.Set64("rbx", 0x1122334455667788))
	require.NoError(t, rf.Set16("bx", 0xAABB))
	v, err = rf.Get64("rbx")
	require.NoError(t, err)
	require.Equal(t, uint64(0x112233445566AABB), v, "16-bit write must preserve the upper 48 bits")

	require.NoError(t, rf.Set64("rcx", 0x1122334455667788))
	require.NoError(t, rf.Set8("cl", 0xEE))
	v, err = rf.Get64("rcx")
	require.NoError(t, err)
	require.Equal(t, uint64(0x11223344556677EE), v, "8-bit write must preserve the upper 56 bits")
}

// TestHighByteAliasing covers spec.md's explicit ah/bh/ch/dh alias
// requirement: the high byte occupies bits 15:8 of the enclosing slot,
// distinct from and coexisting with the al/cl/dl/bl low-byte alias.
func TestHighByteAliasing(t *testing.T) {
	rf := NewRegisterFile()

	require.NoError(t, rf.Set64("rax", 0))
	require.NoError(t, rf.Set8("ah", 0xAB))
	v, err := rf.Get16("ax")
	require.NoError(t, err)
	require.Equal(t, uint16(0xAB00), v, "writing ah must land in bits 15:8 of the slot")

	require.NoError(t, rf.Set8("al", 0xCD))
	ah, err := rf.Get8("ah")
	require.NoError(t, err)
	al, err := rf.Get8("al")
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), ah, "writing al must not disturb ah")
	require.Equal(t, byte(0xCD), al)

	for _, name := range []string{"ah", "bh", "ch", "dh"} {
		_, err := rf.Get8(name)
		require.NoError(t, err)
	}
}

func TestArchitectureHighByteRegisters(t *testing.T) {
	arch := NewX86Architecture()

	for i, name := range []string{"ah", "ch", "dh", "bh"} {
		reg, err := arch.Register(name)
		require.NoError(t, err)
		require.Equal(t, IRRegister{Kind: RegKindGPR, Index: i, SizeBits: 8, HighByte: true}, reg)

		got, err := arch.Name(reg)
		require.NoError(t, err)
		require.Equal(t, name, got)
	}

	// ah and al share (kind, index, size) apart from HighByte, and must
	// resolve to distinct names.
	al, err := arch.Register("al")
	require.NoError(t, err)
	ah, err := arch.Register("ah")
	require.NoError(t, err)
	require.NotEqual(t, al, ah)
}

func TestRegisterLookupFailure(t *testing.T) {
	rf := NewRegisterFile()
	_, err := rf.Get32("notareg")
	require.ErrorIs(t, err, errOutOfRange)
}

func TestRFLAGSAlwaysSetBit1(t *testing.T) {
	rf := NewRegisterFile()
	require.NotZero(t, rf.RFLAGS()&(1<<1))
	rf.SetCF(true)
	require.True(t, rf.CF())
	require.NotZero(t, rf.RFLAGS()&(1<<1))
}

func TestYmmXmmAliasing(t *testing.T) {
	rf := NewRegisterFile()
	var full [32]byte
	for i := range full {
		full[i] = byte(i)
	}
	require.NoError(t, rf.SetYmm("ymm3", full))

	low, err := rf.Xmm("xmm3")
	require.NoError(t, err)
	require.Equal(t, full[:16], low[:])
}

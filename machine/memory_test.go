package machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemorySegmentLayout(t *testing.T) {
	mem := NewMemory()
	require.Equal(t, uint64(0), mem.TextStart())
	require.Equal(t, uint64(0x200000), mem.DataStart())
	require.Equal(t, uint64(0x400000), mem.BssStart())
	require.Equal(t, uint64(0x400000+0x100000), mem.HeapStart())
	require.Equal(t, mem.HeapStart()+defaultHeapSize, mem.StackStart())
}

func TestMemoryLittleEndianRoundTrip(t *testing.T) {
	mem := NewMemory()
	addr := mem.DataStart()

	require.NoError(t, mem.WriteDword(addr, 0x11223344))
	got, err := mem.ReadDword(addr)
	require.NoError(t, err)
	require.Equal(t, uint32(0x11223344), got)

	b0, err := mem.ReadByte(addr)
	require.NoError(t, err)
	require.Equal(t, byte(0x44), b0)
}

func TestMemoryOutOfRange(t *testing.T) {
	mem := NewMemory()
	_, err := mem.ReadByte(mem.TotalSize() + 1)
	require.ErrorIs(t, err, errOutOfRange)
}

func TestMemoryTextBoundary(t *testing.T) {
	mem := NewMemory()
	require.NoError(t, mem.WriteText(mem.TextStart(), 0x90))

	_, err := mem.ReadText(mem.TextStart() + mem.TextSize())
	require.ErrorIs(t, err, errSegmentRead)
}

func TestMemoryStackBounds(t *testing.T) {
	mem := NewMemory()
	require.NoError(t, mem.WriteStack(mem.StackStart(), 0x1122334455667788))

	_, err := mem.ReadStack(mem.StackEnd())
	require.ErrorIs(t, err, errSegmentRead)
}

func TestMemoryReset(t *testing.T) {
	mem := NewMemory()
	require.NoError(t, mem.WriteText(mem.TextStart(), 0xFF))
	mem.Reset()
	b, err := mem.ReadText(mem.TextStart())
	require.NoError(t, err)
	require.Equal(t, byte(0), b)
}

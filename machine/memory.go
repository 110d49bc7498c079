package machine

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Segment sizes matching the default (no-argument) construction path.
const (
	defaultTextSize  = 0x200000
	defaultBssGap    = 0x100000 // gap between the end of bss and the start of heap
	defaultHeapSize  = 0x1000000
	defaultStackSize = 0x100000
)

var (
	errOutOfRange  = errors.New("memory access out of range")
	errSegmentRead = errors.New("segment access out of range")
)

// Memory owns a single flat byte array partitioned into five segments:
// text, data, bss, heap and stack. The stack grows down from the top of
// memory. All multi-byte accesses are little-endian.
type Memory struct {
	bytes []byte

	textStart, textSize   uint64
	dataStart, dataSize   uint64
	bssStart, bssSize     uint64
	heapStart, heapSize   uint64
	stackStart, stackSize uint64
}

// NewMemory builds the default-layout memory image: text starts at 0,
// data is fixed at 0x200000, bss is fixed at 0x400000, and heap/stack
// sizes are the simulator defaults (16MiB heap, 1MiB stack).
func NewMemory() *Memory {
	return NewMemoryWithSizes(defaultTextSize, 0x400000-defaultTextSize, 0)
}

// NewMemoryWithSizes builds a memory image from explicit segment sizes.
// Segment starts are derived cumulatively: data follows text, bss
// follows data, heap follows bss (plus a fixed 0x100000 gap), and the
// stack occupies the final defaultStackSize bytes of the image.
func NewMemoryWithSizes(textSize, dataSize, bssSize uint64) *Memory {
	m := &Memory{}
	m.layout(textSize, dataSize, bssSize)
	m.bytes = make([]byte, m.stackStart+m.stackSize)
	return m
}

func (m *Memory) layout(textSize, dataSize, bssSize uint64) {
	m.textStart, m.textSize = 0, textSize
	m.dataStart, m.dataSize = m.textStart+textSize, dataSize
	m.bssStart, m.bssSize = m.dataStart+dataSize, bssSize
	m.heapStart, m.heapSize = m.bssStart+bssSize+defaultBssGap, defaultHeapSize
	m.stackStart, m.stackSize = m.heapStart+m.heapSize, defaultStackSize
}

// Reset rebuilds the image from first principles: all bytes are
// zeroed and the segment layout is recomputed from the original sizes.
func (m *Memory) Reset() {
	// SetTextSize shrinks textSize after assembly; the data start still
	// marks where the originally sized text segment ended.
	textSize, dataSize, bssSize := m.dataStart-m.textStart, m.dataSize, m.bssSize
	m.layout(textSize, dataSize, bssSize)
	m.bytes = make([]byte, m.stackStart+m.stackSize)
}

// TotalSize returns the overall size of the backing byte array.
func (m *Memory) TotalSize() uint64 { return uint64(len(m.bytes)) }

func (m *Memory) TextStart() uint64  { return m.textStart }
func (m *Memory) TextSize() uint64   { return m.textSize }
func (m *Memory) DataStart() uint64  { return m.dataStart }
func (m *Memory) BssStart() uint64   { return m.bssStart }
func (m *Memory) HeapStart() uint64  { return m.heapStart }
func (m *Memory) StackStart() uint64 { return m.stackStart }
func (m *Memory) StackEnd() uint64   { return m.stackStart + m.stackSize }

func (m *Memory) checkRange(addr, size uint64) error {
	if addr+size > uint64(len(m.bytes)) || addr+size < addr {
		return fmt.Errorf("%w: addr=0x%x size=%d", errOutOfRange, addr, size)
	}
	return nil
}

func (m *Memory) ReadByte(addr uint64) (byte, error) {
	if err := m.checkRange(addr, 1); err != nil {
		return 0, err
	}
	return m.bytes[addr], nil
}

func (m *Memory) WriteByte(addr uint64, v byte) error {
	if err := m.checkRange(addr, 1); err != nil {
		return err
	}
	m.bytes[addr] = v
	return nil
}

func (m *Memory) ReadWord(addr uint64) (uint16, error) {
	if err := m.checkRange(addr, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.bytes[addr:]), nil
}

func (m *Memory) WriteWord(addr uint64, v uint16) error {
	if err := m.checkRange(addr, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.bytes[addr:], v)
	return nil
}

func (m *Memory) ReadDword(addr uint64) (uint32, error) {
	if err := m.checkRange(addr, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.bytes[addr:]), nil
}

func (m *Memory) WriteDword(addr uint64, v uint32) error {
	if err := m.checkRange(addr, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.bytes[addr:], v)
	return nil
}

func (m *Memory) ReadQword(addr uint64) (uint64, error) {
	if err := m.checkRange(addr, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.bytes[addr:]), nil
}

func (m *Memory) WriteQword(addr uint64, v uint64) error {
	if err := m.checkRange(addr, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.bytes[addr:], v)
	return nil
}

// ReadYmm reads a 256-bit (32-byte) lane group.
func (m *Memory) ReadYmm(addr uint64) ([32]byte, error) {
	var out [32]byte
	if err := m.checkRange(addr, 32); err != nil {
		return out, err
	}
	copy(out[:], m.bytes[addr:addr+32])
	return out, nil
}

func (m *Memory) WriteYmm(addr uint64, v [32]byte) error {
	if err := m.checkRange(addr, 32); err != nil {
		return err
	}
	copy(m.bytes[addr:addr+32], v[:])
	return nil
}

// ReadText reads a single byte from the text segment. Used by the
// decoder and by the assemble command's hex dump.
func (m *Memory) ReadText(addr uint64) (byte, error) {
	if addr < m.textStart || addr >= m.textStart+m.textSize {
		return 0, fmt.Errorf("%w: text addr=0x%x", errSegmentRead, addr)
	}
	return m.bytes[addr], nil
}

// WriteText is the only path that may modify the text segment after
// reset; used exclusively by the assembler during code emission.
func (m *Memory) WriteText(addr uint64, v byte) error {
	if addr < m.textStart || addr >= m.textStart+m.textSize {
		return fmt.Errorf("%w: text addr=0x%x", errSegmentRead, addr)
	}
	m.bytes[addr] = v
	return nil
}

func (m *Memory) ReadTextDword(addr uint64) (uint32, error) {
	if addr < m.textStart || addr+4 > m.textStart+m.textSize {
		return 0, fmt.Errorf("%w: text addr=0x%x", errSegmentRead, addr)
	}
	return binary.LittleEndian.Uint32(m.bytes[addr:]), nil
}

func (m *Memory) WriteTextDword(addr uint64, v uint32) error {
	if addr < m.textStart || addr+4 > m.textStart+m.textSize {
		return fmt.Errorf("%w: text addr=0x%x", errSegmentRead, addr)
	}
	binary.LittleEndian.PutUint32(m.bytes[addr:], v)
	return nil
}

// SetTextSize finalizes the text segment length once pass 1 of the
// assembler has measured the program.
func (m *Memory) SetTextSize(size uint64) { m.textSize = size }

func (m *Memory) ReadStack(addr uint64) (uint64, error) {
	if addr < m.stackStart || addr+8 > m.stackStart+m.stackSize {
		return 0, fmt.Errorf("%w: stack addr=0x%x", errSegmentRead, addr)
	}
	return binary.LittleEndian.Uint64(m.bytes[addr:]), nil
}

func (m *Memory) WriteStack(addr uint64, v uint64) error {
	if addr < m.stackStart || addr+8 > m.stackStart+m.stackSize {
		return fmt.Errorf("%w: stack addr=0x%x", errSegmentRead, addr)
	}
	binary.LittleEndian.PutUint64(m.bytes[addr:], v)
	return nil
}

package machine

import "fmt"

// RFLAGS bit positions.
const (
	flagCF = 0
	flagPF = 2
	flagAF = 4
	flagZF = 6
	flagSF = 7
	flagDF = 10
	flagOF = 11
)

// The gp* constants name the 16 general-purpose 64-bit slots, matching
// the index assignment x86 itself uses: rax/rcx/rdx/rbx occupy 0-3,
// rsp/rbp/rsi/rdi occupy 4-7, r8-r15 occupy 8-15.
const (
	gpRAX = iota
	gpRCX
	gpRDX
	gpRBX
	gpRSP
	gpRBP
	gpRSI
	gpRDI
	gpR8
	gpR9
	gpR10
	gpR11
	gpR12
	gpR13
	gpR14
	gpR15
	numGPRegs
)

type regView struct {
	slot     int
	bits     int  // 64, 32, 16, or 8
	highByte bool // true for ah/bh/ch/dh: bits 15:8 of the slot rather than bits 7:0
}

// RegisterFile is a named-register store with aliased views of the
// same underlying 64-bit slots, a YMM/XMM vector store, and a RFLAGS
// word with named bit accessors. Lookup failure is reported as an
// out-of-range error rather than a panic, matching the spec's error
// taxonomy for register/symbol-not-found.
type RegisterFile struct {
	gp      [numGPRegs]uint64
	ymm     [16][32]byte
	rflags  uint64
	rip     uint64
	byName  map[string]regView
}

func NewRegisterFile() *RegisterFile {
	rf := &RegisterFile{rflags: 1 << 1}
	rf.byName = buildRegisterNameTable()
	return rf
}

func buildRegisterNameTable() map[string]regView {
	names32 := []string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}
	names16 := []string{"ax", "cx", "dx", "bx", "sp", "bp", "si", "di"}
	names64 := []string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi"}
	// only al/cl/dl/bl/ah/ch/dh/bh exist at 8 bits without a REX prefix;
	// esp/ebp/esi/edi have no low-byte or high-byte alias in this
	// simulator's subset.
	namesLow8 := map[int]string{gpRAX: "al", gpRCX: "cl", gpRDX: "dl", gpRBX: "bl"}
	namesHigh8 := map[int]string{gpRAX: "ah", gpRCX: "ch", gpRDX: "dh", gpRBX: "bh"}

	m := make(map[string]regView, 64)
	for i := 0; i < 8; i++ {
		m[names64[i]] = regView{slot: i, bits: 64}
		m[names32[i]] = regView{slot: i, bits: 32}
		m[names16[i]] = regView{slot: i, bits: 16}
	}
	for slot, name := range namesLow8 {
		m[name] = regView{slot: slot, bits: 8}
	}
	for slot, name := range namesHigh8 {
		m[name] = regView{slot: slot, bits: 8, highByte: true}
	}
	for i := 8; i <= 15; i++ {
		base := fmt.Sprintf("r%d", i)
		m[base] = regView{slot: i, bits: 64}
		m[base+"d"] = regView{slot: i, bits: 32}
		m[base+"w"] = regView{slot: i, bits: 16}
		m[base+"b"] = regView{slot: i, bits: 8}
	}
	return m
}

func (rf *RegisterFile) lookup(name string) (regView, error) {
	v, ok := rf.byName[name]
	if !ok {
		return regView{}, fmt.Errorf("%w: register %q", errOutOfRange, name)
	}
	return v, nil
}

// Get64 reads the full 64-bit slot, regardless of the name's natural width.
func (rf *RegisterFile) Get64(name string) (uint64, error) {
	v, err := rf.lookup(name)
	if err != nil {
		return 0, err
	}
	return rf.gp[v.slot], nil
}

func (rf *RegisterFile) Get32(name string) (uint32, error) {
	val, err := rf.Get64(name)
	return uint32(val), err
}

func (rf *RegisterFile) Get16(name string) (uint16, error) {
	val, err := rf.Get64(name)
	return uint16(val), err
}

func (rf *RegisterFile) Get8(name string) (byte, error) {
	v, err := rf.lookup(name)
	if err != nil {
		return 0, err
	}
	if v.highByte {
		return byte(rf.gp[v.slot] >> 8), nil
	}
	return byte(rf.gp[v.slot]), nil
}

// Set64 overwrites the entire 64-bit slot.
func (rf *RegisterFile) Set64(name string, val uint64) error {
	v, err := rf.lookup(name)
	if err != nil {
		return err
	}
	rf.gp[v.slot] = val
	return nil
}

// Set32 writes the low 32 bits and, per the x86 zero-extension rule,
// clears bits 63:32 of the enclosing 64-bit slot.
func (rf *RegisterFile) Set32(name string, val uint32) error {
	v, err := rf.lookup(name)
	if err != nil {
		return err
	}
	rf.gp[v.slot] = uint64(val)
	return nil
}

// Set16 preserves bits 63:16 of the slot.
func (rf *RegisterFile) Set16(name string, val uint16) error {
	v, err := rf.lookup(name)
	if err != nil {
		return err
	}
	rf.gp[v.slot] = (rf.gp[v.slot] &^ 0xFFFF) | uint64(val)
	return nil
}

// Set8 preserves every bit of the slot outside the targeted byte: bits
// 63:8 for al/cl/dl/bl, bits 63:16 and 7:0 for ah/ch/dh/bh.
func (rf *RegisterFile) Set8(name string, val byte) error {
	v, err := rf.lookup(name)
	if err != nil {
		return err
	}
	if v.highByte {
		rf.gp[v.slot] = (rf.gp[v.slot] &^ 0xFF00) | (uint64(val) << 8)
		return nil
	}
	rf.gp[v.slot] = (rf.gp[v.slot] &^ 0xFF) | uint64(val)
	return nil
}

// SetBySize dispatches to Set8/16/32/64 by bit width, used by the
// interpreter when operand width is only known at runtime.
func (rf *RegisterFile) SetBySize(name string, bits int, val uint64) error {
	switch bits {
	case 8:
		return rf.Set8(name, byte(val))
	case 16:
		return rf.Set16(name, uint16(val))
	case 32:
		return rf.Set32(name, uint32(val))
	default:
		return rf.Set64(name, val)
	}
}

func (rf *RegisterFile) GetBySize(name string, bits int) (uint64, error) {
	switch bits {
	case 8:
		v, err := rf.Get8(name)
		return uint64(v), err
	case 16:
		v, err := rf.Get16(name)
		return uint64(v), err
	case 32:
		v, err := rf.Get32(name)
		return uint64(v), err
	default:
		return rf.Get64(name)
	}
}

// GPIndex32Name returns the 32-bit register name for a register-field
// index 0-7 (eax..edi), or "" for any other index.
func GPIndex32Name(index int) string {
	names := []string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}
	if index < 0 || index >= len(names) {
		return ""
	}
	return names[index]
}

// Ymm reads a full 256-bit register by name ("ymm0".."ymm15").
func (rf *RegisterFile) Ymm(name string) ([32]byte, error) {
	idx, err := ymmIndex(name)
	if err != nil {
		return [32]byte{}, err
	}
	return rf.ymm[idx], nil
}

func (rf *RegisterFile) SetYmm(name string, v [32]byte) error {
	idx, err := ymmIndex(name)
	if err != nil {
		return err
	}
	rf.ymm[idx] = v
	return nil
}

// Xmm reads the low 128 bits of the aliased YMM register.
func (rf *RegisterFile) Xmm(name string) ([16]byte, error) {
	idx, err := ymmIndex("ymm" + name[3:])
	if err != nil {
		return [16]byte{}, err
	}
	var out [16]byte
	copy(out[:], rf.ymm[idx][:16])
	return out, nil
}

// SetXmm writes the low 128 bits and zeroes the upper 128 bits of the
// aliased YMM register on every XMM write; this simulator does not
// model legacy-SSE preservation of the upper half.
func (rf *RegisterFile) SetXmm(name string, v [16]byte) error {
	idx, err := ymmIndex("ymm" + name[3:])
	if err != nil {
		return err
	}
	var full [32]byte
	copy(full[:16], v[:])
	rf.ymm[idx] = full
	return nil
}

func ymmIndex(name string) (int, error) {
	if len(name) < 4 || name[:3] != "ymm" {
		return 0, fmt.Errorf("%w: vector register %q", errOutOfRange, name)
	}
	var idx int
	if _, err := fmt.Sscanf(name[3:], "%d", &idx); err != nil || idx < 0 || idx >= 16 {
		return 0, fmt.Errorf("%w: vector register %q", errOutOfRange, name)
	}
	return idx, nil
}

// RIP accessors.
func (rf *RegisterFile) RIP() uint64        { return rf.rip }
func (rf *RegisterFile) SetRIP(v uint64)    { rf.rip = v }

// RFLAGS accessors. Bit 1 is always set, matching the real x86 RFLAGS
// reserved bit and the invariant in the data model.
func (rf *RegisterFile) RFLAGS() uint64 { return rf.rflags | (1 << 1) }

func (rf *RegisterFile) getFlag(bit uint) bool  { return rf.rflags&(1<<bit) != 0 }
func (rf *RegisterFile) setFlag(bit uint, v bool) {
	if v {
		rf.rflags |= 1 << bit
	} else {
		rf.rflags &^= 1 << bit
	}
}

func (rf *RegisterFile) CF() bool        { return rf.getFlag(flagCF) }
func (rf *RegisterFile) SetCF(v bool)    { rf.setFlag(flagCF, v) }
func (rf *RegisterFile) PF() bool        { return rf.getFlag(flagPF) }
func (rf *RegisterFile) SetPF(v bool)    { rf.setFlag(flagPF, v) }
func (rf *RegisterFile) AF() bool        { return rf.getFlag(flagAF) }
func (rf *RegisterFile) SetAF(v bool)    { rf.setFlag(flagAF, v) }
func (rf *RegisterFile) ZF() bool        { return rf.getFlag(flagZF) }
func (rf *RegisterFile) SetZF(v bool)    { rf.setFlag(flagZF, v) }
func (rf *RegisterFile) SF() bool        { return rf.getFlag(flagSF) }
func (rf *RegisterFile) SetSF(v bool)    { rf.setFlag(flagSF, v) }
func (rf *RegisterFile) DF() bool        { return rf.getFlag(flagDF) }
func (rf *RegisterFile) SetDF(v bool)    { rf.setFlag(flagDF, v) }
func (rf *RegisterFile) OF() bool        { return rf.getFlag(flagOF) }
func (rf *RegisterFile) SetOF(v bool)    { rf.setFlag(flagOF, v) }

// SyncRFLAGSToStore is a no-op placeholder for parity with the
// original's scratch-vs-store split: this implementation keeps rflags
// directly in the register file, so the run loop (Simulator.Step) calls
// this after every successfully executed instruction purely to preserve
// the documented reconciliation point from the run loop contract.
func (rf *RegisterFile) SyncRFLAGSToStore() {}

package machine

import "fmt"

// Architecture is a fixed table translating abstract IRRegister values
// to concrete register names and back. Lookup failure is fatal per the
// data model ("missing mappings fail with a runtime error").
type Architecture struct {
	toName map[IRRegister]string
	toReg  map[string]IRRegister
}

// NewX86Architecture builds the register map for the x86 GPR/vector/IP
// subset this simulator covers: all eight legacy GPRs at 64/32/16-bit
// widths, the full 8-bit alias set (al/cl/dl/bl low bytes and
// ah/ch/dh/bh high bytes, matching the real ISA's lack of any 8-bit
// alias for esp/ebp/esi/edi without a REX prefix), r8-r15 at
// 64/32/16/8-bit widths, rip/eip, and ymm0-ymm15/xmm0-xmm15.
func NewX86Architecture() *Architecture {
	a := &Architecture{
		toName: make(map[IRRegister]string, 96),
		toReg:  make(map[string]IRRegister, 96),
	}

	names32 := []string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}
	names16 := []string{"ax", "cx", "dx", "bx", "sp", "bp", "si", "di"}
	names64 := []string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi"}
	namesLow8 := map[int]string{0: "al", 1: "cl", 2: "dl", 3: "bl"}
	namesHigh8 := map[int]string{0: "ah", 1: "ch", 2: "dh", 3: "bh"}

	for i := 0; i < 8; i++ {
		a.add(IRRegister{Kind: RegKindGPR, Index: i, SizeBits: 64}, names64[i])
		a.add(IRRegister{Kind: RegKindGPR, Index: i, SizeBits: 32}, names32[i])
		a.add(IRRegister{Kind: RegKindGPR, Index: i, SizeBits: 16}, names16[i])
		if name, ok := namesLow8[i]; ok {
			a.add(IRRegister{Kind: RegKindGPR, Index: i, SizeBits: 8}, name)
		}
		if name, ok := namesHigh8[i]; ok {
			a.add(IRRegister{Kind: RegKindGPR, Index: i, SizeBits: 8, HighByte: true}, name)
		}
	}
	for i := 8; i <= 15; i++ {
		a.add(IRRegister{Kind: RegKindGPR, Index: i, SizeBits: 64}, fmt.Sprintf("r%d", i))
		a.add(IRRegister{Kind: RegKindGPR, Index: i, SizeBits: 32}, fmt.Sprintf("r%dd", i))
		a.add(IRRegister{Kind: RegKindGPR, Index: i, SizeBits: 16}, fmt.Sprintf("r%dw", i))
		a.add(IRRegister{Kind: RegKindGPR, Index: i, SizeBits: 8}, fmt.Sprintf("r%db", i))
	}

	a.add(IRRegister{Kind: RegKindIP, Index: 0, SizeBits: 64}, "rip")
	a.add(IRRegister{Kind: RegKindIP, Index: 0, SizeBits: 32}, "eip")
	a.add(IRRegister{Kind: RegKindIP, Index: 0, SizeBits: 16}, "ip")

	for i := 0; i < 16; i++ {
		a.add(IRRegister{Kind: RegKindVector, Index: i, SizeBits: 256}, fmt.Sprintf("ymm%d", i))
		a.add(IRRegister{Kind: RegKindVector, Index: i, SizeBits: 128}, fmt.Sprintf("xmm%d", i))
	}

	return a
}

func (a *Architecture) add(reg IRRegister, name string) {
	a.toName[reg] = name
	a.toReg[name] = reg
}

func (a *Architecture) Name(reg IRRegister) (string, error) {
	name, ok := a.toName[reg]
	if !ok {
		return "", fmt.Errorf("%w: no architecture mapping for %+v", errOutOfRange, reg)
	}
	return name, nil
}

func (a *Architecture) Register(name string) (IRRegister, error) {
	reg, ok := a.toReg[name]
	if !ok {
		return IRRegister{}, fmt.Errorf("%w: no architecture mapping for %q", errOutOfRange, name)
	}
	return reg, nil
}

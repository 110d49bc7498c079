package machine

import (
	"encoding/binary"
	"fmt"
)

// OperandKind tags a DecodedOperand's payload shape.
type OperandKind int

const (
	OperandRegister OperandKind = iota
	OperandYMMRegister
	OperandImmediate
	OperandMemory
	OperandLabel
)

// DecodedOperand is the decoder's operand representation: Text is
// always the printable form, Value carries the numeric payload where
// one is defined (register index, immediate value, or computed
// effective address for memory operands).
type DecodedOperand struct {
	Kind  OperandKind
	Text  string
	Value uint64
}

// DecodedInstruction is the decoder's output for a single instruction.
type DecodedInstruction struct {
	Address  uint64
	Mnemonic string
	Operands []DecodedOperand
	Length   uint64
}

// Decoder walks a Memory's text segment, turning bytes into
// DecodedInstruction values. Unlike the C++ original, which keeps a
// process-global singleton, this is a small value owned by the
// simulator; its opcode tables are immutable once built and may be
// shared freely.
type Decoder struct{}

func NewDecoder() *Decoder { return &Decoder{} }

var gp32Names = [8]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}

// errDecodeFailed signals that no instruction matched at this address;
// callers advance by exactly one byte, per the documented policy in
// DESIGN.md resolving the spec's decode-failure open question.
var errDecodeFailed = fmt.Errorf("decode failed")

// Decode decodes a single instruction at address addr.
func (d *Decoder) Decode(mem *Memory, addr uint64) (DecodedInstruction, error) {
	b0, err := mem.ReadText(addr)
	if err != nil {
		return DecodedInstruction{}, err
	}

	if b0 == 0xC5 || b0 == 0xC4 {
		return d.decodeVEX(mem, addr, b0)
	}
	if b0 == 0x0F {
		return d.decodeTwoByte(mem, addr)
	}
	return d.decodeLegacy(mem, addr, b0)
}

// ScanText decodes every instruction in the text segment in order,
// building the address-to-index map used for cross-referencing jump
// targets. On a decode failure the scan advances by one byte and does
// not record an entry, matching original_source/program_decoder.cpp.
func (d *Decoder) ScanText(mem *Memory) ([]DecodedInstruction, map[uint64]int) {
	var instrs []DecodedInstruction
	index := make(map[uint64]int)

	addr := mem.TextStart()
	end := mem.TextStart() + mem.TextSize()
	for addr < end {
		instr, err := d.Decode(mem, addr)
		if err != nil || instr.Length == 0 {
			addr++
			continue
		}
		index[addr] = len(instrs)
		instrs = append(instrs, instr)
		addr += instr.Length
	}
	return instrs, index
}

// --- ModR/M ---

type modRM struct {
	mod, reg, rm int
}

func decodeModRMByte(b byte) modRM {
	return modRM{mod: int(b>>6) & 0x3, reg: int(b>>3) & 0x7, rm: int(b) & 0x7}
}

// --- Legacy one-byte opcodes ---

func (d *Decoder) decodeLegacy(mem *Memory, addr uint64, op byte) (DecodedInstruction, error) {
	switch {
	case op == 0x90:
		return di(addr, "nop", nil, 1), nil

	case op >= 0x50 && op <= 0x57:
		reg := int(op - 0x50)
		return di(addr, "push", []DecodedOperand{regOperand(gp32Names[reg])}, 1), nil

	case op >= 0x58 && op <= 0x5F:
		reg := int(op - 0x58)
		return di(addr, "pop", []DecodedOperand{regOperand(gp32Names[reg])}, 1), nil

	case op >= 0xB8 && op <= 0xBF:
		reg := int(op - 0xB8)
		imm, err := mem.ReadTextDword(addr + 1)
		if err != nil {
			return DecodedInstruction{}, err
		}
		return di(addr, "mov", []DecodedOperand{
			regOperand(gp32Names[reg]),
			immOperand(uint64(imm)),
		}, 5), nil

	case op == 0x89:
		return d.decodeRegRM(mem, addr, "mov", 2)
	case op == 0x01:
		return d.decodeRegRM(mem, addr, "add", 2)
	case op == 0x29:
		return d.decodeRegRM(mem, addr, "sub", 2)
	case op == 0x09:
		return d.decodeRegRM(mem, addr, "or", 2)
	case op == 0x21:
		return d.decodeRegRM(mem, addr, "and", 2)
	case op == 0x31:
		return d.decodeRegRM(mem, addr, "xor", 2)
	case op == 0x39:
		return d.decodeRegRM(mem, addr, "cmp", 2)

	case op == 0x83:
		modrmByte, err := mem.ReadText(addr + 1)
		if err != nil {
			return DecodedInstruction{}, err
		}
		mrm := decodeModRMByte(modrmByte)
		imm8, err := mem.ReadText(addr + 2)
		if err != nil {
			return DecodedInstruction{}, err
		}
		if mrm.mod != 0x3 {
			return DecodedInstruction{}, errDecodeFailed
		}
		var mnemonic string
		switch mrm.reg {
		case 6:
			mnemonic = "xor"
		case 7:
			mnemonic = "cmp"
		default:
			return DecodedInstruction{}, errDecodeFailed
		}
		return di(addr, mnemonic, []DecodedOperand{
			regOperand(gp32Names[mrm.rm]),
			immOperand(uint64(imm8)),
		}, 3), nil

	case op == 0xFF:
		modrmByte, err := mem.ReadText(addr + 1)
		if err != nil {
			return DecodedInstruction{}, err
		}
		mrm := decodeModRMByte(modrmByte)
		if mrm.mod != 0x3 {
			return DecodedInstruction{}, errDecodeFailed
		}
		switch mrm.reg {
		case 0:
			return di(addr, "inc", []DecodedOperand{regOperand(gp32Names[mrm.rm])}, 2), nil
		case 1:
			return di(addr, "dec", []DecodedOperand{regOperand(gp32Names[mrm.rm])}, 2), nil
		default:
			return DecodedInstruction{}, errDecodeFailed
		}

	case op == 0xF7:
		modrmByte, err := mem.ReadText(addr + 1)
		if err != nil {
			return DecodedInstruction{}, err
		}
		mrm := decodeModRMByte(modrmByte)
		if mrm.mod != 0x3 {
			return DecodedInstruction{}, errDecodeFailed
		}
		switch mrm.reg {
		case 2:
			return di(addr, "not", []DecodedOperand{regOperand(gp32Names[mrm.rm])}, 2), nil
		case 4:
			return di(addr, "mul", []DecodedOperand{regOperand(gp32Names[mrm.rm])}, 2), nil
		case 6:
			return di(addr, "div", []DecodedOperand{regOperand(gp32Names[mrm.rm])}, 2), nil
		default:
			return DecodedInstruction{}, errDecodeFailed
		}

	case op == 0x74, op == 0x75, op == 0x7C, op == 0x7D, op == 0x7F:
		mnemonic := map[byte]string{0x74: "je", 0x75: "jne", 0x7C: "jl", 0x7D: "jge", 0x7F: "jg"}[op]
		disp, err := mem.ReadText(addr + 1)
		if err != nil {
			return DecodedInstruction{}, err
		}
		target := int64(addr) + 2 + int64(int8(disp))
		return di(addr, mnemonic, []DecodedOperand{labelOperand(uint64(target))}, 2), nil

	case op == 0xE9:
		disp, err := mem.ReadTextDword(addr + 1)
		if err != nil {
			return DecodedInstruction{}, err
		}
		target := int64(addr) + 5 + int64(int32(disp))
		return di(addr, "jmp", []DecodedOperand{labelOperand(uint64(target))}, 5), nil

	case op == 0xCD:
		imm, err := mem.ReadText(addr + 1)
		if err != nil {
			return DecodedInstruction{}, err
		}
		return di(addr, "int", []DecodedOperand{immOperand(uint64(imm))}, 2), nil

	case op == 0xE4:
		imm, err := mem.ReadText(addr + 1)
		if err != nil {
			return DecodedInstruction{}, err
		}
		return di(addr, "in", []DecodedOperand{regOperand("al"), immOperand(uint64(imm))}, 2), nil

	case op == 0xE6:
		imm, err := mem.ReadText(addr + 1)
		if err != nil {
			return DecodedInstruction{}, err
		}
		return di(addr, "out", []DecodedOperand{immOperand(uint64(imm)), regOperand("al")}, 2), nil
	}

	return DecodedInstruction{}, errDecodeFailed
}

// decodeRegRM handles the common "op r/m32, r32" shape where only
// mod=11 (register-direct) is required.
func (d *Decoder) decodeRegRM(mem *Memory, addr uint64, mnemonic string, length uint64) (DecodedInstruction, error) {
	modrmByte, err := mem.ReadText(addr + 1)
	if err != nil {
		return DecodedInstruction{}, err
	}
	mrm := decodeModRMByte(modrmByte)
	if mrm.mod != 0x3 {
		return DecodedInstruction{}, errDecodeFailed
	}
	return di(addr, mnemonic, []DecodedOperand{
		regOperand(gp32Names[mrm.rm]),
		regOperand(gp32Names[mrm.reg]),
	}, length), nil
}

// --- Two-byte 0F opcodes ---

func (d *Decoder) decodeTwoByte(mem *Memory, addr uint64) (DecodedInstruction, error) {
	b1, err := mem.ReadText(addr + 1)
	if err != nil {
		return DecodedInstruction{}, err
	}
	if b1 == 0x8E {
		disp, err := mem.ReadTextDword(addr + 2)
		if err != nil {
			return DecodedInstruction{}, err
		}
		target := int64(addr) + 6 + int64(int32(disp))
		return di(addr, "jle", []DecodedOperand{labelOperand(uint64(target))}, 6), nil
	}
	return DecodedInstruction{}, errDecodeFailed
}

// --- VEX-prefixed AVX opcodes ---

type vexPrefix struct {
	bytes     int // 2 or 3
	mapSelect int
	l256      bool
	vvvv      int // already inverted (the non-destructive source index)
}

func (d *Decoder) decodeVEXPrefix(mem *Memory, addr uint64, lead byte) (vexPrefix, error) {
	if lead == 0xC5 {
		b1, err := mem.ReadText(addr + 1)
		if err != nil {
			return vexPrefix{}, err
		}
		return vexPrefix{
			bytes:     2,
			mapSelect: 1,
			l256:      (b1>>2)&0x1 != 0,
			vvvv:      (^int(b1>>3) & 0xF),
		}, nil
	}
	// 3-byte VEX: byte1 = RXB + map_select (low 5 bits), byte2 = W + vvvv + L + pp.
	b1, err := mem.ReadText(addr + 1)
	if err != nil {
		return vexPrefix{}, err
	}
	b2, err := mem.ReadText(addr + 2)
	if err != nil {
		return vexPrefix{}, err
	}
	return vexPrefix{
		bytes:     3,
		mapSelect: int(b1 & 0x1F),
		l256:      (b2>>2)&0x1 != 0,
		vvvv:      (^int(b2>>3) & 0xF),
	}, nil
}

var vexTable = map[byte]string{
	0x10: "vmovups", // load form
	0x11: "vmovups", // store form
	0x51: "vsqrtps",
	0x53: "vrcpps",
	0x58: "vaddps",
	0x5C: "vsubps",
	0x5D: "vminps",
	0x5E: "vdivps",
	0x5F: "vmaxps",
	0x77: "vzeroupper",
	0xD5: "vpmullw",
	0xDB: "vpand",
	0xDF: "vpandn",
	0xEB: "vpor",
	0xEF: "vpxor",
}

func vecName(l256 bool, idx int) string {
	if l256 {
		return fmt.Sprintf("ymm%d", idx)
	}
	return fmt.Sprintf("xmm%d", idx)
}

func (d *Decoder) decodeVEX(mem *Memory, addr uint64, lead byte) (DecodedInstruction, error) {
	vex, err := d.decodeVEXPrefix(mem, addr, lead)
	if err != nil {
		return DecodedInstruction{}, err
	}

	opcodeAddr := addr + uint64(vex.bytes)
	opcodeByte, err := mem.ReadText(opcodeAddr)
	if err != nil {
		return DecodedInstruction{}, err
	}
	mnemonic, ok := vexTable[opcodeByte]
	if !ok {
		return DecodedInstruction{}, errDecodeFailed
	}

	if mnemonic == "vzeroupper" {
		length := uint64(vex.bytes) + 1
		return di(addr, mnemonic, nil, length), nil
	}

	modrmAddr := opcodeAddr + 1
	modrmByte, err := mem.ReadText(modrmAddr)
	if err != nil {
		return DecodedInstruction{}, err
	}
	mrm := decodeModRMByte(modrmByte)
	destReg := vecName(vex.l256, mrm.reg)

	baseLen := uint64(vex.bytes) + 2 // vex + opcode + modrm

	switch opcodeByte {
	case 0x10, 0x11: // vmovups load/store
		if mrm.mod == 0x0 && mrm.rm == 0x5 {
			dispAddr := modrmAddr + 1
			disp, err := mem.ReadTextDword(dispAddr)
			if err != nil {
				return DecodedInstruction{}, err
			}
			length := baseLen + 4
			effAddr := addr + length + uint64(int32(disp))
			memOperand := DecodedOperand{Kind: OperandMemory, Text: fmt.Sprintf("[rip+0x%x]", disp), Value: effAddr}
			regOp := DecodedOperand{Kind: OperandYMMRegister, Text: destReg}
			if opcodeByte == 0x10 {
				return di(addr, mnemonic, []DecodedOperand{regOp, memOperand}, length), nil
			}
			return di(addr, mnemonic, []DecodedOperand{memOperand, regOp}, length), nil
		}
		if mrm.mod == 0x3 {
			srcReg := vecName(vex.l256, mrm.rm)
			regOp := DecodedOperand{Kind: OperandYMMRegister, Text: destReg}
			srcOp := DecodedOperand{Kind: OperandYMMRegister, Text: srcReg}
			if opcodeByte == 0x10 {
				return di(addr, mnemonic, []DecodedOperand{regOp, srcOp}, baseLen), nil
			}
			return di(addr, mnemonic, []DecodedOperand{srcOp, regOp}, baseLen), nil
		}
		return DecodedInstruction{}, errDecodeFailed

	case 0x51, 0x53: // vsqrtps / vrcpps: two-operand unary
		if mrm.mod != 0x3 {
			return DecodedInstruction{}, errDecodeFailed
		}
		srcReg := vecName(vex.l256, mrm.rm)
		return di(addr, mnemonic, []DecodedOperand{
			{Kind: OperandYMMRegister, Text: destReg},
			{Kind: OperandYMMRegister, Text: srcReg},
		}, baseLen), nil

	default: // three-operand arithmetic/logical
		if mrm.mod != 0x3 {
			return DecodedInstruction{}, errDecodeFailed
		}
		src1 := vecName(vex.l256, vex.vvvv)
		src2 := vecName(vex.l256, mrm.rm)
		return di(addr, mnemonic, []DecodedOperand{
			{Kind: OperandYMMRegister, Text: destReg},
			{Kind: OperandYMMRegister, Text: src1},
			{Kind: OperandYMMRegister, Text: src2},
		}, baseLen), nil
	}
}

// --- operand/instruction builders ---

func di(addr uint64, mnemonic string, ops []DecodedOperand, length uint64) DecodedInstruction {
	return DecodedInstruction{Address: addr, Mnemonic: mnemonic, Operands: ops, Length: length}
}

func regOperand(name string) DecodedOperand {
	return DecodedOperand{Kind: OperandRegister, Text: name}
}

func immOperand(v uint64) DecodedOperand {
	return DecodedOperand{Kind: OperandImmediate, Text: fmt.Sprintf("%d", v), Value: v}
}

func labelOperand(target uint64) DecodedOperand {
	return DecodedOperand{Kind: OperandLabel, Text: fmt.Sprintf("0x%x", target), Value: target}
}

// readLE32 is a small helper kept for callers outside Memory that hold
// a raw byte window (used by the packed-vector lane helpers and by
// tests that inspect vector register lanes).
func readLE32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

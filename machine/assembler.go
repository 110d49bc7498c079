package machine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type section int

const (
	sectionText section = iota
	sectionData
	sectionBss
)

// Assembler performs the two-pass text-to-bytes translation described
// in the run loop's harness contract: pass 1 sizes every instruction
// and data directive and records symbols without writing any bytes;
// pass 2 writes initialized data and emits instruction bytes against
// the completed symbol table.
type Assembler struct {
	mem     *Memory
	symbols map[string]uint64
}

func NewAssembler(mem *Memory) *Assembler {
	return &Assembler{mem: mem, symbols: make(map[string]uint64)}
}

// Symbols returns the completed symbol table after Assemble succeeds.
func (a *Assembler) Symbols() map[string]uint64 { return a.symbols }

// Assemble runs both passes over the given source lines and returns
// the initial RIP value (the entry_point label's address if present,
// else the text segment start).
func (a *Assembler) Assemble(lines []string, entryLabel string) (uint64, error) {
	stmts, err := a.firstPass(lines)
	if err != nil {
		return 0, err
	}
	if err := a.secondPass(stmts); err != nil {
		return 0, err
	}
	if entryLabel != "" {
		if addr, ok := a.symbols[entryLabel]; ok {
			return addr, nil
		}
	}
	return a.mem.TextStart(), nil
}

// statement is a single non-blank, non-comment assembly line, stripped
// of its label (if any) and tokenized.
type statement struct {
	section section
	tokens  []string
	addr    uint64 // address this statement begins at, recorded in pass 1
}

func (a *Assembler) firstPass(lines []string) ([]statement, error) {
	var stmts []statement
	sec := sectionText
	textLC := a.mem.TextStart()
	dataLC := a.mem.DataStart()
	bssLC := a.mem.BssStart()

	for _, raw := range lines {
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if idx := strings.Index(line, ":"); idx >= 0 && !strings.ContainsAny(line[:idx], " \t") {
			label := line[:idx]
			rest := strings.TrimSpace(line[idx+1:])
			a.symbols[label] = a.locationFor(sec, textLC, dataLC, bssLC)
			if rest == "" {
				continue
			}
			line = rest
		}

		tokens := tokenizeLine(line)
		if len(tokens) == 0 {
			continue
		}

		switch strings.ToLower(tokens[0]) {
		case "section":
			sec = sectionFromName(tokens[1])
			continue
		}

		if isDataDirective(tokens[0]) {
			size, err := dataDirectiveSize(tokens)
			if err != nil {
				return nil, err
			}
			switch sec {
			case sectionData:
				stmts = append(stmts, statement{section: sec, tokens: tokens, addr: dataLC})
				dataLC += size
			case sectionBss:
				bssLC += size
			default:
				return nil, fmt.Errorf("data directive outside .data/.bss section: %q", line)
			}
			continue
		}

		if isBssDirective(tokens[0]) {
			size, err := bssDirectiveSize(tokens)
			if err != nil {
				return nil, err
			}
			bssLC += size
			continue
		}

		// Instruction in the text section: size it with a throwaway encode.
		length, err := a.encodeLength(tokens)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, statement{section: sectionText, tokens: tokens, addr: textLC})
		textLC += length
	}

	a.mem.SetTextSize(textLC - a.mem.TextStart())
	return stmts, nil
}

func (a *Assembler) locationFor(sec section, textLC, dataLC, bssLC uint64) uint64 {
	switch sec {
	case sectionData:
		return dataLC
	case sectionBss:
		return bssLC
	default:
		return textLC
	}
}

func (a *Assembler) secondPass(stmts []statement) error {
	for _, st := range stmts {
		switch st.section {
		case sectionData:
			if err := a.emitData(st.addr, st.tokens); err != nil {
				return err
			}
		case sectionText:
			if err := a.emitInstruction(st.addr, st.tokens); err != nil {
				return err
			}
		}
	}
	return nil
}

func sectionFromName(name string) section {
	switch strings.TrimPrefix(strings.ToLower(name), ".") {
	case "data":
		return sectionData
	case "bss":
		return sectionBss
	default:
		return sectionText
	}
}

func isDataDirective(tok string) bool {
	switch strings.ToLower(tok) {
	case "db", ".byte", "dw", ".word", "dd", ".long", "dq", ".quad":
		return true
	}
	return false
}

func isBssDirective(tok string) bool {
	switch strings.ToLower(tok) {
	case "resb", "resw", "resd", "resq":
		return true
	}
	return false
}

func directiveUnitSize(tok string) uint64 {
	switch strings.ToLower(tok) {
	case "db", ".byte", "resb":
		return 1
	case "dw", ".word", "resw":
		return 2
	case "dd", ".long", "resd":
		return 4
	case "dq", ".quad", "resq":
		return 8
	}
	return 0
}

func dataDirectiveSize(tokens []string) (uint64, error) {
	unit := directiveUnitSize(tokens[0])
	values := splitOperands(tokens[1:])
	var total uint64
	for _, v := range values {
		if unit == 1 && (strings.HasPrefix(v, "\"") || strings.HasPrefix(v, "'")) {
			total += uint64(len(unquote(v)))
			continue
		}
		total += unit
	}
	return total, nil
}

func bssDirectiveSize(tokens []string) (uint64, error) {
	if len(tokens) < 2 {
		return 0, fmt.Errorf("missing count for %s", tokens[0])
	}
	n, err := strconv.ParseUint(tokens[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad count for %s: %w", tokens[0], err)
	}
	return n * directiveUnitSize(tokens[0]), nil
}

func (a *Assembler) emitData(addr uint64, tokens []string) error {
	unit := directiveUnitSize(tokens[0])
	values := splitOperands(tokens[1:])
	pos := addr
	for _, v := range values {
		if unit == 1 && (strings.HasPrefix(v, "\"") || strings.HasPrefix(v, "'")) {
			for _, c := range unquote(v) {
				if err := a.mem.WriteByte(pos, byte(c)); err != nil {
					return err
				}
				pos++
			}
			continue
		}
		if err := a.emitScalar(pos, unit, v); err != nil {
			return err
		}
		pos += unit
	}
	return nil
}

func (a *Assembler) emitScalar(addr uint64, unit uint64, literal string) error {
	if unit == 4 && strings.Contains(literal, ".") {
		f, err := strconv.ParseFloat(literal, 32)
		if err != nil {
			return fmt.Errorf("bad float literal %q: %w", literal, err)
		}
		return a.mem.WriteDword(addr, math.Float32bits(float32(f)))
	}
	v, err := parseIntLiteral(literal)
	if err != nil {
		return err
	}
	switch unit {
	case 1:
		return a.mem.WriteByte(addr, byte(v))
	case 2:
		return a.mem.WriteWord(addr, uint16(v))
	case 4:
		return a.mem.WriteDword(addr, uint32(v))
	default:
		return a.mem.WriteQword(addr, v)
	}
}

// encodeLength returns the byte length an instruction will occupy,
// without requiring the symbol table to be complete (labels resolve to
// zero during pass 1, which is safe because only the length is used).
func (a *Assembler) encodeLength(tokens []string) (uint64, error) {
	_, length, err := encodeInstruction(tokens, 0, a.symbols)
	return length, err
}

func (a *Assembler) emitInstruction(addr uint64, tokens []string) error {
	bytes, _, err := encodeInstruction(tokens, addr, a.symbols)
	if err != nil {
		return err
	}
	for i, b := range bytes {
		if err := a.mem.WriteText(addr+uint64(i), b); err != nil {
			return err
		}
	}
	return nil
}

// --- tokenizing ---

func stripComment(line string) string {
	inQuotes := false
	for i, c := range line {
		switch c {
		case '\'', '"':
			inQuotes = !inQuotes
		case ';':
			if !inQuotes {
				return line[:i]
			}
		}
	}
	return line
}

// tokenizeLine splits on whitespace and commas outside of quotes,
// keeping a quoted literal as one token (quote characters included).
func tokenizeLine(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, c := range line {
		switch {
		case c == '\'' || c == '"':
			inQuotes = !inQuotes
			cur.WriteRune(c)
		case inQuotes:
			cur.WriteRune(c)
		case c == ',':
			flush()
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteRune(c)
		}
	}
	flush()
	return tokens
}

func splitOperands(tokens []string) []string { return tokens }

func unquote(tok string) string {
	if len(tok) >= 2 && (tok[0] == '\'' || tok[0] == '"') {
		return tok[1 : len(tok)-1]
	}
	return tok
}

func parseIntLiteral(tok string) (uint64, error) {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		v, err := strconv.ParseUint(tok[2:], 16, 64)
		return v, err
	}
	if strings.HasPrefix(tok, "-") {
		v, err := strconv.ParseInt(tok, 10, 64)
		return uint64(v), err
	}
	return strconv.ParseUint(tok, 10, 64)
}

// --- fixed encoding table ---

var gp32Index = map[string]int{
	"eax": 0, "ecx": 1, "edx": 2, "ebx": 3, "esp": 4, "ebp": 5, "esi": 6, "edi": 7,
}

// encodeInstruction implements the fixed encoding rules from the
// external interfaces section: only the mnemonics/operand shapes
// listed there are required. addr is the instruction's own address,
// used for PC-relative branch encodings; it may be zero during pass 1
// since only the length is observed in that case.
func encodeInstruction(tokens []string, addr uint64, symbols map[string]uint64) ([]byte, uint64, error) {
	mnemonic := strings.ToLower(tokens[0])
	ops := splitCommaOperands(tokens[1:])

	switch mnemonic {
	case "nop":
		return []byte{0x90}, 1, nil

	case "mov":
		if len(ops) == 2 {
			if idx, ok := gp32Index[ops[1]]; ok {
				dst, ok := gp32Index[ops[0]]
				if !ok {
					return nil, 0, fmt.Errorf("mov: unknown destination register %q", ops[0])
				}
				return []byte{0x89, modrmByte(3, idx, dst)}, 2, nil
			}
			dst, ok := gp32Index[ops[0]]
			if !ok {
				return nil, 0, fmt.Errorf("mov: unknown destination register %q", ops[0])
			}
			imm, err := parseIntLiteral(ops[1])
			if err != nil {
				return nil, 0, fmt.Errorf("mov: bad immediate %q: %w", ops[1], err)
			}
			b := []byte{byte(0xB8 + dst), 0, 0, 0, 0}
			putLE32(b[1:], uint32(imm))
			return b, 5, nil
		}

	case "add":
		src, dst := gp32Index[ops[1]], gp32Index[ops[0]]
		return []byte{0x01, modrmByte(3, src, dst)}, 2, nil

	case "sub":
		src, dst := gp32Index[ops[1]], gp32Index[ops[0]]
		return []byte{0x29, modrmByte(3, src, dst)}, 2, nil

	case "or":
		src, dst := gp32Index[ops[1]], gp32Index[ops[0]]
		return []byte{0x09, modrmByte(3, src, dst)}, 2, nil

	case "and":
		src, dst := gp32Index[ops[1]], gp32Index[ops[0]]
		return []byte{0x21, modrmByte(3, src, dst)}, 2, nil

	case "inc":
		dst := gp32Index[ops[0]]
		return []byte{0xFF, modrmByte(3, 0, dst)}, 2, nil

	case "dec":
		dst := gp32Index[ops[0]]
		return []byte{0xFF, modrmByte(3, 1, dst)}, 2, nil

	case "not":
		dst := gp32Index[ops[0]]
		return []byte{0xF7, modrmByte(3, 2, dst)}, 2, nil

	case "mul":
		dst := gp32Index[ops[0]]
		return []byte{0xF7, modrmByte(3, 4, dst)}, 2, nil

	case "div":
		dst := gp32Index[ops[0]]
		return []byte{0xF7, modrmByte(3, 6, dst)}, 2, nil

	case "xor":
		if len(ops) == 2 {
			if dst, ok := gp32Index[ops[0]]; ok {
				if src, ok := gp32Index[ops[1]]; ok {
					return []byte{0x31, modrmByte(3, src, dst)}, 2, nil
				}
				imm, err := parseIntLiteral(ops[1])
				if err != nil {
					return nil, 0, fmt.Errorf("xor: bad immediate %q: %w", ops[1], err)
				}
				return []byte{0x83, modrmByte(3, 6, dst), byte(imm)}, 3, nil
			}
		}

	case "cmp":
		dst, ok := gp32Index[ops[0]]
		if !ok {
			return nil, 0, fmt.Errorf("cmp: unknown register %q", ops[0])
		}
		if src, ok := gp32Index[ops[1]]; ok {
			return []byte{0x39, modrmByte(3, src, dst)}, 2, nil
		}
		imm, err := parseIntLiteral(ops[1])
		if err != nil {
			return nil, 0, fmt.Errorf("cmp: bad immediate %q: %w", ops[1], err)
		}
		return []byte{0x83, modrmByte(3, 7, dst), byte(imm)}, 3, nil

	case "push":
		dst, ok := gp32Index[ops[0]]
		if !ok {
			return nil, 0, fmt.Errorf("push: unknown register %q", ops[0])
		}
		return []byte{byte(0x50 + dst)}, 1, nil

	case "pop":
		dst, ok := gp32Index[ops[0]]
		if !ok {
			return nil, 0, fmt.Errorf("pop: unknown register %q", ops[0])
		}
		return []byte{byte(0x58 + dst)}, 1, nil

	case "je", "jne", "jl", "jge", "jg":
		opByte := map[string]byte{"je": 0x74, "jne": 0x75, "jl": 0x7C, "jge": 0x7D, "jg": 0x7F}[mnemonic]
		target, ok := symbols[ops[0]]
		rel := int8(0)
		if ok {
			rel = int8(int64(target) - int64(addr+2))
		}
		return []byte{opByte, byte(rel)}, 2, nil

	case "jle":
		target, ok := symbols[ops[0]]
		var disp int32
		if ok {
			disp = int32(int64(target) - int64(addr+6))
		}
		b := []byte{0x0F, 0x8E, 0, 0, 0, 0}
		putLE32(b[2:], uint32(disp))
		return b, 6, nil

	case "jmp":
		target, ok := symbols[ops[0]]
		var disp int32
		if ok {
			disp = int32(int64(target) - int64(addr+5))
		}
		b := []byte{0xE9, 0, 0, 0, 0}
		putLE32(b[1:], uint32(disp))
		return b, 5, nil

	case "int":
		imm, err := parseIntLiteral(ops[0])
		if err != nil {
			return nil, 0, fmt.Errorf("int: bad immediate %q: %w", ops[0], err)
		}
		return []byte{0xCD, byte(imm)}, 2, nil

	case "in":
		imm, err := parseIntLiteral(ops[1])
		if err != nil {
			return nil, 0, fmt.Errorf("in: bad immediate %q: %w", ops[1], err)
		}
		return []byte{0xE4, byte(imm)}, 2, nil

	case "out":
		imm, err := parseIntLiteral(ops[0])
		if err != nil {
			return nil, 0, fmt.Errorf("out: bad immediate %q: %w", ops[0], err)
		}
		return []byte{0xE6, byte(imm)}, 2, nil
	}

	// Unknown mnemonics are sized as zero bytes in pass 1 and emit
	// nothing in pass 2, per the spec's explicit allowance.
	return nil, 0, nil
}

func splitCommaOperands(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if t == "," {
			continue
		}
		out = append(out, t)
	}
	return out
}

func modrmByte(mod, reg, rm int) byte {
	return byte((mod&0x3)<<6 | (reg&0x7)<<3 | (rm & 0x7))
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

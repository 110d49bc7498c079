package machine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

var errProgramFinished = errors.New("ran out of instructions")

// Simulator wires together every core component per the harness
// contract in the run loop spec: Memory, RegisterFile, Decoder,
// Architecture, Lifter and Interpreter, plus the LogSink collaborator.
// It owns a single program's lifecycle (assemble once, then run).
type Simulator struct {
	Mem    *Memory
	Regs   *RegisterFile
	Arch   *Architecture
	Dec    *Decoder
	Lift   *Lifter
	Interp *Interpreter
	Log    *LogSink

	symbols        map[string]uint64
	reverseSymbols map[uint64]string
	errcode        error
}

// NewSimulator builds a simulator with the default memory layout.
func NewSimulator(stdin io.Reader, logOut, stdoutW io.Writer) *Simulator {
	mem := NewMemory()
	regs := NewRegisterFile()
	arch := NewX86Architecture()
	dec := NewDecoder()
	lift := NewLifter(arch)
	log := NewLogSink(logOut, stdoutW)
	interp := NewInterpreter(mem, regs, arch, bufio.NewReader(stdin), log)

	return &Simulator{Mem: mem, Regs: regs, Arch: arch, Dec: dec, Lift: lift, Interp: interp, Log: log}
}

// Assemble loads and assembles program source, initializing RIP and
// rsp for execution.
func (s *Simulator) Assemble(lines []string, entryLabel string) error {
	asm := NewAssembler(s.Mem)
	entry, err := asm.Assemble(lines, entryLabel)
	if err != nil {
		return err
	}
	s.symbols = asm.Symbols()
	s.reverseSymbols = make(map[uint64]string, len(s.symbols))
	for name, addr := range s.symbols {
		s.reverseSymbols[addr] = name
	}
	s.Regs.SetRIP(entry)
	if err := s.Regs.Set64("rsp", s.Mem.StackEnd()); err != nil {
		return err
	}
	return nil
}

func (s *Simulator) Symbols() map[string]uint64 { return s.symbols }

// Step runs exactly one fetch/decode/lift/execute/reconcile cycle.
// It returns (true, nil) once the program has halted normally (RIP
// left the text segment, or a sys_exit syscall halted the interpreter).
func (s *Simulator) Step() (bool, error) {
	ip := s.Regs.RIP()
	if ip < s.Mem.TextStart() || ip >= s.Mem.TextStart()+s.Mem.TextSize() {
		return true, nil
	}

	instr, err := s.Dec.Decode(s.Mem, ip)
	if err != nil || instr.Length == 0 {
		s.Log.Logf(LevelWarning, ip, "decode failure, advancing one byte")
		s.Regs.SetRIP(ip + 1)
		return false, nil
	}

	ir, err := s.Lift.Lift(instr)
	if err != nil {
		s.Log.Logf(LevelWarning, ip, "lift failure: %v", err)
		s.Regs.SetRIP(ip + instr.Length)
		return false, nil
	}

	if err := s.Interp.Execute(ir); err != nil {
		s.errcode = err
		s.Log.Log(LevelError, ip, err.Error())
		return true, err
	}

	if s.Regs.RIP() == ip {
		s.Regs.SetRIP(ip + instr.Length)
	}
	s.Regs.SyncRFLAGSToStore()

	return s.Interp.Halted(), nil
}

// Run executes instructions headlessly until the program halts or a
// fatal error occurs.
func (s *Simulator) Run() error {
	for {
		halted, err := s.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// LastError returns the fatal error, if any, that stopped the last Run.
func (s *Simulator) LastError() error { return s.errcode }

// DescribeAt returns the describer's prose for the instruction at addr.
func (s *Simulator) DescribeAt(addr uint64) (string, error) {
	instr, err := s.Dec.Decode(s.Mem, addr)
	if err != nil {
		return "", err
	}
	return DescribeInstruction(instr, s.reverseSymbols), nil
}

// FormatState renders a compact one-line summary of the register file,
// used by the interactive run loop between steps.
func (s *Simulator) FormatState() string {
	eax, _ := s.Regs.Get32("eax")
	ebx, _ := s.Regs.Get32("ebx")
	ecx, _ := s.Regs.Get32("ecx")
	edx, _ := s.Regs.Get32("edx")
	return fmt.Sprintf(
		"rip=0x%x eax=0x%x ebx=0x%x ecx=0x%x edx=0x%x ZF=%v SF=%v CF=%v OF=%v",
		s.Regs.RIP(), eax, ebx, ecx, edx, s.Regs.ZF(), s.Regs.SF(), s.Regs.CF(), s.Regs.OF(),
	)
}

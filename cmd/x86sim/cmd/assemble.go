package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"x86sim/machine"
)

var assembleCmd = &cobra.Command{
	Use:     "assemble <file.asm>",
	GroupID: "exec",
	Short:   "Assemble a program and print its symbol table and text segment",
	Args:    cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		lines, err := machine.LoadSourceFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		sim := machine.NewSimulator(os.Stdin, os.Stdout, os.Stdout)
		if err := sim.Assemble(lines, entryLabel); err != nil {
			return fmt.Errorf("assembling %s: %w", args[0], err)
		}

		symbols := sim.Symbols()
		names := make([]string, 0, len(symbols))
		for name := range symbols {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("symbols:")
		for _, name := range names {
			fmt.Printf("  %-20s 0x%x\n", name, symbols[name])
		}

		fmt.Printf("\ntext segment (%d bytes):\n", sim.Mem.TextSize())
		for addr := sim.Mem.TextStart(); addr < sim.Mem.TextStart()+sim.Mem.TextSize(); addr += 16 {
			fmt.Printf("  0x%06x: ", addr)
			for i := uint64(0); i < 16 && addr+i < sim.Mem.TextStart()+sim.Mem.TextSize(); i++ {
				b, _ := sim.Mem.ReadText(addr + i)
				fmt.Printf("%02x ", b)
			}
			fmt.Println()
		}
		return nil
	},
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"x86sim/machine"
)

var (
	interactive bool
	entryLabel  string
	configPath  string
)

var runCmd = &cobra.Command{
	Use:     "run <file.asm>",
	GroupID: "exec",
	Short:   "Assemble and execute a program",
	Args:    cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		lines, err := machine.LoadSourceFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		if configPath != "" {
			if _, err := machine.LoadConfig(configPath); err != nil {
				fmt.Fprintf(os.Stderr, "config %s: %v (continuing with zero processes)\n", configPath, err)
			}
		}

		sim := machine.NewSimulator(os.Stdin, os.Stdout, os.Stdout)
		if err := sim.Assemble(lines, entryLabel); err != nil {
			return fmt.Errorf("assembling %s: %w", args[0], err)
		}

		if interactive {
			return machine.RunInteractive(sim, os.Stdin, os.Stdout)
		}
		return machine.RunHeadless(sim, os.Stdout)
	},
}

func init() {
	runCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "step through the program interactively")
	runCmd.Flags().StringVarP(&entryLabel, "entry", "e", "_start", "entry point label")
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a process/device config JSON file")
}

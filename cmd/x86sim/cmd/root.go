package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "x86sim",
	Short: "A user-space x86/x86-64 + AVX instruction set simulator",
	Long:  `x86sim assembles, decodes, lifts and interprets a subset of x86/x86-64 and 256-bit AVX.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "exec",
		Title: "Execution",
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(assembleCmd)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vmgen",
	Short: "Generate view-model classes and wire codecs from a schema",
	Long: `vmgen reads a view-model schema and optional Go override source and
generates typed view-model classes with dirty tracking and a compact
JSON wire codec supporting full and delta encodes.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

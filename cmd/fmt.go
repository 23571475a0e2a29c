package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/vmgen/internal/compiler"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [schema.json] [payload.json]",
	Short: "Print the canonical encoding of a payload",
	Long: `Fmt decodes a payload against a schema and prints it re-encoded in full:
unknown properties dropped, missing ones defaulted, declaration order and
compact form restored.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		payload, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		res, err := compiler.New(nil, nil).Compile(cmd.Context(), compiler.Request{Schema: src})
		if err != nil {
			return err
		}
		in, err := res.Codec.Decode(payload)
		if err != nil {
			return fmt.Errorf("%s: %w", args[1], err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", res.Codec.EncodeFull(in))
		return err
	},
}

func init() {
	rootCmd.AddCommand(fmtCmd)
}

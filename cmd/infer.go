package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/vmgen/internal/infer"
	"github.com/agentic-research/vmgen/schema"
)

var inferConfig = infer.DefaultConfig()

var inferCmd = &cobra.Command{
	Use:   "infer [payload.json...]",
	Short: "Infer a schema from sample payloads",
	Long: `Infer merges the structure of sample JSON payloads into a view-model
schema and prints it. Properties keep the order they are first seen in.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payloads := make([][]byte, len(args))
		for i, path := range args {
			var err error
			if payloads[i], err = os.ReadFile(path); err != nil {
				return err
			}
		}
		inf := &infer.Inferrer{Config: inferConfig}
		res, err := inf.Infer(payloads)
		if err != nil {
			return err
		}
		for _, p := range res.Context.Optional() {
			log.Printf("infer: %s is missing from some samples", p)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", schema.Format(res.Root))
		return err
	},
}

func init() {
	inferCmd.Flags().StringVarP(&inferConfig.Name, "name", "n", inferConfig.Name, "root class name")
	inferCmd.Flags().IntVar(&inferConfig.SampleSize, "sample", inferConfig.SampleSize, "max payloads to sample")
	inferCmd.Flags().Int64Var(&inferConfig.Seed, "seed", 0, "sampling seed")
	rootCmd.AddCommand(inferCmd)
}

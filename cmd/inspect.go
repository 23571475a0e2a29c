package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/vmgen/internal/bufop"
	"github.com/agentic-research/vmgen/internal/compiler"
	"github.com/agentic-research/vmgen/schema"
)

var (
	inspectBehavior string
	inspectClass    string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [schema.json]",
	Short: "Print the template tree, class plan and buffer-operation trees",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := compiler.Request{Class: inspectClass}
		var err error
		if req.Schema, err = os.ReadFile(args[0]); err != nil {
			return err
		}
		if inspectBehavior != "" {
			if req.Behavior, err = os.ReadFile(inspectBehavior); err != nil {
				return err
			}
		}
		m, lint, err := compiler.New(nil, nil).Model(req)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "# template %s (%016x)\n", m.Root.Name, schema.Fingerprint(m.Root))
		err = m.Root.Walk(func(path string, p *schema.Template) error {
			fmt.Fprintf(w, "%s %s", path, p.Kind)
			if p.Default != nil {
				fmt.Fprintf(w, " = %v", p.Default)
			}
			fmt.Fprintln(w)
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n# model (%016x)\n%s", m.Fingerprint, m.Dump())
		fmt.Fprintf(w, "\n# program\n%s", bufop.Lower(m).Dump())
		for _, d := range lint {
			fmt.Fprintf(w, "warning: %s\n", d)
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectBehavior, "behavior", "b", "", "Go override source")
	inspectCmd.Flags().StringVar(&inspectClass, "class", "", "root class name (default: schema name)")
	rootCmd.AddCommand(inspectCmd)
}

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show the built-in model catalog and pricing used for cost estimates",
	Example: `  datalens models
  datalens models --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		w := cmd.OutOrStdout()
		if modelsJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(cat)
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tCONTEXT\tIN $/1K\tOUT $/1K")
		for _, m := range cat {
			fmt.Fprintf(tw, "%s\t%d\t%.5f\t%.5f\n", m.Name, m.ContextTokens, m.InputPerK, m.OutputPerK)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nProviders: %s\n", strings.Join(ai.Providers(), ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the catalog as JSON")
}

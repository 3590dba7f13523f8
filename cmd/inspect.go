package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/ingest"
	"github.com/KaramelBytes/datalens-cli/internal/profile"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

var inspJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the dataset summary and per-column profile without calling a model",
	Example: `  datalens inspect sales.csv
  datalens inspect sales.xlsx --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		name := filepath.Base(path)
		ds, err := ingest.Load(name, content)
		if err != nil {
			return err
		}
		sum := dataset.Summarize(name, ds)
		cols, err := profile.Build(ds)
		if err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}

		w := cmd.OutOrStdout()
		if inspJSON {
			b, err := utils.PrettyJSON(struct {
				Summary dataset.Summary  `json:"summary"`
				Profile []profile.Column `json:"profile"`
			}{sum, cols})
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(b))
			return nil
		}

		js, err := sum.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "✓ %s: %d rows, %d columns\n\n", name, sum.RowCount, len(sum.Columns))
		fmt.Fprintln(w, "=== Summary ===")
		fmt.Fprintln(w, js)
		fmt.Fprintln(w, "\n=== Profile ===")
		return writeProfile(w, cols)
	},
}

func writeProfile(w io.Writer, cols []profile.Column) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tNON-NULL\tMISSING\tDISTINCT\tMIN\tMAX\tMEAN\tMEDIAN")
	for _, c := range cols {
		lo, hi, mean, median := "-", "-", "-", "-"
		if n := c.Numeric; n != nil {
			lo, hi, mean, median = num(n.Min), num(n.Max), num(n.Mean), num(n.Median)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			c.Name, c.Type, c.NonNull, c.Missing, c.Distinct, lo, hi, mean, median)
	}
	return tw.Flush()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspJSON, "json", false, "print summary and profile as JSON")
}

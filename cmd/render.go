package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens-cli/internal/apperr"
	"github.com/KaramelBytes/datalens-cli/internal/render"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

var (
	rndHTMLPath string
	rndPDFPath  string
	rndTitle    string
)

var renderCmd = &cobra.Command{
	Use:   "render <report.md>",
	Short: "Render a saved report to HTML or PDF",
	Example: `  datalens render report.md --html report.html
  datalens render report.md --pdf report.pdf --title "Q3 Sales"
  datalens render report.md > report.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		title := rndTitle
		if title == "" {
			title = render.Title("")
		}
		doc := render.Document(title, render.Markup(string(b)))

		if rndHTMLPath == "" && rndPDFPath == "" {
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		}
		if rndHTMLPath != "" {
			if err := utils.SafeWriteFile(rndHTMLPath, []byte(doc)); err != nil {
				return apperr.Wrap(apperr.KindExportUnavailable, err, "write html export")
			}
			fmt.Printf("✓ Wrote HTML to %s\n", rndHTMLPath)
		}
		if rndPDFPath != "" {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			pdf, err := newPrinter().Print(ctx, doc)
			if err != nil {
				return err
			}
			if err := utils.SafeWriteFile(rndPDFPath, pdf); err != nil {
				return apperr.Wrap(apperr.KindExportUnavailable, err, "write pdf export")
			}
			fmt.Printf("✓ Wrote PDF to %s\n", rndPDFPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVar(&rndHTMLPath, "html", "", "write a standalone HTML document")
	renderCmd.Flags().StringVar(&rndPDFPath, "pdf", "", "write a PDF (requires Chrome or Chromium)")
	renderCmd.Flags().StringVar(&rndTitle, "title", "", "document title (default \"Data Analysis Report\")")
}

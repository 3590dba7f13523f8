package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/export"
	"github.com/KaramelBytes/datalens-cli/internal/logger"
	"github.com/KaramelBytes/datalens-cli/internal/prompt"
	"github.com/KaramelBytes/datalens-cli/internal/session"
)

var (
	anaRefine      string
	anaOutputPath  string
	anaHTMLPath    string
	anaPDFPath     string
	anaDryRun      bool
	anaJSON        bool
	anaQuiet       bool
	anaModel       string
	anaProvider    string
	anaOllamaHost  string
	anaMaxTokens   int
	anaTemperature float64
	anaBudgetLimit float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Generate an AI analysis report for a CSV or Excel file",
	Example: `  datalens analyze sales.csv
  datalens analyze sales.xlsx --output report.md --html report.html
  datalens analyze survey.csv --refine "focus on regional differences" --pdf survey.pdf
  datalens analyze data.csv --provider anthropic --model claude-3-5-sonnet-latest
  datalens analyze data.csv --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if anaJSON {
			anaQuiet = true
		}
		c := currentConfig()

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: anaProvider, OllamaHost: anaOllamaHost})
		if err != nil {
			return err
		}
		model := selectModel(c, anaModel, provider)
		maxTokens := anaMaxTokens
		if maxTokens <= 0 {
			maxTokens = c.MaxTokens
		}
		temp := c.Temperature
		if cmd.Flags().Changed("temperature") {
			temp = anaTemperature
		}
		budget := c.BudgetLimitUSD
		if cmd.Flags().Changed("budget-limit") {
			budget = anaBudgetLimit
		}

		sess := session.New(session.Config{
			Runtime:     rt,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temp,
			Logger:      logger.L(),
		})
		if err := sess.Upload(filepath.Base(path), content); err != nil {
			return err
		}
		if !anaQuiet {
			st := sess.State()
			fmt.Printf("✓ Loaded %s (%d rows)\n", st.FileName, st.RowCount)
		}

		refine := strings.TrimSpace(anaRefine)
		modes := []prompt.Mode{prompt.ModeInitial}
		if refine != "" {
			modes = append(modes, prompt.ModeRegenerate)
		}

		// Both requests are estimated up front so the budget applies to the whole run.
		sess.SetDirective(refine)
		var total estimate
		var previews []prompt.Request
		for _, m := range modes {
			req, err := sess.Preview(m)
			if err != nil {
				return err
			}
			e := estimateRequest(req)
			total.PromptTokens += e.PromptTokens
			total.CostUSD += e.CostUSD
			total.Priced = e.Priced
			previews = append(previews, req)
		}
		if !anaQuiet {
			fmt.Printf("Model: %s (%s)\n", model, provider)
			if total.Priced {
				fmt.Printf("Prompt tokens: ~%d, estimated cost: ~$%.4f\n", total.PromptTokens, total.CostUSD)
			} else {
				fmt.Printf("Prompt tokens: ~%d (no pricing known for %s)\n", total.PromptTokens, model)
			}
		}
		if err := enforceBudget(total.CostUSD, budget); err != nil {
			return err
		}

		if anaDryRun {
			for _, req := range previews {
				e := estimateRequest(req)
				fmt.Printf("\n--- %s request (system ~%d, user ~%d tokens) ---\n[SYSTEM]\n%s\n\n[USER]\n%s\n",
					req.Mode, e.System, e.PromptTokens-e.System, req.System, req.User)
			}
			fmt.Println("\n⚠ Dry run: no request was sent")
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !anaQuiet {
			fmt.Println("Generating report...")
		}
		report, err := sess.Analyze(ctx)
		if err != nil {
			return err
		}
		if refine != "" {
			if !anaQuiet {
				fmt.Println("✓ Initial report ready, refining...")
			}
			report, err = sess.Regenerate(ctx)
			if err != nil {
				return err
			}
		}

		if err := formatAndWriteOutput(report, outputOptions{
			JSON:       anaJSON,
			Quiet:      anaQuiet,
			File:       path,
			Model:      model,
			Provider:   provider,
			Directive:  refine,
			Estimate:   total,
			Usage:      sess.State().Usage,
			OutputPath: anaOutputPath,
		}); err != nil {
			return err
		}
		return exportReport(ctx, path, report, anaHTMLPath, anaPDFPath, anaQuiet)
	},
}

func exportReport(ctx context.Context, fileName, report, htmlPath, pdfPath string, quiet bool) error {
	if htmlPath != "" {
		if err := export.WriteHTML(htmlPath, fileName, report); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("✓ Wrote HTML to %s\n", htmlPath)
		}
	}
	if pdfPath != "" {
		if err := newPrinter().WritePDF(ctx, pdfPath, fileName, report); err != nil {
			return err
		}
		if !quiet {
			fmt.Printf("✓ Wrote PDF to %s\n", pdfPath)
		}
	}
	return nil
}

func newPrinter() export.Printer {
	c := currentConfig()
	return export.Printer{
		ExecPath: c.ChromePath,
		Timeout:  time.Duration(c.ExportTimeoutSec) * time.Second,
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaRefine, "refine", "", "refinement directive: regenerate the report focused on this feedback")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "write the report to a file (.md, .txt or .json)")
	analyzeCmd.Flags().StringVar(&anaHTMLPath, "html", "", "also export the report as a standalone HTML document")
	analyzeCmd.Flags().StringVar(&anaPDFPath, "pdf", "", "also export the report as PDF (requires Chrome or Chromium)")
	analyzeCmd.Flags().BoolVar(&anaDryRun, "dry-run", false, "print the prompts and cost estimate without calling the model")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "print the result as JSON")
	analyzeCmd.Flags().BoolVarP(&anaQuiet, "quiet", "q", false, "suppress progress output")
	analyzeCmd.Flags().StringVar(&anaModel, "model", "", "model to use (default from config or provider)")
	analyzeCmd.Flags().StringVar(&anaProvider, "provider", "", "generation provider: "+strings.Join(ai.Providers(), "|"))
	analyzeCmd.Flags().StringVar(&anaOllamaHost, "ollama-host", "", "Ollama host (default from config)")
	analyzeCmd.Flags().IntVar(&anaMaxTokens, "max-tokens", 0, "maximum report tokens (default from config)")
	analyzeCmd.Flags().Float64Var(&anaTemperature, "temperature", 0, "sampling temperature (default from config)")
	analyzeCmd.Flags().Float64Var(&anaBudgetLimit, "budget-limit", 0, "abort when the estimated cost in USD exceeds this limit")
}

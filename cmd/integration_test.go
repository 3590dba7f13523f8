package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
)

const stubProvider = "stub"

var stubCalls atomic.Int32

func init() {
	ai.RegisterRuntime(stubProvider, func(ai.RuntimeConfig) ai.Runtime {
		return ai.RuntimeFunc(func(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
			text := "# Sales Report\nRevenue is **up**."
			if stubCalls.Add(1) > 1 {
				text = "# Refined Report"
			}
			return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: ai.RoleAssistant, Content: text}}}}, nil
		})
	})
}

// runCmd executes the root command with args, resetting sticky flag state first.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, c := range []*cobra.Command{analyzeCmd, inspectCmd, renderCmd} {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
	anaQuiet, anaJSON, anaDryRun = false, false, false
	anaRefine, anaOutputPath, anaHTMLPath, anaPDFPath = "", "", "", ""
	anaProvider, anaModel, anaBudgetLimit = "", "", 0
	inspJSON = false
	rndHTMLPath, rndPDFPath, rndTitle = "", "", ""
	stubCalls.Store(0)

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	data := "region,revenue,date\nNorth,100,2024-01-01\nSouth,250,2024-01-02\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestCLI_AnalyzeWritesReportAndHTML(t *testing.T) {
	src := writeCSV(t)
	dir := filepath.Dir(src)
	out := filepath.Join(dir, "report.md")
	html := filepath.Join(dir, "report.html")

	if _, err := runCmd(t, "analyze", src, "--provider", stubProvider, "--model", "m", "-q", "--output", out, "--html", html); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if got := stubCalls.Load(); got != 1 {
		t.Fatalf("expected one generation call, got %d", got)
	}
	md, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(md), "# Sales Report") {
		t.Fatalf("unexpected report: %q", md)
	}
	doc, err := os.ReadFile(html)
	if err != nil {
		t.Fatalf("read html: %v", err)
	}
	for _, want := range []string{"<title>Data Analysis Report - sales.csv</title>", "<h1>Sales Report</h1>", "<strong>up</strong>"} {
		if !strings.Contains(string(doc), want) {
			t.Fatalf("html missing %q:\n%s", want, doc)
		}
	}
}

func TestCLI_AnalyzeRefineRegenerates(t *testing.T) {
	src := writeCSV(t)
	out := filepath.Join(filepath.Dir(src), "refined.md")
	if _, err := runCmd(t, "analyze", src, "--provider", stubProvider, "--model", "m", "-q", "--refine", "focus on South", "--output", out); err != nil {
		t.Fatalf("analyze --refine failed: %v", err)
	}
	if got := stubCalls.Load(); got != 2 {
		t.Fatalf("expected initial and refined calls, got %d", got)
	}
	md, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.HasPrefix(string(md), "# Refined Report") {
		t.Fatalf("expected refined report, got %q", md)
	}
}

func TestCLI_DryRunSendsNothing(t *testing.T) {
	src := writeCSV(t)
	if _, err := runCmd(t, "analyze", src, "--provider", stubProvider, "--model", "m", "--dry-run", "-q"); err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if got := stubCalls.Load(); got != 0 {
		t.Fatalf("dry run must not call the model, got %d calls", got)
	}
}

func TestCLI_BudgetLimitBlocksGeneration(t *testing.T) {
	src := writeCSV(t)
	_, err := runCmd(t, "analyze", src, "--provider", stubProvider, "--model", "openai/gpt-4o-mini", "-q", "--budget-limit", "0.0000001")
	if err == nil || !strings.Contains(err.Error(), "exceeds budget limit") {
		t.Fatalf("expected budget error, got %v", err)
	}
	if got := stubCalls.Load(); got != 0 {
		t.Fatalf("budget guard must run before generation, got %d calls", got)
	}
}

func TestCLI_AnalyzeRejectsUnsupportedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "analyze", path, "--provider", stubProvider, "-q"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestCLI_InspectPrintsProfile(t *testing.T) {
	src := writeCSV(t)
	out, err := runCmd(t, "inspect", src)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	for _, want := range []string{"sales.csv: 2 rows, 3 columns", "revenue", "numeric", "date"} {
		if !strings.Contains(out, want) {
			t.Fatalf("inspect output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_RenderToStdout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	if err := os.WriteFile(path, []byte("## Findings\n*note*"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runCmd(t, "render", path, "--title", "Q3 <Sales>")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{"<title>Q3 &lt;Sales&gt;</title>", "<h2>Findings</h2>", "<em>note</em>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render output missing %q:\n%s", want, out)
		}
	}
}

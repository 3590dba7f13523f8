package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/datalens-cli/internal/config"
	"github.com/KaramelBytes/datalens-cli/internal/prompt"
)

func TestSelectModelPrecedence(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultModel: "cfg-model"}

	if got := selectModel(cfg, "cli-model", ai.ProviderOpenRouter); got != "cli-model" {
		t.Fatalf("expected CLI model, got %q", got)
	}
	if got := selectModel(cfg, "", ai.ProviderOpenRouter); got != "cfg-model" {
		t.Fatalf("expected config model, got %q", got)
	}
	cfg.DefaultModel = ""
	if got := selectModel(cfg, "", ai.ProviderOllama); got != ai.DefaultModel(ai.ProviderOllama) {
		t.Fatalf("expected ollama fallback model, got %q", got)
	}
	if got := selectModel(nil, "", ai.ProviderAnthropic); got != "claude-3-5-sonnet-latest" {
		t.Fatalf("expected anthropic fallback model, got %q", got)
	}
}

func TestEnforceBudget(t *testing.T) {
	if err := enforceBudget(0.0, 1.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := enforceBudget(2.0, 0); err != nil {
		t.Fatalf("zero limit must disable the check: %v", err)
	}
	if err := enforceBudget(2.0, 1.0); err == nil {
		t.Fatal("expected error when cost exceeds budget")
	}
}

func TestResolveProviderAliases(t *testing.T) {
	cases := map[string]string{
		"":           ai.ProviderOpenRouter,
		"OpenRouter": ai.ProviderOpenRouter,
		"claude":     ai.ProviderAnthropic,
		"local":      ai.ProviderOllama,
		"ollama":     ai.ProviderOllama,
		"bogus":      "bogus",
	}
	for in, want := range cases {
		if got := resolveProvider(nil, in); got != want {
			t.Fatalf("resolveProvider(%q) = %q, want %q", in, got, want)
		}
	}
	if got := resolveProvider(&cfgpkg.Global{DefaultProvider: "anthropic"}, ""); got != ai.ProviderAnthropic {
		t.Fatalf("expected config provider, got %q", got)
	}
}

func TestBuildRuntimeDefaults(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultProvider: "local", OllamaHost: "http://example"}
	client, provider, err := buildRuntime(cfg, runtimeOptions{})
	if err != nil {
		t.Fatalf("buildRuntime error: %v", err)
	}
	if provider != ai.ProviderOllama {
		t.Fatalf("expected ollama provider, got %q", provider)
	}
	if _, ok := client.(*ai.OllamaClient); !ok {
		t.Fatalf("expected *ai.OllamaClient, got %T", client)
	}

	client, provider, err = buildRuntime(cfg, runtimeOptions{ProviderFlag: "anthropic"})
	if err != nil {
		t.Fatalf("buildRuntime error: %v", err)
	}
	if _, ok := client.(*ai.AnthropicClient); !ok || provider != ai.ProviderAnthropic {
		t.Fatalf("expected anthropic client, got %T (%s)", client, provider)
	}
}

func TestBuildRuntimeUnknownProvider(t *testing.T) {
	if _, _, err := buildRuntime(nil, runtimeOptions{ProviderFlag: "nope"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestEstimateRequest(t *testing.T) {
	req := prompt.Request{System: "system text", User: strings.Repeat("data ", 200), Model: "openai/gpt-4o-mini", MaxTokens: 100}
	e := estimateRequest(req)
	if e.PromptTokens <= 0 {
		t.Fatalf("expected positive token estimate, got %d", e.PromptTokens)
	}
	if !e.Priced || e.CostUSD <= 0 {
		t.Fatalf("expected priced estimate, got %+v", e)
	}
	req.Model = "unknown/model"
	if e := estimateRequest(req); e.Priced || e.CostUSD != 0 {
		t.Fatalf("expected unpriced estimate, got %+v", e)
	}
}

func TestFormatAndWriteOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.md")
	buf := &bytes.Buffer{}
	if err := formatAndWriteOutput("# Report", outputOptions{
		File:       "/tmp/sales.csv",
		Model:      "model",
		OutputPath: path,
		Writer:     buf,
	}); err != nil {
		t.Fatalf("formatAndWriteOutput error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "=== Analysis Report ===") || !strings.Contains(out, "Saved report to") {
		t.Fatalf("expected formatted output, got %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output file: %v", err)
	}
	if string(data) != "# Report" {
		t.Fatalf("unexpected file content: %q", string(data))
	}
}

func TestFormatAndWriteOutputJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	buf := &bytes.Buffer{}
	if err := formatAndWriteOutput("body", outputOptions{
		Quiet:      true,
		File:       "data/sales.csv",
		Model:      "m",
		Provider:   ai.ProviderOllama,
		Directive:  "focus on Q3",
		OutputPath: path,
		Writer:     buf,
	}); err != nil {
		t.Fatalf("formatAndWriteOutput error: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("quiet run with an output path should print nothing, got %q", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output file: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["report"] != "body" || got["file"] != "sales.csv" || got["directive"] != "focus on Q3" {
		t.Fatalf("unexpected envelope: %v", got)
	}
}

func TestMask(t *testing.T) {
	if mask("") != "" {
		t.Fatal("empty key must stay empty")
	}
	if mask("abc") != "******" {
		t.Fatalf("short key not fully masked: %q", mask("abc"))
	}
	if got := mask("sk-or-1234567890"); got != "sk-****890" {
		t.Fatalf("unexpected mask: %q", got)
	}
}

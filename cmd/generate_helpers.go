package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/datalens-cli/internal/config"
	"github.com/KaramelBytes/datalens-cli/internal/prompt"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

func resolveProvider(cfg *cfgpkg.Global, flag string) string {
	p := strings.ToLower(strings.TrimSpace(flag))
	if p == "" && cfg != nil {
		p = strings.ToLower(cfg.DefaultProvider)
	}
	switch p {
	case "", ai.ProviderOpenRouter:
		return ai.ProviderOpenRouter
	case "claude":
		return ai.ProviderAnthropic
	case "local":
		return ai.ProviderOllama
	}
	return p
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	if cfg == nil {
		cfg = &cfgpkg.Global{}
	}
	provider := resolveProvider(cfg, opts.ProviderFlag)

	rc := ai.RuntimeConfig{
		HTTPTimeout: cfg.HTTPTimeout(provider),
		Retry: ai.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
		},
		APIKey:  cfg.APIKeyFor(provider),
		BaseURL: cfg.BaseURL,
	}
	if provider == ai.ProviderOllama {
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" {
			host = cfg.OllamaHost
		}
		rc.Host = host
	}

	rt, ok := ai.GetRuntime(provider, rc)
	if !ok {
		return nil, provider, fmt.Errorf("provider not supported: %s (use %s)", provider, strings.Join(ai.Providers(), "|"))
	}
	return rt, provider, nil
}

func selectModel(cfg *cfgpkg.Global, explicit, provider string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return ai.DefaultModel(provider)
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return fmt.Errorf("✗ Estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

// estimate is the pre-flight token and cost figure for one request.
type estimate struct {
	PromptTokens int
	System       int
	CostUSD      float64
	Priced       bool
}

func estimateRequest(req prompt.Request) estimate {
	parts := utils.TokenBreakdown(map[string]string{"system": req.System, "user": req.User})
	tokens := parts["system"] + parts["user"]
	cost, ok := ai.EstimateCostUSD(req.Model, tokens, req.MaxTokens)
	return estimate{PromptTokens: tokens, System: parts["system"], CostUSD: cost, Priced: ok}
}

type outputOptions struct {
	JSON       bool
	Quiet      bool
	File       string
	Model      string
	Provider   string
	Directive  string
	Estimate   estimate
	Usage      ai.Usage
	OutputPath string
	Writer     io.Writer
}

func reportEnvelope(report string, opts outputOptions) map[string]any {
	out := map[string]any{
		"file":          filepath.Base(opts.File),
		"model":         opts.Model,
		"provider":      opts.Provider,
		"prompt_tokens": opts.Estimate.PromptTokens,
		"usage":         opts.Usage,
		"report":        report,
	}
	if opts.Directive != "" {
		out["directive"] = opts.Directive
	}
	return out
}

func formatAndWriteOutput(report string, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	if opts.JSON {
		b, err := utils.PrettyJSON(reportEnvelope(report, opts))
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
	} else if opts.OutputPath == "" || !opts.Quiet {
		if !opts.Quiet {
			fmt.Fprintln(w, "\n=== Analysis Report ===")
		}
		fmt.Fprintln(w, report)
	}

	if opts.OutputPath == "" {
		return nil
	}

	data := []byte(report)
	if strings.EqualFold(filepath.Ext(opts.OutputPath), ".json") {
		b, err := utils.PrettyJSON(reportEnvelope(report, opts))
		if err != nil {
			return err
		}
		data = b
	}
	if err := utils.SafeWriteFile(opts.OutputPath, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.Quiet {
		fmt.Fprintf(w, "✓ Saved report to %s\n", opts.OutputPath)
	}
	return nil
}

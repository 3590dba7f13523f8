package ai

import (
	"sort"
	"strings"
)

// ModelInfo is the pricing entry used for the pre-flight cost estimate.
// Prices are approximate USD list prices per 1K tokens.
type ModelInfo struct {
	Name          string  `json:"name"`
	ContextTokens int     `json:"contextTokens"`
	InputPerK     float64 `json:"inputPerK"`
	OutputPerK    float64 `json:"outputPerK"`
}

var models = catalog(
	ModelInfo{"openai/gpt-4o-mini", 128000, 0.0006, 0.0024},
	ModelInfo{"openai/gpt-4o", 128000, 0.005, 0.015},
	ModelInfo{"anthropic/claude-3.5-sonnet", 200000, 0.003, 0.015},
	ModelInfo{"anthropic/claude-3.5-haiku", 200000, 0.0008, 0.004},
	ModelInfo{"anthropic/claude-3-haiku", 200000, 0.00025, 0.00125},
	ModelInfo{"google/gemini-1.5-flash", 1000000, 0.0002, 0.0008},
	ModelInfo{"meta-llama/llama-3.1-8b-instruct", 131072, 0, 0},
	// local Ollama tags are free
	ModelInfo{"llama3.1:8b-instruct", 8192, 0, 0},
	ModelInfo{"mistral-nemo:latest", 8192, 0, 0},
	ModelInfo{"qwen2.5:7b-instruct", 32768, 0, 0},
)

func catalog(entries ...ModelInfo) map[string]ModelInfo {
	m := make(map[string]ModelInfo, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return m
}

// LookupModel returns ModelInfo and ok flag. Bare Anthropic model ids resolve
// to their OpenRouter catalog entry.
func LookupModel(name string) (ModelInfo, bool) {
	if mi, ok := models[name]; ok {
		return mi, true
	}
	mi, ok := models[anthropicAliases[strings.TrimPrefix(name, "anthropic/")]]
	return mi, ok
}

var anthropicAliases = map[string]string{
	"claude-3-5-sonnet-latest":   "anthropic/claude-3.5-sonnet",
	"claude-3-5-sonnet-20241022": "anthropic/claude-3.5-sonnet",
	"claude-3-5-haiku-latest":    "anthropic/claude-3.5-haiku",
	"claude-3-haiku-20240307":    "anthropic/claude-3-haiku",
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// Catalog returns the known models sorted by name.
func Catalog() []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, v := range models {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultModel is the model used when neither flag nor config names one.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-3-5-sonnet-latest"
	case ProviderOllama:
		return "llama3.1:8b-instruct"
	default:
		return "anthropic/claude-3.5-sonnet"
	}
}

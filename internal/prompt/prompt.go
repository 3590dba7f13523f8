package prompt

import (
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/apperr"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// Mode selects how the user prompt is phrased.
type Mode int

const (
	ModeInitial Mode = iota
	ModeRegenerate
)

func (m Mode) String() string {
	if m == ModeRegenerate {
		return "regenerate"
	}
	return "initial"
}

// DefaultMaxTokens bounds the size of the generated report.
const DefaultMaxTokens = 4000

// SystemPrompt is sent unchanged with every report request.
const SystemPrompt = `You are an expert data analyst. You receive a structural summary of a tabular dataset together with its full contents, and you write a professional analysis report in markdown.

Structure the report with these sections, using markdown headings:
1. Executive Summary - the most important takeaways in a few sentences.
2. Dataset Overview - what the data contains, its size, columns and their types.
3. Key Findings - notable values, distributions and patterns, with concrete numbers.
4. Trend Analysis - how values change over time or across ordered fields, where applicable.
5. Relationships and Correlations - associations between columns worth attention.
6. Data Quality Assessment - missing values, inconsistencies, outliers and formatting problems.
7. Visualization Descriptions - the charts you would build and what each would show.
8. Conclusions and Recommendations - actionable next steps.

Begin the report by stating what type of report it is (for example "Sales Performance Report" or "Survey Results Analysis") based on the data. Use **bold** for key figures and keep paragraphs short.`

// Request is a complete, provider-neutral generation request.
type Request struct {
	Mode        Mode
	System      string
	User        string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Options carries the generation parameters copied into a Request.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Build composes the system and user prompts for one analysis. In
// ModeRegenerate the directive must be non-empty; it is ignored otherwise.
func Build(s dataset.Summary, ds *dataset.Dataset, directive string, mode Mode, opt Options) (Request, error) {
	directive = strings.TrimSpace(directive)
	if mode == ModeRegenerate && directive == "" {
		return Request{}, apperr.New(apperr.KindEmptyDirective, "refinement directive is required to regenerate a report")
	}
	summaryJSON, err := s.JSON()
	if err != nil {
		return Request{}, err
	}
	var cols []string
	var rows []dataset.Row
	if ds != nil {
		cols, rows = ds.Columns, ds.Rows
	}
	dataJSON, err := dataset.RowsJSON(cols, rows)
	if err != nil {
		return Request{}, err
	}

	var sb strings.Builder
	switch mode {
	case ModeRegenerate:
		sb.WriteString("User feedback for refinement:\n")
		sb.WriteString(directive)
		sb.WriteString("\n\nPlease re-analyze the dataset and produce an updated professional report that focuses on the feedback above.\n\n")
	default:
		sb.WriteString("Please analyze the following dataset and generate a comprehensive professional report.\n\n")
	}
	sb.WriteString("Dataset Summary:\n")
	sb.WriteString(summaryJSON)
	sb.WriteString("\n\nFull Data:\n")
	sb.WriteString(dataJSON)
	sb.WriteString("\n")

	maxTokens := opt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return Request{
		Mode:        mode,
		System:      SystemPrompt,
		User:        sb.String(),
		Model:       opt.Model,
		MaxTokens:   maxTokens,
		Temperature: opt.Temperature,
	}, nil
}

// GenerateRequest converts r into the runtime request shape.
func (r Request) GenerateRequest() ai.GenerateRequest {
	return ai.GenerateRequest{
		Model: r.Model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: r.System},
			{Role: ai.RoleUser, Content: r.User},
		},
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
	}
}

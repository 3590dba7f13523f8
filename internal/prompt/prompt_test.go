package prompt

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/datalens-cli/internal/apperr"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() (dataset.Summary, *dataset.Dataset) {
	ds := &dataset.Dataset{
		Columns: []string{"month", "revenue"},
		Rows: []dataset.Row{
			{"month": dataset.String("2024-01-01"), "revenue": dataset.Number(100)},
			{"month": dataset.String("2024-02-01"), "revenue": dataset.Number(120)},
		},
	}
	return dataset.Summarize("sales.csv", ds), ds
}

func TestBuildInitial(t *testing.T) {
	s, ds := fixture()
	req, err := Build(s, ds, "ignored in initial mode", ModeInitial, Options{Model: "m"})
	require.NoError(t, err)

	assert.Equal(t, SystemPrompt, req.System)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.Equal(t, "m", req.Model)
	assert.True(t, strings.HasPrefix(req.User, "Please analyze the following dataset"))
	assert.NotContains(t, req.User, "ignored in initial mode")
	assert.Contains(t, req.User, `"fileName": "sales.csv"`)
	assert.Contains(t, req.User, `"revenue": "numeric"`)
	assert.Contains(t, req.User, `[{"month":"2024-01-01","revenue":100},{"month":"2024-02-01","revenue":120}]`)

	gr := req.GenerateRequest()
	require.Len(t, gr.Messages, 2)
	assert.Equal(t, "system", gr.Messages[0].Role)
	assert.Equal(t, "user", gr.Messages[1].Role)
	assert.Equal(t, req.User, gr.Messages[1].Content)
}

func TestBuildRegenerate(t *testing.T) {
	s, ds := fixture()
	req, err := Build(s, ds, "  focus on month-over-month growth ", ModeRegenerate, Options{MaxTokens: 900})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(req.User, "User feedback for refinement:\nfocus on month-over-month growth\n"))
	assert.Contains(t, req.User, "Full Data:")
	assert.Equal(t, 900, req.MaxTokens)
	assert.Equal(t, ModeRegenerate, req.Mode)
}

func TestBuildRegenerateRequiresDirective(t *testing.T) {
	s, ds := fixture()
	for _, d := range []string{"", "   \n\t"} {
		_, err := Build(s, ds, d, ModeRegenerate, Options{})
		assert.Equal(t, apperr.KindEmptyDirective, apperr.KindOf(err))
	}
}

func TestSystemPromptNamesEverySection(t *testing.T) {
	for _, section := range []string{
		"Executive Summary", "Dataset Overview", "Key Findings", "Trend Analysis",
		"Relationships", "Data Quality", "Visualization", "Conclusions and Recommendations",
		"type of report",
	} {
		assert.Contains(t, SystemPrompt, section)
	}
}

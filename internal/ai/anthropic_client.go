package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	// Messages API requires max_tokens on every call.
	anthropicDefaultMaxTokens = 4000
)

// AnthropicClient calls the Anthropic Messages API directly.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	policy     RetryPolicy
}

func NewAnthropicClient(apiKey string, httpTimeout time.Duration, policy RetryPolicy) *AnthropicClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    anthropicBaseURL,
		policy:     policy.withDefaults(3, 500*time.Millisecond, 4*time.Second),
	}
}

// WithBaseURL points the client at another endpoint (tests, proxies).
func (c *AnthropicClient) WithBaseURL(u string) *AnthropicClient {
	if u != "" {
		c.baseURL = strings.TrimRight(u, "/")
	}
	return c
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate maps the request onto /v1/messages. System messages move to the
// top-level system field, and each text content segment becomes a Choice.
func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w (set ANTHROPIC_API_KEY or DATALENS_API_KEY)", ErrMissingAPIKey)
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	system, turns := req.System()
	areq := anthropicRequest{
		Model:       strings.TrimPrefix(req.Model, "anthropic/"),
		System:      system,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if areq.MaxTokens <= 0 {
		areq.MaxTokens = anthropicDefaultMaxTokens
	}
	for _, m := range turns {
		areq.Messages = append(areq.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	payload, err := json.Marshal(areq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	h := http.Header{}
	h.Set("x-api-key", c.apiKey)
	h.Set("anthropic-version", anthropicVersion)

	var aresp anthropicResponse
	reqID, err := postJSON(ctx, c.httpClient, c.policy, exchange{
		provider:    ProviderAnthropic,
		endpoint:    c.baseURL + "/v1/messages",
		header:      h,
		body:        payload,
		errorFields: nestedErrorFields,
	}, &aresp)
	if err != nil {
		return nil, err
	}
	out := &GenerateResponse{ID: aresp.ID, RequestID: reqID}
	for _, seg := range aresp.Content {
		if seg.Type != "text" {
			continue
		}
		out.Choices = append(out.Choices, Choice{Message: Message{Role: RoleAssistant, Content: seg.Text}})
	}
	out.Usage = Usage{
		PromptTokens:     aresp.Usage.InputTokens,
		CompletionTokens: aresp.Usage.OutputTokens,
		TotalTokens:      aresp.Usage.InputTokens + aresp.Usage.OutputTokens,
	}
	return out, nil
}

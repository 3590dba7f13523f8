package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Client talks to the OpenRouter chat completions API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	policy     RetryPolicy
}

// NewOpenRouterClient returns a client with default timeouts and retry strategy.
func NewOpenRouterClient(apiKey string) *Client {
	return NewClient(apiKey, 60*time.Second, RetryPolicy{})
}

// NewClient allows customizing HTTP timeout and retry/backoff behavior.
func NewClient(apiKey string, httpTimeout time.Duration, policy RetryPolicy) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    openRouterBaseURL,
		policy:     policy.withDefaults(3, 500*time.Millisecond, 4*time.Second),
	}
}

// NewClientWithBaseURL allows injecting a custom base URL (used in tests).
func NewClientWithBaseURL(apiKey string, httpTimeout time.Duration, policy RetryPolicy, baseURL string) *Client {
	c := NewClient(apiKey, httpTimeout, policy)
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

func validate(req GenerateRequest) error {
	if req.Model == "" {
		return errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return errors.New("messages cannot be empty")
	}
	return nil
}

func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("openrouter: %w (set OPENROUTER_API_KEY or DATALENS_API_KEY)", ErrMissingAPIKey)
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.apiKey)
	h.Set("HTTP-Referer", "https://github.com/KaramelBytes/datalens-cli")
	h.Set("X-Title", "DataLens CLI")

	var out GenerateResponse
	reqID, err := postJSON(ctx, c.httpClient, c.policy, exchange{
		provider:    ProviderOpenRouter,
		endpoint:    c.baseURL + "/chat/completions",
		header:      h,
		body:        payload,
		errorFields: nestedErrorFields,
	}, &out)
	if err != nil {
		return nil, err
	}
	out.RequestID = reqID
	return &out, nil
}

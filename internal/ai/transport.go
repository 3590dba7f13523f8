package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/datalens-cli/internal/logger"
)

// RetryPolicy bounds attempts and backoff for one generation exchange.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p RetryPolicy) withDefaults(attempts int, base, ceiling time.Duration) RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = base
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = ceiling
	}
	return p
}

// exchange describes one JSON POST and how a provider reports errors.
type exchange struct {
	provider string
	endpoint string
	header   http.Header
	body     []byte
	// errorFields pulls message and code out of a decoded error body.
	errorFields func(raw map[string]any) (msg, code string)
	// host is reported in UnreachableError for network failures; empty keeps the raw error.
	host string
}

// postJSON sends ex with retries on network timeouts, 429 and 5xx, and decodes a
// 2xx body into out. It returns the provider request id when one was sent.
func postJSON(ctx context.Context, hc *http.Client, policy RetryPolicy, ex exchange, out any) (string, error) {
	backoff := policy.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ex.endpoint, bytes.NewReader(ex.body))
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		req.Header = ex.header.Clone()
		req.Header.Set("Content-Type", "application/json")

		resp, err := hc.Do(req)
		if err != nil {
			if isRetryableNetErr(err) && attempt < policy.MaxAttempts {
				logger.L().Debug("retrying after network error", "provider", ex.provider, "attempt", attempt, "error", err.Error())
				if err := sleepCtx(ctx, withJitter(backoff)); err != nil {
					return "", err
				}
				backoff = nextBackoff(backoff, policy.MaxDelay)
				continue
			}
			if ex.host != "" {
				return "", &UnreachableError{Host: ex.host, Err: err}
			}
			return "", fmt.Errorf("http request: %w", err)
		}

		reqID := extractRequestID(resp.Header)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return reqID, fmt.Errorf("decode response: %w", err)
			}
			return reqID, nil
		}

		apiErr := readAPIError(resp, ex.errorFields)
		apiErr.RequestID = reqID
		resp.Body.Close()
		lastErr = classifyAPIError(apiErr, resp.Header)
		if !retryableStatus(resp.StatusCode) || attempt == policy.MaxAttempts {
			return reqID, lastErr
		}
		wait := retryAfter(resp.Header)
		if wait <= 0 {
			wait = withJitter(backoff)
			if policy.MaxDelay > 0 && wait > policy.MaxDelay {
				wait = policy.MaxDelay
			}
			backoff = nextBackoff(backoff, policy.MaxDelay)
		}
		logger.L().Debug("retrying after provider error", "provider", ex.provider, "attempt", attempt, "status", resp.StatusCode, "wait", wait.String())
		if err := sleepCtx(ctx, wait); err != nil {
			return reqID, err
		}
	}
	return "", lastErr
}

func readAPIError(resp *http.Response, fields func(map[string]any) (string, string)) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw}
	if fields != nil && raw != nil {
		apiErr.Message, apiErr.Code = fields(raw)
	}
	if apiErr.Message == "" && len(body) > 0 && raw == nil {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// nestedErrorFields reads {"error": {"message", "code"|"type"}} with a flat fallback.
func nestedErrorFields(raw map[string]any) (string, string) {
	src := raw
	if v, ok := raw["error"].(map[string]any); ok {
		src = v
	}
	msg, _ := src["message"].(string)
	code, _ := src["code"].(string)
	if code == "" {
		code, _ = src["type"].(string)
	}
	return msg, code
}

func retryableStatus(sc int) bool {
	return sc == http.StatusTooManyRequests || (sc >= 500 && sc <= 599)
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// retryAfter interprets a Retry-After header as seconds or an HTTP date.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if s, err := strconv.Atoi(v); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d.Truncate(time.Second)
		}
	}
	return 0
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(h http.Header) string {
	for _, k := range []string{"X-Request-Id", "Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Amzn-Requestid"} {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func nextBackoff(d, ceiling time.Duration) time.Duration {
	d *= 2
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	if out := time.Duration(float64(d) * f); out > 0 {
		return out
	}
	return d
}

func containsAllFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if !containsFold(s, sub) {
			return false
		}
	}
	return true
}

func containsAnyFold(s string, subs ...string) bool {
	for _, sub := range subs {
		if containsFold(s, sub) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	if s == "" || sub == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

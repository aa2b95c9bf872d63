package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHostedBaseURL = "https://api.openai.com/v1"
	hostedTimeout        = 60 * time.Second
	maxRetries           = 3
	initialBackoff       = 500 * time.Millisecond
	maxErrorBody         = 4 << 10
	hostedBackend        = "hosted API"
)

// HostedClient talks to an OpenAI-compatible chat completion API.
type HostedClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewHostedClient creates a client for the OpenAI API.
func NewHostedClient(apiKey string) *HostedClient {
	return &HostedClient{
		apiKey:     apiKey,
		baseURL:    defaultHostedBaseURL,
		httpClient: &http.Client{Timeout: hostedTimeout},
	}
}

// NewHostedClientWithBaseURL points the client at another OpenAI-compatible
// endpoint such as OpenRouter, or a test server.
func NewHostedClientWithBaseURL(apiKey, baseURL string) *HostedClient {
	c := NewHostedClient(apiKey)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Complete sends a non-streaming chat completion and returns the first
// choice's content. It is never retried; a 429 surfaces as an
// UpstreamError.
func (c *HostedClient) Complete(ctx context.Context, model string, msgs []Message, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var resp chatCompletionResponse
	if err := c.post(ctx, "/chat/completions", body, &resp); err != nil {
		return "", err
	}
	return resp.content()
}

// Embed returns one embedding per input text, in input order. HTTP 429 is
// retried with exponential backoff.
func (c *HostedClient) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var resp embeddingResponse
	if err := c.postWithRetry(ctx, "/embeddings", body, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return out, nil
}

func (c *HostedClient) postWithRetry(ctx context.Context, path string, body []byte, out any) error {
	var lastErr error
	for attempt := range maxRetries {
		err := c.post(ctx, path, body, out)
		if err == nil {
			return nil
		}

		var rl *rateLimitError
		if !errors.As(err, &rl) {
			return err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// rateLimitError is returned on HTTP 429. It unwraps to the UpstreamError so
// exhausted retries still classify as a bad gateway.
type rateLimitError struct {
	upstream *UpstreamError
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.upstream.Status)
}

func (e *rateLimitError) Unwrap() error { return e.upstream }

func (c *HostedClient) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(hostedBackend, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		ue := &UpstreamError{Backend: hostedBackend, Status: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &rateLimitError{upstream: ue}
		}
		return ue
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *HostedClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultLocalURL     = "http://127.0.0.1:1234/v1/chat/completions"
	defaultLocalTimeout = 120 * time.Second
	localBackend        = "local model server"
	modelsTimeout       = 5 * time.Second
)

// LocalClient posts to an OpenAI-compatible server on this machine, such as
// LM Studio. Local inference is slow, so the timeout is long and requests
// are never retried.
type LocalClient struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
}

func NewLocalClient(url string, timeout time.Duration) *LocalClient {
	if url == "" {
		url = defaultLocalURL
	}
	if timeout <= 0 {
		timeout = defaultLocalTimeout
	}
	return &LocalClient{url: url, timeout: timeout, httpClient: &http.Client{}}
}

func (c *LocalClient) Complete(ctx context.Context, msgs []Message, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransport(localBackend, c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &UpstreamError{Backend: localBackend, Status: resp.StatusCode, Body: string(respBody)}
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", classifyTransport(localBackend, c.url, fmt.Errorf("decoding response: %w", err))
	}
	return out.content()
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ModelsURL derives the /v1/models endpoint from the chat completions URL.
func (c *LocalClient) ModelsURL() string {
	base, ok := strings.CutSuffix(c.url, "/chat/completions")
	if !ok {
		base = strings.TrimRight(c.url, "/")
	}
	return base + "/models"
}

// Models lists the models the local server has loaded. An unreachable server
// yields ErrUpstreamUnavailable.
func (c *LocalClient) Models(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, modelsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ModelsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(localBackend, c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{Backend: localBackend, Status: resp.StatusCode, Body: string(respBody)}
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	names := make([]string, len(list.Data))
	for i, m := range list.Data {
		names[i] = m.ID
	}
	return names, nil
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	anthropicDefaultAPIURL = "https://api.anthropic.com/v1"
	anthropicAPIVersion    = "2023-06-01"
)

// AnthropicClient talks to the Anthropic messages API.
type AnthropicClient struct {
	apiKey      string
	apiURL      string
	headers     map[string]string
	httpClient  *http.Client
	provider    string
	model       string
	temperature float64
	name        string
}

// NewAnthropicClient creates a messages API client.
func NewAnthropicClient(opts Options) (*AnthropicClient, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("%s: model is required", opts.Provider)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("%s: API key is required", opts.Provider)
	}

	apiURL := strings.TrimRight(opts.BaseURL, "/")
	if apiURL == "" {
		apiURL = anthropicDefaultAPIURL
	}

	slog.Debug("anthropic_client_ready", "model", opts.Model, "api_url", apiURL)
	return &AnthropicClient{
		apiKey:      opts.APIKey,
		apiURL:      apiURL,
		headers:     opts.Headers,
		httpClient:  opts.httpClient(),
		provider:    opts.Provider,
		model:       opts.Model,
		temperature: opts.Temperature,
		name:        opts.name(),
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string  `json:"type"`
		Text *string `json:"text"`
	} `json:"content"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Send implements Client.
func (c *AnthropicClient) Send(ctx context.Context, systemPrompt, request string) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       c.model,
		Messages:    []anthropicMessage{{Role: "user", Content: request}},
		MaxTokens:   maxOutputTokens,
		Temperature: c.temperature,
		System:      systemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &Error{Provider: c.provider, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Provider: c.provider, Kind: KindNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(c.provider, resp.StatusCode, errors.New(anthropicErrorMessage(respBody)))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", transportError(c.provider, fmt.Errorf("failed to parse response: %w", err))
	}
	if len(parsed.Content) == 0 {
		return "", responseError(c.provider, "response has no content blocks")
	}
	first := parsed.Content[0]
	if first.Text == nil {
		return "", responseError(c.provider, "first content block has no text (type %q)", first.Type)
	}
	return *first.Text, nil
}

func (c *AnthropicClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	for name, value := range c.headers {
		req.Header.Set(name, value)
	}
}

// anthropicErrorMessage extracts error.message from an error body, falling
// back to the raw body.
func anthropicErrorMessage(body []byte) string {
	var parsed anthropicErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		if parsed.Error.Type != "" {
			return parsed.Error.Type + ": " + parsed.Error.Message
		}
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty error body"
	}
	return msg
}

// MaxContextLength implements Client.
func (c *AnthropicClient) MaxContextLength() int {
	return AnthropicContextLength
}

// Name implements Client.
func (c *AnthropicClient) Name() string {
	return c.name
}

var _ Client = (*AnthropicClient)(nil)

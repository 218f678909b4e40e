package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// genaiModels is the subset of *genai.Models used here.
type genaiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var newGenAIClient = func(ctx context.Context, cfg *genai.ClientConfig) (*genai.Client, error) {
	return genai.NewClient(ctx, cfg)
}

// GenAIClient talks to Google's native Gemini API.
type GenAIClient struct {
	models      genaiModels
	provider    string
	model       string
	temperature float64
	name        string
}

// NewGenAIClient creates a Gemini API client.
func NewGenAIClient(ctx context.Context, opts Options) (*GenAIClient, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("%s: model is required", opts.Provider)
	}
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: API key is required", opts.Provider)
	}

	client, err := newGenAIClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.httpClient(),
	})
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", opts.Provider, err)
	}

	slog.Debug("genai_client_ready", "model", opts.Model)
	return &GenAIClient{
		models:      client.Models,
		provider:    opts.Provider,
		model:       opts.Model,
		temperature: opts.Temperature,
		name:        opts.name(),
	}, nil
}

// Send implements Client.
func (c *GenAIClient) Send(ctx context.Context, systemPrompt, request string) (string, error) {
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: request}},
	}}
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.temperature)),
		MaxOutputTokens: maxOutputTokens,
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		switch {
		case errors.As(err, &apiErr):
			return "", statusError(c.provider, apiErr.Code, err)
		case isNetworkError(err):
			return "", &Error{Provider: c.provider, Kind: KindNetwork, Err: err}
		default:
			return "", &Error{Provider: c.provider, Kind: KindAPI, Err: err}
		}
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return "", responseError(c.provider, "response has no candidates")
	}
	return visibleText(resp.Candidates[0].Content), nil
}

// visibleText joins the candidate's text parts, skipping thinking output.
func visibleText(content *genai.Content) string {
	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// MaxContextLength implements Client.
func (c *GenAIClient) MaxContextLength() int {
	return GenAIContextLength
}

// Name implements Client.
func (c *GenAIClient) Name() string {
	return c.name
}

var _ Client = (*GenAIClient)(nil)

package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// placeholderKey is sent to local servers that do not check credentials;
// the SDK refuses an empty key.
const placeholderKey = "NA"

// OpenAIClient talks to any endpoint that speaks the OpenAI chat-completions
// shape.
type OpenAIClient struct {
	client      openai.Client
	provider    string
	model       string
	temperature float64
	name        string
}

// NewOpenAIClient creates a chat-completions client. An empty BaseURL uses
// the SDK's default OpenAI endpoint.
func NewOpenAIClient(opts Options) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("%s: model is required", opts.Provider)
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = placeholderKey
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(opts.httpClient()),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	headerNames := make([]string, 0, len(opts.Headers))
	for name := range opts.Headers {
		headerNames = append(headerNames, name)
	}
	sort.Strings(headerNames)
	for _, name := range headerNames {
		reqOpts = append(reqOpts, option.WithHeader(name, opts.Headers[name]))
	}

	slog.Debug("openai_client_ready",
		"provider", opts.Provider,
		"model", opts.Model,
		"base_url", opts.BaseURL,
		"extra_headers", len(headerNames),
	)
	return &OpenAIClient{
		client:      openai.NewClient(reqOpts...),
		provider:    opts.Provider,
		model:       opts.Model,
		temperature: opts.Temperature,
		name:        opts.name(),
	}, nil
}

// Send implements Client.
func (c *OpenAIClient) Send(ctx context.Context, systemPrompt, request string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(request),
		},
		Temperature: openai.Float(c.temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", statusError(c.provider, apiErr.StatusCode, err)
		}
		return "", transportError(c.provider, err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", responseError(c.provider, "response has no choices")
	}
	message := resp.Choices[0].Message
	if !message.JSON.Content.Valid() {
		return "", responseError(c.provider, "first choice has no message content")
	}
	return message.Content, nil
}

// MaxContextLength implements Client.
func (c *OpenAIClient) MaxContextLength() int {
	return OpenAIContextLength
}

// Name implements Client.
func (c *OpenAIClient) Name() string {
	return c.name
}

var _ Client = (*OpenAIClient)(nil)

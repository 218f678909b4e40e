// Package provider sends a system prompt and a request to a remote LLM and
// returns the raw reply text. Each API family unwraps its own response
// envelope; nothing provider specific leaks past Send.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Family identifies a request/response shape.
type Family string

const (
	// FamilyOpenAI is the chat-completions shape shared by OpenAI, Groq,
	// Cerebras, OpenRouter, Gemini's compatibility endpoint and local servers.
	FamilyOpenAI Family = "openai"
	// FamilyAnthropic is the messages API with a top-level system field.
	FamilyAnthropic Family = "anthropic"
	// FamilyGenAI is Google's native Gemini API.
	FamilyGenAI Family = "genai"
)

// Context windows used for prompt budgeting, in tokens.
const (
	OpenAIContextLength    = 4096 // worst case: 4K models
	AnthropicContextLength = 16 * 1024
	GenAIContextLength     = 32 * 1024
)

// maxOutputTokens caps replies for the APIs that require a cap.
const maxOutputTokens = 2000

const defaultTimeout = 60 * time.Second

// Client sends one request to a model.
type Client interface {
	// Send returns the model's raw reply text. Failures are *Error.
	Send(ctx context.Context, systemPrompt, request string) (string, error)

	// MaxContextLength is the context window assumed for prompt budgeting.
	MaxContextLength() int

	// Name identifies the provider and model, e.g. "groq/llama3-8b-8192".
	Name() string
}

// Options configures a Client. The caller is expected to have resolved and
// validated every field.
type Options struct {
	Provider    string
	Family      Family
	Model       string
	Temperature float64
	APIKey      string
	// BaseURL overrides the family's default endpoint.
	BaseURL string
	// Headers are sent unmodified with every request.
	Headers map[string]string
	// Timeout applies to the whole HTTP exchange. Zero means the default.
	Timeout time.Duration
	// HTTPClient replaces the default transport, mainly for tests.
	HTTPClient *http.Client
}

// New creates the client for opts.Family.
func New(ctx context.Context, opts Options) (Client, error) {
	switch opts.Family {
	case FamilyOpenAI:
		return NewOpenAIClient(opts)
	case FamilyAnthropic:
		return NewAnthropicClient(opts)
	case FamilyGenAI:
		return NewGenAIClient(ctx, opts)
	default:
		return nil, fmt.Errorf("unknown provider family: %q", opts.Family)
	}
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) name() string {
	return o.Provider + "/" + o.Model
}

// Kind classifies a provider failure.
type Kind string

const (
	KindNetwork  Kind = "network"
	KindAuth     Kind = "auth"
	KindAPI      Kind = "api"
	KindResponse Kind = "response"
)

// Error is returned by every Client. None of these are retried.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAuth:
		return fmt.Sprintf("%s: authentication rejected (status %d): %v", e.Provider, e.StatusCode, e.Err)
	case KindAPI:
		if e.StatusCode != 0 {
			return fmt.Sprintf("%s: API error (status %d): %v", e.Provider, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("%s: API error: %v", e.Provider, e.Err)
	case KindResponse:
		return fmt.Sprintf("%s: unexpected response: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// statusError classifies a non-2xx HTTP status.
func statusError(provider string, status int, err error) *Error {
	kind := KindAPI
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = KindAuth
	}
	return &Error{Provider: provider, Kind: kind, StatusCode: status, Err: err}
}

// transportError classifies a failure that carries no HTTP status.
func transportError(provider string, err error) *Error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Error{Provider: provider, Kind: KindResponse, Err: err}
	}
	return &Error{Provider: provider, Kind: KindNetwork, Err: err}
}

func responseError(provider string, format string, args ...any) *Error {
	return &Error{Provider: provider, Kind: KindResponse, Err: fmt.Errorf(format, args...)}
}

// isNetworkError reports transport-level failures: dial errors, timeouts
// and cancelled contexts.
func isNetworkError(err error) bool {
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

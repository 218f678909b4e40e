package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randombk/llm2sh/internal/config"
	"github.com/randombk/llm2sh/internal/provider"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GROQ_API_KEY",
		"CEREBRAS_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY",
	} {
		t.Setenv(env, "")
	}
}

func catalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Default()
	require.NoError(t, err)
	return c
}

func TestDefaultCatalogParses(t *testing.T) {
	c := catalog(t)

	names := make([]string, 0, len(c.Providers))
	for _, p := range c.Providers {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"local", "openai", "anthropic", "groq", "cerebras", "openrouter", "gemini", "google"}, names)
}

func TestResolve(t *testing.T) {
	clearKeys(t)
	cfg := config.Default()
	cfg.OpenAIAPIKey = "sk"
	cfg.AnthropicAPIKey = "ak"
	cfg.GroqAPIKey = "gk"
	cfg.OpenRouterAPIKey = "ok"
	cfg.GeminiAPIKey = "gm"
	cfg.LocalModel = "llama3"

	tests := []struct {
		name     string
		input    string
		want     string
		family   provider.Family
		baseURL  string
		apiKey   string
		hasTitle bool
	}{
		{"qualified", "openai/gpt-4o", "openai/gpt-4o", provider.FamilyOpenAI, "", "sk", false},
		{"bare id", "gpt-4o", "openai/gpt-4o", provider.FamilyOpenAI, "", "sk", false},
		{"legacy alias", "groq-llama3-70b", "groq/llama3-70b-8192", provider.FamilyOpenAI, "https://api.groq.com/openai/v1", "gk", false},
		{"claude alias", "claude-3-haiku", "anthropic/claude-3-haiku-20240307", provider.FamilyAnthropic, "https://api.anthropic.com/v1", "ak", false},
		{"provider alias", "anthropic/claude-3-opus", "anthropic/claude-3-opus-20240229", provider.FamilyAnthropic, "https://api.anthropic.com/v1", "ak", false},
		{"local", "local", "local/llama3", provider.FamilyOpenAI, config.DefaultLocalURI, "", false},
		{"local any model", "local/qwen2", "local/qwen2", provider.FamilyOpenAI, config.DefaultLocalURI, "", false},
		{"openrouter listed", "openrouter/anthropic/claude-3.5-sonnet", "openrouter/anthropic/claude-3.5-sonnet", provider.FamilyOpenAI, "https://openrouter.ai/api/v1", "ok", true},
		{"openrouter unlisted", "openrouter/mistralai/mixtral-8x22b", "openrouter/mistralai/mixtral-8x22b", provider.FamilyOpenAI, "https://openrouter.ai/api/v1", "ok", true},
		{"bare openrouter id", "meta-llama/llama-3.1-70b-instruct", "openrouter/meta-llama/llama-3.1-70b-instruct", provider.FamilyOpenAI, "https://openrouter.ai/api/v1", "ok", true},
		{"gemini compat", "gemini/gemini-1.5-flash", "gemini/gemini-1.5-flash", provider.FamilyOpenAI, "https://generativelanguage.googleapis.com/v1beta/openai/", "gm", false},
		{"gemini native", "google/gemini-1.5-pro", "google/gemini-1.5-pro", provider.FamilyGenAI, "", "gm", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := catalog(t).Resolve(tt.input, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Name)
			assert.Equal(t, tt.family, r.Family)
			assert.Equal(t, tt.baseURL, r.BaseURL)
			assert.Equal(t, tt.apiKey, r.APIKey)
			_, hasTitle := r.Headers["X-Title"]
			assert.Equal(t, tt.hasTitle, hasTitle)
		})
	}
}

func TestResolveUsesEnvironmentKey(t *testing.T) {
	clearKeys(t)
	t.Setenv("CEREBRAS_API_KEY", "ck-env")

	r, err := catalog(t).Resolve("cerebras/llama3.1-8b", config.Default())
	require.NoError(t, err)
	assert.Equal(t, "ck-env", r.APIKey)
}

func TestResolveErrors(t *testing.T) {
	clearKeys(t)
	cfg := config.Default()

	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"empty", "  ", "no model selected"},
		{"unknown bare", "gpt-9000", "unknown model"},
		{"unknown in closed provider", "groq/gpt-4o", "unknown model"},
		{"missing key", "openai/gpt-4o", "Requires OpenAI API key (openai_api_key or $OPENAI_API_KEY)"},
		{"missing gemini key for native", "google/gemini-1.5-pro", "Requires Gemini (native API) API key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog(t).Resolve(tt.input, cfg)
			var cerr *ConfigurationError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Contains(t, cerr.Reason, tt.reason)
		})
	}
}

func TestResolveLocalNeedsURI(t *testing.T) {
	cfg := config.Default()
	cfg.LocalURI = ""

	_, err := catalog(t).Resolve("local", cfg)
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "local/local", cerr.Model)
}

func TestList(t *testing.T) {
	clearKeys(t)
	cfg := config.Default()
	cfg.GroqAPIKey = "gk"

	list := catalog(t).List(cfg)
	require.NotEmpty(t, list)
	assert.Equal(t, Status{Name: "local/local", Available: true, Hint: "Ready - " + config.DefaultLocalURI}, list[0])

	byName := make(map[string]Status, len(list))
	for _, s := range list {
		byName[s.Name] = s
	}
	assert.True(t, byName["groq/gemma-7b-it"].Available)
	assert.False(t, byName["openai/gpt-4o"].Available)
	assert.Contains(t, byName["openai/gpt-4o"].Hint, "OPENAI_API_KEY")
	assert.Contains(t, byName, "google/gemini-1.5-flash")
}

func TestResolvedOptions(t *testing.T) {
	r := Resolved{Provider: "groq", Model: "llama3-8b-8192", Family: provider.FamilyOpenAI, APIKey: "k", BaseURL: "u"}
	opts := r.Options(0.7, 5*time.Second)
	assert.Equal(t, provider.Options{
		Provider:    "groq",
		Family:      provider.FamilyOpenAI,
		Model:       "llama3-8b-8192",
		Temperature: 0.7,
		APIKey:      "k",
		BaseURL:     "u",
		Timeout:     5 * time.Second,
	}, opts)
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := map[string]string{
		"bad family":     "providers:\n  - name: x\n    family: carrier-pigeon\n    credential: openai\n",
		"slash in name":  "providers:\n  - name: a/b\n    family: openai\n    credential: openai\n",
		"duplicate":      "providers:\n  - name: x\n    family: openai\n    credential: openai\n  - name: x\n    family: openai\n    credential: openai\n",
		"bad credential": "providers:\n  - name: x\n    family: openai\n    credential: nope\n",
		"not yaml":       "providers: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

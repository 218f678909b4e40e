// Package models holds the provider/model catalog and turns a model name
// from the command line or config into everything needed to build a
// provider client.
package models

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randombk/llm2sh/internal/config"
	"github.com/randombk/llm2sh/internal/provider"
)

//go:embed catalog.yaml
var catalogYAML []byte

// LocalProvider is the provider backed by the user's own server.
const LocalProvider = "local"

// Model is one catalog model.
type Model struct {
	ID      string   `yaml:"id"`
	Aliases []string `yaml:"aliases"`
}

// Provider is one catalog provider.
type Provider struct {
	Name        string            `yaml:"name"`
	Display     string            `yaml:"display"`
	Family      provider.Family   `yaml:"family"`
	Credential  string            `yaml:"credential"`
	BaseURL     string            `yaml:"base_url"`
	Headers     map[string]string `yaml:"headers"`
	OpenModels  bool              `yaml:"open_models"`
	KeyOptional bool              `yaml:"key_optional"`
	Models      []Model           `yaml:"models"`
}

// Catalog is the list of known providers, in display order.
type Catalog struct {
	Providers []Provider `yaml:"providers"`
}

// Resolved is a model name resolved against the catalog and the config.
type Resolved struct {
	Name       string
	Provider   string
	Model      string
	Family     provider.Family
	Credential string
	APIKey     string
	BaseURL    string
	Headers    map[string]string
}

// Options returns the provider client options for r.
func (r Resolved) Options(temperature float64, timeout time.Duration) provider.Options {
	return provider.Options{
		Provider:    r.Provider,
		Family:      r.Family,
		Model:       r.Model,
		Temperature: temperature,
		APIKey:      r.APIKey,
		BaseURL:     r.BaseURL,
		Headers:     r.Headers,
		Timeout:     timeout,
	}
}

// Status describes one model for --list-models.
type Status struct {
	Name      string
	Available bool
	Hint      string
}

// ConfigurationError reports a model that is unknown or lacks credentials.
type ConfigurationError struct {
	Model  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("model %s not available: %s", e.Model, e.Reason)
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(catalogYAML)
})

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return loadDefault()
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" || strings.Contains(p.Name, "/") {
			return nil, fmt.Errorf("invalid provider name %q in model catalog", p.Name)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate provider %q in model catalog", p.Name)
		}
		seen[p.Name] = true

		switch p.Family {
		case provider.FamilyOpenAI, provider.FamilyAnthropic, provider.FamilyGenAI:
		default:
			return nil, fmt.Errorf("provider %q has unknown family %q", p.Name, p.Family)
		}
		if _, ok := config.CredentialEnv(p.Credential); !ok && p.Credential != config.CredentialLocal {
			return nil, fmt.Errorf("provider %q has unknown credential %q", p.Name, p.Credential)
		}
	}
	return &c, nil
}

// Lookup returns the named provider.
func (c *Catalog) Lookup(name string) (Provider, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}

// Resolve maps a model name to a usable model. Accepted forms are
// "<provider>/<model>", a bare model id or legacy alias, and "local".
func (c *Catalog) Resolve(name string, cfg *config.Config) (Resolved, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Resolved{}, &ConfigurationError{Model: `""`, Reason: "no model selected"}
	}

	p, modelID, ok := c.find(name, cfg)
	if !ok {
		return Resolved{}, &ConfigurationError{Model: name, Reason: "unknown model"}
	}

	if available, hint := c.availability(p, cfg); !available {
		return Resolved{}, &ConfigurationError{Model: p.Name + "/" + modelID, Reason: hint}
	}

	r := Resolved{
		Name:       p.Name + "/" + modelID,
		Provider:   p.Name,
		Model:      modelID,
		Family:     p.Family,
		Credential: p.Credential,
		APIKey:     cfg.Credential(p.Credential),
		BaseURL:    p.BaseURL,
		Headers:    p.Headers,
	}
	if p.Name == LocalProvider {
		r.BaseURL = strings.TrimSpace(cfg.LocalURI)
	}
	return r, nil
}

func (c *Catalog) find(name string, cfg *config.Config) (Provider, string, bool) {
	if name == LocalProvider {
		if p, ok := c.Lookup(LocalProvider); ok {
			return p, localModel(cfg), true
		}
	}

	if provName, modelID, found := strings.Cut(name, "/"); found && modelID != "" {
		if p, ok := c.Lookup(provName); ok {
			if id, ok := p.match(modelID); ok {
				return p, id, true
			}
			if p.OpenModels {
				return p, modelID, true
			}
			return Provider{}, "", false
		}
	}

	// Bare names: aliases first, then model ids, in catalog order.
	for _, p := range c.Providers {
		for _, m := range p.Models {
			for _, alias := range m.Aliases {
				if alias == name {
					return p, m.ID, true
				}
			}
		}
	}
	for _, p := range c.Providers {
		for _, m := range p.Models {
			if m.ID == name {
				return p, m.ID, true
			}
		}
	}
	return Provider{}, "", false
}

func (p Provider) match(modelID string) (string, bool) {
	for _, m := range p.Models {
		if m.ID == modelID {
			return m.ID, true
		}
		for _, alias := range m.Aliases {
			if alias == modelID {
				return m.ID, true
			}
		}
	}
	return "", false
}

// availability reports whether p can be used with cfg, and a short hint
// for --list-models.
func (c *Catalog) availability(p Provider, cfg *config.Config) (bool, string) {
	if p.Name == LocalProvider {
		uri := strings.TrimSpace(cfg.LocalURI)
		if uri == "" {
			return false, "Requires local LLM API URI (local_uri)"
		}
		return true, "Ready - " + uri
	}
	if p.KeyOptional || cfg.Credential(p.Credential) != "" {
		return true, "Ready"
	}

	hint := fmt.Sprintf("Requires %s API key (%s_api_key", p.Display, p.Credential)
	if env, ok := config.CredentialEnv(p.Credential); ok {
		hint += " or $" + env
	}
	return false, hint + ")"
}

// List returns every catalog model with its availability, local first.
func (c *Catalog) List(cfg *config.Config) []Status {
	var out []Status
	for _, p := range c.Providers {
		available, hint := c.availability(p, cfg)
		if p.Name == LocalProvider {
			out = append(out, Status{Name: LocalProvider + "/" + localModel(cfg), Available: available, Hint: hint})
		}
		for _, m := range p.Models {
			out = append(out, Status{Name: p.Name + "/" + m.ID, Available: available, Hint: hint})
		}
	}
	return out
}

func localModel(cfg *config.Config) string {
	if m := strings.TrimSpace(cfg.LocalModel); m != "" {
		return m
	}
	return config.DefaultLocalModel
}

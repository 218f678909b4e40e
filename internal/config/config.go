package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ConfigDirName  = "llm2sh"
	ConfigFileName = "llm2sh.json"
	LogDirName     = "logs"
	LogFileName    = "llm2sh.log"
)

// Defaults for a fresh configuration.
const (
	DefaultModel                 = "openai/gpt-4o"
	DefaultLocalURI              = "http://localhost:5000/v1"
	DefaultLocalModel            = "local"
	DefaultTemperature           = 0.2
	DefaultRequestTimeoutSeconds = 60
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "json"
)

// Credential names a provider key. Catalog entries refer to these.
const (
	CredentialOpenAI     = "openai"
	CredentialAnthropic  = "anthropic"
	CredentialGroq       = "groq"
	CredentialCerebras   = "cerebras"
	CredentialOpenRouter = "openrouter"
	CredentialGemini     = "gemini"
	CredentialLocal      = "local"
)

// credentialEnv is the environment fallback for each credential. Local
// servers have none.
var credentialEnv = map[string]string{
	CredentialOpenAI:     "OPENAI_API_KEY",
	CredentialAnthropic:  "ANTHROPIC_API_KEY",
	CredentialGroq:       "GROQ_API_KEY",
	CredentialCerebras:   "CEREBRAS_API_KEY",
	CredentialOpenRouter: "OPENROUTER_API_KEY",
	CredentialGemini:     "GEMINI_API_KEY",
}

// Config represents the application configuration
type Config struct {
	DefaultModel string `json:"default_model" yaml:"default_model"`

	OpenAIAPIKey     string `json:"openai_api_key" yaml:"openai_api_key"`
	AnthropicAPIKey  string `json:"anthropic_api_key" yaml:"anthropic_api_key"`
	GroqAPIKey       string `json:"groq_api_key" yaml:"groq_api_key"`
	CerebrasAPIKey   string `json:"cerebras_api_key" yaml:"cerebras_api_key"`
	OpenRouterAPIKey string `json:"openrouter_api_key" yaml:"openrouter_api_key"`
	GeminiAPIKey     string `json:"gemini_api_key" yaml:"gemini_api_key"`

	// ClaudeAPIKey is the old name of AnthropicAPIKey. It is migrated on
	// load and never written back.
	ClaudeAPIKey string `json:"claude_api_key,omitempty" yaml:"claude_api_key,omitempty"`

	LocalURI    string `json:"local_uri" yaml:"local_uri"`
	LocalAPIKey string `json:"local_api_key" yaml:"local_api_key"`
	LocalModel  string `json:"local_model" yaml:"local_model"`

	Temperature           float64 `json:"temperature" yaml:"temperature"`
	LiveDangerously       bool    `json:"i_like_to_live_dangerously" yaml:"i_like_to_live_dangerously"`
	RequestTimeoutSeconds int     `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	DisableHistory        bool    `json:"disable_history" yaml:"disable_history"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
	LogFile   string `json:"log_file" yaml:"log_file"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		DefaultModel:          DefaultModel,
		LocalURI:              DefaultLocalURI,
		LocalModel:            DefaultLocalModel,
		Temperature:           DefaultTemperature,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		LogLevel:              DefaultLogLevel,
		LogFormat:             DefaultLogFormat,
	}
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", ConfigDirName), nil
}

// GetConfigPath returns the path to the default config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetLogPath returns the default log file path
func GetLogPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, LogDirName, LogFileName), nil
}

// Load reads the configuration at path, or the default path when path is
// empty. A missing file yields the defaults. The result is written back so
// that newly added fields show up in the file; a failed write-back is only
// logged.
func Load(path string) (*Config, error) {
	path, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Debug("config_missing", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	case strings.TrimSpace(string(data)) == "":
		slog.Debug("config_empty", "path", path)
	default:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.normalize()

	if err := Save(cfg, path); err != nil {
		slog.Debug("config_writeback_failed", "path", path, "error", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, or the default path when path is
// empty. The file holds API keys and is created owner-only.
func Save(cfg *Config, path string) error {
	path, err := resolvePath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := marshal(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Exists checks if a configuration file exists
func Exists(path string) (bool, error) {
	path, err := resolvePath(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Credential returns the effective key for a credential name: the
// configured value, else its environment variable, else "".
func (c *Config) Credential(name string) string {
	var value string
	switch name {
	case CredentialOpenAI:
		value = c.OpenAIAPIKey
	case CredentialAnthropic:
		value = c.AnthropicAPIKey
	case CredentialGroq:
		value = c.GroqAPIKey
	case CredentialCerebras:
		value = c.CerebrasAPIKey
	case CredentialOpenRouter:
		value = c.OpenRouterAPIKey
	case CredentialGemini:
		value = c.GeminiAPIKey
	case CredentialLocal:
		value = c.LocalAPIKey
	}
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	if env, ok := credentialEnv[name]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// SetCredential stores key under a credential name.
func (c *Config) SetCredential(name, key string) error {
	switch name {
	case CredentialOpenAI:
		c.OpenAIAPIKey = key
	case CredentialAnthropic:
		c.AnthropicAPIKey = key
	case CredentialGroq:
		c.GroqAPIKey = key
	case CredentialCerebras:
		c.CerebrasAPIKey = key
	case CredentialOpenRouter:
		c.OpenRouterAPIKey = key
	case CredentialGemini:
		c.GeminiAPIKey = key
	case CredentialLocal:
		c.LocalAPIKey = key
	default:
		return fmt.Errorf("unknown credential %q", name)
	}
	return nil
}

// CredentialEnv returns the environment variable consulted for name.
func CredentialEnv(name string) (string, bool) {
	env, ok := credentialEnv[name]
	return env, ok
}

// RequestTimeout is the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeoutSeconds * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) normalize() {
	if c.AnthropicAPIKey == "" && c.ClaudeAPIKey != "" {
		c.AnthropicAPIKey = c.ClaudeAPIKey
	}
	c.ClaudeAPIKey = ""

	if strings.TrimSpace(c.DefaultModel) == "" {
		c.DefaultModel = DefaultModel
	}
	if strings.TrimSpace(c.LocalModel) == "" {
		c.LocalModel = DefaultLocalModel
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.LogFormat) == "" {
		c.LogFormat = DefaultLogFormat
	}
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return GetConfigPath()
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func marshal(path string, cfg *Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(cfg)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Package llm provides chat-completion callers for the summarization,
// crystallization, and extraction paths.
//
// A Caller is an explicitly owned handle: components receive one at
// construction and never share mutable global state. Restarting the LLM
// collaborator means dropping the old handle and constructing a new one.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// CallFunc sends one prompt and returns the model's text response.
type CallFunc func(ctx context.Context, prompt string) (string, error)

// Config holds configuration for creating a Caller.
type Config struct {
	Provider string // "openai", "anthropic", or "ollama"
	Model    string // e.g. "gpt-4o-mini", "claude-haiku-4-5-20251001"
	APIKey   string // explicit API key (highest priority)
	BaseURL  string // override base URL
}

// Caller is an owned handle on one LLM provider.
type Caller struct {
	provider string
	model    string
	call     CallFunc
}

// New creates a Caller based on the provided configuration.
// Resolution order for the API key:
//  1. Explicit APIKey in config
//  2. Environment variables (OPENAI_API_KEY / ANTHROPIC_API_KEY)
//  3. Fall back to Ollama at localhost:11434
func New(cfg Config) (*Caller, error) {
	provider := strings.ToLower(cfg.Provider)
	model := cfg.Model

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = resolveAPIKeyFromEnv(provider)
	}

	if apiKey == "" && provider != ProviderOllama {
		provider = ProviderOllama
	}

	switch provider {
	case ProviderOpenAI, "":
		if model == "" {
			model = "gpt-4o-mini"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		return &Caller{provider: ProviderOpenAI, model: model, call: newOpenAICaller(apiKey, model, baseURL)}, nil

	case ProviderAnthropic:
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.anthropic.com"
		}
		return &Caller{provider: ProviderAnthropic, model: model, call: newAnthropicCaller(apiKey, model, baseURL)}, nil

	case ProviderOllama:
		if model == "" {
			model = "llama3.2"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return &Caller{provider: ProviderOllama, model: model, call: newOllamaCaller(model, baseURL)}, nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// NewWithCallFunc wraps a raw CallFunc in a Caller. Used by tests.
func NewWithCallFunc(provider, model string, call CallFunc) *Caller {
	return &Caller{provider: provider, model: model, call: call}
}

// Complete sends one prompt and returns the model's text response.
func (c *Caller) Complete(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, prompt)
}

// Provider returns the canonical provider name.
func (c *Caller) Provider() string { return c.provider }

// Model returns the configured model name.
func (c *Caller) Model() string { return c.model }

func resolveAPIKeyFromEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI, "":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

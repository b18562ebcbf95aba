// Package ai provides model provider integration for the planforge project.
//
// It implements a provider-agnostic interface for chat completions against
// DeepSeek, Anthropic, Gemini, and Ollama. Planning and document filtering
// both go through the same Provider surface so the pipeline never depends on
// a specific vendor SDK.
package ai

import (
	"context"
	"log/slog"
	"os"

	"github.com/pbelyakov/planforge/pkg/config"
	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

// Message represents a conversation message.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Options control a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Response from a model provider.
type Response struct {
	Content      string
	StopReason   string // "stop", "length", "end_turn", etc.
	InputTokens  int
	OutputTokens int
}

// TotalTokens returns the combined prompt and completion token count.
func (r *Response) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider interface for model operations.
type Provider interface {
	// IsAvailable checks if the provider is configured and ready.
	IsAvailable() bool

	// Chat performs a single-turn chat completion.
	Chat(ctx context.Context, messages []Message, opts Options) (*Response, error)

	// Name returns the provider name.
	Name() string

	// Model returns the configured model identifier.
	Model() string
}

// Provider name constants.
const (
	ProviderDeepSeek  = "deepseek"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// NewProvider creates a model provider based on config.
// Environment variables take precedence over config file values for API keys.
// When ai.model is empty, provider-specific defaults from config are used.
func NewProvider(cfg *config.AIConfig, verbose bool) (Provider, error) {
	if cfg == nil {
		return nil, pferrors.NewConfigError("ai", "config is nil")
	}

	var logger *slog.Logger
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	switch cfg.Provider {
	case ProviderDeepSeek:
		apiKey := resolveAPIKey("DEEPSEEK_API_KEY", cfg.APIKey)
		if apiKey == "" {
			return nil, pferrors.NewConfigError("ai.api_key",
				"DeepSeek API key not set (set DEEPSEEK_API_KEY or ai.api_key in config)")
		}
		model := cfg.Model
		if model == "" {
			model = cfg.DeepSeekModel
		}
		return NewDeepSeekProvider(apiKey, model, cfg.Endpoint, logger), nil

	case ProviderAnthropic:
		apiKey := resolveAPIKey("ANTHROPIC_API_KEY", cfg.APIKey)
		if apiKey == "" {
			return nil, pferrors.NewConfigError("ai.api_key",
				"Anthropic API key not set (set ANTHROPIC_API_KEY or ai.api_key in config)")
		}
		model := cfg.Model
		if model == "" {
			model = cfg.AnthropicModel
		}
		return NewAnthropicProvider(apiKey, model, logger), nil

	case ProviderGemini:
		apiKey := resolveAPIKey("GOOGLE_GENAI_API_KEY", cfg.APIKey)
		if apiKey == "" {
			return nil, pferrors.NewConfigError("ai.api_key",
				"Gemini API key not set (set GOOGLE_GENAI_API_KEY or ai.api_key in config)")
		}
		model := cfg.Model
		if model == "" {
			model = cfg.GeminiModel
		}
		return NewGeminiProvider(apiKey, model, logger), nil

	case ProviderOllama:
		model := cfg.Model
		if model == "" {
			model = cfg.OllamaModel
		}
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = cfg.OllamaEndpoint
		}
		return NewOllamaProvider(endpoint, model, logger), nil

	default:
		return nil, pferrors.NewConfigError("ai.provider",
			"unsupported AI provider: "+cfg.Provider+" (supported: deepseek, anthropic, gemini, ollama)")
	}
}

// resolveAPIKey returns the key from the provider-specific environment
// variable, then the generic PLANFORGE_AI_API_KEY, then the config value.
func resolveAPIKey(envVar, configKey string) string {
	if key := os.Getenv(envVar); key != "" {
		return key
	}
	if key := os.Getenv("PLANFORGE_AI_API_KEY"); key != "" {
		return key
	}
	return configKey
}

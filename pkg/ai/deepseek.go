package ai

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

// DeepSeek API configuration.
const (
	deepseekBaseURL      = "https://api.deepseek.com/v1"
	deepseekDefaultModel = "deepseek-chat"
	deepseekMaxTokens    = 8192
)

// DeepSeekProvider implements Provider for the DeepSeek API, which is
// OpenAI-compatible.
type DeepSeekProvider struct {
	apiKey string
	model  string
	logger *slog.Logger
	client openai.Client
}

// NewDeepSeekProvider creates a new DeepSeek provider. An empty baseURL
// selects the public DeepSeek endpoint.
func NewDeepSeekProvider(apiKey, model, baseURL string, logger *slog.Logger) *DeepSeekProvider {
	if model == "" {
		model = deepseekDefaultModel
	}
	if baseURL == "" {
		baseURL = deepseekBaseURL
	}

	return &DeepSeekProvider{
		apiKey: apiKey,
		model:  model,
		logger: logger,
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
		),
	}
}

// Name returns the provider name.
func (p *DeepSeekProvider) Name() string {
	return ProviderDeepSeek
}

// Model returns the configured model identifier.
func (p *DeepSeekProvider) Model() string {
	return p.model
}

// IsAvailable checks if the provider is configured and ready.
func (p *DeepSeekProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Chat performs a single-turn chat completion.
func (p *DeepSeekProvider) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	if !p.IsAvailable() {
		return nil, pferrors.NewAIError(ProviderDeepSeek, "Chat", "provider not configured")
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = deepseekMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               p.model,
		Messages:            p.convertMessages(messages),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Temperature:         openai.Float(opts.Temperature),
	}

	p.logDebug("sending chat request", "model", p.model, "message_count", len(messages))

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, pferrors.NewAIErrorWithCause(ProviderDeepSeek, "Chat", "request failed", err)
	}

	if len(resp.Choices) == 0 {
		return nil, pferrors.NewAIError(ProviderDeepSeek, "Chat", "no choices in response")
	}

	choice := resp.Choices[0]

	p.logDebug("received response",
		"finish_reason", choice.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return &Response{
		Content:      choice.Message.Content,
		StopReason:   string(choice.FinishReason),
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// convertMessages maps provider-agnostic messages to the OpenAI union type.
func (p *DeepSeekProvider) convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			result = append(result, openai.SystemMessage(msg.Content))
		case "assistant":
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}
	return result
}

func (p *DeepSeekProvider) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

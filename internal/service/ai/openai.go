package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

const jsonOnlyInstruction = "Réponds uniquement avec le JSON demandé, sans texte ni balises autour."

// OpenAIProvider is the fallback backend, or the primary one when no
// Gemini key is configured.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIProvider returns nil when no key is configured.
func NewOpenAIProvider(apiKey, model string, logger *zap.Logger, opts ...option.RequestOption) *OpenAIProvider {
	if apiKey == "" {
		return nil
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIProvider{client: &client, model: model, logger: logger}
}

func (o *OpenAIProvider) Name() string {
	return "OpenAI"
}

func (o *OpenAIProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	if o.client == nil {
		return Completion{}, errors.New("openai client not initialized")
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.JSON {
		messages = append(messages, openai.SystemMessage(jsonOnlyInstruction))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.Sampling.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Sampling.MaxTokens))
	}
	// reasoning models reject sampling parameters
	if !strings.HasPrefix(model, "gpt-5") && !strings.HasPrefix(model, "o") {
		params.Temperature = openai.Float(float64(req.Sampling.Temperature))
		if req.Sampling.TopP > 0 {
			params.TopP = openai.Float(float64(req.Sampling.TopP))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		o.logger.Warn("OpenAI generation failed", zap.String("model", model), zap.Error(err))
		return Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("no choices in OpenAI response")
	}

	o.logger.Debug("OpenAI answered",
		zap.String("model", model),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)
	return Completion{Text: resp.Choices[0].Message.Content, Provider: o.Name(), Model: model}, nil
}

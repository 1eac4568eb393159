package ai

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiProvider is the primary backend.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiProvider(client *genai.Client, model string, logger *zap.Logger) *GeminiProvider {
	return &GeminiProvider{client: client, model: model, logger: logger}
}

func (g *GeminiProvider) Name() string {
	return "Gemini"
}

func (g *GeminiProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	if g.client == nil {
		return Completion{}, errors.New("gemini client not initialized")
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Sampling.Temperature),
	}
	if req.Sampling.TopP > 0 {
		config.TopP = genai.Ptr(req.Sampling.TopP)
	}
	if req.Sampling.TopK > 0 {
		config.TopK = genai.Ptr(float32(req.Sampling.TopK))
	}
	if req.Sampling.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.Sampling.MaxTokens)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		g.logger.Warn("Gemini generation failed", zap.String("model", model), zap.Error(err))
		return Completion{}, err
	}

	text := geminiText(resp)
	g.logger.Debug("Gemini answered", zap.String("model", model), zap.Int("length", len(text)))
	return Completion{Text: text, Provider: g.Name(), Model: model}, nil
}

// geminiText joins the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

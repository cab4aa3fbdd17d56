package llm

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type openAIGenerator struct {
	cfg    Config
	client *openai.Client
	logger *zap.Logger
}

func newOpenAI(cfg Config, hc *http.Client, logger *zap.Logger) *openAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = hc
	return &openAIGenerator{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger.Named("llm").With(zap.String("provider", ProviderOpenAI)),
	}
}

func (g *openAIGenerator) Provider() string { return ProviderOpenAI }
func (g *openAIGenerator) Model() string    { return g.cfg.Model }

func (g *openAIGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	if g.cfg.APIKey == "" {
		return nil, missingCredential(ProviderOpenAI, g.cfg.KeyEnvVar)
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	// go-openai omits a zero temperature, which the API reads as 1.
	temperature := g.cfg.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		upstream := classifyOpenAI(err)
		g.logger.Error("Chat completion failed",
			zap.String("model", g.cfg.Model),
			zap.Duration("elapsed", elapsed),
			zap.Error(upstream))
		return nil, upstream
	}
	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{
			Provider: ProviderOpenAI,
			Type:     ErrorTypeUnknown,
			Message:  "no choices returned",
			Cause:    errors.New("empty response"),
		}
	}

	g.logger.Debug("Chat completion",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", elapsed))

	return &Response{Content: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

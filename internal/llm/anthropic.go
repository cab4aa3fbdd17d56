package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/chatdata/internal/models"
)

type anthropicGenerator struct {
	cfg    Config
	client *anthropic.Client
	logger *zap.Logger
}

func newAnthropic(cfg Config, hc *http.Client, logger *zap.Logger) *anthropicGenerator {
	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(hc)}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	return &anthropicGenerator{
		cfg:    cfg,
		client: anthropic.NewClient(cfg.APIKey, opts...),
		logger: logger.Named("llm").With(zap.String("provider", ProviderAnthropic)),
	}
}

func (g *anthropicGenerator) Provider() string { return ProviderAnthropic }
func (g *anthropicGenerator) Model() string    { return g.cfg.Model }

func (g *anthropicGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	if g.cfg.APIKey == "" {
		return nil, missingCredential(ProviderAnthropic, g.cfg.KeyEnvVar)
	}

	system, turns := splitSystem(req.Messages)
	msgs := make([]anthropic.Message, 0, len(turns))
	for _, m := range turns {
		text := m.Content
		role := anthropic.RoleUser
		if m.Role == models.RoleAssistant {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{{Type: "text", Text: &text}},
		})
	}

	temperature := g.cfg.Temperature
	start := time.Now()
	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(g.cfg.Model),
		MaxTokens:   g.cfg.MaxTokens,
		System:      system,
		Messages:    msgs,
		Temperature: &temperature,
	})
	elapsed := time.Since(start)
	if err != nil {
		upstream := classifyAnthropic(err)
		g.logger.Error("Messages request failed",
			zap.String("model", g.cfg.Model),
			zap.Duration("elapsed", elapsed),
			zap.Error(upstream))
		return nil, upstream
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			b.WriteString(*block.Text)
		}
	}

	g.logger.Debug("Messages request",
		zap.String("model", string(resp.Model)),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", elapsed))

	return &Response{Content: b.String(), Model: string(resp.Model)}, nil
}

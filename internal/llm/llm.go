// Package llm talks to hosted text-generation providers.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chatdata/internal/models"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Request is one completion call.
type Request struct {
	Messages []models.ChatMessage
}

// Response is the generated assistant text.
type Response struct {
	Content string
	Model   string
}

// Generator produces assistant text for a conversation.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Provider() string
	Model() string
}

// Config configures a Generator.
type Config struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	KeyEnvVar   string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// New creates the generator for cfg.Provider. A missing API key is not an
// error here; Generate reports it.
func New(cfg Config, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	switch cfg.Provider {
	case ProviderOpenAI, "":
		cfg.Provider = ProviderOpenAI
		if cfg.KeyEnvVar == "" {
			cfg.KeyEnvVar = "OPENAI_API_KEY"
		}
		return newOpenAI(cfg, hc, logger), nil
	case ProviderAnthropic:
		if cfg.KeyEnvVar == "" {
			cfg.KeyEnvVar = "ANTHROPIC_API_KEY"
		}
		return newAnthropic(cfg, hc, logger), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// Check sends a minimal prompt and returns the reply.
func Check(ctx context.Context, g Generator) (*Response, error) {
	return g.Generate(ctx, Request{Messages: []models.ChatMessage{
		{Role: models.RoleUser, Content: "Say hello"},
	}})
}

// splitSystem moves system messages out of the conversation and merges
// adjacent turns with the same role.
func splitSystem(msgs []models.ChatMessage) (string, []models.ChatMessage) {
	var system string
	out := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return system, out
}

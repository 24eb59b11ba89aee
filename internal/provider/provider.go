package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/MEKXH/intentpilot/internal/config"
)

const defaultOllamaURL = "http://localhost:11434"

// NewChatModel creates the advisory ChatModel. Without an api key the base
// URL is treated as a local Ollama server.
func NewChatModel(ctx context.Context, cfg config.AdvisoryConfig) (model.ChatModel, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("advisory model is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return newOllamaModel(ctx, cfg)
	}
	return newOpenAIModel(ctx, cfg)
}

func newOpenAIModel(ctx context.Context, cfg config.AdvisoryConfig) (model.ChatModel, error) {
	c := &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: toFloat32Ptr(cfg.Temperature),
		MaxTokens:   toIntPtr(cfg.MaxTokens),
	}
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewChatModel(ctx, c)
}

func newOllamaModel(ctx context.Context, cfg config.AdvisoryConfig) (model.ChatModel, error) {
	baseURL := ollamaBaseURL(cfg.BaseURL)
	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:       cfg.Model,
		BaseURL:     baseURL,
		Temperature: toFloat32Ptr(cfg.Temperature),
		MaxTokens:   toIntPtr(cfg.MaxTokens),
	})
}

func ollamaBaseURL(raw string) string {
	baseURL := strings.TrimRight(strings.TrimSpace(raw), "/")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	return baseURL
}

func toFloat32Ptr(f float64) *float32 {
	v := float32(f)
	return &v
}

func toIntPtr(i int) *int {
	return &i
}

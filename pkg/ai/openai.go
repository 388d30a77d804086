package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig defines configuration options for the OpenAI generator.
// BaseURL points the same client at OpenAI-compatible providers.
type OpenAIConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// OpenAIGenerator implements Generator against the chat completion API.
type OpenAIGenerator struct {
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger

	once   sync.Once
	client *openai.Client
}

// NewOpenAIGenerator builds a generator; the HTTP client is created on first use.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}

	return &OpenAIGenerator{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-assessor/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_generator").Str("provider", cfg.Provider).Logger(),
	}, nil
}

func (g *OpenAIGenerator) init() *openai.Client {
	g.once.Do(func() {
		config := openai.DefaultConfig(g.cfg.APIKey)
		if g.cfg.BaseURL != "" {
			config.BaseURL = strings.TrimRight(g.cfg.BaseURL, "/")
		}
		g.client = openai.NewClientWithConfig(config)
		g.logger.Debug().Str("base_url", config.BaseURL).Msg("completion client initialised")
	})
	return g.client
}

// Generate sends the system and user turns and returns the trimmed first choice.
func (g *OpenAIGenerator) Generate(parent context.Context, req GenerationRequest) (string, error) {
	ctx, span := g.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("ai.provider", g.cfg.Provider),
		attribute.String("ai.model", req.Model),
		attribute.Float64("ai.temperature", req.Temperature),
	))
	defer span.End()

	client := g.init()

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	request := openai.ChatCompletionRequest{
		Model:       req.Model,
		MaxTokens:   req.maxTokens(),
		Temperature: chatTemperature(req.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemContent},
			{Role: openai.ChatMessageRoleUser, Content: req.UserContent},
		},
	}

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, request)
	observe(g.cfg.Provider, req.Model, start)
	if err != nil {
		return "", fail(span, g.cfg.Provider, req.Model, err)
	}

	if len(resp.Choices) == 0 {
		return "", fail(span, g.cfg.Provider, req.Model, errors.New("no choices returned from provider"))
	}

	span.SetAttributes(
		attribute.Int("ai.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("ai.completion_tokens", resp.Usage.CompletionTokens),
	)
	span.SetStatus(codes.Ok, "generated")

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// chatTemperature keeps an explicit zero on the wire; the client drops a plain 0 as unset.
func chatTemperature(value float64) float32 {
	if value == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(value)
}

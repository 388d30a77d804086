package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini generator.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// GeminiGenerator implements Generator against the Gemini generateContent API.
type GeminiGenerator struct {
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiGenerator validates the configuration; the client is built lazily.
func NewGeminiGenerator(cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	return &GeminiGenerator{
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-assessor/pkg/ai/gemini"),
		logger: cfg.Logger.With().Str("component", "gemini_generator").Logger(),
	}, nil
}

func (g *GeminiGenerator) init(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		clientCfg := &genai.ClientConfig{
			APIKey:  g.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if g.cfg.BaseURL != "" {
			clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
		}
		g.client, g.initErr = genai.NewClient(ctx, clientCfg)
		if g.initErr != nil {
			g.initErr = fmt.Errorf("create gemini client: %w", g.initErr)
			return
		}
		g.logger.Debug().Msg("gemini client initialised")
	})
	return g.client, g.initErr
}

// Generate sends the system instruction and the user turn and returns the trimmed text.
func (g *GeminiGenerator) Generate(parent context.Context, req GenerationRequest) (string, error) {
	ctx, span := g.tracer.Start(parent, "gemini.generate", trace.WithAttributes(
		attribute.String("ai.provider", ProviderGemini),
		attribute.String("ai.model", req.Model),
		attribute.Float64("ai.temperature", req.Temperature),
	))
	defer span.End()

	client, err := g.init(ctx)
	if err != nil {
		return "", fail(span, ProviderGemini, req.Model, err)
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemContent, genai.RoleUser),
		Temperature:       genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:   int32(req.maxTokens()),
	}

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.UserContent), config)
	observe(ProviderGemini, req.Model, start)
	if err != nil {
		return "", fail(span, ProviderGemini, req.Model, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fail(span, ProviderGemini, req.Model, errors.New("no candidates returned from provider"))
	}

	span.SetStatus(codes.Ok, "generated")
	return strings.TrimSpace(resp.Text()), nil
}

package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessor/internal/config"
	"github.com/noah-isme/gema-assessor/internal/repository"
	"github.com/noah-isme/gema-assessor/internal/service"
	"github.com/noah-isme/gema-assessor/pkg/ai"
)

// GradingStack bundles the grading core shared by the API server and the CLI.
type GradingStack struct {
	Grading service.GradingService
	Batch   service.BatchGradingService
}

// NewGenerator builds the completion client for the configured provider.
func NewGenerator(cfg config.Config, logger zerolog.Logger) (ai.Generator, error) {
	generator, err := ai.NewGenerator(ai.ProviderConfig{
		Provider: cfg.AIProvider,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.RequestTimeout,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s generator: %w", cfg.AIProvider, err)
	}
	return generator, nil
}

// NewGradingStack wires the composer, grader and batch orchestrator. history may be nil.
func NewGradingStack(cfg config.Config, generator ai.Generator, history repository.GradingRecordRepository, logger zerolog.Logger) GradingStack {
	composer := service.NewPromptComposer(cfg.DocumentExtensions, logger)
	grading := service.NewGradingService(composer, generator, history, cfg.Settings(), service.GradingConfig{
		Provider:        cfg.AIProvider,
		DefaultModelKey: cfg.DefaultModel,
		Models:          cfg.Models,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}, logger)

	return GradingStack{
		Grading: grading,
		Batch: service.NewBatchGradingService(grading, service.BatchGradingConfig{
			Extensions: cfg.DocumentExtensions,
			MaxWorkers: cfg.MaxWorkers,
		}, logger),
	}
}

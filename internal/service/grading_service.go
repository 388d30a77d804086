package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-assessor/internal/config"
	"github.com/noah-isme/gema-assessor/internal/models"
	"github.com/noah-isme/gema-assessor/internal/observability"
	"github.com/noah-isme/gema-assessor/internal/repository"
	"github.com/noah-isme/gema-assessor/pkg/ai"
	"github.com/noah-isme/gema-assessor/pkg/document"
)

// DefaultTemperature is used when neither the request nor the settings supply a valid value.
const DefaultTemperature = 0.7

// SettingsReader is the read-only configuration view the grader depends on.
type SettingsReader interface {
	GetFloat(section, key string, def float64) float64
}

// GradingRequest carries the parameters for grading one submission.
type GradingRequest struct {
	SubmissionPath string
	SystemPrompt   string
	UserPrompt     string
	SupportFolder  string
	OutputFolder   string
	ModelKey       string
	Temperature    *float64
	BatchID        string
}

// GradingResult is the immutable outcome of grading one submission.
type GradingResult struct {
	Success        bool             `json:"success"`
	Feedback       string           `json:"feedback"`
	Submission     string           `json:"submission"`
	OutputPath     string           `json:"output_path,omitempty"`
	Model          string           `json:"model,omitempty"`
	Temperature    float64          `json:"temperature"`
	Duration       time.Duration    `json:"duration"`
	SkippedSupport []SupportFailure `json:"skipped_support,omitempty"`
	Err            error            `json:"-"`
}

// GradingService grades a single submission end to end.
type GradingService interface {
	GradeSubmission(ctx context.Context, req GradingRequest) GradingResult
}

// GradingConfig holds the resolved defaults used by the grader.
type GradingConfig struct {
	Provider        string
	DefaultModelKey string
	Models          config.ModelTable
	MaxOutputTokens int
}

type gradingService struct {
	composer  PromptComposer
	generator ai.Generator
	history   repository.GradingRecordRepository
	settings  SettingsReader
	config    GradingConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewGradingService constructs the submission grader. history may be nil.
func NewGradingService(composer PromptComposer, generator ai.Generator, history repository.GradingRecordRepository, settings SettingsReader, cfg GradingConfig, logger zerolog.Logger) GradingService {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = ai.DefaultMaxOutputTokens
	}

	return &gradingService{
		composer:  composer,
		generator: generator,
		history:   history,
		settings:  settings,
		config:    cfg,
		logger:    logger.With().Str("component", "grading_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-assessor/internal/service/grading"),
	}
}

func (s *gradingService) GradeSubmission(ctx context.Context, req GradingRequest) (result GradingResult) {
	start := time.Now()
	result = GradingResult{Submission: filepath.Base(req.SubmissionPath)}

	spanCtx, span := s.tracer.Start(ctx, "grading.submission", trace.WithAttributes(
		attribute.String("grading.submission", result.Submission),
	))
	defer span.End()

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("panic: %v", recovered)
			result = s.failure(result, req, err)
			s.logger.Error().Str("submission", req.SubmissionPath).Interface("panic", recovered).Msg("grading panicked")
		}
		result.Duration = time.Since(start)
		s.finish(spanCtx, span, req, result)
	}()

	if err := requireSubmission(req.SubmissionPath); err != nil {
		return s.failure(result, req, err)
	}

	if req.OutputFolder != "" {
		if err := os.MkdirAll(req.OutputFolder, 0o755); err != nil {
			return s.failure(result, req, fmt.Errorf("create output folder: %w: %v", document.ErrWrite, err))
		}
	}

	result.Temperature = s.resolveTemperature(req.Temperature)

	system := s.composer.ComposeSystemContent(req.SystemPrompt, req.SupportFolder)
	result.SkippedSupport = system.SkippedSupport

	user, err := s.composer.ComposeUserContent(req.UserPrompt, req.SubmissionPath)
	if err != nil {
		return s.failure(result, req, err)
	}

	modelKey := strings.TrimSpace(req.ModelKey)
	if modelKey == "" {
		modelKey = s.config.DefaultModelKey
	}
	result.Model = s.config.Models.Resolve(modelKey)
	span.SetAttributes(attribute.String("ai.model", result.Model))

	feedback, err := s.generator.Generate(spanCtx, ai.GenerationRequest{
		SystemContent:   system.Content,
		UserContent:     user,
		Model:           result.Model,
		Temperature:     result.Temperature,
		MaxOutputTokens: s.config.MaxOutputTokens,
	})
	if err != nil {
		result.Success = false
		result.Feedback = fmt.Sprintf("Failed to grade %s: API Error: %s", req.SubmissionPath, err.Error())
		result.Err = err
		return result
	}

	if req.OutputFolder != "" {
		outputPath := filepath.Join(req.OutputFolder, document.FeedbackFileName(result.Submission))
		if err := document.WriteText(outputPath, feedback); err != nil {
			s.logger.Error().Err(err).Str("submission", req.SubmissionPath).Int("feedback_length", len(feedback)).Msg("feedback generated but not saved")
			return s.failure(result, req, fmt.Errorf("save feedback: %w", err))
		}
		result.OutputPath = outputPath
	}

	result.Success = true
	result.Feedback = feedback
	return result
}

func (s *gradingService) failure(result GradingResult, req GradingRequest, err error) GradingResult {
	result.Success = false
	result.Err = err

	switch {
	case errors.Is(err, document.ErrNotFound):
		result.Feedback = fmt.Sprintf("Submission file not found: %s", req.SubmissionPath)
	case errors.Is(err, document.ErrNotAFile):
		result.Feedback = fmt.Sprintf("Submission path is not a file: %s", req.SubmissionPath)
	default:
		result.Feedback = fmt.Sprintf("Failed to grade %s: %v", req.SubmissionPath, err)
	}

	return result
}

func (s *gradingService) resolveTemperature(requested *float64) float64 {
	if requested != nil && validTemperature(*requested) {
		return *requested
	}

	fallback := DefaultTemperature
	if s.settings != nil {
		fallback = s.settings.GetFloat("API", "Temperature", DefaultTemperature)
	}
	if !validTemperature(fallback) {
		fallback = DefaultTemperature
	}

	if requested != nil {
		s.logger.Debug().Float64("requested", *requested).Float64("temperature", fallback).Msg("temperature out of range, using default")
	}
	return fallback
}

func (s *gradingService) finish(ctx context.Context, span trace.Span, req GradingRequest, result GradingResult) {
	outcome := "success"
	if !result.Success {
		outcome = "failure"
		if result.Err != nil {
			span.RecordError(result.Err)
		}
		span.SetStatus(codes.Error, result.Feedback)
	}

	observability.Gradings().WithLabelValues(result.Model, outcome).Inc()
	observability.GradingDuration().WithLabelValues(result.Model).Observe(result.Duration.Seconds())

	event := s.logger.Info()
	if !result.Success {
		event = s.logger.Warn().Str("error", result.Feedback)
	}
	event.Str("submission", result.Submission).
		Str("model", result.Model).
		Dur("duration", result.Duration).
		Bool("success", result.Success).
		Msg("submission graded")

	if s.history == nil {
		return
	}

	record := models.GradingRecord{
		Submission:     result.Submission,
		SubmissionPath: req.SubmissionPath,
		Success:        result.Success,
		Feedback:       result.Feedback,
		OutputPath:     result.OutputPath,
		Provider:       s.config.Provider,
		Model:          result.Model,
		Temperature:    result.Temperature,
		DurationMillis: result.Duration.Milliseconds(),
	}
	if req.BatchID != "" {
		batchID := req.BatchID
		record.BatchID = &batchID
	}

	if err := s.history.Create(context.WithoutCancel(ctx), &record); err != nil {
		s.logger.Warn().Err(err).Str("submission", result.Submission).Msg("failed to record grading history")
	}
}

func requireSubmission(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", document.ErrNotFound, path)
		}
		return fmt.Errorf("stat submission: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", document.ErrNotAFile, path)
	}
	return nil
}

func validTemperature(value float64) bool {
	return !math.IsNaN(value) && value >= 0 && value <= 1
}

package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/gema-assessor/internal/models"
	"github.com/noah-isme/gema-assessor/internal/observability"
	"github.com/noah-isme/gema-assessor/pkg/document"
)

// BatchRequest carries the parameters shared by every submission in a folder.
type BatchRequest struct {
	SubmissionsFolder string
	SystemPrompt      string
	UserPrompt        string
	SupportFolder     string
	OutputFolder      string
	ModelKey          string
	Temperature       *float64
	MaxWorkers        int
	BatchID           string
	// Progress, when set, is called once per finished submission. Calls are serialised.
	Progress func(BatchProgress)
}

// BatchProgress reports one finished submission within a batch.
type BatchProgress struct {
	BatchID    string `json:"batch_id,omitempty"`
	Submission string `json:"submission"`
	Success    bool   `json:"success"`
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
}

// BatchReport aggregates the results of one batch run.
type BatchReport struct {
	SuccessCount int                      `json:"success_count"`
	FailCount    int                      `json:"fail_count"`
	Results      map[string]GradingResult `json:"results"`
	Order        []string                 `json:"order"`
}

// Entries returns the results in processing order.
func (r BatchReport) Entries() []GradingResult {
	entries := make([]GradingResult, 0, len(r.Order))
	for _, name := range r.Order {
		if result, ok := r.Results[name]; ok {
			entries = append(entries, result)
		}
	}
	return entries
}

func (r *BatchReport) add(name string, result GradingResult) {
	if _, exists := r.Results[name]; exists {
		return
	}
	r.Results[name] = result
	r.Order = append(r.Order, name)
	if result.Success {
		r.SuccessCount++
	} else {
		r.FailCount++
	}
}

func newBatchReport(capacity int) BatchReport {
	return BatchReport{
		Results: make(map[string]GradingResult, capacity),
		Order:   make([]string, 0, capacity),
	}
}

// BatchGradingService grades every document in a folder.
type BatchGradingService interface {
	Discover(folder string) ([]string, error)
	GradeAllSubmissions(ctx context.Context, req BatchRequest) (BatchReport, error)
}

// BatchGradingConfig tunes discovery and concurrency.
type BatchGradingConfig struct {
	Extensions []string
	MaxWorkers int
}

type batchGradingService struct {
	grader     GradingService
	extensions []string
	maxWorkers int
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewBatchGradingService constructs the batch orchestrator on top of a submission grader.
func NewBatchGradingService(grader GradingService, cfg BatchGradingConfig, logger zerolog.Logger) BatchGradingService {
	extensions := cfg.Extensions
	if len(extensions) == 0 {
		extensions = document.DefaultExtensions
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}

	return &batchGradingService{
		grader:     grader,
		extensions: document.NormalizeExtensions(extensions),
		maxWorkers: cfg.MaxWorkers,
		logger:     logger.With().Str("component", "batch_grading_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/gema-assessor/internal/service/batch"),
	}
}

// Discover lists the submission documents in folder.
func (s *batchGradingService) Discover(folder string) ([]string, error) {
	return document.ListDocuments(folder, s.extensions)
}

func (s *batchGradingService) GradeAllSubmissions(ctx context.Context, req BatchRequest) (BatchReport, error) {
	names, err := s.Discover(req.SubmissionsFolder)
	if err != nil {
		return BatchReport{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "grading.batch", trace.WithAttributes(
		attribute.String("grading.batch_id", req.BatchID),
		attribute.Int("grading.submissions", len(names)),
	))
	defer span.End()

	observability.BatchesInFlight().Inc()
	defer observability.BatchesInFlight().Dec()

	report := newBatchReport(len(names))
	if len(names) == 0 {
		s.logger.Info().Str("folder", req.SubmissionsFolder).Msg("no submissions found")
		observability.BatchRuns().WithLabelValues(models.BatchStatusCompleted).Inc()
		return report, nil
	}

	workers := req.MaxWorkers
	if workers <= 0 {
		workers = s.maxWorkers
	}

	start := time.Now()
	results := make([]GradingResult, len(names))

	var (
		progressMu sync.Mutex
		processed  int
	)
	run := func(i int) {
		results[i] = s.gradeOne(spanCtx, req, names[i])

		progressMu.Lock()
		defer progressMu.Unlock()
		processed++
		if req.Progress != nil {
			req.Progress(BatchProgress{
				BatchID:    req.BatchID,
				Submission: names[i],
				Success:    results[i].Success,
				Processed:  processed,
				Total:      len(names),
			})
		}
	}

	if workers <= 1 || len(names) == 1 {
		for i := range names {
			run(i)
		}
	} else {
		var group errgroup.Group
		group.SetLimit(workers)
		for i := range names {
			group.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = group.Wait()
	}

	for i, name := range names {
		report.add(name, results[i])
	}

	span.SetAttributes(
		attribute.Int("grading.success_count", report.SuccessCount),
		attribute.Int("grading.fail_count", report.FailCount),
	)
	if report.FailCount > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d submissions failed", report.FailCount))
	}
	observability.BatchRuns().WithLabelValues(models.BatchStatusCompleted).Inc()

	s.logger.Info().
		Str("folder", req.SubmissionsFolder).
		Str("batch_id", req.BatchID).
		Int("workers", workers).
		Int("success", report.SuccessCount).
		Int("failed", report.FailCount).
		Dur("duration", time.Since(start)).
		Msg("batch graded")

	return report, nil
}

func (s *batchGradingService) gradeOne(ctx context.Context, req BatchRequest, name string) (result GradingResult) {
	if err := ctx.Err(); err != nil {
		return GradingResult{Submission: name, Feedback: ErrCancelled.Error(), Err: fmt.Errorf("%w: %v", ErrCancelled, err)}
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error().Str("submission", name).Interface("panic", recovered).Msg("submission grading panicked")
			result = GradingResult{
				Submission: name,
				Feedback:   fmt.Sprintf("Failed to grade %s: %v", name, recovered),
				Err:        fmt.Errorf("panic: %v", recovered),
			}
		}
	}()

	return s.grader.GradeSubmission(ctx, GradingRequest{
		SubmissionPath: filepath.Join(req.SubmissionsFolder, name),
		SystemPrompt:   req.SystemPrompt,
		UserPrompt:     req.UserPrompt,
		SupportFolder:  req.SupportFolder,
		OutputFolder:   req.OutputFolder,
		ModelKey:       req.ModelKey,
		Temperature:    req.Temperature,
		BatchID:        req.BatchID,
	})
}

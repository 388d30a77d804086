package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessor/internal/models"
	"github.com/noah-isme/gema-assessor/internal/repository"
)

const maxHistoryLimit = 500

// GradingHistoryFilter narrows history queries.
type GradingHistoryFilter struct {
	Submission string
	BatchID    string
	Success    *bool
	Limit      int
}

// GradingHistoryService exposes past grading outcomes.
type GradingHistoryService interface {
	List(ctx context.Context, filter GradingHistoryFilter) ([]models.GradingRecord, error)
	BatchRun(ctx context.Context, id string) (models.BatchRun, error)
}

type gradingHistoryService struct {
	repo   repository.GradingRecordRepository
	logger zerolog.Logger
}

// NewGradingHistoryService constructs the history service.
func NewGradingHistoryService(repo repository.GradingRecordRepository, logger zerolog.Logger) GradingHistoryService {
	return &gradingHistoryService{
		repo:   repo,
		logger: logger.With().Str("component", "grading_history_service").Logger(),
	}
}

func (s *gradingHistoryService) List(ctx context.Context, filter GradingHistoryFilter) ([]models.GradingRecord, error) {
	limit := filter.Limit
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	return s.repo.List(ctx, repository.GradingRecordFilter{
		Submission: strings.TrimSpace(filter.Submission),
		BatchID:    strings.TrimSpace(filter.BatchID),
		Success:    filter.Success,
		Limit:      limit,
	})
}

func (s *gradingHistoryService) BatchRun(ctx context.Context, id string) (models.BatchRun, error) {
	return s.repo.GetBatchRun(ctx, id)
}

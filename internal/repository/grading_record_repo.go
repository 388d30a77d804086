package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessor/internal/models"
)

// DefaultHistoryLimit caps history queries without an explicit limit.
const DefaultHistoryLimit = 50

// GradingRecordFilter narrows grading history queries.
type GradingRecordFilter struct {
	Submission string
	BatchID    string
	Success    *bool
	Limit      int
}

// GradingRecordRepository persists grading history and batch runs.
type GradingRecordRepository interface {
	Create(ctx context.Context, record *models.GradingRecord) error
	List(ctx context.Context, filter GradingRecordFilter) ([]models.GradingRecord, error)
	CreateBatchRun(ctx context.Context, run *models.BatchRun) error
	UpdateBatchRun(ctx context.Context, run *models.BatchRun) error
	GetBatchRun(ctx context.Context, id string) (models.BatchRun, error)
}

type gradingRecordRepository struct {
	db *gorm.DB
}

// NewGradingRecordRepository instantiates the repository.
func NewGradingRecordRepository(db *gorm.DB) GradingRecordRepository {
	return &gradingRecordRepository{db: db}
}

func (r *gradingRecordRepository) Create(ctx context.Context, record *models.GradingRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *gradingRecordRepository) List(ctx context.Context, filter GradingRecordFilter) ([]models.GradingRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.GradingRecord{})

	if filter.Submission != "" {
		query = query.Where("submission = ?", filter.Submission)
	}

	if filter.BatchID != "" {
		query = query.Where("batch_id = ?", filter.BatchID)
	}

	if filter.Success != nil {
		query = query.Where("success = ?", *filter.Success)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var records []models.GradingRecord
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *gradingRecordRepository) CreateBatchRun(ctx context.Context, run *models.BatchRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *gradingRecordRepository) UpdateBatchRun(ctx context.Context, run *models.BatchRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *gradingRecordRepository) GetBatchRun(ctx context.Context, id string) (models.BatchRun, error) {
	var run models.BatchRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return models.BatchRun{}, err
	}
	return run, nil
}

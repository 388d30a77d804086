package dto

import (
	"time"

	"github.com/noah-isme/gema-assessor/internal/models"
)

// GradeSubmissionRequest is the payload for grading a single submission.
// Prompts may be inline text or paths; empty values fall back to the configured paths.
type GradeSubmissionRequest struct {
	SubmissionPath   string   `json:"submission_path" validate:"required"`
	SystemPrompt     string   `json:"system_prompt"`
	SystemPromptPath string   `json:"system_prompt_path"`
	UserPrompt       string   `json:"user_prompt"`
	UserPromptPath   string   `json:"user_prompt_path"`
	SupportFolder    string   `json:"support_folder"`
	OutputFolder     string   `json:"output_folder"`
	Model            string   `json:"model" validate:"omitempty,max=128"`
	Temperature      *float64 `json:"temperature" validate:"omitempty,gte=0,lte=1"`
}

// GradeBatchRequest is the payload for starting a batch grading job.
type GradeBatchRequest struct {
	SubmissionsFolder string   `json:"submissions_folder" validate:"required"`
	SystemPrompt      string   `json:"system_prompt"`
	SystemPromptPath  string   `json:"system_prompt_path"`
	UserPrompt        string   `json:"user_prompt"`
	UserPromptPath    string   `json:"user_prompt_path"`
	SupportFolder     string   `json:"support_folder"`
	OutputFolder      string   `json:"output_folder"`
	Model             string   `json:"model" validate:"omitempty,max=128"`
	Temperature       *float64 `json:"temperature" validate:"omitempty,gte=0,lte=1"`
	MaxWorkers        int      `json:"max_workers" validate:"omitempty,gte=1,lte=16"`
}

// GradingHistoryQuery captures the history listing filters.
type GradingHistoryQuery struct {
	Submission string `validate:"omitempty,max=255"`
	BatchID    string `validate:"omitempty,uuid"`
	Success    *bool
	Limit      int `validate:"gte=0,lte=500"`
}

// SupportFailureResponse describes a support file left out of the prompt.
type SupportFailureResponse struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// GradingResultResponse describes one grading outcome.
type GradingResultResponse struct {
	Success        bool                     `json:"success"`
	Feedback       string                   `json:"feedback"`
	Submission     string                   `json:"submission"`
	OutputPath     string                   `json:"output_path,omitempty"`
	Model          string                   `json:"model,omitempty"`
	Temperature    float64                  `json:"temperature"`
	DurationMillis int64                    `json:"duration_ms"`
	SkippedSupport []SupportFailureResponse `json:"skipped_support,omitempty"`
}

// BatchReportResponse describes a finished batch.
type BatchReportResponse struct {
	SuccessCount int                     `json:"success_count"`
	FailCount    int                     `json:"fail_count"`
	Results      []GradingResultResponse `json:"results"`
}

// BatchJobResponse describes an asynchronous batch job.
type BatchJobResponse struct {
	ID                string               `json:"id"`
	Status            string               `json:"status"`
	SubmissionsFolder string               `json:"submissions_folder"`
	Total             int                  `json:"total"`
	Processed         int                  `json:"processed"`
	SuccessCount      int                  `json:"success_count"`
	FailCount         int                  `json:"fail_count"`
	Error             string               `json:"error,omitempty"`
	Report            *BatchReportResponse `json:"report,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	FinishedAt        *time.Time           `json:"finished_at,omitempty"`
}

// GradingRecordResponse describes a stored grading outcome.
type GradingRecordResponse struct {
	ID             uint      `json:"id"`
	BatchID        string    `json:"batch_id,omitempty"`
	Submission     string    `json:"submission"`
	Success        bool      `json:"success"`
	Feedback       string    `json:"feedback"`
	OutputPath     string    `json:"output_path,omitempty"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	Temperature    float64   `json:"temperature"`
	DurationMillis int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewGradingRecordResponse builds a response DTO from a model.
func NewGradingRecordResponse(record models.GradingRecord) GradingRecordResponse {
	response := GradingRecordResponse{
		ID:             record.ID,
		Submission:     record.Submission,
		Success:        record.Success,
		Feedback:       record.Feedback,
		OutputPath:     record.OutputPath,
		Provider:       record.Provider,
		Model:          record.Model,
		Temperature:    record.Temperature,
		DurationMillis: record.DurationMillis,
		CreatedAt:      record.CreatedAt,
	}
	if record.BatchID != nil {
		response.BatchID = *record.BatchID
	}
	return response
}

// NewGradingRecordResponses maps a slice of models.
func NewGradingRecordResponses(records []models.GradingRecord) []GradingRecordResponse {
	responses := make([]GradingRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, NewGradingRecordResponse(record))
	}
	return responses
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

// GradingRecord stores the outcome of grading one submission.
type GradingRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	BatchID        *string   `gorm:"size:36;index" json:"batch_id,omitempty"`
	Submission     string    `gorm:"size:255;not null;index" json:"submission"`
	SubmissionPath string    `gorm:"size:1024" json:"submission_path"`
	Success        bool      `gorm:"not null" json:"success"`
	Feedback       string    `gorm:"type:text" json:"feedback"`
	OutputPath     string    `gorm:"size:1024" json:"output_path"`
	Provider       string    `gorm:"size:32" json:"provider"`
	Model          string    `gorm:"size:128" json:"model"`
	Temperature    float64   `json:"temperature"`
	DurationMillis int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// BatchRun summarises one batch grading run.
type BatchRun struct {
	ID                string            `gorm:"primaryKey;size:36" json:"id"`
	SubmissionsFolder string            `gorm:"size:1024;not null" json:"submissions_folder"`
	Status            string            `gorm:"size:16;not null;index" json:"status"`
	Total             int               `json:"total"`
	SuccessCount      int               `json:"success_count"`
	FailCount         int               `json:"fail_count"`
	Parameters        datatypes.JSONMap `json:"parameters"`
	Error             string            `gorm:"type:text" json:"error,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        *time.Time        `json:"finished_at,omitempty"`
}

const (
	// BatchStatusQueued marks a run accepted but not yet started.
	BatchStatusQueued = "queued"
	// BatchStatusRunning marks a run in progress.
	BatchStatusRunning = "running"
	// BatchStatusCompleted marks a run whose report is available.
	BatchStatusCompleted = "completed"
	// BatchStatusFailed marks a run that could not produce a report.
	BatchStatusFailed = "failed"
)

// IsFinished reports whether the run reached a terminal status.
func (b BatchRun) IsFinished() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}

package service

import "errors"

var (
	// ErrValidation marks request parameters rejected by a strict validation layer.
	ErrValidation = errors.New("validation failed")
	// ErrUnsupportedFormat indicates a report export format that is not implemented.
	ErrUnsupportedFormat = errors.New("unsupported report format")
	// ErrBatchJobNotFound indicates the batch job id is unknown or expired.
	ErrBatchJobNotFound = errors.New("batch job not found")
	// ErrCancelled marks submissions the batch never started because the run was cancelled.
	ErrCancelled = errors.New("grading cancelled before submission was processed")
)

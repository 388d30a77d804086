package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const feedbackSuffix = "_feedback.txt"

// WriteText replaces the file at path with content, creating parent folders as needed.
func WriteText(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %v: %w", dir, err, ErrWrite)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %v: %w", path, err, ErrWrite)
	}

	return nil
}

// FeedbackFileName derives the feedback file name for a submission:
// the real extension is dropped and "_feedback.txt" appended.
func FeedbackFileName(submission string) string {
	base := filepath.Base(submission)
	return strings.TrimSuffix(base, filepath.Ext(base)) + feedbackSuffix
}

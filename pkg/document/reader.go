package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound indicates the requested file or folder does not exist.
	ErrNotFound = errors.New("path not found")
	// ErrNotADirectory indicates a folder was expected.
	ErrNotADirectory = errors.New("not a directory")
	// ErrNotAFile indicates a regular file was expected.
	ErrNotAFile = errors.New("not a file")
	// ErrFormat indicates the file exists but cannot be parsed as a document.
	ErrFormat = errors.New("unsupported or corrupt document")
	// ErrWrite indicates the output could not be persisted.
	ErrWrite = errors.New("write failed")
)

// ReadPlainText returns the raw content of a text file.
func ReadPlainText(path string) (string, error) {
	if err := requireFile(path); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return string(data), nil
}

// ReadDocumentText extracts the paragraph text of a structured document.
// Word documents yield one line per body paragraph, empty paragraphs included.
func ReadDocumentText(path string) (string, error) {
	if err := requireFile(path); err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return readDocx(path)
	case ".html", ".htm":
		return readHTML(path)
	case ".txt", ".md":
		return ReadPlainText(path)
	default:
		return "", fmt.Errorf("%s: %w", path, ErrFormat)
	}
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", path, ErrNotAFile)
	}
	return nil
}

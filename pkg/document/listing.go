package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions lists the document types graded when nothing else is configured.
var DefaultExtensions = []string{".docx"}

// IsDocument reports whether name carries one of the given extensions (case-insensitive).
func IsDocument(name string, extensions []string) bool {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, candidate := range extensions {
		if ext == normalizeExtension(candidate) {
			return true
		}
	}
	return false
}

// ListDocuments returns the names of document files directly inside folder,
// sorted byte-wise so every run sees the same order.
func ListDocuments(folder string, extensions []string) ([]string, error) {
	info, err := os.Stat(folder)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", folder, ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", folder, ErrNotADirectory)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !IsDocument(entry.Name(), extensions) {
			continue
		}
		// Stat follows symlinks so linked documents are discovered too.
		target, err := os.Stat(filepath.Join(folder, entry.Name()))
		if err != nil || !target.Mode().IsRegular() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return names, nil
}

// NormalizeExtensions lowercases and dot-prefixes a configured extension list.
func NormalizeExtensions(extensions []string) []string {
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		if normalized := normalizeExtension(ext); normalized != "" {
			out = append(out, normalized)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultExtensions...)
	}
	return out
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

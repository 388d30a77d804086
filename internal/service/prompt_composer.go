package service

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessor/pkg/document"
)

const (
	systemLabel          = "System: "
	submissionSeparator  = "\nStudent's Submission:\n"
	supportBlockTemplate = "\nSupport File %d (%s):\n%s\n"
)

// SupportFailure records a support document that was left out of the system content.
type SupportFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ComposedSystem is the system turn plus the support files that could not be read.
type ComposedSystem struct {
	Content        string
	Included       []string
	SkippedSupport []SupportFailure
}

// PromptComposer builds the two chat turns sent for each submission.
type PromptComposer interface {
	ComposeSystemContent(systemPrompt, supportFolder string) ComposedSystem
	ComposeUserContent(userPrompt, submissionPath string) (string, error)
}

type promptComposer struct {
	extensions []string
	logger     zerolog.Logger
}

// NewPromptComposer constructs a composer reading support documents with the given extensions.
func NewPromptComposer(extensions []string, logger zerolog.Logger) PromptComposer {
	if len(extensions) == 0 {
		extensions = document.DefaultExtensions
	}

	return &promptComposer{
		extensions: document.NormalizeExtensions(extensions),
		logger:     logger.With().Str("component", "prompt_composer").Logger(),
	}
}

// ComposeSystemContent never fails: unreadable support material is logged and skipped.
func (c *promptComposer) ComposeSystemContent(systemPrompt, supportFolder string) ComposedSystem {
	var builder strings.Builder
	builder.WriteString(systemLabel)
	builder.WriteString(systemPrompt)
	builder.WriteString("\n")

	composed := ComposedSystem{}
	if strings.TrimSpace(supportFolder) == "" {
		composed.Content = builder.String()
		return composed
	}

	names, err := document.ListDocuments(supportFolder, c.extensions)
	if err != nil {
		if !errors.Is(err, document.ErrNotFound) {
			c.logger.Warn().Err(err).Str("support_folder", supportFolder).Msg("support folder could not be listed")
		}
		composed.Content = builder.String()
		return composed
	}

	index := 0
	for _, name := range names {
		text, err := document.ReadDocumentText(filepath.Join(supportFolder, name))
		if err != nil {
			c.logger.Warn().Err(err).Str("support_file", name).Msg("skipping unreadable support file")
			composed.SkippedSupport = append(composed.SkippedSupport, SupportFailure{Name: name, Reason: err.Error()})
			continue
		}

		index++
		fmt.Fprintf(&builder, supportBlockTemplate, index, name, text)
		composed.Included = append(composed.Included, name)
	}

	composed.Content = builder.String()
	return composed
}

// ComposeUserContent reads the submission; any read failure is returned.
func (c *promptComposer) ComposeUserContent(userPrompt, submissionPath string) (string, error) {
	text, err := document.ReadDocumentText(submissionPath)
	if err != nil {
		return "", fmt.Errorf("read submission %s: %w", filepath.Base(submissionPath), err)
	}

	return userPrompt + submissionSeparator + text + "\n", nil
}

// ResolvePrompt returns text when given, otherwise the content of path, otherwise
// the content of fallbackPath. An unreadable prompt file is an error.
func ResolvePrompt(text, path, fallbackPath string) (string, error) {
	if text != "" {
		return text, nil
	}

	for _, candidate := range []string{path, fallbackPath} {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		content, err := document.ReadPlainText(candidate)
		if err != nil {
			return "", fmt.Errorf("read prompt file: %w", err)
		}
		return content, nil
	}

	return "", nil
}

package service

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessor/pkg/ai"
	"github.com/noah-isme/gema-assessor/pkg/document"
	"github.com/noah-isme/gema-assessor/pkg/document/documenttest"
)

func TestGradeSubmissionWritesFeedback(t *testing.T) {
	dir := t.TempDir()
	submission := filepath.Join(dir, "alice.docx")
	documenttest.WriteDocx(t, submission, "My essay")
	output := filepath.Join(dir, "out", "nested")

	generator := &fakeGenerator{}
	history := newFakeHistory()
	grader := newTestGrader(generator, history, fakeSettings{temperature: 0.7})

	result := grader.GradeSubmission(context.Background(), GradingRequest{
		SubmissionPath: submission,
		SystemPrompt:   "Be strict.",
		UserPrompt:     "Grade this.",
		OutputFolder:   output,
		Temperature:    floatPtr(0.2),
	})

	require.True(t, result.Success, result.Feedback)
	require.Equal(t, "Good job", result.Feedback)
	require.Equal(t, "alice.docx", result.Submission)
	require.Equal(t, filepath.Join(output, "alice_feedback.txt"), result.OutputPath)
	require.Equal(t, "gpt-4-1106-preview", result.Model)

	written, err := document.ReadPlainText(result.OutputPath)
	require.NoError(t, err)
	require.Equal(t, "Good job", written)

	calls := generator.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "System: Be strict.\n", calls[0].SystemContent)
	require.Equal(t, "Grade this.\nStudent's Submission:\nMy essay\n", calls[0].UserContent)
	require.InDelta(t, 0.2, calls[0].Temperature, 0.0001)
	require.Equal(t, ai.DefaultMaxOutputTokens, calls[0].MaxOutputTokens)

	records := history.Records()
	require.Len(t, records, 1)
	require.True(t, records[0].Success)
	require.Equal(t, ai.ProviderOpenAI, records[0].Provider)
}

func TestGradeSubmissionWithoutOutputFolderWritesNothing(t *testing.T) {
	dir := t.TempDir()
	submission := filepath.Join(dir, "alice.docx")
	documenttest.WriteDocx(t, submission, "text")

	grader := newTestGrader(&fakeGenerator{}, nil, nil)
	result := grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: submission})
	require.True(t, result.Success)
	require.Empty(t, result.OutputPath)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestGradeSubmissionMissingFileMakesNoCall(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "ghost.docx")
	output := filepath.Join(dir, "out")

	generator := &fakeGenerator{}
	grader := newTestGrader(generator, nil, nil)
	req := GradingRequest{SubmissionPath: missing, OutputFolder: output}

	first := grader.GradeSubmission(context.Background(), req)
	second := grader.GradeSubmission(context.Background(), req)

	require.False(t, first.Success)
	require.ErrorIs(t, first.Err, document.ErrNotFound)
	require.Equal(t, "Submission file not found: "+missing, first.Feedback)
	require.Equal(t, first.Feedback, second.Feedback)
	require.Empty(t, generator.Calls())
	require.NoDirExists(t, output)
}

func TestGradeSubmissionRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	generator := &fakeGenerator{}
	grader := newTestGrader(generator, nil, nil)

	result := grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: dir})
	require.False(t, result.Success)
	require.ErrorIs(t, result.Err, document.ErrNotAFile)
	require.Empty(t, generator.Calls())
}

func TestGradeSubmissionUnreadableSubmissionFails(t *testing.T) {
	dir := t.TempDir()
	submission := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(submission, []byte("plain text, not a docx"), 0o600))

	generator := &fakeGenerator{}
	grader := newTestGrader(generator, nil, nil)

	result := grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: submission})
	require.False(t, result.Success)
	require.ErrorIs(t, result.Err, document.ErrFormat)
	require.True(t, strings.HasPrefix(result.Feedback, "Failed to grade "+submission))
	require.Empty(t, generator.Calls())
}

func TestGradeSubmissionSubstitutesInvalidTemperature(t *testing.T) {
	dir := t.TempDir()
	submission := filepath.Join(dir, "alice.docx")
	documenttest.WriteDocx(t, submission, "text")

	cases := map[string]*float64{
		"nil":      nil,
		"negative": floatPtr(-0.1),
		"too high": floatPtr(1.5),
		"nan":      floatPtr(math.NaN()),
	}

	for name, temperature := range cases {
		t.Run(name, func(t *testing.T) {
			generator := &fakeGenerator{}
			grader := newTestGrader(generator, nil, fakeSettings{temperature: 0.35})

			result := grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: submission, Temperature: temperature})
			require.True(t, result.Success)
			require.InDelta(t, 0.35, result.Temperature, 0.0001)

			calls := generator.Calls()
			require.Len(t, calls, 1)
			require.InDelta(t, 0.35, calls[0].Temperature, 0.0001)
		})
	}
}

func TestGradeSubmissionKeepsBoundaryTemperatures(t *testing.T) {
	dir := t.TempDir()
	submission := filepath.Join(dir, "alice.docx")
	documenttest.WriteDocx(t, submission, "text")

	for _, value := range []float64{0, 1} {
		generator := &fakeGenerator{}
		grader := newTestGrader(generator, nil, fakeSettings{temperature: 0.5})

		result := grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: submission, Temperature: floatPtr(value)})
		require.True(t, result.Success)
		require.Equal(t, value, generator.Calls()[0].Temperature)
	}
}

func TestGradeSubmissionPassesUnknownModelThrough(t *testing.T) {
	dir := t.TempDir()
	submission := filepath.Join(dir, "alice.docx")
	documenttest.WriteDocx(t, submission, "text")

	generator := &fakeGenerator{}
	grader := newTestGrader(generator, nil, nil)

	result := grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: submission, ModelKey: "gpt-4o-mini"})
	require.True(t, result.Success)
	require.Equal(t, "gpt-4o-mini", generator.Calls()[0].Model)

	result = grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: submission, ModelKey: "gpt-3"})
	require.Equal(t, "gpt-4-32k-0613", result.Model)
}

func TestGradeSubmissionConvertsAPIErrors(t *testing.T) {
	dir := t.TempDir()
	submission := filepath.Join(dir, "bob.docx")
	documenttest.WriteDocx(t, submission, "text")
	output := filepath.Join(dir, "out")

	generator := &fakeGenerator{respond: func(ai.GenerationRequest) (string, error) {
		return "", &ai.APIError{Provider: ai.ProviderOpenAI, Model: "gpt-4", Err: context.DeadlineExceeded}
	}}
	history := newFakeHistory()
	grader := newTestGrader(generator, history, nil)

	result := grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: submission, OutputFolder: output})
	require.False(t, result.Success)
	require.Equal(t, "Failed to grade "+submission+": API Error: API call failed: context deadline exceeded", result.Feedback)

	var apiErr *ai.APIError
	require.True(t, errors.As(result.Err, &apiErr))
	require.Len(t, generator.Calls(), 1)
	require.NoFileExists(t, filepath.Join(output, "bob_feedback.txt"))

	records := history.Records()
	require.Len(t, records, 1)
	require.False(t, records[0].Success)
}

func TestGradeSubmissionRecoversFromPanics(t *testing.T) {
	dir := t.TempDir()
	submission := filepath.Join(dir, "alice.docx")
	documenttest.WriteDocx(t, submission, "text")

	generator := &fakeGenerator{respond: func(ai.GenerationRequest) (string, error) {
		panic("provider exploded")
	}}
	grader := newTestGrader(generator, nil, nil)

	result := grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: submission})
	require.False(t, result.Success)
	require.Contains(t, result.Feedback, "provider exploded")
}

func TestGradeSubmissionReportsUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	submission := filepath.Join(dir, "alice.docx")
	documenttest.WriteDocx(t, submission, "text")

	blocker := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(blocker, []byte("file in the way"), 0o600))

	generator := &fakeGenerator{}
	grader := newTestGrader(generator, nil, nil)

	result := grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: submission, OutputFolder: blocker})
	require.False(t, result.Success)
	require.ErrorIs(t, result.Err, document.ErrWrite)
	require.Empty(t, generator.Calls())
}

func TestGradeSubmissionRecordsBatchID(t *testing.T) {
	dir := t.TempDir()
	submission := filepath.Join(dir, "alice.docx")
	documenttest.WriteDocx(t, submission, "text")

	history := newFakeHistory()
	grader := newTestGrader(&fakeGenerator{}, history, nil)

	grader.GradeSubmission(context.Background(), GradingRequest{SubmissionPath: submission, BatchID: "batch-7"})

	records := history.Records()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].BatchID)
	require.Equal(t, "batch-7", *records[0].BatchID)
}

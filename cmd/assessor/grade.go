package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-assessor/internal/bootstrap"
	"github.com/noah-isme/gema-assessor/internal/service"
	"github.com/noah-isme/gema-assessor/pkg/document"
)

var errGradingFailed = errors.New("one or more submissions failed")

type gradeOptions struct {
	file        string
	dir         string
	system      string
	user        string
	support     string
	output      string
	model       string
	temperature float64
	workers     int
	report      string
	format      string
	profile     string
}

func newGradeCommand(c *cli) *cobra.Command {
	opts := &gradeOptions{}
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a single submission or every submission in a folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGrade(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.file, "file", "", "path to a single submission file")
	flags.StringVar(&opts.dir, "dir", "", "path to a folder of submissions")
	flags.StringVar(&opts.system, "system", "", "system prompt file (defaults to Paths.SystemPromptPath)")
	flags.StringVar(&opts.user, "user", "", "user prompt file (defaults to Paths.UserPromptPath)")
	flags.StringVar(&opts.support, "support", "", "folder of support documents")
	flags.StringVar(&opts.output, "output", "", "folder for feedback files")
	flags.StringVar(&opts.model, "model", "", "model key, e.g. GPT-4")
	flags.Float64Var(&opts.temperature, "temp", 0, "sampling temperature between 0 and 1")
	flags.IntVar(&opts.workers, "workers", 0, "concurrent submissions when grading a folder")
	flags.StringVar(&opts.report, "report", "", "write a batch report to this file")
	flags.StringVar(&opts.format, "format", "", "report format: json, csv or txt")
	flags.StringVar(&opts.profile, "profile", "", "grading profile JSON file")
	cmd.MarkFlagsMutuallyExclusive("file", "dir")
	cmd.MarkFlagsOneRequired("file", "dir")

	return cmd
}

// gradeParameters are the grading inputs after flags, profile and configuration are merged.
type gradeParameters struct {
	systemPrompt string
	userPrompt   string
	support      string
	output       string
	modelKey     string
	temperature  *float64
	workers      int
	reportFormat string
}

func (c *cli) runGrade(cmd *cobra.Command, opts *gradeOptions) error {
	params, err := c.resolveGradeParameters(cmd, opts)
	if err != nil {
		return c.fail(err, "invalid grading parameters")
	}

	generator, err := c.newGenerator(c.cfg, c.logger)
	if err != nil {
		return c.fail(err, "failed to create ai client")
	}
	stack := bootstrap.NewGradingStack(c.cfg, generator, nil, c.logger)

	modelKey := params.modelKey
	if modelKey == "" {
		modelKey = c.cfg.DefaultModel
	}
	temperatureLabel := "configured default"
	if params.temperature != nil {
		temperatureLabel = fmt.Sprintf("%.2f", *params.temperature)
	}

	if opts.file != "" {
		fmt.Fprintf(c.stdout, "Grading submission: %s\n", filepath.Base(opts.file))
		fmt.Fprintf(c.stdout, "Using model: %s, temperature: %s\n", c.cfg.Models.Resolve(modelKey), temperatureLabel)

		result := stack.Grading.GradeSubmission(cmd.Context(), service.GradingRequest{
			SubmissionPath: opts.file,
			SystemPrompt:   params.systemPrompt,
			UserPrompt:     params.userPrompt,
			SupportFolder:  params.support,
			OutputFolder:   params.output,
			ModelKey:       params.modelKey,
			Temperature:    params.temperature,
		})
		printSkippedSupport(c, result)
		if !result.Success {
			fmt.Fprintf(c.stdout, "✗ Grading failed: %s\n", result.Feedback)
			return errGradingFailed
		}

		fmt.Fprintln(c.stdout, "✓ Grading successful")
		if result.OutputPath != "" {
			fmt.Fprintf(c.stdout, "  Feedback saved to: %s\n", result.OutputPath)
		}
		return nil
	}

	submissions, err := stack.Batch.Discover(opts.dir)
	if err != nil {
		return c.fail(err, "cannot read submissions folder")
	}
	if len(submissions) == 0 {
		fmt.Fprintf(c.stdout, "No submission files (%s) found in %s\n", strings.Join(c.cfg.DocumentExtensions, ", "), opts.dir)
		return errGradingFailed
	}

	fmt.Fprintf(c.stdout, "Found %d submission files\n", len(submissions))
	fmt.Fprintf(c.stdout, "Using model: %s, temperature: %s\n", c.cfg.Models.Resolve(modelKey), temperatureLabel)

	report, err := stack.Batch.GradeAllSubmissions(cmd.Context(), service.BatchRequest{
		SubmissionsFolder: opts.dir,
		SystemPrompt:      params.systemPrompt,
		UserPrompt:        params.userPrompt,
		SupportFolder:     params.support,
		OutputFolder:      params.output,
		ModelKey:          params.modelKey,
		Temperature:       params.temperature,
		MaxWorkers:        params.workers,
		Progress: func(progress service.BatchProgress) {
			status := "ok"
			if !progress.Success {
				status = "failed"
			}
			fmt.Fprintf(c.stdout, "[%d/%d] %s %s\n", progress.Processed, progress.Total, progress.Submission, status)
		},
	})
	if err != nil {
		return c.fail(err, "batch grading aborted")
	}

	for _, result := range report.Entries() {
		if !result.Success {
			fmt.Fprintf(c.stdout, "✗ Failed to grade %s: %s\n", result.Submission, result.Feedback)
		}
	}
	fmt.Fprintf(c.stdout, "Grading completed: %d succeeded, %d failed\n", report.SuccessCount, report.FailCount)

	if opts.report != "" {
		if err := service.ExportReport(report, params.reportFormat, opts.report); err != nil {
			return c.fail(err, "failed to write report")
		}
		fmt.Fprintf(c.stdout, "Report written to: %s\n", opts.report)
	}

	if report.FailCount > 0 {
		return errGradingFailed
	}
	return nil
}

// resolveGradeParameters applies flag > profile > configuration precedence and
// rejects out-of-range temperatures before any submission is touched.
func (c *cli) resolveGradeParameters(cmd *cobra.Command, opts *gradeOptions) (gradeParameters, error) {
	var profile service.GradingProfile
	if opts.profile != "" {
		loaded, err := service.LoadGradingProfile(opts.profile)
		if err != nil {
			return gradeParameters{}, err
		}
		profile = loaded
	}

	params := gradeParameters{
		support:      firstNonEmpty(opts.support, profile.SupportFolder, c.cfg.SupportFolder),
		output:       firstNonEmpty(opts.output, profile.OutputFolder, c.cfg.OutputFolder),
		modelKey:     firstNonEmpty(opts.model, profile.Model),
		workers:      c.cfg.MaxWorkers,
		reportFormat: firstNonEmpty(opts.format, profile.ReportFormat, service.ReportFormatJSON),
		temperature:  profile.Temperature,
	}

	if cmd.Flags().Changed("temp") {
		if !(opts.temperature >= 0 && opts.temperature <= 1) {
			return gradeParameters{}, fmt.Errorf("%w: temperature must be between 0 and 1, got %v", service.ErrValidation, opts.temperature)
		}
		temperature := opts.temperature
		params.temperature = &temperature
	}

	switch {
	case cmd.Flags().Changed("workers"):
		if opts.workers < 1 {
			return gradeParameters{}, fmt.Errorf("%w: workers must be at least 1", service.ErrValidation)
		}
		params.workers = opts.workers
	case profile.MaxWorkers > 0:
		params.workers = profile.MaxWorkers
	}

	systemPath := firstNonEmpty(opts.system, profile.SystemPromptPath, c.cfg.SystemPromptPath)
	if systemPath == "" {
		return gradeParameters{}, fmt.Errorf("%w: system prompt file not set, use --system or Paths.SystemPromptPath", service.ErrValidation)
	}
	userPath := firstNonEmpty(opts.user, profile.UserPromptPath, c.cfg.UserPromptPath)
	if userPath == "" {
		return gradeParameters{}, fmt.Errorf("%w: user prompt file not set, use --user or Paths.UserPromptPath", service.ErrValidation)
	}

	var err error
	if params.systemPrompt, err = document.ReadPlainText(systemPath); err != nil {
		return gradeParameters{}, fmt.Errorf("system prompt: %w", err)
	}
	if params.userPrompt, err = document.ReadPlainText(userPath); err != nil {
		return gradeParameters{}, fmt.Errorf("user prompt: %w", err)
	}

	return params, nil
}

func printSkippedSupport(c *cli, result service.GradingResult) {
	for _, skipped := range result.SkippedSupport {
		fmt.Fprintf(c.stdout, "  Skipped support file %s: %s\n", skipped.Name, skipped.Reason)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

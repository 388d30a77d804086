package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/gema-assessor/pkg/document"
)

// Report formats accepted by ExportReport.
const (
	ReportFormatJSON = "json"
	ReportFormatCSV  = "csv"
	ReportFormatText = "txt"
)

var reportCSVHeader = []string{"submission", "success", "feedback", "output_path", "model", "temperature", "duration_ms"}

type reportEntry struct {
	Submission  string  `json:"submission"`
	Success     bool    `json:"success"`
	Feedback    string  `json:"feedback"`
	OutputPath  string  `json:"output_path,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature"`
	DurationMS  int64   `json:"duration_ms"`
}

type reportDocument struct {
	SuccessCount int           `json:"success_count"`
	FailCount    int           `json:"fail_count"`
	Results      []reportEntry `json:"results"`
}

// ExportReport renders the report in format and writes it to path.
func ExportReport(report BatchReport, format, path string) error {
	payload, err := RenderReport(report, format)
	if err != nil {
		return err
	}
	return document.WriteText(path, string(payload))
}

// RenderReport renders the report as json, csv or txt.
func RenderReport(report BatchReport, format string) ([]byte, error) {
	entries := make([]reportEntry, 0, len(report.Order))
	for _, name := range report.Order {
		result, ok := report.Results[name]
		if !ok {
			continue
		}
		entries = append(entries, reportEntry{
			Submission:  name,
			Success:     result.Success,
			Feedback:    result.Feedback,
			OutputPath:  result.OutputPath,
			Model:       result.Model,
			Temperature: result.Temperature,
			DurationMS:  result.Duration.Milliseconds(),
		})
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case ReportFormatJSON, "":
		return json.MarshalIndent(reportDocument{
			SuccessCount: report.SuccessCount,
			FailCount:    report.FailCount,
			Results:      entries,
		}, "", "  ")
	case ReportFormatCSV:
		return renderCSV(entries)
	case ReportFormatText, "text":
		return renderText(report, entries), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func renderCSV(entries []reportEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(reportCSVHeader); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		row := []string{
			entry.Submission,
			strconv.FormatBool(entry.Success),
			entry.Feedback,
			entry.OutputPath,
			entry.Model,
			strconv.FormatFloat(entry.Temperature, 'f', -1, 64),
			strconv.FormatInt(entry.DurationMS, 10),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderText(report BatchReport, entries []reportEntry) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Graded: %d succeeded, %d failed\n", report.SuccessCount, report.FailCount)
	for _, entry := range entries {
		status := "OK"
		if !entry.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&buf, "\n=== %s ===\nStatus: %s\n", entry.Submission, status)
		if entry.Model != "" {
			fmt.Fprintf(&buf, "Model: %s\n", entry.Model)
		}
		fmt.Fprintf(&buf, "\n%s\n", entry.Feedback)
	}
	return buf.Bytes()
}

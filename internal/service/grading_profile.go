package service

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/gema-assessor/pkg/document"
)

const profileSchemaURL = "https://gema-assessor.local/schemas/grading_profile.schema.json"

//go:embed schemas/grading_profile.schema.json
var profileSchemaSource []byte

// ErrProfileExists is returned when initialising a profile would overwrite a file.
var ErrProfileExists = errors.New("grading profile already exists")

var (
	profileSchemaOnce sync.Once
	profileSchema     *jsonschema.Schema
	profileSchemaErr  error
)

// GradingProfile is a reusable set of batch grading parameters.
type GradingProfile struct {
	SystemPromptPath string   `json:"system_prompt_path"`
	UserPromptPath   string   `json:"user_prompt_path"`
	SupportFolder    string   `json:"support_folder,omitempty"`
	OutputFolder     string   `json:"output_folder,omitempty"`
	Model            string   `json:"model,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxWorkers       int      `json:"max_workers,omitempty"`
	ReportFormat     string   `json:"report_format,omitempty"`
}

// DefaultGradingProfile returns the profile written by WriteDefaultProfile.
func DefaultGradingProfile() GradingProfile {
	temperature := DefaultTemperature
	return GradingProfile{
		SystemPromptPath: "prompts/system_prompt.txt",
		UserPromptPath:   "prompts/user_prompt.txt",
		SupportFolder:    "support",
		OutputFolder:     "feedback",
		Model:            "GPT-4",
		Temperature:      &temperature,
		MaxWorkers:       3,
		ReportFormat:     ReportFormatJSON,
	}
}

func compiledProfileSchema() (*jsonschema.Schema, error) {
	profileSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(profileSchemaURL, bytes.NewReader(profileSchemaSource)); err != nil {
			profileSchemaErr = fmt.Errorf("load profile schema: %w", err)
			return
		}
		profileSchema, profileSchemaErr = compiler.Compile(profileSchemaURL)
	})
	return profileSchema, profileSchemaErr
}

// ParseGradingProfile validates raw JSON against the profile schema and decodes it.
func ParseGradingProfile(raw []byte) (GradingProfile, error) {
	schema, err := compiledProfileSchema()
	if err != nil {
		return GradingProfile{}, err
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return GradingProfile{}, fmt.Errorf("%w: profile is not valid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(generic); err != nil {
		return GradingProfile{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var profile GradingProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return GradingProfile{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return profile, nil
}

// LoadGradingProfile reads a profile file. Relative paths inside it are resolved
// against the profile's directory.
func LoadGradingProfile(path string) (GradingProfile, error) {
	raw, err := document.ReadPlainText(path)
	if err != nil {
		return GradingProfile{}, err
	}

	profile, err := ParseGradingProfile([]byte(raw))
	if err != nil {
		return GradingProfile{}, fmt.Errorf("profile %s: %w", path, err)
	}

	base := filepath.Dir(path)
	profile.SystemPromptPath = resolveAgainst(base, profile.SystemPromptPath)
	profile.UserPromptPath = resolveAgainst(base, profile.UserPromptPath)
	profile.SupportFolder = resolveAgainst(base, profile.SupportFolder)
	profile.OutputFolder = resolveAgainst(base, profile.OutputFolder)
	return profile, nil
}

// WriteDefaultProfile writes DefaultGradingProfile to path unless a file is already there.
func WriteDefaultProfile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrProfileExists, path)
	}

	payload, err := json.MarshalIndent(DefaultGradingProfile(), "", "  ")
	if err != nil {
		return err
	}
	return document.WriteText(path, string(payload)+"\n")
}

func resolveAgainst(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

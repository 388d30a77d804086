package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeINI(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	t.Setenv("ASSESSOR_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.ini"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ASSESSOR_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "openai", cfg.AIProvider)
	require.Equal(t, "GPT-4", cfg.DefaultModel)
	require.InDelta(t, 0.7, cfg.DefaultTemperature, 0.0001)
	require.Equal(t, 3500, cfg.MaxOutputTokens)
	require.Equal(t, 1, cfg.MaxWorkers)
	require.Equal(t, []string{".docx"}, cfg.DocumentExtensions)
	require.Equal(t, 24*time.Hour, cfg.BatchJobTTL)
	require.Equal(t, "gpt-4-1106-preview", cfg.Models.Resolve("GPT-4"))
	require.Equal(t, "gpt-4-32k-0613", cfg.Models.Resolve("gpt-3"))
	require.Equal(t, ":8080", cfg.HTTPAddress())
}

func TestLoadReadsINISections(t *testing.T) {
	path := writeINI(t, `[API]
Key = sk-from-file
Temperature = 0.2
DefaultModel = Fast

[Paths]
SystemPromptPath = prompts/system.txt
SupportFolder = support

[Models]
Fast = gpt-4o-mini

[Grading]
MaxWorkers = 3
Extensions = .docx, .html
`)
	t.Setenv("ASSESSOR_CONFIG_FILE", path)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ASSESSOR_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "sk-from-file", cfg.APIKey)
	require.InDelta(t, 0.2, cfg.DefaultTemperature, 0.0001)
	require.Equal(t, "Fast", cfg.DefaultModel)
	require.Equal(t, "gpt-4o-mini", cfg.Models.Resolve(cfg.DefaultModel))
	require.Equal(t, "gpt-4-1106-preview", cfg.Models.Resolve("GPT-4"))
	require.Equal(t, "prompts/system.txt", cfg.SystemPromptPath)
	require.Equal(t, "support", cfg.SupportFolder)
	require.Equal(t, 3, cfg.MaxWorkers)
	require.Equal(t, []string{".docx", ".html"}, cfg.DocumentExtensions)

	settings := cfg.Settings()
	require.Equal(t, "prompts/system.txt", settings.GetString("Paths", "SystemPromptPath", ""))
	require.Equal(t, "fallback", settings.GetString("Paths", "OutputFolder", "fallback"))
	require.Equal(t, 3, settings.GetInt("grading", "maxworkers", 1))
	require.Equal(t, "****file", settings.Display("api.key"))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeINI(t, "[API]\nTemperature = 0.2\n")
	t.Setenv("ASSESSOR_CONFIG_FILE", path)
	t.Setenv("ASSESSOR_API_TEMPERATURE", "0.9")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load()
	require.NoError(t, err)
	require.InDelta(t, 0.9, cfg.DefaultTemperature, 0.0001)
	require.Equal(t, "sk-env", cfg.APIKey)
}

func TestLoadRejectsInvalidDurations(t *testing.T) {
	t.Setenv("ASSESSOR_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.ini"))
	t.Setenv("ASSESSOR_API_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestSettingsFallbacks(t *testing.T) {
	path := writeINI(t, "[API]\nTemperature = warm\n")
	t.Setenv("ASSESSOR_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.InDelta(t, 0.7, cfg.DefaultTemperature, 0.0001)
	require.InDelta(t, 0.5, cfg.Settings().GetFloat("API", "Missing", 0.5), 0.0001)

	_, ok := cfg.Settings().Lookup("api.missing")
	require.False(t, ok)
}

func TestModelTableResolve(t *testing.T) {
	table := NewModelTable(map[string]string{"GPT-4": "gpt-4-1106-preview", " ": "ignored"})
	require.Equal(t, "gpt-4-1106-preview", table.Resolve(" gpt-4 "))
	require.Equal(t, "claude-3-opus", table.Resolve("claude-3-opus"))
	require.Len(t, table.Keys(), 1)
}

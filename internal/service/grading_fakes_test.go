package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessor/internal/config"
	"github.com/noah-isme/gema-assessor/internal/models"
	"github.com/noah-isme/gema-assessor/internal/repository"
	"github.com/noah-isme/gema-assessor/pkg/ai"
	"github.com/noah-isme/gema-assessor/pkg/document/documenttest"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []ai.GenerationRequest
	respond func(req ai.GenerationRequest) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req ai.GenerationRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return "Good job", nil
	}
	return respond(req)
}

func (f *fakeGenerator) Calls() []ai.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.GenerationRequest(nil), f.calls...)
}

type fakeSettings struct {
	temperature float64
}

func (f fakeSettings) GetFloat(section, key string, def float64) float64 {
	if section == "API" && key == "Temperature" {
		return f.temperature
	}
	return def
}

type fakeHistory struct {
	mu      sync.Mutex
	records []models.GradingRecord
	runs    map[string]models.BatchRun
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{runs: make(map[string]models.BatchRun)}
}

func (f *fakeHistory) Create(ctx context.Context, record *models.GradingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeHistory) List(ctx context.Context, filter repository.GradingRecordFilter) ([]models.GradingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GradingRecord(nil), f.records...), nil
}

func (f *fakeHistory) CreateBatchRun(ctx context.Context, run *models.BatchRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeHistory) UpdateBatchRun(ctx context.Context, run *models.BatchRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeHistory) GetBatchRun(ctx context.Context, id string) (models.BatchRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return models.BatchRun{}, ErrBatchJobNotFound
	}
	return run, nil
}

func (f *fakeHistory) Records() []models.GradingRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GradingRecord(nil), f.records...)
}

func (f *fakeHistory) Run(id string) (models.BatchRun, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	return run, ok
}

func newTestGrader(generator ai.Generator, history repository.GradingRecordRepository, settings SettingsReader) GradingService {
	return NewGradingService(
		NewPromptComposer(nil, testLogger()),
		generator,
		history,
		settings,
		GradingConfig{
			Provider:        ai.ProviderOpenAI,
			DefaultModelKey: "GPT-4",
			Models:          config.NewModelTable(config.DefaultModels()),
		},
		testLogger(),
	)
}

func writeSubmissions(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		documenttest.WriteDocx(t, filepath.Join(dir, name), "Essay by "+name)
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessor/internal/models"
)

func setupGradingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.GradingRecord{}, &models.BatchRun{}))
	return db
}

func TestGradingRecordRepositoryListFilters(t *testing.T) {
	db := setupGradingTestDB(t)
	repo := NewGradingRecordRepository(db)
	ctx := context.Background()

	batchID := "b-1"
	base := time.Now().Add(-time.Hour)
	records := []models.GradingRecord{
		{Submission: "alice.docx", Success: true, Feedback: "A", BatchID: &batchID, CreatedAt: base},
		{Submission: "bob.docx", Success: false, Feedback: "API call failed", BatchID: &batchID, CreatedAt: base.Add(time.Minute)},
		{Submission: "alice.docx", Success: true, Feedback: "A+", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range records {
		require.NoError(t, repo.Create(ctx, &records[i]))
	}

	all, err := repo.List(ctx, GradingRecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "A+", all[0].Feedback, "newest record should come first")

	alice, err := repo.List(ctx, GradingRecordFilter{Submission: "alice.docx"})
	require.NoError(t, err)
	require.Len(t, alice, 2)

	inBatch, err := repo.List(ctx, GradingRecordFilter{BatchID: batchID})
	require.NoError(t, err)
	require.Len(t, inBatch, 2)

	failed := false
	failures, err := repo.List(ctx, GradingRecordFilter{Success: &failed})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, "bob.docx", failures[0].Submission)

	limited, err := repo.List(ctx, GradingRecordFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestGradingRecordRepositoryBatchRunLifecycle(t *testing.T) {
	db := setupGradingTestDB(t)
	repo := NewGradingRecordRepository(db)
	ctx := context.Background()

	run := models.BatchRun{
		ID:                "run-1",
		SubmissionsFolder: "/tmp/subs",
		Status:            models.BatchStatusRunning,
		Parameters:        datatypes.JSONMap{"model": "GPT-4"},
		StartedAt:         time.Now(),
	}
	require.NoError(t, repo.CreateBatchRun(ctx, &run))

	finished := time.Now()
	run.Status = models.BatchStatusCompleted
	run.Total = 2
	run.SuccessCount = 1
	run.FailCount = 1
	run.FinishedAt = &finished
	require.NoError(t, repo.UpdateBatchRun(ctx, &run))

	stored, err := repo.GetBatchRun(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, stored.IsFinished())
	require.Equal(t, 2, stored.Total)
	require.Equal(t, "GPT-4", stored.Parameters["model"])

	_, err = repo.GetBatchRun(ctx, "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

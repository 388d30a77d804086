package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessor/internal/models"
	"github.com/noah-isme/gema-assessor/internal/repository"
	"github.com/noah-isme/gema-assessor/pkg/ai"
	"github.com/noah-isme/gema-assessor/pkg/document"
)

func newTestJobService(t *testing.T, generator ai.Generator, history *fakeHistory, cfg BatchJobConfig) BatchJobService {
	t.Helper()
	var repo repository.GradingRecordRepository
	if history != nil {
		repo = history
	}
	batch := NewBatchGradingService(newTestGrader(generator, repo, nil), BatchGradingConfig{}, testLogger())
	svc := NewBatchJobService(batch, repo, cfg, testLogger())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func waitForJob(t *testing.T, svc BatchJobService, id string) BatchJob {
	t.Helper()
	var job BatchJob
	require.Eventually(t, func() bool {
		var err error
		job, err = svc.Get(context.Background(), id)
		return err == nil && job.Finished()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestBatchJobServiceRunsWithRedisState(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dir := t.TempDir()
	writeSubmissions(t, dir, "alice.docx", "bob.docx")

	history := newFakeHistory()
	svc := newTestJobService(t, &fakeGenerator{respond: failFor("bob.docx")}, history, BatchJobConfig{
		Redis:       client,
		ChannelBase: "assessor-test",
		TTL:         time.Hour,
	})

	job, err := svc.Start(context.Background(), BatchRequest{SubmissionsFolder: dir, ModelKey: "GPT-4"})
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusQueued, job.Status)
	require.Equal(t, 2, job.Total)

	done := waitForJob(t, svc, job.ID)
	require.Equal(t, models.BatchStatusCompleted, done.Status)
	require.Equal(t, 1, done.SuccessCount)
	require.Equal(t, 1, done.FailCount)
	require.Equal(t, 2, done.Processed)
	require.NotNil(t, done.Report)
	require.Equal(t, "Good job", done.Report.Results["alice.docx"].Feedback)

	require.True(t, mr.Exists("assessor-test:batches:"+job.ID))
	require.Greater(t, mr.TTL("assessor-test:batches:"+job.ID), time.Duration(0))

	require.Eventually(t, func() bool {
		run, ok := history.Run(job.ID)
		return ok && run.IsFinished()
	}, 5*time.Second, 10*time.Millisecond)
	run, _ := history.Run(job.ID)
	require.Equal(t, 1, run.FailCount)
	require.Equal(t, "GPT-4", run.Parameters["model"])

	for _, record := range history.Records() {
		require.NotNil(t, record.BatchID)
		require.Equal(t, job.ID, *record.BatchID)
	}
}

func TestBatchJobServiceStreamsProgress(t *testing.T) {
	dir := t.TempDir()
	writeSubmissions(t, dir, "a.docx", "b.docx")

	release := make(chan struct{})
	generator := &fakeGenerator{respond: func(ai.GenerationRequest) (string, error) {
		<-release
		return "ok", nil
	}}
	svc := newTestJobService(t, generator, nil, BatchJobConfig{})

	job, err := svc.Start(context.Background(), BatchRequest{SubmissionsFolder: dir})
	require.NoError(t, err)

	updates, unsubscribe := svc.Subscribe(job.ID)
	defer unsubscribe()
	close(release)

	var received []BatchProgress
	for progress := range updates {
		received = append(received, progress)
	}

	require.Len(t, received, 2)
	require.Equal(t, 2, received[1].Processed)
	require.Equal(t, job.ID, received[0].BatchID)

	done := waitForJob(t, svc, job.ID)
	require.Equal(t, 2, done.SuccessCount)
}

func TestBatchJobServiceRejectsBadFolderUpFront(t *testing.T) {
	svc := newTestJobService(t, &fakeGenerator{}, nil, BatchJobConfig{})

	_, err := svc.Start(context.Background(), BatchRequest{SubmissionsFolder: filepath.Join(t.TempDir(), "missing")})
	require.ErrorIs(t, err, document.ErrNotFound)
}

func TestBatchJobServiceUnknownJob(t *testing.T) {
	svc := newTestJobService(t, &fakeGenerator{}, nil, BatchJobConfig{})

	_, err := svc.Get(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrBatchJobNotFound)

	_, err = svc.Get(context.Background(), "1f0c7a52-8f56-4a53-9a3c-9a1f8b7c2d11")
	require.ErrorIs(t, err, ErrBatchJobNotFound)
}

func TestBatchJobServiceShutdownCancelsPendingSubmissions(t *testing.T) {
	dir := t.TempDir()
	writeSubmissions(t, dir, "a.docx", "b.docx", "c.docx")

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	generator := &fakeGenerator{respond: func(ai.GenerationRequest) (string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return "ok", nil
	}}
	svc := newTestJobService(t, generator, nil, BatchJobConfig{})

	job, err := svc.Start(context.Background(), BatchRequest{SubmissionsFolder: dir, MaxWorkers: 1})
	require.NoError(t, err)
	<-started

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- svc.Shutdown(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, <-shutdownErr)

	done, err := svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.BatchStatusCompleted, done.Status)
	require.Equal(t, 1, done.SuccessCount)
	require.Equal(t, 2, done.FailCount)
	require.Equal(t, ErrCancelled.Error(), done.Report.Results["c.docx"].Feedback)
}

package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-assessor/internal/models"
	"github.com/noah-isme/gema-assessor/internal/observability"
	"github.com/noah-isme/gema-assessor/internal/repository"
)

const batchProgressBufferSize = 32

// BatchJob is the externally visible state of an asynchronous batch run.
type BatchJob struct {
	ID                string       `json:"id"`
	Status            string       `json:"status"`
	SubmissionsFolder string       `json:"submissions_folder"`
	Total             int          `json:"total"`
	Processed         int          `json:"processed"`
	SuccessCount      int          `json:"success_count"`
	FailCount         int          `json:"fail_count"`
	Error             string       `json:"error,omitempty"`
	Report            *BatchReport `json:"report,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	FinishedAt        *time.Time   `json:"finished_at,omitempty"`
}

// Finished reports whether the job reached a terminal status.
func (j BatchJob) Finished() bool {
	return j.Status == models.BatchStatusCompleted || j.Status == models.BatchStatusFailed
}

// BatchJobService runs batch gradings in the background and tracks their progress.
type BatchJobService interface {
	Start(ctx context.Context, req BatchRequest) (BatchJob, error)
	Get(ctx context.Context, id string) (BatchJob, error)
	Subscribe(id string) (<-chan BatchProgress, func())
	Shutdown(ctx context.Context) error
}

// BatchJobConfig wires the optional backends of the job service.
type BatchJobConfig struct {
	Redis       *redis.Client
	NATS        *nats.Conn
	ChannelBase string
	TTL         time.Duration
}

type batchCompletedEvent struct {
	BatchID      string    `json:"batch_id"`
	Status       string    `json:"status"`
	Folder       string    `json:"submissions_folder"`
	Total        int       `json:"total"`
	SuccessCount int       `json:"success_count"`
	FailCount    int       `json:"fail_count"`
	Error        string    `json:"error,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

type batchJobService struct {
	batch       BatchGradingService
	history     repository.GradingRecordRepository
	store       batchJobStore
	nats        *nats.Conn
	natsSubject string
	broker      *batchProgressBroker
	logger      zerolog.Logger

	rootCtx context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

type batchProgressBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan BatchProgress]struct{}
}

// NewBatchJobService constructs the job runner. history may be nil.
func NewBatchJobService(batch BatchGradingService, history repository.GradingRecordRepository, cfg BatchJobConfig, logger zerolog.Logger) BatchJobService {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	base := strings.TrimSpace(cfg.ChannelBase)
	if base == "" {
		base = "assessor"
	}

	var store batchJobStore = newMemoryBatchJobStore(cfg.TTL)
	if cfg.Redis != nil {
		store = &redisBatchJobStore{client: cfg.Redis, prefix: base, ttl: cfg.TTL}
	}

	rootCtx, cancel := context.WithCancel(context.Background())

	return &batchJobService{
		batch:       batch,
		history:     history,
		store:       store,
		nats:        cfg.NATS,
		natsSubject: strings.ReplaceAll(base, ":", ".") + ".batches.completed",
		broker: &batchProgressBroker{
			subscribers: make(map[string]map[chan BatchProgress]struct{}),
		},
		logger:  logger.With().Str("component", "batch_job_service").Logger(),
		rootCtx: rootCtx,
		cancel:  cancel,
	}
}

// Start validates the submissions folder and runs the batch detached from ctx.
func (s *batchJobService) Start(ctx context.Context, req BatchRequest) (BatchJob, error) {
	names, err := s.batch.Discover(req.SubmissionsFolder)
	if err != nil {
		return BatchJob{}, err
	}

	now := time.Now().UTC()
	job := BatchJob{
		ID:                uuid.NewString(),
		Status:            models.BatchStatusQueued,
		SubmissionsFolder: req.SubmissionsFolder,
		Total:             len(names),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.save(ctx, job); err != nil {
		return BatchJob{}, err
	}

	if s.history != nil {
		run := models.BatchRun{
			ID:                job.ID,
			SubmissionsFolder: req.SubmissionsFolder,
			Status:            job.Status,
			Total:             job.Total,
			Parameters:        batchParameters(req),
			StartedAt:         now,
		}
		if err := s.history.CreateBatchRun(ctx, &run); err != nil {
			s.logger.Warn().Err(err).Str("batch_id", job.ID).Msg("failed to record batch run")
		}
	}

	s.running.Add(1)
	go s.run(job, req)

	return job, nil
}

func (s *batchJobService) Get(ctx context.Context, id string) (BatchJob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return BatchJob{}, ErrBatchJobNotFound
	}
	return s.store.load(ctx, id)
}

func (s *batchJobService) Subscribe(id string) (<-chan BatchProgress, func()) {
	ch := make(chan BatchProgress, batchProgressBufferSize)
	s.broker.subscribe(id, ch)

	var once sync.Once
	return ch, func() {
		once.Do(func() { s.broker.unsubscribe(id, ch) })
	}
}

// Shutdown cancels unfinished batches and waits for their goroutines.
func (s *batchJobService) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *batchJobService) run(job BatchJob, req BatchRequest) {
	defer s.running.Done()
	defer s.broker.closeAll(job.ID)

	ctx := s.rootCtx
	logger := s.logger.With().Str("batch_id", job.ID).Logger()

	job.Status = models.BatchStatusRunning
	job.UpdatedAt = time.Now().UTC()
	s.persist(ctx, job)

	req.BatchID = job.ID
	req.Progress = func(progress BatchProgress) {
		job.Processed = progress.Processed
		job.Total = progress.Total
		if progress.Success {
			job.SuccessCount++
		} else {
			job.FailCount++
		}
		job.UpdatedAt = time.Now().UTC()
		s.persist(ctx, job)
		s.broker.broadcast(job.ID, progress)
	}

	report, err := s.batch.GradeAllSubmissions(ctx, req)

	finished := time.Now().UTC()
	job.UpdatedAt = finished
	job.FinishedAt = &finished
	if err != nil {
		job.Status = models.BatchStatusFailed
		job.Error = err.Error()
		observability.BatchRuns().WithLabelValues(models.BatchStatusFailed).Inc()
		logger.Error().Err(err).Msg("batch run failed")
	} else {
		job.Status = models.BatchStatusCompleted
		job.Total = len(report.Results)
		job.Processed = len(report.Results)
		job.SuccessCount = report.SuccessCount
		job.FailCount = report.FailCount
		job.Report = &report
	}

	// Terminal state must land even when the service is shutting down.
	finalCtx := context.WithoutCancel(ctx)
	s.persist(finalCtx, job)
	s.recordRun(finalCtx, job)
	s.publishCompleted(job)
}

func (s *batchJobService) persist(ctx context.Context, job BatchJob) {
	if err := s.store.save(ctx, job); err != nil {
		s.logger.Warn().Err(err).Str("batch_id", job.ID).Str("status", job.Status).Msg("failed to persist batch job state")
	}
}

func (s *batchJobService) recordRun(ctx context.Context, job BatchJob) {
	if s.history == nil {
		return
	}

	run, err := s.history.GetBatchRun(ctx, job.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("batch_id", job.ID).Msg("batch run record missing")
		return
	}

	run.Status = job.Status
	run.Total = job.Total
	run.SuccessCount = job.SuccessCount
	run.FailCount = job.FailCount
	run.Error = job.Error
	run.FinishedAt = job.FinishedAt
	if err := s.history.UpdateBatchRun(ctx, &run); err != nil {
		s.logger.Warn().Err(err).Str("batch_id", job.ID).Msg("failed to update batch run record")
	}
}

func (s *batchJobService) publishCompleted(job BatchJob) {
	if s.nats == nil {
		return
	}

	event := batchCompletedEvent{
		BatchID:      job.ID,
		Status:       job.Status,
		Folder:       job.SubmissionsFolder,
		Total:        job.Total,
		SuccessCount: job.SuccessCount,
		FailCount:    job.FailCount,
		Error:        job.Error,
	}
	if job.FinishedAt != nil {
		event.FinishedAt = *job.FinishedAt
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode batch completion event")
		return
	}

	if err := s.nats.Publish(s.natsSubject, payload); err != nil {
		s.logger.Warn().Err(err).Str("subject", s.natsSubject).Msg("failed to publish batch completion event")
	}
}

func batchParameters(req BatchRequest) datatypes.JSONMap {
	params := datatypes.JSONMap{
		"model":          req.ModelKey,
		"support_folder": req.SupportFolder,
		"output_folder":  req.OutputFolder,
		"max_workers":    req.MaxWorkers,
	}
	if req.Temperature != nil {
		params["temperature"] = *req.Temperature
	}
	return params
}

func (b *batchProgressBroker) subscribe(id string, ch chan BatchProgress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		b.subscribers[id] = make(map[chan BatchProgress]struct{})
	}
	b.subscribers[id][ch] = struct{}{}
}

func (b *batchProgressBroker) unsubscribe(id string, ch chan BatchProgress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[id]; ok {
		if _, present := subscribers[ch]; present {
			delete(subscribers, ch)
			close(ch)
		}
		if len(subscribers) == 0 {
			delete(b.subscribers, id)
		}
	}
}

func (b *batchProgressBroker) broadcast(id string, progress BatchProgress) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[id] {
		select {
		case ch <- progress:
		default:
		}
	}
}

func (b *batchProgressBroker) closeAll(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers[id] {
		close(ch)
	}
	delete(b.subscribers, id)
}

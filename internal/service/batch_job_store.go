package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type batchJobStore interface {
	save(ctx context.Context, job BatchJob) error
	load(ctx context.Context, id string) (BatchJob, error)
}

type redisBatchJobStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (s *redisBatchJobStore) key(id string) string {
	return fmt.Sprintf("%s:batches:%s", s.prefix, id)
}

func (s *redisBatchJobStore) save(ctx context.Context, job BatchJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(job.ID), payload, s.ttl).Err()
}

func (s *redisBatchJobStore) load(ctx context.Context, id string) (BatchJob, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return BatchJob{}, ErrBatchJobNotFound
		}
		return BatchJob{}, err
	}

	var job BatchJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return BatchJob{}, fmt.Errorf("decode batch job %s: %w", id, err)
	}
	return job, nil
}

type memoryBatchJobEntry struct {
	job       BatchJob
	expiresAt time.Time
}

type memoryBatchJobStore struct {
	mu   sync.RWMutex
	ttl  time.Duration
	jobs map[string]memoryBatchJobEntry
}

func newMemoryBatchJobStore(ttl time.Duration) *memoryBatchJobStore {
	return &memoryBatchJobStore{ttl: ttl, jobs: make(map[string]memoryBatchJobEntry)}
}

func (s *memoryBatchJobStore) save(_ context.Context, job BatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, entry := range s.jobs {
		if now.After(entry.expiresAt) {
			delete(s.jobs, id)
		}
	}
	s.jobs[job.ID] = memoryBatchJobEntry{job: job, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *memoryBatchJobStore) load(_ context.Context, id string) (BatchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.jobs[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return BatchJob{}, ErrBatchJobNotFound
	}
	return entry.job, nil
}

package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
)

// MemoryStore is the in-memory Store used by default: a map and a lock per
// entity, snapshots in and out.
type MemoryStore struct {
	jobs    *memoryJobStore
	records *memoryRecordStore
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    &memoryJobStore{jobs: make(map[uuid.UUID]*enrich.Job)},
		records: &memoryRecordStore{records: make(map[string]enrich.EnrichedRecord)},
	}
}

func (s *MemoryStore) Job() Job {
	return s.jobs
}

func (s *MemoryStore) Record() Record {
	return s.records
}

func (s *MemoryStore) Close() error {
	return nil
}

type memoryJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*enrich.Job
}

func (s *memoryJobStore) Create(_ context.Context, job *enrich.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.jobs[job.ID]; dup {
		return ErrDuplicateKey
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *memoryJobStore) Update(_ context.Context, job *enrich.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return ErrRecordNotFound
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *memoryJobStore) Get(_ context.Context, id uuid.UUID) (*enrich.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return job.Clone(), nil
}

type memoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]enrich.EnrichedRecord
}

func (s *memoryRecordStore) Set(_ context.Context, records []enrich.EnrichedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.records[rec.ItemID] = rec.Clone()
	}
	return nil
}

func (s *memoryRecordStore) GetByItem(_ context.Context, itemID string) (*enrich.EnrichedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[itemID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	dup := rec.Clone()
	return &dup, nil
}

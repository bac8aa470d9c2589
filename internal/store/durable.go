package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
)

// DurableStore serves everything from the in-memory store and mirrors writes
// to a durable one best-effort: a failing mirror write is logged and
// swallowed, never surfaced to the orchestrator. Reads fall back to the
// mirror when the memory copy is gone (process restart).
type DurableStore struct {
	jobs    *durableJobStore
	records *durableRecordStore
	mirror  Store
}

func NewDurableStore(mem *MemoryStore, mirror Store) *DurableStore {
	logger := zap.S().Named("durable_store")
	return &DurableStore{
		jobs:    &durableJobStore{mem: mem.Job(), mirror: mirror.Job(), logger: logger},
		records: &durableRecordStore{mem: mem.Record(), mirror: mirror.Record(), logger: logger},
		mirror:  mirror,
	}
}

func (s *DurableStore) Job() Job {
	return s.jobs
}

func (s *DurableStore) Record() Record {
	return s.records
}

func (s *DurableStore) Close() error {
	return s.mirror.Close()
}

type durableJobStore struct {
	mem    Job
	mirror Job
	logger *zap.SugaredLogger
}

func (s *durableJobStore) Create(ctx context.Context, job *enrich.Job) error {
	if err := s.mem.Create(ctx, job); err != nil {
		return err
	}
	if err := s.mirror.Create(ctx, job); err != nil {
		s.logger.Warnw("failed to persist job", "job_id", job.ID, "error", err)
	}
	return nil
}

func (s *durableJobStore) Update(ctx context.Context, job *enrich.Job) error {
	if err := s.mem.Update(ctx, job); err != nil {
		return err
	}
	if err := s.mirror.Update(ctx, job); err != nil {
		s.logger.Warnw("failed to persist job update", "job_id", job.ID, "error", err)
	}
	return nil
}

func (s *durableJobStore) Get(ctx context.Context, id uuid.UUID) (*enrich.Job, error) {
	job, err := s.mem.Get(ctx, id)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}
	return s.mirror.Get(ctx, id)
}

type durableRecordStore struct {
	mem    Record
	mirror Record
	logger *zap.SugaredLogger
}

func (s *durableRecordStore) Set(ctx context.Context, records []enrich.EnrichedRecord) error {
	if err := s.mem.Set(ctx, records); err != nil {
		return err
	}
	if err := s.mirror.Set(ctx, records); err != nil {
		s.logger.Warnw("failed to persist records", "count", len(records), "error", err)
	}
	return nil
}

func (s *durableRecordStore) GetByItem(ctx context.Context, itemID string) (*enrich.EnrichedRecord, error) {
	rec, err := s.mem.GetByItem(ctx, itemID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}
	return s.mirror.GetByItem(ctx, itemID)
}

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
)

// Store persists job state and enriched records. Implementations only store
// and retrieve snapshots; the orchestrator is the sole mutator of a live
// job, so every implementation must deep-copy on both write and read.
type Store interface {
	Job() Job
	Record() Record
	Close() error
}

// Job holds job state for status polling.
type Job interface {
	Create(ctx context.Context, job *enrich.Job) error
	Update(ctx context.Context, job *enrich.Job) error
	Get(ctx context.Context, id uuid.UUID) (*enrich.Job, error)
}

// Record indexes the latest enriched record per item id.
type Record interface {
	Set(ctx context.Context, records []enrich.EnrichedRecord) error
	GetByItem(ctx context.Context, itemID string) (*enrich.EnrichedRecord, error)
}

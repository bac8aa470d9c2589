package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maltesIam/cyberdemo-sub000/internal/adapters"
	"github.com/maltesIam/cyberdemo-sub000/internal/cache"
	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
	"github.com/maltesIam/cyberdemo-sub000/internal/store"
	"github.com/maltesIam/cyberdemo-sub000/pkg/circuit"
	"github.com/maltesIam/cyberdemo-sub000/pkg/metrics"
)

// EnrichmentService orchestrates a job across the requested sources: cache
// lookup, breaker/limiter-guarded adapter calls, one collector loop applying
// results, then the merge/score pass. It is the only component that mutates
// a Job; the store just keeps snapshots.
type EnrichmentService struct {
	store    store.Store
	registry *adapters.Registry
	cache    *cache.Cache
	logger   *zap.SugaredLogger

	maxBatch       int
	adapterTimeout time.Duration
}

type Option func(*EnrichmentService)

func WithMaxBatch(n int) Option {
	return func(s *EnrichmentService) {
		s.maxBatch = n
	}
}

func WithAdapterTimeout(d time.Duration) Option {
	return func(s *EnrichmentService) {
		s.adapterTimeout = d
	}
}

func NewEnrichmentService(st store.Store, registry *adapters.Registry, batchCache *cache.Cache, opts ...Option) *EnrichmentService {
	s := &EnrichmentService{
		store:          st,
		registry:       registry,
		cache:          batchCache,
		logger:         zap.S().Named("enrichment_service"),
		maxBatch:       100,
		adapterTimeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit validates the request, creates the job and launches the fan-out in
// the background. An over-cap batch is truncated, never rejected. The
// returned id can be polled immediately.
func (s *EnrichmentService) Submit(ctx context.Context, req enrich.Request) (uuid.UUID, error) {
	if req.Kind != enrich.KindVulnerability && req.Kind != enrich.KindThreatIndicator {
		return uuid.Nil, NewErrUnknownKind(string(req.Kind))
	}

	itemIDs := funk.UniqString(req.ItemIDs)
	if len(itemIDs) == 0 {
		return uuid.Nil, NewErrEmptyBatch()
	}
	if len(itemIDs) > s.maxBatch {
		s.logger.Warnw("truncating over-cap batch", "requested", len(itemIDs), "max_batch", s.maxBatch)
		itemIDs = itemIDs[:s.maxBatch]
	}

	entries, err := s.registry.Resolve(req.Kind, req.Sources)
	if err != nil {
		var unknown *adapters.ErrUnknownSource
		if errors.As(err, &unknown) {
			return uuid.Nil, NewErrUnknownSource(unknown.Name)
		}
		return uuid.Nil, err
	}

	sources := make([]string, 0, len(entries))
	for _, e := range entries {
		sources = append(sources, e.Name())
	}

	job := &enrich.Job{
		ID:           uuid.New(),
		Kind:         req.Kind,
		ItemIDs:      itemIDs,
		Sources:      sources,
		ForceRefresh: req.ForceRefresh,
		Status:       enrich.JobStatusPending,
		TotalItems:   len(itemIDs),
		Outcomes:     make(map[string]enrich.SourceOutcome, len(entries)),
	}
	if err := s.store.Job().Create(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job: %w", err)
	}

	job.Status = enrich.JobStatusRunning
	job.StartedAt = time.Now()
	s.persist(job)

	s.logger.Infow("job submitted", "job_id", job.ID, "kind", job.Kind, "items", job.TotalItems, "sources", job.Sources)
	go s.run(job, entries)

	return job.ID, nil
}

// Status returns a snapshot of the job for progress polling.
func (s *EnrichmentService) Status(ctx context.Context, jobID uuid.UUID) (*enrich.Job, error) {
	job, err := s.store.Job().Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Records returns the enriched records a job produced, in input item order.
func (s *EnrichmentService) Records(ctx context.Context, jobID uuid.UUID) ([]enrich.EnrichedRecord, error) {
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.Records, nil
}

// RecordByItem returns the latest enriched record for one item id.
func (s *EnrichmentService) RecordByItem(ctx context.Context, itemID string) (*enrich.EnrichedRecord, error) {
	rec, err := s.store.Record().GetByItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrEnrichedRecordNotFound(itemID)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

type sourceResult struct {
	source    string
	status    enrich.OutcomeStatus
	data      map[string]enrich.Fragment
	err       error
	fromCache bool
}

// run executes the fan-out to completion. It owns the job instance: source
// tasks only send results, the collector loop below is the single place
// where the job is mutated.
func (s *EnrichmentService) run(job *enrich.Job, entries []*adapters.Entry) {
	ctx := context.Background()

	results := make(chan sourceResult, len(entries))
	g := new(errgroup.Group)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			results <- s.querySource(ctx, job.ItemIDs, job.ForceRefresh, entry)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	fragments := make(map[string]map[string]enrich.Fragment, len(entries))
	for res := range results {
		outcome := enrich.SourceOutcome{
			Source: res.source,
			Status: res.status,
		}
		switch res.status {
		case enrich.OutcomeSuccess:
			outcome.EnrichedCount = len(res.data)
			fragments[res.source] = res.data
		case enrich.OutcomeFailed:
			outcome.FailedCount = job.TotalItems
			outcome.Error = res.err.Error()
		case enrich.OutcomeCircuitOpen:
			outcome.Error = res.err.Error()
		}
		job.Outcomes[res.source] = outcome
		s.persist(job)

		s.logger.Debugw("source settled",
			"job_id", job.ID, "source", res.source, "status", res.status, "from_cache", res.fromCache)
	}

	s.finalize(job, entries, fragments)
}

// querySource is one fan-out task: cache, then the breaker-guarded,
// rate-limited adapter call. Its errors never escape; they become the
// source's outcome.
func (s *EnrichmentService) querySource(ctx context.Context, itemIDs []string, forceRefresh bool, entry *adapters.Entry) sourceResult {
	name := entry.Name()
	key := cache.Key(name, itemIDs)

	if !forceRefresh {
		if data, ok := s.cache.Get(key); ok {
			metrics.IncreaseCacheLookupsTotalMetric(name, "hit")
			return sourceResult{source: name, status: enrich.OutcomeSuccess, data: data, fromCache: true}
		}
		metrics.IncreaseCacheLookupsTotalMetric(name, "miss")
	}

	var data map[string]enrich.Fragment
	err := entry.Breaker.Call(ctx, func(ctx context.Context) error {
		if err := entry.Limiter.Acquire(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, s.adapterTimeout)
		defer cancel()

		var fetchErr error
		data, fetchErr = entry.Adapter.FetchBatch(callCtx, itemIDs)
		return fetchErr
	})
	metrics.UpdateBreakerStateMetric(name, breakerStateValue(entry.Breaker.State()))

	switch {
	case errors.Is(err, circuit.ErrOpen):
		metrics.IncreaseAdapterCallsTotalMetric(name, "circuit_open")
		return sourceResult{source: name, status: enrich.OutcomeCircuitOpen, err: err}
	case err != nil:
		metrics.IncreaseAdapterCallsTotalMetric(name, "failed")
		return sourceResult{source: name, status: enrich.OutcomeFailed, err: err}
	}

	metrics.IncreaseAdapterCallsTotalMetric(name, "success")
	s.cache.Set(key, data)
	return sourceResult{source: name, status: enrich.OutcomeSuccess, data: data}
}

// finalize runs the merge/score pass and moves the job to its terminal
// state. Partial success is still success; the job fails only when every
// source failed or was skipped by its breaker.
func (s *EnrichmentService) finalize(job *enrich.Job, entries []*adapters.Entry, fragments map[string]map[string]enrich.Fragment) {
	priority := make([]string, 0, len(entries))
	for _, e := range entries {
		priority = append(priority, e.Name())
	}

	succeeded := 0
	for _, outcome := range job.Outcomes {
		if outcome.Status == enrich.OutcomeSuccess {
			succeeded++
		}
	}

	now := time.Now()
	job.CompletedAt = &now

	if succeeded == 0 {
		job.Status = enrich.JobStatusFailed
		job.FailedItems = job.TotalItems
		job.Error = aggregateErrors(job.Outcomes)
		s.persist(job)
		metrics.IncreaseJobsTotalMetric(string(job.Status))
		s.logger.Errorw("job failed, no source succeeded", "job_id", job.ID, "error", job.Error)
		return
	}

	records := make([]enrich.EnrichedRecord, 0, len(job.ItemIDs))
	for _, itemID := range job.ItemIDs {
		frags := make(map[string]enrich.Fragment)
		for source, data := range fragments {
			if frag, ok := data[itemID]; ok {
				frags[source] = frag
			}
		}
		if len(frags) == 0 {
			job.FailedItems++
		} else {
			job.ProcessedItems++
		}
		records = append(records, enrich.BuildRecord(job.Kind, itemID, frags, priority, len(entries), succeeded))
	}

	if err := s.store.Record().Set(context.Background(), records); err != nil {
		s.logger.Errorw("failed to store enriched records", "job_id", job.ID, "error", err)
	}

	job.Records = records
	job.Status = enrich.JobStatusCompleted
	s.persist(job)
	metrics.IncreaseJobsTotalMetric(string(job.Status))

	s.logger.Infow("job completed",
		"job_id", job.ID,
		"processed", job.ProcessedItems,
		"failed", job.FailedItems,
		"sources_succeeded", succeeded,
		"sources_queried", len(entries),
		"duration", now.Sub(job.StartedAt))
}

func (s *EnrichmentService) persist(job *enrich.Job) {
	if err := s.store.Job().Update(context.Background(), job); err != nil {
		s.logger.Errorw("failed to persist job state", "job_id", job.ID, "error", err)
	}
}

func aggregateErrors(outcomes map[string]enrich.SourceOutcome) string {
	parts := make([]string, 0, len(outcomes))
	for source, outcome := range outcomes {
		if outcome.Error != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", source, outcome.Error))
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func breakerStateValue(state circuit.State) float64 {
	switch state {
	case circuit.StateHalfOpen:
		return 1
	case circuit.StateOpen:
		return 2
	}
	return 0
}

package service_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/maltesIam/cyberdemo-sub000/internal/adapters"
	"github.com/maltesIam/cyberdemo-sub000/internal/cache"
	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
	"github.com/maltesIam/cyberdemo-sub000/internal/service"
	"github.com/maltesIam/cyberdemo-sub000/internal/store"
	"github.com/maltesIam/cyberdemo-sub000/pkg/circuit"
)

var errUpstream = errors.New("upstream timeout")

func synthetic(reg *adapters.Registry, name string) *adapters.Synthetic {
	entry, ok := reg.Get(name)
	Expect(ok).To(BeTrue())
	return entry.Adapter.(*adapters.Synthetic)
}

func tripBreaker(reg *adapters.Registry, name string, threshold int) {
	entry, _ := reg.Get(name)
	for i := 0; i < threshold; i++ {
		_ = entry.Breaker.Call(context.TODO(), func(context.Context) error { return errUpstream })
	}
	Expect(entry.Breaker.State()).To(Equal(circuit.StateOpen))
}

func waitTerminal(srv *service.EnrichmentService, jobID uuid.UUID) *enrich.Job {
	var job *enrich.Job
	Eventually(func() bool {
		var err error
		job, err = srv.Status(context.TODO(), jobID)
		Expect(err).To(BeNil())
		return job.Terminal()
	}, 5*time.Second, 10*time.Millisecond).Should(BeTrue())
	return job
}

var _ = Describe("enrichment service", func() {
	var (
		s   store.Store
		reg *adapters.Registry
		c   *cache.Cache
		srv *service.EnrichmentService
	)

	BeforeEach(func() {
		s = store.NewMemoryStore()
		reg = adapters.NewSyntheticRegistry(adapters.SyntheticOptions{
			BreakerThreshold: 5,
			BreakerTimeout:   time.Minute,
			RateWindow:       time.Second,
			RateOverrides: map[string]int{
				enrich.SourceNVD:        1000,
				enrich.SourceKEV:        1000,
				enrich.SourceEPSS:       1000,
				enrich.SourceOSV:        1000,
				enrich.SourceReputation: 1000,
				enrich.SourceScanner:    1000,
			},
		})
		c = cache.New(time.Hour)
		srv = service.NewEnrichmentService(s, reg, c)
	})

	Context("submit validation", func() {
		It("rejects an unknown kind", func() {
			_, err := srv.Submit(context.TODO(), enrich.Request{Kind: "malware", ItemIDs: []string{"x"}})
			var invalid *service.ErrInvalidRequest
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("rejects an empty batch", func() {
			_, err := srv.Submit(context.TODO(), enrich.Request{Kind: enrich.KindVulnerability})
			var invalid *service.ErrInvalidRequest
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("rejects an unknown source without creating a job", func() {
			_, err := srv.Submit(context.TODO(), enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: []string{"CVE-2024-0001"},
				Sources: []string{"shodan"},
			})
			var invalid *service.ErrInvalidRequest
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("truncates an over-cap batch instead of rejecting it", func() {
			ids := make([]string, 150)
			for i := range ids {
				ids[i] = fmt.Sprintf("CVE-2024-%04d", i)
			}

			jobID, err := srv.Submit(context.TODO(), enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: ids,
				Sources: []string{enrich.SourceEPSS},
			})
			Expect(err).To(BeNil())

			job := waitTerminal(srv, jobID)
			Expect(job.TotalItems).To(Equal(100))
		})

		It("de-duplicates item ids preserving order", func() {
			jobID, err := srv.Submit(context.TODO(), enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: []string{"CVE-2024-0002", "CVE-2024-0001", "CVE-2024-0002"},
				Sources: []string{enrich.SourceEPSS},
			})
			Expect(err).To(BeNil())

			job := waitTerminal(srv, jobID)
			Expect(job.ItemIDs).To(Equal([]string{"CVE-2024-0002", "CVE-2024-0001"}))
		})
	})

	Context("status", func() {
		It("returns not found for an unknown job id", func() {
			_, err := srv.Status(context.TODO(), uuid.New())
			var notFound *service.ErrJobNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})

	Context("fan-out", func() {
		It("completes with all sources succeeding", func() {
			jobID, err := srv.Submit(context.TODO(), enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: []string{"CVE-2024-0001", "CVE-2024-0002", "CVE-2024-0003"},
			})
			Expect(err).To(BeNil())

			job := waitTerminal(srv, jobID)
			Expect(job.Status).To(Equal(enrich.JobStatusCompleted))
			Expect(job.Outcomes).To(HaveLen(4))
			Expect(job.ProcessedItems + job.FailedItems).To(Equal(job.TotalItems))
			Expect(job.Records).To(HaveLen(3))
			Expect(job.CompletedAt).NotTo(BeNil())
		})

		It("keeps records in input item order regardless of completion order", func() {
			ids := []string{"CVE-2024-0009", "CVE-2024-0001", "CVE-2024-0005"}
			jobID, err := srv.Submit(context.TODO(), enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: ids,
			})
			Expect(err).To(BeNil())

			job := waitTerminal(srv, jobID)
			got := make([]string, 0, len(job.Records))
			for _, rec := range job.Records {
				got = append(got, rec.ItemID)
			}
			Expect(got).To(Equal(ids))
		})

		It("completes when one source succeeds and the rest fail", func() {
			synthetic(reg, enrich.SourceNVD).SetFailure(errUpstream)
			synthetic(reg, enrich.SourceKEV).SetFailure(errUpstream)

			jobID, err := srv.Submit(context.TODO(), enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: []string{"CVE-2024-0001"},
				Sources: []string{enrich.SourceNVD, enrich.SourceKEV, enrich.SourceEPSS},
			})
			Expect(err).To(BeNil())

			job := waitTerminal(srv, jobID)
			Expect(job.Status).To(Equal(enrich.JobStatusCompleted))
			Expect(job.Outcomes[enrich.SourceNVD].Status).To(Equal(enrich.OutcomeFailed))
			Expect(job.Outcomes[enrich.SourceKEV].Status).To(Equal(enrich.OutcomeFailed))
			Expect(job.Outcomes[enrich.SourceEPSS].Status).To(Equal(enrich.OutcomeSuccess))

			// the record is built solely from the surviving source
			Expect(job.Records).To(HaveLen(1))
			Expect(job.Records[0].SourcesUsed).To(Equal([]string{enrich.SourceEPSS}))
		})

		It("fails only when every source failed", func() {
			synthetic(reg, enrich.SourceNVD).SetFailure(errUpstream)
			synthetic(reg, enrich.SourceEPSS).SetFailure(errUpstream)

			jobID, err := srv.Submit(context.TODO(), enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: []string{"CVE-2024-0001"},
				Sources: []string{enrich.SourceNVD, enrich.SourceEPSS},
			})
			Expect(err).To(BeNil())

			job := waitTerminal(srv, jobID)
			Expect(job.Status).To(Equal(enrich.JobStatusFailed))
			Expect(job.FailedItems).To(Equal(1))
			Expect(job.Error).To(ContainSubstring("nvd"))
			Expect(job.Error).To(ContainSubstring("epss"))
			Expect(job.Records).To(BeEmpty())
		})

		It("records an open breaker as skipped, not failed", func() {
			tripBreaker(reg, enrich.SourceKEV, 5)

			jobID, err := srv.Submit(context.TODO(), enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: []string{"CVE-2024-0001", "CVE-2024-0002", "CVE-2024-0003"},
				Sources: []string{enrich.SourceNVD, enrich.SourceEPSS, enrich.SourceKEV},
			})
			Expect(err).To(BeNil())

			job := waitTerminal(srv, jobID)
			Expect(job.Status).To(Equal(enrich.JobStatusCompleted))
			Expect(job.Outcomes[enrich.SourceKEV].Status).To(Equal(enrich.OutcomeCircuitOpen))
			Expect(job.Outcomes[enrich.SourceNVD].Status).To(Equal(enrich.OutcomeSuccess))
			Expect(job.Outcomes[enrich.SourceEPSS].Status).To(Equal(enrich.OutcomeSuccess))

			// kev never contributed, so no record can claim it and the
			// is_kev default stays false
			Expect(job.Records).To(HaveLen(3))
			for _, rec := range job.Records {
				Expect(rec.SourcesUsed).NotTo(ContainElement(enrich.SourceKEV))
				Expect(rec.MergedFields).NotTo(HaveKey(enrich.FieldIsKEV))
				Expect(rec.MergedFields).To(HaveKey(enrich.FieldCVSSScore))
				Expect(rec.MergedFields).To(HaveKey(enrich.FieldEPSSScore))
			}
		})

		It("keeps the kev breaker closed for untouched sources", func() {
			tripBreaker(reg, enrich.SourceKEV, 5)
			entry, _ := reg.Get(enrich.SourceNVD)
			Expect(entry.Breaker.State()).To(Equal(circuit.StateClosed))
		})
	})

	Context("caching", func() {
		It("serves a repeated batch from cache without a second adapter call", func() {
			adapter := synthetic(reg, enrich.SourceEPSS)
			req := enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: []string{"CVE-2024-0001", "CVE-2024-0002"},
				Sources: []string{enrich.SourceEPSS},
			}

			jobID, err := srv.Submit(context.TODO(), req)
			Expect(err).To(BeNil())
			waitTerminal(srv, jobID)
			Expect(adapter.Calls()).To(Equal(1))

			jobID, err = srv.Submit(context.TODO(), req)
			Expect(err).To(BeNil())
			job := waitTerminal(srv, jobID)
			Expect(adapter.Calls()).To(Equal(1), "second batch must be a cache hit")
			Expect(job.Outcomes[enrich.SourceEPSS].Status).To(Equal(enrich.OutcomeSuccess))
		})

		It("calls the adapter again after the TTL expired", func() {
			srv = service.NewEnrichmentService(s, reg, cache.New(200*time.Millisecond))
			adapter := synthetic(reg, enrich.SourceEPSS)
			req := enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: []string{"CVE-2024-0001"},
				Sources: []string{enrich.SourceEPSS},
			}

			jobID, err := srv.Submit(context.TODO(), req)
			Expect(err).To(BeNil())
			waitTerminal(srv, jobID)

			jobID, err = srv.Submit(context.TODO(), req)
			Expect(err).To(BeNil())
			waitTerminal(srv, jobID)
			Expect(adapter.Calls()).To(Equal(1))

			time.Sleep(250 * time.Millisecond)

			jobID, err = srv.Submit(context.TODO(), req)
			Expect(err).To(BeNil())
			waitTerminal(srv, jobID)
			Expect(adapter.Calls()).To(Equal(2))
		})

		It("bypasses the cache on force_refresh", func() {
			adapter := synthetic(reg, enrich.SourceEPSS)
			req := enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: []string{"CVE-2024-0001"},
				Sources: []string{enrich.SourceEPSS},
			}

			jobID, err := srv.Submit(context.TODO(), req)
			Expect(err).To(BeNil())
			waitTerminal(srv, jobID)

			req.ForceRefresh = true
			jobID, err = srv.Submit(context.TODO(), req)
			Expect(err).To(BeNil())
			waitTerminal(srv, jobID)
			Expect(adapter.Calls()).To(Equal(2))
		})
	})

	Context("enriched records", func() {
		It("indexes records by item id", func() {
			jobID, err := srv.Submit(context.TODO(), enrich.Request{
				Kind:    enrich.KindThreatIndicator,
				ItemIDs: []string{"203.0.113.7"},
				Sources: []string{enrich.SourceReputation, enrich.SourceScanner},
			})
			Expect(err).To(BeNil())
			waitTerminal(srv, jobID)

			rec, err := srv.RecordByItem(context.TODO(), "203.0.113.7")
			Expect(err).To(BeNil())
			Expect(rec.Kind).To(Equal(enrich.KindThreatIndicator))
			Expect(rec.RiskScore).To(BeNumerically(">=", 0))
			Expect(rec.RiskScore).To(BeNumerically("<=", 100))
			Expect(rec.Confidence).To(Equal(100))
		})

		It("returns not found for a never-enriched item", func() {
			_, err := srv.RecordByItem(context.TODO(), "198.51.100.99")
			var notFound *service.ErrEnrichedRecordNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("returns the job's records via Records", func() {
			jobID, err := srv.Submit(context.TODO(), enrich.Request{
				Kind:    enrich.KindVulnerability,
				ItemIDs: []string{"CVE-2024-0001", "CVE-2024-0002"},
				Sources: []string{enrich.SourceNVD},
			})
			Expect(err).To(BeNil())
			waitTerminal(srv, jobID)

			records, err := srv.Records(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(2))
		})
	})
})

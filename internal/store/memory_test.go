package store_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
	"github.com/maltesIam/cyberdemo-sub000/internal/store"
)

func newJob() *enrich.Job {
	return &enrich.Job{
		ID:         uuid.New(),
		Kind:       enrich.KindVulnerability,
		ItemIDs:    []string{"CVE-2024-0001", "CVE-2024-0002"},
		Sources:    []string{enrich.SourceNVD, enrich.SourceEPSS},
		Status:     enrich.JobStatusPending,
		TotalItems: 2,
		StartedAt:  time.Now(),
		Outcomes:   map[string]enrich.SourceOutcome{},
	}
}

var _ = Describe("memory store", func() {
	var s store.Store

	BeforeEach(func() {
		s = store.NewMemoryStore()
	})

	Context("jobs", func() {
		It("creates and retrieves a job", func() {
			job := newJob()
			Expect(s.Job().Create(context.TODO(), job)).To(Succeed())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.ID).To(Equal(job.ID))
			Expect(got.ItemIDs).To(Equal(job.ItemIDs))
		})

		It("rejects duplicate creation", func() {
			job := newJob()
			Expect(s.Job().Create(context.TODO(), job)).To(Succeed())
			Expect(s.Job().Create(context.TODO(), job)).To(MatchError(store.ErrDuplicateKey))
		})

		It("returns not found for unknown ids", func() {
			_, err := s.Job().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("fails updating a job that was never created", func() {
			Expect(s.Job().Update(context.TODO(), newJob())).To(MatchError(store.ErrRecordNotFound))
		})

		It("stores snapshots, not the live job", func() {
			job := newJob()
			Expect(s.Job().Create(context.TODO(), job)).To(Succeed())

			// mutating the caller's instance must not leak into the store
			job.Status = enrich.JobStatusFailed
			job.Outcomes[enrich.SourceNVD] = enrich.SourceOutcome{Source: enrich.SourceNVD, Status: enrich.OutcomeFailed}

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(enrich.JobStatusPending))
			Expect(got.Outcomes).To(BeEmpty())
		})

		It("persists updates", func() {
			job := newJob()
			Expect(s.Job().Create(context.TODO(), job)).To(Succeed())

			job.Status = enrich.JobStatusCompleted
			job.ProcessedItems = 2
			Expect(s.Job().Update(context.TODO(), job)).To(Succeed())

			got, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(enrich.JobStatusCompleted))
			Expect(got.ProcessedItems).To(Equal(2))
		})
	})

	Context("records", func() {
		It("indexes the latest record per item", func() {
			first := enrich.EnrichedRecord{ItemID: "CVE-2024-0001", RiskScore: 10, RiskLevel: "unknown"}
			Expect(s.Record().Set(context.TODO(), []enrich.EnrichedRecord{first})).To(Succeed())

			second := enrich.EnrichedRecord{ItemID: "CVE-2024-0001", RiskScore: 90, RiskLevel: "critical"}
			Expect(s.Record().Set(context.TODO(), []enrich.EnrichedRecord{second})).To(Succeed())

			got, err := s.Record().GetByItem(context.TODO(), "CVE-2024-0001")
			Expect(err).To(BeNil())
			Expect(got.RiskScore).To(Equal(90))
		})

		It("returns not found for never-enriched items", func() {
			_, err := s.Record().GetByItem(context.TODO(), "CVE-1999-0000")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})
	})
})

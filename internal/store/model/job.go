package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
)

// Job is the durable row behind enrich.Job. Outcomes and records travel as a
// JSON blob; the scalar columns exist for status queries.
type Job struct {
	ID             uuid.UUID `gorm:"primaryKey"`
	Kind           string    `gorm:"not null"`
	Status         string    `gorm:"not null;index"`
	TotalItems     int
	ProcessedItems int
	FailedItems    int
	StartedAt      time.Time
	CompletedAt    *time.Time
	Error          string
	Payload        []byte `gorm:"type:jsonb"`
}

func JobFromDomain(job *enrich.Job) (*Job, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:             job.ID,
		Kind:           string(job.Kind),
		Status:         string(job.Status),
		TotalItems:     job.TotalItems,
		ProcessedItems: job.ProcessedItems,
		FailedItems:    job.FailedItems,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		Error:          job.Error,
		Payload:        payload,
	}, nil
}

func (j *Job) ToDomain() (*enrich.Job, error) {
	var job enrich.Job
	if err := json.Unmarshal(j.Payload, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// Record is the durable row behind enrich.EnrichedRecord, keyed by item id
// so a re-enrichment overwrites the previous row.
type Record struct {
	ItemID    string `gorm:"primaryKey"`
	Kind      string `gorm:"not null"`
	RiskScore int
	RiskLevel string
	UpdatedAt time.Time
	Payload   []byte `gorm:"type:jsonb"`
}

func RecordFromDomain(rec enrich.EnrichedRecord) (*Record, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return &Record{
		ItemID:    rec.ItemID,
		Kind:      string(rec.Kind),
		RiskScore: rec.RiskScore,
		RiskLevel: rec.RiskLevel,
		Payload:   payload,
	}, nil
}

func (r *Record) ToDomain() (*enrich.EnrichedRecord, error) {
	var rec enrich.EnrichedRecord
	if err := json.Unmarshal(r.Payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

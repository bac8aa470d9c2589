package enrich

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TargetKind string

const (
	KindVulnerability   TargetKind = "vulnerability"
	KindThreatIndicator TargetKind = "threat-indicator"
)

// Registered source names. The order inside each kind is the fixed merge
// priority: scalar fields are taken from the first source that provides them.
const (
	SourceNVD         = "nvd"
	SourceKEV         = "kev"
	SourceEPSS        = "epss"
	SourceOSV         = "osv"
	SourceReputation  = "reputation"
	SourceScanner     = "scanner"
	SourceClassifier  = "classifier"
	SourceThreatIntel = "threatintel"
	SourceFeeds       = "feeds"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

type OutcomeStatus string

const (
	OutcomeSuccess     OutcomeStatus = "success"
	OutcomeFailed      OutcomeStatus = "failed"
	OutcomeCircuitOpen OutcomeStatus = "circuit_open"
)

// Request describes one enrichment batch. Sources defaults to every
// registered source for the kind.
type Request struct {
	Kind         TargetKind `json:"kind"`
	ItemIDs      []string   `json:"item_ids"`
	Sources      []string   `json:"sources,omitempty"`
	ForceRefresh bool       `json:"force_refresh,omitempty"`
}

// SourceOutcome records how a single source fared within a job.
type SourceOutcome struct {
	Source        string        `json:"source"`
	Status        OutcomeStatus `json:"status"`
	EnrichedCount int           `json:"enriched_count"`
	FailedCount   int           `json:"failed_count"`
	Error         string        `json:"error,omitempty"`
}

// Job is exclusively owned and mutated by the orchestrator. Stores only keep
// snapshots of it.
type Job struct {
	ID             uuid.UUID                `json:"id"`
	Kind           TargetKind               `json:"kind"`
	ItemIDs        []string                 `json:"item_ids"`
	Sources        []string                 `json:"sources"`
	ForceRefresh   bool                     `json:"force_refresh"`
	Status         JobStatus                `json:"status"`
	TotalItems     int                      `json:"total_items"`
	ProcessedItems int                      `json:"processed_items"`
	FailedItems    int                      `json:"failed_items"`
	StartedAt      time.Time                `json:"started_at"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty"`
	Error          string                   `json:"error,omitempty"`
	Outcomes       map[string]SourceOutcome `json:"per_source_outcome"`
	Records        []EnrichedRecord         `json:"records,omitempty"`
}

// Progress reports processed/total in [0,1].
func (j *Job) Progress() float64 {
	if j.TotalItems == 0 {
		return 0
	}
	return float64(j.ProcessedItems) / float64(j.TotalItems)
}

func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Clone returns a deep copy so stores never hand out the live job.
func (j *Job) Clone() *Job {
	dup := *j
	dup.ItemIDs = append([]string(nil), j.ItemIDs...)
	dup.Sources = append([]string(nil), j.Sources...)
	if j.CompletedAt != nil {
		ts := *j.CompletedAt
		dup.CompletedAt = &ts
	}
	if j.Outcomes != nil {
		dup.Outcomes = make(map[string]SourceOutcome, len(j.Outcomes))
		for k, v := range j.Outcomes {
			dup.Outcomes[k] = v
		}
	}
	if j.Records != nil {
		dup.Records = make([]EnrichedRecord, len(j.Records))
		for i := range j.Records {
			dup.Records[i] = j.Records[i].Clone()
		}
	}
	return &dup
}

// EnrichedRecord is the merged, scored view of one item.
type EnrichedRecord struct {
	ItemID       string         `json:"item_id"`
	Kind         TargetKind     `json:"kind"`
	SourcesUsed  []string       `json:"sources_used"`
	MergedFields map[string]any `json:"merged_fields"`
	RiskScore    int            `json:"risk_score"`
	RiskLevel    string         `json:"risk_level"`
	Confidence   int            `json:"confidence"`
	Decision     string         `json:"decision,omitempty"`
}

func (r EnrichedRecord) Clone() EnrichedRecord {
	dup := r
	dup.SourcesUsed = append([]string(nil), r.SourcesUsed...)
	if r.MergedFields != nil {
		dup.MergedFields = make(map[string]any, len(r.MergedFields))
		for k, v := range r.MergedFields {
			if ss, ok := v.([]string); ok {
				dup.MergedFields[k] = append([]string(nil), ss...)
				continue
			}
			dup.MergedFields[k] = v
		}
	}
	return dup
}

func (r EnrichedRecord) String() string {
	val, _ := json.Marshal(r)
	return string(val)
}

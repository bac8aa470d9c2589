package adapters

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
	"github.com/maltesIam/cyberdemo-sub000/pkg/circuit"
	"github.com/maltesIam/cyberdemo-sub000/pkg/ratelimit"
)

// Synthetic is a SourceAdapter that fabricates deterministic data instead of
// talking to a real upstream. The same item id always yields the same
// fragment, which keeps demo output and tests stable. Failures can be
// injected to exercise the breaker path.
type Synthetic struct {
	name string
	gen  func(itemID string, r *rand.Rand) (enrich.Fragment, bool)

	mu       sync.Mutex
	calls    int
	failWith error
}

func NewSynthetic(name string, gen func(string, *rand.Rand) (enrich.Fragment, bool)) *Synthetic {
	return &Synthetic{name: name, gen: gen}
}

func (s *Synthetic) Name() string {
	return s.name
}

// Calls reports how many times FetchBatch was invoked.
func (s *Synthetic) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// SetFailure makes every subsequent FetchBatch fail with err until cleared
// with nil.
func (s *Synthetic) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Synthetic) FetchBatch(ctx context.Context, itemIDs []string) (map[string]enrich.Fragment, error) {
	s.mu.Lock()
	s.calls++
	failWith := s.failWith
	s.mu.Unlock()

	if failWith != nil {
		return nil, NewAdapterError(s.name, failWith)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewAdapterError(s.name, err)
	}

	out := make(map[string]enrich.Fragment, len(itemIDs))
	for _, id := range itemIDs {
		frag, ok := s.gen(id, seededRand(s.name, id))
		if ok {
			out[id] = frag
		}
	}
	return out, nil
}

func seededRand(source, itemID string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(itemID))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

func pick(r *rand.Rand, pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	idx := r.Perm(len(pool))[:n]
	out := make([]string, 0, n)
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out
}

var (
	severities      = []string{"low", "medium", "high", "critical"}
	cwePool         = []string{"CWE-20", "CWE-22", "CWE-78", "CWE-79", "CWE-89", "CWE-119", "CWE-287", "CWE-352", "CWE-416", "CWE-787"}
	categoryPool    = []string{"malware", "phishing", "botnet", "scanner", "spam", "proxy", "tor-exit"}
	familyPool      = []string{"emotet", "qakbot", "trickbot", "dridex", "agenttesla", "lokibot", "cobaltstrike"}
	actorPool       = []string{"ta505", "fin7", "apt28", "apt29", "lazarus", "mustang-panda"}
	feedPool        = []string{"feodo", "urlhaus", "threatfox", "openphish", "phishtank", "spamhaus", "abuse-ch"}
	classifications = []string{"benign", "suspicious", "malicious"}
)

func genNVD(id string, r *rand.Rand) (enrich.Fragment, bool) {
	cvss := float64(r.Intn(101)) / 10
	return enrich.Fragment{
		enrich.FieldCVSSScore:   cvss,
		enrich.FieldSeverity:    severities[min(int(cvss/2.5), 3)],
		enrich.FieldDescription: fmt.Sprintf("Synthetic advisory for %s", id),
		enrich.FieldCWEIDs:      pick(r, cwePool, 1+r.Intn(2)),
		enrich.FieldReferences:  []string{fmt.Sprintf("https://nvd.example/%s", id)},
	}, true
}

func genEPSS(id string, r *rand.Rand) (enrich.Fragment, bool) {
	score := r.Float64()
	return enrich.Fragment{
		enrich.FieldEPSSScore:     float64(int(score*1000)) / 1000,
		enrich.FieldEPSSPercentle: float64(int(r.Float64()*1000)) / 10,
	}, true
}

func genKEV(id string, r *rand.Rand) (enrich.Fragment, bool) {
	// most CVEs are not in the known-exploited catalog
	if r.Float64() >= 0.15 {
		return nil, false
	}
	return enrich.Fragment{
		enrich.FieldIsKEV:         true,
		enrich.FieldKEVDateAdded:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, r.Intn(700)).Format("2006-01-02"),
		enrich.FieldKEVRansomware: r.Float64() < 0.3,
	}, true
}

func genOSV(id string, r *rand.Rand) (enrich.Fragment, bool) {
	if r.Float64() >= 0.8 {
		return nil, false
	}
	return enrich.Fragment{
		enrich.FieldAliases:    []string{fmt.Sprintf("GHSA-%04x-%04x", r.Intn(0xffff), r.Intn(0xffff))},
		enrich.FieldSummary:    fmt.Sprintf("Synthetic summary for %s", id),
		enrich.FieldReferences: []string{fmt.Sprintf("https://osv.example/%s", id)},
	}, true
}

func genReputation(id string, r *rand.Rand) (enrich.Fragment, bool) {
	return enrich.Fragment{
		enrich.FieldReputationScore: float64(r.Intn(101)),
		enrich.FieldCategories:      pick(r, categoryPool, 1+r.Intn(3)),
	}, true
}

func genScanner(id string, r *rand.Rand) (enrich.Fragment, bool) {
	total := 60 + r.Intn(15)
	return enrich.Fragment{
		enrich.FieldDetectionsBad:   float64(r.Intn(total + 1)),
		enrich.FieldDetectionsTotal: float64(total),
	}, true
}

func genClassifier(id string, r *rand.Rand) (enrich.Fragment, bool) {
	return enrich.Fragment{
		enrich.FieldClassification: classifications[r.Intn(len(classifications))],
	}, true
}

func genThreatIntel(id string, r *rand.Rand) (enrich.Fragment, bool) {
	if r.Float64() >= 0.6 {
		return nil, false
	}
	return enrich.Fragment{
		enrich.FieldMalwareFamilies: pick(r, familyPool, r.Intn(4)),
		enrich.FieldThreatActors:    pick(r, actorPool, r.Intn(3)),
	}, true
}

func genFeeds(id string, r *rand.Rand) (enrich.Fragment, bool) {
	n := r.Intn(len(feedPool) + 1)
	if n == 0 {
		return nil, false
	}
	return enrich.Fragment{
		enrich.FieldFeeds: pick(r, feedPool, n),
	}, true
}

// SyntheticOptions tune the resilience primitives built for every synthetic
// source.
type SyntheticOptions struct {
	BreakerThreshold int
	BreakerTimeout   time.Duration
	RateWindow       time.Duration
	// RateOverrides replaces a source's max requests per window.
	RateOverrides map[string]int
}

type syntheticSpec struct {
	name        string
	kind        enrich.TargetKind
	priority    int
	maxRequests int
	gen         func(string, *rand.Rand) (enrich.Fragment, bool)
}

// Per-source request budgets mirror public upstream limits: unauthenticated
// feeds are tight, bulk endpoints generous.
var syntheticSpecs = []syntheticSpec{
	{enrich.SourceNVD, enrich.KindVulnerability, 0, 5, genNVD},
	{enrich.SourceKEV, enrich.KindVulnerability, 1, 10, genKEV},
	{enrich.SourceEPSS, enrich.KindVulnerability, 2, 100, genEPSS},
	{enrich.SourceOSV, enrich.KindVulnerability, 3, 60, genOSV},
	{enrich.SourceReputation, enrich.KindThreatIndicator, 0, 4, genReputation},
	{enrich.SourceScanner, enrich.KindThreatIndicator, 1, 4, genScanner},
	{enrich.SourceClassifier, enrich.KindThreatIndicator, 2, 30, genClassifier},
	{enrich.SourceThreatIntel, enrich.KindThreatIndicator, 3, 10, genThreatIntel},
	{enrich.SourceFeeds, enrich.KindThreatIndicator, 4, 30, genFeeds},
}

// NewSyntheticRegistry builds the full registry of synthetic sources with
// per-source breakers and limiters.
func NewSyntheticRegistry(opts SyntheticOptions) *Registry {
	if opts.RateWindow == 0 {
		opts.RateWindow = time.Minute
	}

	reg := NewRegistry()
	for _, spec := range syntheticSpecs {
		maxRequests := spec.maxRequests
		if override, ok := opts.RateOverrides[spec.name]; ok {
			maxRequests = override
		}
		_ = reg.Register(&Entry{
			Adapter:  NewSynthetic(spec.name, spec.gen),
			Kind:     spec.kind,
			Priority: spec.priority,
			Breaker:  circuit.NewBreaker(spec.name, opts.BreakerThreshold, opts.BreakerTimeout),
			Limiter:  ratelimit.NewLimiter(maxRequests, opts.RateWindow),
		})
	}
	return reg
}

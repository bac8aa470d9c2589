package enrich

import "math"

// Maximum contribution of each threat-indicator source to the raw score. The
// final score is normalized by the weights of the sources that actually
// responded, so a missing source is excluded from the denominator rather
// than counted as zero.
var indicatorWeights = map[string]float64{
	SourceReputation:  20,
	SourceScanner:     25,
	SourceClassifier:  15,
	SourceThreatIntel: 25,
	SourceFeeds:       15,
}

// IndicatorScore computes the weighted threat-indicator risk score in
// [0,100] from the per-source fragments of one item.
func IndicatorScore(frags map[string]Fragment) int {
	var raw, denom float64

	for source, frag := range frags {
		weight, scored := indicatorWeights[source]
		if !scored {
			continue
		}
		denom += weight
		raw += indicatorPoints(source, frag)
	}

	if denom == 0 {
		return 0
	}
	return clamp(int(math.Round(raw / denom * 100)))
}

func indicatorPoints(source string, frag Fragment) float64 {
	switch source {
	case SourceReputation:
		rep, _ := frag.Float(FieldReputationScore)
		return math.Min(math.Max(rep, 0)*0.2, 20)

	case SourceScanner:
		bad, _ := frag.Float(FieldDetectionsBad)
		total, _ := frag.Float(FieldDetectionsTotal)
		if total <= 0 {
			return 0
		}
		return math.Min(bad/total, 1) * 25

	case SourceClassifier:
		switch cls, _ := frag.String(FieldClassification); cls {
		case "malicious":
			return 15
		case "suspicious":
			return 8
		}
		return 0

	case SourceThreatIntel:
		families := math.Min(float64(len(frag.Strings(FieldMalwareFamilies)))*5, 15)
		actors := math.Min(float64(len(frag.Strings(FieldThreatActors)))*5, 10)
		return families + actors

	case SourceFeeds:
		return math.Min(float64(len(frag.Strings(FieldFeeds)))*3, 15)
	}
	return 0
}

// VulnSignals are the merged exploitation/severity inputs of one
// vulnerability record.
type VulnSignals struct {
	IsKEV bool
	EPSS  float64
	CVSS  float64
}

func vulnSignals(fields map[string]any) VulnSignals {
	frag := Fragment(fields)
	epss, _ := frag.Float(FieldEPSSScore)
	cvss, _ := frag.Float(FieldCVSSScore)
	return VulnSignals{
		IsKEV: frag.Bool(FieldIsKEV),
		EPSS:  epss,
		CVSS:  cvss,
	}
}

// VulnerabilityScore combines KEV presence, exploit probability and severity
// into a [0,100] score: KEV contributes 30, EPSS up to 30, CVSS up to 40.
func VulnerabilityScore(s VulnSignals) int {
	var score float64
	if s.IsKEV {
		score += 30
	}
	score += math.Min(math.Max(s.EPSS, 0), 1) * 30
	score += math.Min(math.Max(s.CVSS, 0), 10) * 4
	return clamp(int(math.Round(score)))
}

// RiskLevel maps a [0,100] score onto the coarse risk buckets.
func RiskLevel(score int) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 60:
		return "high"
	case score >= 40:
		return "medium"
	case score >= 20:
		return "low"
	}
	return "unknown"
}

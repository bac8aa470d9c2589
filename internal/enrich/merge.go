package enrich

import (
	"github.com/thoas/go-funk"
)

// Merge combines per-source fragments for one item into a single field map.
// Scalar fields are first-source-wins following the priority order; string
// list fields are unioned, de-duplicated, order-stable by first appearance.
// The result is independent of the order in which sources completed.
func Merge(itemID string, frags map[string]Fragment, priority []string) (fields map[string]any, sourcesUsed []string) {
	fields = map[string]any{}

	for _, source := range priority {
		frag, ok := frags[source]
		if !ok {
			continue
		}
		sourcesUsed = append(sourcesUsed, source)

		for key, value := range frag {
			if list := frag.Strings(key); list != nil {
				existing, _ := fields[key].([]string)
				fields[key] = funk.UniqString(append(existing, list...))
				continue
			}
			if _, taken := fields[key]; !taken {
				fields[key] = value
			}
		}
	}
	return fields, sourcesUsed
}

// BuildRecord merges the fragments for one item and derives its score, risk
// level, confidence and (for vulnerabilities) the SSVC decision. queried and
// succeeded are job-level source counts; confidence reflects how many of the
// requested sources actually contributed.
func BuildRecord(kind TargetKind, itemID string, frags map[string]Fragment, priority []string, queried, succeeded int) EnrichedRecord {
	fields, used := Merge(itemID, frags, priority)

	rec := EnrichedRecord{
		ItemID:       itemID,
		Kind:         kind,
		SourcesUsed:  used,
		MergedFields: fields,
		Confidence:   confidence(succeeded, queried),
	}

	switch kind {
	case KindVulnerability:
		signals := vulnSignals(fields)
		rec.RiskScore = VulnerabilityScore(signals)
		rec.Decision = string(Decide(signals))
	default:
		rec.RiskScore = IndicatorScore(frags)
	}

	if len(frags) == 0 {
		rec.RiskScore = 0
		rec.Confidence = 0
		rec.Decision = ""
	}
	rec.RiskLevel = RiskLevel(rec.RiskScore)
	return rec
}

func confidence(succeeded, queried int) int {
	if queried == 0 {
		return 0
	}
	return clamp(succeeded * 100 / queried)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

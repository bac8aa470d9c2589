package enrich

// Fragment is the raw field set one source returned for one item. Adapters
// populate it with the well-known field keys below; absent keys simply mean
// the source had nothing to say.
type Fragment map[string]any

// Well-known fragment field keys.
const (
	FieldCVSSScore     = "cvss_score"
	FieldSeverity      = "severity"
	FieldDescription   = "description"
	FieldCWEIDs        = "cwe_ids"
	FieldReferences    = "references"
	FieldEPSSScore     = "epss_score"
	FieldEPSSPercentle = "epss_percentile"
	FieldIsKEV         = "is_kev"
	FieldKEVDateAdded  = "kev_date_added"
	FieldKEVRansomware = "kev_ransomware"
	FieldAliases       = "aliases"
	FieldSummary       = "summary"

	FieldReputationScore = "reputation_score"
	FieldCategories      = "categories"
	FieldDetectionsBad   = "detections_malicious"
	FieldDetectionsTotal = "detections_total"
	FieldClassification  = "classification"
	FieldMalwareFamilies = "malware_families"
	FieldThreatActors    = "threat_actors"
	FieldFeeds           = "feeds"
)

func (f Fragment) Float(key string) (float64, bool) {
	v, ok := f[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (f Fragment) Bool(key string) bool {
	v, ok := f[key].(bool)
	return ok && v
}

func (f Fragment) String(key string) (string, bool) {
	v, ok := f[key].(string)
	return v, ok
}

func (f Fragment) Strings(key string) []string {
	switch v := f[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (f Fragment) Clone() Fragment {
	dup := make(Fragment, len(f))
	for k, v := range f {
		if ss, ok := v.([]string); ok {
			dup[k] = append([]string(nil), ss...)
			continue
		}
		dup[k] = v
	}
	return dup
}

package enrich

// Decision is the SSVC-style remediation priority for a vulnerability.
type Decision string

const (
	DecisionImmediate  Decision = "immediate"
	DecisionOutOfCycle Decision = "out-of-cycle"
	DecisionScheduled  Decision = "scheduled"
	DecisionDefer      Decision = "defer"
)

// Decide maps exploitation and severity signals onto a remediation
// decision. Rules are evaluated top-down, first match wins.
func Decide(s VulnSignals) Decision {
	switch {
	case s.IsKEV:
		return DecisionImmediate
	case (s.EPSS >= 0.5 && s.CVSS >= 7.0) || s.EPSS >= 0.7 || s.CVSS >= 9.0:
		return DecisionOutOfCycle
	case s.EPSS >= 0.1 || s.CVSS >= 4.0:
		return DecisionScheduled
	}
	return DecisionDefer
}

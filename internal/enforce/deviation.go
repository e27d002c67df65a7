// Package enforce validates a manifest against the live bundle and
// classifies every disagreement it finds.
//
// Deviations are ephemeral: each validation run produces them fresh and
// only reports of them are ever persisted. The overall verdict is the
// single signal the command layer needs for its exit status.
package enforce

// --- Deviation model ---

// Kind identifies what a deviation is about.
type Kind string

const (
	KindHashMismatch    Kind = "hash-mismatch"
	KindFrozenViolation Kind = "frozen-section-violation"
	KindCoverage        Kind = "coverage-shortfall"
	KindDensity         Kind = "density-shortfall"
	KindMissingField    Kind = "missing-field"
)

// Severity ranks a deviation. The zero value is not valid.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Deviation is one detected disagreement between manifest and bundle,
// or a threshold shortfall.
type Deviation struct {
	Kind        Kind     `json:"kind"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Remediation string   `json:"remediation,omitempty"`
}

// --- Verdict ---

// Verdict is the aggregate outcome of one validation run.
type Verdict string

const (
	VerdictPass       Verdict = "pass"
	VerdictMediumFail Verdict = "medium-fail"
	VerdictHighFail   Verdict = "high-fail"
)

// Report is the full output of one validation run: the ordered deviation
// list plus summary counts, shaped for direct consumption by the report
// rendering layer.
type Report struct {
	Bundle     string      `json:"bundle"`
	Deviations []Deviation `json:"deviations,omitempty"`
	Highs      int         `json:"highs"`
	Mediums    int         `json:"mediums"`
	Lows       int         `json:"lows"`
	Verdict    Verdict     `json:"verdict"`
	Stopped    bool        `json:"stopped,omitempty"` // stop-on-first-HIGH fired
}

// add appends a deviation and maintains the counts.
func (r *Report) add(d Deviation) {
	r.Deviations = append(r.Deviations, d)
	switch d.Severity {
	case SeverityHigh:
		r.Highs++
	case SeverityMedium:
		r.Mediums++
	case SeverityLow:
		r.Lows++
	}
}

// finalize computes the verdict: HIGH if any HIGH deviation exists,
// otherwise MEDIUM if any MEDIUM exists, otherwise pass. The ordering is
// total and deterministic for any deviation set.
func (r *Report) finalize() {
	switch {
	case r.Highs > 0:
		r.Verdict = VerdictHighFail
	case r.Mediums > 0:
		r.Verdict = VerdictMediumFail
	default:
		r.Verdict = VerdictPass
	}
}

// Passed reports whether the run found nothing above LOW.
func (r *Report) Passed() bool {
	return r.Verdict == VerdictPass
}

package enforce

import (
	"fmt"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/fingerprint"
	"github.com/HendryAvila/specguard/internal/manifest"
)

// --- Validation config ---

// Config holds the enforcement thresholds.
type Config struct {
	// CoverageThreshold is the minimum fraction of features that must
	// carry at least one story meeting MinAcceptance criteria.
	CoverageThreshold float64 `json:"coverage_threshold"`
	// MinAcceptance is the acceptance-criteria count a story needs to
	// count toward coverage.
	MinAcceptance int `json:"min_acceptance"`
	// MinContractDensity is the minimum fraction of features carrying
	// at least one invariant or contract reference.
	MinContractDensity float64 `json:"min_contract_density"`
	// StopOnFirstHigh aborts the run at the first HIGH deviation
	// instead of accumulating everything.
	StopOnFirstHigh bool `json:"stop_on_first_high"`
}

// DefaultConfig returns the default enforcement thresholds.
func DefaultConfig() Config {
	return Config{
		CoverageThreshold:  0.8,
		MinAcceptance:      1,
		MinContractDensity: 0.5,
	}
}

// nearThreshold is the band below a threshold within which a shortfall
// downgrades from MEDIUM to LOW.
const nearThreshold = 0.05

// --- Validation ---

// Validate compares a manifest against the current bundle. Checks run in
// a fixed order: hash match first (a stale manifest invalidates the
// meaning of everything downstream, but the later checks still run for
// diagnostic value), then frozen sections, coverage, and contract
// density.
func Validate(b *bundle.Bundle, m *manifest.Manifest, frozen map[string][]byte, cfg Config) *Report {
	r := &Report{Bundle: b.Name}

	checkHash(r, b, m)
	if stopEarly(r, cfg) {
		r.finalize()
		return r
	}

	checkFrozen(r, m, frozen)
	if stopEarly(r, cfg) {
		r.finalize()
		return r
	}

	checkCoverage(r, b, cfg)
	checkDensity(r, b, cfg)

	r.finalize()
	return r
}

func stopEarly(r *Report, cfg Config) bool {
	if cfg.StopOnFirstHigh && r.Highs > 0 {
		r.Stopped = true
		return true
	}
	return false
}

// checkHash is the primary drift signal: the manifest's bundle_hash must
// equal the live fingerprint. A mismatch is never silently auto-corrected.
func checkHash(r *Report, b *bundle.Bundle, m *manifest.Manifest) {
	if m.BundleHash == "" {
		r.add(Deviation{
			Kind:        KindMissingField,
			Severity:    SeverityHigh,
			Message:     "manifest carries no bundle_hash",
			Remediation: "regenerate the manifest with sdd_harden",
		})
		return
	}
	current := fingerprint.Fingerprint(b)
	if m.BundleHash != current {
		r.add(Deviation{
			Kind:     KindHashMismatch,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("manifest bundle_hash %s does not match current fingerprint %s",
				short(m.BundleHash), short(current)),
			Remediation: "the bundle drifted since hardening; review the changes, then regenerate the manifest",
		})
	}
}

// checkFrozen verifies every frozen section is byte-identical to its
// snapshot.
func checkFrozen(r *Report, m *manifest.Manifest, frozen map[string][]byte) {
	for _, section := range frozenSectionOrder(frozen) {
		snapshot := frozen[section]
		current, err := SectionBytes(m, section)
		if err != nil {
			r.add(Deviation{
				Kind:        KindMissingField,
				Severity:    SeverityHigh,
				Message:     fmt.Sprintf("frozen section %q no longer exists in the manifest", section),
				Remediation: "restore the section or explicitly unfreeze it",
			})
			continue
		}
		if string(current) != string(snapshot) {
			r.add(Deviation{
				Kind:        KindFrozenViolation,
				Severity:    SeverityHigh,
				Message:     fmt.Sprintf("frozen section %q was modified since it was frozen", section),
				Remediation: "revert the section to its frozen snapshot or explicitly unfreeze it",
			})
		}
	}
}

// checkCoverage measures the fraction of features with at least one
// story meeting the minimum acceptance-criteria count.
func checkCoverage(r *Report, b *bundle.Bundle, cfg Config) {
	if len(b.Features) == 0 {
		return
	}
	covered := 0
	for i := range b.Features {
		for j := range b.Features[i].Stories {
			if len(b.Features[i].Stories[j].Acceptance) >= cfg.MinAcceptance {
				covered++
				break
			}
		}
	}
	ratio := float64(covered) / float64(len(b.Features))
	if ratio >= cfg.CoverageThreshold {
		return
	}

	sev := SeverityMedium
	if cfg.CoverageThreshold-ratio < nearThreshold {
		sev = SeverityLow
	}
	r.add(Deviation{
		Kind:     KindCoverage,
		Severity: sev,
		Message: fmt.Sprintf("story coverage %.2f below threshold %.2f (%d of %d features covered)",
			ratio, cfg.CoverageThreshold, covered, len(b.Features)),
		Remediation: "author stories with acceptance criteria for the uncovered features",
	})
}

// checkDensity measures the fraction of features carrying at least one
// explicit invariant or contract reference.
func checkDensity(r *Report, b *bundle.Bundle, cfg Config) {
	if len(b.Features) == 0 {
		return
	}
	carrying := 0
	for i := range b.Features {
		if len(b.Features[i].Invariants) > 0 || len(b.Features[i].Contracts) > 0 {
			carrying++
		}
	}
	ratio := float64(carrying) / float64(len(b.Features))
	if ratio >= cfg.MinContractDensity {
		return
	}
	r.add(Deviation{
		Kind:     KindDensity,
		Severity: SeverityMedium,
		Message: fmt.Sprintf("contract density %.2f below minimum %.2f (%d of %d features carry invariants or contracts)",
			ratio, cfg.MinContractDensity, carrying, len(b.Features)),
		Remediation: "attach invariants or contract references to the bare features",
	})
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

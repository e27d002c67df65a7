package fingerprint

import (
	"strings"
	"testing"

	"github.com/HendryAvila/specguard/internal/bundle"
)

func testBundle() *bundle.Bundle {
	return &bundle.Bundle{
		Name: "checkout",
		Idea: bundle.Idea{
			Narrative:       "Let customers pay without friction.",
			TargetUsers:     []string{"shoppers"},
			ValueHypothesis: "Fewer abandoned carts.",
			Constraints:     []string{"PCI compliance"},
		},
		Features: []bundle.Feature{
			{
				Key:        "PAYMENT-PROCESSOR",
				Title:      "Payment Processor",
				Outcomes:   []string{"Cards are charged exactly once"},
				Confidence: 0.9,
				Invariants: []string{"idempotent charges"},
				Stories: []bundle.Story{
					{Key: "CHARGE-CARD", Title: "Charge card", Acceptance: []string{"declines surface an error"}, Confidence: 0.8},
				},
			},
			{Key: "CART", Title: "Cart", Confidence: 1.0},
		},
		Revision:  3,
		CreatedAt: "2026-03-01T00:00:00Z",
		UpdatedAt: "2026-03-10T00:00:00Z",
	}
}

func TestFingerprint_StableAcrossRuns(t *testing.T) {
	b := testBundle()
	if Fingerprint(b) != Fingerprint(b) {
		t.Error("fingerprint differs across runs on the same bundle")
	}
}

func TestFingerprint_IgnoresReviewMetadata(t *testing.T) {
	a := testBundle()
	b := testBundle()
	b.Revision = 99
	b.CreatedAt = "2020-01-01T00:00:00Z"
	b.UpdatedAt = "2020-01-02T00:00:00Z"
	b.Clarifications = []bundle.Clarification{
		{ID: "c1", Revision: 3, Section: "scope", Question: "Shipping?", Answer: "No.", CreatedAt: "2026-03-10T00:00:00Z"},
	}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("clarifications or timestamps leaked into the fingerprint")
	}
}

func TestFingerprint_SensitiveToContentEdits(t *testing.T) {
	base := Fingerprint(testBundle())

	edits := []struct {
		name   string
		mutate func(*bundle.Bundle)
	}{
		{"narrative", func(b *bundle.Bundle) { b.Idea.Narrative = "Different." }},
		{"feature title", func(b *bundle.Bundle) { b.Features[0].Title = "Payments" }},
		{"feature acceptance", func(b *bundle.Bundle) { b.Features[0].Acceptance = []string{"new criterion"} }},
		{"story acceptance", func(b *bundle.Bundle) {
			b.Features[0].Stories[0].Acceptance = append(b.Features[0].Stories[0].Acceptance, "extra")
		}},
		{"confidence", func(b *bundle.Bundle) { b.Features[0].Confidence = 0.8 }},
		{"draft flag", func(b *bundle.Bundle) { b.Features[1].Draft = true }},
		{"story points", func(b *bundle.Bundle) { b.Features[0].Stories[0].StoryPoints = 5 }},
		{"invariant", func(b *bundle.Bundle) { b.Features[0].Invariants = nil }},
	}
	for _, tt := range edits {
		t.Run(tt.name, func(t *testing.T) {
			b := testBundle()
			tt.mutate(b)
			if Fingerprint(b) == base {
				t.Errorf("edit %q did not change the fingerprint", tt.name)
			}
		})
	}
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := testBundle()
	b := testBundle()
	b.Features[0], b.Features[1] = b.Features[1], b.Features[0]

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("in-memory entity order leaked into the fingerprint")
	}
}

func TestFingerprint_NormalizesWhitespace(t *testing.T) {
	a := testBundle()
	b := testBundle()
	b.Idea.Narrative = "  Let customers pay\n   without friction.  "
	b.Features[0].Title = "Payment    Processor"

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("whitespace variation changed the fingerprint")
	}
}

func TestCanonical_ExcludesClarificationText(t *testing.T) {
	b := testBundle()
	b.Clarifications = []bundle.Clarification{
		{ID: "c1", Section: "scope", Question: "SENTINEL-QUESTION", Answer: "SENTINEL-ANSWER"},
	}
	data := string(Canonical(b))
	if strings.Contains(data, "SENTINEL") {
		t.Error("clarification text present in the canonical form")
	}
}

func TestFormatConfidence_FixedPrecision(t *testing.T) {
	if got := formatConfidence(0.5); got != "0.5000" {
		t.Errorf("formatConfidence(0.5) = %q", got)
	}
	if got := formatConfidence(1); got != "1.0000" {
		t.Errorf("formatConfidence(1) = %q", got)
	}
}

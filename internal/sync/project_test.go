package sync

import (
	"reflect"
	"strings"
	"testing"
)

func TestProjectBundle(t *testing.T) {
	b := seedBundle()
	out := ProjectBundle(b)

	if len(out) != 2 {
		t.Fatalf("artifacts = %d, want feature and story", len(out))
	}

	f, ok := out["PAYMENT-PROCESSOR"]
	if !ok {
		t.Fatal("feature artifact missing")
	}
	if f.Kind != KindFeature || f.Title != "Payment Processor" {
		t.Errorf("feature = %+v", f)
	}
	if f.Description != "Cards are charged exactly once" {
		t.Errorf("Description = %q", f.Description)
	}
	if f.UpdatedAt.Format("2006-01-02") != "2026-03-10" {
		t.Errorf("UpdatedAt = %s", f.UpdatedAt)
	}

	s, ok := out["PAYMENT-PROCESSOR/CHARGE-CARD"]
	if !ok {
		t.Fatal("story artifact missing")
	}
	if s.Kind != KindStory || s.Points != 3 {
		t.Errorf("story = %+v", s)
	}
	if !reflect.DeepEqual(s.Acceptance, []string{"declines surface an error"}) {
		t.Errorf("Acceptance = %v", s.Acceptance)
	}
}

func TestApplyArtifact_UpdatesFeature(t *testing.T) {
	b := seedBundle()
	err := applyArtifact(b, Artifact{
		ID: "x", Kind: KindFeature, EntityKey: "PAYMENT-PROCESSOR",
		Title:       "Payment Gateway",
		Description: "line one\nline two",
		Acceptance:  []string{"criterion"},
	}, false)
	if err != nil {
		t.Fatalf("applyArtifact failed: %v", err)
	}

	f := b.FindFeature("PAYMENT-PROCESSOR")
	if f.Title != "Payment Gateway" {
		t.Errorf("Title = %q", f.Title)
	}
	if !reflect.DeepEqual(f.Outcomes, []string{"line one", "line two"}) {
		t.Errorf("Outcomes = %v", f.Outcomes)
	}
	if !reflect.DeepEqual(f.Acceptance, []string{"criterion"}) {
		t.Errorf("Acceptance = %v", f.Acceptance)
	}
}

func TestApplyArtifact_UpdatesStory(t *testing.T) {
	b := seedBundle()
	err := applyArtifact(b, Artifact{
		ID: "x", Kind: KindStory, EntityKey: "PAYMENT-PROCESSOR/CHARGE-CARD",
		Title: "Charge the card", Points: 5,
	}, false)
	if err != nil {
		t.Fatalf("applyArtifact failed: %v", err)
	}

	s := b.FindFeature("PAYMENT-PROCESSOR").FindStory("CHARGE-CARD")
	if s.Title != "Charge the card" || s.StoryPoints != 5 {
		t.Errorf("story = %+v", s)
	}
}

func TestApplyArtifact_MissingWithoutCreate(t *testing.T) {
	b := seedBundle()
	err := applyArtifact(b, Artifact{ID: "x", EntityKey: "GHOST", Title: "G"}, false)
	if err == nil || !strings.Contains(err.Error(), "not in bundle") {
		t.Errorf("error = %v", err)
	}
	err = applyArtifact(b, Artifact{ID: "x", EntityKey: "PAYMENT-PROCESSOR/GHOST", Title: "G"}, false)
	if err == nil || !strings.Contains(err.Error(), "not in feature") {
		t.Errorf("error = %v", err)
	}
}

func TestApplyArtifact_CreateFeature(t *testing.T) {
	b := seedBundle()
	err := applyArtifact(b, Artifact{
		ID: "x", Kind: KindFeature, EntityKey: "BILLING-ENGINE", Title: "Billing Engine",
	}, true)
	if err != nil {
		t.Fatalf("applyArtifact failed: %v", err)
	}
	f := b.FindFeature("BILLING-ENGINE")
	if f == nil || !f.Draft {
		t.Fatalf("feature = %+v, want draft import", f)
	}
}

func TestApplyArtifact_CreateStoryWithPlaceholderParent(t *testing.T) {
	b := seedBundle()
	err := applyArtifact(b, Artifact{
		ID: "x", Kind: KindStory, EntityKey: "BILLING-ENGINE/SEND-INVOICE", Title: "Send invoice",
	}, true)
	if err != nil {
		t.Fatalf("applyArtifact failed: %v", err)
	}
	f := b.FindFeature("BILLING-ENGINE")
	if f == nil {
		t.Fatal("parent feature not created")
	}
	if f.Title != "Billing Engine" {
		t.Errorf("placeholder parent title = %q", f.Title)
	}
	if f.FindStory("SEND-INVOICE") == nil {
		t.Error("story not created")
	}
}

func TestApplyArtifact_EmptyEntityKey(t *testing.T) {
	b := seedBundle()
	if err := applyArtifact(b, Artifact{ID: "x"}, true); err == nil {
		t.Fatal("empty entity key accepted")
	}
}

func TestSplitLines(t *testing.T) {
	if got := splitLines("  a \n\n b\n"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("splitLines = %v", got)
	}
	if got := splitLines("  \n "); got != nil {
		t.Errorf("splitLines = %v, want nil", got)
	}
}

func TestHumanizeKey(t *testing.T) {
	if got := humanizeKey("PAYMENT-PROCESSOR"); got != "Payment Processor" {
		t.Errorf("humanizeKey = %q", got)
	}
	if got := humanizeKey("CART"); got != "Cart" {
		t.Errorf("humanizeKey = %q", got)
	}
}

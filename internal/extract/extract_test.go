package extract

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	return root
}

const paymentsGo = `// Package payments charges cards.
package payments

// Processor charges cards exactly once. Retries are idempotent.
type Processor struct{}

// Charge debits the card. Declines surface as errors.
func (p *Processor) Charge(amount int) error { return nil }

// Refund reverses a prior charge.
func (p *Processor) Refund(id string) error { return nil }

type internalCache struct{}
`

const paymentsTestGo = `package payments

import "testing"

func TestCharge(t *testing.T) {}
`

func TestExtract_FeatureFromDocumentedType(t *testing.T) {
	root := writeTree(t, map[string]string{
		"payments/payments.go":      paymentsGo,
		"payments/payments_test.go": paymentsTestGo,
	})

	res, err := Extract(context.Background(), DefaultOptions(root))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	var found bool
	for _, f := range res.Features {
		if f.Key == "PROCESSOR" {
			found = true
			if f.Title != "Processor" {
				t.Errorf("Title = %q", f.Title)
			}
			if !f.Draft {
				t.Error("extracted feature not a draft")
			}
			if len(f.Outcomes) == 0 {
				t.Error("doc comment did not become an outcome")
			}
			if len(f.Stories) != 2 {
				t.Errorf("Stories = %d, want 2 (Charge, Refund)", len(f.Stories))
			}
			if f.Confidence < 0.8 {
				t.Errorf("Confidence = %g, want high for documented, exported, tested type", f.Confidence)
			}
		}
		if f.Title == "Internal Cache" {
			t.Error("unexported, undocumented type survived the floor")
		}
	}
	if !found {
		t.Fatalf("PROCESSOR not extracted; features = %+v", res.Features)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	root := writeTree(t, map[string]string{
		"payments/payments.go":      paymentsGo,
		"payments/payments_test.go": paymentsTestGo,
		"cart/cart.go": `// Package cart holds items.
package cart

// Cart holds items between sessions.
type Cart struct{}

// Add puts an item in the cart.
func (c *Cart) Add(sku string) {}
`,
	})

	opts := DefaultOptions(root)
	first, err := Extract(context.Background(), opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	second, err := Extract(context.Background(), opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	first.Elapsed, second.Elapsed = 0, 0
	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over the same tree produced different results")
	}
}

func TestExtract_ConfidenceFloorDrops(t *testing.T) {
	root := writeTree(t, map[string]string{
		"payments/payments.go": paymentsGo,
	})

	opts := DefaultOptions(root)
	opts.ConfidenceFloor = 0.99
	res, err := Extract(context.Background(), opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Features) != 0 {
		t.Errorf("features above a 0.99 floor: %+v", res.Features)
	}
}

func TestExtract_ConfidenceWithinBounds(t *testing.T) {
	root := writeTree(t, map[string]string{
		"payments/payments.go":      paymentsGo,
		"payments/payments_test.go": paymentsTestGo,
	})
	opts := DefaultOptions(root)
	opts.ConfidenceFloor = 0
	res, err := Extract(context.Background(), opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for _, f := range res.Features {
		if f.Confidence < 0 || f.Confidence > 1 {
			t.Errorf("feature %s confidence %g out of [0,1]", f.Key, f.Confidence)
		}
		for _, s := range f.Stories {
			if s.Confidence < 0 || s.Confidence > 1 {
				t.Errorf("story %s confidence %g out of [0,1]", s.Key, s.Confidence)
			}
		}
	}
}

func TestExtract_IgnoreGlobs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"payments/payments.go": paymentsGo,
		"gen/schema.go": `package gen

// Schema is generated code.
type Schema struct{}

// Validate checks the schema.
func (s *Schema) Validate() error { return nil }
`,
	})

	opts := DefaultOptions(root)
	opts.IgnoreGlobs = []string{"gen/**"}
	res, err := Extract(context.Background(), opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for _, f := range res.Features {
		if f.Key == "SCHEMA" {
			t.Error("glob-ignored file produced a candidate")
		}
	}
	if res.FilesSkipped == 0 {
		t.Error("FilesSkipped not counted for ignored file")
	}
}

func TestExtract_EmptyTree(t *testing.T) {
	res, err := Extract(context.Background(), DefaultOptions(t.TempDir()))
	if err != nil {
		t.Fatalf("Extract on empty tree failed: %v", err)
	}
	if res.FilesAnalyzed != 0 || len(res.Features) != 0 {
		t.Errorf("empty tree produced output: %+v", res)
	}
}

func TestExtract_MissingRoot(t *testing.T) {
	res, err := Extract(context.Background(), DefaultOptions(filepath.Join(t.TempDir(), "nope")))
	if err != nil {
		t.Fatalf("Extract on missing root failed: %v", err)
	}
	if len(res.Features) != 0 {
		t.Errorf("missing root produced features: %+v", res.Features)
	}
}

func TestExtract_SequentialKeys(t *testing.T) {
	root := writeTree(t, map[string]string{
		"payments/payments.go":      paymentsGo,
		"payments/payments_test.go": paymentsTestGo,
	})
	opts := DefaultOptions(root)
	opts.KeyFormat = "sequential"
	res, err := Extract(context.Background(), opts)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Features) == 0 {
		t.Fatal("no features extracted")
	}
	if res.Features[0].Key != "FEATURE-001" {
		t.Errorf("Key = %q, want FEATURE-001", res.Features[0].Key)
	}
}

// --- humanizeIdent ---

func TestHumanizeIdent(t *testing.T) {
	tests := []struct{ in, want string }{
		{"PaymentProcessor", "Payment Processor"},
		{"chargeCard", "Charge Card"},
		{"handle_retry", "Handle retry"},
		{"parseURL", "Parse URL"},
		{"Cart", "Cart"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := humanizeIdent(tt.in); got != tt.want {
			t.Errorf("humanizeIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// --- firstSentence ---

func TestFirstSentence(t *testing.T) {
	got := firstSentence("Charges cards exactly once. Retries are idempotent.\n")
	if got != "Charges cards exactly once." {
		t.Errorf("firstSentence = %q", got)
	}
	if got := firstSentence("No trailing period here"); got != "No trailing period here" {
		t.Errorf("firstSentence = %q", got)
	}
}

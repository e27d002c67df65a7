package bundle

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/project")
	if cfg.DataDir != filepath.Join("/project", "sdd") {
		t.Errorf("DataDir = %s", cfg.DataDir)
	}
}

func TestNewSQLiteStore_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(Config{DataDir: filepath.Join(dir, "nested", "sdd")})
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	dbPath := filepath.Join(dir, "nested", "sdd", "specguard.db")
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

// --- Create / Get ---

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)

	idea := Idea{
		Narrative:       "Let customers pay without friction.",
		TargetUsers:     []string{"shoppers", "merchants"},
		ValueHypothesis: "Fewer abandoned carts.",
		Constraints:     []string{"PCI compliance"},
	}
	created, err := s.Create("checkout", idea)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Revision != 1 {
		t.Errorf("Revision = %d, want 1", created.Revision)
	}

	got, err := s.Get("checkout")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Idea.Narrative != idea.Narrative {
		t.Errorf("Narrative = %q", got.Idea.Narrative)
	}
	if len(got.Idea.TargetUsers) != 2 || got.Idea.TargetUsers[1] != "merchants" {
		t.Errorf("TargetUsers = %v", got.Idea.TargetUsers)
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("checkout", Idea{Narrative: "x"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.Create("checkout", Idea{Narrative: "y"}); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestCreate_EmptyName(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("", Idea{Narrative: "x"}); err == nil {
		t.Fatal("empty name accepted")
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

// --- List / Delete ---

func TestList_Sorted(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := s.Create(name, Idea{Narrative: "x"}); err != nil {
			t.Fatalf("Create %s failed: %v", name, err)
		}
	}
	names, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("List = %v, want %v", names, want)
		}
	}
}

func TestDelete_Cascades(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("checkout", Idea{Narrative: "x"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := s.Mutate("checkout", func(b *Bundle) error {
		b.Features = append(b.Features, Feature{Key: "CART", Title: "Cart", Confidence: 1})
		return nil
	}); err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	if err := s.Delete("checkout"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("checkout"); err == nil {
		t.Fatal("bundle still present after delete")
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM features`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("orphaned feature rows = %d", count)
	}
}

func TestDelete_NotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete("missing"); err == nil {
		t.Fatal("deleting a missing bundle succeeded")
	}
}

// --- Mutate ---

func TestMutate_PersistsAndBumpsRevision(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("checkout", Idea{Narrative: "x"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mutated, err := s.Mutate("checkout", func(b *Bundle) error {
		b.Features = append(b.Features, Feature{
			Key: "PAYMENT", Title: "Payment", Confidence: 0.9,
			Stories: []Story{{Key: "CHARGE", Title: "Charge", Confidence: 0.8}},
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if mutated.Revision != 2 {
		t.Errorf("Revision = %d, want 2", mutated.Revision)
	}

	got, err := s.Get("checkout")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	f := got.FindFeature("PAYMENT")
	if f == nil {
		t.Fatal("feature not persisted")
	}
	if f.FindStory("CHARGE") == nil {
		t.Error("story not persisted")
	}
}

func TestMutate_FnErrorAborts(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("checkout", Idea{Narrative: "x"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	boom := errors.New("boom")
	_, err := s.Mutate("checkout", func(b *Bundle) error {
		b.Features = append(b.Features, Feature{Key: "CART", Title: "Cart", Confidence: 1})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}

	got, _ := s.Get("checkout")
	if len(got.Features) != 0 {
		t.Error("aborted mutation left features behind")
	}
	if got.Revision != 1 {
		t.Errorf("Revision = %d, want 1", got.Revision)
	}
}

func TestMutate_ValidationFailureAborts(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("checkout", Idea{Narrative: "x"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := s.Mutate("checkout", func(b *Bundle) error {
		b.Features = append(b.Features, Feature{Key: "CART", Title: "Cart", Confidence: 7})
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("error = %v, want confidence rejection", err)
	}

	got, _ := s.Get("checkout")
	if len(got.Features) != 0 {
		t.Error("invalid mutation persisted")
	}
}

func TestMutate_SortsEntities(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("checkout", Idea{Narrative: "x"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := s.Mutate("checkout", func(b *Bundle) error {
		b.Features = append(b.Features,
			Feature{Key: "ZETA", Title: "Z", Confidence: 1},
			Feature{Key: "ALPHA", Title: "A", Confidence: 1},
		)
		return nil
	}); err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	got, _ := s.Get("checkout")
	if got.Features[0].Key != "ALPHA" {
		t.Errorf("features not sorted: first = %s", got.Features[0].Key)
	}
}

// --- AddClarification ---

func TestAddClarification(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("checkout", Idea{Narrative: "x"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	c, err := s.AddClarification("checkout", "scope", "Is shipping in scope?", "No.")
	if err != nil {
		t.Fatalf("AddClarification failed: %v", err)
	}
	if c.Revision != 1 {
		t.Errorf("Revision = %d, want 1", c.Revision)
	}
	if c.ID == "" {
		t.Error("clarification without ID")
	}

	got, err := s.Get("checkout")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Clarifications) != 1 {
		t.Fatalf("Clarifications = %d, want 1", len(got.Clarifications))
	}
	if got.Clarifications[0].Question != "Is shipping in scope?" {
		t.Errorf("Question = %q", got.Clarifications[0].Question)
	}
	// The log never bumps the bundle revision.
	if got.Revision != 1 {
		t.Errorf("bundle Revision = %d, want 1", got.Revision)
	}
}

func TestAddClarification_BundleNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddClarification("missing", "idea", "q", "a"); err == nil {
		t.Fatal("clarification on missing bundle accepted")
	}
}

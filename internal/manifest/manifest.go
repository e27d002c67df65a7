// Package manifest synthesizes and persists the WHY/WHAT/HOW manifest
// derived from a bundle snapshot.
//
// A manifest is bound to the bundle fingerprint at synthesis time and is
// immutable once written; the only change it ever sees is a superseding
// regeneration. Validation compares its bundle_hash against the live
// fingerprint; it never edits it.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/specguard/internal/bundle"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// --- Manifest shape ---

// Why captures intent: why the project exists and what constrains it.
type Why struct {
	Intent      string   `json:"intent" yaml:"intent"`
	Constraints []string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// Capability is one WHAT entry, one per feature, with its stories
// aggregated into the description rather than listed individually.
type Capability struct {
	Key         string `json:"key" yaml:"key"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Stories     int    `json:"stories" yaml:"stories"`
}

// How aggregates architecture narrative plus the invariants and
// contracts declared on features.
type How struct {
	Architecture string   `json:"architecture,omitempty" yaml:"architecture,omitempty"`
	Invariants   []string `json:"invariants,omitempty" yaml:"invariants,omitempty"`
	Contracts    []string `json:"contracts,omitempty" yaml:"contracts,omitempty"`
}

// Manifest is the derived WHY/WHAT/HOW document.
type Manifest struct {
	Bundle     string       `json:"bundle" yaml:"bundle"`
	BundleHash string       `json:"bundle_hash" yaml:"bundle_hash"`
	Why        Why          `json:"why" yaml:"why"`
	What       []Capability `json:"what" yaml:"what"`
	How        How          `json:"how" yaml:"how"`
	CreatedAt  string       `json:"created_at" yaml:"created_at"`
}

// --- Synthesis ---

// Synthesize derives a manifest from a bundle snapshot and its
// fingerprint. Pure apart from the timestamp: re-synthesizing from an
// unchanged bundle is byte-identical except created_at.
func Synthesize(b *bundle.Bundle, fp string) *Manifest {
	m := &Manifest{
		Bundle:     b.Name,
		BundleHash: fp,
		Why: Why{
			Intent:      b.Idea.Narrative,
			Constraints: append([]string(nil), b.Idea.Constraints...),
		},
		CreatedAt: timeNow().UTC().Format(time.RFC3339),
	}

	for i := range b.Features {
		f := &b.Features[i]
		m.What = append(m.What, Capability{
			Key:         f.Key,
			Title:       f.Title,
			Description: capabilityDescription(f),
			Stories:     len(f.Stories),
		})
		m.How.Invariants = append(m.How.Invariants, f.Invariants...)
		m.How.Contracts = append(m.How.Contracts, f.Contracts...)
	}
	m.How.Architecture = architectureNarrative(b)
	return m
}

// capabilityDescription folds a feature's outcomes and story titles into
// one capability-level description.
func capabilityDescription(f *bundle.Feature) string {
	var parts []string
	if len(f.Outcomes) > 0 {
		parts = append(parts, strings.Join(f.Outcomes, " "))
	}
	if len(f.Stories) > 0 {
		titles := make([]string, 0, len(f.Stories))
		for i := range f.Stories {
			titles = append(titles, f.Stories[i].Title)
		}
		parts = append(parts, "Covers: "+strings.Join(titles, ", ")+".")
	}
	return strings.Join(parts, " ")
}

// architectureNarrative summarizes the bundle's shape for the HOW
// section.
func architectureNarrative(b *bundle.Bundle) string {
	stories := 0
	for i := range b.Features {
		stories += len(b.Features[i].Stories)
	}
	if len(b.Features) == 0 {
		return "No features defined yet."
	}
	return fmt.Sprintf("%d features carrying %d stories. %s",
		len(b.Features), stories, b.Idea.ValueHypothesis)
}

// --- Persistence ---
//
// Manifests live as one YAML file per bundle under sdd/manifests/.
// Saving overwrites the previous manifest: that is the superseding
// regeneration, the only mutation a manifest supports.

// Store defines manifest persistence.
type Store interface {
	Save(projectRoot string, m *Manifest) error
	Load(projectRoot, bundleName string) (*Manifest, error)
}

// FileStore implements Store on the local filesystem.
type FileStore struct{}

// NewFileStore creates a filesystem-backed manifest store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Path returns the manifest file location for a bundle.
func Path(projectRoot, bundleName string) string {
	return filepath.Join(projectRoot, "sdd", "manifests", bundleName+".yaml")
}

// Save writes the manifest, creating parent directories as needed.
func (fs *FileStore) Save(projectRoot string, m *Manifest) error {
	path := Path(projectRoot, m.Bundle)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("manifest: create directory: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}

// Load reads a bundle's manifest. A missing manifest is an error; the
// caller decides whether that means "harden first".
func (fs *FileStore) Load(projectRoot, bundleName string) (*Manifest, error) {
	path := Path(projectRoot, bundleName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest for bundle %q not found", bundleName)
		}
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	return &m, nil
}

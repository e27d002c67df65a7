// Package bundle owns the authoritative project bundle: the idea, its
// features and stories, and the clarification log.
//
// The bundle is the single source of truth the rest of the engine works
// from. Extraction and adapter sync never mutate a bundle directly;
// they produce proposals that a merge step applies through the Store,
// so every observable bundle state went through validation and the
// per-bundle write lock.
//
// Design principles:
// - SRP: types, keys, canonical document, store, and merge in separate files
// - DIP: Store is an interface; tools and the sync engine depend on the abstraction
package bundle

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// --- Core data structures ---

// Idea is the narrative root of a bundle: why the project exists.
type Idea struct {
	Narrative       string   `json:"narrative" yaml:"narrative"`
	TargetUsers     []string `json:"target_users,omitempty" yaml:"target_users,omitempty"`
	ValueHypothesis string   `json:"value_hypothesis,omitempty" yaml:"value_hypothesis,omitempty"`
	Constraints     []string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// Story is a unit of deliverable work nested under a feature.
// Its key is unique within the parent feature only.
type Story struct {
	Key         string   `json:"key" yaml:"key"`
	Title       string   `json:"title" yaml:"title"`
	Acceptance  []string `json:"acceptance,omitempty" yaml:"acceptance,omitempty"`
	StoryPoints int      `json:"story_points,omitempty" yaml:"story_points,omitempty"`
	ValuePoints int      `json:"value_points,omitempty" yaml:"value_points,omitempty"`
	Confidence  float64  `json:"confidence" yaml:"confidence"`
	Draft       bool     `json:"draft,omitempty" yaml:"draft,omitempty"`
}

// Feature is a capability of the project, carrying its stories.
// Keys are unique and stable across the bundle's lifetime.
type Feature struct {
	Key        string   `json:"key" yaml:"key"`
	Title      string   `json:"title" yaml:"title"`
	Outcomes   []string `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
	Acceptance []string `json:"acceptance,omitempty" yaml:"acceptance,omitempty"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	Draft      bool     `json:"draft,omitempty" yaml:"draft,omitempty"`
	Invariants []string `json:"invariants,omitempty" yaml:"invariants,omitempty"`
	Contracts  []string `json:"contracts,omitempty" yaml:"contracts,omitempty"`
	Stories    []Story  `json:"stories,omitempty" yaml:"stories,omitempty"`
}

// Clarification is one question/answer pair in the append-only side log.
// Clarifications are keyed by bundle revision and tagged with the section
// they touched; they are never merged into feature or story fields, which
// keeps the fingerprint exclusion mechanical.
type Clarification struct {
	ID        string `json:"id" yaml:"id"`
	Revision  int    `json:"revision" yaml:"revision"`
	Section   string `json:"section" yaml:"section"`
	Question  string `json:"question" yaml:"question"`
	Answer    string `json:"answer,omitempty" yaml:"answer,omitempty"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
}

// Bundle is the authoritative specification for one project.
// Identity is the bundle name. Features are kept sorted by key so that
// in-memory order matches the canonical persisted form.
type Bundle struct {
	Name           string          `json:"name" yaml:"name"`
	Idea           Idea            `json:"idea" yaml:"idea"`
	Features       []Feature       `json:"features,omitempty" yaml:"features,omitempty"`
	Clarifications []Clarification `json:"clarifications,omitempty" yaml:"clarifications,omitempty"`
	Revision       int             `json:"revision" yaml:"revision"`
	CreatedAt      string          `json:"created_at" yaml:"created_at"`
	UpdatedAt      string          `json:"updated_at" yaml:"updated_at"`
}

// --- Confidence invariant ---

// ValidateConfidence returns an error unless 0.0 <= c <= 1.0.
func ValidateConfidence(c float64) error {
	if c < 0.0 || c > 1.0 {
		return fmt.Errorf("confidence %g out of range [0,1]", c)
	}
	return nil
}

// Validate checks the structural invariants of a feature and its stories:
// non-empty keys and titles, confidence bounds, and story-key uniqueness
// within the feature.
func (f *Feature) Validate() error {
	if strings.TrimSpace(f.Key) == "" {
		return fmt.Errorf("feature key must not be empty")
	}
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("feature %q: title must not be empty", f.Key)
	}
	if err := ValidateConfidence(f.Confidence); err != nil {
		return fmt.Errorf("feature %q: %w", f.Key, err)
	}
	seen := make(map[string]bool, len(f.Stories))
	for i := range f.Stories {
		s := &f.Stories[i]
		if strings.TrimSpace(s.Key) == "" {
			return fmt.Errorf("feature %q: story key must not be empty", f.Key)
		}
		if seen[s.Key] {
			return fmt.Errorf("feature %q: duplicate story key %q", f.Key, s.Key)
		}
		seen[s.Key] = true
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("feature %q: story %q: title must not be empty", f.Key, s.Key)
		}
		if err := ValidateConfidence(s.Confidence); err != nil {
			return fmt.Errorf("feature %q: story %q: %w", f.Key, s.Key, err)
		}
	}
	return nil
}

// --- Lookups ---

// FindFeature returns the feature with the given key, or nil.
func (b *Bundle) FindFeature(key string) *Feature {
	for i := range b.Features {
		if b.Features[i].Key == key {
			return &b.Features[i]
		}
	}
	return nil
}

// FindStory returns the story with the given key, or nil.
func (f *Feature) FindStory(key string) *Story {
	for i := range f.Stories {
		if f.Stories[i].Key == key {
			return &f.Stories[i]
		}
	}
	return nil
}

// SortEntities sorts features and their stories lexicographically by key.
// Stores call this after every write so insertion order never leaks into
// the persisted form or the fingerprint.
func (b *Bundle) SortEntities() {
	sort.Slice(b.Features, func(i, j int) bool {
		return b.Features[i].Key < b.Features[j].Key
	})
	for i := range b.Features {
		f := &b.Features[i]
		sort.Slice(f.Stories, func(a, c int) bool {
			return f.Stories[a].Key < f.Stories[c].Key
		})
	}
}

// Touch bumps the revision and refreshes the updated_at timestamp.
func (b *Bundle) Touch() {
	b.Revision++
	b.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
}

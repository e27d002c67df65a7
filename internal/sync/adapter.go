// Package sync reconciles bundle entities with an external planning
// tool's artifacts through a pluggable adapter.
//
// The engine is tool-agnostic: an adapter implements pull, push, diff,
// and a content-hash function for its own artifact shape, and the engine
// does three-way comparison against the last-known-good hashes recorded
// in the sync mappings. Conflicts are detected, resolved by a documented
// policy, and never silently dropped.
package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// --- Artifact model ---

// ArtifactKind distinguishes feature- and story-level artifacts.
type ArtifactKind string

const (
	KindFeature ArtifactKind = "feature"
	KindStory   ArtifactKind = "story"
)

// Artifact is the neutral shape the engine exchanges with adapters.
// EntityKey ties it to a bundle entity: the feature key, or
// "FEATURE-KEY/STORY-KEY" for stories.
type Artifact struct {
	ID          string       `json:"id" yaml:"id"`
	Kind        ArtifactKind `json:"kind" yaml:"kind"`
	EntityKey   string       `json:"entity_key" yaml:"entity_key"`
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Acceptance  []string     `json:"acceptance,omitempty" yaml:"acceptance,omitempty"`
	Points      int          `json:"points,omitempty" yaml:"points,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at" yaml:"updated_at"`
}

// FieldChange is one field-level difference between two artifacts.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// --- Adapter capability set ---

// Adapter is the capability set a tool integration must implement.
// Pull and Push must honor context cancellation and deadlines; the
// engine always calls them with a bounded timeout.
type Adapter interface {
	// Name identifies the adapter in logs and reports.
	Name() string
	// Pull fetches the current external artifacts.
	Pull(ctx context.Context) ([]Artifact, error)
	// Push writes artifacts to the external tool.
	Push(ctx context.Context, artifacts []Artifact) error
	// Diff lists field-level changes from a to b.
	Diff(a, b Artifact) []FieldChange
	// Hash computes the content hash of an artifact. The hash must
	// cover content fields only, never timestamps or IDs, so the same
	// content on both sides hashes equal.
	Hash(a Artifact) string
}

// --- Shared hashing and diffing ---
//
// Adapters are free to supply their own implementations; these cover
// the common case of the neutral artifact shape.

// contentFields is the canonical hashable projection of an artifact.
type contentFields struct {
	Kind        ArtifactKind `yaml:"kind"`
	EntityKey   string       `yaml:"entity_key"`
	Title       string       `yaml:"title"`
	Description string       `yaml:"description"`
	Acceptance  []string     `yaml:"acceptance"`
	Points      int          `yaml:"points"`
}

// ContentHash hashes an artifact's content fields: same content, same
// hash, regardless of ID or timestamps.
func ContentHash(a Artifact) string {
	data, err := yaml.Marshal(contentFields{
		Kind:        a.Kind,
		EntityKey:   a.EntityKey,
		Title:       a.Title,
		Description: a.Description,
		Acceptance:  a.Acceptance,
		Points:      a.Points,
	})
	if err != nil {
		panic(fmt.Sprintf("sync: hash marshal: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DiffArtifacts lists field-level changes from a to b.
func DiffArtifacts(a, b Artifact) []FieldChange {
	var changes []FieldChange
	if a.Title != b.Title {
		changes = append(changes, FieldChange{Field: "title", From: a.Title, To: b.Title})
	}
	if a.Description != b.Description {
		changes = append(changes, FieldChange{Field: "description", From: a.Description, To: b.Description})
	}
	if aj, bj := strings.Join(a.Acceptance, "\n"), strings.Join(b.Acceptance, "\n"); aj != bj {
		changes = append(changes, FieldChange{Field: "acceptance", From: aj, To: bj})
	}
	if a.Points != b.Points {
		changes = append(changes, FieldChange{
			Field: "points",
			From:  fmt.Sprintf("%d", a.Points),
			To:    fmt.Sprintf("%d", b.Points),
		})
	}
	return changes
}

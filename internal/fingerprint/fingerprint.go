// Package fingerprint computes the canonical content digest of a bundle.
//
// The digest covers the semantically meaningful fields only: the idea,
// the features, and their stories. The clarification log, revision
// counters, and timestamps are review metadata and are dropped before
// hashing, so answering a clarification never looks like drift.
//
// Canonicalization rules:
//  1. clarifications, revision, and timestamps are excluded entirely
//  2. feature and story keys are sorted lexicographically
//  3. whitespace in free-text fields is normalized (trimmed, runs collapsed)
//  4. confidence is rendered at fixed 4-decimal precision, never as a
//     locale- or float-formatting-dependent value
//
// Two bundles hash equal iff they are equal under these rules; any edit
// to idea, feature, or story content changes the digest.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/specguard/internal/bundle"
)

// --- Canonical shapes ---
//
// Separate structs rather than reusing bundle types: the canonical form
// must never accidentally grow a field when the model does.

type canonicalBundle struct {
	Name     string             `yaml:"name"`
	Idea     canonicalIdea      `yaml:"idea"`
	Features []canonicalFeature `yaml:"features"`
}

type canonicalIdea struct {
	Narrative       string   `yaml:"narrative"`
	TargetUsers     []string `yaml:"target_users"`
	ValueHypothesis string   `yaml:"value_hypothesis"`
	Constraints     []string `yaml:"constraints"`
}

type canonicalFeature struct {
	Key        string           `yaml:"key"`
	Title      string           `yaml:"title"`
	Outcomes   []string         `yaml:"outcomes"`
	Acceptance []string         `yaml:"acceptance"`
	Confidence string           `yaml:"confidence"`
	Draft      bool             `yaml:"draft"`
	Invariants []string         `yaml:"invariants"`
	Contracts  []string         `yaml:"contracts"`
	Stories    []canonicalStory `yaml:"stories"`
}

type canonicalStory struct {
	Key         string   `yaml:"key"`
	Title       string   `yaml:"title"`
	Acceptance  []string `yaml:"acceptance"`
	StoryPoints int      `yaml:"story_points"`
	ValuePoints int      `yaml:"value_points"`
	Confidence  string   `yaml:"confidence"`
	Draft       bool     `yaml:"draft"`
}

// Fingerprint returns the hex sha256 digest of the bundle's canonical
// serialization.
func Fingerprint(b *bundle.Bundle) string {
	data := Canonical(b)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Canonical returns the canonical serialization the digest is computed
// over. Exposed so tests and debugging output can inspect exactly what
// was hashed.
func Canonical(b *bundle.Bundle) []byte {
	cb := canonicalBundle{
		Name: normalizeText(b.Name),
		Idea: canonicalIdea{
			Narrative:       normalizeText(b.Idea.Narrative),
			TargetUsers:     normalizeList(b.Idea.TargetUsers),
			ValueHypothesis: normalizeText(b.Idea.ValueHypothesis),
			Constraints:     normalizeList(b.Idea.Constraints),
		},
	}

	features := make([]canonicalFeature, 0, len(b.Features))
	for i := range b.Features {
		f := &b.Features[i]
		cf := canonicalFeature{
			Key:        f.Key,
			Title:      normalizeText(f.Title),
			Outcomes:   normalizeList(f.Outcomes),
			Acceptance: normalizeList(f.Acceptance),
			Confidence: formatConfidence(f.Confidence),
			Draft:      f.Draft,
			Invariants: normalizeList(f.Invariants),
			Contracts:  normalizeList(f.Contracts),
		}
		stories := make([]canonicalStory, 0, len(f.Stories))
		for j := range f.Stories {
			st := &f.Stories[j]
			stories = append(stories, canonicalStory{
				Key:         st.Key,
				Title:       normalizeText(st.Title),
				Acceptance:  normalizeList(st.Acceptance),
				StoryPoints: st.StoryPoints,
				ValuePoints: st.ValuePoints,
				Confidence:  formatConfidence(st.Confidence),
				Draft:       st.Draft,
			})
		}
		sort.Slice(stories, func(a, c int) bool { return stories[a].Key < stories[c].Key })
		cf.Stories = stories
		features = append(features, cf)
	}
	sort.Slice(features, func(a, c int) bool { return features[a].Key < features[c].Key })
	cb.Features = features

	// yaml.Marshal of plain structs is deterministic: fields are emitted
	// in declaration order, strings are quoted consistently.
	data, err := yaml.Marshal(&cb)
	if err != nil {
		// Only reachable for unencodable values, which the canonical
		// shapes cannot contain.
		panic(fmt.Sprintf("fingerprint: canonical marshal: %v", err))
	}
	return data
}

// formatConfidence renders a confidence with fixed precision so the
// digest never depends on float formatting quirks.
func formatConfidence(c float64) string {
	return fmt.Sprintf("%.4f", c)
}

// normalizeText trims leading/trailing whitespace and collapses interior
// runs (including newlines) to single spaces.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeList(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, normalizeText(v))
	}
	return out
}

package bundle

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// --- Persisted document form ---
//
// The bundle's persisted form is a single YAML document: idea, features
// ordered by key with nested stories, and the append-only clarification
// log. This document is what external layers (reports, MCP resources,
// editors) consume, and its semantic portion is what the fingerprint
// engine canonicalizes.

// Document renders the bundle as its canonical YAML document.
// Features and stories are emitted in lexicographic key order regardless
// of in-memory insertion order.
func Document(b *Bundle) ([]byte, error) {
	copied := *b
	copied.Features = make([]Feature, len(b.Features))
	copy(copied.Features, b.Features)
	for i := range copied.Features {
		stories := make([]Story, len(copied.Features[i].Stories))
		copy(stories, copied.Features[i].Stories)
		copied.Features[i].Stories = stories
	}
	copied.SortEntities()

	out, err := yaml.Marshal(&copied)
	if err != nil {
		return nil, fmt.Errorf("bundle: marshal document: %w", err)
	}
	return out, nil
}

// ParseDocument decodes a bundle from its YAML document form.
func ParseDocument(data []byte) (*Bundle, error) {
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("bundle: parse document: %w", err)
	}
	b.SortEntities()
	return &b, nil
}

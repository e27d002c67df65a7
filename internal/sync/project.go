package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/specguard/internal/bundle"
)

// --- Bundle <-> artifact projection ---

// ProjectBundle maps every feature and story of a bundle into the flat
// artifact model adapters speak, keyed by entity key. Story artifacts
// use "FEATURE-KEY/STORY-KEY" composite keys so they round-trip even
// though story keys are only unique within their feature.
func ProjectBundle(b *bundle.Bundle) map[string]Artifact {
	updated, _ := time.Parse(time.RFC3339, b.UpdatedAt)

	out := make(map[string]Artifact)
	for i := range b.Features {
		f := &b.Features[i]
		out[f.Key] = Artifact{
			Kind:        KindFeature,
			EntityKey:   f.Key,
			Title:       f.Title,
			Description: strings.Join(f.Outcomes, "\n"),
			Acceptance:  append([]string(nil), f.Acceptance...),
			UpdatedAt:   updated,
		}
		for j := range f.Stories {
			s := &f.Stories[j]
			key := f.Key + "/" + s.Key
			out[key] = Artifact{
				Kind:       KindStory,
				EntityKey:  key,
				Title:      s.Title,
				Acceptance: append([]string(nil), s.Acceptance...),
				Points:     s.StoryPoints,
				UpdatedAt:  updated,
			}
		}
	}
	return out
}

// applyArtifact writes one artifact's content fields back onto the
// bundle entity its key names. With create set, a missing entity is
// added (bidirectional import); without it, a missing entity is an
// error because the mapping claims it exists.
func applyArtifact(b *bundle.Bundle, a Artifact, create bool) error {
	featureKey, storyKey, isStory := strings.Cut(a.EntityKey, "/")
	if featureKey == "" {
		return fmt.Errorf("artifact %s: empty entity key", a.ID)
	}

	f := b.FindFeature(featureKey)
	if f == nil {
		if !create {
			return fmt.Errorf("artifact %s: feature %q not in bundle", a.ID, featureKey)
		}
		b.Features = append(b.Features, bundle.Feature{Key: featureKey, Draft: true})
		f = &b.Features[len(b.Features)-1]
		if isStory {
			f.Title = humanizeKey(featureKey)
		}
	}

	if !isStory {
		f.Title = a.Title
		f.Outcomes = splitLines(a.Description)
		f.Acceptance = append([]string(nil), a.Acceptance...)
		return nil
	}

	s := f.FindStory(storyKey)
	if s == nil {
		if !create {
			return fmt.Errorf("artifact %s: story %q not in feature %q", a.ID, storyKey, featureKey)
		}
		f.Stories = append(f.Stories, bundle.Story{Key: storyKey, Draft: true})
		s = &f.Stories[len(f.Stories)-1]
	}
	s.Title = a.Title
	s.Acceptance = append([]string(nil), a.Acceptance...)
	s.StoryPoints = a.Points
	return nil
}

func splitLines(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// humanizeKey turns "PAYMENT-PROCESSOR" into "Payment Processor" for
// placeholder titles on imported parents.
func humanizeKey(key string) string {
	words := strings.Split(strings.ToLower(key), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

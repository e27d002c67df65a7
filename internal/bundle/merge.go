package bundle

// --- Proposal merge ---
//
// Extraction and adapter sync produce proposals, never direct mutations.
// The merge is append-only with respect to human work: entities a person
// has touched (draft flag cleared) only ever gain material, while
// machine-owned drafts may be replaced wholesale by a newer proposal.

// MergeResult reports what a proposal merge actually did.
type MergeResult struct {
	FeaturesAdded    int `json:"features_added"`
	FeaturesReplaced int `json:"features_replaced"`
	FeaturesSkipped  int `json:"features_skipped"`
	StoriesAdded     int `json:"stories_added"`
}

// MergeProposal folds proposed features into the bundle in place.
// Proposals must arrive in a stable order (extraction guarantees
// lexicographic path order) so disambiguated keys stay stable run to run.
func MergeProposal(b *Bundle, proposed []Feature) MergeResult {
	var res MergeResult

	alloc := NewKeyAllocator(KeyClassname, "FEATURE")
	for i := range b.Features {
		alloc.Reserve(b.Features[i].Key)
	}

	for i := range proposed {
		p := proposed[i]
		existing := b.FindFeature(p.Key)

		switch {
		case existing == nil:
			alloc.Reserve(p.Key)
			b.Features = append(b.Features, p)
			res.FeaturesAdded++
			res.StoriesAdded += len(p.Stories)

		case existing.Draft:
			// Machine-owned: newer extraction wins outright.
			p.Key = existing.Key
			*existing = p
			res.FeaturesReplaced++

		default:
			// Human-edited: only append what is missing.
			added := mergeIntoFeature(existing, &p)
			if added == 0 {
				res.FeaturesSkipped++
			}
			res.StoriesAdded += added
		}
	}

	b.SortEntities()
	return res
}

// mergeIntoFeature appends missing stories and missing list entries to a
// human-edited feature. Scalar fields are left alone. Returns the number
// of stories added.
func mergeIntoFeature(dst, src *Feature) int {
	dst.Outcomes = appendMissing(dst.Outcomes, src.Outcomes)
	dst.Acceptance = appendMissing(dst.Acceptance, src.Acceptance)
	dst.Invariants = appendMissing(dst.Invariants, src.Invariants)
	dst.Contracts = appendMissing(dst.Contracts, src.Contracts)

	added := 0
	for i := range src.Stories {
		st := src.Stories[i]
		if existing := dst.FindStory(st.Key); existing != nil {
			if existing.Draft {
				st.Key = existing.Key
				*existing = st
			}
			continue
		}
		dst.Stories = append(dst.Stories, st)
		added++
	}
	return added
}

func appendMissing(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range src {
		if !seen[v] {
			dst = append(dst, v)
			seen[v] = true
		}
	}
	return dst
}

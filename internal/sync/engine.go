package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/HendryAvila/specguard/internal/bundle"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// --- Sync mode ---

// Mode selects the sync direction policy.
type Mode string

const (
	// ModeOneWay treats the bundle as source of truth: bundle-side
	// changes push out, external-only artifacts are left alone.
	ModeOneWay Mode = "one-way"
	// ModeBidirectional syncs both directions and imports external-only
	// artifacts into the bundle.
	ModeBidirectional Mode = "bidirectional"
)

// ValidateMode returns an error if the mode is not recognized.
func ValidateMode(m Mode) error {
	if m != ModeOneWay && m != ModeBidirectional {
		return fmt.Errorf("invalid sync mode %q: must be one of: one-way, bidirectional", m)
	}
	return nil
}

// --- Conflict ---

// Conflict records a mapping whose two sides diverged from the same
// last-known-good. It is reported, never silently dropped; the engine
// applies the documented resolution policy and says which one it used.
type Conflict struct {
	EntityKey  string        `json:"entity_key"`
	ArtifactID string        `json:"artifact_id"`
	Changes    []FieldChange `json:"changes,omitempty"`
	// ResolvedBy is "timestamps" when field-level last-write-wins had a
	// usable ordering, or "external-fallback" when timestamps were
	// missing or equal and the external side won wholesale.
	ResolvedBy string `json:"resolved_by"`
}

// --- Engine ---

// Options configures a sync engine.
type Options struct {
	BundleName string
	Mode       Mode
	// Timeout bounds each external pull/push call. External I/O never
	// blocks a tick indefinitely.
	Timeout time.Duration
}

// DefaultOptions returns engine defaults for a bundle.
func DefaultOptions(bundleName string) Options {
	return Options{
		BundleName: bundleName,
		Mode:       ModeOneWay,
		Timeout:    10 * time.Second,
	}
}

// TickReport is the outcome of one sync tick.
type TickReport struct {
	Pushed    int        `json:"pushed"`
	Pulled    int        `json:"pulled"`
	Converged int        `json:"converged"`
	Unchanged int        `json:"unchanged"`
	Created   int        `json:"created"`
	Imported  int        `json:"imported"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
	Elapsed   time.Duration
}

// Engine drives the per-tick reconciliation between one bundle and one
// adapter.
type Engine struct {
	store   bundle.Store
	adapter Adapter
	state   StateStore
	opts    Options
}

// NewEngine wires a sync engine. The engine holds no per-tick state of
// its own; everything it needs to resume lives in the StateStore.
func NewEngine(store bundle.Store, adapter Adapter, state StateStore, opts Options) *Engine {
	if opts.Mode == "" {
		opts.Mode = ModeOneWay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Engine{store: store, adapter: adapter, state: state, opts: opts}
}

// pendingPull is one external-side change waiting to be applied to the
// bundle. Applications are batched into a single store mutation so a
// tick's merge is all-or-nothing.
type pendingPull struct {
	artifact Artifact
	create   bool
}

// Tick performs one full sync pass. Any error is recoverable: no
// partial state has been committed, and the next tick retries from the
// previous last-known-good.
func (e *Engine) Tick(ctx context.Context) (*TickReport, error) {
	start := timeNow()
	report := &TickReport{}

	pullCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	external, err := e.adapter.Pull(pullCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("pull from %s: %w", e.adapter.Name(), err)
	}
	externalByID := make(map[string]Artifact, len(external))
	for _, a := range external {
		externalByID[a.ID] = a
	}

	b, err := e.store.Get(e.opts.BundleName)
	if err != nil {
		return nil, err
	}
	bundleSide := ProjectBundle(b)

	state, err := e.state.Load(e.opts.BundleName, e.adapter.Name())
	if err != nil {
		return nil, err
	}

	var toPush []Artifact
	var toPull []pendingPull

	// Phase 1: walk existing mappings, three-way compare.
	for i := range state.Mappings {
		m := &state.Mappings[i]

		bundleArt, haveBundle := bundleSide[m.EntityKey]
		extArt, haveExternal := externalByID[m.ArtifactID]
		if haveExternal && extArt.EntityKey == "" {
			// Hand-edited task files may drop the key; the mapping is
			// authoritative for which entity this artifact is.
			extArt.EntityKey = m.EntityKey
		}

		bundleHash := ""
		if haveBundle {
			bundleHash = e.adapter.Hash(bundleArt)
		}
		externalHash := ""
		if haveExternal {
			externalHash = e.adapter.Hash(extArt)
		}

		bundleChanged := bundleHash != m.BundleHash
		externalChanged := externalHash != m.ExternalHash

		switch {
		case !bundleChanged && !externalChanged:
			report.Unchanged++

		case bundleChanged && !externalChanged:
			// Bundle is the writer; first sync always wins toward the
			// external side in one-way mode, and bidirectional mode has
			// the same outcome when only the bundle moved.
			if haveBundle {
				bundleArt.ID = m.ArtifactID
				toPush = append(toPush, bundleArt)
				m.BundleHash = bundleHash
				m.ExternalHash = bundleHash
				report.Pushed++
			}

		case !bundleChanged && externalChanged:
			if haveExternal {
				toPull = append(toPull, pendingPull{artifact: extArt})
				m.BundleHash = externalHash
				m.ExternalHash = externalHash
				report.Pulled++
			} else if haveBundle {
				// External side vanished: recreate it from the bundle
				// rather than propagate a deletion we cannot verify.
				bundleArt.ID = m.ArtifactID
				toPush = append(toPush, bundleArt)
				m.BundleHash = bundleHash
				m.ExternalHash = bundleHash
				report.Pushed++
			}

		case bundleHash == externalHash:
			// Both moved to identical content: converged, no conflict.
			m.BundleHash = bundleHash
			m.ExternalHash = externalHash
			report.Converged++

		case !haveBundle:
			// The bundle entity was removed while the external side
			// changed. There is no bundle content left to contest with,
			// so the external side wins and the entity is recreated.
			report.Conflicts = append(report.Conflicts, Conflict{
				EntityKey:  m.EntityKey,
				ArtifactID: m.ArtifactID,
				ResolvedBy: "external-fallback",
			})
			toPull = append(toPull, pendingPull{artifact: extArt, create: true})
			m.BundleHash = externalHash
			m.ExternalHash = externalHash
			report.Pulled++

		case !haveExternal:
			// The external artifact vanished while the bundle changed.
			// Recreate it from the bundle, same as the vanished-only case.
			bundleArt.ID = m.ArtifactID
			toPush = append(toPush, bundleArt)
			m.BundleHash = bundleHash
			m.ExternalHash = bundleHash
			report.Pushed++

		default:
			// Both moved, divergent content: conflict.
			merged, conflict := e.resolve(b, bundleArt, extArt)
			report.Conflicts = append(report.Conflicts, conflict)

			merged.ID = m.ArtifactID
			mergedHash := e.adapter.Hash(merged)
			toPush = append(toPush, merged)
			toPull = append(toPull, pendingPull{artifact: merged})
			m.BundleHash = mergedHash
			m.ExternalHash = mergedHash
		}
	}

	// Phase 2: entities and artifacts with no prior mapping.
	for _, key := range sortedKeys(bundleSide) {
		if state.find(key) != nil {
			continue
		}
		art := bundleSide[key]
		art.ID = artifactID(e.adapter.Name(), key)
		hash := e.adapter.Hash(art)
		toPush = append(toPush, art)
		state.Mappings = append(state.Mappings, Mapping{
			EntityKey:    key,
			ArtifactID:   art.ID,
			BundleHash:   hash,
			ExternalHash: hash,
		})
		report.Created++
	}

	if e.opts.Mode == ModeBidirectional {
		for _, a := range external {
			if state.findByArtifact(a.ID) != nil {
				continue
			}
			key := a.EntityKey
			if key == "" {
				key = bundle.ClassnameKey(a.Title)
			}
			if _, taken := bundleSide[key]; taken {
				continue // key already mapped to a different artifact
			}
			a.EntityKey = key
			hash := e.adapter.Hash(a)
			toPull = append(toPull, pendingPull{artifact: a, create: true})
			state.Mappings = append(state.Mappings, Mapping{
				EntityKey:    key,
				ArtifactID:   a.ID,
				BundleHash:   hash,
				ExternalHash: hash,
			})
			report.Imported++
		}
	}

	// Phase 3: commit. Push first; if the external side rejects, the
	// bundle and state are untouched and the next tick retries. The
	// bundle merge is a single mutation (all resolved mappings land or
	// none do) and the state file is saved last.
	if len(toPush) > 0 {
		pushCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
		err := e.adapter.Push(pushCtx, toPush)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("push to %s: %w", e.adapter.Name(), err)
		}
	}

	if len(toPull) > 0 {
		if _, err := e.store.Mutate(e.opts.BundleName, func(b *bundle.Bundle) error {
			for _, p := range toPull {
				if err := applyArtifact(b, p.artifact, p.create); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("apply pulled artifacts: %w", err)
		}
	}

	state.SyncedAt = timeNow().UTC().Format(time.RFC3339)
	if err := e.state.Save(state); err != nil {
		return nil, err
	}

	report.Elapsed = timeNow().Sub(start)
	return report, nil
}

// resolve applies the documented conflict policy: field-level
// last-write-wins keyed by each side's last-modified timestamp, falling
// back to "external wins" when timestamps are unavailable or equal.
func (e *Engine) resolve(b *bundle.Bundle, bundleArt, extArt Artifact) (Artifact, Conflict) {
	conflict := Conflict{
		EntityKey:  bundleArt.EntityKey,
		ArtifactID: extArt.ID,
		Changes:    e.adapter.Diff(bundleArt, extArt),
	}

	bundleTime := bundleArt.UpdatedAt
	if bundleTime.IsZero() {
		if t, err := time.Parse(time.RFC3339, b.UpdatedAt); err == nil {
			bundleTime = t
		}
	}
	extTime := extArt.UpdatedAt

	if bundleTime.IsZero() || extTime.IsZero() || bundleTime.Equal(extTime) {
		conflict.ResolvedBy = "external-fallback"
		merged := extArt
		merged.EntityKey = bundleArt.EntityKey
		return merged, conflict
	}

	conflict.ResolvedBy = "timestamps"
	newer, older := extArt, bundleArt
	if bundleTime.After(extTime) {
		newer, older = bundleArt, extArt
	}

	// Field-level: start from the older side and overlay every field
	// the newer side changed relative to it.
	merged := older
	for _, ch := range e.adapter.Diff(older, newer) {
		switch ch.Field {
		case "title":
			merged.Title = newer.Title
		case "description":
			merged.Description = newer.Description
		case "acceptance":
			merged.Acceptance = append([]string(nil), newer.Acceptance...)
		case "points":
			merged.Points = newer.Points
		}
	}
	merged.EntityKey = bundleArt.EntityKey
	merged.UpdatedAt = newer.UpdatedAt
	return merged, conflict
}

func artifactID(adapterName, entityKey string) string {
	return adapterName + ":" + strings.ToLower(strings.ReplaceAll(entityKey, "/", "."))
}

func sortedKeys(m map[string]Artifact) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

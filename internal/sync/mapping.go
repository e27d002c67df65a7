package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// --- Sync mappings ---

// Mapping is the bidirectional correspondence between one bundle entity
// and one external artifact, plus the content hash of each side observed
// at the last successful sync, the "last known good".
type Mapping struct {
	EntityKey    string `json:"entity_key"`
	ArtifactID   string `json:"artifact_id"`
	BundleHash   string `json:"bundle_hash"`
	ExternalHash string `json:"external_hash"`
}

// State is the persisted sync state for one bundle/adapter pair.
type State struct {
	Bundle   string    `json:"bundle"`
	Adapter  string    `json:"adapter"`
	Mappings []Mapping `json:"mappings,omitempty"`
	SyncedAt string    `json:"synced_at,omitempty"`
}

// find returns the mapping for an entity key, or nil.
func (s *State) find(entityKey string) *Mapping {
	for i := range s.Mappings {
		if s.Mappings[i].EntityKey == entityKey {
			return &s.Mappings[i]
		}
	}
	return nil
}

// findByArtifact returns the mapping for an artifact ID, or nil.
func (s *State) findByArtifact(id string) *Mapping {
	for i := range s.Mappings {
		if s.Mappings[i].ArtifactID == id {
			return &s.Mappings[i]
		}
	}
	return nil
}

// sortMappings keeps the persisted state diffable.
func (s *State) sortMappings() {
	sort.Slice(s.Mappings, func(i, j int) bool {
		return s.Mappings[i].EntityKey < s.Mappings[j].EntityKey
	})
}

// --- State persistence ---

// StateStore persists sync state between ticks.
type StateStore interface {
	Load(bundleName, adapterName string) (*State, error)
	Save(state *State) error
}

// FileStateStore implements StateStore as one JSON file per
// bundle/adapter pair under sdd/sync/.
type FileStateStore struct {
	projectRoot string
}

// NewFileStateStore creates a filesystem-backed state store rooted at
// the project root.
func NewFileStateStore(projectRoot string) *FileStateStore {
	return &FileStateStore{projectRoot: projectRoot}
}

func (fs *FileStateStore) path(bundleName, adapterName string) string {
	return filepath.Join(fs.projectRoot, "sdd", "sync", bundleName+"."+adapterName+".json")
}

// Load reads the sync state. A missing file yields fresh empty state,
// not an error; the first tick starts from nothing.
func (fs *FileStateStore) Load(bundleName, adapterName string) (*State, error) {
	path := fs.path(bundleName, adapterName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Bundle: bundleName, Adapter: adapterName}, nil
		}
		return nil, fmt.Errorf("sync: read state %s: %w", path, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("sync: parse state %s: %w", path, err)
	}
	return &state, nil
}

// Save writes the sync state, creating parent directories as needed.
func (fs *FileStateStore) Save(state *State) error {
	state.sortMappings()
	path := fs.path(state.Bundle, state.Adapter)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sync: create state dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("sync: marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("sync: write state %s: %w", path, err)
	}
	return nil
}

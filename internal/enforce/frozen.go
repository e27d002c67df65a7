package enforce

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/specguard/internal/manifest"
)

// --- Frozen sections ---
//
// A validation pass may freeze a manifest section; from then on the
// section must stay byte-identical to the frozen snapshot. Snapshots are
// one file per section under sdd/frozen/<bundle>/, so a reviewer can
// diff them directly.

// frozenSections are the named sections of a manifest that can freeze.
var frozenSections = map[string]bool{
	"why": true, "what": true, "how": true,
}

// SectionBytes returns the canonical serialization of one manifest
// section, used both when freezing and when checking.
func SectionBytes(m *manifest.Manifest, section string) ([]byte, error) {
	var v any
	switch section {
	case "why":
		v = m.Why
	case "what":
		v = m.What
	case "how":
		v = m.How
	default:
		return nil, fmt.Errorf("unknown manifest section %q", section)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize section %q: %w", section, err)
	}
	return data, nil
}

// frozenSectionOrder returns snapshot keys in stable order so reports
// list frozen violations deterministically.
func frozenSectionOrder(frozen map[string][]byte) []string {
	keys := make([]string, 0, len(frozen))
	for k := range frozen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FrozenStore persists frozen-section snapshots.
type FrozenStore interface {
	Freeze(projectRoot, bundleName, section string, m *manifest.Manifest) error
	Unfreeze(projectRoot, bundleName, section string) error
	Snapshots(projectRoot, bundleName string) (map[string][]byte, error)
}

// FileFrozenStore implements FrozenStore on the local filesystem.
type FileFrozenStore struct{}

// NewFileFrozenStore creates a filesystem-backed frozen store.
func NewFileFrozenStore() *FileFrozenStore {
	return &FileFrozenStore{}
}

func frozenDir(projectRoot, bundleName string) string {
	return filepath.Join(projectRoot, "sdd", "frozen", bundleName)
}

// Freeze snapshots one section of the given manifest.
func (fs *FileFrozenStore) Freeze(projectRoot, bundleName, section string, m *manifest.Manifest) error {
	if !frozenSections[section] {
		return fmt.Errorf("unknown manifest section %q: must be one of: why, what, how", section)
	}
	data, err := SectionBytes(m, section)
	if err != nil {
		return err
	}
	dir := frozenDir(projectRoot, bundleName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("enforce: create frozen dir: %w", err)
	}
	path := filepath.Join(dir, section+".snapshot")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("enforce: write snapshot %s: %w", path, err)
	}
	return nil
}

// Unfreeze removes a section's snapshot. Removing a snapshot that does
// not exist is not an error.
func (fs *FileFrozenStore) Unfreeze(projectRoot, bundleName, section string) error {
	path := filepath.Join(frozenDir(projectRoot, bundleName), section+".snapshot")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("enforce: remove snapshot %s: %w", path, err)
	}
	return nil
}

// Snapshots loads all frozen-section snapshots for a bundle. A missing
// directory means nothing is frozen.
func (fs *FileFrozenStore) Snapshots(projectRoot, bundleName string) (map[string][]byte, error) {
	dir := frozenDir(projectRoot, bundleName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("enforce: read frozen dir: %w", err)
	}

	snapshots := make(map[string][]byte)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snapshot") {
			continue
		}
		section := strings.TrimSuffix(e.Name(), ".snapshot")
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("enforce: read snapshot %s: %w", e.Name(), err)
		}
		snapshots[section] = data
	}
	return snapshots, nil
}

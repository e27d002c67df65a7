package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// --- Task-directory adapter ---

// taskFile is the on-disk shape of one external task: a single YAML
// file per artifact, the simplest tracker an adapter can speak.
type taskFile struct {
	ID          string   `yaml:"id"`
	Kind        string   `yaml:"kind"`
	EntityKey   string   `yaml:"entity_key,omitempty"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description,omitempty"`
	Acceptance  []string `yaml:"acceptance,omitempty"`
	Points      int      `yaml:"points,omitempty"`
	UpdatedAt   string   `yaml:"updated_at,omitempty"`
}

// TaskDirAdapter syncs against a directory of YAML task files, one per
// artifact. It exists both as a usable local tracker and as the
// reference adapter other integrations copy.
type TaskDirAdapter struct {
	dir string
}

// NewTaskDirAdapter returns an adapter rooted at dir. The directory is
// created on first push, not here.
func NewTaskDirAdapter(dir string) *TaskDirAdapter {
	return &TaskDirAdapter{dir: dir}
}

func (t *TaskDirAdapter) Name() string { return "taskdir" }

// Pull reads every *.yaml task in the directory, sorted by file name.
// A missing directory means an empty tracker, not an error.
func (t *TaskDirAdapter) Pull(ctx context.Context) ([]Artifact, error) {
	entries, err := os.ReadDir(t.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read task dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	artifacts := make([]Artifact, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(t.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read task %s: %w", name, err)
		}
		var tf taskFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("failed to parse task %s: %w", name, err)
		}
		if tf.ID == "" {
			tf.ID = strings.TrimSuffix(name, ".yaml")
		}
		a := Artifact{
			ID:          tf.ID,
			Kind:        ArtifactKind(tf.Kind),
			EntityKey:   tf.EntityKey,
			Title:       tf.Title,
			Description: tf.Description,
			Acceptance:  tf.Acceptance,
			Points:      tf.Points,
		}
		if a.Kind == "" {
			a.Kind = KindFeature
		}
		if tf.UpdatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, tf.UpdatedAt); err == nil {
				a.UpdatedAt = ts
			}
		}
		if a.UpdatedAt.IsZero() {
			if info, err := os.Stat(path); err == nil {
				a.UpdatedAt = info.ModTime().UTC()
			}
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// Push writes each artifact to <id>.yaml, creating the directory on
// first use. Writes go through a temp file and rename so a crashed
// push never leaves a half-written task behind.
func (t *TaskDirAdapter) Push(ctx context.Context, artifacts []Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create task dir: %w", err)
	}
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		tf := taskFile{
			ID:          a.ID,
			Kind:        string(a.Kind),
			EntityKey:   a.EntityKey,
			Title:       a.Title,
			Description: a.Description,
			Acceptance:  a.Acceptance,
			Points:      a.Points,
			UpdatedAt:   timeNow().UTC().Format(time.RFC3339),
		}
		data, err := yaml.Marshal(&tf)
		if err != nil {
			return fmt.Errorf("failed to marshal task %s: %w", a.ID, err)
		}
		path := filepath.Join(t.dir, taskFileName(a.ID))
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return fmt.Errorf("failed to write task %s: %w", a.ID, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("failed to write task %s: %w", a.ID, err)
		}
	}
	return nil
}

func (t *TaskDirAdapter) Diff(a, b Artifact) []FieldChange { return DiffArtifacts(a, b) }

func (t *TaskDirAdapter) Hash(a Artifact) string { return ContentHash(a) }

// taskFileName maps an artifact ID to a safe file name.
func taskFileName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String() + ".yaml"
}

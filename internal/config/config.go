// Package config owns the on-disk project configuration: which key
// format the project uses, the extraction and enforcement thresholds,
// and the sync cadence.
//
// Design principles:
// - SRP: config shape and persistence only; no engine logic
// - DIP: Store is an interface so tools can be tested with fakes
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/extract"
	syncengine "github.com/HendryAvila/specguard/internal/sync"
)

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// --- Constants ---

const (
	// SDDDir is the per-project state directory.
	SDDDir = "sdd"
	// ConfigFile is the project config file inside SDDDir.
	ConfigFile = "specguard.json"
	// Version written into new configs.
	Version = "0.1.0"
)

// --- Config shape ---

// ExtractConfig tunes the source scanner.
type ExtractConfig struct {
	EntryPoint      string          `json:"entry_point,omitempty"`
	ConfidenceFloor float64         `json:"confidence_floor"`
	IgnoreGlobs     []string        `json:"ignore_globs,omitempty"`
	Weights         extract.Weights `json:"weights"`
}

// EnforceConfig tunes the validator thresholds.
type EnforceConfig struct {
	CoverageThreshold  float64 `json:"coverage_threshold"`
	MinAcceptance      int     `json:"min_acceptance"`
	MinContractDensity float64 `json:"min_contract_density"`
	StopOnFirstHigh    bool    `json:"stop_on_first_high,omitempty"`
}

// SyncConfig tunes the adapter sync engine.
type SyncConfig struct {
	Mode            syncengine.Mode `json:"mode"`
	TaskDir         string          `json:"task_dir,omitempty"`
	IntervalSeconds int             `json:"interval_seconds"`
	TimeoutSeconds  int             `json:"timeout_seconds"`
}

// ProjectConfig is the persisted configuration for one project.
type ProjectConfig struct {
	Name      string           `json:"name"`
	Version   string           `json:"version"`
	KeyFormat bundle.KeyFormat `json:"key_format"`
	Extract   ExtractConfig    `json:"extract"`
	Enforce   EnforceConfig    `json:"enforce"`
	Sync      SyncConfig       `json:"sync"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

// NewProjectConfig returns a config with every knob at its documented
// default.
func NewProjectConfig(name string) *ProjectConfig {
	now := timeNow().UTC().Format(time.RFC3339)
	return &ProjectConfig{
		Name:      name,
		Version:   Version,
		KeyFormat: bundle.KeyClassname,
		Extract: ExtractConfig{
			ConfidenceFloor: 0.5,
			Weights:         extract.DefaultWeights(),
		},
		Enforce: EnforceConfig{
			CoverageThreshold:  0.8,
			MinAcceptance:      1,
			MinContractDensity: 0.5,
		},
		Sync: SyncConfig{
			Mode:            syncengine.ModeOneWay,
			IntervalSeconds: 5,
			TimeoutSeconds:  10,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the cross-field invariants a hand-edited config can
// break.
func (c *ProjectConfig) Validate() error {
	if err := bundle.ValidateKeyFormat(c.KeyFormat); err != nil {
		return err
	}
	if err := bundle.ValidateConfidence(c.Extract.ConfidenceFloor); err != nil {
		return fmt.Errorf("extract.confidence_floor: %w", err)
	}
	if c.Enforce.CoverageThreshold < 0 || c.Enforce.CoverageThreshold > 1 {
		return fmt.Errorf("enforce.coverage_threshold %g out of range [0,1]", c.Enforce.CoverageThreshold)
	}
	if c.Enforce.MinContractDensity < 0 || c.Enforce.MinContractDensity > 1 {
		return fmt.Errorf("enforce.min_contract_density %g out of range [0,1]", c.Enforce.MinContractDensity)
	}
	if c.Enforce.MinAcceptance < 0 {
		return fmt.Errorf("enforce.min_acceptance must not be negative")
	}
	if err := syncengine.ValidateMode(c.Sync.Mode); err != nil {
		return err
	}
	if c.Sync.IntervalSeconds <= 0 {
		return fmt.Errorf("sync.interval_seconds must be positive")
	}
	if c.Sync.TimeoutSeconds <= 0 {
		return fmt.Errorf("sync.timeout_seconds must be positive")
	}
	return nil
}

// Interval returns the sync cadence as a duration.
func (c *ProjectConfig) Interval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

// Timeout returns the per-call external I/O bound as a duration.
func (c *ProjectConfig) Timeout() time.Duration {
	return time.Duration(c.Sync.TimeoutSeconds) * time.Second
}

// --- Path helpers ---

// SDDPath returns the project state directory for a project root.
func SDDPath(projectRoot string) string {
	return filepath.Join(projectRoot, SDDDir)
}

// ConfigPath returns the config file path for a project root.
func ConfigPath(projectRoot string) string {
	return filepath.Join(projectRoot, SDDDir, ConfigFile)
}

// Exists reports whether a project has been initialized.
func Exists(projectRoot string) bool {
	_, err := os.Stat(ConfigPath(projectRoot))
	return err == nil
}

// --- Store ---

// Store abstracts config persistence.
type Store interface {
	Load(projectRoot string) (*ProjectConfig, error)
	// LoadOrDefault falls back to defaults for an uninitialized project.
	LoadOrDefault(projectRoot, name string) (*ProjectConfig, error)
	Save(projectRoot string, cfg *ProjectConfig) error
}

// FileStore persists the config as JSON under sdd/.
type FileStore struct{}

// NewFileStore returns a file-backed config store.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Load reads and validates the project config. A missing file is an
// error ("not initialized") so callers can distinguish it from a
// corrupt one; use LoadOrDefault when defaults are acceptable.
func (s *FileStore) Load(projectRoot string) (*ProjectConfig, error) {
	data, err := os.ReadFile(ConfigPath(projectRoot))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("project not initialized: no %s in %s", ConfigFile, SDDPath(projectRoot))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg ProjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFile, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads the project config, falling back to defaults for
// an uninitialized project. Corrupt or invalid files still fail.
func (s *FileStore) LoadOrDefault(projectRoot, name string) (*ProjectConfig, error) {
	cfg, err := s.Load(projectRoot)
	if err != nil {
		if !Exists(projectRoot) {
			return NewProjectConfig(name), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Save validates, refreshes UpdatedAt, and writes the config, creating
// sdd/ if needed.
func (s *FileStore) Save(projectRoot string, cfg *ProjectConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(SDDPath(projectRoot), 0o755); err != nil {
		return fmt.Errorf("failed to create sdd directory: %w", err)
	}
	cfg.UpdatedAt = timeNow().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(projectRoot), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

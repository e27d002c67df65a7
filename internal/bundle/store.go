package bundle

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// --- Config ---

// Config holds bundle store configuration.
type Config struct {
	// DataDir is where the SQLite database lives.
	DataDir string
}

// DefaultConfig returns the default store configuration, rooted at the
// given project root (sdd/ subdirectory, like the rest of the pipeline
// artifacts).
func DefaultConfig(projectRoot string) Config {
	return Config{DataDir: filepath.Join(projectRoot, "sdd")}
}

// --- Store interface ---

// Store defines bundle persistence. Abstracted for testability (DIP);
// the sync engine and MCP tools depend on this, not on SQLite.
type Store interface {
	// Create registers a new bundle. Fails if the name is taken.
	Create(name string, idea Idea) (*Bundle, error)
	// Get loads a bundle snapshot by name.
	Get(name string) (*Bundle, error)
	// List returns all bundle names, sorted.
	List() ([]string, error)
	// Delete removes a bundle and everything under it. Explicit removal
	// is the only way a bundle dies.
	Delete(name string) error
	// Mutate runs fn against the current bundle state under the
	// per-bundle write lock and persists the result atomically.
	// fn returning an error aborts the write with no partial state.
	Mutate(name string, fn func(*Bundle) error) (*Bundle, error)
	// AddClarification appends to the clarification log. The entry is
	// tagged with the current bundle revision; it never changes the
	// bundle's semantic content or its fingerprint.
	AddClarification(name, section, question, answer string) (*Clarification, error)
	Close() error
}

// --- SQLiteStore ---

// SQLiteStore implements Store on SQLite with WAL mode, following the
// same setup as the rest of the toolchain's persistent state.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config

	mu    sync.Mutex // guards locks map
	locks map[string]*sync.Mutex
}

// NewSQLiteStore opens (creating if needed) the bundle database and runs
// migrations.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("bundle: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "specguard.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("bundle: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("bundle: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, cfg: cfg, locks: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("bundle: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS bundles (
			name             TEXT PRIMARY KEY,
			idea_narrative   TEXT NOT NULL,
			idea_users       TEXT,
			idea_value       TEXT,
			idea_constraints TEXT,
			revision         INTEGER NOT NULL DEFAULT 1,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS features (
			bundle     TEXT NOT NULL,
			key        TEXT NOT NULL,
			title      TEXT NOT NULL,
			outcomes   TEXT,
			acceptance TEXT,
			confidence REAL NOT NULL,
			draft      INTEGER NOT NULL DEFAULT 0,
			invariants TEXT,
			contracts  TEXT,
			PRIMARY KEY (bundle, key),
			FOREIGN KEY (bundle) REFERENCES bundles(name) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS stories (
			bundle       TEXT NOT NULL,
			feature_key  TEXT NOT NULL,
			key          TEXT NOT NULL,
			title        TEXT NOT NULL,
			acceptance   TEXT,
			story_points INTEGER NOT NULL DEFAULT 0,
			value_points INTEGER NOT NULL DEFAULT 0,
			confidence   REAL NOT NULL,
			draft        INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (bundle, feature_key, key),
			FOREIGN KEY (bundle) REFERENCES bundles(name) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS clarifications (
			id         TEXT PRIMARY KEY,
			bundle     TEXT NOT NULL,
			revision   INTEGER NOT NULL,
			section    TEXT NOT NULL,
			question   TEXT NOT NULL,
			answer     TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (bundle) REFERENCES bundles(name) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_features_bundle  ON features(bundle);
		CREATE INDEX IF NOT EXISTS idx_stories_bundle   ON stories(bundle, feature_key);
		CREATE INDEX IF NOT EXISTS idx_clarif_bundle    ON clarifications(bundle, revision);
	`
	_, err := s.db.Exec(schema)
	return err
}

// bundleLock returns the advisory write lock for one bundle name.
// Mutations hold it for the whole read-modify-write so an interactive
// edit and a watch-mode sync can't race each other to a lost update.
func (s *SQLiteStore) bundleLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// --- JSON column helpers ---

func marshalList(list []string) string {
	if len(list) == 0 {
		return ""
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func unmarshalList(data string) []string {
	if data == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil
	}
	return list
}

// --- Store implementation ---

// Create registers a new bundle with the given idea.
func (s *SQLiteStore) Create(name string, idea Idea) (*Bundle, error) {
	if name == "" {
		return nil, fmt.Errorf("bundle: name must not be empty")
	}
	now := timeNow().UTC().Format(time.RFC3339)

	_, err := s.db.Exec(`
		INSERT INTO bundles (name, idea_narrative, idea_users, idea_value, idea_constraints, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		name, idea.Narrative, marshalList(idea.TargetUsers), idea.ValueHypothesis,
		marshalList(idea.Constraints), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("bundle: create %q: %w", name, err)
	}

	return &Bundle{
		Name:      name,
		Idea:      idea,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get loads a full bundle snapshot.
func (s *SQLiteStore) Get(name string) (*Bundle, error) {
	b := &Bundle{Name: name}
	var users, constraints string
	err := s.db.QueryRow(`
		SELECT idea_narrative, idea_users, idea_value, idea_constraints, revision, created_at, updated_at
		FROM bundles WHERE name = ?`, name,
	).Scan(&b.Idea.Narrative, &users, &b.Idea.ValueHypothesis, &constraints,
		&b.Revision, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bundle %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("bundle: load %q: %w", name, err)
	}
	b.Idea.TargetUsers = unmarshalList(users)
	b.Idea.Constraints = unmarshalList(constraints)

	if err := s.loadFeatures(b); err != nil {
		return nil, err
	}
	if err := s.loadClarifications(b); err != nil {
		return nil, err
	}
	b.SortEntities()
	return b, nil
}

func (s *SQLiteStore) loadFeatures(b *Bundle) error {
	rows, err := s.db.Query(`
		SELECT key, title, outcomes, acceptance, confidence, draft, invariants, contracts
		FROM features WHERE bundle = ? ORDER BY key`, b.Name)
	if err != nil {
		return fmt.Errorf("bundle: load features: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f Feature
		var outcomes, acceptance, invariants, contracts string
		var draft int
		if err := rows.Scan(&f.Key, &f.Title, &outcomes, &acceptance, &f.Confidence,
			&draft, &invariants, &contracts); err != nil {
			return fmt.Errorf("bundle: scan feature: %w", err)
		}
		f.Outcomes = unmarshalList(outcomes)
		f.Acceptance = unmarshalList(acceptance)
		f.Invariants = unmarshalList(invariants)
		f.Contracts = unmarshalList(contracts)
		f.Draft = draft != 0
		b.Features = append(b.Features, f)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("bundle: iterate features: %w", err)
	}

	for i := range b.Features {
		if err := s.loadStories(b.Name, &b.Features[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) loadStories(bundleName string, f *Feature) error {
	rows, err := s.db.Query(`
		SELECT key, title, acceptance, story_points, value_points, confidence, draft
		FROM stories WHERE bundle = ? AND feature_key = ? ORDER BY key`, bundleName, f.Key)
	if err != nil {
		return fmt.Errorf("bundle: load stories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st Story
		var acceptance string
		var draft int
		if err := rows.Scan(&st.Key, &st.Title, &acceptance, &st.StoryPoints,
			&st.ValuePoints, &st.Confidence, &draft); err != nil {
			return fmt.Errorf("bundle: scan story: %w", err)
		}
		st.Acceptance = unmarshalList(acceptance)
		st.Draft = draft != 0
		f.Stories = append(f.Stories, st)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadClarifications(b *Bundle) error {
	rows, err := s.db.Query(`
		SELECT id, revision, section, question, answer, created_at
		FROM clarifications WHERE bundle = ? ORDER BY created_at, id`, b.Name)
	if err != nil {
		return fmt.Errorf("bundle: load clarifications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Clarification
		if err := rows.Scan(&c.ID, &c.Revision, &c.Section, &c.Question, &c.Answer, &c.CreatedAt); err != nil {
			return fmt.Errorf("bundle: scan clarification: %w", err)
		}
		b.Clarifications = append(b.Clarifications, c)
	}
	return rows.Err()
}

// List returns all bundle names in lexicographic order.
func (s *SQLiteStore) List() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM bundles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("bundle: list: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("bundle: scan name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Delete removes a bundle; foreign keys cascade to features, stories,
// and clarifications.
func (s *SQLiteStore) Delete(name string) error {
	lock := s.bundleLock(name)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.Exec(`DELETE FROM bundles WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("bundle: delete %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("bundle %q not found", name)
	}
	return nil
}

// Mutate performs a read-modify-write under the bundle's advisory lock.
// The modified bundle is validated, re-sorted, revision-bumped, and
// written back in a single transaction: either everything lands or
// nothing does.
func (s *SQLiteStore) Mutate(name string, fn func(*Bundle) error) (*Bundle, error) {
	lock := s.bundleLock(name)
	lock.Lock()
	defer lock.Unlock()

	b, err := s.Get(name)
	if err != nil {
		return nil, err
	}

	if err := fn(b); err != nil {
		return nil, err
	}
	for i := range b.Features {
		if err := b.Features[i].Validate(); err != nil {
			return nil, fmt.Errorf("bundle %q: %w", name, err)
		}
	}
	b.SortEntities()
	b.Touch()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("bundle: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE bundles
		SET idea_narrative = ?, idea_users = ?, idea_value = ?, idea_constraints = ?,
		    revision = ?, updated_at = ?
		WHERE name = ?`,
		b.Idea.Narrative, marshalList(b.Idea.TargetUsers), b.Idea.ValueHypothesis,
		marshalList(b.Idea.Constraints), b.Revision, b.UpdatedAt, name,
	); err != nil {
		return nil, fmt.Errorf("bundle: update %q: %w", name, err)
	}

	// Rewrite the entity rows wholesale. Bundles are small (tens of
	// features); correctness of the snapshot beats delta updates.
	if _, err := tx.Exec(`DELETE FROM features WHERE bundle = ?`, name); err != nil {
		return nil, fmt.Errorf("bundle: clear features: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM stories WHERE bundle = ?`, name); err != nil {
		return nil, fmt.Errorf("bundle: clear stories: %w", err)
	}

	for i := range b.Features {
		f := &b.Features[i]
		if _, err := tx.Exec(`
			INSERT INTO features (bundle, key, title, outcomes, acceptance, confidence, draft, invariants, contracts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			name, f.Key, f.Title, marshalList(f.Outcomes), marshalList(f.Acceptance),
			f.Confidence, boolInt(f.Draft), marshalList(f.Invariants), marshalList(f.Contracts),
		); err != nil {
			return nil, fmt.Errorf("bundle: insert feature %q: %w", f.Key, err)
		}
		for j := range f.Stories {
			st := &f.Stories[j]
			if _, err := tx.Exec(`
				INSERT INTO stories (bundle, feature_key, key, title, acceptance, story_points, value_points, confidence, draft)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				name, f.Key, st.Key, st.Title, marshalList(st.Acceptance),
				st.StoryPoints, st.ValuePoints, st.Confidence, boolInt(st.Draft),
			); err != nil {
				return nil, fmt.Errorf("bundle: insert story %q/%q: %w", f.Key, st.Key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("bundle: commit %q: %w", name, err)
	}
	return b, nil
}

// AddClarification appends a question/answer pair to the side log.
func (s *SQLiteStore) AddClarification(name, section, question, answer string) (*Clarification, error) {
	lock := s.bundleLock(name)
	lock.Lock()
	defer lock.Unlock()

	var revision int
	err := s.db.QueryRow(`SELECT revision FROM bundles WHERE name = ?`, name).Scan(&revision)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bundle %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("bundle: load revision: %w", err)
	}

	c := &Clarification{
		ID:        uuid.NewString(),
		Revision:  revision,
		Section:   section,
		Question:  question,
		Answer:    answer,
		CreatedAt: timeNow().UTC().Format(time.RFC3339Nano),
	}
	if _, err := s.db.Exec(`
		INSERT INTO clarifications (id, bundle, revision, section, question, answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, name, c.Revision, c.Section, c.Question, c.Answer, c.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("bundle: add clarification: %w", err)
	}
	return c, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

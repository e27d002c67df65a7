// Package extract derives feature and story candidates from a source
// tree with calibrated confidence, plus a module dependency graph.
//
// Extraction is read-only and deterministic: a fixed tree and fixed
// options produce byte-identical output across runs. Files are visited
// in lexicographic path order; parsing may fan out across goroutines but
// results are re-sorted by path before candidates are keyed, so
// concurrency never leaks into the output.
//
// Candidates scoring below the confidence floor are dropped entirely;
// they do not appear tagged as low-confidence.
package extract

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/specguard/internal/bundle"
)

// --- Options ---

// Options configures one extraction run.
type Options struct {
	// Root is the source tree to scan.
	Root string
	// EntryPoint optionally narrows the scan to a subpath of Root.
	EntryPoint string
	// ConfidenceFloor drops candidates scoring below it. Default 0.5.
	ConfidenceFloor float64
	// KeyFormat selects classname-derived or sequential keys.
	KeyFormat bundle.KeyFormat
	// IgnoreGlobs are doublestar patterns (relative to Root) excluded
	// from the walk, in addition to the built-in ignore set.
	IgnoreGlobs []string
	// Weights tunes the confidence scoring combination.
	Weights Weights
}

// DefaultOptions returns extraction defaults for a root path.
func DefaultOptions(root string) Options {
	return Options{
		Root:            root,
		ConfidenceFloor: 0.5,
		KeyFormat:       bundle.KeyClassname,
		Weights:         DefaultWeights(),
	}
}

// ignoreDirs are directories skipped during tree walks: build outputs,
// caches, VCS dirs, and dependency directories.
var ignoreDirs = map[string]bool{
	"node_modules": true, ".git": true, "__pycache__": true,
	"vendor": true, "dist": true, "build": true, "target": true,
	"venv": true, ".venv": true, ".tox": true, ".mypy_cache": true,
	".idea": true, ".vscode": true, "coverage": true,
	".cache": true, ".terraform": true, "testdata": true,
}

// maxFileSize caps how large a source file we parse (512KB). Generated
// files beyond that carry no design signal worth the cost.
const maxFileSize = 512 * 1024

// --- Result ---

// Result is the output of one extraction run: a bundle-shaped candidate
// set plus the dependency graph and scan accounting for reporting.
type Result struct {
	Features      []bundle.Feature `json:"features"`
	Graph         DependencyGraph  `json:"graph"`
	FilesAnalyzed int              `json:"files_analyzed"`
	FilesSkipped  int              `json:"files_skipped"`
	Elapsed       time.Duration    `json:"elapsed"`
}

// --- Intermediate representation ---
//
// Both language analyzers produce fileUnits; candidate assembly and
// scoring are language-independent from there.

// fileUnit is one parsed source file.
type fileUnit struct {
	Path    string // relative to Root, slash-separated
	Module  string // package (Go) or module path (Python)
	Imports []string
	Types   []typeDecl
	Funcs   []funcDecl // top-level functions outside any type
	HasTest bool       // set later from sibling test files
}

// typeDecl is a type or class declaration, a feature candidate.
type typeDecl struct {
	Name     string
	Doc      string
	Exported bool
	Methods  []funcDecl
}

// funcDecl is a function or method, a story candidate.
type funcDecl struct {
	Name     string
	Doc      string
	Exported bool
	Params   []string
}

// --- Extraction ---

// Extract scans the tree and produces feature/story candidates with a
// dependency graph. An unreadable or empty tree yields an empty Result,
// never an error: absence of signal is not a failure.
func Extract(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	res := &Result{}

	if opts.ConfidenceFloor < 0 || opts.ConfidenceFloor > 1 {
		opts.ConfidenceFloor = 0.5
	}
	if opts.KeyFormat == "" {
		opts.KeyFormat = bundle.KeyClassname
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}

	root := opts.Root
	if opts.EntryPoint != "" {
		root = filepath.Join(root, opts.EntryPoint)
	}

	paths, skipped := collectPaths(root, opts.IgnoreGlobs)
	res.FilesSkipped = skipped
	if len(paths) == 0 {
		res.Elapsed = time.Since(start)
		return res, nil
	}

	units := parseAll(ctx, root, paths)
	res.FilesAnalyzed = len(units)

	markTestProximity(units, paths)
	res.Graph = BuildGraph(units)
	res.Features = assemble(units, opts, &res.Graph)
	res.Elapsed = time.Since(start)
	return res, nil
}

// collectPaths walks the tree and returns parseable source paths in
// lexicographic order. The returned skipped count covers oversized and
// glob-ignored files.
func collectPaths(root string, ignoreGlobs []string) (paths []string, skipped int) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees degrade to absence of signal
		}
		if d.IsDir() {
			if ignoreDirs[d.Name()] || (strings.HasPrefix(d.Name(), ".") && path != root) {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(d.Name())
		if ext != ".go" && ext != ".py" {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		for _, g := range ignoreGlobs {
			if ok, _ := doublestar.Match(g, rel); ok {
				skipped++
				return nil
			}
		}
		if info, infoErr := d.Info(); infoErr != nil || info.Size() > maxFileSize {
			skipped++
			return nil
		}

		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, skipped
	}
	sort.Strings(paths)
	return paths, skipped
}

// parseAll parses files concurrently and returns units sorted by path.
// Parse failures for individual files are dropped, not fatal.
func parseAll(ctx context.Context, root string, paths []string) []*fileUnit {
	results := make([]*fileUnit, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, rel := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			full := filepath.Join(root, filepath.FromSlash(rel))
			content, err := os.ReadFile(full)
			if err != nil {
				return nil
			}

			var unit *fileUnit
			switch filepath.Ext(rel) {
			case ".go":
				unit, err = parseGoFile(rel, content)
			case ".py":
				unit, err = parsePythonFile(gctx, rel, content)
			}
			if err != nil || unit == nil {
				return nil
			}
			results[i] = unit
			return nil
		})
	}
	// The only group error is context cancellation; partial output is
	// still deterministic for what was parsed.
	_ = g.Wait()

	units := make([]*fileUnit, 0, len(results))
	for _, u := range results {
		if u != nil {
			units = append(units, u)
		}
	}
	return units
}

// markTestProximity flags units that have a sibling test file in the
// same directory (x_test.go, test_x.py, x_test.py).
func markTestProximity(units []*fileUnit, allPaths []string) {
	testDirs := make(map[string]bool)
	for _, p := range allPaths {
		base := pathBase(p)
		if strings.HasSuffix(base, "_test.go") ||
			strings.HasPrefix(base, "test_") ||
			strings.HasSuffix(base, "_test.py") {
			testDirs[pathDir(p)] = true
		}
	}
	for _, u := range units {
		if testDirs[pathDir(u.Path)] {
			u.HasTest = true
		}
	}
}

func pathDir(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return "."
}

func pathBase(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// isTestFile reports whether a unit is itself a test file; test files
// contribute proximity signal but never candidates.
func isTestFile(path string) bool {
	base := pathBase(path)
	return strings.HasSuffix(base, "_test.go") ||
		strings.HasPrefix(base, "test_") ||
		strings.HasSuffix(base, "_test.py")
}

// assemble turns parsed units into scored, keyed feature candidates.
// Units arrive sorted by path, so first-seen key order is stable.
func assemble(units []*fileUnit, opts Options, graph *DependencyGraph) []bundle.Feature {
	fanIn := graph.FanIn()

	featureAlloc := bundle.NewKeyAllocator(opts.KeyFormat, "FEATURE")
	var features []bundle.Feature

	// Module-level features collect top-level functions that belong to
	// no type. Created lazily, keyed by module identifier.
	moduleFeature := make(map[string]int) // module -> index into features

	for _, u := range units {
		if isTestFile(u.Path) {
			continue
		}

		for _, td := range u.Types {
			f, ok := featureFromType(u, td, opts, fanIn[u.Module])
			if !ok {
				continue
			}
			f.Key = featureAlloc.Alloc(td.Name)
			features = append(features, f)
		}

		for _, fd := range u.Funcs {
			story, ok := storyFromFunc(u, fd, opts)
			if !ok {
				continue
			}
			idx, exists := moduleFeature[u.Module]
			if !exists {
				mf := bundle.Feature{
					Title:      u.Module + " module",
					Outcomes:   []string{"Provides the " + u.Module + " module's standalone operations"},
					Confidence: scoreModuleFeature(u, opts.Weights, fanIn[u.Module]),
					Draft:      true,
				}
				if mf.Confidence < opts.ConfidenceFloor {
					continue
				}
				mf.Key = featureAlloc.Alloc(u.Module)
				features = append(features, mf)
				idx = len(features) - 1
				moduleFeature[u.Module] = idx
			}
			features[idx].Stories = append(features[idx].Stories, story)
		}
	}

	// Story keys are allocated per feature after assembly so collisions
	// across files resolve in first-seen order.
	for i := range features {
		storyAlloc := bundle.NewKeyAllocator(opts.KeyFormat, "STORY")
		for j := range features[i].Stories {
			name := features[i].Stories[j].Title
			features[i].Stories[j].Key = storyAlloc.Alloc(name)
		}
	}
	return features
}

// featureFromType builds a scored feature candidate from a type
// declaration. Returns ok=false when the candidate falls below the floor.
func featureFromType(u *fileUnit, td typeDecl, opts Options, fanIn int) (bundle.Feature, bool) {
	sig := Signals{
		HasDoc:        td.Doc != "",
		ExportedName:  td.Exported,
		TestProximity: u.HasTest,
		FanIn:         fanIn,
		MemberCount:   len(td.Methods),
	}
	conf := Score(sig, opts.Weights)
	if conf < opts.ConfidenceFloor {
		return bundle.Feature{}, false
	}

	f := bundle.Feature{
		Title:      humanizeIdent(td.Name),
		Confidence: conf,
		Draft:      true,
	}
	if td.Doc != "" {
		f.Outcomes = []string{firstSentence(td.Doc)}
	}
	for _, m := range td.Methods {
		if story, ok := storyFromFunc(u, m, opts); ok {
			f.Stories = append(f.Stories, story)
		}
	}
	return f, true
}

// storyFromFunc builds a scored story candidate from a function or
// method declaration.
func storyFromFunc(u *fileUnit, fd funcDecl, opts Options) (bundle.Story, bool) {
	sig := Signals{
		HasDoc:        fd.Doc != "",
		ExportedName:  fd.Exported,
		TestProximity: u.HasTest,
		MemberCount:   len(fd.Params),
	}
	conf := Score(sig, opts.Weights)
	if conf < opts.ConfidenceFloor {
		return bundle.Story{}, false
	}

	st := bundle.Story{
		Title:      humanizeIdent(fd.Name),
		Confidence: conf,
		Draft:      true,
	}
	if fd.Doc != "" {
		st.Acceptance = []string{firstSentence(fd.Doc)}
	}
	return st, true
}

// scoreModuleFeature scores the synthetic per-module feature that hosts
// standalone functions.
func scoreModuleFeature(u *fileUnit, w Weights, fanIn int) float64 {
	return Score(Signals{
		HasDoc:        false,
		ExportedName:  true,
		TestProximity: u.HasTest,
		FanIn:         fanIn,
		MemberCount:   len(u.Funcs),
	}, w)
}

// humanizeIdent renders an identifier as a title:
// "PaymentProcessor" -> "Payment Processor", "handle_retry" -> "Handle retry".
func humanizeIdent(name string) string {
	if name == "" {
		return ""
	}
	var words []string
	var cur strings.Builder
	var prev rune
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || r == ' ':
			if cur.Len() > 0 {
				words = append(words, cur.String())
				cur.Reset()
			}
		case r >= 'A' && r <= 'Z' && ((prev >= 'a' && prev <= 'z') || (prev >= '0' && prev <= '9')):
			words = append(words, cur.String())
			cur.Reset()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
		prev = r
	}
	if cur.Len() > 0 {
		words = append(words, cur.String())
	}
	// Words from underscore splits are already lowercase; words from
	// camel-case boundaries keep their capital. Only the first word is
	// forced to upper.
	if len(words) > 0 {
		words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	}
	return strings.Join(words, " ")
}

// firstSentence truncates a doc comment to its first sentence.
func firstSentence(doc string) string {
	doc = strings.Join(strings.Fields(doc), " ")
	if i := strings.Index(doc, ". "); i >= 0 {
		return doc[:i+1]
	}
	return doc
}

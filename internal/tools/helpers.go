// Package tools implements the MCP tool handlers for the specguard
// engine.
//
// Each tool is a struct that receives dependencies via its constructor
// (DIP) and exposes a Definition for registration plus a Handle
// compatible with mcp-go's CallToolRequest signature. Every tool takes
// the bundle name explicitly; there is no process-global active
// bundle.
//
// Design principles:
// - SRP: each file = one tool
// - DIP: tools depend on store interfaces, not concretions
// - OCP: new tools are added without modifying existing ones
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/config"
)

// findProjectRoot walks up from the current working directory looking
// for an existing sdd/ state directory. If none is found, returns cwd.
// This allows tools to work from any subdirectory of the project.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if config.Exists(current) {
			return current, nil
		}
		if _, err := os.Stat(filepath.Join(current, config.SDDDir, "specguard.db")); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			// Reached filesystem root, no specguard project found.
			// Return the original cwd; the caller decides what to do.
			return dir, nil
		}
		current = parent
	}
}

// plural formats a count with its unit for tool reports.
func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	if strings.HasSuffix(word, "y") {
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(word, "y"))
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// allocateKey picks the next free key under the project's key policy,
// skipping keys already taken in the namespace.
func allocateKey(taken map[string]bool, format bundle.KeyFormat, prefix, name string) string {
	if format == bundle.KeySequential {
		for n := 1; ; n++ {
			if key := bundle.SequentialKey(prefix, n); !taken[key] {
				return key
			}
		}
	}
	key := bundle.ClassnameKey(name)
	if !taken[key] {
		return key
	}
	for n := 2; ; n++ {
		if candidate := fmt.Sprintf("%s-%d", key, n); !taken[candidate] {
			return candidate
		}
	}
}

// splitLinesArg splits a newline-separated tool argument into trimmed,
// non-empty items.
func splitLinesArg(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools that depend on abstractions.
// No business logic lives here, only wiring.
package server

import (
	"log"
	"os"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/config"
	"github.com/HendryAvila/specguard/internal/enforce"
	"github.com/HendryAvila/specguard/internal/manifest"
	"github.com/HendryAvila/specguard/internal/tools"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools registered.
// This is the single place where all dependencies are resolved.
//
// The returned cleanup function closes the bundle store's database
// connection and must be called on shutdown (typically via defer).
// It is always non-nil and safe to call even if store init failed.
func New() (*server.MCPServer, func(), error) {
	// --- Create shared dependencies ---

	cfgStore := config.NewFileStore()
	manifestStore := manifest.NewFileStore()
	frozenStore := enforce.NewFileFrozenStore()

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"specguard",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Open the bundle store ---
	//
	// Every tool needs it. If sqlite cannot be opened the server still
	// starts so the client gets a clean error surface, but no tools are
	// registered beyond what can work without the store (none today).
	// We log the reason and serve an empty tool set rather than crash
	// the stdio handshake.

	cleanup := noop
	root, err := os.Getwd()
	if err != nil {
		log.Printf("WARNING: bundle store disabled: getwd: %v", err)
		return s, cleanup, nil
	}
	bundles, err := bundle.NewSQLiteStore(bundle.DefaultConfig(root))
	if err != nil {
		log.Printf("WARNING: bundle store disabled: %v", err)
		return s, cleanup, nil
	}
	cleanup = func() {
		if err := bundles.Close(); err != nil {
			log.Printf("WARNING: bundle store close: %v", err)
		}
	}

	// --- Register tools ---

	bundleInit := tools.NewBundleInitTool(bundles, cfgStore)
	s.AddTool(bundleInit.Definition(), bundleInit.Handle)

	extract := tools.NewExtractTool(bundles, cfgStore)
	s.AddTool(extract.Definition(), extract.Handle)

	featureAdd := tools.NewFeatureAddTool(bundles, cfgStore)
	s.AddTool(featureAdd.Definition(), featureAdd.Handle)

	storyAdd := tools.NewStoryAddTool(bundles, cfgStore)
	s.AddTool(storyAdd.Definition(), storyAdd.Handle)

	clarify := tools.NewClarifyTool(bundles)
	s.AddTool(clarify.Definition(), clarify.Handle)

	status := tools.NewBundleStatusTool(bundles, manifestStore)
	s.AddTool(status.Definition(), status.Handle)

	harden := tools.NewHardenTool(bundles, manifestStore, frozenStore)
	s.AddTool(harden.Definition(), harden.Handle)

	enforceTool := tools.NewEnforceTool(bundles, manifestStore, frozenStore, cfgStore)
	s.AddTool(enforceTool.Definition(), enforceTool.Handle)

	syncTool := tools.NewSyncTool(bundles, cfgStore)
	s.AddTool(syncTool.Definition(), syncTool.Handle)

	return s, cleanup, nil
}

// noop is a no-op cleanup function used as the default when the bundle
// store hasn't been initialized.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use specguard effectively.
func serverInstructions() string {
	return `You have access to specguard, a spec/code reconciliation MCP server.

## What specguard does

specguard keeps a specification bundle (features and stories with
acceptance criteria) honest against reality:
- sdd_extract proposes features from an existing Go/Python source tree,
  scored for confidence. Low-confidence noise is dropped automatically.
- sdd_harden freezes the current spec into a WHY/WHAT/HOW manifest
  stamped with the bundle's content fingerprint.
- sdd_enforce validates the live bundle against the hardened manifest
  and reports deviations by severity (HIGH/MEDIUM/LOW).
- sdd_sync reconciles the bundle with an external task tracker.

## Typical workflows

**New project**: sdd_bundle_init → discuss features with the user →
sdd_feature_add / sdd_story_add → sdd_harden → implement → sdd_enforce.

**Existing codebase**: sdd_bundle_init → sdd_extract (review the drafts
with the user; extraction guesses, humans decide) → edit → sdd_harden.

**Ongoing**: after meaningful spec edits re-run sdd_harden; run
sdd_enforce before releases; sdd_sync keeps the tracker aligned.

## Rules

- Always pass the bundle name explicitly — there is no ambient
  "current bundle".
- Extraction output is DRAFT. Present drafts to the user for review;
  promote them via sdd_harden's promote_drafts only after review.
- sdd_clarify is for recording Q&A that does NOT change spec content.
  If the answer changes a feature or story, edit the entity instead.
- A stale manifest (sdd_bundle_status shows hash mismatch) means the
  spec moved after hardening. That is normal during active work —
  re-harden once the bundle is settled, not after every edit.
- Acceptance criteria drive the enforcement coverage check. Push the
  user for at least one concrete, testable criterion per story.`
}

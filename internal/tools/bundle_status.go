package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/fingerprint"
	"github.com/HendryAvila/specguard/internal/manifest"
	"github.com/mark3labs/mcp-go/mcp"
)

// BundleStatusTool handles the sdd_bundle_status MCP tool.
type BundleStatusTool struct {
	bundles   bundle.Store
	manifests manifest.Store
}

// NewBundleStatusTool creates a BundleStatusTool with the given stores.
func NewBundleStatusTool(bundles bundle.Store, manifests manifest.Store) *BundleStatusTool {
	return &BundleStatusTool{bundles: bundles, manifests: manifests}
}

// Definition returns the MCP tool definition for registration.
func (t *BundleStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("sdd_bundle_status",
		mcp.WithDescription(
			"Show a bundle's current state: revision, fingerprint, feature and story "+
				"counts, drafts awaiting review, and whether the hardened manifest still "+
				"matches. Without a bundle name, lists all bundles.",
		),
		mcp.WithString("bundle",
			mcp.Description("Bundle to inspect. Omit to list all bundles."),
		),
	)
}

// Handle processes the sdd_bundle_status tool call.
func (t *BundleStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundleName := req.GetString("bundle", "")

	if bundleName == "" {
		names, err := t.bundles.List()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(names) == 0 {
			return mcp.NewToolResultText("No bundles yet. Create one with `sdd_bundle_init`."), nil
		}
		var sb strings.Builder
		sb.WriteString("# Bundles\n\n")
		for _, n := range names {
			fmt.Fprintf(&sb, "- %s\n", n)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}

	b, err := t.bundles.Get(bundleName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fp := fingerprint.Fingerprint(b)
	stories, draftFeatures, draftStories := 0, 0, 0
	missingAcceptance := 0
	for i := range b.Features {
		f := &b.Features[i]
		if f.Draft {
			draftFeatures++
		}
		covered := false
		for j := range f.Stories {
			stories++
			if f.Stories[j].Draft {
				draftStories++
			}
			if len(f.Stories[j].Acceptance) > 0 {
				covered = true
			}
		}
		if !covered {
			missingAcceptance++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Bundle: %s\n\n", b.Name)
	fmt.Fprintf(&sb, "- **Revision**: %d (updated %s)\n", b.Revision, b.UpdatedAt)
	fmt.Fprintf(&sb, "- **Fingerprint**: `%s`\n", fp)
	fmt.Fprintf(&sb, "- **Features**: %d (%d draft)\n", len(b.Features), draftFeatures)
	fmt.Fprintf(&sb, "- **Stories**: %d (%d draft)\n", stories, draftStories)
	fmt.Fprintf(&sb, "- **Clarifications**: %d\n", len(b.Clarifications))
	if missingAcceptance > 0 {
		fmt.Fprintf(&sb, "- ⚠️ **%s without any acceptance criteria**\n", plural(missingAcceptance, "feature"))
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}
	m, err := t.manifests.Load(projectRoot, bundleName)
	switch {
	case err != nil:
		sb.WriteString("- **Manifest**: none — run `sdd_harden`\n")
	case m.BundleHash == fp:
		fmt.Fprintf(&sb, "- **Manifest**: up to date (hardened %s)\n", m.CreatedAt)
	default:
		fmt.Fprintf(&sb, "- **Manifest**: ⚠️ stale — hardened against `%s`, bundle is now `%s`. Re-run `sdd_harden`.\n",
			shortHash(m.BundleHash), shortHash(fp))
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// shortHash abbreviates a fingerprint for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/enforce"
	"github.com/HendryAvila/specguard/internal/fingerprint"
	"github.com/HendryAvila/specguard/internal/manifest"
	"github.com/mark3labs/mcp-go/mcp"
)

// HardenTool handles the sdd_harden MCP tool.
// Hardening synthesizes the WHY/WHAT/HOW manifest from the bundle,
// stamps it with the current fingerprint, and persists it as the point
// of reference sdd_enforce validates against. Regeneration supersedes;
// a manifest is never edited in place.
type HardenTool struct {
	bundles   bundle.Store
	manifests manifest.Store
	frozen    enforce.FrozenStore
}

// NewHardenTool creates a HardenTool with the given stores.
func NewHardenTool(bundles bundle.Store, manifests manifest.Store, frozen enforce.FrozenStore) *HardenTool {
	return &HardenTool{bundles: bundles, manifests: manifests, frozen: frozen}
}

// Definition returns the MCP tool definition for registration.
func (t *HardenTool) Definition() mcp.Tool {
	return mcp.NewTool("sdd_harden",
		mcp.WithDescription(
			"Synthesize the WHY/WHAT/HOW manifest for a bundle and stamp it with the "+
				"bundle's current fingerprint. Optionally promote draft entities to "+
				"reviewed first (promotion changes the fingerprint; it happens before "+
				"stamping). Optionally freeze manifest sections so later edits to them "+
				"are flagged as HIGH deviations by sdd_enforce.",
		),
		mcp.WithString("bundle",
			mcp.Required(),
			mcp.Description("Bundle to harden"),
		),
		mcp.WithBoolean("promote_drafts",
			mcp.Description("Clear the draft flag on all features and stories before synthesizing."),
		),
		mcp.WithString("freeze",
			mcp.Description("Manifest sections to freeze, one per line: why, what, how."),
		),
	)
}

// Handle processes the sdd_harden tool call.
func (t *HardenTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundleName := req.GetString("bundle", "")
	if bundleName == "" {
		return mcp.NewToolResultError("'bundle' is required"), nil
	}
	freeze := splitLinesArg(req.GetString("freeze", ""))
	for _, section := range freeze {
		if section != "why" && section != "what" && section != "how" {
			return mcp.NewToolResultError(fmt.Sprintf("unknown manifest section %q: must be why, what, or how", section)), nil
		}
	}

	var b *bundle.Bundle
	var err error
	promoted := 0
	if req.GetBool("promote_drafts", false) {
		b, err = t.bundles.Mutate(bundleName, func(mb *bundle.Bundle) error {
			for i := range mb.Features {
				f := &mb.Features[i]
				if f.Draft {
					f.Draft = false
					promoted++
				}
				for j := range f.Stories {
					if f.Stories[j].Draft {
						f.Stories[j].Draft = false
						promoted++
					}
				}
			}
			return nil
		})
	} else {
		b, err = t.bundles.Get(bundleName)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	fp := fingerprint.Fingerprint(b)
	m := manifest.Synthesize(b, fp)

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}
	if err := t.manifests.Save(projectRoot, m); err != nil {
		return nil, fmt.Errorf("saving manifest: %w", err)
	}
	for _, section := range freeze {
		if err := t.frozen.Freeze(projectRoot, bundleName, section, m); err != nil {
			return nil, fmt.Errorf("freezing section %s: %w", section, err)
		}
	}

	var sb strings.Builder
	sb.WriteString("# Bundle Hardened\n\n")
	fmt.Fprintf(&sb, "- **Bundle**: %s (revision %d)\n", b.Name, b.Revision)
	fmt.Fprintf(&sb, "- **Fingerprint**: `%s`\n", fp)
	fmt.Fprintf(&sb, "- **Capabilities**: %d\n", len(m.What))
	if promoted > 0 {
		fmt.Fprintf(&sb, "- **Drafts promoted**: %d\n", promoted)
	}
	if len(freeze) > 0 {
		fmt.Fprintf(&sb, "- **Frozen sections**: %s\n", strings.Join(freeze, ", "))
	}
	fmt.Fprintf(&sb, "- **Manifest**: `%s`\n\n", manifest.Path(projectRoot, bundleName))
	sb.WriteString("Run `sdd_enforce` to validate the bundle against this manifest.\n")

	return mcp.NewToolResultText(sb.String()), nil
}

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/config"
	"github.com/HendryAvila/specguard/internal/extract"
	"github.com/mark3labs/mcp-go/mcp"
)

// ExtractTool handles the sdd_extract MCP tool.
// It scans a source tree, scores feature/story candidates, and merges
// the survivors into the bundle as draft proposals. The scan itself is
// read-only; only the bundle store is written.
type ExtractTool struct {
	bundles bundle.Store
	cfg     config.Store
}

// NewExtractTool creates an ExtractTool with the given stores.
func NewExtractTool(bundles bundle.Store, cfg config.Store) *ExtractTool {
	return &ExtractTool{bundles: bundles, cfg: cfg}
}

// Definition returns the MCP tool definition for registration.
func (t *ExtractTool) Definition() mcp.Tool {
	return mcp.NewTool("sdd_extract",
		mcp.WithDescription(
			"Scan a Go/Python source tree and propose features and stories for a bundle. "+
				"Candidates are scored for confidence (doc comments, naming, test proximity, "+
				"fan-in, structural richness); those below the floor are dropped. Proposals "+
				"land as drafts — human-edited entities are never overwritten. "+
				"The dependency graph, including any import cycles, is reported.",
		),
		mcp.WithString("bundle",
			mcp.Required(),
			mcp.Description("Bundle to merge proposals into"),
		),
		mcp.WithString("path",
			mcp.Description("Source tree to scan, relative to the project root. Defaults to the project root itself."),
		),
		mcp.WithNumber("confidence_floor",
			mcp.Description("Minimum confidence for a candidate to survive (0..1). Defaults to the configured floor (0.5)."),
		),
		mcp.WithString("ignore",
			mcp.Description("Glob patterns to exclude, one per line (doublestar syntax, e.g. '**/generated/**')."),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Report the candidates without touching the bundle."),
		),
	)
}

// Handle processes the sdd_extract tool call.
func (t *ExtractTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundleName := req.GetString("bundle", "")
	if bundleName == "" {
		return mcp.NewToolResultError("'bundle' is required"), nil
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}
	cfg, err := t.cfg.LoadOrDefault(projectRoot, bundleName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	root := projectRoot
	if sub := req.GetString("path", ""); sub != "" {
		candidate := filepath.Join(projectRoot, sub)
		info, err := os.Stat(candidate)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("path '%s' not found: %v", sub, err)), nil
		}
		if !info.IsDir() {
			return mcp.NewToolResultError(fmt.Sprintf("path '%s' is not a directory", sub)), nil
		}
		root = candidate
	}

	opts := extract.Options{
		Root:            root,
		ConfidenceFloor: req.GetFloat("confidence_floor", cfg.Extract.ConfidenceFloor),
		KeyFormat:       cfg.KeyFormat,
		IgnoreGlobs:     append(splitLinesArg(req.GetString("ignore", "")), cfg.Extract.IgnoreGlobs...),
		Weights:         cfg.Extract.Weights,
	}
	if err := bundle.ValidateConfidence(opts.ConfidenceFloor); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("confidence_floor: %v", err)), nil
	}

	result, err := extract.Extract(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("extracting from %s: %w", root, err)
	}

	var merge bundle.MergeResult
	if !req.GetBool("dry_run", false) && len(result.Features) > 0 {
		_, err = t.bundles.Mutate(bundleName, func(b *bundle.Bundle) error {
			merge = bundle.MergeProposal(b, result.Features)
			return nil
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	return mcp.NewToolResultText(extractReport(result, merge, req.GetBool("dry_run", false))), nil
}

// extractReport renders the scan outcome as markdown.
func extractReport(result *extract.Result, merge bundle.MergeResult, dryRun bool) string {
	var sb strings.Builder
	sb.WriteString("# Extraction Report\n\n")

	storyCount := 0
	for i := range result.Features {
		storyCount += len(result.Features[i].Stories)
	}
	fmt.Fprintf(&sb, "- **Files analyzed**: %d (%d skipped)\n", result.FilesAnalyzed, result.FilesSkipped)
	fmt.Fprintf(&sb, "- **Candidates above floor**: %s, %s\n",
		plural(len(result.Features), "feature"), plural(storyCount, "story"))
	fmt.Fprintf(&sb, "- **Elapsed**: %s\n\n", result.Elapsed.Round(time.Millisecond))

	if len(result.Features) > 0 {
		sb.WriteString("## Proposed Features\n\n")
		for i := range result.Features {
			f := &result.Features[i]
			fmt.Fprintf(&sb, "- **%s** — %s (confidence %.2f, %s)\n",
				f.Key, f.Title, f.Confidence, plural(len(f.Stories), "story"))
		}
		sb.WriteString("\n")
	}

	if len(result.Graph.Cycles) > 0 {
		sb.WriteString("## Dependency Cycles\n\n")
		sb.WriteString("Cycles are recorded, not rejected — but they usually deserve a look:\n\n")
		for _, cycle := range result.Graph.Cycles {
			fmt.Fprintf(&sb, "- %s\n", strings.Join(cycle, " → "))
		}
		sb.WriteString("\n")
	}

	switch {
	case dryRun:
		sb.WriteString("_Dry run — the bundle was not modified._\n")
	case len(result.Features) == 0:
		sb.WriteString("_No candidates survived the confidence floor; the bundle was not modified._\n")
	default:
		sb.WriteString("## Merge\n\n")
		fmt.Fprintf(&sb, "- Added: %s\n", plural(merge.FeaturesAdded, "feature"))
		fmt.Fprintf(&sb, "- Replaced (draft): %s\n", plural(merge.FeaturesReplaced, "feature"))
		fmt.Fprintf(&sb, "- Preserved (human-edited): %s, gained %s\n",
			plural(merge.FeaturesSkipped, "feature"), plural(merge.StoriesAdded, "new story"))
	}
	return sb.String()
}

package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
)

// FeatureAddTool handles the sdd_feature_add MCP tool.
type FeatureAddTool struct {
	bundles bundle.Store
	cfg     config.Store
}

// NewFeatureAddTool creates a FeatureAddTool with the given stores.
func NewFeatureAddTool(bundles bundle.Store, cfg config.Store) *FeatureAddTool {
	return &FeatureAddTool{bundles: bundles, cfg: cfg}
}

// Definition returns the MCP tool definition for registration.
func (t *FeatureAddTool) Definition() mcp.Tool {
	return mcp.NewTool("sdd_feature_add",
		mcp.WithDescription(
			"Add a feature to a bundle by hand. The key is generated under the "+
				"project's key policy and never collides with existing keys. "+
				"Hand-added features are not drafts — extraction will never replace them.",
		),
		mcp.WithString("bundle",
			mcp.Required(),
			mcp.Description("Bundle to add the feature to"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Feature title"),
		),
		mcp.WithString("outcomes",
			mcp.Description("Observable outcomes, one per line"),
		),
		mcp.WithString("acceptance",
			mcp.Description("Acceptance criteria, one per line"),
		),
		mcp.WithString("invariants",
			mcp.Description("Invariants this feature must hold, one per line"),
		),
		mcp.WithString("contracts",
			mcp.Description("Interface contracts, one per line"),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Confidence 0..1. Defaults to 1.0 for hand-written features."),
		),
	)
}

// Handle processes the sdd_feature_add tool call.
func (t *FeatureAddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundleName := req.GetString("bundle", "")
	title := req.GetString("title", "")
	if bundleName == "" {
		return mcp.NewToolResultError("'bundle' is required"), nil
	}
	if title == "" {
		return mcp.NewToolResultError("'title' is required"), nil
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}
	cfg, err := t.cfg.LoadOrDefault(projectRoot, bundleName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	feature := bundle.Feature{
		Title:      title,
		Outcomes:   splitLinesArg(req.GetString("outcomes", "")),
		Acceptance: splitLinesArg(req.GetString("acceptance", "")),
		Invariants: splitLinesArg(req.GetString("invariants", "")),
		Contracts:  splitLinesArg(req.GetString("contracts", "")),
		Confidence: req.GetFloat("confidence", 1.0),
	}

	var key string
	_, err = t.bundles.Mutate(bundleName, func(b *bundle.Bundle) error {
		taken := make(map[string]bool, len(b.Features))
		for i := range b.Features {
			taken[b.Features[i].Key] = true
		}
		key = allocateKey(taken, cfg.KeyFormat, "FEATURE", title)
		feature.Key = key
		b.Features = append(b.Features, feature)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Added feature **%s** — %s\n\nUse `sdd_story_add` to break it into stories.",
		key, title,
	)), nil
}

package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
)

// StoryAddTool handles the sdd_story_add MCP tool.
type StoryAddTool struct {
	bundles bundle.Store
	cfg     config.Store
}

// NewStoryAddTool creates a StoryAddTool with the given stores.
func NewStoryAddTool(bundles bundle.Store, cfg config.Store) *StoryAddTool {
	return &StoryAddTool{bundles: bundles, cfg: cfg}
}

// Definition returns the MCP tool definition for registration.
func (t *StoryAddTool) Definition() mcp.Tool {
	return mcp.NewTool("sdd_story_add",
		mcp.WithDescription(
			"Add a story under an existing feature. Story keys are unique within "+
				"their feature. Acceptance criteria feed the coverage check in sdd_enforce, "+
				"so give every story at least one.",
		),
		mcp.WithString("bundle",
			mcp.Required(),
			mcp.Description("Bundle containing the feature"),
		),
		mcp.WithString("feature",
			mcp.Required(),
			mcp.Description("Feature key, e.g. PAYMENT-PROCESSOR"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Story title"),
		),
		mcp.WithString("acceptance",
			mcp.Description("Acceptance criteria, one per line"),
		),
		mcp.WithNumber("story_points",
			mcp.Description("Effort estimate"),
		),
		mcp.WithNumber("value_points",
			mcp.Description("Value estimate"),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Confidence 0..1. Defaults to 1.0 for hand-written stories."),
		),
	)
}

// Handle processes the sdd_story_add tool call.
func (t *StoryAddTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundleName := req.GetString("bundle", "")
	featureKey := req.GetString("feature", "")
	title := req.GetString("title", "")
	if bundleName == "" {
		return mcp.NewToolResultError("'bundle' is required"), nil
	}
	if featureKey == "" {
		return mcp.NewToolResultError("'feature' is required"), nil
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

	story := bundle.Story{
		Title:       title,
		Acceptance:  splitLinesArg(req.GetString("acceptance", "")),
		StoryPoints: int(req.GetFloat("story_points", 0)),
		ValuePoints: int(req.GetFloat("value_points", 0)),
		Confidence:  req.GetFloat("confidence", 1.0),
	}

	var key string
	_, err = t.bundles.Mutate(bundleName, func(b *bundle.Bundle) error {
		f := b.FindFeature(featureKey)
		if f == nil {
			return fmt.Errorf("feature %q not found in bundle %q", featureKey, bundleName)
		}
		taken := make(map[string]bool, len(f.Stories))
		for i := range f.Stories {
			taken[f.Stories[i].Key] = true
		}
		key = allocateKey(taken, cfg.KeyFormat, "STORY", title)
		story.Key = key
		f.Stories = append(f.Stories, story)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Added story **%s/%s** — %s", featureKey, key, title,
	)), nil
}

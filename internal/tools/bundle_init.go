package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
)

// BundleInitTool handles the sdd_bundle_init MCP tool.
// It creates a new bundle from an idea and writes the project config
// on first use.
type BundleInitTool struct {
	bundles bundle.Store
	cfg     config.Store
}

// NewBundleInitTool creates a BundleInitTool with the given stores.
func NewBundleInitTool(bundles bundle.Store, cfg config.Store) *BundleInitTool {
	return &BundleInitTool{bundles: bundles, cfg: cfg}
}

// Definition returns the MCP tool definition for registration.
func (t *BundleInitTool) Definition() mcp.Tool {
	return mcp.NewTool("sdd_bundle_init",
		mcp.WithDescription(
			"Create a new specification bundle from a project idea. "+
				"The bundle is the authoritative spec: features and stories grow "+
				"under it via sdd_extract, sdd_feature_add, and sdd_story_add. "+
				"This is always the first step for a new project.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Bundle name (also the project name)"),
		),
		mcp.WithString("narrative",
			mcp.Required(),
			mcp.Description("The idea narrative — what this project is and why it exists"),
		),
		mcp.WithString("target_users",
			mcp.Description("Target users, one per line"),
		),
		mcp.WithString("value_hypothesis",
			mcp.Description("Why users will care"),
		),
		mcp.WithString("constraints",
			mcp.Description("Hard constraints, one per line"),
		),
		mcp.WithString("key_format",
			mcp.Description("Key policy for generated feature keys: 'classname' (default) or 'sequential'."),
			mcp.DefaultString(string(bundle.KeyClassname)),
			mcp.Enum(string(bundle.KeyClassname), string(bundle.KeySequential)),
		),
	)
}

// Handle processes the sdd_bundle_init tool call.
func (t *BundleInitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	narrative := req.GetString("narrative", "")
	keyFormat := bundle.KeyFormat(req.GetString("key_format", string(bundle.KeyClassname)))

	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}
	if narrative == "" {
		return mcp.NewToolResultError("'narrative' is required — tell me what you want to build"), nil
	}
	if err := bundle.ValidateKeyFormat(keyFormat); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	idea := bundle.Idea{
		Narrative:       narrative,
		TargetUsers:     splitLinesArg(req.GetString("target_users", "")),
		ValueHypothesis: req.GetString("value_hypothesis", ""),
		Constraints:     splitLinesArg(req.GetString("constraints", "")),
	}

	b, err := t.bundles.Create(name, idea)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Write the project config on first init so thresholds are visible
	// and editable from day one.
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}
	if !config.Exists(projectRoot) {
		cfg := config.NewProjectConfig(name)
		cfg.KeyFormat = keyFormat
		if err := t.cfg.Save(projectRoot, cfg); err != nil {
			return nil, fmt.Errorf("saving config: %w", err)
		}
	}

	response := fmt.Sprintf(
		"# Bundle Created\n\n"+
			"**Bundle:** %s (revision %d)\n"+
			"**Key format:** %s\n\n"+
			"## Next Steps\n\n"+
			"- `sdd_extract` to propose features from an existing source tree\n"+
			"- `sdd_feature_add` to add features by hand\n"+
			"- `sdd_harden` once the bundle reflects your intent\n",
		b.Name, b.Revision, keyFormat,
	)
	return mcp.NewToolResultText(response), nil
}

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/config"
	"github.com/HendryAvila/specguard/internal/enforce"
	"github.com/HendryAvila/specguard/internal/manifest"
	"github.com/mark3labs/mcp-go/mcp"
)

// EnforceTool handles the sdd_enforce MCP tool.
type EnforceTool struct {
	bundles   bundle.Store
	manifests manifest.Store
	frozen    enforce.FrozenStore
	cfg       config.Store
}

// NewEnforceTool creates an EnforceTool with the given stores.
func NewEnforceTool(bundles bundle.Store, manifests manifest.Store, frozen enforce.FrozenStore, cfg config.Store) *EnforceTool {
	return &EnforceTool{bundles: bundles, manifests: manifests, frozen: frozen, cfg: cfg}
}

// Definition returns the MCP tool definition for registration.
func (t *EnforceTool) Definition() mcp.Tool {
	return mcp.NewTool("sdd_enforce",
		mcp.WithDescription(
			"Validate a bundle against its hardened manifest. Checks run in order: "+
				"fingerprint match (HIGH on mismatch), frozen-section byte identity (HIGH), "+
				"acceptance-criteria coverage (MEDIUM, LOW when within 5% of the threshold), "+
				"contract density (MEDIUM). The verdict is HIGH if any HIGH deviation exists, "+
				"else MEDIUM if any MEDIUM, else pass.",
		),
		mcp.WithString("bundle",
			mcp.Required(),
			mcp.Description("Bundle to validate"),
		),
		mcp.WithBoolean("stop_on_first_high",
			mcp.Description("Stop at the first HIGH deviation instead of accumulating everything."),
		),
	)
}

// Handle processes the sdd_enforce tool call.
func (t *EnforceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundleName := req.GetString("bundle", "")
	if bundleName == "" {
		return mcp.NewToolResultError("'bundle' is required"), nil
	}

	b, err := t.bundles.Get(bundleName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}
	m, err := t.manifests.Load(projectRoot, bundleName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v — run sdd_harden first", err)), nil
	}
	frozen, err := t.frozen.Snapshots(projectRoot, bundleName)
	if err != nil {
		return nil, fmt.Errorf("loading frozen sections: %w", err)
	}
	pcfg, err := t.cfg.LoadOrDefault(projectRoot, bundleName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cfg := enforce.Config{
		CoverageThreshold:  pcfg.Enforce.CoverageThreshold,
		MinAcceptance:      pcfg.Enforce.MinAcceptance,
		MinContractDensity: pcfg.Enforce.MinContractDensity,
		StopOnFirstHigh:    req.GetBool("stop_on_first_high", pcfg.Enforce.StopOnFirstHigh),
	}

	report := enforce.Validate(b, m, frozen, cfg)
	return mcp.NewToolResultText(renderReport(report)), nil
}

// renderReport formats a validation report as markdown.
func renderReport(r *enforce.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Enforcement Report: %s\n\n", r.Bundle)

	switch r.Verdict {
	case enforce.VerdictPass:
		sb.WriteString("✅ **PASS** — manifest and bundle agree.\n")
	case enforce.VerdictMediumFail:
		fmt.Fprintf(&sb, "⚠️ **MEDIUM** — %s.\n", plural(r.Mediums, "medium deviation"))
	case enforce.VerdictHighFail:
		fmt.Fprintf(&sb, "❌ **HIGH** — %s.\n", plural(r.Highs, "high deviation"))
	}
	if r.Stopped {
		sb.WriteString("\n_Stopped at the first HIGH deviation; later checks did not run._\n")
	}

	if len(r.Deviations) > 0 {
		sb.WriteString("\n## Deviations\n\n")
		for _, d := range r.Deviations {
			fmt.Fprintf(&sb, "- **[%s] %s**: %s\n", d.Severity, d.Kind, d.Message)
			if d.Remediation != "" {
				fmt.Fprintf(&sb, "  - Fix: %s\n", d.Remediation)
			}
		}
	}
	return sb.String()
}

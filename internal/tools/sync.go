package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/HendryAvila/specguard/internal/config"
	syncengine "github.com/HendryAvila/specguard/internal/sync"
	"github.com/mark3labs/mcp-go/mcp"
)

// SyncTool handles the sdd_sync MCP tool: one reconciliation tick
// between a bundle and its external tracker. The continuous loop lives
// in `specguard watch`; this tool is the on-demand version of the same
// tick.
type SyncTool struct {
	bundles bundle.Store
	cfg     config.Store
}

// NewSyncTool creates a SyncTool with the given stores.
func NewSyncTool(bundles bundle.Store, cfg config.Store) *SyncTool {
	return &SyncTool{bundles: bundles, cfg: cfg}
}

// Definition returns the MCP tool definition for registration.
func (t *SyncTool) Definition() mcp.Tool {
	return mcp.NewTool("sdd_sync",
		mcp.WithDescription(
			"Run one sync tick between a bundle and the task-directory tracker. "+
				"Changed bundle entities push out; external edits pull in; divergent "+
				"edits become reported conflicts resolved field-by-field by "+
				"last-write-wins (external side wins ties). In one-way mode the bundle "+
				"is the source of truth and external-only tasks are left alone; "+
				"bidirectional mode imports them as draft proposals.",
		),
		mcp.WithString("bundle",
			mcp.Required(),
			mcp.Description("Bundle to sync"),
		),
		mcp.WithString("mode",
			mcp.Description("Override the configured sync mode for this tick."),
			mcp.Enum(string(syncengine.ModeOneWay), string(syncengine.ModeBidirectional)),
		),
		mcp.WithString("task_dir",
			mcp.Description("Task directory, relative to the project root. Defaults to the configured one, else sdd/tasks."),
		),
	)
}

// Handle processes the sdd_sync tool call.
func (t *SyncTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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

	mode := cfg.Sync.Mode
	if override := req.GetString("mode", ""); override != "" {
		mode = syncengine.Mode(override)
		if err := syncengine.ValidateMode(mode); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	taskDir := cfg.Sync.TaskDir
	if override := req.GetString("task_dir", ""); override != "" {
		taskDir = override
	}
	if taskDir == "" {
		taskDir = filepath.Join(config.SDDDir, "tasks")
	}

	engine := syncengine.NewEngine(
		t.bundles,
		syncengine.NewTaskDirAdapter(filepath.Join(projectRoot, taskDir)),
		syncengine.NewFileStateStore(projectRoot),
		syncengine.Options{BundleName: bundleName, Mode: mode, Timeout: cfg.Timeout()},
	)

	report, err := engine.Tick(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync tick failed (nothing was committed): %v", err)), nil
	}

	return mcp.NewToolResultText(renderTick(bundleName, mode, report)), nil
}

// renderTick formats a tick report as markdown.
func renderTick(bundleName string, mode syncengine.Mode, r *syncengine.TickReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Sync Tick: %s (%s)\n\n", bundleName, mode)
	fmt.Fprintf(&sb, "- **Pushed**: %d\n", r.Pushed)
	fmt.Fprintf(&sb, "- **Pulled**: %d\n", r.Pulled)
	fmt.Fprintf(&sb, "- **Created externally**: %d\n", r.Created)
	if r.Imported > 0 {
		fmt.Fprintf(&sb, "- **Imported as drafts**: %d\n", r.Imported)
	}
	fmt.Fprintf(&sb, "- **Converged**: %d, **unchanged**: %d\n", r.Converged, r.Unchanged)
	fmt.Fprintf(&sb, "- **Elapsed**: %s\n", r.Elapsed.Round(time.Millisecond))

	if len(r.Conflicts) > 0 {
		sb.WriteString("\n## Conflicts\n\n")
		sb.WriteString("Both sides changed since the last sync. Resolved field-by-field; no edit was silently dropped:\n\n")
		for _, c := range r.Conflicts {
			fmt.Fprintf(&sb, "- **%s** ↔ `%s` (resolved by %s)\n", c.EntityKey, c.ArtifactID, c.ResolvedBy)
			for _, ch := range c.Changes {
				fmt.Fprintf(&sb, "  - %s: %q → %q\n", ch.Field, ch.From, ch.To)
			}
		}
	}
	return sb.String()
}

package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/specguard/internal/bundle"
	"github.com/mark3labs/mcp-go/mcp"
)

// clarifySections are the bundle areas a clarification may be filed
// against.
var clarifySections = []string{"idea", "features", "stories", "scope", "other"}

// ClarifyTool handles the sdd_clarify MCP tool.
// Clarifications are an append-only side log: they record the question
// and answer without touching feature or story content, so the bundle
// fingerprint does not move.
type ClarifyTool struct {
	bundles bundle.Store
}

// NewClarifyTool creates a ClarifyTool with the given store.
func NewClarifyTool(bundles bundle.Store) *ClarifyTool {
	return &ClarifyTool{bundles: bundles}
}

// Definition returns the MCP tool definition for registration.
func (t *ClarifyTool) Definition() mcp.Tool {
	return mcp.NewTool("sdd_clarify",
		mcp.WithDescription(
			"Record a clarification question and answer against a bundle. "+
				"Clarifications live in an append-only side log and never change the "+
				"bundle fingerprint — use sdd_feature_add or sdd_story_add when the "+
				"answer should change actual spec content.",
		),
		mcp.WithString("bundle",
			mcp.Required(),
			mcp.Description("Bundle to clarify"),
		),
		mcp.WithString("section",
			mcp.Required(),
			mcp.Description("Which part of the bundle the question touches"),
			mcp.Enum(clarifySections...),
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The ambiguity being resolved"),
		),
		mcp.WithString("answer",
			mcp.Description("The resolution. May be empty to record an open question."),
		),
	)
}

// Handle processes the sdd_clarify tool call.
func (t *ClarifyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundleName := req.GetString("bundle", "")
	section := req.GetString("section", "")
	question := req.GetString("question", "")
	answer := req.GetString("answer", "")

	if bundleName == "" {
		return mcp.NewToolResultError("'bundle' is required"), nil
	}
	if section == "" {
		return mcp.NewToolResultError("'section' is required"), nil
	}
	if question == "" {
		return mcp.NewToolResultError("'question' is required — state the ambiguity"), nil
	}
	valid := false
	for _, s := range clarifySections {
		if section == s {
			valid = true
			break
		}
	}
	if !valid {
		return mcp.NewToolResultError(fmt.Sprintf("unknown section %q", section)), nil
	}

	c, err := t.bundles.AddClarification(bundleName, section, question, answer)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status := "answered"
	if answer == "" {
		status = "open — answer it later with another sdd_clarify call"
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Recorded clarification `%s` against **%s** (revision %d, %s).\n\n"+
			"The bundle fingerprint is unchanged.",
		c.ID, section, c.Revision, status,
	)), nil
}

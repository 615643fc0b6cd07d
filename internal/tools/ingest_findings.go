package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/steward/internal/audit"
	"github.com/HendryAvila/steward/internal/findings"
	"github.com/HendryAvila/steward/internal/governance"
	"github.com/HendryAvila/steward/internal/store"
)

// IngestFindingsTool handles the steward_ingest_findings MCP tool.
// The calling agent is the analyst; this tool only validates and stores
// what it submits.
type IngestFindingsTool struct {
	store   *store.Store
	targets *governance.Registry
	audit   audit.Sink
}

// NewIngestFindingsTool creates the tool with its dependencies.
func NewIngestFindingsTool(st *store.Store, targets *governance.Registry, sink audit.Sink) *IngestFindingsTool {
	return &IngestFindingsTool{store: st, targets: targets, audit: sink}
}

// Definition returns the MCP tool definition for registration.
func (t *IngestFindingsTool) Definition() mcp.Tool {
	return mcp.NewTool("steward_ingest_findings",
		mcp.WithDescription(
			"Submit analysis findings for one perspective on a target. "+
				"Each finding carries a claim, recommendation, confidence in [0,1], "+
				"a four-dimension expected_impact vector (reliability/security/devex/performance, each in [-1,1]), "+
				"a risk level (low/medium/high/critical), and optional evidence items graded A/B/C. "+
				"Findings feed the consensus step of the research overlay.",
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Target identifier. Aliases for the system's own codebase resolve automatically."),
		),
		mcp.WithString("perspective",
			mcp.Required(),
			mcp.Description("The analysis perspective these findings came from, e.g. 'security'."),
		),
		mcp.WithArray("findings",
			mcp.Required(),
			mcp.Description("Array of finding objects: {claim, recommendation, confidence, expected_impact, risk, evidence}."),
		),
	)
}

// Handle processes the steward_ingest_findings tool call.
func (t *IngestFindingsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := req.GetString("target", "")
	perspective := req.GetString("perspective", "")
	if strings.TrimSpace(target) == "" {
		return mcp.NewToolResultError("'target' is required — name the target the findings are about"), nil
	}
	if strings.TrimSpace(perspective) == "" {
		return mcp.NewToolResultError("'perspective' is required — name the analysis perspective"), nil
	}

	var inputs []findings.FindingInput
	if err := decodeArg(req, "findings", &inputs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(inputs) == 0 {
		return mcp.NewToolResultError("'findings' is empty — submit at least one finding"), nil
	}

	resolved, err := t.targets.Normalize(target)
	if err != nil {
		return nil, fmt.Errorf("normalizing target: %w", err)
	}

	// Validate everything before storing anything: a malformed finding
	// rejects the whole batch without side effects.
	converted := make([]findings.Finding, 0, len(inputs))
	for i, in := range inputs {
		f, err := in.ToFinding("find-"+uuid.NewString(), resolved, perspective)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("findings[%d]: %v", i, err)), nil
		}
		converted = append(converted, f)
	}

	ids := make([]string, 0, len(converted))
	for _, f := range converted {
		if err := t.store.Insert(store.Findings, f.ID, f); err != nil {
			return nil, fmt.Errorf("storing finding: %w", err)
		}
		ids = append(ids, f.ID)
	}

	t.audit.Record(audit.Event{
		Action:     "findings_ingested",
		Actor:      perspective,
		TargetType: "target",
		TargetID:   resolved,
		Details: map[string]string{
			"perspective": perspective,
			"count":       fmt.Sprintf("%d", len(ids)),
		},
	})

	return jsonResult(map[string]any{
		"target":      resolved,
		"perspective": perspective,
		"ingested":    len(ids),
		"finding_ids": ids,
	})
}

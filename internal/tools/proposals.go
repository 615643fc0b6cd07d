package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/steward/internal/delivery"
	"github.com/HendryAvila/steward/internal/store"
	"github.com/HendryAvila/steward/internal/triage"
)

// ProposalsTool handles the steward_proposals MCP tool: listing ranked
// proposals and walking them through the delivery lifecycle.
type ProposalsTool struct {
	delivery *delivery.Service
}

// NewProposalsTool creates the tool with its dependencies.
func NewProposalsTool(svc *delivery.Service) *ProposalsTool {
	return &ProposalsTool{delivery: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *ProposalsTool) Definition() mcp.Tool {
	return mcp.NewTool("steward_proposals",
		mcp.WithDescription(
			"Work with triaged proposals. Actions: 'list' proposals (optionally by "+
				"target and status), 'get' one, 'advance' one through its lifecycle "+
				"(triaged → approved → in_progress → pr_open → testing → merged → "+
				"released; rejected/rolled_back as exits), or list 'escalations' — "+
				"the findings triage pulled out for a human decision instead of "+
				"proposing automatically. Moving to 'approved' is gated: when policy "+
				"demanded approval, a steward_approve record for the proposal must "+
				"exist first.",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("list, get, advance, or escalations."),
		),
		mcp.WithString("proposal_id",
			mcp.Description("Proposal id, for get and advance."),
		),
		mcp.WithString("target",
			mcp.Description("Filter list and escalations by target id."),
		),
		mcp.WithString("status",
			mcp.Description("Filter listing by lifecycle status."),
		),
		mcp.WithString("to_status",
			mcp.Description("The status to advance the proposal to."),
		),
		mcp.WithString("actor",
			mcp.Description("Who is moving the proposal; recorded in the audit trail."),
		),
	)
}

// Handle processes the steward_proposals tool call.
func (t *ProposalsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := req.GetString("action", "")

	switch action {
	case "list":
		proposals, err := t.delivery.ListProposals(
			req.GetString("target", ""),
			triage.Status(req.GetString("status", "")),
		)
		if err != nil {
			return nil, err
		}
		return jsonResult(map[string]any{"count": len(proposals), "proposals": proposals})

	case "escalations":
		escalations, err := t.delivery.ListEscalations(req.GetString("target", ""))
		if err != nil {
			return nil, err
		}
		return jsonResult(map[string]any{"count": len(escalations), "escalations": escalations})

	case "get":
		id := req.GetString("proposal_id", "")
		if strings.TrimSpace(id) == "" {
			return mcp.NewToolResultError("'proposal_id' is required"), nil
		}
		p, _, err := t.delivery.GetProposal(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}
		return jsonResult(p)

	case "advance":
		id := req.GetString("proposal_id", "")
		to := req.GetString("to_status", "")
		if strings.TrimSpace(id) == "" || strings.TrimSpace(to) == "" {
			return mcp.NewToolResultError("'proposal_id' and 'to_status' are required"), nil
		}
		p, err := t.delivery.AdvanceProposal(id, triage.Status(to), req.GetString("actor", "agent"))
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				return mcp.NewToolResultError(err.Error()), nil
			case strings.Contains(err.Error(), "needs_approval"):
				return mcp.NewToolResultError(err.Error() +
					" — submit steward_approve with target_type=\"proposal\" first"), nil
			case strings.Contains(err.Error(), "cannot move"):
				return mcp.NewToolResultError(err.Error()), nil
			case strings.Contains(err.Error(), "blocked"):
				return mcp.NewToolResultError(err.Error()), nil
			default:
				return nil, err
			}
		}
		return jsonResult(p)

	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"invalid action %q: must be one of: list, get, advance, escalations", action)), nil
	}
}

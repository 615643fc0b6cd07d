package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/steward/internal/governance"
)

// ApproveTool handles the steward_approve MCP tool. An approval is the
// human sign-off the align gate and the proposal approval gate check
// for; it must acknowledge both the risk and the rollback plan.
type ApproveTool struct {
	approvals *governance.Service
}

// NewApproveTool creates the tool with its dependencies.
func NewApproveTool(approvals *governance.Service) *ApproveTool {
	return &ApproveTool{approvals: approvals}
}

// Definition returns the MCP tool definition for registration.
func (t *ApproveTool) Definition() mcp.Tool {
	return mcp.NewTool("steward_approve",
		mcp.WithDescription(
			"Record a human approval. Use target_type 'pipeline' with the pipeline id "+
				"to pass an align gate, or target_type 'proposal' with the proposal id "+
				"to satisfy a proposal's approval requirement. Both acknowledgement "+
				"flags must be true — the engine never self-approves.",
		),
		mcp.WithString("target_type",
			mcp.Required(),
			mcp.Description("What is being approved: pipeline or proposal."),
		),
		mcp.WithString("target_id",
			mcp.Required(),
			mcp.Description("The pipeline or proposal id."),
		),
		mcp.WithString("approved_by",
			mcp.Required(),
			mcp.Description("Who approved — the human's identity, not the agent's."),
		),
		mcp.WithBoolean("risk_acknowledged",
			mcp.Required(),
			mcp.Description("The approver has read and accepted the stated risk."),
		),
		mcp.WithBoolean("rollback_plan_acknowledged",
			mcp.Required(),
			mcp.Description("The approver has confirmed a rollback plan exists."),
		),
	)
}

// Handle processes the steward_approve tool call.
func (t *ApproveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a := governance.Approval{
		TargetType:               req.GetString("target_type", ""),
		TargetID:                 req.GetString("target_id", ""),
		ApprovedBy:               req.GetString("approved_by", ""),
		RiskAcknowledged:         boolArg(req, "risk_acknowledged", false),
		RollbackPlanAcknowledged: boolArg(req, "rollback_plan_acknowledged", false),
	}
	if strings.TrimSpace(a.TargetType) == "" || strings.TrimSpace(a.TargetID) == "" {
		return mcp.NewToolResultError("'target_type' and 'target_id' are required"), nil
	}

	saved, err := t.approvals.Submit(a)
	if err != nil {
		// Submit only fails validation here; storage errors are rare and
		// still worth showing to the caller as a retryable mistake.
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(saved)
}

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/steward/internal/decisions"
)

// ADRTool handles the steward_adr MCP tool: recording binding
// decisions, superseding them, confirming challengers, and listing
// what currently binds a target.
type ADRTool struct {
	decisions *decisions.Engine
}

// NewADRTool creates the tool with its dependencies.
func NewADRTool(dec *decisions.Engine) *ADRTool {
	return &ADRTool{decisions: dec}
}

// Definition returns the MCP tool definition for registration.
func (t *ADRTool) Definition() mcp.Tool {
	return mcp.NewTool("steward_adr",
		mcp.WithDescription(
			"Manage Architecture Decision Records — the anti-oscillation memory. "+
				"Actions: 'record' a new binding decision; 'supersede' an existing one "+
				"(blocked during its cooldown unless the challenger clears the "+
				"confidence margin and has enough confirmations); 'confirm' a "+
				"challenger observation against an ADR; 'list' the decisions binding "+
				"a target. Recorded decisions block contradicting proposals for the "+
				"cooldown window.",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("record, supersede, confirm, or list."),
		),
		mcp.WithString("target",
			mcp.Description("Target the decision binds; empty means all targets."),
		),
		mcp.WithString("adr_id",
			mcp.Description("Existing ADR id, for supersede and confirm."),
		),
		mcp.WithString("title",
			mcp.Description("Short decision title. Example: 'Use SQLite over flat files'."),
		),
		mcp.WithString("context",
			mcp.Description("Problem context — what situation required a decision."),
		),
		mcp.WithString("decision",
			mcp.Description("The decision itself; its text is what contradiction checks match against."),
		),
		mcp.WithString("rationale",
			mcp.Description("Why this decision was made."),
		),
		mcp.WithString("alternatives_rejected",
			mcp.Description("Options considered and rejected."),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Decision confidence in [0,1]."),
		),
		mcp.WithNumber("cooldown_days",
			mcp.Description("How long the decision protects its topic. Default from configuration."),
		),
		mcp.WithNumber("min_confidence_margin",
			mcp.Description("How much a challenger must exceed the decision's confidence by."),
		),
		mcp.WithNumber("min_confirmations",
			mcp.Description("Consecutive confirmations a challenger needs before superseding inside the cooldown."),
		),
		mcp.WithString("actor",
			mcp.Description("Who is recording or superseding."),
		),
	)
}

// Handle processes the steward_adr tool call.
func (t *ADRTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := req.GetString("action", "")

	switch action {
	case "record":
		adr, err := t.decisions.Record(t.params(req))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(adr)

	case "supersede":
		oldID := req.GetString("adr_id", "")
		if strings.TrimSpace(oldID) == "" {
			return mcp.NewToolResultError("'adr_id' is required — name the decision being superseded"), nil
		}
		adr, err := t.decisions.Supersede(oldID, t.params(req))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(adr)

	case "confirm":
		adrID := req.GetString("adr_id", "")
		if strings.TrimSpace(adrID) == "" {
			return mcp.NewToolResultError("'adr_id' is required — name the decision being challenged"), nil
		}
		count, err := t.decisions.Confirm(adrID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"adr_id": adrID, "confirmations": count})

	case "list":
		adrs, err := t.decisions.Active(req.GetString("target", ""))
		if err != nil {
			return nil, err
		}
		return jsonResult(map[string]any{"count": len(adrs), "adrs": adrs})

	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"invalid action %q: must be one of: record, supersede, confirm, list", action)), nil
	}
}

func (t *ADRTool) params(req mcp.CallToolRequest) decisions.RecordParams {
	return decisions.RecordParams{
		TargetID:             req.GetString("target", ""),
		Title:                req.GetString("title", ""),
		Context:              req.GetString("context", ""),
		Decision:             req.GetString("decision", ""),
		Rationale:            req.GetString("rationale", ""),
		AlternativesRejected: req.GetString("alternatives_rejected", ""),
		Confidence:           req.GetFloat("confidence", 0),
		CooldownDays:         int(req.GetFloat("cooldown_days", 0)),
		MinConfidenceMargin:  req.GetFloat("min_confidence_margin", 0),
		MinConfirmations:     int(req.GetFloat("min_confirmations", 0)),
		Actor:                req.GetString("actor", "agent"),
	}
}

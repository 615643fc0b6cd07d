package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/steward/internal/governance"
	"github.com/HendryAvila/steward/internal/store"
)

// PolicyTool handles the steward_policy MCP tool: listing, enabling,
// and disabling the policy rules every proposal is evaluated against.
type PolicyTool struct {
	rules *governance.Rules
}

// NewPolicyTool creates the tool with its dependencies.
func NewPolicyTool(rules *governance.Rules) *PolicyTool {
	return &PolicyTool{rules: rules}
}

// Definition returns the MCP tool definition for registration.
func (t *PolicyTool) Definition() mcp.Tool {
	return mcp.NewTool("steward_policy",
		mcp.WithDescription(
			"Manage policy rules. Actions: 'list' all rules with their enabled "+
				"state, 'enable' or 'disable' one by id. Disabled rules are skipped "+
				"during proposal evaluation; the autonomy-level approval gate is not "+
				"a rule and cannot be disabled.",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("list, enable, or disable."),
		),
		mcp.WithString("rule_id",
			mcp.Description("Rule id, for enable and disable."),
		),
		mcp.WithString("actor",
			mcp.Description("Who is changing policy; recorded in the audit trail."),
		),
	)
}

// Handle processes the steward_policy tool call.
func (t *PolicyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := req.GetString("action", "")

	switch action {
	case "list":
		rules, err := t.rules.List()
		if err != nil {
			return nil, err
		}
		return jsonResult(map[string]any{"count": len(rules), "rules": rules})

	case "enable", "disable":
		id := req.GetString("rule_id", "")
		if strings.TrimSpace(id) == "" {
			return mcp.NewToolResultError("'rule_id' is required — list rules to see valid ids"), nil
		}
		rule, err := t.rules.SetEnabled(id, action == "enable", req.GetString("actor", "agent"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}
		return jsonResult(rule)

	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"invalid action %q: must be one of: list, enable, disable", action)), nil
	}
}

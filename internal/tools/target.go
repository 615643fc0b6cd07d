package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/steward/internal/delivery"
	"github.com/HendryAvila/steward/internal/governance"
	"github.com/HendryAvila/steward/internal/policy"
	"github.com/HendryAvila/steward/internal/store"
)

// TargetTool handles the steward_target MCP tool: registering targets
// with their governance configuration and reading their scorecards.
type TargetTool struct {
	registry *governance.Registry
	delivery *delivery.Service
}

// NewTargetTool creates the tool with its dependencies.
func NewTargetTool(registry *governance.Registry, svc *delivery.Service) *TargetTool {
	return &TargetTool{registry: registry, delivery: svc}
}

// Definition returns the MCP tool definition for registration.
func (t *TargetTool) Definition() mcp.Tool {
	return mcp.NewTool("steward_target",
		mcp.WithDescription(
			"Manage targets — the projects under improvement. Actions: 'register' "+
				"a target with its governance configuration, 'get' one, 'list' all, "+
				"or read a target's 'scorecard' (per-dimension health on a 0-100 "+
				"scale, nudged by merged proposals). Autonomy levels: advisory, "+
				"pr_only, auto_merge, auto_release.",
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("register, get, list, or scorecard."),
		),
		mcp.WithString("id",
			mcp.Description("Target identifier, e.g. 'payments-service'."),
		),
		mcp.WithString("name",
			mcp.Description("Human-readable target name."),
		),
		mcp.WithString("description",
			mcp.Description("What the target is."),
		),
		mcp.WithString("source_path",
			mcp.Description("Where the target's source lives."),
		),
		mcp.WithString("autonomy",
			mcp.Description("Autonomy level. Default from configuration (pr_only)."),
		),
		mcp.WithNumber("change_budget",
			mcp.Description("Proposals allowed into delivery per window."),
		),
		mcp.WithNumber("max_change_size",
			mcp.Description("Estimated-size ceiling per proposal."),
		),
		mcp.WithArray("allowed_categories",
			mcp.Description("Proposal categories allowed for this target."),
		),
		mcp.WithBoolean("release_target",
			mcp.Description("Whether changes here ship straight to a release surface."),
		),
	)
}

// Handle processes the steward_target tool call.
func (t *TargetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := req.GetString("action", "")

	switch action {
	case "register":
		id := req.GetString("id", "")
		if strings.TrimSpace(id) == "" {
			return mcp.NewToolResultError("'id' is required — give the target an identifier"), nil
		}
		categories, err := stringsArg(req, "allowed_categories")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		target, err := t.registry.Register(governance.Target{
			ID:          id,
			Name:        req.GetString("name", id),
			Description: req.GetString("description", ""),
			SourcePath:  req.GetString("source_path", ""),
			Config: policy.TargetConfig{
				Autonomy:          policy.AutonomyLevel(req.GetString("autonomy", "")),
				ChangeBudget:      int(req.GetFloat("change_budget", 0)),
				MaxChangeSize:     int(req.GetFloat("max_change_size", 0)),
				AllowedCategories: categories,
				ReleaseTarget:     boolArg(req, "release_target", false),
			},
		})
		if err != nil {
			if errors.Is(err, store.ErrExists) {
				return mcp.NewToolResultError(fmt.Sprintf("target %q is already registered", id)), nil
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(target)

	case "get":
		id := req.GetString("id", "")
		if strings.TrimSpace(id) == "" {
			return mcp.NewToolResultError("'id' is required"), nil
		}
		target, err := t.registry.Get(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}
		return jsonResult(target)

	case "list":
		targets, err := t.registry.List()
		if err != nil {
			return nil, err
		}
		return jsonResult(map[string]any{"count": len(targets), "targets": targets})

	case "scorecard":
		id := req.GetString("id", "")
		if strings.TrimSpace(id) == "" {
			return mcp.NewToolResultError("'id' is required"), nil
		}
		sc, err := t.delivery.Scorecard(id)
		if err != nil {
			return nil, err
		}
		return jsonResult(sc)

	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"invalid action %q: must be one of: register, get, list, scorecard", action)), nil
	}
}

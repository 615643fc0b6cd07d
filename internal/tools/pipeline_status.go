package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/steward/internal/pipeline"
	"github.com/HendryAvila/steward/internal/store"
)

// PipelineStatusTool handles the steward_pipeline_status MCP tool:
// inspection plus the two coarse escape hatches, cancel and
// force_advance.
type PipelineStatusTool struct {
	engine *pipeline.Engine
}

// NewPipelineStatusTool creates the tool with its dependencies.
func NewPipelineStatusTool(engine *pipeline.Engine) *PipelineStatusTool {
	return &PipelineStatusTool{engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *PipelineStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("steward_pipeline_status",
		mcp.WithDescription(
			"Inspect a pipeline's state, or apply an explicit caller instruction: "+
				"'cancel' moves it to the terminal cancelled status, 'force_advance' "+
				"skips past the current overlay. The engine never cancels or times "+
				"out on its own — a stuck overlay stays stuck until one of these.",
		),
		mcp.WithString("pipeline_id",
			mcp.Required(),
			mcp.Description("The pipeline to inspect or act on."),
		),
		mcp.WithString("action",
			mcp.Description("status (default), cancel, or force_advance."),
		),
		mcp.WithString("reason",
			mcp.Description("Why the pipeline is being cancelled; stored on the state."),
		),
	)
}

// Handle processes the steward_pipeline_status tool call.
func (t *PipelineStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("pipeline_id", "")
	if strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("'pipeline_id' is required"), nil
	}
	action := req.GetString("action", "status")

	var (
		st  *pipeline.State
		err error
	)
	switch action {
	case "status":
		st, err = t.engine.Get(id)
	case "cancel":
		st, err = t.engine.Cancel(id, req.GetString("reason", "cancelled by caller"))
	case "force_advance":
		st, err = t.engine.ForceAdvance(id)
	default:
		return mcp.NewToolResultError(fmt.Sprintf(
			"invalid action %q: must be one of: status, cancel, force_advance", action)), nil
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, err
	}
	return jsonResult(st)
}

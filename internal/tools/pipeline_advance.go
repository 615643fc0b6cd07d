package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/steward/internal/pipeline"
	"github.com/HendryAvila/steward/internal/store"
)

// PipelineAdvanceTool handles the steward_pipeline_advance MCP tool.
// One call executes exactly one step of the pipeline's current overlay.
type PipelineAdvanceTool struct {
	engine *pipeline.Engine
}

// NewPipelineAdvanceTool creates the tool with its dependencies.
func NewPipelineAdvanceTool(engine *pipeline.Engine) *PipelineAdvanceTool {
	return &PipelineAdvanceTool{engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *PipelineAdvanceTool) Definition() mcp.Tool {
	return mcp.NewTool("steward_pipeline_advance",
		mcp.WithDescription(
			"Execute one step of a pipeline's current overlay. The result always "+
				"carries next.control: 'agent' means keep going, 'user' is a hard "+
				"stop — a human must act (usually via steward_approve) before the "+
				"next call is meaningful.",
		),
		mcp.WithString("pipeline_id",
			mcp.Required(),
			mcp.Description("The pipeline to advance, from steward_pipeline_start."),
		),
	)
}

// Handle processes the steward_pipeline_advance tool call.
func (t *PipelineAdvanceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("pipeline_id", "")
	if strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("'pipeline_id' is required"), nil
	}

	res, err := t.engine.Advance(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return mcp.NewToolResultError(err.Error()), nil
		case errors.Is(err, store.ErrConflict):
			// Someone else advanced this pipeline between our read and
			// write. The step was not applied; re-reading is safe.
			return mcp.NewToolResultError(
				"concurrent advance detected — call steward_pipeline_status, then retry"), nil
		default:
			return nil, err
		}
	}
	return jsonResult(res)
}

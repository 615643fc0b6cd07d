package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/steward/internal/pipeline"
)

// PipelineStartTool handles the steward_pipeline_start MCP tool.
type PipelineStartTool struct {
	engine *pipeline.Engine
}

// NewPipelineStartTool creates the tool with its dependencies.
func NewPipelineStartTool(engine *pipeline.Engine) *PipelineStartTool {
	return &PipelineStartTool{engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *PipelineStartTool) Definition() mcp.Tool {
	return mcp.NewTool("steward_pipeline_start",
		mcp.WithDescription(
			"Start an improvement pipeline for a target. The intent string is "+
				"classified into a command (improve, review, release, consult) which "+
				"selects the overlay sequence. Returns the new pipeline state; call "+
				"steward_pipeline_advance to execute the first step.",
		),
		mcp.WithString("intent",
			mcp.Required(),
			mcp.Description("What the caller wants, in natural language. Example: 'review the auth module'."),
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Target identifier. 'self', 'this project' and similar aliases resolve to the system's own codebase."),
		),
		mcp.WithArray("perspectives",
			mcp.Description("Optional analysis perspectives for the research overlay. Defaults to architecture, reliability, security, developer_experience."),
		),
	)
}

// Handle processes the steward_pipeline_start tool call.
func (t *PipelineStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	intent := req.GetString("intent", "")
	target := req.GetString("target", "")
	if strings.TrimSpace(intent) == "" {
		return mcp.NewToolResultError("'intent' is required — say what the pipeline should accomplish"), nil
	}
	if strings.TrimSpace(target) == "" {
		return mcp.NewToolResultError("'target' is required — name the target project"), nil
	}
	perspectives, err := stringsArg(req, "perspectives")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	st, err := t.engine.Start(intent, target, perspectives)
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{
		"pipeline": st,
		"next": map[string]string{
			"control":     pipeline.ControlAgent,
			"description": "pipeline created",
			"instruction": "Call steward_pipeline_advance with pipeline_id=" + st.ID + " to execute the first step.",
		},
	})
}

// Package tools implements the MCP tool handlers for the improvement
// pipeline.
//
// Each tool is a struct that receives its dependencies at construction
// and exposes a Definition for registration plus a Handle compatible
// with mcp-go's CallToolRequest signature.
//
// Design principles:
// - one file = one tool
// - caller-input mistakes come back as tool result errors, never Go errors
// - internal failures (store, engine) come back as Go errors
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// jsonResult marshals a payload as the pretty-printed JSON body of a
// successful tool result. Every structured response goes through here
// so the calling agent always sees the same shape.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// decodeArg re-marshals a structured argument (array or object) into a
// typed value. Returns an error the caller should surface as a tool
// result error.
func decodeArg(req mcp.CallToolRequest, key string, out any) error {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return fmt.Errorf("'%s' is required", key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("'%s' is not valid JSON: %v", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("'%s' has the wrong shape: %v", key, err)
	}
	return nil
}

// stringsArg reads an optional array-of-strings argument.
func stringsArg(req mcp.CallToolRequest, key string) ([]string, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var out []string
	if err := decodeArg(req, key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// boolArg reads an optional boolean argument, defaulting to fallback.
func boolArg(req mcp.CallToolRequest, key string, fallback bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return fallback
	}
	return v
}

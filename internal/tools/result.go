// Package tools implements the MCP tool handlers exposed by "specify serve".
//
// Each tool is a struct holding its dependencies, with Definition() for
// registration and Handle() matching mcp-go's handler signature. Expected
// failures (bad arguments, blocked transitions) are returned as tool
// error results so the agent can read them; only unexpected failures are
// returned as Go errors.
package tools

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// jsonResult renders v as an indented JSON text result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// featureID reads a positive integer argument. ok is false when the
// argument is absent.
func featureID(req mcp.CallToolRequest, key string) (id int, ok bool, err error) {
	args := req.GetArguments()
	raw, present := args[key]
	if !present || raw == nil {
		return 0, false, nil
	}
	id = req.GetInt(key, 0)
	if id <= 0 {
		return 0, true, fmt.Errorf("'%s' must be a positive integer", key)
	}
	return id, true, nil
}

// resolveIn joins a caller-supplied path onto root and refuses paths that
// escape it.
func resolveIn(root, rel string) (string, error) {
	if rel == "" || rel == "." {
		return root, nil
	}
	p := rel
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	r, err := filepath.Rel(root, p)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the project", rel)
	}
	return p, nil
}

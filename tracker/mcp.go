package tracker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/duescan/duescan/kit"
)

// RegisterMCP registers the tracker tools on an MCP server, giving agents
// the same operations the HTTP API exposes.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerScanTool(srv)
	s.registerDeadlinesTool(srv)
	s.registerAssignmentsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// --- scan_course ---

type scanReq struct {
	CourseID string `json:"course_id"`
}

func (s *Service) registerScanTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "scan_course",
		Description: "Scan a tracked course page now and return the extracted assignments with run statistics.",
		InputSchema: inputSchema(map[string]any{
			"course_id": map[string]any{"type": "string", "description": "Course ID to scan"},
		}, []string{"course_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*scanReq)
		return s.ScanCourse(ctx, r.CourseID)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r scanReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- list_deadlines ---

type deadlinesReq struct {
	Days int `json:"days"`
}

func (s *Service) registerDeadlinesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "list_deadlines",
		Description: "List assignments due within the next N days across all tracked courses.",
		InputSchema: inputSchema(map[string]any{
			"days": map[string]any{"type": "integer", "description": "Window in days (default 30)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*deadlinesReq)
		days := r.Days
		if days <= 0 {
			days = 30
		}
		return s.UpcomingDeadlines(ctx, time.Duration(days)*24*time.Hour)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r deadlinesReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- list_assignments ---

type assignmentsReq struct {
	CourseID string `json:"course_id"`
}

func (s *Service) registerAssignmentsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "list_assignments",
		Description: "List the stored assignments for one tracked course.",
		InputSchema: inputSchema(map[string]any{
			"course_id": map[string]any{"type": "string", "description": "Course ID"},
		}, []string{"course_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*assignmentsReq)
		return s.Assignments(ctx, r.CourseID)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r assignmentsReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

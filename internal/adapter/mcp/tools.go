package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/service"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.kpiSummaryTool(),
		s.paybackProjectionTool(),
		s.occupancySummaryTool(),
	)
}

func periodOptions() []mcplib.ToolOption {
	return []mcplib.ToolOption{
		mcplib.WithString("businessId",
			mcplib.Required(),
			mcplib.Description("The business ID to query"),
		),
		mcplib.WithString("period",
			mcplib.Description("Time period for the summary"),
			mcplib.Enum(business.Periods()...),
		),
		mcplib.WithString("from", mcplib.Description("Start date (ISO format) for custom period")),
		mcplib.WithString("to", mcplib.Description("End date (ISO format) for custom period")),
	}
}

func (s *Server) kpiSummaryTool() mcpserver.ServerTool {
	opts := append([]mcplib.ToolOption{
		mcplib.WithDescription("Get KPI summary for a business over a time period"),
		mcplib.WithReadOnlyHintAnnotation(true),
	}, periodOptions()...)
	return mcpserver.ServerTool{
		Tool:    mcplib.NewTool("get_kpi_summary", opts...),
		Handler: s.handleKPISummary,
	}
}

func (s *Server) paybackProjectionTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_payback_projection",
		mcplib.WithDescription("Get payback projection for a business based on financial config"),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithString("businessId",
			mcplib.Required(),
			mcplib.Description("The business ID to query"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handlePaybackProjection,
	}
}

func (s *Server) occupancySummaryTool() mcpserver.ServerTool {
	opts := append([]mcplib.ToolOption{
		mcplib.WithDescription("Get occupancy heatmap data for padel courts"),
		mcplib.WithReadOnlyHintAnnotation(true),
	}, periodOptions()...)
	return mcpserver.ServerTool{
		Tool:    mcplib.NewTool("get_occupancy_summary", opts...),
		Handler: s.handleOccupancySummary,
	}
}

// periodQuery reads the shared period arguments of a tool call.
func periodQuery(req *mcplib.CallToolRequest) (service.PeriodQuery, error) {
	id := req.GetString("businessId", "")
	if id == "" {
		return service.PeriodQuery{}, fmt.Errorf("businessId is required")
	}
	return service.PeriodQuery{
		BusinessID: id,
		Period:     business.ParsePeriod(req.GetString("period", "")),
		From:       req.GetString("from", ""),
		To:         req.GetString("to", ""),
	}, nil
}

func (s *Server) handleKPISummary(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tools == nil {
		return mcplib.NewToolResultError("data tools not configured"), nil
	}
	q, err := periodQuery(&req)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	return marshalResult(s.deps.Tools.KPISummary(ctx, q))
}

func (s *Server) handlePaybackProjection(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tools == nil {
		return mcplib.NewToolResultError("data tools not configured"), nil
	}
	id := req.GetString("businessId", "")
	if id == "" {
		return mcplib.NewToolResultError("businessId is required"), nil
	}
	return marshalResult(s.deps.Tools.PaybackProjection(ctx, id))
}

func (s *Server) handleOccupancySummary(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tools == nil {
		return mcplib.NewToolResultError("data tools not configured"), nil
	}
	q, err := periodQuery(&req)
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	return marshalResult(s.deps.Tools.OccupancySummary(ctx, q))
}

// marshalResult turns a data tool's output into a tool result. Tool
// failures are reported in-band so the calling assistant can react.
func marshalResult(data any, err error) (*mcplib.CallToolResult, error) {
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("tool failed", err), nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return toolResultJSON(string(b)), nil
}

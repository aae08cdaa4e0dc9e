package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/aruna-bi/aruna/internal/adapter/otel"
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/domain/chat"
	"github.com/aruna-bi/aruna/internal/domain/tool"
)

// Dispatch is the outcome of one tool call. Dashboard is set only by a
// successful update_dashboard_view call.
type Dispatch struct {
	Name      string
	Result    tool.Result
	Dashboard *tool.DashboardUpdate
}

// Message renders the outcome as the tool message answering call.
func (d Dispatch) Message(call chat.ToolCall) chat.Message {
	return chat.Message{
		Role:       chat.RoleTool,
		Content:    d.Result.Content(),
		ToolCallID: call.ID,
	}
}

// Dispatcher executes a single tool call. Implementations never return an
// error: every failure is reported through the Result.
type Dispatcher interface {
	Dispatch(ctx context.Context, call chat.ToolCall) Dispatch
}

// ToolDispatcher routes tool calls for one business. The business ID it was
// created with always wins over any businessId the model supplies.
type ToolDispatcher struct {
	tools      DataTools
	businessID string
	policy     tool.ArgParsePolicy
	metrics    *cfotel.Metrics
}

// NewToolDispatcher creates a dispatcher bound to a trusted business ID.
func NewToolDispatcher(tools DataTools, businessID string, policy tool.ArgParsePolicy) *ToolDispatcher {
	if policy == "" {
		policy = tool.UseEmptyArgs
	}
	return &ToolDispatcher{tools: tools, businessID: businessID, policy: policy}
}

// SetMetrics enables tool call counters.
func (d *ToolDispatcher) SetMetrics(m *cfotel.Metrics) { d.metrics = m }

// Dispatch executes call. Panics inside a tool are recovered into a failed Result.
func (d *ToolDispatcher) Dispatch(ctx context.Context, call chat.ToolCall) (out Dispatch) {
	name := call.Function.Name
	out.Name = name

	ctx, span := cfotel.StartToolCallSpan(ctx, call.ID, name)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool panicked", "tool", name, "tool_call_id", call.ID, "panic", r)
			out = Dispatch{Name: name, Result: tool.Fail("tool %s failed: %v", name, r)}
		}
		var spanErr error
		if !out.Result.Success {
			spanErr = errors.New(out.Result.Error)
		}
		cfotel.EndSpan(span, spanErr)
		if d.metrics != nil {
			d.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", name),
				attribute.Bool("success", out.Result.Success),
			))
		}
	}()

	kind := tool.ParseKind(name)
	if kind == tool.KindUnknown {
		slog.Warn("model requested unknown tool", "tool", name, "tool_call_id", call.ID)
		out.Result = tool.UnknownTool(name)
		return out
	}

	args, err := tool.ParseArgs(call.Function.Arguments)
	if err != nil {
		slog.Warn("malformed tool arguments",
			"tool", name, "tool_call_id", call.ID, "policy", string(d.policy), "error", err)
		if d.policy == tool.FailOnMalformedArgs {
			out.Result = tool.Fail("Invalid arguments for %s: %v", name, err)
			return out
		}
	}

	if kind.BusinessScoped() {
		if supplied := args.String("businessId"); supplied != "" && supplied != d.businessID {
			slog.Warn("ignoring model-supplied business id",
				"tool", name, "supplied", supplied, "business_id", d.businessID)
		}
	}

	switch kind {
	case tool.KindKPISummary:
		out.Result = toResult(d.tools.KPISummary(ctx, d.periodQuery(args)))
	case tool.KindPaybackProjection:
		out.Result = toResult(d.tools.PaybackProjection(ctx, d.businessID))
	case tool.KindOccupancySummary:
		out.Result = toResult(d.tools.OccupancySummary(ctx, d.periodQuery(args)))
	case tool.KindUpdateDashboard:
		update := &tool.DashboardUpdate{Widgets: tool.NormalizeWidgets(args["widgets"])}
		out.Result = tool.OK(update)
		out.Dashboard = update
	default:
		out.Result = tool.UnknownTool(name)
	}
	return out
}

func (d *ToolDispatcher) periodQuery(args tool.Args) PeriodQuery {
	return PeriodQuery{
		BusinessID: d.businessID,
		Period:     business.ParsePeriod(args.String("period")),
		From:       args.String("from"),
		To:         args.String("to"),
	}
}

func toResult(data any, err error) tool.Result {
	if err != nil {
		return tool.Fail("%s", err.Error())
	}
	return tool.OK(data)
}

var _ Dispatcher = (*ToolDispatcher)(nil)

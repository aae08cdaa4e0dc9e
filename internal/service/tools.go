package service

import (
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/domain/chat"
	"github.com/aruna-bi/aruna/internal/domain/tool"
)

var toolRegistry = buildToolRegistry()

// ToolRegistry returns the tool definitions advertised to the model, in a
// fixed order. The returned slice is shared and must not be modified.
func ToolRegistry() []chat.ToolDefinition { return toolRegistry }

func businessIDProperty() chat.Property {
	return chat.Property{Type: "string", Description: "The business ID"}
}

func periodProperties(subject string) map[string]chat.Property {
	return map[string]chat.Property{
		"businessId": businessIDProperty(),
		"period": {
			Type:        "string",
			Enum:        business.Periods(),
			Description: "Time period for the " + subject,
		},
		"from": {Type: "string", Description: "Start date (ISO string) for custom period"},
		"to":   {Type: "string", Description: "End date (ISO string) for custom period"},
	}
}

func buildToolRegistry() []chat.ToolDefinition {
	defs := []chat.ToolDefinition{
		chat.NewFunctionTool(tool.NameKPISummary,
			"Get a summary of KPIs for a business over a specified period",
			chat.Parameters{
				Properties: periodProperties("KPI summary"),
				Required:   []string{"businessId", "period"},
			}),
		chat.NewFunctionTool(tool.NamePaybackProjection,
			"Get payback projection based on initial investment and historical profits",
			chat.Parameters{
				Properties: map[string]chat.Property{"businessId": businessIDProperty()},
				Required:   []string{"businessId"},
			}),
		chat.NewFunctionTool(tool.NameOccupancySummary,
			"Get occupancy summary for padel courts (court x hour matrix). Only available for padel businesses.",
			chat.Parameters{
				Properties: periodProperties("occupancy summary"),
				Required:   []string{"businessId", "period"},
			}),
		chat.NewFunctionTool(tool.NameUpdateDashboard,
			"Update the dashboard visualization by specifying which widgets to show. "+
				"Use this when the user asks to see specific metrics or visualizations.",
			chat.Parameters{
				Properties: map[string]chat.Property{
					"widgets": {
						Type: "array",
						Items: &chat.Property{
							Type: "object",
							Properties: map[string]chat.Property{
								"visualId": {
									Type:        "string",
									Description: "The visual ID (e.g., 'kpi_cards', 'occupancy_heatmap', 'revenue_timeseries', 'menu_margin_chart')",
								},
								"props": {
									Type:        "object",
									Description: "Props to pass to the visualization component",
								},
							},
							Required: []string{"visualId"},
						},
					},
				},
				Required: []string{"widgets"},
			}),
	}
	for i := range defs {
		if err := defs[i].Validate(); err != nil {
			panic("invalid tool definition: " + err.Error())
		}
	}
	return defs
}

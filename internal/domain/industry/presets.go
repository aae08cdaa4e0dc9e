package industry

// BuiltinModules returns the industry modules shipped with Aruna.
func BuiltinModules() []Module {
	return []Module{PadelModule(), FnBModule()}
}

func kpiCardsVisual() VisualDefinition {
	return VisualDefinition{
		ID:             "kpi_cards",
		Type:           VisualCard,
		Label:          "KPI Cards",
		Description:    "Key performance indicators",
		DefaultVisible: true,
	}
}

func revenueTimeseriesVisual() VisualDefinition {
	return VisualDefinition{
		ID:             "revenue_timeseries",
		Type:           VisualLine,
		Label:          "Revenue Over Time",
		Description:    "Revenue trends",
		DefaultVisible: true,
	}
}

// PadelModule is the module for padel court businesses.
func PadelModule() Module {
	return Module{
		ID:    "padel",
		Label: "Padel Courts",
		KPIs: []KPIDefinition{
			{
				ID:          "revenue_total",
				Label:       "Total Revenue",
				Description: "Total revenue from court bookings",
				Compute:     computeRevenueTotal,
			},
			{
				ID:          "occupancy_rate",
				Label:       "Occupancy Rate",
				Description: "Percentage of court hours booked",
				Compute:     computeOccupancyRate,
			},
			{
				ID:          "avg_booking_value",
				Label:       "Average Booking Value",
				Description: "Average revenue per booking",
				Compute:     computeAverageBookingValue,
			},
		},
		Visuals: []VisualDefinition{
			kpiCardsVisual(),
			revenueTimeseriesVisual(),
			{
				ID:             "occupancy_heatmap",
				Type:           VisualHeatmap,
				Label:          "Occupancy Heatmap",
				Description:    "Court occupancy by hour",
				DefaultVisible: true,
			},
		},
		AgentContext: "You are an AI assistant for a padel court business. The business tracks:\n" +
			"- Revenue from court bookings\n" +
			"- Court occupancy rates\n" +
			"- Booking patterns by time and court\n\n" +
			"Key metrics: total revenue, occupancy rate, average booking value.\n" +
			"You can analyze booking trends, identify peak hours, optimize court utilization, " +
			"and provide insights on pricing strategies.",
	}
}

// FnBModule is the module for food and beverage businesses.
func FnBModule() Module {
	return Module{
		ID:    "fnb",
		Label: "Food & Beverage",
		KPIs: []KPIDefinition{
			{
				ID:          "revenue_total",
				Label:       "Total Revenue",
				Description: "Total revenue from food and beverage sales",
				Compute:     computeRevenueTotal,
			},
			{
				ID:          "gross_margin",
				Label:       "Gross Margin",
				Description: "Gross profit margin percentage",
				Compute:     computeGrossMargin,
			},
			{
				ID:          "top_menu_items",
				Label:       "Top Menu Items",
				Description: "Number of top performing menu items",
				Compute:     computeTopMenuItems,
			},
		},
		Visuals: []VisualDefinition{
			kpiCardsVisual(),
			revenueTimeseriesVisual(),
			{
				ID:             "menu_margin_chart",
				Type:           VisualBar,
				Label:          "Menu Item Margins",
				Description:    "Profit margin by menu item",
				DefaultVisible: false,
			},
		},
		AgentContext: "You are an AI assistant for a food and beverage business. The business tracks:\n" +
			"- Revenue from food and beverage sales\n" +
			"- Cost of goods sold (COGS)\n" +
			"- Gross margin and profitability\n" +
			"- Menu item performance\n\n" +
			"Key metrics: total revenue, gross margin, top menu items.\n" +
			"You can analyze sales trends, identify best-selling items, and provide insights " +
			"on menu optimization and pricing strategies.",
	}
}

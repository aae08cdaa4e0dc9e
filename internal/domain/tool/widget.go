package tool

import (
	"math"
	"sort"

	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/domain/industry"
)

// Well-known visual IDs understood by the dashboard renderer.
const (
	VisualKPICards          = "kpi_cards"
	VisualOccupancyHeatmap  = "occupancy_heatmap"
	VisualRevenueTimeseries = "revenue_timeseries"
	VisualMenuMarginChart   = "menu_margin_chart"
)

// Widget is a declarative instruction naming a visual and its props.
type Widget struct {
	VisualID string         `json:"visualId"`
	Props    map[string]any `json:"props"`
}

// DashboardUpdate is the ordered widget list produced by update_dashboard_view.
type DashboardUpdate struct {
	Widgets []Widget `json:"widgets"`
}

// NormalizeWidgets converts the raw "widgets" argument into widgets.
// Entries that are not objects are skipped; a missing or non-object
// props becomes an empty map.
func NormalizeWidgets(raw any) []Widget {
	items, _ := raw.([]any)
	widgets := make([]Widget, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		visualID, _ := obj["visualId"].(string)
		props, _ := obj["props"].(map[string]any)
		if props == nil {
			props = map[string]any{}
		}
		widgets = append(widgets, Widget{VisualID: visualID, Props: props})
	}
	return widgets
}

// BuildKPICardsWidget renders KPI results as cards. It reports false when
// there is nothing to show.
func BuildKPICardsWidget(kpis []industry.KPIResult) (Widget, bool) {
	if len(kpis) == 0 {
		return Widget{}, false
	}
	return Widget{
		VisualID: VisualKPICards,
		Props:    map[string]any{"kpis": kpis},
	}, true
}

// TimePoint is one value of a timeseries keyed by YYYY-MM-DD.
type TimePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// BuildRevenueTimeseriesWidget sums revenue per UTC day, oldest first.
// Expense transactions are ignored.
func BuildRevenueTimeseriesWidget(txs []business.Transaction) (Widget, bool) {
	byDay := make(map[string]float64)
	for i := range txs {
		if txs[i].Kind != business.KindRevenue {
			continue
		}
		byDay[txs[i].Date.UTC().Format("2006-01-02")] += txs[i].Amount
	}
	if len(byDay) == 0 {
		return Widget{}, false
	}

	points := make([]TimePoint, 0, len(byDay))
	for d, v := range byDay {
		points = append(points, TimePoint{Date: d, Value: math.Round(v*100) / 100})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })

	return Widget{
		VisualID: VisualRevenueTimeseries,
		Props: map[string]any{
			"points": points,
			"title":  "Revenue Over Time",
		},
	}, true
}

// BuildOccupancyHeatmapWidget renders a court x hour occupancy matrix.
func BuildOccupancyHeatmapWidget(courts []string, hours []int, matrix [][]float64) Widget {
	return Widget{
		VisualID: VisualOccupancyHeatmap,
		Props: map[string]any{
			"courts": courts,
			"hours":  hours,
			"matrix": matrix,
			"title":  "Court Occupancy Heatmap",
		},
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aruna-bi/aruna/internal/domain"
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/domain/tool"
)

func visualIDs(d *tool.DashboardUpdate) []string {
	ids := make([]string, len(d.Widgets))
	for i := range d.Widgets {
		ids[i] = d.Widgets[i].VisualID
	}
	return ids
}

func TestDefaultDashboard_Padel(t *testing.T) {
	s := newFakeStore()
	seedPadel(s)
	s.txs["padel-1"] = []business.Transaction{
		{Kind: business.KindRevenue, Amount: 1000, Date: toolsNow.Add(-time.Hour), Metadata: map[string]any{"courtId": "c1", "hour": float64(10)}},
		{Kind: business.KindRevenue, Amount: 500, Date: toolsNow.Add(-49 * time.Hour)},
	}

	d, err := newTestTools(s).DefaultDashboard(context.Background(), PeriodQuery{BusinessID: "padel-1", Period: business.PeriodWeek})
	if err != nil {
		t.Fatal(err)
	}
	ids := visualIDs(d)
	if len(ids) != 3 || ids[0] != tool.VisualKPICards || ids[1] != tool.VisualRevenueTimeseries || ids[2] != tool.VisualOccupancyHeatmap {
		t.Fatalf("widgets = %v", ids)
	}
	if points := d.Widgets[1].Props["points"].([]tool.TimePoint); len(points) != 2 {
		t.Errorf("points = %v", points)
	}
}

func TestDefaultDashboard_SkipsEmptyVisuals(t *testing.T) {
	s := newFakeStore()
	s.businesses["padel-2"] = &business.Business{ID: "padel-2", Type: "padel"}
	s.businesses["fnb-1"] = &business.Business{ID: "fnb-1", Type: "fnb"}
	tools := newTestTools(s)

	// No courts and no revenue: only the KPI cards remain.
	for _, id := range []string{"padel-2", "fnb-1"} {
		d, err := tools.DefaultDashboard(context.Background(), PeriodQuery{BusinessID: id, Period: business.PeriodMonth})
		if err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		if ids := visualIDs(d); len(ids) != 1 || ids[0] != tool.VisualKPICards {
			t.Errorf("%s: widgets = %v", id, ids)
		}
	}
}

func TestDefaultDashboard_Errors(t *testing.T) {
	s := newFakeStore()
	s.businesses["retail-1"] = &business.Business{ID: "retail-1", Type: "retail"}
	seedPadel(s)
	tools := newTestTools(s)

	tests := []struct {
		name string
		q    PeriodQuery
		want error
	}{
		{"missing id", PeriodQuery{}, domain.ErrValidation},
		{"unknown business", PeriodQuery{BusinessID: "nope"}, domain.ErrNotFound},
		{"no module", PeriodQuery{BusinessID: "retail-1"}, domain.ErrModuleNotFound},
		{"bad custom date", PeriodQuery{BusinessID: "padel-1", Period: business.PeriodCustom, From: "soon"}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tools.DefaultDashboard(context.Background(), tt.q)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

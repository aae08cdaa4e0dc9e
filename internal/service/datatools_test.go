package service

import (
	"context"
	"testing"
	"time"

	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/domain/industry"
)

var toolsNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestTools(s *fakeStore) *BusinessTools {
	t := NewBusinessTools(s, NewBusinessResolver(s, nil, 0), industry.DefaultRegistry())
	t.now = func() time.Time { return toolsNow }
	return t
}

func ptr(f float64) *float64 { return &f }

func seedPadel(s *fakeStore) {
	s.businesses["padel-1"] = &business.Business{ID: "padel-1", Name: "Court Kings", Type: "padel", Currency: "IDR", OwnerUID: "u1"}
	s.entities["padel-1"] = []business.Entity{
		{ID: "c1", Name: "Court A", Type: business.EntityCourt},
		{ID: "c2", Name: "", Type: business.EntityCourt},
		{ID: "x", Name: "Racket rental", Type: "equipment"},
	}
}

func TestKPISummary(t *testing.T) {
	s := newFakeStore()
	seedPadel(s)
	s.txs["padel-1"] = []business.Transaction{
		{Kind: business.KindRevenue, Amount: 1000, Date: toolsNow.Add(-24 * time.Hour)},
		{Kind: business.KindRevenue, Amount: 500, Date: toolsNow.Add(-48 * time.Hour)},
	}

	out, err := newTestTools(s).KPISummary(context.Background(), PeriodQuery{BusinessID: "padel-1", Period: business.PeriodWeek})
	if err != nil {
		t.Fatalf("KPISummary: %v", err)
	}
	sum := out.(KPISummary)
	if len(sum.KPIs) != 3 {
		t.Fatalf("expected 3 padel KPIs, got %d", len(sum.KPIs))
	}
	if sum.KPIs[0].ID != "revenue_total" || sum.KPIs[0].Value != 1500 {
		t.Errorf("first KPI = %+v", sum.KPIs[0])
	}
	if sum.KPIs[1].ID != "occupancy_rate" || sum.KPIs[2].ID != "avg_booking_value" {
		t.Errorf("KPI order not preserved: %+v", sum.KPIs)
	}
	if !sum.Period.To.Equal(toolsNow) || !sum.Period.From.Equal(toolsNow.Add(-7*24*time.Hour)) {
		t.Errorf("period = %+v", sum.Period)
	}
}

func TestKPISummary_Errors(t *testing.T) {
	s := newFakeStore()
	s.businesses["retail-1"] = &business.Business{ID: "retail-1", Type: "retail"}
	tools := newTestTools(s)

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"empty id", "  ", "Business ID is required"},
		{"missing business", "nope", "Business not found"},
		{"unknown type", "retail-1", "No module found for business type: retail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tools.KPISummary(context.Background(), PeriodQuery{BusinessID: tt.id, Period: business.PeriodMonth})
			if err == nil || err.Error() != tt.want {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestPaybackProjection_NoConfig(t *testing.T) {
	out, err := newTestTools(newFakeStore()).PaybackProjection(context.Background(), "b1")
	if err != nil {
		t.Fatal(err)
	}
	p := out.(PaybackProjection)
	if p.CurrentProgressRatio != 0 || p.EstimatedMonthsToPayback != nil {
		t.Errorf("projection = %+v", p)
	}
	if len(p.Assumptions) != 1 || p.Assumptions[0] != "No financial configuration found" {
		t.Errorf("assumptions = %v", p.Assumptions)
	}
}

func TestPaybackProjection(t *testing.T) {
	s := newFakeStore()
	s.configs["b1"] = &business.FinancialConfig{Currency: "IDR", InitialCapex: ptr(10000)}
	// 4000 net profit over two 30-day months: 2000/month, 6000 to go.
	s.txs["b1"] = []business.Transaction{
		{Kind: business.KindRevenue, Amount: 3000, Date: toolsNow.Add(-60 * 24 * time.Hour)},
		{Kind: business.KindRevenue, Amount: 2000, Date: toolsNow.Add(-10 * 24 * time.Hour)},
		{Kind: business.KindExpense, Amount: 1000, Date: toolsNow.Add(-5 * 24 * time.Hour)},
	}

	out, err := newTestTools(s).PaybackProjection(context.Background(), "b1")
	if err != nil {
		t.Fatal(err)
	}
	p := out.(PaybackProjection)
	if p.CurrentProgressRatio != 0.4 {
		t.Errorf("ratio = %v, want 0.4", p.CurrentProgressRatio)
	}
	if p.EstimatedMonthsToPayback == nil || *p.EstimatedMonthsToPayback != 3 {
		t.Errorf("months = %v, want 3", p.EstimatedMonthsToPayback)
	}
	if len(p.Assumptions) != 1 || p.Assumptions[0] != "Based on average monthly profit of 2000 IDR" {
		t.Errorf("assumptions = %v", p.Assumptions)
	}
}

func TestPaybackProjection_Loss(t *testing.T) {
	s := newFakeStore()
	s.configs["b1"] = &business.FinancialConfig{InitialCapex: ptr(10000)}
	s.txs["b1"] = []business.Transaction{
		{Kind: business.KindRevenue, Amount: 100, Date: toolsNow.Add(-30 * 24 * time.Hour)},
		{Kind: business.KindExpense, Amount: 500, Date: toolsNow.Add(-20 * 24 * time.Hour)},
	}
	out, err := newTestTools(s).PaybackProjection(context.Background(), "b1")
	if err != nil {
		t.Fatal(err)
	}
	p := out.(PaybackProjection)
	if p.CurrentProgressRatio != 0 || p.EstimatedMonthsToPayback != nil {
		t.Errorf("projection = %+v", p)
	}
	if len(p.Assumptions) != 1 || p.Assumptions[0] != "Average monthly profit is negative or zero" {
		t.Errorf("assumptions = %v", p.Assumptions)
	}
}

func TestPaybackProjection_NoRevenue(t *testing.T) {
	s := newFakeStore()
	s.configs["b1"] = &business.FinancialConfig{InitialCapex: ptr(10000)}
	out, err := newTestTools(s).PaybackProjection(context.Background(), "b1")
	if err != nil {
		t.Fatal(err)
	}
	p := out.(PaybackProjection)
	if p.EstimatedMonthsToPayback != nil || len(p.Assumptions) != 0 {
		t.Errorf("projection = %+v", p)
	}
}

func TestOccupancySummary(t *testing.T) {
	s := newFakeStore()
	seedPadel(s)
	at := toolsNow.Add(-time.Hour)
	s.txs["padel-1"] = []business.Transaction{
		// Court A by id, 10:00 for two hours.
		{Kind: business.KindRevenue, Amount: 1, Date: at, Metadata: map[string]any{"courtId": "c1", "hour": float64(10), "hours": float64(2)}},
		// Court A by name, 22:00 for three hours: only 22 fits.
		{Kind: business.KindRevenue, Amount: 1, Date: at, Metadata: map[string]any{"court": "Court A", "hour": float64(22), "hours": float64(3)}},
		// Second court by id given as "court".
		{Kind: business.KindRevenue, Amount: 1, Date: at, Metadata: map[string]any{"court": "c2", "hour": float64(8)}},
		// Skipped: unknown court, hour out of range, no hour, fractional hour.
		{Kind: business.KindRevenue, Amount: 1, Date: at, Metadata: map[string]any{"courtId": "zz", "hour": float64(9)}},
		{Kind: business.KindRevenue, Amount: 1, Date: at, Metadata: map[string]any{"courtId": "c1", "hour": float64(7)}},
		{Kind: business.KindRevenue, Amount: 1, Date: at, Metadata: map[string]any{"courtId": "c1"}},
		{Kind: business.KindRevenue, Amount: 1, Date: at, Metadata: map[string]any{"courtId": "c1", "hour": 9.5}},
	}

	out, err := newTestTools(s).OccupancySummary(context.Background(), PeriodQuery{BusinessID: "padel-1", Period: business.PeriodToday})
	if err != nil {
		t.Fatal(err)
	}
	occ := out.(OccupancySummary)
	if len(occ.Courts) != 2 || occ.Courts[0] != "Court A" || occ.Courts[1] != "c2" {
		t.Fatalf("courts = %v", occ.Courts)
	}
	if len(occ.Hours) != 15 || occ.Hours[0] != 8 || occ.Hours[14] != 22 {
		t.Fatalf("hours = %v", occ.Hours)
	}
	// "today" covers one started day, so each booked slot is 100%.
	a := occ.Matrix[0]
	if a[2] != 100 || a[3] != 100 || a[4] != 0 || a[14] != 100 || a[1] != 0 {
		t.Errorf("court A row = %v", a)
	}
	if occ.Matrix[1][0] != 100 {
		t.Errorf("court 2 row = %v", occ.Matrix[1])
	}
}

func TestOccupancySummary_Percentages(t *testing.T) {
	s := newFakeStore()
	seedPadel(s)
	s.txs["padel-1"] = []business.Transaction{
		{Kind: business.KindRevenue, Date: toolsNow.Add(-time.Hour), Metadata: map[string]any{"courtId": "c1", "hour": float64(9)}},
		{Kind: business.KindRevenue, Date: toolsNow.Add(-50 * time.Hour), Metadata: map[string]any{"courtId": "c1", "hour": float64(9)}},
	}
	out, err := newTestTools(s).OccupancySummary(context.Background(), PeriodQuery{BusinessID: "padel-1", Period: business.PeriodWeek})
	if err != nil {
		t.Fatal(err)
	}
	// 2 bookings over 7 days = 28.57% -> 28.6
	if got := out.(OccupancySummary).Matrix[0][1]; got != 28.6 {
		t.Fatalf("slot = %v, want 28.6", got)
	}
}

func TestOccupancySummary_NotPadel(t *testing.T) {
	s := newFakeStore()
	s.businesses["fnb-1"] = &business.Business{ID: "fnb-1", Type: "fnb"}
	tools := newTestTools(s)

	for _, id := range []string{"fnb-1", "missing"} {
		_, err := tools.OccupancySummary(context.Background(), PeriodQuery{BusinessID: id})
		if err == nil || err.Error() != "Occupancy summary only available for padel businesses" {
			t.Errorf("%s: err = %v", id, err)
		}
	}
}

func TestOccupancySummary_NoCourts(t *testing.T) {
	s := newFakeStore()
	s.businesses["padel-2"] = &business.Business{ID: "padel-2", Type: "padel"}
	out, err := newTestTools(s).OccupancySummary(context.Background(), PeriodQuery{BusinessID: "padel-2"})
	if err != nil {
		t.Fatal(err)
	}
	occ := out.(OccupancySummary)
	if occ.Courts == nil || len(occ.Courts) != 0 || len(occ.Hours) != 0 || len(occ.Matrix) != 0 {
		t.Fatalf("expected empty non-nil slices, got %+v", occ)
	}
}

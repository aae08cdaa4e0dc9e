package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aruna-bi/aruna/internal/domain"
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/domain/tool"
)

// DefaultDashboard builds the initial dashboard of a business from the
// default-visible visuals of its industry module, before any chat turn.
// Visuals without data are left out.
func (t *BusinessTools) DefaultDashboard(ctx context.Context, q PeriodQuery) (*tool.DashboardUpdate, error) {
	if err := requireBusinessID(q.BusinessID); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	b, err := t.businesses.Resolve(ctx, q.BusinessID)
	if err != nil {
		return nil, err
	}
	mod, ok := t.modules.Get(b.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrModuleNotFound, b.Type)
	}
	window, err := business.ResolveRange(q.Period, q.From, q.To, t.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	out := &tool.DashboardUpdate{Widgets: []tool.Widget{}}
	for i := range mod.Visuals {
		v := &mod.Visuals[i]
		if !v.DefaultVisible {
			continue
		}
		w, ok, err := t.defaultWidget(ctx, v.ID, q, window)
		if err != nil {
			return nil, fmt.Errorf("visual %s: %w", v.ID, err)
		}
		if ok {
			out.Widgets = append(out.Widgets, w)
		}
	}
	return out, nil
}

func (t *BusinessTools) defaultWidget(ctx context.Context, visualID string, q PeriodQuery, window business.Range) (tool.Widget, bool, error) {
	switch visualID {
	case tool.VisualKPICards:
		res, err := t.KPISummary(ctx, q)
		if err != nil {
			return tool.Widget{}, false, err
		}
		w, ok := tool.BuildKPICardsWidget(res.(KPISummary).KPIs)
		return w, ok, nil

	case tool.VisualRevenueTimeseries:
		txs, err := t.data.ListTransactions(ctx, q.BusinessID, business.TransactionFilter{
			Kind: business.KindRevenue,
			From: window.From,
			To:   window.To,
		})
		if err != nil {
			return tool.Widget{}, false, err
		}
		w, ok := tool.BuildRevenueTimeseriesWidget(txs)
		return w, ok, nil

	case tool.VisualOccupancyHeatmap:
		res, err := t.OccupancySummary(ctx, q)
		if errors.Is(err, errOccupancyPadelOnly) {
			return tool.Widget{}, false, nil
		}
		if err != nil {
			return tool.Widget{}, false, err
		}
		occ := res.(OccupancySummary)
		if len(occ.Courts) == 0 {
			return tool.Widget{}, false, nil
		}
		return tool.BuildOccupancyHeatmapWidget(occ.Courts, occ.Hours, occ.Matrix), true, nil
	}
	return tool.Widget{}, false, nil
}

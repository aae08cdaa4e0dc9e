package industry

import (
	"context"
	"encoding/json"

	"github.com/aruna-bi/aruna/internal/domain/business"
)

// hoursPerDay is the assumed number of operating hours of a court per day.
const hoursPerDay = 12

func revenueIn(ctx context.Context, r Reader, businessID string, w business.Range) ([]business.Transaction, error) {
	return r.ListTransactions(ctx, businessID, business.TransactionFilter{
		Kind: business.KindRevenue,
		From: w.From,
		To:   w.To,
	})
}

// computeRevenueTotal sums revenue in the window and compares it with the
// preceding window of equal length.
func computeRevenueTotal(ctx context.Context, r Reader, args KPIArgs) (KPIResult, error) {
	w, err := args.window()
	if err != nil {
		return KPIResult{}, err
	}
	txs, err := revenueIn(ctx, r, args.BusinessID, w)
	if err != nil {
		return KPIResult{}, err
	}
	prevTxs, err := revenueIn(ctx, r, args.BusinessID, w.Previous())
	if err != nil {
		return KPIResult{}, err
	}

	revenue := sumAmounts(txs)
	prev := sumAmounts(prevTxs)
	var pct float64
	if prev > 0 {
		pct = (revenue - prev) / prev * 100
	}
	pct = round2(pct)

	return KPIResult{
		Value:        round2(revenue),
		Unit:         args.currency(),
		Trend:        trendOf(pct),
		TrendPercent: &pct,
	}, nil
}

// computeOccupancyRate is booked court hours over available court hours.
func computeOccupancyRate(ctx context.Context, r Reader, args KPIArgs) (KPIResult, error) {
	w, err := args.window()
	if err != nil {
		return KPIResult{}, err
	}
	entities, err := r.ListEntities(ctx, args.BusinessID)
	if err != nil {
		return KPIResult{}, err
	}
	courts := 0
	for i := range entities {
		if entities[i].Type == business.EntityCourt {
			courts++
		}
	}
	if courts == 0 {
		return KPIResult{Value: 0, Unit: "%"}, nil
	}

	txs, err := revenueIn(ctx, r, args.BusinessID, w)
	if err != nil {
		return KPIResult{}, err
	}

	possible := float64(courts * hoursPerDay * w.Days())
	var booked float64
	for i := range txs {
		h, ok := MetaFloat(txs[i].Metadata, "hours")
		if !ok || h == 0 {
			h = 1
		}
		booked += h
	}

	var rate float64
	if possible > 0 {
		rate = booked / possible * 100
	}
	return KPIResult{Value: round2(rate), Unit: "%"}, nil
}

// computeAverageBookingValue is mean revenue per revenue transaction.
func computeAverageBookingValue(ctx context.Context, r Reader, args KPIArgs) (KPIResult, error) {
	w, err := args.window()
	if err != nil {
		return KPIResult{}, err
	}
	txs, err := revenueIn(ctx, r, args.BusinessID, w)
	if err != nil {
		return KPIResult{}, err
	}
	if len(txs) == 0 {
		return KPIResult{Value: 0, Unit: args.currency()}, nil
	}
	return KPIResult{
		Value: round2(sumAmounts(txs) / float64(len(txs))),
		Unit:  args.currency(),
	}, nil
}

// computeGrossMargin treats expenses categorised "cogs" as cost of goods sold.
func computeGrossMargin(ctx context.Context, r Reader, args KPIArgs) (KPIResult, error) {
	w, err := args.window()
	if err != nil {
		return KPIResult{}, err
	}
	revenueTxs, err := revenueIn(ctx, r, args.BusinessID, w)
	if err != nil {
		return KPIResult{}, err
	}
	expenseTxs, err := r.ListTransactions(ctx, args.BusinessID, business.TransactionFilter{
		Kind: business.KindExpense,
		From: w.From,
		To:   w.To,
	})
	if err != nil {
		return KPIResult{}, err
	}

	revenue := sumAmounts(revenueTxs)
	var cogs float64
	for i := range expenseTxs {
		if expenseTxs[i].Category == "cogs" {
			cogs += expenseTxs[i].Amount
		}
	}

	var margin float64
	if revenue > 0 {
		margin = (revenue - cogs) / revenue * 100
	}
	return KPIResult{Value: round2(margin), Unit: "%"}, nil
}

// computeTopMenuItems counts distinct menu items that sold in the window.
func computeTopMenuItems(ctx context.Context, r Reader, args KPIArgs) (KPIResult, error) {
	w, err := args.window()
	if err != nil {
		return KPIResult{}, err
	}
	txs, err := revenueIn(ctx, r, args.BusinessID, w)
	if err != nil {
		return KPIResult{}, err
	}
	items := make(map[string]struct{})
	for i := range txs {
		if id, ok := txs[i].Metadata["menuItemId"].(string); ok && id != "" {
			items[id] = struct{}{}
		}
	}
	return KPIResult{Value: float64(len(items)), Unit: "items"}, nil
}

// MetaFloat reads a numeric metadata value regardless of how it was decoded.
func MetaFloat(meta map[string]any, key string) (float64, bool) {
	switch v := meta[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

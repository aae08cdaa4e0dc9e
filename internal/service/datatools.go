package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aruna-bi/aruna/internal/domain"
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/domain/industry"
)

// Operating hours covered by the occupancy heatmap, inclusive.
const (
	firstBookableHour = 8
	lastBookableHour  = 22
)

const paybackMonth = 30 * 24 * time.Hour

// PeriodQuery selects the business and reporting window of a data tool.
type PeriodQuery struct {
	BusinessID string
	Period     business.Period
	From       string
	To         string
}

// DataTools executes the read-only business data tools. Returned values are
// JSON-serializable and become the tool message content.
type DataTools interface {
	KPISummary(ctx context.Context, q PeriodQuery) (any, error)
	PaybackProjection(ctx context.Context, businessID string) (any, error)
	OccupancySummary(ctx context.Context, q PeriodQuery) (any, error)
}

// BusinessReader is the store access the data tools need.
type BusinessReader interface {
	industry.Reader
	GetFinancialConfig(ctx context.Context, businessID string) (*business.FinancialConfig, error)
}

// BusinessLookup resolves a business by ID.
type BusinessLookup interface {
	Resolve(ctx context.Context, id string) (*business.Business, error)
}

// KPISummary is the result of get_kpi_summary.
type KPISummary struct {
	Period business.Range       `json:"period"`
	KPIs   []industry.KPIResult `json:"kpis"`
}

// PaybackProjection is the result of get_payback_projection.
type PaybackProjection struct {
	CurrentProgressRatio     float64  `json:"currentProgressRatio"`
	EstimatedMonthsToPayback *int     `json:"estimatedMonthsToPayback"`
	Assumptions              []string `json:"assumptions"`
}

// OccupancySummary is the result of get_occupancy_summary: matrix[court][hour]
// holds the booked percentage of that slot over the window.
type OccupancySummary struct {
	Courts []string    `json:"courts"`
	Hours  []int       `json:"hours"`
	Matrix [][]float64 `json:"matrix"`
}

// BusinessTools implements DataTools over a store and the industry registry.
type BusinessTools struct {
	data       BusinessReader
	businesses BusinessLookup
	modules    *industry.Registry
	now        func() time.Time
}

// NewBusinessTools creates the data tools.
func NewBusinessTools(data BusinessReader, businesses BusinessLookup, modules *industry.Registry) *BusinessTools {
	return &BusinessTools{data: data, businesses: businesses, modules: modules, now: time.Now}
}

// Tool failures are shown to the model verbatim.
var (
	errBusinessIDRequired = errors.New("Business ID is required")                               //nolint:staticcheck // model-facing text
	errBusinessNotFound   = errors.New("Business not found")                                    //nolint:staticcheck // model-facing text
	errOccupancyPadelOnly = errors.New("Occupancy summary only available for padel businesses") //nolint:staticcheck // model-facing text
)

func requireBusinessID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errBusinessIDRequired
	}
	return nil
}

// KPISummary computes every KPI of the business's industry module.
func (t *BusinessTools) KPISummary(ctx context.Context, q PeriodQuery) (any, error) {
	if err := requireBusinessID(q.BusinessID); err != nil {
		return nil, err
	}
	b, err := t.businesses.Resolve(ctx, q.BusinessID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errBusinessNotFound
	}
	if err != nil {
		return nil, err
	}
	mod, ok := t.modules.Get(b.Type)
	if !ok {
		return nil, fmt.Errorf("No module found for business type: %s", b.Type) //nolint:staticcheck // model-facing text
	}

	now := t.now()
	window, err := business.ResolveRange(q.Period, q.From, q.To, now)
	if err != nil {
		return nil, err
	}
	args := industry.KPIArgs{
		BusinessID: q.BusinessID,
		Period:     q.Period,
		From:       q.From,
		To:         q.To,
		Currency:   b.Currency,
		Now:        now,
	}

	results := make([]industry.KPIResult, len(mod.KPIs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range mod.KPIs {
		def := &mod.KPIs[i]
		g.Go(func() (err error) {
			// A panic here would escape the dispatcher's recover.
			defer func() {
				if r := recover(); r != nil {
					slog.Error("kpi computation panicked", "kpi", def.ID, "business_id", q.BusinessID, "panic", r)
					err = fmt.Errorf("kpi %s panicked: %v", def.ID, r)
				}
			}()
			res, err := def.Run(gctx, t.data, args)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return KPISummary{Period: window, KPIs: results}, nil
}

// PaybackProjection estimates progress towards recovering the initial capex
// from all-time net profit.
func (t *BusinessTools) PaybackProjection(ctx context.Context, businessID string) (any, error) {
	if err := requireBusinessID(businessID); err != nil {
		return nil, err
	}
	cfg, err := t.data.GetFinancialConfig(ctx, businessID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if cfg == nil || cfg.InitialCapex == nil || *cfg.InitialCapex <= 0 {
		return PaybackProjection{Assumptions: []string{"No financial configuration found"}}, nil
	}
	capex := *cfg.InitialCapex

	revenue, err := t.data.ListTransactions(ctx, businessID, business.TransactionFilter{Kind: business.KindRevenue})
	if err != nil {
		return nil, err
	}
	expenses, err := t.data.ListTransactions(ctx, businessID, business.TransactionFilter{Kind: business.KindExpense})
	if err != nil {
		return nil, err
	}

	net := total(revenue) - total(expenses)
	out := PaybackProjection{
		CurrentProgressRatio: math.Min(1, math.Max(0, net/capex)),
		Assumptions:          []string{},
	}
	if len(revenue) == 0 {
		return out, nil
	}

	first := revenue[0].Date
	for i := range revenue {
		if revenue[i].Date.Before(first) {
			first = revenue[i].Date
		}
	}
	elapsed := float64(t.now().Sub(first)) / float64(paybackMonth)
	if elapsed <= 0 {
		return out, nil
	}

	avg := net / elapsed
	if avg <= 0 {
		out.Assumptions = append(out.Assumptions, "Average monthly profit is negative or zero")
		return out, nil
	}
	months := int(math.Max(0, math.Ceil((capex-net)/avg)))
	out.EstimatedMonthsToPayback = &months
	currency := cfg.Currency
	if currency == "" {
		currency = "IDR"
	}
	out.Assumptions = append(out.Assumptions, fmt.Sprintf("Based on average monthly profit of %.0f %s", avg, currency))
	return out, nil
}

// OccupancySummary builds a court x hour booking heatmap for padel businesses.
// Bookings are joined to courts by metadata courtId, else by court name or
// ID; bookings that match no court or carry no whole, in-range hour are skipped.
func (t *BusinessTools) OccupancySummary(ctx context.Context, q PeriodQuery) (any, error) {
	if err := requireBusinessID(q.BusinessID); err != nil {
		return nil, err
	}
	b, err := t.businesses.Resolve(ctx, q.BusinessID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if b == nil || b.Type != "padel" {
		return nil, errOccupancyPadelOnly
	}

	entities, err := t.data.ListEntities(ctx, q.BusinessID)
	if err != nil {
		return nil, err
	}
	var courts []business.Entity
	for i := range entities {
		if entities[i].Type == business.EntityCourt {
			courts = append(courts, entities[i])
		}
	}
	if len(courts) == 0 {
		return OccupancySummary{Courts: []string{}, Hours: []int{}, Matrix: [][]float64{}}, nil
	}

	window, err := business.ResolveRange(q.Period, q.From, q.To, t.now())
	if err != nil {
		return nil, err
	}
	txs, err := t.data.ListTransactions(ctx, q.BusinessID, business.TransactionFilter{
		Kind: business.KindRevenue,
		From: window.From,
		To:   window.To,
	})
	if err != nil {
		return nil, err
	}

	hours := make([]int, 0, lastBookableHour-firstBookableHour+1)
	for h := firstBookableHour; h <= lastBookableHour; h++ {
		hours = append(hours, h)
	}
	counts := make([][]int, len(courts))
	for i := range counts {
		counts[i] = make([]int, len(hours))
	}

	for i := range txs {
		ci := courtIndex(courts, txs[i].Metadata)
		if ci < 0 {
			continue
		}
		hf, ok := industry.MetaFloat(txs[i].Metadata, "hour")
		if !ok || hf != math.Trunc(hf) {
			continue
		}
		start := int(hf)
		if start < firstBookableHour || start > lastBookableHour {
			continue
		}
		span := 1
		if d, ok := industry.MetaFloat(txs[i].Metadata, "hours"); ok && d > 0 {
			span = int(math.Ceil(d))
		}
		for h := start; h < start+span && h <= lastBookableHour; h++ {
			counts[ci][h-firstBookableHour]++
		}
	}

	days := window.Days()
	out := OccupancySummary{
		Courts: make([]string, len(courts)),
		Hours:  hours,
		Matrix: make([][]float64, len(courts)),
	}
	for i := range courts {
		out.Courts[i] = courts[i].Name
		if out.Courts[i] == "" {
			out.Courts[i] = courts[i].ID
		}
		row := make([]float64, len(hours))
		for j, n := range counts[i] {
			if days > 0 {
				row[j] = math.Min(100, math.Max(0, math.Round(float64(n)/float64(days)*1000)/10))
			}
		}
		out.Matrix[i] = row
	}
	return out, nil
}

func courtIndex(courts []business.Entity, meta map[string]any) int {
	if id, _ := meta["courtId"].(string); id != "" {
		for i := range courts {
			if courts[i].ID == id {
				return i
			}
		}
		return -1
	}
	if name, _ := meta["court"].(string); name != "" {
		for i := range courts {
			if courts[i].Name == name || courts[i].ID == name {
				return i
			}
		}
	}
	return -1
}

func total(txs []business.Transaction) float64 {
	var sum float64
	for i := range txs {
		sum += txs[i].Amount
	}
	return sum
}

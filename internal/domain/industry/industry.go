// Package industry defines pluggable industry modules: per-business-type
// KPI computations, available visuals and assistant guidance text.
package industry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aruna-bi/aruna/internal/domain/business"
)

// Trend is the direction of a KPI compared to the previous period.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// KPIResult is one computed KPI value.
type KPIResult struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	Value        float64  `json:"value"`
	Unit         string   `json:"unit"`
	Trend        Trend    `json:"trend,omitempty"`
	TrendPercent *float64 `json:"trendPercent,omitempty"`
}

// KPIArgs identifies what a KPI is computed over.
type KPIArgs struct {
	BusinessID string
	Period     business.Period
	From       string
	To         string
	Currency   string
	Now        time.Time
}

// currency returns the unit for money KPIs, defaulting to IDR.
func (a KPIArgs) currency() string {
	if a.Currency == "" {
		return "IDR"
	}
	return a.Currency
}

// window resolves the KPI's reporting range.
func (a KPIArgs) window() (business.Range, error) {
	now := a.Now
	if now.IsZero() {
		now = time.Now()
	}
	return business.ResolveRange(a.Period, a.From, a.To, now)
}

// Reader is the read-only data access a KPI computation needs.
type Reader interface {
	ListEntities(ctx context.Context, businessID string) ([]business.Entity, error)
	ListTransactions(ctx context.Context, businessID string, f business.TransactionFilter) ([]business.Transaction, error)
}

// ComputeFunc computes a KPI value.
type ComputeFunc func(ctx context.Context, r Reader, args KPIArgs) (KPIResult, error)

// KPIDefinition describes a KPI offered by a module.
type KPIDefinition struct {
	ID          string      `json:"id"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Compute     ComputeFunc `json:"-"`
}

// Run computes the KPI and stamps its ID and label onto the result.
func (d *KPIDefinition) Run(ctx context.Context, r Reader, args KPIArgs) (KPIResult, error) {
	res, err := d.Compute(ctx, r, args)
	if err != nil {
		return KPIResult{}, fmt.Errorf("kpi %s: %w", d.ID, err)
	}
	res.ID = d.ID
	res.Label = d.Label
	return res, nil
}

// VisualType is the rendering family of a visual.
type VisualType string

const (
	VisualCard    VisualType = "card"
	VisualLine    VisualType = "line"
	VisualBar     VisualType = "bar"
	VisualHeatmap VisualType = "heatmap"
	VisualTable   VisualType = "table"
)

// VisualDefinition describes a dashboard visual a module supports.
type VisualDefinition struct {
	ID             string     `json:"id"`
	Type           VisualType `json:"type"`
	Label          string     `json:"label"`
	Description    string     `json:"description"`
	DefaultVisible bool       `json:"defaultVisible"`
}

// Module is the capability bundle for one business type.
type Module struct {
	ID           string             `json:"id"`
	Label        string             `json:"label"`
	KPIs         []KPIDefinition    `json:"kpis"`
	Visuals      []VisualDefinition `json:"visuals"`
	AgentContext string             `json:"agentContext"`
}

// Validate checks a module for missing identifiers and compute functions.
func (m *Module) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.Label == "" {
		return fmt.Errorf("module %s: label is required", m.ID)
	}
	seen := make(map[string]bool, len(m.KPIs))
	for i := range m.KPIs {
		k := &m.KPIs[i]
		if k.ID == "" || k.Compute == nil {
			return fmt.Errorf("module %s: kpi %d needs an id and a compute function", m.ID, i)
		}
		if seen[k.ID] {
			return fmt.Errorf("module %s: duplicate kpi %s", m.ID, k.ID)
		}
		seen[k.ID] = true
	}
	return nil
}

// round2 rounds to two decimal places.
func round2(v float64) float64 { return math.Round(v*100) / 100 }

// trendOf classifies a percentage change; changes under 1% are flat.
func trendOf(pct float64) Trend {
	switch {
	case math.Abs(pct) < 1:
		return TrendFlat
	case pct > 0:
		return TrendUp
	default:
		return TrendDown
	}
}

func sumAmounts(txs []business.Transaction) float64 {
	var total float64
	for i := range txs {
		total += txs[i].Amount
	}
	return total
}

// Registry maps business types to modules. It is immutable after construction.
type Registry struct {
	modules map[string]*Module
	order   []string
}

// NewRegistry builds a registry from modules, rejecting invalid or duplicate ones.
func NewRegistry(modules ...Module) (*Registry, error) {
	r := &Registry{modules: make(map[string]*Module, len(modules))}
	for i := range modules {
		m := modules[i]
		if err := m.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.modules[m.ID]; dup {
			return nil, fmt.Errorf("duplicate industry module %q", m.ID)
		}
		r.modules[m.ID] = &m
		r.order = append(r.order, m.ID)
	}
	return r, nil
}

// DefaultRegistry returns a registry holding the built-in modules.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinModules()...)
	if err != nil {
		panic(fmt.Sprintf("builtin industry modules invalid: %v", err))
	}
	return r
}

// Get returns the module for a business type.
func (r *Registry) Get(businessType string) (*Module, bool) {
	m, ok := r.modules[businessType]
	return m, ok
}

// All returns every registered module in registration order.
func (r *Registry) All() []*Module {
	out := make([]*Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

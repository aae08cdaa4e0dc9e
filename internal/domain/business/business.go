// Package business defines the business data read by the agent tools.
package business

import "time"

// Business is the snapshot of a tenant business the agent talks about.
type Business struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // "padel", "fnb"
	Currency  string    `json:"currency"`
	OwnerUID  string    `json:"ownerUid"`
	OrgID     string    `json:"orgId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Entity is a bookable or sellable unit of a business (court, menu item).
type Entity struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EntityCourt is the entity type of a padel court.
const EntityCourt = "court"

// Kind separates revenue from expense transactions.
type Kind string

const (
	KindRevenue Kind = "revenue"
	KindExpense Kind = "expense"
)

// Transaction is a single money movement.
type Transaction struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Amount      float64        `json:"amount"`
	Date        time.Time      `json:"date"`
	Description string         `json:"description"`
	Category    string         `json:"category,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TransactionFilter narrows a transaction listing. Zero values are ignored.
type TransactionFilter struct {
	Kind Kind
	From time.Time
	To   time.Time
}

// FinancialConfig holds per-business investment and pricing settings.
type FinancialConfig struct {
	Currency            string   `json:"currency"`
	HourlyRate          *float64 `json:"hourlyRate,omitempty"`
	DefaultTaxRate      *float64 `json:"defaultTaxRate,omitempty"`
	InitialCapex        *float64 `json:"initialCapex,omitempty"`
	TargetPaybackMonths *float64 `json:"targetPaybackMonths,omitempty"`
}

// AgentLog is the audit record of one agent interaction.
type AgentLog struct {
	ID                string    `json:"id"`
	BusinessID        string    `json:"businessId"`
	UserMessage       string    `json:"userMessage"`
	AgentReplySummary string    `json:"agentReplySummary"`
	ToolsUsed         []string  `json:"toolsUsed"`
	Success           bool      `json:"success"`
	DurationMS        int64     `json:"durationMs"`
	ErrorCode         string    `json:"errorCode,omitempty"`
	ErrorMessage      string    `json:"errorMessage,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

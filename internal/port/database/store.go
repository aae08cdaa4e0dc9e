// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/aruna-bi/aruna/internal/domain/business"
)

// Store is the port interface for database operations.
type Store interface {
	// Businesses
	GetBusiness(ctx context.Context, id string) (*business.Business, error)
	ListEntities(ctx context.Context, businessID string) ([]business.Entity, error)
	ListTransactions(ctx context.Context, businessID string, f business.TransactionFilter) ([]business.Transaction, error)
	GetFinancialConfig(ctx context.Context, businessID string) (*business.FinancialConfig, error)

	// Agent logs
	CreateAgentLog(ctx context.Context, log *business.AgentLog) error
	ListAgentLogs(ctx context.Context, businessID string, limit int) ([]business.AgentLog, error)
	PruneAgentLogs(ctx context.Context, olderThan time.Time) (int64, error)
}

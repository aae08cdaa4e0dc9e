package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/port/database"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ database.Store = (*Store)(nil)

// Ping checks database connectivity for health probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Businesses ---

func (s *Store) GetBusiness(ctx context.Context, id string) (*business.Business, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, type, currency, owner_uid, org_id, created_at
		 FROM businesses WHERE id = $1`, id)
	var b business.Business
	if err := row.Scan(&b.ID, &b.Name, &b.Type, &b.Currency, &b.OwnerUID, &b.OrgID, &b.CreatedAt); err != nil {
		return nil, notFoundWrap(err, "get business %s", id)
	}
	return &b, nil
}

// CreateBusiness inserts or replaces a business.
func (s *Store) CreateBusiness(ctx context.Context, b *business.Business) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO businesses (id, name, type, currency, owner_uid, org_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type,
		   currency = EXCLUDED.currency, owner_uid = EXCLUDED.owner_uid, org_id = EXCLUDED.org_id`,
		b.ID, b.Name, b.Type, b.Currency, b.OwnerUID, b.OrgID, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create business %s: %w", b.ID, err)
	}
	return nil
}

// --- Entities ---

func (s *Store) ListEntities(ctx context.Context, businessID string) ([]business.Entity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, type, metadata FROM entities
		 WHERE business_id = $1 ORDER BY name, id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []business.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return orEmpty(out), rows.Err()
}

// CreateEntity inserts or replaces an entity of a business.
func (s *Store) CreateEntity(ctx context.Context, businessID string, e *business.Entity) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	meta, err := marshalMeta(e.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO entities (id, business_id, name, type, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (business_id, id) DO UPDATE SET name = EXCLUDED.name,
		   type = EXCLUDED.type, metadata = EXCLUDED.metadata`,
		e.ID, businessID, e.Name, e.Type, meta)
	if err != nil {
		return fmt.Errorf("create entity %s: %w", e.ID, err)
	}
	return nil
}

func scanEntity(row scannable) (business.Entity, error) {
	var (
		e   business.Entity
		raw []byte
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Type, &raw); err != nil {
		return e, fmt.Errorf("scan entity: %w", err)
	}
	meta, err := unmarshalMeta(raw)
	if err != nil {
		return e, err
	}
	e.Metadata = meta
	return e, nil
}

// --- Transactions ---

func (s *Store) ListTransactions(ctx context.Context, businessID string, f business.TransactionFilter) ([]business.Transaction, error) {
	var (
		where = []string{"business_id = $1"}
		args  = []any{businessID}
	)
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, amount, date, description, category, metadata
		 FROM transactions WHERE `+strings.Join(where, " AND ")+` ORDER BY date`, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []business.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return orEmpty(out), rows.Err()
}

// CreateTransaction inserts a transaction of a business.
func (s *Store) CreateTransaction(ctx context.Context, businessID string, t *business.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	meta, err := marshalMeta(t.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO transactions (id, business_id, kind, amount, date, description, category, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, businessID, string(t.Kind), t.Amount, t.Date, t.Description, t.Category, meta)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func scanTransaction(row scannable) (business.Transaction, error) {
	var (
		t    business.Transaction
		kind string
		raw  []byte
	)
	if err := row.Scan(&t.ID, &kind, &t.Amount, &t.Date, &t.Description, &t.Category, &raw); err != nil {
		return t, fmt.Errorf("scan transaction: %w", err)
	}
	t.Kind = business.Kind(kind)
	meta, err := unmarshalMeta(raw)
	if err != nil {
		return t, err
	}
	t.Metadata = meta
	return t, nil
}

// --- Financial config ---

func (s *Store) GetFinancialConfig(ctx context.Context, businessID string) (*business.FinancialConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT currency, hourly_rate, default_tax_rate, initial_capex, target_payback_months
		 FROM financial_configs WHERE business_id = $1`, businessID)
	var c business.FinancialConfig
	if err := row.Scan(&c.Currency, &c.HourlyRate, &c.DefaultTaxRate, &c.InitialCapex, &c.TargetPaybackMonths); err != nil {
		return nil, notFoundWrap(err, "get financial config %s", businessID)
	}
	return &c, nil
}

// SetFinancialConfig inserts or replaces the financial config of a business.
func (s *Store) SetFinancialConfig(ctx context.Context, businessID string, c *business.FinancialConfig) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO financial_configs (business_id, currency, hourly_rate, default_tax_rate, initial_capex, target_payback_months)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (business_id) DO UPDATE SET currency = EXCLUDED.currency,
		   hourly_rate = EXCLUDED.hourly_rate, default_tax_rate = EXCLUDED.default_tax_rate,
		   initial_capex = EXCLUDED.initial_capex, target_payback_months = EXCLUDED.target_payback_months`,
		businessID, c.Currency, c.HourlyRate, c.DefaultTaxRate, c.InitialCapex, c.TargetPaybackMonths)
	if err != nil {
		return fmt.Errorf("set financial config %s: %w", businessID, err)
	}
	return nil
}

// --- Agent logs ---

func (s *Store) CreateAgentLog(ctx context.Context, l *business.AgentLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_logs (id, business_id, user_message, agent_reply_summary, tools_used,
		   success, duration_ms, error_code, error_message, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		l.ID, l.BusinessID, l.UserMessage, l.AgentReplySummary, pgTextArray(l.ToolsUsed),
		l.Success, l.DurationMS, l.ErrorCode, l.ErrorMessage, l.Timestamp)
	if err != nil {
		return fmt.Errorf("create agent log: %w", err)
	}
	return nil
}

func (s *Store) ListAgentLogs(ctx context.Context, businessID string, limit int) ([]business.AgentLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, business_id, user_message, agent_reply_summary, tools_used,
		   success, duration_ms, error_code, error_message, timestamp
		 FROM agent_logs WHERE business_id = $1 ORDER BY timestamp DESC LIMIT $2`, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list agent logs: %w", err)
	}
	defer rows.Close()

	var out []business.AgentLog
	for rows.Next() {
		var l business.AgentLog
		if err := rows.Scan(&l.ID, &l.BusinessID, &l.UserMessage, &l.AgentReplySummary, &l.ToolsUsed,
			&l.Success, &l.DurationMS, &l.ErrorCode, &l.ErrorMessage, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("scan agent log: %w", err)
		}
		l.ToolsUsed = orEmpty(l.ToolsUsed)
		out = append(out, l)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) PruneAgentLogs(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agent_logs WHERE timestamp < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune agent logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"food-ordering/db"
	"food-ordering/models"

	"github.com/jackc/pgx/v5"
)

// Ledger is the append-only store of reconciled orders.
type Ledger interface {
	// Append rejects a second record for the same ExternalSessionID with ErrDuplicateOrder.
	Append(ctx context.Context, order models.OrderRecord) (*models.OrderRecord, error)
	// FindBySessionID returns nil, nil when no order exists for the session.
	FindBySessionID(ctx context.Context, sessionID string) (*models.OrderRecord, error)
	ListByOwner(ctx context.Context, ownerEmail string) ([]models.OrderRecord, error)
	AggregateRevenue(ctx context.Context) (int64, error)
}

type PgLedger struct {
	db db.DBTX
}

func NewPgLedger(conn db.DBTX) *PgLedger {
	return &PgLedger{db: conn}
}

func (l *PgLedger) Append(ctx context.Context, order models.OrderRecord) (*models.OrderRecord, error) {
	const op = "ledger.append"
	if order.ExternalSessionID == "" {
		return nil, ValidationError(op, "external session id is required")
	}
	itemsJSON, err := json.Marshal(order.LineItems)
	if err != nil {
		return nil, PersistenceError(op, fmt.Errorf("marshal line items: %w", err))
	}

	err = l.db.QueryRow(ctx, `
		INSERT INTO orders (owner_email, line_items, status, external_session_id, total_amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_session_id) DO NOTHING
		RETURNING id, created_at`,
		order.OwnerEmail, itemsJSON, order.Status, order.ExternalSessionID, order.TotalAmount, order.Currency,
	).Scan(&order.ID, &order.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, PersistenceError(op, ErrDuplicateOrder)
	}
	if err != nil {
		return nil, PersistenceError(op, err)
	}
	return &order, nil
}

const orderColumns = `id, owner_email, line_items, status, external_session_id, total_amount, currency, created_at`

func scanOrder(row pgx.Row) (*models.OrderRecord, error) {
	var o models.OrderRecord
	var itemsJSON []byte
	if err := row.Scan(&o.ID, &o.OwnerEmail, &itemsJSON, &o.Status, &o.ExternalSessionID, &o.TotalAmount, &o.Currency, &o.CreatedAt); err != nil {
		return nil, err
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.LineItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order line items: %w", err)
		}
	}
	return &o, nil
}

func (l *PgLedger) FindBySessionID(ctx context.Context, sessionID string) (*models.OrderRecord, error) {
	o, err := scanOrder(l.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE external_session_id = $1`,
		sessionID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, PersistenceError("ledger.find", err)
	}
	return o, nil
}

func (l *PgLedger) ListByOwner(ctx context.Context, ownerEmail string) ([]models.OrderRecord, error) {
	rows, err := l.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE owner_email = $1 ORDER BY created_at DESC, id DESC`,
		ownerEmail,
	)
	if err != nil {
		return nil, PersistenceError("ledger.list", err)
	}
	defer rows.Close()

	orders := []models.OrderRecord{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, PersistenceError("ledger.list", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, PersistenceError("ledger.list", err)
	}
	return orders, nil
}

func (l *PgLedger) AggregateRevenue(ctx context.Context) (int64, error) {
	var total int64
	if err := l.db.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0)::bigint FROM orders`).Scan(&total); err != nil {
		return 0, PersistenceError("ledger.revenue", err)
	}
	return total, nil
}

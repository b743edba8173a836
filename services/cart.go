package services

import (
	"context"
	"errors"

	"food-ordering/db"
	"food-ordering/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CartStore owns per-owner cart lines keyed by (itemNumber, ownerEmail).
type CartStore interface {
	// Upsert replaces quantity and price snapshot of an existing line or inserts a new one.
	Upsert(ctx context.Context, line models.CartLine) (inserted bool, err error)
	AdjustQuantity(ctx context.Context, ownerEmail string, itemNumber int64, delta int64) (AdjustResult, error)
	Remove(ctx context.Context, ownerEmail string, itemNumber int64) error
	ListByOwner(ctx context.Context, ownerEmail string) ([]models.CartLine, error)
	TotalQuantity(ctx context.Context, ownerEmail string) (int64, error)
	Clear(ctx context.Context, ownerEmail string) (int64, error)
}

// AdjustResult reports the quantity after an adjustment. A line whose quantity
// reaches zero is deleted and Removed is set.
type AdjustResult struct {
	Quantity int64
	Removed  bool
}

func checkDelta(op string, delta int64) error {
	if delta != 1 && delta != -1 {
		return ValidationError(op, "quantity can only change by one")
	}
	return nil
}

func checkLine(op string, line models.CartLine) error {
	switch {
	case line.OwnerEmail == "" || line.ItemNumber <= 0:
		return ValidationError(op, "itemNumber and ownerEmail are required")
	case line.Quantity < 1:
		return ValidationError(op, "quantity must be at least 1")
	case line.UnitPrice.IsNegative():
		return ValidationError(op, "unitPrice must not be negative")
	}
	return nil
}

type PgCartStore struct {
	db db.DBTX
}

func NewPgCartStore(conn db.DBTX) *PgCartStore {
	return &PgCartStore{db: conn}
}

func (s *PgCartStore) Upsert(ctx context.Context, line models.CartLine) (bool, error) {
	if err := checkLine("cart.upsert", line); err != nil {
		return false, err
	}
	var inserted bool
	err := s.db.QueryRow(ctx, `
		INSERT INTO cart_lines (item_number, owner_email, quantity, unit_price, name, image_ref, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, now())
		ON CONFLICT (item_number, owner_email) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			unit_price = EXCLUDED.unit_price,
			name = EXCLUDED.name,
			image_ref = EXCLUDED.image_ref,
			updated_at = now()
		RETURNING (xmax = 0)`,
		line.ItemNumber, line.OwnerEmail, line.Quantity, line.UnitPrice.String(), line.Name, line.ImageRef,
	).Scan(&inserted)
	if err != nil {
		return false, PersistenceError("cart.upsert", err)
	}
	return inserted, nil
}

func (s *PgCartStore) AdjustQuantity(ctx context.Context, ownerEmail string, itemNumber int64, delta int64) (AdjustResult, error) {
	const op = "cart.adjust"
	if err := checkDelta(op, delta); err != nil {
		return AdjustResult{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return AdjustResult{}, PersistenceError(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// FOR UPDATE serializes concurrent adjustments of the same line.
	var qty int64
	err = tx.QueryRow(ctx, `
		SELECT quantity FROM cart_lines
		WHERE item_number = $1 AND owner_email = $2
		FOR UPDATE`,
		itemNumber, ownerEmail,
	).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return AdjustResult{}, NotFoundError(op, "cart item not found", ErrLineNotFound)
	}
	if err != nil {
		return AdjustResult{}, PersistenceError(op, err)
	}

	res := AdjustResult{Quantity: qty + delta}
	if res.Quantity <= 0 {
		_, err = tx.Exec(ctx, `
			DELETE FROM cart_lines WHERE item_number = $1 AND owner_email = $2`,
			itemNumber, ownerEmail,
		)
		res = AdjustResult{Quantity: 0, Removed: true}
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE cart_lines SET quantity = $3, updated_at = now()
			WHERE item_number = $1 AND owner_email = $2`,
			itemNumber, ownerEmail, res.Quantity,
		)
	}
	if err != nil {
		return AdjustResult{}, PersistenceError(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return AdjustResult{}, PersistenceError(op, err)
	}
	return res, nil
}

func (s *PgCartStore) Remove(ctx context.Context, ownerEmail string, itemNumber int64) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM cart_lines WHERE item_number = $1 AND owner_email = $2`,
		itemNumber, ownerEmail,
	)
	if err != nil {
		return PersistenceError("cart.remove", err)
	}
	return nil
}

func (s *PgCartStore) ListByOwner(ctx context.Context, ownerEmail string) ([]models.CartLine, error) {
	rows, err := s.db.Query(ctx, `
		SELECT item_number, owner_email, quantity, unit_price::text, name, image_ref
		FROM cart_lines
		WHERE owner_email = $1
		ORDER BY created_at, item_number`,
		ownerEmail,
	)
	if err != nil {
		return nil, PersistenceError("cart.list", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var l models.CartLine
		var price string
		if err := rows.Scan(&l.ItemNumber, &l.OwnerEmail, &l.Quantity, &price, &l.Name, &l.ImageRef); err != nil {
			return nil, PersistenceError("cart.list", err)
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, PersistenceError("cart.list", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, PersistenceError("cart.list", err)
	}
	return lines, nil
}

func (s *PgCartStore) TotalQuantity(ctx context.Context, ownerEmail string) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)::bigint FROM cart_lines WHERE owner_email = $1`,
		ownerEmail,
	).Scan(&total)
	if err != nil {
		return 0, PersistenceError("cart.count", err)
	}
	return total, nil
}

func (s *PgCartStore) Clear(ctx context.Context, ownerEmail string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM cart_lines WHERE owner_email = $1`, ownerEmail)
	if err != nil {
		return 0, PersistenceError("cart.clear", err)
	}
	return tag.RowsAffected(), nil
}

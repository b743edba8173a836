package services

import (
	"context"
	"errors"

	"food-ordering/db"
	"food-ordering/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// MenuCatalog is the read side of the catalog collaborator.
type MenuCatalog interface {
	ListMenu(ctx context.Context, category string) ([]models.MenuItem, error)
	GetMenuItem(ctx context.Context, itemNumber int64) (*models.MenuItem, error)
}

type PgMenuCatalog struct {
	db db.DBTX
}

func NewPgMenuCatalog(conn db.DBTX) *PgMenuCatalog {
	return &PgMenuCatalog{db: conn}
}

func scanMenuItem(row pgx.Row) (*models.MenuItem, error) {
	var m models.MenuItem
	var price string
	if err := row.Scan(&m.ItemNumber, &m.Name, &m.Category, &price, &m.ImageRef, &m.AddedByEmail); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	m.UnitPrice = p
	return &m, nil
}

// ListMenu returns every item when category is empty or "All".
func (c *PgMenuCatalog) ListMenu(ctx context.Context, category string) ([]models.MenuItem, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if category == "" || category == models.CategoryAll {
		rows, err = c.db.Query(ctx, `
			SELECT item_number, name, category, unit_price::text, image_ref, added_by_email
			FROM menu_items
			ORDER BY category, item_number`)
	} else {
		rows, err = c.db.Query(ctx, `
			SELECT item_number, name, category, unit_price::text, image_ref, added_by_email
			FROM menu_items
			WHERE category = $1
			ORDER BY item_number`,
			category,
		)
	}
	if err != nil {
		return nil, PersistenceError("menu.list", err)
	}
	defer rows.Close()

	items := []models.MenuItem{}
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, PersistenceError("menu.list", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, PersistenceError("menu.list", err)
	}
	return items, nil
}

func (c *PgMenuCatalog) GetMenuItem(ctx context.Context, itemNumber int64) (*models.MenuItem, error) {
	m, err := scanMenuItem(c.db.QueryRow(ctx, `
		SELECT item_number, name, category, unit_price::text, image_ref, added_by_email
		FROM menu_items WHERE item_number = $1`,
		itemNumber,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundError("menu.get", "Item not found", err)
	}
	if err != nil {
		return nil, PersistenceError("menu.get", err)
	}
	return m, nil
}

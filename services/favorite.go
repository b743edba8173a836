package services

import (
	"context"
	"errors"

	"food-ordering/db"
)

type ToggleAction string

const (
	FavoriteAdded   ToggleAction = "added"
	FavoriteRemoved ToggleAction = "removed"
)

// FavoriteStore keeps a per-owner set of liked menu items.
type FavoriteStore interface {
	Toggle(ctx context.Context, ownerEmail string, itemNumber int64) (ToggleAction, error)
	ListByOwner(ctx context.Context, ownerEmail string) ([]int64, error)
}

const toggleAttempts = 3

var errToggleContended = errors.New("favorite toggle kept losing to concurrent writers")

type PgFavoriteStore struct {
	db db.DBTX
}

func NewPgFavoriteStore(conn db.DBTX) *PgFavoriteStore {
	return &PgFavoriteStore{db: conn}
}

// Toggle deletes the entry if present, otherwise inserts it, in one statement.
// When a concurrent toggle inserts the same key first, neither branch applies
// and the statement is re-run against the committed state.
func (s *PgFavoriteStore) Toggle(ctx context.Context, ownerEmail string, itemNumber int64) (ToggleAction, error) {
	for attempt := 0; attempt < toggleAttempts; attempt++ {
		var removed, added bool
		err := s.db.QueryRow(ctx, `
			WITH del AS (
				DELETE FROM favorites WHERE item_number = $1 AND owner_email = $2
				RETURNING 1
			), ins AS (
				INSERT INTO favorites (item_number, owner_email)
				SELECT $1::bigint, $2::text WHERE NOT EXISTS (SELECT 1 FROM del)
				ON CONFLICT (item_number, owner_email) DO NOTHING
				RETURNING 1
			)
			SELECT EXISTS (SELECT 1 FROM del), EXISTS (SELECT 1 FROM ins)`,
			itemNumber, ownerEmail,
		).Scan(&removed, &added)
		if err != nil {
			return "", PersistenceError("favorite.toggle", err)
		}
		switch {
		case removed:
			return FavoriteRemoved, nil
		case added:
			return FavoriteAdded, nil
		}
	}
	return "", PersistenceError("favorite.toggle", errToggleContended)
}

func (s *PgFavoriteStore) ListByOwner(ctx context.Context, ownerEmail string) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT item_number FROM favorites WHERE owner_email = $1 ORDER BY created_at, item_number`,
		ownerEmail,
	)
	if err != nil {
		return nil, PersistenceError("favorite.list", err)
	}
	defer rows.Close()

	items := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, PersistenceError("favorite.list", err)
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, PersistenceError("favorite.list", err)
	}
	return items, nil
}

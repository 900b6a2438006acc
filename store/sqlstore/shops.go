package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unkn0wn-root/flashguard/store"
)

var _ store.Shops = (*Store)(nil)

// GetShop returns one shop by id.
func (s *Store) GetShop(ctx context.Context, id int64) (store.Shop, error) {
	if err := ctx.Err(); err != nil {
		return store.Shop{}, err
	}
	var (
		shop      store.Shop
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, name, type_id, address, avg_price, score, updated_at
		 FROM shops WHERE id = ?`), id,
	).Scan(&shop.ID, &shop.Name, &shop.TypeID, &shop.Address, &shop.AvgPrice, &shop.Score, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Shop{}, store.ErrNotFound
	}
	if err != nil {
		return store.Shop{}, fmt.Errorf("get shop %d: %w", id, err)
	}
	shop.UpdatedAt = fromMillis(updatedAt)
	return shop, nil
}

// CreateShop inserts a shop and returns its id.
func (s *Store) CreateShop(ctx context.Context, shop store.Shop) (int64, error) {
	name := strings.TrimSpace(shop.Name)
	if name == "" {
		return 0, fmt.Errorf("shop name is required")
	}
	updatedAt := shop.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO shops (name, type_id, address, avg_price, score, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		name, shop.TypeID, shop.Address, shop.AvgPrice, shop.Score, toMillis(updatedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create shop: %w", err)
	}
	return id, nil
}

// UpdateShop overwrites a shop row. Missing rows return store.ErrNotFound.
func (s *Store) UpdateShop(ctx context.Context, shop store.Shop) error {
	if shop.ID <= 0 {
		return fmt.Errorf("shop id is required")
	}
	updatedAt := shop.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE shops
		 SET name = ?, type_id = ?, address = ?, avg_price = ?, score = ?, updated_at = ?
		 WHERE id = ?`),
		strings.TrimSpace(shop.Name), shop.TypeID, shop.Address, shop.AvgPrice, shop.Score, toMillis(updatedAt), shop.ID,
	)
	if err != nil {
		return fmt.Errorf("update shop %d: %w", shop.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update shop %d: rows affected: %w", shop.ID, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/flashguard/store"
)

var _ store.Promotions = (*Store)(nil)

func (s *Store) GetPromotion(ctx context.Context, id int64) (store.Promotion, error) {
	if err := ctx.Err(); err != nil {
		return store.Promotion{}, err
	}
	var (
		p              store.Promotion
		beginAt, endAt int64
	)
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, shop_id, title, stock, begin_at, end_at
		 FROM promotions WHERE id = ?`), id,
	).Scan(&p.ID, &p.ShopID, &p.Title, &p.Stock, &beginAt, &endAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Promotion{}, store.ErrNotFound
	}
	if err != nil {
		return store.Promotion{}, fmt.Errorf("get promotion %d: %w", id, err)
	}
	p.BeginAt = fromMillis(beginAt)
	p.EndAt = fromMillis(endAt)
	return p, nil
}

func (s *Store) CreatePromotion(ctx context.Context, p store.Promotion) (int64, error) {
	if p.Stock < 0 {
		return 0, fmt.Errorf("stock must not be negative")
	}
	if p.EndAt.Before(p.BeginAt) {
		return 0, fmt.Errorf("promotion ends before it begins")
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO promotions (shop_id, title, stock, begin_at, end_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		p.ShopID, p.Title, p.Stock, toMillis(p.BeginAt), toMillis(p.EndAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create promotion: %w", err)
	}
	return id, nil
}

// OrdersForPromotion lists orders oldest id first.
func (s *Store) OrdersForPromotion(ctx context.Context, promotionID int64) ([]store.Order, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT id, user_id, promotion_id, created_at
		 FROM orders WHERE promotion_id = ? ORDER BY id`), promotionID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []store.Order
	for rows.Next() {
		var (
			o         store.Order
			id        int64
			createdAt int64
		)
		if err := rows.Scan(&id, &o.UserID, &o.PromotionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.ID = uint64(id)
		o.CreatedAt = fromMillis(createdAt)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

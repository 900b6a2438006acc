package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/unkn0wn-root/flashguard/store"
)

const (
	pgUniqueViolation = "23505"
	// orderUserPromotionKey names the one-order-per-user constraint in
	// schema/postgres.sql.
	orderUserPromotionKey = "orders_user_promotion_key"
)

var _ store.TxRunner = (*Store)(nil)

// InTx runs fn in one transaction: commit on nil, rollback otherwise.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &sqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	// committed; keep the deferred rollback from running
	tx = nil
	return nil
}

type sqlTx struct {
	tx *sql.Tx
	s  *Store
}

func (t *sqlTx) CountOrders(ctx context.Context, userID, promotionID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, t.s.q(
		`SELECT COUNT(*) FROM orders WHERE user_id = ? AND promotion_id = ?`),
		userID, promotionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (t *sqlTx) DecrementStock(ctx context.Context, promotionID int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.s.q(
		`UPDATE promotions SET stock = stock - 1 WHERE id = ? AND stock > 0`),
		promotionID,
	)
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("decrement stock: rows affected: %w", err)
	}
	return n, nil
}

func (t *sqlTx) InsertOrder(ctx context.Context, o store.Order) error {
	_, err := t.tx.ExecContext(ctx, t.s.q(
		`INSERT INTO orders (id, user_id, promotion_id, created_at) VALUES (?, ?, ?, ?)`),
		int64(o.ID), o.UserID, o.PromotionID, toMillis(o.CreatedAt),
	)
	if err != nil {
		if isOrderUniqueViolation(err) {
			return store.ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func isOrderUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == orderUserPromotionKey
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "orders.user_id")
}

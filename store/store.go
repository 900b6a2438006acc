// Package store defines the relational entities and the transactional
// operations the shield and the purchase pipeline need from a database.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateOrder is returned by Tx.InsertOrder when the
	// (user_id, promotion_id) uniqueness constraint rejects the row.
	ErrDuplicateOrder = errors.New("store: order already exists for user and promotion")
)

type Shop struct {
	ID        int64     `json:"id" msgpack:"id"`
	Name      string    `json:"name" msgpack:"name"`
	TypeID    int64     `json:"type_id" msgpack:"type_id"`
	Address   string    `json:"address" msgpack:"address"`
	AvgPrice  int64     `json:"avg_price" msgpack:"avg_price"`
	Score     int32     `json:"score" msgpack:"score"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}

// Promotion is a time-boxed, stock-limited offer.
type Promotion struct {
	ID      int64
	ShopID  int64
	Title   string
	Stock   int64
	BeginAt time.Time
	EndAt   time.Time
}

type Order struct {
	ID          uint64
	UserID      int64
	PromotionID int64
	CreatedAt   time.Time
}

type Shops interface {
	GetShop(ctx context.Context, id int64) (Shop, error)
	CreateShop(ctx context.Context, s Shop) (int64, error)
	UpdateShop(ctx context.Context, s Shop) error
}

type Promotions interface {
	GetPromotion(ctx context.Context, id int64) (Promotion, error)
	CreatePromotion(ctx context.Context, p Promotion) (int64, error)
}

// Tx is the work done inside one purchase transaction.
type Tx interface {
	CountOrders(ctx context.Context, userID, promotionID int64) (int, error)
	// DecrementStock runs stock = stock - 1 WHERE id = ? AND stock > 0 and
	// returns rows affected; 0 means sold out.
	DecrementStock(ctx context.Context, promotionID int64) (int64, error)
	InsertOrder(ctx context.Context, o Order) error
}

// TxRunner commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

package grant

import (
	"context"
	"fmt"
	"time"

	"github.com/danribes/mystic-ecom-sub011/core/order"
	"github.com/jmoiron/sqlx"
)

// Grant lets a user consume a purchased course (enrollment) or digital
// product (download). Each paid order holds its own grant, so refunding one
// order leaves access bought through another in place.
type Grant struct {
	OrderID   string         `json:"orderId" db:"order_id"`
	UserID    string         `json:"userId" db:"user_id"`
	ItemType  order.ItemType `json:"itemType" db:"item_type"`
	ItemID    string         `json:"itemId" db:"item_id"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

// Create is a no-op when the order already holds a grant for the item.
func Create(ctx context.Context, db sqlx.ExecerContext, g Grant) error {
	const q = `
	INSERT INTO access_grants (order_id, user_id, item_type, item_id, created_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (order_id, item_type, item_id) DO NOTHING`

	if _, err := db.ExecContext(ctx, q, g.OrderID, g.UserID, string(g.ItemType), g.ItemID, g.CreatedAt); err != nil {
		return fmt.Errorf("granting %s[%s] to user[%s]: %w", g.ItemType, g.ItemID, g.UserID, err)
	}
	return nil
}

func DeleteByOrder(ctx context.Context, db sqlx.ExecerContext, orderID string) (int64, error) {
	const q = `DELETE FROM access_grants WHERE order_id = $1`

	res, err := db.ExecContext(ctx, q, orderID)
	if err != nil {
		return 0, fmt.Errorf("revoking grants of order[%s]: %w", orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}

// Exists reports whether any order grants the user the item.
func Exists(ctx context.Context, db sqlx.QueryerContext, userID string, itemType order.ItemType, itemID string) (bool, error) {
	const q = `
	SELECT EXISTS (
		SELECT 1 FROM access_grants
		WHERE user_id = $1 AND item_type = $2 AND item_id = $3
	)`

	var ok bool
	if err := sqlx.GetContext(ctx, db, &ok, q, userID, string(itemType), itemID); err != nil {
		return false, fmt.Errorf("checking %s[%s] grant of user[%s]: %w", itemType, itemID, userID, err)
	}
	return ok, nil
}

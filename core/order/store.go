package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danribes/mystic-ecom-sub011/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const orderColumns = `order_id, user_id, provider_id, payment_ref, email, total, status, created_at, updated_at`

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders (order_id, user_id, provider_id, payment_ref, email, total, status, created_at, updated_at)
	VALUES (:order_id, :user_id, :provider_id, :payment_ref, :email, :total, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items (order_id, item_type, item_id, price, quantity, created_at)
	VALUES (:order_id, :item_type, :item_id, :price, :quantity, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.QueryerContext, id string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	return fetchOne(ctx, db, q, id)
}

func FetchByProviderID(ctx context.Context, db sqlx.QueryerContext, providerID string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE provider_id = $1`
	return fetchOne(ctx, db, q, providerID)
}

func FetchByPaymentRef(ctx context.Context, db sqlx.QueryerContext, ref string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE payment_ref = $1`
	return fetchOne(ctx, db, q, ref)
}

func fetchOne(ctx context.Context, db sqlx.QueryerContext, q string, arg string) (Order, error) {
	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, database.ErrDBNotFound
		}
		return Order{}, fmt.Errorf("selecting order[%s]: %w", arg, err)
	}
	return ord, nil
}

func FetchByUser(ctx context.Context, db sqlx.QueryerContext, userID string) ([]Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	orders := []Order{}
	if err := sqlx.SelectContext(ctx, db, &orders, q, userID); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}
	return orders, nil
}

func FetchItems(ctx context.Context, db sqlx.QueryerContext, orderID string) ([]Item, error) {
	const q = `
	SELECT order_id, item_type, item_id, price, quantity, created_at
	FROM order_items
	WHERE order_id = $1
	ORDER BY created_at, item_id`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting items of order[%s]: %w", orderID, err)
	}
	return items, nil
}

// UpdateStatus reports whether a row was changed. An empty PaymentRef keeps
// the recorded one.
func UpdateStatus(ctx context.Context, db sqlx.ExecerContext, up StatusUp) (bool, error) {
	const q = `
	UPDATE orders SET
		status = $2,
		payment_ref = COALESCE(NULLIF($3, ''), payment_ref),
		updated_at = $4
	WHERE order_id = $1 AND status = ANY($5)`

	from := make([]string, len(up.From))
	for i, s := range up.From {
		from[i] = string(s)
	}

	res, err := db.ExecContext(ctx, q, up.ID, string(up.Status), up.PaymentRef, up.UpdatedAt, pq.Array(from))
	if err != nil {
		return false, fmt.Errorf("updating status of order[%s] to %s: %w", up.ID, up.Status, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}
	return n > 0, nil
}

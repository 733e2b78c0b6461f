package cart

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func FetchItems(ctx context.Context, db sqlx.QueryerContext, userID string) ([]Item, error) {
	const q = `
	SELECT ci.user_id, ci.course_id, c.name, c.price, ci.created_at, ci.updated_at
	FROM cart_items ci
	JOIN courses c ON c.course_id = ci.course_id
	WHERE ci.user_id = $1
	ORDER BY ci.created_at`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, userID); err != nil {
		return nil, fmt.Errorf("selecting cart items of user[%s]: %w", userID, err)
	}
	return items, nil
}

// CreateItem adds the course to the user's cart, creating the cart on first
// use. Adding a course that is already there is a no-op.
func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const qc = `
	INSERT INTO carts (user_id, created_at, updated_at)
	VALUES ($1, $2, $2)
	ON CONFLICT (user_id) DO UPDATE SET updated_at = $2, version = carts.version + 1`

	if _, err := db.ExecContext(ctx, qc, it.UserID, it.UpdatedAt); err != nil {
		return fmt.Errorf("upserting cart of user[%s]: %w", it.UserID, err)
	}

	const qi = `
	INSERT INTO cart_items (user_id, course_id, created_at, updated_at)
	VALUES (:user_id, :course_id, :created_at, :updated_at)
	ON CONFLICT (user_id, course_id) DO NOTHING`

	if _, err := sqlx.NamedExecContext(ctx, db, qi, it); err != nil {
		return fmt.Errorf("inserting cart item: %w", err)
	}
	return nil
}

func DeleteItem(ctx context.Context, db sqlx.ExecerContext, userID, courseID string) error {
	const q = `DELETE FROM cart_items WHERE user_id = $1 AND course_id = $2`

	if _, err := db.ExecContext(ctx, q, userID, courseID); err != nil {
		return fmt.Errorf("deleting course[%s] from cart of user[%s]: %w", courseID, userID, err)
	}
	return nil
}

// Delete drops the whole cart; its items go with it.
func Delete(ctx context.Context, db sqlx.ExecerContext, userID string) error {
	const q = `DELETE FROM carts WHERE user_id = $1`

	if _, err := db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("deleting cart of user[%s]: %w", userID, err)
	}
	return nil
}

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danribes/mystic-ecom-sub011/database"
	"github.com/jmoiron/sqlx"
)

func Fetch(ctx context.Context, db sqlx.QueryerContext, id string) (User, error) {
	const q = `
	SELECT user_id, name, email, phone, role, password_hash, created_at, updated_at
	FROM users
	WHERE user_id = $1`

	var u User
	if err := sqlx.GetContext(ctx, db, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, database.ErrDBNotFound
		}
		return User{}, fmt.Errorf("selecting user[%s]: %w", id, err)
	}
	return u, nil
}

func FetchByEmail(ctx context.Context, db sqlx.QueryerContext, email string) (User, error) {
	const q = `
	SELECT user_id, name, email, phone, role, password_hash, created_at, updated_at
	FROM users
	WHERE email = $1`

	var u User
	if err := sqlx.GetContext(ctx, db, &u, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, database.ErrDBNotFound
		}
		return User{}, fmt.Errorf("selecting user by email: %w", err)
	}
	return u, nil
}

func FetchContact(ctx context.Context, db sqlx.QueryerContext, id string) (Contact, error) {
	const q = `SELECT name, email, phone FROM users WHERE user_id = $1`

	var c Contact
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, database.ErrDBNotFound
		}
		return Contact{}, fmt.Errorf("selecting contact of user[%s]: %w", id, err)
	}
	return c, nil
}

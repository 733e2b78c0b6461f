package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/danribes/mystic-ecom-sub011/database"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses (course_id, name, description, image_url, price, created_at, updated_at)
	VALUES (:course_id, :name, :description, :image_url, :price, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.QueryerContext, id string) (Course, error) {
	const q = `
	SELECT course_id, name, description, image_url, price, created_at, updated_at, version
	FROM courses
	WHERE course_id = $1`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, database.ErrDBNotFound
		}
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}
	return c, nil
}

func FetchAll(ctx context.Context, db sqlx.QueryerContext) ([]Course, error) {
	const q = `
	SELECT course_id, name, description, image_url, price, created_at, updated_at, version
	FROM courses
	ORDER BY created_at`

	courses := []Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}
	return courses, nil
}

// FetchOwned lists the courses the user holds an access grant for.
func FetchOwned(ctx context.Context, db sqlx.QueryerContext, userID string) ([]Course, error) {
	const q = `
	SELECT c.course_id, c.name, c.description, c.image_url, c.price, c.created_at, c.updated_at, c.version
	FROM courses AS c
	JOIN access_grants AS g ON g.item_id = c.course_id AND g.item_type = 'course'
	WHERE g.user_id = $1
	GROUP BY c.course_id
	ORDER BY MIN(g.created_at)`

	courses := []Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q, userID); err != nil {
		return nil, fmt.Errorf("selecting courses owned by user[%s]: %w", userID, err)
	}
	return courses, nil
}

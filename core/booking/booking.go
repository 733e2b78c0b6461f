package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type Status string

const (
	Pending   Status = "pending"
	Confirmed Status = "confirmed"
	Cancelled Status = "cancelled"
)

type Booking struct {
	ID        string    `json:"id" db:"booking_id"`
	OrderID   string    `json:"orderId" db:"order_id"`
	EventID   string    `json:"eventId" db:"event_id"`
	UserID    string    `json:"userId" db:"user_id"`
	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

func Confirm(ctx context.Context, db sqlx.ExecerContext, orderID, eventID string, now time.Time) error {
	const q = `
	UPDATE bookings SET status = $3, updated_at = $4
	WHERE order_id = $1 AND event_id = $2`

	if _, err := db.ExecContext(ctx, q, orderID, eventID, string(Confirmed), now); err != nil {
		return fmt.Errorf("confirming booking of event[%s] for order[%s]: %w", eventID, orderID, err)
	}
	return nil
}

func CancelByOrder(ctx context.Context, db sqlx.ExecerContext, orderID string, now time.Time) error {
	const q = `UPDATE bookings SET status = $2, updated_at = $3 WHERE order_id = $1`

	if _, err := db.ExecContext(ctx, q, orderID, string(Cancelled), now); err != nil {
		return fmt.Errorf("cancelling bookings of order[%s]: %w", orderID, err)
	}
	return nil
}

func FetchByOrder(ctx context.Context, db sqlx.QueryerContext, orderID string) ([]Booking, error) {
	const q = `
	SELECT booking_id, order_id, event_id, user_id, status, created_at, updated_at
	FROM bookings
	WHERE order_id = $1`

	bookings := []Booking{}
	if err := sqlx.SelectContext(ctx, db, &bookings, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting bookings of order[%s]: %w", orderID, err)
	}
	return bookings, nil
}

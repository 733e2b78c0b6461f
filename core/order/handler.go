package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danribes/mystic-ecom-sub011/api/web"
	"github.com/danribes/mystic-ecom-sub011/api/weberr"
	"github.com/danribes/mystic-ecom-sub011/core/booking"
	"github.com/danribes/mystic-ecom-sub011/core/claims"
	"github.com/danribes/mystic-ecom-sub011/database"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orders, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing orders: %w", err)
		}

		return web.Respond(ctx, w, orders, http.StatusOK)
	}
}

type detail struct {
	Order
	Items    []Item            `json:"items"`
	Bookings []booking.Booking `json:"bookings"`
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		ord, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("order[%s] not found", id))
			}
			return fmt.Errorf("fetching order[%s]: %w", id, err)
		}

		if ord.UserID != clm.UserID && !claims.IsAdmin(ctx) {
			return weberr.NotFound(fmt.Errorf("order[%s] belongs to another user", id))
		}

		items, err := FetchItems(ctx, db, id)
		if err != nil {
			return err
		}

		bookings, err := booking.FetchByOrder(ctx, db, id)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, detail{Order: ord, Items: items, Bookings: bookings}, http.StatusOK)
	}
}

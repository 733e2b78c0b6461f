package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/danribes/mystic-ecom-sub011/api/web"
	"github.com/danribes/mystic-ecom-sub011/api/weberr"
	"github.com/danribes/mystic-ecom-sub011/config"
	"github.com/danribes/mystic-ecom-sub011/core/cart"
	"github.com/danribes/mystic-ecom-sub011/core/claims"
	"github.com/danribes/mystic-ecom-sub011/core/course"
	"github.com/danribes/mystic-ecom-sub011/core/order"
	"github.com/danribes/mystic-ecom-sub011/core/user"
	"github.com/danribes/mystic-ecom-sub011/core/webhook"
	"github.com/danribes/mystic-ecom-sub011/database"
	"github.com/danribes/mystic-ecom-sub011/validate"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

var errEmptyCart = errors.New("no items to checkout")

type basket struct {
	buyer   user.Contact
	courses []course.Course
	total   int
}

func load(ctx context.Context, db *sqlx.DB, userID string) (basket, error) {
	buyer, err := user.FetchContact(ctx, db, userID)
	if err != nil {
		return basket{}, fmt.Errorf("fetching buyer: %w", err)
	}

	items, err := cart.FetchItems(ctx, db, userID)
	if err != nil {
		return basket{}, fmt.Errorf("fetching cart items: %w", err)
	}

	b := basket{buyer: buyer, courses: make([]course.Course, 0, len(items))}
	for _, it := range items {
		c, err := course.Fetch(ctx, db, it.CourseID)
		if err != nil {
			return basket{}, fmt.Errorf("fetching course[%s]: %w", it.CourseID, err)
		}

		b.courses = append(b.courses, c)
		b.total += c.Price
	}

	return b, nil
}

// prepare stores the pending order and its items. The order ID is chosen by
// the caller so it can travel in the provider's metadata.
func prepare(ctx context.Context, db *sqlx.DB, ord order.Order, courses []course.Course) error {
	err := database.Transaction(ctx, db, func(tx sqlx.ExtContext) error {
		if err := order.Create(ctx, tx, ord); err != nil {
			return err
		}

		for _, c := range courses {
			it := order.Item{
				OrderID:   ord.ID,
				Type:      order.Course,
				ItemID:    c.ID,
				Price:     c.Price,
				Quantity:  1,
				CreatedAt: ord.CreatedAt,
			}

			if err := order.CreateItem(ctx, tx, it); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("creating the order bound to payment[%s] for user[%s]: %w", ord.ProviderID, ord.UserID, err)
	}
	return nil
}

func pending(id, userID, providerID string, b basket) order.Order {
	now := time.Now().UTC()
	return order.Order{
		ID:         id,
		UserID:     userID,
		ProviderID: providerID,
		Email:      b.buyer.Email,
		Total:      b.total,
		Status:     order.Pending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func HandleStripe(db *sqlx.DB, strp *stripecl.API, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		b, err := load(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching details of cart items: %w", err)
		}

		if len(b.courses) == 0 {
			return weberr.NewError(errEmptyCart, errEmptyCart.Error(), http.StatusUnprocessableEntity)
		}

		li := make([]*stripe.CheckoutSessionLineItemParams, 0, len(b.courses))
		for _, c := range b.courses {
			li = append(li, &stripe.CheckoutSessionLineItemParams{
				Quantity: stripe.Int64(1),

				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String("usd"),
					TaxBehavior: stripe.String("inclusive"),
					UnitAmount:  stripe.Int64(int64(c.Price) * 100),

					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(c.Name),
						Description: stripe.String(c.Description),
					},
				},
			})
		}

		orderID := validate.GenerateID()

		params := &stripe.CheckoutSessionParams{
			SuccessURL:        stripe.String(cfg.SuccessURL),
			CancelURL:         stripe.String(cfg.CancelURL),
			Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
			ClientReferenceID: stripe.String(orderID),
			LineItems:         li,

			PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
				Metadata: map[string]string{"order_id": orderID},
			},
		}
		params.AddMetadata("order_id", orderID)
		if b.buyer.Email != "" {
			params.CustomerEmail = stripe.String(b.buyer.Email)
		}

		s, err := strp.CheckoutSessions.New(params)
		if err != nil {
			return fmt.Errorf("creating stripe session: %w", err)
		}

		if err := prepare(ctx, db, pending(orderID, clm.UserID, s.ID, b), b.courses); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		return web.Respond(ctx, w, s.URL, http.StatusOK)
	}
}

func HandlePaypal(db *sqlx.DB, pp *paypal.Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		b, err := load(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching details of cart items: %w", err)
		}

		if len(b.courses) == 0 {
			return weberr.NewError(errEmptyCart, errEmptyCart.Error(), http.StatusUnprocessableEntity)
		}

		items := make([]paypal.Item, 0, len(b.courses))
		for _, c := range b.courses {
			items = append(items, paypal.Item{
				Quantity:    "1",
				Name:        c.Name,
				Description: c.Description,

				UnitAmount: &paypal.Money{
					Currency: "USD",
					Value:    strconv.Itoa(c.Price),
				},
			})
		}

		orderID := validate.GenerateID()
		tot := strconv.Itoa(b.total)

		units := []paypal.PurchaseUnitRequest{{
			CustomID: orderID,
			Items:    items,

			Amount: &paypal.PurchaseUnitAmount{
				Currency: "USD",
				Value:    tot,

				Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
					Currency: "USD",
					Value:    tot,
				}},
			},
		}}

		ppOrd, err := pp.CreateOrder(ctx, "CAPTURE", units, nil, &paypal.ApplicationContext{})
		if err != nil {
			return fmt.Errorf("creating paypal order: %w", err)
		}

		if err := prepare(ctx, db, pending(orderID, clm.UserID, ppOrd.ID, b), b.courses); err != nil {
			return fmt.Errorf("creating the order on the database: %w", err)
		}

		return web.Respond(ctx, w, ppOrd, http.StatusOK)
	}
}

// HandlePaypalCapture captures the approved PayPal order and completes the
// shop order with the capture response as payment payload.
func HandlePaypalCapture(db *sqlx.DB, pp *paypal.Client, p *webhook.Pipeline) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		providerID := web.Param(r, "id")

		ord, err := order.FetchByProviderID(ctx, db, providerID)
		if err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("no order bound to payment[%s]", providerID))
			}
			return fmt.Errorf("fetching the order bound to payment[%s]: %w", providerID, err)
		}

		if ord.UserID != clm.UserID {
			return weberr.NotFound(fmt.Errorf("order[%s] belongs to another user", ord.ID))
		}

		resp, err := pp.CaptureOrder(ctx, providerID, paypal.CaptureOrderRequest{})
		if err != nil {
			return fmt.Errorf("capturing paypal order[%s]: %w", providerID, err)
		}

		if resp.Status != "COMPLETED" {
			return fmt.Errorf("captured order[%s] with status[%s] different from 'COMPLETED'", providerID, resp.Status)
		}

		raw, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encoding capture of paypal order[%s]: %w", providerID, err)
		}

		res := p.HandleCheckoutCompleted(ctx, ord.ID, raw)
		switch {
		case res.Success:
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		case res.Retryable:
			return fmt.Errorf("the order was payed but its fulfillment failed: %s", res.Error)
		default:
			err := fmt.Errorf("completing order[%s]: %s", ord.ID, res.Error)
			return weberr.NewError(err, res.Error, http.StatusConflict)
		}
	}
}

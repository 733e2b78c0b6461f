package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/danribes/mystic-ecom-sub011/api/web"
	"github.com/danribes/mystic-ecom-sub011/api/weberr"
	"github.com/danribes/mystic-ecom-sub011/config"
	"github.com/danribes/mystic-ecom-sub011/core/order"
	"github.com/danribes/mystic-ecom-sub011/database"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripewh "github.com/stripe/stripe-go/v74/webhook"
)

type ack struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// HandleStripe receives signed Stripe events. A non-nil error makes the
// response a 5xx, which asks Stripe to deliver the event again; everything
// that a retry cannot fix is acknowledged.
func HandleStripe(p *Pipeline, guard *Guard, cfg config.Stripe) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		event, err := stripewh.ConstructEvent(b, sig, cfg.WebhookSecret)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot construct stripe event: %w", err))
		}

		if guard.IsProcessed(ctx, event.ID) {
			p.log.WithField("event_id", event.ID).Info("duplicate stripe event")
			return web.Respond(ctx, w, ack{Received: true, Duplicate: true}, http.StatusOK)
		}

		if err := p.dispatch(ctx, event); err != nil {
			return weberr.Wrap(err, weberr.WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			}))
		}

		guard.MarkProcessed(ctx, event.ID)
		return web.Respond(ctx, w, ack{Received: true}, http.StatusOK)
	}
}

func (p *Pipeline) dispatch(ctx context.Context, event stripe.Event) error {
	log := p.log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe session: %w", err))
		}

		if s.Mode != stripe.CheckoutSessionModePayment {
			return nil
		}

		// Delayed payment methods complete the session before the money
		// arrives; async_payment_succeeded follows.
		if s.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			log.Info("checkout session completed but not paid yet")
			return nil
		}

		res := p.HandleCheckoutCompleted(ctx, sessionOrderID(&s), event.Data.Raw)
		switch {
		case res.Success:
			return nil
		case res.Retryable:
			return fmt.Errorf("completing order of session[%s]: %s", s.ID, res.Error)
		default:
			log.WithFields(logrus.Fields{
				"session_id": s.ID,
				"reason":     res.Error,
			}).Warn("acknowledging event that cannot complete an order")
			return nil
		}

	case "checkout.session.async_payment_failed", "checkout.session.expired":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe session: %w", err))
		}
		return p.HandlePaymentFailure(ctx, sessionOrderID(&s))

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe payment intent: %w", err))
		}
		return p.HandlePaymentFailure(ctx, pi.Metadata["order_id"])

	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode stripe charge: %w", err))
		}

		// Access is all or nothing: a partial refund leaves the order completed.
		if !ch.Refunded {
			log.WithFields(logrus.Fields{
				"charge_id":       ch.ID,
				"amount_refunded": ch.AmountRefunded,
			}).Info("partial refund, order left as is")
			return nil
		}

		orderID, err := p.chargeOrderID(ctx, &ch)
		if err != nil {
			return err
		}
		return p.HandleRefund(ctx, orderID)

	default:
		log.Debug("ignoring stripe event")
		return nil
	}
}

func sessionOrderID(s *stripe.CheckoutSession) string {
	if id := s.Metadata["order_id"]; id != "" {
		return id
	}
	return s.ClientReferenceID
}

// chargeOrderID falls back to the payment intent recorded on completion
// when the charge carries no order metadata.
func (p *Pipeline) chargeOrderID(ctx context.Context, ch *stripe.Charge) (string, error) {
	if id := ch.Metadata["order_id"]; id != "" {
		return id, nil
	}
	if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" {
		return "", nil
	}

	ord, err := order.FetchByPaymentRef(ctx, p.db, ch.PaymentIntent.ID)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("looking up order of payment[%s]: %w", ch.PaymentIntent.ID, err)
	}
	return ord.ID, nil
}

// HandleRefundOrder lets an admin reconcile a refund by hand.
func HandleRefundOrder(p *Pipeline) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		if _, err := order.Fetch(ctx, p.db, id); err != nil {
			if errors.Is(err, database.ErrDBNotFound) {
				return weberr.NotFound(fmt.Errorf("order[%s] not found", id))
			}
			return err
		}

		if err := p.HandleRefund(ctx, id); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

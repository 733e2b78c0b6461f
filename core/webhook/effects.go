package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/danribes/mystic-ecom-sub011/core/cart"
	"github.com/danribes/mystic-ecom-sub011/core/order"
	"github.com/danribes/mystic-ecom-sub011/core/user"
	"github.com/danribes/mystic-ecom-sub011/email"
	"github.com/danribes/mystic-ecom-sub011/events"
	"github.com/sirupsen/logrus"
)

const effectTimeout = 30 * time.Second

// effect is a best-effort action taken after a committed state change.
// Its failure is logged and never reported to the webhook caller.
type effect struct {
	name string
	run  func(ctx context.Context) error
}

type inline struct{}

func (inline) Go(fn func()) { fn() }

func (p *Pipeline) completionEffects(ord order.Order, items []order.Item, buyer user.Contact, now time.Time) []effect {
	rcpt := email.Receipt{
		OrderID: ord.ID,
		Name:    buyer.Name,
		Email:   buyer.Email,
		Total:   ord.Total,
		Items:   make([]email.ReceiptItem, 0, len(items)),
	}
	for _, it := range items {
		rcpt.Items = append(rcpt.Items, email.ReceiptItem{
			Kind:     string(it.Type),
			ID:       it.ItemID,
			Price:    it.Price,
			Quantity: it.Quantity,
		})
	}

	var effs []effect

	if p.mailer != nil && buyer.Email != "" {
		effs = append(effs, effect{"confirmation_email", func(ctx context.Context) error {
			return p.mailer.SendOrderConfirmation(buyer.Email, rcpt)
		}})
	}

	if p.mailer != nil && p.admin.Email != "" {
		effs = append(effs, effect{"admin_email", func(ctx context.Context) error {
			return p.mailer.SendAdminNotice(p.admin.Email, rcpt)
		}})
	}

	if p.texter != nil && p.admin.Phone != "" {
		body := fmt.Sprintf("New order %s: %d item(s), $%d", ord.ID, len(items), ord.Total)
		effs = append(effs, effect{"admin_sms", func(ctx context.Context) error {
			return p.texter.Send(p.admin.Phone, body)
		}})
	}

	if p.publisher != nil {
		evt := events.Event{
			Type:       events.OrderCompleted,
			OrderID:    ord.ID,
			UserID:     ord.UserID,
			Total:      ord.Total,
			OccurredAt: now,
		}
		effs = append(effs, effect{"order_event", func(ctx context.Context) error {
			return p.publisher.Publish(ctx, evt)
		}})
	}

	effs = append(effs, effect{"clear_cart", func(ctx context.Context) error {
		return cart.Delete(ctx, p.db, ord.UserID)
	}})

	return effs
}

func (p *Pipeline) statusEffects(typ events.Type, orderID string, now time.Time) []effect {
	if p.publisher == nil {
		return nil
	}

	evt := events.Event{Type: typ, OrderID: orderID, OccurredAt: now}
	return []effect{{"order_event", func(ctx context.Context) error {
		return p.publisher.Publish(ctx, evt)
	}}}
}

// run hands the effects to the runner. They outlive the request, so they
// get a context that is not cancelled with it.
func (p *Pipeline) run(ctx context.Context, log logrus.FieldLogger, effs []effect) {
	if len(effs) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	p.runner.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, effectTimeout)
		defer cancel()

		for _, e := range effs {
			if err := e.run(ctx); err != nil {
				log.WithField("effect", e.name).WithError(err).Error("side effect failed")
			}
		}
	})
}

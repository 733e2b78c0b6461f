package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danribes/mystic-ecom-sub011/config"
	"github.com/danribes/mystic-ecom-sub011/core/booking"
	"github.com/danribes/mystic-ecom-sub011/core/grant"
	"github.com/danribes/mystic-ecom-sub011/core/order"
	"github.com/danribes/mystic-ecom-sub011/core/user"
	"github.com/danribes/mystic-ecom-sub011/database"
	"github.com/danribes/mystic-ecom-sub011/email"
	"github.com/danribes/mystic-ecom-sub011/events"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var (
	ErrOrderNotFound     = errors.New("Order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Mailer interface {
	SendOrderConfirmation(to string, r email.Receipt) error
	SendAdminNotice(to string, r email.Receipt) error
}

type Texter interface {
	Send(to, body string) error
}

type Publisher interface {
	Publish(ctx context.Context, evt events.Event) error
}

// Runner executes side effects after the response has been decided.
type Runner interface {
	Go(fn func())
}

// Result is the outcome of a completion attempt. Retryable tells the caller
// whether a redelivery of the same event could succeed.
type Result struct {
	Success   bool
	Error     string
	Retryable bool
}

type PipelineConfig struct {
	DB        *sqlx.DB
	Log       logrus.FieldLogger
	Runner    Runner
	Mailer    Mailer
	Texter    Texter
	Publisher Publisher
	Admin     config.Admin
}

type Pipeline struct {
	db        *sqlx.DB
	log       logrus.FieldLogger
	runner    Runner
	mailer    Mailer
	texter    Texter
	publisher Publisher
	admin     config.Admin
	now       func() time.Time
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		db:        cfg.DB,
		log:       cfg.Log,
		runner:    cfg.Runner,
		mailer:    cfg.Mailer,
		texter:    cfg.Texter,
		publisher: cfg.Publisher,
		admin:     cfg.Admin,
		now:       time.Now,
	}
	if p.runner == nil {
		p.runner = inline{}
	}
	return p
}

// HandleCheckoutCompleted moves a pending order to completed and grants
// what was bought. An order whose earlier payment attempt failed can still
// complete. An order that is already completed is left alone and reported as
// a success.
func (p *Pipeline) HandleCheckoutCompleted(ctx context.Context, orderID string, raw json.RawMessage) Result {
	log := p.log.WithField("order_id", orderID)

	if orderID == "" {
		return Result{Error: ErrOrderNotFound.Error()}
	}

	ord, err := order.Fetch(ctx, p.db, orderID)
	if err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			log.Warn("completion for unknown order")
			return Result{Error: ErrOrderNotFound.Error()}
		}
		return Result{Error: fmt.Sprintf("fetching order: %v", err), Retryable: true}
	}

	pl := parsePayload(raw)

	switch ord.Status {
	case order.Pending, order.PaymentFailed:
	case order.Completed:
		if pl.PaymentRef != "" && ord.PaymentRef != "" && pl.PaymentRef != ord.PaymentRef {
			log.WithFields(logrus.Fields{
				"recorded_payment": ord.PaymentRef,
				"event_payment":    pl.PaymentRef,
			}).Warn("duplicate completion carries a different payment reference")
		}
		return Result{Success: true}
	default:
		log.WithField("status", ord.Status).Warn("completion for order that cannot complete")
		return Result{Error: fmt.Sprintf("%v: %s to %s", ErrInvalidTransition, ord.Status, order.Completed)}
	}

	var effs []effect
	err = database.Transaction(ctx, p.db, func(tx sqlx.ExtContext) error {
		var err error
		effs, err = p.complete(ctx, tx, ord, pl)
		return err
	})
	if err != nil {
		log.WithError(err).Error("order completion rolled back")
		return Result{Error: fmt.Sprintf("transaction rolled back: %v", err), Retryable: true}
	}

	log.WithField("effects", len(effs)).Info("order completed")
	p.run(ctx, log, effs)

	return Result{Success: true}
}

// complete applies the state transition inside tx and returns the side
// effects to run once it is committed.
func (p *Pipeline) complete(ctx context.Context, tx sqlx.ExtContext, ord order.Order, pl payload) ([]effect, error) {
	now := p.now().UTC()

	up := order.StatusUp{
		ID:         ord.ID,
		Status:     order.Completed,
		From:       []order.Status{order.Pending, order.PaymentFailed},
		PaymentRef: pl.PaymentRef,
		UpdatedAt:  now,
	}
	ok, err := order.UpdateStatus(ctx, tx, up)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order[%s] changed status concurrently", ord.ID)
	}

	items, err := order.FetchItems(ctx, tx, ord.ID)
	if err != nil {
		return nil, err
	}

	buyer, err := user.FetchContact(ctx, tx, ord.UserID)
	if err != nil {
		return nil, fmt.Errorf("fetching buyer: %w", err)
	}

	for _, it := range items {
		if it.Type != order.Course && it.Type != order.DigitalProduct {
			continue
		}

		g := grant.Grant{
			OrderID:   ord.ID,
			UserID:    ord.UserID,
			ItemType:  it.Type,
			ItemID:    it.ItemID,
			CreatedAt: now,
		}
		if err := grant.Create(ctx, tx, g); err != nil {
			return nil, err
		}
	}

	for _, it := range items {
		if it.Type != order.Event {
			continue
		}
		if err := booking.Confirm(ctx, tx, ord.ID, it.ItemID, now); err != nil {
			return nil, err
		}
	}

	if buyer.Email == "" {
		buyer.Email = ord.Email
	}
	if buyer.Email == "" {
		buyer.Email = pl.Email
	}

	ord.Status = order.Completed
	if pl.PaymentRef != "" {
		ord.PaymentRef = pl.PaymentRef
	}

	return p.completionEffects(ord, items, buyer, now), nil
}

// HandlePaymentFailure marks a pending order as payment_failed. An empty
// orderID is a no-op: those events may not be linked to any order.
func (p *Pipeline) HandlePaymentFailure(ctx context.Context, orderID string) error {
	if orderID == "" {
		return nil
	}
	log := p.log.WithField("order_id", orderID)
	now := p.now().UTC()

	up := order.StatusUp{
		ID:        orderID,
		Status:    order.PaymentFailed,
		From:      []order.Status{order.Pending, order.PaymentFailed},
		UpdatedAt: now,
	}
	ok, err := order.UpdateStatus(ctx, p.db, up)
	if err != nil {
		return err
	}
	if !ok {
		log.Info("payment failure ignored, order is not pending")
		return nil
	}

	log.Info("order payment failed")
	p.run(ctx, log, p.statusEffects(events.OrderPaymentFailed, orderID, now))
	return nil
}

// HandleRefund reverts a completed order: status, access grants and
// bookings change together or not at all.
func (p *Pipeline) HandleRefund(ctx context.Context, orderID string) error {
	if orderID == "" {
		return nil
	}
	log := p.log.WithField("order_id", orderID)
	now := p.now().UTC()

	var revoked int64
	err := database.Transaction(ctx, p.db, func(tx sqlx.ExtContext) error {
		up := order.StatusUp{
			ID:        orderID,
			Status:    order.Refunded,
			From:      []order.Status{order.Completed, order.Refunded},
			UpdatedAt: now,
		}
		ok, err := order.UpdateStatus(ctx, tx, up)
		if err != nil {
			return err
		}
		if !ok {
			log.Warn("refund for order that was never completed")
		}

		if revoked, err = grant.DeleteByOrder(ctx, tx, orderID); err != nil {
			return err
		}

		return booking.CancelByOrder(ctx, tx, orderID, now)
	})
	if err != nil {
		return fmt.Errorf("refunding order[%s]: %w", orderID, err)
	}

	log.WithField("revoked_grants", revoked).Info("order refunded")
	p.run(ctx, log, p.statusEffects(events.OrderRefunded, orderID, now))
	return nil
}

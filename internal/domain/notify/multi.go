package notify

import (
	"context"
	"errors"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Multi delivers every notification through all of its notifiers and
// joins their errors.
type Multi []Notifier

var _ Notifier = Multi(nil)

func (m Multi) OrderConfirmed(ctx context.Context, o Order) error {
	return m.each(func(n Notifier) error { return n.OrderConfirmed(ctx, o) })
}

func (m Multi) PaymentApproved(ctx context.Context, o Order) error {
	return m.each(func(n Notifier) error { return n.PaymentApproved(ctx, o) })
}

func (m Multi) StatusChanged(ctx context.Context, o Order) error {
	return m.each(func(n Notifier) error { return n.StatusChanged(ctx, o) })
}

func (m Multi) each(fn func(Notifier) error) error {
	var errs []error
	for _, n := range m {
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log stands in for a channel that is not configured. It only records
// that a notification would have been sent.
type Log struct {
	Channel string
}

var _ Notifier = Log{}

func (l Log) OrderConfirmed(ctx context.Context, o Order) error {
	return l.log(ctx, EventOrderConfirmed, o)
}

func (l Log) PaymentApproved(ctx context.Context, o Order) error {
	return l.log(ctx, EventPaymentApproved, o)
}

func (l Log) StatusChanged(ctx context.Context, o Order) error {
	return l.log(ctx, EventStatusChanged, o)
}

func (l Log) log(ctx context.Context, ev Event, o Order) error {
	zctx.From(ctx).Info("Notification not delivered, channel disabled",
		zap.String("channel", l.Channel),
		zap.Stringer("event", ev),
		zap.Int64("order_id", o.ID),
		zap.String("status", o.Status),
	)
	return nil
}

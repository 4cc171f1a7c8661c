package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/vejoias/internal/domain/cart"
	"github.com/xenking/vejoias/internal/domain/catalog"
	"github.com/xenking/vejoias/internal/domain/coupon"
	"github.com/xenking/vejoias/internal/domain/notify"
	"github.com/xenking/vejoias/internal/domain/payment"
	"github.com/xenking/vejoias/internal/domain/user"
)

// Carts reads and empties shopping carts.
type Carts interface {
	Get(ctx context.Context, userID int64) (*cart.Cart, error)
	Clear(ctx context.Context, userID int64) error
}

// Jewels fetches catalog jewels in batch.
type Jewels interface {
	GetByIDs(ctx context.Context, ids []int64) ([]catalog.Jewel, error)
}

// Users looks up account holders.
type Users interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// Deps are the collaborators of Service.
type Deps struct {
	Orders   Repository
	Carts    Carts
	Jewels   Jewels
	Users    Users
	Coupons  coupon.Validator
	Payments payment.Gateway
	Notifier notify.Notifier
}

// Option configures a Service.
type Option func(*options)

type options struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider records checkout metrics with mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// Service encapsulates checkout and order management.
type Service struct {
	Deps

	placed        metric.Int64Counter
	paymentFailed metric.Int64Counter
	statusSynced  metric.Int64Counter
}

// NewService creates an order Service.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	o := options{meterProvider: noop.NewMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter("github.com/xenking/vejoias/internal/domain/order")
	s := &Service{Deps: deps}

	var err error
	if s.placed, err = meter.Int64Counter("vejoias.orders.placed",
		metric.WithDescription("Orders placed at checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	if s.paymentFailed, err = meter.Int64Counter("vejoias.payments.failed",
		metric.WithDescription("Checkout charges refused by the payment gateway"),
	); err != nil {
		return nil, errors.Wrap(err, "payment failures counter")
	}
	if s.statusSynced, err = meter.Int64Counter("vejoias.orders.status_synced",
		metric.WithDescription("Order status changes applied from payment notifications"),
	); err != nil {
		return nil, errors.Wrap(err, "status synced counter")
	}
	return s, nil
}

// CheckoutRequest holds the customer input for placing an order.
type CheckoutRequest struct {
	UserID        int64
	PaymentMethod string
	Address       Address
	Phone         string
	CouponCode    string
}

// Checkout turns the user's cart into a paid (or pending) order.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	method, phone, err := validateCheckout(&req)
	if err != nil {
		return nil, err
	}

	c, err := s.Carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if c.IsEmpty() {
		return nil, cart.ErrEmptyCart
	}

	items, err := s.priceItems(ctx, c)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	couponItems := make([]coupon.Item, len(items))
	for i, item := range items {
		subtotal = subtotal.Add(item.Subtotal())
		couponItems[i] = coupon.Item{JewelID: item.JewelID, UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}

	discount := decimal.Zero
	couponCode := coupon.NormalizeCode(req.CouponCode)
	if couponCode != "" {
		d, err := s.Coupons.Quote(ctx, couponCode, couponItems)
		if err != nil {
			return nil, errors.Wrap(err, "quote coupon")
		}
		discount = d.Amount
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	u, err := s.Users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "get customer")
	}

	o := &Order{
		UserID:        req.UserID,
		Status:        StatusAwaitingPayment,
		Total:         total,
		Discount:      discount.Round(2),
		CouponCode:    couponCode,
		PaymentMethod: method,
		Address:       req.Address,
		Phone:         phone,
		Items:         items,
	}

	if total.IsPositive() {
		tx, err := s.Payments.Charge(ctx, payment.Charge{
			Reference:   uuid.NewString(),
			Amount:      total,
			Method:      method,
			Description: "Pedido Vê Joias",
			Payer:       payerOf(u, req.Address),
		})
		if err != nil {
			s.paymentFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("method", string(method))))
			return nil, errors.Wrap(err, "charge")
		}
		o.Status = statusAfterCharge(tx.Status)
		o.TransactionID = tx.ExternalID
		o.PaymentURL = tx.PaymentURL
	} else {
		o.Status = StatusPaid
	}

	if err := s.Orders.Place(ctx, o); err != nil {
		var stockErr *catalog.InsufficientStockError
		if errors.As(err, &stockErr) {
			zctx.From(ctx).Warn("Stock ran out after charge",
				zap.String("transaction_id", o.TransactionID),
				zap.Int64("jewel_id", stockErr.JewelID),
			)
			return nil, err
		}
		if errors.Is(err, coupon.ErrCouponUsageLimitReached) {
			zctx.From(ctx).Warn("Coupon ran out after charge",
				zap.String("transaction_id", o.TransactionID),
				zap.String("coupon", couponCode),
			)
			return nil, err
		}
		return nil, errors.Wrap(err, "place order")
	}
	s.placed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", string(method)),
		attribute.String("status", string(o.Status)),
	))

	// Place already emptied the cart in storage; this drops cached copies.
	if err := s.Carts.Clear(ctx, req.UserID); err != nil {
		zctx.From(ctx).Warn("Clear cart after checkout", zap.Int64("user_id", req.UserID), zap.Error(err))
	}

	s.notify(ctx, o, u, s.Notifier.OrderConfirmed, "order confirmed")
	return o, nil
}

func validateCheckout(req *CheckoutRequest) (payment.Method, string, error) {
	fields := make(map[string]string)

	method, ok := payment.ParseMethod(req.PaymentMethod)
	if !ok {
		fields["tipo_pagamento"] = "must be one of PIX, CARTAO, BOLETO"
	}

	req.Address.normalize()
	req.Address.validate(fields)

	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		fields["telefone_whatsapp"] = "must have 10 or 11 digits with area code"
	}

	if len(fields) > 0 {
		return "", "", &ValidationError{Fields: fields}
	}
	return method, phone, nil
}

// priceItems snapshots cart lines at current catalog prices.
func (s *Service) priceItems(ctx context.Context, c *cart.Cart) ([]Item, error) {
	ids := make([]int64, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.JewelID
	}

	fetched, err := s.Jewels.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get jewels")
	}
	byID := make(map[int64]catalog.Jewel, len(fetched))
	for _, j := range fetched {
		byID[j.ID] = j
	}

	items := make([]Item, len(c.Items))
	for i, line := range c.Items {
		j, ok := byID[line.JewelID]
		if !ok || !j.Active {
			return nil, errors.Wrapf(catalog.ErrJewelNotFound, "jewel %d", line.JewelID)
		}
		if j.Stock < line.Quantity {
			return nil, &catalog.InsufficientStockError{
				JewelID:   j.ID,
				Available: j.Stock,
				Requested: line.Quantity,
			}
		}
		items[i] = Item{
			JewelID:   j.ID,
			Name:      j.Name,
			UnitPrice: j.Price,
			Quantity:  line.Quantity,
		}
	}
	return items, nil
}

func payerOf(u *user.User, a Address) payment.Payer {
	return payment.Payer{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		ZipCode:   a.ZipCode,
		Street:    a.Street,
		Number:    a.Number,
		District:  a.District,
		City:      a.City,
		State:     a.State,
	}
}

// SyncPaymentStatus applies the gateway's current view of a transaction to
// its order. Lookup failures and unknown transactions are logged and
// ignored; only storage failures are returned.
func (s *Service) SyncPaymentStatus(ctx context.Context, transactionID string) error {
	lg := zctx.From(ctx).With(zap.String("transaction_id", transactionID))

	tx, err := s.Payments.Status(ctx, transactionID)
	if err != nil {
		lg.Warn("Fetch transaction status", zap.Error(err))
		return nil
	}

	o, err := s.Orders.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			lg.Warn("No order for transaction")
			return nil
		}
		return errors.Wrap(err, "get order by transaction")
	}

	next := statusFromTransaction(tx.Status, o.Status)
	if next == o.Status {
		return nil
	}
	if err := s.Orders.UpdateStatus(ctx, o.ID, next); err != nil {
		return errors.Wrapf(err, "update order %d", o.ID)
	}
	lg.Info("Order status synced",
		zap.Int64("order_id", o.ID),
		zap.String("from", string(o.Status)),
		zap.String("to", string(next)),
	)
	s.statusSynced.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(next))))
	o.Status = next

	if next == StatusPaid {
		s.notifyOwner(ctx, o, s.Notifier.PaymentApproved, "payment approved")
	}
	return nil
}

// UpdateStatus sets an order status by hand.
func (s *Service) UpdateStatus(ctx context.Context, id int64, raw string) (*Order, error) {
	status, ok := ParseStatus(raw)
	if !ok || !status.Manual() {
		return nil, &InvalidStatusError{Status: raw}
	}

	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == status {
		return o, nil
	}

	if err := s.Orders.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "update order %d", id)
	}
	o.Status = status

	if status.notifiesCustomer() {
		s.notifyOwner(ctx, o, s.Notifier.StatusChanged, "status changed")
	}
	return o, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]Order, error) {
	orders, err := s.Orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of user %d", userID)
	}
	return orders, nil
}

// ListAll returns every order, optionally filtered by status.
func (s *Service) ListAll(ctx context.Context, rawStatus string) ([]Order, error) {
	var status Status
	if rawStatus != "" {
		st, ok := ParseStatus(rawStatus)
		if !ok {
			return nil, &InvalidStatusError{Status: rawStatus}
		}
		status = st
	}

	orders, err := s.Orders.List(ctx, status)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Get returns any order by id.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := s.Orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	return o, nil
}

// GetOwned returns an order only if it belongs to userID.
func (s *Service) GetOwned(ctx context.Context, userID, id int64) (*Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

type sendFunc func(ctx context.Context, o notify.Order) error

func (s *Service) notifyOwner(ctx context.Context, o *Order, send sendFunc, what string) {
	u, err := s.Users.GetByID(ctx, o.UserID)
	if err != nil {
		zctx.From(ctx).Warn("Notification skipped, customer lookup failed",
			zap.String("notification", what),
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
		return
	}
	s.notify(ctx, o, u, send, what)
}

func (s *Service) notify(ctx context.Context, o *Order, u *user.User, send sendFunc, what string) {
	msg := notify.Order{
		ID:            o.ID,
		CustomerName:  u.FullName(),
		Email:         u.Email,
		Phone:         o.Phone,
		Status:        string(o.Status),
		Total:         o.Total,
		PaymentMethod: string(o.PaymentMethod),
		PaymentURL:    o.PaymentURL,
	}
	if err := send(ctx, msg); err != nil {
		zctx.From(ctx).Warn("Notification failed",
			zap.String("notification", what),
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}

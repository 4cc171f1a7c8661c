// Package order implements checkout and the order lifecycle.
package order

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/vejoias/internal/domain/payment"
)

var (
	// ErrOrderNotFound is returned when an order does not exist or belongs
	// to another customer.
	ErrOrderNotFound = errors.New("order not found")
)

// InvalidStatusError is returned for an unknown or disallowed status.
type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid order status %q", e.Status)
}

// ValidationError lists field-level problems with a checkout request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.Fields[name]
	}
	return "invalid checkout: " + strings.Join(parts, "; ")
}

// Status is the lifecycle state of an order.
type Status string

const (
	StatusAwaitingPayment Status = "AGUARDANDO_PAGAMENTO"
	StatusPending         Status = "PENDENTE"
	StatusPaid            Status = "PAGO"
	StatusProcessing      Status = "PROCESSANDO"
	StatusShipped         Status = "ENVIADO"
	StatusDelivered       Status = "ENTREGUE"
	StatusCanceled        Status = "CANCELADO"
)

// ParseStatus parses any known status case-insensitively.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusAwaitingPayment, StatusPending, StatusPaid, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCanceled:
		return st, true
	default:
		return "", false
	}
}

// Manual reports whether staff may set s by hand.
func (s Status) Manual() bool {
	_, ok := ParseStatus(string(s))
	return ok && s != StatusAwaitingPayment
}

// notifiesCustomer reports whether a manual change to s is announced.
func (s Status) notifiesCustomer() bool {
	switch s {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCanceled:
		return true
	default:
		return false
	}
}

// statusAfterCharge maps the outcome of a checkout charge.
func statusAfterCharge(s payment.Status) Status {
	switch s {
	case payment.StatusApproved:
		return StatusPaid
	case payment.StatusPending:
		return StatusPending
	default:
		return StatusAwaitingPayment
	}
}

// statusFromTransaction maps a gateway update. Unknown statuses keep current.
func statusFromTransaction(s payment.Status, current Status) Status {
	switch s {
	case payment.StatusApproved:
		return StatusPaid
	case payment.StatusPending:
		return StatusPending
	case payment.StatusRejected, payment.StatusRefunded:
		return StatusCanceled
	default:
		return current
	}
}

// Address is the delivery address captured at checkout.
type Address struct {
	ZipCode    string
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string
}

func (a *Address) normalize() {
	a.ZipCode = strings.TrimSpace(a.ZipCode)
	a.Street = strings.TrimSpace(a.Street)
	a.Number = strings.TrimSpace(a.Number)
	a.Complement = strings.TrimSpace(a.Complement)
	a.District = strings.TrimSpace(a.District)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.ToUpper(strings.TrimSpace(a.State))
}

func (a Address) validate(fields map[string]string) {
	required := map[string]string{
		"cep":    a.ZipCode,
		"rua":    a.Street,
		"numero": a.Number,
		"bairro": a.District,
		"cidade": a.City,
		"estado": a.State,
	}
	for name, v := range required {
		if v == "" {
			fields[name] = "required"
		}
	}
	if len(a.ZipCode) > 9 {
		fields["cep"] = "must have at most 9 characters"
	}
	if a.State != "" && !isTwoLetters(a.State) {
		fields["estado"] = "must be a 2-letter code"
	}
}

func isTwoLetters(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// NormalizePhone keeps the digits of a WhatsApp number and adds the Brazil
// country code to local numbers.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if n := len(digits); n == 10 || n == 11 {
		digits = "55" + digits
	}
	if n := len(digits); n != 12 && n != 13 {
		return "", errors.Errorf("phone %q must have 10 or 11 digits plus optional country code", raw)
	}
	return digits, nil
}

// Item is a line snapshot taken at checkout. JewelID is zero once the
// jewel has been removed from the catalog.
type Item struct {
	JewelID   int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Subtotal returns UnitPrice * Quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed customer order.
type Order struct {
	ID            int64
	UserID        int64
	Status        Status
	Total         decimal.Decimal
	Discount      decimal.Decimal
	CouponCode    string
	PaymentMethod payment.Method
	TransactionID string
	PaymentURL    string
	Address       Address
	Phone         string
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Subtotal returns the sum of line subtotals before discount.
func (o *Order) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// Repository persists orders.
type Repository interface {
	// Place stores o with its items, decrements stock, consumes one use of
	// o.CouponCode and empties the owner's cart in one transaction. It
	// returns *catalog.InsufficientStockError when stock ran out meanwhile
	// and coupon.ErrCouponUsageLimitReached when the coupon did.
	Place(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	// List returns every order, or only those in status when non-empty.
	List(ctx context.Context, status Status) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

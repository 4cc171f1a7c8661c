// Package mercadopago implements payment.Gateway on top of the Mercado Pago
// payments API.
package mercadopago

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/vejoias/internal/domain/payment"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.mercadopago.com"

const maxBodySize = 1 << 20

var _ payment.Gateway = (*Gateway)(nil)

// Config configures the gateway.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Gateway talks to Mercado Pago over HTTP.
type Gateway struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// New validates cfg and returns a Gateway.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if cfg.AccessToken == "" {
		return nil, errors.New("mercadopago: access token is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	g := &Gateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Charge creates a payment. Card and PIX payments must come back approved;
// boleto payments must come back pending with a ticket to pay.
func (g *Gateway) Charge(ctx context.Context, c payment.Charge) (*payment.Transaction, error) {
	key := c.Reference
	if key == "" {
		key = uuid.NewString()
	}

	req, err := g.newRequest(ctx, http.MethodPost, "/v1/payments", encodeCharge(c))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("X-Idempotency-Key", key)

	p, err := g.do(req)
	if err != nil {
		return nil, errors.Wrapf(payment.ErrPaymentFailed, "create payment: %v", err)
	}

	zctx.From(ctx).Debug("Payment created",
		zap.String("payment_id", p.ID),
		zap.String("status", p.Status),
		zap.String("status_detail", p.StatusDetail),
	)

	switch c.Method {
	case payment.MethodBoleto:
		if p.Status != "pending" && p.Status != "in_process" {
			return nil, errors.Wrapf(payment.ErrPaymentFailed, "boleto refused with status %q", p.Status)
		}
		if p.TicketURL() == "" {
			return nil, errors.Wrap(payment.ErrPaymentFailed, "boleto issued without ticket url")
		}
	default:
		if p.Status != "approved" {
			return nil, errors.Wrapf(payment.ErrPaymentFailed, "%s refused with status %q (%s)", c.Method, p.Status, p.StatusDetail)
		}
	}

	tx := p.transaction()
	if tx.Amount.IsZero() {
		tx.Amount = c.Amount
	}
	tx.Method = c.Method
	return tx, nil
}

// Status fetches the current state of a payment.
func (g *Gateway) Status(ctx context.Context, externalID string) (*payment.Transaction, error) {
	req, err := g.newRequest(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(externalID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	p, err := g.do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get payment %s", externalID)
	}
	return p.transaction(), nil
}

func (g *Gateway) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (g *Gateway) do(req *http.Request) (*paymentResponse, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: decodeErrorMessage(body)}
	}
	return decodePayment(body)
}

// APIError is a non-2xx answer from Mercado Pago.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "mercadopago: http " + http.StatusText(e.StatusCode)
	}
	return "mercadopago: " + e.Message
}

// mapStatus converts a Mercado Pago payment status. Statuses it does not
// know map to the empty status so callers keep their current state.
func mapStatus(s string) payment.Status {
	switch s {
	case "approved":
		return payment.StatusApproved
	case "pending", "in_process", "authorized", "in_mediation":
		return payment.StatusPending
	case "rejected", "cancelled":
		return payment.StatusRejected
	case "refunded", "charged_back":
		return payment.StatusRefunded
	default:
		return ""
	}
}

// methodID returns the payment_method_id sent for m.
func methodID(m payment.Method) string {
	switch m {
	case payment.MethodPix:
		return "pix"
	case payment.MethodBoleto:
		return "bolbradesco"
	default:
		return "visa"
	}
}

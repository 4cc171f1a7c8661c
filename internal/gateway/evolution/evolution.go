// Package evolution sends WhatsApp notifications through an Evolution API
// instance.
package evolution

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/vejoias/internal/domain/notify"
)

// typingDelay is how long, in milliseconds, the contact sees "typing".
const typingDelay = 1200

// Config configures the client.
type Config struct {
	BaseURL  string
	APIKey   string
	Instance string
	Timeout  time.Duration
}

// Client implements notify.Notifier over WhatsApp.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

var _ notify.Notifier = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// New validates cfg and returns a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" || cfg.Instance == "" {
		return nil, errors.New("evolution: base url, api key and instance are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/message/sendText/" + url.PathEscape(cfg.Instance),
		apiKey:   cfg.APIKey,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) OrderConfirmed(ctx context.Context, o notify.Order) error {
	return c.notify(ctx, notify.EventOrderConfirmed, o)
}

func (c *Client) PaymentApproved(ctx context.Context, o notify.Order) error {
	return c.notify(ctx, notify.EventPaymentApproved, o)
}

func (c *Client) StatusChanged(ctx context.Context, o notify.Order) error {
	return c.notify(ctx, notify.EventStatusChanged, o)
}

func (c *Client) notify(ctx context.Context, ev notify.Event, o notify.Order) error {
	if o.Phone == "" {
		zctx.From(ctx).Debug("No phone on order, skipping WhatsApp",
			zap.Int64("order_id", o.ID),
			zap.Stringer("event", ev),
		)
		return nil
	}
	subject, body := notify.Render(ev, o)
	if err := c.SendText(ctx, o.Phone, "*"+subject+"*\n\n"+body); err != nil {
		return errors.Wrapf(err, "whatsapp %s for order %d", ev, o.ID)
	}
	return nil
}

// SendText delivers a plain text message to number (digits with country
// code).
func (c *Client) SendText(ctx context.Context, number, text string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encodeText(number, text)))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("evolution api: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func encodeText(number, text string) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("number")
	e.Str(number)
	e.FieldStart("options")
	e.ObjStart()
	e.FieldStart("delay")
	e.Int(typingDelay)
	e.FieldStart("presence")
	e.Str("composing")
	e.ObjEnd()
	e.FieldStart("textMessage")
	e.ObjStart()
	e.FieldStart("text")
	e.Str(text)
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

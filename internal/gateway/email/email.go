// Package email sends order notifications over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/vejoias/internal/domain/notify"
)

// Config configures the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender implements notify.Notifier by email.
type Sender struct {
	addr string
	auth smtp.Auth
	from mail.Address
	send SendFunc
	now  func() time.Time
}

var _ notify.Notifier = (*Sender)(nil)

// Option configures a Sender.
type Option func(*Sender)

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(fn SendFunc) Option {
	return func(s *Sender) { s.send = fn }
}

// New validates cfg and returns a Sender.
func New(cfg Config, opts ...Option) (*Sender, error) {
	if cfg.Host == "" {
		return nil, errors.New("email: smtp host is required")
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, errors.Wrap(err, "email: parse from address")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	s := &Sender{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: *from,
		send: smtp.SendMail,
		now:  time.Now,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Sender) OrderConfirmed(ctx context.Context, o notify.Order) error {
	return s.notify(ctx, notify.EventOrderConfirmed, o)
}

func (s *Sender) PaymentApproved(ctx context.Context, o notify.Order) error {
	return s.notify(ctx, notify.EventPaymentApproved, o)
}

func (s *Sender) StatusChanged(ctx context.Context, o notify.Order) error {
	return s.notify(ctx, notify.EventStatusChanged, o)
}

func (s *Sender) notify(ctx context.Context, ev notify.Event, o notify.Order) error {
	if o.Email == "" {
		zctx.From(ctx).Debug("No email on order, skipping",
			zap.Int64("order_id", o.ID),
			zap.Stringer("event", ev),
		)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := notify.Render(ev, o)
	to := mail.Address{Name: o.CustomerName, Address: o.Email}
	if err := s.send(s.addr, s.auth, s.from.Address, []string{o.Email}, s.compose(to, subject, body)); err != nil {
		return errors.Wrapf(err, "email %s for order %d", ev, o.ID)
	}
	return nil
}

func (s *Sender) compose(to mail.Address, subject, body string) []byte {
	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("From", s.from.String())
	header("To", to.String())
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", s.now().Format(time.RFC1123Z))
	header("Message-ID", "<"+uuid.NewString()+"@"+domainOf(s.from.Address)+">")
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.Bytes()
}

func domainOf(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		return addr[i+1:]
	}
	return "localhost"
}

package evolution

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/vejoias/internal/domain/notify"
)

type sent struct {
	path   string
	apiKey string
	number string
	text   string
	delay  int
	calls  int
}

func newTestClient(t *testing.T, status int) (*Client, *sent) {
	t.Helper()
	got := &sent{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.calls++
		got.path = r.URL.Path
		got.apiKey = r.Header.Get("apikey")
		body, _ := io.ReadAll(r.Body)
		_ = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "number":
				got.number, err = d.Str()
			case "options":
				err = d.Obj(func(d *jx.Decoder, key string) error {
					if key == "delay" {
						var err error
						got.delay, err = d.Int()
						return err
					}
					return d.Skip()
				})
			case "textMessage":
				err = d.Obj(func(d *jx.Decoder, _ string) error {
					var err error
					got.text, err = d.Str()
					return err
				})
			default:
				err = d.Skip()
			}
			return err
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, APIKey: "secret", Instance: "vejoias"}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, got
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Config{BaseURL: "http://x", APIKey: "k"})
	require.Error(t, err)
}

func TestOrderConfirmed(t *testing.T) {
	c, got := newTestClient(t, http.StatusCreated)

	err := c.OrderConfirmed(context.Background(), notify.Order{
		ID:           12,
		CustomerName: "Ana",
		Phone:        "5511987654321",
		Status:       "PAGO",
	})
	require.NoError(t, err)
	assert.Equal(t, "/message/sendText/vejoias", got.path)
	assert.Equal(t, "secret", got.apiKey)
	assert.Equal(t, "5511987654321", got.number)
	assert.Equal(t, typingDelay, got.delay)
	assert.Contains(t, got.text, "Pedido #12")
}

func TestStatusChanged_NoPhone(t *testing.T) {
	c, got := newTestClient(t, http.StatusCreated)
	require.NoError(t, c.StatusChanged(context.Background(), notify.Order{ID: 1}))
	assert.Zero(t, got.calls)
}

func TestPaymentApproved_Failure(t *testing.T) {
	c, _ := newTestClient(t, http.StatusUnauthorized)
	err := c.PaymentApproved(context.Background(), notify.Order{ID: 3, Phone: "5511987654321"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order 3")
}

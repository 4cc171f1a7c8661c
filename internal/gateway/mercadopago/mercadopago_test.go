package mercadopago

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/vejoias/internal/domain/payment"
)

type capture struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func newServer(t *testing.T, status int, reply string) (*Gateway, *capture) {
	t.Helper()
	got := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.header = r.Header.Clone()
		got.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)

	g, err := New(Config{BaseURL: srv.URL + "/", AccessToken: "TEST-token"}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return g, got
}

func sampleCharge(m payment.Method) payment.Charge {
	return payment.Charge{
		Reference:   "ref-1",
		Amount:      decimal.RequireFromString("259.9"),
		Method:      m,
		Description: "Pedido Vê Joias",
		Payer: payment.Payer{
			Email:     "ana@example.com",
			FirstName: "Ana",
			LastName:  "Souza",
			ZipCode:   "01310-100",
			Street:    "Av. Paulista",
			Number:    "1000",
			District:  "Bela Vista",
			City:      "São Paulo",
			State:     "SP",
		},
	}
}

func TestNew_RequiresToken(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestCharge_PixApproved(t *testing.T) {
	g, got := newServer(t, http.StatusCreated,
		`{"id": 1234567890, "status": "approved", "status_detail": "accredited", "transaction_amount": 259.9}`)

	tx, err := g.Charge(context.Background(), sampleCharge(payment.MethodPix))
	require.NoError(t, err)
	assert.Equal(t, "1234567890", tx.ExternalID)
	assert.Equal(t, payment.StatusApproved, tx.Status)
	assert.Equal(t, payment.MethodPix, tx.Method)
	assert.True(t, decimal.RequireFromString("259.90").Equal(tx.Amount))
	assert.Equal(t, "accredited", tx.Message)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/v1/payments", got.path)
	assert.Equal(t, "Bearer TEST-token", got.header.Get("Authorization"))
	assert.Equal(t, "ref-1", got.header.Get("X-Idempotency-Key"))

	fields := map[string]string{}
	require.NoError(t, jx.DecodeBytes(got.body).Obj(func(d *jx.Decoder, key string) error {
		raw, err := d.Raw()
		fields[key] = raw.String()
		return err
	}))
	assert.Equal(t, "259.90", fields["transaction_amount"])
	assert.Equal(t, `"pix"`, fields["payment_method_id"])
	assert.Equal(t, `"ref-1"`, fields["external_reference"])
	assert.Contains(t, fields["payer"], `"federal_unit":"SP"`)
}

func TestCharge_Refused(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
		method payment.Method
	}{
		{
			name:   "card rejected",
			status: http.StatusCreated,
			reply:  `{"id": 1, "status": "rejected", "status_detail": "cc_rejected_insufficient_amount"}`,
			method: payment.MethodCard,
		},
		{
			name:   "pix left pending",
			status: http.StatusCreated,
			reply:  `{"id": 2, "status": "pending"}`,
			method: payment.MethodPix,
		},
		{
			name:   "boleto without ticket",
			status: http.StatusCreated,
			reply:  `{"id": 3, "status": "pending", "transaction_details": {"external_resource_url": null}}`,
			method: payment.MethodBoleto,
		},
		{
			name:   "boleto rejected",
			status: http.StatusCreated,
			reply:  `{"id": 4, "status": "rejected", "transaction_details": {"external_resource_url": "https://mp/boleto"}}`,
			method: payment.MethodBoleto,
		},
		{
			name:   "api error",
			status: http.StatusBadRequest,
			reply:  `{"message": "invalid payer email", "error": "bad_request", "status": 400}`,
			method: payment.MethodPix,
		},
		{
			name:   "garbage body",
			status: http.StatusOK,
			reply:  `<html>`,
			method: payment.MethodPix,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newServer(t, tt.status, tt.reply)
			_, err := g.Charge(context.Background(), sampleCharge(tt.method))
			require.ErrorIs(t, err, payment.ErrPaymentFailed)
		})
	}
}

func TestCharge_BoletoPending(t *testing.T) {
	g, _ := newServer(t, http.StatusCreated, `{
		"id": "987",
		"status": "pending",
		"status_detail": "pending_waiting_payment",
		"transaction_amount": 259.9,
		"transaction_details": {"external_resource_url": "https://mp/boleto/987", "net_received_amount": 0}
	}`)

	tx, err := g.Charge(context.Background(), sampleCharge(payment.MethodBoleto))
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, tx.Status)
	assert.Equal(t, "https://mp/boleto/987", tx.PaymentURL)
}

func TestCharge_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	g, err := New(Config{BaseURL: srv.URL, AccessToken: "t"})
	require.NoError(t, err)
	_, err = g.Charge(context.Background(), sampleCharge(payment.MethodPix))
	require.ErrorIs(t, err, payment.ErrPaymentFailed)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want payment.Status
	}{
		{raw: "approved", want: payment.StatusApproved},
		{raw: "in_process", want: payment.StatusPending},
		{raw: "pending", want: payment.StatusPending},
		{raw: "rejected", want: payment.StatusRejected},
		{raw: "cancelled", want: payment.StatusRejected},
		{raw: "refunded", want: payment.StatusRefunded},
		{raw: "charged_back", want: payment.StatusRefunded},
		{raw: "something_new", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			g, got := newServer(t, http.StatusOK, `{"id": 42, "status": "`+tt.raw+`"}`)
			tx, err := g.Status(context.Background(), "42")
			require.NoError(t, err)
			assert.Equal(t, tt.want, tx.Status)
			assert.Equal(t, "42", tx.ExternalID)
			assert.Equal(t, http.MethodGet, got.method)
			assert.Equal(t, "/v1/payments/42", got.path)
		})
	}
}

func TestStatus_NotFound(t *testing.T) {
	g, _ := newServer(t, http.StatusNotFound, `{"message": "Payment not found"}`)
	_, err := g.Status(context.Background(), "404")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Payment not found", apiErr.Message)
}

package handler

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// paymentNotification is a Mercado Pago webhook or IPN call.
type paymentNotification struct {
	Topic     string
	PaymentID string
}

// mercadoPagoWebhook syncs the order behind a payment notification. Only
// payment topics are handled; anything else is answered with 400.
func (h *Handler) mercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	n, err := readNotification(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	lg := zctx.From(r.Context())
	if n.Topic != "payment" || n.PaymentID == "" {
		lg.Info("Webhook ignored", zap.String("topic", n.Topic))
		writeStatus(w, http.StatusBadRequest, "ignored")
		return
	}

	lg.Info("Payment notification", zap.String("payment_id", n.PaymentID))
	if err := h.Orders.SyncPaymentStatus(r.Context(), n.PaymentID); err != nil {
		fail(w, r, err)
		return
	}
	writeStatus(w, http.StatusOK, "ok")
}

// readNotification merges query parameters (IPN style) with the JSON body
// (webhook style). Body values win.
func readNotification(r *http.Request) (paymentNotification, error) {
	q := r.URL.Query()
	n := paymentNotification{
		Topic:     firstNonEmpty(q.Get("type"), q.Get("topic")),
		PaymentID: firstNonEmpty(q.Get("data.id"), q.Get("id")),
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return n, badRequest("cannot read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return n, nil
	}

	err = jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "type", "topic":
			s, err := readString(d, key)
			if s != "" {
				n.Topic = s
			}
			return err
		case "resource":
			s, err := readString(d, key)
			if id := path.Base(strings.TrimRight(s, "/")); s != "" && id != "." && id != "/" {
				n.PaymentID = id
			}
			return err
		case "data":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "id" {
					return d.Skip()
				}
				id, err := readID(d)
				if id != "" {
					n.PaymentID = id
				}
				return err
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return n, badRequest("invalid JSON body")
	}
	return n, nil
}

// readID reads an identifier sent either as a string or a number.
func readID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		num, err := d.Num()
		return num.String(), err
	default:
		return "", d.Skip()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	writeJSON(w, code, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("status")
		e.Str(status)
		e.ObjEnd()
	})
}

package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/vejoias/internal/domain/order"
)

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	req := order.CheckoutRequest{UserID: principal(r).UserID}
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "tipo_pagamento":
			req.PaymentMethod, err = readString(d, key)
		case "cep":
			req.Address.ZipCode, err = readString(d, key)
		case "rua":
			req.Address.Street, err = readString(d, key)
		case "numero":
			req.Address.Number, err = readString(d, key)
		case "complemento":
			req.Address.Complement, err = readString(d, key)
		case "bairro":
			req.Address.District, err = readString(d, key)
		case "cidade":
			req.Address.City, err = readString(d, key)
		case "estado":
			req.Address.State, err = readString(d, key)
		case "telefone_whatsapp", "telefone":
			req.Phone, err = readString(d, key)
		case "cupom":
			req.CouponCode, err = readString(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.Orders.Checkout(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str("Pedido criado com sucesso!")
		e.FieldStart("pedido_id")
		e.Int64(o.ID)
		e.FieldStart("pedido")
		encodeOrder(e, o)
		e.ObjEnd()
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.List(r.Context(), principal(r).UserID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	o, err := h.Orders.GetOwned(r.Context(), principal(r).UserID, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.ListAll(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var status string
	err = readObject(r, func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		status, err = readString(d, key)
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	if status == "" {
		fail(w, r, badField("status", "required"))
		return
	}

	o, err := h.Orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, o) })
}

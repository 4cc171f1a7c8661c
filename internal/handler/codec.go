package handler

import (
	"bytes"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/vejoias/internal/domain/cart"
	"github.com/xenking/vejoias/internal/domain/catalog"
	"github.com/xenking/vejoias/internal/domain/order"
	"github.com/xenking/vejoias/internal/domain/user"
)

const maxBodySize = 1 << 20

// requestError is a malformed request, reported as 400.
type requestError struct {
	msg    string
	fields map[string]string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func badField(field, reason string) error {
	return &requestError{msg: "invalid field " + field, fields: map[string]string{field: reason}}
}

// readObject decodes the request body as a JSON object, calling fn per key.
func readObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return badRequest("cannot read request body")
	}
	if len(body) > maxBodySize {
		return badRequest("request body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return badRequest("request body is required")
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			return reqErr
		}
		return badRequest("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func money(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

// readString decodes a string, treating null as empty.
func readString(d *jx.Decoder, field string) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.String:
		return d.Str()
	default:
		_ = d.Skip()
		return "", badField(field, "must be a string")
	}
}

// readInt64 accepts numbers and numeric strings, as form posts send both.
func readInt64(d *jx.Decoder, field string) (int64, error) {
	switch d.Next() {
	case jx.Number:
		v, err := d.Int64()
		if err != nil {
			return 0, badField(field, "must be an integer")
		}
		return v, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, badField(field, "must be an integer")
		}
		return v, nil
	default:
		_ = d.Skip()
		return 0, badField(field, "must be an integer")
	}
}

// readInt bounds the value to the INTEGER columns it is stored in.
func readInt(d *jx.Decoder, field string) (int, error) {
	v, err := readInt64(d, field)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, badField(field, "out of range")
	}
	return int(v), nil
}

// readDecimal accepts "12.50" and 12.5 alike. ok is false for null.
func readDecimal(d *jx.Decoder, field string) (v decimal.Decimal, ok bool, err error) {
	var raw string
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, false, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, false, badField(field, "must be a number")
		}
		raw = n.String()
	case jx.String:
		if raw, err = d.Str(); err != nil {
			return decimal.Zero, false, err
		}
	default:
		_ = d.Skip()
		return decimal.Zero, false, badField(field, "must be a number")
	}
	v, err = decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, badField(field, "must be a number")
	}
	return v, true, nil
}

func readBool(d *jx.Decoder, field string) (bool, error) {
	if d.Next() != jx.Bool {
		_ = d.Skip()
		return false, badField(field, "must be a boolean")
	}
	return d.Bool()
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	s := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id " + strconv.Quote(s))
	}
	return id, nil
}

func encodeCategory(e *jx.Encoder, c *catalog.Category) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("nome")
	e.Str(c.Name)
	e.FieldStart("slug")
	e.Str(c.Slug)
	e.FieldStart("descricao")
	e.Str(c.Description)
	e.ObjEnd()
}

func encodeJewel(e *jx.Encoder, j *catalog.Jewel) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(j.ID)
	if j.SKU != "" {
		e.FieldStart("sku")
		e.Str(j.SKU)
	}
	e.FieldStart("nome")
	e.Str(j.Name)
	e.FieldStart("descricao")
	e.Str(j.Description)
	e.FieldStart("preco")
	money(e, j.Price)
	e.FieldStart("estoque")
	e.Int(j.Stock)
	e.FieldStart("em_estoque")
	e.Bool(j.InStock())
	e.FieldStart("categoria_id")
	if j.CategoryID != nil {
		e.Int64(*j.CategoryID)
	} else {
		e.Null()
	}
	e.FieldStart("categoria")
	if j.CategorySlug != "" {
		e.Str(j.CategorySlug)
	} else {
		e.Null()
	}
	e.FieldStart("material")
	e.Str(j.Material)
	e.FieldStart("peso_gramas")
	if j.WeightGrams.Valid {
		money(e, j.WeightGrams.Decimal)
	} else {
		e.Null()
	}
	e.FieldStart("dimensoes")
	e.Str(j.Dimensions)
	e.FieldStart("imagem_url")
	e.Str(j.ImageURL)
	e.FieldStart("destaque")
	e.Bool(j.Featured)
	e.FieldStart("ativo")
	e.Bool(j.Active)
	e.FieldStart("criado_em")
	timestamp(e, j.CreatedAt)
	e.FieldStart("atualizado_em")
	timestamp(e, j.UpdatedAt)
	e.ObjEnd()
}

// decodeJewel reads a full jewel representation. Omitted fields keep their
// zero value except ativo, which defaults to true.
func decodeJewel(r *http.Request) (*catalog.Jewel, error) {
	j := &catalog.Jewel{Active: true}
	err := readObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			j.SKU, err = readString(d, key)
		case "nome":
			j.Name, err = readString(d, key)
		case "descricao":
			j.Description, err = readString(d, key)
		case "preco":
			j.Price, _, err = readDecimal(d, key)
		case "estoque":
			j.Stock, err = readInt(d, key)
		case "categoria_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var id int64
			if id, err = readInt64(d, key); err == nil {
				j.CategoryID = &id
			}
		case "material":
			j.Material, err = readString(d, key)
		case "peso_gramas":
			var (
				v  decimal.Decimal
				ok bool
			)
			if v, ok, err = readDecimal(d, key); err == nil && ok {
				j.WeightGrams = decimal.NewNullDecimal(v)
			}
		case "dimensoes":
			j.Dimensions, err = readString(d, key)
		case "imagem_url":
			j.ImageURL, err = readString(d, key)
		case "destaque":
			j.Featured, err = readBool(d, key)
		case "ativo":
			j.Active, err = readBool(d, key)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("usuario")
	e.Int64(c.UserID)
	e.FieldStart("itens")
	e.ArrStart()
	for _, item := range c.Items {
		e.ObjStart()
		e.FieldStart("joia_id")
		e.Int64(item.JewelID)
		e.FieldStart("nome")
		e.Str(item.Name)
		e.FieldStart("preco_unitario")
		money(e, item.UnitPrice)
		e.FieldStart("quantidade")
		e.Int(item.Quantity)
		e.FieldStart("subtotal")
		money(e, item.Subtotal())
		e.FieldStart("imagem_url")
		e.Str(item.ImageURL)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("quantidade_itens")
	e.Int(c.Count())
	e.FieldStart("total")
	money(e, c.Total())
	if !c.UpdatedAt.IsZero() {
		e.FieldStart("atualizado_em")
		timestamp(e, c.UpdatedAt)
	}
	e.ObjEnd()
}

func encodeAddress(e *jx.Encoder, a order.Address) {
	e.ObjStart()
	e.FieldStart("cep")
	e.Str(a.ZipCode)
	e.FieldStart("rua")
	e.Str(a.Street)
	e.FieldStart("numero")
	e.Str(a.Number)
	e.FieldStart("complemento")
	e.Str(a.Complement)
	e.FieldStart("bairro")
	e.Str(a.District)
	e.FieldStart("cidade")
	e.Str(a.City)
	e.FieldStart("estado")
	e.Str(a.State)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("usuario")
	e.Int64(o.UserID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("subtotal")
	money(e, o.Subtotal())
	e.FieldStart("desconto")
	money(e, o.Discount)
	e.FieldStart("total")
	money(e, o.Total)
	e.FieldStart("cupom")
	if o.CouponCode != "" {
		e.Str(o.CouponCode)
	} else {
		e.Null()
	}
	e.FieldStart("tipo_pagamento")
	e.Str(string(o.PaymentMethod))
	e.FieldStart("transacao_id")
	e.Str(o.TransactionID)
	if o.PaymentURL != "" {
		e.FieldStart("url_pagamento")
		e.Str(o.PaymentURL)
	}
	e.FieldStart("endereco")
	encodeAddress(e, o.Address)
	e.FieldStart("telefone")
	e.Str(o.Phone)
	e.FieldStart("itens")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("joia_id")
		if item.JewelID != 0 {
			e.Int64(item.JewelID)
		} else {
			e.Null()
		}
		e.FieldStart("nome")
		e.Str(item.Name)
		e.FieldStart("preco_unitario")
		money(e, item.UnitPrice)
		e.FieldStart("quantidade")
		e.Int(item.Quantity)
		e.FieldStart("subtotal")
		money(e, item.Subtotal())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("criado_em")
	timestamp(e, o.CreatedAt)
	e.FieldStart("atualizado_em")
	timestamp(e, o.UpdatedAt)
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for i := range orders {
		encodeOrder(e, &orders[i])
	}
	e.ArrEnd()
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(u.ID)
	e.FieldStart("email")
	e.Str(u.Email)
	e.FieldStart("nome")
	e.Str(u.FirstName)
	e.FieldStart("sobrenome")
	e.Str(u.LastName)
	e.FieldStart("telefone")
	e.Str(u.Phone)
	e.FieldStart("is_staff")
	e.Bool(u.Staff)
	e.FieldStart("ativo")
	e.Bool(u.Active)
	e.FieldStart("criado_em")
	timestamp(e, u.CreatedAt)
	e.ObjEnd()
}

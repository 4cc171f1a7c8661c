package postgres

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/vejoias/internal/domain/order"
)

// encodeAddress renders the JSONB value stored in orders.address.
func encodeAddress(a order.Address) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("cep")
	e.Str(a.ZipCode)
	e.FieldStart("rua")
	e.Str(a.Street)
	e.FieldStart("numero")
	e.Str(a.Number)
	if a.Complement != "" {
		e.FieldStart("complemento")
		e.Str(a.Complement)
	}
	e.FieldStart("bairro")
	e.Str(a.District)
	e.FieldStart("cidade")
	e.Str(a.City)
	e.FieldStart("estado")
	e.Str(a.State)
	e.ObjEnd()
	return e.Bytes()
}

func decodeAddress(b []byte) (order.Address, error) {
	var a order.Address
	err := jx.DecodeBytes(b).Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "cep":
			dst = &a.ZipCode
		case "rua":
			dst = &a.Street
		case "numero":
			dst = &a.Number
		case "complemento":
			dst = &a.Complement
		case "bairro":
			dst = &a.District
		case "cidade":
			dst = &a.City
		case "estado":
			dst = &a.State
		default:
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		*dst = v
		return nil
	})
	if err != nil {
		return order.Address{}, errors.Wrap(err, "decode address")
	}
	return a, nil
}

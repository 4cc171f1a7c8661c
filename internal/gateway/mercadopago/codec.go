package mercadopago

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/vejoias/internal/domain/payment"
)

func encodeCharge(c payment.Charge) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("transaction_amount")
	e.Num(jx.Num(c.Amount.StringFixed(2)))
	e.FieldStart("description")
	e.Str(c.Description)
	e.FieldStart("payment_method_id")
	e.Str(methodID(c.Method))
	if c.Reference != "" {
		e.FieldStart("external_reference")
		e.Str(c.Reference)
	}

	p := c.Payer
	e.FieldStart("payer")
	e.ObjStart()
	e.FieldStart("email")
	e.Str(p.Email)
	e.FieldStart("first_name")
	e.Str(p.FirstName)
	e.FieldStart("last_name")
	e.Str(p.LastName)
	if p.ZipCode != "" {
		e.FieldStart("address")
		e.ObjStart()
		e.FieldStart("zip_code")
		e.Str(p.ZipCode)
		e.FieldStart("street_name")
		e.Str(p.Street)
		e.FieldStart("street_number")
		e.Str(p.Number)
		e.FieldStart("neighborhood")
		e.Str(p.District)
		e.FieldStart("city")
		e.Str(p.City)
		e.FieldStart("federal_unit")
		e.Str(p.State)
		e.ObjEnd()
	}
	e.ObjEnd()

	e.ObjEnd()
	return e.Bytes()
}

type paymentResponse struct {
	ID           string
	Status       string
	StatusDetail string
	Amount       decimal.Decimal
	ExternalURL  string
	PixTicketURL string
}

// TicketURL returns the link the customer follows to pay, if any.
func (p *paymentResponse) TicketURL() string {
	if p.ExternalURL != "" {
		return p.ExternalURL
	}
	return p.PixTicketURL
}

func (p *paymentResponse) transaction() *payment.Transaction {
	return &payment.Transaction{
		ExternalID: p.ID,
		Status:     mapStatus(p.Status),
		Amount:     p.Amount,
		PaymentURL: p.TicketURL(),
		Message:    p.StatusDetail,
	}
}

func decodePayment(data []byte) (*paymentResponse, error) {
	p := &paymentResponse{}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = decodeID(d)
		case "status":
			p.Status, err = d.Str()
		case "status_detail":
			p.StatusDetail, err = optionalStr(d)
		case "transaction_amount":
			var n jx.Num
			if n, err = d.Num(); err == nil {
				p.Amount, err = decimal.NewFromString(n.String())
			}
		case "transaction_details":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				if key != "external_resource_url" {
					return d.Skip()
				}
				var err error
				p.ExternalURL, err = optionalStr(d)
				return err
			})
		case "point_of_interaction":
			err = d.Obj(func(d *jx.Decoder, key string) error {
				if key != "transaction_data" {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "ticket_url" {
						return d.Skip()
					}
					var err error
					p.PixTicketURL, err = optionalStr(d)
					return err
				})
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode payment")
	}
	if p.ID == "" {
		return nil, errors.New("decode payment: missing id")
	}
	return p, nil
}

// decodeID accepts both numeric and string payment ids.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	default:
		return d.Str()
	}
}

func optionalStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeErrorMessage extracts "message" from an API error body.
func decodeErrorMessage(data []byte) string {
	var msg string
	_ = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "message" {
			return d.Skip()
		}
		var err error
		msg, err = optionalStr(d)
		return err
	})
	return msg
}

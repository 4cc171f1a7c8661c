package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Event names the moment a notification is sent for.
type Event int

const (
	EventOrderConfirmed Event = iota + 1
	EventPaymentApproved
	EventStatusChanged
)

func (e Event) String() string {
	switch e {
	case EventOrderConfirmed:
		return "order_confirmed"
	case EventPaymentApproved:
		return "payment_approved"
	case EventStatusChanged:
		return "status_changed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

var statusLabels = map[string]string{
	"AGUARDANDO_PAGAMENTO": "Aguardando pagamento",
	"PENDENTE":             "Pagamento em análise",
	"PAGO":                 "Pago",
	"PROCESSANDO":          "Em separação",
	"ENVIADO":              "Enviado",
	"ENTREGUE":             "Entregue",
	"CANCELADO":            "Cancelado",
}

// Render returns the subject and plain-text body announcing ev for o.
func Render(ev Event, o Order) (subject, body string) {
	var b strings.Builder
	if o.CustomerName != "" {
		fmt.Fprintf(&b, "Olá, %s!\n\n", o.CustomerName)
	} else {
		b.WriteString("Olá!\n\n")
	}

	switch ev {
	case EventOrderConfirmed:
		subject = fmt.Sprintf("Confirmação de Pedido #%d | Vê Joias", o.ID)
		fmt.Fprintf(&b, "Recebemos o seu pedido #%d no valor de %s.\n", o.ID, FormatBRL(o.Total))
		fmt.Fprintf(&b, "Forma de pagamento: %s.\n", o.PaymentMethod)
		fmt.Fprintf(&b, "Situação: %s.\n", statusLabel(o.Status))
		if o.PaymentURL != "" {
			fmt.Fprintf(&b, "Para concluir o pagamento acesse: %s\n", o.PaymentURL)
		}
	case EventPaymentApproved:
		subject = fmt.Sprintf("Pagamento aprovado | Pedido #%d", o.ID)
		fmt.Fprintf(&b, "O pagamento do pedido #%d (%s) foi aprovado.\n", o.ID, FormatBRL(o.Total))
		b.WriteString("Já estamos preparando as suas joias.\n")
	default:
		subject = fmt.Sprintf("Atualização do Pedido #%d | Vê Joias", o.ID)
		fmt.Fprintf(&b, "O seu pedido #%d agora está: %s.\n", o.ID, statusLabel(o.Status))
	}

	b.WriteString("\nObrigado por comprar na Vê Joias.")
	return subject, b.String()
}

func statusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// FormatBRL renders d as Brazilian currency, e.g. "R$ 1.299,90".
func FormatBRL(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString("R$ ")
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(cents)
	return b.String()
}

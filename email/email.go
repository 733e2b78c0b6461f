package email

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"gopkg.in/mail.v2"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type ReceiptItem struct {
	Kind     string
	ID       string
	Price    int
	Quantity int
}

// Receipt is what both the buyer and the shop admins are told about an order.
type Receipt struct {
	OrderID string
	Name    string
	Email   string
	Total   int
	Items   []ReceiptItem
}

type Mailer struct {
	dialer *mail.Dialer
	from   string
}

func New(address, password, host string, port int) *Mailer {
	return &Mailer{
		dialer: mail.NewDialer(host, port, address, password),
		from:   address,
	}
}

func (m *Mailer) SendOrderConfirmation(to string, r Receipt) error {
	return m.send(to, "Your order "+r.OrderID, "order_confirmation.tmpl", r)
}

func (m *Mailer) SendAdminNotice(to string, r Receipt) error {
	return m.send(to, "New order "+r.OrderID, "admin_notice.tmpl", r)
}

func (m *Mailer) send(to, subject, tmpl string, data any) error {
	body, err := render(tmpl, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending %q to %s: %w", subject, to, err)
	}
	return nil
}

func render(tmpl string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", tmpl, err)
	}
	return buf.String(), nil
}

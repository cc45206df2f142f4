package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"dormbill/internal/amqp"
	"dormbill/internal/core"
)

var (
	ErrNoRecipient  = errors.New("dormer has no email address")
	ErrBadRecipient = errors.New("dormer email is not a valid address")
)

var funcs = template.FuncMap{
	"money": func(cents int64, symbol string) string { return core.FromCents(cents).Format(symbol) },
}

var receiptTmpl = template.Must(template.New("receipt").Funcs(funcs).Parse(`Hi {{.Msg.DormerName}},

We received your payment of {{money .Msg.AmountCents .Symbol}} via {{.Msg.Method}} on {{.Msg.PaidOn}}
for {{.Msg.LedgerKind}} "{{.Msg.Period}}"{{if .Msg.Description}} ({{.Msg.Description}}){{end}}.

  Total due:   {{money .Msg.TotalDueCents .Symbol}}
  Amount paid: {{money .Msg.AmountPaidCents .Symbol}}
  Balance:     {{money .Msg.BalanceCents .Symbol}}
  Status:      {{.Msg.Status}}
{{if .Msg.RecordedBy}}
Recorded by {{.Msg.RecordedBy}}.
{{end}}`))

var reminderTmpl = template.Must(template.New("reminder").Funcs(funcs).Parse(`Hi {{.Msg.DormerName}},

Your {{.Msg.LedgerKind}} "{{.Msg.Period}}"{{if .Msg.Description}} ({{.Msg.Description}}){{end}} was due on {{.Msg.DueDate}} and is still unpaid.

  Amount due: {{money .Msg.BalanceCents .Symbol}}

Please settle it at the dorm office or through any accepted payment channel.
`))

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer renders billing messages as plain text emails and sends them.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	symbol   string
	send     SendFunc
}

type MailerConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	From           string
	CurrencySymbol string
}

func NewMailer(cfg MailerConfig) *Mailer {
	symbol := cfg.CurrencySymbol
	if symbol == "" {
		symbol = core.DefaultCurrencySymbol
	}
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		symbol:   symbol,
		send:     smtp.SendMail,
	}
}

// WithSender swaps the SMTP transport, mainly for tests.
func (m *Mailer) WithSender(send SendFunc) *Mailer {
	m.send = send
	return m
}

// Render returns the subject and body for msg.
func (m *Mailer) Render(msg *amqp.BillingMessage) (string, string, error) {
	var (
		subject string
		tmpl    *template.Template
	)
	switch msg.Type {
	case amqp.TypePaymentRecorded:
		subject = fmt.Sprintf("Payment received: %s %s", msg.LedgerKind, msg.Period)
		tmpl = receiptTmpl
	case amqp.TypeLedgerOverdue:
		subject = fmt.Sprintf("Overdue %s: %s", msg.LedgerKind, msg.Period)
		tmpl = reminderTmpl
	default:
		return "", "", fmt.Errorf("no template for message type %q", msg.Type)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Msg    *amqp.BillingMessage
		Symbol string
	}{msg, m.symbol}); err != nil {
		return "", "", fmt.Errorf("render %s: %w", msg.Type, err)
	}
	return subject, buf.String(), nil
}

// Notify renders and sends msg to the dormer.
func (m *Mailer) Notify(ctx context.Context, msg *amqp.BillingMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := strings.TrimSpace(msg.DormerEmail)
	if to == "" {
		return ErrNoRecipient
	}
	addr, err := mail.ParseAddress(to)
	if err != nil || addr.Address != to {
		return fmt.Errorf("%w: %q", ErrBadRecipient, to)
	}
	subject, body, err := m.Render(msg)
	if err != nil {
		return err
	}

	var raw bytes.Buffer
	fmt.Fprintf(&raw, "From: %s\r\n", m.from)
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	fmt.Fprintf(&raw, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&raw, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	raw.WriteString("MIME-Version: 1.0\r\n")
	raw.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	raw.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	server := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	if err := m.send(server, auth, m.from, []string{to}, raw.Bytes()); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"monitord/internal/models"
)

// Mailer sends a plain-text message.
type Mailer interface {
	Send(ctx context.Context, from string, to []string, subject, body string) error
}

var emailBody = template.Must(template.New("alert").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
}).Parse(`Monitoring alert

{{.Title}}

{{.Message}}

Component:  {{.Component}}
Metric:     {{.MetricName}}
Severity:   {{upper .Severity.String}}
Current:    {{printf "%.2f" .CurrentValue}}
Threshold:  {{printf "%.2f" .ThresholdValue}}
Time:       {{.Timestamp.UTC.Format "2006-01-02 15:04:05 MST"}}
Alert ID:   {{.ID}}
`))

type Email struct {
	From   string
	To     []string
	Mailer Mailer
}

func NewEmail(from string, to []string, m Mailer) *Email {
	return &Email{From: from, To: to, Mailer: m}
}

func (e *Email) Name() models.Channel { return models.ChannelEmail }

func (e *Email) Deliver(ctx context.Context, a models.Alert) error {
	if e.Mailer == nil || len(e.To) == 0 {
		return ErrNotConfigured
	}
	subject, body, err := RenderEmail(a)
	if err != nil {
		return err
	}
	return e.Mailer.Send(ctx, e.From, e.To, subject, body)
}

// RenderEmail builds the subject and body for an alert.
func RenderEmail(a models.Alert) (string, string, error) {
	var buf bytes.Buffer
	if err := emailBody.Execute(&buf, a); err != nil {
		return "", "", fmt.Errorf("render email: %w", err)
	}
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(a.Severity.String()), a.Title)
	return subject, buf.String(), nil
}

// SMTPMailer relays through an SMTP server with optional PLAIN auth.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string

	send func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// smtpTimeout bounds a whole SMTP exchange when ctx carries no deadline.
const smtpTimeout = 10 * time.Second

func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	m := &SMTPMailer{Host: host, Port: port, Username: username, Password: password}
	m.send = m.sendMail
	return m
}

func (m *SMTPMailer) Send(ctx context.Context, from string, to []string, subject, body string) error {
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	if err := m.send(ctx, addr, auth, from, to, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// sendMail is smtp.SendMail with the connection bound to ctx. Every read and
// write shares one deadline, and the connection is closed if ctx ends first.
func (m *SMTPMailer) sendMail(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(smtpTimeout)
	}
	dialer := &net.Dialer{Timeout: smtpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

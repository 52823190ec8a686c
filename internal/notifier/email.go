package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"user-tracker/internal/config"
	"user-tracker/pkg/models"
)

// Sender delivers a composed message to a mail relay
type Sender interface {
	Send(from string, to []string, msg []byte) error
}

// EmailNotifier implements email notifications
type EmailNotifier struct {
	config   *config.Config
	Sender   Sender
	Out      io.Writer
	Hostname func() string
	Now      func() time.Time
}

// NewEmailNotifier creates a new email notifier that sends through the
// configured SMTP relay, or prints to stdout in debug mode.
func NewEmailNotifier(cfg *config.Config) *EmailNotifier {
	return &EmailNotifier{
		config:   cfg,
		Sender:   &SMTPSender{config: cfg},
		Out:      os.Stdout,
		Hostname: FQDN,
		Now:      time.Now,
	}
}

// Notify emails the alert to the configured recipients
func (e *EmailNotifier) Notify(ctx context.Context, alert models.Alert) error {
	if len(alert.Items) == 0 {
		return nil
	}

	body, err := Body(alert)
	if err != nil {
		return fmt.Errorf("error generating email body: %w", err)
	}

	from := alert.SenderName + "@" + e.Hostname()
	msg, err := Compose(from, e.config.Emails, Subject(alert), body, e.Now())
	if err != nil {
		return fmt.Errorf("%w: composing message: %v", models.ErrDelivery, err)
	}

	if e.config.Debug {
		fmt.Fprintf(e.Out, "=== debug email notification ===\nsender: %s\n\nmessage: %s\n", from, msg)
		return nil
	}

	if err := e.Sender.Send(from, e.config.Emails, msg); err != nil {
		slog.Error("Failed to send email", "error", err)
		return fmt.Errorf("%w: failed to send email: %v", models.ErrDelivery, err)
	}
	slog.Info("Email notification sent successfully", "recipients", e.config.Emails)
	return nil
}

// Compose builds an RFC 5322 message with From, To, Subject and Date
// headers followed by a blank line and the plain-text body.
func Compose(from string, to []string, subject, body string, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	rcpts := make([]*mail.Address, 0, len(to))
	for _, addr := range to {
		rcpts = append(rcpts, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", rcpts)
	h.SetSubject(subject)
	h.Set("MIME-Version", "1.0")
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	if err := textproto.WriteHeader(&buf, h.Header.Header); err != nil {
		return nil, err
	}
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// FQDN returns the fully qualified name of the local host, falling back to
// the bare hostname.
func FQDN() string {
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	cname, err := net.LookupCNAME(host)
	if err != nil || cname == "" {
		return host
	}
	return strings.TrimSuffix(cname, ".")
}

// SMTPSender sends mail through the configured relay
type SMTPSender struct {
	config *config.Config
}

// Send sends the email using SMTP
func (s *SMTPSender) Send(from string, to []string, msg []byte) error {
	smtpCfg := s.config.Notifiers.SMTP
	addr := fmt.Sprintf("%s:%d", smtpCfg.Host, smtpCfg.Port)

	// Local relays take mail unauthenticated
	var auth smtp.Auth
	if smtpCfg.User != "" && smtpCfg.Password != "" {
		auth = smtp.PlainAuth("", smtpCfg.User, smtpCfg.Password, smtpCfg.Host)
	}

	if smtpCfg.Port == 465 {
		return s.sendWithTLS(addr, auth, from, to, msg)
	}
	// net/smtp upgrades with STARTTLS when the server offers it
	return smtp.SendMail(addr, auth, from, to, msg)
}

// sendWithTLS sends email over an implicit TLS connection
func (s *SMTPSender) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: s.config.Notifiers.SMTP.Host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Notifiers.SMTP.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return err
		}
	}
	if err = client.Mail(from); err != nil {
		return err
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return err
		}
	}

	writer, err := client.Data()
	if err != nil {
		return err
	}
	if _, err = writer.Write(msg); err != nil {
		return err
	}
	if err = writer.Close(); err != nil {
		return err
	}
	return client.Quit()
}

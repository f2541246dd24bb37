package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/tinoosan/billy/internal/errs"
)

// SMTP sends mail over an implicit-TLS connection (SMTPS, usually port 465).
type SMTP struct {
	Host     string
	Port     int
	Address  string
	Password string
	Timeout  time.Duration
}

func (s SMTP) Send(ctx context.Context, e Email) error {
	if err := e.Validate(); err != nil {
		return err
	}
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}, Config: &tls.Config{ServerName: s.Host}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", errs.ErrDelivery, addr, err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	} else {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}
	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: smtp handshake: %v", errs.ErrDelivery, err)
	}
	defer c.Close()

	if err := c.Auth(smtp.PlainAuth("", s.Address, s.Password, s.Host)); err != nil {
		return fmt.Errorf("%w: smtp auth: %v", errs.ErrDelivery, err)
	}
	if err := c.Mail(s.Address); err != nil {
		return fmt.Errorf("%w: smtp MAIL: %v", errs.ErrDelivery, err)
	}
	for _, rcpt := range e.Recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("%w: smtp RCPT %s: %v", errs.ErrDelivery, rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("%w: smtp DATA: %v", errs.ErrDelivery, err)
	}
	if _, err := w.Write(buildMessage(s.Address, e)); err != nil {
		return fmt.Errorf("%w: smtp write: %v", errs.ErrDelivery, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: smtp close data: %v", errs.ErrDelivery, err)
	}
	return c.Quit()
}

// buildMessage renders headers and a CRLF-normalised plain-text body.
func buildMessage(from string, e Email) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(e.Recipients, ", ") + "\r\n")
	b.WriteString("Subject: " + strings.ReplaceAll(e.Subject, "\n", " ") + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	body := strings.ReplaceAll(e.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// Package notify delivers outbound email, either directly over SMTP or through
// a RabbitMQ queue drained by the worker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/tinoosan/billy/internal/errs"
)

// Email is a plain-text message.
type Email struct {
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Recipients []string  `json:"recipients"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier hands an email to some transport.
type Notifier interface {
	Send(ctx context.Context, e Email) error
}

// Validate checks subject and recipient addresses.
func (e Email) Validate() error {
	if strings.TrimSpace(e.Subject) == "" {
		return fmt.Errorf("%w: subject is required", errs.ErrInvalid)
	}
	if len(e.Recipients) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", errs.ErrInvalid)
	}
	for _, r := range e.Recipients {
		if _, err := mail.ParseAddress(r); err != nil {
			return fmt.Errorf("%w: recipient %q: %v", errs.ErrInvalid, r, err)
		}
	}
	return nil
}

// ToJSON encodes the message for the queue.
func (e Email) ToJSON() ([]byte, error) { return json.Marshal(e) }

// EmailFromJSON decodes a queued message.
func EmailFromJSON(data []byte) (Email, error) {
	var e Email
	if err := json.Unmarshal(data, &e); err != nil {
		return Email{}, err
	}
	return e, nil
}

// Log writes emails to the logger instead of sending them.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Send(ctx context.Context, e Email) error {
	if err := e.Validate(); err != nil {
		return err
	}
	l.Logger.InfoContext(ctx, "email (not sent)", "subject", e.Subject, "recipients", e.Recipients, "body", e.Body)
	return nil
}

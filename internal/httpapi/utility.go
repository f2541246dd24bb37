package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/notify"
)

// POST /v1/utility/email/send hands a message to the configured notifier.
func (s *Server) postEmail(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	recipients := append([]string(nil), req.Recipients...)
	if rcpt := strings.TrimSpace(req.Recipient); rcpt != "" {
		recipients = append(recipients, rcpt)
	}
	e := notify.Email{
		Subject:    req.Subject,
		Body:       req.Body,
		Recipients: recipients,
		Timestamp:  time.Now().UTC(),
	}
	if err := e.Validate(); err != nil {
		s.mapError(w, r, err)
		return
	}
	if err := s.notifier.Send(r.Context(), e); err != nil {
		emailsSent.WithLabelValues("failed").Inc()
		if !errors.Is(err, errs.ErrInvalid) && !errors.Is(err, errs.ErrDelivery) {
			err = fmt.Errorf("%w: %v", errs.ErrDelivery, err)
		}
		s.mapError(w, r, err)
		return
	}
	emailsSent.WithLabelValues("sent").Inc()
	writeOK(w, http.StatusOK, "email sent", nil)
}

package httpapi

import (
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/billy/internal/errs"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// envelope is the body of every Billy route, success or failure.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeOK(w http.ResponseWriter, status int, msg string, data any) {
	toJSON(w, status, envelope{Status: statusSuccess, Message: msg, Data: data})
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, envelope{Status: statusError, Message: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusBadRequest, msg, "bad_request")
}

// mapError writes the envelope for a service error. Unknown errors are logged and
// reported as 500 without leaking their text.
func (s *Server) mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		writeErr(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, errs.ErrInvalid):
		writeErr(w, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, errs.ErrUnauthorized):
		writeErr(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, errs.ErrForbidden):
		writeErr(w, http.StatusForbidden, "account_id does not match token", "forbidden")
	case errors.Is(err, errs.ErrMalformedTimestamp):
		s.log.Error("stored entry has malformed created_at", "req_id", chimw.GetReqID(r.Context()), "err", err)
		writeErr(w, http.StatusInternalServerError, "wallet contains an entry with a malformed created_at", "malformed_timestamp")
	case errors.Is(err, errs.ErrAmountOverflow):
		s.log.Error("wallet totals overflow", "req_id", chimw.GetReqID(r.Context()), "err", err)
		writeErr(w, http.StatusInternalServerError, "wallet totals cannot be computed exactly", "amount_overflow")
	case errors.Is(err, errs.ErrDelivery):
		s.log.Error("email delivery failed", "req_id", chimw.GetReqID(r.Context()), "err", err)
		writeErr(w, http.StatusInternalServerError, "email could not be delivered", "delivery_failed")
	default:
		s.log.Error("unhandled error", "req_id", chimw.GetReqID(r.Context()), "method", r.Method, "path", r.URL.Path, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error", "internal")
	}
}

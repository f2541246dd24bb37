package httpapi

import (
	"context"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/billy/internal/ledger"
	"github.com/tinoosan/billy/internal/service/pay"
)

const idempotencyHeader = "Idempotency-Key"

// validatePostPay parses POST /v1/pay/{in,out}, fixes the flow from the route and
// stores the validated Draft.
func (s *Server) validatePostPay(flow ledger.Flow) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req postPayRequest
			if err := decodeJSON(w, r, &req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			if req.Issued == "" {
				badRequest(w, "issued is required")
				return
			}
			issued, err := decimal.Parse(string(req.Issued))
			if err != nil {
				badRequest(w, "issued must be a decimal number")
				return
			}
			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if len(key) > 128 {
				badRequest(w, "Idempotency-Key must be at most 128 characters")
				return
			}
			d := pay.Draft{
				AccountID:      req.AccountID,
				Wallet:         req.Wallet,
				Flow:           flow,
				Description:    req.Description,
				Issued:         issued,
				CreatedAt:      strings.TrimSpace(req.CreatedAt),
				IdempotencyKey: key,
			}
			if err := s.pay.ValidateDraft(d); err != nil {
				s.mapError(w, r, err)
				return
			}
			if err := authorize(r.Context(), d.AccountID); err != nil {
				s.mapError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostPay, d)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) postPay(w http.ResponseWriter, r *http.Request) {
	d, ok := r.Context().Value(ctxKeyPostPay).(pay.Draft)
	if !ok {
		badRequest(w, "missing validated pay")
		return
	}
	e, replayed, err := s.pay.Record(r.Context(), d)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	if replayed {
		paysRecorded.WithLabelValues(string(d.Flow), "replayed").Inc()
		writeOK(w, http.StatusOK, "pay already recorded", toEntryResponse(e))
		return
	}
	paysRecorded.WithLabelValues(string(d.Flow), "created").Inc()
	writeOK(w, http.StatusCreated, "pay recorded", toEntryResponse(e))
}

// DELETE /v1/pay/{id}?account_id=
func (s *Server) deletePay(w http.ResponseWriter, r *http.Request) {
	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "id must be a uuid")
		return
	}
	accountID, ok := parseAccountID(r)
	if !ok {
		badRequest(w, "account_id must be a uuid")
		return
	}
	if err := authorize(r.Context(), accountID); err != nil {
		s.mapError(w, r, err)
		return
	}
	if err := s.pay.Deactivate(r.Context(), accountID, entryID); err != nil {
		s.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

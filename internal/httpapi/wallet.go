package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tinoosan/billy/internal/errs"
)

func parseAccountID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("account_id")))
	return id, err == nil && id != uuid.Nil
}

// validateWalletQuery parses account_id and wallet for the wallet read routes.
func (s *Server) validateWalletQuery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, ok := parseAccountID(r)
			if !ok {
				badRequest(w, "account_id must be a uuid")
				return
			}
			wallet := strings.TrimSpace(r.URL.Query().Get("wallet"))
			if wallet == "" {
				badRequest(w, "wallet is required")
				return
			}
			if err := authorize(r.Context(), accountID); err != nil {
				s.mapError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyWalletQuery, walletQuery{AccountID: accountID, Wallet: wallet})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GET /v1/wallet/list?account_id=
func (s *Server) listWallets(w http.ResponseWriter, r *http.Request) {
	accountID, ok := parseAccountID(r)
	if !ok {
		badRequest(w, "account_id must be a uuid")
		return
	}
	if err := authorize(r.Context(), accountID); err != nil {
		s.mapError(w, r, err)
		return
	}
	wallets, err := s.accounts.Wallets(r.Context(), accountID)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "success", walletsResponse{AccountID: accountID, Wallets: wallets})
}

// POST /v1/wallet/add
func (s *Server) addWallet(w http.ResponseWriter, r *http.Request) {
	if !requireJSON(w, r) {
		return
	}
	var req addWalletRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.AccountID == uuid.Nil {
		badRequest(w, "account_id is required")
		return
	}
	if err := authorize(r.Context(), req.AccountID); err != nil {
		s.mapError(w, r, err)
		return
	}
	a, err := s.accounts.AddWallet(r.Context(), req.AccountID, req.Name)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "wallet added", walletsResponse{AccountID: a.ID, Wallets: a.Wallets})
}

// GET /v1/wallet/get returns the active entries of a wallet without aggregation.
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	q := r.Context().Value(ctxKeyWalletQuery).(walletQuery)
	name, entries, err := s.pay.Entries(r.Context(), q.AccountID, q.Wallet)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "success", walletEntriesResponse{Wallet: name, Entries: toEntryResponses(entries)})
}

// GET /v1/wallet/get_pay returns the monthly report of a wallet.
func (s *Server) getWalletReport(w http.ResponseWriter, r *http.Request) {
	q := r.Context().Value(ctxKeyWalletQuery).(walletQuery)
	_, report, err := s.pay.Report(r.Context(), q.AccountID, q.Wallet)
	switch {
	case err == nil:
		reportsBuilt.WithLabelValues("ok").Inc()
	case errors.Is(err, errs.ErrNotFound):
		reportsBuilt.WithLabelValues("not_found").Inc()
	case errors.Is(err, errs.ErrMalformedTimestamp):
		reportsBuilt.WithLabelValues("malformed").Inc()
	default:
		reportsBuilt.WithLabelValues("error").Inc()
	}
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "success", toReportResponse(report))
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/billy/internal/meta"
	"github.com/tinoosan/billy/internal/session"
)

// loginLinkTTL bounds how long an emailed login link can be used.
const loginLinkTTL = 15 * time.Minute

// POST /v1/bot/login/token signs the token the bot puts into the login link.
func (s *Server) postBotLoginToken(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		s.mapError(w, r, errors.New("token issuing is not configured"))
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req loginTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	telegramID := strings.TrimSpace(req.TelegramID)
	if !session.ValidTelegramID(telegramID) {
		badRequest(w, "telegram_id must be numeric")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		badRequest(w, "email is required")
		return
	}
	// the account is looked up when the link is opened, like an unsigned link was
	tok, exp, err := s.tokens.IssueLogin(email, telegramID, loginLinkTTL)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeOK(w, http.StatusOK, "success", loginTokenResponse{Token: tok, ExpiresAt: exp.Unix()})
}

// GET /v1/bot/login?email=&telegram_id=&token= binds a Telegram user to the
// account owning email for the configured session TTL. token must come from
// POST /v1/bot/login/token for the same email and telegram_id.
func (s *Server) getBotLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	telegramID := strings.TrimSpace(q.Get("telegram_id"))
	if !session.ValidTelegramID(telegramID) {
		badRequest(w, "telegram_id must be numeric")
		return
	}
	email := strings.TrimSpace(q.Get("email"))
	if email == "" {
		badRequest(w, "email is required")
		return
	}
	token := strings.TrimSpace(q.Get("token"))
	if token == "" {
		writeErr(w, http.StatusUnauthorized, "login link is missing its token", "unauthorized")
		return
	}
	if s.tokens == nil {
		s.mapError(w, r, errors.New("token issuing is not configured"))
		return
	}
	if err := s.tokens.VerifyLogin(token, email, telegramID); err != nil {
		s.log.Info("bot login rejected", "telegram_id", telegramID, "err", err)
		writeErr(w, http.StatusUnauthorized, "login link is invalid or expired", "unauthorized")
		return
	}
	a, err := s.accounts.ByEmail(r.Context(), email)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	fields := meta.Session(a.ID, a.Email)
	if err := s.sessions.Put(r.Context(), session.TelegramKey(telegramID), fields, s.sessionTTL); err != nil {
		s.mapError(w, r, err)
		return
	}
	botLogins.Inc()
	writeOK(w, http.StatusOK, "login success, you can go back to the chat", sessionResponse{
		TelegramID: telegramID,
		Session:    fields,
		ExpiresIn:  int64(s.sessionTTL.Seconds()),
	})
}

// GET /v1/bot/session/{telegram_id}
func (s *Server) getBotSession(w http.ResponseWriter, r *http.Request) {
	telegramID := chi.URLParam(r, "telegram_id")
	if !session.ValidTelegramID(telegramID) {
		badRequest(w, "telegram_id must be numeric")
		return
	}
	fields, err := s.sessions.Get(r.Context(), session.TelegramKey(telegramID))
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "success", sessionResponse{TelegramID: telegramID, Session: fields})
}

// DELETE /v1/bot/session/{telegram_id}
func (s *Server) deleteBotSession(w http.ResponseWriter, r *http.Request) {
	telegramID := chi.URLParam(r, "telegram_id")
	if !session.ValidTelegramID(telegramID) {
		badRequest(w, "telegram_id must be numeric")
		return
	}
	if err := s.sessions.Delete(r.Context(), session.TelegramKey(telegramID)); err != nil {
		s.mapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

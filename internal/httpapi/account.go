package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/tinoosan/billy/internal/auth"
	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/service/account"
)

// validateSignup parses POST /v1/account/signup and stores the SignupInput.
func (s *Server) validateSignup() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requireJSON(w, r) {
				return
			}
			var req signupRequest
			if err := decodeJSON(w, r, &req); err != nil {
				badRequest(w, "invalid JSON: "+err.Error())
				return
			}
			in := account.SignupInput{
				FullName: req.FullName,
				Email:    req.Email,
				Telp:     req.Telp,
				Password: req.Password,
				Pin:      req.Pin,
			}
			if err := s.accounts.ValidateSignup(in); err != nil {
				s.mapError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeySignup, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) postSignup(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeySignup).(account.SignupInput)
	if !ok {
		badRequest(w, "missing validated signup")
		return
	}
	a, err := s.accounts.Signup(r.Context(), in)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "account created", toAccountResponse(a))
}

// postToken exchanges form credentials for a bearer token. The configured service
// credentials yield a service-role token; anything else is checked as an account login.
func (s *Server) postToken(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		s.mapError(w, r, errors.New("token issuing is not configured"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		badRequest(w, "username and password are required")
		return
	}

	var (
		subject string
		role    auth.Role
	)
	if s.isServiceLogin(username, password) {
		subject, role = s.serviceUser, auth.RoleService
	} else {
		a, err := s.accounts.Authenticate(r.Context(), username, password)
		if err != nil {
			if errors.Is(err, errs.ErrUnauthorized) {
				writeErr(w, http.StatusUnauthorized, "incorrect username or password", "unauthorized")
				return
			}
			s.mapError(w, r, err)
			return
		}
		subject, role = a.ID.String(), auth.RoleAccount
	}
	tok, exp, err := s.tokens.Issue(subject, role)
	if err != nil {
		s.mapError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	toJSON(w, http.StatusOK, tokenResponse{AccessToken: tok, TokenType: "bearer", ExpiresAt: exp.Unix()})
}

func (s *Server) isServiceLogin(username, password string) bool {
	if s.serviceUser == "" || s.servicePass == "" {
		return false
	}
	u := subtle.ConstantTimeCompare([]byte(username), []byte(s.serviceUser))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(s.servicePass))
	return u&p == 1
}

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tinoosan/billy/internal/auth"
	"github.com/tinoosan/billy/internal/errs"
)

type ctxKey string

const (
	ctxKeyClaims      ctxKey = "claims"
	ctxKeyPostPay     ctxKey = "validatedPostPay"
	ctxKeyWalletQuery ctxKey = "validatedWalletQuery"
	ctxKeySignup      ctxKey = "validatedSignup"
)

// requestLogger logs basic request info at INFO.
func requestLogger(l *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			reqID := chimw.GetReqID(r.Context())
			l.Info("request started", "req_id", reqID, "method", r.Method, "path", r.URL.Path)

			next.ServeHTTP(ww, r)

			l.Info("request complete",
				"req_id", reqID,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
			)
		})
	}
}

// recoverer logs panics as ERROR and returns 500.
func recoverer(l *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					reqID := chimw.GetReqID(r.Context())
					l.Error("panic", "req_id", reqID, "err", rec, "stack", string(debug.Stack()))
					writeErr(w, http.StatusInternalServerError, "internal error", "internal")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// authenticate enforces Authorization: Bearer <token> and stores the verified claims.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := auth.ParseBearer(r)
		if !ok || s.tokens == nil {
			writeErr(w, http.StatusUnauthorized, "missing bearer token", "unauthorized")
			return
		}
		claims, err := s.tokens.Verify(tok)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "invalid token", "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireService lets only service-role tokens through.
func requireService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := claimsFrom(r.Context())
		if !ok || c.Role != auth.RoleService {
			writeErr(w, http.StatusForbidden, "service token required", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(auth.Claims)
	return c, ok
}

// authorize allows service tokens on any account and account tokens on their own.
func authorize(ctx context.Context, accountID uuid.UUID) error {
	c, ok := claimsFrom(ctx)
	if !ok {
		return errs.ErrUnauthorized
	}
	if c.Role == auth.RoleService {
		return nil
	}
	if c.Role == auth.RoleAccount && c.Subject == accountID.String() {
		return nil
	}
	return errs.ErrForbidden
}

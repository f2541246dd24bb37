// Package httpapi wires the HTTP surface of Billy.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/billy/internal/auth"
	"github.com/tinoosan/billy/internal/ledger"
	"github.com/tinoosan/billy/internal/notify"
	"github.com/tinoosan/billy/internal/service/account"
	"github.com/tinoosan/billy/internal/service/pay"
	"github.com/tinoosan/billy/internal/session"
)

// ReadyChecker is optionally implemented by stores and caches to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Config carries the collaborators of the API.
type Config struct {
	Accounts account.Service
	Pay      pay.Service
	Sessions session.Cache
	Notifier notify.Notifier
	Tokens   *auth.Gateway

	// ServiceUsername and ServicePassword grant service-role tokens to the bot.
	ServiceUsername string
	ServicePassword string
	// SessionTTL is how long a chat login stays valid.
	SessionTTL time.Duration

	// Checks are run by /readyz, keyed by a name reported on failure.
	Checks map[string]ReadyChecker
	Logger *slog.Logger
}

// Server wires handlers and middleware using Chi.
type Server struct {
	accounts account.Service
	pay      pay.Service
	sessions session.Cache
	notifier notify.Notifier
	tokens   *auth.Gateway

	serviceUser string
	servicePass string
	sessionTTL  time.Duration
	checks      map[string]ReadyChecker

	log *slog.Logger
	rt  *chi.Mux
}

const defaultSessionTTL = 24 * time.Hour

// New constructs the HTTP server with routes and middleware.
// The logger is used by request logging and panic recovery.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		accounts:    cfg.Accounts,
		pay:         cfg.Pay,
		sessions:    cfg.Sessions,
		notifier:    cfg.Notifier,
		tokens:      cfg.Tokens,
		serviceUser: cfg.ServiceUsername,
		servicePass: cfg.ServicePassword,
		sessionTTL:  ttl,
		checks:      cfg.Checks,
		log:         logger,
		rt:          r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	// Operational (unversioned, unauthenticated)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())

	s.rt.Route("/v1", func(r chi.Router) {
		r.Get("/dictionary/wallets", s.getWalletsDictionary)
		r.With(s.validateSignup()).Post("/account/signup", s.postSignup)
		r.Post("/account/token", s.postToken)
		// Reached from the login email link.
		r.Get("/bot/login", s.getBotLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/wallet/list", s.listWallets)
			r.Post("/wallet/add", s.addWallet)
			r.With(s.validateWalletQuery()).Get("/wallet/get", s.getWallet)
			r.With(s.validateWalletQuery()).Get("/wallet/get_pay", s.getWalletReport)
			r.With(s.validatePostPay(ledger.FlowIn)).Post("/pay/in", s.postPay)
			r.With(s.validatePostPay(ledger.FlowOut)).Post("/pay/out", s.postPay)
			r.Delete("/pay/{id}", s.deletePay)

			r.Group(func(r chi.Router) {
				r.Use(requireService)
				r.Post("/utility/email/send", s.postEmail)
				r.Post("/bot/login/token", s.postBotLoginToken)
				r.Get("/bot/session/{telegram_id}", s.getBotSession)
				r.Delete("/bot/session/{telegram_id}", s.deleteBotSession)
			})
		})
	})
}

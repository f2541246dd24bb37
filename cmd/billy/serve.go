package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tinoosan/billy/internal/auth"
	"github.com/tinoosan/billy/internal/config"
	"github.com/tinoosan/billy/internal/httpapi"
	"github.com/tinoosan/billy/internal/notify"
	"github.com/tinoosan/billy/internal/service/account"
	"github.com/tinoosan/billy/internal/service/pay"
	"github.com/tinoosan/billy/internal/session"
	"github.com/tinoosan/billy/internal/storage/memory"
	pgstore "github.com/tinoosan/billy/internal/storage/postgres"
)

const sessionSweepInterval = time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

// deps is everything the HTTP server needs plus what has to be released on exit.
type deps struct {
	accounts account.Service
	pays     pay.Service
	sessions session.Cache
	notifier notify.Notifier
	checks   map[string]httpapi.ReadyChecker
	// background jobs started next to the server
	jobs    []func(ctx context.Context) error
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	d := &deps{checks: map[string]httpapi.ReadyChecker{}}
	defer d.close()

	if err := openStorage(ctx, cfg, logger, d); err != nil {
		return err
	}
	if err := openSessions(ctx, cfg, logger, d); err != nil {
		return err
	}
	if err := openNotifier(cfg, logger, d); err != nil {
		return err
	}
	if cfg.DevSeed {
		if err := devSeed(ctx, d.accounts, d.pays, logger); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	h := httpapi.New(httpapi.Config{
		Accounts:        d.accounts,
		Pay:             d.pays,
		Sessions:        d.sessions,
		Notifier:        d.notifier,
		Tokens:          auth.NewGateway(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL),
		ServiceUsername: cfg.APIAuthUsername,
		ServicePassword: cfg.APIAuthPassword,
		SessionTTL:      cfg.SessionTTL,
		Checks:          d.checks,
		Logger:          logger,
	}).Handler()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("billy api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
		return nil
	})
	for _, job := range d.jobs {
		job := job
		g.Go(func() error { return job(gctx) })
	}
	err := g.Wait()
	logger.Info("billy api stopped")
	return err
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger, d *deps) error {
	if cfg.DatabaseURL == "" {
		store := memory.New()
		d.accounts = account.New(store, store)
		d.pays = pay.New(store, store)
		logger.Info("storage backend: memory")
		return nil
	}
	version, err := pgstore.Migrate(cfg.DatabaseURL, pgstore.Up)
	if err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	d.closers = append(d.closers, pg.Close)
	d.checks["postgres"] = pg
	d.accounts = account.New(pg, pg)
	d.pays = pay.New(pg, pg)
	logger.Info("storage backend: postgres", "schema_version", version)
	return nil
}

func openSessions(ctx context.Context, cfg *config.Config, logger *slog.Logger, d *deps) error {
	if cfg.RedisAddr == "" {
		mem := session.NewMemory()
		d.sessions = mem
		d.jobs = append(d.jobs, func(ctx context.Context) error {
			t := time.NewTicker(sessionSweepInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-t.C:
					if n := mem.CleanExpired(); n > 0 {
						logger.Debug("expired sessions removed", "count", n)
					}
				}
			}
		})
		logger.Info("session cache: memory")
		return nil
	}
	rdb, err := session.OpenRedis(ctx, session.RedisOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUser,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	d.closers = append(d.closers, func() { _ = rdb.Close() })
	d.checks["redis"] = rdb
	d.sessions = rdb
	logger.Info("session cache: redis", "addr", cfg.RedisAddr)
	return nil
}

func openNotifier(cfg *config.Config, logger *slog.Logger, d *deps) error {
	switch {
	case cfg.AMQPURL != "":
		q, err := notify.OpenQueue(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		d.closers = append(d.closers, func() { _ = q.Close() })
		d.checks["amqp"] = q
		d.notifier = q
		logger.Info("email delivery: queue", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	case cfg.EmailSMTP != "":
		d.notifier = smtpFromConfig(cfg)
		logger.Info("email delivery: smtp", "host", cfg.EmailSMTP)
	default:
		d.notifier = notify.Log{Logger: logger}
		logger.Warn("email delivery: log only, set AMQP_URL or EMAIL_SMTP to send mail")
	}
	return nil
}

func smtpFromConfig(cfg *config.Config) notify.SMTP {
	return notify.SMTP{
		Host:     cfg.EmailSMTP,
		Port:     cfg.EmailPort,
		Address:  cfg.EmailAddress,
		Password: cfg.EmailPassword,
		Timeout:  15 * time.Second,
	}
}

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/tinoosan/billy/internal/notify"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued emails over SMTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateWorker(); err != nil {
				return err
			}
			q, err := notify.OpenQueue(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer q.Close()

			logger.Info("billy worker starting", "queue", cfg.AMQPQueue, "smtp", cfg.EmailSMTP)
			err = q.Consume(cmd.Context(), smtpFromConfig(cfg))
			if errors.Is(err, context.Canceled) {
				logger.Info("billy worker stopped")
				return nil
			}
			return err
		},
	}
}

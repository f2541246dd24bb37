package main

import (
	"github.com/spf13/cobra"

	"github.com/tinoosan/billy/internal/bot"
)

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot against a Billy API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateBot(); err != nil {
				return err
			}
			client := bot.NewClient(cfg.APIEndpoint, cfg.APIAuthUsername, cfg.APIAuthPassword)
			opts := bot.Options{
				Username:           cfg.BotUsername,
				APIEndpoint:        cfg.APIEndpoint,
				APILoginEndpoint:   cfg.APILoginEndpoint,
				SignupPageEndpoint: cfg.SignupPageEndpoint,
				Currency:           cfg.DisplayCurrency,
			}
			tg, err := bot.NewTelegram(cfg.BotToken, logger)
			if err != nil {
				return err
			}
			// the handle Telegram reports wins over BOT_USERNAME
			if u := tg.Username(); u != "" {
				opts.Username = u
			}
			logger.Info("billy bot starting", "api", cfg.APIEndpoint, "username", opts.Username)
			return tg.Run(cmd.Context(), bot.NewDispatcher(client, opts, logger))
		},
	}
}

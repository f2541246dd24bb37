package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/govalues/decimal"

	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/ledger"
	"github.com/tinoosan/billy/internal/service/account"
	"github.com/tinoosan/billy/internal/service/pay"
)

const (
	seedEmail    = "demo@billy.local"
	seedPassword = "password123"
)

var seedEntries = []struct {
	key         string
	wallet      string
	flow        ledger.Flow
	description string
	issued      string
	createdAt   string
}{
	{"seed-1", "daily_needs", ledger.FlowIn, "April salary share", "800000", "2025-04-25T08:00:00"},
	{"seed-2", "daily_needs", ledger.FlowIn, "May salary share", "800000", "2025-05-25T08:00:00"},
	{"seed-3", "daily_needs", ledger.FlowOut, "Groceries", "21400", "2025-05-26T18:10:00"},
	{"seed-4", "savings", ledger.FlowIn, "Monthly saving", "250000", "2025-05-25T08:05:00"},
}

// devSeed creates a demo account with a few entries. Running it again reuses
// the account and replays the same idempotency keys.
func devSeed(ctx context.Context, accounts account.Service, pays pay.Service, logger *slog.Logger) error {
	a, err := accounts.Signup(ctx, account.SignupInput{
		FullName: "Demo User",
		Email:    seedEmail,
		Password: seedPassword,
		Pin:      "1234",
	})
	if errors.Is(err, errs.ErrConflict) {
		a, err = accounts.ByEmail(ctx, seedEmail)
	}
	if err != nil {
		return fmt.Errorf("seed account: %w", err)
	}
	for _, e := range seedEntries {
		_, _, err := pays.Record(ctx, pay.Draft{
			AccountID:      a.ID,
			Wallet:         e.wallet,
			Flow:           e.flow,
			Description:    e.description,
			Issued:         decimal.MustParse(e.issued),
			CreatedAt:      e.createdAt,
			IdempotencyKey: e.key,
		})
		if err != nil {
			return fmt.Errorf("seed entry %s: %w", e.key, err)
		}
	}
	logger.Info("DEV seed", "account_id", a.ID.String(), "email", a.Email, "entries", len(seedEntries))
	printDevSeedBanner(a)
	return nil
}

// printDevSeedBanner prints the demo credentials for easy copy/paste
func printDevSeedBanner(a ledger.Account) {
	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	key := color.New(color.FgYellow).SprintFunc()
	fmt.Println(title("==================== DEV SEED ===================="))
	fmt.Printf("%s %s\n", key("account_id:"), a.ID.String())
	fmt.Printf("%s %s\n", key("email:     "), a.Email)
	fmt.Printf("%s %s\n", key("password:  "), seedPassword)
	fmt.Printf("%s %v\n", key("wallets:   "), a.Wallets)
	fmt.Println(title("=================================================="))
}

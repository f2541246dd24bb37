// Package bot answers chat commands by calling the Billy HTTP API with a
// service token. The Telegram transport lives in telegram.go; everything else
// is transport independent.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/billy/internal/errs"
)

// Message is an incoming chat message.
type Message struct {
	ChatID    int64
	UserID    int64
	ChatType  string // private, group, supergroup or channel
	Text      string
	FirstName string
}

// Session is the account a chat user is logged in as.
type Session struct {
	AccountID uuid.UUID
	Email     string
}

// Month is one month of a wallet report as the bot shows it.
type Month struct {
	Year         int
	Month        time.Month
	Budget       decimal.Decimal
	In           decimal.Decimal
	Out          decimal.Decimal
	ReadyToSpend decimal.Decimal
}

// API is the part of the Billy API the bot uses. Missing sessions, accounts and
// wallets are reported as errs.ErrNotFound.
type API interface {
	// LoginToken returns the signed token that makes a login link valid for
	// this email and chat only.
	LoginToken(ctx context.Context, email, telegramID string) (string, error)
	SendEmail(ctx context.Context, subject, body, recipient string) error
	Session(ctx context.Context, telegramID string) (Session, error)
	Logout(ctx context.Context, telegramID string) error
	Wallets(ctx context.Context, accountID uuid.UUID) ([]string, error)
	Report(ctx context.Context, accountID uuid.UUID, wallet string) ([]Month, error)
}

// Options configures the texts the dispatcher produces.
type Options struct {
	// Username is the bot's handle without the leading @.
	Username           string
	APIEndpoint        string
	APILoginEndpoint   string
	SignupPageEndpoint string
	Currency           string
}

// Dispatcher turns messages into replies.
type Dispatcher struct {
	api  API
	opts Options
	log  *slog.Logger
}

func NewDispatcher(api API, opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Username = strings.TrimPrefix(opts.Username, "@")
	return &Dispatcher{api: api, opts: opts, log: logger}
}

const helpText = "Available commands:\n" +
	"/start - Start the bot\n" +
	"/help - Show this help message\n" +
	"/login <email> - Get a login link by email\n" +
	"/logout - Forget your login\n" +
	"/wallets - List your wallets\n" +
	"/wallet <name> - Monthly report of a wallet"

const notLoggedIn = "You are not logged in. Send /login <email> first."

// Handle returns the reply for m. ok is false when the message should be ignored,
// such as group chatter that does not mention the bot.
func (d *Dispatcher) Handle(ctx context.Context, m Message) (reply string, ok bool) {
	text := strings.TrimSpace(m.Text)
	if isGroup(m.ChatType) {
		mention := "@" + d.opts.Username
		if d.opts.Username == "" || !strings.Contains(text, mention) {
			return "", false
		}
		text = strings.TrimSpace(strings.ReplaceAll(text, mention, ""))
	}
	if text == "" {
		return "", false
	}
	cmd, arg := parseCommand(text)
	telegramID := strconv.FormatInt(m.UserID, 10)

	switch cmd {
	case "":
		return "I only understand commands. Send /help to see them.", true
	case "start":
		name := m.FirstName
		if name == "" {
			name = "there"
		}
		return fmt.Sprintf("Hello %s! Welcome to Billy. Use /help to see available commands.", name), true
	case "help":
		return helpText, true
	case "login":
		return d.login(ctx, telegramID, arg), true
	case "logout":
		if err := d.api.Logout(ctx, telegramID); err != nil {
			d.log.Error("logout failed", "telegram_id", telegramID, "err", err)
			return "Sorry, something went wrong. Please try again later.", true
		}
		return "You are logged out.", true
	case "wallets":
		return d.wallets(ctx, telegramID), true
	case "wallet":
		return d.wallet(ctx, telegramID, arg), true
	default:
		return "Unknown command. Send /help to see what I can do.", true
	}
}

func (d *Dispatcher) login(ctx context.Context, telegramID, email string) string {
	addr, err := mail.ParseAddress(email)
	if email == "" || err != nil {
		return "Usage: /login <email>"
	}
	token, err := d.api.LoginToken(ctx, addr.Address, telegramID)
	if err != nil {
		d.log.Error("login token failed", "telegram_id", telegramID, "err", err)
		return "Sorry, I could not send the login email right now. Please try again later."
	}
	body := LoginEmail(d.opts, addr.Address, telegramID, token)
	if err := d.api.SendEmail(ctx, LoginSubject, body, addr.Address); err != nil {
		d.log.Error("login email failed", "telegram_id", telegramID, "err", err)
		return "Sorry, I could not send the login email right now. Please try again later."
	}
	return fmt.Sprintf("I sent a login link to %s. Open it, then come back and send /wallets.", addr.Address)
}

func (d *Dispatcher) session(ctx context.Context, telegramID string) (Session, string, bool) {
	s, err := d.api.Session(ctx, telegramID)
	if errors.Is(err, errs.ErrNotFound) {
		return Session{}, notLoggedIn, false
	}
	if err != nil {
		d.log.Error("session lookup failed", "telegram_id", telegramID, "err", err)
		return Session{}, "Sorry, something went wrong. Please try again later.", false
	}
	return s, "", true
}

func (d *Dispatcher) wallets(ctx context.Context, telegramID string) string {
	s, reply, ok := d.session(ctx, telegramID)
	if !ok {
		return reply
	}
	wallets, err := d.api.Wallets(ctx, s.AccountID)
	if err != nil {
		d.log.Error("wallet list failed", "account_id", s.AccountID, "err", err)
		return "Sorry, I could not load your wallets."
	}
	if len(wallets) == 0 {
		return "You have no wallets yet."
	}
	var b strings.Builder
	b.WriteString("Your wallets:\n")
	for _, w := range wallets {
		b.WriteString("- " + w + "\n")
	}
	b.WriteString("Send /wallet <name> for a monthly report.")
	return b.String()
}

func (d *Dispatcher) wallet(ctx context.Context, telegramID, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "Usage: /wallet <name>"
	}
	s, reply, ok := d.session(ctx, telegramID)
	if !ok {
		return reply
	}
	months, err := d.api.Report(ctx, s.AccountID, name)
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Sprintf("Wallet %s not found. Send /wallets to see yours.", name)
	}
	if err != nil {
		d.log.Error("wallet report failed", "account_id", s.AccountID, "wallet", name, "err", err)
		return "Sorry, I could not build that report."
	}
	if len(months) == 0 {
		return fmt.Sprintf("No entries in %s yet.", name)
	}
	return FormatReport(name, months, d.opts.Currency)
}

func isGroup(chatType string) bool { return chatType == "group" || chatType == "supergroup" }

// parseCommand splits "/cmd@bot arg text" into ("cmd", "arg text").
// Text that is not a command yields an empty cmd.
func parseCommand(text string) (cmd, arg string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	head, rest, _ := strings.Cut(text, " ")
	head = strings.TrimPrefix(head, "/")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}

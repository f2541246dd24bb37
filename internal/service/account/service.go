// Package account implements account rules: signup with hashed credentials,
// unique email, a curated starting set of wallets and credential checks.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tinoosan/billy/internal/dictionary"
	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/ledger"
	"github.com/tinoosan/billy/internal/slug"
)

type Repo interface {
	AccountByID(ctx context.Context, id uuid.UUID) (ledger.Account, error)
	AccountByEmail(ctx context.Context, email string) (ledger.Account, error)
}

type Writer interface {
	CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error)
	UpdateWallets(ctx context.Context, id uuid.UUID, wallets []string) error
}

// SignupInput carries the plain-text credentials; they are hashed before storage.
type SignupInput struct {
	FullName string
	Email    string
	Telp     string
	Password string
	Pin      string
}

type Service interface {
	ValidateSignup(in SignupInput) error
	Signup(ctx context.Context, in SignupInput) (ledger.Account, error)
	Authenticate(ctx context.Context, email, password string) (ledger.Account, error)
	Get(ctx context.Context, id uuid.UUID) (ledger.Account, error)
	ByEmail(ctx context.Context, email string) (ledger.Account, error)
	Wallets(ctx context.Context, id uuid.UUID) ([]string, error)
	AddWallet(ctx context.Context, id uuid.UUID, name string) (ledger.Account, error)
}

type service struct {
	repo     Repo
	writer   Writer
	hashCost int
	now      func() time.Time
}

type Option func(*service)

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option { return func(s *service) { s.hashCost = cost } }

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

func New(repo Repo, writer Writer, opts ...Option) Service {
	s := &service{repo: repo, writer: writer, hashCost: bcrypt.DefaultCost, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit
	maxWallets     = 20
)

func (s *service) ValidateSignup(in SignupInput) error {
	if strings.TrimSpace(in.FullName) == "" {
		return invalid("full_name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(in.Email)); err != nil || !strings.Contains(in.Email, "@") {
		return invalid("email is invalid")
	}
	if in.Telp != "" && !isPhone(in.Telp) {
		return invalid("telp must contain digits only, optionally prefixed with +")
	}
	if len(in.Password) < minPasswordLen || len(in.Password) > maxPasswordLen {
		return invalid(fmt.Sprintf("password must be %d to %d characters", minPasswordLen, maxPasswordLen))
	}
	if len(in.Pin) < 4 || len(in.Pin) > 6 || !allDigits(in.Pin) {
		return invalid("pin must be 4 to 6 digits")
	}
	return nil
}

func (s *service) Signup(ctx context.Context, in SignupInput) (ledger.Account, error) {
	if err := s.ValidateSignup(in); err != nil {
		return ledger.Account{}, err
	}
	email := ledger.NormalizeEmail(in.Email)
	if _, err := s.repo.AccountByEmail(ctx, email); err == nil {
		return ledger.Account{}, fmt.Errorf("%w: email already registered", errs.ErrConflict)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return ledger.Account{}, err
	}
	pw, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("hash password: %w", err)
	}
	pin, err := bcrypt.GenerateFromPassword([]byte(in.Pin), s.hashCost)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("hash pin: %w", err)
	}
	a := ledger.Account{
		ID:           uuid.New(),
		FullName:     strings.TrimSpace(in.FullName),
		Email:        email,
		Telp:         strings.TrimSpace(in.Telp),
		PasswordHash: string(pw),
		PinHash:      string(pin),
		Wallets:      dictionary.DefaultWalletCodes(),
		CreatedAt:    s.now().UTC(),
	}
	return s.writer.CreateAccount(ctx, a)
}

// Authenticate checks an email/password pair. Unknown email and wrong password
// are indistinguishable to the caller.
func (s *service) Authenticate(ctx context.Context, email, password string) (ledger.Account, error) {
	a, err := s.repo.AccountByEmail(ctx, ledger.NormalizeEmail(email))
	if errors.Is(err, errs.ErrNotFound) {
		return ledger.Account{}, errs.ErrUnauthorized
	}
	if err != nil {
		return ledger.Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return ledger.Account{}, errs.ErrUnauthorized
	}
	return a, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	if id == uuid.Nil {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.AccountByID(ctx, id)
}

func (s *service) ByEmail(ctx context.Context, email string) (ledger.Account, error) {
	email = ledger.NormalizeEmail(email)
	if email == "" {
		return ledger.Account{}, errs.ErrInvalid
	}
	return s.repo.AccountByEmail(ctx, email)
}

func (s *service) Wallets(ctx context.Context, id uuid.UUID) ([]string, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.Wallets, nil
}

// AddWallet slugifies name and appends it to the account's wallets.
func (s *service) AddWallet(ctx context.Context, id uuid.UUID, name string) (ledger.Account, error) {
	code := slug.Slugify(name)
	if !slug.IsSlug(code) {
		return ledger.Account{}, invalid("wallet name must produce 2 to 40 of [a-z0-9_]")
	}
	a, err := s.Get(ctx, id)
	if err != nil {
		return ledger.Account{}, err
	}
	for _, w := range a.Wallets {
		if w == code {
			return ledger.Account{}, fmt.Errorf("%w: wallet %q already exists", errs.ErrConflict, code)
		}
	}
	if len(a.Wallets) >= maxWallets {
		return ledger.Account{}, invalid(fmt.Sprintf("an account may hold at most %d wallets", maxWallets))
	}
	wallets := append(append([]string(nil), a.Wallets...), code)
	if err := s.writer.UpdateWallets(ctx, id, wallets); err != nil {
		return ledger.Account{}, err
	}
	a.Wallets = wallets
	return a, nil
}

func invalid(msg string) error { return fmt.Errorf("%w: %s", errs.ErrInvalid, msg) }

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isPhone(s string) bool {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	return len(s) >= 6 && len(s) <= 15 && allDigits(s)
}

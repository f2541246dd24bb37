// Package pay records money moving in and out of wallets and builds the
// monthly wallet report.
package pay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/ledger"
	"github.com/tinoosan/billy/internal/rollup"
)

// Repo defines read operations needed by the service.
type Repo interface {
	WalletsFor(ctx context.Context, accountID uuid.UUID) ([]string, error)
	ActiveEntries(ctx context.Context, accountID uuid.UUID, wallet string) ([]ledger.Entry, error)
	EntryByID(ctx context.Context, accountID, entryID uuid.UUID) (ledger.Entry, error)
	EntryByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (ledger.Entry, bool, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error)
	DeactivateEntry(ctx context.Context, accountID, entryID uuid.UUID) error
	// SaveIdempotencyKey binds key to entryID unless it is already bound, and
	// returns the entry the key ends up bound to.
	SaveIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string, entryID uuid.UUID) (uuid.UUID, error)
}

// Draft is a not-yet-recorded entry. CreatedAt may be empty to mean "now".
type Draft struct {
	AccountID      uuid.UUID
	Wallet         string
	Flow           ledger.Flow
	Description    string
	Issued         decimal.Decimal
	CreatedAt      string
	IdempotencyKey string
}

type Service interface {
	ValidateDraft(d Draft) error
	// Record stores a draft. The bool is true when an earlier entry with the same
	// idempotency key was returned instead of creating a new one.
	Record(ctx context.Context, d Draft) (ledger.Entry, bool, error)
	Entries(ctx context.Context, accountID uuid.UUID, wallet string) (string, []ledger.Entry, error)
	Report(ctx context.Context, accountID uuid.UUID, wallet string) (string, rollup.Report, error)
	Deactivate(ctx context.Context, accountID, entryID uuid.UUID) error
}

type service struct {
	repo   Repo
	writer Writer
	now    func() time.Time
}

type Option func(*service)

// WithClock sets the clock used for entries recorded without created_at.
func WithClock(now func() time.Time) Option { return func(s *service) { s.now = now } }

func New(repo Repo, writer Writer, opts ...Option) Service {
	s := &service{repo: repo, writer: writer, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

const maxDescriptionLen = 500

func (s *service) ValidateDraft(d Draft) error {
	if d.AccountID == uuid.Nil {
		return fmt.Errorf("%w: account_id is required", errs.ErrInvalid)
	}
	if strings.TrimSpace(d.Wallet) == "" {
		return fmt.Errorf("%w: wallet is required", errs.ErrInvalid)
	}
	if !d.Flow.Valid() {
		return fmt.Errorf("%w: flow must be IN or OUT", errs.ErrInvalid)
	}
	if err := ledger.CheckIssued(d.Issued); err != nil {
		return err
	}
	if len(d.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", errs.ErrInvalid, maxDescriptionLen)
	}
	if d.CreatedAt != "" {
		if _, err := ledger.ParseTimestamp(d.CreatedAt); err != nil {
			return fmt.Errorf("%w: created_at must be an ISO-8601 date or date-time", errs.ErrInvalid)
		}
	}
	return nil
}

func (s *service) Record(ctx context.Context, d Draft) (ledger.Entry, bool, error) {
	if err := s.ValidateDraft(d); err != nil {
		return ledger.Entry{}, false, err
	}
	wallet, err := s.lookup(ctx, d.AccountID, d.Wallet)
	if err != nil {
		return ledger.Entry{}, false, err
	}
	if d.IdempotencyKey != "" {
		prev, ok, err := s.repo.EntryByIdempotencyKey(ctx, d.AccountID, d.IdempotencyKey)
		if err != nil {
			return ledger.Entry{}, false, err
		}
		if ok {
			return replay(prev, d, wallet)
		}
	}
	createdAt := ledger.FormatTimestamp(s.now())
	if d.CreatedAt != "" {
		if createdAt, err = ledger.NormalizeTimestamp(d.CreatedAt); err != nil {
			return ledger.Entry{}, false, err
		}
	}
	e, err := s.writer.CreateEntry(ctx, ledger.Entry{
		ID:          uuid.New(),
		AccountID:   d.AccountID,
		Wallet:      wallet,
		Flow:        d.Flow,
		Description: strings.TrimSpace(d.Description),
		Issued:      d.Issued.Trim(ledger.MaxIssuedScale),
		CreatedAt:   createdAt,
		Active:      true,
	})
	if err != nil {
		return ledger.Entry{}, false, err
	}
	if d.IdempotencyKey == "" {
		return e, false, nil
	}
	owner, err := s.writer.SaveIdempotencyKey(ctx, d.AccountID, d.IdempotencyKey, e.ID)
	if err != nil {
		return ledger.Entry{}, false, err
	}
	if owner == e.ID {
		return e, false, nil
	}
	// a concurrent request claimed the key first; keep its entry only
	if err := s.writer.DeactivateEntry(ctx, d.AccountID, e.ID); err != nil {
		return ledger.Entry{}, false, fmt.Errorf("drop duplicate entry %s: %w", e.ID, err)
	}
	prev, err := s.repo.EntryByID(ctx, d.AccountID, owner)
	if err != nil {
		return ledger.Entry{}, false, err
	}
	return replay(prev, d, wallet)
}

// replay returns prev for a repeated idempotency key, or ErrConflict when the
// key was first used for a different movement.
func replay(prev ledger.Entry, d Draft, wallet string) (ledger.Entry, bool, error) {
	if prev.Flow != d.Flow || prev.Wallet != wallet || prev.Issued.Cmp(d.Issued) != 0 {
		return ledger.Entry{}, false, fmt.Errorf("%w: idempotency key %q was used for a different entry", errs.ErrConflict, d.IdempotencyKey)
	}
	return prev, true, nil
}

// Entries returns the active entries of a wallet as stored, without aggregation.
func (s *service) Entries(ctx context.Context, accountID uuid.UUID, wallet string) (string, []ledger.Entry, error) {
	name, err := s.lookup(ctx, accountID, wallet)
	if err != nil {
		return "", nil, err
	}
	entries, err := s.repo.ActiveEntries(ctx, accountID, name)
	if err != nil {
		return "", nil, err
	}
	return name, entries, nil
}

// Report resolves the wallet, loads its active entries and rolls them up by month.
// A stored created_at that cannot be parsed yields errs.ErrMalformedTimestamp.
func (s *service) Report(ctx context.Context, accountID uuid.UUID, wallet string) (string, rollup.Report, error) {
	name, entries, err := s.Entries(ctx, accountID, wallet)
	if err != nil {
		return "", nil, err
	}
	report, err := rollup.Aggregate(entries)
	if err != nil {
		return "", nil, fmt.Errorf("wallet %s: %w", name, err)
	}
	return name, report, nil
}

func (s *service) Deactivate(ctx context.Context, accountID, entryID uuid.UUID) error {
	if accountID == uuid.Nil || entryID == uuid.Nil {
		return errs.ErrInvalid
	}
	return s.writer.DeactivateEntry(ctx, accountID, entryID)
}

// lookup maps an unknown account or an unknown wallet to errs.ErrNotFound.
func (s *service) lookup(ctx context.Context, accountID uuid.UUID, wallet string) (string, error) {
	if accountID == uuid.Nil {
		return "", errs.ErrInvalid
	}
	wallets, err := s.repo.WalletsFor(ctx, accountID)
	if err != nil {
		return "", err
	}
	name, ok := rollup.LookupWallet(wallets, wallet)
	if !ok {
		return "", fmt.Errorf("%w: wallet %q", errs.ErrNotFound, ledger.NormalizeWallet(wallet))
	}
	return name, nil
}

// Package postgres provides a pgx-backed implementation of the account and
// ledger stores. The schema lives in the embedded migrations (see Migrate).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/ledger"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// --- Accounts ---

const accountColumns = `id, full_name, email, telp, password_hash, pin_hash, wallets, created_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	err := row.Scan(&a.ID, &a.FullName, &a.Email, &a.Telp, &a.PasswordHash, &a.PinHash, &a.Wallets, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	a.Email = ledger.NormalizeEmail(a.Email)
	if a.Wallets == nil {
		a.Wallets = []string{}
	}
	_, err := s.pool.Exec(ctx, `
        insert into accounts (`+accountColumns+`)
        values ($1,$2,$3,$4,$5,$6,$7,$8)
    `, a.ID, a.FullName, a.Email, a.Telp, a.PasswordHash, a.PinHash, a.Wallets, a.CreatedAt)
	if pgCode(err) == pgUniqueViolation {
		return ledger.Account{}, fmt.Errorf("%w: email already registered", errs.ErrConflict)
	}
	if err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

func (s *Store) AccountByID(ctx context.Context, id uuid.UUID) (ledger.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `select `+accountColumns+` from accounts where id = $1`, id))
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (ledger.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `select `+accountColumns+` from accounts where email = $1`, ledger.NormalizeEmail(email)))
}

func (s *Store) WalletsFor(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	var wallets []string
	err := s.pool.QueryRow(ctx, `select wallets from accounts where id = $1`, accountID).Scan(&wallets)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return wallets, nil
}

func (s *Store) UpdateWallets(ctx context.Context, id uuid.UUID, wallets []string) error {
	ct, err := s.pool.Exec(ctx, `update accounts set wallets = $1 where id = $2`, wallets, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Entries ---

const entryColumns = `id, account_id, wallet, flow, description, issued::text, created_at, active`

func scanEntry(row pgx.Row) (ledger.Entry, error) {
	var (
		e       ledger.Entry
		flow    string
		issued  string
		created time.Time
	)
	if err := row.Scan(&e.ID, &e.AccountID, &e.Wallet, &flow, &e.Description, &issued, &created, &e.Active); err != nil {
		return ledger.Entry{}, err
	}
	amt, err := decimal.Parse(issued)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("entry %s issued %q: %w", e.ID, issued, err)
	}
	e.Flow = ledger.Flow(flow)
	e.Issued = amt
	e.CreatedAt = ledger.FormatTimestamp(created)
	return e, nil
}

// CreateEntry inserts e. Amounts that numeric(19,4) would round are rejected
// before the insert so the returned entry matches the stored row.
func (s *Store) CreateEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	if err := ledger.CheckIssued(e.Issued); err != nil {
		return ledger.Entry{}, err
	}
	_, err := s.pool.Exec(ctx, `
        insert into pays (id, account_id, wallet, flow, description, issued, created_at, active)
        values ($1,$2,$3,$4,$5,$6::numeric,$7::timestamp,$8)
    `, e.ID, e.AccountID, ledger.NormalizeWallet(e.Wallet), string(e.Flow), e.Description, e.Issued.String(), e.CreatedAt, e.Active)
	switch pgCode(err) {
	case "":
	case pgForeignKeyViolation:
		return ledger.Entry{}, errs.ErrNotFound
	case pgUniqueViolation:
		return ledger.Entry{}, fmt.Errorf("%w: entry id exists", errs.ErrConflict)
	}
	if err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

// ActiveEntries returns a wallet's active entries ordered by created_at, then insertion.
func (s *Store) ActiveEntries(ctx context.Context, accountID uuid.UUID, wallet string) ([]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx, `
        select `+entryColumns+`
        from pays
        where account_id = $1 and wallet = $2 and active
        order by created_at asc, seq asc
    `, accountID, ledger.NormalizeWallet(wallet))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) EntryByID(ctx context.Context, accountID, entryID uuid.UUID) (ledger.Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, `select `+entryColumns+` from pays where id = $1 and account_id = $2`, entryID, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, errs.ErrNotFound
	}
	return e, err
}

func (s *Store) DeactivateEntry(ctx context.Context, accountID, entryID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `update pays set active = false where id = $1 and account_id = $2 and active`, entryID, accountID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// --- Idempotency ---

func (s *Store) EntryByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (ledger.Entry, bool, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, `
        select p.id, p.account_id, p.wallet, p.flow, p.description, p.issued::text, p.created_at, p.active
        from pay_idempotency k
        join pays p on p.id = k.pay_id
        where k.account_id = $1 and k.key = $2
    `, accountID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, err
	}
	return e, true, nil
}

// SaveIdempotencyKey binds key to entryID. When another entry already holds
// the key, its id is returned and the binding is left untouched.
func (s *Store) SaveIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string, entryID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := s.pool.QueryRow(ctx, `
        insert into pay_idempotency (account_id, key, pay_id) values ($1,$2,$3)
        on conflict (account_id, key) do nothing
        returning pay_id
    `, accountID, key, entryID).Scan(&owner)
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}
	err = s.pool.QueryRow(ctx, `
        select pay_id from pay_idempotency where account_id = $1 and key = $2
    `, accountID, key).Scan(&owner)
	if err != nil {
		return uuid.Nil, fmt.Errorf("read idempotency key %q: %w", key, err)
	}
	return owner, nil
}

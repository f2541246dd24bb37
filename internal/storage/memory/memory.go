package memory

// Package memory provides an in-memory store used for development and tests.
import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/ledger"
)

// entryKey orders a wallet's entries by (CreatedAt, insertion sequence).
// CreatedAt is canonical, so string order matches time order.
type entryKey struct {
	CreatedAt string
	Seq       uint64
	ID        uuid.UUID
}

type walletKey struct {
	AccountID uuid.UUID
	Wallet    string
}

// Store is an in-memory implementation of the account and ledger stores.
// It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu       sync.RWMutex
	seq      uint64
	accounts map[uuid.UUID]ledger.Account
	byEmail  map[string]uuid.UUID
	entries  map[uuid.UUID]*ledger.Entry
	// Per-wallet sorted index for ordered scans
	entryKeys map[walletKey][]entryKey
	// Idempotency: accountID -> key -> entryID
	entryIdem map[uuid.UUID]map[string]uuid.UUID
}

func New() *Store {
	s := &Store{}
	s.Reset()
	return s
}

func (s *Store) Reset() {
	s.mu.Lock()
	s.seq = 0
	s.accounts = map[uuid.UUID]ledger.Account{}
	s.byEmail = map[string]uuid.UUID{}
	s.entries = map[uuid.UUID]*ledger.Entry{}
	s.entryKeys = map[walletKey][]entryKey{}
	s.entryIdem = map[uuid.UUID]map[string]uuid.UUID{}
	s.mu.Unlock()
}

// SeedEntry stores e verbatim, including a CreatedAt the services would reject.
func (s *Store) SeedEntry(e ledger.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putEntryLocked(e)
}

// --- Accounts ---

func (s *Store) CreateAccount(_ context.Context, a ledger.Account) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := ledger.NormalizeEmail(a.Email)
	if _, ok := s.byEmail[email]; ok {
		return ledger.Account{}, fmt.Errorf("%w: email already registered", errs.ErrConflict)
	}
	if _, ok := s.accounts[a.ID]; ok {
		return ledger.Account{}, fmt.Errorf("%w: account id exists", errs.ErrConflict)
	}
	a.Email = email
	a.Wallets = append([]string(nil), a.Wallets...)
	s.accounts[a.ID] = a
	s.byEmail[email] = a.ID
	return a, nil
}

func (s *Store) AccountByID(_ context.Context, id uuid.UUID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	a.Wallets = append([]string(nil), a.Wallets...)
	return a, nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (ledger.Account, error) {
	s.mu.RLock()
	id, ok := s.byEmail[ledger.NormalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return ledger.Account{}, errs.ErrNotFound
	}
	return s.AccountByID(ctx, id)
}

func (s *Store) WalletsFor(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	a, err := s.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return a.Wallets, nil
}

func (s *Store) UpdateWallets(_ context.Context, id uuid.UUID, wallets []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return errs.ErrNotFound
	}
	a.Wallets = append([]string(nil), wallets...)
	s.accounts[id] = a
	return nil
}

// --- Entries ---

func (s *Store) CreateEntry(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	if err := ledger.CheckIssued(e.Issued); err != nil {
		return ledger.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[e.AccountID]; !ok {
		return ledger.Entry{}, errs.ErrNotFound
	}
	if _, ok := s.entries[e.ID]; ok {
		return ledger.Entry{}, fmt.Errorf("%w: entry id exists", errs.ErrConflict)
	}
	s.putEntryLocked(e)
	return e, nil
}

// ActiveEntries returns a wallet's active entries ordered by created_at.
func (s *Store) ActiveEntries(_ context.Context, accountID uuid.UUID, wallet string) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, errs.ErrNotFound
	}
	keys := s.entryKeys[walletKey{AccountID: accountID, Wallet: ledger.NormalizeWallet(wallet)}]
	out := make([]ledger.Entry, 0, len(keys))
	for _, k := range keys {
		if e, ok := s.entries[k.ID]; ok && e.Active {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *Store) EntryByID(_ context.Context, accountID, entryID uuid.UUID) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryID]
	if !ok || e.AccountID != accountID {
		return ledger.Entry{}, errs.ErrNotFound
	}
	return *e, nil
}

// DeactivateEntry soft-deletes an active entry. Deactivating twice is NotFound.
func (s *Store) DeactivateEntry(_ context.Context, accountID, entryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.AccountID != accountID || !e.Active {
		return errs.ErrNotFound
	}
	e.Active = false
	return nil
}

// --- Idempotency ---

func (s *Store) EntryByIdempotencyKey(_ context.Context, accountID uuid.UUID, key string) (ledger.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if eid, ok := s.entryIdem[accountID][key]; ok {
		if e, ok := s.entries[eid]; ok {
			return *e, true, nil
		}
	}
	return ledger.Entry{}, false, nil
}

func (s *Store) SaveIdempotencyKey(_ context.Context, accountID uuid.UUID, key string, entryID uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.entryIdem[accountID]
	if !ok {
		m = make(map[string]uuid.UUID)
		s.entryIdem[accountID] = m
	}
	// first writer wins
	if owner, exists := m[key]; exists {
		return owner, nil
	}
	m[key] = entryID
	return entryID, nil
}

// putEntryLocked stores e and inserts it into its wallet index.
// Caller must hold s.mu (write lock).
func (s *Store) putEntryLocked(e ledger.Entry) {
	s.seq++
	cp := e
	s.entries[e.ID] = &cp
	wk := walletKey{AccountID: e.AccountID, Wallet: ledger.NormalizeWallet(e.Wallet)}
	k := entryKey{CreatedAt: e.CreatedAt, Seq: s.seq, ID: e.ID}
	keys := s.entryKeys[wk]
	// first position that sorts after k; equal timestamps keep insertion order
	i := sort.Search(len(keys), func(i int) bool {
		if keys[i].CreatedAt != k.CreatedAt {
			return keys[i].CreatedAt > k.CreatedAt
		}
		return keys[i].Seq > k.Seq
	})
	keys = append(keys, entryKey{})
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	s.entryKeys[wk] = keys
}

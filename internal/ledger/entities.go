package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/billy/internal/errs"
)

// Flow is the direction of money on a wallet.
type Flow string

const (
	// FlowIn adds money to a wallet.
	FlowIn Flow = "IN"
	// FlowOut takes money out of a wallet.
	FlowOut Flow = "OUT"
)

// Valid reports whether f is one of the known flows.
func (f Flow) Valid() bool { return f == FlowIn || f == FlowOut }

// ParseFlow accepts "in"/"out" in any case.
func ParseFlow(s string) (Flow, bool) {
	f := Flow(strings.ToUpper(strings.TrimSpace(s)))
	return f, f.Valid()
}

// Entry is a single money movement on one of an account's wallets.
// CreatedAt is kept as the naive wall-clock string it was recorded with.
type Entry struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Wallet      string
	Flow        Flow
	Description string
	Issued      decimal.Decimal
	CreatedAt   string
	Active      bool
}

// MaxIssuedScale is the number of decimal places an amount may carry. Together
// with maxIssued it matches the numeric(19,4) column amounts are stored in.
const MaxIssuedScale = 4

var maxIssued = decimal.MustParse("999999999999999.9999")

// CheckIssued rejects negative amounts, amounts with more than MaxIssuedScale
// decimal places and amounts of 10^15 or more. Trailing zeros do not count.
func CheckIssued(d decimal.Decimal) error {
	switch {
	case d.IsNeg():
		return fmt.Errorf("%w: issued must not be negative", errs.ErrInvalid)
	case d.Trim(0).Scale() > MaxIssuedScale:
		return fmt.Errorf("%w: issued must have at most %d decimal places", errs.ErrInvalid, MaxIssuedScale)
	case d.Cmp(maxIssued) > 0:
		return fmt.Errorf("%w: issued must be below 1000000000000000", errs.ErrInvalid)
	}
	return nil
}

// Account owns a fixed set of named wallets.
type Account struct {
	ID           uuid.UUID
	FullName     string
	Email        string
	Telp         string
	PasswordHash string
	PinHash      string
	Wallets      []string
	CreatedAt    time.Time
}

// NormalizeWallet lowercases a wallet name. Wallet names are case-insensitive.
func NormalizeWallet(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

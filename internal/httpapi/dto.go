package httpapi

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/billy/internal/ledger"
	"github.com/tinoosan/billy/internal/rollup"
)

type signupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Telp     string `json:"telp"`
	Password string `json:"password"`
	Pin      string `json:"pin"`
}

type accountResponse struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Telp      string    `json:"telp"`
	Wallets   []string  `json:"wallets"`
	CreatedAt time.Time `json:"created_at"`
}

// tokenResponse follows the OAuth2 password-grant shape, not the envelope.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

type addWalletRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
}

// postPayRequest accepts issued as a JSON number or a numeric string.
type postPayRequest struct {
	AccountID   uuid.UUID   `json:"account_id"`
	Wallet      string      `json:"wallet"`
	Description string      `json:"description"`
	Issued      json.Number `json:"issued"`
	CreatedAt   string      `json:"created_at,omitempty"`
}

// walletQuery holds validated query params for the wallet read routes.
type walletQuery struct {
	AccountID uuid.UUID
	Wallet    string
}

type emailRequest struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipient  string   `json:"recipient,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
}

type walletsResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Wallets   []string  `json:"wallets"`
}

type entryResponse struct {
	ID          uuid.UUID   `json:"id"`
	AccountID   uuid.UUID   `json:"account_id"`
	Wallet      string      `json:"wallet"`
	Flow        ledger.Flow `json:"flow"`
	Description string      `json:"description"`
	Issued      string      `json:"issued"`
	CreatedAt   string      `json:"created_at"`
	Active      bool        `json:"active"`
}

type walletEntriesResponse struct {
	Wallet  string          `json:"wallet"`
	Entries []entryResponse `json:"entries"`
}

type flowResponse struct {
	Entries []entryResponse `json:"entries"`
	Total   string          `json:"total"`
}

type bucketResponse struct {
	Budget       string       `json:"budget"`
	In           flowResponse `json:"in"`
	Out          flowResponse `json:"out"`
	ReadyToSpend string       `json:"ready_to_spend"`
}

// reportResponse is keyed by year, then month number, both as strings.
type reportResponse map[string]map[string]bucketResponse

type loginTokenRequest struct {
	Email      string `json:"email"`
	TelegramID string `json:"telegram_id"`
}

type loginTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type sessionResponse struct {
	TelegramID string            `json:"telegram_id"`
	Session    map[string]string `json:"session"`
	ExpiresIn  int64             `json:"expires_in,omitempty"`
}

// amount renders d without trailing fractional zeros.
func amount(d decimal.Decimal) string { return d.Trim(0).String() }

func toAccountResponse(a ledger.Account) accountResponse {
	wallets := a.Wallets
	if wallets == nil {
		wallets = []string{}
	}
	return accountResponse{
		ID:        a.ID,
		FullName:  a.FullName,
		Email:     a.Email,
		Telp:      a.Telp,
		Wallets:   wallets,
		CreatedAt: a.CreatedAt,
	}
}

func toEntryResponse(e ledger.Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Wallet:      e.Wallet,
		Flow:        e.Flow,
		Description: e.Description,
		Issued:      amount(e.Issued),
		CreatedAt:   e.CreatedAt,
		Active:      e.Active,
	}
}

func toEntryResponses(entries []ledger.Entry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return out
}

func toReportResponse(r rollup.Report) reportResponse {
	out := make(reportResponse, len(r))
	for _, b := range r.Buckets() {
		year := strconv.Itoa(b.Year)
		if out[year] == nil {
			out[year] = map[string]bucketResponse{}
		}
		out[year][strconv.Itoa(int(b.Month))] = bucketResponse{
			Budget:       amount(b.Budget),
			In:           flowResponse{Entries: toEntryResponses(b.In), Total: amount(b.InTotal)},
			Out:          flowResponse{Entries: toEntryResponses(b.Out), Total: amount(b.OutTotal)},
			ReadyToSpend: amount(b.ReadyToSpend),
		}
	}
	return out
}

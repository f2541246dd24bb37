package dictionary

// WalletDef describes a curated wallet offered to every new account.
type WalletDef struct {
	Code    string `json:"code"`
	Label   string `json:"label"`
	Purpose string `json:"purpose"`
}

var curated = []WalletDef{
	{Code: "freedom_fund", Label: "Freedom Fund", Purpose: "Long-term money that is never spent"},
	{Code: "savings", Label: "Savings", Purpose: "Short and mid-term goals"},
	{Code: "business", Label: "Business", Purpose: "Money reinvested in side projects"},
	{Code: "charity", Label: "Charity", Purpose: "Giving"},
	{Code: "daily_needs", Label: "Daily Needs", Purpose: "Groceries, bills and everyday spending"},
}

// Wallets returns the curated wallet definitions in display order.
func Wallets() []WalletDef {
	out := make([]WalletDef, len(curated))
	copy(out, curated)
	return out
}

// DefaultWalletCodes lists the wallet names a new account starts with.
func DefaultWalletCodes() []string {
	out := make([]string, 0, len(curated))
	for _, w := range curated {
		out = append(out, w.Code)
	}
	return out
}

// IsCurated reports whether code is one of the curated wallets.
func IsCurated(code string) bool {
	for _, w := range curated {
		if w.Code == code {
			return true
		}
	}
	return false
}

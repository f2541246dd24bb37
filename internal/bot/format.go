package bot

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/govalues/decimal"
	"github.com/govalues/money"
)

const LoginSubject = "Login to Billy Telegram"

// LoginEmail renders the body of the login email for a chat user. token is
// the signed login token from the API.
func LoginEmail(o Options, email, telegramID, token string) string {
	q := url.Values{"email": {email}, "telegram_id": {telegramID}, "token": {token}}
	login := o.APIEndpoint + o.APILoginEndpoint + "?" + q.Encode()
	signup := o.APIEndpoint + o.SignupPageEndpoint
	return "Welcome to Billy Telegram!\n\n" +
		"To complete the login process, open the link below:\n" +
		login + "\n\n" +
		"If the page says \"account not found\", register first:\n" +
		signup + "\n\n" +
		"If you received this email by mistake, please ignore it.\n"
}

// FormatReport renders months oldest first, one block per month.
func FormatReport(wallet string, months []Month, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Wallet %s\n", wallet)
	for _, m := range months {
		fmt.Fprintf(&b, "\n%d-%02d\n", m.Year, int(m.Month))
		fmt.Fprintf(&b, "  budget:         %s\n", FormatAmount(m.Budget, currency))
		fmt.Fprintf(&b, "  in:             %s\n", FormatAmount(m.In, currency))
		fmt.Fprintf(&b, "  out:            %s\n", FormatAmount(m.Out, currency))
		fmt.Fprintf(&b, "  ready to spend: %s\n", FormatAmount(m.ReadyToSpend, currency))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatAmount renders d in currency with thousands separators, e.g. "IDR 1,578,600.00".
// An unknown currency falls back to the plain decimal.
func FormatAmount(d decimal.Decimal, currency string) string {
	a, err := money.ParseAmount(currency, d.String())
	if err != nil {
		return groupThousands(d.Trim(0).String())
	}
	a = a.RoundToCurr()
	return a.Curr().Code() + " " + groupThousands(a.Decimal().String())
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}

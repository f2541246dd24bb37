// Package auth issues and verifies the HS256 bearer tokens used by the API.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tinoosan/billy/internal/errs"
)

// Role separates end users from trusted internal callers such as the chat bot.
type Role string

const (
	// RoleAccount tokens act only on their own account.
	RoleAccount Role = "account"
	// RoleService tokens may act on any account.
	RoleService Role = "service"
	// RoleLogin tokens only authorize binding one chat to one account through
	// the emailed login link. They are never accepted as bearer tokens.
	RoleLogin Role = "login"
)

type Claims struct {
	Issuer    string `json:"iss,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Audience  any    `json:"aud,omitempty"` // string or []string
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Role      Role   `json:"role,omitempty"`

	// TelegramID is set on login tokens only.
	TelegramID string `json:"tg,omitempty"`
}

// Gateway signs and checks tokens with a shared secret.
type Gateway struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewGateway returns a Gateway. Empty issuer or audience disables that check.
func NewGateway(secret, issuer, audience string, ttl time.Duration) *Gateway {
	return &Gateway{secret: []byte(secret), issuer: issuer, audience: audience, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

var header = base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

// Issue signs a token for subject with the given role. It returns the token and its expiry.
func (g *Gateway) Issue(subject string, role Role) (string, time.Time, error) {
	return g.issue(Claims{Subject: subject, Role: role}, g.ttl)
}

// IssueLogin signs a short-lived token that lets the login link bind
// telegramID to the account owning email.
func (g *Gateway) IssueLogin(email, telegramID string, ttl time.Duration) (string, time.Time, error) {
	return g.issue(Claims{Subject: strings.ToLower(strings.TrimSpace(email)), Role: RoleLogin, TelegramID: telegramID}, ttl)
}

func (g *Gateway) issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	if len(g.secret) == 0 {
		return "", time.Time{}, errors.New("auth: empty secret")
	}
	now := g.now()
	exp := now.Add(ttl)
	claims.Issuer = g.issuer
	claims.ExpiresAt = exp.Unix()
	claims.NotBefore = now.Unix()
	claims.IssuedAt = now.Unix()
	if g.audience != "" {
		claims.Audience = g.audience
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	signing := header + "." + base64.RawURLEncoding.EncodeToString(payload)
	return signing + "." + base64.RawURLEncoding.EncodeToString(g.sign(signing)), exp, nil
}

func (g *Gateway) sign(s string) []byte {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(s))
	return mac.Sum(nil)
}

// Verify checks signature, time window, issuer and audience of a bearer token.
// Every failure wraps errs.ErrUnauthorized.
func (g *Gateway) Verify(token string) (Claims, error) {
	claims, err := g.parse(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Role != RoleAccount && claims.Role != RoleService {
		return Claims{}, unauthorized("unknown role")
	}
	return claims, nil
}

// VerifyLogin checks a token from IssueLogin against the email and chat id
// carried next to it in the login link.
func (g *Gateway) VerifyLogin(token, email, telegramID string) error {
	claims, err := g.parse(token)
	if err != nil {
		return err
	}
	if claims.Role != RoleLogin {
		return unauthorized("not a login token")
	}
	if !strings.EqualFold(claims.Subject, strings.TrimSpace(email)) || claims.TelegramID != telegramID {
		return unauthorized("login token does not match request")
	}
	return nil
}

func (g *Gateway) parse(token string) (Claims, error) {
	var empty Claims
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return empty, unauthorized("invalid token format")
	}
	headerB, err := base64URLDecode(parts[0])
	if err != nil {
		return empty, unauthorized("bad header b64")
	}
	payloadB, err := base64URLDecode(parts[1])
	if err != nil {
		return empty, unauthorized("bad payload b64")
	}
	sigB, err := base64URLDecode(parts[2])
	if err != nil {
		return empty, unauthorized("bad signature b64")
	}

	var hdr struct{ Alg, Typ string }
	if err := json.Unmarshal(headerB, &hdr); err != nil {
		return empty, unauthorized("bad header json")
	}
	if !strings.EqualFold(hdr.Alg, "HS256") {
		return empty, unauthorized("unsupported alg")
	}
	if !hmac.Equal(sigB, g.sign(parts[0]+"."+parts[1])) {
		return empty, unauthorized("invalid signature")
	}

	var claims Claims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return empty, unauthorized("bad claims json")
	}
	now := g.now().Unix()
	if claims.NotBefore != 0 && now < claims.NotBefore {
		return empty, unauthorized("token not yet valid")
	}
	if claims.ExpiresAt != 0 && now >= claims.ExpiresAt {
		return empty, unauthorized("token expired")
	}
	if g.issuer != "" && !strings.EqualFold(claims.Issuer, g.issuer) {
		return empty, unauthorized("issuer mismatch")
	}
	if g.audience != "" && !audContains(claims.Audience, g.audience) {
		return empty, unauthorized("audience mismatch")
	}
	return claims, nil
}

func unauthorized(reason string) error { return fmt.Errorf("%w: %s", errs.ErrUnauthorized, reason) }

// ParseBearer extracts the token from an Authorization header.
func ParseBearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[len("Bearer "):])
	return tok, tok != ""
}

func base64URLDecode(s string) ([]byte, error) {
	// JWT uses base64url without padding
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(s)
}

func audContains(aud any, expected string) bool {
	switch v := aud.(type) {
	case string:
		return strings.EqualFold(v, expected)
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok && strings.EqualFold(s, expected) {
				return true
			}
		}
	}
	return false
}

package auth

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tinoosan/billy/internal/errs"
)

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	g := NewGateway("s3cret", "billy", "billy-api", time.Hour).WithClock(func() time.Time { return now })

	tok, exp, err := g.Issue("acc-1", RoleAccount)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", exp)
	}
	claims, err := g.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "acc-1" || claims.Role != RoleAccount || claims.Issuer != "billy" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerify_Rejects(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	g := NewGateway("s3cret", "billy", "", time.Hour).WithClock(func() time.Time { return clock })
	tok, _, _ := g.Issue("svc", RoleService)

	other := NewGateway("different", "billy", "", time.Hour).WithClock(func() time.Time { return clock })
	if _, err := other.Verify(tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected signature failure, got %v", err)
	}

	otherIss := NewGateway("s3cret", "someone-else", "", time.Hour).WithClock(func() time.Time { return clock })
	if _, err := otherIss.Verify(tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected issuer failure, got %v", err)
	}

	withAud := NewGateway("s3cret", "billy", "billy-api", time.Hour).WithClock(func() time.Time { return clock })
	if _, err := withAud.Verify(tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected audience failure, got %v", err)
	}

	if _, err := g.Verify("not.a.jwt"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected format failure, got %v", err)
	}
	parts := strings.Split(tok, ".")
	if _, err := g.Verify(parts[0] + "." + parts[1] + "x." + parts[2]); err == nil {
		t.Fatalf("expected tampered payload to fail")
	}

	clock = now.Add(2 * time.Hour)
	if _, err := g.Verify(tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected expiry failure, got %v", err)
	}
}

func TestLoginToken(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	g := NewGateway("s3cret", "billy", "", time.Hour).WithClock(func() time.Time { return clock })

	tok, exp, err := g.IssueLogin(" Alfian@Example.com", "42", 15*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", exp)
	}
	if err := g.VerifyLogin(tok, "alfian@example.com", "42"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := g.VerifyLogin(tok, "alfian@example.com", "43"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("other chat id should be rejected, got %v", err)
	}
	if err := g.VerifyLogin(tok, "mallory@example.com", "42"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("other email should be rejected, got %v", err)
	}
	if _, err := g.Verify(tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("login token must not work as a bearer token, got %v", err)
	}
	bearer, _, _ := g.Issue("alfian@example.com", RoleService)
	if err := g.VerifyLogin(bearer, "alfian@example.com", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("bearer token must not work as a login token, got %v", err)
	}

	clock = now.Add(16 * time.Minute)
	if err := g.VerifyLogin(tok, "alfian@example.com", "42"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected expiry failure, got %v", err)
	}
}

func TestParseBearer(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if _, ok := ParseBearer(r); ok {
		t.Fatalf("expected no token")
	}
	r.Header.Set("Authorization", "bearer abc")
	if tok, ok := ParseBearer(r); !ok || tok != "abc" {
		t.Fatalf("got %q %v", tok, ok)
	}
	r.Header.Set("Authorization", "Basic abc")
	if _, ok := ParseBearer(r); ok {
		t.Fatalf("basic auth must not parse as bearer")
	}
}

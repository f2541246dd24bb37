package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/tinoosan/billy/internal/auth"
	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/ledger"
	"github.com/tinoosan/billy/internal/notify"
	"github.com/tinoosan/billy/internal/service/account"
	"github.com/tinoosan/billy/internal/service/pay"
	"github.com/tinoosan/billy/internal/session"
	"github.com/tinoosan/billy/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Email
	err  error
}

func (c *captureNotifier) Send(_ context.Context, e notify.Email) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, e)
	return nil
}

type failingCheck struct{}

func (failingCheck) Ready(context.Context) error { return errors.New("down") }

type fixture struct {
	h        http.Handler
	store    *memory.Store
	sessions *session.Memory
	mail     *captureNotifier
	tokens   *auth.Gateway
	acct     ledger.Account
	token    string
	service  string
}

type envResp struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

const (
	svcUser = "billy-bot"
	svcPass = "bot-secret"
)

func setup(t *testing.T, checks map[string]ReadyChecker) *fixture {
	t.Helper()
	store := memory.New()
	accounts := account.New(store, store, account.WithHashCost(bcrypt.MinCost))
	clock := func() time.Time { return time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC) }
	pays := pay.New(store, store, pay.WithClock(clock))
	sessions := session.NewMemory()
	mail := &captureNotifier{}
	tokens := auth.NewGateway("test-secret", "billy", "", time.Hour)

	a, err := accounts.Signup(context.Background(), account.SignupInput{
		FullName: "Alfian", Email: "alfian@example.com", Password: "password123", Pin: "1234",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	tok, _, err := tokens.Issue(a.ID.String(), auth.RoleAccount)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	svc, _, err := tokens.Issue(svcUser, auth.RoleService)
	if err != nil {
		t.Fatalf("issue service: %v", err)
	}
	h := New(Config{
		Accounts:        accounts,
		Pay:             pays,
		Sessions:        sessions,
		Notifier:        mail,
		Tokens:          tokens,
		ServiceUsername: svcUser,
		ServicePassword: svcPass,
		SessionTTL:      time.Hour,
		Checks:          checks,
		Logger:          testLogger(),
	}).Handler()
	return &fixture{h: h, store: store, sessions: sessions, mail: mail, tokens: tokens, acct: a, token: tok, service: svc}
}

func (f *fixture) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decodeEnv(t *testing.T, rec *httptest.ResponseRecorder) envResp {
	t.Helper()
	var env envResp
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func (f *fixture) pay(t *testing.T, flow, wallet, issued, createdAt string) entryResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/pay/"+flow, f.token, map[string]any{
		"account_id": f.acct.ID.String(), "wallet": wallet, "description": flow, "issued": issued, "created_at": createdAt,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("pay %s expected 201, got %d: %s", flow, rec.Code, rec.Body.String())
	}
	var e entryResponse
	if err := json.Unmarshal(decodeEnv(t, rec).Data, &e); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	return e
}

func TestSignup_CreatedAndDuplicate(t *testing.T) {
	f := setup(t, nil)
	body := map[string]any{"full_name": "Budi", "email": "Budi@Example.com", "telp": "+62812345678", "password": "password123", "pin": "4321"}
	rec := f.do(t, http.MethodPost, "/v1/account/signup", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a accountResponse
	if err := json.Unmarshal(decodeEnv(t, rec).Data, &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Email != "budi@example.com" || len(a.Wallets) != 5 {
		t.Fatalf("unexpected account: %+v", a)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("response leaks credentials: %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/v1/account/signup", "", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	body["pin"] = "12"
	body["email"] = "other@example.com"
	rec = f.do(t, http.MethodPost, "/v1/account/signup", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func postForm(f *fixture, username, password string) *httptest.ResponseRecorder {
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/v1/account/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func TestToken_AccountAndService(t *testing.T) {
	f := setup(t, nil)

	rec := postForm(f, "ALFIAN@example.com", "password123")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tr tokenResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &tr)
	claims, err := f.tokens.Verify(tr.AccessToken)
	if err != nil || claims.Role != auth.RoleAccount || claims.Subject != f.acct.ID.String() || tr.TokenType != "bearer" {
		t.Fatalf("unexpected account token: %+v %v", claims, err)
	}

	rec = postForm(f, svcUser, svcPass)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &tr)
	claims, err = f.tokens.Verify(tr.AccessToken)
	if err != nil || claims.Role != auth.RoleService {
		t.Fatalf("unexpected service token: %+v %v", claims, err)
	}

	if rec := postForm(f, "alfian@example.com", "wrong-password"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := postForm(f, "nobody@example.com", "password123"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", rec.Code)
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	f := setup(t, nil)
	target := "/v1/wallet/list?account_id=" + f.acct.ID.String()
	if rec := f.do(t, http.MethodGet, target, "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, target, "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodGet, target, f.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var wr walletsResponse
	_ = json.Unmarshal(decodeEnv(t, rec).Data, &wr)
	if len(wr.Wallets) != 5 || wr.Wallets[0] != "freedom_fund" {
		t.Fatalf("unexpected wallets: %+v", wr)
	}
}

func TestAccountToken_CannotTouchOtherAccount(t *testing.T) {
	f := setup(t, nil)
	other := uuid.New()
	rec := f.do(t, http.MethodGet, "/v1/wallet/get_pay?account_id="+other.String()+"&wallet=savings", f.token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	// service tokens may act on any account; the unknown one is simply not found
	rec = f.do(t, http.MethodGet, "/v1/wallet/get_pay?account_id="+other.String()+"&wallet=savings", f.service, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetPay_MonthlyCarryForward(t *testing.T) {
	f := setup(t, nil)
	f.pay(t, "in", "Daily_Needs", "800000", "2025-04-01T09:00:00")
	f.pay(t, "in", "daily_needs", "800000", "2025-05-07T09:00:00")
	f.pay(t, "out", "daily_needs", "21400", "2025-05-01T12:00:00+07:00")

	rec := f.do(t, http.MethodGet, "/v1/wallet/get_pay?account_id="+f.acct.ID.String()+"&wallet=DAILY_NEEDS", f.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnv(t, rec)
	if env.Status != "success" {
		t.Fatalf("unexpected status %q", env.Status)
	}
	var report reportResponse
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	apr := report["2025"]["4"]
	if apr.Budget != "0" || apr.In.Total != "800000" || apr.Out.Total != "0" || apr.ReadyToSpend != "800000" {
		t.Fatalf("unexpected april: %+v", apr)
	}
	may := report["2025"]["5"]
	if may.Budget != "800000" || may.In.Total != "800000" || may.Out.Total != "21400" || may.ReadyToSpend != "1578600" {
		t.Fatalf("unexpected may: %+v", may)
	}
	if len(may.In.Entries) != 1 || len(may.Out.Entries) != 1 {
		t.Fatalf("unexpected may entries: %+v", may)
	}
	if may.Out.Entries[0].CreatedAt != "2025-05-01T12:00:00" {
		t.Fatalf("offset should be dropped, got %q", may.Out.Entries[0].CreatedAt)
	}
}

func TestGetPay_EmptyWalletIsSuccess(t *testing.T) {
	f := setup(t, nil)
	rec := f.do(t, http.MethodGet, "/v1/wallet/get_pay?account_id="+f.acct.ID.String()+"&wallet=charity", f.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := string(decodeEnv(t, rec).Data); got != "{}" {
		t.Fatalf("expected empty report, got %s", got)
	}
}

func TestWalletRoutes_UnknownWallet(t *testing.T) {
	f := setup(t, nil)
	for _, path := range []string{"/v1/wallet/get", "/v1/wallet/get_pay"} {
		rec := f.do(t, http.MethodGet, path+"?account_id="+f.acct.ID.String()+"&wallet=yacht", f.token, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
		env := decodeEnv(t, rec)
		if env.Status != "error" || env.Code != "not_found" {
			t.Fatalf("%s: unexpected envelope %+v", path, env)
		}
	}
	if rec := f.do(t, http.MethodGet, "/v1/wallet/get_pay?account_id=nope&wallet=savings", f.token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad account_id, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/wallet/get_pay?account_id="+f.acct.ID.String(), f.token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing wallet, got %d", rec.Code)
	}
}

func TestGetPay_MalformedStoredTimestamp(t *testing.T) {
	f := setup(t, nil)
	f.pay(t, "in", "savings", "10", "2025-04-01")
	f.store.SeedEntry(ledger.Entry{
		ID: uuid.New(), AccountID: f.acct.ID, Wallet: "savings", Flow: ledger.FlowIn,
		Issued: decimal.MustParse("5"), CreatedAt: "31/05/2025", Active: true,
	})

	rec := f.do(t, http.MethodGet, "/v1/wallet/get_pay?account_id="+f.acct.ID.String()+"&wallet=savings", f.token, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if env := decodeEnv(t, rec); env.Code != "malformed_timestamp" || len(env.Data) != 0 {
		t.Fatalf("unexpected envelope %+v", env)
	}
	// raw listing does not parse timestamps
	rec = f.do(t, http.MethodGet, "/v1/wallet/get?account_id="+f.acct.ID.String()+"&wallet=savings", f.token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from raw listing, got %d", rec.Code)
	}
}

func TestPostPay_ValidationAndIdempotency(t *testing.T) {
	f := setup(t, nil)
	base := map[string]any{"account_id": f.acct.ID.String(), "wallet": "savings", "description": "salary", "issued": 1500.25}

	cases := []struct {
		name  string
		patch map[string]any
	}{
		{"negative", map[string]any{"issued": "-1"}},
		{"more than four decimals", map[string]any{"issued": "0.000000000001"}},
		{"too large", map[string]any{"issued": "1000000000000000"}},
		{"not a number", map[string]any{"issued": "ten"}},
		{"bad created_at", map[string]any{"created_at": "yesterday"}},
		{"unknown field", map[string]any{"flow": "IN"}},
	}
	for _, tc := range cases {
		body := map[string]any{}
		for k, v := range base {
			body[k] = v
		}
		for k, v := range tc.patch {
			body[k] = v
		}
		if rec := f.do(t, http.MethodPost, "/v1/pay/in", f.token, body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", tc.name, rec.Code, rec.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/pay/in", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rec.Code)
	}

	send := func() *httptest.ResponseRecorder {
		b, _ := json.Marshal(base)
		req := httptest.NewRequest(http.MethodPost, "/v1/pay/in", bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+f.token)
		req.Header.Set("Idempotency-Key", "salary-2025-06")
		rec := httptest.NewRecorder()
		f.h.ServeHTTP(rec, req)
		return rec
	}
	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	second := send()
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", second.Code)
	}
	var e1, e2 entryResponse
	_ = json.Unmarshal(decodeEnv(t, first).Data, &e1)
	_ = json.Unmarshal(decodeEnv(t, second).Data, &e2)
	if e1.ID != e2.ID || e1.Issued != "1500.25" || e1.CreatedAt != "2025-06-02T09:30:00" {
		t.Fatalf("unexpected entries: %+v %+v", e1, e2)
	}

	b, _ := json.Marshal(base)
	req = httptest.NewRequest(http.MethodPost, "/v1/pay/out", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Idempotency-Key", "salary-2025-06")
	rec = httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("key reused for another flow: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	entries, _ := f.store.ActiveEntries(context.Background(), f.acct.ID, "savings")
	if len(entries) != 1 {
		t.Fatalf("expected one stored entry, got %d", len(entries))
	}
}

func TestDeletePay_SoftDeletes(t *testing.T) {
	f := setup(t, nil)
	keep := f.pay(t, "in", "business", "100", "2025-03-01")
	drop := f.pay(t, "out", "business", "40", "2025-03-02")

	target := "/v1/pay/" + drop.ID.String() + "?account_id=" + f.acct.ID.String()
	if rec := f.do(t, http.MethodDelete, target, f.token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, target, f.token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/v1/wallet/get?account_id="+f.acct.ID.String()+"&wallet=business", f.token, nil)
	var we walletEntriesResponse
	_ = json.Unmarshal(decodeEnv(t, rec).Data, &we)
	if len(we.Entries) != 1 || we.Entries[0].ID != keep.ID {
		t.Fatalf("unexpected entries after delete: %+v", we.Entries)
	}
}

func TestAddWallet(t *testing.T) {
	f := setup(t, nil)
	body := map[string]any{"account_id": f.acct.ID.String(), "name": "Holiday Trip"}
	rec := f.do(t, http.MethodPost, "/v1/wallet/add", f.token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodPost, "/v1/wallet/add", f.token, body); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	f.pay(t, "in", "holiday_trip", "5", "2025-01-01")
}

func (f *fixture) loginToken(t *testing.T, email, telegramID string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/v1/bot/login/token", f.service, map[string]any{"email": email, "telegram_id": telegramID})
	if rec.Code != http.StatusOK {
		t.Fatalf("login token: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var lt loginTokenResponse
	if err := json.Unmarshal(decodeEnv(t, rec).Data, &lt); err != nil || lt.Token == "" {
		t.Fatalf("decode login token: %v", err)
	}
	return lt.Token
}

func TestBotLogin_RequiresSignedLink(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	if rec := f.do(t, http.MethodGet, "/v1/bot/login?email=alfian@example.com&telegram_id=42", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bare link: expected 401, got %d", rec.Code)
	}
	tok := f.loginToken(t, "alfian@example.com", "99")
	if rec := f.do(t, http.MethodGet, "/v1/bot/login?email=alfian@example.com&telegram_id=42&token="+tok, "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("token for another chat: expected 401, got %d", rec.Code)
	}
	bearer := url.QueryEscape(f.service)
	if rec := f.do(t, http.MethodGet, "/v1/bot/login?email=alfian@example.com&telegram_id=42&token="+bearer, "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bearer token in link: expected 401, got %d", rec.Code)
	}
	if _, err := f.sessions.Get(ctx, session.TelegramKey("42")); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("rejected links must not create a session, got %v", err)
	}

	// only the bot may mint login tokens
	if rec := f.do(t, http.MethodPost, "/v1/bot/login/token", f.token, map[string]any{"email": "alfian@example.com", "telegram_id": "42"}); rec.Code != http.StatusForbidden {
		t.Fatalf("account token: expected 403, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/v1/bot/login/token", f.service, map[string]any{"email": "alfian@example.com", "telegram_id": "abc"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad telegram_id: expected 400, got %d", rec.Code)
	}
}

func TestBotLoginAndSession(t *testing.T) {
	f := setup(t, nil)

	nobody := f.loginToken(t, "nobody@example.com", "42")
	if rec := f.do(t, http.MethodGet, "/v1/bot/login?email=nobody@example.com&telegram_id=42&token="+nobody, "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	if rec := f.do(t, http.MethodGet, "/v1/bot/login?email=alfian@example.com&telegram_id=abc&token=x", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	tok := f.loginToken(t, "alfian@example.com", "42")
	if rec := f.do(t, http.MethodGet, "/v1/bot/login?email=Alfian@example.com&telegram_id=42&token="+tok, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// account tokens may not read chat sessions
	if rec := f.do(t, http.MethodGet, "/v1/bot/session/42", f.token, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/v1/bot/session/42", f.service, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sr sessionResponse
	_ = json.Unmarshal(decodeEnv(t, rec).Data, &sr)
	if sr.Session["account_id"] != f.acct.ID.String() || sr.Session["email"] != "alfian@example.com" {
		t.Fatalf("unexpected session: %+v", sr)
	}

	if rec := f.do(t, http.MethodDelete, "/v1/bot/session/42", f.service, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/bot/session/42", f.service, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after logout, got %d", rec.Code)
	}
}

func TestEmailSend(t *testing.T) {
	f := setup(t, nil)
	body := map[string]any{"subject": "Login to Billy", "body": "click", "recipient": "alfian@example.com"}

	if rec := f.do(t, http.MethodPost, "/v1/utility/email/send", f.token, body); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for account token, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/v1/utility/email/send", f.service, body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0].Recipients[0] != "alfian@example.com" {
		t.Fatalf("unexpected sent mail: %+v", f.mail.sent)
	}

	if rec := f.do(t, http.MethodPost, "/v1/utility/email/send", f.service, map[string]any{"subject": "x", "body": "y", "recipient": "not-an-email"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad recipient, got %d", rec.Code)
	}

	f.mail.err = errors.New("smtp: connection refused")
	rec := f.do(t, http.MethodPost, "/v1/utility/email/send", f.service, body)
	if rec.Code != http.StatusInternalServerError || decodeEnv(t, rec).Code != "delivery_failed" {
		t.Fatalf("expected 500 delivery_failed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOperationalEndpoints(t *testing.T) {
	f := setup(t, nil)
	if rec := f.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/dictionary/wallets", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "daily_needs") {
		t.Fatalf("dictionary: %d %s", rec.Code, rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "billy_http_requests_total") {
		t.Fatalf("metrics: %d", rec.Code)
	}

	down := setup(t, map[string]ReadyChecker{"sessions": failingCheck{}})
	rec := down.do(t, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "sessions") {
		t.Fatalf("expected 503 naming the check, got %d %s", rec.Code, rec.Body.String())
	}
}

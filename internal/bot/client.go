package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/retrier"
)

// Client calls the Billy HTTP API with a service token. Network errors and 5xx
// responses are retried; a 401 refreshes the token once.
type Client struct {
	base     string
	username string
	password string
	http     *http.Client
	retry    *retrier.Retrier

	mu      sync.Mutex
	token   string
	expires time.Time
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(h *http.Client) ClientOption { return func(c *Client) { c.http = h } }

// WithRetrier replaces the default backoff policy.
func WithRetrier(r *retrier.Retrier) ClientOption { return func(c *Client) { c.retry = r } }

func NewClient(baseURL, username, password string, opts ...ClientOption) *Client {
	c := &Client{
		base:     strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 10 * time.Second},
		retry:    retrier.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ API = (*Client)(nil)

// statusError is a non-2xx response. Code is the machine-readable error code
// from the envelope, when present.
type statusError struct {
	Status  int
	Message string
	Code    string
}

func (e *statusError) Error() string { return fmt.Sprintf("billy api: %d %s", e.Status, e.Message) }

type apiEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// permanentCodes are 5xx error codes that repeat on every attempt because they
// come from stored data, not from a transient failure.
var permanentCodes = map[string]bool{
	"malformed_timestamp": true,
	"amount_overflow":     true,
}

func (c *Client) serviceToken(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// renew a minute early so a token never expires in flight
	if !refresh && c.token != "" && time.Now().Add(time.Minute).Before(c.expires) {
		return c.token, nil
	}
	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/account/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{Status: resp.StatusCode, Message: "token request rejected"}
	}
	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	c.token, c.expires = tr.AccessToken, time.Unix(tr.ExpiresAt, 0)
	return c.token, nil
}

// call performs one authenticated request and decodes the envelope data into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		err := c.once(ctx, method, path, body, out, false)
		if se, ok := err.(*statusError); ok && se.Status == http.StatusUnauthorized {
			err = c.once(ctx, method, path, body, out, true)
		}
		return classify(err)
	})
}

func (c *Client) once(ctx context.Context, method, path string, body, out any, refresh bool) error {
	tok, err := c.serviceToken(ctx, refresh)
	if err != nil {
		return err
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return retrier.Permanent(err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return retrier.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && resp.StatusCode < 300 {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &statusError{Status: resp.StatusCode, Message: env.Message, Code: env.Code}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return retrier.Permanent(fmt.Errorf("decode data: %w", err))
		}
	}
	return nil
}

// classify marks 4xx responses and deterministic 5xx codes permanent and maps
// 404 to errs.ErrNotFound.
func classify(err error) error {
	se, ok := err.(*statusError)
	if !ok {
		return err
	}
	switch {
	case se.Status == http.StatusNotFound:
		return retrier.Permanent(fmt.Errorf("%w: %s", errs.ErrNotFound, se.Message))
	case se.Status < 500, permanentCodes[se.Code]:
		return retrier.Permanent(se)
	}
	return se
}

func (c *Client) LoginToken(ctx context.Context, email, telegramID string) (string, error) {
	var data struct {
		Token string `json:"token"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/bot/login/token", map[string]any{
		"email": email, "telegram_id": telegramID,
	}, &data); err != nil {
		return "", err
	}
	return data.Token, nil
}

func (c *Client) SendEmail(ctx context.Context, subject, body, recipient string) error {
	return c.call(ctx, http.MethodPost, "/v1/utility/email/send", map[string]any{
		"subject": subject, "body": body, "recipient": recipient,
	}, nil)
}

func (c *Client) Session(ctx context.Context, telegramID string) (Session, error) {
	var data struct {
		Session map[string]string `json:"session"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/bot/session/"+url.PathEscape(telegramID), nil, &data); err != nil {
		return Session{}, err
	}
	id, err := uuid.Parse(data.Session["account_id"])
	if err != nil {
		return Session{}, fmt.Errorf("session has no account_id: %w", err)
	}
	return Session{AccountID: id, Email: data.Session["email"]}, nil
}

func (c *Client) Logout(ctx context.Context, telegramID string) error {
	return c.call(ctx, http.MethodDelete, "/v1/bot/session/"+url.PathEscape(telegramID), nil, nil)
}

func (c *Client) Wallets(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	var data struct {
		Wallets []string `json:"wallets"`
	}
	q := url.Values{"account_id": {accountID.String()}}
	if err := c.call(ctx, http.MethodGet, "/v1/wallet/list?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	return data.Wallets, nil
}

type wireBucket struct {
	Budget string `json:"budget"`
	In     struct {
		Total string `json:"total"`
	} `json:"in"`
	Out struct {
		Total string `json:"total"`
	} `json:"out"`
	ReadyToSpend string `json:"ready_to_spend"`
}

// Report fetches a wallet report and flattens it into ascending months.
func (c *Client) Report(ctx context.Context, accountID uuid.UUID, wallet string) ([]Month, error) {
	var data map[string]map[string]wireBucket
	q := url.Values{"account_id": {accountID.String()}, "wallet": {wallet}}
	if err := c.call(ctx, http.MethodGet, "/v1/wallet/get_pay?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	months := make([]Month, 0)
	for ys, byMonth := range data {
		year, err := strconv.Atoi(ys)
		if err != nil {
			return nil, fmt.Errorf("report year %q: %w", ys, err)
		}
		for ms, wb := range byMonth {
			mon, err := strconv.Atoi(ms)
			if err != nil || mon < 1 || mon > 12 {
				return nil, fmt.Errorf("report month %q", ms)
			}
			m := Month{Year: year, Month: time.Month(mon)}
			for _, f := range []struct {
				dst *decimal.Decimal
				src string
			}{{&m.Budget, wb.Budget}, {&m.In, wb.In.Total}, {&m.Out, wb.Out.Total}, {&m.ReadyToSpend, wb.ReadyToSpend}} {
				if *f.dst, err = decimal.Parse(f.src); err != nil {
					return nil, fmt.Errorf("report %d-%02d amount %q: %w", year, mon, f.src, err)
				}
			}
			months = append(months, m)
		}
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].Year != months[j].Year {
			return months[i].Year < months[j].Year
		}
		return months[i].Month < months[j].Month
	})
	return months, nil
}

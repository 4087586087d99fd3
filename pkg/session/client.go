// Package session is the client side of the portal API: a typed HTTP client
// and a Session that owns the token, the identity derived from it and the
// route guard decisions built on top.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Role mirrors the server's role enumeration.
type Role int

const (
	RoleGuest    Role = 0
	RoleAdmin    Role = 1
	RoleOperator Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "guest"
	case RoleAdmin:
		return "admin"
	case RoleOperator:
		return "operator"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// APIError is a non-2xx response. Message is the server's text, or a generic
// fallback when the body carried none.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// Account is a user record as returned by /account and /admin/users.
type Account struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Lead is an apps panel submission. Every field is required; Telephony is
// "Whatsapp" or "Microsip".
type Lead struct {
	FullName  string `json:"fio"`
	Phone     string `json:"phone"`
	BirthDate string `json:"dataroz"`
	Region    string `json:"region"`
	Document  string `json:"document"`
	Message   string `json:"message"`
	Telephony string `json:"purchaseType"`
}

// Client calls the portal API. It is stateless; tokens are passed per call.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for baseURL. hc may be nil.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/register", "", body, nil)
}

// Login returns the session token issued for the credentials.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/login", "", body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &APIError{Status: http.StatusOK, Message: "login response carried no token"}
	}
	return out.Token, nil
}

func (c *Client) Account(ctx context.Context, token string) (*Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, "/account", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUsers(ctx context.Context, token string) ([]Account, error) {
	var out []Account
	if err := c.do(ctx, http.MethodGet, "/admin/users", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteUser(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+strconv.FormatInt(id, 10), token, nil, nil)
}

// SubmitLead returns once the spreadsheet has accepted the lead.
func (c *Client) SubmitLead(ctx context.Context, token string, lead Lead) error {
	return c.do(ctx, http.MethodPost, "/apps/leads", token, lead, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("session: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("session: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("session: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("session: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("session: decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, raw []byte) *APIError {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &envelope)

	msg := envelope.Error
	if msg == "" {
		msg = envelope.Message
	}
	if msg == "" {
		msg = "request failed"
		if text := http.StatusText(status); text != "" {
			msg = "request failed: " + strings.ToLower(text)
		}
	}
	return &APIError{Status: status, Message: msg}
}

// Package client is a Go client for the ledger API.
//
// It mirrors the browser shell: bearer tokens come from an Identity, month
// data is loaded with both reads in flight at once, and a 401 signs the
// identity out and short-circuits with ErrSessionExpired. Nothing is
// retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	applog "contabils/internal/log"

	"golang.org/x/sync/errgroup"
)

// ErrSessionExpired is returned after the server rejected the session.
var ErrSessionExpired = errors.New("session expired")

// ErrIdentityUnavailable means the identity never became ready.
var ErrIdentityUnavailable = errors.New("identity client unavailable")

// Session is the provider session the client authenticates with.
type Session struct {
	AccessToken string
	UserID      string
}

// Identity is the capability the client needs from the identity provider.
type Identity interface {
	GetSession(ctx context.Context) (*Session, error)
	SignOut(ctx context.Context) error
}

// IdentitySource returns the identity once it is ready, or nil.
type IdentitySource func() Identity

// WaitForIdentity polls src up to tries times, delay apart.
func WaitForIdentity(ctx context.Context, src IdentitySource, tries int, delay time.Duration) (Identity, error) {
	if tries <= 0 {
		tries = 50
	}
	if delay <= 0 {
		delay = 80 * time.Millisecond
	}
	for i := 0; i < tries; i++ {
		if id := src(); id != nil {
			return id, nil
		}
		if i == tries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, ErrIdentityUnavailable
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("status %d: %s (%s)", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

type Category struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Kind  string `json:"kind"`
}

type Transaction struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Description string `json:"description"`
	DateISO     string `json:"date_iso"`
	MonthKey    string `json:"month_key"`
}

type Summary struct {
	Month   string `json:"month"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
	Balance int64  `json:"balance"`
}

// NewTransaction is the create payload. Amount keeps the user's text, so
// "45,90" and "45.90" are both accepted.
type NewTransaction struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// MonthView is what the ledger page renders for one month.
type MonthView struct {
	Summary      Summary
	Transactions []Transaction
}

// Download is a completed export.
type Download struct {
	Filename string
	Body     []byte
}

type Client struct {
	baseURL  string
	http     *http.Client
	identity Identity

	// OnAuthFailure runs after a 401 signed the identity out. It fires once
	// per expired token even when concurrent requests all fail.
	OnAuthFailure func()

	mu           sync.Mutex
	expired      bool
	expiredToken string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, identity Identity, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		identity: identity,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categories lists the catalog. txType narrows to income or expense.
func (c *Client) Categories(ctx context.Context, txType string) ([]Category, error) {
	q := url.Values{}
	if txType != "" {
		q.Set("type", txType)
	}
	var out []Category
	if err := c.getJSON(ctx, "/api/categories", q, false, &out); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// LoadMonth fetches the summary and the listing concurrently. The first
// failure cancels the other read.
func (c *Client) LoadMonth(ctx context.Context, month, category string) (*MonthView, error) {
	var view MonthView
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.getJSON(gctx, "/api/summary", url.Values{"month": {month}}, true, &view.Summary)
	})
	g.Go(func() error {
		q := url.Values{"month": {month}}
		if category != "" {
			q.Set("category", category)
		}
		return c.getJSON(gctx, "/api/transactions", q, true, &view.Transactions)
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load month %s: %w", month, err)
	}
	if view.Transactions == nil {
		view.Transactions = []Transaction{}
	}
	return &view, nil
}

// CreateTransaction returns the new row id.
func (c *Client) CreateTransaction(ctx context.Context, in NewTransaction) (int64, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/transactions", nil, bytes.NewReader(body), true)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		OK bool  `json:"ok"`
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("create transaction: decode: %w", err)
	}
	return out.ID, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/transactions/"+strconv.FormatInt(id, 10), nil, nil, true)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	resp.Body.Close()
	return nil
}

// CreateCategory adds a catalog entry; no session is required.
func (c *Client) CreateCategory(ctx context.Context, cat Category) error {
	body, err := json.Marshal(cat)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/categories", nil, bytes.NewReader(body), false)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Export downloads the whole statement before returning it, so callers
// never see a partial file.
func (c *Client) Export(ctx context.Context, month, category string) (*Download, error) {
	q := url.Values{"month": {month}}
	if category != "" {
		q.Set("category", category)
	}
	resp, err := c.do(ctx, http.MethodGet, "/export.xlsx", q, nil, true)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", month, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("export %s: read: %w", month, err)
	}
	name := "contabils_extrato_" + month + ".xlsx"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return &Download{Filename: name, Body: body}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, authed bool, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, q, nil, authed)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do sends one request. Non-2xx answers are returned as *APIError; a 401
// signs out first.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body io.Reader, authed bool) (*http.Response, error) {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	var token string
	if authed && c.identity != nil {
		s, err := c.identity.GetSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}
		if s != nil && s.AccessToken != "" {
			token = s.AccessToken
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && authed {
		if c.markExpired(token) {
			c.expire(ctx)
		}
		return nil, ErrSessionExpired
	}

	apiErr := &APIError{Status: resp.StatusCode}
	var eb struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&eb) == nil {
		apiErr.Message, apiErr.Details = eb.Error, eb.Details
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return nil, apiErr
}

// markExpired reports whether this 401 is the first one for token. A
// request sent without a token after the sign-out counts as the same expiry.
func (c *Client) markExpired(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expired && (token == "" || token == c.expiredToken) {
		return false
	}
	c.expired, c.expiredToken = true, token
	return true
}

func (c *Client) expire(ctx context.Context) {
	if c.identity != nil {
		if err := c.identity.SignOut(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Sign out after expired session failed", applog.FieldError, err)
		}
	}
	if c.OnAuthFailure != nil {
		c.OnAuthFailure()
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Wire types for the storefront REST API.

type Line struct {
	ItemID int64 `json:"itemId"`
	Qty    int   `json:"qty"`
}

type Item struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
}

// CartEntry is a cart line decorated for display. Details is nil when the
// item is gone from the catalog; callers render a placeholder.
type CartEntry struct {
	ItemID  int64 `json:"itemId"`
	Qty     int   `json:"qty"`
	Details *Item `json:"details,omitempty"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type ItemFilter struct {
	Category string
	MinPrice string
	MaxPrice string
	Query    string
	Limit    int
	Offset   int
}

// APIError is a non-2xx response from the storefront.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront: %s (status %d)", e.Message, e.Status)
}

// IsAuthError reports whether err is a 401/403 rejection, the signal for a
// session to fall back to its local cart.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// Client is a thin typed client over the storefront REST surface.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

func (c *Client) Signup(ctx context.Context, email, password, name string) (AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password, "name": name}
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", nil, "", body, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, "", body, &out)
	return out, err
}

func (c *Client) Items(ctx context.Context, f ItemFilter) ([]Item, error) {
	q := url.Values{}
	setIf := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	setIf("category", f.Category)
	setIf("minPrice", f.MinPrice)
	setIf("maxPrice", f.MaxPrice)
	setIf("q", f.Query)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}

	var out []Item
	err := c.do(ctx, http.MethodGet, "/api/items", q, "", nil, &out)
	return out, err
}

func (c *Client) ItemsByIDs(ctx context.Context, ids []int64) (map[int64]Item, error) {
	if len(ids) == 0 {
		return map[int64]Item{}, nil
	}

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	q := url.Values{}
	q.Set("ids", strings.Join(parts, ","))

	var items []Item
	if err := c.do(ctx, http.MethodGet, "/api/items", q, "", nil, &items); err != nil {
		return nil, err
	}

	byID := make(map[int64]Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return byID, nil
}

func (c *Client) Cart(ctx context.Context, token string) ([]Line, error) {
	var out []Line
	err := c.do(ctx, http.MethodGet, "/api/cart", nil, token, nil, &out)
	return out, err
}

// CartDetailed fetches the server cart already joined to catalog details,
// so the cart page needs no second lookup.
func (c *Client) CartDetailed(ctx context.Context, token string) ([]CartEntry, error) {
	var out []CartEntry
	err := c.do(ctx, http.MethodGet, "/api/cart/detailed", nil, token, nil, &out)
	return out, err
}

func (c *Client) ReplaceCart(ctx context.Context, token string, lines []Line) error {
	body := map[string]any{"items": lines}
	return c.do(ctx, http.MethodPut, "/api/cart", nil, token, body, nil)
}

func (c *Client) AddToCart(ctx context.Context, token string, itemID int64, qty int) ([]Line, error) {
	var out []Line
	body := map[string]any{"itemId": itemID, "qty": qty}
	err := c.do(ctx, http.MethodPost, "/api/cart/add", nil, token, body, &out)
	return out, err
}

func (c *Client) RemoveFromCart(ctx context.Context, token string, itemID int64) ([]Line, error) {
	var out []Line
	body := map[string]any{"itemId": itemID}
	err := c.do(ctx, http.MethodPost, "/api/cart/remove", nil, token, body, &out)
	return out, err
}

func (c *Client) SetQuantity(ctx context.Context, token string, itemID int64, qty int) ([]Line, error) {
	var out []Line
	body := map[string]any{"itemId": itemID, "qty": qty}
	err := c.do(ctx, http.MethodPost, "/api/cart/set", nil, token, body, &out)
	return out, err
}

func (c *Client) MergeCart(ctx context.Context, token string, lines []Line) ([]Line, error) {
	var out []Line
	body := map[string]any{"items": lines}
	err := c.do(ctx, http.MethodPost, "/api/cart/merge", nil, token, body, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	rel := &url.URL{Path: path}
	if query != nil {
		rel.RawQuery = query.Encode()
	}
	u := c.baseURL.ResolveReference(rel)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

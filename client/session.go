package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrQtyNegative = errors.New("quantity must not be negative")
	ErrQtyZero     = errors.New("quantity must be positive")
)

// Session is one shopper's state: the local cart plus, once authenticated,
// the bearer token for the server cart. Every cart mutation is dispatched
// to exactly one of the two stores based on whether a token is held.
type Session struct {
	api   *Client
	kv    KV
	local *LocalCart
}

func NewSession(api *Client, kv KV) *Session {
	return &Session{api: api, kv: kv, local: NewLocalCart(kv)}
}

func (s *Session) Token() string {
	raw, ok := s.kv.Get(tokenKey)
	if !ok {
		return ""
	}
	return string(raw)
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// User returns the stored display identity. It is not trusted for
// authorization; only the token is.
func (s *Session) User() (User, bool) {
	raw, ok := s.kv.Get(userKey)
	if !ok {
		return User{}, false
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return User{}, false
	}
	return u, true
}

// Signup creates an account and merges the guest cart into the new server
// cart.
func (s *Session) Signup(ctx context.Context, email, password, name string) error {
	res, err := s.api.Signup(ctx, email, password, name)
	if err != nil {
		return err
	}
	s.storeAuth(res)
	return s.mergeLocal(ctx, res.Token)
}

// Login authenticates and merges the guest cart into the server cart. If
// the merge write fails the local cart is kept, so a later login retries
// it (at-least-once).
func (s *Session) Login(ctx context.Context, email, password string) error {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	s.storeAuth(res)
	return s.mergeLocal(ctx, res.Token)
}

// Logout drops the session identity. The server cart is left as is; the
// local cart starts empty again.
func (s *Session) Logout() {
	s.kv.Delete(tokenKey)
	s.kv.Delete(userKey)
}

func (s *Session) AddToCart(ctx context.Context, itemID int64, qty int) error {
	if qty <= 0 {
		return ErrQtyZero
	}

	if token := s.Token(); token != "" {
		_, err := s.api.AddToCart(ctx, token, itemID, qty)
		return s.orLocalFallback(err, func() {
			s.localAdd(itemID, qty)
		})
	}

	s.localAdd(itemID, qty)
	return nil
}

// SetQuantity sets an item's quantity; zero removes the line outright.
func (s *Session) SetQuantity(ctx context.Context, itemID int64, qty int) error {
	if qty < 0 {
		return ErrQtyNegative
	}

	if token := s.Token(); token != "" {
		_, err := s.api.SetQuantity(ctx, token, itemID, qty)
		return s.orLocalFallback(err, func() {
			s.localSet(itemID, qty)
		})
	}

	s.localSet(itemID, qty)
	return nil
}

func (s *Session) RemoveFromCart(ctx context.Context, itemID int64) error {
	return s.SetQuantity(ctx, itemID, 0)
}

// Cart returns the active cart decorated with catalog details. Items gone
// from the catalog come back with nil Details. The server cart arrives
// already decorated; only the guest cart is joined here.
func (s *Session) Cart(ctx context.Context) ([]CartEntry, error) {
	if token := s.Token(); token != "" {
		entries, err := s.api.CartDetailed(ctx, token)
		if err == nil {
			if entries == nil {
				entries = []CartEntry{}
			}
			return entries, nil
		}
		if !IsAuthError(err) {
			return nil, err
		}
		s.Logout()
	}

	lines := s.local.Get()
	if len(lines) == 0 {
		return []CartEntry{}, nil
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ItemID)
	}
	details, err := s.api.ItemsByIDs(ctx, ids)
	if err != nil {
		// display degrades to undecorated lines rather than failing
		details = nil
	}

	entries := make([]CartEntry, 0, len(lines))
	for _, l := range lines {
		e := CartEntry{ItemID: l.ItemID, Qty: l.Qty}
		if it, ok := details[l.ItemID]; ok {
			e.Details = &it
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LocalLines exposes the guest cart for inspection.
func (s *Session) LocalLines() []Line {
	return s.local.Get()
}

// mergeLocal pushes the guest cart into the server cart and clears local
// state only after the server confirms the merge.
func (s *Session) mergeLocal(ctx context.Context, token string) error {
	guest := s.local.Get()
	if len(guest) == 0 {
		return nil
	}

	if _, err := s.api.MergeCart(ctx, token, guest); err != nil {
		return fmt.Errorf("merge cart: %w", err)
	}

	s.local.Clear()
	return nil
}

// orLocalFallback applies fn to the local store when the server rejected
// the session's token, so the shopper keeps a working cart.
func (s *Session) orLocalFallback(err error, fn func()) error {
	if err == nil {
		return nil
	}
	if IsAuthError(err) {
		s.Logout()
		fn()
		return nil
	}
	return err
}

func (s *Session) localAdd(itemID int64, qty int) {
	lines := s.local.Get()
	found := false
	for i := range lines {
		if lines[i].ItemID == itemID {
			lines[i].Qty += qty
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, Line{ItemID: itemID, Qty: qty})
	}
	s.local.Set(lines)
}

func (s *Session) localSet(itemID int64, qty int) {
	lines := s.local.Get()
	out := lines[:0]
	found := false
	for _, l := range lines {
		if l.ItemID == itemID {
			found = true
			if qty > 0 {
				out = append(out, Line{ItemID: itemID, Qty: qty})
			}
			continue
		}
		out = append(out, l)
	}
	if !found && qty > 0 {
		out = append(out, Line{ItemID: itemID, Qty: qty})
	}
	s.local.Set(out)
}

func (s *Session) storeAuth(res AuthResult) {
	s.kv.Set(tokenKey, []byte(res.Token))
	if raw, err := json.Marshal(res.User); err == nil {
		s.kv.Set(userKey, raw)
	}
}

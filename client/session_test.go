package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/freshmart/storefront/client"
	"github.com/freshmart/storefront/internal/auth"
	"github.com/freshmart/storefront/internal/cart"
	"github.com/freshmart/storefront/internal/catalog"
	httpapi "github.com/freshmart/storefront/internal/http"
	"github.com/freshmart/storefront/internal/user"
)

// In-memory repositories backing a real router, so Session tests exercise
// the same HTTP surface the browser client does.

type memCartRepo struct {
	carts map[string][]cart.Line
}

func (r *memCartRepo) Get(ctx context.Context, userID string) ([]cart.Line, error) {
	if _, ok := r.carts[userID]; !ok {
		r.carts[userID] = []cart.Line{}
	}
	return r.carts[userID], nil
}

func (r *memCartRepo) Replace(ctx context.Context, userID string, lines []cart.Line) error {
	if lines == nil {
		lines = []cart.Line{}
	}
	r.carts[userID] = lines
	return nil
}

func (r *memCartRepo) AddItem(ctx context.Context, userID string, itemID int64, qty int) ([]cart.Line, error) {
	if itemID == 0 {
		return nil, cart.ErrMissingItem
	}
	if qty <= 0 {
		return nil, cart.ErrNonPositiveQty
	}
	lines := cart.MergeLines(r.carts[userID], []cart.Line{{ItemID: itemID, Qty: qty}})
	r.carts[userID] = lines
	return lines, nil
}

func (r *memCartRepo) SetItem(ctx context.Context, userID string, itemID int64, qty int) ([]cart.Line, error) {
	if itemID == 0 {
		return nil, cart.ErrMissingItem
	}
	if qty < 0 {
		return nil, cart.ErrNegativeQty
	}
	out := []cart.Line{}
	for _, l := range r.carts[userID] {
		if l.ItemID != itemID {
			out = append(out, l)
		}
	}
	if qty > 0 {
		out = append(out, cart.Line{ItemID: itemID, Qty: qty})
	}
	r.carts[userID] = out
	return out, nil
}

func (r *memCartRepo) Merge(ctx context.Context, userID string, guest []cart.Line) ([]cart.Line, error) {
	lines := cart.MergeLines(r.carts[userID], guest)
	r.carts[userID] = lines
	return lines, nil
}

type memUserRepo struct {
	byEmail map[string]*user.User
}

func (r *memUserRepo) Create(ctx context.Context, u *user.User) error {
	if _, ok := r.byEmail[u.Email]; ok {
		return user.ErrEmailTaken
	}
	u.CreatedAt = time.Now()
	r.byEmail[u.Email] = u
	return nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

func (r *memUserRepo) FindByID(ctx context.Context, id string) (*user.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

type memCatalogRepo struct {
	items map[int64]catalog.Item
}

func (r *memCatalogRepo) List(ctx context.Context, f catalog.Filter) ([]catalog.Item, error) {
	out := []catalog.Item{}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if it, ok := r.items[id]; ok {
				out = append(out, it)
			}
		}
		return out, nil
	}
	for _, it := range r.items {
		out = append(out, it)
	}
	return out, nil
}

func (r *memCatalogRepo) ByIDs(ctx context.Context, ids []int64) (map[int64]catalog.Item, error) {
	out := map[int64]catalog.Item{}
	for _, id := range ids {
		if it, ok := r.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (r *memCatalogRepo) Create(ctx context.Context, it *catalog.Item) error {
	it.ID = int64(len(r.items) + 1)
	r.items[it.ID] = *it
	return nil
}

func (r *memCatalogRepo) Update(ctx context.Context, it *catalog.Item) error {
	if _, ok := r.items[it.ID]; !ok {
		return catalog.ErrNotFound
	}
	r.items[it.ID] = *it
	return nil
}

func (r *memCatalogRepo) Delete(ctx context.Context, id int64) error {
	delete(r.items, id)
	return nil
}

type testEnv struct {
	server *httptest.Server
	carts  *memCartRepo
	users  *memUserRepo
}

func startServer(t *testing.T) *testEnv {
	t.Helper()

	carts := &memCartRepo{carts: map[string][]cart.Line{}}
	users := &memUserRepo{byEmail: map[string]*user.User{}}
	items := &memCatalogRepo{items: map[int64]catalog.Item{
		1: {ID: 1, Title: "Apples", Price: 2.5, Category: "fruit"},
		3: {ID: 3, Title: "Milk", Price: 1.25, Category: "dairy"},
		7: {ID: 7, Title: "Bread", Price: 2.0, Category: "bakery"},
	}}
	tokens := auth.NewTokens("session-test-secret", time.Hour)

	server := httptest.NewServer(httpapi.NewRouter(httpapi.RouterConfig{
		Auth:    httpapi.NewAuthHandler(users, carts, tokens, nil),
		Cart:    httpapi.NewCartHandler(carts, items, nil),
		Catalog: httpapi.NewCatalogHandler(items),
		Tokens:  tokens,
	}))
	t.Cleanup(server.Close)

	return &testEnv{server: server, carts: carts, users: users}
}

func newSession(t *testing.T, env *testEnv) *client.Session {
	t.Helper()
	api, err := client.NewClient(env.server.URL, env.server.Client())
	if err != nil {
		t.Fatal(err)
	}
	return client.NewSession(api, client.NewMemoryKV())
}

func TestGuestCart(t *testing.T) {
	env := startServer(t)
	session := newSession(t, env)
	ctx := context.Background()

	if err := session.AddToCart(ctx, 7, 1); err != nil {
		t.Fatal(err)
	}
	if err := session.AddToCart(ctx, 7, 1); err != nil {
		t.Fatal(err)
	}
	if err := session.AddToCart(ctx, 1, 3); err != nil {
		t.Fatal(err)
	}

	lines := session.LocalLines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %+v", lines)
	}
	if lines[0].ItemID != 7 || lines[0].Qty != 2 {
		t.Fatalf("repeated add did not accumulate: %+v", lines)
	}

	// nothing on the server for a guest
	for id, serverLines := range env.carts.carts {
		if len(serverLines) > 0 {
			t.Fatalf("guest cart leaked to server for user %q: %+v", id, serverLines)
		}
	}

	if err := session.SetQuantity(ctx, 1, 5); err != nil {
		t.Fatal(err)
	}
	if err := session.RemoveFromCart(ctx, 7); err != nil {
		t.Fatal(err)
	}

	lines = session.LocalLines()
	if len(lines) != 1 || lines[0].ItemID != 1 || lines[0].Qty != 5 {
		t.Fatalf("unexpected lines after set/remove: %+v", lines)
	}
}

func TestGuestRejectsBadQuantities(t *testing.T) {
	session := newSession(t, startServer(t))
	ctx := context.Background()

	if err := session.AddToCart(ctx, 1, 0); err != client.ErrQtyZero {
		t.Fatalf("expected ErrQtyZero, got %v", err)
	}
	if err := session.SetQuantity(ctx, 1, -2); err != client.ErrQtyNegative {
		t.Fatalf("expected ErrQtyNegative, got %v", err)
	}
}

func TestSignupMergesGuestCart(t *testing.T) {
	env := startServer(t)
	session := newSession(t, env)
	ctx := context.Background()

	session.AddToCart(ctx, 7, 2)
	session.AddToCart(ctx, 3, 1)

	if err := session.Signup(ctx, "a@b.dk", "hunter2", "Anna"); err != nil {
		t.Fatal(err)
	}
	if !session.Authenticated() {
		t.Fatal("expected authenticated session after signup")
	}

	// guest cart moved server-side and local storage is empty
	if lines := session.LocalLines(); len(lines) != 0 {
		t.Fatalf("local cart not cleared after merge: %+v", lines)
	}

	u, ok := session.User()
	if !ok || u.Email != "a@b.dk" {
		t.Fatalf("unexpected stored user: %+v (ok=%v)", u, ok)
	}
	serverLines := env.carts.carts[u.ID]
	want := map[int64]int{7: 2, 3: 1}
	if len(serverLines) != len(want) {
		t.Fatalf("unexpected server cart: %+v", serverLines)
	}
	for _, l := range serverLines {
		if want[l.ItemID] != l.Qty {
			t.Fatalf("unexpected server cart: %+v", serverLines)
		}
	}
}

func TestLoginMergeSumsQuantities(t *testing.T) {
	env := startServer(t)
	ctx := context.Background()

	// first session signs up and leaves a server cart behind
	first := newSession(t, env)
	first.AddToCart(ctx, 3, 2)
	if err := first.Signup(ctx, "a@b.dk", "hunter2", ""); err != nil {
		t.Fatal(err)
	}

	// a fresh guest session on another device builds a local cart
	second := newSession(t, env)
	second.AddToCart(ctx, 1, 2)
	second.AddToCart(ctx, 3, 1)

	if err := second.Login(ctx, "a@b.dk", "hunter2"); err != nil {
		t.Fatal(err)
	}

	entries, err := second.Cart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[int64]int{1: 2, 3: 3}
	if len(entries) != len(want) {
		t.Fatalf("unexpected cart: %+v", entries)
	}
	for _, e := range entries {
		if want[e.ItemID] != e.Qty {
			t.Fatalf("unexpected cart: %+v", entries)
		}
		if e.Details == nil || e.Details.ID != e.ItemID {
			t.Fatalf("entry not decorated: %+v", e)
		}
	}
}

func TestLoginWithEmptyGuestCartSkipsMerge(t *testing.T) {
	env := startServer(t)
	ctx := context.Background()

	first := newSession(t, env)
	first.AddToCart(ctx, 3, 2)
	if err := first.Signup(ctx, "a@b.dk", "hunter2", ""); err != nil {
		t.Fatal(err)
	}

	second := newSession(t, env)
	if err := second.Login(ctx, "a@b.dk", "hunter2"); err != nil {
		t.Fatal(err)
	}

	entries, err := second.Cart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ItemID != 3 || entries[0].Qty != 2 {
		t.Fatalf("server cart changed by empty merge: %+v", entries)
	}
}

func TestAuthenticatedMutationsHitServer(t *testing.T) {
	env := startServer(t)
	session := newSession(t, env)
	ctx := context.Background()

	if err := session.Signup(ctx, "a@b.dk", "hunter2", ""); err != nil {
		t.Fatal(err)
	}
	u, _ := session.User()

	session.AddToCart(ctx, 7, 1)
	session.AddToCart(ctx, 7, 2)
	session.SetQuantity(ctx, 1, 4)
	session.RemoveFromCart(ctx, 7)

	if lines := session.LocalLines(); len(lines) != 0 {
		t.Fatalf("authenticated mutations leaked into local cart: %+v", lines)
	}
	serverLines := env.carts.carts[u.ID]
	if len(serverLines) != 1 || serverLines[0].ItemID != 1 || serverLines[0].Qty != 4 {
		t.Fatalf("unexpected server cart: %+v", serverLines)
	}
}

func TestStaleTokenFallsBackToLocal(t *testing.T) {
	env := startServer(t)
	session := newSession(t, env)
	ctx := context.Background()

	if err := session.Signup(ctx, "a@b.dk", "hunter2", ""); err != nil {
		t.Fatal(err)
	}

	// a new server process signs with a different secret, the old token
	// is now rejected
	newTokens := auth.NewTokens("rotated-secret", time.Hour)
	rotatedItems := &memCatalogRepo{items: map[int64]catalog.Item{}}
	rotated := httptest.NewServer(httpapi.NewRouter(httpapi.RouterConfig{
		Auth:    httpapi.NewAuthHandler(env.users, env.carts, newTokens, nil),
		Cart:    httpapi.NewCartHandler(env.carts, rotatedItems, nil),
		Catalog: httpapi.NewCatalogHandler(rotatedItems),
		Tokens:  newTokens,
	}))
	defer rotated.Close()

	api, err := client.NewClient(rotated.URL, rotated.Client())
	if err != nil {
		t.Fatal(err)
	}
	// same KV, so the stale token is still held
	kv := client.NewMemoryKV()
	stale := client.NewSession(api, kv)
	kv.Set("token", []byte(session.Token()))

	if err := stale.AddToCart(ctx, 7, 1); err != nil {
		t.Fatalf("expected local fallback, got %v", err)
	}
	if stale.Authenticated() {
		t.Fatal("expected token to be dropped after rejection")
	}
	lines := stale.LocalLines()
	if len(lines) != 1 || lines[0].ItemID != 7 || lines[0].Qty != 1 {
		t.Fatalf("expected local cart to absorb the add, got %+v", lines)
	}
}

func TestCartDecorationToleratesMissingItems(t *testing.T) {
	env := startServer(t)
	session := newSession(t, env)
	ctx := context.Background()

	session.AddToCart(ctx, 7, 1)
	session.AddToCart(ctx, 999, 2) // not in the catalog

	entries, err := session.Cart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	for _, e := range entries {
		switch e.ItemID {
		case 7:
			if e.Details == nil || e.Details.Title != "Bread" {
				t.Fatalf("expected decorated bread line, got %+v", e)
			}
		case 999:
			if e.Details != nil {
				t.Fatalf("expected nil details for unknown item, got %+v", e)
			}
		}
	}
}

func TestLogout(t *testing.T) {
	env := startServer(t)
	session := newSession(t, env)
	ctx := context.Background()

	session.AddToCart(ctx, 7, 1)
	if err := session.Signup(ctx, "a@b.dk", "hunter2", ""); err != nil {
		t.Fatal(err)
	}
	u, _ := session.User()

	session.Logout()

	if session.Authenticated() {
		t.Fatal("still authenticated after logout")
	}
	if _, ok := session.User(); ok {
		t.Fatal("user identity survived logout")
	}
	if lines := session.LocalLines(); len(lines) != 0 {
		t.Fatalf("expected empty local cart after logout, got %+v", lines)
	}
	// the server cart is untouched
	if lines := env.carts.carts[u.ID]; len(lines) != 1 {
		t.Fatalf("server cart changed by logout: %+v", lines)
	}
}

package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/freshmart/storefront/internal/auth"
	httpapi "github.com/freshmart/storefront/internal/http"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.Tokens) {
	t.Helper()
	tokens := auth.NewTokens("router-test-secret", time.Hour)
	users := newFakeUserRepo()
	carts := newFakeCartRepo()
	catalog := &fakeCatalogRepo{}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Auth:    httpapi.NewAuthHandler(users, carts, tokens, nil),
		Cart:    httpapi.NewCartHandler(carts, catalog, nil),
		Catalog: httpapi.NewCatalogHandler(catalog),
		Tokens:  tokens,
	})
	return router, tokens
}

func TestCORS(t *testing.T) {
	tokens := auth.NewTokens("cors-test-secret", time.Hour)
	newRouter := func(origins []string) http.Handler {
		carts := newFakeCartRepo()
		return httpapi.NewRouter(httpapi.RouterConfig{
			Auth:             httpapi.NewAuthHandler(newFakeUserRepo(), carts, tokens, nil),
			Cart:             httpapi.NewCartHandler(carts, &fakeCatalogRepo{}, nil),
			Catalog:          httpapi.NewCatalogHandler(&fakeCatalogRepo{}),
			Tokens:           tokens,
			CORSAllowOrigins: origins,
		})
	}

	t.Run("preflight reflects an allowed origin", func(t *testing.T) {
		router := newRouter([]string{"https://shop.example"})
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/api/items", nil)
		r.Header.Set("Origin", "https://shop.example")
		router.ServeHTTP(w, r)

		if w.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
			t.Fatalf("unexpected allow-origin: %q", got)
		}
		if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization" {
			t.Fatalf("unexpected allow-headers: %q", got)
		}
	})

	t.Run("unlisted origin gets no cors headers", func(t *testing.T) {
		router := newRouter([]string{"https://shop.example"})
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/items", nil)
		r.Header.Set("Origin", "https://evil.example")
		router.ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("unexpected allow-origin for unlisted origin: %q", got)
		}
	})

	t.Run("wildcard reflects any origin", func(t *testing.T) {
		router := newRouter([]string{"*"})
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/items", nil)
		r.Header.Set("Origin", "https://anything.example")
		router.ServeHTTP(w, r)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://anything.example" {
			t.Fatalf("expected reflected origin, got %q", got)
		}
	})
}

func TestRouterHealth(t *testing.T) {
	router, _ := newTestRouter(t)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["status"] != "ok" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}

func TestCartRoutesRequireAuth(t *testing.T) {
	router, tokens := newTestRouter(t)

	t.Run("missing token is a 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("garbage token is a 403", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")
		router.ServeHTTP(w, r)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})

	t.Run("token signed with another secret is a 403", func(t *testing.T) {
		other := auth.NewTokens("some-other-secret", time.Hour)
		token, err := other.Issue("u1", "a@b.dk")
		if err != nil {
			t.Fatal(err)
		}

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, r)
		if w.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", w.Code)
		}
	})

	t.Run("valid token reaches the handler", func(t *testing.T) {
		token, err := tokens.Issue("u1", "a@b.dk")
		if err != nil {
			t.Fatal(err)
		}

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("detailed cart is routed and guarded", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cart/detailed", nil))
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}

		token, err := tokens.Issue("u1", "a@b.dk")
		if err != nil {
			t.Fatal(err)
		}
		w = httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/cart/detailed", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("catalog stays public", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/items", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})
}

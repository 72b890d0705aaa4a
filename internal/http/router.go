package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/freshmart/storefront/internal/auth"
)

type RouterConfig struct {
	Auth    *AuthHandler
	Cart    *CartHandler
	Catalog *CatalogHandler
	Tokens  *auth.Tokens

	CORSAllowOrigins []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(CORS(cfg.CORSAllowOrigins))

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", cfg.Auth.Signup)
		r.Post("/auth/login", cfg.Auth.Login)

		r.Get("/items", cfg.Catalog.List)
		r.Post("/items", cfg.Catalog.Create)
		r.Put("/items/{itemId}", cfg.Catalog.Update)
		r.Delete("/items/{itemId}", cfg.Catalog.Delete)

		r.Route("/cart", func(r chi.Router) {
			r.Use(auth.RequireUser(cfg.Tokens))
			r.Get("/", cfg.Cart.Get)
			r.Get("/detailed", cfg.Cart.Detailed)
			r.Put("/", cfg.Cart.Replace)
			r.Post("/add", cfg.Cart.Add)
			r.Post("/remove", cfg.Cart.Remove)
			r.Post("/set", cfg.Cart.Set)
			r.Post("/merge", cfg.Cart.Merge)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "storefront"})
}

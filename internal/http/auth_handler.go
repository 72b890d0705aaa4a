package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/freshmart/storefront/internal/auth"
	"github.com/freshmart/storefront/internal/cart"
	"github.com/freshmart/storefront/internal/user"
)

type UserEventsPublisher interface {
	PublishUserSignedUp(ctx context.Context, userID, email string) error
}

type AuthHandler struct {
	users  user.Repository
	carts  cart.Repository
	tokens *auth.Tokens
	events UserEventsPublisher
}

func NewAuthHandler(users user.Repository, carts cart.Repository, tokens *auth.Tokens, events UserEventsPublisher) *AuthHandler {
	return &AuthHandler{users: users, carts: carts, tokens: tokens, events: events}
}

type authResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u := &user.User{
		ID:           uuid.NewString(),
		Email:        body.Email,
		Name:         strings.TrimSpace(body.Name),
		PasswordHash: hash,
	}
	if err := h.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "email already used")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	// empty cart row exists from account creation onward
	if err := h.carts.Replace(ctx, u.ID, nil); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create cart")
		return
	}

	token, err := h.tokens.Issue(u.ID, u.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	if h.events != nil {
		if err := h.events.PublishUserSignedUp(ctx, u.ID, u.Email); err != nil {
			log.Printf("publish UserSignedUp: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: u})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.FindByEmail(ctx, strings.TrimSpace(body.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// same response as a bad password, no account probing
			writeError(w, http.StatusBadRequest, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	if !auth.CheckPassword(u.PasswordHash, body.Password) {
		writeError(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(u.ID, u.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: u})
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/freshmart/storefront/internal/auth"
	"github.com/freshmart/storefront/internal/cart"
	"github.com/freshmart/storefront/internal/catalog"
)

type CartEventsPublisher interface {
	PublishCartMerged(ctx context.Context, userID string, lines []cart.Line) error
}

type CartHandler struct {
	repo   cart.Repository
	items  catalog.Repository
	events CartEventsPublisher
}

func NewCartHandler(repo cart.Repository, items catalog.Repository, events CartEventsPublisher) *CartHandler {
	return &CartHandler{repo: repo, items: items, events: events}
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lines, err := h.repo.Get(ctx, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}

	writeJSON(w, http.StatusOK, lines)
}

// Detailed returns the cart with each line joined to its catalog item, the
// shape the cart page renders. Lines for items gone from the catalog keep a
// nil details field.
func (h *CartHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lines, err := h.repo.Get(ctx, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ItemID)
	}
	details, err := h.items.ByIDs(ctx, ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load item details")
		return
	}

	writeJSON(w, http.StatusOK, cart.Decorate(lines, details))
}

func (h *CartHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []cart.Line `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	lines, err := cart.NormalizeLines(body.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.repo.Replace(ctx, auth.UserID(r.Context()), lines); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save cart")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID int64 `json:"itemId"`
		Qty    *int  `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	qty := 1
	if body.Qty != nil {
		qty = *body.Qty
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lines, err := h.repo.AddItem(ctx, auth.UserID(r.Context()), body.ItemID, qty)
	if err != nil {
		h.writeMutationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lines)
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID int64 `json:"itemId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// removal is unconditional: the line ends up absent, not zero
	lines, err := h.repo.SetItem(ctx, auth.UserID(r.Context()), body.ItemID, 0)
	if err != nil {
		h.writeMutationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lines)
}

func (h *CartHandler) Set(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID int64 `json:"itemId"`
		Qty    int   `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lines, err := h.repo.SetItem(ctx, auth.UserID(r.Context()), body.ItemID, body.Qty)
	if err != nil {
		h.writeMutationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lines)
}

// Merge folds a guest cart into the server cart in one transaction. The
// client clears its local copy only after this returns 200.
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []cart.Line `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	guest, err := cart.NormalizeLines(body.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	userID := auth.UserID(r.Context())
	lines, err := h.repo.Merge(ctx, userID, guest)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to merge cart")
		return
	}

	if h.events != nil {
		if err := h.events.PublishCartMerged(ctx, userID, lines); err != nil {
			log.Printf("publish CartMerged: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, lines)
}

func (h *CartHandler) writeMutationError(w http.ResponseWriter, err error) {
	if errors.Is(err, cart.ErrNegativeQty) || errors.Is(err, cart.ErrNonPositiveQty) || errors.Is(err, cart.ErrMissingItem) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to update cart")
}

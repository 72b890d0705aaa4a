package cart

import (
	"errors"

	"github.com/freshmart/storefront/internal/catalog"
)

// Line is one (item, quantity) pair in a cart. A cart holds at most one
// line per item id; a removed line is absent, never stored with qty 0.
type Line struct {
	ItemID int64 `json:"itemId"`
	Qty    int   `json:"qty"`
}

// DecoratedLine is a Line enriched with catalog details for display.
// Details stays nil when the item no longer exists in the catalog.
type DecoratedLine struct {
	ItemID  int64         `json:"itemId"`
	Qty     int           `json:"qty"`
	Details *catalog.Item `json:"details,omitempty"`
}

var (
	ErrNegativeQty    = errors.New("quantity must not be negative")
	ErrNonPositiveQty = errors.New("quantity must be positive")
	ErrMissingItem    = errors.New("itemId is required")
)

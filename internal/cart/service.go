package cart

import "github.com/freshmart/storefront/internal/catalog"

// MergeLines folds guest lines into server lines, summing quantities for
// items present in both. Server lines keep their position; guest-only items
// are appended in guest order. Order is not a correctness property of a
// cart, but a stable result keeps responses deterministic.
func MergeLines(server, guest []Line) []Line {
	merged := make([]Line, 0, len(server)+len(guest))
	index := make(map[int64]int, len(server)+len(guest))

	for _, l := range append(append([]Line{}, server...), guest...) {
		if l.Qty <= 0 {
			continue
		}
		if i, ok := index[l.ItemID]; ok {
			merged[i].Qty += l.Qty
			continue
		}
		index[l.ItemID] = len(merged)
		merged = append(merged, l)
	}

	return merged
}

// NormalizeLines validates raw lines from a client: negative quantities are
// rejected outright, zero-quantity lines are dropped, and duplicate item ids
// are collapsed into one line with summed quantity.
func NormalizeLines(lines []Line) ([]Line, error) {
	for _, l := range lines {
		if l.ItemID == 0 {
			return nil, ErrMissingItem
		}
		if l.Qty < 0 {
			return nil, ErrNegativeQty
		}
	}
	return MergeLines(nil, lines), nil
}

// Decorate pairs cart lines with catalog details. Items missing from the
// lookup yield a line with nil Details; they are never an error.
func Decorate(lines []Line, details map[int64]catalog.Item) []DecoratedLine {
	out := make([]DecoratedLine, 0, len(lines))
	for _, l := range lines {
		d := DecoratedLine{ItemID: l.ItemID, Qty: l.Qty}
		if it, ok := details[l.ItemID]; ok {
			d.Details = &it
		}
		out = append(out, d)
	}
	return out
}

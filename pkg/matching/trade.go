// Package matching implements the transactional heart of the engine:
// price-time matching with exact settlement against broker credit and
// shareholder positions, all-or-nothing rollback, call-auction
// reopening, and stop-order activation, all owned by the Security
// aggregate.
package matching

import "bourse/pkg/orderbook"

// Trade is an immutable settlement record. Buy and Sell are snapshots
// of the crossing orders taken before their quantities were decreased;
// rollback restores the resting side from exactly these copies.
type Trade struct {
	Security string
	Price    int64
	Quantity int64
	Buy      *orderbook.Order
	Sell     *orderbook.Order
}

// NewTrade snapshots both crossing orders. The caller fixes the trade
// price (resting order's price in continuous matching, the opening
// price during an auction uncross).
func NewTrade(security string, price, quantity int64, a, b *orderbook.Order) *Trade {
	t := &Trade{Security: security, Price: price, Quantity: quantity}
	if a.Side == orderbook.Buy {
		t.Buy, t.Sell = a.Snapshot(), b.Snapshot()
	} else {
		t.Buy, t.Sell = b.Snapshot(), a.Snapshot()
	}
	return t
}

// Value is the traded notional (price x quantity).
func (t *Trade) Value() int64 { return t.Price * t.Quantity }

package orderbook

import (
	"time"

	"bourse/pkg/ledger"
)

// Side of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Status tracks an order's lifecycle.
//
//	StatusNew      just built from a request, never rested
//	StatusQueued   resting in a book
//	StatusSnapshot immutable copy taken for a trade or for rollback
type Status int

const (
	StatusNew Status = iota
	StatusQueued
	StatusSnapshot
)

// Order is a limit order, optionally extended with an iceberg display
// slice (PeakSize > 0) or a stop trigger (StopPrice > 0). The two
// extensions are mutually exclusive, and a stop order never carries a
// minimum execution quantity; both rules are enforced upstream.
//
// Quantity is the remaining (unfilled) quantity and is mutated in
// place while the order rests. Price and quantities are int64 minor
// units, the same convention used throughout the ledger.
type Order struct {
	ID          int64
	Security    string // ISIN
	Side        Side
	Quantity    int64 // remaining, including any hidden iceberg part
	Price       int64
	Broker      *ledger.Broker
	Shareholder *ledger.Shareholder
	EntryTime   time.Time
	Seq         uint64 // arrival sequence, breaks price ties
	Status      Status

	// Minimum execution quantity: a NEW order must fill at least this
	// much immediately or the whole entry is rejected.
	MinExecQty int64

	// Iceberg extension.
	PeakSize     int64
	DisplayedQty int64

	// Stop-limit extension. While StopPrice > 0 the order is inactive
	// and holds no position in the live book.
	StopPrice int64
}

// IsIceberg reports whether the order carries a display slice.
func (o *Order) IsIceberg() bool { return o.PeakSize > 0 }

// IsStopOrder reports whether the order is an inactive stop-limit.
func (o *Order) IsStopOrder() bool { return o.StopPrice > 0 }

// Value is the full remaining notional (price x remaining quantity),
// the amount a buy order reserves against its broker while resting.
func (o *Order) Value() int64 { return o.Price * o.Quantity }

// VisibleQuantity is what the book exposes to the matching loop: the
// displayed slice for a resting iceberg, the full remainder otherwise.
func (o *Order) VisibleQuantity() int64 {
	if o.IsIceberg() {
		return o.DisplayedQty
	}
	return o.Quantity
}

// DecreaseQuantity consumes traded quantity. For icebergs the visible
// slice shrinks with the remainder and bottoms out at zero; Replenish
// restores it.
func (o *Order) DecreaseQuantity(amount int64) {
	o.Quantity -= amount
	if o.IsIceberg() {
		if amount >= o.DisplayedQty {
			o.DisplayedQty = 0
		} else {
			o.DisplayedQty -= amount
		}
	}
}

// Replenish resets an iceberg's display slice to min(peak, remaining).
// Called when the visible slice is fully consumed; the order then
// re-enters the book at the back of its price level.
func (o *Order) Replenish() {
	if o.IsIceberg() {
		o.DisplayedQty = min(o.PeakSize, o.Quantity)
	}
}

// MarkQueued transitions the order to resting state. Icebergs refresh
// their display slice on every (re-)entry into a book.
func (o *Order) MarkQueued() {
	o.Replenish()
	o.Status = StatusQueued
}

// Snapshot returns an immutable copy capturing the order's exact
// current state. Snapshots back trades and the rollback undo log; a
// restored snapshot re-enters the book via PutBack.
func (o *Order) Snapshot() *Order {
	c := *o
	c.Status = StatusSnapshot
	return &c
}

// Triggered reports whether a stop order's trigger condition holds at
// the given last trade price: BUY fires at or above the stop price,
// SELL at or below.
func (o *Order) Triggered(lastTradePrice int64) bool {
	if !o.IsStopOrder() {
		return false
	}
	if o.Side == Buy {
		return lastTradePrice >= o.StopPrice
	}
	return lastTradePrice <= o.StopPrice
}

// Activate converts a triggered stop order into a live limit order.
func (o *Order) Activate() {
	o.StopPrice = 0
	o.Status = StatusNew
}

// QueuesBefore reports whether o takes price priority over other in the
// active book: better price wins, arrival breaks ties (handled by the
// queue's stable insertion, so equal prices return false here).
func (o *Order) QueuesBefore(other *Order) bool {
	if o.Side == Buy {
		return o.Price > other.Price
	}
	return o.Price < other.Price
}

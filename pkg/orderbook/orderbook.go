package orderbook

import "bourse/pkg/ledger"

// OrderBook holds the resting interest of one security: a buy and a
// sell queue in price-time order, plus one staging queue per side for
// inactive stop orders. The book is single-writer; the owning security
// serializes all mutations.
type OrderBook struct {
	buy      *orderQueue
	sell     *orderQueue
	stopBuy  *stopQueue
	stopSell *stopQueue
}

func New() *OrderBook {
	return &OrderBook{
		buy:      &orderQueue{},
		sell:     &orderQueue{},
		stopBuy:  newStopQueue(Buy),
		stopSell: newStopQueue(Sell),
	}
}

func (b *OrderBook) active(side Side) *orderQueue {
	if side == Buy {
		return b.buy
	}
	return b.sell
}

func (b *OrderBook) inactive(side Side) *stopQueue {
	if side == Buy {
		return b.stopBuy
	}
	return b.stopSell
}

// Enqueue rests an order in the active book for its side, maintaining
// price-time order. The order becomes QUEUED and, if an iceberg, shows
// a fresh display slice.
func (b *OrderBook) Enqueue(o *Order) {
	o.MarkQueued()
	b.active(o.Side).insert(o)
}

// EnqueueInactive stages a stop order; it takes no live book position.
func (b *OrderBook) EnqueueInactive(o *Order) {
	b.inactive(o.Side).insert(o)
}

// FindByOrderID looks up a resting order in the active queue for side.
func (b *OrderBook) FindByOrderID(side Side, id int64) *Order {
	return b.active(side).find(id)
}

// FindInactiveByOrderID looks up a staged stop order.
func (b *OrderBook) FindInactiveByOrderID(side Side, id int64) *Order {
	return b.inactive(side).find(id)
}

// RemoveByOrderID removes the order from the active queue for side,
// falling through to the inactive queue so delete and update can
// target either staging area transparently.
func (b *OrderBook) RemoveByOrderID(side Side, id int64) bool {
	if b.active(side).remove(id) {
		return true
	}
	return b.inactive(side).remove(id)
}

// MatchWithFirst returns the best opposite-side order if it is
// marketable against newOrder, else nil. Does not mutate the book.
func (b *OrderBook) MatchWithFirst(newOrder *Order) *Order {
	best := b.active(newOrder.Side.Opposite()).first()
	if best == nil {
		return nil
	}
	if newOrder.Side == Buy && newOrder.Price >= best.Price {
		return best
	}
	if newOrder.Side == Sell && newOrder.Price <= best.Price {
		return best
	}
	return nil
}

// First returns the head of the active queue for side, or nil.
func (b *OrderBook) First(side Side) *Order {
	return b.active(side).first()
}

// RemoveFirst drops the head of the active queue for side.
func (b *OrderBook) RemoveFirst(side Side) {
	b.active(side).removeFirst()
}

// PutBack reinserts an order at the front of its side, bypassing
// normal price-time insertion. Only rollback uses this: undoing trades
// newest-first keeps each restored order ahead of those restored after
// it, which reproduces the pre-match head.
func (b *OrderBook) PutBack(o *Order) {
	o.Status = StatusQueued
	b.active(o.Side).prepend(o)
}

// RestoreOrder undoes a trade's effect on the resting side: whatever
// mutated instance still sits in the book is removed by ID and the
// pre-trade snapshot is put back at the front.
func (b *OrderBook) RestoreOrder(snapshot *Order) {
	b.active(snapshot.Side).remove(snapshot.ID)
	b.PutBack(snapshot)
}

// HasOrders reports whether the active queue for side is non-empty.
func (b *OrderBook) HasOrders(side Side) bool {
	return b.active(side).len() > 0
}

// TotalSellQuantityByShareholder sums the remaining quantity of the
// shareholder's resting sell orders, the figure position-sufficiency
// checks compare against the held quantity.
func (b *OrderBook) TotalSellQuantityByShareholder(sh *ledger.Shareholder) int64 {
	var total int64
	for _, o := range b.sell.orders {
		if o.Shareholder == sh {
			total += o.Quantity
		}
	}
	return total
}

// ActivationCandidate pops and returns one stop order whose trigger
// holds at lastTradePrice, or nil. The sell head is probed before the
// buy head; heads are pre-sorted by trigger closeness, so only heads
// are ever tested. Popping a buy stop releases the credit reserved
// when it was filed.
func (b *OrderBook) ActivationCandidate(lastTradePrice int64) *Order {
	if o := b.stopSell.head(); o != nil && o.Triggered(lastTradePrice) {
		return b.stopSell.popHead()
	}
	if o := b.stopBuy.head(); o != nil && o.Triggered(lastTradePrice) {
		o = b.stopBuy.popHead()
		o.Broker.IncreaseCredit(o.Value())
		return o
	}
	return nil
}

// BuyOrders returns the buy queue best-first. Read-only callers:
// auction equilibrium scan and the depth API.
func (b *OrderBook) BuyOrders() []*Order { return b.buy.orders }

// SellOrders returns the sell queue best-first.
func (b *OrderBook) SellOrders() []*Order { return b.sell.orders }

// InactiveCount returns the number of staged stop orders on side.
func (b *OrderBook) InactiveCount(side Side) int {
	return b.inactive(side).len()
}

package matching

import "bourse/pkg/orderbook"

// undoLog records the inverse of every committed book or ledger
// mutation during one matching call. Rollback applies the inverses in
// LIFO order, so the most recently matched resting order is restored
// first and lands ahead of orders restored after it; combined with
// OrderBook.PutBack's front insertion this reproduces the pre-call
// book head exactly.
type undoLog struct {
	ops []func()
}

func (u *undoLog) push(op func()) { u.ops = append(u.ops, op) }

func (u *undoLog) rollback() {
	for i := len(u.ops) - 1; i >= 0; i-- {
		u.ops[i]()
	}
	u.ops = nil
}

// Matcher crosses an incoming order against the opposite side of a
// book and settles the resulting trades against broker credit and
// shareholder positions. It is stateless; all state lives in the book
// and the ledgers reachable from the orders.
type Matcher struct{}

// Match runs the continuous matching loop: while the order has
// remaining quantity and the best opposite order is marketable, trade
// at the resting order's price. Buyer credit is debited and seller
// credit credited per trade, not batched. A buy that cannot afford a
// trade aborts the whole call and rolls back everything committed so
// far.
//
// The returned undo log covers every mutation the loop committed;
// Execute uses it for the MEQ and remainder-reservation gates.
func (m Matcher) Match(newOrder *orderbook.Order, book *orderbook.OrderBook) (*MatchResult, *undoLog) {
	undo := &undoLog{}
	var trades []*Trade

	for newOrder.Quantity > 0 {
		resting := book.MatchWithFirst(newOrder)
		if resting == nil {
			break
		}

		qty := min(newOrder.Quantity, resting.VisibleQuantity())
		trade := NewTrade(newOrder.Security, resting.Price, qty, newOrder, resting)

		if newOrder.Side == orderbook.Buy {
			if !newOrder.Broker.TryDebit(trade.Value()) {
				undo.rollback()
				return rejected(OutcomeNotEnoughCredit), nil
			}
			undo.push(func() { newOrder.Broker.IncreaseCredit(trade.Value()) })
		}
		trade.Sell.Broker.IncreaseCredit(trade.Value())
		undo.push(func() { trade.Sell.Broker.DecreaseCredit(trade.Value()) })

		// The pre-trade snapshot of the resting side backs the book undo.
		restingSnap := trade.Buy
		if resting.Side == orderbook.Sell {
			restingSnap = trade.Sell
		}
		undo.push(func() { book.RestoreOrder(restingSnap) })

		newOrder.DecreaseQuantity(qty)
		resting.DecreaseQuantity(qty)

		if resting.VisibleQuantity() == 0 {
			book.RemoveFirst(resting.Side)
			if resting.IsIceberg() {
				resting.Replenish()
				if resting.Quantity > 0 {
					// Re-enters at the back of its price level: a
					// replenished iceberg loses time priority.
					book.Enqueue(resting)
				}
			}
		}

		trades = append(trades, trade)
	}

	return executed(newOrder, trades), undo
}

// Execute wraps Match with the entry gates and final settlement:
//
//   - a NEW order must immediately fill at least its minimum execution
//     quantity or the entire entry (all its trades) is rolled back;
//   - a buy remainder must be affordable at full notional before it
//     rests, reserving that amount against the broker;
//   - committed trades move shareholder positions, the only place
//     positions change.
func (m Matcher) Execute(order *orderbook.Order, book *orderbook.OrderBook) *MatchResult {
	initialQty := order.Quantity
	wasNew := order.Status == orderbook.StatusNew

	result, undo := m.Match(order, book)
	if result.Outcome == OutcomeNotEnoughCredit {
		return result
	}

	if wasNew && initialQty-order.Quantity < order.MinExecQty {
		undo.rollback()
		return rejected(OutcomeNotMetMEQValue)
	}

	if order.Quantity > 0 {
		if order.Side == orderbook.Buy {
			if !order.Broker.TryDebit(order.Value()) {
				undo.rollback()
				return rejected(OutcomeNotEnoughCredit)
			}
		}
		book.Enqueue(order)
	}

	for _, t := range result.Trades {
		t.Buy.Shareholder.IncPosition(t.Security, t.Quantity)
		t.Sell.Shareholder.DecPosition(t.Security, t.Quantity)
	}

	return result
}

// Uncross executes the auction batch at the opening price. Both sides
// were already credit-reserved when they entered the book, so no check
// can fail here: the buyer is refunded the spread between its limit
// and the opening price, leaving its net outlay identical to a
// continuous trade at the opening price.
func (m Matcher) Uncross(book *orderbook.OrderBook, security string, openingPrice int64) []*Trade {
	var trades []*Trade

	for {
		buy := book.First(orderbook.Buy)
		sell := book.First(orderbook.Sell)
		if buy == nil || sell == nil || buy.Price < openingPrice || sell.Price > openingPrice {
			break
		}

		qty := min(buy.VisibleQuantity(), sell.VisibleQuantity())
		trade := NewTrade(security, openingPrice, qty, buy, sell)

		buy.Broker.IncreaseCredit((buy.Price - openingPrice) * qty)
		sell.Broker.IncreaseCredit(trade.Value())
		trade.Buy.Shareholder.IncPosition(security, qty)
		trade.Sell.Shareholder.DecPosition(security, qty)

		buy.DecreaseQuantity(qty)
		sell.DecreaseQuantity(qty)
		m.retireOrReplenish(book, buy)
		m.retireOrReplenish(book, sell)

		trades = append(trades, trade)
	}

	return trades
}

func (m Matcher) retireOrReplenish(book *orderbook.OrderBook, o *orderbook.Order) {
	if o.VisibleQuantity() > 0 {
		return
	}
	book.RemoveFirst(o.Side)
	if o.IsIceberg() {
		o.Replenish()
		if o.Quantity > 0 {
			book.Enqueue(o)
		}
	}
}

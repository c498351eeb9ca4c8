package matching

import (
	"bourse/pkg/ledger"
	"bourse/pkg/orderbook"
	"bourse/pkg/protocol"
)

// Security is the instrument aggregate: it owns one order book, the
// current matching state and the last trade price, and orchestrates
// every order flow. All methods must be called from a single goroutine
// per security; an operation either fully commits or leaves book and
// ledgers byte-identical to their pre-call state.
type Security struct {
	ISIN   string
	Symbol string

	book    *orderbook.OrderBook
	matcher Matcher
	state   protocol.MatchingState

	lastTradePrice int64
	seq            uint64
}

// NewSecurity creates a continuous-matching security with an empty
// book. lastTradePrice seeds auction tie-breaks and stop triggers
// until the first trade.
func NewSecurity(isin, symbol string, lastTradePrice int64) *Security {
	return &Security{
		ISIN:           isin,
		Symbol:         symbol,
		book:           orderbook.New(),
		state:          protocol.Continuous,
		lastTradePrice: lastTradePrice,
	}
}

func (s *Security) Book() *orderbook.OrderBook    { return s.book }
func (s *Security) State() protocol.MatchingState { return s.state }
func (s *Security) LastTradePrice() int64         { return s.lastTradePrice }

// NewOrder runs the entry flow for an EnterOrder of type NEW: seller
// position sufficiency first, auction-mode restrictions next, neither
// touching the book; then the order is built and submitted.
func (s *Security) NewOrder(rq protocol.EnterOrder, broker *ledger.Broker, shareholder *ledger.Shareholder) *MatchResult {
	if rq.Side == orderbook.Sell &&
		!shareholder.HasEnoughPositions(s.ISIN, s.book.TotalSellQuantityByShareholder(shareholder)+rq.Quantity) {
		return rejected(OutcomeNotEnoughPositions)
	}
	if s.state == protocol.Auction {
		if rq.StopPrice > 0 {
			return rejected(OutcomeStopLimitNotAllowedInAuction)
		}
		if rq.MinExecQty > 0 {
			return rejected(OutcomeMEQNotAllowedInAuction)
		}
	}

	s.seq++
	o := &orderbook.Order{
		ID:          rq.OrderID,
		Security:    s.ISIN,
		Side:        rq.Side,
		Quantity:    rq.Quantity,
		Price:       rq.Price,
		Broker:      broker,
		Shareholder: shareholder,
		EntryTime:   rq.EntryTime,
		Seq:         s.seq,
		Status:      orderbook.StatusNew,
		MinExecQty:  rq.MinExecQty,
		PeakSize:    rq.PeakSize,
		StopPrice:   rq.StopPrice,
	}
	o.Replenish()

	return s.Submit(o)
}

// Submit routes an order through the path the current state demands.
// Activated stop orders and update re-submissions come through here as
// well as fresh entries.
func (s *Security) Submit(o *orderbook.Order) *MatchResult {
	if o.IsStopOrder() {
		// Checked before the auction branch: an order still carrying a
		// trigger must never rest in the live book, so a stop re-entry
		// during auction (a losing-priority update of a parked stop) is
		// rejected outright.
		if s.state == protocol.Auction {
			return rejected(OutcomeStopLimitNotAllowedInAuction)
		}
		// Park it; a buy stop reserves its notional while staged. If
		// the trigger already holds, the activation sweep that follows
		// every operation pops it right back out.
		if o.Side == orderbook.Buy && !o.Broker.TryDebit(o.Value()) {
			return rejected(OutcomeNotEnoughCredit)
		}
		s.book.EnqueueInactive(o)
		return &MatchResult{Outcome: OutcomeNotMetLastTradePrice, Remainder: o}
	}

	if s.state == protocol.Auction {
		return s.enqueueInAuction(o)
	}

	result := s.matcher.Execute(o, s.book)
	if result.HasTrades() {
		s.lastTradePrice = result.LastTradePrice()
	}
	return result
}

// enqueueInAuction accumulates an order without matching. Buy orders
// reserve their full notional exactly as they would when resting in
// continuous mode.
func (s *Security) enqueueInAuction(o *orderbook.Order) *MatchResult {
	if o.Side == orderbook.Buy && !o.Broker.TryDebit(o.Value()) {
		return rejected(OutcomeNotEnoughCredit)
	}
	s.book.Enqueue(o)
	return &MatchResult{Outcome: OutcomeExecutedInAuction, Remainder: o}
}

// UpdateOrder modifies a resting or stop-parked order. Updates that
// keep priority mutate in place; updates that lose it re-submit the
// order as if new and, on any failure, restore the original snapshot
// and its credit reservation so the update attempt leaves no trace.
func (s *Security) UpdateOrder(rq protocol.EnterOrder) *MatchResult {
	var o *orderbook.Order
	if rq.StopPrice > 0 {
		if o = s.book.FindInactiveByOrderID(rq.Side, rq.OrderID); o == nil {
			return rejected(OutcomeStopLimitOrderIDNotFound)
		}
	} else {
		if o = s.book.FindByOrderID(rq.Side, rq.OrderID); o == nil {
			return rejected(OutcomeOrderIDNotFound)
		}
	}

	if (rq.PeakSize > 0) != o.IsIceberg() {
		return rejected(OutcomeIcebergChangeForbidden)
	}
	if rq.MinExecQty != o.MinExecQty {
		return rejected(OutcomeMEQChangeForbidden)
	}
	if rq.Side == orderbook.Sell &&
		!o.Shareholder.HasEnoughPositions(s.ISIN,
			s.book.TotalSellQuantityByShareholder(o.Shareholder)-o.Quantity+rq.Quantity) {
		return rejected(OutcomeNotEnoughPositions)
	}

	losesPriority := rq.Quantity > o.Quantity ||
		rq.Price != o.Price ||
		(o.IsIceberg() && rq.PeakSize > o.PeakSize) ||
		(o.IsStopOrder() && rq.StopPrice != o.StopPrice)

	if rq.Side == orderbook.Buy {
		o.Broker.IncreaseCredit(o.Value())
	}

	if !losesPriority {
		applyUpdate(o, rq)
		if rq.Side == orderbook.Buy {
			// Never more than the refund above: priority was kept, so
			// quantity did not grow and the price is unchanged.
			o.Broker.DecreaseCredit(o.Value())
		}
		return executed(o, nil)
	}

	original := o.Snapshot()
	s.book.RemoveByOrderID(rq.Side, rq.OrderID)
	applyUpdate(o, rq)

	result := s.Submit(o)
	if !result.Outcome.IsSuccess() {
		s.restoreOriginal(original)
	}
	if result.HasTrades() {
		s.lastTradePrice = result.LastTradePrice()
	}
	return result
}

func applyUpdate(o *orderbook.Order, rq protocol.EnterOrder) {
	o.Quantity = rq.Quantity
	o.Price = rq.Price
	o.PeakSize = rq.PeakSize
	if o.StopPrice > 0 {
		o.StopPrice = rq.StopPrice
	}
	o.Replenish()
}

// restoreOriginal undoes a failed losing-priority update: the snapshot
// re-enters whichever book held it and a buy re-reserves its original
// notional.
func (s *Security) restoreOriginal(original *orderbook.Order) {
	if original.IsStopOrder() {
		original.Status = orderbook.StatusNew
		s.book.EnqueueInactive(original)
	} else {
		s.book.Enqueue(original)
	}
	if original.Side == orderbook.Buy {
		original.Broker.DecreaseCredit(original.Value())
	}
}

// DeleteOrder removes an order from whichever book holds it. A deleted
// buy, active or stop-parked, gets its full reserved notional back.
func (s *Security) DeleteOrder(rq protocol.DeleteOrder) *MatchResult {
	o := s.book.FindByOrderID(rq.Side, rq.OrderID)
	if o == nil {
		o = s.book.FindInactiveByOrderID(rq.Side, rq.OrderID)
	}
	if o == nil {
		return rejected(OutcomeOrderIDNotFound)
	}
	if o.Side == orderbook.Buy {
		o.Broker.IncreaseCredit(o.Value())
	}
	s.book.RemoveByOrderID(rq.Side, rq.OrderID)
	return &MatchResult{Outcome: OutcomeDeleted, Remainder: o}
}

// StateChange reports one matching-state transition, including the
// equilibrium executed when leaving auction.
type StateChange struct {
	From, To protocol.MatchingState
	Opening  *OpeningState
	Trades   []*Trade
}

// ChangeMatchingState drives the two-state machine:
//
//	CONTINUOUS -> AUCTION   stop immediate matching, begin accumulating
//	AUCTION    -> AUCTION   recompute equilibrium, execute the batch
//	AUCTION    -> CONTINUOUS execute the equilibrium once, then resume
//
// The caller follows every transition with the stop activation sweep.
func (s *Security) ChangeMatchingState(target protocol.MatchingState) *StateChange {
	change := &StateChange{From: s.state, To: target}

	if s.state == protocol.Auction {
		opening := computeOpening(s.book, s.lastTradePrice)
		change.Opening = &opening
		if opening.TradableQuantity > 0 {
			change.Trades = s.matcher.Uncross(s.book, s.ISIN, opening.Price)
			s.lastTradePrice = opening.Price
		}
	}

	s.state = target
	return change
}

// IndicativeOpening exposes the would-be clearing price while the
// security accumulates auction interest.
func (s *Security) IndicativeOpening() OpeningState {
	return computeOpening(s.book, s.lastTradePrice)
}

// ActivateNext pops the next stop order whose trigger holds at the
// current last trade price and converts it to a live order, or returns
// nil. Popping a buy stop released its staged reservation; the caller
// re-submits the order, which re-reserves or pays as usual.
func (s *Security) ActivateNext() *orderbook.Order {
	o := s.book.ActivationCandidate(s.lastTradePrice)
	if o == nil {
		return nil
	}
	o.Activate()
	return o
}

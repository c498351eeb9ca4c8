// Package engine dispatches typed requests to security aggregates.
// Each security gets its own goroutine and request queue, so one
// matching operation runs to completion before the next begins for
// that security, while different securities match concurrently.
// Brokers, shareholders and securities are resolved from read-only
// lookup tables fixed at construction.
package engine

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bourse/pkg/ledger"
	"bourse/pkg/matching"
	"bourse/pkg/protocol"
)

// DefaultQueueDepth bounds each security's pending request queue.
const DefaultQueueDepth = 256

type task struct {
	run   func() []protocol.Event
	reply chan []protocol.Event
}

// Engine owns the security loops and fans resulting events out to
// subscribers (websocket feed, trade persister).
type Engine struct {
	log *zap.SugaredLogger

	securities   map[string]*matching.Security
	brokers      map[int64]*ledger.Broker
	shareholders map[int64]*ledger.Shareholder

	loops map[string]chan task
	wg    sync.WaitGroup

	closeMu sync.RWMutex
	closed  bool

	subMu sync.Mutex
	subs  []chan protocol.Event
}

// New wires the engine and starts one loop per security.
func New(
	log *zap.SugaredLogger,
	securities []*matching.Security,
	brokers []*ledger.Broker,
	shareholders []*ledger.Shareholder,
	queueDepth int,
) *Engine {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	e := &Engine{
		log:          log,
		securities:   make(map[string]*matching.Security, len(securities)),
		brokers:      make(map[int64]*ledger.Broker, len(brokers)),
		shareholders: make(map[int64]*ledger.Shareholder, len(shareholders)),
		loops:        make(map[string]chan task, len(securities)),
	}
	for _, b := range brokers {
		e.brokers[b.ID] = b
	}
	for _, sh := range shareholders {
		e.shareholders[sh.ID] = sh
	}
	for _, sec := range securities {
		e.securities[sec.ISIN] = sec
		ch := make(chan task, queueDepth)
		e.loops[sec.ISIN] = ch
		e.wg.Add(1)
		go e.loop(ch)
	}
	return e
}

func (e *Engine) loop(ch chan task) {
	defer e.wg.Done()
	for t := range ch {
		events := t.run()
		e.publish(events)
		if t.reply != nil {
			t.reply <- events
		}
	}
}

// Close stops all security loops after draining queued requests and
// closes subscriber channels. Safe to call more than once; requests
// arriving after Close are rejected.
func (e *Engine) Close() {
	e.closeMu.Lock()
	if e.closed {
		e.closeMu.Unlock()
		return
	}
	e.closed = true
	e.closeMu.Unlock()

	for _, ch := range e.loops {
		close(ch)
	}
	e.wg.Wait()
	e.subMu.Lock()
	for _, s := range e.subs {
		close(s)
	}
	e.subs = nil
	e.subMu.Unlock()
}

// Subscribe returns a channel carrying every event the engine emits.
// Slow subscribers drop events rather than stall matching.
func (e *Engine) Subscribe(buf int) <-chan protocol.Event {
	ch := make(chan protocol.Event, buf)
	e.subMu.Lock()
	e.subs = append(e.subs, ch)
	e.subMu.Unlock()
	return ch
}

func (e *Engine) publish(events []protocol.Event) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for _, ev := range events {
		for _, s := range e.subs {
			select {
			case s <- ev:
			default:
				e.log.Warnw("subscriber_lagging_dropping_event", "kind", ev.Kind())
			}
		}
	}
}

// Security returns the aggregate for an ISIN, for read-only queries.
func (e *Engine) Security(isin string) (*matching.Security, bool) {
	sec, ok := e.securities[isin]
	return sec, ok
}

// Securities returns every traded security.
func (e *Engine) Securities() []*matching.Security {
	out := make([]*matching.Security, 0, len(e.securities))
	for _, sec := range e.securities {
		out = append(out, sec)
	}
	return out
}

// Broker returns a broker by ID.
func (e *Engine) Broker(id int64) (*ledger.Broker, bool) {
	b, ok := e.brokers[id]
	return b, ok
}

// Shareholder returns a shareholder by ID.
func (e *Engine) Shareholder(id int64) (*ledger.Shareholder, bool) {
	sh, ok := e.shareholders[id]
	return sh, ok
}

// submit runs fn on the security's loop and waits for its events. The
// read lock spans the send so a loop channel can never be closed
// between the shutdown check and the enqueue.
func (e *Engine) submit(isin string, fn func() []protocol.Event) []protocol.Event {
	ch, ok := e.loops[isin]
	if !ok {
		return []protocol.Event{protocol.OrderRejected{
			Reasons: []protocol.RejectReason{protocol.ReasonSecurityNotFound},
		}}
	}

	e.closeMu.RLock()
	if e.closed {
		e.closeMu.RUnlock()
		return []protocol.Event{protocol.OrderRejected{
			Reasons: []protocol.RejectReason{protocol.ReasonEngineClosed},
		}}
	}
	t := task{run: fn, reply: make(chan []protocol.Event, 1)}
	ch <- t
	e.closeMu.RUnlock()

	return <-t.reply
}

// EnterOrder processes a NEW or UPDATE order request and returns the
// resulting events in emission order.
func (e *Engine) EnterOrder(rq protocol.EnterOrder) []protocol.Event {
	return e.submit(rq.Security, func() []protocol.Event {
		return e.handleEnterOrder(rq)
	})
}

// DeleteOrder processes a cancel request.
func (e *Engine) DeleteOrder(rq protocol.DeleteOrder) []protocol.Event {
	return e.submit(rq.Security, func() []protocol.Event {
		return e.handleDeleteOrder(rq)
	})
}

// ChangeMatchingState moves a security between continuous and auction.
func (e *Engine) ChangeMatchingState(rq protocol.ChangeMatchingState) []protocol.Event {
	return e.submit(rq.Security, func() []protocol.Event {
		return e.handleChangeState(rq)
	})
}

func (e *Engine) handleEnterOrder(rq protocol.EnterOrder) []protocol.Event {
	sec := e.securities[rq.Security]

	var result *matching.MatchResult
	if rq.Type == protocol.EntryUpdate {
		result = sec.UpdateOrder(rq)
	} else {
		broker, ok := e.brokers[rq.BrokerID]
		if !ok {
			return reject(rq.RequestID, rq.OrderID, protocol.ReasonBrokerNotFound)
		}
		shareholder, ok := e.shareholders[rq.ShareholderID]
		if !ok {
			return reject(rq.RequestID, rq.OrderID, protocol.ReasonShareholderNotFound)
		}
		result = sec.NewOrder(rq, broker, shareholder)
	}

	events := e.resultEvents(rq, result)
	if result.Outcome.IsSuccess() && sec.State() == protocol.Auction {
		opening := sec.IndicativeOpening()
		events = append(events, protocol.OpeningPrice{
			Security:         sec.ISIN,
			Price:            opening.Price,
			TradableQuantity: opening.TradableQuantity,
		})
	}
	return append(events, e.sweepActivations(sec)...)
}

func (e *Engine) handleDeleteOrder(rq protocol.DeleteOrder) []protocol.Event {
	sec := e.securities[rq.Security]
	result := sec.DeleteOrder(rq)
	if result.Outcome != matching.OutcomeDeleted {
		return reject(rq.RequestID, rq.OrderID, outcomeReason(result.Outcome))
	}
	return []protocol.Event{protocol.OrderDeleted{RequestID: rq.RequestID, OrderID: rq.OrderID}}
}

func (e *Engine) handleChangeState(rq protocol.ChangeMatchingState) []protocol.Event {
	sec := e.securities[rq.Security]
	change := sec.ChangeMatchingState(rq.Target)

	events := []protocol.Event{protocol.SecurityStateChanged{Security: sec.ISIN, State: rq.Target}}
	if change.Opening != nil {
		events = append(events, protocol.OpeningPrice{
			Security:         sec.ISIN,
			Price:            change.Opening.Price,
			TradableQuantity: change.Opening.TradableQuantity,
		})
		for _, t := range change.Trades {
			events = append(events, tradeRecord(t))
		}
	} else if rq.Target == protocol.Auction {
		// Entering auction from continuous: nothing uncrosses, but the
		// indicative equilibrium is still reported.
		opening := sec.IndicativeOpening()
		events = append(events, protocol.OpeningPrice{
			Security:         sec.ISIN,
			Price:            opening.Price,
			TradableQuantity: opening.TradableQuantity,
		})
	}
	return append(events, e.sweepActivations(sec)...)
}

// sweepActivations runs the stop-order cascade: pop each triggered
// stop order, submit it live, and keep going until no head qualifies.
// A single activation failing on credit stops the cascade; everything
// committed before it stays committed.
func (e *Engine) sweepActivations(sec *matching.Security) []protocol.Event {
	var events []protocol.Event
	for {
		o := sec.ActivateNext()
		if o == nil {
			return events
		}
		events = append(events, protocol.OrderActivated{OrderID: o.ID})

		result := sec.Submit(o)
		if result.Outcome == matching.OutcomeNotEnoughCredit {
			events = append(events, protocol.OrderRejected{
				OrderID: o.ID,
				Reasons: []protocol.RejectReason{protocol.ReasonNotEnoughCredit},
			})
			return events
		}
		if result.HasTrades() {
			events = append(events, executedEvents(0, o.ID, result.Trades)...)
		}
	}
}

func (e *Engine) resultEvents(rq protocol.EnterOrder, result *matching.MatchResult) []protocol.Event {
	if !result.Outcome.IsSuccess() {
		return reject(rq.RequestID, rq.OrderID, outcomeReason(result.Outcome))
	}

	var events []protocol.Event
	if rq.Type == protocol.EntryUpdate {
		events = append(events, protocol.OrderUpdated{RequestID: rq.RequestID, OrderID: rq.OrderID})
	} else {
		events = append(events, protocol.OrderAccepted{RequestID: rq.RequestID, OrderID: rq.OrderID})
	}
	if result.HasTrades() {
		events = append(events, executedEvents(rq.RequestID, rq.OrderID, result.Trades)...)
	}
	return events
}

// executedEvents builds the OrderExecuted report plus one TradeRecord
// per settled trade.
func executedEvents(requestID, orderID int64, trades []*matching.Trade) []protocol.Event {
	records := make([]protocol.TradeRecord, len(trades))
	for i, t := range trades {
		records[i] = tradeRecord(t)
	}
	events := []protocol.Event{protocol.OrderExecuted{
		RequestID: requestID,
		OrderID:   orderID,
		Trades:    records,
	}}
	for _, r := range records {
		events = append(events, r)
	}
	return events
}

func tradeRecord(t *matching.Trade) protocol.TradeRecord {
	return protocol.TradeRecord{
		ID:          uuid.NewString(),
		Security:    t.Security,
		Price:       t.Price,
		Quantity:    t.Quantity,
		BuyOrderID:  t.Buy.ID,
		SellOrderID: t.Sell.ID,
	}
}

func reject(requestID, orderID int64, reason protocol.RejectReason) []protocol.Event {
	return []protocol.Event{protocol.OrderRejected{
		RequestID: requestID,
		OrderID:   orderID,
		Reasons:   []protocol.RejectReason{reason},
	}}
}

func outcomeReason(o matching.Outcome) protocol.RejectReason {
	switch o {
	case matching.OutcomeNotEnoughCredit:
		return protocol.ReasonNotEnoughCredit
	case matching.OutcomeNotEnoughPositions:
		return protocol.ReasonNotEnoughPositions
	case matching.OutcomeNotMetMEQValue:
		return protocol.ReasonNotMetMEQValue
	case matching.OutcomeOrderIDNotFound:
		return protocol.ReasonOrderIDNotFound
	case matching.OutcomeStopLimitOrderIDNotFound:
		return protocol.ReasonStopLimitOrderIDNotFound
	case matching.OutcomeStopLimitNotAllowedInAuction:
		return protocol.ReasonStopLimitNotInAuction
	case matching.OutcomeMEQNotAllowedInAuction:
		return protocol.ReasonMEQNotInAuction
	case matching.OutcomeIcebergChangeForbidden:
		return protocol.ReasonCannotChangeIceberg
	case matching.OutcomeMEQChangeForbidden:
		return protocol.ReasonCannotChangeMEQ
	default:
		return protocol.ReasonOrderIDNotFound
	}
}

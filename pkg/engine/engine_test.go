package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bourse/pkg/ledger"
	"bourse/pkg/matching"
	"bourse/pkg/orderbook"
	"bourse/pkg/protocol"
)

const testISIN = "IRO1MAPN0001"

type fixture struct {
	eng    *Engine
	buyer  *ledger.Broker
	seller *ledger.Broker
	buySh  *ledger.Shareholder
	sellSh *ledger.Shareholder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		buyer:  ledger.NewBroker(1, "Alpha", 100_000_000),
		seller: ledger.NewBroker(2, "Beta", 100_000_000),
		buySh:  ledger.NewShareholder(1, "Fund A"),
		sellSh: ledger.NewShareholder(2, "Fund B"),
	}
	f.sellSh.SetPosition(testISIN, 10_000)
	f.eng = New(
		zap.NewNop().Sugar(),
		[]*matching.Security{matching.NewSecurity(testISIN, "MAPN", 15000)},
		[]*ledger.Broker{f.buyer, f.seller},
		[]*ledger.Shareholder{f.buySh, f.sellSh},
		0,
	)
	t.Cleanup(f.eng.Close)
	return f
}

func enter(id int64, side orderbook.Side, qty, price int64) protocol.EnterOrder {
	brokerID, shareholderID := int64(1), int64(1)
	if side == orderbook.Sell {
		brokerID, shareholderID = 2, 2
	}
	return protocol.EnterOrder{
		RequestID:     id,
		Security:      testISIN,
		OrderID:       id,
		Type:          protocol.EntryNew,
		Side:          side,
		Quantity:      qty,
		Price:         price,
		BrokerID:      brokerID,
		ShareholderID: shareholderID,
	}
}

func kinds(events []protocol.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Kind()
	}
	return out
}

func TestEnterOrderAcceptedAndRested(t *testing.T) {
	f := newFixture(t)
	events := f.eng.EnterOrder(enter(1, orderbook.Buy, 100, 15500))
	assert.Equal(t, []string{"OrderAccepted"}, kinds(events))
}

func TestEnterOrderTradeEventFlow(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, []string{"OrderAccepted"},
		kinds(f.eng.EnterOrder(enter(1, orderbook.Sell, 100, 15500))))

	events := f.eng.EnterOrder(enter(2, orderbook.Buy, 100, 15500))
	require.Equal(t, []string{"OrderAccepted", "OrderExecuted", "TradeRecord"}, kinds(events))

	executed := events[1].(protocol.OrderExecuted)
	require.Len(t, executed.Trades, 1)
	assert.Equal(t, int64(15500), executed.Trades[0].Price)
	assert.Equal(t, int64(100), executed.Trades[0].Quantity)
	assert.Equal(t, int64(2), executed.Trades[0].BuyOrderID)
	assert.Equal(t, int64(1), executed.Trades[0].SellOrderID)
	assert.NotEmpty(t, executed.Trades[0].ID)
}

func TestEnterOrderUnknownSecurity(t *testing.T) {
	f := newFixture(t)
	rq := enter(1, orderbook.Buy, 100, 15500)
	rq.Security = "IRO1NONE0001"

	events := f.eng.EnterOrder(rq)
	require.Len(t, events, 1)
	rej := events[0].(protocol.OrderRejected)
	assert.Equal(t, []protocol.RejectReason{protocol.ReasonSecurityNotFound}, rej.Reasons)
}

func TestEnterOrderUnknownParties(t *testing.T) {
	f := newFixture(t)

	rq := enter(1, orderbook.Buy, 100, 15500)
	rq.BrokerID = 99
	rej := f.eng.EnterOrder(rq)[0].(protocol.OrderRejected)
	assert.Equal(t, []protocol.RejectReason{protocol.ReasonBrokerNotFound}, rej.Reasons)

	rq = enter(2, orderbook.Buy, 100, 15500)
	rq.ShareholderID = 99
	rej = f.eng.EnterOrder(rq)[0].(protocol.OrderRejected)
	assert.Equal(t, []protocol.RejectReason{protocol.ReasonShareholderNotFound}, rej.Reasons)
}

func TestUpdateAndDeleteEvents(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, []string{"OrderAccepted"},
		kinds(f.eng.EnterOrder(enter(1, orderbook.Buy, 100, 15500))))

	up := enter(1, orderbook.Buy, 80, 15500)
	up.Type = protocol.EntryUpdate
	assert.Equal(t, []string{"OrderUpdated"}, kinds(f.eng.EnterOrder(up)))

	events := f.eng.DeleteOrder(protocol.DeleteOrder{
		RequestID: 9, Security: testISIN, Side: orderbook.Buy, OrderID: 1,
	})
	assert.Equal(t, []string{"OrderDeleted"}, kinds(events))

	events = f.eng.DeleteOrder(protocol.DeleteOrder{
		RequestID: 10, Security: testISIN, Side: orderbook.Buy, OrderID: 1,
	})
	require.Len(t, events, 1)
	rej := events[0].(protocol.OrderRejected)
	assert.Equal(t, []protocol.RejectReason{protocol.ReasonOrderIDNotFound}, rej.Reasons)
}

func TestStopActivationCascade(t *testing.T) {
	f := newFixture(t)

	// Park a buy stop above the market.
	rq := enter(1, orderbook.Buy, 10, 16000)
	rq.StopPrice = 15600
	require.Equal(t, []string{"OrderAccepted"}, kinds(f.eng.EnterOrder(rq)))

	// The trade that lifts the last trade price to the trigger pops the
	// stop within the same operation.
	require.Equal(t, []string{"OrderAccepted"},
		kinds(f.eng.EnterOrder(enter(2, orderbook.Sell, 100, 15600))))
	events := f.eng.EnterOrder(enter(3, orderbook.Buy, 100, 15600))
	assert.Equal(t,
		[]string{"OrderAccepted", "OrderExecuted", "TradeRecord", "OrderActivated"},
		kinds(events))

	activated := events[3].(protocol.OrderActivated)
	assert.Equal(t, int64(1), activated.OrderID)

	sec, _ := f.eng.Security(testISIN)
	assert.Equal(t, 0, sec.Book().InactiveCount(orderbook.Buy))
	require.NotNil(t, sec.Book().FindByOrderID(orderbook.Buy, 1))
}

func TestAuctionEntryEmitsIndicativeOpening(t *testing.T) {
	f := newFixture(t)
	f.eng.ChangeMatchingState(protocol.ChangeMatchingState{Security: testISIN, Target: protocol.Auction})

	require.Equal(t, []string{"OrderAccepted", "OpeningPrice"},
		kinds(f.eng.EnterOrder(enter(1, orderbook.Buy, 100, 15500))))

	events := f.eng.EnterOrder(enter(2, orderbook.Sell, 60, 15500))
	require.Equal(t, []string{"OrderAccepted", "OpeningPrice"}, kinds(events))
	opening := events[1].(protocol.OpeningPrice)
	assert.Equal(t, int64(15500), opening.Price)
	assert.Equal(t, int64(60), opening.TradableQuantity)
}

func TestChangeStateUncrossEvents(t *testing.T) {
	f := newFixture(t)
	events := f.eng.ChangeMatchingState(protocol.ChangeMatchingState{Security: testISIN, Target: protocol.Auction})
	require.Equal(t, []string{"SecurityStateChanged", "OpeningPrice"}, kinds(events))
	assert.Equal(t, int64(0), events[1].(protocol.OpeningPrice).TradableQuantity)

	f.eng.EnterOrder(enter(1, orderbook.Buy, 100, 15500))
	f.eng.EnterOrder(enter(2, orderbook.Sell, 100, 15500))

	events = f.eng.ChangeMatchingState(protocol.ChangeMatchingState{Security: testISIN, Target: protocol.Continuous})
	require.Equal(t, []string{"SecurityStateChanged", "OpeningPrice", "TradeRecord"}, kinds(events))

	rec := events[2].(protocol.TradeRecord)
	assert.Equal(t, int64(15500), rec.Price)
	assert.Equal(t, int64(100), rec.Quantity)

	sec, _ := f.eng.Security(testISIN)
	assert.Equal(t, protocol.Continuous, sec.State())
	assert.Equal(t, int64(15500), sec.LastTradePrice())
}

func TestRequestsAfterCloseAreRejected(t *testing.T) {
	f := newFixture(t)
	f.eng.Close()

	events := f.eng.EnterOrder(enter(1, orderbook.Buy, 100, 15500))
	require.Len(t, events, 1)
	rej := events[0].(protocol.OrderRejected)
	assert.Equal(t, []protocol.RejectReason{protocol.ReasonEngineClosed}, rej.Reasons)

	events = f.eng.DeleteOrder(protocol.DeleteOrder{Security: testISIN, Side: orderbook.Buy, OrderID: 1})
	require.Len(t, events, 1)
	assert.Equal(t, []protocol.RejectReason{protocol.ReasonEngineClosed},
		events[0].(protocol.OrderRejected).Reasons)

	// Cleanup closes again; Close is idempotent.
}

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	f := newFixture(t)
	sub := f.eng.Subscribe(16)

	f.eng.EnterOrder(enter(1, orderbook.Sell, 100, 15500))
	f.eng.EnterOrder(enter(2, orderbook.Buy, 100, 15500))

	var got []string
	for i := 0; i < 4; i++ {
		got = append(got, (<-sub).Kind())
	}
	assert.Equal(t, []string{"OrderAccepted", "OrderAccepted", "OrderExecuted", "TradeRecord"}, got)
}

package api

// Request and response shapes for the REST gateway. Prices and values
// are integral minor currency units; quantities are whole shares.

// ==============================
// REST Request Types
// ==============================

// EnterOrderRequest is the payload for POST /api/v1/orders. Type "NEW"
// enters an order, "UPDATE" modifies a resting or stop-parked one.
type EnterOrderRequest struct {
	RequestID     int64  `json:"requestId"`
	Security      string `json:"security"` // ISIN
	OrderID       int64  `json:"orderId"`
	Type          string `json:"type"` // "NEW" or "UPDATE"
	Side          string `json:"side"` // "BUY" or "SELL"
	Quantity      int64  `json:"quantity"`
	Price         int64  `json:"price"`
	BrokerID      int64  `json:"brokerId"`
	ShareholderID int64  `json:"shareholderId"`
	PeakSize      int64  `json:"peakSize,omitempty"`   // > 0 makes an iceberg
	MinExecQty    int64  `json:"minExecQty,omitempty"` // minimum execution quantity
	StopPrice     int64  `json:"stopPrice,omitempty"`  // > 0 makes a stop-limit
}

// DeleteOrderRequest is the payload for POST /api/v1/orders/delete.
type DeleteOrderRequest struct {
	RequestID int64  `json:"requestId"`
	Security  string `json:"security"`
	Side      string `json:"side"`
	OrderID   int64  `json:"orderId"`
}

// ChangeStateRequest is the payload for POST /api/v1/securities/{isin}/state.
type ChangeStateRequest struct {
	Target string `json:"target"` // "CONTINUOUS" or "AUCTION"
}

// ==============================
// REST Response Types
// ==============================

// EventsResponse carries the events an operation produced, in emission
// order, each tagged with its kind.
type EventsResponse struct {
	Events []EventEnvelope `json:"events"`
}

// EventEnvelope tags an event payload with its concrete kind.
type EventEnvelope struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

// BookEntry is one resting order as depth consumers see it: icebergs
// show only their displayed slice.
type BookEntry struct {
	OrderID  int64 `json:"orderId"`
	Quantity int64 `json:"quantity"`
	Price    int64 `json:"price"`
}

// BookSnapshot is the visible book of one security, bids best-first
// and asks best-first.
type BookSnapshot struct {
	Security  string      `json:"security"`
	State     string      `json:"state"`
	Bids      []BookEntry `json:"bids"`
	Asks      []BookEntry `json:"asks"`
	Timestamp int64       `json:"timestamp"` // Unix milliseconds
}

// SecurityInfo is the per-instrument summary.
type SecurityInfo struct {
	ISIN           string `json:"isin"`
	Symbol         string `json:"symbol"`
	State          string `json:"state"`
	LastTradePrice int64  `json:"lastTradePrice"`
}

// OpeningInfo is the indicative auction equilibrium.
type OpeningInfo struct {
	Security         string `json:"security"`
	Price            int64  `json:"price"`
	TradableQuantity int64  `json:"tradableQuantity"`
}

// BrokerInfo reports a broker's remaining credit.
type BrokerInfo struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Credit int64  `json:"credit"`
}

// ShareholderInfo reports a shareholder's holdings per ISIN.
type ShareholderInfo struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Positions map[string]int64 `json:"positions"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by a client to manage channel
// subscriptions, e.g. {"op":"subscribe","channels":["trades:IRO1XYZ0001"]}.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSEvent is the broadcast frame: the engine event wrapped with its
// kind and the channel it was published on.
type WSEvent struct {
	Channel string `json:"channel"`
	Kind    string `json:"kind"`
	Data    any    `json:"data"`
}

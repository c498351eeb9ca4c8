// Package protocol defines the typed request surface the matching core
// consumes and the result/event objects it produces. Requests arrive
// already validated for shape; the core only applies business rules.
package protocol

import (
	"encoding/json"
	"time"

	"bourse/pkg/orderbook"
)

// EntryType distinguishes a first-time order entry from an update.
type EntryType int

const (
	EntryNew EntryType = iota
	EntryUpdate
)

// MatchingState is the security's matching mode.
type MatchingState int

const (
	Continuous MatchingState = iota
	Auction
)

func (s MatchingState) String() string {
	if s == Auction {
		return "AUCTION"
	}
	return "CONTINUOUS"
}

// MarshalJSON renders the state by name on every wire surface.
func (s MatchingState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// EnterOrder asks the core to enter a new order or update a resting
// one. PeakSize > 0 makes the order an iceberg, StopPrice > 0 a
// stop-limit; the two are mutually exclusive, and StopPrice > 0
// excludes MinExecQty > 0 (enforced upstream).
type EnterOrder struct {
	RequestID     int64
	Security      string // ISIN
	OrderID       int64
	Type          EntryType
	Side          orderbook.Side
	Quantity      int64
	Price         int64
	BrokerID      int64
	ShareholderID int64
	PeakSize      int64
	MinExecQty    int64
	StopPrice     int64
	EntryTime     time.Time
}

// DeleteOrder cancels a resting or stop-parked order.
type DeleteOrder struct {
	RequestID int64
	Security  string
	Side      orderbook.Side
	OrderID   int64
}

// ChangeMatchingState moves a security between continuous matching and
// call-auction accumulation.
type ChangeMatchingState struct {
	Security string
	Target   MatchingState
}

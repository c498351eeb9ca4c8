package matching

import "bourse/pkg/orderbook"

// Outcome tags the result of one matching attempt.
type Outcome int

const (
	// Successes.
	OutcomeExecuted             Outcome = iota // matched and/or rested in continuous mode
	OutcomeExecutedInAuction                   // accepted into the book while in auction
	OutcomeNotMetLastTradePrice                // stop order accepted and parked, trigger not met
	OutcomeDeleted

	// Rejections. Every rejection leaves books and ledgers exactly as
	// they were before the call.
	OutcomeNotEnoughCredit
	OutcomeNotEnoughPositions
	OutcomeNotMetMEQValue
	OutcomeOrderIDNotFound
	OutcomeStopLimitOrderIDNotFound
	OutcomeStopLimitNotAllowedInAuction
	OutcomeMEQNotAllowedInAuction
	OutcomeIcebergChangeForbidden
	OutcomeMEQChangeForbidden
)

// IsSuccess reports whether the attempt committed any state.
func (o Outcome) IsSuccess() bool {
	switch o {
	case OutcomeExecuted, OutcomeExecutedInAuction, OutcomeNotMetLastTradePrice, OutcomeDeleted:
		return true
	}
	return false
}

// MatchResult is produced by every matching attempt and never mutated
// after construction. Remainder is the (possibly fully filled) order
// left over on success, nil on rejection.
type MatchResult struct {
	Outcome   Outcome
	Remainder *orderbook.Order
	Trades    []*Trade
}

func executed(remainder *orderbook.Order, trades []*Trade) *MatchResult {
	return &MatchResult{Outcome: OutcomeExecuted, Remainder: remainder, Trades: trades}
}

func rejected(outcome Outcome) *MatchResult {
	return &MatchResult{Outcome: outcome}
}

// HasTrades reports whether any trade settled.
func (r *MatchResult) HasTrades() bool { return len(r.Trades) > 0 }

// LastTradePrice returns the price of the final trade, or 0 if none.
func (r *MatchResult) LastTradePrice() int64 {
	if len(r.Trades) == 0 {
		return 0
	}
	return r.Trades[len(r.Trades)-1].Price
}

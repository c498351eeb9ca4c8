package matching

import "bourse/pkg/orderbook"

// OpeningState is the computed auction equilibrium: the single price
// maximizing the quantity simultaneously matchable across accumulated
// interest, and that quantity.
type OpeningState struct {
	Price            int64
	TradableQuantity int64
}

// computeOpening scans every distinct limit price in the book as a
// candidate clearing price. Tradable volume at price p is
// min(buy demand at >= p, sell supply at <= p). Ties on maximal
// volume break toward the price nearest the last trade price, then
// toward the lower price. With no crossing interest the last trade
// price is reported with zero volume.
func computeOpening(book *orderbook.OrderBook, lastTradePrice int64) OpeningState {
	buys := book.BuyOrders()
	sells := book.SellOrders()

	seen := make(map[int64]bool, len(buys)+len(sells))
	var candidates []int64
	for _, o := range buys {
		if !seen[o.Price] {
			seen[o.Price] = true
			candidates = append(candidates, o.Price)
		}
	}
	for _, o := range sells {
		if !seen[o.Price] {
			seen[o.Price] = true
			candidates = append(candidates, o.Price)
		}
	}

	best := OpeningState{Price: lastTradePrice}
	for _, p := range candidates {
		var demand, supply int64
		for _, o := range buys {
			if o.Price >= p {
				demand += o.Quantity
			}
		}
		for _, o := range sells {
			if o.Price <= p {
				supply += o.Quantity
			}
		}
		tradable := min(demand, supply)

		if tradable < best.TradableQuantity || tradable == 0 {
			continue
		}
		if tradable > best.TradableQuantity {
			best = OpeningState{Price: p, TradableQuantity: tradable}
			continue
		}
		if closer(p, best.Price, lastTradePrice) {
			best.Price = p
		}
	}
	return best
}

// closer reports whether a beats b as an opening price: smaller
// distance to the reference wins, the lower price on an exact tie.
func closer(a, b, ref int64) bool {
	da, db := abs(a-ref), abs(b-ref)
	if da != db {
		return da < db
	}
	return a < b
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

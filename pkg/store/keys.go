package store

import "fmt"

// Pebble key schema. Prefix-based so each entity class supports range
// scans, with zero-padded sequence numbers where lexicographic order
// must follow insertion order.
const (
	prefixBroker      = "brk:"
	prefixShareholder = "shr:"
	prefixSecurity    = "sec:"
	prefixTrade       = "trd:"
)

// brokerKey: "brk:{id}"
func brokerKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%d", prefixBroker, id))
}

// shareholderKey: "shr:{id}"
func shareholderKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%d", prefixShareholder, id))
}

// securityKey: "sec:{isin}"
func securityKey(isin string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixSecurity, isin))
}

// tradeKey: "trd:{isin}:{seq}" with a 20-digit zero-padded sequence so
// scans return trades in settlement order.
func tradeKey(isin string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixTrade, isin, seq))
}

// tradePrefix bounds a range scan over one security's trade history.
func tradePrefix(isin string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, isin))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
